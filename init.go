package doca

import (
	"github.com/behrlich/go-doca/accepter"
	"github.com/behrlich/go-doca/awaitable"
	"github.com/behrlich/go-doca/dcontext"
	"github.com/behrlich/go-doca/engine"
	"github.com/behrlich/go-doca/internal/devsim"
)

// init wires the awaitable, accepter, devsim, dcontext, and engine
// packages' error factories to this package's own *Error/Kind taxonomy,
// so in-use/empty/not-connected/again errors surfacing from those
// low-level packages are the same *doca.Error type every other
// operation returns. offload.go blank-imports this package so the
// wiring runs for any real program built on the leaf packages, not just
// code that happens to import the root package directly.
func init() {
	awaitable.SetErrorFactory(func(kind string, msg string) error {
		return &Error{Op: "awaitable", Kind: Kind(kind), Msg: msg}
	})
	accepter.SetNotConnectedFactory(func() error {
		return &Error{Op: "accepter", Kind: KindNotConnected, Msg: "queue disconnected"}
	})
	devsim.ErrNotFoundFactory = func(op, msg string) error {
		return &Error{Op: op, Kind: KindNotFound, Msg: msg}
	}
	devsim.ErrBadStateFactory = func(op, msg string) error {
		return &Error{Op: op, Kind: KindBadState, Msg: msg}
	}
	dcontext.SetBadStateFactory(func(op, msg string) error {
		return &Error{Op: op, Kind: KindBadState, Msg: msg}
	})
	engine.AgainFactory = func() error {
		return &Error{Op: "engine.SubmitTask", Kind: KindAgain, Msg: "sdk backpressure"}
	}
	engine.IsAgainFunc = func(err error) bool {
		return IsKind(err, KindAgain)
	}
}
