package dcontext

type plainError string

func (e plainError) Error() string { return string(e) }

// badStateFactory lets the root package install a *doca.Error
// constructor for state-machine violations; the default keeps this
// package independently usable and testable.
var badStateFactory = func(op, msg string) error { return plainError(op + ": " + msg) }

// SetBadStateFactory installs the root package's error constructor.
func SetBadStateFactory(f func(op, msg string) error) { badStateFactory = f }

func badState(op, msg string) error { return badStateFactory(op, msg) }
