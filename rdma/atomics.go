package rdma

import (
	"encoding/binary"

	"github.com/behrlich/go-doca/internal/devsim"
)

func getUint64(b *devsim.Buffer) uint64 {
	data := b.Data()
	if len(data) < 8 {
		var padded [8]byte
		copy(padded[:], data)
		return binary.LittleEndian.Uint64(padded[:])
	}
	return binary.LittleEndian.Uint64(data)
}

func putUint64(b *devsim.Buffer, v uint64) {
	data := b.Data()
	var encoded [8]byte
	binary.LittleEndian.PutUint64(encoded[:], v)
	copy(data, encoded[:])
}

// atomicCASInto performs a compare-and-swap on dst's first 8 bytes,
// writing the pre-swap value into result. This module simulates RDMA
// in-process, so there is no real network race to guard against here
// beyond the caller's own engine.SubmitTask serialization.
func atomicCASInto(dst, result *devsim.Buffer, cmp, swap uint64) error {
	cur := getUint64(dst)
	putUint64(result, cur)
	if cur == cmp {
		putUint64(dst, swap)
	}
	return nil
}

// atomicFetchAddInto adds add to dst's first 8 bytes, writing the
// pre-add value into result.
func atomicFetchAddInto(dst, result *devsim.Buffer, add uint64) error {
	cur := getUint64(dst)
	putUint64(result, cur)
	putUint64(dst, cur+add)
	return nil
}
