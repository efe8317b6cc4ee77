// Package arena implements the bump-pointer allocator that backs every
// per-minibatch buffer of the training pipeline.
//
// The arena reserves one zeroed block up front. Allocation only advances a
// cursor; there is no per-allocation free. Callers capture a Mark before a
// unit of work and ResetTo it afterwards, which zeroes everything allocated
// since the mark and rewinds the cursor:
//
//	a := arena.New(64 << 20)
//	m := a.Mark()
//	for _, batch := range batches {
//	    out := a.Float32s(batch.Len())
//	    ...
//	    a.ResetTo(m)
//	}
//
// Running out of space is fatal: allocation panics with *ExhaustedError.
// The region never grows, so a slice handed out stays valid (and keeps its
// address) until the reset that releases it.
package arena

import (
	"errors"
	"fmt"
	"unsafe"
)

// align is the allocation granularity in bytes. All element types handed
// out by the arena are 4 bytes wide.
const align = 4

// ErrExhausted is matched by errors.Is for any *ExhaustedError.
var ErrExhausted = errors.New("arena exhausted")

// ExhaustedError describes an allocation the arena could not satisfy.
type ExhaustedError struct {
	Requested int // Bytes requested by the failing allocation
	Used      int // Bytes in use when it failed
	Capacity  int // Total reserved bytes
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("arena exhausted: requested %d bytes with %d/%d in use", e.Requested, e.Used, e.Capacity)
}

// Unwrap makes errors.Is(err, ErrExhausted) work.
func (e *ExhaustedError) Unwrap() error {
	return ErrExhausted
}

// Mark is a saved cursor position.
type Mark struct {
	offset int
}

// Arena is a fixed-size bump allocator. It is not safe for concurrent use;
// the training driver is its only owner.
type Arena struct {
	buf  []byte
	off  int
	peak int
}

// New reserves a zeroed region of size bytes.
func New(size int) *Arena {
	if size <= 0 {
		panic(fmt.Sprintf("arena: invalid size %d", size))
	}
	return &Arena{buf: make([]byte, size)}
}

// Cap returns the reserved size in bytes.
func (a *Arena) Cap() int {
	return len(a.buf)
}

// Used returns the number of bytes between the start of the region and the cursor.
func (a *Arena) Used() int {
	return a.off
}

// Peak returns the highest cursor position reached since creation.
func (a *Arena) Peak() int {
	return a.peak
}

// Mark captures the current cursor.
func (a *Arena) Mark() Mark {
	return Mark{offset: a.off}
}

// ResetTo zeroes every byte allocated since m and moves the cursor back to m.
// Slices obtained after m must not be used afterwards.
func (a *Arena) ResetTo(m Mark) {
	if m.offset < 0 || m.offset > a.off {
		panic(fmt.Sprintf("arena: reset to %d past cursor %d", m.offset, a.off))
	}
	clear(a.buf[m.offset:a.off])
	a.off = m.offset
}

// Float32s allocates n zeroed float32 values.
func (a *Arena) Float32s(n int) []float32 {
	if n == 0 {
		return nil
	}
	p := a.alloc(n * 4)
	//nolint:gosec // unsafe.Slice over arena bytes, length checked by alloc
	return unsafe.Slice((*float32)(unsafe.Pointer(&a.buf[p])), n)
}

// Int32s allocates n zeroed int32 values.
func (a *Arena) Int32s(n int) []int32 {
	if n == 0 {
		return nil
	}
	p := a.alloc(n * 4)
	//nolint:gosec // unsafe.Slice over arena bytes, length checked by alloc
	return unsafe.Slice((*int32)(unsafe.Pointer(&a.buf[p])), n)
}

// Offset reports the byte offset of a slice previously returned by the arena,
// or -1 if it does not point into the region.
func (a *Arena) Offset(s []float32) int {
	if len(s) == 0 || len(a.buf) == 0 {
		return -1
	}
	base := uintptr(unsafe.Pointer(&a.buf[0]))
	p := uintptr(unsafe.Pointer(&s[0]))
	if p < base || p >= base+uintptr(len(a.buf)) {
		return -1
	}
	return int(p - base)
}

func (a *Arena) alloc(nbytes int) int {
	if nbytes < 0 {
		panic(fmt.Sprintf("arena: negative allocation %d", nbytes))
	}
	size := (nbytes + align - 1) &^ (align - 1)
	if size > len(a.buf)-a.off {
		panic(&ExhaustedError{Requested: nbytes, Used: a.off, Capacity: len(a.buf)})
	}
	p := a.off
	a.off += size
	if a.off > a.peak {
		a.peak = a.off
	}
	return p
}

// Recover converts an arena exhaustion panic into an error stored in *err.
// Any other panic is re-raised. Use it as a deferred call:
//
//	defer arena.Recover(&err)
func Recover(err *error) {
	r := recover()
	if r == nil {
		return
	}
	if e, ok := r.(*ExhaustedError); ok {
		*err = e
		return
	}
	panic(r)
}
