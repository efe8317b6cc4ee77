package arena

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArena_AllocZeroed(t *testing.T) {
	a := New(1024)

	f := a.Float32s(16)
	require.Len(t, f, 16)
	for i, v := range f {
		assert.Zero(t, v, "element %d", i)
	}
	assert.Equal(t, 64, a.Used())

	ints := a.Int32s(4)
	require.Len(t, ints, 4)
	assert.Equal(t, 80, a.Used())
}

func TestArena_AllocationsDoNotOverlap(t *testing.T) {
	a := New(1024)

	x := a.Float32s(10)
	y := a.Float32s(10)
	for i := range x {
		x[i] = 1
	}
	for _, v := range y {
		assert.Zero(t, v)
	}
	assert.Equal(t, a.Offset(x)+40, a.Offset(y))
}

func TestArena_ResetToMark(t *testing.T) {
	a := New(4096)

	// Persistent prefix that must survive the reset.
	keep := a.Float32s(8)
	for i := range keep {
		keep[i] = float32(i + 1)
	}

	m := a.Mark()
	first := a.Float32s(32)
	base := a.Offset(first)
	for i := range first {
		first[i] = 42
	}
	more := a.Int32s(100)
	for i := range more {
		more[i] = -1
	}
	require.Greater(t, a.Used(), m.offset)

	a.ResetTo(m)
	assert.Equal(t, m.offset, a.Used())

	again := a.Float32s(32)
	assert.Equal(t, base, a.Offset(again), "reallocation must land at the mark")
	assert.Same(t, &first[0], &again[0])
	for i, v := range again {
		assert.Zero(t, v, "element %d not wiped by reset", i)
	}
	for i, v := range keep {
		assert.Equal(t, float32(i+1), v, "memory before the mark was touched")
	}

	// Bytes past the reallocated range were wiped too.
	tail := a.Int32s(100)
	for _, v := range tail {
		assert.Zero(t, v)
	}
}

func TestArena_ResetIdempotent(t *testing.T) {
	a := New(256)
	m := a.Mark()
	_ = a.Float32s(10)
	a.ResetTo(m)
	a.ResetTo(m)
	assert.Zero(t, a.Used())
	assert.Equal(t, 40, a.Peak())
}

func TestArena_Exhausted(t *testing.T) {
	a := New(64)
	_ = a.Float32s(10)

	defer func() {
		r := recover()
		require.NotNil(t, r, "expected panic on exhaustion")
		e, ok := r.(*ExhaustedError)
		require.True(t, ok, "panic value %T", r)
		assert.Equal(t, 40, e.Requested)
		assert.Equal(t, 40, e.Used)
		assert.Equal(t, 64, e.Capacity)
		assert.True(t, errors.Is(e, ErrExhausted))
	}()
	_ = a.Float32s(10)
}

func TestRecover(t *testing.T) {
	run := func() (err error) {
		defer Recover(&err)
		a := New(8)
		_ = a.Float32s(3)
		return nil
	}
	err := run()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestRecover_RepanicsOtherValues(t *testing.T) {
	assert.PanicsWithValue(t, "boom", func() {
		var err error
		defer Recover(&err)
		panic("boom")
	})
}

func TestArena_OffsetForeignSlice(t *testing.T) {
	a := New(64)
	assert.Equal(t, -1, a.Offset(make([]float32, 4)))
	assert.Equal(t, -1, a.Offset(nil))
}

func TestArena_ResetPastCursorPanics(t *testing.T) {
	a := New(64)
	_ = a.Float32s(4)
	m := a.Mark()
	a.ResetTo(Mark{})
	assert.Panics(t, func() { a.ResetTo(m) })
}
