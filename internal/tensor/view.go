package tensor

import "fmt"

// View is a shaped window over a flat float32 buffer.
//
// The zero View is empty and is used to signal "no buffer", for example an
// input activation that does not need a gradient.
type View struct {
	data    []float32
	shape   Shape
	strides []int
}

// NewView wraps data with the given shape.
// Panics if the element count does not match len(data).
func NewView(data []float32, shape Shape) View {
	if err := shape.Validate(); err != nil {
		panic(fmt.Sprintf("tensor: %v", err))
	}
	if n := shape.NumElements(); n != len(data) {
		panic(fmt.Sprintf("tensor: shape %v needs %d elements, buffer has %d", shape, n, len(data)))
	}
	return View{data: data, shape: shape.Clone(), strides: shape.ComputeStrides()}
}

// Data returns the underlying buffer.
func (v View) Data() []float32 {
	return v.data
}

// Shape returns the view's dimensions.
func (v View) Shape() Shape {
	return v.shape
}

// Strides returns the row-major strides.
func (v View) Strides() []int {
	return v.strides
}

// Len returns the number of elements.
func (v View) Len() int {
	return len(v.data)
}

// Empty reports whether the view carries no buffer.
func (v View) Empty() bool {
	return len(v.data) == 0
}

// Rank returns the number of dimensions.
func (v View) Rank() int {
	return len(v.shape)
}

// Dim returns dimension i.
func (v View) Dim(i int) int {
	return v.shape[i]
}

// Offset converts a multi-dimensional index into a flat offset.
// Panics on rank mismatch or an out-of-range coordinate.
func (v View) Offset(idx ...int) int {
	if len(idx) != len(v.shape) {
		panic(fmt.Sprintf("tensor: index rank %d != view rank %d", len(idx), len(v.shape)))
	}
	off := 0
	for i, x := range idx {
		if x < 0 || x >= v.shape[i] {
			panic(fmt.Sprintf("tensor: index %d out of range [0,%d) in dim %d", x, v.shape[i], i))
		}
		off += x * v.strides[i]
	}
	return off
}

// At returns the element at idx.
func (v View) At(idx ...int) float32 {
	return v.data[v.Offset(idx...)]
}

// Set stores x at idx.
func (v View) Set(x float32, idx ...int) {
	v.data[v.Offset(idx...)] = x
}

// Index returns the sub-view at position i of the leading dimension,
// e.g. one sample of a [N, C, H, W] batch.
func (v View) Index(i int) View {
	if len(v.shape) == 0 {
		panic("tensor: Index on scalar view")
	}
	if i < 0 || i >= v.shape[0] {
		panic(fmt.Sprintf("tensor: index %d out of range [0,%d)", i, v.shape[0]))
	}
	step := v.strides[0]
	return View{
		data:    v.data[i*step : (i+1)*step],
		shape:   v.shape[1:],
		strides: v.strides[1:],
	}
}

// Reshape returns a view of the same buffer with a new shape.
func (v View) Reshape(shape Shape) View {
	return NewView(v.data, shape)
}

// Fill sets every element to x.
func (v View) Fill(x float32) {
	for i := range v.data {
		v.data[i] = x
	}
}
