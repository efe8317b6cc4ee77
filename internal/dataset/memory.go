package dataset

import (
	"fmt"

	"github.com/born-ml/convnet/internal/tensor"
)

// Memory is a Provider over caller-owned slices.
type Memory struct {
	images      []float32
	labels      []int32
	sampleShape tensor.Shape
}

// NewMemory wraps images and labels without copying. The image data must
// hold exactly len(labels) samples of sampleShape.
func NewMemory(images []float32, labels []int32, sampleShape tensor.Shape) (*Memory, error) {
	n, err := samples(len(images), sampleShape)
	if err != nil {
		return nil, err
	}
	if n != len(labels) {
		return nil, fmt.Errorf("%w: %d images, %d labels", ErrLengthMismatch, n, len(labels))
	}
	return &Memory{images: images, labels: labels, sampleShape: sampleShape.Clone()}, nil
}

// Len returns the number of samples.
func (m *Memory) Len() int { return len(m.labels) }

// SampleShape returns the shape of one image.
func (m *Memory) SampleShape() tensor.Shape { return m.sampleShape }

// Batch returns a view of samples [offset, offset+size).
func (m *Memory) Batch(offset, size int) (Batch, error) {
	return batchOf(m.images, m.labels, m.sampleShape, offset, size)
}

// Labels returns the label storage.
func (m *Memory) Labels() []int32 { return m.labels }

// Close does nothing.
func (m *Memory) Close() error { return nil }
