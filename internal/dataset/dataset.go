// Package dataset supplies minibatches of images and labels to the trainer.
//
// A Provider exposes N samples of a fixed shape. Images are float32 in
// [N, C, H, W] layout, labels are int32 class indices. Batches are views
// into the provider's storage; they stay valid until Close.
//
// Implementations:
//   - Binary: raw little-endian float32 images and int32 labels, memory-mapped
//   - IDX: the MNIST distribution format
//   - Memory: caller-supplied slices
//   - Synthetic: class-pattern images for tests and smoke runs
package dataset

import (
	"errors"
	"fmt"

	"github.com/born-ml/convnet/internal/tensor"
)

// Common errors.
var (
	// ErrLengthMismatch means the image data does not divide into whole
	// samples or does not agree with the label count.
	ErrLengthMismatch = errors.New("data length doesn't match")

	// ErrInvalidMagic means an IDX file header is not the expected one.
	ErrInvalidMagic = errors.New("invalid IDX magic number")

	// ErrOutOfRange means a batch extends past the end of the dataset.
	ErrOutOfRange = errors.New("batch out of range")

	// ErrLabelRange means a label is outside [0, classes).
	ErrLabelRange = errors.New("label out of range")
)

// Batch is one minibatch.
type Batch struct {
	Images tensor.View // [size, C, H, W]
	Labels []int32     // [size]
}

// Len returns the number of samples in the batch.
func (b Batch) Len() int { return len(b.Labels) }

// Provider supplies samples by offset.
type Provider interface {
	// Len returns the number of samples.
	Len() int

	// SampleShape returns the shape of one image, e.g. [1, 28, 28].
	SampleShape() tensor.Shape

	// Batch returns samples [offset, offset+size).
	Batch(offset, size int) (Batch, error)

	// Close releases the underlying storage.
	Close() error
}

// Normalization is the per-pixel affine transform (x - Mean) / Std applied
// when a dataset is loaded.
type Normalization struct {
	Mean float32 `yaml:"mean"`
	Std  float32 `yaml:"std"`
}

// MNISTNormalization is the mean and standard deviation of the MNIST
// training pixels scaled to [0, 1].
var MNISTNormalization = Normalization{Mean: 0.1307, Std: 0.3081}

// Apply normalizes data in place. A zero Std leaves data untouched.
func (n Normalization) Apply(data []float32) {
	if n.Std == 0 {
		return
	}
	for i, x := range data {
		data[i] = (x - n.Mean) / n.Std
	}
}

// samples reports how many samples of sampleShape fit exactly in n floats.
func samples(n int, sampleShape tensor.Shape) (int, error) {
	if err := sampleShape.Validate(); err != nil {
		return 0, fmt.Errorf("sample shape: %w", err)
	}
	stride := sampleShape.NumElements()
	if n%stride != 0 {
		return 0, fmt.Errorf("%w: %d values are not a multiple of the sample size %d", ErrLengthMismatch, n, stride)
	}
	return n / stride, nil
}

// CheckLabels verifies every label lies in [0, classes).
func CheckLabels(labels []int32, classes int) error {
	for i, l := range labels {
		if l < 0 || int(l) >= classes {
			return fmt.Errorf("%w: label %d of sample %d not in [0,%d)", ErrLabelRange, l, i, classes)
		}
	}
	return nil
}

// batchOf slices [offset, offset+size) out of flat image and label storage.
func batchOf(images []float32, labels []int32, sampleShape tensor.Shape, offset, size int) (Batch, error) {
	if size <= 0 || offset < 0 || offset+size > len(labels) {
		return Batch{}, fmt.Errorf("%w: [%d, %d) of %d samples", ErrOutOfRange, offset, offset+size, len(labels))
	}
	stride := sampleShape.NumElements()
	shape := append(tensor.Shape{size}, sampleShape...)
	return Batch{
		Images: tensor.NewView(images[offset*stride:(offset+size)*stride], shape),
		Labels: labels[offset : offset+size],
	}, nil
}
