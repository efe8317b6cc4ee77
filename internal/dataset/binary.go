package dataset

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"unsafe"

	"github.com/born-ml/convnet/internal/tensor"
)

// BinaryOptions describes a raw binary dataset.
type BinaryOptions struct {
	SampleShape   tensor.Shape  // Shape of one image, e.g. [1, 28, 28]
	Normalization Normalization // Applied in place after mapping
	Classes       int           // Labels are checked against [0, Classes) when > 0
}

// Binary is a Provider over two memory-mapped files: images as consecutive
// little-endian float32 values and labels as little-endian int32 values.
//
// The mappings are private, so in-place normalization never modifies the
// files on disk.
type Binary struct {
	imageBytes []byte
	labelBytes []byte

	images      []float32
	labels      []int32
	sampleShape tensor.Shape
}

// OpenBinary maps both files, normalizes the images and checks that the
// image data holds exactly one sample per label.
//
// Important: Always call Close() when done to unmap the files.
func OpenBinary(imagesPath, labelsPath string, opts BinaryOptions) (*Binary, error) {
	imageBytes, err := mapFile(imagesPath)
	if err != nil {
		return nil, fmt.Errorf("images: %w", err)
	}
	labelBytes, err := mapFile(labelsPath)
	if err != nil {
		_ = munmapFile(imageBytes)
		return nil, fmt.Errorf("labels: %w", err)
	}

	b := &Binary{
		imageBytes:  imageBytes,
		labelBytes:  labelBytes,
		images:      asFloat32s(imageBytes),
		labels:      asInt32s(labelBytes),
		sampleShape: opts.SampleShape.Clone(),
	}

	if err := b.init(opts); err != nil {
		_ = b.Close()
		return nil, err
	}
	return b, nil
}

func (b *Binary) init(opts BinaryOptions) error {
	opts.Normalization.Apply(b.images)

	n, err := samples(len(b.images), b.sampleShape)
	if err != nil {
		return err
	}
	if n != len(b.labels) {
		return fmt.Errorf("%w: %d images, %d labels", ErrLengthMismatch, n, len(b.labels))
	}
	if opts.Classes > 0 {
		return CheckLabels(b.labels, opts.Classes)
	}
	return nil
}

// Len returns the number of samples.
func (b *Binary) Len() int { return len(b.labels) }

// SampleShape returns the shape of one image.
func (b *Binary) SampleShape() tensor.Shape { return b.sampleShape }

// Batch returns a view of samples [offset, offset+size).
func (b *Binary) Batch(offset, size int) (Batch, error) {
	return batchOf(b.images, b.labels, b.sampleShape, offset, size)
}

// Close unmaps both files. Batches obtained earlier become invalid.
func (b *Binary) Close() error {
	var errs []error
	if b.imageBytes != nil {
		errs = append(errs, munmapFile(b.imageBytes))
		b.imageBytes = nil
	}
	if b.labelBytes != nil {
		errs = append(errs, munmapFile(b.labelBytes))
		b.labelBytes = nil
	}
	b.images, b.labels = nil, nil
	return errors.Join(errs...)
}

func mapFile(path string) ([]byte, error) {
	//nolint:gosec // G304: dataset path comes from the command line
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	size := stat.Size()
	if size == 0 || size%4 != 0 {
		return nil, fmt.Errorf("%w: %s is %d bytes, want a non-zero multiple of 4", ErrLengthMismatch, path, size)
	}

	data, err := mmapFile(file, size)
	if err != nil {
		return nil, fmt.Errorf("mmap failed: %w", err)
	}
	if !littleEndianHost {
		swap32(data)
	}
	return data, nil
}

var littleEndianHost = func() bool {
	x := uint16(1)
	return *(*byte)(unsafe.Pointer(&x)) == 1
}()

// swap32 converts little-endian 4-byte words to host order in place.
func swap32(data []byte) {
	for i := 0; i+4 <= len(data); i += 4 {
		binary.BigEndian.PutUint32(data[i:], binary.LittleEndian.Uint32(data[i:]))
	}
}

func asFloat32s(b []byte) []float32 {
	//nolint:gosec // mapping is page aligned and a multiple of 4 bytes
	return unsafe.Slice((*float32)(unsafe.Pointer(&b[0])), len(b)/4)
}

func asInt32s(b []byte) []int32 {
	//nolint:gosec // mapping is page aligned and a multiple of 4 bytes
	return unsafe.Slice((*int32)(unsafe.Pointer(&b[0])), len(b)/4)
}
