package dataset

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/born-ml/convnet/internal/tensor"
)

// IDX magic numbers for unsigned-byte tensors.
const (
	idxLabelsMagic = 0x00000801 // 1D: labels
	idxImagesMagic = 0x00000803 // 3D: images
)

// LoadIDX reads an MNIST-style image/label pair. Pixels are scaled from
// [0, 255] to [0, 1] and then normalized. Files ending in ".gz" are
// decompressed on the fly.
//
// IDX file format for images:
//
//	magic number: 0x00000803 (2051)
//	number of images: 4 bytes
//	number of rows: 4 bytes (28)
//	number of cols: 4 bytes (28)
//	pixel data: unsigned bytes (0-255)
//
// IDX file format for labels:
//
//	magic number: 0x00000801 (2049)
//	number of labels: 4 bytes
//	label data: unsigned bytes (0-9)
func LoadIDX(imagesPath, labelsPath string, norm Normalization) (*Memory, error) {
	pixels, rows, cols, err := readIDXImages(imagesPath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", imagesPath, err)
	}
	rawLabels, err := readIDXLabels(labelsPath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", labelsPath, err)
	}

	images := make([]float32, len(pixels))
	for i, p := range pixels {
		images[i] = float32(p) / 255
	}
	norm.Apply(images)

	labels := make([]int32, len(rawLabels))
	for i, l := range rawLabels {
		labels[i] = int32(l)
	}

	return NewMemory(images, labels, tensor.Shape{1, rows, cols})
}

// maxIDXBytes bounds the payload of a compressed IDX file, whose size is
// not known before it is decompressed.
const maxIDXBytes = 1 << 30

// idxFile is an open IDX stream. limit is the largest payload the stream can
// hold: the bytes after the header for plain files, maxIDXBytes for gzip.
type idxFile struct {
	r     io.Reader
	limit int64
	close func() error
}

func openIDX(filename string, headerBytes int64) (*idxFile, error) {
	//nolint:gosec // G304: dataset path comes from the command line
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(filename, ".gz") {
		stat, err := file.Stat()
		if err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("failed to stat file: %w", err)
		}
		return &idxFile{
			r:     bufio.NewReader(file),
			limit: max(stat.Size()-headerBytes, 0),
			close: file.Close,
		}, nil
	}
	zr, err := gzip.NewReader(file)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to open gzip stream: %w", err)
	}
	return &idxFile{
		r:     zr,
		limit: maxIDXBytes,
		close: func() error {
			_ = zr.Close()
			return file.Close()
		},
	}, nil
}

// readHeader checks the magic number, fills dims and returns the payload
// size they declare. A payload larger than the stream can hold is rejected
// before anything is allocated.
func (f *idxFile) readHeader(wantMagic uint32, dims []uint32) (int, error) {
	var magic uint32
	if err := binary.Read(f.r, binary.BigEndian, &magic); err != nil {
		return 0, fmt.Errorf("failed to read magic: %w", err)
	}
	if magic != wantMagic {
		return 0, fmt.Errorf("%w: got %#08x, want %#08x", ErrInvalidMagic, magic, wantMagic)
	}
	if err := binary.Read(f.r, binary.BigEndian, dims); err != nil {
		return 0, fmt.Errorf("failed to read dimensions: %w", err)
	}

	size := int64(1)
	for _, d := range dims {
		if d != 0 && size > f.limit/int64(d) {
			return 0, fmt.Errorf("%w: dimensions %v exceed %d payload bytes", ErrLengthMismatch, dims, f.limit)
		}
		size *= int64(d)
	}
	return int(size), nil
}

func readIDXImages(filename string) (pixels []byte, rows, cols int, err error) {
	f, err := openIDX(filename, 16)
	if err != nil {
		return nil, 0, 0, err
	}
	defer f.close()

	dims := make([]uint32, 3)
	size, err := f.readHeader(idxImagesMagic, dims)
	if err != nil {
		return nil, 0, 0, err
	}

	n, rows, cols := int(dims[0]), int(dims[1]), int(dims[2])
	pixels = make([]byte, size)
	if _, err := io.ReadFull(f.r, pixels); err != nil {
		return nil, 0, 0, fmt.Errorf("%w: failed to read %d images: %v", ErrLengthMismatch, n, err)
	}
	return pixels, rows, cols, nil
}

func readIDXLabels(filename string) ([]byte, error) {
	f, err := openIDX(filename, 8)
	if err != nil {
		return nil, err
	}
	defer f.close()

	dims := make([]uint32, 1)
	size, err := f.readHeader(idxLabelsMagic, dims)
	if err != nil {
		return nil, err
	}

	labels := make([]byte, size)
	if _, err := io.ReadFull(f.r, labels); err != nil {
		return nil, fmt.Errorf("%w: failed to read %d labels: %v", ErrLengthMismatch, dims[0], err)
	}
	return labels, nil
}
