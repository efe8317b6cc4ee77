package dataset

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/convnet/internal/tensor"
)

// SyntheticConfig describes a generated classification dataset.
type SyntheticConfig struct {
	Samples     int          // Number of samples
	Classes     int          // Number of classes
	SampleShape tensor.Shape // Shape of one image
	Noise       float32      // Standard deviation of per-pixel noise
	Seed        int64        // Generator seed
}

// NewSynthetic builds a dataset where every class is a fixed random pattern
// and each sample is its class pattern plus Gaussian noise. Labels cycle
// through the classes so every contiguous batch of Classes samples is
// balanced.
func NewSynthetic(cfg SyntheticConfig) (*Memory, error) {
	if cfg.Samples <= 0 || cfg.Classes <= 0 {
		return nil, fmt.Errorf("synthetic dataset needs positive samples and classes, got %d and %d", cfg.Samples, cfg.Classes)
	}
	if err := cfg.SampleShape.Validate(); err != nil {
		return nil, fmt.Errorf("sample shape: %w", err)
	}

	//nolint:gosec // test data generator, not security-critical
	rng := rand.New(rand.NewSource(cfg.Seed))
	stride := cfg.SampleShape.NumElements()

	patterns := make([]float32, cfg.Classes*stride)
	for i := range patterns {
		if rng.Intn(4) == 0 {
			patterns[i] = 1
		}
	}

	images := make([]float32, cfg.Samples*stride)
	labels := make([]int32, cfg.Samples)
	for n := range labels {
		class := n % cfg.Classes
		labels[n] = int32(class)
		pattern := patterns[class*stride : (class+1)*stride]
		sample := images[n*stride : (n+1)*stride]
		for i, p := range pattern {
			sample[i] = p + cfg.Noise*float32(rng.NormFloat64())
		}
	}

	return NewMemory(images, labels, cfg.SampleShape)
}
