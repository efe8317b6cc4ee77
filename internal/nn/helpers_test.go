package nn

import (
	"math/rand"

	"github.com/born-ml/convnet/internal/arena"
	"github.com/born-ml/convnet/internal/backend/cpu"
	"github.com/born-ml/convnet/internal/tensor"
)

func newContext(arenaBytes int) *Context {
	return &Context{
		Arena:   arena.New(arenaBytes),
		Backend: cpu.New(),
		RNG:     rand.New(rand.NewSource(1)),
	}
}

func viewOf(data []float32, shape ...int) tensor.View {
	return tensor.NewView(data, tensor.Shape(shape))
}

func randomImages(rng *rand.Rand, shape tensor.Shape) tensor.View {
	data := make([]float32, shape.NumElements())
	for i := range data {
		data[i] = float32(rng.NormFloat64())
	}
	return tensor.NewView(data, shape)
}

// smallConfig is a LeNet small enough for exhaustive checks:
// 12x12 -> conv3 10x10 -> pool 5x5 -> conv3 3x3 -> pool 1x1.
func smallConfig() LeNetConfig {
	return LeNetConfig{
		InChannels:    1,
		Height:        12,
		Width:         12,
		Classes:       4,
		Conv1Channels: 2,
		Conv2Channels: 3,
		KernelSize:    3,
		PoolSize:      2,
		Hidden:        8,
		KeepProb:      1,
	}
}

func testRNG() *rand.Rand {
	return rand.New(rand.NewSource(42))
}
