package nn

import (
	"math"
	"math/rand"
)

// FanInUniform fills p with values drawn from
//
//	U(-0.5, 0.5) / sqrt(fan_in)
//
// where fan_in is the number of inputs feeding one output unit. Values are
// drawn in storage order, so two models initialized in the same order from
// identically seeded generators are identical.
func FanInUniform(p *Parameter, fanIn int, rng *rand.Rand) {
	if fanIn <= 0 {
		panic("nn: fan-in must be positive")
	}
	scale := 1 / math.Sqrt(float64(fanIn))
	data := p.value.Data()
	for i := range data {
		data[i] = float32((rng.Float64() - 0.5) * scale)
	}
}
