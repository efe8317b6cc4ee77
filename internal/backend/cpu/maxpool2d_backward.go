package cpu

import (
	"fmt"

	"github.com/born-ml/convnet/internal/tensor"
)

// MaxPool2DBackward routes gradients to the max positions of the forward pass.
//
// Each output gradient is added in full to the single input position recorded
// in indices; the other cells of the window receive nothing from it.
//
// Example (2x2 pool, stride=2):
//
//	Input:  [[1, 2],  Output: [4]  Input Grad: [[0, 0],
//	         [3, 4]]                             [0, grad]]
func (cpu *CPUBackend) MaxPool2DBackward(inputGrad, outputGrad tensor.View, indices []int32) {
	if len(indices) != outputGrad.Len() {
		panic(fmt.Sprintf("MaxPool2DBackward: indices length %d != expected %d", len(indices), outputGrad.Len()))
	}

	inputGradData := inputGrad.Data()
	for i, g := range outputGrad.Data() {
		inputGradData[indices[i]] += g
	}
}
