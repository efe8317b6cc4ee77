package cpu

import (
	"fmt"

	"github.com/born-ml/convnet/internal/tensor"
)

// MaxPool2DOutputShape returns [N, C, (H-k)/s+1, (W-k)/s+1].
func MaxPool2DOutputShape(inShape tensor.Shape, kernelSize, stride int) tensor.Shape {
	if len(inShape) != 4 {
		panic(fmt.Sprintf("maxpool2d: expected 4D input [N,C,H,W], got %dD", len(inShape)))
	}
	if kernelSize <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid kernel size %d", kernelSize))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid stride %d", stride))
	}
	H, W := inShape[2], inShape[3]
	if kernelSize > H || kernelSize > W {
		panic(fmt.Sprintf("maxpool2d: kernel size %d too large for input %dx%d", kernelSize, H, W))
	}
	return tensor.Shape{inShape[0], inShape[1], (H-kernelSize)/stride + 1, (W-kernelSize)/stride + 1}
}

// MaxPool2D performs 2D max pooling and records the argmax of every window.
//
// Input shape:  [batch, channels, height, width]
// Output shape: [batch, channels, out_height, out_width]
//
// indices receives, per output element, the absolute offset into the input
// buffer of the winning cell. Windows are scanned in row-major order and a
// cell only wins with a strictly greater value, so on exact ties the first
// maximal position is kept.
//
// Example (2x2 pool, stride=2):
//
//	Input: [[1,2,3,4],    Output: [[6,8],     Indices: [[5,7],
//	        [5,6,7,8],             [14,16]]             [13,15]]
//	        [9,10,11,12],
//	        [13,14,15,16]]
func (cpu *CPUBackend) MaxPool2D(output tensor.View, indices []int32, input tensor.View, kernelSize, stride int) {
	inShape := input.Shape()
	outShape := MaxPool2DOutputShape(inShape, kernelSize, stride)
	checkShape("maxpool2d", "output", output.Shape(), outShape)
	if len(indices) != output.Len() {
		panic(fmt.Sprintf("maxpool2d: indices length %d != output length %d", len(indices), output.Len()))
	}

	N, C, H, W := inShape[0], inShape[1], inShape[2], inShape[3]
	HOut, WOut := outShape[2], outShape[3]
	inputData := input.Data()
	outputData := output.Data()

	outIdx := 0
	for n := 0; n < N; n++ {
		for c := 0; c < C; c++ {
			// Pre-slice channel plane
			channelOffset := (n*C + c) * H * W
			channelData := inputData[channelOffset : channelOffset+H*W]

			for outH := 0; outH < HOut; outH++ {
				hStart := outH * stride
				for outW := 0; outW < WOut; outW++ {
					wStart := outW * stride

					maxPos := hStart*W + wStart
					maxVal := channelData[maxPos]
					for kh := 0; kh < kernelSize; kh++ {
						rowStart := (hStart + kh) * W
						rowData := channelData[rowStart : rowStart+W]
						for kw := 0; kw < kernelSize; kw++ {
							if val := rowData[wStart+kw]; val > maxVal {
								maxVal = val
								maxPos = rowStart + wStart + kw
							}
						}
					}

					outputData[outIdx] = maxVal
					indices[outIdx] = int32(channelOffset + maxPos) //nolint:gosec // G115: offsets bounded by arena size
					outIdx++
				}
			}
		}
	}
}
