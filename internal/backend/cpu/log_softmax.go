package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/convnet/internal/tensor"
)

// LogSoftmaxNLL computes row-wise log-softmax of logits [N, K] into logProbs
// and the negative log-likelihood of each sample's label into losses [N].
// Returns the summed loss.
//
// Numerically stable form:
//
//	lse = max + log(Σ exp(x - max))
//	logp = x - lse
//	loss = -logp[label]
func (cpu *CPUBackend) LogSoftmaxNLL(logProbs, losses []float32, logits tensor.View, labels []int32) float32 {
	n, k := softmaxDims("LogSoftmaxNLL", logits, logProbs, losses, labels)
	x := logits.Data()

	total := float32(0)
	for i := 0; i < n; i++ {
		row := x[i*k : (i+1)*k]
		lp := logProbs[i*k : (i+1)*k]

		rowMax := float32(-math.MaxFloat32)
		for _, v := range row {
			if v > rowMax {
				rowMax = v
			}
		}

		sum := float32(0)
		for j, v := range row {
			e := float32(math.Exp(float64(v - rowMax)))
			lp[j] = e
			sum += e
		}

		lse := rowMax + float32(math.Log(float64(sum)))
		for j, v := range row {
			lp[j] = v - lse
		}

		losses[i] = -lp[labels[i]]
		total += losses[i]
	}
	return total
}

// LogSoftmaxNLLBackward accumulates the logit gradient given the gradient of
// each per-sample loss (lossGrad [N], 1.0 for a summed loss).
//
// The NLL step puts -lossGrad[i] on the label's log-probability; the
// log-softmax step maps an upstream g to g - softmax·Σg, with softmax taken
// as exp(logProbs) here rather than recomputed from the logits. Together:
//
//	logitGrad[i] += lossGrad[i] · (softmax[i] - onehot(label[i]))
func (cpu *CPUBackend) LogSoftmaxNLLBackward(logitGrad tensor.View, logProbs, lossGrad []float32, labels []int32) {
	n, k := softmaxDims("LogSoftmaxNLLBackward", logitGrad, logProbs, lossGrad, labels)
	grad := logitGrad.Data()

	for i := 0; i < n; i++ {
		// Upstream gradient on the log-probs is -seed at the label, 0 elsewhere.
		seed := lossGrad[i]
		gSum := -seed
		lp := logProbs[i*k : (i+1)*k]
		row := grad[i*k : (i+1)*k]
		label := int(labels[i])
		for j, v := range lp {
			g := float32(0)
			if j == label {
				g = -seed
			}
			p := float32(math.Exp(float64(v)))
			row[j] += g - p*gSum
		}
	}
}

func softmaxDims(op string, logits tensor.View, logProbs, perSample []float32, labels []int32) (n, k int) {
	if logits.Rank() != 2 {
		panic(fmt.Sprintf("%s: logits must be 2D [N,K], got %dD", op, logits.Rank()))
	}
	n, k = logits.Dim(0), logits.Dim(1)
	if len(logProbs) != n*k {
		panic(fmt.Sprintf("%s: logProbs length %d != %d", op, len(logProbs), n*k))
	}
	if len(perSample) != n || len(labels) != n {
		panic(fmt.Sprintf("%s: expected %d per-sample values and labels, got %d and %d", op, n, len(perSample), len(labels)))
	}
	for i, l := range labels {
		if l < 0 || int(l) >= k {
			panic(fmt.Sprintf("%s: label %d of sample %d out of range [0,%d)", op, l, i, k))
		}
	}
	return n, k
}

// Argmax returns the index of the largest logit of each row of logits [N, K].
func (cpu *CPUBackend) Argmax(dst []int32, logits tensor.View) {
	if logits.Rank() != 2 || len(dst) != logits.Dim(0) {
		panic("argmax: expected logits [N,K] and N destinations")
	}
	k := logits.Dim(1)
	x := logits.Data()
	for i := range dst {
		best := 0
		for j := 1; j < k; j++ {
			if x[i*k+j] > x[i*k+best] {
				best = j
			}
		}
		dst[i] = int32(best) //nolint:gosec // G115: class count fits in int32
	}
}
