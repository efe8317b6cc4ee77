// Package train drives the training loop: epochs of minibatches, each one a
// forward pass, a backward pass and an optimizer step inside an arena
// mark/reset pair.
package train

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/born-ml/convnet/internal/arena"
	"github.com/born-ml/convnet/internal/dataset"
	"github.com/born-ml/convnet/internal/nn"
	"github.com/born-ml/convnet/internal/optim"
)

// ErrNoBatches means the dataset is smaller than one minibatch.
var ErrNoBatches = errors.New("dataset smaller than one minibatch")

// Config controls the loop.
type Config struct {
	Epochs    int
	BatchSize int

	// ProgressEvery is the reporting interval in samples. Zero selects a
	// tenth of the dataset.
	ProgressEvery int
}

// Summary is the outcome of Run.
type Summary struct {
	Epochs []EpochStats
}

// Losses returns the average loss of each epoch.
func (s Summary) Losses() []float64 {
	losses := make([]float64, len(s.Epochs))
	for i, e := range s.Epochs {
		losses[i] = e.AvgLoss
	}
	return losses
}

// Duration returns the summed training time of all epochs.
func (s Summary) Duration() time.Duration {
	var d time.Duration
	for _, e := range s.Epochs {
		d += e.Duration
	}
	return d
}

// Evaluation is the outcome of Evaluate.
type Evaluation struct {
	Samples int
	Correct int
	AvgLoss float64
}

// Accuracy returns the fraction of correct predictions.
func (e Evaluation) Accuracy() float64 {
	if e.Samples == 0 {
		return 0
	}
	return float64(e.Correct) / float64(e.Samples)
}

// Trainer owns the arena and runs the model over a dataset.
type Trainer struct {
	model    *nn.Model
	opt      optim.Optimizer
	ctx      *nn.Context
	cfg      Config
	logger   *slog.Logger
	reporter Reporter
}

// Option configures a Trainer.
type Option func(*Trainer)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Trainer) { t.logger = logger }
}

// WithReporter sets the progress reporter.
func WithReporter(r Reporter) Option {
	return func(t *Trainer) { t.reporter = r }
}

// New creates a Trainer. ctx supplies the arena, backend and dropout source;
// its arena must be reserved exclusively for the trainer.
func New(model *nn.Model, opt optim.Optimizer, ctx *nn.Context, cfg Config, opts ...Option) *Trainer {
	t := &Trainer{
		model:    model,
		opt:      opt,
		ctx:      ctx,
		cfg:      cfg,
		logger:   slog.New(slog.DiscardHandler),
		reporter: Reporters(nil),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ArenaBytes returns the region size needed to train and evaluate on
// minibatches of batch samples, scaled by safety.
func ArenaBytes(model *nn.Model, batch int, safety float64) int {
	footprint := float64(model.Footprint(batch)) * safety
	// Evaluation additionally stores one prediction per sample.
	return int(math.Ceil(footprint)) + 4*batch
}

// Step trains on one minibatch: forward, backward, optimizer update.
// Arena memory used by the step is released before Step returns, and
// exhaustion is reported as an error wrapping arena.ErrExhausted.
func (t *Trainer) Step(b dataset.Batch) (loss float32, err error) {
	mark := t.ctx.Arena.Mark()
	defer func() {
		t.model.Release()
		t.ctx.Arena.ResetTo(mark)
		if err != nil {
			t.opt.ZeroGrad()
		}
	}()
	defer arena.Recover(&err)

	loss = t.model.TrainBatch(t.ctx, b.Images, b.Labels)
	t.opt.Step()
	return loss, nil
}

// Run trains for cfg.Epochs epochs over the first N/BatchSize full
// minibatches of data and returns per-epoch statistics. The context is
// checked between minibatches.
func (t *Trainer) Run(ctx context.Context, data dataset.Provider) (Summary, error) {
	n, bs := data.Len(), t.cfg.BatchSize
	if bs <= 0 || n < bs {
		return Summary{}, fmt.Errorf("%w: %d samples, batch size %d", ErrNoBatches, n, bs)
	}
	batches := n / bs
	if rem := n % bs; rem != 0 {
		t.logger.Warn("trailing samples are not trained on", "samples", rem, "batch_size", bs)
	}

	every := t.cfg.ProgressEvery
	if every <= 0 {
		every = max(n/10, 1)
	}

	var summary Summary
	for epoch := 0; epoch < t.cfg.Epochs; epoch++ {
		t.reporter.EpochStart(epoch)
		start := time.Now()
		var sum float64
		seen := 0

		for b := 0; b < batches; b++ {
			if err := ctx.Err(); err != nil {
				return summary, err
			}
			batch, err := data.Batch(b*bs, bs)
			if err != nil {
				return summary, fmt.Errorf("epoch %d batch %d: %w", epoch, b, err)
			}
			loss, err := t.Step(batch)
			if err != nil {
				return summary, fmt.Errorf("epoch %d batch %d: %w", epoch, b, err)
			}

			sum += float64(loss)
			seen += bs
			if seen%every == 0 {
				t.reporter.Progress(Progress{Epoch: epoch, Samples: seen, Total: n, AvgLoss: sum / float64(seen)})
			}
		}

		stats := EpochStats{
			Epoch:    epoch,
			Samples:  seen,
			AvgLoss:  sum / float64(seen),
			Duration: time.Since(start),
		}
		summary.Epochs = append(summary.Epochs, stats)
		t.reporter.EpochDone(stats)
		t.logger.Debug("arena usage", "epoch", epoch, "peak", t.ctx.Arena.Peak(), "capacity", t.ctx.Arena.Cap())
	}
	return summary, nil
}

// Evaluate runs the model in inference mode (dropout disabled) over every
// sample of data, including a trailing partial minibatch.
func (t *Trainer) Evaluate(ctx context.Context, data dataset.Provider) (Evaluation, error) {
	n, bs := data.Len(), t.cfg.BatchSize
	if bs <= 0 {
		return Evaluation{}, fmt.Errorf("%w: batch size %d", ErrNoBatches, bs)
	}

	var eval Evaluation
	var sum float64
	for off := 0; off < n; off += bs {
		if err := ctx.Err(); err != nil {
			return eval, err
		}
		batch, err := data.Batch(off, min(bs, n-off))
		if err != nil {
			return eval, fmt.Errorf("evaluate at %d: %w", off, err)
		}
		loss, correct, err := t.evalStep(batch)
		if err != nil {
			return eval, fmt.Errorf("evaluate at %d: %w", off, err)
		}
		sum += float64(loss)
		eval.Correct += correct
		eval.Samples += batch.Len()
	}
	if eval.Samples > 0 {
		eval.AvgLoss = sum / float64(eval.Samples)
	}
	return eval, nil
}

func (t *Trainer) evalStep(b dataset.Batch) (loss float32, correct int, err error) {
	mark := t.ctx.Arena.Mark()
	defer func() {
		t.model.Release()
		t.ctx.Arena.ResetTo(mark)
	}()
	defer arena.Recover(&err)

	preds := t.ctx.Arena.Int32s(b.Len())
	loss, correct = t.model.EvalBatch(t.ctx, b.Images, b.Labels, preds)
	return loss, correct, nil
}
