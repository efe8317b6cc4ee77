package train

import (
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Progress is a mid-epoch snapshot.
type Progress struct {
	Epoch   int     // Zero-based epoch
	Samples int     // Samples processed so far in this epoch
	Total   int     // Samples in the dataset
	AvgLoss float64 // Loss sum so far divided by Samples
}

// Percent returns the share of the epoch completed, in [0, 100].
func (p Progress) Percent() float64 {
	return 100 * float64(p.Samples) / float64(p.Total)
}

// EpochStats summarizes a finished epoch.
type EpochStats struct {
	Epoch    int
	Samples  int
	AvgLoss  float64
	Duration time.Duration
}

// PerSample returns the mean wall-clock time spent per training sample.
func (s EpochStats) PerSample() time.Duration {
	if s.Samples == 0 {
		return 0
	}
	return s.Duration / time.Duration(s.Samples)
}

// Reporter receives training progress. Calls happen on the training
// goroutine between minibatches.
type Reporter interface {
	EpochStart(epoch int)
	Progress(Progress)
	EpochDone(EpochStats)
}

// TextReporter prints the classic console lines:
//
//	Data normalized (all prepare time) in 0.412000 sec
//	Start training epoch 1
//	Train epoch 0: [6000/60000 (10%)]	Average Loss: 0.812345
//	Training completed in 10234ms (170 us/images)
type TextReporter struct {
	w io.Writer
}

// NewTextReporter writes progress lines to w.
func NewTextReporter(w io.Writer) *TextReporter {
	return &TextReporter{w: w}
}

// Prepared prints the time spent loading and normalizing the dataset.
func (r *TextReporter) Prepared(d time.Duration) {
	fmt.Fprintf(r.w, "Data normalized (all prepare time) in %f sec\n", d.Seconds())
}

// EpochStart announces an epoch, counting from one.
func (r *TextReporter) EpochStart(epoch int) {
	fmt.Fprintf(r.w, "Start training epoch %d\n", epoch+1)
}

// Progress prints one progress line.
func (r *TextReporter) Progress(p Progress) {
	fmt.Fprintf(r.w, "Train epoch %d: [%d/%d (%.0f%%)]\tAverage Loss: %.6f\n",
		p.Epoch, p.Samples, p.Total, p.Percent(), p.AvgLoss)
}

// EpochDone prints the epoch timing line.
func (r *TextReporter) EpochDone(s EpochStats) {
	fmt.Fprintf(r.w, "Training completed in %dms (%d us/images)\n",
		s.Duration.Milliseconds(), s.PerSample().Microseconds())
}

// LogReporter reports through a structured logger.
type LogReporter struct {
	logger *slog.Logger
}

// NewLogReporter logs progress at debug level and epoch summaries at info.
func NewLogReporter(logger *slog.Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

// EpochStart logs the start of an epoch.
func (r *LogReporter) EpochStart(epoch int) {
	r.logger.Debug("epoch start", "epoch", epoch)
}

// Progress logs a progress record.
func (r *LogReporter) Progress(p Progress) {
	r.logger.Debug("train progress",
		"epoch", p.Epoch,
		"samples", p.Samples,
		"total", p.Total,
		"avg_loss", p.AvgLoss)
}

// EpochDone logs an epoch summary.
func (r *LogReporter) EpochDone(s EpochStats) {
	r.logger.Info("epoch done",
		"epoch", s.Epoch,
		"avg_loss", s.AvgLoss,
		"duration", s.Duration,
		"per_sample", s.PerSample())
}

// Reporters fans out to several reporters in order.
type Reporters []Reporter

// EpochStart forwards epoch to every reporter.
func (rs Reporters) EpochStart(epoch int) {
	for _, r := range rs {
		r.EpochStart(epoch)
	}
}

// Progress forwards p to every reporter.
func (rs Reporters) Progress(p Progress) {
	for _, r := range rs {
		r.Progress(p)
	}
}

// EpochDone forwards s to every reporter.
func (rs Reporters) EpochDone(s EpochStats) {
	for _, r := range rs {
		r.EpochDone(s)
	}
}
