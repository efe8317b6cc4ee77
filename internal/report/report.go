// Package report writes the line-oriented results file of a training run:
//
//	unit: 1 epoch
//	2.304051
//	...one average loss per epoch...
//	run time: <prepare seconds> <seconds per epoch>
package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// DefaultUnit labels the per-epoch values.
const DefaultUnit = "1 epoch"

// Result is the summary of a run.
type Result struct {
	Unit           string    // Granularity of Losses; DefaultUnit when empty
	Losses         []float64 // Average loss per epoch
	PrepareSeconds float64   // Time spent before the first epoch
	EpochSeconds   float64   // Mean training time per epoch
}

// Write encodes r to w.
func Write(w io.Writer, r Result) error {
	unit := r.Unit
	if unit == "" {
		unit = DefaultUnit
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "unit: %s\n", unit)
	for _, loss := range r.Losses {
		fmt.Fprintf(bw, "%f\n", loss)
	}
	fmt.Fprintf(bw, "run time: %f %f\n", r.PrepareSeconds, r.EpochSeconds)
	return bw.Flush()
}

// WriteFile creates (or truncates) path and writes r to it.
func WriteFile(path string, r Result) (err error) {
	//nolint:gosec // G304: output path comes from the command line
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create results file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close results file: %w", cerr)
		}
	}()

	if err := Write(f, r); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	return nil
}
