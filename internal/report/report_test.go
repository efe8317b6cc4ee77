package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	err := Write(&buf, Result{
		Losses:         []float64{2.30405, 0.5, 0.25, 0.125},
		PrepareSeconds: 1.5,
		EpochSeconds:   12.25,
	})
	require.NoError(t, err)

	assert.Equal(t, "unit: 1 epoch\n"+
		"2.304050\n"+
		"0.500000\n"+
		"0.250000\n"+
		"0.125000\n"+
		"run time: 1.500000 12.250000\n", buf.String())
}

func TestWrite_CustomUnit(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Result{Unit: "100 batches"}))
	assert.Equal(t, "unit: 100 batches\nrun time: 0.000000 0.000000\n", buf.String())
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.txt")
	require.NoError(t, WriteFile(path, Result{Losses: []float64{1}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "unit: 1 epoch\n1.000000\nrun time: 0.000000 0.000000\n", string(data))

	err = WriteFile(filepath.Join(t.TempDir(), "missing", "result.txt"), Result{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}
