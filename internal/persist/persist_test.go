// Copyright 2015 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package persist

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maruel/doorcount/internal/frame"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	var bg frame.Background
	for r := range bg {
		for c := range bg[r] {
			bg[r][c] = float64(r*8+c) + 0.25
		}
	}
	path := filepath.Join(t.TempDir(), "bg.bin")
	require.NoError(t, Save(path, bg))

	got, err := Load(path, 0)
	require.NoError(t, err)
	assert.Equal(t, bg, got)
}

func TestSave_writesExactlyTheBareMatrixNoHeader(t *testing.T) {
	var bg frame.Background
	path := filepath.Join(t.TempDir(), "bg.bin")
	require.NoError(t, Save(path, bg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, data, frame.Cells*8, "spec.md section 6: 8x8 float64 matrix, no header")
}

func TestLoad_staleFileRejected(t *testing.T) {
	var bg frame.Background
	path := filepath.Join(t.TempDir(), "bg.bin")
	require.NoError(t, Save(path, bg))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	_, err := Load(path, time.Minute)
	require.Error(t, err)
	var stale *ErrStale
	assert.ErrorAs(t, err, &stale)
}

func TestLoad_zeroMaxAgeNeverStale(t *testing.T) {
	var bg frame.Background
	path := filepath.Join(t.TempDir(), "bg.bin")
	require.NoError(t, Save(path, bg))
	old := time.Now().Add(-24 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	_, err := Load(path, 0)
	assert.NoError(t, err, "maxAge of zero disables the staleness check entirely")
}

func TestLoad_freshFileWithinMaxAge(t *testing.T) {
	var bg frame.Background
	path := filepath.Join(t.TempDir(), "bg.bin")
	require.NoError(t, Save(path, bg))

	_, err := Load(path, time.Hour)
	assert.NoError(t, err)
}

func TestLoad_rejectsWrongSizedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.bin")
	require.NoError(t, os.WriteFile(path, []byte("not a background file at all"), 0o600))
	_, err := Load(path, 0)
	assert.Error(t, err)
}

func TestLoad_rejectsTruncatedFile(t *testing.T) {
	var bg frame.Background
	path := filepath.Join(t.TempDir(), "bg.bin")
	require.NoError(t, Save(path, bg))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	truncated := filepath.Join(t.TempDir(), "truncated.bin")
	require.NoError(t, os.WriteFile(truncated, data[:len(data)-100], 0o600))

	_, err = Load(truncated, 0)
	assert.Error(t, err)
}

func TestLoad_missingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.bin"), 0)
	assert.Error(t, err)
}
