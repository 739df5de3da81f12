// Copyright 2015 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package fake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maruel/doorcount/internal/frame"
)

func TestRead_noCrossingsIsNoisyAmbient(t *testing.T) {
	s := New(21, 0, 0)
	f, err := s.Read()
	require.NoError(t, err)
	for r := 0; r < frame.Height; r++ {
		for c := 0; c < frame.Width; c++ {
			assert.InDelta(t, 21.0, f[r][c], 1e-9)
		}
	}
}

func TestRead_isDeterministicForASeededSource(t *testing.T) {
	s1 := New(21, 0.5, 0)
	s2 := New(21, 0.5, 0)
	f1, err := s1.Read()
	require.NoError(t, err)
	f2, err := s2.Read()
	require.NoError(t, err)
	assert.Equal(t, f1, f2, "same seed must produce the same noise sequence")
}

func TestAddCrossing_raisesTemperatureNearCenter(t *testing.T) {
	s := New(21, 0, 0)
	s.AddCrossing(4, 4, 0, 5, 1, 3)
	f, err := s.Read()
	require.NoError(t, err)
	assert.Greater(t, f[4][4], 21.0)
	assert.InDelta(t, 21.0, f[0][0], 0.01, "far corner unaffected by a localized crossing")
}

func TestAddCrossing_expiresAfterFramesLeft(t *testing.T) {
	s := New(21, 0, 0)
	s.AddCrossing(4, 4, 0, 5, 1, 1)
	f1, err := s.Read()
	require.NoError(t, err)
	assert.Greater(t, f1[4][4], 21.0, "still live on the first read")

	f2, err := s.Read()
	require.NoError(t, err)
	assert.InDelta(t, 21.0, f2[4][4], 1e-9, "expired: back to plain ambient")
}

func TestAddCrossing_movesAcrossColumns(t *testing.T) {
	s := New(21, 0, 0)
	s.AddCrossing(4, 0, 1, 5, 0.5, 5)
	f1, err := s.Read()
	require.NoError(t, err)
	peakCol := func(f frame.Frame, row int) int {
		best, bestV := 0, f[row][0]
		for c := 1; c < frame.Width; c++ {
			if f[row][c] > bestV {
				best, bestV = c, f[row][c]
			}
		}
		return best
	}
	assert.Equal(t, 0, peakCol(f1, 4))

	f2, err := s.Read()
	require.NoError(t, err)
	assert.Equal(t, 1, peakCol(f2, 4))
}

func TestClose_isNoop(t *testing.T) {
	s := New(21, 0, 0)
	assert.NoError(t, s.Close())
}
