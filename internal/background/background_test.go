// Copyright 2015 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package background

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maruel/doorcount/internal/frame"
)

func constFrame(v float64) frame.Frame {
	var f frame.Frame
	for r := range f {
		for c := range f[r] {
			f[r][c] = v
		}
	}
	return f
}

func TestFeedCalibration_averages(t *testing.T) {
	m := New(4, 0.1)
	assert.False(t, m.Ready())
	for i, v := range []float64{18, 20, 22, 20} {
		status, err := m.FeedCalibration(constFrame(v))
		require.NoError(t, err)
		if i < 3 {
			assert.Equal(t, More, status)
		} else {
			assert.Equal(t, Ready, status)
		}
	}
	assert.True(t, m.Ready())
	assert.InDelta(t, 20.0, m.Current()[0][0], 1e-9)
}

func TestFeedCalibration_rejectsInvalidFrame(t *testing.T) {
	m := New(2, 0.1)
	f := constFrame(20)
	f[3][3] = math.NaN()
	status, err := m.FeedCalibration(f)
	assert.ErrorIs(t, err, ErrFrameInvalid)
	assert.Equal(t, More, status)
	// The invalid frame must not have advanced the calibration counter.
	status, err = m.FeedCalibration(constFrame(20))
	require.NoError(t, err)
	assert.Equal(t, More, status)
}

func TestFeedCalibration_onceReadyIsNoop(t *testing.T) {
	m := New(1, 0.1)
	_, err := m.FeedCalibration(constFrame(20))
	require.NoError(t, err)
	status, err := m.FeedCalibration(constFrame(99))
	require.NoError(t, err)
	assert.Equal(t, Ready, status)
	assert.InDelta(t, 20.0, m.Current()[0][0], 1e-9)
}

func TestUpdateAdaptive_skipsForegroundCells(t *testing.T) {
	m := New(1, 0.5)
	_, err := m.FeedCalibration(constFrame(20))
	require.NoError(t, err)

	f := constFrame(20)
	f[0][0] = 30 // a person standing over this cell
	var fg frame.Mask
	fg[0][0] = true

	m.UpdateAdaptive(f, fg)
	assert.InDelta(t, 20.0, m.Current()[0][0], 1e-9, "foreground cell must not adapt")
	assert.InDelta(t, 20.0, m.Current()[1][1], 1e-9)
}

func TestUpdateAdaptive_driftsTowardSustainedShift(t *testing.T) {
	m := New(1, 0.5)
	_, err := m.FeedCalibration(constFrame(20))
	require.NoError(t, err)

	var noFg frame.Mask
	for i := 0; i < 5; i++ {
		m.UpdateAdaptive(constFrame(22), noFg)
	}
	assert.InDelta(t, 22.0, m.Current()[4][4], 0.1)
}

func TestUpdateAdaptive_noopBeforeReady(t *testing.T) {
	m := New(4, 0.5)
	var noFg frame.Mask
	m.UpdateAdaptive(constFrame(99), noFg)
	assert.False(t, m.Ready())
	assert.Equal(t, 0.0, m.Current()[0][0])
}

func TestReset(t *testing.T) {
	m := New(1, 0.5)
	_, err := m.FeedCalibration(constFrame(20))
	require.NoError(t, err)
	require.True(t, m.Ready())
	m.Reset()
	assert.False(t, m.Ready())
	status, err := m.FeedCalibration(constFrame(10))
	require.NoError(t, err)
	assert.Equal(t, Ready, status)
	assert.InDelta(t, 10.0, m.Current()[0][0], 1e-9)
}

func TestLoadInitial(t *testing.T) {
	m := New(10, 0.1)
	var bg frame.Background
	bg[5][5] = 42
	m.LoadInitial(bg)
	assert.True(t, m.Ready())
	assert.Equal(t, 42.0, m.Current()[5][5])
}
