// Copyright 2015 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package background implements the two-phase background model of
// spec.md section 4.1: a calibration average over the first N frames,
// then a per-cell exponentially weighted moving average that only
// adapts into cells classified as non-foreground.
package background

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/maruel/doorcount/internal/frame"
)

// Status is returned by FeedCalibration.
type Status int

// Valid values for Status.
const (
	More Status = iota
	Ready
)

func (s Status) String() string {
	if s == Ready {
		return "ready"
	}
	return "more"
}

// ErrFrameInvalid is returned when a frame fed to the model contains a
// non-finite cell. Per spec.md section 7, the frame is discarded and the
// calibration counter does not advance.
var ErrFrameInvalid = errors.New("background: frame has non-finite cell")

// Model is the pipeline's background estimator. It is owned exclusively
// by the pipeline's processing goroutine; it has no internal locking.
type Model struct {
	target  int
	alpha   float64
	samples []frame.Frame // accumulated during calibration
	bg      frame.Background
	ready   bool
}

// New returns a Model requiring target calibration frames and adapting
// with the given EMA weight once calibrated.
func New(target int, alpha float64) *Model {
	if target <= 0 {
		panic("background: target must be positive")
	}
	return &Model{target: target, alpha: alpha, samples: make([]frame.Frame, 0, target)}
}

// Reset discards any calibration progress and the current background,
// starting calibration over. Used to implement the host's recalibrate
// control signal (spec.md section 6).
func (m *Model) Reset() {
	m.samples = m.samples[:0]
	m.bg = frame.Background{}
	m.ready = false
}

// Ready reports whether calibration has completed.
func (m *Model) Ready() bool {
	return m.ready
}

// FeedCalibration consumes one frame of the calibration window. Once
// enough frames have been seen, the baseline is computed as the
// arithmetic mean of each cell across the window and Ready is returned.
// Calibration is atomic: Current() is meaningless until Ready is
// returned.
func (m *Model) FeedCalibration(f frame.Frame) (Status, error) {
	if m.ready {
		return Ready, nil
	}
	if !f.Valid() {
		return More, fmt.Errorf("%w", ErrFrameInvalid)
	}
	m.samples = append(m.samples, f)
	if len(m.samples) < m.target {
		return More, nil
	}
	m.finishCalibration()
	return Ready, nil
}

func (m *Model) finishCalibration() {
	col := make([]float64, len(m.samples))
	for r := 0; r < frame.Height; r++ {
		for c := 0; c < frame.Width; c++ {
			for i, s := range m.samples {
				col[i] = s[r][c]
			}
			m.bg[r][c] = stat.Mean(col, nil)
		}
	}
	m.samples = nil
	m.ready = true
}

// Current returns the current baseline. Only meaningful once Ready.
func (m *Model) Current() frame.Background {
	return m.bg
}

// UpdateAdaptive applies the EMA update of spec.md section 4.1,
// restricted to cells the foreground mask marks false. It is a no-op
// until calibration has completed.
func (m *Model) UpdateAdaptive(f frame.Frame, fg frame.Mask) {
	if !m.ready {
		return
	}
	var bgFlat, fFlat [frame.Cells]float64
	for r := 0; r < frame.Height; r++ {
		for c := 0; c < frame.Width; c++ {
			i := r*frame.Width + c
			bgFlat[i] = m.bg[r][c]
			fFlat[i] = f[r][c]
		}
	}
	blended := bgFlat
	floats.Scale(1-m.alpha, blended[:])
	floats.AddScaled(blended[:], m.alpha, fFlat[:])
	for r := 0; r < frame.Height; r++ {
		for c := 0; c < frame.Width; c++ {
			if fg[r][c] {
				continue // lingering foreground must not bake into the baseline
			}
			m.bg[r][c] = blended[r*frame.Width+c]
		}
	}
}

// LoadInitial seeds the background directly, skipping calibration. Used
// when a persisted background file (spec.md section 6) is loaded at
// startup.
func (m *Model) LoadInitial(bg frame.Background) {
	m.bg = bg
	m.ready = true
	m.samples = nil
}
