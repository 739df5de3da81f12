// Copyright 2015 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package fake is a noise-based Frame Source for testing and demos
// without hardware, adapted from lepton's fakeLepton/noise generator
// down to an 8x8 grid, extended with the ability to inject a simulated
// body sweeping across the doorway so pipeline tests can exercise a full
// entrance or exit without real sensor data.
package fake

import (
	"math"
	"math/rand"
	"time"

	"github.com/maruel/doorcount/internal/frame"
)

// crossing is one simulated body moving at constant velocity.
type crossing struct {
	row, col   float64
	speedCol   float64 // cells per frame
	amplitude  float64 // peak delta above ambient, in Celsius
	sigma      float64
	framesLeft int
}

// Source renders synthetic 8x8 frames: a noisy ambient baseline plus
// zero or more injected crossings.
type Source struct {
	rnd       *rand.Rand
	ambient   float64
	noiseStd  float64
	period    time.Duration
	crossings []*crossing
}

// New returns a Source with the given ambient temperature and per-cell
// noise standard deviation, emitting a frame every period on Read. A
// period of zero disables the sleep, for deterministic tests.
func New(ambientC, noiseStd float64, period time.Duration) *Source {
	return &Source{rnd: rand.New(rand.NewSource(1)), ambient: ambientC, noiseStd: noiseStd, period: period}
}

// AddCrossing injects a simulated body entering at (row, col) and moving
// speedColsPerFrame columns every frame for the given number of frames,
// reaching ampC degrees above ambient at its centroid with a Gaussian
// falloff of the given sigma (in cells).
func (s *Source) AddCrossing(row, col, speedColsPerFrame, ampC, sigma float64, frames int) {
	s.crossings = append(s.crossings, &crossing{
		row: row, col: col, speedCol: speedColsPerFrame, amplitude: ampC, sigma: sigma, framesLeft: frames,
	})
}

// Read renders the next frame and advances every active crossing.
func (s *Source) Read() (frame.Frame, error) {
	if s.period > 0 {
		time.Sleep(s.period)
	}
	var f frame.Frame
	for r := 0; r < frame.Height; r++ {
		for c := 0; c < frame.Width; c++ {
			f[r][c] = s.ambient + s.rnd.NormFloat64()*s.noiseStd
		}
	}
	live := s.crossings[:0]
	for _, x := range s.crossings {
		for r := 0; r < frame.Height; r++ {
			for c := 0; c < frame.Width; c++ {
				dr := float64(r) - x.row
				dc := float64(c) - x.col
				d2 := dr*dr + dc*dc
				f[r][c] += x.amplitude * math.Exp(-d2/(2*x.sigma*x.sigma))
			}
		}
		x.col += x.speedCol
		x.framesLeft--
		if x.framesLeft > 0 {
			live = append(live, x)
		}
	}
	s.crossings = live
	return f, nil
}

// Close is a no-op: the fake source owns no underlying resource.
func (s *Source) Close() error {
	return nil
}
