// Copyright 2015 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package foreground implements the three-gate cascade of spec.md
// section 4.2 that decides whether a frame contains a person and which
// cells belong to them.
package foreground

import (
	"sort"

	"github.com/maruel/doorcount/internal/frame"
)

// Params are the cascade's tunable thresholds, taken directly from
// config.Config so the package has no dependency on the config package.
type Params struct {
	ActivityThresholdC        float64
	OtsuMaxForegroundFraction float64
	OtsuNoiseFloor            float64
	TrackingTempThresholdC    float64
	MinBodyCells              int
}

// Result is the cascade's output for one frame.
type Result struct {
	Mask  frame.Mask
	Delta frame.Frame // kept for the body extractor's centroid weighting
	Empty bool
}

// Discriminate runs the three-gate cascade. Any gate failure yields an
// empty mask: the frame is treated as foreground-free, which is always
// a safe outcome (spec.md section 7).
func Discriminate(f frame.Frame, bg frame.Background, p Params) Result {
	delta := frame.Sub(f, bg)

	// Gate A: distribution test.
	if delta.Max() < p.ActivityThresholdC {
		return Result{Delta: delta, Empty: true}
	}

	// Gate B: Otsu-style split on the continuous delta values.
	threshold, variance, ok := otsuThreshold(delta)
	if !ok || variance <= p.OtsuNoiseFloor {
		return Result{Delta: delta, Empty: true}
	}
	var tentative frame.Mask
	warm := 0
	for r := 0; r < frame.Height; r++ {
		for c := 0; c < frame.Width; c++ {
			if delta[r][c] >= threshold {
				tentative[r][c] = true
				warm++
			}
		}
	}
	if float64(warm)/float64(frame.Cells) > p.OtsuMaxForegroundFraction {
		// Global ambient shift, not a person.
		return Result{Delta: delta, Empty: true}
	}

	// Gate C: absolute excess refinement.
	var refined frame.Mask
	count := 0
	for r := 0; r < frame.Height; r++ {
		for c := 0; c < frame.Width; c++ {
			if tentative[r][c] && delta[r][c] >= p.TrackingTempThresholdC {
				refined[r][c] = true
				count++
			}
		}
	}
	if count < p.MinBodyCells {
		return Result{Delta: delta, Empty: true}
	}
	return Result{Mask: refined, Delta: delta, Empty: false}
}

// otsuThreshold finds the delta value that maximizes the between-class
// variance of the 64-cell population, continuous (not histogram-binned):
// with only 64 samples per frame, binning throws away resolution that
// matters when two bodies are close in temperature. Candidate thresholds
// are the midpoints between consecutive sorted values, following the
// standard Otsu between-class-variance criterion.
//
// Returns the chosen threshold, the between-class variance achieved, and
// whether a non-degenerate split was found at all.
func otsuThreshold(delta frame.Frame) (threshold, variance float64, ok bool) {
	values := make([]float64, 0, frame.Cells)
	for r := 0; r < frame.Height; r++ {
		for c := 0; c < frame.Width; c++ {
			values = append(values, delta[r][c])
		}
	}
	sort.Float64s(values)

	total := float64(len(values))
	var sum float64
	for _, v := range values {
		sum += v
	}

	var sumB float64
	var wB float64
	maxVariance := -1.0
	bestThreshold := values[0]
	for i := 0; i < len(values)-1; i++ {
		wB++
		sumB += values[i]
		if values[i+1] == values[i] {
			// Keep scanning until the candidate threshold actually separates
			// two distinct values.
			continue
		}
		wF := total - wB
		if wF <= 0 {
			break
		}
		mB := sumB / wB
		mF := (sum - sumB) / wF
		v := wB * wF * (mB - mF) * (mB - mF)
		if v > maxVariance {
			maxVariance = v
			bestThreshold = (values[i] + values[i+1]) / 2
		}
	}
	if maxVariance < 0 {
		// Every cell has the same value: no split exists.
		return 0, 0, false
	}
	return bestThreshold, maxVariance / (total * total), true
}
