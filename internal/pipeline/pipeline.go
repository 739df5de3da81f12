// Copyright 2015 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package pipeline wires background, foreground, body and track into the
// single-threaded per-frame orchestrator described in spec.md section 5.
package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/maruel/doorcount/internal/background"
	"github.com/maruel/doorcount/internal/body"
	"github.com/maruel/doorcount/internal/config"
	"github.com/maruel/doorcount/internal/foreground"
	"github.com/maruel/doorcount/internal/frame"
	"github.com/maruel/doorcount/internal/occupancy"
	"github.com/maruel/doorcount/internal/track"
)

// FrameInvalidError wraps a frame rejected for containing a non-finite
// cell. Per spec.md section 7 this drops the frame; it is never fatal.
type FrameInvalidError struct {
	FrameIndex int
	Err        error
}

func (e *FrameInvalidError) Error() string {
	return fmt.Sprintf("pipeline: frame %d invalid: %v", e.FrameIndex, e.Err)
}

func (e *FrameInvalidError) Unwrap() error { return e.Err }

// Pipeline is the single-threaded orchestrator: one call to Step per
// sensor frame, in order, from one goroutine. It holds no internal
// synchronization; callers needing concurrent access go through
// occupancy.Counter, which does.
type Pipeline struct {
	cfg        config.Config
	bg         *background.Model
	fgParams   foreground.Params
	bodyParams body.Params
	tracker    *track.Tracker
	counter    *occupancy.Counter
	frameIndex int

	lastInvalidLogged bool
}

// New builds a Pipeline from cfg, recording crossing events into
// counter. If initial is non-nil, the background model is seeded from it
// (a persisted baseline) and calibration is skipped.
func New(cfg config.Config, counter *occupancy.Counter, initial *frame.Background) *Pipeline {
	bg := background.New(cfg.CalibrationFrames, cfg.AdaptiveAlpha)
	if initial != nil {
		bg.LoadInitial(*initial)
	}
	return &Pipeline{
		cfg: cfg,
		bg:  bg,
		fgParams: foreground.Params{
			ActivityThresholdC:        cfg.ActivityThresholdC,
			OtsuMaxForegroundFraction: cfg.OtsuMaxForegroundFraction,
			OtsuNoiseFloor:            cfg.OtsuNoiseFloor,
			TrackingTempThresholdC:    cfg.TrackingTempThresholdC,
			MinBodyCells:              cfg.MinBodyCells,
		},
		bodyParams: body.Params{
			MinBodyCells:      cfg.MinBodyCells,
			MaxBodyCells:      cfg.MaxBodyCells,
			SingleBodyCells:   cfg.SingleBodyCells,
			MinPeakSeparation: cfg.MinPeakSeparation,
		},
		tracker: track.New(cfg),
		counter: counter,
	}
}

// Ready reports whether the background model has finished calibrating.
func (p *Pipeline) Ready() bool {
	return p.bg.Ready()
}

// FrameIndex returns the count of frames passed to Step so far.
func (p *Pipeline) FrameIndex() int {
	return p.frameIndex
}

// Background returns the current baseline, for persistence. Only
// meaningful once Ready returns true.
func (p *Pipeline) Background() frame.Background {
	return p.bg.Current()
}

// Snapshot exposes the tracker's live tracks, for the debug server.
func (p *Pipeline) Snapshot() []track.Snapshot {
	return p.tracker.Snapshot()
}

// Step processes one frame: calibration while warming up, then the
// discriminate/extract/track/record cascade of spec.md section 5.
// Calibration never fails with CalibrationIncomplete: frames are simply
// held back (nil, nil) until the model is ready, per spec.md section 7.
func (p *Pipeline) Step(wallClock time.Time, f frame.Frame) ([]track.CrossingEvent, error) {
	p.frameIndex++
	if !f.Valid() {
		return nil, &FrameInvalidError{FrameIndex: p.frameIndex, Err: errFrameNotFinite}
	}

	if !p.bg.Ready() {
		if _, err := p.bg.FeedCalibration(f); err != nil {
			return nil, &FrameInvalidError{FrameIndex: p.frameIndex, Err: err}
		}
		return nil, nil
	}

	result := foreground.Discriminate(f, p.bg.Current(), p.fgParams)
	var dets []body.Detection
	if !result.Empty {
		dets = body.Extract(result.Mask, result.Delta, p.bodyParams)
	}
	p.bg.UpdateAdaptive(f, result.Mask)

	events := p.tracker.Update(p.frameIndex, wallClock, dets)
	for _, ev := range events {
		p.counter.Record(ev)
	}
	return events, nil
}

var errFrameNotFinite = errors.New("frame contains a non-finite cell")

// Stop flushes every live track as if it had died on the current frame,
// emitting any crossing event its trajectory still qualifies for. Used
// on graceful shutdown, per spec.md section 5's cooperative stop.
func (p *Pipeline) Stop(wallClock time.Time) []track.CrossingEvent {
	events := p.tracker.Flush(p.frameIndex, wallClock)
	for _, ev := range events {
		p.counter.Record(ev)
	}
	return events
}

// Recalibrate discards the current background baseline and restarts
// calibration from the next frame passed to Step. Frames submitted
// during the calibration window are held back exactly as they are
// during startup calibration: callers see no special state, Step simply
// returns no events until the new baseline is ready. Live tracks survive
// a recalibration; only the baseline resets.
func (p *Pipeline) Recalibrate() {
	p.bg.Reset()
}
