// Copyright 2015 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package track implements the multi-object tracker of spec.md section
// 4.4: per-frame association of detections into tracks, and
// entrance/exit classification at track death.
package track

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/maruel/doorcount/internal/body"
	"github.com/maruel/doorcount/internal/config"
	"github.com/maruel/doorcount/internal/frame"
)

// State is a track's position in the provisional -> confirmed -> dying
// -> dead lifecycle of spec.md section 4.4.
type State int

// Valid values for State.
const (
	Provisional State = iota
	Confirmed
	Dying
	Dead
)

func (s State) String() string {
	switch s {
	case Provisional:
		return "provisional"
	case Confirmed:
		return "confirmed"
	case Dying:
		return "dying"
	case Dead:
		return "dead"
	default:
		return "unknown"
	}
}

// Direction is a crossing's reported direction.
type Direction int

// Valid values for Direction.
const (
	Entrance Direction = iota
	Exit
)

func (d Direction) String() string {
	if d == Exit {
		return "exit"
	}
	return "entrance"
}

// Sample is one point of a track's trajectory.
type Sample struct {
	FrameIndex int
	Centroid   frame.Pos
}

// Track is a persistent hypothesis about one person crossing the
// doorway.
type Track struct {
	ID            int
	State         State
	Trajectory    []Sample
	LastSeenFrame int
	LastMeanTemp  float64
	Misses        int
	Counted       bool
	everConfirmed bool
}

// LastCentroid returns the most recent trajectory sample's position.
func (t *Track) LastCentroid() frame.Pos {
	return t.Trajectory[len(t.Trajectory)-1].Centroid
}

// predict returns this frame's predicted position: last centroid plus
// the velocity estimated from the last two samples, zero velocity if
// only one sample exists. No Kalman filter: the sensor is too coarse to
// justify one (spec.md section 4.4).
func (t *Track) predict() frame.Pos {
	last := t.LastCentroid()
	if len(t.Trajectory) < 2 {
		return last
	}
	prev := t.Trajectory[len(t.Trajectory)-2].Centroid
	return frame.Pos{Row: last.Row + (last.Row - prev.Row), Col: last.Col + (last.Col - prev.Col)}
}

// CrossingEvent is emitted at most once per track, at death, when its
// trajectory qualifies per the direction classifier.
type CrossingEvent struct {
	EventID    uuid.UUID // correlation id for external sinks; the track id remains the in-process identity
	TrackID    int
	Direction  Direction
	WallClock  time.Time
	FrameIndex int
}

// Snapshot is an immutable view of one live track, for introspection
// (debug server, tests) without exposing the Tracker's internal slices.
type Snapshot struct {
	ID               int
	State            State
	TrajectoryPoints int
	LastSeenFrame    int
	LastCentroid     frame.Pos
	Misses           int
}

// Tracker owns every live Track and issues CrossingEvents at death.
type Tracker struct {
	cfg    config.Config
	tracks []*Track
	nextID int
}

// New returns a Tracker configured per cfg.
func New(cfg config.Config) *Tracker {
	return &Tracker{cfg: cfg}
}

// Snapshot returns the current set of live tracks, ordered by id.
func (tr *Tracker) Snapshot() []Snapshot {
	out := make([]Snapshot, 0, len(tr.tracks))
	for _, t := range tr.tracks {
		out = append(out, Snapshot{
			ID:               t.ID,
			State:            t.State,
			TrajectoryPoints: len(t.Trajectory),
			LastSeenFrame:    t.LastSeenFrame,
			LastCentroid:     t.LastCentroid(),
			Misses:           t.Misses,
		})
	}
	return out
}

// pairCost is one candidate (track, detection) match.
type pairCost struct {
	trackIdx, detIdx int
	cost             float64
}

// Update runs one frame of the per-frame update described in spec.md
// section 4.4: predict, match, extend/miss, birth, death & emission.
// Events are returned in ascending track id, fully resolved before the
// call returns, per the temporal ordering guarantee in section 4.4.
func (tr *Tracker) Update(frameIndex int, wallClock time.Time, dets []body.Detection) []CrossingEvent {
	matchedTrack := make([]bool, len(tr.tracks))
	matchedDet := make([]bool, len(dets))

	// Match: build every admissible pair, then resolve greedily smallest
	// cost first, ties broken by lower track id (tracks are append-ordered
	// by increasing id, so a stable sort on cost preserves that as the
	// tiebreaker).
	var pairs []pairCost
	for ti, t := range tr.tracks {
		if t.State == Dead {
			continue
		}
		pred := t.predict()
		for di, d := range dets {
			spatial := frame.Euclidean(pred, d.Centroid)
			if spatial > tr.cfg.SpatialDistanceThreshold {
				continue
			}
			tempDiff := t.LastMeanTemp - d.MeanTemp
			if tempDiff < 0 {
				tempDiff = -tempDiff
			}
			if tempDiff > tr.cfg.TemperatureDistanceThreshold {
				continue
			}
			cost := tr.cfg.WeightSpatial*spatial + tr.cfg.WeightTemperature*tempDiff
			pairs = append(pairs, pairCost{ti, di, cost})
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].cost < pairs[j].cost })
	for _, p := range pairs {
		if matchedTrack[p.trackIdx] || matchedDet[p.detIdx] {
			continue
		}
		matchedTrack[p.trackIdx] = true
		matchedDet[p.detIdx] = true
		tr.extend(tr.tracks[p.trackIdx], frameIndex, dets[p.detIdx])
	}

	// Miss: every unmatched live track.
	for ti, t := range tr.tracks {
		if t.State == Dead || matchedTrack[ti] {
			continue
		}
		tr.miss(t)
	}

	// Birth: every unmatched detection spawns a new provisional track.
	for di, d := range dets {
		if matchedDet[di] {
			continue
		}
		tr.nextID++
		nt := &Track{
			ID:            tr.nextID,
			State:         Provisional,
			Trajectory:    []Sample{{FrameIndex: frameIndex, Centroid: d.Centroid}},
			LastSeenFrame: frameIndex,
			LastMeanTemp:  d.MeanTemp,
		}
		tr.tracks = append(tr.tracks, nt)
	}

	return tr.reapDead(frameIndex, wallClock)
}

func (tr *Tracker) extend(t *Track, frameIndex int, d body.Detection) {
	t.Trajectory = append(t.Trajectory, Sample{FrameIndex: frameIndex, Centroid: d.Centroid})
	t.LastSeenFrame = frameIndex
	t.LastMeanTemp = d.MeanTemp
	t.Misses = 0
	if len(t.Trajectory) >= tr.cfg.MinConfirmSamples {
		t.everConfirmed = true
		t.State = Confirmed
	} else if t.State != Confirmed {
		t.State = Provisional
	} else {
		t.State = Confirmed
	}
}

func (tr *Tracker) miss(t *Track) {
	t.Misses++
	if tr.atFarEdge(t) {
		// The last centroid sits at either end of the traversal axis, so
		// the body most likely left the grid: treat as death with
		// classification attempted rather than waiting out the full miss
		// budget (spec.md section 9, open question resolved this way).
		t.State = Dead
		return
	}
	if t.Misses > tr.cfg.MaxMisses {
		t.State = Dead
		return
	}
	t.State = Dying
}

// atFarEdge reports whether the track's last centroid sits on the
// outermost half-cell of the traversal axis, i.e. it plausibly left the
// grid rather than merely faded out mid-frame.
func (tr *Tracker) atFarEdge(t *Track) bool {
	col := t.LastCentroid().Col
	return col <= 0.5 || col >= float64(frame.Width-1)-0.5
}

// reapDead classifies and removes every track that died this frame,
// emitting at most one CrossingEvent per track, in ascending track id.
func (tr *Tracker) reapDead(frameIndex int, wallClock time.Time) []CrossingEvent {
	var events []CrossingEvent
	alive := tr.tracks[:0]
	var dead []*Track
	for _, t := range tr.tracks {
		if t.State == Dead {
			dead = append(dead, t)
			continue
		}
		alive = append(alive, t)
	}
	tr.tracks = alive
	sort.Slice(dead, func(i, j int) bool { return dead[i].ID < dead[j].ID })
	for _, t := range dead {
		dir, ok := tr.classify(t)
		if ok && !t.Counted {
			t.Counted = true
			events = append(events, CrossingEvent{
				EventID:    uuid.New(),
				TrackID:    t.ID,
				Direction:  dir,
				WallClock:  wallClock,
				FrameIndex: frameIndex,
			})
		}
	}
	return events
}

// classify implements the direction classifier of spec.md section 4.4.
func (tr *Tracker) classify(t *Track) (Direction, bool) {
	if !t.everConfirmed {
		return 0, false
	}
	first := t.Trajectory[0].Centroid.Col
	last := t.Trajectory[len(t.Trajectory)-1].Centroid.Col

	minCol, maxCol := first, first
	for _, s := range t.Trajectory {
		if s.Centroid.Col < minCol {
			minCol = s.Centroid.Col
		}
		if s.Centroid.Col > maxCol {
			maxCol = s.Centroid.Col
		}
	}
	if maxCol-minCol < float64(tr.cfg.MinCrossingSpan) {
		return 0, false
	}
	half := float64(frame.Width) / 2
	firstSide := first < half
	lastSide := last < half
	if firstSide == lastSide {
		return 0, false
	}
	movedPositive := last > first
	entranceIsPositive := tr.cfg.EntrancePolarity == config.PolarityPlusAxis
	if movedPositive == entranceIsPositive {
		return Entrance, true
	}
	return Exit, true
}

// Flush forces every live track to die as if this were its last frame,
// running the direction classifier once per track, per the cooperative
// stop() contract in spec.md section 5.
func (tr *Tracker) Flush(frameIndex int, wallClock time.Time) []CrossingEvent {
	for _, t := range tr.tracks {
		t.State = Dead
	}
	return tr.reapDead(frameIndex, wallClock)
}
