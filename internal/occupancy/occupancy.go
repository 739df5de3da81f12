// Copyright 2015 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package occupancy turns a stream of track.CrossingEvents into the
// running entrance/exit/occupancy counters of spec.md section 4.5.
package occupancy

import (
	"sync"
	"time"

	"github.com/maruel/doorcount/internal/track"
)

// Sink receives every CrossingEvent the tracker emits. Implementations
// must not block the caller for long; the pipeline calls Record
// synchronously from its single processing goroutine.
type Sink interface {
	Record(ev track.CrossingEvent, counts Counts)
}

// Counts is an immutable snapshot of the running totals.
type Counts struct {
	Entrances  int64
	Exits      int64
	Occupancy  int64
	RatePerMin float64
}

// rateWindow is how far back crossing-rate history is kept.
const rateWindow = time.Minute

// Counter accumulates entrances and exits and derives occupancy and a
// rolling one-minute crossing rate. It is not safe for concurrent use
// except where noted; the pipeline owns it from a single goroutine, and
// Counts takes a lock only because the debug server reads it
// from a different goroutine.
type Counter struct {
	mu         sync.Mutex
	entrances  int64
	exits      int64
	recent     []time.Time // crossings within the last rateWindow, oldest first
	sinks      []Sink
}

// New returns an empty Counter reporting to the given sinks, in order,
// on every Record call.
func New(sinks ...Sink) *Counter {
	return &Counter{sinks: sinks}
}

// AddSink appends a sink to be notified on every subsequent Record call.
// Used when a sink needs a reference to something built from the
// Counter itself (e.g. a pipeline holding it), which cannot exist
// before the Counter does.
func (c *Counter) AddSink(s Sink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sinks = append(c.sinks, s)
}

// Record applies one crossing event to the running totals and fans the
// event out to every configured sink.
func (c *Counter) Record(ev track.CrossingEvent) {
	c.mu.Lock()
	switch ev.Direction {
	case track.Entrance:
		c.entrances++
	case track.Exit:
		c.exits++
	}
	c.recent = append(c.recent, ev.WallClock)
	c.pruneLocked(ev.WallClock)
	counts := c.countsLocked()
	c.mu.Unlock()

	for _, s := range c.sinks {
		s.Record(ev, counts)
	}
}

// Reset clears every counter, used when the host issues an explicit
// reset signal (spec.md section 4.5).
func (c *Counter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entrances = 0
	c.exits = 0
	c.recent = nil
}

// Counts returns the current totals. Safe to call from any goroutine.
func (c *Counter) Counts() Counts {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pruneLocked(timeNow())
	return c.countsLocked()
}

func (c *Counter) countsLocked() Counts {
	occ := c.entrances - c.exits
	if occ < 0 {
		occ = 0
	}
	rate := float64(len(c.recent)) / rateWindow.Minutes()
	return Counts{Entrances: c.entrances, Exits: c.exits, Occupancy: occ, RatePerMin: rate}
}

// pruneLocked drops crossings older than rateWindow relative to now.
// Callers hold c.mu.
func (c *Counter) pruneLocked(now time.Time) {
	cut := now.Add(-rateWindow)
	i := 0
	for i < len(c.recent) && c.recent[i].Before(cut) {
		i++
	}
	if i > 0 {
		c.recent = append([]time.Time(nil), c.recent[i:]...)
	}
}

// timeNow is a var so tests can reach into pruning without a real clock
// dependency leaking into the Counter's public API.
var timeNow = time.Now
