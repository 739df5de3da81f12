// Copyright 2015 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package metrics exposes the pipeline's counters to Prometheus. It has
// no equivalent in the lepton daemon, which shipped a handcrafted JSON
// status page; counting doorway traffic is worth scraping properly.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/maruel/doorcount/internal/occupancy"
	"github.com/maruel/doorcount/internal/track"
)

// Sink is an occupancy.Sink that mirrors every crossing into Prometheus
// counters and gauges. It never errors: Record is best-effort by design,
// matching the rest of the sinks in the pipeline.
type Sink struct {
	entrances     prometheus.Counter
	exits         prometheus.Counter
	occupancy     prometheus.Gauge
	rate          prometheus.Gauge
	framesTotal   prometheus.Counter
	tracksActive  prometheus.GaugeFunc
}

// New registers the doorcount metric family on reg and returns a Sink
// ready to be handed to occupancy.New. snapshotter is polled by the
// doorcount_tracks_active gauge; pass a pipeline's Snapshot method.
func New(reg prometheus.Registerer, snapshotter func() []track.Snapshot) *Sink {
	s := &Sink{
		entrances: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "doorcount_entrances_total",
			Help: "Cumulative count of confirmed entrance crossings.",
		}),
		exits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "doorcount_exits_total",
			Help: "Cumulative count of confirmed exit crossings.",
		}),
		occupancy: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "doorcount_occupancy",
			Help: "Current estimated occupancy, max(entrances-exits, 0).",
		}),
		rate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "doorcount_crossing_rate_per_minute",
			Help: "Rolling one-minute crossing rate, entrances and exits combined.",
		}),
		framesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "doorcount_frames_processed_total",
			Help: "Cumulative count of sensor frames passed through the pipeline.",
		}),
	}
	if snapshotter != nil {
		s.tracksActive = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "doorcount_tracks_active",
			Help: "Number of tracks currently live (provisional, confirmed or dying).",
		}, func() float64 { return float64(len(snapshotter())) })
	}
	reg.MustRegister(s.entrances, s.exits, s.occupancy, s.rate, s.framesTotal)
	if s.tracksActive != nil {
		reg.MustRegister(s.tracksActive)
	}
	return s
}

// Record implements occupancy.Sink.
func (s *Sink) Record(ev track.CrossingEvent, counts occupancy.Counts) {
	switch ev.Direction {
	case track.Entrance:
		s.entrances.Inc()
	case track.Exit:
		s.exits.Inc()
	}
	s.occupancy.Set(float64(counts.Occupancy))
	s.rate.Set(counts.RatePerMin)
}

// FrameProcessed increments the frames-processed counter. Called once
// per Pipeline.Step, regardless of whether it yielded a crossing event.
func (s *Sink) FrameProcessed() {
	s.framesTotal.Inc()
}
