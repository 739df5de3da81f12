// Copyright 2015 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"

	"github.com/maruel/interrupt"
	"golang.org/x/net/websocket"

	"github.com/maruel/doorcount/internal/occupancy"
	"github.com/maruel/doorcount/internal/track"
)

// eventRecord is what gets pushed over the websocket stream: a crossing
// event plus the counters it produced, self-contained so a browser tab
// never needs a separate query to render a running total.
type eventRecord struct {
	EventID    string  `json:"event_id"`
	TrackID    int     `json:"track_id"`
	Direction  string  `json:"direction"`
	FrameIndex int     `json:"frame_index"`
	WallClock  string  `json:"wall_clock"`
	Entrances  int64   `json:"entrances"`
	Exits      int64   `json:"exits"`
	Occupancy  int64   `json:"occupancy"`
	RatePerMin float64 `json:"rate_per_min"`
}

// WebServer streams CrossingEvents to any number of connected websocket
// clients and serves a tiny status page. It mirrors go-lepton's image
// streaming server: a sync.Cond-guarded ring buffer broadcast to every
// listener, swapped here from raw pixel frames to JSON event records
// because there is no scene to visualize, only crossings to report.
type WebServer struct {
	cond      sync.Cond
	events    [256]*eventRecord
	lastIndex int
	snapshot  func() []track.Snapshot
}

// StartWebServer starts listening on addr and returns the running
// server. snapshotter backs the /tracks endpoint.
func StartWebServer(addr string, snapshotter func() []track.Snapshot) *WebServer {
	s := &WebServer{
		cond:      *sync.NewCond(&sync.Mutex{}),
		lastIndex: -1,
		snapshot:  snapshotter,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.root)
	mux.HandleFunc("/tracks", s.tracks)
	mux.Handle("/stream", websocket.Handler(s.stream))
	log.Printf("doorcount: debug server listening on %s", addr)
	go http.ListenAndServe(addr, loggingHandler{mux})
	go func() {
		<-interrupt.Channel
		s.cond.Broadcast()
	}()
	return s
}

// Record implements occupancy.Sink: every crossing is appended to the
// ring buffer and every blocked websocket reader is woken.
func (s *WebServer) Record(ev track.CrossingEvent, counts occupancy.Counts) {
	rec := &eventRecord{
		EventID:    ev.EventID.String(),
		TrackID:    ev.TrackID,
		Direction:  ev.Direction.String(),
		FrameIndex: ev.FrameIndex,
		WallClock:  ev.WallClock.Format("2006-01-02T15:04:05.000Z07:00"),
		Entrances:  counts.Entrances,
		Exits:      counts.Exits,
		Occupancy:  counts.Occupancy,
		RatePerMin: counts.RatePerMin,
	}
	s.cond.L.Lock()
	s.lastIndex = (s.lastIndex + 1) % len(s.events)
	s.events[s.lastIndex] = rec
	s.cond.L.Unlock()
	s.cond.Broadcast()
}

func (s *WebServer) root(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, "<html><body><p>doorcount debug server.</p>"+
		"<p>GET /tracks for live tracks, connect /stream for a crossing event feed.</p></body></html>")
}

func (s *WebServer) tracks(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.snapshot == nil {
		json.NewEncoder(w).Encode([]track.Snapshot{})
		return
	}
	json.NewEncoder(w).Encode(s.snapshot())
}

// stream sends every new crossing event to w as a newline-delimited JSON
// websocket frame, starting from whatever event comes next.
func (s *WebServer) stream(w *websocket.Conn) {
	log.Printf("websocket %s connected", w.Config().Origin)
	defer w.Close()
	s.cond.L.Lock()
	lastIndex := s.lastIndex
	defer s.cond.L.Unlock()
	var err error
	for !interrupt.IsSet() && err == nil {
		s.cond.Wait()
		for !interrupt.IsSet() && err == nil && lastIndex != s.lastIndex {
			lastIndex = (lastIndex + 1) % len(s.events)
			rec := s.events[lastIndex]
			s.cond.L.Unlock()
			err = json.NewEncoder(w).Encode(rec)
			s.cond.L.Lock()
		}
	}
	if err != nil {
		log.Printf("websocket %s closed: %s", w.Config().Origin, err)
	}
}

// Private details, lifted from go-lepton's debug server: a ResponseWriter
// wrapper that logs method, status and size per request.

type loggingHandler struct {
	handler http.Handler
}

type loggingResponseWriter struct {
	http.ResponseWriter
	length int
	status int
}

func (l *loggingResponseWriter) Write(data []byte) (int, error) {
	size, err := l.ResponseWriter.Write(data)
	l.length += size
	return size, err
}

func (l *loggingResponseWriter) WriteHeader(status int) {
	l.ResponseWriter.WriteHeader(status)
	l.status = status
}

// Hijack is needed for websocket.
func (l *loggingResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h := l.ResponseWriter.(http.Hijacker)
	return h.Hijack()
}

func (l loggingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	lrw := &loggingResponseWriter{ResponseWriter: w, status: http.StatusOK}
	l.handler.ServeHTTP(lrw, r)
	log.Printf("%s - %3d %6db %4s %s", r.RemoteAddr, lrw.status, lrw.length, r.Method, r.RequestURI)
}
