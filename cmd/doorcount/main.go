// Copyright 2015 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// doorcount counts people crossing a doorway using an 8x8 far-infrared
// thermal array sensor, publishing entrance and exit events as Prometheus
// metrics and over a websocket debug stream as it runs.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/user"
	"path/filepath"
	"runtime/pprof"
	"time"

	"github.com/maruel/interrupt"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"periph.io/x/periph/conn/i2c/i2creg"
	"periph.io/x/periph/host"

	"github.com/maruel/doorcount/internal/config"
	"github.com/maruel/doorcount/internal/frame"
	"github.com/maruel/doorcount/internal/metrics"
	"github.com/maruel/doorcount/internal/occupancy"
	"github.com/maruel/doorcount/internal/persist"
	"github.com/maruel/doorcount/internal/pipeline"
	"github.com/maruel/doorcount/sensor"
	"github.com/maruel/doorcount/sensor/amg8833"
	"github.com/maruel/doorcount/sensor/fake"
	"github.com/maruel/doorcount/sensor/serialline"
)

func defaultConfigPath() string {
	usr, _ := user.Current()
	return filepath.Join(usr.HomeDir, ".config", "doorcount", "doorcount.yaml")
}

func openSensor(cfg config.SensorConfig) (sensor.Source, error) {
	switch cfg.Transport {
	case "", "fake":
		s := fake.New(21.0, 0.03, time.Duration(0))
		return s, nil
	case "amg8833":
		if _, err := host.Init(); err != nil {
			return nil, err
		}
		bus, err := i2creg.Open(cfg.I2CBus)
		if err != nil {
			return nil, err
		}
		dev, err := amg8833.New(bus, 0)
		if err != nil {
			bus.Close()
			return nil, err
		}
		return closingSource{Source: dev, bus: bus}, nil
	case "serial":
		return serialline.Open(cfg.SerialPort, cfg.BaudRate)
	default:
		return nil, fmt.Errorf("unknown sensor transport %q", cfg.Transport)
	}
}

// closingSource closes both the device and the bus it was opened on,
// since amg8833.Dev.Close is a no-op that leaves the bus to its owner.
type closingSource struct {
	sensor.Source
	bus interface{ Close() error }
}

func (c closingSource) Close() error {
	err := c.Source.Close()
	if berr := c.bus.Close(); err == nil {
		err = berr
	}
	return err
}

func mainImpl() error {
	configPath := flag.String("config", defaultConfigPath(), "path to doorcount.yaml")
	cpuprofile := flag.String("cpuprofile", "", "dump CPU profile in file")
	writeConfig := flag.Bool("writeConfig", false, "write the normalized config file and exit")
	flag.Parse()
	if len(flag.Args()) != 0 {
		return fmt.Errorf("unexpected argument: %s", flag.Args())
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *writeConfig {
		if err := os.MkdirAll(filepath.Dir(*configPath), 0o700); err != nil {
			return err
		}
		return config.Save(*configPath, cfg)
	}

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			return err
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	interrupt.HandleCtrlC()

	src, err := openSensor(cfg.Sensor)
	if err != nil {
		return err
	}
	defer src.Close()

	var initial *frame.Background
	if cfg.BackgroundFile != "" {
		maxAge, _ := time.ParseDuration(cfg.BackgroundMaxAge)
		if bg, err := persist.Load(cfg.BackgroundFile, maxAge); err != nil {
			log.Printf("doorcount: not loading %s: %s", cfg.BackgroundFile, err)
		} else {
			initial = &bg
		}
	}

	reg := prometheus.NewRegistry()
	counter := occupancy.New()
	p := pipeline.New(cfg, counter, initial)

	metricsSink := metrics.New(reg, p.Snapshot)
	webServer := StartWebServer(cfg.DebugAddr, p.Snapshot)
	counter.AddSink(metricsSink)
	counter.AddSink(webServer)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		log.Printf("doorcount: metrics listening on %s", cfg.MetricsAddr)
		log.Print(http.ListenAndServe(cfg.MetricsAddr, mux))
	}()

	go watchConfig(*configPath, func() {
		log.Printf("doorcount: %s changed, recalibrating", *configPath)
		p.Recalibrate()
	})

	for !interrupt.IsSet() {
		f, err := src.Read()
		if err != nil {
			log.Printf("doorcount: sensor stalled: %s", err)
			time.Sleep(time.Second)
			continue
		}
		if _, err := p.Step(time.Now(), f); err != nil {
			log.Printf("doorcount: %s", err)
		}
		metricsSink.FrameProcessed()
	}
	p.Stop(time.Now())

	if cfg.BackgroundFile != "" && p.Ready() {
		if err := persist.Save(cfg.BackgroundFile, p.Background()); err != nil {
			log.Printf("doorcount: failed to persist background: %s", err)
		}
	}
	return nil
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "\ndoorcount: %s.\n", err)
		os.Exit(1)
	}
}
