// Copyright 2015 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package config holds the tunables for the doorway counting pipeline
// and loads/normalizes them from a YAML file, the way cmd/lepton loads
// and rewrites its own lepton.json.
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Polarity selects which traversal direction is reported as an entrance.
type Polarity string

// Valid values for Polarity.
const (
	PolarityPlusAxis  Polarity = "+axis"
	PolarityMinusAxis Polarity = "-axis"
)

// Config holds every recognized configuration option from the pipeline
// specification, plus the knobs needed by the sensor transports and
// debug server. Zero value is invalid; use Default() for sane defaults.
type Config struct {
	FrameHz float64 `yaml:"frame_hz"`

	CalibrationFrames int     `yaml:"calibration_frames"`
	AdaptiveAlpha     float64 `yaml:"adaptive_alpha"`

	ActivityThresholdC         float64 `yaml:"activity_threshold_c"`
	OtsuMaxForegroundFraction  float64 `yaml:"otsu_max_foreground_fraction"`
	OtsuNoiseFloor             float64 `yaml:"otsu_noise_floor"`
	TrackingTempThresholdC     float64 `yaml:"tracking_temp_threshold_c"`

	MinBodyCells       int `yaml:"min_body_cells"`
	MaxBodyCells       int `yaml:"max_body_cells"`
	SingleBodyCells    int `yaml:"single_body_cells"`
	MinPeakSeparation  int `yaml:"min_peak_separation"`

	SpatialDistanceThreshold    float64 `yaml:"spatial_distance_threshold"`
	TemperatureDistanceThreshold float64 `yaml:"temperature_distance_threshold"`
	WeightSpatial               float64 `yaml:"w_s"`
	WeightTemperature           float64 `yaml:"w_t"`

	MinConfirmSamples int `yaml:"min_confirm_samples"`
	MaxMisses         int `yaml:"max_misses"`
	MinCrossingSpan   int `yaml:"min_crossing_span"`

	EntrancePolarity Polarity `yaml:"entrance_polarity"`

	// Domain-stack additions: sensor transport selection, persistence,
	// observability. Not part of the core pipeline but recognized by the
	// CLI wrapper.
	Sensor           SensorConfig `yaml:"sensor"`
	BackgroundFile   string       `yaml:"background_file"`
	BackgroundMaxAge string       `yaml:"background_max_age"`
	MetricsAddr      string       `yaml:"metrics_addr"`
	DebugAddr        string       `yaml:"debug_addr"`
}

// SensorConfig selects and configures the Frame Source transport.
type SensorConfig struct {
	// Transport is one of "fake", "amg8833", "serial".
	Transport string `yaml:"transport"`
	I2CBus    string `yaml:"i2c_bus"`
	SerialPort string `yaml:"serial_port"`
	BaudRate  int    `yaml:"baud_rate"`
}

// Default returns the recommended configuration, matching the defaults
// called out in spec.md section 6.
func Default() Config {
	return Config{
		FrameHz:                      10,
		CalibrationFrames:            250,
		AdaptiveAlpha:                0.01,
		ActivityThresholdC:           0.25,
		OtsuMaxForegroundFraction:    0.60,
		OtsuNoiseFloor:               1e-9,
		TrackingTempThresholdC:       0.25,
		MinBodyCells:                 2,
		MaxBodyCells:                 20,
		SingleBodyCells:              8,
		MinPeakSeparation:            2,
		SpatialDistanceThreshold:     3,
		TemperatureDistanceThreshold: 1.5,
		WeightSpatial:                1.0,
		WeightTemperature:            1.0,
		MinConfirmSamples:            3,
		MaxMisses:                    3,
		MinCrossingSpan:              4,
		EntrancePolarity:             PolarityPlusAxis,
		Sensor:                       SensorConfig{Transport: "fake"},
		MetricsAddr:                  ":9110",
		DebugAddr:                    ":8010",
	}
}

// InvalidError is returned by Validate for out-of-range configuration.
// Construction-time config errors are always fatal, per spec.md section 7.
type InvalidError struct {
	Field  string
	Reason string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// Validate checks the invariants spec.md section 7 calls ConfigInvalid.
func (c *Config) Validate() error {
	switch {
	case c.FrameHz <= 0:
		return &InvalidError{"frame_hz", "must be positive"}
	case c.CalibrationFrames <= 0:
		return &InvalidError{"calibration_frames", "must be positive"}
	case c.AdaptiveAlpha <= 0 || c.AdaptiveAlpha >= 1:
		return &InvalidError{"adaptive_alpha", "must be in (0, 1)"}
	case c.ActivityThresholdC < 0:
		return &InvalidError{"activity_threshold_c", "must be non-negative"}
	case c.OtsuMaxForegroundFraction <= 0 || c.OtsuMaxForegroundFraction > 1:
		return &InvalidError{"otsu_max_foreground_fraction", "must be in (0, 1]"}
	case c.TrackingTempThresholdC < 0:
		return &InvalidError{"tracking_temp_threshold_c", "must be non-negative"}
	case c.MinBodyCells <= 0:
		return &InvalidError{"min_body_cells", "must be positive"}
	case c.MaxBodyCells < c.MinBodyCells:
		return &InvalidError{"max_body_cells", "must be >= min_body_cells"}
	case c.SingleBodyCells < c.MinBodyCells:
		return &InvalidError{"single_body_cells", "must be >= min_body_cells"}
	case c.MinPeakSeparation <= 0:
		return &InvalidError{"min_peak_separation", "must be positive"}
	case c.SpatialDistanceThreshold <= 0:
		return &InvalidError{"spatial_distance_threshold", "must be positive"}
	case c.TemperatureDistanceThreshold <= 0:
		return &InvalidError{"temperature_distance_threshold", "must be positive"}
	case c.MinConfirmSamples <= 0:
		return &InvalidError{"min_confirm_samples", "must be positive"}
	case c.MaxMisses < 0:
		return &InvalidError{"max_misses", "must be non-negative"}
	case c.MinCrossingSpan <= 0 || c.MinCrossingSpan > frameAxisSpan:
		return &InvalidError{"min_crossing_span", "must be in (0, 8]"}
	case c.EntrancePolarity != PolarityPlusAxis && c.EntrancePolarity != PolarityMinusAxis:
		return &InvalidError{"entrance_polarity", "must be +axis or -axis"}
	}
	switch c.Sensor.Transport {
	case "", "fake", "amg8833", "serial":
	default:
		return &InvalidError{"sensor.transport", "unknown transport " + c.Sensor.Transport}
	}
	return nil
}

const frameAxisSpan = 8

// Load reads and validates a YAML config file, filling unset fields with
// defaults first. Mirrors the load-then-normalize pattern of
// cmd/lepton's lepton.json handling: a missing file is not an error,
// Load just returns the defaults.
func Load(path string) (Config, error) {
	c := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, c.Validate()
		}
		return c, err
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return c, c.Validate()
}

// Save writes c to path, the way cmd/lepton/seed.go normalizes and
// rewrites its config file. The parent directory must already exist;
// Save does not create it.
func Save(path string, c Config) error {
	data, err := yaml.Marshal(&c)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	buf.WriteString("# doorcount configuration. Generated/normalized by doorcount.\n")
	buf.Write(data)
	return os.WriteFile(path, buf.Bytes(), 0o600)
}
