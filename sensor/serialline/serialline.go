// Copyright 2015 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package serialline reads 8x8 thermal frames from a line-oriented
// serial transport: one line per frame, 64 comma-separated Celsius
// values in row-major order. This is the shape a cheap microcontroller
// bridging an AMG8833 over USB would emit.
package serialline

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.bug.st/serial"

	"github.com/maruel/doorcount/internal/frame"
)

// Source reads frames from a serial port, one CSV line at a time.
type Source struct {
	port    serial.Port
	scanner *bufio.Scanner
}

// Open opens portName at baud and returns a ready Source. baud defaults
// to 115200 if zero.
func Open(portName string, baud int) (*Source, error) {
	if baud == 0 {
		baud = 115200
	}
	mode := &serial.Mode{BaudRate: baud, DataBits: 8, Parity: serial.NoParity, StopBits: serial.OneStopBit}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("serialline: open %s: %w", portName, err)
	}
	return &Source{port: port, scanner: bufio.NewScanner(port)}, nil
}

// Read blocks until the next line arrives and parses it into a frame.
func (s *Source) Read() (frame.Frame, error) {
	var f frame.Frame
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return f, fmt.Errorf("serialline: read: %w", err)
		}
		return f, io.EOF
	}
	fields := strings.Split(strings.TrimSpace(s.scanner.Text()), ",")
	if len(fields) != frame.Cells {
		return f, fmt.Errorf("serialline: expected %d values, got %d", frame.Cells, len(fields))
	}
	for i, field := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return frame.Frame{}, fmt.Errorf("serialline: cell %d: %w", i, err)
		}
		f[i/frame.Width][i%frame.Width] = v
	}
	return f, nil
}

// Close closes the underlying serial port.
func (s *Source) Close() error {
	return s.port.Close()
}
