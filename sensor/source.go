// Copyright 2015 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package sensor defines the Frame Source contract every doorway thermal
// transport implements, the way lepton.Lepton is the contract every
// lepton transport (SPI, I2C, fake) implements.
package sensor

import (
	"io"

	"github.com/maruel/doorcount/internal/frame"
)

// Source produces one 8x8 thermal frame at a time. Implementations
// return io.EOF from Read when the underlying transport is closed from
// under them, and any other error is treated by the caller as a
// transient SensorStalled condition per spec.md section 7.
type Source interface {
	io.Closer
	Read() (frame.Frame, error)
}
