// Copyright 2015 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package amg8833 drives a Panasonic Grid-EYE AMG8833 8x8 far-infrared
// thermopile array over I2C, the doorway sensor spec.md section 3
// describes in the abstract. Register access follows the same
// write-address-then-burst-read shape as lepton's I2C CCI, but AMG8833's
// register map is its own and far simpler: no command/status handshake,
// just a flat register file.
package amg8833

import (
	"fmt"
	"time"

	"periph.io/x/periph/conn/i2c"

	"github.com/maruel/doorcount/internal/frame"
)

// DefaultAddr is the AMG8833's I2C address with the AD_SELECT pin tied
// low. Tying it high moves the device to 0x69.
const DefaultAddr uint16 = 0x68

// Registers, per the Grid-EYE datasheet.
const (
	regPowerControl uint8 = 0x00
	regReset        uint8 = 0x01
	regFrameRate    uint8 = 0x02
	regTemperature  uint8 = 0x80 // first of 64 little-endian 16-bit pixel words
)

const (
	powerNormalMode    = 0x00
	resetInitial       = 0x3f
	frameRate10fps     = 0x00
	pixelFullScale     = 0x0800 // 12-bit two's complement magnitude boundary
	pixelLSBCelsius    = 0.25
	pixelBytes         = frame.Cells * 2
)

// Dev is a handle to an AMG8833 on the given I2C bus.
type Dev struct {
	dev i2c.Dev
}

// New opens a handle to an AMG8833 at addr (DefaultAddr if zero) and
// resets it into normal 10fps operation.
func New(bus i2c.Bus, addr uint16) (*Dev, error) {
	if addr == 0 {
		addr = DefaultAddr
	}
	d := &Dev{dev: i2c.Dev{Bus: bus, Addr: addr}}
	if err := d.writeRegister(regPowerControl, powerNormalMode); err != nil {
		return nil, fmt.Errorf("amg8833: power on: %w", err)
	}
	if err := d.writeRegister(regReset, resetInitial); err != nil {
		return nil, fmt.Errorf("amg8833: initial reset: %w", err)
	}
	time.Sleep(50 * time.Millisecond) // datasheet: allow 50ms after reset before use
	if err := d.writeRegister(regFrameRate, frameRate10fps); err != nil {
		return nil, fmt.Errorf("amg8833: set frame rate: %w", err)
	}
	return d, nil
}

func (d *Dev) writeRegister(reg, value uint8) error {
	_, err := d.dev.Write([]byte{reg, value})
	return err
}

// Read returns the current 8x8 temperature frame, in Celsius.
func (d *Dev) Read() (frame.Frame, error) {
	var f frame.Frame
	buf := make([]byte, pixelBytes)
	if err := d.dev.Tx([]byte{regTemperature}, buf); err != nil {
		return f, fmt.Errorf("amg8833: read pixels: %w", err)
	}
	for i := 0; i < frame.Cells; i++ {
		raw := int32(uint16(buf[2*i])|uint16(buf[2*i+1])<<8) & 0x0fff
		// 12-bit two's complement: sign-extend from bit 11.
		if raw&pixelFullScale != 0 {
			raw -= pixelFullScale << 1
		}
		row, col := i/frame.Width, i%frame.Width
		f[row][col] = float64(raw) * pixelLSBCelsius
	}
	return f, nil
}

// Close releases no resources of its own; the I2C bus outlives the
// device and is closed by whoever opened it.
func (d *Dev) Close() error {
	return nil
}
