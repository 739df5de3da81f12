// Copyright 2015 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package amg8833

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"periph.io/x/periph/conn/i2c/i2ctest"

	"github.com/maruel/doorcount/internal/frame"
)

func initOps() []i2ctest.IO {
	return []i2ctest.IO{
		{Addr: DefaultAddr, W: []byte{regPowerControl, powerNormalMode}},
		{Addr: DefaultAddr, W: []byte{regReset, resetInitial}},
		{Addr: DefaultAddr, W: []byte{regFrameRate, frameRate10fps}},
	}
}

func TestNew_sendsInitSequence(t *testing.T) {
	bus := &i2ctest.Playback{Ops: initOps()}
	d, err := New(bus, 0)
	require.NoError(t, err)
	assert.NotNil(t, d)
	assert.NoError(t, bus.Close(), "every queued op must have been consumed")
}

func TestNew_defaultsAddrWhenZero(t *testing.T) {
	bus := &i2ctest.Playback{Ops: initOps()}
	_, err := New(bus, 0)
	require.NoError(t, err)
}

// pixelBytesFor encodes a 12-bit two's complement raw reading as the
// little-endian word the Grid-EYE datasheet uses for each pixel.
func pixelBytesFor(raw int32) [2]byte {
	u := uint16(raw) & 0x0fff
	return [2]byte{byte(u), byte(u >> 8)}
}

func TestRead_decodesPositiveAndNegativeTemperatures(t *testing.T) {
	buf := make([]byte, pixelBytes)
	// Cell 0: +25.0C -> raw = 25.0 / 0.25 = 100.
	b := pixelBytesFor(100)
	buf[0], buf[1] = b[0], b[1]
	// Cell 1: -10.0C -> raw = -10.0 / 0.25 = -40, encoded as 12-bit two's complement.
	b = pixelBytesFor(-40)
	buf[2], buf[3] = b[0], b[1]

	ops := append(initOps(), i2ctest.IO{Addr: DefaultAddr, W: []byte{regTemperature}, R: buf})
	bus := &i2ctest.Playback{Ops: ops}
	d, err := New(bus, 0)
	require.NoError(t, err)

	f, err := d.Read()
	require.NoError(t, err)
	assert.InDelta(t, 25.0, f[0][0], 1e-9)
	assert.InDelta(t, -10.0, f[0][1], 1e-9)
	assert.NoError(t, bus.Close())
}

func TestRead_allZeroBufferIsAmbientFloor(t *testing.T) {
	buf := make([]byte, pixelBytes)
	ops := append(initOps(), i2ctest.IO{Addr: DefaultAddr, W: []byte{regTemperature}, R: buf})
	bus := &i2ctest.Playback{Ops: ops}
	d, err := New(bus, 0)
	require.NoError(t, err)

	f, err := d.Read()
	require.NoError(t, err)
	var zero frame.Frame
	assert.Equal(t, zero, f)
}

func TestClose_isNoop(t *testing.T) {
	bus := &i2ctest.Playback{Ops: initOps()}
	d, err := New(bus, 0)
	require.NoError(t, err)
	assert.NoError(t, d.Close())
}
