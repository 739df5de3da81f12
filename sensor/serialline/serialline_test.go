// Copyright 2015 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package serialline

import (
	"bufio"
	"bytes"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.bug.st/serial"

	"github.com/maruel/doorcount/internal/frame"
)

// mockPort is a minimal serial.Port fake, in the spirit of the
// MockSerialPort pattern: every control method is a no-op, only Read,
// Write and Close matter for this package.
type mockPort struct {
	r         *bytes.Reader
	closed    bool
	closeErr  error
}

func (m *mockPort) Break(time.Duration) error                            { return nil }
func (m *mockPort) Drain() error                                         { return nil }
func (m *mockPort) GetModemStatusBits() (*serial.ModemStatusBits, error) { return nil, nil }
func (m *mockPort) ResetInputBuffer() error                              { return nil }
func (m *mockPort) ResetOutputBuffer() error                             { return nil }
func (m *mockPort) SetDTR(dtr bool) error                                { return nil }
func (m *mockPort) SetMode(mode *serial.Mode) error                      { return nil }
func (m *mockPort) SetReadTimeout(t time.Duration) error                 { return nil }
func (m *mockPort) SetRTS(rts bool) error                                { return nil }

func (m *mockPort) Read(p []byte) (int, error) { return m.r.Read(p) }
func (m *mockPort) Write(p []byte) (int, error) { return len(p), nil }
func (m *mockPort) Close() error {
	m.closed = true
	return m.closeErr
}

func sourceFor(data string) (*Source, *mockPort) {
	p := &mockPort{r: bytes.NewReader([]byte(data))}
	return &Source{port: p, scanner: bufio.NewScanner(p)}, p
}

func csvLine(v float64) string {
	var buf bytes.Buffer
	for i := 0; i < frame.Cells; i++ {
		if i != 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
	}
	return buf.String()
}

func TestRead_parsesCSVLine(t *testing.T) {
	s, _ := sourceFor(csvLine(20.5) + "\n")
	f, err := s.Read()
	require.NoError(t, err)
	assert.InDelta(t, 20.5, f[0][0], 1e-9)
	assert.InDelta(t, 20.5, f[7][7], 1e-9)
}

func TestRead_multipleLinesInSequence(t *testing.T) {
	s, _ := sourceFor(csvLine(18) + "\n" + csvLine(22) + "\n")
	f1, err := s.Read()
	require.NoError(t, err)
	assert.InDelta(t, 18.0, f1[0][0], 1e-9)
	f2, err := s.Read()
	require.NoError(t, err)
	assert.InDelta(t, 22.0, f2[0][0], 1e-9)
}

func TestRead_wrongFieldCountIsError(t *testing.T) {
	s, _ := sourceFor("1,2,3\n")
	_, err := s.Read()
	assert.Error(t, err)
}

func TestRead_nonNumericFieldIsError(t *testing.T) {
	fields := strings.Split(csvLine(20), ",")
	fields[3] = "oops"
	s, _ := sourceFor(strings.Join(fields, ",") + "\n")
	_, err := s.Read()
	assert.Error(t, err)
}

func TestRead_eofReturnsError(t *testing.T) {
	s, _ := sourceFor("")
	_, err := s.Read()
	assert.Error(t, err)
}

func TestClose_closesUnderlyingPort(t *testing.T) {
	s, p := sourceFor("")
	require.NoError(t, s.Close())
	assert.True(t, p.closed)
}

func TestClose_propagatesError(t *testing.T) {
	s, p := sourceFor("")
	p.closeErr = errors.New("boom")
	assert.Error(t, s.Close())
}
