// Copyright 2015 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package persist saves and loads the background baseline to disk, per
// spec.md section 6: an 8x8 matrix of 64-bit floats, row-major,
// little-endian, no header. Staleness is a caller concern, checked
// against the file's modification time rather than anything embedded
// in the file itself.
package persist

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/maruel/doorcount/internal/frame"
)

// fileSize is the exact byte length of a valid background file: 64
// little-endian float64 cells, no framing.
const fileSize = frame.Cells * 8

// Save writes bg to path as 64 little-endian float64 cells in row-major
// order, with no header.
func Save(path string, bg frame.Background) error {
	var buf bytes.Buffer
	for r := 0; r < frame.Height; r++ {
		for c := 0; c < frame.Width; c++ {
			if err := binary.Write(&buf, binary.LittleEndian, bg[r][c]); err != nil {
				return err
			}
		}
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// Load reads a background file written by Save. If maxAge is positive
// and the file's modification time is older than maxAge, Load returns
// ErrStale: a background that predates a long power cycle is more
// likely to be wrong than useful, per spec.md section 6's
// background_max_age option.
func Load(path string, maxAge time.Duration) (frame.Background, error) {
	var bg frame.Background
	fi, err := os.Stat(path)
	if err != nil {
		return bg, err
	}
	if maxAge > 0 {
		if age := time.Since(fi.ModTime()); age > maxAge {
			return bg, &ErrStale{Path: path, Age: age, MaxAge: maxAge}
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return bg, err
	}
	if len(data) != fileSize {
		return bg, fmt.Errorf("persist: %s is %d bytes, expected %d", path, len(data), fileSize)
	}
	r := bytes.NewReader(data)
	for row := 0; row < frame.Height; row++ {
		for col := 0; col < frame.Width; col++ {
			if err := binary.Read(r, binary.LittleEndian, &bg[row][col]); err != nil {
				if err == io.EOF {
					err = io.ErrUnexpectedEOF
				}
				return frame.Background{}, fmt.Errorf("persist: %w", err)
			}
		}
	}
	return bg, nil
}

// ErrStale is returned by Load when the file is older than the
// requested maximum age.
type ErrStale struct {
	Path   string
	Age    time.Duration
	MaxAge time.Duration
}

func (e *ErrStale) Error() string {
	return fmt.Sprintf("persist: %s is %s old, exceeds max age %s", e.Path, e.Age, e.MaxAge)
}
