// Copyright 2015 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// doorcount-grab captures a single 8x8 frame and saves it as a linearly
// scaled grayscale PNG, the way lepton-grab dumps a still for inspection
// without the full pipeline running.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"periph.io/x/periph/conn/i2c/i2creg"
	"periph.io/x/periph/host"

	"github.com/maruel/doorcount/internal/frame"
	"github.com/maruel/doorcount/sensor/amg8833"
)

func mainImpl() error {
	i2cName := flag.String("i2c", "", "I²C bus to use")
	i2cHz := flag.Int("hz", 0, "I²C bus speed")
	scale := flag.Int("scale", 32, "pixel size, in output pixels, of each grid cell")
	flag.Parse()
	if flag.NArg() != 1 {
		return fmt.Errorf("supply path to PNG to save")
	}

	if _, err := host.Init(); err != nil {
		return err
	}
	bus, err := i2creg.Open(*i2cName)
	if err != nil {
		return err
	}
	defer bus.Close()
	if *i2cHz != 0 {
		if err := bus.SetSpeed(int64(*i2cHz)); err != nil {
			return err
		}
	}
	dev, err := amg8833.New(bus, 0)
	if err != nil {
		return fmt.Errorf("%s\nIf testing without hardware, use cmd/doorcount with sensor.transport: fake", err)
	}
	defer dev.Close()

	f, err := dev.Read()
	if err != nil {
		return err
	}

	out, err := os.Create(flag.Args()[0])
	if err != nil {
		return err
	}
	defer out.Close()
	return png.Encode(out, renderScaled(f, *scale))
}

// renderScaled linearly maps f's min..max Celsius range to 0..255 and
// blows each cell up to a scale x scale block so the PNG is viewable.
func renderScaled(f frame.Frame, scale int) image.Image {
	if scale < 1 {
		scale = 1
	}
	lo, hi := f[0][0], f[0][0]
	for _, row := range f {
		for _, v := range row {
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
	}
	span := hi - lo
	img := image.NewGray(image.Rect(0, 0, frame.Width*scale, frame.Height*scale))
	for r := 0; r < frame.Height; r++ {
		for c := 0; c < frame.Width; c++ {
			var level float64
			if span > 0 {
				level = (f[r][c] - lo) / span
			}
			gray := color.Gray{Y: uint8(level * 255)}
			for dy := 0; dy < scale; dy++ {
				for dx := 0; dx < scale; dx++ {
					img.SetGray(c*scale+dx, r*scale+dy, gray)
				}
			}
		}
	}
	return img
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "\ndoorcount-grab: %s.\n", err)
		os.Exit(1)
	}
}
