// Copyright 2015 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// doorcount-query opens the AMG8833 over its I²C bus and prints a single
// frame, for wiring checks before running the full pipeline.
package main

import (
	"flag"
	"fmt"
	"os"

	"periph.io/x/periph/conn/i2c/i2creg"
	"periph.io/x/periph/host"

	"github.com/maruel/doorcount/sensor/amg8833"
)

func mainImpl() error {
	i2cName := flag.String("i2c", "", "I²C bus to use")
	i2cHz := flag.Int("hz", 0, "I²C bus speed")
	addr := flag.Uint("addr", 0, "I²C address override (default 0x68)")
	flag.Parse()
	if len(flag.Args()) != 0 {
		return fmt.Errorf("unexpected argument: %s", flag.Args())
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
	dev, err := amg8833.New(bus, uint16(*addr))
	if err != nil {
		return err
	}
	defer dev.Close()

	f, err := dev.Read()
	if err != nil {
		return err
	}
	for _, row := range f {
		for _, v := range row {
			fmt.Printf("%6.2f ", v)
		}
		fmt.Println()
	}
	return nil
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "\ndoorcount-query: %s.\n", err)
		os.Exit(1)
	}
}
