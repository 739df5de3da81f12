// Copyright 2016 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

//go:build !linux

package main

import "github.com/maruel/interrupt"

// watchConfig blocks until interrupted on platforms without fsnotify
// support wired in; config changes require a restart there.
func watchConfig(path string, onChange func()) error {
	<-interrupt.Channel
	return nil
}
