// Copyright 2016 Marc-Antoine Ruel. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"log"
	"os"

	"github.com/maruel/interrupt"
	fsnotify "gopkg.in/fsnotify.v1"
)

// watchConfig watches path for writes and calls onChange (expected to
// reload the config and recalibrate) whenever it changes, until
// interrupted. Unlike go-lepton's watchFile, which exits the process on
// a binary change so a supervisor restarts it, a config edit here is
// handled in-process: there is no new binary to re-exec to.
func watchConfig(path string, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(path); err != nil {
		// A config file created after startup (first run wrote defaults
		// elsewhere) is not fatal: just skip watching.
		log.Printf("doorcount: not watching %s: %s", path, err)
		<-interrupt.Channel
		return nil
	}
	for {
		select {
		case <-interrupt.Channel:
			return nil
		case err := <-watcher.Errors:
			return err
		case ev := <-watcher.Events:
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if _, err := os.Stat(path); err == nil {
					onChange()
				}
			}
		}
	}
}
