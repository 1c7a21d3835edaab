// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package locker provides the RWLocker used to serialize access to a queue,
// with optional invariant checking and hold-time debugging.
package locker

import (
	"runtime"
	"sync"
	"time"

	"github.com/googlecloudplatform/strqueue/internal/logger"
)

var (
	gEnableInvariantsCheck bool
	gEnableDebugMessages   bool
	gHoldWarnThreshold     = 5 * time.Second
)

// EnableInvariantsCheck makes every RWLocker created afterwards run its check
// function whenever the lock changes hands.
func EnableInvariantsCheck() {
	gEnableInvariantsCheck = true
}

// EnableDebugMessages makes every RWLocker created afterwards log the holder's
// stack when a writer lock is held longer than threshold.
func EnableDebugMessages(threshold time.Duration) {
	gEnableDebugMessages = true
	if threshold > 0 {
		gHoldWarnThreshold = threshold
	}
}

type RWLocker interface {
	sync.Locker
	RLock()
	RUnlock()
}

// NewRW returns a RW locker with potential capability for debugging.
//
// Note: hold-time debugging is done only for the writer lock.
func NewRW(name string, check func()) RWLocker {
	var l RWLocker = &sync.RWMutex{}

	if gEnableInvariantsCheck {
		l = &rwChecker{
			locker: l,
			check:  check,
		}
	}

	if gEnableDebugMessages {
		l = &rwDebugger{
			locker:    l,
			name:      name,
			threshold: gHoldWarnThreshold,
		}
	}

	return l
}

type rwChecker struct {
	locker RWLocker
	check  func()
}

func (c *rwChecker) Lock() {
	c.locker.Lock()
	c.check()
}

func (c *rwChecker) Unlock() {
	c.check()
	c.locker.Unlock()
}

func (c *rwChecker) RLock() {
	c.locker.RLock()
	c.check()
}

func (c *rwChecker) RUnlock() {
	c.check()
	c.locker.RUnlock()
}

type rwDebugger struct {
	locker    RWLocker
	name      string
	threshold time.Duration
	holder    string
	timer     *time.Timer
}

func (d *rwDebugger) Lock() {
	d.locker.Lock()

	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false /* all */)
	holder := string(buf[:n])
	d.holder = holder

	d.timer = time.AfterFunc(d.threshold, func() {
		logger.Warnf("debug_mutex: lock %q held for more than %v by: %v", d.name, d.threshold, holder)
	})
}

func (d *rwDebugger) Unlock() {
	d.holder = ""
	d.timer.Stop()
	d.timer = nil

	d.locker.Unlock()
}

func (d *rwDebugger) RLock() {
	d.locker.RLock()
}

func (d *rwDebugger) RUnlock() {
	d.locker.RUnlock()
}
