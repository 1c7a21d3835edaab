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

// Package memcheck provides an instrumented queue.Allocator. It counts every
// reservation and release per block kind, detects releases that have no
// matching reservation, and can refuse a configurable share of reservations
// to exercise allocation failure paths.
package memcheck

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/googlecloudplatform/strqueue/internal/queue"
	"github.com/jacobsa/syncutil"
)

// ErrInjectedFailure is returned by Reserve when a reservation is refused on
// purpose.
var ErrInjectedFailure = fmt.Errorf("%w: injected by memcheck", queue.ErrAllocationFailure)

// Stats is a point in time view of a Tracker.
type Stats struct {
	Reserved         int64
	Released         int64
	InjectedFailures int64
	LiveBlocks       int
	LiveBytes        int64
}

// Tracker implements queue.Allocator. It is safe for concurrent use, so one
// tracker may account for several queues.
type Tracker struct {
	mu syncutil.InvariantMutex

	// GUARDED_BY(mu)
	rng *rand.Rand

	// GUARDED_BY(mu)
	failPercent int

	// The number of live blocks per kind.
	//
	// INVARIANT: For each v, v >= 0
	//
	// GUARDED_BY(mu)
	live map[queue.BlockKind]int

	// The total size of live blocks per kind.
	//
	// INVARIANT: For each v, v >= 0
	// INVARIANT: liveBytes is the sum of all v
	//
	// GUARDED_BY(mu)
	liveBytesOf map[queue.BlockKind]int64

	// GUARDED_BY(mu)
	liveBytes int64

	// INVARIANT: released <= reserved
	//
	// GUARDED_BY(mu)
	reserved, released, injected int64

	// GUARDED_BY(mu)
	badReleases []error
}

// NewTracker returns a tracker that never refuses a reservation until
// SetFailPercent is called. seed drives the failure injection.
func NewTracker(seed int64) *Tracker {
	t := &Tracker{
		rng:         rand.New(rand.NewSource(seed)),
		live:        make(map[queue.BlockKind]int),
		liveBytesOf: make(map[queue.BlockKind]int64),
	}
	t.mu = syncutil.NewInvariantMutex(t.checkInvariants)
	return t
}

func (t *Tracker) checkInvariants() {
	for kind, n := range t.live {
		if n < 0 {
			panic(fmt.Sprintf("negative live count %d for %s blocks", n, kind))
		}
	}
	var total int64
	for kind, n := range t.liveBytesOf {
		if n < 0 {
			panic(fmt.Sprintf("negative live byte count %d for %s blocks", n, kind))
		}
		total += n
	}
	if total != t.liveBytes {
		panic(fmt.Sprintf("live bytes %d do not match per kind total %d", t.liveBytes, total))
	}
	if t.released > t.reserved {
		panic(fmt.Sprintf("%d releases for %d reservations", t.released, t.reserved))
	}
}

// SetFailPercent sets the probability, in percent, that a reservation is
// refused.
func (t *Tracker) SetFailPercent(p int) error {
	if p < 0 || p > 100 {
		return fmt.Errorf("fail percent %d is outside [0, 100]", p)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failPercent = p
	return nil
}

// FailPercent returns the current failure probability in percent.
func (t *Tracker) FailPercent() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failPercent
}

// Reserve accounts for a new block of the given kind and size. It returns
// ErrInjectedFailure, leaving the accounting untouched, when failure injection
// refuses the reservation.
func (t *Tracker) Reserve(kind queue.BlockKind, size int) error {
	if size <= 0 {
		return fmt.Errorf("reserve %s block: non-positive size %d", kind, size)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failPercent > 0 && t.rng.Intn(100) < t.failPercent {
		t.injected++
		return ErrInjectedFailure
	}
	t.reserved++
	t.live[kind]++
	t.liveBytesOf[kind] += int64(size)
	t.liveBytes += int64(size)
	return nil
}

// Release accounts for a dropped block. A release that matches no live block
// of that kind, or that is larger than the live bytes of that kind, is
// recorded as a bad release and otherwise ignored.
func (t *Tracker) Release(kind queue.BlockKind, size int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.live[kind] == 0 {
		t.badReleases = append(t.badReleases, fmt.Errorf("release of %s block without a live reservation", kind))
		return
	}
	if int64(size) > t.liveBytesOf[kind] {
		t.badReleases = append(t.badReleases, fmt.Errorf("release of %d-byte %s block exceeds %d live %s bytes", size, kind, t.liveBytesOf[kind], kind))
		return
	}
	t.released++
	t.live[kind]--
	t.liveBytesOf[kind] -= int64(size)
	t.liveBytes -= int64(size)
}

// LiveBlocks returns the number of reserved blocks not yet released.
func (t *Tracker) LiveBlocks() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.liveBlocks()
}

// LOCKS_REQUIRED(t.mu)
func (t *Tracker) liveBlocks() int {
	total := 0
	for _, n := range t.live {
		total += n
	}
	return total
}

// LiveBlocksOf returns the number of live blocks of the given kind.
func (t *Tracker) LiveBlocksOf(kind queue.BlockKind) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.live[kind]
}

// LiveBytes returns the total size of live blocks.
func (t *Tracker) LiveBytes() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.liveBytes
}

// Stats returns a consistent snapshot of the tracker's counters.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Stats{
		Reserved:         t.reserved,
		Released:         t.released,
		InjectedFailures: t.injected,
		LiveBlocks:       t.liveBlocks(),
		LiveBytes:        t.liveBytes,
	}
}

// Check returns the releases that had no matching reservation, joined.
func (t *Tracker) Check() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return errors.Join(t.badReleases...)
}

// TakeBadReleases returns the bad releases recorded since the previous call
// and forgets them.
func (t *Tracker) TakeBadReleases() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	err := errors.Join(t.badReleases...)
	t.badReleases = nil
	return err
}

// CheckBalanced returns an error unless every reserved block has been
// released and no bad release was observed.
func (t *Tracker) CheckBalanced() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	var errs []error
	if n := t.liveBlocks(); n != 0 {
		errs = append(errs, fmt.Errorf("%d blocks (%d bytes) still allocated", n, t.liveBytes))
	}
	errs = append(errs, t.badReleases...)
	return errors.Join(errs...)
}
