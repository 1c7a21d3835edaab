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

package memcheck_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/googlecloudplatform/strqueue/internal/memcheck"
	"github.com/googlecloudplatform/strqueue/internal/queue"
	. "github.com/jacobsa/oglematchers"
	. "github.com/jacobsa/ogletest"
	"github.com/jacobsa/syncutil"
)

func TestTracker(t *testing.T) { RunTests(t) }

////////////////////////////////////////////////////////////////////////
// Boilerplate
////////////////////////////////////////////////////////////////////////

type TrackerTest struct {
	tracker *memcheck.Tracker
}

func init() { RegisterTestSuite(&TrackerTest{}) }

func (t *TrackerTest) SetUp(ti *TestInfo) {
	syncutil.EnableInvariantChecking()
	t.tracker = memcheck.NewTracker(17)
}

func (t *TrackerTest) newQueue() *queue.Queue {
	q, err := queue.New(t.tracker)
	AssertEq(nil, err)
	return q
}

////////////////////////////////////////////////////////////////////////
// Tests
////////////////////////////////////////////////////////////////////////

func (t *TrackerTest) StartsEmpty() {
	ExpectEq(0, t.tracker.LiveBlocks())
	ExpectEq(0, t.tracker.LiveBytes())
	ExpectEq(nil, t.tracker.CheckBalanced())
}

func (t *TrackerTest) CountsReservationsPerKind() {
	AssertEq(nil, t.tracker.Reserve(queue.NodeBlock, 16))
	AssertEq(nil, t.tracker.Reserve(queue.PayloadBlock, 6))
	AssertEq(nil, t.tracker.Reserve(queue.PayloadBlock, 2))

	ExpectEq(3, t.tracker.LiveBlocks())
	ExpectEq(1, t.tracker.LiveBlocksOf(queue.NodeBlock))
	ExpectEq(2, t.tracker.LiveBlocksOf(queue.PayloadBlock))
	ExpectEq(24, t.tracker.LiveBytes())

	t.tracker.Release(queue.PayloadBlock, 6)

	ExpectEq(2, t.tracker.LiveBlocks())
	ExpectEq(18, t.tracker.LiveBytes())
	ExpectThat(t.tracker.CheckBalanced(), Error(HasSubstr("2 blocks (18 bytes) still allocated")))
}

func (t *TrackerTest) RejectsNonPositiveSizes() {
	ExpectNe(nil, t.tracker.Reserve(queue.PayloadBlock, 0))
	ExpectEq(0, t.tracker.LiveBlocks())
}

func (t *TrackerTest) DetectsReleaseWithoutReservation() {
	t.tracker.Release(queue.NodeBlock, 16)

	ExpectEq(0, t.tracker.LiveBlocks())
	ExpectThat(t.tracker.Check(), Error(HasSubstr("release of node block without a live reservation")))
	ExpectNe(nil, t.tracker.CheckBalanced())
}

func (t *TrackerTest) TakeBadReleasesForgetsThem() {
	t.tracker.Release(queue.PayloadBlock, 3)

	ExpectNe(nil, t.tracker.TakeBadReleases())
	ExpectEq(nil, t.tracker.TakeBadReleases())
	ExpectEq(nil, t.tracker.Check())
}

func (t *TrackerTest) DetectsOversizedRelease() {
	AssertEq(nil, t.tracker.Reserve(queue.PayloadBlock, 4))

	t.tracker.Release(queue.PayloadBlock, 40)

	ExpectEq(1, t.tracker.LiveBlocks())
	ExpectThat(t.tracker.Check(), Error(HasSubstr("exceeds 4 live payload bytes")))
}

func (t *TrackerTest) DetectsOversizedReleaseWhileOtherKindsAreLive() {
	AssertEq(nil, t.tracker.Reserve(queue.NodeBlock, 64))
	AssertEq(nil, t.tracker.Reserve(queue.PayloadBlock, 4))

	t.tracker.Release(queue.PayloadBlock, 10)

	ExpectEq(2, t.tracker.LiveBlocks())
	ExpectEq(68, t.tracker.LiveBytes())
	ExpectThat(t.tracker.Check(), Error(HasSubstr("exceeds 4 live payload bytes")))

	t.tracker.Release(queue.PayloadBlock, 4)
	t.tracker.Release(queue.NodeBlock, 64)
	ExpectEq(0, t.tracker.LiveBytes())
}

func (t *TrackerTest) FailPercentOutOfRange() {
	ExpectNe(nil, t.tracker.SetFailPercent(-1))
	ExpectNe(nil, t.tracker.SetFailPercent(101))
	ExpectEq(0, t.tracker.FailPercent())
}

func (t *TrackerTest) AlwaysFailsAtHundredPercent() {
	AssertEq(nil, t.tracker.SetFailPercent(100))

	for i := 0; i < 10; i++ {
		err := t.tracker.Reserve(queue.NodeBlock, 16)
		ExpectTrue(errors.Is(err, memcheck.ErrInjectedFailure))
		ExpectTrue(errors.Is(err, queue.ErrAllocationFailure))
	}

	ExpectEq(10, t.tracker.Stats().InjectedFailures)
	ExpectEq(0, t.tracker.Stats().Reserved)
	ExpectEq(0, t.tracker.LiveBlocks())
}

func (t *TrackerTest) SometimesFailsAtFiftyPercent() {
	AssertEq(nil, t.tracker.SetFailPercent(50))

	failures := 0
	for i := 0; i < 1000; i++ {
		if t.tracker.Reserve(queue.PayloadBlock, 1) != nil {
			failures++
		}
	}

	ExpectGt(failures, 350)
	ExpectLt(failures, 650)
	ExpectEq(1000-failures, t.tracker.LiveBlocks())
}

func (t *TrackerTest) QueueLifecycleIsBalanced() {
	for _, n := range []int{0, 1, 50} {
		q := t.newQueue()
		for i := 0; i < n; i++ {
			AssertEq(nil, q.InsertTail(fmt.Sprintf("item-%d", i)))
		}
		ExpectEq(2*n+1, t.tracker.LiveBlocks())

		q.Destroy()

		ExpectEq(nil, t.tracker.CheckBalanced(), "n=%d", n)
	}

	stats := t.tracker.Stats()
	ExpectEq(stats.Reserved, stats.Released)
}

func (t *TrackerTest) QueueAccountsExactPayloadSize() {
	q := t.newQueue()

	AssertEq(nil, q.InsertHead("hello"))

	ExpectEq(queue.HeaderBlockSize+queue.NodeBlockSize+6, t.tracker.LiveBytes())

	AssertEq(nil, q.RemoveHead(make([]byte, 8)))
	ExpectEq(queue.HeaderBlockSize, t.tracker.LiveBytes())
	q.Destroy()
}

func (t *TrackerTest) QueueSurvivesInjectedFailures() {
	q := t.newQueue()
	AssertEq(nil, t.tracker.SetFailPercent(30))

	inserted := 0
	for i := 0; i < 500; i++ {
		err := q.InsertTail("x")
		if err == nil {
			inserted++
			continue
		}
		ExpectTrue(errors.Is(err, queue.ErrAllocationFailure))
	}

	ExpectEq(inserted, q.Size())
	ExpectEq(nil, q.CheckInvariants())
	ExpectEq(2*inserted+1, t.tracker.LiveBlocks())

	q.Destroy()
	ExpectEq(nil, t.tracker.CheckBalanced())
}

func (t *TrackerTest) SharedAcrossQueues() {
	const workers = 8
	const perWorker = 200

	b := syncutil.NewBundle(context.Background())
	for i := 0; i < workers; i++ {
		b.Add(func(ctx context.Context) error {
			q, err := queue.New(t.tracker)
			if err != nil {
				return err
			}
			defer q.Destroy()
			for j := 0; j < perWorker; j++ {
				if err := q.InsertTail(fmt.Sprintf("w%d", j)); err != nil {
					return err
				}
			}
			for j := 0; j < perWorker; j++ {
				if err := q.RemoveHead(make([]byte, 8)); err != nil {
					return err
				}
			}
			return nil
		})
	}

	AssertEq(nil, b.Join())
	ExpectEq(nil, t.tracker.CheckBalanced())
	ExpectEq(workers*(2*perWorker+1), t.tracker.Stats().Reserved)
}
