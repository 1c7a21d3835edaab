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

// Package console implements the interactive command harness that drives a
// queue.Queue through a memcheck.Tracker and verifies every result against an
// independent model of the queue.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/googlecloudplatform/strqueue/cfg"
	"github.com/googlecloudplatform/strqueue/clock"
	"github.com/googlecloudplatform/strqueue/internal/locker"
	"github.com/googlecloudplatform/strqueue/internal/logger"
	"github.com/googlecloudplatform/strqueue/internal/memcheck"
	"github.com/googlecloudplatform/strqueue/internal/queue"
	"github.com/googlecloudplatform/strqueue/metrics"
	"github.com/jacobsa/timeutil"
)

// Verbosity levels of console output.
const (
	levelAlways = iota
	levelError
	levelWarning
	levelResult
	levelQueue
	levelDebug
)

const (
	prompt         = "cmd> "
	maxSourceDepth = 8
)

// ErrSessionFailed is returned by Run when at least one error was reported.
var ErrSessionFailed = errors.New("session failed")

var errVerification = errors.New("verification failed")

type Options struct {
	Harness cfg.HarnessConfig

	// Out receives all console output. Defaults to os.Stdout.
	Out io.Writer

	// Prompt prints "cmd> " before reading each top level line.
	Prompt bool

	// Clock defaults to the wall clock.
	Clock   timeutil.Clock
	Metrics metrics.MetricHandle
}

// Console runs commands against a single queue. It is not safe for concurrent
// use; the queue itself is additionally guarded by mu so that debug builds can
// check its invariants whenever the lock changes hands.
type Console struct {
	cfg    cfg.HarnessConfig
	prompt bool

	clock   timeutil.Clock
	metrics metrics.MetricHandle
	log     *slog.Logger

	stdout  io.Writer
	out     io.Writer
	logFile *os.File

	seed    int64
	rng     *rand.Rand
	tracker *memcheck.Tracker

	mu locker.RWLocker

	// The queue under test, nil when none exists.
	//
	// GUARDED_BY(mu)
	q *queue.Queue

	// The number of elements the queue must hold.
	//
	// GUARDED_BY(mu)
	expected int

	commands map[string]*command
	options  []*option

	errCount  int64
	failCount int64
	depth     int
	quit      bool

	start    time.Time
	lastMark time.Time
}

// New returns a console with no queue. A zero seed is replaced by one derived
// from the clock.
func New(opts Options) (*Console, error) {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNoopMetrics()
	}

	seed := opts.Harness.Seed
	if seed == 0 {
		seed = opts.Clock.Now().UnixNano()
	}

	c := &Console{
		cfg:     opts.Harness,
		prompt:  opts.Prompt,
		clock:   opts.Clock,
		metrics: opts.Metrics,
		log:     logger.With("session", uuid.NewString()),
		stdout:  opts.Out,
		out:     opts.Out,
		seed:    seed,
		rng:     rand.New(rand.NewSource(seed)),
		tracker: memcheck.NewTracker(seed),
	}
	if err := c.tracker.SetFailPercent(int(opts.Harness.MallocFailPercent)); err != nil {
		return nil, fmt.Errorf("malloc-fail-percent: %w", err)
	}
	c.mu = locker.NewRW("queue", c.checkInvariants)
	c.registerCommands()
	c.registerOptions()
	c.start = c.clock.Now()
	c.lastMark = c.start
	return c, nil
}

func (c *Console) checkInvariants() {
	if err := c.q.CheckInvariants(); err != nil {
		panic(fmt.Sprintf("queue invariant violated: %v", err))
	}
}

// Run interprets commands read from in until it is exhausted, a quit command
// is seen, the error limit is reached or ctx is done. The queue is then freed
// and checked for leaks.
//
// The returned error wraps ErrSessionFailed when any error was reported, and
// ctx.Err() when the session was cancelled.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	c.log.Info("Console session started", "seed", c.seed)

	err := c.interpret(ctx, in)
	c.finish()
	c.closeLog()

	c.log.Info("Console session finished", "errors", c.errCount, "allocation_failures", c.failCount)
	if err != nil {
		return err
	}
	if c.errCount > 0 {
		return fmt.Errorf("%w: %d errors", ErrSessionFailed, c.errCount)
	}
	return nil
}

func (c *Console) interpret(ctx context.Context, in io.Reader) error {
	done := make(chan struct{})
	defer close(done)
	lines, readErr := readLines(in, done)

	for {
		interactive := c.prompt && c.depth == 0
		if interactive {
			fmt.Fprint(c.out, prompt)
		}

		var line string
		select {
		case <-ctx.Done():
			return ctx.Err()
		case l, ok := <-lines:
			if !ok {
				if err := <-readErr; err != nil {
					return fmt.Errorf("reading commands: %w", err)
				}
				return nil
			}
			line = l
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if c.cfg.Echo && !interactive {
			fmt.Fprintf(c.out, "%s%s\n", prompt, line)
		}
		c.execute(ctx, line)

		if c.quit || c.aborted() {
			return nil
		}
	}
}

// readLines scans in on its own goroutine so that waiting for input never
// delays cancellation. The goroutine exits once done is closed; a read still
// blocked at that point returns when in yields data or is closed. The error
// channel receives the scanner error before lines is closed.
func readLines(in io.Reader, done <-chan struct{}) (<-chan string, <-chan error) {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 64*1024), cfg.MaxStringLength+1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		readErr <- scanner.Err()
	}()
	return lines, readErr
}

func (c *Console) execute(ctx context.Context, line string) {
	args, err := tokenize(line)
	if err != nil {
		c.report(err)
		return
	}
	if len(args) == 0 || strings.HasPrefix(args[0], "#") {
		return
	}
	if err := c.dispatch(ctx, args); err != nil {
		c.report(err)
	}
}

// dispatch runs a single command under the configured time limit.
func (c *Console) dispatch(ctx context.Context, args []string) error {
	cmd, ok := c.commands[args[0]]
	if !ok {
		return fmt.Errorf("unknown command '%s'", args[0])
	}

	if c.cfg.TimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.TimeLimit)
		defer cancel()
	}

	c.log.Debug("Running command", "args", args)
	err := cmd.run(ctx, args[1:])
	if err == nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: time limit of %v exceeded: %w", cmd.name, c.cfg.TimeLimit, err)
	}
	return err
}

// finish frees the queue left by the session and checks that every block has
// been released.
func (c *Console) finish() {
	c.mu.Lock()
	if c.q != nil {
		c.printf(levelResult, "Freeing queue\n")
		c.q.Destroy()
		c.q = nil
		c.expected = 0
	}
	c.mu.Unlock()

	if err := c.tracker.CheckBalanced(); err != nil {
		c.report(fmt.Errorf("%w: %v", errVerification, err))
	}
}

func (c *Console) aborted() bool {
	return c.errCount >= c.cfg.ErrorLimit
}

// report prints err and counts it towards the error limit.
func (c *Console) report(err error) {
	c.errCount++
	c.log.Error("Command failed", "error", err.Error(), "count", c.errCount)
	c.printf(levelError, "ERROR: %v\n", err)
	if c.aborted() {
		c.printf(levelError, "Error limit exceeded. Stopping command execution\n")
	}
}

func (c *Console) warnf(format string, v ...any) {
	c.log.Warn(fmt.Sprintf(format, v...))
	c.printf(levelWarning, "WARNING: "+format+"\n", v...)
}

func (c *Console) printf(level int64, format string, v ...any) {
	if level > c.cfg.Verbosity {
		return
	}
	fmt.Fprintf(c.out, format, v...)
}

// observe records the metrics of a single queue operation.
func (c *Console) observe(ctx context.Context, op string, start time.Time, err error) {
	c.metrics.OpsCount(1, op)
	c.metrics.OpsLatency(ctx, c.clock.Now().Sub(start), op)
	if err != nil {
		c.metrics.OpsErrorCount(1, errorCategory(err), op)
	}
}

func errorCategory(err error) string {
	switch {
	case errors.Is(err, queue.ErrAllocationFailure):
		return metrics.ErrorCategoryALLOCATIONFAILURE
	case errors.Is(err, queue.ErrInvalidArgument):
		return metrics.ErrorCategoryINVALIDARGUMENT
	case errors.Is(err, errVerification):
		return metrics.ErrorCategoryVERIFICATIONFAILURE
	case errors.Is(err, context.DeadlineExceeded):
		return metrics.ErrorCategoryTIMEOUT
	default:
		return metrics.ErrorCategoryMISCERROR
	}
}

// allocationFailure accounts for a refused reservation. Failures are
// tolerated while injection is on and the fail limit is not exceeded.
func (c *Console) allocationFailure(op string, err error) error {
	if c.tracker.FailPercent() == 0 {
		return fmt.Errorf("%s: unexpected %w", op, err)
	}
	c.failCount++
	if c.failCount > c.cfg.FailLimit {
		return fmt.Errorf("%s: exceeded limit of %d allocation failures: %w", op, c.cfg.FailLimit, err)
	}
	c.warnf("%s: tolerated allocation failure %d of %d", op, c.failCount, c.cfg.FailLimit)
	return nil
}

// verify compares the queue and the tracker with the model. LOCKS_REQUIRED(mu)
func (c *Console) verify(op string) error {
	var errs []error
	if got := c.q.Size(); got != c.expected {
		errs = append(errs, fmt.Errorf("queue size is %d, expected %d", got, c.expected))
	}
	if err := c.q.CheckInvariants(); err != nil {
		errs = append(errs, err)
	}
	if err := c.tracker.TakeBadReleases(); err != nil {
		errs = append(errs, err)
	}

	wantHeaders := 0
	if c.q != nil {
		wantHeaders = 1
	}
	for _, want := range []struct {
		kind queue.BlockKind
		n    int
	}{
		{queue.HeaderBlock, wantHeaders},
		{queue.NodeBlock, c.expected},
		{queue.PayloadBlock, c.expected},
	} {
		if got := c.tracker.LiveBlocksOf(want.kind); got != want.n {
			errs = append(errs, fmt.Errorf("%d %s blocks allocated, expected %d", got, want.kind, want.n))
		}
	}

	if err := errors.Join(errs...); err != nil {
		c.metrics.OpsErrorCount(1, metrics.ErrorCategoryVERIFICATIONFAILURE, op)
		return fmt.Errorf("%s: %w: %v", op, errVerification, err)
	}
	return nil
}

// showQueue prints the first show-limit elements. LOCKS_REQUIRED(mu)
func (c *Console) showQueue(level int64) {
	if level > c.cfg.Verbosity {
		return
	}
	if c.q == nil {
		fmt.Fprintln(c.out, "q = NULL")
		return
	}
	items := c.q.Snapshot(int(c.cfg.ShowLimit))
	fmt.Fprint(c.out, "q = [")
	for i, item := range items {
		if i > 0 {
			fmt.Fprint(c.out, " ")
		}
		fmt.Fprint(c.out, item)
	}
	if c.q.Size() > len(items) {
		fmt.Fprint(c.out, " ...")
	}
	fmt.Fprintln(c.out, "]")
}

func (c *Console) closeLog() {
	if c.logFile == nil {
		return
	}
	if err := c.logFile.Close(); err != nil {
		c.log.Warn("Closing console log", "error", err.Error())
	}
	c.logFile = nil
	c.out = c.stdout
}
