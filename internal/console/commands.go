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

package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"strconv"

	"github.com/googlecloudplatform/strqueue/internal/queue"
	"github.com/googlecloudplatform/strqueue/metrics"
)

const (
	// randomMarker asks ih and it for a random string.
	randomMarker = "RAND"

	minRandomLength = 5
	maxRandomLength = 10
)

type command struct {
	name  string
	usage string
	doc   string
	run   func(ctx context.Context, args []string) error
}

func (c *Console) registerCommands() {
	c.commands = make(map[string]*command)
	for _, cmd := range []*command{
		{name: "new", doc: "Create new queue", run: c.doNew},
		{name: "free", doc: "Delete queue", run: c.doFree},
		{name: "ih", usage: "str [n]", doc: "Insert string str at head of queue n times. Generate random string(s) if str equals RAND.", run: c.doInsertHead},
		{name: "it", usage: "str [n]", doc: "Insert string str at tail of queue n times. Generate random string(s) if str equals RAND.", run: c.doInsertTail},
		{name: "rh", usage: "[str]", doc: "Remove from head of queue. Optionally compare to expected value str", run: c.doRemoveHead},
		{name: "rhq", doc: "Remove from head of queue without reporting value", run: c.doRemoveHeadQuiet},
		{name: "reverse", doc: "Reverse queue", run: c.doReverse},
		{name: "size", usage: "[n]", doc: "Compute queue size n times", run: c.doSize},
		{name: "show", doc: "Show queue contents", run: c.doShow},
		{name: "option", usage: "[name val]", doc: "Display or set options", run: c.doOption},
		{name: "source", usage: "file", doc: "Read commands from source file", run: c.doSource},
		{name: "log", usage: "file", doc: "Copy output to file", run: c.doLog},
		{name: "time", usage: "cmd arg ...", doc: "Time command execution", run: c.doTime},
		{name: "help", doc: "Show documentation", run: c.doHelp},
		{name: "quit", doc: "Exit program", run: c.doQuit},
	} {
		c.commands[cmd.name] = cmd
	}
}

func (c *Console) doNew(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("new takes no arguments")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.q != nil {
		start := c.clock.Now()
		c.q.Destroy()
		c.q = nil
		c.expected = 0
		c.observe(ctx, metrics.QueueOpFree, start, nil)
		if err := c.verify(metrics.QueueOpFree); err != nil {
			return err
		}
	}

	start := c.clock.Now()
	q, err := queue.New(c.tracker)
	c.observe(ctx, metrics.QueueOpNew, start, err)
	if err != nil {
		if !errors.Is(err, queue.ErrAllocationFailure) {
			return err
		}
		if err := c.allocationFailure("new", err); err != nil {
			return err
		}
	}
	c.q = q
	if err := c.verify(metrics.QueueOpNew); err != nil {
		return err
	}
	c.showQueue(levelQueue)
	return nil
}

func (c *Console) doFree(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("free takes no arguments")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.q == nil {
		c.warnf("Calling free on null queue")
	}
	start := c.clock.Now()
	c.q.Destroy()
	c.observe(ctx, metrics.QueueOpFree, start, nil)
	c.q = nil
	c.expected = 0

	if err := c.verify(metrics.QueueOpFree); err != nil {
		return err
	}
	c.showQueue(levelQueue)
	return nil
}

func (c *Console) doInsertHead(ctx context.Context, args []string) error {
	return c.insert(ctx, args, "ih", metrics.QueueOpInsertHead, (*queue.Queue).InsertHead)
}

func (c *Console) doInsertTail(ctx context.Context, args []string) error {
	return c.insert(ctx, args, "it", metrics.QueueOpInsertTail, (*queue.Queue).InsertTail)
}

func (c *Console) insert(ctx context.Context, args []string, name, op string, insert func(*queue.Queue, string) error) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("%s needs 1 or 2 arguments", name)
	}
	n := 1
	if len(args) == 2 {
		var err error
		if n, err = parseCount(args[1]); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	absent := c.q == nil
	if absent {
		c.warnf("Calling %s on null queue", name)
	}
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s interrupted after %d of %d inserts: %w", name, i, n, err)
		}
		value := args[0]
		if value == randomMarker {
			value = c.randomString()
		}

		start := c.clock.Now()
		err := insert(c.q, value)
		c.observe(ctx, op, start, err)

		switch {
		case absent && err == nil:
			return fmt.Errorf("%s: %w: insert on null queue succeeded", name, errVerification)
		case absent:
			if !errors.Is(err, queue.ErrInvalidArgument) {
				return fmt.Errorf("%s: insert on null queue: %w", name, err)
			}
		case errors.Is(err, queue.ErrAllocationFailure):
			if err := c.allocationFailure(name, err); err != nil {
				return err
			}
		case err != nil:
			return fmt.Errorf("%s: %w", name, err)
		default:
			c.expected++
		}
	}

	if err := c.verify(op); err != nil {
		return err
	}
	c.showQueue(levelQueue)
	return nil
}

func (c *Console) doRemoveHead(ctx context.Context, args []string) error {
	if len(args) > 1 {
		return fmt.Errorf("rh takes at most 1 argument")
	}
	return c.removeHead(ctx, args, true)
}

func (c *Console) doRemoveHeadQuiet(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("rhq takes no arguments")
	}
	return c.removeHead(ctx, nil, false)
}

func (c *Console) removeHead(ctx context.Context, args []string, report bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Prefill so that a missing terminator or fill is detectable.
	buf := make([]byte, c.cfg.StringLength+1)
	for i := range buf {
		buf[i] = 'X'
	}

	start := c.clock.Now()
	err := c.q.RemoveHead(buf)
	c.observe(ctx, metrics.QueueOpRemoveHead, start, err)

	if c.q == nil || c.expected == 0 {
		if err == nil {
			return fmt.Errorf("rh: %w: removal from empty or null queue succeeded", errVerification)
		}
		if !errors.Is(err, queue.ErrInvalidArgument) {
			return fmt.Errorf("rh: %w", err)
		}
		c.warnf("Calling remove head on empty or null queue")
		return c.verify(metrics.QueueOpRemoveHead)
	}
	if err != nil {
		return fmt.Errorf("rh: %w", err)
	}
	c.expected--

	got := queue.BufferString(buf)
	if len(got) == len(buf) {
		return fmt.Errorf("rh: %w: removed value is not terminated", errVerification)
	}
	if slices.ContainsFunc(buf[len(got):], func(b byte) bool { return b != 0 }) {
		return fmt.Errorf("rh: %w: buffer not zero filled after %q", errVerification, got)
	}
	if len(args) == 1 {
		want := args[0]
		if int64(len(want)) > c.cfg.StringLength {
			want = want[:c.cfg.StringLength]
		}
		if got != want {
			return fmt.Errorf("rh: %w: removed value %q, expected %q", errVerification, got, want)
		}
	}
	if report {
		c.printf(levelResult, "Removed %s from queue\n", got)
	}

	if err := c.verify(metrics.QueueOpRemoveHead); err != nil {
		return err
	}
	c.showQueue(levelQueue)
	return nil
}

func (c *Console) doReverse(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("reverse takes no arguments")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.q == nil {
		c.warnf("Calling reverse on null queue")
	}
	var before []string
	checkOrder := int64(c.expected) <= c.cfg.ShowLimit
	if checkOrder {
		before = c.q.Snapshot(-1)
	}

	start := c.clock.Now()
	c.q.Reverse()
	c.observe(ctx, metrics.QueueOpReverse, start, nil)

	if checkOrder {
		after := c.q.Snapshot(-1)
		slices.Reverse(before)
		if !slices.Equal(before, after) {
			return fmt.Errorf("reverse: %w: got %q, expected %q", errVerification, after, before)
		}
	}
	if err := c.verify(metrics.QueueOpReverse); err != nil {
		return err
	}
	c.showQueue(levelQueue)
	return nil
}

func (c *Console) doSize(ctx context.Context, args []string) error {
	if len(args) > 1 {
		return fmt.Errorf("size takes at most 1 argument")
	}
	n := 1
	if len(args) == 1 {
		var err error
		if n, err = parseCount(args[0]); err != nil {
			return fmt.Errorf("size: %w", err)
		}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.q == nil {
		c.warnf("Calling size on null queue")
	}
	size := 0
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("size interrupted after %d of %d calls: %w", i, n, err)
		}
		start := c.clock.Now()
		size = c.q.Size()
		c.observe(ctx, metrics.QueueOpSize, start, nil)
		if size != c.expected {
			c.metrics.OpsErrorCount(1, metrics.ErrorCategoryVERIFICATIONFAILURE, metrics.QueueOpSize)
			return fmt.Errorf("size: %w: computed size %d, expected %d", errVerification, size, c.expected)
		}
	}
	c.printf(levelResult, "Queue size = %d\n", size)
	c.showQueue(levelQueue)
	return nil
}

func (c *Console) doShow(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("show takes no arguments")
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	c.showQueue(levelError)
	return nil
}

func (c *Console) doSource(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("source needs a file name")
	}
	if c.depth >= maxSourceDepth {
		return fmt.Errorf("source: nested more than %d levels", maxSourceDepth)
	}
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	defer f.Close()

	c.depth++
	defer func() { c.depth-- }()
	return c.interpret(ctx, f)
}

func (c *Console) doLog(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("log needs a file name")
	}
	f, err := os.Create(args[0])
	if err != nil {
		return fmt.Errorf("log: %w", err)
	}
	c.closeLog()
	c.logFile = f
	c.out = io.MultiWriter(c.stdout, f)
	return nil
}

func (c *Console) doTime(ctx context.Context, args []string) error {
	now := c.clock.Now()
	if len(args) == 0 {
		c.printf(levelAlways, "Elapsed time = %.3f, Delta time = %.3f\n",
			now.Sub(c.start).Seconds(), now.Sub(c.lastMark).Seconds())
		c.lastMark = now
		return nil
	}

	err := c.dispatch(ctx, args)
	c.printf(levelAlways, "Delta time = %.3f\n", c.clock.Now().Sub(now).Seconds())
	return err
}

func (c *Console) doHelp(ctx context.Context, args []string) error {
	names := make([]string, 0, len(c.commands))
	for name := range c.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	c.printf(levelAlways, "Commands:\n")
	for _, name := range names {
		cmd := c.commands[name]
		c.printf(levelAlways, "\t%-20s | %s\n", cmd.name+" "+cmd.usage, cmd.doc)
	}
	return c.doOption(ctx, nil)
}

func (c *Console) doQuit(ctx context.Context, args []string) error {
	c.quit = true
	return nil
}

func (c *Console) randomString() string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	n := minRandomLength + c.rng.Intn(maxRandomLength-minRandomLength+1)
	b := make([]byte, n)
	for i := range b {
		b[i] = letters[c.rng.Intn(len(letters))]
	}
	return string(b)
}

func parseCount(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid count %q", s)
	}
	return n, nil
}
