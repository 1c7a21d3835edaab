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
	"fmt"
	"strconv"

	"github.com/googlecloudplatform/strqueue/cfg"
)

type option struct {
	name string
	doc  string
	get  func() int64
	set  func(int64) error
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func inRange(name string, v, lo, hi int64) error {
	if v < lo || v > hi {
		return fmt.Errorf("option %s should be between %d and %d, got %d", name, lo, hi, v)
	}
	return nil
}

func (c *Console) registerOptions() {
	c.options = []*option{
		{
			name: "echo",
			doc:  "Do/don't echo commands",
			get:  func() int64 { return boolToInt(c.cfg.Echo) },
			set: func(v int64) error {
				if err := inRange("echo", v, 0, 1); err != nil {
					return err
				}
				c.cfg.Echo = v == 1
				return nil
			},
		},
		{
			name: "error",
			doc:  "Number of errors until exit",
			get:  func() int64 { return c.cfg.ErrorLimit },
			set: func(v int64) error {
				if err := inRange("error", v, 1, 1<<31); err != nil {
					return err
				}
				c.cfg.ErrorLimit = v
				return nil
			},
		},
		{
			name: "fail",
			doc:  "Number of times allow queue operations to return false",
			get:  func() int64 { return c.cfg.FailLimit },
			set: func(v int64) error {
				if err := inRange("fail", v, 0, 1<<31); err != nil {
					return err
				}
				c.cfg.FailLimit = v
				return nil
			},
		},
		{
			name: "length",
			doc:  "Maximum length of displayed string",
			get:  func() int64 { return c.cfg.StringLength },
			set: func(v int64) error {
				if err := inRange("length", v, 1, cfg.MaxStringLength); err != nil {
					return err
				}
				c.cfg.StringLength = v
				return nil
			},
		},
		{
			name: "malloc",
			doc:  "Malloc failure probability percent",
			get:  func() int64 { return int64(c.tracker.FailPercent()) },
			set: func(v int64) error {
				if err := inRange("malloc", v, 0, 100); err != nil {
					return err
				}
				c.cfg.MallocFailPercent = v
				return c.tracker.SetFailPercent(int(v))
			},
		},
		{
			name: "verbose",
			doc:  "Verbosity level",
			get:  func() int64 { return c.cfg.Verbosity },
			set: func(v int64) error {
				if err := inRange("verbose", v, 0, cfg.MaxVerbosity); err != nil {
					return err
				}
				c.cfg.Verbosity = v
				return nil
			},
		},
	}
}

func (c *Console) doOption(ctx context.Context, args []string) error {
	switch len(args) {
	case 0:
		c.printf(levelAlways, "Options:\n")
		for _, o := range c.options {
			c.printf(levelAlways, "\t%-10s\t%d\t%s\n", o.name, o.get(), o.doc)
		}
		return nil
	case 2:
		for _, o := range c.options {
			if o.name != args[0] {
				continue
			}
			v, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("option %s: invalid value %q", o.name, args[1])
			}
			return o.set(v)
		}
		return fmt.Errorf("unknown option '%s'", args[0])
	default:
		return fmt.Errorf("option takes no arguments or a name and a value")
	}
}
