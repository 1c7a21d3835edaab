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

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/googlecloudplatform/strqueue/cfg"
	"github.com/googlecloudplatform/strqueue/common"
	"github.com/googlecloudplatform/strqueue/internal/console"
	"github.com/googlecloudplatform/strqueue/internal/locker"
	"github.com/googlecloudplatform/strqueue/internal/logger"
	"github.com/googlecloudplatform/strqueue/metrics"
	"github.com/jacobsa/syncutil"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

const metricsShutdownTimeout = 5 * time.Second

// runSession sets up logging, debugging aids and metrics as configured, then
// runs a console session until its input is exhausted or a terminating
// signal arrives.
func runSession(ctx context.Context, c *cfg.Config) (err error) {
	logger.SetLogFormat(c.Logging.Format)
	if err = logger.InitLogFile(c.Logging); err != nil {
		return fmt.Errorf("init log file: %w", err)
	}
	defer logger.Close()

	logger.Infof("Start strqueue/%s for app %q", common.GetVersion(), c.AppName)
	logger.Debugf("strqueue config:\n%s", c)

	if c.Debug.ExitOnInvariantViolation {
		locker.EnableInvariantsCheck()
		syncutil.EnableInvariantChecking()
	}
	if c.Debug.LogMutex {
		locker.EnableDebugMessages(0)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, unix.SIGTERM)
	defer stop()

	metricHandle := metrics.NewNoopMetrics()
	if c.Metrics.PrometheusPort > 0 {
		shutdownFn := metrics.SetupOTelMetricExporters(ctx, c)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
			defer cancel()
			if err := shutdownFn(shutdownCtx); err != nil {
				logger.Errorf("Error while shutting down metrics exporters: %v", err)
			}
		}()
		if mh, err := metrics.NewOTelMetrics(ctx); err != nil {
			logger.Errorf("Error while creating queue metrics, falling back to no-op: %v", err)
		} else {
			metricHandle = mh
		}
	}

	in, prompt, closeInput, err := openInput(c.Harness.Script)
	if err != nil {
		return err
	}
	defer closeInput()

	con, err := console.New(console.Options{
		Harness: c.Harness,
		Out:     os.Stdout,
		Prompt:  prompt,
		Metrics: metricHandle,
	})
	if err != nil {
		return fmt.Errorf("creating console: %w", err)
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	group, groupCtx := errgroup.WithContext(sessionCtx)
	group.Go(func() error {
		defer cancel()
		return con.Run(groupCtx, in)
	})
	group.Go(func() error {
		<-groupCtx.Done()
		if ctx.Err() != nil {
			logger.Infof("Received terminating signal, stopping the session at the next command")
		}
		return nil
	})

	err = group.Wait()
	if errors.Is(err, console.ErrSessionFailed) {
		logger.Errorf("Session failed: %v", err)
	}
	return err
}

// openInput returns the script to read commands from, or stdin when no
// script is configured. The prompt is only shown for a terminal.
func openInput(script cfg.ResolvedPath) (in io.Reader, prompt bool, closeFn func(), err error) {
	if script == "" {
		return os.Stdin, console.IsTerminal(os.Stdin), func() {}, nil
	}
	f, err := os.Open(string(script))
	if err != nil {
		return nil, false, nil, fmt.Errorf("opening command script: %w", err)
	}
	return f, false, func() { f.Close() }, nil
}
