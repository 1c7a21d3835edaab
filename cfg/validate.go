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

package cfg

import (
	"fmt"
)

func isValidLogRotateConfig(config *LogRotateLoggingConfig) error {
	if config.MaxFileSizeMb <= 0 {
		return fmt.Errorf("max-file-size-mb should be atleast 1")
	}
	if config.BackupFileCount < 0 {
		return fmt.Errorf("backup-file-count should be 0 (to retain all backup files) or a positive value")
	}
	return nil
}

func isValidLogFormat(format string) error {
	switch format {
	case "", TextLogFormat, JSONLogFormat:
		return nil
	}
	return fmt.Errorf("unsupported log format %q, expected %q or %q", format, TextLogFormat, JSONLogFormat)
}

func isValidHarnessConfig(c *HarnessConfig) error {
	if c.ErrorLimit < 1 {
		return fmt.Errorf("error-limit should be atleast 1")
	}
	if c.FailLimit < 0 {
		return fmt.Errorf("fail-limit can't be negative")
	}
	if c.MallocFailPercent < 0 || c.MallocFailPercent > 100 {
		return fmt.Errorf("malloc-fail-percent should be between 0 and 100, got %d", c.MallocFailPercent)
	}
	if c.StringLength < 1 || c.StringLength > MaxStringLength {
		return fmt.Errorf("string-length should be between 1 and %d, got %d", MaxStringLength, c.StringLength)
	}
	if c.ShowLimit < 0 {
		return fmt.Errorf("show-limit can't be negative")
	}
	if c.TimeLimit < 0 {
		return fmt.Errorf("time-limit can't be negative")
	}
	if c.Verbosity < 0 || c.Verbosity > MaxVerbosity {
		return fmt.Errorf("verbose should be between 0 and %d, got %d", MaxVerbosity, c.Verbosity)
	}
	return nil
}

func isValidMetricsConfig(c *MetricsConfig) error {
	if c.PrometheusPort < 0 || c.PrometheusPort > 65535 {
		return fmt.Errorf("prometheus-port should be between 0 and 65535, got %d", c.PrometheusPort)
	}
	return nil
}

// ValidateConfig returns a non-nil error if the config is invalid.
func ValidateConfig(config *Config) error {
	var err error

	if err = isValidLogRotateConfig(&config.Logging.LogRotate); err != nil {
		return fmt.Errorf("error parsing log-rotate config: %w", err)
	}

	if err = isValidLogFormat(config.Logging.Format); err != nil {
		return fmt.Errorf("error parsing logging config: %w", err)
	}

	if err = isValidHarnessConfig(&config.Harness); err != nil {
		return fmt.Errorf("error parsing harness config: %w", err)
	}

	if err = isValidMetricsConfig(&config.Metrics); err != nil {
		return fmt.Errorf("error parsing metrics config: %w", err)
	}

	return nil
}
