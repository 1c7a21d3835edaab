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
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	AppName string `yaml:"app-name"`

	Debug DebugConfig `yaml:"debug"`

	Harness HarnessConfig `yaml:"harness"`

	Logging LoggingConfig `yaml:"logging"`

	Metrics MetricsConfig `yaml:"metrics"`
}

type DebugConfig struct {
	ExitOnInvariantViolation bool `yaml:"exit-on-invariant-violation"`

	LogMutex bool `yaml:"log-mutex"`
}

type HarnessConfig struct {
	Echo bool `yaml:"echo"`

	ErrorLimit int64 `yaml:"error-limit"`

	FailLimit int64 `yaml:"fail-limit"`

	MallocFailPercent int64 `yaml:"malloc-fail-percent"`

	Script ResolvedPath `yaml:"script"`

	Seed int64 `yaml:"seed"`

	ShowLimit int64 `yaml:"show-limit"`

	StringLength int64 `yaml:"string-length"`

	TimeLimit time.Duration `yaml:"time-limit"`

	Verbosity int64 `yaml:"verbosity"`
}

type LogRotateLoggingConfig struct {
	BackupFileCount int64 `yaml:"backup-file-count"`

	Compress bool `yaml:"compress"`

	MaxFileSizeMb int64 `yaml:"max-file-size-mb"`
}

type LoggingConfig struct {
	FilePath ResolvedPath `yaml:"file-path"`

	Format string `yaml:"format"`

	LogRotate LogRotateLoggingConfig `yaml:"log-rotate"`

	Severity LogSeverity `yaml:"severity"`
}

type MetricsConfig struct {
	PrometheusPort int64 `yaml:"prometheus-port"`
}

type flagBinding struct {
	flag, key string
}

var flagBindings = []flagBinding{
	{"app-name", "app-name"},
	{"debug_invariants", "debug.exit-on-invariant-violation"},
	{"debug_mutex", "debug.log-mutex"},
	{"echo", "harness.echo"},
	{"error-limit", "harness.error-limit"},
	{"fail-limit", "harness.fail-limit"},
	{"malloc-fail-percent", "harness.malloc-fail-percent"},
	{"file", "harness.script"},
	{"seed", "harness.seed"},
	{"show-limit", "harness.show-limit"},
	{"string-length", "harness.string-length"},
	{"time-limit", "harness.time-limit"},
	{"verbose", "harness.verbosity"},
	{"log-file", "logging.file-path"},
	{"log-format", "logging.format"},
	{"log-rotate-backup-file-count", "logging.log-rotate.backup-file-count"},
	{"log-rotate-compress", "logging.log-rotate.compress"},
	{"log-rotate-max-file-size-mb", "logging.log-rotate.max-file-size-mb"},
	{"log-severity", "logging.severity"},
	{"prometheus-port", "metrics.prometheus-port"},
}

// BindFlags declares every config flag on flagSet and binds it to its config
// key in v.
func BindFlags(v *viper.Viper, flagSet *pflag.FlagSet) error {
	flagSet.StringP("app-name", "", "", "The application name reported in logs.")

	flagSet.BoolP("debug_invariants", "", false, "Exit when internal queue invariants are violated.")

	flagSet.BoolP("debug_mutex", "", false, "Print debug messages when the queue lock is held too long.")

	flagSet.BoolP("echo", "", true, "Echo each command before running it.")

	flagSet.IntP("error-limit", "", DefaultErrorLimit, "Number of errors after which the session is aborted.")

	flagSet.IntP("fail-limit", "", DefaultFailLimit, "Number of tolerated allocation failures before a failed insert counts as an error.")

	flagSet.IntP("malloc-fail-percent", "", 0, "Percentage of allocations that are refused on purpose.")

	flagSet.StringP("file", "f", "", "Read commands from this file instead of stdin.")

	flagSet.Int64P("seed", "", 0, "Seed for random strings and allocation failures. 0 picks one from the clock.")

	flagSet.IntP("show-limit", "", DefaultShowLimit, "Maximum number of elements printed or verified by show and reverse.")

	flagSet.IntP("string-length", "", DefaultStringLength, "Maximum number of characters copied out by rh.")

	flagSet.DurationP("time-limit", "", DefaultTimeLimit, "Time limit for a single command. 0 disables the limit.")

	flagSet.IntP("verbose", "v", DefaultVerbosity, "Verbosity level of the command output (0-5).")

	flagSet.StringP("log-file", "", "", "The file for storing logs. Logs are written to stdout when empty.")

	flagSet.StringP("log-format", "", "json", "The format of the log file: 'text' or 'json'.")

	flagSet.IntP("log-rotate-backup-file-count", "", 10, "The maximum number of backup log files to retain after they have been rotated. 0 retains all.")

	flagSet.BoolP("log-rotate-compress", "", true, "Controls whether the rotated log files should be compressed using gzip.")

	flagSet.IntP("log-rotate-max-file-size-mb", "", 512, "The maximum size in megabytes that a log file can reach before it is rotated.")

	flagSet.StringP("log-severity", "", INFO, "Specifies the logging severity expressed as one of [trace, debug, info, warning, error, off]")

	flagSet.IntP("prometheus-port", "", 0, "Expose queue operation metrics on this port. 0 disables the exporter.")

	for _, b := range flagBindings {
		if err := v.BindPFlag(b.key, flagSet.Lookup(b.flag)); err != nil {
			return err
		}
	}
	return nil
}
