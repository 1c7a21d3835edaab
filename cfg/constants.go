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

import "time"

const (
	// Logging-level constants

	TRACE   string = "TRACE"
	DEBUG   string = "DEBUG"
	INFO    string = "INFO"
	WARNING string = "WARNING"
	ERROR   string = "ERROR"
	OFF     string = "OFF"
)

const (
	TextLogFormat = "text"
	JSONLogFormat = "json"
)

const (
	// DefaultStringLength is the number of characters rh copies out of the
	// queue; the output buffer holds one more byte for the terminator.
	DefaultStringLength = 1024
	// MaxStringLength bounds string-length so output buffers stay small.
	MaxStringLength = 1 << 20

	DefaultErrorLimit = 5
	DefaultFailLimit  = 30
	DefaultShowLimit  = 50
	DefaultVerbosity  = 4
	MaxVerbosity      = 5

	DefaultTimeLimit = time.Second
)
