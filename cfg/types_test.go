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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogSeverityUnmarshalText(t *testing.T) {
	testCases := []struct {
		input    string
		expected LogSeverity
		wantErr  bool
	}{
		{input: "trace", expected: "TRACE"},
		{input: "Debug", expected: "DEBUG"},
		{input: "INFO", expected: "INFO"},
		{input: "warning", expected: "WARNING"},
		{input: "error", expected: "ERROR"},
		{input: "off", expected: "OFF"},
		{input: "verbose", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			var l LogSeverity

			err := l.UnmarshalText([]byte(tc.input))

			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, l)
		})
	}
}

func TestResolvedPathUnmarshalText(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	wd, err := os.Getwd()
	require.NoError(t, err)

	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty", input: "", expected: ""},
		{name: "absolute", input: "/tmp/commands.txt", expected: "/tmp/commands.txt"},
		{name: "relative", input: "traces/trace-01.cmd", expected: filepath.Join(wd, "traces/trace-01.cmd")},
		{name: "home", input: "~/trace.cmd", expected: filepath.Join(home, "trace.cmd")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var p ResolvedPath

			err := p.UnmarshalText([]byte(tc.input))

			require.NoError(t, err)
			assert.Equal(t, ResolvedPath(tc.expected), p)
		})
	}
}
