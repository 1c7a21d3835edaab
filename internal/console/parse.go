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

import "errors"

var errUnbalancedQuotes = errors.New("unbalanced quotes")

// tokenize splits a command line on whitespace. Single or double quotes group
// words into one argument, which may then be empty or contain whitespace.
func tokenize(line string) ([]string, error) {
	var out []string
	i := 0
	for i < len(line) {
		c := line[i]
		if isWhitespace(c) {
			i++
			continue
		}

		if c == '"' || c == '\'' {
			end := i + 1
			for end < len(line) && line[end] != c {
				end++
			}
			if end == len(line) {
				return nil, errUnbalancedQuotes
			}
			out = append(out, line[i+1:end])
			i = end + 1
			continue
		}

		start := i
		for i < len(line) && !isWhitespace(line[i]) {
			i++
		}
		out = append(out, line[start:i])
	}
	return out, nil
}

func isWhitespace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}
