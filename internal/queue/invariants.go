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

package queue

import (
	"bytes"
	"fmt"
)

// CheckInvariants walks the list and returns an error describing the first
// structural invariant that does not hold. At most size+1 nodes are visited,
// so a cycle is reported rather than followed forever.
func (q *Queue) CheckInvariants() error {
	if q == nil {
		return nil
	}
	if q.destroyed {
		if q.head != nil || q.tail != nil || q.size != 0 {
			return fmt.Errorf("destroyed queue still references nodes (size %d)", q.size)
		}
		return nil
	}
	if q.size < 0 {
		return fmt.Errorf("negative size %d", q.size)
	}
	if (q.size == 0) != (q.head == nil) {
		return fmt.Errorf("size %d disagrees with head %p", q.size, q.head)
	}
	if (q.size == 0) != (q.tail == nil) {
		return fmt.Errorf("size %d disagrees with tail %p", q.size, q.tail)
	}

	var last *node
	count := 0
	for n := q.head; n != nil; n = n.next {
		count++
		if count > q.size {
			return fmt.Errorf("more than %d nodes reachable from head", q.size)
		}
		if len(n.value) == 0 || n.value[len(n.value)-1] != 0 {
			return fmt.Errorf("node %d has no terminated payload", count-1)
		}
		last = n
	}
	if count != q.size {
		return fmt.Errorf("size is %d but %d nodes are reachable", q.size, count)
	}
	if last != q.tail {
		return fmt.Errorf("chain from head does not end at tail")
	}
	return nil
}

// Snapshot returns copies of the first limit payloads, front first. A
// negative limit returns every payload.
func (q *Queue) Snapshot(limit int) []string {
	if !q.usable() {
		return nil
	}
	if limit < 0 || limit > q.size {
		limit = q.size
	}
	out := make([]string, 0, limit)
	for n := q.head; n != nil && len(out) < limit; n = n.next {
		out = append(out, string(n.value[:len(n.value)-1]))
	}
	return out
}

// BufferString returns the content of buf up to its first terminator.
func BufferString(buf []byte) string {
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		return string(buf[:i])
	}
	return string(buf)
}
