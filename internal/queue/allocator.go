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
	"errors"
	"fmt"
	"unsafe"
)

// BlockKind identifies what a reserved block backs.
type BlockKind int

const (
	HeaderBlock BlockKind = iota
	NodeBlock
	PayloadBlock
)

func (k BlockKind) String() string {
	switch k {
	case HeaderBlock:
		return "header"
	case NodeBlock:
		return "node"
	case PayloadBlock:
		return "payload"
	default:
		return fmt.Sprintf("BlockKind(%d)", int(k))
	}
}

const (
	// HeaderBlockSize is the number of bytes reserved for a queue header.
	HeaderBlockSize = int(unsafe.Sizeof(Queue{}))
	// NodeBlockSize is the number of bytes reserved for a list node.
	NodeBlockSize = int(unsafe.Sizeof(node{}))
)

// PayloadBlockSize returns the size of the private copy kept for s: its
// content plus one terminator byte.
func PayloadBlockSize(s string) int {
	return len(s) + 1
}

// Allocator accounts for every block a Queue owns. Reserve is called before a
// block comes into existence and Release exactly once after it is dropped.
// A Reserve error means the block is not available; the queue reports it as
// ErrAllocationFailure and leaves its state unchanged.
type Allocator interface {
	Reserve(kind BlockKind, size int) error
	Release(kind BlockKind, size int)
}

type heapAllocator struct{}

func (heapAllocator) Reserve(BlockKind, int) error { return nil }

func (heapAllocator) Release(BlockKind, int) {}

// HeapAllocator returns an Allocator that never refuses a reservation and
// keeps no accounting.
func HeapAllocator() Allocator {
	return heapAllocator{}
}

func reserve(alloc Allocator, kind BlockKind, size int) error {
	err := alloc.Reserve(kind, size)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrAllocationFailure) {
		return fmt.Errorf("reserving %s block of %d bytes: %w", kind, size, err)
	}
	return fmt.Errorf("reserving %s block of %d bytes: %w: %v", kind, size, ErrAllocationFailure, err)
}
