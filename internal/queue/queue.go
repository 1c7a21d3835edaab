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

// Package queue implements a string queue over a singly-linked list. Strings
// can be inserted at either end, so the queue serves both FIFO and LIFO use,
// and are removed from the front into a caller supplied bounded buffer.
//
// A Queue is not safe for concurrent use.
package queue

import "fmt"

// node represents a node in the queue. value holds a private copy of the
// inserted string followed by a single terminator byte.
type node struct {
	value []byte
	next  *node
}

// Queue is a string queue implemented using a singly-linked list.
//
// Each node is owned by its predecessor, and the first one by the queue
// itself. Removing a node copies its payload out before the node is dropped.
type Queue struct {
	head, tail *node
	size       int
	alloc      Allocator
	destroyed  bool
}

// New creates an empty queue whose blocks are accounted by alloc. A nil alloc
// selects HeapAllocator.
func New(alloc Allocator) (*Queue, error) {
	if alloc == nil {
		alloc = HeapAllocator()
	}
	if err := reserve(alloc, HeaderBlock, HeaderBlockSize); err != nil {
		return nil, fmt.Errorf("new queue: %w", err)
	}
	return &Queue{alloc: alloc}, nil
}

func (q *Queue) usable() bool {
	return q != nil && !q.destroyed
}

// Destroy releases every node, every payload and finally the queue header.
// It is a no-op on a nil or already destroyed queue.
func (q *Queue) Destroy() {
	if !q.usable() {
		return
	}
	for q.head != nil {
		n := q.head
		q.head = n.next
		q.freeNode(n)
	}
	q.tail = nil
	q.size = 0
	q.alloc.Release(HeaderBlock, HeaderBlockSize)
	q.destroyed = true
}

// newNode reserves a node and a payload block and copies s into the payload.
// Either both reservations succeed or neither is kept.
func (q *Queue) newNode(s string) (*node, error) {
	if err := reserve(q.alloc, NodeBlock, NodeBlockSize); err != nil {
		return nil, err
	}
	if err := reserve(q.alloc, PayloadBlock, PayloadBlockSize(s)); err != nil {
		q.alloc.Release(NodeBlock, NodeBlockSize)
		return nil, err
	}
	value := make([]byte, PayloadBlockSize(s))
	copy(value, s)
	return &node{value: value}, nil
}

func (q *Queue) freeNode(n *node) {
	q.alloc.Release(PayloadBlock, len(n.value))
	q.alloc.Release(NodeBlock, NodeBlockSize)
	n.value = nil
	n.next = nil
}

// InsertHead puts a copy of s at the front of the queue.
func (q *Queue) InsertHead(s string) error {
	if !q.usable() {
		return fmt.Errorf("insert head: %w", errAbsentQueue)
	}
	n, err := q.newNode(s)
	if err != nil {
		return fmt.Errorf("insert head: %w", err)
	}
	n.next = q.head
	q.head = n
	if q.size == 0 {
		q.tail = n
	}
	q.size++
	return nil
}

// InsertTail puts a copy of s at the end of the queue.
func (q *Queue) InsertTail(s string) error {
	if !q.usable() {
		return fmt.Errorf("insert tail: %w", errAbsentQueue)
	}
	n, err := q.newNode(s)
	if err != nil {
		return fmt.Errorf("insert tail: %w", err)
	}
	if q.size == 0 {
		q.head = n
		q.tail = n
	} else {
		q.tail.next = n
		q.tail = n
	}
	q.size++
	return nil
}

// RemoveHead removes the front element and copies it into buf. len(buf) is
// the capacity including the terminator: at most len(buf)-1 bytes of the
// payload are copied and the remainder of buf is zero filled, so buf always
// holds a terminated string.
//
// The queue is left untouched if it is absent or empty, or if buf cannot hold
// even the terminator.
func (q *Queue) RemoveHead(buf []byte) error {
	switch {
	case !q.usable():
		return fmt.Errorf("remove head: %w", errAbsentQueue)
	case q.size == 0:
		return fmt.Errorf("remove head: %w", errEmptyQueue)
	case buf == nil:
		return fmt.Errorf("remove head: %w", errNilBuffer)
	case len(buf) == 0:
		return fmt.Errorf("remove head: %w", errZeroCapBuffer)
	}

	n := q.head
	copied := copy(buf[:len(buf)-1], n.value[:len(n.value)-1])
	clear(buf[copied:])

	if q.size == 1 {
		q.head = nil
		q.tail = nil
	} else {
		q.head = n.next
	}
	q.size--
	q.freeNode(n)
	return nil
}

// Size returns the number of items in the queue, or 0 for an absent queue.
func (q *Queue) Size() int {
	if !q.usable() {
		return 0
	}
	return q.size
}

// Reverse reverses the order of the queue in place. It neither reserves nor
// releases blocks.
func (q *Queue) Reverse() {
	if !q.usable() || q.size < 2 {
		return
	}
	var prev *node
	curr := q.head
	q.tail = q.head
	for curr != nil {
		next := curr.next
		curr.next = prev
		prev = curr
		curr = next
	}
	q.head = prev
}
