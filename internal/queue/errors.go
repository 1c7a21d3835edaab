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
)

var (
	// ErrAllocationFailure is returned when a header, node or payload block
	// could not be reserved.
	ErrAllocationFailure = errors.New("allocation failure")

	// ErrInvalidArgument is returned for operations on an absent queue, for
	// removal from an empty queue and for a missing output buffer.
	ErrInvalidArgument = errors.New("invalid argument")
)

var (
	errAbsentQueue   = fmt.Errorf("%w: queue is nil or destroyed", ErrInvalidArgument)
	errEmptyQueue    = fmt.Errorf("%w: queue is empty", ErrInvalidArgument)
	errNilBuffer     = fmt.Errorf("%w: nil output buffer", ErrInvalidArgument)
	errZeroCapBuffer = fmt.Errorf("%w: output buffer has no room for a terminator", ErrInvalidArgument)
)
