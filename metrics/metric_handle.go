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

package metrics

import (
	"context"
	"time"
)

// Constants for attribute QueueOp
const (
	QueueOpFree       = "free"
	QueueOpInsertHead = "insert_head"
	QueueOpInsertTail = "insert_tail"
	QueueOpNew        = "new"
	QueueOpRemoveHead = "remove_head"
	QueueOpReverse    = "reverse"
	QueueOpSize       = "size"
)

// Constants for attribute ErrorCategory
const (
	ErrorCategoryALLOCATIONFAILURE   = "ALLOCATION_FAILURE"
	ErrorCategoryINVALIDARGUMENT     = "INVALID_ARGUMENT"
	ErrorCategoryMISCERROR           = "MISC_ERROR"
	ErrorCategoryTIMEOUT             = "TIMEOUT"
	ErrorCategoryVERIFICATIONFAILURE = "VERIFICATION_FAILURE"
)

var (
	queueOps = []string{
		QueueOpFree,
		QueueOpInsertHead,
		QueueOpInsertTail,
		QueueOpNew,
		QueueOpRemoveHead,
		QueueOpReverse,
		QueueOpSize,
	}
	errorCategories = []string{
		ErrorCategoryALLOCATIONFAILURE,
		ErrorCategoryINVALIDARGUMENT,
		ErrorCategoryMISCERROR,
		ErrorCategoryTIMEOUT,
		ErrorCategoryVERIFICATIONFAILURE,
	}
)

// MetricHandle provides an interface for recording queue metrics.
type MetricHandle interface {
	// OpsCount - The cumulative number of queue operations processed.
	OpsCount(inc int64, queueOp string)

	// OpsErrorCount - The cumulative number of queue operations that failed, along with the error category.
	OpsErrorCount(inc int64, errorCategory string, queueOp string)

	// OpsLatency - The cumulative distribution of queue operation latencies.
	OpsLatency(ctx context.Context, duration time.Duration, queueOp string)
}
