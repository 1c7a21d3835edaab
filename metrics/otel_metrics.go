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
	"errors"
	"sync/atomic"
	"time"

	"github.com/googlecloudplatform/strqueue/internal/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName   = "strqueue"
	logInterval = 5 * time.Minute

	queueOpKey       = "queue_op"
	errorCategoryKey = "error_category"
)

var unrecognizedAttr atomic.Value

type opErrorKey struct {
	errorCategory string
	queueOp       string
}

type attrCounter struct {
	value atomic.Int64
	attrs metric.ObserveOption
}

type otelMetrics struct {
	opsCount      map[string]*attrCounter
	opsErrorCount map[opErrorKey]*attrCounter
	opsLatency    metric.Int64Histogram
	latencyAttrs  map[string]metric.RecordOption
}

func (o *otelMetrics) OpsCount(inc int64, queueOp string) {
	if inc < 0 {
		logger.Errorf("Counter metric queue/ops_count received a negative increment: %d", inc)
		return
	}
	c, ok := o.opsCount[queueOp]
	if !ok {
		updateUnrecognizedAttribute(queueOp)
		return
	}
	c.value.Add(inc)
}

func (o *otelMetrics) OpsErrorCount(inc int64, errorCategory string, queueOp string) {
	if inc < 0 {
		logger.Errorf("Counter metric queue/ops_error_count received a negative increment: %d", inc)
		return
	}
	c, ok := o.opsErrorCount[opErrorKey{errorCategory: errorCategory, queueOp: queueOp}]
	if !ok {
		updateUnrecognizedAttribute(errorCategory + "/" + queueOp)
		return
	}
	c.value.Add(inc)
}

func (o *otelMetrics) OpsLatency(ctx context.Context, latency time.Duration, queueOp string) {
	attrs, ok := o.latencyAttrs[queueOp]
	if !ok {
		updateUnrecognizedAttribute(queueOp)
		return
	}
	o.opsLatency.Record(ctx, latency.Microseconds(), attrs)
}

// NewOTelMetrics registers the queue instruments on the global meter
// provider. ctx bounds the background logging of unrecognized attributes.
func NewOTelMetrics(ctx context.Context) (*otelMetrics, error) {
	startSampledLogging(ctx)
	meter := otel.Meter(meterName)

	o := &otelMetrics{
		opsCount:      make(map[string]*attrCounter, len(queueOps)),
		opsErrorCount: make(map[opErrorKey]*attrCounter, len(queueOps)*len(errorCategories)),
		latencyAttrs:  make(map[string]metric.RecordOption, len(queueOps)),
	}
	for _, op := range queueOps {
		set := attribute.NewSet(attribute.String(queueOpKey, op))
		o.opsCount[op] = &attrCounter{attrs: metric.WithAttributeSet(set)}
		o.latencyAttrs[op] = metric.WithAttributeSet(set)
		for _, category := range errorCategories {
			o.opsErrorCount[opErrorKey{errorCategory: category, queueOp: op}] = &attrCounter{
				attrs: metric.WithAttributeSet(attribute.NewSet(
					attribute.String(errorCategoryKey, category),
					attribute.String(queueOpKey, op))),
			}
		}
	}

	_, err0 := meter.Int64ObservableCounter("queue/ops_count",
		metric.WithDescription("The cumulative number of queue operations processed."),
		metric.WithUnit(""),
		metric.WithInt64Callback(func(_ context.Context, obsrv metric.Int64Observer) error {
			for _, c := range o.opsCount {
				conditionallyObserve(obsrv, &c.value, c.attrs)
			}
			return nil
		}))

	_, err1 := meter.Int64ObservableCounter("queue/ops_error_count",
		metric.WithDescription("The cumulative number of queue operations that failed, along with the error category."),
		metric.WithUnit(""),
		metric.WithInt64Callback(func(_ context.Context, obsrv metric.Int64Observer) error {
			for _, c := range o.opsErrorCount {
				conditionallyObserve(obsrv, &c.value, c.attrs)
			}
			return nil
		}))

	opsLatency, err2 := meter.Int64Histogram("queue/ops_latency",
		metric.WithDescription("The cumulative distribution of queue operation latencies."),
		metric.WithUnit("us"),
		metric.WithExplicitBucketBoundaries(1, 2, 5, 10, 20, 50, 100, 200, 500, 1000, 2000, 5000, 10000, 20000, 50000, 100000, 500000, 1000000))

	if err := errors.Join(err0, err1, err2); err != nil {
		return nil, err
	}
	o.opsLatency = opsLatency
	return o, nil
}

func conditionallyObserve(obsrv metric.Int64Observer, counter *atomic.Int64, obsrvOptions ...metric.ObserveOption) {
	if val := counter.Load(); val > 0 {
		obsrv.Observe(val, obsrvOptions...)
	}
}

func updateUnrecognizedAttribute(newValue string) {
	unrecognizedAttr.CompareAndSwap("", newValue)
}

// startSampledLogging starts a goroutine that logs unrecognized attributes periodically.
func startSampledLogging(ctx context.Context) {
	unrecognizedAttr.Store("")

	go func() {
		ticker := time.NewTicker(logInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logUnrecognizedAttribute()
			}
		}
	}()
}

func logUnrecognizedAttribute() {
	if currentAttr := unrecognizedAttr.Swap("").(string); currentAttr != "" {
		logger.Tracef("Attribute %s is not declared", currentAttr)
	}
}
