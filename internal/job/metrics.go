// Copyright 2026 The Adminkit Authors
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

package job

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the job subsystem's instruments
type Metrics struct {
	jobsSubmitted metric.Int64Counter
	jobsCompleted metric.Int64Counter
	jobsFailed    metric.Int64Counter
	rowsProcessed metric.Int64Counter
}

// NewMetrics registers job instruments on the given meter
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	submitted, err := meter.Int64Counter("jobs_submitted_total",
		metric.WithDescription("Jobs accepted for background execution"))
	if err != nil {
		return nil, err
	}
	completed, err := meter.Int64Counter("jobs_completed_total",
		metric.WithDescription("Jobs finished in the Completed state"))
	if err != nil {
		return nil, err
	}
	failed, err := meter.Int64Counter("jobs_failed_total",
		metric.WithDescription("Jobs finished in the Failed state"))
	if err != nil {
		return nil, err
	}
	rows, err := meter.Int64Counter("job_rows_processed_total",
		metric.WithDescription("Input rows consumed across all jobs"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		jobsSubmitted: submitted,
		jobsCompleted: completed,
		jobsFailed:    failed,
		rowsProcessed: rows,
	}, nil
}

func (m *Metrics) submitted(ctx context.Context, op Operation, entity string) {
	if m == nil {
		return
	}
	m.jobsSubmitted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", string(op)),
		attribute.String("entity_type", entity),
	))
}

func (m *Metrics) completed(ctx context.Context, op Operation, entity string, rows int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("operation", string(op)),
		attribute.String("entity_type", entity),
	)
	m.jobsCompleted.Add(ctx, 1, attrs)
	m.rowsProcessed.Add(ctx, int64(rows), attrs)
}

func (m *Metrics) failed(ctx context.Context, op Operation, entity string) {
	if m == nil {
		return
	}
	m.jobsFailed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", string(op)),
		attribute.String("entity_type", entity),
	))
}
