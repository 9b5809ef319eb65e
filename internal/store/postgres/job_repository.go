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

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/adminkit/adminkit/internal/job"
)

// JobRepository implements job.Repository. Every state transition is one
// guarded UPDATE whose WHERE clause names the states it may leave, so a
// terminal job can never regress no matter how calls interleave.
type JobRepository struct {
	db *DB
}

// NewJobRepository creates a new job repository
func NewJobRepository(db *DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create persists a new pending job
func (r *JobRepository) Create(ctx context.Context, j *job.Job) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO jobs (id, org_id, created_by, entity_type, operation, format, status, duplicate_strategy, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		j.ID, j.OrgID, j.CreatedBy, j.EntityType, j.Operation, j.Format,
		j.Status, j.DuplicateStrategy, j.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

// Get retrieves a job snapshot by ID
func (r *JobRepository) Get(ctx context.Context, jobID string) (*job.Job, error) {
	var j job.Job

	err := r.db.pool.QueryRow(ctx, `
		SELECT id, org_id, created_by, entity_type, operation, format, status, duplicate_strategy,
		       total_rows, processed_rows, success_count, updated_count, skipped_count, error_count, progress_percent,
		       error_report_id, download_token, file_size_bytes, message,
		       created_at, started_at, completed_at, expires_at
		FROM jobs
		WHERE id = $1
	`, jobID).Scan(
		&j.ID, &j.OrgID, &j.CreatedBy, &j.EntityType, &j.Operation, &j.Format, &j.Status, &j.DuplicateStrategy,
		&j.TotalRows, &j.ProcessedRows, &j.SuccessCount, &j.UpdatedCount, &j.SkippedCount, &j.ErrorCount, &j.ProgressPercent,
		&j.ErrorReportID, &j.DownloadToken, &j.FileSizeBytes, &j.Message,
		&j.CreatedAt, &j.StartedAt, &j.CompletedAt, &j.ExpiresAt,
	)

	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, job.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &j, nil
}

// MarkProcessing claims a pending job for execution
func (r *JobRepository) MarkProcessing(ctx context.Context, jobID string, startedAt time.Time) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE jobs SET status = $2, started_at = $3
		WHERE id = $1 AND status = $4
	`, jobID, job.StatusProcessing, startedAt, job.StatusPending)

	if err != nil {
		return fmt.Errorf("failed to mark job processing: %w", err)
	}

	if result.RowsAffected() == 0 {
		return r.transitionError(ctx, jobID)
	}

	return nil
}

// UpdateCounters persists a counter snapshot for a processing job
func (r *JobRepository) UpdateCounters(ctx context.Context, jobID string, c job.Counters) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE jobs SET
			total_rows = $2, processed_rows = $3, success_count = $4,
			updated_count = $5, skipped_count = $6, error_count = $7,
			progress_percent = $8
		WHERE id = $1 AND status = $9
	`,
		jobID, c.TotalRows, c.ProcessedRows, c.SuccessCount,
		c.UpdatedCount, c.SkippedCount, c.ErrorCount,
		c.Progress(), job.StatusProcessing,
	)

	if err != nil {
		return fmt.Errorf("failed to update job counters: %w", err)
	}

	if result.RowsAffected() == 0 {
		return r.transitionError(ctx, jobID)
	}

	return nil
}

// Complete moves a processing job to Completed, writing counters and result
// fields in one statement
func (r *JobRepository) Complete(ctx context.Context, jobID string, c job.Counters, res job.CompletionResult) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE jobs SET
			status = $2, completed_at = $3,
			total_rows = $4, processed_rows = $5, success_count = $6,
			updated_count = $7, skipped_count = $8, error_count = $9,
			progress_percent = $10,
			error_report_id = $11, download_token = $12, file_size_bytes = $13,
			expires_at = $14, message = $15
		WHERE id = $1 AND status = $16
	`,
		jobID, job.StatusCompleted, time.Now(),
		c.TotalRows, c.ProcessedRows, c.SuccessCount,
		c.UpdatedCount, c.SkippedCount, c.ErrorCount,
		c.Progress(),
		res.ErrorReportID, res.DownloadToken, res.FileSizeBytes,
		res.ExpiresAt, res.Message,
		job.StatusProcessing,
	)

	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}

	if result.RowsAffected() == 0 {
		return r.transitionError(ctx, jobID)
	}

	return nil
}

// Fail moves a non-terminal job to Failed
func (r *JobRepository) Fail(ctx context.Context, jobID string, c job.Counters, message string) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE jobs SET
			status = $2, completed_at = $3, message = $4,
			total_rows = $5, processed_rows = $6, success_count = $7,
			updated_count = $8, skipped_count = $9, error_count = $10,
			progress_percent = $11
		WHERE id = $1 AND status IN ($12, $13)
	`,
		jobID, job.StatusFailed, time.Now(), message,
		c.TotalRows, c.ProcessedRows, c.SuccessCount,
		c.UpdatedCount, c.SkippedCount, c.ErrorCount,
		c.Progress(),
		job.StatusPending, job.StatusProcessing,
	)

	if err != nil {
		return fmt.Errorf("failed to fail job: %w", err)
	}

	if result.RowsAffected() == 0 {
		return r.transitionError(ctx, jobID)
	}

	return nil
}

// ClearDownload removes a job's download reference after its artifact has
// been reclaimed
func (r *JobRepository) ClearDownload(ctx context.Context, jobID string) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE jobs SET download_token = '', expires_at = NULL
		WHERE id = $1
	`, jobID)

	if err != nil {
		return fmt.Errorf("failed to clear job download: %w", err)
	}

	if result.RowsAffected() == 0 {
		return job.ErrJobNotFound
	}

	return nil
}

// transitionError distinguishes a missing job from a guarded transition that
// matched no row.
func (r *JobRepository) transitionError(ctx context.Context, jobID string) error {
	var status job.Status
	err := r.db.pool.QueryRow(ctx, `SELECT status FROM jobs WHERE id = $1`, jobID).Scan(&status)
	if err != nil {
		if err == pgx.ErrNoRows {
			return job.ErrJobNotFound
		}
		return fmt.Errorf("failed to inspect job state: %w", err)
	}
	return fmt.Errorf("%w: job %s is %s", job.ErrInvalidState, jobID, status)
}
