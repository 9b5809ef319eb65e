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

	"github.com/jackc/pgx/v5"

	"github.com/adminkit/adminkit/internal/job"
)

// JobErrorRepository implements job.ErrorReportRepository
type JobErrorRepository struct {
	db *DB
}

// NewJobErrorRepository creates a new job error report repository
func NewJobErrorRepository(db *DB) *JobErrorRepository {
	return &JobErrorRepository{db: db}
}

// Append writes a batch of report entries in one round trip
func (r *JobErrorRepository) Append(ctx context.Context, reportID string, entries []job.ErrorEntry) error {
	if len(entries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(`
			INSERT INTO job_error_entries (report_id, row_number, identifier, error_type, error_message, column_name, raw_row)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, reportID, e.RowNumber, e.Identifier, e.Type, e.Message, e.Column, e.RawRow)
	}

	results := r.db.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range entries {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to append error report entries: %w", err)
		}
	}

	return nil
}

// List returns a report's entries ordered by row number
func (r *JobErrorRepository) List(ctx context.Context, reportID string) ([]job.ErrorEntry, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT row_number, identifier, error_type, error_message, column_name, raw_row
		FROM job_error_entries
		WHERE report_id = $1
		ORDER BY row_number
	`, reportID)

	if err != nil {
		return nil, fmt.Errorf("failed to list error report entries: %w", err)
	}
	defer rows.Close()

	var entries []job.ErrorEntry
	for rows.Next() {
		var e job.ErrorEntry
		if err := rows.Scan(&e.RowNumber, &e.Identifier, &e.Type, &e.Message, &e.Column, &e.RawRow); err != nil {
			return nil, fmt.Errorf("failed to scan error report entry: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate error report entries: %w", err)
	}

	if entries == nil {
		return nil, job.ErrReportNotFound
	}

	return entries, nil
}
