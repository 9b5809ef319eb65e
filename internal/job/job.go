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

// Package job tracks bulk import and export work as persistent state
// machines: Pending -> Processing -> Completed | Failed. Row-level errors are
// counted and reported, never escalated to a job failure; only a failure that
// prevents the run from continuing moves a job to Failed.
package job

import (
	"context"
	"errors"
	"time"
)

// Domain errors
var (
	ErrJobNotFound    = errors.New("job not found")
	ErrReportNotFound = errors.New("error report not found")
	ErrInvalidState   = errors.New("invalid job state transition")
	ErrUnknownEntity  = errors.New("unknown entity type")
	ErrUnknownFormat  = errors.New("unknown format")
)

// Status is a job lifecycle state. Completed and Failed are terminal; a
// terminal job never transitions again.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Operation distinguishes imports from exports
type Operation string

const (
	OperationImport Operation = "import"
	OperationExport Operation = "export"
)

// Format is the row encoding for job input and output
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// DuplicateStrategy decides what an import does with a row whose natural key
// matches an existing record
type DuplicateStrategy string

const (
	DuplicateSkip      DuplicateStrategy = "skip"
	DuplicateUpdate    DuplicateStrategy = "update"
	DuplicateCreateNew DuplicateStrategy = "create_new"
)

// Counters accumulates per-row outcomes for one job. At completion
// SuccessCount + UpdatedCount + SkippedCount + ErrorCount == ProcessedRows ==
// TotalRows.
type Counters struct {
	TotalRows     int
	ProcessedRows int
	SuccessCount  int
	UpdatedCount  int
	SkippedCount  int
	ErrorCount    int
}

// Progress derives the percentage completion, floor(100*processed/total)
// clamped to [0, 100]. Zero while TotalRows is unknown.
func (c Counters) Progress() int {
	if c.TotalRows <= 0 {
		return 0
	}
	p := 100 * c.ProcessedRows / c.TotalRows
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// Job is one tracked unit of bulk import or export work
type Job struct {
	ID                string            `json:"id"`
	OrgID             string            `json:"org_id"`
	CreatedBy         string            `json:"created_by"`
	EntityType        string            `json:"entity_type"`
	Operation         Operation         `json:"operation"`
	Format            Format            `json:"format"`
	Status            Status            `json:"status"`
	DuplicateStrategy DuplicateStrategy `json:"duplicate_strategy,omitempty"`

	TotalRows       int `json:"total_rows"`
	ProcessedRows   int `json:"processed_rows"`
	SuccessCount    int `json:"success_count"`
	UpdatedCount    int `json:"updated_count"`
	SkippedCount    int `json:"skipped_count"`
	ErrorCount      int `json:"error_count"`
	ProgressPercent int `json:"progress_percent"`

	ErrorReportID string `json:"error_report_id,omitempty"`
	DownloadToken string `json:"download_token,omitempty"`
	FileSizeBytes int64  `json:"file_size_bytes,omitempty"`
	Message       string `json:"message,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// Terminal reports whether the job has reached a final state
func (j *Job) Terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// Counters returns the job's counter snapshot
func (j *Job) Counters() Counters {
	return Counters{
		TotalRows:     j.TotalRows,
		ProcessedRows: j.ProcessedRows,
		SuccessCount:  j.SuccessCount,
		UpdatedCount:  j.UpdatedCount,
		SkippedCount:  j.SkippedCount,
		ErrorCount:    j.ErrorCount,
	}
}

// CompletionResult carries the fields set atomically with the Completed
// transition. A reader must never observe a completed export without its
// download reference.
type CompletionResult struct {
	ErrorReportID string
	DownloadToken string
	FileSizeBytes int64
	ExpiresAt     *time.Time
	Message       string
}

// Repository defines the interface for job persistence. Implementations must
// apply counter updates and state transitions atomically, and must guard
// transitions on the current status so a terminal job never regresses.
type Repository interface {
	// Create persists a new pending job
	Create(ctx context.Context, job *Job) error

	// Get retrieves a job snapshot by ID
	Get(ctx context.Context, jobID string) (*Job, error)

	// MarkProcessing claims a pending job for execution
	MarkProcessing(ctx context.Context, jobID string, startedAt time.Time) error

	// UpdateCounters persists a counter snapshot for a processing job
	UpdateCounters(ctx context.Context, jobID string, c Counters) error

	// Complete moves a processing job to Completed, writing counters and
	// result fields in one atomic update
	Complete(ctx context.Context, jobID string, c Counters, result CompletionResult) error

	// Fail moves a non-terminal job to Failed with a human-readable message
	Fail(ctx context.Context, jobID string, c Counters, message string) error

	// ClearDownload removes a job's download reference after its artifact
	// has been reclaimed by the sweeper
	ClearDownload(ctx context.Context, jobID string) error
}

// ErrorType categorizes one row-level failure
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeDuplicate  ErrorType = "duplicate"
	ErrorTypeSystem     ErrorType = "system"
)

// ErrorEntry is one row's entry in a job's error report
type ErrorEntry struct {
	RowNumber  int       `json:"row_number"`
	Identifier string    `json:"identifier,omitempty"`
	Type       ErrorType `json:"error_type"`
	Message    string    `json:"error_message"`
	Column     string    `json:"column,omitempty"`
	RawRow     string    `json:"raw_row,omitempty"`
}

// ErrorReportRepository persists per-row error entries, append-only during
// job execution and ordered by row number on retrieval
type ErrorReportRepository interface {
	Append(ctx context.Context, reportID string, entries []ErrorEntry) error
	List(ctx context.Context, reportID string) ([]ErrorEntry, error)
}
