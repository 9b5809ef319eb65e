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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/adminkit/adminkit/internal/artifact"
	"github.com/adminkit/adminkit/internal/audit"
	"github.com/adminkit/adminkit/internal/background"
	"github.com/adminkit/adminkit/internal/id"
	"github.com/adminkit/adminkit/internal/observability/logger"
	"github.com/adminkit/adminkit/internal/tenantctx"
)

// Config holds job execution policy
type Config struct {
	// ArtifactExpiry is the download horizon applied at export completion
	ArtifactExpiry time.Duration
	// ProgressFlushRows / ProgressFlushInterval bound the persistence
	// cadence of counter updates
	ProgressFlushRows     int
	ProgressFlushInterval time.Duration
	// MaxErrorReportEntries caps how many per-row entries one job records
	MaxErrorReportEntries int
	// SpoolDir receives import uploads until the background worker has
	// consumed them; empty means the OS temp dir
	SpoolDir string
}

// ImportSpec describes a requested import
type ImportSpec struct {
	EntityType        string
	Format            Format
	DuplicateStrategy DuplicateStrategy
}

// ExportSpec describes a requested export
type ExportSpec struct {
	EntityType string
	Format     Format
}

// Service is the job registry: it creates job records, dispatches the work
// onto the background runner under the caller's tenant identity, and answers
// status queries. All state lives in the Repository; the service itself holds
// no per-job mutable state and is safe for concurrent use.
type Service struct {
	repo          Repository
	reports       ErrorReportRepository
	artifactRepo  artifact.Repository
	artifactStore artifact.Store
	signer        *artifact.TokenSigner
	runner        *background.Runner
	auditLogger   audit.Logger
	metrics       *Metrics
	cfg           Config

	importers map[string]Importer
	exporters map[string]Exporter
}

// NewService creates a new job service
func NewService(
	repo Repository,
	reports ErrorReportRepository,
	artifactRepo artifact.Repository,
	artifactStore artifact.Store,
	signer *artifact.TokenSigner,
	runner *background.Runner,
	auditLogger audit.Logger,
	metrics *Metrics,
	cfg Config,
) *Service {
	if cfg.ArtifactExpiry <= 0 {
		cfg.ArtifactExpiry = 24 * time.Hour
	}
	if cfg.MaxErrorReportEntries <= 0 {
		cfg.MaxErrorReportEntries = 10000
	}
	return &Service{
		repo:          repo,
		reports:       reports,
		artifactRepo:  artifactRepo,
		artifactStore: artifactStore,
		signer:        signer,
		runner:        runner,
		auditLogger:   auditLogger,
		metrics:       metrics,
		cfg:           cfg,
		importers:     make(map[string]Importer),
		exporters:     make(map[string]Exporter),
	}
}

// RegisterEntity wires the importer and exporter for one entity type
func (s *Service) RegisterEntity(entityType string, importer Importer, exporter Exporter) {
	s.importers[entityType] = importer
	s.exporters[entityType] = exporter
}

// SubmitImport creates a pending import job and returns its id immediately.
// The input is spooled to disk first so the caller's request body can close
// while the job runs.
func (s *Service) SubmitImport(ctx context.Context, tc tenantctx.TenantContext, input io.Reader, spec ImportSpec) (*Job, error) {
	importer, ok := s.importers[spec.EntityType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, spec.EntityType)
	}
	if spec.Format != FormatCSV && spec.Format != FormatJSON {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, spec.Format)
	}
	switch spec.DuplicateStrategy {
	case DuplicateSkip, DuplicateUpdate, DuplicateCreateNew:
	case "":
		spec.DuplicateStrategy = DuplicateSkip
	default:
		return nil, fmt.Errorf("invalid duplicate strategy: %s", spec.DuplicateStrategy)
	}

	spoolPath, err := s.spool(input)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	j := &Job{
		ID:                id.NewUUIDv7(),
		OrgID:             tc.OrgID,
		CreatedBy:         tc.UserID,
		EntityType:        spec.EntityType,
		Operation:         OperationImport,
		Format:            spec.Format,
		Status:            StatusPending,
		DuplicateStrategy: spec.DuplicateStrategy,
		CreatedAt:         now,
	}

	if err := s.repo.Create(ctx, j); err != nil {
		os.Remove(spoolPath)
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	_, err = s.runner.Go("import:"+j.ID, tc, func(taskCtx context.Context) error {
		defer os.Remove(spoolPath)
		return s.runImport(taskCtx, j.ID, tc.OrgID, spoolPath, spec, importer)
	})
	if err != nil {
		os.Remove(spoolPath)
		_ = s.repo.Fail(ctx, j.ID, Counters{}, "could not start background execution")
		return nil, err
	}

	s.metrics.submitted(ctx, OperationImport, spec.EntityType)
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeJobSubmitted,
		OrgID:    tc.OrgID,
		ActorID:  tc.UserID,
		Resource: j.ID,
		Metadata: map[string]any{
			"operation":   string(OperationImport),
			"entity_type": spec.EntityType,
			"format":      string(spec.Format),
			"strategy":    string(spec.DuplicateStrategy),
		},
	})

	return j, nil
}

// SubmitExport creates a pending export job and returns its id immediately
func (s *Service) SubmitExport(ctx context.Context, tc tenantctx.TenantContext, spec ExportSpec) (*Job, error) {
	exporter, ok := s.exporters[spec.EntityType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, spec.EntityType)
	}
	if spec.Format != FormatCSV && spec.Format != FormatJSON {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, spec.Format)
	}

	now := time.Now()
	j := &Job{
		ID:         id.NewUUIDv7(),
		OrgID:      tc.OrgID,
		CreatedBy:  tc.UserID,
		EntityType: spec.EntityType,
		Operation:  OperationExport,
		Format:     spec.Format,
		Status:     StatusPending,
		CreatedAt:  now,
	}

	if err := s.repo.Create(ctx, j); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	_, err := s.runner.Go("export:"+j.ID, tc, func(taskCtx context.Context) error {
		return s.runExport(taskCtx, j.ID, tc.OrgID, spec, exporter)
	})
	if err != nil {
		_ = s.repo.Fail(ctx, j.ID, Counters{}, "could not start background execution")
		return nil, err
	}

	s.metrics.submitted(ctx, OperationExport, spec.EntityType)
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeJobSubmitted,
		OrgID:    tc.OrgID,
		ActorID:  tc.UserID,
		Resource: j.ID,
		Metadata: map[string]any{
			"operation":   string(OperationExport),
			"entity_type": spec.EntityType,
			"format":      string(spec.Format),
		},
	})

	return j, nil
}

// Get retrieves a job snapshot. Safe to poll at high frequency.
func (s *Service) Get(ctx context.Context, jobID string) (*Job, error) {
	return s.repo.Get(ctx, jobID)
}

// ErrorReport returns a job's ordered per-row error entries
func (s *Service) ErrorReport(ctx context.Context, reportID string) ([]ErrorEntry, error) {
	return s.reports.List(ctx, reportID)
}

// Download resolves a signed token to the artifact's content. Any token that
// is expired, forged, or references a reclaimed artifact yields
// artifact.ErrArtifactExpired; the caller never sees a partial stream.
func (s *Service) Download(ctx context.Context, token string) (io.ReadCloser, *Job, error) {
	jobID, err := s.signer.Verify(token)
	if err != nil {
		return nil, nil, artifact.ErrArtifactExpired
	}

	j, err := s.repo.Get(ctx, jobID)
	if err != nil {
		return nil, nil, artifact.ErrArtifactExpired
	}
	if j.Status != StatusCompleted || j.ExpiresAt == nil || !j.ExpiresAt.After(time.Now()) {
		return nil, nil, artifact.ErrArtifactExpired
	}

	art, err := s.artifactRepo.GetByJob(ctx, jobID)
	if err != nil {
		return nil, nil, artifact.ErrArtifactExpired
	}

	rc, err := s.artifactStore.Open(ctx, art.Location)
	if err != nil {
		return nil, nil, artifact.ErrArtifactExpired
	}

	return rc, j, nil
}

func (s *Service) spool(input io.Reader) (string, error) {
	f, err := os.CreateTemp(s.cfg.SpoolDir, "adminkit-import-*")
	if err != nil {
		return "", fmt.Errorf("failed to spool import input: %w", err)
	}

	_, err = io.Copy(f, input)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to spool import input: %w", err)
	}

	return f.Name(), nil
}

// runImport is the background body of an import job. Row failures are
// counted and recorded; only an error that prevents continuing the run moves
// the job to Failed.
func (s *Service) runImport(ctx context.Context, jobID, orgID, spoolPath string, spec ImportSpec, importer Importer) error {
	if err := s.repo.MarkProcessing(ctx, jobID, time.Now()); err != nil {
		return fmt.Errorf("failed to claim job: %w", err)
	}

	f, err := os.Open(spoolPath)
	if err != nil {
		return s.failJob(ctx, jobID, spec.EntityType, OperationImport, Counters{}, "input is unreadable")
	}
	defer f.Close()

	rr, err := NewRowReader(spec.Format, f)
	if err != nil {
		return s.failJob(ctx, jobID, spec.EntityType, OperationImport, Counters{}, fmt.Sprintf("input is not valid %s", spec.Format))
	}

	reportID := id.NewUUIDv7()
	tracker := newProgressTracker(s.cfg.ProgressFlushRows, s.cfg.ProgressFlushInterval)

	var (
		counters       Counters
		pending        []ErrorEntry
		reportEntries  int
		reportOverflow bool
	)

	record := func(entry ErrorEntry) {
		if reportEntries >= s.cfg.MaxErrorReportEntries {
			reportOverflow = true
			return
		}
		pending = append(pending, entry)
		reportEntries++
	}

	flush := func() error {
		if len(pending) > 0 {
			if err := s.reports.Append(ctx, reportID, pending); err != nil {
				return fmt.Errorf("failed to append error report: %w", err)
			}
			pending = pending[:0]
		}
		if err := s.repo.UpdateCounters(ctx, jobID, counters); err != nil {
			return fmt.Errorf("failed to update counters: %w", err)
		}
		tracker.flushed()
		return nil
	}

	for {
		// Cancellation is observed between rows: the job lands in a
		// terminal Failed state instead of lingering in Processing.
		if err := ctx.Err(); err != nil {
			return s.failJob(ctx, jobID, spec.EntityType, OperationImport, counters, "job cancelled")
		}

		row, err := rr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			// The stream itself broke; rows already processed stay counted
			return s.failJob(ctx, jobID, spec.EntityType, OperationImport, counters,
				fmt.Sprintf("input unreadable after row %d: %v", counters.ProcessedRows, err))
		}

		counters.ProcessedRows++

		result, err := importer.ImportRow(ctx, orgID, row, spec.DuplicateStrategy)
		switch {
		case err == nil:
			switch result.Outcome {
			case OutcomeCreated:
				counters.SuccessCount++
			case OutcomeUpdated:
				counters.UpdatedCount++
			case OutcomeSkipped:
				counters.SkippedCount++
				record(ErrorEntry{
					RowNumber:  row.Number,
					Identifier: result.Identifier,
					Type:       ErrorTypeDuplicate,
					Message:    "duplicate of existing record; skipped",
					RawRow:     row.Raw,
				})
			}
		default:
			counters.ErrorCount++
			var rowErr *RowError
			if errors.As(err, &rowErr) {
				record(ErrorEntry{
					RowNumber:  row.Number,
					Identifier: result.Identifier,
					Type:       rowErr.Type,
					Message:    rowErr.Message,
					Column:     rowErr.Column,
					RawRow:     row.Raw,
				})
			} else {
				record(ErrorEntry{
					RowNumber:  row.Number,
					Identifier: result.Identifier,
					Type:       ErrorTypeSystem,
					Message:    err.Error(),
					RawRow:     row.Raw,
				})
			}
		}

		if tracker.observe() {
			if err := flush(); err != nil {
				msg := "storage unavailable while recording progress"
				if ctx.Err() != nil {
					msg = "job cancelled"
				}
				return s.failJob(ctx, jobID, spec.EntityType, OperationImport, counters, msg)
			}
		}
	}

	// The full input has been scanned; the total is now known
	counters.TotalRows = counters.ProcessedRows

	if len(pending) > 0 {
		if err := s.reports.Append(ctx, reportID, pending); err != nil {
			msg := "storage unavailable while finalizing error report"
			if ctx.Err() != nil {
				msg = "job cancelled"
			}
			return s.failJob(ctx, jobID, spec.EntityType, OperationImport, counters, msg)
		}
	}

	result := CompletionResult{Message: "import completed"}
	if reportEntries > 0 {
		result.ErrorReportID = reportID
	}
	if reportOverflow {
		result.Message = fmt.Sprintf("import completed; error report truncated to %d entries", s.cfg.MaxErrorReportEntries)
	}

	if err := s.repo.Complete(ctx, jobID, counters, result); err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}

	s.metrics.completed(ctx, OperationImport, spec.EntityType, counters.ProcessedRows)
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeJobCompleted,
		OrgID:    orgID,
		Resource: jobID,
		Metadata: map[string]any{
			"processed": counters.ProcessedRows,
			"created":   counters.SuccessCount,
			"updated":   counters.UpdatedCount,
			"skipped":   counters.SkippedCount,
			"errors":    counters.ErrorCount,
		},
	})
	slog.InfoContext(ctx, "import job completed",
		logger.Component("job"),
		logger.JobID(jobID),
		logger.OrgID(orgID),
		logger.ProcessedRows(counters.ProcessedRows),
	)

	return nil
}

// runExport is the background body of an export job. The download reference
// is written atomically with the Completed transition, so a reader never
// observes a completed export without a resolvable artifact.
func (s *Service) runExport(ctx context.Context, jobID, orgID string, spec ExportSpec, exporter Exporter) error {
	if err := s.repo.MarkProcessing(ctx, jobID, time.Now()); err != nil {
		return fmt.Errorf("failed to claim job: %w", err)
	}

	type exportResult struct {
		rows int
		err  error
	}

	pr, pw := io.Pipe()
	resultCh := make(chan exportResult, 1)
	go func() {
		rows, err := exporter.Export(ctx, orgID, spec.Format, pw)
		pw.CloseWithError(err)
		resultCh <- exportResult{rows: rows, err: err}
	}()

	key := fmt.Sprintf("%s.%s", jobID, spec.Format)
	location, size, putErr := s.artifactStore.Put(ctx, key, pr)
	// If Put returned before draining the pipe, the exporter may still be
	// blocked in a write. Closing the read side unblocks it so the result
	// always arrives.
	pr.CloseWithError(putErr)
	res := <-resultCh

	if res.err != nil || putErr != nil {
		msg := "failed to produce export artifact"
		if errors.Is(res.err, context.Canceled) || ctx.Err() != nil {
			msg = "job cancelled"
		}
		if location != "" {
			_ = s.artifactStore.Delete(context.WithoutCancel(ctx), location)
		}
		return s.failJob(ctx, jobID, spec.EntityType, OperationExport, Counters{}, msg)
	}

	completedAt := time.Now()
	expiresAt := completedAt.Add(s.cfg.ArtifactExpiry)

	token, err := s.signer.Sign(jobID, expiresAt)
	if err != nil {
		_ = s.artifactStore.Delete(ctx, location)
		return s.failJob(ctx, jobID, spec.EntityType, OperationExport, Counters{}, "failed to issue download token")
	}

	if err := s.artifactRepo.Create(ctx, &artifact.Artifact{
		ID:        id.NewUUIDv7(),
		JobID:     jobID,
		Location:  location,
		SizeBytes: size,
		CreatedAt: completedAt,
		ExpiresAt: expiresAt,
	}); err != nil {
		_ = s.artifactStore.Delete(ctx, location)
		return s.failJob(ctx, jobID, spec.EntityType, OperationExport, Counters{}, "failed to register export artifact")
	}

	counters := Counters{
		TotalRows:     res.rows,
		ProcessedRows: res.rows,
		SuccessCount:  res.rows,
	}
	result := CompletionResult{
		DownloadToken: token,
		FileSizeBytes: size,
		ExpiresAt:     &expiresAt,
		Message:       "export completed",
	}

	if err := s.repo.Complete(ctx, jobID, counters, result); err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}

	s.metrics.completed(ctx, OperationExport, spec.EntityType, res.rows)
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeJobCompleted,
		OrgID:    orgID,
		Resource: jobID,
		Metadata: map[string]any{"rows": res.rows, "size_bytes": size},
	})
	slog.InfoContext(ctx, "export job completed",
		logger.Component("job"),
		logger.JobID(jobID),
		logger.OrgID(orgID),
		logger.ProcessedRows(res.rows),
	)

	return nil
}

// failJob writes the terminal Failed state. The write uses a context that
// survives cancellation so a cancelled job still lands in a terminal state.
func (s *Service) failJob(ctx context.Context, jobID, entityType string, op Operation, counters Counters, message string) error {
	writeCtx := context.WithoutCancel(ctx)

	if err := s.repo.Fail(writeCtx, jobID, counters, message); err != nil {
		slog.ErrorContext(writeCtx, "failed to mark job failed",
			logger.Component("job"),
			logger.JobID(jobID),
			logger.Error(err),
		)
		return fmt.Errorf("job %s failed (%s) and could not be marked: %w", jobID, message, err)
	}

	s.metrics.failed(writeCtx, op, entityType)
	s.auditLogger.Log(writeCtx, audit.Event{
		Type:     audit.TypeJobFailed,
		Resource: jobID,
		Metadata: map[string]any{"message": message},
	})

	return fmt.Errorf("job %s failed: %s", jobID, message)
}
