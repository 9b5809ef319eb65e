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
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adminkit/adminkit/internal/artifact"
	"github.com/adminkit/adminkit/internal/audit"
	"github.com/adminkit/adminkit/internal/background"
	"github.com/adminkit/adminkit/internal/tenantctx"
)

// MemoryJobRepository is an in-memory Repository with the same transition
// guards the SQL implementation enforces.
type MemoryJobRepository struct {
	mu   sync.Mutex
	jobs map[string]*Job
}

func NewMemoryJobRepository() *MemoryJobRepository {
	return &MemoryJobRepository{jobs: make(map[string]*Job)}
}

func (r *MemoryJobRepository) Create(ctx context.Context, j *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *j
	r.jobs[j.ID] = &cp
	return nil
}

func (r *MemoryJobRepository) Get(ctx context.Context, jobID string) (*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	cp := *j
	return &cp, nil
}

func (r *MemoryJobRepository) MarkProcessing(ctx context.Context, jobID string, startedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	if j.Status != StatusPending {
		return ErrInvalidState
	}
	j.Status = StatusProcessing
	j.StartedAt = &startedAt
	return nil
}

func (r *MemoryJobRepository) UpdateCounters(ctx context.Context, jobID string, c Counters) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	if j.Status != StatusProcessing {
		return ErrInvalidState
	}
	r.applyCounters(j, c)
	return nil
}

func (r *MemoryJobRepository) Complete(ctx context.Context, jobID string, c Counters, result CompletionResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	if j.Status != StatusProcessing {
		return ErrInvalidState
	}
	r.applyCounters(j, c)
	now := time.Now()
	j.Status = StatusCompleted
	j.CompletedAt = &now
	j.ErrorReportID = result.ErrorReportID
	j.DownloadToken = result.DownloadToken
	j.FileSizeBytes = result.FileSizeBytes
	j.ExpiresAt = result.ExpiresAt
	j.Message = result.Message
	return nil
}

func (r *MemoryJobRepository) Fail(ctx context.Context, jobID string, c Counters, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	if j.Status == StatusCompleted || j.Status == StatusFailed {
		return ErrInvalidState
	}
	r.applyCounters(j, c)
	now := time.Now()
	j.Status = StatusFailed
	j.CompletedAt = &now
	j.Message = message
	return nil
}

func (r *MemoryJobRepository) ClearDownload(ctx context.Context, jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	j.DownloadToken = ""
	j.ExpiresAt = nil
	return nil
}

func (r *MemoryJobRepository) applyCounters(j *Job, c Counters) {
	j.TotalRows = c.TotalRows
	j.ProcessedRows = c.ProcessedRows
	j.SuccessCount = c.SuccessCount
	j.UpdatedCount = c.UpdatedCount
	j.SkippedCount = c.SkippedCount
	j.ErrorCount = c.ErrorCount
	j.ProgressPercent = c.Progress()
}

type MemoryReportRepository struct {
	mu      sync.Mutex
	entries map[string][]ErrorEntry
}

func NewMemoryReportRepository() *MemoryReportRepository {
	return &MemoryReportRepository{entries: make(map[string][]ErrorEntry)}
}

func (r *MemoryReportRepository) Append(ctx context.Context, reportID string, entries []ErrorEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[reportID] = append(r.entries[reportID], entries...)
	return nil
}

func (r *MemoryReportRepository) List(ctx context.Context, reportID string) ([]ErrorEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries, ok := r.entries[reportID]
	if !ok {
		return nil, ErrReportNotFound
	}
	out := make([]ErrorEntry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool { return out[i].RowNumber < out[j].RowNumber })
	return out, nil
}

type MemoryArtifactRepository struct {
	mu    sync.Mutex
	byJob map[string]*artifact.Artifact
}

func NewMemoryArtifactRepository() *MemoryArtifactRepository {
	return &MemoryArtifactRepository{byJob: make(map[string]*artifact.Artifact)}
}

func (r *MemoryArtifactRepository) Create(ctx context.Context, a *artifact.Artifact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.byJob[a.JobID] = &cp
	return nil
}

func (r *MemoryArtifactRepository) GetByJob(ctx context.Context, jobID string) (*artifact.Artifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byJob[jobID]
	if !ok {
		return nil, artifact.ErrArtifactNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *MemoryArtifactRepository) ListExpired(ctx context.Context, now time.Time) ([]*artifact.Artifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*artifact.Artifact
	for _, a := range r.byJob {
		if a.Expired(now) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MemoryArtifactRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for jobID, a := range r.byJob {
		if a.ID == id {
			delete(r.byJob, jobID)
			return nil
		}
	}
	return artifact.ErrArtifactNotFound
}

type recordingAuditLogger struct {
	mu     sync.Mutex
	events []audit.Event
}

func (l *recordingAuditLogger) Log(ctx context.Context, e audit.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *recordingAuditLogger) Events() []audit.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]audit.Event, len(l.events))
	copy(out, l.events)
	return out
}

type importFunc func(ctx context.Context, orgID string, row Row, strategy DuplicateStrategy) (RowResult, error)

func (f importFunc) ImportRow(ctx context.Context, orgID string, row Row, strategy DuplicateStrategy) (RowResult, error) {
	return f(ctx, orgID, row, strategy)
}

type exportFunc func(ctx context.Context, orgID string, format Format, w io.Writer) (int, error)

func (f exportFunc) Export(ctx context.Context, orgID string, format Format, w io.Writer) (int, error) {
	return f(ctx, orgID, format, w)
}

// outcomeImporter maps the "outcome" column of a test row to a disposition
var outcomeImporter = importFunc(func(ctx context.Context, orgID string, row Row, strategy DuplicateStrategy) (RowResult, error) {
	result := RowResult{Identifier: row.Fields["email"]}
	switch row.Fields["outcome"] {
	case "create":
		result.Outcome = OutcomeCreated
		return result, nil
	case "update":
		result.Outcome = OutcomeUpdated
		return result, nil
	case "skip":
		result.Outcome = OutcomeSkipped
		return result, nil
	case "invalid":
		return result, &RowError{Type: ErrorTypeValidation, Column: "email", Message: "invalid email"}
	case "boom":
		return result, fmt.Errorf("store unavailable")
	default:
		result.Outcome = OutcomeCreated
		return result, nil
	}
})

type testEnv struct {
	svc      *Service
	jobs     *MemoryJobRepository
	reports  *MemoryReportRepository
	arts     *MemoryArtifactRepository
	store    *artifact.FSStore
	runner   *background.Runner
	auditLog *recordingAuditLogger
	tc       tenantctx.TenantContext
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()

	store, err := artifact.NewFSStore(t.TempDir())
	require.NoError(t, err)

	runner := background.NewRunner(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = runner.Shutdown(ctx)
	})

	env := &testEnv{
		jobs:     NewMemoryJobRepository(),
		reports:  NewMemoryReportRepository(),
		arts:     NewMemoryArtifactRepository(),
		store:    store,
		runner:   runner,
		auditLog: &recordingAuditLogger{},
		tc: tenantctx.TenantContext{
			OrgID:    "org-1",
			UserID:   "user-1",
			UserName: "Operator",
		},
	}
	if cfg.SpoolDir == "" {
		cfg.SpoolDir = t.TempDir()
	}
	env.svc = NewService(
		env.jobs, env.reports, env.arts, store,
		artifact.NewTokenSigner("job-test-secret"),
		runner, env.auditLog, nil, cfg,
	)
	return env
}

func (e *testEnv) awaitTerminal(t *testing.T, jobID string) *Job {
	t.Helper()
	require.Eventually(t, func() bool {
		j, err := e.svc.Get(context.Background(), jobID)
		return err == nil && j.Terminal()
	}, 5*time.Second, 10*time.Millisecond)

	j, err := e.svc.Get(context.Background(), jobID)
	require.NoError(t, err)
	return j
}

func buildCSV(outcomes []string) string {
	var b strings.Builder
	b.WriteString("email,name,outcome\n")
	for i, o := range outcomes {
		fmt.Fprintf(&b, "user%d@example.com,User %d,%s\n", i, i, o)
	}
	return b.String()
}

func TestImportCompletesWithMixedOutcomes(t *testing.T) {
	env := newTestEnv(t, Config{})

	// 90 creates, 5 updates, 5 invalid rows in one input
	var outcomes []string
	for i := 0; i < 90; i++ {
		outcomes = append(outcomes, "create")
	}
	for i := 0; i < 5; i++ {
		outcomes = append(outcomes, "update")
	}
	for i := 0; i < 5; i++ {
		outcomes = append(outcomes, "invalid")
	}

	env.svc.RegisterEntity("users", outcomeImporter, nil)

	j, err := env.svc.SubmitImport(context.Background(), env.tc,
		strings.NewReader(buildCSV(outcomes)),
		ImportSpec{EntityType: "users", Format: FormatCSV, DuplicateStrategy: DuplicateSkip})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, j.Status)
	assert.Equal(t, "org-1", j.OrgID)
	assert.Equal(t, "user-1", j.CreatedBy)

	final := env.awaitTerminal(t, j.ID)
	assert.Equal(t, StatusCompleted, final.Status)
	assert.Equal(t, 100, final.TotalRows)
	assert.Equal(t, 100, final.ProcessedRows)
	assert.Equal(t, 90, final.SuccessCount)
	assert.Equal(t, 5, final.UpdatedCount)
	assert.Equal(t, 0, final.SkippedCount)
	assert.Equal(t, 5, final.ErrorCount)
	assert.Equal(t, 100, final.ProgressPercent)
	assert.Equal(t, final.ProcessedRows,
		final.SuccessCount+final.UpdatedCount+final.SkippedCount+final.ErrorCount)

	require.NotEmpty(t, final.ErrorReportID)
	entries, err := env.svc.ErrorReport(context.Background(), final.ErrorReportID)
	require.NoError(t, err)
	require.Len(t, entries, 5)
	for _, e := range entries {
		assert.Equal(t, ErrorTypeValidation, e.Type)
		assert.Equal(t, "email", e.Column)
		assert.NotEmpty(t, e.Identifier)
	}
	// Entries come back in row order
	assert.True(t, sort.SliceIsSorted(entries, func(i, j int) bool {
		return entries[i].RowNumber < entries[j].RowNumber
	}))
}

func TestImportSkipStrategyRecordsDuplicates(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.svc.RegisterEntity("users", outcomeImporter, nil)

	j, err := env.svc.SubmitImport(context.Background(), env.tc,
		strings.NewReader(buildCSV([]string{"create", "skip", "skip", "create"})),
		ImportSpec{EntityType: "users", Format: FormatCSV, DuplicateStrategy: DuplicateSkip})
	require.NoError(t, err)

	final := env.awaitTerminal(t, j.ID)
	assert.Equal(t, StatusCompleted, final.Status)
	assert.Equal(t, 2, final.SuccessCount)
	assert.Equal(t, 2, final.SkippedCount)
	assert.Equal(t, 0, final.ErrorCount)

	// Skipped duplicates are informational report entries, not errors
	require.NotEmpty(t, final.ErrorReportID)
	entries, err := env.svc.ErrorReport(context.Background(), final.ErrorReportID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, ErrorTypeDuplicate, entries[0].Type)
	assert.Equal(t, ErrorTypeDuplicate, entries[1].Type)
}

func TestImportRowFailuresNeverFailTheJob(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.svc.RegisterEntity("users", outcomeImporter, nil)

	j, err := env.svc.SubmitImport(context.Background(), env.tc,
		strings.NewReader(buildCSV([]string{"boom", "boom", "boom"})),
		ImportSpec{EntityType: "users", Format: FormatCSV, DuplicateStrategy: DuplicateSkip})
	require.NoError(t, err)

	final := env.awaitTerminal(t, j.ID)
	assert.Equal(t, StatusCompleted, final.Status)
	assert.Equal(t, 3, final.ErrorCount)
	assert.Equal(t, 3, final.ProcessedRows)

	entries, err := env.svc.ErrorReport(context.Background(), final.ErrorReportID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for _, e := range entries {
		assert.Equal(t, ErrorTypeSystem, e.Type)
	}
}

func TestImportCancellationLandsInFailed(t *testing.T) {
	env := newTestEnv(t, Config{})

	started := make(chan struct{})
	var once sync.Once
	blocking := importFunc(func(ctx context.Context, orgID string, row Row, strategy DuplicateStrategy) (RowResult, error) {
		once.Do(func() { close(started) })
		<-ctx.Done()
		return RowResult{}, ctx.Err()
	})
	env.svc.RegisterEntity("users", blocking, nil)

	j, err := env.svc.SubmitImport(context.Background(), env.tc,
		strings.NewReader(buildCSV([]string{"create", "create"})),
		ImportSpec{EntityType: "users", Format: FormatCSV, DuplicateStrategy: DuplicateSkip})
	require.NoError(t, err)

	<-started
	tasks := env.runner.Tasks()
	require.Len(t, tasks, 1)
	tasks[0].Cancel()

	final := env.awaitTerminal(t, j.ID)
	assert.Equal(t, StatusFailed, final.Status)
	assert.Contains(t, final.Message, "cancelled")
	// The first row was consumed before the cancellation was observed
	assert.Equal(t, 1, final.ProcessedRows)
}

// cancelSensitiveJobRepository refuses counter writes once the context is
// cancelled, the way a pgx call does.
type cancelSensitiveJobRepository struct {
	*MemoryJobRepository
}

func (r *cancelSensitiveJobRepository) UpdateCounters(ctx context.Context, jobID string, c Counters) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.MemoryJobRepository.UpdateCounters(ctx, jobID, c)
}

func TestCancelledProgressFlushReportsCancellation(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.svc = NewService(
		&cancelSensitiveJobRepository{env.jobs}, env.reports, env.arts, env.store,
		artifact.NewTokenSigner("job-test-secret"),
		env.runner, env.auditLog, nil,
		Config{ProgressFlushRows: 1, SpoolDir: t.TempDir()},
	)

	// The importer absorbs the cancellation and returns a success, so the
	// flush right after the row is the first place the cancelled context
	// surfaces
	started := make(chan struct{})
	var once sync.Once
	importer := importFunc(func(ctx context.Context, orgID string, row Row, strategy DuplicateStrategy) (RowResult, error) {
		once.Do(func() { close(started) })
		<-ctx.Done()
		return RowResult{Outcome: OutcomeCreated, Identifier: row.Fields["email"]}, nil
	})
	env.svc.RegisterEntity("users", importer, nil)

	j, err := env.svc.SubmitImport(context.Background(), env.tc,
		strings.NewReader(buildCSV([]string{"create"})),
		ImportSpec{EntityType: "users", Format: FormatCSV, DuplicateStrategy: DuplicateSkip})
	require.NoError(t, err)

	<-started
	tasks := env.runner.Tasks()
	require.Len(t, tasks, 1)
	tasks[0].Cancel()

	final := env.awaitTerminal(t, j.ID)
	assert.Equal(t, StatusFailed, final.Status)
	assert.Contains(t, final.Message, "cancelled")
	assert.NotContains(t, final.Message, "storage unavailable")
}

func TestImportErrorReportTruncation(t *testing.T) {
	env := newTestEnv(t, Config{MaxErrorReportEntries: 3})
	env.svc.RegisterEntity("users", outcomeImporter, nil)

	j, err := env.svc.SubmitImport(context.Background(), env.tc,
		strings.NewReader(buildCSV([]string{"invalid", "invalid", "invalid", "invalid", "invalid"})),
		ImportSpec{EntityType: "users", Format: FormatCSV, DuplicateStrategy: DuplicateSkip})
	require.NoError(t, err)

	final := env.awaitTerminal(t, j.ID)
	assert.Equal(t, StatusCompleted, final.Status)
	// Every failure is still counted even when its entry was dropped
	assert.Equal(t, 5, final.ErrorCount)
	assert.Contains(t, final.Message, "truncated")

	entries, err := env.svc.ErrorReport(context.Background(), final.ErrorReportID)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestSubmitImportValidation(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.svc.RegisterEntity("users", outcomeImporter, nil)

	_, err := env.svc.SubmitImport(context.Background(), env.tc, strings.NewReader(""),
		ImportSpec{EntityType: "widgets", Format: FormatCSV})
	assert.ErrorIs(t, err, ErrUnknownEntity)

	_, err = env.svc.SubmitImport(context.Background(), env.tc, strings.NewReader(""),
		ImportSpec{EntityType: "users", Format: "xml"})
	assert.ErrorIs(t, err, ErrUnknownFormat)

	_, err = env.svc.SubmitImport(context.Background(), env.tc, strings.NewReader(""),
		ImportSpec{EntityType: "users", Format: FormatCSV, DuplicateStrategy: "merge"})
	assert.Error(t, err)
}

func TestExportProducesDownloadableArtifact(t *testing.T) {
	env := newTestEnv(t, Config{ArtifactExpiry: time.Hour})

	content := "email,name\na@example.com,A\nb@example.com,B\n"
	exporter := exportFunc(func(ctx context.Context, orgID string, format Format, w io.Writer) (int, error) {
		_, err := io.WriteString(w, content)
		return 2, err
	})
	env.svc.RegisterEntity("users", nil, exporter)

	j, err := env.svc.SubmitExport(context.Background(), env.tc,
		ExportSpec{EntityType: "users", Format: FormatCSV})
	require.NoError(t, err)

	final := env.awaitTerminal(t, j.ID)
	require.Equal(t, StatusCompleted, final.Status)
	assert.Equal(t, 2, final.TotalRows)
	assert.Equal(t, 2, final.ProcessedRows)
	assert.Equal(t, 2, final.SuccessCount)
	require.NotEmpty(t, final.DownloadToken)
	assert.Equal(t, int64(len(content)), final.FileSizeBytes)
	require.NotNil(t, final.ExpiresAt)
	assert.True(t, final.ExpiresAt.After(time.Now()))

	rc, downloaded, err := env.svc.Download(context.Background(), final.DownloadToken)
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, j.ID, downloaded.ID)

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
}

func TestExportFailureCleansUp(t *testing.T) {
	env := newTestEnv(t, Config{ArtifactExpiry: time.Hour})

	exporter := exportFunc(func(ctx context.Context, orgID string, format Format, w io.Writer) (int, error) {
		_, _ = io.WriteString(w, "partial")
		return 0, fmt.Errorf("store scan failed")
	})
	env.svc.RegisterEntity("users", nil, exporter)

	j, err := env.svc.SubmitExport(context.Background(), env.tc,
		ExportSpec{EntityType: "users", Format: FormatCSV})
	require.NoError(t, err)

	final := env.awaitTerminal(t, j.ID)
	assert.Equal(t, StatusFailed, final.Status)
	assert.Empty(t, final.DownloadToken)

	_, err = env.arts.GetByJob(context.Background(), j.ID)
	assert.ErrorIs(t, err, artifact.ErrArtifactNotFound)
}

// rejectingStore fails every Put without consuming the reader, the way a
// full disk does before the first byte lands.
type rejectingStore struct{}

func (rejectingStore) Put(ctx context.Context, key string, r io.Reader) (string, int64, error) {
	return "", 0, fmt.Errorf("no space left on device")
}

func (rejectingStore) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	return nil, artifact.ErrArtifactNotFound
}

func (rejectingStore) Delete(ctx context.Context, location string) error {
	return nil
}

func TestExportStoreFailureStillFailsTheJob(t *testing.T) {
	env := newTestEnv(t, Config{ArtifactExpiry: time.Hour})
	env.svc = NewService(
		env.jobs, env.reports, env.arts, rejectingStore{},
		artifact.NewTokenSigner("job-test-secret"),
		env.runner, env.auditLog, nil, Config{ArtifactExpiry: time.Hour, SpoolDir: t.TempDir()},
	)

	// The exporter has more to write than the pipe buffers, so it only
	// finishes if the read side is closed for it.
	exporter := exportFunc(func(ctx context.Context, orgID string, format Format, w io.Writer) (int, error) {
		for i := 0; i < 100; i++ {
			if _, err := fmt.Fprintf(w, "user%d@example.com,User %d\n", i, i); err != nil {
				return 0, err
			}
		}
		return 100, nil
	})
	env.svc.RegisterEntity("users", nil, exporter)

	j, err := env.svc.SubmitExport(context.Background(), env.tc,
		ExportSpec{EntityType: "users", Format: FormatCSV})
	require.NoError(t, err)

	final := env.awaitTerminal(t, j.ID)
	assert.Equal(t, StatusFailed, final.Status)
	assert.Empty(t, final.DownloadToken)
	assert.Contains(t, final.Message, "failed to produce export artifact")
}

func TestDownloadRejectsBadTokens(t *testing.T) {
	env := newTestEnv(t, Config{ArtifactExpiry: time.Hour})

	_, _, err := env.svc.Download(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, artifact.ErrArtifactExpired)

	// A well-formed token signed with a different secret is forged
	forged, err := artifact.NewTokenSigner("other-secret").Sign("some-job", time.Now().Add(time.Hour))
	require.NoError(t, err)
	_, _, err = env.svc.Download(context.Background(), forged)
	assert.ErrorIs(t, err, artifact.ErrArtifactExpired)
}

func TestDownloadRejectsExpiredArtifact(t *testing.T) {
	env := newTestEnv(t, Config{ArtifactExpiry: time.Nanosecond})

	exporter := exportFunc(func(ctx context.Context, orgID string, format Format, w io.Writer) (int, error) {
		_, err := io.WriteString(w, "row\n")
		return 1, err
	})
	env.svc.RegisterEntity("users", nil, exporter)

	j, err := env.svc.SubmitExport(context.Background(), env.tc,
		ExportSpec{EntityType: "users", Format: FormatCSV})
	require.NoError(t, err)

	final := env.awaitTerminal(t, j.ID)
	require.Equal(t, StatusCompleted, final.Status)

	_, _, err = env.svc.Download(context.Background(), final.DownloadToken)
	assert.ErrorIs(t, err, artifact.ErrArtifactExpired)
}

func TestJobAuditTrail(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.svc.RegisterEntity("users", outcomeImporter, nil)

	j, err := env.svc.SubmitImport(context.Background(), env.tc,
		strings.NewReader(buildCSV([]string{"create"})),
		ImportSpec{EntityType: "users", Format: FormatCSV, DuplicateStrategy: DuplicateSkip})
	require.NoError(t, err)
	env.awaitTerminal(t, j.ID)

	var types []string
	for _, e := range env.auditLog.Events() {
		types = append(types, e.Type)
	}
	assert.Contains(t, types, audit.TypeJobSubmitted)
	assert.Contains(t, types, audit.TypeJobCompleted)
}

func TestCountersProgress(t *testing.T) {
	assert.Equal(t, 0, Counters{}.Progress())
	assert.Equal(t, 0, Counters{TotalRows: 0, ProcessedRows: 10}.Progress())
	assert.Equal(t, 33, Counters{TotalRows: 3, ProcessedRows: 1}.Progress())
	assert.Equal(t, 100, Counters{TotalRows: 3, ProcessedRows: 3}.Progress())
	assert.Equal(t, 100, Counters{TotalRows: 3, ProcessedRows: 5}.Progress())
}
