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

package sweep

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adminkit/adminkit/internal/artifact"
	"github.com/adminkit/adminkit/internal/audit"
	"github.com/adminkit/adminkit/internal/job"
	"github.com/adminkit/adminkit/internal/session"
)

type nopAuditLogger struct{}

func (nopAuditLogger) Log(ctx context.Context, e audit.Event) {}

func TestSweeperRunsOnSchedule(t *testing.T) {
	var mu sync.Mutex
	passes := 0

	s := &Sweeper{
		Name:         "test",
		InitialDelay: time.Millisecond,
		Interval:     5 * time.Millisecond,
		Pass: func(ctx context.Context, now time.Time) (int64, error) {
			mu.Lock()
			passes++
			mu.Unlock()
			return 1, nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return passes >= 3
	}, 2*time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop on cancellation")
	}
}

func TestSweeperSurvivesPassFailure(t *testing.T) {
	var mu sync.Mutex
	passes := 0

	s := &Sweeper{
		Name:         "flaky",
		InitialDelay: time.Millisecond,
		Interval:     time.Millisecond,
		Pass: func(ctx context.Context, now time.Time) (int64, error) {
			mu.Lock()
			passes++
			n := passes
			mu.Unlock()
			if n%2 == 1 {
				return 0, fmt.Errorf("storage unavailable")
			}
			return 1, nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	// Failing passes do not break the schedule
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return passes >= 4
	}, 2*time.Second, time.Millisecond)
}

func TestSweeperPassRunsToCompletionOnStop(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	var mu sync.Mutex
	var passCtxErr error
	items := 0

	s := &Sweeper{
		Name:         "slow",
		InitialDelay: time.Millisecond,
		Interval:     time.Hour,
		Pass: func(ctx context.Context, now time.Time) (int64, error) {
			close(started)
			<-release
			mu.Lock()
			defer mu.Unlock()
			passCtxErr = ctx.Err()
			for i := 0; i < 5; i++ {
				items++
			}
			return 5, nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = s.Run(ctx)
		close(done)
	}()

	<-started
	cancel()
	close(release)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after finishing the pass")
	}

	// The stop arrived mid-pass: the batch still finished in full and the
	// pass never observed the cancellation
	mu.Lock()
	defer mu.Unlock()
	assert.NoError(t, passCtxErr)
	assert.Equal(t, 5, items)
}

type memorySessionRepository struct {
	mu       sync.Mutex
	sessions map[string]*session.Session
}

func newMemorySessionRepository() *memorySessionRepository {
	return &memorySessionRepository{sessions: make(map[string]*session.Session)}
}

func (r *memorySessionRepository) Create(ctx context.Context, s *session.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.sessions[s.ID] = &cp
	return nil
}

func (r *memorySessionRepository) Get(ctx context.Context, id string) (*session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *memorySessionRepository) Touch(ctx context.Context, id string, seenAt time.Time) error {
	return nil
}

func (r *memorySessionRepository) Deactivate(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.Active = false
	}
	return nil
}

func (r *memorySessionRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, s := range r.sessions {
		if s.Active && !s.ExpiresAt.After(now) {
			s.Active = false
			n++
		}
	}
	return n, nil
}

func TestSessionSweeperPass(t *testing.T) {
	repo := newMemorySessionRepository()
	now := time.Now()

	seed := func(id string, active bool, expiresAt time.Time) {
		require.NoError(t, repo.Create(context.Background(), &session.Session{
			ID: id, OrgID: "org-1", UserID: "user-1", Active: active, ExpiresAt: expiresAt,
		}))
	}
	seed("live", true, now.Add(time.Hour))
	seed("expired-a", true, now.Add(-time.Minute))
	seed("expired-b", true, now.Add(-time.Hour))
	seed("already-inactive", false, now.Add(-time.Hour))

	s := NewSessionSweeper(repo, nopAuditLogger{}, 0, time.Minute)

	swept, err := s.Pass(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), swept)

	live, err := repo.Get(context.Background(), "live")
	require.NoError(t, err)
	assert.True(t, live.Active)

	// A second pass finds nothing left to flip
	swept, err = s.Pass(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(0), swept)
}

type memoryArtifactRepository struct {
	mu   sync.Mutex
	byID map[string]*artifact.Artifact
}

func newMemoryArtifactRepository() *memoryArtifactRepository {
	return &memoryArtifactRepository{byID: make(map[string]*artifact.Artifact)}
}

func (r *memoryArtifactRepository) Create(ctx context.Context, a *artifact.Artifact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.byID[a.ID] = &cp
	return nil
}

func (r *memoryArtifactRepository) GetByJob(ctx context.Context, jobID string) (*artifact.Artifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.byID {
		if a.JobID == jobID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, artifact.ErrArtifactNotFound
}

func (r *memoryArtifactRepository) ListExpired(ctx context.Context, now time.Time) ([]*artifact.Artifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*artifact.Artifact
	for _, a := range r.byID {
		if a.Expired(now) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memoryArtifactRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return artifact.ErrArtifactNotFound
	}
	delete(r.byID, id)
	return nil
}

type clearDownloadRecorder struct {
	job.Repository

	mu      sync.Mutex
	cleared []string
}

func (r *clearDownloadRecorder) ClearDownload(ctx context.Context, jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleared = append(r.cleared, jobID)
	return nil
}

func TestArtifactSweeperPass(t *testing.T) {
	ctx := context.Background()
	store, err := artifact.NewFSStore(t.TempDir())
	require.NoError(t, err)
	repo := newMemoryArtifactRepository()
	jobs := &clearDownloadRecorder{}
	now := time.Now()

	put := func(id, jobID string, expiresAt time.Time) string {
		location, _, err := store.Put(ctx, id+".csv", strings.NewReader("data\n"))
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, &artifact.Artifact{
			ID: id, JobID: jobID, Location: location, ExpiresAt: expiresAt,
		}))
		return location
	}
	expiredLoc := put("art-expired", "job-1", now.Add(-time.Minute))
	liveLoc := put("art-live", "job-2", now.Add(time.Hour))

	s := NewArtifactSweeper(repo, store, jobs, nopAuditLogger{}, 0, time.Minute)

	swept, err := s.Pass(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), swept)

	_, err = store.Open(ctx, expiredLoc)
	assert.ErrorIs(t, err, artifact.ErrArtifactNotFound)
	_, err = repo.GetByJob(ctx, "job-1")
	assert.ErrorIs(t, err, artifact.ErrArtifactNotFound)
	assert.Equal(t, []string{"job-1"}, jobs.cleared)

	rc, err := store.Open(ctx, liveLoc)
	require.NoError(t, err)
	rc.Close()
}

// A blob missing from storage counts as already cleaned; the record and the
// job's download reference are still removed.
func TestArtifactSweeperToleratesMissingBlob(t *testing.T) {
	ctx := context.Background()
	store, err := artifact.NewFSStore(t.TempDir())
	require.NoError(t, err)
	repo := newMemoryArtifactRepository()
	jobs := &clearDownloadRecorder{}
	now := time.Now()

	require.NoError(t, repo.Create(ctx, &artifact.Artifact{
		ID: "art-gone", JobID: "job-1", Location: "never-written.csv", ExpiresAt: now.Add(-time.Minute),
	}))

	s := NewArtifactSweeper(repo, store, jobs, nopAuditLogger{}, 0, time.Minute)

	swept, err := s.Pass(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), swept)
	assert.Equal(t, []string{"job-1"}, jobs.cleared)
}
