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

// Package sweep runs periodic maintenance passes. A pass failure is logged
// and the schedule continues; only context cancellation stops a sweeper.
package sweep

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/adminkit/adminkit/internal/artifact"
	"github.com/adminkit/adminkit/internal/audit"
	"github.com/adminkit/adminkit/internal/job"
	"github.com/adminkit/adminkit/internal/observability/logger"
	"github.com/adminkit/adminkit/internal/session"
)

// PassFunc performs one maintenance pass and returns how many records it
// affected.
type PassFunc func(ctx context.Context, now time.Time) (int64, error)

// Sweeper schedules a pass at a fixed interval after an initial delay. The
// initial delay keeps sweepers from competing with startup work.
type Sweeper struct {
	Name         string
	InitialDelay time.Duration
	Interval     time.Duration
	Pass         PassFunc
}

// Run blocks until ctx is cancelled, executing passes on schedule. It is
// shaped as a background task body.
func (s *Sweeper) Run(ctx context.Context) error {
	if err := sleep(ctx, s.InitialDelay); err != nil {
		return nil
	}

	// A pass that has started runs to completion; the stop signal is
	// observed only between passes, in the sleeps.
	passCtx := context.WithoutCancel(ctx)

	for {
		start := time.Now()
		swept, err := s.Pass(passCtx, start)
		switch {
		case err != nil:
			slog.ErrorContext(ctx, "sweep pass failed",
				logger.Component("sweep"),
				logger.Sweeper(s.Name),
				logger.Error(err),
			)
		case swept > 0:
			slog.InfoContext(ctx, "sweep pass finished",
				logger.Component("sweep"),
				logger.Sweeper(s.Name),
				logger.SweptCount(swept),
				logger.Duration(time.Since(start).Milliseconds()),
			)
		}

		if err := sleep(ctx, s.Interval); err != nil {
			return nil
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// NewSessionSweeper deactivates sessions whose expiry has passed. Sessions
// are flipped inactive, never deleted, so the audit trail keeps its history.
func NewSessionSweeper(repo session.Repository, auditLogger audit.Logger, initialDelay, interval time.Duration) *Sweeper {
	return &Sweeper{
		Name:         "sessions",
		InitialDelay: initialDelay,
		Interval:     interval,
		Pass: func(ctx context.Context, now time.Time) (int64, error) {
			n, err := repo.DeactivateExpired(ctx, now)
			if err != nil {
				return 0, err
			}
			if n > 0 {
				auditLogger.Log(ctx, audit.Event{
					Type:     audit.TypeSessionsSwept,
					Metadata: map[string]any{"count": n},
				})
			}
			return n, nil
		},
	}
}

// NewArtifactSweeper reclaims expired export artifacts: the blob is removed
// from storage, the artifact record dropped, and the owning job's download
// reference cleared. A blob that is already gone counts as cleaned.
func NewArtifactSweeper(repo artifact.Repository, store artifact.Store, jobs job.Repository, auditLogger audit.Logger, initialDelay, interval time.Duration) *Sweeper {
	return &Sweeper{
		Name:         "artifacts",
		InitialDelay: initialDelay,
		Interval:     interval,
		Pass: func(ctx context.Context, now time.Time) (int64, error) {
			expired, err := repo.ListExpired(ctx, now)
			if err != nil {
				return 0, err
			}

			var swept int64
			var lastErr error
			for _, a := range expired {
				if err := store.Delete(ctx, a.Location); err != nil && !errors.Is(err, artifact.ErrArtifactNotFound) {
					lastErr = err
					continue
				}
				if err := repo.Delete(ctx, a.ID); err != nil {
					lastErr = err
					continue
				}
				if err := jobs.ClearDownload(ctx, a.JobID); err != nil && !errors.Is(err, job.ErrJobNotFound) {
					lastErr = err
					continue
				}
				swept++
			}

			if swept > 0 {
				auditLogger.Log(ctx, audit.Event{
					Type:     audit.TypeArtifactsSwept,
					Metadata: map[string]any{"count": swept},
				})
			}
			return swept, lastErr
		},
	}
}
