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

package background_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/adminkit/adminkit/internal/background"
	"github.com/adminkit/adminkit/internal/tenantctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunnerInstallsTenantContext(t *testing.T) {
	r := background.NewRunner(context.Background())

	observed := make(chan tenantctx.TenantContext, 1)
	task, err := r.Go("ctx-check", tenantctx.TenantContext{OrgID: "org-1", UserID: "user-1"}, func(ctx context.Context) error {
		tc, ok := tenantctx.From(ctx)
		if !ok {
			return errors.New("no tenant context installed")
		}
		observed <- tc
		return nil
	})
	require.NoError(t, err)

	<-task.Done()
	require.NoError(t, task.Err())

	tc := <-observed
	assert.Equal(t, "org-1", tc.OrgID)
	assert.Equal(t, "user-1", tc.UserID)
}

// Two concurrent units of work must never observe each other's identity.
func TestRunnerConcurrentIsolation(t *testing.T) {
	r := background.NewRunner(context.Background())

	const n = 32
	var wg sync.WaitGroup
	errs := make(chan error, n)

	for i := 0; i < n; i++ {
		orgID := fmt.Sprintf("org-%d", i)
		wg.Add(1)
		task, err := r.Go("isolation", tenantctx.TenantContext{OrgID: orgID}, func(ctx context.Context) error {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				tc, _ := tenantctx.From(ctx)
				if tc.OrgID != orgID {
					return fmt.Errorf("expected %s, observed %q", orgID, tc.OrgID)
				}
			}
			return nil
		})
		require.NoError(t, err)

		go func(task *background.Task) {
			<-task.Done()
			if err := task.Err(); err != nil {
				errs <- err
			}
		}(task)
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestRunnerRecordsFailure(t *testing.T) {
	r := background.NewRunner(context.Background())

	boom := errors.New("boom")
	task, err := r.Go("failing", tenantctx.TenantContext{}, func(ctx context.Context) error {
		return boom
	})
	require.NoError(t, err)

	<-task.Done()
	assert.ErrorIs(t, task.Err(), boom)
}

func TestRunnerRecoversPanic(t *testing.T) {
	r := background.NewRunner(context.Background())

	task, err := r.Go("panicking", tenantctx.TenantContext{}, func(ctx context.Context) error {
		panic("kaboom")
	})
	require.NoError(t, err)

	<-task.Done()
	require.Error(t, task.Err())
	assert.Contains(t, task.Err().Error(), "kaboom")
}

func TestRunnerShutdownCancelsTasks(t *testing.T) {
	r := background.NewRunner(context.Background())

	started := make(chan struct{})
	task, err := r.Go("long-running", tenantctx.TenantContext{}, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, err)
	<-started

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, r.Shutdown(shutdownCtx))

	<-task.Done()
	assert.ErrorIs(t, task.Err(), context.Canceled)

	// No new work after shutdown
	_, err = r.Go("late", tenantctx.TenantContext{}, func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, background.ErrShuttingDown)
}

func TestRunnerEnumeratesLiveTasks(t *testing.T) {
	r := background.NewRunner(context.Background())

	release := make(chan struct{})
	task, err := r.Go("enumerated", tenantctx.TenantContext{}, func(ctx context.Context) error {
		<-release
		return nil
	})
	require.NoError(t, err)

	tasks := r.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, task.ID, tasks[0].ID)
	assert.Equal(t, "enumerated", tasks[0].Name)

	close(release)
	<-task.Done()

	assert.Eventually(t, func() bool {
		return len(r.Tasks()) == 0
	}, time.Second, 10*time.Millisecond)
}
