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

// Package artifact holds the durable-blob-with-expiry contract for export
// output files. Storage mechanics stay behind the Store interface; the rest
// of the system only cares that a blob exists until ExpiresAt and is gone
// afterwards.
package artifact

import (
	"context"
	"errors"
	"io"
	"time"
)

// Domain errors
var (
	ErrArtifactNotFound = errors.New("artifact not found")
	ErrArtifactExpired  = errors.New("artifact expired")
)

// Artifact is the downloadable file produced by a completed export job.
// Each artifact is owned by exactly one job.
type Artifact struct {
	ID        string
	JobID     string
	Location  string
	SizeBytes int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the artifact's download horizon has passed
func (a *Artifact) Expired(now time.Time) bool {
	return !a.ExpiresAt.After(now)
}

// Store is the blob storage contract. Deleting a blob that is already gone
// must return ErrArtifactNotFound so sweeps can treat it as already cleaned.
type Store interface {
	// Put streams r into storage under key and returns the blob's location
	// and size
	Put(ctx context.Context, key string, r io.Reader) (location string, size int64, err error)

	// Open returns a reader over the blob at location
	Open(ctx context.Context, location string) (io.ReadCloser, error)

	// Delete removes the blob at location
	Delete(ctx context.Context, location string) error
}

// Repository persists artifact metadata
type Repository interface {
	Create(ctx context.Context, a *Artifact) error
	GetByJob(ctx context.Context, jobID string) (*Artifact, error)
	ListExpired(ctx context.Context, now time.Time) ([]*Artifact, error)
	Delete(ctx context.Context, id string) error
}
