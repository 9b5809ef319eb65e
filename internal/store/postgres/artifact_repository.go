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

	"github.com/adminkit/adminkit/internal/artifact"
)

// ArtifactRepository implements artifact.Repository
type ArtifactRepository struct {
	db *DB
}

// NewArtifactRepository creates a new artifact repository
func NewArtifactRepository(db *DB) *ArtifactRepository {
	return &ArtifactRepository{db: db}
}

// Create records an export artifact
func (r *ArtifactRepository) Create(ctx context.Context, a *artifact.Artifact) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO export_artifacts (id, job_id, location, size_bytes, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		a.ID, a.JobID, a.Location, a.SizeBytes, a.CreatedAt, a.ExpiresAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create artifact: %w", err)
	}

	return nil
}

// GetByJob retrieves the artifact belonging to a job
func (r *ArtifactRepository) GetByJob(ctx context.Context, jobID string) (*artifact.Artifact, error) {
	var a artifact.Artifact

	err := r.db.pool.QueryRow(ctx, `
		SELECT id, job_id, location, size_bytes, created_at, expires_at
		FROM export_artifacts
		WHERE job_id = $1
	`, jobID).Scan(
		&a.ID, &a.JobID, &a.Location, &a.SizeBytes, &a.CreatedAt, &a.ExpiresAt,
	)

	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, artifact.ErrArtifactNotFound
		}
		return nil, fmt.Errorf("failed to get artifact: %w", err)
	}

	return &a, nil
}

// ListExpired returns artifacts whose expiry has passed
func (r *ArtifactRepository) ListExpired(ctx context.Context, now time.Time) ([]*artifact.Artifact, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, job_id, location, size_bytes, created_at, expires_at
		FROM export_artifacts
		WHERE expires_at <= $1
	`, now)

	if err != nil {
		return nil, fmt.Errorf("failed to list expired artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []*artifact.Artifact
	for rows.Next() {
		var a artifact.Artifact
		if err := rows.Scan(&a.ID, &a.JobID, &a.Location, &a.SizeBytes, &a.CreatedAt, &a.ExpiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		artifacts = append(artifacts, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate artifacts: %w", err)
	}

	return artifacts, nil
}

// Delete removes an artifact record
func (r *ArtifactRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.pool.Exec(ctx, `
		DELETE FROM export_artifacts WHERE id = $1
	`, id)

	if err != nil {
		return fmt.Errorf("failed to delete artifact: %w", err)
	}

	if result.RowsAffected() == 0 {
		return artifact.ErrArtifactNotFound
	}

	return nil
}
