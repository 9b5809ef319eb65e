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

	"github.com/adminkit/adminkit/internal/identity"
)

// UserRepository implements identity.Repository
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *identity.User) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO users (id, org_id, email, name, password_hash, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		user.ID, user.OrgID, user.Email, user.Name, user.PasswordHash,
		user.Active, user.CreatedAt, user.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*identity.User, error) {
	return r.get(ctx, `WHERE id = $1`, id)
}

// GetByEmail retrieves a user by email within an organization. When the
// create_new duplicate strategy has produced several records for one email,
// the oldest one is returned.
func (r *UserRepository) GetByEmail(ctx context.Context, orgID, email string) (*identity.User, error) {
	return r.get(ctx, `WHERE org_id = $1 AND email = $2 ORDER BY created_at LIMIT 1`, orgID, email)
}

func (r *UserRepository) get(ctx context.Context, where string, args ...any) (*identity.User, error) {
	var user identity.User

	err := r.db.pool.QueryRow(ctx, `
		SELECT id, org_id, email, name, password_hash, active, created_at, updated_at
		FROM users
	`+where, args...).Scan(
		&user.ID, &user.OrgID, &user.Email, &user.Name, &user.PasswordHash,
		&user.Active, &user.CreatedAt, &user.UpdatedAt,
	)

	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, identity.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// Update overwrites a user's mutable fields
func (r *UserRepository) Update(ctx context.Context, user *identity.User) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE users SET email = $2, name = $3, password_hash = $4, active = $5, updated_at = $6
		WHERE id = $1
	`,
		user.ID, user.Email, user.Name, user.PasswordHash, user.Active, user.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	if result.RowsAffected() == 0 {
		return identity.ErrUserNotFound
	}

	return nil
}

// ListByOrg returns an organization's users ordered by email
func (r *UserRepository) ListByOrg(ctx context.Context, orgID string) ([]*identity.User, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, org_id, email, name, password_hash, active, created_at, updated_at
		FROM users
		WHERE org_id = $1
		ORDER BY email, created_at
	`, orgID)

	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*identity.User
	for rows.Next() {
		var user identity.User
		if err := rows.Scan(
			&user.ID, &user.OrgID, &user.Email, &user.Name, &user.PasswordHash,
			&user.Active, &user.CreatedAt, &user.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, &user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	return users, nil
}

// BulkDelete removes the given users in one statement. The org_id guard keeps
// a caller from deleting another organization's users by guessing ids.
func (r *UserRepository) BulkDelete(ctx context.Context, orgID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	result, err := r.db.pool.Exec(ctx, `
		DELETE FROM users
		WHERE org_id = $1 AND id = ANY($2)
	`, orgID, ids)

	if err != nil {
		return 0, fmt.Errorf("failed to bulk delete users: %w", err)
	}

	return result.RowsAffected(), nil
}
