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
)

// PermissionRepository implements authz.Checker against the role tables
type PermissionRepository struct {
	db *DB
}

// NewPermissionRepository creates a new permission repository
func NewPermissionRepository(db *DB) *PermissionRepository {
	return &PermissionRepository{db: db}
}

// HasPermission reports whether any of the user's roles grants the permission
// code
func (r *PermissionRepository) HasPermission(ctx context.Context, userID, code string) (bool, error) {
	var exists bool

	err := r.db.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM user_roles ur
			JOIN role_permissions rp ON rp.role_id = ur.role_id
			WHERE ur.user_id = $1 AND rp.permission_code = $2
		)
	`, userID, code).Scan(&exists)

	if err != nil {
		return false, fmt.Errorf("failed to check permission: %w", err)
	}

	return exists, nil
}

// EnsureRole creates a role if it does not exist and returns its id
func (r *PermissionRepository) EnsureRole(ctx context.Context, roleID, orgID, name string) (string, error) {
	var id string

	err := r.db.pool.QueryRow(ctx, `
		INSERT INTO roles (id, org_id, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (org_id, name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`, roleID, orgID, name).Scan(&id)

	if err != nil {
		return "", fmt.Errorf("failed to ensure role: %w", err)
	}

	return id, nil
}

// GrantPermission attaches a permission code to a role
func (r *PermissionRepository) GrantPermission(ctx context.Context, roleID, code string) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO role_permissions (role_id, permission_code)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, roleID, code)

	if err != nil {
		return fmt.Errorf("failed to grant permission: %w", err)
	}

	return nil
}

// AssignRole attaches a role to a user
func (r *PermissionRepository) AssignRole(ctx context.Context, userID, roleID string) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO user_roles (user_id, role_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, userID, roleID)

	if err != nil {
		return fmt.Errorf("failed to assign role: %w", err)
	}

	return nil
}
