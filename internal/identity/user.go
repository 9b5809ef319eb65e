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

package identity

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Domain errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidEmail       = errors.New("invalid email address")
)

// User represents a managed user within an organization. Users are the
// entity bulk import and export jobs operate on; the natural key for
// duplicate detection is (org_id, email).
type User struct {
	ID           string
	OrgID        string
	Email        string
	Name         string
	PasswordHash string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Repository defines the interface for user persistence
type Repository interface {
	// Create creates a new user
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id string) (*User, error)

	// GetByEmail retrieves a user by email within an organization
	GetByEmail(ctx context.Context, orgID, email string) (*User, error)

	// Update overwrites a user's mutable fields
	Update(ctx context.Context, user *User) error

	// ListByOrg returns an organization's users ordered by email
	ListByOrg(ctx context.Context, orgID string) ([]*User, error)

	// BulkDelete removes the given users in one batch. IDs that match no
	// row are ignored; the affected count is returned.
	BulkDelete(ctx context.Context, orgID string, ids []string) (int64, error)
}

// IsValidEmail performs a minimal structural email check
func IsValidEmail(email string) bool {
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	domain := email[at+1:]
	return strings.Contains(domain, ".") && !strings.ContainsAny(email, " \t\n")
}
