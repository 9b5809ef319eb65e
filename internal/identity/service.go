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
	"fmt"
	"time"

	"github.com/adminkit/adminkit/internal/audit"
	"github.com/adminkit/adminkit/internal/id"
)

// Service provides identity-related business logic
type Service struct {
	repo        Repository
	hasher      *PasswordHasher
	auditLogger audit.Logger
}

// NewService creates a new identity service
func NewService(repo Repository, hasher *PasswordHasher, auditLogger audit.Logger) *Service {
	return &Service{
		repo:        repo,
		hasher:      hasher,
		auditLogger: auditLogger,
	}
}

// Provision creates a new user within an organization
func (s *Service) Provision(ctx context.Context, orgID, email, name, password string) (*User, error) {
	if !IsValidEmail(email) {
		return nil, ErrInvalidEmail
	}

	if existing, err := s.repo.GetByEmail(ctx, orgID, email); err == nil && existing != nil {
		return nil, ErrUserAlreadyExists
	}

	now := time.Now()
	user := &User{
		ID:        id.NewUUIDv7(),
		OrgID:     orgID,
		Email:     email,
		Name:      name,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if password != "" {
		hash, err := s.hasher.Hash(password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		user.PasswordHash = hash
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeUserCreated,
		OrgID:    orgID,
		ActorID:  user.ID,
		Resource: "user",
		Metadata: map[string]any{"email": email},
	})

	return user, nil
}

// Authenticate authenticates a user with email and password
func (s *Service) Authenticate(ctx context.Context, orgID, email, password string) (*User, error) {
	user, err := s.repo.GetByEmail(ctx, orgID, email)
	if err != nil {
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeLoginFailed,
			OrgID:    orgID,
			Resource: "login",
			Metadata: map[string]any{"reason": "user_not_found", "email": email},
		})
		return nil, ErrInvalidCredentials
	}

	if !user.Active || user.PasswordHash == "" {
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeLoginFailed,
			OrgID:    orgID,
			ActorID:  user.ID,
			Resource: "login",
			Metadata: map[string]any{"reason": "inactive_or_passwordless"},
		})
		return nil, ErrInvalidCredentials
	}

	valid, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil || !valid {
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeLoginFailed,
			OrgID:    orgID,
			ActorID:  user.ID,
			Resource: "login",
			Metadata: map[string]any{"reason": "bad_password"},
		})
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// GetUser retrieves a user by ID
func (s *Service) GetUser(ctx context.Context, userID string) (*User, error) {
	return s.repo.GetByID(ctx, userID)
}

// ListUsers returns an organization's users
func (s *Service) ListUsers(ctx context.Context, orgID string) ([]*User, error) {
	return s.repo.ListByOrg(ctx, orgID)
}

// BulkDelete removes a set of users in one batch operation
func (s *Service) BulkDelete(ctx context.Context, orgID, actorID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	deleted, err := s.repo.BulkDelete(ctx, orgID, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to bulk delete users: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeUsersBulkDeleted,
		OrgID:    orgID,
		ActorID:  actorID,
		Resource: "user",
		Metadata: map[string]any{"requested": len(ids), "deleted": deleted},
	})

	return deleted, nil
}
