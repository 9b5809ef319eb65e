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

package session

import (
	"context"
	"fmt"
	"time"

	"github.com/adminkit/adminkit/internal/id"
)

// Service provides session management business logic
type Service struct {
	repo     Repository
	lifetime time.Duration
}

// NewService creates a new session service
func NewService(repo Repository, lifetime time.Duration) *Service {
	return &Service{
		repo:     repo,
		lifetime: lifetime,
	}
}

// Create starts a new session for a user
func (s *Service) Create(ctx context.Context, orgID, userID, userName, ipAddress, userAgent string) (*Session, error) {
	now := time.Now()
	sess := &Session{
		ID:         id.NewUUIDv7(),
		OrgID:      orgID,
		UserID:     userID,
		UserName:   userName,
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		Active:     true,
		ExpiresAt:  now.Add(s.lifetime),
		CreatedAt:  now,
		LastSeenAt: now,
	}

	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return sess, nil
}

// Get retrieves a session, rejecting expired or deactivated ones
func (s *Service) Get(ctx context.Context, sessionID string) (*Session, error) {
	sess, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if !sess.Active {
		return nil, ErrSessionInactive
	}
	if sess.IsExpired() {
		return nil, ErrSessionExpired
	}

	return sess, nil
}

// Refresh updates the session's last seen time
func (s *Service) Refresh(ctx context.Context, sessionID string) error {
	return s.repo.Touch(ctx, sessionID, time.Now())
}

// Delete deactivates a session (logout)
func (s *Service) Delete(ctx context.Context, sessionID string) error {
	return s.repo.Deactivate(ctx, sessionID)
}
