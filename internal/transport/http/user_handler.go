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

package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/adminkit/adminkit/internal/identity"
	"github.com/adminkit/adminkit/internal/observability/logger"
	"github.com/adminkit/adminkit/internal/tenantctx"
)

// ProvisionUserRequest represents user creation data
type ProvisionUserRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// ProvisionUser creates a user in the caller's organization
func (h *Handler) ProvisionUser(w http.ResponseWriter, r *http.Request) {
	tc, _ := tenantctx.From(r.Context())

	var req ProvisionUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.identityService.Provision(r.Context(), tc.OrgID, req.Email, req.Name, req.Password)
	if err != nil {
		switch err {
		case identity.ErrUserAlreadyExists:
			respondError(w, http.StatusConflict, "user already exists")
		case identity.ErrInvalidEmail:
			respondError(w, http.StatusBadRequest, "invalid email address")
		default:
			slog.ErrorContext(r.Context(), "failed to provision user",
				logger.Error(err),
				logger.Email(req.Email),
			)
			respondError(w, http.StatusInternalServerError, "failed to create user")
		}
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"user_id": user.ID,
		"email":   user.Email,
		"name":    user.Name,
	})
}

// ListUsers returns the caller's organization's users
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	tc, _ := tenantctx.From(r.Context())

	users, err := h.identityService.ListUsers(r.Context(), tc.OrgID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list users",
			logger.Error(err),
			logger.OrgID(tc.OrgID),
		)
		respondError(w, http.StatusInternalServerError, "failed to list users")
		return
	}

	type userResponse struct {
		ID     string `json:"id"`
		Email  string `json:"email"`
		Name   string `json:"name"`
		Active bool   `json:"active"`
	}

	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, userResponse{ID: u.ID, Email: u.Email, Name: u.Name, Active: u.Active})
	}

	respondJSON(w, http.StatusOK, map[string]any{"users": out})
}

// BulkDeleteRequest represents a batch of user ids to remove
type BulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

// BulkDeleteUsers removes a batch of users from the caller's organization.
// IDs from other organizations are silently ignored by the store's org guard.
func (h *Handler) BulkDeleteUsers(w http.ResponseWriter, r *http.Request) {
	tc, _ := tenantctx.From(r.Context())

	var req BulkDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.IDs) == 0 {
		respondError(w, http.StatusBadRequest, "ids are required")
		return
	}

	deleted, err := h.identityService.BulkDelete(r.Context(), tc.OrgID, tc.UserID, req.IDs)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to bulk delete users",
			logger.Error(err),
			logger.OrgID(tc.OrgID),
		)
		respondError(w, http.StatusInternalServerError, "failed to delete users")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"requested": len(req.IDs),
		"deleted":   deleted,
	})
}
