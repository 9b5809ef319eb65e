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
	"strconv"

	"github.com/adminkit/adminkit/internal/observability/logger"
	"github.com/adminkit/adminkit/internal/organization"
	"github.com/adminkit/adminkit/internal/tenantctx"
)

// CreateOrganizationRequest represents organization creation data
type CreateOrganizationRequest struct {
	Name string `json:"name"`
}

// CreateOrganization creates a new organization
func (h *Handler) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	tc, _ := tenantctx.From(r.Context())

	var req CreateOrganizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	org, err := h.orgService.Create(r.Context(), req.Name, tc.UserID)
	if err != nil {
		switch err {
		case organization.ErrOrgAlreadyExists:
			respondError(w, http.StatusConflict, "organization already exists")
		default:
			slog.ErrorContext(r.Context(), "failed to create organization", logger.Error(err))
			respondError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	respondJSON(w, http.StatusCreated, org)
}

// ListOrganizations returns organizations with limit/offset paging
func (h *Handler) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	orgs, err := h.orgService.List(r.Context(), limit, offset)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list organizations", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list organizations")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"organizations": orgs})
}
