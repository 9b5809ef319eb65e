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

// Package authz evaluates declarative permission requirements before a
// protected action runs. The gate is the single auditable choke point for
// authorization: every denial and every backend failure is logged here, and
// ambiguity always resolves to deny.
package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/adminkit/adminkit/internal/audit"
	"github.com/adminkit/adminkit/internal/observability/logger"
	"github.com/adminkit/adminkit/internal/tenantctx"
)

// Domain errors
var (
	// ErrUnauthenticated means no principal is present; no permission check
	// was performed.
	ErrUnauthenticated = errors.New("not authenticated")

	// ErrPermissionDenied means an authenticated principal lacks a required
	// permission code.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrCheckFailed means the permission backend could not answer. The gate
	// fails secure: the action is rejected, distinguishably from a genuine
	// denial.
	ErrCheckFailed = errors.New("permission check failed")
)

// Checker is the external capability the gate consumes. It does not own
// permission storage.
type Checker interface {
	HasPermission(ctx context.Context, userID, code string) (bool, error)
}

// Requirement declares the permission codes an action demands. All codes must
// hold (AND semantics); an empty code list allows any authenticated principal.
type Requirement struct {
	Action string
	Codes  []string
}

// Require builds a Requirement for an action.
func Require(action string, codes ...string) Requirement {
	return Requirement{Action: action, Codes: codes}
}

// Gate authorizes actions against required permission codes.
type Gate struct {
	checker     Checker
	auditLogger audit.Logger
}

// NewGate creates a new permission gate.
func NewGate(checker Checker, auditLogger audit.Logger) *Gate {
	return &Gate{
		checker:     checker,
		auditLogger: auditLogger,
	}
}

// Authorize evaluates req for the acting principal. Codes are checked in the
// order given and evaluation stops at the first failure.
func (g *Gate) Authorize(ctx context.Context, tc tenantctx.TenantContext, req Requirement) error {
	if tc.UserID == "" {
		return ErrUnauthenticated
	}

	for _, code := range req.Codes {
		ok, err := g.checker.HasPermission(ctx, tc.UserID, code)
		if err != nil {
			slog.ErrorContext(ctx, "permission check error",
				logger.Component("authz"),
				logger.Permission(code),
				logger.UserID(tc.UserID),
				logger.Action(req.Action),
				logger.Error(err),
			)
			return fmt.Errorf("%w: %s: %v", ErrCheckFailed, code, err)
		}
		if !ok {
			slog.WarnContext(ctx, "permission denied",
				logger.Component("authz"),
				logger.Permission(code),
				logger.UserID(tc.UserID),
				logger.Action(req.Action),
			)
			g.auditLogger.Log(ctx, audit.Event{
				Type:     audit.TypePermissionDenied,
				OrgID:    tc.OrgID,
				ActorID:  tc.UserID,
				Resource: req.Action,
				Metadata: map[string]any{"permission": code},
			})
			return fmt.Errorf("%w: %s", ErrPermissionDenied, code)
		}
	}

	return nil
}
