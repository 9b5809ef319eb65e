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
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/adminkit/adminkit/internal/authz"
	"github.com/adminkit/adminkit/internal/observability/logger"
	"github.com/adminkit/adminkit/internal/tenantctx"
)

// Tenant Context Principles:
// 1. The organization is derived EXCLUSIVELY from the session
// 2. X-Org-ID or similar headers are rejected on authenticated routes
// 3. Background work receives the identity explicitly, never from a request

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Log request start
			slog.InfoContext(r.Context(), "http_request_start",
				logger.RequestID(middleware.GetReqID(r.Context())),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.RemoteAddr(r.RemoteAddr),
			)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				slog.InfoContext(r.Context(), "http_request_end",
					logger.RequestID(middleware.GetReqID(r.Context())),
					logger.Method(r.Method),
					logger.Path(r.URL.Path),
					logger.RemoteAddr(r.RemoteAddr),
					logger.UserAgent(r.UserAgent()),
					logger.StatusCode(ww.Status()),
					logger.Duration(time.Since(start).Milliseconds()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// AuthMiddleware validates the session cookie and installs the session's
// tenant identity as the request's TenantContext
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := h.getSessionFromCookie(r)
		if sessionID == "" {
			respondError(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		sess, err := h.sessionService.Get(r.Context(), sessionID)
		if err != nil {
			h.clearSessionCookie(w)
			respondError(w, http.StatusUnauthorized, "invalid or expired session")
			return
		}

		// Refresh session
		if err := h.sessionService.Refresh(r.Context(), sessionID); err != nil {
			slog.ErrorContext(r.Context(), "failed to refresh session", logger.Error(err))
		}

		// The organization comes from the session alone. A client-supplied
		// org header on an authenticated request is a spoofing attempt.
		if r.Header.Get("X-Org-ID") != "" {
			slog.WarnContext(r.Context(), "org header spoofing attempt on authenticated route",
				logger.SessionID(sess.ID),
				logger.UserID(sess.UserID),
			)
			respondError(w, http.StatusBadRequest, "X-Org-ID header is not allowed; the organization is derived from the session")
			return
		}

		ctx := tenantctx.With(r.Context(), tenantctx.TenantContext{
			OrgID:    sess.OrgID,
			UserID:   sess.UserID,
			UserName: sess.UserName,
		})
		ctx = context.WithValue(ctx, sessionIDKey, sess.ID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePermission gates a route on a permission requirement. Denials do not
// reveal which permission was missing; backend failures are distinguishable
// from denials by status code only.
func (h *Handler) RequirePermission(req authz.Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tc, _ := tenantctx.From(r.Context())

			if err := h.gate.Authorize(r.Context(), tc, req); err != nil {
				switch {
				case errors.Is(err, authz.ErrUnauthenticated):
					respondError(w, http.StatusUnauthorized, "not authenticated")
				case errors.Is(err, authz.ErrPermissionDenied):
					respondError(w, http.StatusForbidden, "permission denied")
				default:
					respondError(w, http.StatusInternalServerError, "authorization unavailable")
				}
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
