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
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/adminkit/adminkit/internal/audit"
	"github.com/adminkit/adminkit/internal/authz"
	"github.com/adminkit/adminkit/internal/identity"
	"github.com/adminkit/adminkit/internal/job"
	"github.com/adminkit/adminkit/internal/observability/logger"
	"github.com/adminkit/adminkit/internal/organization"
	"github.com/adminkit/adminkit/internal/session"
	"github.com/adminkit/adminkit/internal/tenantctx"
)

// Handler holds HTTP handlers and dependencies
type Handler struct {
	identityService *identity.Service
	sessionService  *session.Service
	orgService      *organization.Service
	jobService      *job.Service
	gate            *authz.Gate
	auditLogger     audit.Logger
	sessionConfig   SessionConfig
}

// SessionConfig holds session cookie configuration
type SessionConfig struct {
	CookieName     string
	CookieDomain   string
	CookiePath     string
	CookieSecure   bool
	CookieHTTPOnly bool
	CookieSameSite http.SameSite
	CookieMaxAge   int
}

// NewHandler creates a new HTTP handler
func NewHandler(
	identityService *identity.Service,
	sessionService *session.Service,
	orgService *organization.Service,
	jobService *job.Service,
	gate *authz.Gate,
	auditLogger audit.Logger,
	sessionConfig SessionConfig,
) *Handler {
	return &Handler{
		identityService: identityService,
		sessionService:  sessionService,
		orgService:      orgService,
		jobService:      jobService,
		gate:            gate,
		auditLogger:     auditLogger,
		sessionConfig:   sessionConfig,
	}
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RateLimitMiddleware(rateLimiter))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check
	r.Get("/health", h.HealthCheck)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", h.Login)

		// Downloads are authorized by the signed token in the URL, not by a
		// session: exported files are fetched from contexts (curl, spreadsheet
		// tools) that carry no cookie.
		r.Get("/downloads/{token}", h.Download)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)

			r.Post("/auth/logout", h.Logout)
			r.Get("/auth/me", h.GetCurrentUser)

			r.Route("/orgs", func(r chi.Router) {
				r.With(h.RequirePermission(authz.Require("org.create", authz.PermissionOrgsManage))).
					Post("/", h.CreateOrganization)
				r.With(h.RequirePermission(authz.Require("org.list", authz.PermissionOrgsManage))).
					Get("/", h.ListOrganizations)
			})

			r.Route("/users", func(r chi.Router) {
				r.With(h.RequirePermission(authz.Require("user.create", authz.PermissionUsersManage))).
					Post("/", h.ProvisionUser)
				r.Get("/", h.ListUsers)
				r.With(h.RequirePermission(authz.Require("user.bulk_delete", authz.PermissionUsersManage))).
					Post("/bulk-delete", h.BulkDeleteUsers)
			})

			r.Route("/jobs", func(r chi.Router) {
				r.With(h.RequirePermission(authz.Require("job.import", authz.PermissionUsersImport))).
					Post("/import", h.SubmitImport)
				r.With(h.RequirePermission(authz.Require("job.export", authz.PermissionUsersExport))).
					Post("/export", h.SubmitExport)

				r.Group(func(r chi.Router) {
					r.Use(h.RequirePermission(authz.Require("job.read", authz.PermissionJobsRead)))
					r.Get("/{jobID}", h.GetJob)
					r.Get("/{jobID}/errors", h.GetJobErrors)
				})
			})
		})
	})

	return r
}

// HealthCheck returns the health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "adminkit",
	})
}

// LoginRequest represents login credentials
type LoginRequest struct {
	OrgID    string `json:"org_id"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates a user and creates a session
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OrgID == "" || req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "org_id, email and password are required")
		return
	}

	user, err := h.identityService.Authenticate(r.Context(), req.OrgID, req.Email, req.Password)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	sess, err := h.sessionService.Create(
		r.Context(),
		user.OrgID,
		user.ID,
		user.Name,
		getIPAddress(r),
		r.UserAgent(),
	)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to create session", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	h.setSessionCookie(w, sess.ID)

	h.auditLogger.Log(r.Context(), audit.Event{
		Type:      audit.TypeLoginSuccess,
		OrgID:     user.OrgID,
		ActorID:   user.ID,
		Resource:  "session",
		IPAddress: getIPAddress(r),
		UserAgent: r.UserAgent(),
		Metadata:  map[string]any{"session_id": sess.ID},
	})

	respondJSON(w, http.StatusOK, map[string]any{
		"user_id": user.ID,
		"org_id":  user.OrgID,
		"email":   user.Email,
	})
}

// Logout destroys the current session
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	sessionID := GetSessionID(r.Context())
	tc, _ := tenantctx.From(r.Context())

	if sessionID != "" {
		if err := h.sessionService.Delete(r.Context(), sessionID); err != nil {
			slog.ErrorContext(r.Context(), "failed to delete session", logger.Error(err))
		}
		h.auditLogger.Log(r.Context(), audit.Event{
			Type:      audit.TypeLogout,
			OrgID:     tc.OrgID,
			ActorID:   tc.UserID,
			Resource:  "session",
			IPAddress: getIPAddress(r),
			UserAgent: r.UserAgent(),
		})
	}

	h.clearSessionCookie(w)

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "logged out successfully",
	})
}

// GetCurrentUser returns the authenticated principal
func (h *Handler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	tc, _ := tenantctx.From(r.Context())

	user, err := h.identityService.GetUser(r.Context(), tc.UserID)
	if err != nil {
		respondError(w, http.StatusNotFound, "user not found")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"user_id": user.ID,
		"org_id":  user.OrgID,
		"email":   user.Email,
		"name":    user.Name,
		"active":  user.Active,
	})
}

// Helper functions
func (h *Handler) setSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.sessionConfig.CookieName,
		Value:    sessionID,
		Path:     h.sessionConfig.CookiePath,
		Domain:   h.sessionConfig.CookieDomain,
		Secure:   h.sessionConfig.CookieSecure,
		HttpOnly: h.sessionConfig.CookieHTTPOnly,
		SameSite: h.sessionConfig.CookieSameSite,
		MaxAge:   h.sessionConfig.CookieMaxAge,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:   h.sessionConfig.CookieName,
		Value:  "",
		Path:   h.sessionConfig.CookiePath,
		Domain: h.sessionConfig.CookieDomain,
		MaxAge: -1,
	})
}

func (h *Handler) getSessionFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(h.sessionConfig.CookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

func getIPAddress(r *http.Request) string {
	// Check X-Forwarded-For header first
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	// Check X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
