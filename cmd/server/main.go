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

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adminkit/adminkit/internal/artifact"
	"github.com/adminkit/adminkit/internal/audit"
	"github.com/adminkit/adminkit/internal/authz"
	"github.com/adminkit/adminkit/internal/background"
	"github.com/adminkit/adminkit/internal/config"
	"github.com/adminkit/adminkit/internal/identity"
	"github.com/adminkit/adminkit/internal/job"
	"github.com/adminkit/adminkit/internal/observability/logger"
	"github.com/adminkit/adminkit/internal/observability/metrics"
	"github.com/adminkit/adminkit/internal/observability/tracing"
	"github.com/adminkit/adminkit/internal/organization"
	"github.com/adminkit/adminkit/internal/session"
	"github.com/adminkit/adminkit/internal/store/postgres"
	"github.com/adminkit/adminkit/internal/sweep"
	"github.com/adminkit/adminkit/internal/tenantctx"
	transportHTTP "github.com/adminkit/adminkit/internal/transport/http"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})
	slog.Info("starting adminkit server")

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrate(cfg); err != nil {
			fmt.Printf("Migration failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Initialize context
	ctx := context.Background()

	// Initialize tracer
	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   1.0,
	})
	if err != nil {
		slog.Error("failed to initialize tracer", logger.Error(err))
	}
	defer tracer.Shutdown(ctx)

	// Initialize meter
	meter, err := metrics.New(ctx, metrics.Config{
		Enabled: cfg.Observability.OTELEnabled,
	}, cfg.Observability.ServiceName)
	if err != nil {
		slog.Error("failed to initialize meter", logger.Error(err))
	}

	// Initialize database
	db, err := postgres.New(ctx, postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		slog.Error("failed to connect to database", logger.Error(err))
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to database")

	// Initialize repositories
	userRepo := postgres.NewUserRepository(db)
	sessionRepo := postgres.NewSessionRepository(db)
	orgRepo := postgres.NewOrgRepository(db)
	jobRepo := postgres.NewJobRepository(db)
	jobErrorRepo := postgres.NewJobErrorRepository(db)
	artifactRepo := postgres.NewArtifactRepository(db)
	permissionRepo := postgres.NewPermissionRepository(db)

	// Initialize helpers
	auditLogger := audit.NewSlogLogger()
	passwordHasher := identity.NewPasswordHasher(
		cfg.Security.Argon2Memory,
		cfg.Security.Argon2Iterations,
		cfg.Security.Argon2Parallelism,
		cfg.Security.Argon2SaltLength,
		cfg.Security.Argon2KeyLength,
	)

	artifactStore, err := artifact.NewFSStore(cfg.Artifacts.Dir)
	if err != nil {
		slog.Error("failed to initialize artifact store", logger.Error(err))
		os.Exit(1)
	}
	tokenSigner := artifact.NewTokenSigner(cfg.Artifacts.TokenSecret)

	jobMetrics, err := job.NewMetrics(meter.GetMeter())
	if err != nil {
		slog.Error("failed to register job metrics", logger.Error(err))
		os.Exit(1)
	}

	// Background runner owns every goroutine that outlives a request
	runner := background.NewRunner(ctx)

	// Initialize services
	identityService := identity.NewService(userRepo, passwordHasher, auditLogger)
	sessionService := session.NewService(sessionRepo, cfg.Session.Lifetime)
	orgService := organization.NewService(orgRepo, auditLogger)
	gate := authz.NewGate(permissionRepo, auditLogger)

	jobService := job.NewService(
		jobRepo,
		jobErrorRepo,
		artifactRepo,
		artifactStore,
		tokenSigner,
		runner,
		auditLogger,
		jobMetrics,
		job.Config{
			ArtifactExpiry:        cfg.Jobs.ArtifactExpiry,
			ProgressFlushRows:     cfg.Jobs.ProgressFlushRows,
			ProgressFlushInterval: cfg.Jobs.ProgressFlushInterval,
			MaxErrorReportEntries: cfg.Jobs.MaxErrorReportEntries,
		},
	)
	jobService.RegisterEntity(job.EntityUsers,
		job.NewUserImporter(userRepo),
		job.NewUserExporter(userRepo),
	)

	// Sweepers run under the runner with a system identity so their writes
	// are attributable in the audit trail
	systemTC := tenantctx.TenantContext{UserID: "system", UserName: "system"}
	sessionSweeper := sweep.NewSessionSweeper(sessionRepo, auditLogger,
		cfg.Sweep.SessionInitialDelay, cfg.Sweep.SessionInterval)
	artifactSweeper := sweep.NewArtifactSweeper(artifactRepo, artifactStore, jobRepo, auditLogger,
		cfg.Sweep.ArtifactInitialDelay, cfg.Sweep.ArtifactInterval)
	if _, err := runner.Go("sweep:sessions", systemTC, sessionSweeper.Run); err != nil {
		slog.Error("failed to start session sweeper", logger.Error(err))
		os.Exit(1)
	}
	if _, err := runner.Go("sweep:artifacts", systemTC, artifactSweeper.Run); err != nil {
		slog.Error("failed to start artifact sweeper", logger.Error(err))
		os.Exit(1)
	}

	// Rate Limiter
	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	// Configure SameSite mode
	sameSite := http.SameSiteLaxMode
	switch cfg.Session.CookieSameSite {
	case "Strict":
		sameSite = http.SameSiteStrictMode
	case "None":
		sameSite = http.SameSiteNoneMode
	}

	// Initialize HTTP handler
	handler := transportHTTP.NewHandler(
		identityService,
		sessionService,
		orgService,
		jobService,
		gate,
		auditLogger,
		transportHTTP.SessionConfig{
			CookieName:     cfg.Session.CookieName,
			CookieDomain:   cfg.Session.CookieDomain,
			CookiePath:     cfg.Session.CookiePath,
			CookieSecure:   cfg.Session.CookieSecure,
			CookieHTTPOnly: cfg.Session.CookieHTTPOnly,
			CookieSameSite: sameSite,
			CookieMaxAge:   int(cfg.Session.Lifetime.Seconds()),
		},
	)

	// Create router
	router := transportHTTP.NewRouter(handler, rateLimiter)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server
	go func() {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"))
		slog.Info(fmt.Sprintf("listening on %s", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", logger.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	// Stop accepting requests first, then stop background work. Running
	// jobs are cancelled and land in a terminal failed state.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}
	if err := runner.Shutdown(shutdownCtx); err != nil {
		slog.Error("background runner shutdown error", logger.Error(err))
	}

	slog.Info("server stopped")
}

func runMigrate(cfg *config.Config) error {
	ctx := context.Background()
	db, err := postgres.New(ctx, postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Println("Applying initial schema...")
	if err := db.Migrate(ctx, postgres.InitialSchema); err != nil {
		return err
	}
	fmt.Println("Migration successful.")
	return nil
}
