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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/adminkit/adminkit/internal/job"
	"github.com/adminkit/adminkit/internal/observability/logger"
	"github.com/adminkit/adminkit/internal/tenantctx"
)

// maxImportBody caps an import upload at 100 MiB
const maxImportBody = 100 << 20

// SubmitImport accepts a multipart upload and starts a background import.
// The response carries the job id; the caller polls GetJob for progress.
func (h *Handler) SubmitImport(w http.ResponseWriter, r *http.Request) {
	tc, _ := tenantctx.From(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxImportBody)
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	format := job.Format(r.FormValue("format"))
	if format == "" {
		format = formatFromFilename(header.Filename)
	}

	spec := job.ImportSpec{
		EntityType:        r.FormValue("entity_type"),
		Format:            format,
		DuplicateStrategy: job.DuplicateStrategy(r.FormValue("duplicate_strategy")),
	}
	if spec.EntityType == "" {
		spec.EntityType = job.EntityUsers
	}

	j, err := h.jobService.SubmitImport(r.Context(), tc, file, spec)
	if err != nil {
		switch {
		case errors.Is(err, job.ErrUnknownEntity):
			respondError(w, http.StatusBadRequest, "unknown entity type")
		case errors.Is(err, job.ErrUnknownFormat):
			respondError(w, http.StatusBadRequest, "format must be csv or json")
		default:
			slog.ErrorContext(r.Context(), "failed to submit import",
				logger.Error(err),
				logger.OrgID(tc.OrgID),
			)
			respondError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	respondJSON(w, http.StatusAccepted, j)
}

// ExportRequest describes a requested export
type ExportRequest struct {
	EntityType string `json:"entity_type"`
	Format     string `json:"format"`
}

// SubmitExport starts a background export
func (h *Handler) SubmitExport(w http.ResponseWriter, r *http.Request) {
	tc, _ := tenantctx.From(r.Context())

	var req ExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.EntityType == "" {
		req.EntityType = job.EntityUsers
	}

	j, err := h.jobService.SubmitExport(r.Context(), tc, job.ExportSpec{
		EntityType: req.EntityType,
		Format:     job.Format(req.Format),
	})
	if err != nil {
		switch {
		case errors.Is(err, job.ErrUnknownEntity):
			respondError(w, http.StatusBadRequest, "unknown entity type")
		case errors.Is(err, job.ErrUnknownFormat):
			respondError(w, http.StatusBadRequest, "format must be csv or json")
		default:
			slog.ErrorContext(r.Context(), "failed to submit export",
				logger.Error(err),
				logger.OrgID(tc.OrgID),
			)
			respondError(w, http.StatusInternalServerError, "failed to submit export")
		}
		return
	}

	respondJSON(w, http.StatusAccepted, j)
}

// GetJob returns a job snapshot. Jobs of other organizations are
// indistinguishable from jobs that do not exist.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	tc, _ := tenantctx.From(r.Context())
	jobID := chi.URLParam(r, "jobID")

	j, err := h.jobService.Get(r.Context(), jobID)
	if err != nil || j.OrgID != tc.OrgID {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}

	respondJSON(w, http.StatusOK, j)
}

// GetJobErrors returns a job's row-level error report
func (h *Handler) GetJobErrors(w http.ResponseWriter, r *http.Request) {
	tc, _ := tenantctx.From(r.Context())
	jobID := chi.URLParam(r, "jobID")

	j, err := h.jobService.Get(r.Context(), jobID)
	if err != nil || j.OrgID != tc.OrgID {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}

	if j.ErrorReportID == "" {
		respondJSON(w, http.StatusOK, map[string]any{
			"job_id":  j.ID,
			"entries": []job.ErrorEntry{},
		})
		return
	}

	entries, err := h.jobService.ErrorReport(r.Context(), j.ErrorReportID)
	if err != nil {
		if errors.Is(err, job.ErrReportNotFound) {
			respondError(w, http.StatusNotFound, "error report not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to load error report",
			logger.Error(err),
			logger.JobID(j.ID),
		)
		respondError(w, http.StatusInternalServerError, "failed to load error report")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"job_id":  j.ID,
		"entries": entries,
	})
}

// Download streams an export artifact. The signed token in the URL is the
// sole credential; anything invalid, expired, or already reclaimed is Gone.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	rc, j, err := h.jobService.Download(r.Context(), token)
	if err != nil {
		respondError(w, http.StatusGone, "download expired or unavailable")
		return
	}
	defer rc.Close()

	filename := fmt.Sprintf("%s-%s.%s", j.EntityType, j.ID, j.Format)
	w.Header().Set("Content-Type", contentTypeForFormat(j.Format))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if j.FileSizeBytes > 0 {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", j.FileSizeBytes))
	}

	if _, err := io.Copy(w, rc); err != nil {
		slog.ErrorContext(r.Context(), "failed to stream download",
			logger.Error(err),
			logger.JobID(j.ID),
		)
	}
}

func formatFromFilename(name string) job.Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return job.FormatCSV
	case ".json":
		return job.FormatJSON
	default:
		return ""
	}
}

func contentTypeForFormat(f job.Format) string {
	switch f {
	case job.FormatJSON:
		return "application/json"
	default:
		return "text/csv"
	}
}
