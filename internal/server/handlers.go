package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/sticker-bridge/internal/job"
	"github.com/maauso/sticker-bridge/internal/job/id"
	"github.com/maauso/sticker-bridge/internal/storage"
)

// maxRequestBody caps the size of a JSON request body.
const maxRequestBody = 1 << 20

// JobService is the subset of *job.Service the handlers use.
type JobService interface {
	CreateJob(ctx context.Context, req job.Request) (*job.Job, error)
	Process(ctx context.Context, j *job.Job) (*job.Job, error)
	GetJob(ctx context.Context, id string) (*job.Job, error)
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service            JobService
	repo               job.Repository
	artifacts          storage.Storage
	validator          *validator.Validate
	logger             *slog.Logger
	enableAsyncProcess bool
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithAsyncProcessing enables or disables background processing.
// When disabled, CreateJob only creates the job and returns immediately
// without starting background processing.
func WithAsyncProcessing(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.enableAsyncProcess = enabled
	}
}

// NewHandlers creates a new Handlers instance. repo is used to persist
// artifact deletions; artifacts reads locally stored results.
func NewHandlers(service JobService, repo job.Repository, artifacts storage.Storage, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:            service,
		repo:               repo,
		artifacts:          artifacts,
		validator:          validator.New(),
		logger:             logger,
		enableAsyncProcess: true, // Default to enabled
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// CreateJob handles POST /jobs requests.
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	// Validate request
	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	// Create job first (synchronously)
	createdJob, err := h.service.CreateJob(r.Context(), job.Request{
		FileRef:  req.FileURL,
		UniqueID: req.UniqueID,
		SetName:  req.SetName,
		FileName: req.FileName,
		MimeType: req.MimeType,
	})
	if err != nil {
		h.logger.Error("failed to create job",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create job", "JOB_CREATION_FAILED")
		return
	}

	// Start processing in background with a detached context
	// Use context.WithoutCancel to prevent cancellation when the request ends
	if h.enableAsyncProcess {
		go func(ctx context.Context, j *job.Job) {
			if _, processErr := h.service.Process(ctx, j); processErr != nil {
				h.logger.Error("background processing failed",
					slog.String("job_id", j.ID),
					slog.String("error", processErr.Error()),
				)
			}
		}(context.WithoutCancel(r.Context()), createdJob)
	}

	h.logger.Info("job created",
		slog.String("job_id", createdJob.ID),
		slog.String("unique_id", req.UniqueID),
	)

	writeJSON(w, http.StatusAccepted, CreateJobResponse{
		ID:     createdJob.ID,
		Status: string(createdJob.Status),
	})
}

// GetJob handles GET /jobs/{id} requests.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	foundJob, ok := h.findJob(w, r)
	if !ok {
		return
	}

	resp := JobResponse{
		ID:        foundJob.ID,
		Status:    string(foundJob.Status),
		ErrorKind: foundJob.ErrorKind,
		Error:     foundJob.Error,
	}

	// Include the artifact if delivered
	if foundJob.Status == job.StatusDelivered {
		resp.FileName = foundJob.ArtifactName
		loc := foundJob.ArtifactLocation
		switch {
		case isURL(loc):
			resp.ArtifactURL = loc
		case filepath.IsAbs(loc):
			data, err := h.readArtifact(r.Context(), loc)
			if err != nil {
				h.logger.Error("failed to read artifact",
					slog.String("job_id", foundJob.ID),
					slog.String("path", loc),
					slog.String("error", err.Error()),
				)
				// Don't fail the request, just log and omit the artifact
			} else {
				resp.ArtifactBase64 = base64.StdEncoding.EncodeToString(data)
			}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// DeleteJobArtifact handles POST /jobs/{id}/artifact/delete requests.
// It removes a locally stored artifact and clears the job's location.
// Deleting an already missing artifact succeeds.
func (h *Handlers) DeleteJobArtifact(w http.ResponseWriter, r *http.Request) {
	foundJob, ok := h.findJob(w, r)
	if !ok {
		return
	}

	loc := foundJob.ArtifactLocation
	if filepath.IsAbs(loc) {
		if err := h.artifacts.RemoveArtifacts(r.Context(), []string{loc}); err != nil {
			h.logger.Error("failed to delete artifact",
				slog.String("job_id", foundJob.ID),
				slog.String("path", loc),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to delete artifact", "ARTIFACT_DELETE_FAILED")
			return
		}
	}

	foundJob.ClearArtifact()
	if err := h.repo.Save(r.Context(), foundJob); err != nil {
		h.logger.Error("failed to save job",
			slog.String("job_id", foundJob.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to update job", "JOB_UPDATE_FAILED")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// findJob loads the job named by the {id} path value, writing the error
// response itself when that fails.
func (h *Handlers) findJob(w http.ResponseWriter, r *http.Request) (*job.Job, bool) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return nil, false
	}
	if !id.Valid(jobID) {
		writeError(w, http.StatusBadRequest, "malformed job ID", "INVALID_JOB_ID")
		return nil, false
	}

	foundJob, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
			return nil, false
		}
		h.logger.Error("failed to get job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get job", "JOB_FETCH_FAILED")
		return nil, false
	}
	return foundJob, true
}

func (h *Handlers) readArtifact(ctx context.Context, path string) ([]byte, error) {
	rc, err := h.artifacts.LoadArtifact(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	return io.ReadAll(rc)
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://")
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
