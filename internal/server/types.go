// Package server provides the HTTP API for sticker conversion jobs.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

// CreateJobRequest is the HTTP request body for creating a new job.
type CreateJobRequest struct {
	// FileURL is where the source sticker is downloaded from. Only http and
	// https are accepted.
	FileURL string `json:"file_url" validate:"required,http_url"`
	// UniqueID is the stable unique id of the sticker file.
	UniqueID string `json:"unique_id" validate:"required,max=128"`
	// SetName is the sticker set name, used to name the artifact.
	SetName string `json:"set_name" validate:"omitempty,max=128"`
	// FileName is the declared display name of a video.
	FileName string `json:"file_name" validate:"omitempty,max=255"`
	// MimeType is the declared media type; video/* selects the video path.
	MimeType string `json:"mime_type" validate:"omitempty,max=127"`
}

// CreateJobResponse is the HTTP response after creating a job.
type CreateJobResponse struct {
	// ID is the unique identifier for the created job.
	ID string `json:"id"`
	// Status is the initial job status.
	Status string `json:"status"`
}

// JobResponse is the HTTP response for getting job details.
type JobResponse struct {
	// ID is the unique identifier for the job.
	ID string `json:"id"`
	// Status is the current job status.
	Status string `json:"status"`
	// ErrorKind is the failure kind if the job failed.
	ErrorKind string `json:"error_kind,omitempty"`
	// Error contains the user-facing message if the job failed.
	Error string `json:"error,omitempty"`
	// FileName is the artifact file name once delivered.
	FileName string `json:"file_name,omitempty"`
	// ArtifactBase64 is the base64-encoded artifact (if stored locally).
	ArtifactBase64 string `json:"artifact_base64,omitempty"`
	// ArtifactURL is the S3 URL of the artifact (if uploaded).
	ArtifactURL string `json:"artifact_url,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
