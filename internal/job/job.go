// Package job provides the Job aggregate for sticker conversion requests.
// It includes the Job entity with its state machine, the repository port
// used to persist jobs, and the Service that drives a job through fetch,
// conversion and delivery.
package job

import (
	"errors"
	"sync"
	"time"

	"github.com/maauso/sticker-bridge/internal/job/id"
)

// Status represents the current state of a Job.
type Status string

const (
	// StatusReceived indicates the request was accepted and nothing has run yet.
	StatusReceived Status = "RECEIVED"
	// StatusDownloading indicates the source file is being fetched.
	StatusDownloading Status = "DOWNLOADING"
	// StatusConverting indicates the payload is being converted.
	StatusConverting Status = "CONVERTING"
	// StatusDelivered indicates the artifact reached the user.
	StatusDelivered Status = "DELIVERED"
	// StatusFailed indicates the job stopped with an error.
	StatusFailed Status = "FAILED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusReceived:    {StatusDownloading, StatusFailed},
	StatusDownloading: {StatusConverting, StatusFailed},
	StatusConverting:  {StatusDelivered, StatusFailed},
	StatusDelivered:   {},
	StatusFailed:      {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Request describes one sticker the user asked to convert.
type Request struct {
	// ChatID is the conversation the result is delivered to. Zero for
	// requests that did not come from a chat.
	ChatID int64
	// FileRef locates the source file for the Fetcher (a file id or a URL).
	FileRef string
	// UniqueID is the stable unique id of the file on the source platform.
	UniqueID string
	// SetName is the sticker set name, if any.
	SetName string
	// FileName is the declared display name, if any.
	FileName string
	// MimeType is the declared media type, if any.
	MimeType string
}

// Job represents a sticker conversion job aggregate.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job.
	ID string
	// Status is the current job state.
	Status Status
	// Request is what the user asked for.
	Request Request
	// PlaceholderID is the id of the progress message shown to the user.
	PlaceholderID int
	// MediaKind is the detected media kind of the source payload.
	MediaKind string
	// ArtifactName is the file name of the converted artifact.
	ArtifactName string
	// ArtifactLocation is where the artifact was delivered (path, URL or
	// message reference, depending on the Deliverer).
	ArtifactLocation string
	// ErrorKind is the failure kind if the job failed.
	ErrorKind string
	// Error contains the user-facing error message if the job failed.
	Error string
	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// StartedAt is when the download started.
	StartedAt time.Time
	// CompletedAt is when the job reached a terminal state.
	CompletedAt time.Time
}

// New creates a new Job for req with a generated ID and initial RECEIVED status.
func New(req Request) *Job {
	return NewWithID(id.Generate(), req)
}

// NewWithID creates a new Job with the specified ID and initial RECEIVED status.
// Useful for testing or when ID needs to be externally generated.
func NewWithID(jobID string, req Request) *Job {
	now := time.Now()
	return &Job{
		ID:        jobID,
		Status:    StatusReceived,
		Request:   req,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.transitionLocked(status)
}

func (j *Job) transitionLocked(status Status) error {
	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	// Set timestamps based on state
	switch status {
	case StatusDownloading:
		j.StartedAt = j.UpdatedAt
	case StatusDelivered, StatusFailed:
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// StartDownload transitions the job from RECEIVED to DOWNLOADING and
// records the placeholder message shown to the user.
func (j *Job) StartDownload(placeholderID int) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.transitionLocked(StatusDownloading); err != nil {
		return err
	}
	j.PlaceholderID = placeholderID
	return nil
}

// StartConversion transitions the job from DOWNLOADING to CONVERTING.
func (j *Job) StartConversion() error {
	return j.TransitionTo(StatusConverting)
}

// Deliver transitions the job to DELIVERED and records the artifact.
func (j *Job) Deliver(mediaKind, artifactName, location string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.transitionLocked(StatusDelivered); err != nil {
		return err
	}
	j.MediaKind = mediaKind
	j.ArtifactName = artifactName
	j.ArtifactLocation = location
	return nil
}

// Fail transitions the job to FAILED with a failure kind and user-facing message.
// Returns ErrInvalidTransition if the job is already terminal.
func (j *Job) Fail(kind, message string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.transitionLocked(StatusFailed); err != nil {
		return err
	}
	j.ErrorKind = kind
	j.Error = message
	return nil
}

// ClearArtifact forgets where the artifact was delivered.
// This is used when the stored artifact is deleted.
func (j *Job) ClearArtifact() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ArtifactLocation = ""
	j.UpdatedAt = time.Now()
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status == StatusDelivered || j.Status == StatusFailed
}

// Clone creates a copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return &Job{
		ID:               j.ID,
		Status:           j.Status,
		Request:          j.Request,
		PlaceholderID:    j.PlaceholderID,
		MediaKind:        j.MediaKind,
		ArtifactName:     j.ArtifactName,
		ArtifactLocation: j.ArtifactLocation,
		ErrorKind:        j.ErrorKind,
		Error:            j.Error,
		CreatedAt:        j.CreatedAt,
		UpdatedAt:        j.UpdatedAt,
		StartedAt:        j.StartedAt,
		CompletedAt:      j.CompletedAt,
	}
}
