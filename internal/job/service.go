package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maauso/sticker-bridge/internal/convert"
)

// PlaceholderText is shown to the user while a job runs.
const PlaceholderText = "Downloading file"

// Notifier shows and resolves the progress placeholder in a chat.
type Notifier interface {
	// Placeholder posts text and returns the id of the posted message.
	Placeholder(ctx context.Context, chatID int64, text string) (int, error)
	// Replace swaps the placeholder's text.
	Replace(ctx context.Context, chatID int64, messageID int, text string) error
	// Retract removes the placeholder.
	Retract(ctx context.Context, chatID int64, messageID int) error
}

// Fetcher downloads the source file a request refers to.
type Fetcher interface {
	Fetch(ctx context.Context, fileRef string) ([]byte, error)
}

// Converter turns a fetched payload into an artifact.
type Converter interface {
	Convert(ctx context.Context, src convert.SourceMedia) (convert.Artifact, error)
}

// Deliverer hands a converted artifact to the user and returns where it went.
type Deliverer interface {
	Deliver(ctx context.Context, job *Job, artifact convert.Artifact) (string, error)
}

// Service drives jobs through download, conversion and delivery, keeping
// the user's placeholder message in step with the outcome.
type Service struct {
	repo      Repository
	notifier  Notifier
	fetcher   Fetcher
	converter Converter
	deliverer Deliverer
	logger    *slog.Logger
}

// NewService creates a new Service.
func NewService(
	repo Repository,
	notifier Notifier,
	fetcher Fetcher,
	converter Converter,
	deliverer Deliverer,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		notifier:  notifier,
		fetcher:   fetcher,
		converter: converter,
		deliverer: deliverer,
		logger:    logger,
	}
}

// Handle creates a job for req and processes it to a terminal state.
// On failure the returned error is a *convert.Error.
func (s *Service) Handle(ctx context.Context, req Request) (*Job, error) {
	job, err := s.CreateJob(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.Process(ctx, job)
}

// CreateJob creates a new job in RECEIVED status and persists it.
func (s *Service) CreateJob(ctx context.Context, req Request) (*Job, error) {
	job := New(req)

	s.logger.Info("creating new job",
		slog.String("job_id", job.ID),
		slog.Int64("chat_id", req.ChatID),
		slog.String("unique_id", req.UniqueID),
		slog.String("mime_type", req.MimeType),
	)

	if err := s.repo.Save(ctx, job); err != nil {
		s.logger.Error("failed to save job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("save job: %w", err)
	}
	return job, nil
}

// GetJob retrieves a job by ID.
func (s *Service) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.FindByID(ctx, id)
}

// PruneJobs removes terminal jobs that completed more than maxAge ago.
func (s *Service) PruneJobs(ctx context.Context, maxAge time.Duration) ([]*Job, error) {
	removed, err := s.repo.DeleteTerminalBefore(ctx, time.Now().Add(-maxAge))
	if err != nil {
		return nil, fmt.Errorf("prune jobs: %w", err)
	}
	if len(removed) > 0 {
		s.logger.Info("pruned finished jobs", slog.Int("count", len(removed)))
	}
	return removed, nil
}

// Process runs a RECEIVED job to DELIVERED or FAILED. Jobs in any other
// status are rejected with ErrInvalidTransition and no side effects.
//
// The placeholder is posted before any work starts and resolved exactly
// once after the outcome is known: retracted on delivery, replaced with the
// user-facing failure message otherwise. Nothing is delivered on failure.
func (s *Service) Process(ctx context.Context, job *Job) (*Job, error) {
	if status := job.GetStatus(); status != StatusReceived {
		return nil, fmt.Errorf("process job %s in status %s: %w", job.ID, status, ErrInvalidTransition)
	}

	log := s.logger.With(slog.String("job_id", job.ID))
	req := job.Request

	placeholderID, err := s.notifier.Placeholder(ctx, req.ChatID, PlaceholderText)
	if err != nil {
		// No placeholder to resolve.
		return s.fail(ctx, log, job, convert.NewError(convert.KindUnknown, fmt.Errorf("post placeholder: %w", err)), false)
	}
	if err := job.StartDownload(placeholderID); err != nil {
		return s.fail(ctx, log, job, convert.NewError(convert.KindUnknown, err), false)
	}
	s.save(ctx, log, job)

	data, err := s.fetcher.Fetch(ctx, req.FileRef)
	if err != nil {
		return s.fail(ctx, log, job, convert.NewError(convert.KindFetchFailed, err), true)
	}
	log.Debug("file fetched", slog.Int("bytes", len(data)))

	if err := job.StartConversion(); err != nil {
		return s.fail(ctx, log, job, convert.NewError(convert.KindUnknown, err), true)
	}
	s.save(ctx, log, job)

	artifact, err := s.converter.Convert(ctx, convert.SourceMedia{
		Data:     data,
		JobID:    job.ID,
		UniqueID: req.UniqueID,
		SetName:  req.SetName,
		FileName: req.FileName,
		MimeType: req.MimeType,
	})
	if err != nil {
		return s.fail(ctx, log, job, err, true)
	}

	location, err := s.deliverer.Deliver(ctx, job.Clone(), artifact)
	if err != nil {
		return s.fail(ctx, log, job, fmt.Errorf("deliver: %w", err), true)
	}

	if err := job.Deliver(artifact.Kind.String(), artifact.FileName, location); err != nil {
		return s.fail(ctx, log, job, convert.NewError(convert.KindUnknown, err), true)
	}
	s.save(ctx, log, job)

	if err := s.notifier.Retract(ctx, req.ChatID, placeholderID); err != nil {
		log.Warn("failed to retract placeholder", slog.String("error", err.Error()))
	}

	log.Info("job delivered",
		slog.String("kind", artifact.Kind.String()),
		slog.String("file_name", artifact.FileName),
		slog.String("location", location),
	)
	return job.Clone(), nil
}

// fail moves job to FAILED and, when a placeholder exists, replaces it
// with the user-facing message.
func (s *Service) fail(ctx context.Context, log *slog.Logger, job *Job, cause error, hasPlaceholder bool) (*Job, error) {
	ce := convert.Classify(cause)
	msg := ce.UserMessage()

	if err := job.Fail(string(ce.Kind), msg); err != nil && !errors.Is(err, ErrInvalidTransition) {
		log.Error("failed to mark job failed", slog.String("error", err.Error()))
	}
	s.save(ctx, log, job)

	log.Error("job failed",
		slog.String("kind", string(ce.Kind)),
		slog.String("error", ce.Error()),
	)

	if hasPlaceholder {
		snapshot := job.Clone()
		if err := s.notifier.Replace(ctx, snapshot.Request.ChatID, snapshot.PlaceholderID, msg); err != nil {
			log.Warn("failed to replace placeholder", slog.String("error", err.Error()))
		}
	}
	return job.Clone(), ce
}

func (s *Service) save(ctx context.Context, log *slog.Logger, job *Job) {
	if err := s.repo.Save(ctx, job); err != nil {
		log.Error("failed to save job", slog.String("error", err.Error()))
	}
}
