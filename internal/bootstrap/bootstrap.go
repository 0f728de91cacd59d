// Package bootstrap provides dependency initialization for the sticker bridge.
package bootstrap

import (
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/maauso/sticker-bridge/internal/config"
	"github.com/maauso/sticker-bridge/internal/convert"
	"github.com/maauso/sticker-bridge/internal/fetch"
	"github.com/maauso/sticker-bridge/internal/job"
	"github.com/maauso/sticker-bridge/internal/media"
	"github.com/maauso/sticker-bridge/internal/server"
	"github.com/maauso/sticker-bridge/internal/storage"
	"github.com/maauso/sticker-bridge/internal/telegram"
)

// Dependencies holds all initialized dependencies for the process.
type Dependencies struct {
	// JobService runs jobs submitted over HTTP.
	JobService *job.Service
	Repository job.Repository
	Storage    storage.Storage
	Janitor    *server.Janitor
	// Bot is nil when no bot token is configured.
	Bot *telegram.Bot
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	extractor := media.NewFFmpegExtractor(cfg.FFmpegPath, cfg.FFprobePath)
	converter := convert.NewConverter(store, extractor,
		convert.WithCanvasSize(cfg.CanvasSize),
		convert.WithDefaultFrameRate(cfg.DefaultFPS),
		convert.WithFrameConcurrency(cfg.MaxConcurrentFrames),
		convert.WithLogger(logger),
	)
	fetchClient := fetch.NewClient(fetch.WithMaxRetries(cfg.FetchMaxRetries))

	// HTTP and Telegram jobs share one repository so the janitor sees both.
	repo := job.NewMemoryRepository()

	svc := job.NewService(
		repo,
		server.NopNotifier{},
		fetchClient,
		converter,
		server.NewStorageDeliverer(store, cfg.S3Enabled()),
		logger,
	)

	deps := &Dependencies{
		JobService: svc,
		Repository: repo,
		Storage:    store,
		Janitor:    server.NewJanitor(svc, store, cfg.JobRetention, logger),
	}

	if cfg.BotEnabled() {
		bot, err := initBot(cfg, repo, fetchClient, converter, logger)
		if err != nil {
			return nil, err
		}
		deps.Bot = bot
	}

	return deps, nil
}

// initBot connects to Telegram and wires a job service that replies in chat.
func initBot(cfg *config.Config, repo job.Repository, downloader telegram.Downloader, converter job.Converter, logger *slog.Logger) (*telegram.Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", telegram.Redact(err, cfg.BotToken))
	}
	logger.Info("telegram bot authorized",
		slog.String("username", api.Self.UserName),
	)

	svc := job.NewService(
		repo,
		telegram.NewNotifier(api),
		telegram.NewFetcher(api, cfg.BotToken, downloader),
		converter,
		telegram.NewDeliverer(api),
		logger,
	)
	return telegram.NewBot(api, svc, logger), nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.TempDir, s3Cfg, storage.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir, storage.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", cfg.TempDir),
	)
	return localStore, nil
}
