// Package telegram connects the conversion service to a Telegram bot.
package telegram

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/maauso/sticker-bridge/internal/job"
)

// GreetingText answers every message that carries nothing to convert.
const GreetingText = "Send me a sticker to use on Discord"

// API is the subset of *tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Handler processes one conversion request to completion.
type Handler interface {
	Handle(ctx context.Context, req job.Request) (*job.Job, error)
}

// Bot long-polls updates and hands media messages to a Handler.
type Bot struct {
	api            API
	handler        Handler
	logger         *slog.Logger
	pollingTimeout int
}

// NewBot creates a new Bot.
func NewBot(api API, handler Handler, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		api:            api,
		handler:        handler,
		logger:         logger,
		pollingTimeout: 60,
	}
}

// Run processes updates until ctx is done or the update channel closes.
// Each update runs in its own goroutine; Run waits for them before returning.
func (b *Bot) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = b.pollingTimeout
	updates := b.api.GetUpdatesChan(cfg)

	b.logger.Info("telegram bot started")

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.logger.Info("telegram bot stopping")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				b.handleUpdate(ctx, update)
			}()
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return
	}

	start := time.Now()
	log := b.logger.With(
		slog.Int("update_id", update.UpdateID),
		slog.Int64("chat_id", msg.Chat.ID),
	)

	req, ok := RequestFromMessage(msg)
	if !ok {
		if _, err := b.api.Send(tgbotapi.NewMessage(msg.Chat.ID, GreetingText)); err != nil {
			log.Warn("failed to send greeting", slog.String("error", err.Error()))
		}
		return
	}

	j, err := b.handler.Handle(ctx, req)
	attrs := []any{slog.Duration("duration", time.Since(start))}
	if j != nil {
		attrs = append(attrs, slog.String("job_id", j.ID), slog.String("status", string(j.Status)))
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	log.Info("update processed", attrs...)
}

// RequestFromMessage maps a sticker or video animation message to a
// conversion request. It reports false for anything else.
func RequestFromMessage(msg *tgbotapi.Message) (job.Request, bool) {
	if msg == nil || msg.Chat == nil {
		return job.Request{}, false
	}

	switch {
	case msg.Sticker != nil:
		s := msg.Sticker
		return job.Request{
			ChatID:   msg.Chat.ID,
			FileRef:  s.FileID,
			UniqueID: s.FileUniqueID,
			SetName:  s.SetName,
		}, true

	case msg.Animation != nil && strings.HasPrefix(strings.ToLower(msg.Animation.MimeType), "video/"):
		a := msg.Animation
		return job.Request{
			ChatID:   msg.Chat.ID,
			FileRef:  a.FileID,
			UniqueID: a.FileUniqueID,
			FileName: a.FileName,
			MimeType: a.MimeType,
		}, true
	}

	return job.Request{}, false
}
