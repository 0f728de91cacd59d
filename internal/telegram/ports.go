package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/maauso/sticker-bridge/internal/convert"
	"github.com/maauso/sticker-bridge/internal/job"
)

// Compile-time checks that the adapters implement the job ports.
var (
	_ job.Notifier  = (*Notifier)(nil)
	_ job.Deliverer = (*Deliverer)(nil)
	_ job.Fetcher   = (*Fetcher)(nil)
)

// Notifier shows the progress placeholder as a chat message.
type Notifier struct {
	api API
}

// NewNotifier creates a new Notifier.
func NewNotifier(api API) *Notifier {
	return &Notifier{api: api}
}

// Placeholder sends text and returns the sent message id.
func (n *Notifier) Placeholder(_ context.Context, chatID int64, text string) (int, error) {
	msg, err := n.api.Send(tgbotapi.NewMessage(chatID, text))
	if err != nil {
		return 0, fmt.Errorf("telegram: send placeholder: %w", err)
	}
	return msg.MessageID, nil
}

// Replace edits the placeholder's text.
func (n *Notifier) Replace(_ context.Context, chatID int64, messageID int, text string) error {
	if _, err := n.api.Request(tgbotapi.NewEditMessageText(chatID, messageID, text)); err != nil {
		return fmt.Errorf("telegram: edit placeholder: %w", err)
	}
	return nil
}

// Retract deletes the placeholder.
func (n *Notifier) Retract(_ context.Context, chatID int64, messageID int) error {
	if _, err := n.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("telegram: delete placeholder: %w", err)
	}
	return nil
}

// Deliverer sends artifacts back to the chat as documents.
type Deliverer struct {
	api API
}

// NewDeliverer creates a new Deliverer.
func NewDeliverer(api API) *Deliverer {
	return &Deliverer{api: api}
}

// Deliver sends the artifact as a document to the job's chat.
func (d *Deliverer) Deliver(_ context.Context, j *job.Job, artifact convert.Artifact) (string, error) {
	chatID := j.Request.ChatID
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  artifact.FileName,
		Bytes: artifact.Data,
	})
	msg, err := d.api.Send(doc)
	if err != nil {
		return "", fmt.Errorf("telegram: send document: %w", err)
	}
	return fmt.Sprintf("telegram:%d/%d", chatID, msg.MessageID), nil
}

// Downloader fetches a URL.
type Downloader interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Fetcher resolves a Telegram file id to its download URL and fetches it.
// Errors never carry the bot token: both the Bot API endpoint and the file
// URL embed it.
type Fetcher struct {
	api        API
	token      string
	downloader Downloader
}

// NewFetcher creates a new Fetcher. token is the bot token redacted from errors.
func NewFetcher(api API, token string, downloader Downloader) *Fetcher {
	return &Fetcher{api: api, token: token, downloader: downloader}
}

// Fetch downloads the file identified by fileID.
func (f *Fetcher) Fetch(ctx context.Context, fileID string) ([]byte, error) {
	url, err := f.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("telegram: resolve file %s: %w", fileID, redact(err, f.token))
	}
	data, err := f.downloader.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("telegram: download file %s: %w", fileID, redact(err, f.token, url, "<file url>"))
	}
	return data, nil
}

// Redact wraps err so that its message hides token. Bot API errors quote
// request URLs, which embed the token.
func Redact(err error, token string) error {
	return redact(err, token)
}

// redact is Redact with extra old, new replacements applied before the token.
func redact(err error, token string, pairs ...string) error {
	if err == nil {
		return nil
	}
	var oldnew []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i] != "" {
			oldnew = append(oldnew, pairs[i], pairs[i+1])
		}
	}
	if token != "" {
		oldnew = append(oldnew, token, "<token>")
	}
	if len(oldnew) == 0 {
		return err
	}
	return &redactedError{err: err, replacer: strings.NewReplacer(oldnew...)}
}

// redactedError rewrites the message of err and keeps it unwrappable.
type redactedError struct {
	err      error
	replacer *strings.Replacer
}

func (e *redactedError) Error() string {
	return e.replacer.Replace(e.err.Error())
}

func (e *redactedError) Unwrap() error {
	return e.err
}
