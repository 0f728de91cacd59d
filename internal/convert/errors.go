package convert

import (
	"errors"
	"fmt"

	"github.com/maauso/sticker-bridge/internal/lottie"
	"github.com/maauso/sticker-bridge/internal/media"
)

// Kind identifies the stage at which a conversion job failed.
type Kind string

// Failure kinds.
const (
	KindFetchFailed       Kind = "FETCH_FAILED"
	KindUnsupportedFormat Kind = "UNSUPPORTED_FORMAT"
	KindDecodeError       Kind = "DECODE_ERROR"
	KindExtractionError   Kind = "EXTRACTION_ERROR"
	KindEncodeError       Kind = "ENCODE_ERROR"
	KindUnknown           Kind = "UNKNOWN"
)

// UnknownErrorMessage is shown when a failure carries no message.
const UnknownErrorMessage = "Unknown error"

var userMessages = map[Kind]string{
	KindFetchFailed:       "Failed to fetch the sticker",
	KindUnsupportedFormat: "Unsupported sticker type",
	KindDecodeError:       "Failed to convert the sticker",
	KindExtractionError:   "Failed to convert the sticker",
	KindEncodeError:       "Failed to convert the sticker",
}

// Error is a typed conversion failure.
type Error struct {
	Kind Kind
	// Message is the user-facing text. Empty means the kind's default.
	Message string
	Err     error
}

// NewError creates an Error of kind wrapping err.
func NewError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.UserMessage())
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// UserMessage returns the text shown in place of the placeholder.
func (e *Error) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	if msg, ok := userMessages[e.Kind]; ok {
		return msg
	}
	return UnknownErrorMessage
}

// Classify maps any error into the failure taxonomy. Errors that already
// are *Error are returned as is.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}

	switch {
	case errors.Is(err, media.ErrExtraction):
		return NewError(KindExtractionError, err)
	case errors.Is(err, media.ErrDecode), errors.Is(err, lottie.ErrInvalidDocument):
		return NewError(KindDecodeError, err)
	case errors.Is(err, media.ErrEncode):
		return NewError(KindEncodeError, err)
	default:
		return NewError(KindUnknown, err)
	}
}

// KindOf returns the failure kind of err, or "" for a nil error.
func KindOf(err error) Kind {
	if ce := Classify(err); ce != nil {
		return ce.Kind
	}
	return ""
}

// UserMessage returns the user-facing text for err.
func UserMessage(err error) string {
	if ce := Classify(err); ce != nil {
		return ce.UserMessage()
	}
	return UnknownErrorMessage
}
