// Package convert routes sticker payloads to the matching conversion
// strategy and produces named artifacts for the target platform.
package convert

import (
	"strings"

	"github.com/maauso/sticker-bridge/internal/media"
)

// DefaultLabel names artifacts whose source carries no sticker set name.
const DefaultLabel = "Sticker"

// SourceMedia is a fetched sticker payload with its naming hints.
type SourceMedia struct {
	// Data is the raw payload.
	Data []byte
	// JobID keys the scratch workspace of the video path.
	JobID string
	// UniqueID is the stable unique id of the file on the source platform.
	UniqueID string
	// SetName is the sticker set name, if any.
	SetName string
	// FileName is the declared display name, if any.
	FileName string
	// MimeType is the declared media type, if any.
	MimeType string
}

// Artifact is a converted file ready for delivery.
type Artifact struct {
	Data     []byte
	FileName string
	Kind     media.Kind
}

// Detect decides the media kind of src. Declared video media types win;
// everything else is sniffed from the payload bytes.
func Detect(src SourceMedia) media.Kind {
	if IsVideoType(src.MimeType) {
		return media.KindRasterVideo
	}
	return media.Classify(src.Data)
}

// IsVideoType reports whether mimeType declares a video container.
func IsVideoType(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mimeType)), "video/")
}

// DefaultName is "{set name or Sticker} {unique id}".
func DefaultName(src SourceMedia) string {
	label := strings.TrimSpace(src.SetName)
	if label == "" {
		label = DefaultLabel
	}
	if id := strings.TrimSpace(src.UniqueID); id != "" {
		return label + " " + id
	}
	return label
}

// VideoName strips any trailing ".gif" and ".mp4" suffixes from the
// display name, falling back to DefaultName when nothing is left.
func VideoName(src SourceMedia) string {
	name := strings.TrimSpace(src.FileName)
	for {
		trimmed := trimSuffixFold(trimSuffixFold(name, ".mp4"), ".gif")
		if trimmed == name {
			break
		}
		name = trimmed
	}
	if name == "" {
		return DefaultName(src)
	}
	return name
}

func trimSuffixFold(s, suffix string) string {
	if len(s) >= len(suffix) && strings.EqualFold(s[len(s)-len(suffix):], suffix) {
		return s[:len(s)-len(suffix)]
	}
	return s
}

var pathSeparators = strings.NewReplacer("/", "_", "\\", "_")

// fileName builds a safe file name from stem and ext.
func fileName(stem, ext string) string {
	return pathSeparators.Replace(stem) + ext
}
