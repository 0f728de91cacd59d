// Package media provides the sticker media primitives: byte-level format
// classification, contain-fit raster resizing, animated PNG assembly and
// ffmpeg-backed frame extraction.
package media

import "bytes"

// Kind classifies a sticker payload.
type Kind int

const (
	// KindUnrecognized is any payload none of the other kinds match.
	KindUnrecognized Kind = iota
	// KindRasterStatic is a static WEBP sticker.
	KindRasterStatic
	// KindVectorAnimation is a gzip-compressed vector animation container.
	KindVectorAnimation
	// KindRasterVideo is a short looping video. It is never sniffed from
	// bytes; callers decide it from the declared media type.
	KindRasterVideo
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindRasterStatic:
		return "raster_static"
	case KindVectorAnimation:
		return "vector_animation"
	case KindRasterVideo:
		return "raster_video"
	default:
		return "unrecognized"
	}
}

var (
	riffMagic = []byte("RIFF")
	webpMagic = []byte("WEBP")
	gzipMagic = []byte{0x1f, 0x8b, 0x08}
)

// Classify inspects the magic bytes of buf. It never decodes content and
// never returns KindRasterVideo.
func Classify(buf []byte) Kind {
	switch {
	case len(buf) >= 12 && bytes.Equal(buf[0:4], riffMagic) && bytes.Equal(buf[8:12], webpMagic):
		return KindRasterStatic
	case bytes.HasPrefix(buf, gzipMagic):
		return KindVectorAnimation
	default:
		return KindUnrecognized
	}
}
