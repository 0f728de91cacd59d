package media

import "errors"

// Static errors for media operations.
var (
	// ErrDecode is returned when raster bytes cannot be decoded.
	ErrDecode = errors.New("media: decode failed")
	// ErrEncode is returned when an animated raster cannot be assembled.
	ErrEncode = errors.New("media: encode failed")
	// ErrExtraction is returned when frame extraction from a video fails.
	ErrExtraction = errors.New("media: frame extraction failed")
	// ErrInvalidFrameRate is returned when a frame rate is not positive.
	ErrInvalidFrameRate = errors.New("media: frame rate must be positive")
	// ErrNoFrames is returned when there is nothing to assemble.
	ErrNoFrames = errors.New("media: no frames")
)
