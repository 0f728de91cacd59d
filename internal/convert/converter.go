package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/h2non/filetype"
	"github.com/klauspost/compress/gzip"

	"github.com/maauso/sticker-bridge/internal/job/id"
	"github.com/maauso/sticker-bridge/internal/lottie"
	"github.com/maauso/sticker-bridge/internal/media"
	"github.com/maauso/sticker-bridge/internal/storage"
)

const (
	// DefaultFrameRate is used when a video's frame rate cannot be probed.
	DefaultFrameRate = 15.0
	// maxVectorPayload caps the decompressed size of a vector sticker.
	maxVectorPayload = 32 << 20
)

// ErrUnsupportedFormat is returned for payloads no strategy handles.
var ErrUnsupportedFormat = errors.New("unsupported sticker format")

// Extractor decodes a video into an ordered frame sequence inside dir.
type Extractor interface {
	Extract(ctx context.Context, videoPath, dir string) (media.FrameSequence, error)
}

// VectorEncoder re-encodes a decompressed vector animation for a
// size×size canvas and returns a text document.
type VectorEncoder func(payload []byte, size int) ([]byte, error)

// Converter selects and runs the conversion strategy for a payload.
type Converter struct {
	workspaces  storage.Workspaces
	extractor   Extractor
	vector      VectorEncoder
	logger      *slog.Logger
	canvasSize  int
	defaultFPS  float64
	concurrency int

	resizer   *media.Resizer
	assembler *media.Assembler
}

// Option configures a Converter.
type Option func(*Converter)

// WithCanvasSize sets the square output canvas edge.
func WithCanvasSize(size int) Option {
	return func(c *Converter) {
		if size > 0 {
			c.canvasSize = size
		}
	}
}

// WithDefaultFrameRate sets the frame rate assumed for videos whose rate
// cannot be probed.
func WithDefaultFrameRate(fps float64) Option {
	return func(c *Converter) {
		if fps > 0 {
			c.defaultFPS = fps
		}
	}
}

// WithFrameConcurrency bounds how many video frames are resized at once.
func WithFrameConcurrency(n int) Option {
	return func(c *Converter) {
		c.concurrency = n
	}
}

// WithVectorEncoder replaces the vector re-encoder.
func WithVectorEncoder(fn VectorEncoder) Option {
	return func(c *Converter) {
		if fn != nil {
			c.vector = fn
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Converter) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewConverter creates a Converter. workspaces and extractor are only used
// by the video strategy.
func NewConverter(workspaces storage.Workspaces, extractor Extractor, opts ...Option) *Converter {
	c := &Converter{
		workspaces: workspaces,
		extractor:  extractor,
		vector:     lottie.Convert,
		logger:     slog.Default(),
		canvasSize: media.DefaultCanvasSize,
		defaultFPS: DefaultFrameRate,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.resizer = media.NewResizer(c.canvasSize)
	c.assembler = media.NewAssembler(c.resizer, media.WithConcurrency(c.concurrency))
	return c
}

// Convert converts src into an artifact. Failures are always *Error.
func (c *Converter) Convert(ctx context.Context, src SourceMedia) (Artifact, error) {
	kind := Detect(src)

	c.logger.Debug("converting sticker",
		slog.String("job_id", src.JobID),
		slog.String("kind", kind.String()),
		slog.Int("bytes", len(src.Data)),
	)

	var (
		art Artifact
		err error
	)
	switch kind {
	case media.KindRasterStatic:
		art, err = c.convertStatic(src)
	case media.KindVectorAnimation:
		art, err = c.convertVector(src)
	case media.KindRasterVideo:
		art, err = c.convertVideo(ctx, src)
	case media.KindUnrecognized:
		err = NewError(KindUnsupportedFormat, ErrUnsupportedFormat)
	default:
		err = NewError(KindUnknown, fmt.Errorf("unhandled media kind %s", kind))
	}
	if err != nil {
		return Artifact{}, Classify(err)
	}

	art.Kind = kind
	return art, nil
}

func (c *Converter) convertStatic(src SourceMedia) (Artifact, error) {
	data, err := c.resizer.ResizePNG(src.Data)
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{Data: data, FileName: fileName(DefaultName(src), ".png")}, nil
}

func (c *Converter) convertVector(src SourceMedia) (Artifact, error) {
	payload, err := gunzip(src.Data)
	if err != nil {
		return Artifact{}, NewError(KindDecodeError, err)
	}

	doc, err := c.vector(payload, c.canvasSize)
	if err != nil {
		if errors.Is(err, lottie.ErrInvalidDocument) {
			return Artifact{}, NewError(KindDecodeError, err)
		}
		return Artifact{}, NewError(KindEncodeError, err)
	}

	stem := DefaultName(src)
	name, err := lottie.Name(doc)
	switch {
	case err != nil:
		c.logger.Warn("failed to read animation name, using default",
			slog.String("job_id", src.JobID),
			slog.String("error", err.Error()),
		)
	case name != "":
		stem = name
	}

	return Artifact{Data: doc, FileName: fileName(stem, ".json")}, nil
}

func (c *Converter) convertVideo(ctx context.Context, src SourceMedia) (Artifact, error) {
	jobID := src.JobID
	if jobID == "" {
		jobID = id.Generate()
	}

	var data []byte
	err := c.workspaces.WithWorkspace(ctx, jobID, func(dir string) error {
		input := filepath.Join(dir, "input."+containerExt(src.Data))
		if err := os.WriteFile(input, src.Data, 0600); err != nil {
			return fmt.Errorf("write video input: %w", err)
		}

		seq, err := c.extractor.Extract(ctx, input, dir)
		if err != nil {
			return err
		}

		fps := seq.FrameRate
		if fps <= 0 {
			c.logger.Info("frame rate undetermined, using default",
				slog.String("job_id", jobID),
				slog.Float64("fps", c.defaultFPS),
			)
			fps = c.defaultFPS
		}

		data, err = c.assembler.Assemble(ctx, seq.Frames, fps)
		return err
	})
	if err != nil {
		return Artifact{}, err
	}

	return Artifact{Data: data, FileName: fileName(VideoName(src), ".png")}, nil
}

// containerExt guesses the file extension of a video payload.
func containerExt(data []byte) string {
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown || kind.Extension == "" {
		return "bin"
	}
	return kind.Extension
}

func gunzip(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	defer func() { _ = zr.Close() }()

	payload, err := io.ReadAll(io.LimitReader(zr, maxVectorPayload+1))
	if err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	if len(payload) > maxVectorPayload {
		return nil, fmt.Errorf("gzip: payload exceeds %d bytes", maxVectorPayload)
	}
	return payload, nil
}
