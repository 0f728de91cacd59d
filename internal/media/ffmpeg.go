package media

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const (
	// framePattern is the ffmpeg output pattern for decoded frames.
	framePattern = "frame_%05d.png"
)

var (
	fpsRe       = regexp.MustCompile(`(\d+(?:\.\d+)?) fps`)
	frameNameRe = regexp.MustCompile(`^frame_\d{5}\.png$`)
)

// FrameSequence is the ordered list of encoded frames decoded from a video.
type FrameSequence struct {
	// Frames holds the encoded PNG bytes of each frame in playback order.
	Frames [][]byte
	// FrameRate is the source frame rate, or zero when it could not be
	// determined.
	FrameRate float64
}

// FFmpegExtractor extracts frames from videos using the ffprobe and ffmpeg CLIs.
type FFmpegExtractor struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
	// ffprobePath is the path to the ffprobe binary. Defaults to "ffprobe".
	ffprobePath string
}

// NewFFmpegExtractor creates a new FFmpegExtractor.
// Empty paths default to "ffmpeg" and "ffprobe" (found via PATH).
func NewFFmpegExtractor(ffmpegPath, ffprobePath string) *FFmpegExtractor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpegExtractor{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath}
}

// Extract probes videoPath for its frame rate, then decodes every frame
// into dir without dropping or duplicating any, and reads them back in
// frame order.
func (e *FFmpegExtractor) Extract(ctx context.Context, videoPath, dir string) (FrameSequence, error) {
	fps, err := e.ProbeFrameRate(ctx, videoPath)
	if err != nil {
		return FrameSequence{}, err
	}

	if err := e.DecodeFrames(ctx, videoPath, dir); err != nil {
		return FrameSequence{}, err
	}

	frames, err := readFrames(dir)
	if err != nil {
		return FrameSequence{}, err
	}

	return FrameSequence{Frames: frames, FrameRate: fps}, nil
}

// ProbeFrameRate returns the first frame rate reported on a "Stream" line
// of the ffprobe output, or zero when none is reported.
func (e *FFmpegExtractor) ProbeFrameRate(ctx context.Context, videoPath string) (float64, error) {
	args := []string{"-hide_banner", videoPath}
	out, err := e.run(ctx, e.ffprobePath, args)
	if err != nil {
		return 0, err
	}
	return ParseFrameRate(out), nil
}

// DecodeFrames writes one PNG per container frame into dir.
func (e *FFmpegExtractor) DecodeFrames(ctx context.Context, videoPath, dir string) error {
	args := []string{
		"-y",            // Overwrite output files
		"-i", videoPath, // Input file
		"-vsync", "0", // Passthrough timestamps: no frame dropped or duplicated
		filepath.Join(dir, framePattern),
	}
	_, err := e.run(ctx, e.ffmpegPath, args)
	return err
}

// ParseFrameRate scans probe output for the first "<n>[.<n>] fps" token on a
// line mentioning "Stream". It returns zero when no line matches.
func ParseFrameRate(output string) float64 {
	sc := bufio.NewScanner(strings.NewReader(output))
	for sc.Scan() {
		line := sc.Text()
		if !strings.Contains(line, "Stream") {
			continue
		}
		m := fpsRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		fps, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		return fps
	}
	return 0
}

// readFrames loads every decoded frame file in dir sorted by name.
func readFrames(dir string) ([][]byte, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: list frames: %w", ErrExtraction, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.Type().IsRegular() && frameNameRe.MatchString(entry.Name()) {
			names = append(names, entry.Name())
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrExtraction, ErrNoFrames)
	}
	sort.Strings(names)

	frames := make([][]byte, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name)) // #nosec G304 - dir is the job workspace
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", ErrExtraction, name, err)
		}
		frames = append(frames, data)
	}
	return frames, nil
}

// run executes a binary and returns its combined stdout and stderr. Spawn
// failures and non-zero exits are reported as *FFmpegError.
func (e *FFmpegExtractor) run(ctx context.Context, bin string, args []string) (string, error) {
	// #nosec G204 - binary paths are set by the application, not user input
	cmd := exec.CommandContext(ctx, bin, args...)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %s cancelled: %w", ErrExtraction, filepath.Base(bin), ctx.Err())
		}
		return "", &FFmpegError{
			Bin:    bin,
			Args:   args,
			Output: out.String(),
			Err:    err,
		}
	}
	return out.String(), nil
}

// FFmpegError represents a failed ffmpeg or ffprobe run, including its output.
type FFmpegError struct {
	Bin    string
	Args   []string
	Output string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("%s error: %v\nargs: %v\noutput: %s", filepath.Base(e.Bin), e.Err, e.Args, e.Output)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}

// Is reports every FFmpegError as an extraction failure.
func (e *FFmpegError) Is(target error) bool {
	return target == ErrExtraction
}
