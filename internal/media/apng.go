package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"math"
	"runtime"

	"github.com/kettek/apng"
	"golang.org/x/sync/errgroup"
)

// Assembler turns an ordered sequence of encoded frames into a looping
// animated PNG.
type Assembler struct {
	resizer     *Resizer
	concurrency int
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithConcurrency bounds how many frames are resized in parallel.
// Non-positive values are ignored.
func WithConcurrency(n int) AssemblerOption {
	return func(a *Assembler) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// NewAssembler creates an Assembler that normalizes frames with resizer.
func NewAssembler(resizer *Resizer, opts ...AssemblerOption) *Assembler {
	a := &Assembler{
		resizer:     resizer,
		concurrency: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble resizes every frame onto the canvas, computes per-frame delays
// for fps and encodes the result as an infinitely looping APNG with full
// RGBA color.
func (a *Assembler) Assemble(ctx context.Context, frames [][]byte, fps float64) ([]byte, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrEncode, ErrNoFrames)
	}
	if fps <= 0 || math.IsNaN(fps) || math.IsInf(fps, 0) {
		return nil, fmt.Errorf("%w: %w: %v", ErrEncode, ErrInvalidFrameRate, fps)
	}

	images, err := a.resizeAll(ctx, frames)
	if err != nil {
		return nil, err
	}

	durations := FrameDurations(len(images), fps)

	anim := apng.APNG{
		Frames:    make([]apng.Frame, len(images)),
		LoopCount: 0,
	}
	for i, img := range images {
		anim.Frames[i] = apng.Frame{
			Image:            img,
			DelayNumerator:   uint16(min(durations[i], math.MaxUint16)),
			DelayDenominator: 1000,
		}
	}

	var buf bytes.Buffer
	if err := apng.Encode(&buf, anim); err != nil {
		return nil, fmt.Errorf("%w: apng: %w", ErrEncode, err)
	}
	return buf.Bytes(), nil
}

// resizeAll fans out one resize per frame and joins them in frame order.
func (a *Assembler) resizeAll(ctx context.Context, frames [][]byte) ([]image.Image, error) {
	images := make([]image.Image, len(frames))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, data := range frames {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			img, err := a.resizer.Resize(data)
			if err != nil {
				return fmt.Errorf("frame %d: %w", i, err)
			}
			images[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return images, nil
}

// FrameDurations returns the display time in whole milliseconds of each of
// n frames played at fps. Rounding is applied to the cumulative timeline,
// so the durations always sum to round(1000*n/fps).
func FrameDurations(n int, fps float64) []int {
	durations := make([]int, n)
	prev := 0
	for i := range durations {
		// Multiply before dividing: 1000/fps*(i+1) loses the exact half at
		// rates like 35.2 and rounds those timelines down.
		cum := int(math.Round(1000 * float64(i+1) / fps))
		durations[i] = cum - prev
		prev = cum
	}
	return durations
}
