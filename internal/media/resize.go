package media

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"math"

	// Registered decoders for sticker frames.
	_ "image/gif"
	_ "image/jpeg"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// DefaultCanvasSize is the edge of the square canvas every visual is
// normalized to.
const DefaultCanvasSize = 320

// Resizer fits raster images into a square transparent canvas.
type Resizer struct {
	size    int
	encoder *png.Encoder
}

// NewResizer creates a Resizer for a size×size canvas.
// If size is not positive, DefaultCanvasSize is used.
func NewResizer(size int) *Resizer {
	if size <= 0 {
		size = DefaultCanvasSize
	}
	return &Resizer{
		size:    size,
		encoder: &png.Encoder{CompressionLevel: png.DefaultCompression},
	}
}

// Size returns the canvas edge in pixels.
func (r *Resizer) Size() int {
	return r.size
}

// Resize decodes data and scales it, preserving aspect ratio, so that it
// fits entirely inside the canvas. The scaled image is centered and the
// uncovered area is left fully transparent.
func (r *Resizer) Resize(data []byte) (*image.NRGBA, error) {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	sb := src.Bounds()
	if sb.Dx() <= 0 || sb.Dy() <= 0 {
		return nil, fmt.Errorf("%w: empty %s image", ErrDecode, format)
	}

	dst := image.NewNRGBA(image.Rect(0, 0, r.size, r.size))
	draw.CatmullRom.Scale(dst, containRect(sb.Dx(), sb.Dy(), r.size), src, sb, draw.Src, nil)
	return dst, nil
}

// ResizePNG is Resize followed by lossless PNG encoding.
func (r *Resizer) ResizePNG(data []byte) ([]byte, error) {
	img, err := r.Resize(data)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := r.encoder.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%w: png: %w", ErrEncode, err)
	}
	return buf.Bytes(), nil
}

// containRect returns the centered destination rectangle of a w×h image
// contain-fitted into a size×size box.
func containRect(w, h, size int) image.Rectangle {
	scale := math.Min(float64(size)/float64(w), float64(size)/float64(h))

	dw := max(1, min(size, int(math.Round(float64(w)*scale))))
	dh := max(1, min(size, int(math.Round(float64(h)*scale))))

	x := (size - dw) / 2
	y := (size - dh) / 2
	return image.Rect(x, y, x+dw, y+dh)
}
