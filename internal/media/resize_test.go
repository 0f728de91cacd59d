package media

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var red = color.NRGBA{R: 255, A: 255}

func TestNewResizer(t *testing.T) {
	assert.Equal(t, DefaultCanvasSize, NewResizer(0).Size())
	assert.Equal(t, DefaultCanvasSize, NewResizer(-5).Size())
	assert.Equal(t, 64, NewResizer(64).Size())
}

func TestContainRect(t *testing.T) {
	tests := []struct {
		name string
		w, h int
		want image.Rectangle
	}{
		{"landscape 2:1", 400, 200, image.Rect(0, 80, 320, 240)},
		{"portrait 1:4", 100, 400, image.Rect(120, 0, 200, 320)},
		{"square downscale", 512, 512, image.Rect(0, 0, 320, 320)},
		{"square upscale", 10, 10, image.Rect(0, 0, 320, 320)},
		{"small landscape upscale", 64, 32, image.Rect(0, 80, 320, 240)},
		{"extreme strip", 1000, 1, image.Rect(0, 159, 320, 160)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, containRect(tt.w, tt.h, 320))
		})
	}
}

func TestResizer_Resize_Landscape(t *testing.T) {
	r := NewResizer(320)

	img, err := r.Resize(solidPNG(t, 400, 200, red))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 320, 320), img.Bounds())

	// Padding above and below the content is transparent.
	assert.Equal(t, uint8(0), img.NRGBAAt(160, 0).A)
	assert.Equal(t, uint8(0), img.NRGBAAt(160, 79).A)
	assert.Equal(t, uint8(0), img.NRGBAAt(160, 240).A)
	assert.Equal(t, uint8(0), img.NRGBAAt(0, 319).A)

	// Content is centered and fills the full width.
	for _, p := range []image.Point{{0, 80}, {160, 160}, {319, 239}} {
		c := img.NRGBAAt(p.X, p.Y)
		assert.Greater(t, c.A, uint8(250), "alpha at %v", p)
		assert.Greater(t, c.R, uint8(250), "red at %v", p)
	}
}

func TestResizer_Resize_Portrait(t *testing.T) {
	r := NewResizer(320)

	img, err := r.Resize(solidPNG(t, 100, 400, red))
	require.NoError(t, err)
	assert.Equal(t, 320, img.Bounds().Dx())
	assert.Equal(t, 320, img.Bounds().Dy())

	assert.Equal(t, uint8(0), img.NRGBAAt(119, 160).A)
	assert.Greater(t, img.NRGBAAt(120, 160).A, uint8(250))
	assert.Greater(t, img.NRGBAAt(199, 160).A, uint8(250))
	assert.Equal(t, uint8(0), img.NRGBAAt(200, 160).A)
}

func TestResizer_ResizePNG(t *testing.T) {
	r := NewResizer(320)
	input := solidPNG(t, 400, 200, red)

	t.Run("output is a 320x320 png", func(t *testing.T) {
		out, err := r.ResizePNG(input)
		require.NoError(t, err)

		assert.True(t, bytes.HasPrefix(out, []byte("\x89PNG\r\n\x1a\n")), "missing PNG signature")
		cfg, err := png.DecodeConfig(bytes.NewReader(out))
		require.NoError(t, err)
		assert.Equal(t, 320, cfg.Width)
		assert.Equal(t, 320, cfg.Height)
	})

	t.Run("deterministic", func(t *testing.T) {
		first, err := r.ResizePNG(input)
		require.NoError(t, err)
		for i := 0; i < 3; i++ {
			again, err := r.ResizePNG(input)
			require.NoError(t, err)
			assert.True(t, bytes.Equal(first, again), "run %d differs", i)
		}
	})

	t.Run("lossless round trip keeps transparency", func(t *testing.T) {
		out, err := r.ResizePNG(input)
		require.NoError(t, err)

		decoded, err := png.Decode(bytes.NewReader(out))
		require.NoError(t, err)
		_, _, _, a := decoded.At(160, 10).RGBA()
		assert.Equal(t, uint32(0), a)
	})
}

func TestResizer_Resize_WebP(t *testing.T) {
	img, err := NewResizer(320).Resize(decodeWebP(t))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 320, 320), img.Bounds())
}

func TestResizer_Resize_Malformed(t *testing.T) {
	r := NewResizer(320)

	for _, data := range [][]byte{
		nil,
		[]byte("not an image"),
		[]byte("RIFF\x10\x00\x00\x00WEBPgarbage"),
	} {
		_, err := r.Resize(data)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrDecode)

		_, err = r.ResizePNG(data)
		assert.ErrorIs(t, err, ErrDecode)
	}
}
