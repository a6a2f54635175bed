package infra

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/overlay_mon/internal/domain"
)

func testComposer() *FrameComposer {
	return NewFrameComposer(FrameComposerConfig{
		TextScale:  2,
		Padding:    4,
		Background: color.White,
		TextColor:  color.RGBA{R: 255, A: 255},
		BoxColor:   color.RGBA{B: 255, A: 255},
	})
}

func TestFrameComposer_MeasureText(t *testing.T) {
	c := NewFrameComposer(DefaultFrameComposerConfig())

	// 7x13 glyphs, scaled 3x, 16px padding on each side.
	assert.Equal(t, domain.Size{Width: 3*7*3 + 32, Height: 13*3 + 32}, c.MeasureText("abc"))
	assert.Equal(t, domain.Size{Width: 5*7*3 + 32, Height: 2*13*3 + 32}, c.MeasureText("ab\nabcde"))
	assert.Equal(t, domain.Size{Width: 32, Height: 13*3 + 32}, c.MeasureText(""))
}

func TestFrameComposer_ClampsConfig(t *testing.T) {
	c := NewFrameComposer(FrameComposerConfig{TextScale: 0, Padding: -3})
	assert.Equal(t, domain.Size{Width: 7, Height: 13}, c.MeasureText("a"))
}

func TestFrameComposer_ComposeBackgroundOnly(t *testing.T) {
	c := testComposer()
	img := c.Compose(domain.Size{Width: 40, Height: 30}, domain.Frame{})

	assert.Equal(t, image.Rect(0, 0, 40, 30), img.Bounds())
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, img.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, img.RGBAAt(39, 29))
}

func TestFrameComposer_ComposeImage(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			src.SetRGBA(x, y, color.RGBA{G: 200, A: 255})
		}
	}

	c := testComposer()
	img := c.Compose(domain.Size{Width: 40, Height: 40}, domain.Frame{
		Image:     src,
		ImageRect: image.Rect(10, 10, 30, 30),
	})

	inside := img.RGBAAt(20, 20)
	assert.InDelta(t, 200, int(inside.G), 2)
	assert.InDelta(t, 0, int(inside.R), 2)
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, img.RGBAAt(5, 5))
}

func TestFrameComposer_ImageMayExtendPastEdges(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 2, 2))
	c := testComposer()

	require.NotPanics(t, func() {
		c.Compose(domain.Size{Width: 10, Height: 10}, domain.Frame{
			Image:     src,
			ImageRect: image.Rect(-20, -20, 40, 40),
		})
	})
}

func TestFrameComposer_ComposeTextAndHint(t *testing.T) {
	c := testComposer()
	size := domain.Size{Width: 200, Height: 120}
	text := c.MeasureText("Hi")
	frame := domain.Frame{
		Text:       "Hi",
		TextRect:   image.Rect(10, 10, 10+text.Width, 10+text.Height),
		Hint:       "Tap",
		HintOrigin: image.Pt(50, 80),
	}

	img := c.Compose(size, frame)

	blue := color.RGBA{B: 255, A: 255}
	assert.Equal(t, blue, img.RGBAAt(11, 11), "text box backdrop")
	assert.Equal(t, blue, img.RGBAAt(51, 81), "hint box backdrop")
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, img.RGBAAt(5, 5))

	assert.True(t, hasColor(img, image.Rect(14, 14, 10+text.Width-4, 10+text.Height-4), color.RGBA{R: 255, A: 255}),
		"glyph pixels drawn inside the text box")
}

func hasColor(img *image.RGBA, r image.Rectangle, want color.RGBA) bool {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if img.RGBAAt(x, y) == want {
				return true
			}
		}
	}
	return false
}

func TestToBGRX(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 3))
	img.SetRGBA(0, 1, color.RGBA{R: 1, G: 2, B: 3, A: 255})
	img.SetRGBA(1, 1, color.RGBA{R: 4, G: 5, B: 6, A: 255})

	assert.Equal(t, []byte{3, 2, 1, 0, 6, 5, 4, 0}, ToBGRX(img, 1, 2))
	assert.Len(t, ToBGRX(img, 0, 3), 2*3*4)
	assert.Len(t, ToBGRX(img, -5, 99), 2*3*4)
	assert.Nil(t, ToBGRX(img, 2, 2))
}
