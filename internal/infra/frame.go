package infra

import (
	"image"
	"image/color"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/eliteGoblin/focusd/overlay_mon/internal/domain"
)

// FrameComposerConfig holds text rendering parameters.
type FrameComposerConfig struct {
	TextScale  int // Integer upscale of the bitmap font (default 3)
	Padding    int // Padding around each text box in surface pixels (default 16)
	Background color.Color
	TextColor  color.Color
	BoxColor   color.Color // Backdrop behind text and hint
}

// DefaultFrameComposerConfig returns default text rendering parameters.
func DefaultFrameComposerConfig() FrameComposerConfig {
	return FrameComposerConfig{
		TextScale:  3,
		Padding:    16,
		Background: color.Black,
		TextColor:  color.White,
		BoxColor:   color.NRGBA{A: 0x99},
	}
}

// FrameComposer rasterizes a domain.Frame into an RGBA image.
type FrameComposer struct {
	config FrameComposerConfig
	face   font.Face
}

// NewFrameComposer creates a composer using the built-in 7x13 bitmap font.
func NewFrameComposer(config FrameComposerConfig) *FrameComposer {
	if config.TextScale < 1 {
		config.TextScale = 1
	}
	if config.Padding < 0 {
		config.Padding = 0
	}
	return &FrameComposer{config: config, face: basicfont.Face7x13}
}

// MeasureText returns the size of the text box drawn for text, padding included.
func (c *FrameComposer) MeasureText(text string) domain.Size {
	w, h := c.measureUnscaled(text)
	pad := 2 * c.config.Padding
	return domain.Size{
		Width:  w*c.config.TextScale + pad,
		Height: h*c.config.TextScale + pad,
	}
}

func (c *FrameComposer) measureUnscaled(text string) (int, int) {
	lines := strings.Split(text, "\n")
	width := 0
	for _, line := range lines {
		if w := font.MeasureString(c.face, line).Ceil(); w > width {
			width = w
		}
	}
	return width, len(lines) * c.face.Metrics().Height.Ceil()
}

// Compose draws frame onto a new image of the given size: background,
// then the scaled image, then the text and hint boxes.
func (c *FrameComposer) Compose(size domain.Size, frame domain.Frame) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, size.Width, size.Height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(c.config.Background), image.Point{}, draw.Src)

	if frame.Image != nil && !frame.ImageRect.Empty() {
		draw.CatmullRom.Scale(dst, frame.ImageRect, frame.Image, frame.Image.Bounds(), draw.Over, nil)
	}
	if frame.Text != "" {
		c.drawText(dst, frame.Text, frame.TextRect.Min)
	}
	if frame.Hint != "" {
		c.drawText(dst, frame.Hint, frame.HintOrigin)
	}
	return dst
}

func (c *FrameComposer) drawText(dst *image.RGBA, text string, origin image.Point) {
	box := c.MeasureText(text)
	draw.Draw(dst, image.Rectangle{Min: origin, Max: origin.Add(image.Pt(box.Width, box.Height))},
		image.NewUniform(c.config.BoxColor), image.Point{}, draw.Over)

	w, h := c.measureUnscaled(text)
	if w == 0 || h == 0 {
		return
	}
	glyphs := image.NewRGBA(image.Rect(0, 0, w, h))
	metrics := c.face.Metrics()
	d := font.Drawer{
		Dst:  glyphs,
		Src:  image.NewUniform(c.config.TextColor),
		Face: c.face,
	}
	for i, line := range strings.Split(text, "\n") {
		d.Dot = fixed.P(0, i*metrics.Height.Ceil()+metrics.Ascent.Ceil())
		d.DrawString(line)
	}

	inner := origin.Add(image.Pt(c.config.Padding, c.config.Padding))
	target := image.Rectangle{Min: inner, Max: inner.Add(image.Pt(w*c.config.TextScale, h*c.config.TextScale))}
	draw.NearestNeighbor.Scale(dst, target, glyphs, glyphs.Bounds(), draw.Over, nil)
}

// ToBGRX converts rows [y0, y1) of img into the 32 bits per pixel
// little-endian layout X servers use for depth 24 visuals.
func ToBGRX(img *image.RGBA, y0, y1 int) []byte {
	b := img.Bounds()
	if y0 < b.Min.Y {
		y0 = b.Min.Y
	}
	if y1 > b.Max.Y {
		y1 = b.Max.Y
	}
	if y1 <= y0 {
		return nil
	}

	out := make([]byte, 0, b.Dx()*(y1-y0)*4)
	for y := y0; y < y1; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):img.PixOffset(b.Max.X, y)]
		for i := 0; i < len(row); i += 4 {
			out = append(out, row[i+2], row[i+1], row[i], 0)
		}
	}
	return out
}
