package overlay

import (
	"image"
	"math"

	"github.com/eliteGoblin/focusd/overlay_mon/internal/domain"
)

// CoverRect returns where an image of size img lands when scaled to cover
// the whole surface while keeping its aspect ratio, centered (centre crop).
func CoverRect(img image.Point, surface domain.Size) image.Rectangle {
	if img.X <= 0 || img.Y <= 0 || surface.Width <= 0 || surface.Height <= 0 {
		return image.Rectangle{}
	}
	sw, sh := float64(surface.Width), float64(surface.Height)
	scale := math.Max(sw/float64(img.X), sh/float64(img.Y))
	w, h := float64(img.X)*scale, float64(img.Y)*scale
	return rectF((sw-w)/2, (sh-h)/2, w, h)
}

// ImageRect applies the rule's scale (about the surface centre) and pixel
// offset to the centre-cropped image rectangle.
func ImageRect(img image.Point, surface domain.Size, scale, offsetX, offsetY float64) image.Rectangle {
	cover := CoverRect(img, surface)
	if cover.Empty() {
		return cover
	}
	if scale < 0 {
		scale = 0
	}
	cx, cy := float64(surface.Width)/2, float64(surface.Height)/2
	x := cx + (float64(cover.Min.X)-cx)*scale + offsetX
	y := cy + (float64(cover.Min.Y)-cy)*scale + offsetY
	return rectF(x, y, float64(cover.Dx())*scale, float64(cover.Dy())*scale)
}

// TextRect centres a block of the given size on the fractional position
// (fx, fy) of the surface.
func TextRect(surface, text domain.Size, fx, fy float64) image.Rectangle {
	x := float64(surface.Width)*fx - float64(text.Width)/2
	y := float64(surface.Height)*fy - float64(text.Height)/2
	return rectF(x, y, float64(text.Width), float64(text.Height))
}

// HintOrigin places the tap hint horizontally centred, bottomMargin pixels
// above the bottom edge.
func HintOrigin(surface, hint domain.Size, bottomMargin int) image.Point {
	return image.Point{
		X: (surface.Width - hint.Width) / 2,
		Y: surface.Height - bottomMargin - hint.Height,
	}
}

func rectF(x, y, w, h float64) image.Rectangle {
	x0, y0 := int(math.Round(x)), int(math.Round(y))
	return image.Rect(x0, y0, x0+int(math.Round(w)), y0+int(math.Round(h)))
}
