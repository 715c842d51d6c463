package compositor

import (
	"image"
	"image/color"

	"golang.org/x/image/vector"
)

// kappa places cubic control points so a Bézier approximates a quarter circle.
const kappa = 0.5522847498

// Brush supplies the fill for RoundCorners. A brush is consumed by the
// call it is passed to.
type Brush interface {
	Source() image.Image
	Release()
}

// SolidBrush fills with a single color.
type SolidBrush struct {
	Color    color.NRGBA
	released bool
}

// Source returns a uniform image, or nil after Release.
func (b *SolidBrush) Source() image.Image {
	if b.released {
		return nil
	}
	return image.NewUniform(b.Color)
}

// Release marks the brush consumed.
func (b *SolidBrush) Release() { b.released = true }

// Released reports whether the brush was consumed.
func (b *SolidBrush) Released() bool { return b.released }

// ImageBrush fills with the pixels of a bitmap, anchored at (0, 0).
type ImageBrush struct {
	bmp *Bitmap
}

// NewImageBrush creates a brush over a snapshot of bmp.
func NewImageBrush(bmp *Bitmap) *ImageBrush {
	return &ImageBrush{bmp: bmp.Clone()}
}

// Source returns the brush pixels, or nil after Release.
func (b *ImageBrush) Source() image.Image {
	if b.bmp == nil {
		return nil
	}
	return b.bmp.NRGBA()
}

// Release drops the pixel snapshot.
func (b *ImageBrush) Release() { b.bmp = nil }

// Released reports whether the brush was consumed.
func (b *ImageBrush) Released() bool { return b.bmp == nil }

// Pen strokes the border drawn by RoundCorners.
type Pen struct {
	Color    color.NRGBA
	Width    int
	released bool
}

// Release marks the pen consumed.
func (p *Pen) Release() {
	if p != nil {
		p.released = true
	}
}

// Released reports whether the pen was consumed.
func (p *Pen) Released() bool { return p != nil && p.released }

// RoundCorners returns a new bitmap the size of b: a rounded rectangle with
// the given corner radius, filled with fill and, when border is non-nil,
// outlined by it. A nil fill paints b's own pixels. Radius 0 yields a plain
// rectangle. Both fill and border are released before returning.
func RoundCorners(b *Bitmap, radius int, fill Brush, border *Pen) *Bitmap {
	if fill == nil {
		fill = NewImageBrush(b)
	}
	defer fill.Release()
	defer border.Release()

	w, h := b.Width(), b.Height()
	out := New(w, h)
	if w == 0 || h == 0 {
		return out
	}
	radius = clampRadius(radius, w, h)

	view, unlock := out.lockBits()
	defer unlock()

	inset := 0
	if border != nil && !border.released && border.Width > 0 {
		inset = border.Width
		fillPath(view, image.Rect(0, 0, w, h), radius, image.NewUniform(border.Color))
	}

	src := fill.Source()
	if src == nil {
		return out
	}
	inner := image.Rect(inset, inset, w-inset, h-inset)
	if inner.Empty() {
		return out
	}
	fillPath(view, inner, clampRadius(radius-inset, inner.Dx(), inner.Dy()), src)
	return out
}

func clampRadius(r, w, h int) int {
	if r < 0 {
		return 0
	}
	if m := min(w, h) / 2; r > m {
		return m
	}
	return r
}

// fillPath rasterizes a rounded rectangle over dst using src.
func fillPath(dst *image.NRGBA, r image.Rectangle, radius int, src image.Image) {
	z := vector.NewRasterizer(dst.Rect.Dx(), dst.Rect.Dy())

	x0, y0 := float32(r.Min.X), float32(r.Min.Y)
	x1, y1 := float32(r.Max.X), float32(r.Max.Y)
	rad := float32(radius)

	if rad == 0 {
		z.MoveTo(x0, y0)
		z.LineTo(x1, y0)
		z.LineTo(x1, y1)
		z.LineTo(x0, y1)
		z.ClosePath()
	} else {
		k := rad * kappa
		z.MoveTo(x0+rad, y0)
		z.LineTo(x1-rad, y0)
		z.CubeTo(x1-rad+k, y0, x1, y0+rad-k, x1, y0+rad)
		z.LineTo(x1, y1-rad)
		z.CubeTo(x1, y1-rad+k, x1-rad+k, y1, x1-rad, y1)
		z.LineTo(x0+rad, y1)
		z.CubeTo(x0+rad-k, y1, x0, y1-rad+k, x0, y1-rad)
		z.LineTo(x0, y0+rad)
		z.CubeTo(x0, y0+rad-k, x0+rad-k, y0, x0+rad, y0)
		z.ClosePath()
	}
	z.Draw(dst, dst.Rect, src, image.Point{})
}
