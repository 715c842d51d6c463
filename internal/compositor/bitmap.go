// Package compositor holds the synchronous bitmap transforms used to draw
// list icons: alpha blending, premultiplication, corner rounding, cropping.
//
// Operations may run on any goroutine but must not run concurrently on the
// same destination bitmap.
package compositor

import (
	"image"
	"image/color"
	"sync"

	"github.com/disintegration/imaging"
)

// Bitmap is a 32bpp RGBA pixel buffer with its origin at (0, 0).
// Samples are straight (non-premultiplied) unless PremultiplyAlpha was applied.
type Bitmap struct {
	Pix    []uint8
	Stride int
	Rect   image.Rectangle

	mu sync.Mutex
}

// New allocates a transparent w×h bitmap.
func New(w, h int) *Bitmap {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return &Bitmap{
		Pix:    make([]uint8, 4*w*h),
		Stride: 4 * w,
		Rect:   image.Rect(0, 0, w, h),
	}
}

// FromImage copies img into a new Bitmap.
func FromImage(img image.Image) *Bitmap {
	n := imaging.Clone(img)
	return &Bitmap{Pix: n.Pix, Stride: n.Stride, Rect: n.Rect}
}

// Width returns the bitmap width in pixels.
func (b *Bitmap) Width() int { return b.Rect.Dx() }

// Height returns the bitmap height in pixels.
func (b *Bitmap) Height() int { return b.Rect.Dy() }

// Bounds returns the pixel rectangle.
func (b *Bitmap) Bounds() image.Rectangle { return b.Rect }

// NRGBA returns a straight-alpha view sharing the pixel buffer.
func (b *Bitmap) NRGBA() *image.NRGBA {
	return &image.NRGBA{Pix: b.Pix, Stride: b.Stride, Rect: b.Rect}
}

// RGBA returns a premultiplied view sharing the pixel buffer. It is only
// meaningful after PremultiplyAlpha.
func (b *Bitmap) RGBA() *image.RGBA {
	return &image.RGBA{Pix: b.Pix, Stride: b.Stride, Rect: b.Rect}
}

// Clone returns a deep copy.
func (b *Bitmap) Clone() *Bitmap {
	pix := make([]uint8, len(b.Pix))
	copy(pix, b.Pix)
	return &Bitmap{Pix: pix, Stride: b.Stride, Rect: b.Rect}
}

// NRGBAAt returns the pixel at (x, y).
func (b *Bitmap) NRGBAAt(x, y int) color.NRGBA {
	if !image.Pt(x, y).In(b.Rect) {
		return color.NRGBA{}
	}
	i := b.offset(x, y)
	s := b.Pix[i : i+4 : i+4]
	return color.NRGBA{R: s[0], G: s[1], B: s[2], A: s[3]}
}

// SetNRGBA sets the pixel at (x, y).
func (b *Bitmap) SetNRGBA(x, y int, c color.NRGBA) {
	if !image.Pt(x, y).In(b.Rect) {
		return
	}
	i := b.offset(x, y)
	s := b.Pix[i : i+4 : i+4]
	s[0], s[1], s[2], s[3] = c.R, c.G, c.B, c.A
}

// Fill sets every pixel to c.
func (b *Bitmap) Fill(c color.NRGBA) {
	for i := 0; i+3 < len(b.Pix); i += 4 {
		b.Pix[i], b.Pix[i+1], b.Pix[i+2], b.Pix[i+3] = c.R, c.G, c.B, c.A
	}
}

func (b *Bitmap) offset(x, y int) int {
	return (y-b.Rect.Min.Y)*b.Stride + (x-b.Rect.Min.X)*4
}

// lockBits gives exclusive write access to the pixels. The returned func
// must be deferred by the caller.
func (b *Bitmap) lockBits() (*image.NRGBA, func()) {
	b.mu.Lock()
	return b.NRGBA(), b.mu.Unlock
}
