package compositor

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// GhostOpacity is the opacity used for cut and hidden items.
const GhostOpacity = float64(0x7f) / float64(0xff)

type drawOptions struct {
	srcRect   image.Rectangle
	srcOffset *image.Point
}

// DrawOption configures AlphaBlendDraw.
type DrawOption func(*drawOptions)

// WithSourceOffset crops a destination-sized region starting at p from the
// source, for extracting cells of a sprite sheet. No stretching happens: the
// part of the region outside the source is left undrawn.
func WithSourceOffset(p image.Point) DrawOption {
	return func(o *drawOptions) { o.srcOffset = &p }
}

// WithSourceRect selects the source region; it is stretched to the
// destination size when the sizes differ.
func WithSourceRect(r image.Rectangle) DrawOption {
	return func(o *drawOptions) { o.srcRect = r }
}

// AlphaBlendDraw composites src onto dst at position at, scaled to size,
// using straight alpha. opacity in [0, 1] additionally scales each source
// pixel's alpha. By default the whole source is stretched to size.
func AlphaBlendDraw(dst, src *Bitmap, at, size image.Point, opacity float64, opts ...DrawOption) {
	if dst == nil || src == nil || size.X <= 0 || size.Y <= 0 {
		return
	}

	o := drawOptions{srcRect: src.Bounds()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.srcOffset != nil {
		o.srcRect = image.Rectangle{Min: *o.srcOffset, Max: o.srcOffset.Add(size)}
	}
	srcRect := o.srcRect.Intersect(src.Bounds())
	if srcRect.Empty() {
		return
	}
	if o.srcOffset != nil {
		// Shrink the destination by what the source clipped away.
		at = at.Add(srcRect.Min.Sub(o.srcRect.Min))
		size = srcRect.Size()
	}

	// Snapshot the source region before locking dst so dst may equal src.
	var region *image.NRGBA
	if srcRect.Size() == size {
		region = imaging.Crop(src.NRGBA(), srcRect)
	} else {
		region = imaging.Resize(src.NRGBA().SubImage(srcRect), size.X, size.Y, imaging.Linear)
	}

	alpha := opacityByte(opacity)
	if alpha == 0 {
		return
	}

	view, unlock := dst.lockBits()
	defer unlock()

	target := image.Rectangle{Min: at, Max: at.Add(size)}.Intersect(view.Rect)
	for y := target.Min.Y; y < target.Max.Y; y++ {
		for x := target.Min.X; x < target.Max.X; x++ {
			si := region.PixOffset(x-at.X, y-at.Y)
			di := view.PixOffset(x, y)
			blendPixel(view.Pix[di:di+4:di+4], region.Pix[si:si+4:si+4], alpha)
		}
	}
}

// blendPixel composites the straight-alpha sample s over d in place.
func blendPixel(d, s []uint8, opacity uint32) {
	sa := div255(uint32(s[3]) * opacity)
	switch sa {
	case 0:
		return
	case 255:
		d[0], d[1], d[2], d[3] = s[0], s[1], s[2], 255
		return
	}

	dw := div255(uint32(d[3]) * (255 - sa)) // destination weight after cover
	outA := sa + dw
	for c := 0; c < 3; c++ {
		d[c] = uint8((uint32(s[c])*sa + uint32(d[c])*dw + outA/2) / outA)
	}
	d[3] = uint8(outA)
}

// Blit copies src onto dst at position at without blending: pixels with
// zero alpha are skipped and all others are written opaque. It is the
// cheap path for bitmaps that DetectAlphaChannel reports as having no real alpha.
func Blit(dst, src *Bitmap, at image.Point) {
	if dst == nil || src == nil {
		return
	}
	region := imaging.Clone(src.NRGBA())

	view, unlock := dst.lockBits()
	defer unlock()

	target := image.Rectangle{Min: at, Max: at.Add(region.Rect.Size())}.Intersect(view.Rect)
	for y := target.Min.Y; y < target.Max.Y; y++ {
		for x := target.Min.X; x < target.Max.X; x++ {
			si := region.PixOffset(x-at.X, y-at.Y)
			if region.Pix[si+3] == 0 {
				continue
			}
			di := view.PixOffset(x, y)
			copy(view.Pix[di:di+3], region.Pix[si:si+3])
			view.Pix[di+3] = 255
		}
	}
}

// DetectAlphaChannel reports whether at least one pixel has an alpha value
// strictly between 0 and 255. Fully opaque or fully transparent samples do
// not count as real alpha.
func DetectAlphaChannel(b *Bitmap) bool {
	if b == nil {
		return false
	}
	w, h := b.Width(), b.Height()
	for y := 0; y < h; y++ {
		row := b.Pix[y*b.Stride : y*b.Stride+4*w]
		for i := 3; i < len(row); i += 4 {
			if a := row[i]; a != 0 && a != 255 {
				return true
			}
		}
	}
	return false
}

func opacityByte(opacity float64) uint32 {
	if math.IsNaN(opacity) || opacity <= 0 {
		return 0
	}
	if opacity >= 1 {
		return 255
	}
	return uint32(math.Round(opacity * 255))
}

// div255 divides by 255 rounding to nearest.
func div255(x uint32) uint32 {
	return (x + 127) / 255
}
