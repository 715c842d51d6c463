package thumbs

import (
	"image"
	"image/color"

	"github.com/fruitsalade/folderview/internal/compositor"
	"github.com/fruitsalade/folderview/internal/models"
)

// Overlay badge cells, left to right.
var overlayOrder = []models.Overlay{models.OverlayLink, models.OverlayCloud, models.OverlayLocked}

// OverlaySheet is a horizontal sprite sheet of badge cells.
type OverlaySheet struct {
	Bitmap *compositor.Bitmap
	Cell   int // cell edge in pixels
}

// Overlays renders the badge sheet with cells of cell×cell pixels.
func Overlays(cell int) *OverlaySheet {
	if cell < 4 {
		cell = 4
	}
	sheet := compositor.New(cell*len(overlayOrder), cell)
	for i, o := range overlayOrder {
		badge := renderBadge(o, cell)
		compositor.AlphaBlendDraw(sheet, badge, image.Pt(i*cell, 0), image.Pt(cell, cell), 1)
	}
	return &OverlaySheet{Bitmap: sheet, Cell: cell}
}

// Offset returns the top-left of the cell for o, or false for OverlayNone.
func (s *OverlaySheet) Offset(o models.Overlay) (image.Point, bool) {
	for i, v := range overlayOrder {
		if v == o {
			return image.Pt(i*s.Cell, 0), true
		}
	}
	return image.Point{}, false
}

func renderBadge(o models.Overlay, cell int) *compositor.Bitmap {
	pen := &compositor.Pen{Color: color.NRGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xff}, Width: max(1, cell/10)}
	switch o {
	case models.OverlayLink:
		return compositor.RoundCorners(compositor.New(cell, cell), cell/5,
			&compositor.SolidBrush{Color: color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}}, pen)
	case models.OverlayCloud:
		return compositor.RoundCorners(compositor.New(cell, cell), cell/2,
			&compositor.SolidBrush{Color: color.NRGBA{R: 0x42, G: 0xa5, B: 0xf5, A: 0xff}}, pen)
	case models.OverlayLocked:
		return compositor.RoundCorners(compositor.New(cell, cell), 1,
			&compositor.SolidBrush{Color: color.NRGBA{R: 0xff, G: 0xc1, B: 0x07, A: 0xff}}, pen)
	}
	return compositor.New(cell, cell)
}
