package thumbs

import (
	"hash/fnv"
	"image"
	"image/color"
	"sync"

	"github.com/fruitsalade/folderview/internal/compositor"
)

// placeholderKind never collides with an extension.
const placeholderKind = "\x00placeholder"

var (
	placeholderColor = color.NRGBA{R: 0xcf, G: 0xd8, B: 0xdc, A: 0xff}
	folderColor      = color.NRGBA{R: 0xf8, G: 0xd7, B: 0x75, A: 0xff}

	kindColors = map[string]color.NRGBA{
		"jpg": {R: 0x4c, G: 0xaf, B: 0x50, A: 0xff}, "jpeg": {R: 0x4c, G: 0xaf, B: 0x50, A: 0xff},
		"png": {R: 0x4c, G: 0xaf, B: 0x50, A: 0xff}, "gif": {R: 0x4c, G: 0xaf, B: 0x50, A: 0xff},
		"bmp": {R: 0x4c, G: 0xaf, B: 0x50, A: 0xff}, "webp": {R: 0x4c, G: 0xaf, B: 0x50, A: 0xff},
		"txt": {R: 0x90, G: 0xa4, B: 0xae, A: 0xff}, "md": {R: 0x90, G: 0xa4, B: 0xae, A: 0xff},
		"pdf": {R: 0xe5, G: 0x39, B: 0x35, A: 0xff},
		"doc": {R: 0x1e, G: 0x88, B: 0xe5, A: 0xff}, "docx": {R: 0x1e, G: 0x88, B: 0xe5, A: 0xff},
		"zip": {R: 0x8d, G: 0x6e, B: 0x63, A: 0xff}, "tar": {R: 0x8d, G: 0x6e, B: 0x63, A: 0xff},
		"gz": {R: 0x8d, G: 0x6e, B: 0x63, A: 0xff},
		"go": {R: 0x00, G: 0xad, B: 0xd8, A: 0xff},
	}

	palette = []color.NRGBA{
		{R: 0x7e, G: 0x57, B: 0xc2, A: 0xff},
		{R: 0x26, G: 0xa6, B: 0x9a, A: 0xff},
		{R: 0xff, G: 0x70, B: 0x43, A: 0xff},
		{R: 0x5c, G: 0x6b, B: 0xc0, A: 0xff},
		{R: 0xec, G: 0x40, B: 0x7a, A: 0xff},
		{R: 0x9e, G: 0x9d, B: 0x24, A: 0xff},
	}
)

// KindColor returns the tile color for a type column value.
func KindColor(kind string) color.NRGBA {
	switch kind {
	case "folder":
		return folderColor
	case placeholderKind:
		return placeholderColor
	}
	if c, ok := kindColors[kind]; ok {
		return c
	}
	h := fnv.New32a()
	h.Write([]byte(kind))
	return palette[h.Sum32()%uint32(len(palette))]
}

type iconKey struct {
	kind string
	size int
}

// IconSet renders and memoizes generic type icons.
type IconSet struct {
	mu    sync.Mutex
	icons map[iconKey]*compositor.Bitmap
}

// NewIconSet creates an empty icon set.
func NewIconSet() *IconSet {
	return &IconSet{icons: make(map[iconKey]*compositor.Bitmap)}
}

// Icon returns the icon for kind at size×size pixels. The result is shared
// and must not be modified.
func (s *IconSet) Icon(kind string, size int) *compositor.Bitmap {
	if size <= 0 {
		size = 16
	}
	k := iconKey{kind, size}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.icons[k]; ok {
		return b
	}
	var b *compositor.Bitmap
	if kind == "folder" {
		b = folderIcon(size)
	} else {
		b = fileIcon(KindColor(kind), size)
	}
	s.icons[k] = b
	return b
}

// fileIcon is a portrait page tile with a darker border.
func fileIcon(c color.NRGBA, size int) *compositor.Bitmap {
	w := size * 3 / 4
	if w < 1 {
		w = 1
	}
	page := compositor.RoundCorners(compositor.New(w, size), size/8, &compositor.SolidBrush{Color: c}, &compositor.Pen{Color: shade(c), Width: max(1, size/16)})

	out := compositor.New(size, size)
	compositor.AlphaBlendDraw(out, page, image.Pt((size-w)/2, 0), image.Pt(w, size), 1)
	return out
}

// folderIcon is a tab plus body.
func folderIcon(size int) *compositor.Bitmap {
	pen := max(1, size/16)
	tabW, tabH := size/2, max(2, size/4)
	bodyH := size - tabH/2

	tab := compositor.RoundCorners(compositor.New(tabW, tabH), size/10, &compositor.SolidBrush{Color: shade(folderColor)}, nil)
	body := compositor.RoundCorners(compositor.New(size, bodyH), size/10, &compositor.SolidBrush{Color: folderColor}, &compositor.Pen{Color: shade(folderColor), Width: pen})

	out := compositor.New(size, size)
	compositor.AlphaBlendDraw(out, tab, image.Pt(0, 0), image.Pt(tabW, tabH), 1)
	compositor.AlphaBlendDraw(out, body, image.Pt(0, size-bodyH), image.Pt(size, bodyH), 1)
	return out
}

func shade(c color.NRGBA) color.NRGBA {
	dim := func(v uint8) uint8 { return uint8(uint16(v) * 3 / 4) }
	return color.NRGBA{R: dim(c.R), G: dim(c.G), B: dim(c.B), A: c.A}
}
