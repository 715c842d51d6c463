package thumbs

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/fruitsalade/folderview/internal/models"
	"github.com/fruitsalade/folderview/internal/storage/local"
	"github.com/fruitsalade/folderview/internal/thumbcache"
)

func encodePNG(t *testing.T, w, h int, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestRenderRejectsHugeDimensions(t *testing.T) {
	content := encodePNG(t, 1, 1, color.NRGBA{A: 255})
	// Rewrite the IHDR width and height, then its CRC over type and data.
	binary.BigEndian.PutUint32(content[16:], 1<<20)
	binary.BigEndian.PutUint32(content[20:], 1<<20)
	binary.BigEndian.PutUint32(content[29:], crc32.ChecksumIEEE(content[12:29]))

	if _, err := Render(content, 16); !errors.Is(err, thumbcache.ErrNoImage) {
		t.Fatalf("Render error = %v, want ErrNoImage", err)
	}
}

func TestRenderFitsAndCenters(t *testing.T) {
	red := color.NRGBA{R: 255, A: 255}
	bmp, err := Render(encodePNG(t, 40, 20, red), 16)
	if err != nil {
		t.Fatal(err)
	}
	if bmp.Width() != 16 || bmp.Height() != 16 {
		t.Fatalf("size = %dx%d, want 16x16", bmp.Width(), bmp.Height())
	}
	if got := bmp.NRGBAAt(8, 8); got != red {
		t.Errorf("center = %v, want %v", got, red)
	}
	// A 2:1 image leaves transparent bands above and below.
	if got := bmp.NRGBAAt(8, 1); got.A != 0 {
		t.Errorf("band pixel = %v, want transparent", got)
	}
}

func TestRenderUndecodable(t *testing.T) {
	_, err := Render([]byte("not an image"), 16)
	if !errors.Is(err, thumbcache.ErrNoImage) {
		t.Errorf("err = %v, want ErrNoImage", err)
	}
}

func TestProducerForEntries(t *testing.T) {
	root := t.TempDir()
	green := color.NRGBA{G: 255, A: 255}
	if err := os.WriteFile(filepath.Join(root, "pic.png"), encodePNG(t, 8, 8, green), 0644); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(filepath.Join(root, "bad.png"), []byte("garbage"), 0644)
	backend, err := local.New(local.Config{RootPath: root})
	if err != nil {
		t.Fatal(err)
	}
	p := NewProvider(backend, nil)
	ctx := context.Background()

	pic := &models.Entry{ID: "pic.png", Name: "pic.png"}
	bmp, err := p.For(pic)(ctx, thumbcache.Key{ID: pic.ID, Size: 32, Mode: thumbcache.ModeThumbnail})
	if err != nil {
		t.Fatal(err)
	}
	if got := bmp.NRGBAAt(16, 16); got != green {
		t.Errorf("thumbnail center = %v, want %v", got, green)
	}

	icon, err := p.For(pic)(ctx, thumbcache.Key{ID: pic.ID, Size: 32, Mode: thumbcache.ModeIcon})
	if err != nil || icon != p.Icons().Icon("png", 32) {
		t.Errorf("icon mode should return the shared type icon, err=%v", err)
	}

	dir := &models.Entry{ID: "docs", Name: "docs", IsDir: true}
	folder, err := p.For(dir)(ctx, thumbcache.Key{ID: dir.ID, Size: 32, Mode: thumbcache.ModeThumbnail})
	if err != nil || folder != p.Icons().Icon("folder", 32) {
		t.Errorf("folders should always get the folder icon, err=%v", err)
	}

	bad := &models.Entry{ID: "bad.png", Name: "bad.png"}
	if _, err := p.For(bad)(ctx, thumbcache.Key{ID: bad.ID, Size: 32, Mode: thumbcache.ModeThumbnail}); !errors.Is(err, thumbcache.ErrNoImage) {
		t.Errorf("bad image err = %v, want ErrNoImage", err)
	}

	missing := &models.Entry{ID: "gone.png", Name: "gone.png"}
	if _, err := p.For(missing)(ctx, thumbcache.Key{ID: missing.ID, Size: 32, Mode: thumbcache.ModeThumbnail}); err == nil {
		t.Error("missing file should fail")
	}
}

func TestIconSet(t *testing.T) {
	s := NewIconSet()
	a := s.Icon("txt", 32)
	if a != s.Icon("txt", 32) {
		t.Error("icons are not memoized")
	}
	if a.Width() != 32 || a.Height() != 32 {
		t.Errorf("icon size = %dx%d", a.Width(), a.Height())
	}
	if got := a.NRGBAAt(16, 16); got != KindColor("txt") {
		t.Errorf("icon center = %v, want %v", got, KindColor("txt"))
	}
	if got := a.NRGBAAt(0, 16); got.A != 0 {
		t.Errorf("page margin = %v, want transparent", got)
	}
	if KindColor("xyz") != KindColor("xyz") {
		t.Error("KindColor not stable")
	}
	if f := s.Icon("folder", 32); f.NRGBAAt(16, 20) != folderColor {
		t.Errorf("folder body = %v, want %v", f.NRGBAAt(16, 20), folderColor)
	}
}

func TestOverlays(t *testing.T) {
	sheet := Overlays(8)
	if sheet.Bitmap.Width() != 24 || sheet.Bitmap.Height() != 8 {
		t.Fatalf("sheet size = %dx%d", sheet.Bitmap.Width(), sheet.Bitmap.Height())
	}
	p, ok := sheet.Offset(models.OverlayCloud)
	if !ok || p != image.Pt(8, 0) {
		t.Errorf("cloud offset = %v, %v", p, ok)
	}
	if _, ok := sheet.Offset(models.OverlayNone); ok {
		t.Error("OverlayNone has no cell")
	}
	if got := sheet.Bitmap.NRGBAAt(12, 4); got.A != 255 {
		t.Errorf("cloud center alpha = %d, want 255", got.A)
	}
}
