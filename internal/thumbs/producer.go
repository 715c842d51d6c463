// Package thumbs produces the bitmaps cached by thumbcache: generated type
// icons and decoded, orientation-corrected image thumbnails.
package thumbs

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"path"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/fruitsalade/folderview/internal/compositor"
	"github.com/fruitsalade/folderview/internal/logging"
	"github.com/fruitsalade/folderview/internal/models"
	"github.com/fruitsalade/folderview/internal/retry"
	"github.com/fruitsalade/folderview/internal/storage"
	"github.com/fruitsalade/folderview/internal/thumbcache"
)

// MaxSourceBytes caps how much of a file is read to build a thumbnail.
const MaxSourceBytes = 64 << 20

// MaxSourcePixels caps the declared dimensions of a decoded image.
const MaxSourcePixels = 100 << 20

// imageExtensions are file extensions that get real thumbnails.
var imageExtensions = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "gif": true, "webp": true, "bmp": true,
}

// IsImage reports whether name has a thumbnail-capable extension.
func IsImage(name string) bool {
	return imageExtensions[strings.TrimPrefix(strings.ToLower(path.Ext(name)), ".")]
}

// Provider is the system image provider behind the thumbnail cache.
type Provider struct {
	backend storage.Backend
	icons   *IconSet
	retry   retry.Config
	log     *zap.Logger
}

// NewProvider creates a provider reading content from backend. A nil
// backend limits the provider to icons.
func NewProvider(backend storage.Backend, icons *IconSet) *Provider {
	if icons == nil {
		icons = NewIconSet()
	}
	return &Provider{
		backend: backend,
		icons:   icons,
		retry:   retry.DefaultConfig(),
		log:     logging.Named("thumbs"),
	}
}

// Icons returns the provider's icon set.
func (p *Provider) Icons() *IconSet { return p.icons }

// Placeholder returns the neutral icon shown while an image is produced.
func (p *Provider) Placeholder(size int) *compositor.Bitmap {
	return p.icons.Icon(placeholderKind, size)
}

// For returns the producer for e. Folders and non-image files always get
// their type icon; image files in thumbnail mode are decoded from content.
func (p *Provider) For(e *models.Entry) thumbcache.Producer {
	kind := e.Kind()
	isImage := !e.IsDir && IsImage(e.Name)
	return func(ctx context.Context, key thumbcache.Key) (*compositor.Bitmap, error) {
		if key.Mode == thumbcache.ModeThumbnail && isImage && p.backend != nil {
			return p.Thumbnail(ctx, key)
		}
		return p.icons.Icon(kind, key.Size), nil
	}
}

// Thumbnail reads the content for key.ID and renders it fitted into a
// transparent key.Size square with lightly rounded corners.
func (p *Provider) Thumbnail(ctx context.Context, key thumbcache.Key) (*compositor.Bitmap, error) {
	content, err := retry.DoWithResult(ctx, p.retry, func() ([]byte, error) {
		r, _, err := p.backend.GetObject(ctx, string(key.ID), 0, 0)
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(io.LimitReader(r, MaxSourceBytes))
	})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key.ID, err)
	}
	bmp, err := Render(content, key.Size)
	if err != nil {
		p.log.Debug("undecodable image", zap.String("id", string(key.ID)), zap.Error(err))
		return nil, err
	}
	return bmp, nil
}

// Render decodes content and fits it into a size×size bitmap.
func Render(content []byte, size int) (*compositor.Bitmap, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", thumbcache.ErrNoImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxSourcePixels {
		return nil, fmt.Errorf("%w: %dx%d image", thumbcache.ErrNoImage, cfg.Width, cfg.Height)
	}
	img, _, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", thumbcache.ErrNoImage, err)
	}
	img = applyOrientation(img, orientation(content))

	fit := compositor.FromImage(imaging.Fit(img, size, size, imaging.Lanczos))
	fit = compositor.RoundCorners(fit, min(fit.Width(), fit.Height())/16, nil, nil)

	out := compositor.New(size, size)
	at := image.Pt((size-fit.Width())/2, (size-fit.Height())/2)
	if compositor.DetectAlphaChannel(fit) {
		compositor.AlphaBlendDraw(out, fit, at, fit.Bounds().Size(), 1)
	} else {
		compositor.Blit(out, fit, at)
	}
	return out, nil
}

// orientation returns the EXIF orientation tag, or 1 when absent.
func orientation(content []byte) int {
	x, err := exif.Decode(bytes.NewReader(content))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	if v, err := tag.Int(0); err == nil && v >= 1 && v <= 8 {
		return v
	}
	return 1
}

// applyOrientation transforms an image according to EXIF orientation value.
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
