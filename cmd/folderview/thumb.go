package main

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fruitsalade/folderview/internal/enumerate"
	"github.com/fruitsalade/folderview/internal/models"
	"github.com/fruitsalade/folderview/internal/thumbcache"
	"github.com/fruitsalade/folderview/internal/thumbs"
)

func newThumbCmd(a *app) *cobra.Command {
	var (
		output string
		size   int
		icon   bool
	)

	cmd := &cobra.Command{
		Use:   "thumb <file>",
		Short: "Produce one thumbnail through the cache and write it as PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				output = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0])) + ".thumb.png"
			}
			mode := thumbcache.ModeThumbnail
			if icon {
				mode = thumbcache.ModeIcon
			}
			if err := a.thumb(cmd.Context(), args[0], output, size, mode); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output PNG file (default <name>.thumb.png)")
	cmd.Flags().IntVar(&size, "size", 256, "thumbnail size in pixels")
	cmd.Flags().BoolVar(&icon, "icon", false, "render the type icon instead of the content")
	return cmd
}

func (a *app) thumb(ctx context.Context, file, output string, size int, mode thumbcache.Mode) error {
	if size <= 0 {
		return fmt.Errorf("size must be positive, got %d", size)
	}

	var e *models.Entry
	src, err := a.openSource(ctx, parentFolder(a, file))
	if err != nil {
		return err
	}
	defer src.Close()

	if a.cfg.StorageBackend == "s3" {
		key := strings.Trim(file, "/")
		e = &models.Entry{ID: models.Identity(key), Name: path.Base(key)}
	} else {
		e, err = enumerate.NewLocal().Stat(filepath.Join(src.folder, filepath.Base(file)))
		if err != nil {
			return err
		}
	}

	cache := thumbcache.New(cacheOptions(a.cfg))
	images := thumbs.NewProvider(src.backend, nil)

	key := thumbcache.Key{ID: e.ID, Size: size, Mode: mode}
	h, err := cache.Load(ctx, key, images.For(e))
	if err != nil {
		return fmt.Errorf("produce %s: %w", key, err)
	}
	bmp, release, ok := cache.Acquire(h)
	defer release()
	if !ok {
		return fmt.Errorf("produce %s: handle %d evicted", key, h)
	}
	return writePNG(output, bmp.NRGBA())
}

// parentFolder returns the folder of file on the configured backend.
func parentFolder(a *app, file string) string {
	if a.cfg.StorageBackend == "s3" {
		return path.Dir(file)
	}
	return filepath.Dir(file)
}

func writePNG(name string, img image.Image) error {
	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", name, err)
	}
	return f.Close()
}
