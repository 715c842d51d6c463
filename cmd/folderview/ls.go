package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fruitsalade/folderview/internal/bridge"
	"github.com/fruitsalade/folderview/internal/condition"
	"github.com/fruitsalade/folderview/internal/enumerate"
	"github.com/fruitsalade/folderview/internal/logging"
	"github.com/fruitsalade/folderview/internal/models"
	"github.com/fruitsalade/folderview/internal/store"
	"github.com/fruitsalade/folderview/internal/thumbcache"
	"github.com/fruitsalade/folderview/internal/thumbs"
)

type lsOptions struct {
	sort  string
	desc  bool
	where string
	watch bool
	size  int
	draw  string
	wait  time.Duration
}

func newLsCmd(a *app) *cobra.Command {
	var o lsOptions

	cmd := &cobra.Command{
		Use:   "ls [folder]",
		Short: "List a folder through a list session",
		Long: `List a folder the way an owner-data list view sees it: the session
reports a row count and the rows are queried back one by one.

Examples:
  folderview ls ~/Pictures --sort modified --desc
  folderview ls . --where 'size>1MiB -type:tmp'
  folderview ls . --size 96 --draw /tmp/cells
  folderview ls . --watch`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			folder := ""
			if len(args) == 1 {
				folder = args[0]
			}
			if !cmd.Flags().Changed("watch") {
				o.watch = a.cfg.Watch
			}
			src, err := a.openSource(cmd.Context(), folder)
			if err != nil {
				return err
			}
			defer src.Close()
			return a.list(cmd.Context(), cmd.OutOrStdout(), src, o)
		},
	}

	cmd.Flags().StringVar(&o.sort, "sort", "", "sort column: name, size, type, modified")
	cmd.Flags().BoolVar(&o.desc, "desc", false, "sort descending")
	cmd.Flags().StringVar(&o.where, "where", "", "filter condition, e.g. 'name:~draft size>10KB'")
	cmd.Flags().BoolVarP(&o.watch, "watch", "w", false, "keep listing and print changes")
	cmd.Flags().IntVar(&o.size, "size", 0, "query row images at this size in pixels")
	cmd.Flags().StringVar(&o.draw, "draw", "", "write composed image cells as PNG files into this directory (needs --size)")
	cmd.Flags().DurationVar(&o.wait, "wait", 30*time.Second, "how long to wait for row images")
	return cmd
}

// listing forwards events to the bridge and remembers when the initial
// enumeration finished.
type listing struct {
	sink enumerate.Sink
	done bool
}

func (l *listing) OnEnumerationEvent(ev models.Event) {
	l.sink.OnEnumerationEvent(ev)
	if ev.Kind == models.EventDone {
		l.done = true
	}
}

func (a *app) bridgeOptions(o lsOptions) ([]bridge.Option, error) {
	opts := []bridge.Option{bridge.WithThumbnailMinSize(a.cfg.ThumbMinSize)}
	if o.sort != "" {
		col, ok := store.ParseColumn(o.sort)
		if !ok {
			return nil, fmt.Errorf("unknown sort column %q", o.sort)
		}
		opts = append(opts, bridge.WithSort(col, !o.desc))
	}
	if o.where != "" {
		node, err := condition.ParseExpr(o.where)
		if err != nil {
			return nil, err
		}
		prg, err := condition.Compile(node)
		if err != nil {
			return nil, err
		}
		logging.Debug("filter compiled", zap.Stringer("condition", node), zap.String("cel", prg.Expr()))
		opts = append(opts, bridge.WithFilter(prg.Filter()))
	}
	return opts, nil
}

// list runs a headless list session over src and prints its rows.
func (a *app) list(ctx context.Context, out io.Writer, src *source, o lsOptions) error {
	if o.draw != "" && o.size <= 0 {
		return fmt.Errorf("--draw needs --size")
	}
	opts, err := a.bridgeOptions(o)
	if err != nil {
		return err
	}

	cache := thumbcache.New(cacheOptions(a.cfg))
	cache.Start(ctx)
	defer cache.Stop()

	b := bridge.New(cache, thumbs.NewProvider(src.backend, nil), opts...)
	loop := bridge.NewLoop()
	con := newConsole(out, b, o.size)
	if err := b.Attach(con, loop); err != nil {
		return err
	}
	defer b.Detach()

	feed := enumerate.NewFeed()
	events := feed.Subscribe()
	defer feed.Unsubscribe(events)

	ctx, cancel := context.WithCancel(logging.WithSession(ctx, b.Session()))
	defer cancel()

	sink := &listing{sink: b}
	go enumerate.Pump(ctx, events, loop, sink)

	enumErr := make(chan error, 1)
	go func() {
		enumErr <- src.provider.Enumerate(ctx, src.folder, feed.Emit(ctx))
	}()

	log := logging.WithContext(ctx).Named("ls").With(zap.String("folder", src.folder))
	var (
		printed bool
		timeout <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-enumErr:
			enumErr = nil
			if err != nil {
				return err
			}
			continue
		case <-timeout:
			log.Warn("gave up waiting for images", zap.Duration("wait", o.wait))
			return a.finish(out, b, con, o)
		case <-loop.Pending():
			loop.Drain()
		}

		if !sink.done {
			continue
		}
		if !printed {
			con.Flush(true)
			printed = true
			log.Debug("listed", zap.Int("count", b.Count()), zap.Uint64("epoch", b.Epoch()))

			if o.watch && src.watch != nil {
				go func() {
					if err := src.watch(ctx, feed.Emit(ctx)); err != nil {
						log.Error("watch failed", zap.Error(err))
					}
				}()
				continue
			}
			if o.size <= 0 {
				return a.finish(out, b, con, o)
			}
			timeout = time.After(o.wait)
		}

		if o.watch && src.watch != nil {
			if con.Pending() > 0 {
				con.Flush(false)
			}
			continue
		}
		con.Refresh()
		if _, pending, _ := con.Images(); pending == 0 {
			return a.finish(out, b, con, o)
		}
	}
}

// finish prints the summary and writes composed cells when asked to.
func (a *app) finish(out io.Writer, b *bridge.Bridge, con *console, o lsOptions) error {
	if o.size > 0 {
		ready, pending, failed := con.Images()
		fmt.Fprintf(out, "%d items, images: %d ready, %d pending, %d failed\n", b.Count(), ready, pending, failed)
	} else {
		fmt.Fprintf(out, "%d items\n", b.Count())
	}
	if o.draw == "" {
		return nil
	}

	if err := os.MkdirAll(o.draw, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", o.draw, err)
	}
	for i := 0; i < b.Count(); i++ {
		cell, ok := b.OnDrawItem(i, o.size)
		if !ok {
			continue
		}
		if err := writePNG(filepath.Join(o.draw, fmt.Sprintf("%04d.png", i)), cell.RGBA()); err != nil {
			return err
		}
	}
	fmt.Fprintf(out, "wrote %d cells to %s\n", b.Count(), o.draw)
	return nil
}
