package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fruitsalade/folderview/internal/enumerate"
	"github.com/fruitsalade/folderview/internal/index/postgres"
	"github.com/fruitsalade/folderview/internal/logging"
	"github.com/fruitsalade/folderview/internal/models"
)

func newIndexCmd(a *app) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "index [folder]",
		Short: "Add a folder's entries to the PostgreSQL search index",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			folder := ""
			if len(args) == 1 {
				folder = args[0]
			}
			return a.index(cmd.Context(), folder, watch)
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep the index current with folder changes")
	return cmd
}

// openIndex connects to the search index and applies its migrations.
func (a *app) openIndex(ctx context.Context) (*postgres.Store, error) {
	if a.cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required for the search index")
	}
	idx, err := postgres.New(a.cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := idx.Migrate(ctx); err != nil {
		idx.Close()
		return nil, err
	}
	return idx, nil
}

func (a *app) index(ctx context.Context, folder string, watch bool) error {
	idx, err := a.openIndex(ctx)
	if err != nil {
		return err
	}
	defer idx.Close()

	src, err := a.openSource(ctx, folder)
	if err != nil {
		return err
	}
	defer src.Close()

	entries, err := enumerate.Collect(ctx, src.provider, src.folder)
	if err != nil {
		return err
	}
	if err := idx.Upsert(ctx, src.folder, entries); err != nil {
		return err
	}
	logging.Info("folder indexed", zap.String("folder", src.folder), zap.Int("entries", len(entries)))
	if !watch {
		return nil
	}

	log := logging.Named("index").With(zap.String("folder", src.folder))
	return src.watch(ctx, func(ev models.Event) {
		if err := idx.Apply(ctx, src.folder, ev); err != nil {
			log.Warn("index update failed", zap.Stringer("kind", ev.Kind), zap.Error(err))
		}
	})
}
