package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fruitsalade/folderview/internal/config"
	"github.com/fruitsalade/folderview/internal/logging"
	"github.com/fruitsalade/folderview/internal/metrics"
	"github.com/fruitsalade/folderview/internal/thumbcache"
)

// app carries the loaded configuration to subcommands.
type app struct {
	cfgFile  string
	logLevel string

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:          "folderview",
		Short:        "Browse folders through an owner-data list session",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logging.Sync()
		},
	}

	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "configuration file (default $FOLDERVIEW_CONFIG)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(newLsCmd(a))
	root.AddCommand(newThumbCmd(a))
	root.AddCommand(newIndexCmd(a))
	root.AddCommand(newSearchCmd(a))
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if err := logging.Init(logging.Config{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		OutputPath: "stderr",
	}); err != nil {
		return err
	}
	a.cfg = cfg

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	cobra.OnFinalize(cancel)
	cmd.SetContext(ctx)

	if cfg.MetricsAddr != "" {
		a.serveMetrics(ctx)
	}
	return nil
}

// serveMetrics exposes /metrics until ctx is done.
func (a *app) serveMetrics(ctx context.Context) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:    a.cfg.MetricsAddr,
		Handler: logging.Middleware(metrics.Middleware(mux)),
	}
	go func() {
		logging.Info("metrics server listening", zap.String("addr", a.cfg.MetricsAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("metrics server error", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
}

// cacheOptions maps configuration onto thumbnail cache options.
func cacheOptions(cfg *config.Config) thumbcache.Options {
	opts := thumbcache.DefaultOptions()
	opts.Capacity = cfg.CacheCapacity
	opts.NegativeTTL = cfg.CacheNegativeTTL
	opts.Backoff.InitialWait = cfg.CacheNegativeTTL
	opts.Workers = cfg.ThumbWorkers
	opts.QueueSize = cfg.ThumbQueueSize
	return opts
}
