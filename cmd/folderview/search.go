package main

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fruitsalade/folderview/internal/condition"
	"github.com/fruitsalade/folderview/internal/enumerate"
	"github.com/fruitsalade/folderview/internal/logging"
)

func newSearchCmd(a *app) *cobra.Command {
	var (
		in    string
		limit int
		o     lsOptions
	)

	cmd := &cobra.Command{
		Use:   "search <condition>",
		Short: "List the indexed items matching a condition",
		Long: `Search the PostgreSQL index and show the matches as a virtual folder.

Conditions are whitespace-separated terms that must all hold. A term is
property:value (contains), property=value, property>value and so on, or
a bare word matched against the name. Prefix a term with - to negate it
and join terms with | for either.

Examples:
  folderview search 'type:pdf size>1MiB'
  folderview search 'report -draft' --in /home/ann/docs
  folderview search '(type=jpg | type=png) modified>=2024-01-01'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := condition.ParseExpr(args[0])
			if err != nil {
				return err
			}
			logging.Debug("search", zap.Stringer("condition", query))

			idx, err := a.openIndex(cmd.Context())
			if err != nil {
				return err
			}
			defer idx.Close()

			src, err := a.openSource(cmd.Context(), "")
			if err != nil {
				return err
			}
			defer src.Close()

			src.folder = in
			src.provider = enumerate.NewSearch(idx, query, limit)
			src.watch = nil
			return a.list(cmd.Context(), cmd.OutOrStdout(), src, o)
		},
	}

	cmd.Flags().StringVar(&in, "in", "", "only search below this folder")
	cmd.Flags().IntVar(&limit, "limit", 200, "maximum number of results")
	cmd.Flags().StringVar(&o.sort, "sort", "", "sort column: name, size, type, modified")
	cmd.Flags().BoolVar(&o.desc, "desc", false, "sort descending")
	cmd.Flags().IntVar(&o.size, "size", 0, "query row images at this size in pixels")
	cmd.Flags().DurationVar(&o.wait, "wait", 30*time.Second, "how long to wait for row images")
	return cmd
}
