package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-grading-api/internal/app"
	"github.com/noah-isme/sma-grading-api/pkg/config"
	"github.com/noah-isme/sma-grading-api/pkg/logger"
)

type rootOptions struct {
	pretty  bool
	verbose bool
	out     io.Writer
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &rootOptions{out: out}

	cmd := &cobra.Command{
		Use:   "gradingctl",
		Short: "Grade, rank and export exam results from the command line",
		Long: `gradingctl runs the same grading pipeline as the API against the configured
database. Configuration is read from .env and the environment (DB_*, REDIS_*,
GRADING_*).`,
		SilenceUsage: true,
	}
	cmd.SetOut(out)

	cmd.PersistentFlags().BoolVar(&opts.pretty, "pretty", false, "Indent JSON output")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log to stderr using LOG_LEVEL and LOG_FORMAT")

	cmd.AddCommand(
		newRankCmd(opts),
		newReportCmd(opts),
		newTrendCmd(opts),
		newExportCmd(opts),
		newInvalidateCmd(opts),
	)
	return cmd
}

// withApp loads configuration, connects and hands the wired services to fn.
func (o *rootOptions) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logr := zap.NewNop()
	if o.verbose {
		if logr, err = logger.New(cfg); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer logr.Sync() //nolint:errcheck
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.New(ctx, cfg, logr)
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	return fn(ctx, a)
}

func (o *rootOptions) printJSON(v interface{}) error {
	enc := json.NewEncoder(o.out)
	if o.pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
