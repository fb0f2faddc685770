package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"asrbatch/internal/cache"
	"asrbatch/internal/engine"
	"asrbatch/internal/logging"
	"asrbatch/internal/media"
	"asrbatch/internal/pipeline"
	"asrbatch/internal/services"
	"asrbatch/internal/transcript"
)

func runBatch(cmd *cobra.Command, ctx *commandContext, flags *batchFlags) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}

	opts, err := pipeline.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("format") {
		format, err := transcript.ParseFormat(flags.format)
		if err != nil {
			return services.Wrap(services.ErrConfiguration, "cli", "parse format", err.Error(), nil)
		}
		opts.Format = format
	}
	if cmd.Flags().Changed("workers") {
		if flags.workers < 1 {
			return services.Wrap(services.ErrConfiguration, "cli", "parse workers", "--workers must be at least 1", nil)
		}
		opts.Workers = flags.workers
	}
	if flags.noCache {
		opts.UseCache = false
	}
	if flags.skipExisting {
		opts.SkipExisting = true
	}

	engineID := cfg.Transcribe.Engine
	if cmd.Flags().Changed("engine") {
		engineID = flags.engine
	}

	registry := engine.NewRegistry(cfg, logger)
	defer func() { _ = registry.Close() }()
	if _, err := registry.Resolve(engineID); err != nil {
		return err
	}
	backend, err := registry.Backend(engineID)
	if err != nil {
		return err
	}

	var resultCache pipeline.ResultCache
	if opts.UseCache {
		store, err := cache.OpenFromConfig(cfg, logger)
		if err != nil {
			logging.WarnWithContext(logger, "result cache unavailable", "cache_open_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "run 'asrbatch cache clear --reset' if the database is damaged"),
				logging.String(logging.FieldImpact, "every file will be sent to the engine"),
			)
			opts.UseCache = false
		} else if store != nil {
			defer func() { _ = store.Close() }()
			resultCache = store
		}
	}

	normalizer := media.NewNormalizer(cfg.FFmpegBinary(), cfg.FFmpegTimeout())
	runner := pipeline.NewRunner(backend, normalizer, resultCache, opts, logger)

	runCtx, stop := signal.NotifyContext(commandContextOrBackground(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := runner.RunPath(runCtx, strings.TrimSpace(flags.input))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printSummary(out, summary, shouldColorize(out))
	if code := summary.ExitCode(); code != 0 {
		return exitCodeError{code: code}
	}
	return nil
}

func commandContextOrBackground(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func newEnginesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "engines",
		Short: "List available transcription engines",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			registry := engine.NewRegistry(cfg, nil)
			defer func() { _ = registry.Close() }()

			rows := make([][]string, 0, 4)
			for _, spec := range registry.Specs() {
				kind := "cloud"
				if spec.Local {
					kind = "local"
				}
				rows = append(rows, []string{spec.Name, strings.Join(spec.Aliases, ", "), kind, spec.Description})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(engineColumns, rows))
			return nil
		},
	}
}
