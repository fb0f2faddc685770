package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"asrbatch/internal/engine"
	"asrbatch/internal/language"
	"asrbatch/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var engineFlag string
	var probe bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check dependencies, directories and engine configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			engineID := strings.TrimSpace(engineFlag)
			if engineID == "" {
				engineID = cfg.Transcribe.Engine
			}
			registry := engine.NewRegistry(cfg, nil)
			defer func() { _ = registry.Close() }()

			var lines []string
			lines = append(lines, renderSectionHeader("Configuration", colorize)...)
			configDetail := ctx.configPath
			if !ctx.configSeen {
				configDetail += " (not found, using defaults)"
			}
			lines = append(lines, renderStatusLine("Config", statusInfo, configDetail, colorize))
			spec, resolveErr := registry.Resolve(engineID)
			if resolveErr != nil {
				lines = append(lines, renderStatusLine("Engine", statusError, resolveErr.Error(), colorize))
			} else {
				lines = append(lines, renderStatusLine("Engine", statusOK, fmt.Sprintf("%s (%s)", spec.Name, spec.Description), colorize))
				if spec.Local {
					lines = append(lines, renderStatusLine("Language", statusInfo, language.DisplayName(cfg.Engines.WhisperX.Language), colorize))
				}
			}
			lines = append(lines, renderStatusLine("Format", statusInfo, cfg.Transcribe.Format, colorize))
			lines = append(lines, renderStatusLine("Workers", statusInfo, fmt.Sprintf("%d", cfg.Transcribe.Workers), colorize))
			lines = append(lines, renderStatusLine("Cache", statusInfo, yesNo(cfg.Cache.Enabled), colorize))

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Dependencies", colorize)...)
			lines = append(lines, dependencyLines(preflight.CheckSystemDeps(cfg, engineID), colorize)...)

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Preflight", colorize)...)
			lines = append(lines, preflightLines(preflight.RunAll(cmd.Context(), cfg, engineID, probe), colorize)...)

			fmt.Fprintln(out, strings.Join(lines, "\n"))
			return nil
		},
	}
	cmd.Flags().StringVarP(&engineFlag, "engine", "e", "", "Engine to check (defaults to the configured engine)")
	cmd.Flags().BoolVar(&probe, "probe", false, "Contact the engine endpoint to verify it is reachable")
	return cmd
}
