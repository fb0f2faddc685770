package main

import (
	"github.com/spf13/cobra"
)

type batchFlags struct {
	input        string
	engine       string
	format       string
	workers      int
	noCache      bool
	skipExisting bool
}

func newRootCommand() *cobra.Command {
	var configFlag string
	var verbose bool
	flags := &batchFlags{}

	ctx := newCommandContext(&configFlag, &verbose)

	rootCmd := &cobra.Command{
		Use:   "asrbatch -i <file-or-directory>",
		Short: "Batch transcribe audio and video files",
		Long: "asrbatch converts media to mono audio, sends it to a speech recognition engine and\n" +
			"writes a transcript next to each source file. Results are cached by audio content.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, ctx, flags)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.Flags().StringVarP(&flags.input, "input", "i", "", "Media file or directory to transcribe")
	rootCmd.Flags().StringVarP(&flags.engine, "engine", "e", "", "Engine: b/bcut, j/jianying, k/kuaishou, w/whisperx")
	rootCmd.Flags().StringVarP(&flags.format, "format", "f", "", "Output format: txt, srt, ass, json")
	rootCmd.Flags().IntVarP(&flags.workers, "workers", "j", 0, "Files processed concurrently")
	rootCmd.Flags().BoolVar(&flags.noCache, "no-cache", false, "Neither read nor write the result cache")
	rootCmd.Flags().BoolVar(&flags.skipExisting, "skip-existing", false, "Skip files whose transcript already exists")
	_ = rootCmd.MarkFlagRequired("input")

	rootCmd.AddCommand(newCacheCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newEnginesCommand(ctx))

	return rootCmd
}
