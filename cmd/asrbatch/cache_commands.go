package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"asrbatch/internal/cache"
	"asrbatch/internal/config"
	"asrbatch/internal/engine"
)

const fingerprintDisplayLength = 12

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the transcript cache",
	}

	cacheCmd.AddCommand(newCacheListCommand(ctx))
	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCacheRemoveCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))
	cacheCmd.AddCommand(newCachePruneCommand(ctx))

	return cacheCmd
}

// withStore opens the cache database even when caching is disabled for
// batches, so maintenance still works.
func withStore(ctx *commandContext, fn func(cfg *config.Config, store *cache.Store) error) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}
	store, err := cache.Open(cfg.CacheDBPath(), cache.Options{MemoryTTL: cfg.MemoryTTL(), Logger: logger})
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	return fn(cfg, store)
}

// canonicalEngine maps a user-supplied engine id to the name used as cache key.
func canonicalEngine(cfg *config.Config, id string) (string, error) {
	if strings.TrimSpace(id) == "" {
		return "", nil
	}
	registry := engine.NewRegistry(cfg, nil)
	defer func() { _ = registry.Close() }()
	spec, err := registry.Resolve(id)
	if err != nil {
		return "", err
	}
	return spec.Name, nil
}

func newCacheListCommand(ctx *commandContext) *cobra.Command {
	var engineFlag string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached transcripts, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(ctx, func(cfg *config.Config, store *cache.Store) error {
				name, err := canonicalEngine(cfg, engineFlag)
				if err != nil {
					return err
				}
				entries, err := store.List(cmd.Context(), name, limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintln(out, "Cache is empty")
					return nil
				}
				rows := make([][]string, 0, len(entries))
				for _, entry := range entries {
					rows = append(rows, []string{
						shortFingerprint(entry.Fingerprint),
						entry.Engine,
						entry.SourceName,
						strconv.Itoa(entry.SegmentCount),
						humanize.Time(entry.CreatedAt),
					})
				}
				fmt.Fprintln(out, renderTable(cacheEntryColumns, rows))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&engineFlag, "engine", "e", "", "Only show entries for this engine")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum entries to show (0 for all)")
	return cmd
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show transcript cache usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(ctx, func(_ *config.Config, store *cache.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Database: %s\n", stats.Path)
				fmt.Fprintf(out, "Size:     %s\n", humanize.Bytes(uint64(max(stats.DatabaseBytes, 0))))
				fmt.Fprintf(out, "Entries:  %d (%d segments)\n", stats.Entries, stats.Segments)
				if stats.Entries == 0 {
					return nil
				}
				fmt.Fprintf(out, "Oldest:   %s\n", humanize.Time(stats.Oldest))
				fmt.Fprintf(out, "Newest:   %s\n", humanize.Time(stats.Newest))

				engines := make([]string, 0, len(stats.PerEngine))
				for name := range stats.PerEngine {
					engines = append(engines, name)
				}
				sort.Strings(engines)
				rows := make([][]string, 0, len(engines))
				for _, name := range engines {
					rows = append(rows, []string{name, strconv.Itoa(stats.PerEngine[name])})
				}
				fmt.Fprintln(out, renderTable(cacheEngineColumns, rows))
				return nil
			})
		},
	}
}

func newCacheRemoveCommand(ctx *commandContext) *cobra.Command {
	var engineFlag string

	cmd := &cobra.Command{
		Use:   "remove <fingerprint-prefix>",
		Short: "Remove cached transcripts by fingerprint prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(ctx, func(cfg *config.Config, store *cache.Store) error {
				name, err := canonicalEngine(cfg, engineFlag)
				if err != nil {
					return err
				}
				removed, err := store.Remove(cmd.Context(), strings.ToLower(strings.TrimSpace(args[0])), name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d %s\n", removed, plural(removed, "entry", "entries"))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&engineFlag, "engine", "e", "", "Only remove entries for this engine")
	return cmd
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	var reset bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every cached transcript",
		RunE: func(cmd *cobra.Command, args []string) error {
			if reset {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				if err := cache.Reset(cfg.CacheDBPath()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted cache database %s\n", cfg.CacheDBPath())
				return nil
			}
			return withStore(ctx, func(_ *config.Config, store *cache.Store) error {
				removed, err := store.Clear(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d %s\n", removed, plural(removed, "entry", "entries"))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "Delete the database file instead of its rows (recovers from schema mismatches)")
	return cmd
}

func newCachePruneCommand(ctx *commandContext) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete cached transcripts older than a number of days",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(ctx, func(cfg *config.Config, store *cache.Store) error {
				age := days
				if !cmd.Flags().Changed("days") {
					age = cfg.Cache.PruneAfterDays
				}
				if age <= 0 {
					return fmt.Errorf("prune age must be positive, got %d days", age)
				}
				removed, err := store.Prune(cmd.Context(), time.Duration(age)*24*time.Hour)
				if err != nil {
					return err
				}
				if removed == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No cache entries pruned")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d %s older than %d days\n", removed, plural(removed, "entry", "entries"), age)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "Age threshold in days (defaults to cache.prune_after_days)")
	return cmd
}

func shortFingerprint(fp string) string {
	if len(fp) <= fingerprintDisplayLength {
		return fp
	}
	return fp[:fingerprintDisplayLength]
}

func plural(n int64, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
