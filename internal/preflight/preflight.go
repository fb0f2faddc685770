package preflight

import (
	"context"

	"asrbatch/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// probe enables network reachability checks for the selected cloud engine.
func RunAll(ctx context.Context, cfg *config.Config, engine string, probe bool) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	if cfg.Cache.Enabled {
		results = append(results, CheckDirectoryAccess("Cache directory", cfg.Paths.CacheDir))
	}
	if cfg.Logging.FileEnabled {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}
	if name, baseURL, ok := cloudEndpoint(cfg, engine); ok {
		if probe {
			results = append(results, CheckEndpoint(ctx, name, baseURL))
		} else {
			results = append(results, Result{Name: name, Passed: baseURL != "", Detail: endpointDetail(baseURL)})
		}
	}
	if isJianYing(engine) {
		results = append(results, CheckJianYingSigner(cfg))
	}

	return results
}

func endpointDetail(baseURL string) string {
	if baseURL == "" {
		return "base_url not configured"
	}
	return baseURL + " (not probed)"
}
