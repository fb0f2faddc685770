package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"asrbatch/internal/config"
	"asrbatch/internal/logging"
	"asrbatch/internal/services"
	"asrbatch/internal/transcript"
)

// Backend transcribes one normalized audio file.
type Backend interface {
	Name() string
	Transcribe(ctx context.Context, audioPath string) (transcript.Result, error)
}

// Factory builds a backend from configuration.
type Factory func(cfg *config.Config, logger *slog.Logger) (Backend, error)

// Spec describes a registered engine.
type Spec struct {
	// Name is the canonical engine name used in cache keys and logs.
	Name        string
	Aliases     []string
	Description string
	Local       bool
	Factory     Factory
	// Limits returns the admission settings for this engine.
	Limits func(cfg *config.Config) Limits
}

// IDs returns the canonical name followed by its aliases.
func (s Spec) IDs() []string {
	return append([]string{s.Name}, s.Aliases...)
}

// Registry resolves engine identifiers and owns the backends it builds.
type Registry struct {
	cfg    *config.Config
	logger *slog.Logger

	specs map[string]Spec
	ids   map[string]string

	mu    sync.Mutex
	built map[string]Backend
}

// NewRegistry returns a registry holding the built-in engines.
func NewRegistry(cfg *config.Config, logger *slog.Logger) *Registry {
	if cfg == nil {
		defaults := config.Default()
		cfg = &defaults
	}
	r := &Registry{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "engine"),
		specs:  make(map[string]Spec),
		ids:    make(map[string]string),
		built:  make(map[string]Backend),
	}
	for _, spec := range builtinSpecs() {
		r.Register(spec)
	}
	return r
}

// Register adds or replaces an engine.
func (r *Registry) Register(spec Spec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs[spec.Name] = spec
	for _, id := range spec.IDs() {
		r.ids[normalizeID(id)] = spec.Name
	}
}

// Resolve maps an identifier to its Spec.
func (r *Registry) Resolve(id string) (Spec, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name, ok := r.ids[normalizeID(id)]
	if !ok {
		return Spec{}, services.Wrap(services.ErrUnknownEngine, "engine", "resolve",
			fmt.Sprintf("Unknown engine %q (valid: %s)", id, strings.Join(r.validIDsLocked(), ", ")), nil)
	}
	return r.specs[name], nil
}

// Specs lists registered engines sorted by name.
func (r *Registry) Specs() []Spec {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Spec, 0, len(r.specs))
	for _, spec := range r.specs {
		out = append(out, spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Backend returns the admission-wrapped backend for id, building it on first use.
func (r *Registry) Backend(id string) (Backend, error) {
	spec, err := r.Resolve(id)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if backend, ok := r.built[spec.Name]; ok {
		return backend, nil
	}
	if spec.Factory == nil {
		return nil, services.Wrap(services.ErrConfiguration, "engine", "build", fmt.Sprintf("Engine %s has no factory", spec.Name), nil)
	}
	inner, err := spec.Factory(r.cfg, r.logger)
	if err != nil {
		return nil, err
	}
	limits := Limits{Timeout: r.cfg.BackendTimeout()}
	if spec.Limits != nil {
		limits = spec.Limits(r.cfg)
	}
	backend := withAdmission(inner, limits)
	r.built[spec.Name] = backend
	r.logger.Debug("engine prepared",
		logging.String(logging.FieldEngine, spec.Name),
		logging.Int("concurrency", limits.Concurrency),
		logging.Int("requests_per_minute", limits.RequestsPerMinute),
		logging.Duration("timeout", limits.Timeout),
	)
	return backend, nil
}

// Close tears down every backend the registry built.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for name, backend := range r.built {
		if closer, ok := backend.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close engine %s: %w", name, err))
			}
		}
		delete(r.built, name)
	}
	return errors.Join(errs...)
}

func (r *Registry) validIDsLocked() []string {
	ids := make([]string, 0, len(r.ids))
	for id := range r.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

func cloudLimits(pick func(cfg *config.Config) config.CloudEngine) func(cfg *config.Config) Limits {
	return func(cfg *config.Config) Limits {
		engine := pick(cfg)
		return Limits{
			Concurrency:       engine.Concurrency,
			RequestsPerMinute: engine.RequestsPerMinute,
			Timeout:           cfg.BackendTimeout(),
		}
	}
}

func builtinSpecs() []Spec {
	return []Spec{
		{
			Name:        BcutName,
			Aliases:     []string{"b"},
			Description: "Bilibili Bcut cloud recognition",
			Factory:     newBcutFromConfig,
			Limits:      cloudLimits(func(cfg *config.Config) config.CloudEngine { return cfg.Engines.Bcut }),
		},
		{
			Name:        JianYingName,
			Aliases:     []string{"j"},
			Description: "JianYing (CapCut) cloud recognition",
			Factory:     newJianYingFromConfig,
			Limits:      cloudLimits(func(cfg *config.Config) config.CloudEngine { return cfg.Engines.JianYing.CloudEngine }),
		},
		{
			Name:        KuaiShouName,
			Aliases:     []string{"k", "kuaisou"},
			Description: "KuaiShou cloud recognition",
			Factory:     newKuaiShouFromConfig,
			Limits:      cloudLimits(func(cfg *config.Config) config.CloudEngine { return cfg.Engines.KuaiShou }),
		},
		{
			Name:        WhisperXName,
			Aliases:     []string{"w"},
			Description: "Local WhisperX model via uvx",
			Local:       true,
			Factory:     newWhisperXFromConfig,
			Limits: func(cfg *config.Config) Limits {
				return Limits{Concurrency: cfg.Engines.WhisperX.Concurrency, Timeout: cfg.BackendTimeout()}
			},
		},
	}
}
