package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"asrbatch/internal/cache"
	"asrbatch/internal/config"
	"asrbatch/internal/discovery"
	"asrbatch/internal/engine"
	"asrbatch/internal/fileutil"
	"asrbatch/internal/logging"
	"asrbatch/internal/media"
	"asrbatch/internal/services"
	"asrbatch/internal/transcript"
)

const (
	defaultWorkers  = 2
	maxRetryBackoff = 30 * time.Second
	outputFileMode  = 0o644
)

// Normalizer turns a source file into audio a backend accepts.
type Normalizer interface {
	Normalize(ctx context.Context, source string) (media.Audio, error)
}

// ResultCache stores transcripts by audio fingerprint and engine.
type ResultCache interface {
	Lookup(ctx context.Context, fingerprint, engine string) (transcript.Result, bool)
	Save(ctx context.Context, fingerprint, engine string, result transcript.Result, sourceName string) (bool, error)
}

// Options holds the per-run choices a batch is executed with.
type Options struct {
	Format        transcript.Format
	UseCache      bool
	Workers       int
	RetryAttempts int
	RetryBackoff  time.Duration
	SkipExisting  bool
}

// OptionsFromConfig returns run options seeded from configuration defaults.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	if cfg == nil {
		defaults := config.Default()
		cfg = &defaults
	}
	format, err := transcript.ParseFormat(cfg.Transcribe.Format)
	if err != nil {
		return Options{}, services.Wrap(services.ErrConfiguration, "pipeline", "parse format", err.Error(), nil)
	}
	return Options{
		Format:        format,
		UseCache:      cfg.Cache.Enabled,
		Workers:       cfg.Transcribe.Workers,
		RetryAttempts: cfg.Transcribe.RetryAttempts,
		RetryBackoff:  cfg.RetryBackoff(),
		SkipExisting:  cfg.Transcribe.SkipExisting,
	}, nil
}

// Runner executes batches against a single backend.
type Runner struct {
	backend    engine.Backend
	normalizer Normalizer
	cache      ResultCache
	opts       Options
	logger     *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewRunner wires a runner. cache may be nil, in which case every task calls
// the backend.
func NewRunner(backend engine.Backend, normalizer Normalizer, resultCache ResultCache, opts Options, logger *slog.Logger) *Runner {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.RetryAttempts < 0 {
		opts.RetryAttempts = 0
	}
	if opts.Format == "" {
		opts.Format = transcript.FormatText
	}
	return &Runner{
		backend:    backend,
		normalizer: normalizer,
		cache:      resultCache,
		opts:       opts,
		logger:     logging.NewComponentLogger(logger, "pipeline"),
		sleep:      sleepContext,
		now:        time.Now,
	}
}

// RunPath discovers the media under input and runs them as one batch.
// Entries discovery skips are logged and counted; only a missing input is an
// error.
func (r *Runner) RunPath(ctx context.Context, input string) (Summary, error) {
	found, err := discovery.Discover(input)
	if err != nil {
		return Summary{}, err
	}
	for _, skip := range found.Skipped {
		r.logSkip(skip)
	}
	if len(found.Files) == 0 {
		logging.WarnWithContext(r.logger, "no supported media files found", "no_media_found",
			logging.String("input", input),
			logging.String(logging.FieldErrorHint, "check the path or the file extensions"),
			logging.String(logging.FieldImpact, "nothing was transcribed"),
		)
	}
	summary := r.Run(ctx, found.Files)
	summary.DiscoverySkipped = len(found.Skipped)
	return summary, nil
}

// logSkip warns about skips the user likely did not intend: the input itself
// being unsupported, or entries the walk could not follow or read. Unsupported
// siblings inside a directory are routine and stay at debug.
func (r *Runner) logSkip(skip discovery.Skip) {
	attrs := []logging.Attr{
		logging.String("path", skip.Path),
		logging.String("reason", string(skip.Reason)),
	}
	if skip.Err != nil {
		attrs = append(attrs, logging.Error(skip.Err))
	}
	switch {
	case skip.Reason == discovery.SkipUnsupported && skip.Input:
		attrs = append(attrs, logging.String(logging.FieldErrorHint, "pass an audio or video file with a supported extension"))
		logging.WarnWithContext(r.logger, "input skipped", "input_unsupported", attrs...)
	case skip.Reason == discovery.SkipSymlink:
		attrs = append(attrs, logging.String(logging.FieldErrorHint, "symlinks inside the input are not followed; pass the target path instead"))
		logging.WarnWithContext(r.logger, "entry skipped", "symlink_skipped", attrs...)
	case skip.Reason == discovery.SkipUnreadable:
		attrs = append(attrs, logging.String(logging.FieldErrorHint, "check permissions on the path"))
		logging.WarnWithContext(r.logger, "entry skipped", "entry_unreadable", attrs...)
	default:
		r.logger.Debug("entry skipped", logging.Args(attrs...)...)
	}
}

// Run processes files with the configured worker pool and returns the batch
// summary. Cancelling ctx stops dispatch; running tasks finish their current
// stage.
func (r *Runner) Run(ctx context.Context, files []string) Summary {
	start := r.now()
	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	ctx = services.WithEngine(ctx, r.backend.Name())
	logger := logging.WithContext(ctx, r.logger)

	workers := r.opts.Workers
	if workers > len(files) && len(files) > 0 {
		workers = len(files)
	}
	logger.Info("batch started",
		logging.String(logging.FieldEventType, "batch_start"),
		logging.Int("files", len(files)),
		logging.Int("workers", workers),
		logging.String("format", r.opts.Format.String()),
		logging.Bool("cache", r.opts.UseCache && r.cache != nil),
	)

	summary := Summary{Total: len(files)}
	tasks := make([]*Task, 0, len(files))
	jobs := make(chan *Task)

	var group errgroup.Group
	for w := 0; w < workers; w++ {
		group.Go(func() error {
			for task := range jobs {
				r.runTask(ctx, task, len(files))
			}
			return nil
		})
	}

dispatch:
	for i, path := range files {
		if ctx.Err() != nil {
			summary.NotStarted = len(files) - i
			break
		}
		task := newTask(i+1, path, r.backend.Name(), r.opts.Format, r.opts.UseCache && r.cache != nil)
		if r.opts.SkipExisting {
			if exists, _ := fileutil.Exists(task.OutputPath); exists {
				summary.Skipped++
				logger.Info(fmt.Sprintf("[%d/%d] %s", task.Index, len(files), task.Name()),
					logging.String(logging.FieldEventType, "output_exists"),
					logging.String("output", task.OutputPath),
				)
				continue
			}
		}
		select {
		case jobs <- task:
			tasks = append(tasks, task)
		case <-ctx.Done():
			summary.NotStarted = len(files) - i
			break dispatch
		}
	}
	close(jobs)
	_ = group.Wait()

	for _, task := range tasks {
		summary.BackendCalls += task.BackendCalls
		if task.CacheHit {
			summary.CacheHits++
		}
		switch task.Status {
		case StatusDone:
			summary.Succeeded++
			summary.Outputs = append(summary.Outputs, task.OutputPath)
		default:
			summary.Failed++
			if errors.Is(task.Reason, context.Canceled) {
				summary.Interrupted++
			}
			summary.Failures = append(summary.Failures, Failure{
				Path: task.SourcePath,
				Kind: failureKind(task.Reason),
				Err:  task.Reason,
			})
		}
	}
	summary.Canceled = ctx.Err() != nil
	summary.Elapsed = r.now().Sub(start)

	logger.Info("batch finished",
		logging.String(logging.FieldEventType, "batch_complete"),
		logging.Int("total", summary.Total),
		logging.Int("succeeded", summary.Succeeded),
		logging.Int("failed", summary.Failed),
		logging.Int("skipped", summary.Skipped),
		logging.Int("not_started", summary.NotStarted),
		logging.Int("cache_hits", summary.CacheHits),
		logging.Int("backend_calls", summary.BackendCalls),
		logging.String("elapsed", fmt.Sprintf("%.2fs", summary.Elapsed.Seconds())),
	)
	return summary
}

func (r *Runner) runTask(ctx context.Context, task *Task, total int) {
	ctx = services.WithTaskID(ctx, task.Index)
	logger := logging.WithContext(ctx, r.logger)
	task.Started = r.now()
	logger.Info(fmt.Sprintf("[%d/%d] %s", task.Index, total, task.Name()))

	// Stage work is detached from batch cancellation so an in-flight stage
	// completes; per-call timeouts still bound it.
	stageCtx := context.WithoutCancel(ctx)

	defer func() {
		r.releaseAudio(logger, task)
		task.Finished = r.now()
		if task.Status == StatusFailed {
			logging.ErrorWithContext(logger, "task failed", "task_failed",
				logging.String("source", task.SourcePath),
				logging.String(logging.FieldErrorKind, failureKind(task.Reason)),
				logging.String(logging.FieldErrorHint, failureHint(task.Reason)),
				logging.Error(task.Reason),
			)
			return
		}
		logger.Info("task finished",
			logging.String(logging.FieldEventType, "task_complete"),
			logging.String("output", task.OutputPath),
			logging.Bool("cache_hit", task.CacheHit),
			logging.Duration("duration", task.Finished.Sub(task.Started)),
		)
	}()

	if err := task.advance(StatusNormalizing); err != nil {
		task.fail(err)
		return
	}
	audio, err := r.normalizer.Normalize(services.WithStage(stageCtx, string(StatusNormalizing)), task.SourcePath)
	if err != nil {
		task.fail(err)
		return
	}
	task.Audio = audio
	if r.interrupted(ctx, task) {
		return
	}

	if err := task.advance(StatusTranscribing); err != nil {
		task.fail(err)
		return
	}
	result, err := r.transcribe(ctx, services.WithStage(stageCtx, string(StatusTranscribing)), task)
	r.releaseAudio(logger, task)
	if err != nil {
		task.fail(err)
		return
	}
	if r.interrupted(ctx, task) {
		return
	}

	if err := task.advance(StatusRendering); err != nil {
		task.fail(err)
		return
	}
	body := transcript.Render(result, task.Format)
	if err := fileutil.WriteFileAtomic(task.OutputPath, []byte(body), outputFileMode); err != nil {
		task.fail(services.Wrap(services.ErrWriteFailed, "render", "write output",
			fmt.Sprintf("Could not write %s", task.OutputPath), err))
		return
	}
	if err := task.advance(StatusDone); err != nil {
		task.fail(err)
	}
}

// transcribe consults the cache, then the backend with retries. batchCtx only
// gates retry waits; the backend call itself runs on stageCtx.
func (r *Runner) transcribe(batchCtx, stageCtx context.Context, task *Task) (transcript.Result, error) {
	logger := logging.WithContext(stageCtx, r.logger)
	fingerprint := ""
	if task.UseCache {
		fp, err := cache.Fingerprint(task.Audio.Path)
		if err != nil {
			logging.WarnWithContext(logger, "fingerprint failed; bypassing cache", "cache_bypass",
				logging.Error(err),
				logging.String(logging.FieldImpact, "result will not be cached"),
			)
		} else {
			fingerprint = fp
			if cached, ok := r.cache.Lookup(stageCtx, fingerprint, task.Engine); ok {
				task.CacheHit = true
				logger.Debug("cache hit",
					logging.String(logging.FieldEventType, "cache_hit"),
					logging.Int("segments", len(cached.Segments)),
				)
				return cached, nil
			}
		}
	}

	result, err := r.callBackend(batchCtx, stageCtx, task)
	if err != nil {
		return transcript.Result{}, err
	}
	if fingerprint != "" {
		if _, err := r.cache.Save(stageCtx, fingerprint, task.Engine, result, task.Name()); err != nil {
			logging.WarnWithContext(logger, "cache save failed", "cache_save_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "next run will call the backend again"),
			)
		}
	}
	return result, nil
}

func (r *Runner) callBackend(batchCtx, stageCtx context.Context, task *Task) (transcript.Result, error) {
	logger := logging.WithContext(stageCtx, r.logger)
	for attempt := 1; ; attempt++ {
		task.BackendCalls++
		result, err := r.backend.Transcribe(stageCtx, task.Audio.Path)
		if err == nil {
			return result, nil
		}
		if !services.Retryable(err) || attempt > r.opts.RetryAttempts {
			return transcript.Result{}, err
		}
		delay := backoff(r.opts.RetryBackoff, attempt)
		logging.WarnWithContext(logger, "backend unavailable; retrying", "backend_retry",
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.Error(err),
			logging.String(logging.FieldImpact, "task delayed"),
		)
		if waitErr := r.sleep(batchCtx, delay); waitErr != nil {
			return transcript.Result{}, fmt.Errorf("retry abandoned: %w (last error: %w)", waitErr, err)
		}
	}
}

// interrupted fails the task at a stage boundary once the batch is cancelled.
func (r *Runner) interrupted(ctx context.Context, task *Task) bool {
	if ctx.Err() == nil {
		return false
	}
	task.fail(fmt.Errorf("stopped after %s: %w", task.Status, context.Canceled))
	return true
}

func (r *Runner) releaseAudio(logger *slog.Logger, task *Task) {
	if !task.Audio.Temporary {
		return
	}
	if err := task.Audio.Cleanup(); err != nil {
		logging.WarnWithContext(logger, "temporary audio not removed", "temp_cleanup_failed",
			logging.String("path", task.Audio.Path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "delete the file manually"),
			logging.String(logging.FieldImpact, "stray audio file left next to the source"),
		)
	}
	task.Audio = media.Audio{}
}

// backoff doubles base per attempt, capped.
func backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxRetryBackoff {
			return maxRetryBackoff
		}
	}
	return min(delay, maxRetryBackoff)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func failureKind(err error) string {
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return services.Kind(err)
}

func failureHint(err error) string {
	switch failureKind(err) {
	case "conversion_failed":
		return "check that ffmpeg is installed and the file is a valid media file"
	case "backend_unavailable":
		return "the service may be down or rate limiting; retry later"
	case "backend_rejected":
		return "try another engine for this file"
	case "write_failed":
		return "check write permission on the source directory"
	case "canceled":
		return "rerun the batch to finish this file"
	default:
		return "check logs for details"
	}
}
