package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"asrbatch/internal/services"
	"asrbatch/internal/transcript"
)

// Limits bound how a backend is called. Zero values disable the matching limit.
type Limits struct {
	Concurrency       int
	RequestsPerMinute int
	Timeout           time.Duration
}

type admitted struct {
	inner   Backend
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	timeout time.Duration
}

func withAdmission(inner Backend, limits Limits) Backend {
	a := &admitted{inner: inner, timeout: limits.Timeout}
	if limits.Concurrency > 0 {
		a.sem = semaphore.NewWeighted(int64(limits.Concurrency))
	}
	if limits.RequestsPerMinute > 0 {
		a.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(limits.RequestsPerMinute)), 1)
	}
	return a
}

func (a *admitted) Name() string { return a.inner.Name() }

// Transcribe waits for a slot and a pacing token, then calls the backend with
// the per-call timeout. The result is normalized; a malformed result counts as
// a rejection.
func (a *admitted) Transcribe(ctx context.Context, audioPath string) (transcript.Result, error) {
	name := a.inner.Name()
	if a.sem != nil {
		if err := a.sem.Acquire(ctx, 1); err != nil {
			return transcript.Result{}, services.Wrap(services.ErrBackendUnavailable, name, "admission", "Canceled while waiting for an engine slot", err)
		}
		defer a.sem.Release(1)
	}
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return transcript.Result{}, services.Wrap(services.ErrBackendUnavailable, name, "admission", "Canceled while waiting for the request pacer", err)
		}
	}

	callCtx := ctx
	if a.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	result, err := a.inner.Transcribe(callCtx, audioPath)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return transcript.Result{}, services.Wrap(services.ErrBackendUnavailable, name, "transcribe",
				fmt.Sprintf("Call exceeded %s timeout", a.timeout), err)
		}
		if !errors.Is(err, services.ErrBackendUnavailable) && !errors.Is(err, services.ErrBackendRejected) &&
			!errors.Is(err, services.ErrNotFound) {
			return transcript.Result{}, services.Wrap(services.ErrBackendUnavailable, name, "transcribe", "Engine failed", err)
		}
		return transcript.Result{}, err
	}

	result = result.Normalize()
	if result.Engine == "" {
		result.Engine = name
	}
	if err := result.Validate(); err != nil {
		return transcript.Result{}, services.Wrap(services.ErrBackendRejected, name, "validate", "Engine returned malformed segments", err)
	}
	return result, nil
}

// Close forwards to the wrapped backend when it owns resources.
func (a *admitted) Close() error {
	if closer, ok := a.inner.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
