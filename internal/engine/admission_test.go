package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"asrbatch/internal/services"
	"asrbatch/internal/transcript"
)

type funcBackend struct {
	fn func(ctx context.Context, path string) (transcript.Result, error)
}

func (f funcBackend) Name() string { return "fake" }

func (f funcBackend) Transcribe(ctx context.Context, path string) (transcript.Result, error) {
	return f.fn(ctx, path)
}

func TestAdmissionCapsConcurrency(t *testing.T) {
	var current, peak atomic.Int32
	backend := withAdmission(funcBackend{fn: func(context.Context, string) (transcript.Result, error) {
		n := current.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		current.Add(-1)
		return transcript.Result{}, nil
	}}, Limits{Concurrency: 2})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := backend.Transcribe(context.Background(), "a.mp3"); err != nil {
				t.Errorf("Transcribe: %v", err)
			}
		}()
	}
	wg.Wait()
	if peak.Load() > 2 {
		t.Fatalf("expected at most 2 concurrent calls, saw %d", peak.Load())
	}
}

func TestAdmissionTimeoutIsUnavailable(t *testing.T) {
	backend := withAdmission(funcBackend{fn: func(ctx context.Context, string) (transcript.Result, error) {
		<-ctx.Done()
		return transcript.Result{}, ctx.Err()
	}}, Limits{Timeout: 10 * time.Millisecond})

	_, err := backend.Transcribe(context.Background(), "a.mp3")
	if !errors.Is(err, services.ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
}

func TestAdmissionClassifiesUnmarkedErrors(t *testing.T) {
	backend := withAdmission(funcBackend{fn: func(context.Context, string) (transcript.Result, error) {
		return transcript.Result{}, errors.New("socket closed")
	}}, Limits{})
	if _, err := backend.Transcribe(context.Background(), "a.mp3"); !errors.Is(err, services.ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}

	rejected := withAdmission(funcBackend{fn: func(context.Context, string) (transcript.Result, error) {
		return transcript.Result{}, services.Wrap(services.ErrBackendRejected, "fake", "transcribe", "no speech", nil)
	}}, Limits{})
	_, err := rejected.Transcribe(context.Background(), "a.mp3")
	if !errors.Is(err, services.ErrBackendRejected) || errors.Is(err, services.ErrBackendUnavailable) {
		t.Fatalf("expected rejection to pass through unchanged, got %v", err)
	}
}

func TestAdmissionNormalizesAndValidates(t *testing.T) {
	backend := withAdmission(funcBackend{fn: func(context.Context, string) (transcript.Result, error) {
		return transcript.Result{Segments: []transcript.Segment{
			{Start: 2 * time.Second, End: 3 * time.Second, Text: " two "},
			{Start: 0, End: time.Second, Text: "one"},
		}}, nil
	}}, Limits{})
	result, err := backend.Transcribe(context.Background(), "a.mp3")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if result.Segments[0].Text != "one" || result.Segments[1].Text != "two" {
		t.Fatalf("expected sorted trimmed segments, got %+v", result.Segments)
	}
	if result.Engine != "fake" {
		t.Fatalf("expected engine name stamped, got %q", result.Engine)
	}

	malformed := withAdmission(funcBackend{fn: func(context.Context, string) (transcript.Result, error) {
		return transcript.Result{Segments: []transcript.Segment{{Start: time.Second, End: 0}}}, nil
	}}, Limits{})
	if _, err := malformed.Transcribe(context.Background(), "a.mp3"); !errors.Is(err, services.ErrBackendRejected) {
		t.Fatalf("expected ErrBackendRejected for malformed result, got %v", err)
	}
}

func TestAdmissionPacingHonorsCancellation(t *testing.T) {
	backend := withAdmission(funcBackend{fn: func(context.Context, string) (transcript.Result, error) {
		return transcript.Result{}, nil
	}}, Limits{RequestsPerMinute: 1})

	if _, err := backend.Transcribe(context.Background(), "a.mp3"); err != nil {
		t.Fatalf("first call should use the burst token: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := backend.Transcribe(ctx, "b.mp3"); !errors.Is(err, services.ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable while paced, got %v", err)
	}
}
