package engine

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"resty.dev/v3"

	"asrbatch/internal/config"
	"asrbatch/internal/services"
)

const (
	defaultRequestTimeout = 2 * time.Minute
	responseSnippetLimit  = 256
)

func newHTTPClient(baseURL string) *resty.Client {
	client := resty.New()
	client.SetBaseURL(strings.TrimRight(baseURL, "/"))
	client.SetHeader("User-Agent", config.UserAgent)
	client.SetHeader("Accept", "application/json")
	client.SetTimeout(defaultRequestTimeout)
	return client
}

// checkResponse maps transport failures and HTTP status codes onto the
// backend error taxonomy.
func checkResponse(engine, operation string, resp *resty.Response, err error) error {
	if err != nil {
		return services.Wrap(services.ErrBackendUnavailable, engine, operation, "Request failed", err)
	}
	if resp == nil {
		return services.Wrap(services.ErrBackendUnavailable, engine, operation, "No response", nil)
	}
	status := resp.StatusCode()
	if status >= 200 && status < 300 {
		return nil
	}
	detail := fmt.Sprintf("HTTP %d: %s", status, snippet(resp.String()))
	switch {
	case status == http.StatusUnauthorized,
		status == http.StatusForbidden,
		status == http.StatusRequestTimeout,
		status == http.StatusTooManyRequests,
		status >= 500:
		return services.Wrap(services.ErrBackendUnavailable, engine, operation, detail, nil)
	default:
		return services.Wrap(services.ErrBackendRejected, engine, operation, detail, nil)
	}
}

func snippet(body string) string {
	body = strings.TrimSpace(body)
	if body == "" {
		return "empty body"
	}
	if len(body) > responseSnippetLimit {
		return body[:responseSnippetLimit] + "..."
	}
	return body
}

// poll calls check until it reports done, fails, or attempts run out.
func poll(ctx context.Context, engine string, interval time.Duration, attempts int, check func() (bool, error)) error {
	if attempts <= 0 {
		attempts = 1
	}
	for attempt := 1; attempt <= attempts; attempt++ {
		done, err := check()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return services.Wrap(services.ErrBackendUnavailable, engine, "poll", "Canceled while waiting for result", ctx.Err())
		case <-time.After(interval):
		}
	}
	return services.Wrap(services.ErrBackendUnavailable, engine, "poll",
		fmt.Sprintf("Result not ready after %d polls", attempts), nil)
}

func millis(value int64) time.Duration {
	return time.Duration(value) * time.Millisecond
}

func seconds(value float64) time.Duration {
	return time.Duration(math.Round(value*1000)) * time.Millisecond
}
