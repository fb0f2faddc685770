package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"
	"resty.dev/v3"

	"asrbatch/internal/config"
	"asrbatch/internal/deps"
)

const endpointTimeout = 5 * time.Second

// CheckEndpoint verifies that a hosted engine answers HTTP at all. Any
// response below 500 counts as reachable; the engines authenticate per call.
func CheckEndpoint(ctx context.Context, name, baseURL string) Result {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return Result{Name: name, Detail: "base_url not configured"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, endpointTimeout)
	defer cancel()

	client := resty.New().
		SetTimeout(endpointTimeout).
		SetHeader("User-Agent", config.UserAgent)
	defer client.Close()

	resp, err := client.R().SetContext(checkCtx).Get(base)
	if err != nil {
		return Result{Name: name, Detail: summarizeNetworkError(err)}
	}
	if resp.StatusCode() >= 500 {
		return Result{Name: name, Detail: fmt.Sprintf("%s (server error %d)", base, resp.StatusCode())}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (reachable)", base)}
}

// CheckJianYingSigner reports whether the signing endpoint the JianYing
// engine requires is configured.
func CheckJianYingSigner(cfg *config.Config) Result {
	const name = "JianYing signer"
	if cfg == nil || strings.TrimSpace(cfg.Engines.JianYing.SignURL) == "" {
		return Result{Name: name, Detail: "engines.jianying.sign_url not configured"}
	}
	return Result{Name: name, Passed: true, Detail: cfg.Engines.JianYing.SignURL}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the binaries a batch on engine needs.
func CheckSystemDeps(cfg *config.Config, engine string) []deps.Status {
	return deps.CheckBinaries(deps.Requirements(cfg, engine))
}

func cloudEndpoint(cfg *config.Config, engine string) (string, string, bool) {
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case "b", "bcut":
		return "BcutASR", strings.TrimSpace(cfg.Engines.Bcut.BaseURL), true
	case "j", "jianying":
		return "JianYingASR", strings.TrimSpace(cfg.Engines.JianYing.BaseURL), true
	case "k", "kuaishou", "kuaisou":
		return "KuaiShouASR", strings.TrimSpace(cfg.Engines.KuaiShou.BaseURL), true
	}
	return "", "", false
}

func isJianYing(engine string) bool {
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case "j", "jianying":
		return true
	}
	return false
}

func summarizeNetworkError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "check timed out (endpoint unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "check timed out (endpoint unreachable)"
	}
	return err.Error()
}
