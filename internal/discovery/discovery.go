// Package discovery resolves an input path into the media files a batch run
// will process.
package discovery

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"asrbatch/internal/services"
)

var supportedExtensions = map[string]struct{}{
	".mp3": {}, ".wav": {}, ".ogg": {}, ".flac": {}, ".aac": {}, ".m4a": {},
	".wma": {}, ".mp4": {}, ".avi": {}, ".mov": {}, ".ts": {}, ".mkv": {},
	".wmv": {}, ".flv": {}, ".webm": {}, ".rmvb": {},
}

// SkipReason classifies why an entry was not turned into a task.
type SkipReason string

const (
	SkipUnsupported SkipReason = "unsupported_extension"
	SkipSymlink     SkipReason = "symlink"
	SkipUnreadable  SkipReason = "unreadable"
)

// Skip records an entry that was seen but not returned. Input is set when
// the skipped entry is the input path itself rather than something found
// beneath it.
type Skip struct {
	Path   string
	Reason SkipReason
	Err    error
	Input  bool
}

// Result is the outcome of one discovery pass. Files are absolute paths in
// walk order.
type Result struct {
	Files   []string
	Skipped []Skip
}

// Supported reports whether path carries an allow-listed extension.
func Supported(path string) bool {
	_, ok := supportedExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Extensions returns the allow-list, unordered.
func Extensions() []string {
	out := make([]string, 0, len(supportedExtensions))
	for ext := range supportedExtensions {
		out = append(out, ext)
	}
	return out
}

// Discover returns the supported media files under path.
func Discover(path string) (Result, error) {
	if strings.TrimSpace(path) == "" {
		return Result{}, services.Wrap(services.ErrNotFound, "discovery", "stat input", "Input path is empty", nil)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return Result{}, services.Wrap(services.ErrNotFound, "discovery", "resolve input", "Could not resolve input path", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Result{}, services.Wrap(services.ErrNotFound, "discovery", "stat input", fmt.Sprintf("Input path %q does not exist", abs), err)
		}
		return Result{}, services.Wrap(services.ErrNotFound, "discovery", "stat input", fmt.Sprintf("Input path %q is not accessible", abs), err)
	}

	var result Result
	if !info.IsDir() {
		if Supported(abs) {
			result.Files = append(result.Files, abs)
		} else {
			result.Skipped = append(result.Skipped, Skip{Path: abs, Reason: SkipUnsupported, Input: true})
		}
		return result, nil
	}

	// WalkDir does not descend into a symlinked root, so walk the target and
	// report paths under the name the caller gave.
	root, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return Result{}, services.Wrap(services.ErrNotFound, "discovery", "resolve input", fmt.Sprintf("Input path %q could not be resolved", abs), err)
	}
	walkErr := filepath.WalkDir(root, func(resolved string, d fs.DirEntry, err error) error {
		current := underInput(abs, root, resolved)
		if err != nil {
			result.Skipped = append(result.Skipped, Skip{Path: current, Reason: SkipUnreadable, Err: err})
			if d != nil && d.IsDir() && resolved != root {
				return fs.SkipDir
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			result.Skipped = append(result.Skipped, Skip{Path: current, Reason: SkipSymlink})
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if Supported(current) {
			result.Files = append(result.Files, current)
			return nil
		}
		result.Skipped = append(result.Skipped, Skip{Path: current, Reason: SkipUnsupported})
		return nil
	})
	if walkErr != nil {
		return result, services.Wrap(services.ErrNotFound, "discovery", "walk input", "Directory walk aborted", walkErr)
	}
	return result, nil
}

func underInput(input, root, resolved string) string {
	if input == root {
		return resolved
	}
	rel, err := filepath.Rel(root, resolved)
	if err != nil {
		return resolved
	}
	return filepath.Join(input, rel)
}
