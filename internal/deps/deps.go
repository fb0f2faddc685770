// Package deps reports whether the external programs asrbatch shells out to
// are installed.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"asrbatch/internal/config"
)

// Requirement defines an external dependency asrbatch relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Resolved    string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements lists the binaries a batch on engine needs. ffmpeg is always
// required because non-native inputs must be converted; uvx is only required
// when the local whisperx engine is selected.
func Requirements(cfg *config.Config, engine string) []Requirement {
	if cfg == nil {
		defaults := config.Default()
		cfg = &defaults
	}
	local := isWhisperX(engine)
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.FFmpegBinary(),
			Description: "Converts video and non-native audio to mono mp3",
		},
		{
			Name:        "uvx",
			Command:     cfg.WhisperXBinary(),
			Description: "Runs the local whisperx engine",
			Optional:    !local,
		},
	}
}

func isWhisperX(engine string) bool {
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case "w", "whisperx":
		return true
	}
	return false
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Available = false
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		resolved, err := exec.LookPath(cmd)
		if err != nil {
			status.Available = false
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Resolved = resolved
		status.Available = true
		results = append(results, status)
	}
	return results
}

// MissingRequired returns the required dependencies that are unavailable.
func MissingRequired(statuses []Status) []Status {
	var missing []Status
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			missing = append(missing, status)
		}
	}
	return missing
}
