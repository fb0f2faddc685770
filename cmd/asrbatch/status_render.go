package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"asrbatch/internal/deps"
	"asrbatch/internal/preflight"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset = "\x1b[0m"
	ansiBlue  = "\x1b[34m"
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

// statusStyles maps each kind to its bracketed label and ANSI color.
var statusStyles = [...]struct{ label, color string }{
	statusInfo:  {"INFO", ansiBlue},
	statusOK:    {"OK", "\x1b[32m"},
	statusWarn:  {"WARN", "\x1b[33m"},
	statusError: {"ERROR", "\x1b[31m"},
}

// renderStatusLine formats "  Label:   [KIND] message", colored as a whole.
func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	style := statusStyles[kind]
	status := "[" + style.label + "]"
	if message != "" {
		status += " " + message
	}
	line := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", status)
	if colorize {
		return style.color + line + ansiReset
	}
	return line
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

// dependencyLines renders a summary line followed by one line per dependency.
func dependencyLines(statuses []deps.Status, colorize bool) []string {
	missing := deps.MissingRequired(statuses)
	summaryKind := statusOK
	summary := fmt.Sprintf("%d of %d available", countAvailable(statuses), len(statuses))
	if len(missing) > 0 {
		summaryKind = statusError
		summary = fmt.Sprintf("%d required missing", len(missing))
	}
	lines := []string{renderStatusLine("Summary", summaryKind, summary, colorize)}
	for _, status := range statuses {
		kind := statusOK
		message := status.Resolved
		if message == "" {
			message = status.Command
		}
		if !status.Available {
			kind = statusError
			if status.Optional {
				kind = statusWarn
			}
			message = status.Detail
		}
		if status.Optional {
			message += " (optional)"
		}
		lines = append(lines, renderStatusLine(status.Name, kind, message, colorize))
	}
	return lines
}

func preflightLines(results []preflight.Result, colorize bool) []string {
	if len(results) == 0 {
		return []string{renderStatusLine("Checks", statusInfo, "nothing to check", colorize)}
	}
	lines := make([]string, 0, len(results))
	for _, result := range results {
		kind := statusOK
		if !result.Passed {
			kind = statusError
		}
		lines = append(lines, renderStatusLine(result.Name, kind, result.Detail, colorize))
	}
	return lines
}

func countAvailable(statuses []deps.Status) int {
	count := 0
	for _, status := range statuses {
		if status.Available {
			count++
		}
	}
	return count
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
