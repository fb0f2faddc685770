package transcript

import (
	"fmt"
	"strings"
)

// Format selects an output renderer.
type Format string

const (
	FormatText Format = "txt"
	FormatSRT  Format = "srt"
	FormatASS  Format = "ass"
	FormatJSON Format = "json"
)

// ParseFormat accepts the canonical names plus the text/timed/styled aliases.
func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "txt", "text":
		return FormatText, nil
	case "srt", "timed":
		return FormatSRT, nil
	case "ass", "styled":
		return FormatASS, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (valid: txt, srt, ass, json)", value)
	}
}

// Extension returns the sibling file extension including the leading dot.
func (f Format) Extension() string {
	return "." + string(f)
}

func (f Format) String() string { return string(f) }
