package transcript

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const assHeader = `[Script Info]
ScriptType: v4.00+
PlayResX: 1280
PlayResY: 720
ScaledBorderAndShadow: yes
WrapStyle: 0

[V4+ Styles]
Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding
Style: Default,Arial,48,&H00FFFFFF,&H000000FF,&H00000000,&H64000000,0,0,0,0,100,100,0,0,1,2,1,2,20,20,30,1

[Events]
Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text
`

// Render dispatches to the renderer for format. Unknown formats fall back to text.
func Render(result Result, format Format) string {
	switch format {
	case FormatSRT:
		return RenderSRT(result)
	case FormatASS:
		return RenderASS(result)
	case FormatJSON:
		return RenderJSON(result)
	default:
		return RenderText(result)
	}
}

// RenderText writes one non-empty segment per line without timing.
func RenderText(result Result) string {
	segments := result.NonEmpty()
	if len(segments) == 0 {
		return ""
	}
	var b strings.Builder
	for _, seg := range segments {
		b.WriteString(strings.TrimSpace(seg.Text))
		b.WriteByte('\n')
	}
	return b.String()
}

// RenderSRT numbers cues over non-empty segments only.
func RenderSRT(result Result) string {
	var b strings.Builder
	cue := 0
	for _, seg := range result.NonEmpty() {
		cue++
		if cue > 1 {
			b.WriteByte('\n')
		}
		b.WriteString(strconv.Itoa(cue))
		b.WriteByte('\n')
		b.WriteString(formatSRTTimestamp(seg.Start))
		b.WriteString(" --> ")
		b.WriteString(formatSRTTimestamp(seg.End))
		b.WriteByte('\n')
		b.WriteString(strings.TrimSpace(seg.Text))
		b.WriteByte('\n')
	}
	return b.String()
}

// RenderASS emits the fixed script header followed by one Dialogue line per cue.
func RenderASS(result Result) string {
	var b strings.Builder
	b.WriteString(assHeader)
	for _, seg := range result.NonEmpty() {
		text := strings.TrimSpace(seg.Text)
		text = strings.ReplaceAll(text, "\r\n", "\n")
		text = strings.ReplaceAll(text, "\n", `\N`)
		fmt.Fprintf(&b, "Dialogue: 0,%s,%s,Default,,0,0,0,,%s\n",
			formatASSTimestamp(seg.Start), formatASSTimestamp(seg.End), text)
	}
	return b.String()
}

// RenderJSON emits the result in its millisecond JSON form.
func RenderJSON(result Result) string {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "{}\n"
	}
	return string(data) + "\n"
}

func formatSRTTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	hours := ms / 3_600_000
	ms -= hours * 3_600_000
	minutes := ms / 60_000
	ms -= minutes * 60_000
	seconds := ms / 1000
	ms -= seconds * 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, ms)
}

func formatASSTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	cs := d.Milliseconds() / 10
	hours := cs / 360_000
	cs -= hours * 360_000
	minutes := cs / 6000
	cs -= minutes * 6000
	seconds := cs / 100
	cs -= seconds * 100
	return fmt.Sprintf("%d:%02d:%02d.%02d", hours, minutes, seconds, cs)
}
