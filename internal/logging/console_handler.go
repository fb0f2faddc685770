package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"
)

// consoleHandler writes one human-readable line per record:
//
//	2024-05-01 10:00:00 INFO  [#3] pipeline: task finished engine=bcut file="a b.mp4"
//
// The task index and component are lifted out of the attributes into the
// prefix. Attributes bound through WithAttrs are rendered once and reused.
type consoleHandler struct {
	mu        *sync.Mutex
	out       io.Writer
	level     *slog.LevelVar
	addSource bool

	component string
	task      string
	group     string
	bound     []byte
}

func newConsoleHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return &consoleHandler{mu: &sync.Mutex{}, out: w, level: lvl, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	line := h.clone()
	var fields []byte
	record.Attrs(func(attr slog.Attr) bool {
		fields = line.appendAttr(fields, h.group, attr)
		return true
	})

	buf := make([]byte, 0, 96+len(h.bound)+len(fields))
	buf = ts.Local().AppendFormat(buf, "2006-01-02 15:04:05")
	buf = fmt.Appendf(buf, " %-5s ", record.Level.String())
	if line.task != "" {
		buf = append(buf, "[#"...)
		buf = append(buf, line.task...)
		buf = append(buf, "] "...)
	}
	if line.component != "" {
		buf = append(buf, line.component...)
		buf = append(buf, ": "...)
	}
	msg := strings.TrimSpace(record.Message)
	if msg == "" {
		msg = "(no message)"
	}
	buf = append(buf, msg...)
	if h.addSource {
		if src := record.Source(); src != nil {
			buf = fmt.Appendf(buf, " [%s:%d]", filepath.Base(src.File), src.Line)
		}
	}
	buf = append(buf, h.bound...)
	buf = append(buf, fields...)
	buf = append(buf, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write(buf)
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := h.clone()
	for _, attr := range attrs {
		clone.bound = clone.appendAttr(clone.bound, clone.group, attr)
	}
	return clone
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := h.clone()
	clone.group = joinKey(h.group, name)
	return clone
}

func (h *consoleHandler) clone() *consoleHandler {
	clone := *h
	clone.bound = append([]byte(nil), h.bound...)
	return &clone
}

// appendAttr renders attr as " key=value" onto buf. The first component and
// task index seen are captured for the prefix instead.
func (h *consoleHandler) appendAttr(buf []byte, group string, attr slog.Attr) []byte {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return buf
	}
	if attr.Value.Kind() == slog.KindGroup {
		nested := group
		if attr.Key != "" {
			nested = joinKey(group, attr.Key)
		}
		for _, member := range attr.Value.Group() {
			buf = h.appendAttr(buf, nested, member)
		}
		return buf
	}
	key := joinKey(group, attr.Key)
	switch {
	case key == FieldComponent && h.component == "":
		h.component = plainValue(attr.Value)
		return buf
	case key == FieldTaskID && h.task == "":
		h.task = plainValue(attr.Value)
		return buf
	case key == "":
		return buf
	}
	buf = append(buf, ' ')
	buf = append(buf, key...)
	buf = append(buf, '=')
	return appendValue(buf, attr.Value)
}

func joinKey(group, key string) string {
	switch {
	case group == "":
		return key
	case key == "":
		return group
	default:
		return group + "." + key
	}
}

func plainValue(v slog.Value) string {
	if err, ok := v.Any().(error); ok && v.Kind() == slog.KindAny {
		return err.Error()
	}
	return v.String()
}

func appendValue(buf []byte, v slog.Value) []byte {
	switch v.Kind() {
	case slog.KindBool:
		return strconv.AppendBool(buf, v.Bool())
	case slog.KindInt64:
		return strconv.AppendInt(buf, v.Int64(), 10)
	case slog.KindUint64:
		return strconv.AppendUint(buf, v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.AppendFloat(buf, v.Float64(), 'f', -1, 64)
	case slog.KindDuration:
		return append(buf, v.Duration().Round(time.Millisecond).String()...)
	case slog.KindTime:
		return v.Time().UTC().AppendFormat(buf, time.RFC3339)
	default:
		return appendText(buf, plainValue(v))
	}
}

// appendText quotes values that would otherwise break key=value parsing.
func appendText(buf []byte, s string) []byte {
	if s == "" || strings.IndexFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r) || r == '=' || r == '"'
	}) >= 0 {
		return strconv.AppendQuote(buf, s)
	}
	return append(buf, s...)
}
