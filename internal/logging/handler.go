package logging

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

// TimestampFormat is ISO-8601 in UTC with millisecond precision.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// LineHandler is a slog.Handler producing one plain-text line per record:
//
//	[<timestamp>] <message> key=value ...
//
// Records at slog.LevelError or above go to errOut, all others to out.
// Each line is emitted with a single Write while holding a mutex shared by
// all handlers derived from the same root.
type LineHandler struct {
	mu     *sync.Mutex
	out    io.Writer
	errOut io.Writer
	level  slog.Leveler

	prefix string // group prefix, e.g. "request."
	attrs  []byte // preformatted attrs from WithAttrs
}

// NewLineHandler returns a LineHandler. A nil errOut sends everything to out.
func NewLineHandler(out, errOut io.Writer, level slog.Leveler) *LineHandler {
	if errOut == nil {
		errOut = out
	}
	if level == nil {
		level = slog.LevelInfo
	}
	return &LineHandler{
		mu:     &sync.Mutex{},
		out:    out,
		errOut: errOut,
		level:  level,
	}
}

func (h *LineHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *LineHandler) Handle(_ context.Context, r slog.Record) error {
	t := r.Time
	if t.IsZero() {
		t = time.Now()
	}

	var buf bytes.Buffer
	buf.WriteByte('[')
	buf.WriteString(t.UTC().Format(TimestampFormat))
	buf.WriteString("] ")
	buf.WriteString(r.Message)
	buf.Write(h.attrs)
	r.Attrs(func(a slog.Attr) bool {
		appendAttr(&buf, h.prefix, a)
		return true
	})
	buf.WriteByte('\n')

	w := h.out
	if r.Level >= slog.LevelError {
		w = h.errOut
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := w.Write(buf.Bytes())
	return err
}

func (h *LineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	var buf bytes.Buffer
	buf.Write(h.attrs)
	for _, a := range attrs {
		appendAttr(&buf, h.prefix, a)
	}
	clone := *h
	clone.attrs = buf.Bytes()
	return &clone
}

func (h *LineHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = h.prefix + name + "."
	return &clone
}

func appendAttr(buf *bytes.Buffer, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	if a.Value.Kind() == slog.KindGroup {
		groupPrefix := prefix
		if a.Key != "" {
			groupPrefix = prefix + a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			appendAttr(buf, groupPrefix, ga)
		}
		return
	}

	buf.WriteByte(' ')
	buf.WriteString(prefix)
	buf.WriteString(a.Key)
	buf.WriteByte('=')
	buf.WriteString(formatValue(a.Value))
}

func formatValue(v slog.Value) string {
	var s string
	if v.Kind() == slog.KindTime {
		s = v.Time().UTC().Format(TimestampFormat)
	} else {
		s = v.String()
	}
	if s == "" || strings.ContainsAny(s, " \t\n\r\"=") {
		return strconv.Quote(s)
	}
	return s
}
