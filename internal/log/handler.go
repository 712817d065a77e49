// Package log provides the console slog handler used by the reliquary
// commands. Records render as a timestamp, a level tag and key=value
// attributes, colored when the terminal supports it.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// palette holds the escape sequences for one terminal capability tier.
type palette struct {
	reset string
	debug string
	warn  string
	err   string
	key   string
	value string
	time  string
}

var (
	paletteNone = palette{}

	palette16 = palette{
		reset: "\033[0m",
		debug: "\033[90m",
		warn:  "\033[33m",
		err:   "\033[31m",
		key:   "\033[35m",
		value: "\033[36m",
		time:  "\033[90m",
	}

	palette256 = palette{
		reset: "\033[0m",
		debug: "\033[90m",
		warn:  "\033[38;5;214m",
		err:   "\033[38;5;203m",
		key:   "\033[38;5;219m",
		value: "\033[38;5;117m",
		time:  "\033[38;5;244m",
	}
)

// detectPalette picks a palette from the TERM environment variable. An empty
// TERM disables color entirely.
func detectPalette() palette {
	term := os.Getenv("TERM")
	switch {
	case term == "" || term == "dumb":
		return paletteNone
	case strings.Contains(term, "256color"):
		return palette256
	default:
		return palette16
	}
}

// Handler is a line-oriented slog handler for terminal output.
type Handler struct {
	w      io.Writer
	level  slog.Leveler
	attrs  []slog.Attr
	group  string
	colors palette
	mu     *sync.Mutex
}

// NewHandler creates a Handler writing to w, dropping records below level.
func NewHandler(w io.Writer, level slog.Leveler) *Handler {
	return &Handler{
		w:      w,
		level:  level,
		colors: detectPalette(),
		mu:     new(sync.Mutex),
	}
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func levelTag(l slog.Level) string {
	switch {
	case l < slog.LevelInfo:
		return "DEBUG"
	case l < slog.LevelWarn:
		return "INFO"
	case l < slog.LevelError:
		return "WARN"
	default:
		return "ERROR"
	}
}

func (h *Handler) levelColor(l slog.Level) string {
	switch {
	case l < slog.LevelInfo:
		return h.colors.debug
	case l < slog.LevelWarn:
		return ""
	case l < slog.LevelError:
		return h.colors.warn
	default:
		return h.colors.err
	}
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder

	if !r.Time.IsZero() {
		stamp := r.Time.Format(time.DateTime)
		if h.colors.time != "" {
			fmt.Fprintf(&b, "%s%s%s ", h.colors.time, stamp, h.colors.reset)
		} else {
			b.WriteString(stamp)
			b.WriteByte(' ')
		}
	}

	if c := h.levelColor(r.Level); c != "" {
		fmt.Fprintf(&b, "%s%-5s%s %s%s%s", c, levelTag(r.Level), h.colors.reset, c, r.Message, h.colors.reset)
	} else {
		fmt.Fprintf(&b, "%-5s %s", levelTag(r.Level), r.Message)
	}

	for _, a := range h.attrs {
		h.appendAttr(&b, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.appendAttr(&b, a)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *Handler) appendAttr(b *strings.Builder, a slog.Attr) {
	key := h.group + a.Key

	// Errors stand out regardless of record level.
	if a.Value.Kind() == slog.KindAny {
		if _, isErr := a.Value.Any().(error); isErr && h.colors.err != "" {
			fmt.Fprintf(b, " %s%s=%q%s", h.colors.err, key, a.Value, h.colors.reset)
			return
		}
	}

	quoted := true
	switch a.Value.Kind() {
	case slog.KindInt64, slog.KindUint64, slog.KindFloat64, slog.KindBool, slog.KindDuration:
		quoted = false
	}

	if h.colors.key != "" {
		if quoted {
			fmt.Fprintf(b, " %s%s%s=%s%q%s", h.colors.key, key, h.colors.reset, h.colors.value, a.Value, h.colors.reset)
		} else {
			fmt.Fprintf(b, " %s%s%s=%s%v%s", h.colors.key, key, h.colors.reset, h.colors.value, a.Value, h.colors.reset)
		}
		return
	}
	if quoted {
		fmt.Fprintf(b, " %s=%q", key, a.Value)
	} else {
		fmt.Fprintf(b, " %s=%v", key, a.Value)
	}
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h2 := *h
	h2.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &h2
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.group = h.group + name + "."
	return &h2
}

// Setup installs a Handler on the default logger. Verbose lowers the
// threshold to debug.
func Setup(w io.Writer, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(NewHandler(w, level)))
}
