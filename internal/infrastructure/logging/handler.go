package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

const systemKey = "system"

// PrettyHandler is a slog.Handler that writes single-line bracketed
// records:
//
//	[LEVEL] [SYSTEM] [HH:MM:SS] message key=value key=value
//
// The system bracket comes from a "system" attribute, so scoped
// loggers built with logger.With("system", "ingest") get their own
// prefix.
type PrettyHandler struct {
	w          io.Writer
	level      slog.Level
	mu         *sync.Mutex
	system     string
	timestamps bool
	colors     bool
	groups     []string
	attrs      []slog.Attr
}

// NewPrettyHandler creates a bracketed handler writing to w. Colors
// are enabled only when w is a terminal.
func NewPrettyHandler(w io.Writer, opts *slog.HandlerOptions) *PrettyHandler {
	h := &PrettyHandler{
		w:          w,
		level:      slog.LevelInfo,
		mu:         &sync.Mutex{},
		timestamps: true,
		colors:     isTerminal(w),
	}
	if opts != nil && opts.Level != nil {
		h.level = opts.Level.Level()
	}
	return h
}

// isTerminal checks if the writer is a terminal (for color output)
func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}

// Enabled reports whether the handler handles records at the given level.
func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

// Handle formats and writes a log record
func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	var buf strings.Builder

	h.paint(&buf, levelColor(r.Level))
	fmt.Fprintf(&buf, "[%s]", levelString(r.Level))
	h.paint(&buf, colorReset)

	if h.system != "" {
		fmt.Fprintf(&buf, " [%s]", h.system)
	}

	if h.timestamps {
		h.paint(&buf, colorGray)
		fmt.Fprintf(&buf, " [%s]", r.Time.Format("15:04:05"))
		h.paint(&buf, colorReset)
	}

	buf.WriteString(" ")
	buf.WriteString(r.Message)

	for _, attr := range h.attrs {
		h.appendAttr(&buf, attr)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.appendAttr(&buf, a)
		return true
	})

	buf.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, buf.String())
	return err
}

// paint writes an ANSI code when colors are on
func (h *PrettyHandler) paint(buf *strings.Builder, code string) {
	if h.colors {
		buf.WriteString(code)
	}
}

// appendAttr writes one key=value pair. Group names prefix the key,
// and values containing whitespace are quoted.
func (h *PrettyHandler) appendAttr(buf *strings.Builder, a slog.Attr) {
	if a.Key == systemKey {
		return
	}
	key := a.Key
	if len(h.groups) > 0 {
		key = strings.Join(h.groups, ".") + "." + key
	}
	val := a.Value.Resolve().String()
	if strings.ContainsAny(val, " \t") {
		val = fmt.Sprintf("%q", val)
	}
	fmt.Fprintf(buf, " %s=%s", key, val)
}

// WithAttrs returns a new handler with the given attributes added.
// A "system" attribute becomes the bracket prefix instead of a
// key=value pair.
func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	kept := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	kept = append(kept, h.attrs...)
	for _, attr := range attrs {
		if attr.Key == systemKey {
			clone.system = attr.Value.String()
			continue
		}
		kept = append(kept, attr)
	}
	clone.attrs = kept
	return &clone
}

// WithGroup returns a new handler whose attribute keys are prefixed
// with name.
func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.groups = append(append([]string{}, h.groups...), name)
	return &clone
}

// levelColor returns the ANSI color code for a log level
func levelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return colorRed
	case level >= slog.LevelWarn:
		return colorYellow
	case level >= slog.LevelInfo:
		return colorCyan
	default:
		return colorGray
	}
}

// levelString returns a short, uppercase string for the log level
func levelString(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
