package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorPurple = "\033[35m"
	colorWhite  = "\033[37m"
)

type LogType string

const (
	TypeRPC    LogType = "RPC"
	TypeDB     LogType = "DB"
	TypeSweep  LogType = "SWEEP"
	TypeSystem LogType = "SYS"
	TypeError  LogType = "ERR"
)

// CustomHandler renders one colored line per record:
// [CardForge] [15:04:05] [INFO] [RPC] message [createListing by alice] [Status: ok] (took 3ms) key=value
type CustomHandler struct {
	opts   *slog.HandlerOptions
	out    io.Writer
	mu     *sync.Mutex
	plain  bool
	attrs  []slog.Attr
	groups []string
}

func NewHandler(level slog.Leveler) *CustomHandler {
	return NewHandlerWithWriter(os.Stdout, level)
}

func NewHandlerWithWriter(out io.Writer, level slog.Leveler) *CustomHandler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &CustomHandler{
		opts: &slog.HandlerOptions{Level: level},
		out:  out,
		mu:   &sync.Mutex{},
	}
}

// WithoutColor returns a copy of h that writes no ANSI escapes.
func (h *CustomHandler) WithoutColor() *CustomHandler {
	c := *h
	c.plain = true
	return &c
}

// New picks the handler for a configured format: "json" for machine
// consumption, "plain" for uncolored console lines, anything else for the
// colored console output.
func New(format string, level slog.Leveler, addSource bool) slog.Handler {
	switch format {
	case "json":
		return slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level, AddSource: addSource})
	case "plain":
		return NewHandler(level).WithoutColor()
	}
	return NewHandler(level)
}

func (h *CustomHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

func (h *CustomHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CustomHandler{
		opts:   h.opts,
		out:    h.out,
		mu:     h.mu,
		plain:  h.plain,
		attrs:  append(append([]slog.Attr{}, h.attrs...), attrs...),
		groups: h.groups,
	}
}

func (h *CustomHandler) WithGroup(name string) slog.Handler {
	return &CustomHandler{
		opts:   h.opts,
		out:    h.out,
		mu:     h.mu,
		plain:  h.plain,
		attrs:  h.attrs,
		groups: append(append([]string{}, h.groups...), name),
	}
}

func (h *CustomHandler) Handle(_ context.Context, r slog.Record) error {
	timestamp := r.Time.Format("15:04:05")
	if r.Time.IsZero() {
		timestamp = time.Now().Format("15:04:05")
	}

	var levelColor, levelText string
	switch {
	case r.Level >= slog.LevelError:
		levelColor = colorRed
		levelText = "ERROR"
	case r.Level >= slog.LevelWarn:
		levelColor = colorYellow
		levelText = "WARN"
	case r.Level >= slog.LevelInfo:
		levelColor = colorGreen
		levelText = "INFO"
	default:
		levelColor = colorPurple
		levelText = "DEBUG"
	}

	fields := h.collect(r)

	message := r.Message
	if r.Level >= slog.LevelError {
		location := fields["error_location"]
		if location == "" {
			if file, line := getSourceLocation(); file != "" {
				location = fmt.Sprintf("%s:%d", file, line)
			}
		}
		if location != "" {
			message = fmt.Sprintf("%s (%s)", message, location)
		}
		if details := fields["error"]; details != "" {
			message = fmt.Sprintf("%s: %s", message, details)
		}
	}

	if name, account := fields["name"], fields["account"]; name != "" && account != "" {
		message = fmt.Sprintf("%s [%s by %s]", message, name, account)
	}
	if status := fields["status"]; status != "" {
		message = fmt.Sprintf("%s [Status: %s]", message, status)
	}
	if took := fields["took"]; took != "" {
		message = fmt.Sprintf("%s (took %s)", message, took)
	}

	var attrsStr string
	for _, attr := range h.attrs {
		if !isInternalAttr(attr.Key) {
			attrsStr += fmt.Sprintf(" %s=%v", attr.Key, attr.Value)
		}
	}
	r.Attrs(func(a slog.Attr) bool {
		if !isInternalAttr(a.Key) {
			attrsStr += fmt.Sprintf(" %s=%v", a.Key, a.Value)
		}
		return true
	})

	base, reset := colorWhite, colorReset
	if h.plain {
		base, levelColor, reset = "", "", ""
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := fmt.Fprintf(h.out, "%s[CardForge] [%s] [%s%s%s] [%s] %s%s%s\n",
		base,
		timestamp,
		levelColor,
		levelText,
		base,
		logType(fields["type"]),
		message,
		attrsStr,
		reset,
	)
	return err
}

// collect flattens handler and record attributes, record values winning.
func (h *CustomHandler) collect(r slog.Record) map[string]string {
	fields := make(map[string]string, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		fields[a.Key] = a.Value.String()
	}
	r.Attrs(func(a slog.Attr) bool {
		fields[a.Key] = a.Value.String()
		return true
	})
	return fields
}

func logType(t string) LogType {
	switch t {
	case "rpc":
		return TypeRPC
	case "db":
		return TypeDB
	case "sweep":
		return TypeSweep
	case "error":
		return TypeError
	}
	return TypeSystem
}

func getSourceLocation() (string, int) {
	_, file, line, ok := runtime.Caller(4)
	if !ok {
		return "", 0
	}
	return filepath.Base(file), line
}

func isInternalAttr(key string) bool {
	switch key {
	case "type", "name", "account", "status", "took", "error", "error_location":
		return true
	}
	return false
}
