package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	Reset     = "\033[0m"
	Red       = "\033[31m"
	Green     = "\033[32m"
	Yellow    = "\033[33m"
	Magenta   = "\033[35m"
	Cyan      = "\033[36m"
	White     = "\033[37m"
	BoldBlue  = "\033[1;34m"
	BoldWhite = "\033[1;37m"
)

var levelColors = map[slog.Level]string{
	slog.LevelDebug: Cyan,
	slog.LevelInfo:  Green,
	slog.LevelWarn:  Yellow,
	slog.LevelError: Red,
}

type RequestKey string

const (
	RequestIDKey RequestKey = "requestID"
)

type ColoredHandler struct {
	h     slog.Handler
	out   io.Writer
	attrs []slog.Attr
}

func NewColoredHandler(w io.Writer, opts *slog.HandlerOptions) *ColoredHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}

	return &ColoredHandler{
		h:   slog.NewTextHandler(w, opts),
		out: w,
	}
}

func (h *ColoredHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.h.Enabled(ctx, level)
}

func (h *ColoredHandler) Handle(ctx context.Context, r slog.Record) error {
	timeStr := r.Time.Format("15:04:05.000")

	levelColor, ok := levelColors[r.Level]
	if !ok {
		levelColor = White
	}
	levelStr := fmt.Sprintf("%-6s", strings.ToUpper(r.Level.String()))

	var logLine strings.Builder
	logLine.WriteString(fmt.Sprintf("%s%s%s ", Magenta, timeStr, Reset))
	logLine.WriteString(fmt.Sprintf("%s%s%s ", levelColor, levelStr, Reset))

	attrs := make([]slog.Attr, 0, len(h.attrs)+r.NumAttrs())
	attrs = append(attrs, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)
		return true
	})

	requestID := GetRequestID(ctx)
	for _, a := range attrs {
		if a.Key == "request_id" && a.Value.Kind() == slog.KindString {
			requestID = a.Value.String()
		}
	}
	if requestID != "" {
		logLine.WriteString(fmt.Sprintf("%s[%s]%s ", BoldBlue, requestID, Reset))
	}

	logLine.WriteString(fmt.Sprintf("%s%s%s ", BoldWhite, r.Message, Reset))

	for _, a := range attrs {
		if a.Key == "request_id" {
			continue
		}
		val := a.Value.String()
		if a.Value.Kind() == slog.KindString {
			val = fmt.Sprintf("%q", val)
		}
		logLine.WriteString(fmt.Sprintf("%s%s%s=%s ", Yellow, a.Key, Reset, val))
	}

	_, err := fmt.Fprintln(h.out, logLine.String())
	return err
}

func (h *ColoredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &ColoredHandler{
		h:     h.h.WithAttrs(attrs),
		out:   h.out,
		attrs: merged,
	}
}

func (h *ColoredHandler) WithGroup(name string) slog.Handler {
	return &ColoredHandler{
		h:     h.h.WithGroup(name),
		out:   h.out,
		attrs: h.attrs,
	}
}

// ParseLevel maps debug/info/warn/error to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup installs the default logger. format "json" selects a JSON handler for
// log shipping; anything else gets the colored console handler.
func Setup(level, format string) slog.Handler {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = NewColoredHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
	return handler
}

func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if reqID, ok := ctx.Value(RequestIDKey).(string); ok {
		return reqID
	}
	return ""
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// FromContext returns the default logger tagged with the request id in ctx.
func FromContext(ctx context.Context) *slog.Logger {
	if id := GetRequestID(ctx); id != "" {
		return slog.Default().With("request_id", id)
	}
	return slog.Default()
}
