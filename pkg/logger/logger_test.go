package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestColoredHandlerIncludesRequestIDAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewColoredHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	log.With("component", "api").Info("request completed", "request_id", "abc-123", "status", 200)

	out := buf.String()
	assert.Contains(t, out, "[abc-123]")
	assert.Contains(t, out, "request completed")
	assert.Contains(t, out, "component")
	assert.Contains(t, out, "status")
}

func TestColoredHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewColoredHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	log.Info("hidden")
	assert.Empty(t, buf.String())
}

func TestRequestIDContext(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", GetRequestID(ctx))
	assert.Equal(t, "", GetRequestID(context.Background()))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}
