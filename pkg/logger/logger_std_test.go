package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/cwrk-planet/chat-service/pkg/logger"
)

func TestInit_DevStd_TextOutPut(t *testing.T) {
	var buf bytes.Buffer
	logger.Init(logger.Config{
		Service:   "chat-service",
		Version:   "v0.0.1",
		Env:       logger.EnvDev,
		Backend:   logger.BackendStd,
		Level:     slog.LevelDebug,
		AddSource: true,
		Output:    &buf,
	})
	slog.Info("Hello world")

	out := buf.String()
	if strings.Contains(out, "{") && strings.Contains(out, "}") {
		t.Fatalf("expected text output in dev/std, got JSON: %s", out)
	}
	if !strings.Contains(out, "Hello world") {
		t.Fatalf("message missing: %s", out)
	}
	if !strings.Contains(out, "service=chat-service") {
		t.Fatalf("service attr missing: %s", out)
	}
	if !strings.Contains(out, "env=dev") {
		t.Fatalf("env attr missing: %s", out)
	}
}

func TestInit_ProdStd_JSONOutPut(t *testing.T) {
	var buf bytes.Buffer
	logger.Init(logger.Config{
		Service: "chat-service",
		Env:     logger.EnvProd,
		Backend: logger.BackendStd,
		Output:  &buf,
	})
	slog.Debug("hidden")
	slog.Warn("visible")

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("expected one JSON line, got %s, err=%v", buf.String(), err)
	}
	if m["msg"] != "visible" {
		t.Fatalf("msg mismatch: %v", m["msg"])
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	base := logger.Init(logger.Config{Env: logger.EnvDev, Backend: logger.BackendStd, Output: &buf})

	if got := logger.FromContext(context.Background()); got != base {
		t.Fatalf("expected default logger without context value")
	}

	ctx := logger.WithContext(context.Background(), base.With("conn_id", "c-1"))
	logger.FromContext(ctx).Info("frame")
	if !strings.Contains(buf.String(), "conn_id=c-1") {
		t.Fatalf("context attrs missing: %s", buf.String())
	}
}
