package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/cwrk-planet/chat-service/pkg/logger"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestFromContext_PropagatesTraceIDs(t *testing.T) {
	var buf bytes.Buffer
	logger.Init(logger.Config{
		Service:          "chat-service",
		Env:              logger.EnvProd,
		Backend:          logger.BackendZap,
		SampleInitial:    100000,
		SampleThereafter: 100000,
		Output:           &buf,
	})

	tp := sdktrace.NewTracerProvider()
	defer func() {
		_ = tp.Shutdown(context.Background())
	}()
	otel.SetTracerProvider(tp)
	tr := tp.Tracer("test")

	ctx, span := tr.Start(context.Background(), "op")
	logger.FromContext(ctx).InfoContext(ctx, "with trace")
	span.End()

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("expected JSON, got: %s, err=%v", buf.String(), err)
	}

	if m["trace_id"] == nil || m["span_id"] == nil {
		t.Fatalf("trace_id/span_id missing in log: %v", m)
	}
	if m["msg"] != "with trace" {
		t.Fatalf("msg mismatch: %v", m["msg"])
	}
}
