package tracing

import (
	"context"
	"errors"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.ServiceName != "huddle" {
		t.Errorf("expected service name 'huddle', got '%s'", cfg.ServiceName)
	}
	if cfg.Enabled {
		t.Error("expected tracing disabled by default")
	}
	if cfg.SampleRate != 1.0 {
		t.Errorf("expected sample rate 1.0, got %f", cfg.SampleRate)
	}
}

func TestInitDisabled(t *testing.T) {
	tp, err := Init(Config{Enabled: false})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if err := tp.Shutdown(context.Background()); err != nil {
		t.Errorf("expected nil shutdown on disabled provider, got: %v", err)
	}
}

func TestTraceSignalEvent(t *testing.T) {
	ctx, span := TraceSignalEvent(context.Background(), "join-room", "conn_1")
	if span == nil {
		t.Fatal("expected non-nil span")
	}
	RecordError(ctx, errors.New("boom"))
	span.End()
}
