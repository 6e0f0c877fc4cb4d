package otel_test

import (
	"context"
	"testing"

	"github.com/aaronzipp/scavenger-hunt/internal/platform/otel"
)

func TestSetupNoop(t *testing.T) {
	tests := []struct {
		name string
		opts otel.Options
	}{
		{"disabled", otel.Options{Endpoint: "http://localhost:4318"}},
		{"no endpoint", otel.Options{Enabled: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shutdown, err := otel.Setup(context.Background(), "hunt-test", tt.opts)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			if err := shutdown(ctx); err != nil {
				t.Fatalf("noop shutdown should not error: %v", err)
			}
		})
	}
}

func TestSetupCreatesProvider(t *testing.T) {
	// Non-routable address so nothing is exported.
	shutdown, err := otel.Setup(context.Background(), "hunt-test", otel.Options{
		Enabled:  true,
		Endpoint: "http://192.0.2.1:4318",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}
