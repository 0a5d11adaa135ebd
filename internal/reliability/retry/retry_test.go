package retry

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"
)

func testConfig() *Config {
	return &Config{
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestDoSucceedsFirstTry(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), testConfig(), slog.Default(), "op", func(ctx context.Context) (int, error) {
		calls++
		return 42, nil
	})
	if err != nil {
		t.Fatalf("expected success: %v", err)
	}
	if result != 42 || calls != 1 {
		t.Fatalf("expected one call returning 42, got %d after %d calls", result, calls)
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), testConfig(), slog.Default(), "op", func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("expected eventual success: %v", err)
	}
	if result != "ok" || calls != 3 {
		t.Fatalf("expected success on call 3, got %q after %d calls", result, calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	sentinel := errors.New("down")
	calls := 0
	_, err := Do(context.Background(), testConfig(), slog.Default(), "op", func(ctx context.Context) (int, error) {
		calls++
		return 0, sentinel
	})
	if err == nil {
		t.Fatalf("expected failure after exhausting attempts")
	}
	if !errors.Is(err, sentinel) {
		t.Fatalf("wrapped error must expose the last failure: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestDoHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Do(ctx, testConfig(), slog.Default(), "op", func(ctx context.Context) (int, error) {
		t.Fatalf("cancelled context must not invoke the operation")
		return 0, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestCalculateBackoffCapped(t *testing.T) {
	cfg := testConfig()
	if b := calculateBackoff(0, cfg); b != time.Millisecond {
		t.Fatalf("expected initial backoff, got %v", b)
	}
	if b := calculateBackoff(10, cfg); b != cfg.MaxBackoff {
		t.Fatalf("expected cap at %v, got %v", cfg.MaxBackoff, b)
	}
}

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig(0, 0)
	if cfg.MaxAttempts != 3 || cfg.InitialBackoff != 100*time.Millisecond {
		t.Fatalf("non-positive inputs must fall back to defaults: %+v", cfg)
	}
	cfg = NewConfig(5, time.Second)
	if cfg.MaxAttempts != 5 || cfg.InitialBackoff != time.Second {
		t.Fatalf("explicit values must win: %+v", cfg)
	}
}
