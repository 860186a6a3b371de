package store

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestTranslateCode(t *testing.T) {
	cases := []struct {
		name string
		code string
		want error
	}{
		{"unique violation", "23505", ErrDuplicateEmail},
		{"not null violation", "23502", ErrMissingField},
		{"foreign key violation", "23503", ErrReferential},
		{"undefined table", "42P01", ErrConfiguration},
		{"insufficient privilege", "42501", ErrPermission},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := TranslateCode(tc.code, "detail")
			if !errors.Is(err, tc.want) {
				t.Fatalf("TranslateCode(%s) = %v, want %v", tc.code, err, tc.want)
			}
			if Retryable(err) {
				t.Fatalf("%s must be terminal", tc.code)
			}
		})
	}
}

func TestTranslateCodeUnknownKeepsMessage(t *testing.T) {
	err := TranslateCode("XX000", "disk on fire")
	if err == nil {
		t.Fatal("expected error for unknown code")
	}
	if !strings.Contains(err.Error(), "disk on fire") {
		t.Fatalf("expected original message to survive, got %q", err.Error())
	}
	if Retryable(err) {
		t.Fatal("unknown backend codes must be terminal")
	}
}

func TestWrapTransient(t *testing.T) {
	base := errors.New("connection reset")
	wrapped := WrapTransient(base)

	if !errors.Is(wrapped, ErrTransient) {
		t.Fatalf("expected transient marker: %v", wrapped)
	}
	if !strings.Contains(wrapped.Error(), base.Error()) {
		t.Fatal("expected original message to survive wrapping")
	}
	if !Retryable(wrapped) {
		t.Fatal("transient errors must be retryable")
	}
	if !errors.Is(WrapTransient(nil), ErrTransient) {
		t.Fatal("nil wrap must fall back to the sentinel")
	}
}

func TestRetryConfigDelay(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 3, InitialDelay: 100 * time.Millisecond, BackoffMultiplier: 2}

	if got := cfg.Delay(1); got != 100*time.Millisecond {
		t.Fatalf("attempt 1 delay = %v, want 100ms", got)
	}
	if got := cfg.Delay(2); got != 200*time.Millisecond {
		t.Fatalf("attempt 2 delay = %v, want 200ms", got)
	}
	if got := cfg.Delay(0); got != 0 {
		t.Fatalf("invalid attempt delay = %v, want 0", got)
	}
}

func TestRetryConfigNormalize(t *testing.T) {
	cfg := RetryConfig{}.Normalize()
	if cfg.MaxAttempts != DefaultMaxAttempts {
		t.Fatalf("expected default max attempts, got %d", cfg.MaxAttempts)
	}
	if cfg.InitialDelay != DefaultInitialDelay {
		t.Fatalf("expected default initial delay, got %v", cfg.InitialDelay)
	}
	if cfg.BackoffMultiplier != DefaultBackoffMultiplier {
		t.Fatalf("expected default multiplier, got %v", cfg.BackoffMultiplier)
	}

	custom := RetryConfig{MaxAttempts: 5, InitialDelay: 50 * time.Millisecond, BackoffMultiplier: 3}.Normalize()
	if custom.MaxAttempts != 5 || custom.InitialDelay != 50*time.Millisecond || custom.BackoffMultiplier != 3 {
		t.Fatalf("explicit values must survive normalization: %+v", custom)
	}
}
