package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

var fastRetry = retryConfig{maxRetries: 3, baseDelay: time.Millisecond, maxDelay: 10 * time.Millisecond}

func TestIsTransientSQLiteErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"non-transient", errors.New("syntax error"), false},
		{"not found sentinel", ErrNotFound, false},
		{"SQLITE_BUSY text", errors.New("SQLITE_BUSY"), true},
		{"SQLITE_LOCKED text", errors.New("SQLITE_LOCKED"), true},
		{"IOERR_SHORT_READ text", errors.New("IOERR_SHORT_READ"), true},
		{"database is locked", errors.New("database is locked"), true},
		{"database table is locked", errors.New("database table is locked"), true},
		{"code 5", errors.New("sqlite: (5) database is busy"), true},
		{"code 522", errors.New("sqlite: (522) short read"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isTransientSQLiteErr(tt.err); got != tt.want {
				t.Errorf("isTransientSQLiteErr(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRetryOpSucceedsImmediately(t *testing.T) {
	calls := 0
	err := retryOp(context.Background(), fastRetry, func() error {
		calls++
		return nil
	})
	if err != nil || calls != 1 {
		t.Fatalf("err=%v calls=%d, want nil/1", err, calls)
	}
}

func TestRetryOpDoesNotRetryDomainErrors(t *testing.T) {
	calls := 0
	err := retryOp(context.Background(), fastRetry, func() error {
		calls++
		return ErrNotPending
	})
	if !errors.Is(err, ErrNotPending) {
		t.Fatalf("expected ErrNotPending, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call for a non-transient error, got %d", calls)
	}
}

func TestRetryOpRetriesOnTransientError(t *testing.T) {
	calls := 0
	err := retryOp(context.Background(), fastRetry, func() error {
		calls++
		if calls < 3 {
			return errors.New("SQLITE_BUSY")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected nil after retries, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetryOpExhaustsRetries(t *testing.T) {
	calls := 0
	cfg := retryConfig{maxRetries: 2, baseDelay: time.Millisecond, maxDelay: 5 * time.Millisecond}
	err := retryOp(context.Background(), cfg, func() error {
		calls++
		return errors.New("SQLITE_BUSY")
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	// One initial attempt plus two retries.
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetryOpStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	cfg := retryConfig{maxRetries: 5, baseDelay: 50 * time.Millisecond, maxDelay: time.Second}
	start := time.Now()
	err := retryOp(ctx, cfg, func() error {
		calls++
		return errors.New("database is locked")
	})
	if err == nil {
		t.Fatal("expected the last transient error")
	}
	if calls != 1 {
		t.Fatalf("expected 1 call before noticing cancellation, got %d", calls)
	}
	if time.Since(start) > 40*time.Millisecond {
		t.Fatal("retry loop should not sleep once the context is done")
	}
}

func TestBackoffDelay(t *testing.T) {
	cfg := retryConfig{baseDelay: 50 * time.Millisecond, maxDelay: 500 * time.Millisecond}
	for attempt, lo := range []time.Duration{50 * time.Millisecond, 100 * time.Millisecond, 200 * time.Millisecond} {
		d := backoffDelay(cfg, attempt)
		if d < lo || d >= lo+cfg.baseDelay {
			t.Errorf("attempt %d delay %v not in [%v, %v)", attempt, d, lo, lo+cfg.baseDelay)
		}
	}
}

func TestBackoffDelayCapsAtMax(t *testing.T) {
	cfg := retryConfig{baseDelay: 100 * time.Millisecond, maxDelay: 200 * time.Millisecond}
	if d := backoffDelay(cfg, 5); d >= 300*time.Millisecond {
		t.Errorf("attempt 5 delay %v should be capped near 200ms", d)
	}
}
