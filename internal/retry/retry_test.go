package retry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"notesearch/internal/service"
)

func init() {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// flakyOp fails with err for the first failures calls, then succeeds.
type flakyOp struct {
	failures int
	err      error
	calls    int
}

func (f *flakyOp) run(ctx context.Context) (int, error) {
	f.calls++
	if f.calls <= f.failures {
		return 0, f.err
	}
	return f.calls, nil
}

func TestDoValue(t *testing.T) {
	transient := service.Transient("upsert", errors.New("unavailable"))
	permanent := errors.New("bad request")

	tests := []struct {
		name      string
		failures  int
		err       error
		attempts  int
		wantErr   bool
		wantCalls int
	}{
		{
			name:      "succeeds first try",
			failures:  0,
			err:       transient,
			attempts:  3,
			wantCalls: 1,
		},
		{
			name:      "recovers after transient failures",
			failures:  2,
			err:       transient,
			attempts:  3,
			wantCalls: 3,
		},
		{
			name:      "exhausts attempts",
			failures:  5,
			err:       transient,
			attempts:  3,
			wantErr:   true,
			wantCalls: 3,
		},
		{
			name:      "permanent error is not retried",
			failures:  5,
			err:       permanent,
			attempts:  3,
			wantErr:   true,
			wantCalls: 1,
		},
		{
			name:      "zero attempts still runs once",
			failures:  0,
			err:       transient,
			attempts:  0,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := &flakyOp{failures: tt.failures, err: tt.err}
			p := Policy{MaxAttempts: tt.attempts, Delay: time.Millisecond}

			_, err := DoValue(context.Background(), p, "test", op.run)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DoValue() error = %v, wantErr %v", err, tt.wantErr)
			}
			if op.calls != tt.wantCalls {
				t.Errorf("DoValue() calls = %d, want %d", op.calls, tt.wantCalls)
			}
			if tt.wantErr && !errors.Is(err, tt.err) {
				t.Errorf("DoValue() error = %v, should wrap %v", err, tt.err)
			}
		})
	}
}

func TestPolicy_Do_CustomPredicate(t *testing.T) {
	sentinel := errors.New("retry me")
	op := &flakyOp{failures: 1, err: sentinel}
	p := Policy{
		MaxAttempts: 2,
		Delay:       time.Millisecond,
		Retryable:   func(err error) bool { return errors.Is(err, sentinel) },
	}

	err := p.Do(context.Background(), "custom", func(ctx context.Context) error {
		_, err := op.run(ctx)
		return err
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if op.calls != 2 {
		t.Errorf("Do() calls = %d, want 2", op.calls)
	}
}

func TestDoValue_ContextCancelledDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	op := &flakyOp{failures: 10, err: service.Transient("query", errors.New("timeout"))}
	p := Policy{MaxAttempts: 5, Delay: time.Hour}

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := DoValue(ctx, p, "cancel", op.run)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("DoValue() error = %v, want context.Canceled", err)
	}
	if op.calls != 1 {
		t.Errorf("DoValue() calls = %d, want 1", op.calls)
	}
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	if p.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", p.MaxAttempts)
	}
	if p.Retryable == nil {
		t.Error("Retryable should not be nil")
	}
}
