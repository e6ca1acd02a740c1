package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestClassifyPgCodes(t *testing.T) {
	cases := []struct {
		code string
		want Kind
	}{
		{"23505", KindConflict},
		{"57014", KindTransient},
		{"57P01", KindTransient},
		{"08006", KindTransient},
		{"42P01", KindFatal}, // undefined_table
	}

	for _, c := range cases {
		err := Classify("test.op", &pgconn.PgError{Code: c.code})
		if got := KindOf(err); got != c.want {
			t.Errorf("code %s classified as %s, want %s", c.code, got, c.want)
		}
	}
}

func TestClassifyPassesThroughExisting(t *testing.T) {
	orig := NotFound("user.get", "no such user")
	if got := Classify("outer.op", orig); got != orig {
		t.Errorf("already-classified error was rewrapped: %v", got)
	}
}

func TestClassifyDeadline(t *testing.T) {
	err := Classify("test.op", fmt.Errorf("query: %w", context.DeadlineExceeded))
	if !IsTransient(err) {
		t.Errorf("deadline classified as %s, want transient", KindOf(err))
	}
}

func TestClassifyNil(t *testing.T) {
	if err := Classify("test.op", nil); err != nil {
		t.Errorf("nil classified as %v", err)
	}
}

func TestRetryStopsOnNonTransient(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "test.op", func(ctx context.Context) error {
		calls++
		return &pgconn.PgError{Code: "23505"}
	})

	if calls != 1 {
		t.Errorf("fn ran %d times, want 1: conflicts must not retry", calls)
	}
	if !IsConflict(err) {
		t.Errorf("got %v, want conflict", err)
	}
}

func TestRetryRecoversFromTransient(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "test.op", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return &pgconn.PgError{Code: "08006"}
		}
		return nil
	})

	if err != nil {
		t.Errorf("got %v, want nil after recovery", err)
	}
	if calls != 3 {
		t.Errorf("fn ran %d times, want 3", calls)
	}
}

func TestRetryGivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "test.op", func(ctx context.Context) error {
		calls++
		return &pgconn.PgError{Code: "57014"}
	})

	if calls != 3 {
		t.Errorf("fn ran %d times, want 3", calls)
	}
	if !IsTransient(err) {
		t.Errorf("got %v, want the last transient error", err)
	}
}

func TestRetryHonorsContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := Retry(ctx, "test.op", func(ctx context.Context) error {
		calls++
		cancel()
		return &pgconn.PgError{Code: "08006"}
	})

	if calls != 1 {
		t.Errorf("fn ran %d times after cancel, want 1", calls)
	}
	if !IsTransient(err) || !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want transient wrapping context.Canceled", err)
	}
}

func TestErrorMessage(t *testing.T) {
	err := Validation("activity.track", "unknown event type %q", "sneeze")
	want := `activity.track: unknown event type "sneeze"`
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
	if !IsValidation(err) {
		t.Error("kind lost")
	}
}
