package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// Kind buckets every error the engine can surface. Retry loops only ever
// loop on KindTransient.
type Kind int

const (
	KindTransient Kind = iota + 1
	KindConflict
	KindValidation
	KindNotFound
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	default:
		return "fatal"
	}
}

type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func Transient(op string, err error) error {
	return &Error{Kind: KindTransient, Op: op, Err: err}
}

func Conflict(op string, err error) error {
	return &Error{Kind: KindConflict, Op: op, Err: err}
}

func Validation(op string, format string, args ...any) error {
	return &Error{Kind: KindValidation, Op: op, Err: fmt.Errorf(format, args...)}
}

func NotFound(op string, format string, args ...any) error {
	return &Error{Kind: KindNotFound, Op: op, Err: fmt.Errorf(format, args...)}
}

func Fatal(op string, err error) error {
	return &Error{Kind: KindFatal, Op: op, Err: err}
}

func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func IsTransient(err error) bool  { return KindOf(err) == KindTransient }
func IsConflict(err error) bool   { return KindOf(err) == KindConflict }
func IsValidation(err error) bool { return KindOf(err) == KindValidation }
func IsNotFound(err error) bool   { return KindOf(err) == KindNotFound }

// Classify maps a raw store error into the taxonomy. Unique violations are
// conflicts (another writer won), connection-class failures are transient,
// everything else is fatal.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return Conflict(op, err)
		case "57014", "57P01", "08000", "08003", "08006": // cancel, shutdown, connection failures
			return Transient(op, err)
		}
		return Fatal(op, err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Transient(op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return Transient(op, err)
	}
	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return Transient(op, err)
	}

	return Fatal(op, err)
}

const (
	retryBaseDelay   = 100 * time.Millisecond
	retryMaxAttempts = 3
)

// Retry runs fn up to three times with exponential backoff (100/200/400ms),
// looping only while the classified error stays transient.
func Retry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < retryMaxAttempts; attempt++ {
		if attempt > 0 {
			delay := retryBaseDelay * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return Transient(op, ctx.Err())
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}

		classified := Classify(op, err)
		if !IsTransient(classified) {
			return classified
		}
		lastErr = classified
	}
	return lastErr
}
