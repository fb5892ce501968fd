package resilience

import (
	"context"
	"errors"
	"time"
)

// TimeoutError marks an external call that exceeded its budget. It is never
// conflated with a generic failure: callers test with IsTimeout.
type TimeoutError struct {
	Message string
	Budget  time.Duration
}

func (e *TimeoutError) Error() string {
	return e.Message
}

func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// Budgets holds per-operation-class deadlines. File I/O is budgeted shorter
// than model calls.
type Budgets struct {
	FileDownload     time.Duration
	FileUpload       time.Duration
	DocumentParse    time.Duration
	AIClassification time.Duration
	Embedding        time.Duration
}

func DefaultBudgets() Budgets {
	return Budgets{
		FileDownload:     60 * time.Second,
		FileUpload:       60 * time.Second,
		DocumentParse:    60 * time.Second,
		AIClassification: 90 * time.Second,
		Embedding:        60 * time.Second,
	}
}

// WithTimeout races op against a timer. On expiry the result is discarded
// and a TimeoutError carrying message is returned; op may still be running
// its in-flight side effects, downstream idempotent upserts absorb any that
// land late. An error from op before the timer fires propagates unchanged.
func WithTimeout[T any](ctx context.Context, budget time.Duration, message string, op func(context.Context) (T, error)) (T, error) {
	type outcome struct {
		value T
		err   error
	}

	opCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan outcome, 1)
	go func() {
		value, err := op(opCtx)
		results <- outcome{value: value, err: err}
	}()

	timer := time.NewTimer(budget)
	defer timer.Stop()

	var zero T
	select {
	case out := <-results:
		return out.value, out.err
	case <-timer.C:
		return zero, &TimeoutError{Message: message, Budget: budget}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
