package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWithTimeoutReturnsResultBeforeDeadline(t *testing.T) {
	got, err := WithTimeout(context.Background(), time.Second, "should not fire", func(context.Context) (string, error) {
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("WithTimeout() error = %v", err)
	}
	if got != "ok" {
		t.Fatalf("WithTimeout() = %q, want ok", got)
	}
}

func TestWithTimeoutPropagatesOperationError(t *testing.T) {
	opErr := errors.New("boom")
	_, err := WithTimeout(context.Background(), time.Second, "should not fire", func(context.Context) (int, error) {
		return 0, opErr
	})
	if !errors.Is(err, opErr) {
		t.Fatalf("expected operation error, got %v", err)
	}
	if IsTimeout(err) {
		t.Fatalf("operation error misreported as timeout")
	}
}

func TestWithTimeoutFailsWithTypedErrorOnExpiry(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	_, err := WithTimeout(context.Background(), 10*time.Millisecond, "download timed out", func(context.Context) (int, error) {
		<-block
		return 0, nil
	})
	if !IsTimeout(err) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
	var te *TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("errors.As failed for %v", err)
	}
	if te.Message != "download timed out" {
		t.Fatalf("unexpected message %q", te.Message)
	}
	if te.Budget != 10*time.Millisecond {
		t.Fatalf("unexpected budget %v", te.Budget)
	}
}

func TestWithTimeoutHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	block := make(chan struct{})
	defer close(block)

	_, err := WithTimeout(ctx, time.Second, "should not fire", func(context.Context) (int, error) {
		<-block
		return 0, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
