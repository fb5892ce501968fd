package domain

import (
	"errors"
	"fmt"
)

// Pipeline error kinds. Handlers branch on these to decide between
// terminal failure and queue retry.
var (
	// ErrDocumentNotFound: a write that should have hit a row hit none.
	// Always fatal, never silently ignored.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrInvalidInput: malformed payloads and corrupt data that no retry
	// can fix.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnsupportedFile: a resolved mimetype outside the processable set.
	ErrUnsupportedFile = errors.New("unsupported file type")
	// ErrTemporary: transient infrastructure failure; safe to retry.
	ErrTemporary = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
