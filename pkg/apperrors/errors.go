package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound                = errors.New("not found")
	ErrInvalidConfig           = errors.New("invalid configuration")
	ErrUnsupportedDatabaseType = errors.New("unsupported database type")
	ErrUnsupported             = errors.New("operation not supported by dialect")
)

// ConsistencyCheckError identifies the logical table whose chunk fetch failed.
// The caller decides whether to retry or abort.
type ConsistencyCheckError struct {
	Table string
	Err   error
}

func (e *ConsistencyCheckError) Error() string {
	return fmt.Sprintf("consistency check failed for table %q: %v", e.Table, e.Err)
}

func (e *ConsistencyCheckError) Unwrap() error {
	return e.Err
}
