package steadfast

import (
	"errors"
	"fmt"
)

type (
	// ConnectionError is returned when the physical connection could not
	// be established or broke while a command was in flight. Commands that
	// fail with a ConnectionError are retried by the retrying paths.
	ConnectionError struct {
		Err error
	}

	// ProtocolError is returned when the remote server replies with a value
	// whose shape does not match what the command requires. These errors
	// are never retried.
	ProtocolError struct {
		Command string
		Reply   interface{}
		Reason  string
	}

	// RetriesExhaustedError is returned by the retrying paths when every
	// attempt failed with a ConnectionError.
	RetriesExhaustedError struct {
		Attempts int
		Err      error
	}
)

var (
	// ErrRetriesExhausted matches any RetriesExhaustedError via errors.Is.
	ErrRetriesExhausted = errors.New("retries exhausted")

	// ErrNestedTransaction is returned when a transaction is begun while
	// another one is still accumulating commands.
	ErrNestedTransaction = errors.New("transaction already in progress")

	// ErrNoTransaction is returned when a transaction is committed or
	// discarded but none was begun.
	ErrNoTransaction = errors.New("no transaction in progress")

	// ErrTransactionAborted is returned when the server refuses to run a
	// committed transaction (EXEC replied with nil).
	ErrTransactionAborted = errors.New("transaction aborted by server")

	// ErrNoConnection is returned when the borrow timeout elapses or a
	// pooled connection cannot be opened.
	ErrNoConnection = errors.New("no connection available in pool")

	errNotConnected = errors.New("not connected")
)

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("redis connection error: %s", e.Err.Error())
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("unexpected reply to %s (%s): %#v", e.Command, e.Reason, e.Reply)
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %s", e.Attempts, e.Err.Error())
}

func (e *RetriesExhaustedError) Unwrap() error {
	return e.Err
}

func (e *RetriesExhaustedError) Is(target error) bool {
	return target == ErrRetriesExhausted
}

// IsConnectionError determines if the given error (or any error it wraps)
// is a ConnectionError.
func IsConnectionError(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr)
}

func wrapConnectionError(err error) error {
	if err == nil || IsConnectionError(err) {
		return err
	}

	return &ConnectionError{Err: err}
}
