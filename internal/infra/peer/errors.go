package peer

import (
	"fmt"
)

// StatusError is a non-2xx reply from a peer.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Status)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Body)
}

// UnreachableError means every attempt failed. Err is the last failure.
type UnreachableError struct {
	Peer     string
	Method   string
	Path     string
	Attempts int
	Err      error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("%s service unreachable: %s %s failed after %d attempts: %v",
		e.Peer, e.Method, e.Path, e.Attempts, e.Err)
}

func (e *UnreachableError) Unwrap() error {
	return e.Err
}
