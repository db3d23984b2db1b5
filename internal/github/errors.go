package github

import (
	"errors"
	"fmt"
)

var (
	// ErrNetwork indicates a transport failure or timeout talking to the API.
	ErrNetwork = errors.New("network error")
	// ErrNotFound indicates the project or ref does not exist on the host.
	ErrNotFound = errors.New("not found")
	// ErrUnsupported indicates the host does not implement the endpoint.
	ErrUnsupported = errors.New("endpoint not supported")
	// ErrAuthRequired indicates the request was rejected for missing or
	// insufficient credentials.
	ErrAuthRequired = errors.New("authentication required")
	// ErrUnexpected indicates a client error response the gate cannot
	// interpret. The state stays unresolved.
	ErrUnexpected = errors.New("unexpected API response")
)

// APIError annotates one of the sentinel kinds with the request that failed.
type APIError struct {
	Op      string
	Project string
	Ref     string
	Kind    error
	Err     error
}

func (e *APIError) Error() string {
	target := e.Project
	if e.Ref != "" {
		target += "@" + e.Ref
	}
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %v", e.Op, target, e.Kind)
	}
	return fmt.Sprintf("%s %s: %v: %v", e.Op, target, e.Kind, e.Err)
}

// Is matches the sentinel kind so callers can use errors.Is(err, ErrNotFound).
func (e *APIError) Is(target error) bool {
	return e.Kind == target
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// LaunchError reports that the underlying executable could not be started.
// It is never used for a process that started and exited non-zero.
type LaunchError struct {
	Executable string
	Err        error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch %s: %v", e.Executable, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// IsLaunchError reports whether err originated from a failed process start.
func IsLaunchError(err error) bool {
	if err == nil {
		return false
	}

	var target *LaunchError
	return errors.As(err, &target)
}
