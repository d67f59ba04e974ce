// Copyright 2024-2026 Aiku AI

package livechat

import (
	"errors"
	"fmt"
)

// ErrNotStarted is returned by operations that require an active session
// or publisher which was never started, or was stopped.
var ErrNotStarted = errors.New("livechat: not started")

// ErrDisposed is returned by operations on a client after Dispose.
var ErrDisposed = errors.New("livechat: client disposed")

// TransportError wraps a failed backend call with the operation that
// caused it. The caller decides whether to retry; the transport never does.
type TransportError struct {
	Op  Operation
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("livechat: %s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError reports a backend state payload whose shape could not be
// decoded into a ProviderState.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("livechat: decode state: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("livechat: decode state: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ValidationError reports a caller-supplied argument rejected before
// dispatch, such as an operation outside the supported set.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("livechat: invalid %s: %s", e.Field, e.Reason)
}
