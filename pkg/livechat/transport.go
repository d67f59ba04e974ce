// Copyright 2024-2026 Aiku AI

package livechat

import (
	"context"
	"encoding/json"
)

// EventHandler receives out-of-band push events from the backend. The
// payload is the raw event body; decoding is the receiver's business.
type EventHandler func(event string, payload json.RawMessage)

// Transport is the call/response boundary to the live chat backend.
//
// Invoke dispatches exactly once and never retries; any backend or wire
// fault surfaces as a *TransportError carrying the operation name. The
// handler registered with SetEventHandler is invoked from the transport's
// read loop, so it must not block.
type Transport interface {
	// Connect establishes the backend connection.
	Connect(ctx context.Context) error

	// Invoke sends one operation with its arguments and waits for the
	// backend's reply. Operations outside the supported set fail with
	// *ValidationError before anything is sent.
	Invoke(ctx context.Context, op Operation, args map[string]any) (json.RawMessage, error)

	// SetEventHandler registers the callback for inbound push events.
	// Must be called before Connect.
	SetEventHandler(fn EventHandler)

	// Close releases the connection. Safe to call more than once.
	Close() error
}
