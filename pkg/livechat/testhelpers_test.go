// Copyright 2024-2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package livechat

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// fakeTransport is an in-memory Transport that records dispatched
// operations and serves scripted results. Poll calls (getChatProviders)
// can be gated through a channel so tests can hold a poll in flight.
type fakeTransport struct {
	mu        sync.Mutex
	ops       []Operation
	results   map[Operation]json.RawMessage
	errs      map[Operation]error
	handler   EventHandler
	connected bool
	closes    int

	// pollGate, when non-nil, makes getChatProviders block until a
	// result is sent on it.
	pollGate chan pollResult
}

type pollResult struct {
	raw json.RawMessage
	err error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		results: make(map[Operation]json.RawMessage),
		errs:    make(map[Operation]error),
	}
}

func (f *fakeTransport) Connect(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = true
	return nil
}

func (f *fakeTransport) Invoke(ctx context.Context, op Operation, _ map[string]any) (json.RawMessage, error) {
	if !op.Supported() {
		return nil, &ValidationError{Field: "operation", Reason: "unsupported"}
	}

	f.mu.Lock()
	f.ops = append(f.ops, op)
	gate := f.pollGate
	res, hasRes := f.results[op]
	err := f.errs[op]
	f.mu.Unlock()

	if op == OpGetChatProviders && gate != nil {
		select {
		case <-ctx.Done():
			return nil, &TransportError{Op: op, Err: ctx.Err()}
		case r := <-gate:
			if r.err != nil {
				return nil, &TransportError{Op: op, Err: r.err}
			}
			return r.raw, nil
		}
	}

	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	if hasRes {
		return res, nil
	}
	return json.RawMessage(`{}`), nil
}

func (f *fakeTransport) SetEventHandler(fn EventHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = fn
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	f.connected = false
	return nil
}

// Ops returns a copy of the dispatched operation names in order.
func (f *fakeTransport) Ops() []Operation {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]Operation, len(f.ops))
	copy(cp, f.ops)
	return cp
}

// PushEvent simulates an inbound push from the backend.
func (f *fakeTransport) PushEvent(event string, payload json.RawMessage) {
	f.mu.Lock()
	handler := f.handler
	f.mu.Unlock()
	if handler == nil {
		panic("fakeTransport: no event handler registered")
	}
	handler(event, payload)
}

// FailOp scripts op to fail with the given message.
func (f *fakeTransport) FailOp(op Operation, msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[op] = errors.New(msg)
}

// SetResult scripts op to return the given raw payload.
func (f *fakeTransport) SetResult(op Operation, raw json.RawMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[op] = raw
}

// Closes returns how many times Close has been called.
func (f *fakeTransport) Closes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testConfig() Config {
	return Config{
		AccountKey:   "test-account",
		ServerURL:    "wss://chat.example.com/socket",
		PollInterval: 0, // push-only unless a test opts into polling
	}
}

func newTestClient(f *fakeTransport) *Client {
	return New(testConfig(), f, testLogger())
}
