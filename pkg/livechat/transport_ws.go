// Copyright 2024-2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package livechat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/go-resty/resty/v2"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// wsRequest is an outbound operation frame.
type wsRequest struct {
	ID   uint64         `json:"id"`
	Op   Operation      `json:"op"`
	Args map[string]any `json:"args,omitempty"`
}

// wsFrame is any inbound frame: a reply (ID set) or a push (Event set).
type wsFrame struct {
	ID      uint64          `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
	Event   string          `json:"event,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// wsReply is what the read loop hands back to a waiting Invoke.
type wsReply struct {
	result json.RawMessage
	err    error
}

// WSTransport speaks JSON frames over a WebSocket to the chat backend.
// Requests and replies are correlated by id; push frames carry an event
// name instead. Attachment bytes do not travel over the socket: sendFile
// uploads via HTTPS multipart first and dispatches the returned token.
type WSTransport struct {
	cfg  Config
	log  zerolog.Logger
	rest *resty.Client

	writeMu sync.Mutex
	conn    *websocket.Conn

	mu      sync.Mutex
	pending map[uint64]chan wsReply
	nextID  uint64
	handler EventHandler

	stopOnce sync.Once
	stopChan chan struct{}
}

var _ Transport = (*WSTransport)(nil)

// NewWSTransport creates a transport for the configured backend.
func NewWSTransport(cfg Config, log zerolog.Logger) *WSTransport {
	return &WSTransport{
		cfg:      cfg,
		log:      log.With().Str("component", "ws_transport").Logger(),
		rest:     resty.New(),
		pending:  make(map[uint64]chan wsReply),
		stopChan: make(chan struct{}),
	}
}

// SetEventHandler registers the push event callback. Must be called
// before Connect.
func (t *WSTransport) SetEventHandler(fn EventHandler) {
	t.mu.Lock()
	t.handler = fn
	t.mu.Unlock()
}

// Connect dials the backend and starts the read loop.
func (t *WSTransport) Connect(ctx context.Context) error {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, t.cfg.ServerURL, http.Header{})
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return &TransportError{Op: OpConnect, Err: fmt.Errorf("dial %s: %w", t.cfg.ServerURL, err)}
	}
	t.writeMu.Lock()
	t.conn = conn
	t.writeMu.Unlock()

	go t.readLoop(conn)

	t.log.Info().Str("server_url", t.cfg.ServerURL).Msg("WebSocket connected")
	return nil
}

// Invoke dispatches one operation and waits for the backend's reply.
// At-most-once: a frame is written exactly once and never retried.
func (t *WSTransport) Invoke(ctx context.Context, op Operation, args map[string]any) (json.RawMessage, error) {
	if !op.Supported() {
		return nil, &ValidationError{Field: "operation", Reason: fmt.Sprintf("%q is not in the supported set", op)}
	}

	// sendFile carries a local path; swap it for an upload token before
	// the frame touches the socket.
	if op == OpSendFile {
		path, _ := args["file"].(string)
		token, err := t.uploadAttachment(ctx, path)
		if err != nil {
			return nil, &TransportError{Op: op, Err: err}
		}
		args = map[string]any{"file": token}
	}

	t.writeMu.Lock()
	conn := t.conn
	t.writeMu.Unlock()
	if conn == nil {
		return nil, &TransportError{Op: op, Err: errors.New("transport not connected")}
	}

	reply := make(chan wsReply, 1)
	t.mu.Lock()
	t.nextID++
	id := t.nextID
	t.pending[id] = reply
	t.mu.Unlock()

	req := wsRequest{ID: id, Op: op, Args: args}
	t.writeMu.Lock()
	err := conn.WriteJSON(req)
	t.writeMu.Unlock()
	if err != nil {
		t.dropPending(id)
		return nil, &TransportError{Op: op, Err: fmt.Errorf("write frame: %w", err)}
	}

	select {
	case <-ctx.Done():
		t.dropPending(id)
		return nil, &TransportError{Op: op, Err: ctx.Err()}
	case <-t.stopChan:
		t.dropPending(id)
		return nil, &TransportError{Op: op, Err: errors.New("transport closed")}
	case r := <-reply:
		if r.err != nil {
			return nil, &TransportError{Op: op, Err: r.err}
		}
		return r.result, nil
	}
}

func (t *WSTransport) dropPending(id uint64) {
	t.mu.Lock()
	delete(t.pending, id)
	t.mu.Unlock()
}

// readLoop routes inbound frames until the connection dies or Close is
// called. A dead connection fails every pending call; there is no
// automatic reconnect at this layer.
func (t *WSTransport) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-t.stopChan:
			default:
				t.log.Warn().Err(err).Msg("WebSocket read failed")
			}
			t.failPending(fmt.Errorf("connection lost: %w", err))
			return
		}

		var frame wsFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			t.log.Warn().Err(err).Msg("Dropping malformed frame")
			continue
		}

		switch {
		case frame.Event != "":
			t.mu.Lock()
			handler := t.handler
			t.mu.Unlock()
			if handler != nil {
				handler(frame.Event, frame.Payload)
			}
		case frame.ID != 0:
			t.mu.Lock()
			reply, ok := t.pending[frame.ID]
			delete(t.pending, frame.ID)
			t.mu.Unlock()
			if !ok {
				t.log.Trace().Uint64("id", frame.ID).Msg("Reply for unknown call")
				continue
			}
			if frame.Error != "" {
				reply <- wsReply{err: errors.New(frame.Error)}
			} else {
				reply <- wsReply{result: frame.Result}
			}
		default:
			t.log.Trace().Msg("Dropping frame with neither id nor event")
		}
	}
}

// failPending errors out every in-flight call.
func (t *WSTransport) failPending(err error) {
	t.mu.Lock()
	pending := t.pending
	t.pending = make(map[uint64]chan wsReply)
	t.mu.Unlock()
	for _, reply := range pending {
		reply <- wsReply{err: err}
	}
}

// Close releases the connection. Safe to call more than once.
func (t *WSTransport) Close() error {
	var closeErr error
	t.stopOnce.Do(func() {
		close(t.stopChan)
		t.writeMu.Lock()
		conn := t.conn
		t.conn = nil
		t.writeMu.Unlock()
		if conn != nil {
			closeErr = conn.Close()
		}
		t.failPending(errors.New("transport closed"))
		t.log.Info().Msg("WebSocket closed")
	})
	return closeErr
}

// uploadAttachment posts the file at path to the backend's HTTPS upload
// endpoint and returns the attachment token to dispatch over the socket.
func (t *WSTransport) uploadAttachment(ctx context.Context, path string) (string, error) {
	if path == "" {
		return "", errors.New("empty file path")
	}

	uploadURL := t.cfg.UploadURL
	if uploadURL == "" {
		uploadURL = wsToHTTP(t.cfg.ServerURL) + "/upload"
	}

	var result struct {
		Token string `json:"token"`
	}
	resp, err := t.rest.R().
		SetContext(ctx).
		SetFile("file", path).
		SetResult(&result).
		Post(uploadURL)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", path, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("upload %s: backend returned %s", path, resp.Status())
	}
	if result.Token == "" {
		return "", fmt.Errorf("upload %s: backend returned no token", path)
	}
	return result.Token, nil
}

// wsToHTTP converts a WS(S) URL to an HTTP(S) URL.
func wsToHTTP(url string) string {
	if strings.HasPrefix(url, "wss://") {
		return "https://" + strings.TrimPrefix(url, "wss://")
	}
	if strings.HasPrefix(url, "ws://") {
		return "http://" + strings.TrimPrefix(url, "ws://")
	}
	return url
}
