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

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// Client is the public operation surface over a live chat backend. Every
// method is a single transport call; failures come back as typed errors
// and are mirrored on the publisher's diagnostics channel, never
// swallowed. Construct one per backend session — there is no package-level
// singleton.
type Client struct {
	transport Transport
	publisher *StatePublisher
	cfg       Config
	validate  *validator.Validate
	log       zerolog.Logger

	mu       sync.Mutex
	disposed bool
}

// New creates a client over the given transport. The transport's event
// handler is claimed by the client: inbound sendChatProvidersResult pushes
// feed the state publisher.
func New(cfg Config, transport Transport, log zerolog.Logger) *Client {
	c := &Client{
		transport: transport,
		publisher: NewStatePublisher(transport, log),
		cfg:       cfg,
		validate:  validator.New(),
		log:       log.With().Str("component", "client").Logger(),
	}
	transport.SetEventHandler(c.handleEvent)
	return c
}

// handleEvent routes inbound push events. State pushes feed the same
// publisher stream as poll results; everything else is logged and dropped.
func (c *Client) handleEvent(event string, payload json.RawMessage) {
	switch event {
	case EventChatProvidersResult:
		c.publisher.Push(payload)
	default:
		c.log.Trace().Str("event", event).Msg("Unhandled event type")
	}
}

// Publisher exposes the state publisher for subscribing to snapshots and
// reading poll diagnostics.
func (c *Client) Publisher() *StatePublisher {
	return c.publisher
}

// Subscribe registers a listener on the state stream. Valid only after
// StartSession.
func (c *Client) Subscribe() (*Subscription, error) {
	return c.publisher.Subscribe()
}

// invoke dispatches one operation, reporting any failure on the
// diagnostics channel before returning it.
func (c *Client) invoke(ctx context.Context, op Operation, args map[string]any) (json.RawMessage, error) {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return nil, ErrDisposed
	}
	c.mu.Unlock()

	raw, err := c.transport.Invoke(ctx, op, args)
	if err != nil {
		c.log.Warn().Err(err).Str("op", string(op)).Msg("Operation failed")
		c.publisher.report(Diagnostic{Kind: DiagnosticTransport, Op: op, Err: err})
		return nil, err
	}
	return raw, nil
}

// Init configures the backend session with the account key and department
// from the client config.
func (c *Client) Init(ctx context.Context) error {
	args := map[string]any{"accountKey": c.cfg.AccountKey}
	if c.cfg.Department != "" {
		args["department"] = c.cfg.Department
	}
	_, err := c.invoke(ctx, OpInit, args)
	return err
}

// SetVisitorInfo sends visitor identity to the backend. Empty fields are
// valid and mean "unset"; malformed email or phone fails with
// *ValidationError before dispatch. The info is not retained client-side.
func (c *Client) SetVisitorInfo(ctx context.Context, info VisitorInfo) error {
	if err := c.validate.Struct(info); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &ValidationError{Field: verrs[0].Field(), Reason: verrs[0].Tag()}
		}
		return &ValidationError{Field: "visitor", Reason: err.Error()}
	}
	_, err := c.invoke(ctx, OpSetVisitorInfo, info.args())
	return err
}

// SetLogging toggles backend diagnostic logging and adjusts the client's
// own log level to match.
func (c *Client) SetLogging(ctx context.Context, enabled bool) error {
	_, err := c.invoke(ctx, OpLogger, map[string]any{"enabled": enabled})
	return err
}

// StartSession (re)starts the state publisher and begins a chat session.
// When autoConnect is set, connect is issued immediately after
// startChatProviders, in that order. Restarting drops subscribers from the
// previous session by closing their channels; see StatePublisher.Start.
func (c *Client) StartSession(ctx context.Context, autoConnect bool) error {
	if _, err := c.invoke(ctx, OpStartChatProviders, nil); err != nil {
		return err
	}
	c.publisher.Start(c.cfg.PollInterval)
	if autoConnect {
		return c.Connect(ctx)
	}
	return nil
}

// Connect asks the backend to open its chat connection.
func (c *Client) Connect(ctx context.Context) error {
	_, err := c.invoke(ctx, OpConnect, nil)
	return err
}

// Disconnect asks the backend to drop its chat connection. The publisher
// keeps running; the next snapshot reflects the disconnected state.
func (c *Client) Disconnect(ctx context.Context) error {
	_, err := c.invoke(ctx, OpDisconnect, nil)
	return err
}

// SendMessage sends a visitor chat message.
func (c *Client) SendMessage(ctx context.Context, text string) error {
	_, err := c.invoke(ctx, OpSendMessage, map[string]any{"message": text})
	return err
}

// SendTyping reports the visitor's typing state.
func (c *Client) SendTyping(ctx context.Context, typing bool) error {
	_, err := c.invoke(ctx, OpSendIsTyping, map[string]any{"isTyping": typing})
	return err
}

// SendFile sends a file attachment. With a WSTransport the file bytes
// travel over the HTTPS upload endpoint and only the resulting token goes
// through the operation channel.
func (c *Client) SendFile(ctx context.Context, path string) error {
	if path == "" {
		return &ValidationError{Field: "file", Reason: "path is empty"}
	}
	_, err := c.invoke(ctx, OpSendFile, map[string]any{"file": path})
	return err
}

// EndSession ends the chat on the backend. The publisher keeps running
// until Dispose so the final session state is still observable.
func (c *Client) EndSession(ctx context.Context) error {
	_, err := c.invoke(ctx, OpEndChat, nil)
	return err
}

// AttachmentExtensions returns the file extensions the backend accepts
// for uploads, or nil when the backend does not restrict them.
func (c *Client) AttachmentExtensions(ctx context.Context) ([]string, error) {
	raw, err := c.invoke(ctx, OpAttachmentExtensions, nil)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var exts []string
	if err := json.Unmarshal(raw, &exts); err != nil {
		return nil, &DecodeError{Reason: "attachment extensions", Err: err}
	}
	return exts, nil
}

// RegisterPushToken registers a push notification token with the backend.
func (c *Client) RegisterPushToken(ctx context.Context, token string) error {
	if token == "" {
		return &ValidationError{Field: "token", Reason: "token is empty"}
	}
	_, err := c.invoke(ctx, OpRegisterToken, map[string]any{"token": token})
	return err
}

// Dispose stops the publisher, closes all subscriber channels, dispatches
// dispose_chat and releases the transport. Idempotent: the second call is
// a no-op returning nil.
func (c *Client) Dispose() error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return nil
	}
	c.disposed = true
	c.mu.Unlock()

	c.publisher.Stop()

	// Best effort: the backend may already be gone.
	if _, err := c.transport.Invoke(context.Background(), OpDisposeChat, nil); err != nil {
		c.log.Debug().Err(err).Msg("dispose_chat failed")
	}

	if err := c.transport.Close(); err != nil {
		return &TransportError{Op: OpDisposeChat, Err: err}
	}
	c.log.Debug().Msg("Client disposed")
	return nil
}
