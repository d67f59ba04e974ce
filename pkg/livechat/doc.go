// Copyright 2024-2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package livechat is a client library for Zendesk-style live chat
// backends. It forwards a closed set of chat operations over a
// request/response transport, decodes backend state payloads into typed
// snapshots, and republishes them as a cancellable broadcast stream.
//
// The connection lifecycle, message ordering and delivery guarantees are
// owned by the backend; this package is deliberately a thin facade over it.
//
// # Core Types
//
// [Client] is the public operation surface: connect, disconnect, send
// message, send typing, send file, end chat, register push token. Each
// operation is a single [Transport] call; failures come back as typed
// errors and are mirrored on the diagnostics stream, never swallowed.
//
// [Transport] is the call/response boundary to the backend. [WSTransport]
// is the production implementation, speaking JSON frames over a WebSocket
// plus HTTPS multipart for attachment uploads.
//
// [StatePublisher] bridges the backend's pull semantics (poll
// getChatProviders) into push semantics: a single poll loop shared by all
// subscribers, fed by both poll results and out-of-band
// sendChatProvidersResult pushes.
//
// [ProviderState] is the immutable point-in-time snapshot of the chat
// session: connection status, queue position, agents, unread count,
// visitor info. Each snapshot is rebuilt fresh from its payload and
// superseded by the next; nothing is persisted.
package livechat
