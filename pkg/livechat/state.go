// Copyright 2024-2026 Aiku AI

package livechat

import (
	"encoding/json"

	"go.mau.fi/util/jsontime"
)

// ConnectionStatus is the backend socket state as reported by the provider.
type ConnectionStatus string

const (
	ConnectionConnecting   ConnectionStatus = "connecting"
	ConnectionConnected    ConnectionStatus = "connected"
	ConnectionDisconnected ConnectionStatus = "disconnected"
	ConnectionFailed       ConnectionStatus = "failed"
	ConnectionUnknown      ConnectionStatus = "unknown"
)

// SessionStatus is the chat session lifecycle state.
type SessionStatus string

const (
	SessionConfiguring SessionStatus = "configuring"
	SessionStarted     SessionStatus = "started"
	SessionEnded       SessionStatus = "ended"
)

// Agent describes one support agent participating in the session.
type Agent struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
	IsTyping    bool   `json:"isTyping,omitempty"`
}

// VisitorInfo is the write-only visitor configuration sent to the backend.
// Empty string fields mean "unset" and are valid; a nil Tags slice is
// treated as an empty set.
type VisitorInfo struct {
	Name       string   `json:"name,omitempty" validate:"omitempty,max=255"`
	Email      string   `json:"email,omitempty" validate:"omitempty,email"`
	Phone      string   `json:"phone,omitempty" validate:"omitempty,e164"`
	Department string   `json:"department,omitempty"`
	Tags       []string `json:"tags"`
}

// args converts the visitor info to an operation argument map. Tags always
// encodes, defaulting to an empty set.
func (v VisitorInfo) args() map[string]any {
	tags := v.Tags
	if tags == nil {
		tags = []string{}
	}
	return map[string]any{
		"name":       v.Name,
		"email":      v.Email,
		"phone":      v.Phone,
		"department": v.Department,
		"tags":       tags,
	}
}

// ProviderState is an immutable point-in-time snapshot of the live chat
// session. Each snapshot is rebuilt fresh from its backend payload and
// discarded once superseded; it is never partially mutated or persisted.
type ProviderState struct {
	ConnectionStatus ConnectionStatus   `json:"connectionStatus"`
	SessionStatus    SessionStatus      `json:"sessionStatus"`
	QueuePosition    int                `json:"queuePosition"`
	QueueDepartment  string             `json:"queueDepartment"`
	Agents           []Agent            `json:"agents"`
	UnreadCount      int                `json:"unreadCount"`
	Visitor          VisitorInfo        `json:"visitor"`
	Rating           string             `json:"rating"`
	Timestamp        jsontime.UnixMilli `json:"timestamp"`
}

// rawProviderState mirrors the wire payload with everything optional.
type rawProviderState struct {
	ConnectionStatus *string            `json:"connectionStatus"`
	SessionStatus    *string            `json:"sessionStatus"`
	QueuePosition    *int               `json:"queuePosition"`
	QueueDepartment  *string            `json:"queueDepartment"`
	Agents           []Agent            `json:"agents"`
	UnreadCount      *int               `json:"unreadCount"`
	Visitor          *VisitorInfo       `json:"visitor"`
	Rating           *string            `json:"rating"`
	Timestamp        jsontime.UnixMilli `json:"timestamp"`
}

// DecodeProviderState converts a backend state payload into a typed
// snapshot. Absent optional fields get neutral defaults; a payload that is
// not a JSON object fails with *DecodeError. The function is pure: no side
// effects, no retained state.
func DecodeProviderState(raw json.RawMessage) (*ProviderState, error) {
	if !startsWithObject(raw) {
		return nil, &DecodeError{Reason: "payload is not a JSON object"}
	}

	var rs rawProviderState
	if err := json.Unmarshal(raw, &rs); err != nil {
		return nil, &DecodeError{Reason: "malformed payload", Err: err}
	}

	state := &ProviderState{
		ConnectionStatus: ConnectionUnknown,
		SessionStatus:    SessionConfiguring,
		Agents:           []Agent{},
		Timestamp:        rs.Timestamp,
	}
	if rs.ConnectionStatus != nil {
		state.ConnectionStatus = normalizeConnectionStatus(*rs.ConnectionStatus)
	}
	if rs.SessionStatus != nil {
		state.SessionStatus = SessionStatus(*rs.SessionStatus)
	}
	if rs.QueuePosition != nil {
		state.QueuePosition = *rs.QueuePosition
	}
	if rs.QueueDepartment != nil {
		state.QueueDepartment = *rs.QueueDepartment
	}
	if rs.Agents != nil {
		state.Agents = rs.Agents
	}
	if rs.UnreadCount != nil {
		state.UnreadCount = *rs.UnreadCount
	}
	if rs.Visitor != nil {
		state.Visitor = *rs.Visitor
	}
	if state.Visitor.Tags == nil {
		state.Visitor.Tags = []string{}
	}
	if rs.Rating != nil {
		state.Rating = *rs.Rating
	}
	return state, nil
}

// startsWithObject reports whether the first non-whitespace byte opens a
// JSON object.
func startsWithObject(raw json.RawMessage) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '{':
			return true
		default:
			return false
		}
	}
	return false
}

// normalizeConnectionStatus maps known wire values onto the enum and
// passes anything else through as-is so new backend states survive decode.
func normalizeConnectionStatus(s string) ConnectionStatus {
	switch ConnectionStatus(s) {
	case ConnectionConnecting, ConnectionConnected, ConnectionDisconnected, ConnectionFailed:
		return ConnectionStatus(s)
	case "":
		return ConnectionUnknown
	default:
		return ConnectionStatus(s)
	}
}
