// Copyright 2024-2026 Aiku AI

package livechat

// Operation names the backend calls this client may dispatch. The set is
// closed: the transport rejects anything else before it touches the wire.
type Operation string

const (
	OpInit                 Operation = "init"
	OpSetVisitorInfo       Operation = "setVisitorInfo"
	OpLogger               Operation = "logger"
	OpStartChatProviders   Operation = "startChatProviders"
	OpConnect              Operation = "connect"
	OpDisconnect           Operation = "disconnect"
	OpSendMessage          Operation = "sendMessage"
	OpSendIsTyping         Operation = "sendIsTyping"
	OpEndChat              Operation = "endChat"
	OpGetChatProviders     Operation = "getChatProviders"
	OpSendFile             Operation = "sendFile"
	OpAttachmentExtensions Operation = "compatibleAttachmentsExtensions"
	OpRegisterToken        Operation = "registerToken"
	OpDisposeChat          Operation = "dispose_chat"
)

// EventChatProvidersResult is the out-of-band push event carrying a
// ProviderState snapshot, delivered independently of polling.
const EventChatProvidersResult = "sendChatProvidersResult"

var supportedOps = map[Operation]struct{}{
	OpInit:                 {},
	OpSetVisitorInfo:       {},
	OpLogger:               {},
	OpStartChatProviders:   {},
	OpConnect:              {},
	OpDisconnect:           {},
	OpSendMessage:          {},
	OpSendIsTyping:         {},
	OpEndChat:              {},
	OpGetChatProviders:     {},
	OpSendFile:             {},
	OpAttachmentExtensions: {},
	OpRegisterToken:        {},
	OpDisposeChat:          {},
}

// Supported reports whether op is in the closed operation set.
func (op Operation) Supported() bool {
	_, ok := supportedOps[op]
	return ok
}
