/*
Package voice contains the signaling relay for the shared voice room.

This file defines the wire protocol: every WebSocket frame is a JSON envelope
{"type": ..., "payload": ...}. Inbound frames are decoded and validated here, on the
connection's own goroutine, before they reach the room coordinator.
*/
package voice

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"voicerelay/internal/pkg/errs"
)

// MaxContentBytes is the maximum size of a chat message text.
const MaxContentBytes = 5000

// MessageType names a protocol event.
type MessageType string

// Client to relay events.
const (
	TypeJoinVoice    MessageType = "join-voice"
	TypeLeaveVoice   MessageType = "leave-voice"
	TypeMuteStatus   MessageType = "mute-status"
	TypeChatMessage  MessageType = "chat-message"
	TypeTypingStart  MessageType = "typing-start"
	TypeTypingStop   MessageType = "typing-stop"
	TypeOffer        MessageType = "offer"
	TypeAnswer       MessageType = "answer"
	TypeICECandidate MessageType = "ice-candidate"
)

// Relay to client events.
const (
	TypeUserJoined MessageType = "user-joined"
	TypeUserLeft   MessageType = "user-left"
	TypeUsersList  MessageType = "users-list"
	TypeError      MessageType = "error"
)

// IsDirected reports whether t is routed to a single userId.
func (t MessageType) IsDirected() bool {
	return t == TypeOffer || t == TypeAnswer || t == TypeICECandidate
}

// IsRoomWide reports whether t is relayed to every connection except the sender.
func (t MessageType) IsRoomWide() bool {
	return t == TypeChatMessage || t == TypeTypingStart || t == TypeTypingStop
}

// Message is an outbound frame.
type Message struct {
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// NewMessage marshals payload into a Message stamped with the current time.
func NewMessage(msgType MessageType, payload any) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}

	return Message{
		Type:      msgType,
		Payload:   raw,
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

// JoinPayload is the body of join-voice.
type JoinPayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// LeavePayload is the body of leave-voice. UserID is informational only.
type LeavePayload struct {
	UserID string `json:"userId"`
}

// MutePayload is the body of mute-status.
type MutePayload struct {
	UserID  string `json:"userId"`
	IsMuted *bool  `json:"isMuted"`
}

// ChatPayload is the body of chat-message. It is only decoded for validation; the
// original bytes are relayed.
type ChatPayload struct {
	UserID    string          `json:"userId"`
	Username  string          `json:"username"`
	Avatar    string          `json:"avatar"`
	Message   string          `json:"message"`
	Timestamp json.RawMessage `json:"timestamp"`
}

// TypingPayload is the body of typing-start and typing-stop.
type TypingPayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username,omitempty"`
}

// DirectedPayload is the body of offer, answer and ice-candidate. Older clients put the
// negotiation blob under "offer", "answer" or "candidate" instead of "payload".
type DirectedPayload struct {
	To        string          `json:"to"`
	From      string          `json:"from"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// blob returns the negotiation payload, preferring the "payload" key. legacy is true when
// the blob was taken from the older per-type key.
func (p DirectedPayload) blob(msgType MessageType) (blob json.RawMessage, legacy bool) {
	if present(p.Payload) {
		return p.Payload, false
	}

	switch msgType {
	case TypeOffer:
		return p.Offer, true
	case TypeAnswer:
		return p.Answer, true
	case TypeICECandidate:
		return p.Candidate, true
	}
	return nil, false
}

// RelayedPayload is what the target of a directed message receives. The blob is always under
// "payload"; it is repeated under the per-type key when the sender used that key, so older
// receivers keep working.
type RelayedPayload struct {
	From      string          `json:"from"`
	Payload   json.RawMessage `json:"payload"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// NewRelayedPayload builds the body delivered to the target of a directed message.
func NewRelayedPayload(msg Inbound, from string) RelayedPayload {
	out := RelayedPayload{From: from, Payload: msg.Blob}
	if !msg.Legacy {
		return out
	}

	switch msg.Type {
	case TypeOffer:
		out.Offer = msg.Blob
	case TypeAnswer:
		out.Answer = msg.Blob
	case TypeICECandidate:
		out.Candidate = msg.Blob
	}
	return out
}

// UserEventPayload is the body of user-joined and user-left.
type UserEventPayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}

// ErrorPayload is the body of error frames. To carries the requested target of a failed
// directed message.
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	To      string `json:"to,omitempty"`
}

// Inbound is a decoded, validated client frame.
type Inbound struct {
	Type MessageType

	Join     JoinPayload
	Leave    LeavePayload
	Muted    bool
	To       string
	From     string
	Blob     json.RawMessage
	Verbatim json.RawMessage

	// Legacy is set when Blob arrived under "offer", "answer" or "candidate".
	Legacy bool
}

// ParseInbound decodes one frame. The returned error is meant for the sender only.
func ParseInbound(data []byte) (Inbound, *errs.CustomError) {
	var envelope struct {
		Type    MessageType     `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}

	if err := json.Unmarshal(data, &envelope); err != nil {
		return Inbound{}, errs.NewError(errs.ErrInvalidJSONFormat)
	}

	in := Inbound{Type: envelope.Type}

	switch envelope.Type {
	case TypeJoinVoice:
		if err := decodePayload(envelope.Type, envelope.Payload, &in.Join); err != nil {
			return Inbound{}, err
		}
		in.Join.UserID = strings.TrimSpace(in.Join.UserID)
		if in.Join.UserID == "" {
			return Inbound{}, malformed(envelope.Type, "userId")
		}

	case TypeLeaveVoice:
		if present(envelope.Payload) {
			if err := decodePayload(envelope.Type, envelope.Payload, &in.Leave); err != nil {
				return Inbound{}, err
			}
		}

	case TypeMuteStatus:
		var p MutePayload
		if err := decodePayload(envelope.Type, envelope.Payload, &p); err != nil {
			return Inbound{}, err
		}
		if p.IsMuted == nil {
			return Inbound{}, malformed(envelope.Type, "isMuted")
		}
		in.Muted = *p.IsMuted

	case TypeChatMessage:
		var p ChatPayload
		if err := decodePayload(envelope.Type, envelope.Payload, &p); err != nil {
			return Inbound{}, err
		}
		if p.UserID == "" {
			return Inbound{}, malformed(envelope.Type, "userId")
		}
		if strings.TrimSpace(p.Message) == "" {
			return Inbound{}, malformed(envelope.Type, "message")
		}
		if len(p.Message) > MaxContentBytes {
			return Inbound{}, errs.NewError(errs.ErrMessageContentTooLong)
		}
		in.Verbatim = envelope.Payload

	case TypeTypingStart, TypeTypingStop:
		var p TypingPayload
		if err := decodePayload(envelope.Type, envelope.Payload, &p); err != nil {
			return Inbound{}, err
		}
		if p.UserID == "" {
			return Inbound{}, malformed(envelope.Type, "userId")
		}
		in.Verbatim = envelope.Payload

	case TypeOffer, TypeAnswer, TypeICECandidate:
		var p DirectedPayload
		if err := decodePayload(envelope.Type, envelope.Payload, &p); err != nil {
			return Inbound{}, err
		}
		if p.To == "" {
			return Inbound{}, malformed(envelope.Type, "to")
		}
		blob, legacy := p.blob(envelope.Type)
		if !present(blob) {
			return Inbound{}, malformed(envelope.Type, "payload")
		}
		in.To = p.To
		in.From = p.From
		in.Blob = blob
		in.Legacy = legacy

	default:
		return Inbound{}, errs.NewError(errs.ErrUnsupportedEvent, string(envelope.Type))
	}

	return in, nil
}

func decodePayload(msgType MessageType, raw json.RawMessage, dst any) *errs.CustomError {
	if !present(raw) {
		return malformed(msgType, "payload")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return malformed(msgType, "a valid payload object")
	}
	return nil
}

func malformed(msgType MessageType, field string) *errs.CustomError {
	return errs.NewError(errs.ErrMalformedMessage, string(msgType), field)
}

// present reports whether raw holds a JSON value other than null.
func present(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}
