// Package domain contains core concepts of the chat system.
// This file defines the Message as seen by a client session and its
// delivery status lifecycle.
package domain

import (
	"fmt"
	"strconv"
)

// ServerID is the identity assigned by the message store on insert.
// It is the only key used to correlate delivery acknowledgments.
type ServerID int64

func (id ServerID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// LocalKey is the position assigned by a session to a message it knows about.
// Keys are strictly increasing per session and never reused.
type LocalKey uint64

// Status is the delivery status of a message.
// Values are ordered: a message can only move forward.
type Status uint8

const (
	StatusSending Status = iota
	StatusSent
	StatusDelivered
)

func (s Status) String() string {
	switch s {
	case StatusSending:
		return "sending"
	case StatusSent:
		return "sent"
	case StatusDelivered:
		return "delivered"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Message is a chat message in the local sequence of a session.
type Message struct {
	LocalKey LocalKey
	ServerID *ServerID // nil while sending
	SenderID string
	Text     string
	Status   Status
}

// NewOutgoing creates a message authored by the local session.
func NewOutgoing(key LocalKey, senderID, text string) Message {
	return Message{
		LocalKey: key,
		SenderID: senderID,
		Text:     text,
		Status:   StatusSending,
	}
}

// NewIncoming creates a message received from a peer.
// Receipt confirms transit so it starts delivered.
func NewIncoming(key LocalKey, id ServerID, senderID, text string) Message {
	return Message{
		LocalKey: key,
		ServerID: &id,
		SenderID: senderID,
		Text:     text,
		Status:   StatusDelivered,
	}
}

// MarkSent assigns the server identity and moves sending -> sent.
// It reports false and leaves the message untouched when the message is not
// sending or already carries an identity.
func (m *Message) MarkSent(id ServerID) bool {
	if m.Status != StatusSending || m.ServerID != nil {
		return false
	}
	m.ServerID = &id
	m.Status = StatusSent
	return true
}

// MarkDelivered moves sent -> delivered.
// Any other current status makes it a no-op.
func (m *Message) MarkDelivered() bool {
	if m.Status != StatusSent {
		return false
	}
	m.Status = StatusDelivered
	return true
}

// ID returns the server identity and whether it is assigned.
func (m Message) ID() (ServerID, bool) {
	if m.ServerID == nil {
		return 0, false
	}
	return *m.ServerID, true
}

// Clone returns a copy that shares no pointer with m.
func (m Message) Clone() Message {
	if m.ServerID != nil {
		id := *m.ServerID
		m.ServerID = &id
	}
	return m
}
