// Package event defines the events broadcast on the shared chat channel.
// The set is closed: a receiver dispatches with a type switch on Event.
package event

import (
	"anonchat/domain"
	"anonchat/errors"
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

type Type string

const (
	NewMessageType       Type = "new_message"
	MessageDeliveredType Type = "message_delivered"
)

type Event interface {
	Type() Type
	isEvent()
}

// NewMessage is published once a message has been persisted.
type NewMessage struct {
	ID     domain.ServerID
	Sender string
	Text   string
}

func (NewMessage) Type() Type { return NewMessageType }
func (NewMessage) isEvent()   {}

// MessageDelivered is published when a receiver acknowledged a message.
type MessageDelivered struct {
	ID domain.ServerID
}

func (MessageDelivered) Type() Type { return MessageDeliveredType }
func (MessageDelivered) isEvent()   {}

type envelope struct {
	Event Type            `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type newMessagePayload struct {
	ID     *WireID `json:"ID"`
	Sender *string `json:"sender"`
	Text   *string `json:"text"`
}

type deliveredPayload struct {
	ID *WireID `json:"ID"`
}

// WireID is a server identity as found on the wire.
// Publishers have sent it both as a JSON number and as a decimal string.
type WireID domain.ServerID

func (w WireID) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(int64(w), 10)), nil
}

func (w *WireID) UnmarshalJSON(b []byte) error {
	raw := bytes.TrimSpace(b)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		raw = []byte(s)
	}
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid ID %q: %w", string(b), err)
	}
	*w = WireID(n)
	return nil
}

// Encode serializes an event in its envelope.
func Encode(e Event) ([]byte, error) {
	var data any
	switch evt := e.(type) {
	case NewMessage:
		data = newMessagePayload{
			ID:     toWire(evt.ID),
			Sender: &evt.Sender,
			Text:   &evt.Text,
		}
	case MessageDelivered:
		data = deliveredPayload{ID: toWire(evt.ID)}
	default:
		return nil, fmt.Errorf("%w: %T", errors.ErrUnknownEvent, e)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Event: e.Type(), Data: raw})
}

// Decode parses an envelope.
// Every failure wraps errors.ErrMalformedEvent so receivers can drop it.
func Decode(b []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrMalformedEvent, err)
	}
	return DecodePayload(env.Event, env.Data)
}

// DecodePayload parses the data part of an event whose type is carried
// out of band (a NATS header, a pusher-style event name).
func DecodePayload(t Type, data []byte) (Event, error) {
	switch t {
	case NewMessageType:
		var p newMessagePayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("%w: %w", errors.ErrMalformedEvent, err)
		}
		if p.ID == nil || p.Sender == nil || p.Text == nil || *p.Sender == "" {
			return nil, fmt.Errorf("%w: %s is missing fields", errors.ErrMalformedEvent, t)
		}
		return NewMessage{ID: domain.ServerID(*p.ID), Sender: *p.Sender, Text: *p.Text}, nil
	case MessageDeliveredType:
		var p deliveredPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("%w: %w", errors.ErrMalformedEvent, err)
		}
		if p.ID == nil {
			return nil, fmt.Errorf("%w: %s is missing ID", errors.ErrMalformedEvent, t)
		}
		return MessageDelivered{ID: domain.ServerID(*p.ID)}, nil
	default:
		return nil, fmt.Errorf("%w: %w %q", errors.ErrMalformedEvent, errors.ErrUnknownEvent, t)
	}
}

func toWire(id domain.ServerID) *WireID {
	w := WireID(id)
	return &w
}
