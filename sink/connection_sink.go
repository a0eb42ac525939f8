package sink

import (
	"anonchat/domain/event"
	"context"
)

// ConnectionSink buffers events for one connected subscriber.
// The broker writes, the connection handler (gRPC stream, websocket) reads.
type ConnectionSink struct {
	ConnectedUserEvent chan event.Event
}

func NewConnectionSink(bufferSize int) *ConnectionSink {
	return &ConnectionSink{ConnectedUserEvent: make(chan event.Event, bufferSize)}
}

// Consume is called by the broker.
// It blocks while the buffer is full, until ctx expires.
func (s *ConnectionSink) Consume(ctx context.Context, e event.Event) error {
	select {
	case s.ConnectedUserEvent <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
