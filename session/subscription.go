package session

import (
	"anonchat/contract"
	"context"
)

// Subscription pumps broadcast events from the network into a session.
// When the stream breaks it returns the error and the supervisor reconnects;
// events published in between are missed.
type Subscription struct {
	source  contract.EventSource
	session *Session
}

func NewSubscription(source contract.EventSource, session *Session) Subscription {
	return Subscription{source: source, session: session}
}

func (w Subscription) Run(ctx context.Context) error {
	return w.source.Subscribe(ctx, w.session.Handle)
}
