package broker

import (
	"anonchat/contract"
	"anonchat/domain/event"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// NATS relays the broadcast channel through a NATS subject so several
// coordinator instances share it. Events received from the subject are
// fanned out to the local subscribers of this instance, including the
// events this instance published itself.
type NATS struct {
	log     *slog.Logger
	nc      *nats.Conn
	sub     *nats.Subscription
	subject string
	local   *Local
}

func NewNATS(url, subject string, log *slog.Logger, sinkTimeout time.Duration) (*NATS, error) {
	nc, err := nats.Connect(url, nats.Name("anonchat"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	b := &NATS{
		log:     log,
		nc:      nc,
		subject: subject,
		local:   NewLocal(log, sinkTimeout),
	}
	// NATS calls a subscription handler sequentially, order is preserved.
	b.sub, err = nc.Subscribe(subject, b.onMessage)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to subscribe to subject '%s': %w", subject, err)
	}
	// The server knows the interest once the flush returns.
	if err = nc.Flush(); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to subscribe to subject '%s': %w", subject, err)
	}
	log.Info("Subscribed to NATS", "url", url, "subject", subject)
	return b, nil
}

func (b *NATS) Publish(ctx context.Context, e event.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := event.Encode(e)
	if err != nil {
		return err
	}
	if err = b.nc.Publish(b.subject, data); err != nil {
		return fmt.Errorf("failed to publish to subject '%s': %w", b.subject, err)
	}
	return nil
}

func (b *NATS) Subscribe(subscriberID string, sink contract.EventSink) error {
	return b.local.Subscribe(subscriberID, sink)
}

func (b *NATS) Unsubscribe(subscriberID string) {
	b.local.Unsubscribe(subscriberID)
}

func (b *NATS) Close() error {
	if b.sub != nil {
		_ = b.sub.Unsubscribe()
	}
	b.nc.Close()
	return b.local.Close()
}

func (b *NATS) onMessage(msg *nats.Msg) {
	evt, err := event.Decode(msg.Data)
	if err != nil {
		b.log.Debug("Dropping event", "subject", msg.Subject, "error", err)
		return
	}
	_ = b.local.Publish(context.Background(), evt)
}
