// Package broker implements the shared broadcast channel.
// Every subscriber receives every event published on the channel.
package broker

import (
	"anonchat/contract"
	"anonchat/domain/event"
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Local is an in-process broadcast channel.
//
// It provides best-effort fan-out: a subscriber that does not accept an event
// within sinkTimeout misses it. There is no replay and no durability.
// Events reach each subscriber in publication order.
//
// Local is safe for concurrent use by multiple goroutines.
type Local struct {
	mu          sync.RWMutex
	publishMu   sync.Mutex
	log         *slog.Logger
	sinks       map[string]contract.EventSink // map subscriber -> Sink
	sinkTimeout time.Duration
}

func NewLocal(log *slog.Logger, sinkTimeout time.Duration) *Local {
	return &Local{
		log:         log,
		sinks:       make(map[string]contract.EventSink),
		sinkTimeout: sinkTimeout,
	}
}

// Subscribe registers a subscriber. A second call with the same id replaces the sink.
func (l *Local) Subscribe(subscriberID string, sink contract.EventSink) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sinks[subscriberID] = sink
	l.log.Debug("Subscriber joined", "subscriber", subscriberID, "subscribers", len(l.sinks))
	return nil
}

func (l *Local) Unsubscribe(subscriberID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.sinks, subscriberID)
	l.log.Debug("Subscriber left", "subscriber", subscriberID, "subscribers", len(l.sinks))
}

// Count returns the number of subscribers.
func (l *Local) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.sinks)
}

// Publish hands the event to every subscriber, one after the other.
// A slow subscriber costs at most sinkTimeout and never fails the publication.
func (l *Local) Publish(ctx context.Context, e event.Event) error {
	l.publishMu.Lock()
	defer l.publishMu.Unlock()

	for _, s := range l.snapshot() {
		sinkCtx, cancel := context.WithTimeout(ctx, l.sinkTimeout)
		if err := s.sink.Consume(sinkCtx, e); err != nil {
			l.log.Warn("Event lost for subscriber",
				"subscriber", s.id, "event", e.Type(), "error", err)
		}
		cancel()
	}
	return nil
}

func (l *Local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sinks = make(map[string]contract.EventSink)
	return nil
}

type subscriber struct {
	id   string
	sink contract.EventSink
}

func (l *Local) snapshot() []subscriber {
	l.mu.RLock()
	defer l.mu.RUnlock()
	res := make([]subscriber, 0, len(l.sinks))
	for id, s := range l.sinks {
		res = append(res, subscriber{id: id, sink: s})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].id < res[j].id })
	return res
}
