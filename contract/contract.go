//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"anonchat/domain"
	"anonchat/domain/event"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// MessageStore is the durable append-only record of messages.
// Insert returns an identity only once the write has committed.
type MessageStore interface {
	Insert(ctx context.Context, senderID, text string) (domain.ServerID, error)
	History(ctx context.Context, after domain.ServerID, limit int) ([]domain.StoredMessage, error)
	Close() error
}

// EventSink receives events pushed by a broker.
type EventSink interface {
	Consume(ctx context.Context, e event.Event) error
}

// Publisher puts an event on the shared broadcast channel.
type Publisher interface {
	Publish(ctx context.Context, e event.Event) error
}

// Broker is the shared broadcast channel. Every subscriber receives every event.
type Broker interface {
	Publisher
	Subscribe(subscriberID string, sink EventSink) error
	Unsubscribe(subscriberID string)
	Close() error
}

// Coordinator is the server side of the delivery protocol.
type Coordinator interface {
	SubmitMessage(ctx context.Context, cmd domain.SubmitMessageCommand) (domain.ServerID, error)
	AcknowledgeDelivery(ctx context.Context, cmd domain.AcknowledgeCommand) error
	History(ctx context.Context, cmd domain.HistoryCommand) ([]domain.StoredMessage, error)
	Subscribe(subscriberID string, sink EventSink) error
	Unsubscribe(subscriberID string)
}

// Transport is what a client session needs from the network.
type Transport interface {
	SubmitMessage(ctx context.Context, senderID, text string) (domain.ServerID, error)
	AcknowledgeDelivery(ctx context.Context, id domain.ServerID) error
}

// EventSource feeds broadcast events to a client until ctx is done.
// Malformed events are dropped by the source, handle only sees decoded ones.
type EventSource interface {
	Subscribe(ctx context.Context, handle func(context.Context, event.Event) error) error
}
