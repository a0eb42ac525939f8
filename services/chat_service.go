package services

import (
	"anonchat/contract"
	"anonchat/domain"
	"anonchat/domain/event"
	"anonchat/errors"
	"anonchat/observability"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ChatService is the delivery coordinator.
// It keeps no state between requests: the store owns identities and the
// broker owns subscribers.
type ChatService struct {
	log           *slog.Logger
	store         contract.MessageStore
	broker        contract.Broker
	metrics       *observability.Metrics
	maxTextLength int
}

func NewChatService(log *slog.Logger, store contract.MessageStore, broker contract.Broker,
	metrics *observability.Metrics, maxTextLength int) *ChatService {
	return &ChatService{
		log:           log,
		store:         store,
		broker:        broker,
		metrics:       metrics,
		maxTextLength: maxTextLength,
	}
}

// SubmitMessage persists the message then announces it on the channel.
// Nothing is published when the insert fails. A publication failure after a
// successful insert does not fail the call: the message is durable and
// subscribers simply miss the event.
func (s *ChatService) SubmitMessage(ctx context.Context, cmd domain.SubmitMessageCommand) (domain.ServerID, error) {
	if err := s.validateSubmit(cmd); err != nil {
		return 0, err
	}
	id, err := s.store.Insert(ctx, cmd.Sender, cmd.Text)
	if err != nil {
		s.metrics.StorageFaults.Inc()
		s.log.Error("Message not stored", "sender", cmd.Sender, "error", err)
		if !stderrors.Is(err, errors.ErrInsertFailed) {
			err = fmt.Errorf("%w: %w", errors.ErrInsertFailed, err)
		}
		return 0, err
	}
	s.metrics.Submitted.Inc()
	// The caller may hang up once the row is committed, the peers must still hear about it.
	_ = s.publish(context.WithoutCancel(ctx), event.NewMessage{ID: id, Sender: cmd.Sender, Text: cmd.Text})
	return id, nil
}

// AcknowledgeDelivery republishes a receiver's acknowledgment to the channel.
// Duplicates are republished as they come.
func (s *ChatService) AcknowledgeDelivery(ctx context.Context, cmd domain.AcknowledgeCommand) error {
	if err := validate.Struct(cmd); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrInvalidMessage, err)
	}
	s.metrics.Acknowledged.Inc()
	return s.publish(ctx, event.MessageDelivered{ID: cmd.ID})
}

func (s *ChatService) History(ctx context.Context, cmd domain.HistoryCommand) ([]domain.StoredMessage, error) {
	if err := validate.Struct(cmd); err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrInvalidMessage, err)
	}
	return s.store.History(ctx, cmd.After, cmd.Limit)
}

func (s *ChatService) Subscribe(subscriberID string, sink contract.EventSink) error {
	if err := s.broker.Subscribe(subscriberID, sink); err != nil {
		return err
	}
	s.metrics.Subscribers.Inc()
	return nil
}

func (s *ChatService) Unsubscribe(subscriberID string) {
	s.broker.Unsubscribe(subscriberID)
	s.metrics.Subscribers.Dec()
}

func (s *ChatService) publish(ctx context.Context, e event.Event) error {
	label := string(e.Type())
	if err := s.broker.Publish(ctx, e); err != nil {
		s.metrics.PublishFailures.WithLabelValues(label).Inc()
		s.log.Error("Event not published", "event", label, "error", err)
		return err
	}
	s.metrics.Published.WithLabelValues(label).Inc()
	return nil
}

func (s *ChatService) validateSubmit(cmd domain.SubmitMessageCommand) error {
	if err := validate.Struct(cmd); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrInvalidMessage, err)
	}
	if !utf8.ValidString(cmd.Text) {
		return fmt.Errorf("%w: text is not valid UTF-8", errors.ErrInvalidMessage)
	}
	if s.maxTextLength > 0 && utf8.RuneCountInString(cmd.Text) > s.maxTextLength {
		return fmt.Errorf("%w: text longer than %d characters", errors.ErrInvalidMessage, s.maxTextLength)
	}
	return nil
}
