package services

import (
	"anonchat/domain"
	"anonchat/domain/event"
	"anonchat/errors"
	"anonchat/mocks"
	"anonchat/observability"
	"context"
	stderrors "errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestService(t *testing.T, maxTextLength int) (*ChatService, *mocks.MockMessageStore, *mocks.MockBroker, *observability.Metrics) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockMessageStore(ctrl)
	broker := mocks.NewMockBroker(ctrl)
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	return NewChatService(log, store, broker, metrics, maxTextLength), store, broker, metrics
}

func TestChatService_SubmitMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("should persist then publish new_message", func(t *testing.T) {
		req := require.New(t)
		svc, store, broker, metrics := newTestService(t, 0)

		gomock.InOrder(
			store.EXPECT().Insert(gomock.Any(), "anon42", "hi").Return(domain.ServerID(7), nil).Times(1),
			broker.EXPECT().
				Publish(gomock.Any(), event.NewMessage{ID: 7, Sender: "anon42", Text: "hi"}).
				Return(nil).
				Times(1),
		)

		id, err := svc.SubmitMessage(ctx, domain.SubmitMessageCommand{Sender: "anon42", Text: "hi"})

		req.NoError(err)
		req.Equal(domain.ServerID(7), id)
		req.Equal(1.0, testutil.ToFloat64(metrics.Submitted))
		req.Equal(1.0, testutil.ToFloat64(metrics.Published.WithLabelValues("new_message")))
	})

	t.Run("should publish nothing when the insert fails", func(t *testing.T) {
		req := require.New(t)
		svc, store, broker, metrics := newTestService(t, 0)

		store.EXPECT().Insert(gomock.Any(), "anon42", "hi").
			Return(domain.ServerID(0), stderrors.New("disk full")).
			Times(1)
		// Broker should NEVER be called
		broker.EXPECT().Publish(gomock.Any(), gomock.Any()).Times(0)

		id, err := svc.SubmitMessage(ctx, domain.SubmitMessageCommand{Sender: "anon42", Text: "hi"})

		req.Zero(id)
		req.ErrorIs(err, errors.ErrInsertFailed)
		req.Equal(1.0, testutil.ToFloat64(metrics.StorageFaults))
	})

	t.Run("should return the identity even when publication fails", func(t *testing.T) {
		req := require.New(t)
		svc, store, broker, metrics := newTestService(t, 0)

		store.EXPECT().Insert(gomock.Any(), gomock.Any(), gomock.Any()).Return(domain.ServerID(3), nil)
		broker.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(stderrors.New("nats down"))

		id, err := svc.SubmitMessage(ctx, domain.SubmitMessageCommand{Sender: "anon42", Text: "hi"})

		req.NoError(err)
		req.Equal(domain.ServerID(3), id)
		req.Equal(1.0, testutil.ToFloat64(metrics.PublishFailures.WithLabelValues("new_message")))
	})

	t.Run("should publish even when the caller already hung up", func(t *testing.T) {
		req := require.New(t)
		svc, store, broker, _ := newTestService(t, 0)
		canceled, cancel := context.WithCancel(ctx)

		store.EXPECT().Insert(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, _, _ string) (domain.ServerID, error) {
				cancel()
				return 1, nil
			})
		broker.EXPECT().Publish(gomock.Any(), gomock.Any()).
			DoAndReturn(func(ctx context.Context, _ event.Event) error {
				return ctx.Err()
			})

		_, err := svc.SubmitMessage(canceled, domain.SubmitMessageCommand{Sender: "anon42", Text: "hi"})
		req.NoError(err)
	})

	t.Run("should reject invalid submissions before storage", func(t *testing.T) {
		svc, store, broker, _ := newTestService(t, 5)
		store.EXPECT().Insert(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
		broker.EXPECT().Publish(gomock.Any(), gomock.Any()).Times(0)

		for name, cmd := range map[string]domain.SubmitMessageCommand{
			"empty text":   {Sender: "anon42", Text: ""},
			"empty sender": {Sender: "", Text: "hi"},
			"too long":     {Sender: "anon42", Text: strings.Repeat("é", 6)},
			"invalid utf8": {Sender: "anon42", Text: string([]byte{0xff, 0xfe})},
		} {
			_, err := svc.SubmitMessage(ctx, cmd)
			require.ErrorIs(t, err, errors.ErrInvalidMessage, name)
		}
	})
}

func TestChatService_AcknowledgeDelivery(t *testing.T) {
	ctx := context.Background()

	t.Run("should republish every acknowledgment", func(t *testing.T) {
		req := require.New(t)
		svc, _, broker, metrics := newTestService(t, 0)

		// Given two receivers acknowledge the same message
		broker.EXPECT().Publish(gomock.Any(), event.MessageDelivered{ID: 7}).Return(nil).Times(2)

		req.NoError(svc.AcknowledgeDelivery(ctx, domain.AcknowledgeCommand{ID: 7}))
		req.NoError(svc.AcknowledgeDelivery(ctx, domain.AcknowledgeCommand{ID: 7}))

		// Then both are published
		req.Equal(2.0, testutil.ToFloat64(metrics.Acknowledged))
		req.Equal(2.0, testutil.ToFloat64(metrics.Published.WithLabelValues("message_delivered")))
	})

	t.Run("should reject a missing identity", func(t *testing.T) {
		svc, _, broker, _ := newTestService(t, 0)
		broker.EXPECT().Publish(gomock.Any(), gomock.Any()).Times(0)

		err := svc.AcknowledgeDelivery(ctx, domain.AcknowledgeCommand{ID: 0})
		require.ErrorIs(t, err, errors.ErrInvalidMessage)
	})

	t.Run("should surface a publication failure", func(t *testing.T) {
		svc, _, broker, _ := newTestService(t, 0)
		broker.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(stderrors.New("nats down"))

		err := svc.AcknowledgeDelivery(ctx, domain.AcknowledgeCommand{ID: 1})
		require.Error(t, err)
	})
}

func TestChatService_History_And_Subscriptions(t *testing.T) {
	req := require.New(t)
	svc, store, broker, metrics := newTestService(t, 0)
	ctx := context.Background()
	expected := []domain.StoredMessage{{ID: 2, Sender: "anon1", Text: "yo"}}

	store.EXPECT().History(gomock.Any(), domain.ServerID(1), 10).Return(expected, nil)
	messages, err := svc.History(ctx, domain.HistoryCommand{After: 1, Limit: 10})
	req.NoError(err)
	req.Equal(expected, messages)

	_, err = svc.History(ctx, domain.HistoryCommand{Limit: -1})
	req.ErrorIs(err, errors.ErrInvalidMessage)

	// A negative cursor never reaches the store
	_, err = svc.History(ctx, domain.HistoryCommand{After: -5})
	req.ErrorIs(err, errors.ErrInvalidMessage)

	sink := mocks.NewMockEventSink(gomock.NewController(t))
	broker.EXPECT().Subscribe("sub-1", sink).Return(nil)
	broker.EXPECT().Unsubscribe("sub-1")

	req.NoError(svc.Subscribe("sub-1", sink))
	req.Equal(1.0, testutil.ToFloat64(metrics.Subscribers))
	svc.Unsubscribe("sub-1")
	req.Equal(0.0, testutil.ToFloat64(metrics.Subscribers))
}
