package broker

import (
	"anonchat/domain/event"
	"anonchat/sink"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	natsserver "github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
)

func newDetachedNATS() *NATS {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	return &NATS{log: log, subject: "chatroom", local: NewLocal(log, time.Second)}
}

func TestNATS_OnMessage_FansOutLocally(t *testing.T) {
	req := require.New(t)
	b := newDetachedNATS()
	connection := sink.NewConnectionSink(4)
	req.NoError(b.Subscribe("s1", connection))

	data, err := event.Encode(event.MessageDelivered{ID: 7})
	req.NoError(err)

	// When a peer instance relays an acknowledgment
	b.onMessage(&nats.Msg{Subject: "chatroom", Data: data})

	// Then the local subscriber receives it
	req.Equal(event.MessageDelivered{ID: 7}, <-connection.ConnectedUserEvent)
}

func TestNATS_OnMessage_DropsMalformedPayload(t *testing.T) {
	req := require.New(t)
	b := newDetachedNATS()
	connection := sink.NewConnectionSink(4)
	req.NoError(b.Subscribe("s1", connection))

	// Given payloads a foreign publisher could put on the subject
	b.onMessage(&nats.Msg{Subject: "chatroom", Data: []byte(`not json`)})
	b.onMessage(&nats.Msg{Subject: "chatroom", Data: []byte(`{"event":"message_delivered","data":{}}`)})
	// A string identity is still accepted
	b.onMessage(&nats.Msg{Subject: "chatroom", Data: []byte(`{"event":"message_delivered","data":{"ID":"9"}}`)})

	req.Len(connection.ConnectedUserEvent, 1)
	req.Equal(event.MessageDelivered{ID: 9}, <-connection.ConnectedUserEvent)

	b.Unsubscribe("s1")
	req.Zero(b.local.Count())
}

func runNATSServer(t *testing.T) string {
	opts := natsserver.DefaultTestOptions
	opts.Port = -1
	srv := natsserver.RunServer(&opts)
	t.Cleanup(srv.Shutdown)
	return srv.ClientURL()
}

func TestNATS_Publish_Reaches_Every_Instance(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	url := runNATSServer(t)

	// Given two coordinator instances sharing the subject
	origin, err := NewNATS(url, "chatroom", log, time.Second)
	req.NoError(err)
	defer origin.Close()
	peer, err := NewNATS(url, "chatroom", log, time.Second)
	req.NoError(err)
	defer peer.Close()

	originConnection := sink.NewConnectionSink(4)
	peerConnection := sink.NewConnectionSink(4)
	req.NoError(origin.Subscribe("s1", originConnection))
	req.NoError(peer.Subscribe("s2", peerConnection))

	// When the origin publishes a message then its acknowledgment
	req.NoError(origin.Publish(context.Background(), event.NewMessage{ID: 7, Sender: "anon42", Text: "hi"}))
	req.NoError(origin.Publish(context.Background(), event.MessageDelivered{ID: 7}))

	// Then both instances deliver them in order, the origin included
	for _, connection := range []*sink.ConnectionSink{originConnection, peerConnection} {
		for _, expected := range []event.Event{
			event.NewMessage{ID: 7, Sender: "anon42", Text: "hi"},
			event.MessageDelivered{ID: 7},
		} {
			select {
			case got := <-connection.ConnectedUserEvent:
				req.Equal(expected, got)
			case <-time.After(2 * time.Second):
				req.FailNow("event not relayed", expected)
			}
		}
	}
}

func TestNATS_Publish_With_Canceled_Context(t *testing.T) {
	req := require.New(t)
	b, err := NewNATS(runNATSServer(t), "chatroom", logs.GetLoggerFromLevel(slog.LevelDebug), time.Second)
	req.NoError(err)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req.ErrorIs(b.Publish(ctx, event.MessageDelivered{ID: 7}), context.Canceled)
}

func TestNewNATS_Unreachable_Server(t *testing.T) {
	// Given a server that went away
	opts := natsserver.DefaultTestOptions
	opts.Port = -1
	srv := natsserver.RunServer(&opts)
	url := srv.ClientURL()
	srv.Shutdown()

	_, err := NewNATS(url, "chatroom", logs.GetLoggerFromLevel(slog.LevelDebug), time.Second)

	require.Error(t, err)
}
