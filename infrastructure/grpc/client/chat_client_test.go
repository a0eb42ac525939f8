package client

import (
	"anonchat/domain"
	"anonchat/domain/event"
	"anonchat/errors"
	"anonchat/infrastructure/grpc/chatv1"
	"context"
	"log/slog"
	"math"
	"net"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// scriptedServer streams a fixed list of raw frames then holds the stream
// until the client leaves.
type scriptedServer struct {
	chatv1.UnimplementedChatServiceServer
	frames []string
	close  bool
}

func (s scriptedServer) SubmitMessage(_ context.Context, req *structpb.Struct) (*wrapperspb.Int64Value, error) {
	if _, text := chatv1.ParseSubmitRequest(req); text == "" {
		return nil, status.Error(codes.InvalidArgument, "text is required")
	}
	return wrapperspb.Int64(7), nil
}

func (s scriptedServer) History(_ context.Context, req *structpb.Struct) (*structpb.ListValue, error) {
	after, limit, err := chatv1.ParseHistoryRequest(req)
	if err != nil {
		return nil, err
	}
	return chatv1.ToHistoryList([]domain.StoredMessage{
		{ID: after + 1, Sender: "anon1", Text: "next"},
		{ID: domain.ServerID(limit), Sender: "anon1", Text: "limit"},
	}), nil
}

func (s scriptedServer) Subscribe(_ *wrapperspb.StringValue, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	for _, frame := range s.frames {
		msg := &structpb.Struct{}
		if err := protojson.Unmarshal([]byte(frame), msg); err != nil {
			return err
		}
		if err := stream.Send(msg); err != nil {
			return err
		}
	}
	if s.close {
		return nil
	}
	<-stream.Context().Done()
	return nil
}

func dialScripted(t *testing.T, srv chatv1.ChatServiceServer) *ChatClient {
	lis := bufconn.Listen(1 << 16)
	s := grpc.NewServer()
	chatv1.RegisterChatServiceServer(s, srv)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	c, err := Dial(logs.GetLoggerFromLevel(slog.LevelDebug), "passthrough:///bufnet", "anon42",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestChatClient_SubmitMessage(t *testing.T) {
	req := require.New(t)
	c := dialScripted(t, scriptedServer{})

	id, err := c.SubmitMessage(context.Background(), "anon42", "hi")
	req.NoError(err)
	req.Equal(domain.ServerID(7), id)

	_, err = c.SubmitMessage(context.Background(), "anon42", "")
	req.ErrorIs(err, errors.ErrTransport)
	req.ErrorIs(err, errors.ErrInvalidMessage)
}

func TestChatClient_History_Keeps_Large_Identities(t *testing.T) {
	req := require.New(t)
	c := dialScripted(t, scriptedServer{})

	messages, err := c.History(context.Background(), math.MaxInt64-1, 3)

	req.NoError(err)
	req.Equal([]domain.StoredMessage{
		{ID: math.MaxInt64, Sender: "anon1", Text: "next"},
		{ID: 3, Sender: "anon1", Text: "limit"},
	}, messages)
}

func TestChatClient_Subscribe_DropsMalformedEvents(t *testing.T) {
	req := require.New(t)
	c := dialScripted(t, scriptedServer{frames: []string{
		`{"event":"new_message","data":{"ID":"7","sender":"anon99","text":"yo"}}`,
		`{"event":"new_message","data":{"sender":"anon99"}}`,
		`{"event":"typing","data":{}}`,
		// a numeric identity from another publisher is still understood
		`{"event":"message_delivered","data":{"ID":7}}`,
	}})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var got []event.Event
	err := c.Subscribe(ctx, func(_ context.Context, evt event.Event) error {
		got = append(got, evt)
		if len(got) == 2 {
			cancel()
		}
		return nil
	})

	// Then only the well formed events were handled and cancellation is not an error
	req.NoError(err)
	req.Equal([]event.Event{
		event.NewMessage{ID: 7, Sender: "anon99", Text: "yo"},
		event.MessageDelivered{ID: 7},
	}, got)
}

func TestChatClient_Subscribe_ServerClosesStream(t *testing.T) {
	req := require.New(t)
	c := dialScripted(t, scriptedServer{close: true})

	err := c.Subscribe(context.Background(), func(context.Context, event.Event) error { return nil })

	req.ErrorIs(err, errors.ErrTransport)
}
