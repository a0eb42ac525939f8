package client

import (
	"anonchat/domain"
	"anonchat/domain/event"
	"anonchat/errors"
	"anonchat/infrastructure/grpc/chatv1"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ChatClient is the network side of a client session.
type ChatClient struct {
	log      *slog.Logger
	conn     *grpc.ClientConn
	client   *chatv1.ChatServiceClient
	senderID string
}

// Dial prepares a connection to the chat server. Extra options are appended
// after the defaults, tests use them to plug a bufconn dialer.
func Dial(log *slog.Logger, address, senderID string, opts ...grpc.DialOption) (*ChatClient, error) {
	options := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, opts...)
	conn, err := grpc.NewClient(address, options...)
	if err != nil {
		return nil, err
	}
	return &ChatClient{
		log:      log,
		conn:     conn,
		client:   chatv1.NewChatServiceClient(conn),
		senderID: senderID,
	}, nil
}

func (c *ChatClient) SubmitMessage(ctx context.Context, senderID, text string) (domain.ServerID, error) {
	resp, err := c.client.SubmitMessage(ctx, chatv1.NewSubmitRequest(senderID, text))
	if err != nil {
		return 0, errors.FromGRPCError(err)
	}
	return domain.ServerID(resp.GetValue()), nil
}

func (c *ChatClient) AcknowledgeDelivery(ctx context.Context, id domain.ServerID) error {
	_, err := c.client.AcknowledgeDelivery(ctx, wrapperspb.Int64(int64(id)))
	return errors.FromGRPCError(err)
}

func (c *ChatClient) History(ctx context.Context, after domain.ServerID, limit int) ([]domain.StoredMessage, error) {
	resp, err := c.client.History(ctx, chatv1.NewHistoryRequest(after, limit))
	if err != nil {
		return nil, errors.FromGRPCError(err)
	}
	messages, err := chatv1.FromHistoryList(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrTransport, err)
	}
	return messages, nil
}

// Subscribe streams broadcast events into handle until ctx is done.
// A malformed event is logged and dropped, the stream goes on.
// It returns nil on cancellation and a transport error if the stream breaks.
func (c *ChatClient) Subscribe(ctx context.Context, handle func(context.Context, event.Event) error) error {
	stream, err := c.client.Subscribe(ctx, wrapperspb.String(c.senderID))
	if err != nil {
		return c.streamError(ctx, err)
	}
	for {
		msg, err := stream.Recv()
		if err != nil {
			return c.streamError(ctx, err)
		}
		evt, err := chatv1.FromEventStruct(msg)
		if err != nil {
			c.log.Warn("Dropping event", "error", err)
			continue
		}
		if err = handle(ctx, evt); err != nil {
			return err
		}
	}
}

func (c *ChatClient) streamError(ctx context.Context, err error) error {
	if ctx.Err() != nil || status.Code(err) == codes.Canceled {
		return nil
	}
	if stderrors.Is(err, io.EOF) {
		return fmt.Errorf("%w: event stream closed by server", errors.ErrTransport)
	}
	return errors.FromGRPCError(err)
}

func (c *ChatClient) Close() error {
	return c.conn.Close()
}
