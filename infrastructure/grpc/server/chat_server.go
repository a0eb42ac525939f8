package server

import (
	"anonchat/contract"
	"anonchat/domain"
	"anonchat/errors"
	"anonchat/infrastructure/grpc/chatv1"
	"anonchat/sink"
	"context"
	"log/slog"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type ChatServer struct {
	chatv1.UnimplementedChatServiceServer
	coordinator          contract.Coordinator
	connectionBufferSize int
	historyLimit         int
	log                  *slog.Logger
}

func NewChatServer(log *slog.Logger, coordinator contract.Coordinator,
	connectionBufferSize, historyLimit int) *ChatServer {
	return &ChatServer{
		coordinator:          coordinator,
		connectionBufferSize: connectionBufferSize,
		historyLimit:         historyLimit,
		log:                  log,
	}
}

// SubmitMessage persists the message and returns its identity.
// The sender also receives its own new_message on the Subscribe stream.
func (s *ChatServer) SubmitMessage(ctx context.Context, req *structpb.Struct) (*wrapperspb.Int64Value, error) {
	sender, text := chatv1.ParseSubmitRequest(req)
	id, err := s.coordinator.SubmitMessage(ctx, domain.SubmitMessageCommand{
		Sender: sender,
		Text:   text,
	})
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return wrapperspb.Int64(int64(id)), nil
}

func (s *ChatServer) AcknowledgeDelivery(ctx context.Context, req *wrapperspb.Int64Value) (*emptypb.Empty, error) {
	err := s.coordinator.AcknowledgeDelivery(ctx, domain.AcknowledgeCommand{ID: domain.ServerID(req.GetValue())})
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *ChatServer) History(ctx context.Context, req *structpb.Struct) (*structpb.ListValue, error) {
	after, limit, err := chatv1.ParseHistoryRequest(req)
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	if limit <= 0 || (s.historyLimit > 0 && limit > s.historyLimit) {
		limit = s.historyLimit
	}
	messages, err := s.coordinator.History(ctx, domain.HistoryCommand{
		After: after,
		Limit: limit,
	})
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return chatv1.ToHistoryList(messages), nil
}

// Subscribe establishes a long-lived stream for real-time delivery.
// It registers a dedicated sink on the broadcast channel and blocks until the
// client disconnects or a network error occurs. Events published while the
// client is away are not replayed.
func (s *ChatServer) Subscribe(req *wrapperspb.StringValue, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	connection := sink.NewConnectionSink(s.connectionBufferSize)
	subscriberID := uuid.NewString()
	if err := s.coordinator.Subscribe(subscriberID, connection); err != nil {
		return errors.MapToGRPCError(err)
	}
	defer s.coordinator.Unsubscribe(subscriberID)
	s.log.Info("Client subscribed", "subscriber", subscriberID, "sender", req.GetValue())

	for {
		select {
		case <-stream.Context().Done():
			s.log.Info("Client unsubscribed", "subscriber", subscriberID, "sender", req.GetValue())
			return nil
		case evt := <-connection.ConnectedUserEvent:
			msg, err := chatv1.ToEventStruct(evt)
			if err != nil {
				s.log.Error("Event not encodable", "event", evt.Type(), "error", err)
				continue
			}
			if err = stream.Send(msg); err != nil {
				s.log.Error("failed to push event to stream",
					"subscriber", subscriberID,
					"error", err)
				return err
			}
		}
	}
}
