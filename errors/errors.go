package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	ErrWorkerPanic    = fmt.Errorf("worker panic")
	ErrInsertFailed   = fmt.Errorf("insert failed")
	ErrTransport      = fmt.Errorf("transport failure")
	ErrMalformedEvent = fmt.Errorf("malformed event")
	ErrUnknownEvent   = fmt.Errorf("unknown event type")
	ErrInvalidMessage = fmt.Errorf("invalid message")
	ErrSessionStopped = fmt.Errorf("session stopped")
	ErrUnknownDriver  = fmt.Errorf("unknown driver")
)

// MapToGRPCError translates domain errors into gRPC status errors.
func MapToGRPCError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case stderrors.Is(err, ErrInvalidMessage):
		return status.Error(codes.InvalidArgument, err.Error())
	case stderrors.Is(err, ErrInsertFailed):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// FromGRPCError is the client side counterpart of MapToGRPCError.
// Every failure of a call is a transport failure from the caller's view,
// the original cause is kept for errors.Is.
func FromGRPCError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	switch st.Code() {
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %w: %s", ErrTransport, ErrInvalidMessage, st.Message())
	case codes.Unavailable:
		return fmt.Errorf("%w: %w: %s", ErrTransport, ErrInsertFailed, st.Message())
	default:
		return fmt.Errorf("%w: %s", ErrTransport, st.Message())
	}
}

// MapToHTTPStatus is the HTTP gateway counterpart of MapToGRPCError.
func MapToHTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case stderrors.Is(err, ErrInvalidMessage):
		return http.StatusBadRequest
	case stderrors.Is(err, ErrInsertFailed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
