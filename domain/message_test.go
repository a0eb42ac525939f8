package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMessage_Outgoing_Lifecycle(t *testing.T) {
	req := require.New(t)

	// Given a message created locally
	msg := NewOutgoing(1, "anon42", "hi")
	req.Equal(StatusSending, msg.Status)
	_, ok := msg.ID()
	req.False(ok)

	// When it cannot be delivered before being sent
	req.False(msg.MarkDelivered())
	req.Equal(StatusSending, msg.Status)

	// When the server assigns an identity
	req.True(msg.MarkSent(7))
	id, ok := msg.ID()
	req.True(ok)
	req.Equal(ServerID(7), id)
	req.Equal(StatusSent, msg.Status)

	// Then the identity is never reassigned
	req.False(msg.MarkSent(8))
	id, _ = msg.ID()
	req.Equal(ServerID(7), id)

	// When a delivery arrives twice
	req.True(msg.MarkDelivered())
	req.False(msg.MarkDelivered())

	// Then the status stays delivered
	req.Equal(StatusDelivered, msg.Status)
	req.False(msg.MarkSent(9))
	req.Equal(StatusDelivered, msg.Status)
}

func TestMessage_Incoming_Is_Delivered(t *testing.T) {
	req := require.New(t)
	msg := NewIncoming(3, 12, "anon1", "hello")

	req.Equal(StatusDelivered, msg.Status)
	id, ok := msg.ID()
	req.True(ok)
	req.Equal(ServerID(12), id)
	req.False(msg.MarkDelivered())
	req.False(msg.MarkSent(1))
}

func TestMessage_Clone_Does_Not_Share_Identity(t *testing.T) {
	req := require.New(t)
	msg := NewIncoming(1, 5, "anon1", "hello")

	clone := msg.Clone()
	*clone.ServerID = 99

	id, _ := msg.ID()
	req.Equal(ServerID(5), id)
}

func TestStatus_String(t *testing.T) {
	req := require.New(t)
	req.Equal("sending", StatusSending.String())
	req.Equal("sent", StatusSent.String())
	req.Equal("delivered", StatusDelivered.String())
	req.Equal("status(9)", Status(9).String())
}

func TestNewSenderID(t *testing.T) {
	req := require.New(t)
	a, b := NewSenderID(), NewSenderID()

	req.True(strings.HasPrefix(a, "anonymous"))
	req.Len(a, len("anonymous")+8)
	req.NotEqual(a, b)
}
