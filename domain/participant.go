package domain

import (
	"strings"

	"github.com/google/uuid"
)

const anonymousPrefix = "anonymous"

// NewSenderID returns an ephemeral identity for an anonymous participant.
// It is not registered anywhere and carries no durability guarantee.
func NewSenderID() string {
	return anonymousPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// StoredMessage is a message as persisted by the message store.
type StoredMessage struct {
	ID     ServerID
	Sender string
	Text   string
}
