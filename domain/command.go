package domain

// SubmitMessageCommand is the intent of a participant to post a message.
type SubmitMessageCommand struct {
	Sender string `validate:"required,max=128"`
	Text   string `validate:"required"`
}

// AcknowledgeCommand reports that a receiver processed a new message.
type AcknowledgeCommand struct {
	ID ServerID `validate:"gt=0"`
}

// HistoryCommand asks for persisted messages after a given identity.
type HistoryCommand struct {
	After ServerID `validate:"gte=0"`
	Limit int `validate:"gte=0"`
}
