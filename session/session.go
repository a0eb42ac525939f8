// Package session tracks the delivery status of the messages seen by one
// anonymous participant.
//
// A Session is an actor: Run owns the message sequence and the ServerID index,
// every other method only enqueues a command on its inbox. Submission
// round-trips and delivery acknowledgments run in their own goroutines and
// come back through the same inbox, so status transitions are applied one at
// a time and never race.
package session

import (
	"anonchat/contract"
	"anonchat/domain"
	"anonchat/domain/event"
	"anonchat/errors"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

type command interface {
	isCommand()
}

type submitCommand struct {
	text  string
	reply chan domain.LocalKey
}

type resolvedCommand struct {
	key domain.LocalKey
	id  domain.ServerID
	err error
}

type eventCommand struct {
	evt event.Event
}

type snapshotCommand struct {
	reply chan []domain.Message
}

func (submitCommand) isCommand()   {}
func (resolvedCommand) isCommand() {}
func (eventCommand) isCommand()    {}
func (snapshotCommand) isCommand() {}

type Session struct {
	log       *slog.Logger
	senderID  string
	transport contract.Transport
	inbox     chan command
	changes   chan domain.Message
	done      chan struct{}
	stopOnce  sync.Once
	inFlight  sync.WaitGroup

	// Owned by Run.
	messages   []domain.Message
	byServerID map[domain.ServerID]domain.LocalKey
}

// NewSession creates a session for senderID. An empty senderID gets a fresh
// anonymous identity. bufferSize sizes both the inbox and the Changes stream.
func NewSession(log *slog.Logger, senderID string, transport contract.Transport, bufferSize int) *Session {
	if senderID == "" {
		senderID = domain.NewSenderID()
	}
	return &Session{
		log:        log.With("sender", senderID),
		senderID:   senderID,
		transport:  transport,
		inbox:      make(chan command, bufferSize),
		changes:    make(chan domain.Message, bufferSize),
		done:       make(chan struct{}),
		byServerID: make(map[domain.ServerID]domain.LocalKey),
	}
}

func (s *Session) SenderID() string { return s.senderID }

// Changes streams a copy of every message each time it is added or advanced.
// Notifications are dropped while the buffer is full: Snapshot stays the
// source of truth.
func (s *Session) Changes() <-chan domain.Message { return s.changes }

// Run processes the inbox until ctx is done.
// Dispatched requests keep running after that, their resolution is dropped.
func (s *Session) Run(ctx context.Context) error {
	// Resolutions are applied whatever happened to the caller who submitted.
	lifetime := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			s.stop()
			return nil
		case cmd := <-s.inbox:
			s.apply(lifetime, cmd)
		}
	}
}

// Wait blocks until every dispatched request has returned.
func (s *Session) Wait() {
	s.inFlight.Wait()
}

// Submit appends a sending message and dispatches it to the coordinator.
// It returns as soon as the message has its LocalKey.
func (s *Session) Submit(ctx context.Context, text string) (domain.LocalKey, error) {
	if strings.TrimSpace(text) == "" {
		return 0, fmt.Errorf("%w: empty text", errors.ErrInvalidMessage)
	}
	reply := make(chan domain.LocalKey, 1)
	if err := s.enqueue(ctx, submitCommand{text: text, reply: reply}); err != nil {
		return 0, err
	}
	select {
	case key := <-reply:
		return key, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-s.done:
		return 0, errors.ErrSessionStopped
	}
}

// Handle feeds a broadcast event to the session.
func (s *Session) Handle(ctx context.Context, evt event.Event) error {
	return s.enqueue(ctx, eventCommand{evt: evt})
}

// Snapshot returns a copy of the local sequence in LocalKey order.
func (s *Session) Snapshot(ctx context.Context) ([]domain.Message, error) {
	reply := make(chan []domain.Message, 1)
	if err := s.enqueue(ctx, snapshotCommand{reply: reply}); err != nil {
		return nil, err
	}
	select {
	case messages := <-reply:
		return messages, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, errors.ErrSessionStopped
	}
}

func (s *Session) enqueue(ctx context.Context, cmd command) error {
	select {
	case <-s.done:
		return errors.ErrSessionStopped
	default:
	}
	select {
	case s.inbox <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return errors.ErrSessionStopped
	}
}

func (s *Session) stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

func (s *Session) apply(ctx context.Context, cmd command) {
	switch c := cmd.(type) {
	case submitCommand:
		c.reply <- s.submit(ctx, c.text)
	case resolvedCommand:
		s.resolve(c)
	case eventCommand:
		s.handle(ctx, c.evt)
	case snapshotCommand:
		c.reply <- s.snapshot()
	}
}

func (s *Session) submit(ctx context.Context, text string) domain.LocalKey {
	key := domain.LocalKey(len(s.messages))
	s.messages = append(s.messages, domain.NewOutgoing(key, s.senderID, text))
	s.notify(key)

	s.inFlight.Add(1)
	go func() {
		defer s.inFlight.Done()
		id, err := s.transport.SubmitMessage(ctx, s.senderID, text)
		s.resolved(resolvedCommand{key: key, id: id, err: err})
	}()
	return key
}

// resolved hands a submission result back to Run. The send must not block
// forever once Run is gone.
func (s *Session) resolved(cmd resolvedCommand) {
	select {
	case s.inbox <- cmd:
	case <-s.done:
		s.log.Debug("Session stopped, resolution dropped", "local_key", cmd.key)
	}
}

func (s *Session) resolve(c resolvedCommand) {
	if c.err != nil {
		s.log.Warn("Message not sent", "local_key", c.key, "error", c.err)
		return
	}
	msg := &s.messages[c.key]
	if !msg.MarkSent(c.id) {
		s.log.Debug("Resolution ignored", "local_key", c.key, "status", msg.Status)
		return
	}
	if other, ok := s.byServerID[c.id]; ok {
		s.log.Warn("Server identity already known", "id", c.id, "local_key", other)
	}
	s.byServerID[c.id] = c.key
	s.notify(c.key)
}

func (s *Session) handle(ctx context.Context, evt event.Event) {
	switch e := evt.(type) {
	case event.NewMessage:
		s.receive(ctx, e)
	case event.MessageDelivered:
		s.delivered(e)
	default:
		s.log.Debug("Event ignored", "event", evt)
	}
}

func (s *Session) receive(ctx context.Context, e event.NewMessage) {
	if e.Sender == s.senderID {
		// Echo of our own submission, the resolution carries the identity.
		return
	}
	if _, ok := s.byServerID[e.ID]; ok {
		s.log.Debug("Duplicate message ignored", "id", e.ID)
		return
	}
	key := domain.LocalKey(len(s.messages))
	s.messages = append(s.messages, domain.NewIncoming(key, e.ID, e.Sender, e.Text))
	s.byServerID[e.ID] = key
	s.notify(key)

	s.inFlight.Add(1)
	go func() {
		defer s.inFlight.Done()
		if err := s.transport.AcknowledgeDelivery(ctx, e.ID); err != nil {
			s.log.Warn("Delivery not acknowledged", "id", e.ID, "error", err)
		}
	}()
}

func (s *Session) delivered(e event.MessageDelivered) {
	key, ok := s.byServerID[e.ID]
	if !ok {
		return
	}
	if s.messages[key].MarkDelivered() {
		s.notify(key)
	}
}

func (s *Session) snapshot() []domain.Message {
	out := make([]domain.Message, len(s.messages))
	for i, msg := range s.messages {
		out[i] = msg.Clone()
	}
	return out
}

func (s *Session) notify(key domain.LocalKey) {
	select {
	case s.changes <- s.messages[key].Clone():
	default:
		s.log.Debug("Change notification lost", "local_key", key)
	}
}
