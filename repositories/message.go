package repositories

import (
	"anonchat/domain"
	"anonchat/errors"
	"context"
	"encoding/binary"
	stderrors "errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	sequenceKey   = "seq:messages"
	messagePrefix = "msg:"
)

// MessageRepository is the badger implementation of the message store.
type MessageRepository struct {
	mu  sync.Mutex
	db  *badger.DB
	log *slog.Logger
}

// OpenBadger opens (or creates) a badger database dedicated to messages.
// Writes are synced so an identity is never returned for an uncommitted insert.
func OpenBadger(path string, log *slog.Logger) (*MessageRepository, error) {
	db, err := badger.Open(badger.DefaultOptions(path).
		WithSyncWrites(true).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return nil, fmt.Errorf("database opening failed: %w", err)
	}
	return NewMessageRepository(db, log), nil
}

// OpenBadgerReadOnly opens the database next to a running server, for inspection.
func OpenBadgerReadOnly(path string, log *slog.Logger) (*MessageRepository, error) {
	db, err := badger.Open(badger.DefaultOptions(path).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("database opening failed: %w", err)
	}
	return NewMessageRepository(db, log), nil
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) *MessageRepository {
	return &MessageRepository{db: db, log: log}
}

type diskMessage struct {
	ID      domain.ServerID
	Sender  string
	Message string
	At      time.Time
}

// Values are protobuf structs: {id, sender, message, at}.
// The identity is kept as a decimal string, a protobuf number is a double.
func marshalDiskMessage(dm diskMessage) ([]byte, error) {
	return proto.Marshal(&structpb.Struct{Fields: map[string]*structpb.Value{
		"id":      structpb.NewStringValue(strconv.FormatInt(int64(dm.ID), 10)),
		"sender":  structpb.NewStringValue(dm.Sender),
		"message": structpb.NewStringValue(dm.Message),
		"at":      structpb.NewStringValue(dm.At.Format(time.RFC3339Nano)),
	}})
}

func unmarshalDiskMessage(value []byte) (diskMessage, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(value, &s); err != nil {
		return diskMessage{}, err
	}
	fields := s.GetFields()
	id, err := strconv.ParseInt(fields["id"].GetStringValue(), 10, 64)
	if err != nil {
		return diskMessage{}, fmt.Errorf("corrupted message identity: %w", err)
	}
	at, err := time.Parse(time.RFC3339Nano, fields["at"].GetStringValue())
	if err != nil {
		return diskMessage{}, fmt.Errorf("corrupted message date: %w", err)
	}
	return diskMessage{
		ID:      domain.ServerID(id),
		Sender:  fields["sender"].GetStringValue(),
		Message: fields["message"].GetStringValue(),
		At:      at,
	}, nil
}

// Insert persists a message and returns its identity.
// The counter and the message are written by the same transaction:
// when the commit fails no identity has been consumed.
// The key is formatted as "msg:{id_padded}" with 20-digit zero padding
// so a prefix scan returns messages in identity order.
func (m *MessageRepository) Insert(ctx context.Context, senderID, text string) (domain.ServerID, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %w", errors.ErrInsertFailed, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var id domain.ServerID
	err := m.db.Update(func(txn *badger.Txn) error {
		last, err := readSequence(txn)
		if err != nil {
			return err
		}
		next := last + 1
		bytes, err := marshalDiskMessage(diskMessage{
			ID:      next,
			Sender:  senderID,
			Message: text,
			At:      time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		if err = txn.Set(messageKey(next), bytes); err != nil {
			return err
		}
		if err = txn.Set([]byte(sequenceKey), encodeSequence(next)); err != nil {
			return err
		}
		id = next
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", errors.ErrInsertFailed, err)
	}
	m.log.Debug("Message stored", "id", id, "sender", senderID)
	return id, nil
}

// History returns messages whose identity is greater than after, in order.
// A limit of zero or less means no limit.
func (m *MessageRepository) History(ctx context.Context, after domain.ServerID, limit int) ([]domain.StoredMessage, error) {
	if after == math.MaxInt64 {
		return nil, nil
	}
	// Negative keys would sort before the zero padded ones.
	after = max(after, 0)
	var diskMessages []diskMessage
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(messagePrefix)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(messageKey(after + 1)); it.ValidForPrefix(prefix); it.Next() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if limit > 0 && len(diskMessages) == limit {
				m.log.Debug(fmt.Sprintf("Maximum of %d message reached", limit))
				break
			}
			err := it.Item().Value(func(value []byte) error {
				dm, err := unmarshalDiskMessage(value)
				if err != nil {
					return err
				}
				diskMessages = append(diskMessages, dm)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lo.Map(diskMessages, func(item diskMessage, _ int) domain.StoredMessage {
		return domain.StoredMessage{
			ID:     item.ID,
			Sender: item.Sender,
			Text:   item.Message,
		}
	}), nil
}

func (m *MessageRepository) Close() error {
	m.log.Info("Closing BadgerDB...")
	return m.db.Close()
}

func readSequence(txn *badger.Txn) (domain.ServerID, error) {
	item, err := txn.Get([]byte(sequenceKey))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	value, err := item.ValueCopy(nil)
	if err != nil {
		return 0, err
	}
	if len(value) != 8 {
		return 0, fmt.Errorf("corrupted sequence of %d bytes", len(value))
	}
	return domain.ServerID(binary.BigEndian.Uint64(value)), nil
}

func encodeSequence(id domain.ServerID) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(id))
	return b
}

func messageKey(id domain.ServerID) []byte {
	return []byte(fmt.Sprintf("%s%020d", messagePrefix, id))
}
