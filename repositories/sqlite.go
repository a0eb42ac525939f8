package repositories

import (
	"anonchat/domain"
	"anonchat/errors"
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	sender TEXT NOT NULL,
	message TEXT NOT NULL
)`

// SQLiteMessageRepository stores messages in a single append-only table.
// Identities come from AUTOINCREMENT so they are never reused,
// even after the last row has been removed by hand.
type SQLiteMessageRepository struct {
	db  *sql.DB
	log *slog.Logger
}

func OpenSQLite(path string, log *slog.Logger) (*SQLiteMessageRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("database opening failed: %w", err)
	}
	// One writer: sqlite serializes anyway and this avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err = db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database initialisation failed: %w", err)
	}
	return &SQLiteMessageRepository{db: db, log: log}, nil
}

func (s *SQLiteMessageRepository) Insert(ctx context.Context, senderID, text string) (domain.ServerID, error) {
	res, err := s.db.ExecContext(ctx, "INSERT INTO messages (sender, message) VALUES (?, ?)", senderID, text)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", errors.ErrInsertFailed, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", errors.ErrInsertFailed, err)
	}
	s.log.Debug("Message stored", "id", id, "sender", senderID)
	return domain.ServerID(id), nil
}

// History returns messages whose identity is greater than after, in order.
// A limit of zero or less means no limit.
func (s *SQLiteMessageRepository) History(ctx context.Context, after domain.ServerID, limit int) ([]domain.StoredMessage, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, sender, message FROM messages WHERE id > ? ORDER BY id ASC LIMIT ?",
		int64(after), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.StoredMessage
	for rows.Next() {
		var m domain.StoredMessage
		if err = rows.Scan(&m.ID, &m.Sender, &m.Text); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (s *SQLiteMessageRepository) Close() error {
	s.log.Info("Closing SQLite...")
	return s.db.Close()
}
