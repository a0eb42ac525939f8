package repositories

import (
	"anonchat/domain"
	"anonchat/errors"
	"context"
	stderrors "errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_SQLite_Insert_And_History(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository, err := OpenSQLite(filepath.Join(t.TempDir(), "database.sqlite"), slog.Default())
	req.NoError(err)
	defer repository.Close()

	first, err := repository.Insert(ctx, "anon42", "hi")
	req.NoError(err)
	second, err := repository.Insert(ctx, "anon7", "hello")
	req.NoError(err)
	req.Equal(domain.ServerID(1), first)
	req.Equal(domain.ServerID(2), second)

	messages, err := repository.History(ctx, 0, 0)
	req.NoError(err)
	req.Equal([]domain.StoredMessage{
		{ID: 1, Sender: "anon42", Text: "hi"},
		{ID: 2, Sender: "anon7", Text: "hello"},
	}, messages)

	messages, err = repository.History(ctx, 1, 1)
	req.NoError(err)
	req.Equal([]domain.StoredMessage{{ID: 2, Sender: "anon7", Text: "hello"}}, messages)
}

func Test_SQLite_Insert_Failure(t *testing.T) {
	req := require.New(t)
	repository, err := OpenSQLite(filepath.Join(t.TempDir(), "database.sqlite"), slog.Default())
	req.NoError(err)
	req.NoError(repository.Close())

	id, err := repository.Insert(context.Background(), "anon42", "hi")

	req.Zero(id)
	req.True(stderrors.Is(err, errors.ErrInsertFailed))
}

func Test_Open_Unknown_Driver(t *testing.T) {
	_, err := Open("postgres", "", "", slog.Default())
	require.True(t, stderrors.Is(err, errors.ErrUnknownDriver))
}
