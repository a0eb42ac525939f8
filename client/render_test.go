package main

import (
	"anonchat/domain"
	"anonchat/errors"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func TestFormatMessage(t *testing.T) {
	req := require.New(t)

	sending := domain.NewOutgoing(0, "anon42", "hi")
	req.Equal("#0 [sending] me: hi", formatMessage(sending, "anon42", false))

	sent := sending.Clone()
	sent.MarkSent(7)
	req.Equal("#0 [sent] me: hi (7)", formatMessage(sent, "anon42", false))

	incoming := domain.NewIncoming(1, 8, "anon99", "yo")
	req.Equal("#1 [delivered] anon99: yo (8)", formatMessage(incoming, "anon42", false))

	// Colours only wrap the status
	coloured := formatMessage(incoming, "anon42", true)
	req.Contains(coloured, "delivered")
	req.True(strings.HasSuffix(coloured, "anon99: yo (8)"))
}

func TestReadLines(t *testing.T) {
	t.Run("should skip blank lines and stop at end of input", func(t *testing.T) {
		req := require.New(t)
		var got []string

		err := readLines(context.Background(), strings.NewReader("hi\n\n  \nyo\n"), func(line string) error {
			got = append(got, line)
			return nil
		})

		req.ErrorIs(err, io.EOF)
		req.Equal([]string{"hi", "yo"}, got)
	})

	t.Run("should stop when the handler asks to", func(t *testing.T) {
		req := require.New(t)
		var got []string

		err := readLines(context.Background(), strings.NewReader("hi\n/quit\nyo\n"), func(line string) error {
			if line == commandQuit {
				return io.EOF
			}
			got = append(got, line)
			return nil
		})

		req.ErrorIs(err, io.EOF)
		req.Equal([]string{"hi"}, got)
	})

	t.Run("should return when the context is done", func(t *testing.T) {
		req := require.New(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		blocked, _ := io.Pipe()

		err := readLines(ctx, blocked, func(string) error { return nil })

		req.NoError(err)
	})
}

func TestLatestHistory(t *testing.T) {
	// Given a store of seven messages serving pages of at most three
	var stored []domain.StoredMessage
	for id := 1; id <= 7; id++ {
		stored = append(stored, domain.StoredMessage{ID: domain.ServerID(id), Sender: "anon1", Text: "m"})
	}
	calls := 0
	fetch := func(_ context.Context, after domain.ServerID, limit int) ([]domain.StoredMessage, error) {
		calls++
		var page []domain.StoredMessage
		for _, msg := range stored {
			if msg.ID > after && (limit <= 0 || len(page) < min(limit, 3)) {
				page = append(page, msg)
			}
		}
		return page, nil
	}

	t.Run("should keep the most recent messages", func(t *testing.T) {
		req := require.New(t)

		messages, err := latestHistory(context.Background(), fetch, 4)

		req.NoError(err)
		req.Equal([]domain.ServerID{4, 5, 6, 7}, lo.Map(messages, func(m domain.StoredMessage, _ int) domain.ServerID { return m.ID }))
	})

	t.Run("should return everything when the log is short", func(t *testing.T) {
		req := require.New(t)

		messages, err := latestHistory(context.Background(), fetch, 20)

		req.NoError(err)
		req.Len(messages, 7)
		req.Equal(domain.ServerID(1), messages[0].ID)
	})

	t.Run("should read a single page without a limit", func(t *testing.T) {
		req := require.New(t)
		calls = 0

		messages, err := latestHistory(context.Background(), fetch, 0)

		req.NoError(err)
		req.Len(messages, 7)
		req.Equal(1, calls)
	})

	t.Run("should surface a transport failure", func(t *testing.T) {
		failing := func(context.Context, domain.ServerID, int) ([]domain.StoredMessage, error) {
			return nil, errors.ErrTransport
		}

		_, err := latestHistory(context.Background(), failing, 5)

		require.ErrorIs(t, err, errors.ErrTransport)
	})
}
