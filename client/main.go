package main

import (
	"anonchat/domain"
	grpcclient "anonchat/infrastructure/grpc/client"
	"anonchat/runtime/workers"
	"anonchat/session"
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const (
	commandQuit    = "/quit"
	commandHistory = "/history"
)

func main() {
	// The main function manages the OS exit code based on run()'s return.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run wires a session to the server and reads lines from stdin until
// /quit, end of input or a termination signal.
func run() (int, error) {
	// 1. Load configuration from environment variables.
	_ = godotenv.Load()
	config, err := LoadConfig()
	if err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Setup context to handle termination signals (Ctrl+C).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Session bound to the chat server.
	senderID := config.SenderID
	if senderID == "" {
		senderID = domain.NewSenderID()
	}
	chat, err := grpcclient.Dial(log, config.ServerAddress, senderID)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to server at %s: %w", config.ServerAddress, err)
	}
	defer func() {
		log.Info("Closing connection...")
		_ = chat.Close()
	}()
	sess := session.NewSession(log, senderID, chat, config.SessionBufferSize)
	printer := NewPrinter(os.Stdout, sess.SenderID(), config.Colours, sess.Changes())

	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(sess, session.NewSubscription(chat, sess), printer)
	done := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(done)
	}()

	printer.Println(fmt.Sprintf(">>> Connected to %s as %s (%s for the last %d messages, %s to quit)",
		config.ServerAddress, sess.SenderID(), commandHistory, config.HistoryLimit, commandQuit))

	// 4. Input loop.
	err = readLines(ctx, os.Stdin, func(line string) error {
		switch line {
		case commandQuit:
			return io.EOF
		case commandHistory:
			messages, err := latestHistory(ctx, chat.History, config.HistoryLimit)
			if err != nil {
				printer.Println(fmt.Sprintf("history unavailable: %v", err))
				return nil
			}
			printer.History(messages)
			return nil
		default:
			if _, err := sess.Submit(ctx, line); err != nil {
				printer.Println(fmt.Sprintf("not sent: %v", err))
			}
			return nil
		}
	})
	stop()
	<-done
	sess.Wait()
	if err != nil && err != io.EOF {
		return exitRuntime, err
	}
	return exitOK, nil
}

// readLines calls handle for each non blank line until input ends, ctx is
// done or handle returns an error.
func readLines(ctx context.Context, in io.Reader, handle func(line string) error) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	quit := make(chan struct{})
	defer close(quit)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-quit:
				return
			}
		}
		err := scanner.Err()
		if err == nil {
			err = io.EOF
		}
		scanErr <- err
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-scanErr:
			return err
		case line := <-lines:
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if err := handle(line); err != nil {
				return err
			}
		}
	}
}

type historyFetcher func(ctx context.Context, after domain.ServerID, limit int) ([]domain.StoredMessage, error)

// latestHistory returns the last limit persisted messages.
// The store only pages forward, so pages are read until an empty one
// and a sliding window keeps the tail.
func latestHistory(ctx context.Context, fetch historyFetcher, limit int) ([]domain.StoredMessage, error) {
	if limit <= 0 {
		return fetch(ctx, 0, 0)
	}
	var (
		window []domain.StoredMessage
		after  domain.ServerID
	)
	for {
		page, err := fetch(ctx, after, limit)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			return window, nil
		}
		window = append(window, page...)
		if len(window) > limit {
			window = window[len(window)-limit:]
		}
		after = page[len(page)-1].ID
	}
}
