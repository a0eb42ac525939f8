package main

import (
	"anonchat/domain"
	"anonchat/infrastructure/console"
	"anonchat/repositories"
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
)

// Dumps the messages persisted by the badger store, in identity order.
// Safe to run while the server holds the database.
func main() {
	dbPath := flag.String("db", "./data/badger", "Path to badger DB")
	after := flag.Int64("after", 0, "Only show messages with an ID above this one")
	limit := flag.Int("limit", 0, "Maximum number of messages, 0 for all")
	flag.Parse()

	store, err := repositories.OpenBadgerReadOnly(*dbPath, slog.Default())
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer store.Close()

	messages, err := store.History(context.Background(), domain.ServerID(*after), *limit)
	if err != nil {
		log.Fatal(err)
	}

	console.RenderHistory(os.Stdout, messages)
}
