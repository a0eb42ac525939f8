package main

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config defines the client-side environment variables.
type Config struct {
	ServerAddress string `envconfig:"CHAT_SERVER_ADDR" default:"localhost:8080"`
	// CHAT_SENDER_ID pins the participant identity, a random anonymous one otherwise
	SenderID          string        `envconfig:"CHAT_SENDER_ID"`
	SessionBufferSize int           `envconfig:"SESSION_BUFFER_SIZE" default:"64"`
	HistoryLimit      int           `envconfig:"HISTORY_LIMIT" default:"20"`
	RestartInterval   time.Duration `envconfig:"RESTART_INTERVAL" default:"1s"`
	LogLevel          string        `envconfig:"LOG_LEVEL" default:"WARN"`
	// COLOURS enables colorized statuses
	Colours bool `envconfig:"COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
