package main

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	StoreDriver          string        `env:"STORE_DRIVER,default=badger" validate:"oneof=badger sqlite"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,default=./data/badger" validate:"required_if=StoreDriver badger"`
	SQLiteFilepath       string        `env:"SQLITE_FILEPATH,default=./data/database.sqlite" validate:"required_if=StoreDriver sqlite"`
	BrokerDriver         string        `env:"BROKER_DRIVER,default=local" validate:"oneof=local nats"`
	NatsURL              string        `env:"NATS_URL,default=nats://127.0.0.1:4222" validate:"required_if=BrokerDriver nats"`
	Channel              string        `env:"CHANNEL,default=chatroom" validate:"required"`
	GrpcHost             string        `env:"GRPC_HOST,default=localhost"`
	GrpcPort             int           `env:"GRPC_PORT,default=8080" validate:"gt=0,lte=65535"`
	HttpPort             int           `env:"HTTP_PORT,default=4000" validate:"gt=0,lte=65535"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,required=true" validate:"gt=0"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,required=true" validate:"gt=0"`
	MaxTextLength        int           `env:"MAX_TEXT_LENGTH,default=4096" validate:"gte=0"`
	HistoryLimit         int           `env:"HISTORY_LIMIT,default=100" validate:"gt=0"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,required=true" validate:"gt=0"`
	LogLevel             string        `env:"LOG_LEVEL,required=true"`
}

func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c Config) GrpcAddress() string {
	return fmt.Sprintf("%s:%d", c.GrpcHost, c.GrpcPort)
}

func (c Config) HttpAddress() string {
	return fmt.Sprintf(":%d", c.HttpPort)
}
