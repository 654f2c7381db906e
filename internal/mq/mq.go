package mq

import (
	"context"
	"errors"

	"github.com/dmi-project/dmi-gateway/internal/config"

	"go.uber.org/zap"
)

var (
	ErrTopicNotExists = errors.New("topic does not exist")
	ErrQueueFull      = errors.New("queue is full")
	ErrQueueClosed    = errors.New("queue closed")
	ErrTopicClosed    = errors.New("topic closed")
)

const (
	MQTypeInMemory = "inmemory"
	MQTypePulsar   = "pulsar"

	DefaultInMemorySize = 1024
)

// MQ carries usage events out of the request path.
type MQ interface {
	Publish(ctx context.Context, topic string, message []byte) error
	Receive(ctx context.Context, topic string) ([]byte, error)
	CloseTopic(topic string) error
	Close() error
}

// NewMQ picks Pulsar when a URL is configured and the in-memory queue
// otherwise.
func NewMQ(cfg *config.Config, logger *zap.Logger) (MQ, error) {
	if cfg != nil && cfg.Pulsar != nil && cfg.Pulsar.URL != "" {
		return NewPulsarMQ(cfg.Pulsar, logger)
	}
	return NewInMemoryMQ(DefaultInMemorySize)
}
