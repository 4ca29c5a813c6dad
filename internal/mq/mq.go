// Package mq carries outbound work, such as welcome mail, to background
// consumers over RabbitMQ or Google Cloud Pub/Sub.
package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tech-e/apiserver/config"
)

const (
	BackendNone     = "none"
	BackendRabbitMQ = "rabbitmq"
	BackendPubSub   = "pubsub"
)

// ErrDisabled is returned by Open when no broker is configured.
var ErrDisabled = errors.New("mq: no backend configured")

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to have it redelivered.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker operations used by the app.
type Backend interface {
	Publish(ctx context.Context, queue string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, queue string, handler Handler) error
	Close() error
}

// Open connects to the broker selected by cfg.Backend.
func Open(ctx context.Context, cfg config.MQConfig) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendNone:
		return nil, ErrDisabled
	case BackendRabbitMQ:
		return NewRabbitMQBackend(cfg.RabbitMQ)
	case BackendPubSub:
		return NewPubSubBackend(ctx, cfg.PubSub)
	default:
		return nil, fmt.Errorf("mq: unknown backend %q", cfg.Backend)
	}
}

// PublishJSON encodes v and publishes it with a JSON content-type attribute.
func PublishJSON(ctx context.Context, b Backend, queue string, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode %s payload: %w", queue, err)
	}
	return b.Publish(ctx, queue, data, map[string]string{"content-type": "application/json"})
}
