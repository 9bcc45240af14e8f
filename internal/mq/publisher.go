package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/septivank/sensor-telemetry-api/internal/auth"
	"go.uber.org/zap"
)

// Routing keys of login events
const (
	RoutingKeyLoginSucceeded = "auth.login.succeeded"
	RoutingKeyLoginFailed    = "auth.login.failed"
)

// publishChannel is the part of *amqp.Channel the publisher uses
type publishChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher publishes auth events to a topic exchange
type Publisher struct {
	mu       sync.Mutex // amqp channels must not be shared between goroutines
	channel  publishChannel
	exchange string
	logger   *zap.Logger
}

// NewPublisher opens a channel on conn and declares exchange
func NewPublisher(conn *Connection, exchange string, logger *zap.Logger) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	if err := declareTopicExchange(ch, exchange); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return newPublisher(ch, exchange, logger), nil
}

func newPublisher(ch publishChannel, exchange string, logger *zap.Logger) *Publisher {
	return &Publisher{
		channel:  ch,
		exchange: exchange,
		logger:   logger,
	}
}

// LoginEventMessage is the wire form of a login event. It never carries the password.
type LoginEventMessage struct {
	EventID    string `json:"event_id"`
	Username   string `json:"username"`
	Succeeded  bool   `json:"succeeded"`
	Reason     string `json:"reason,omitempty"`
	OccurredAt string `json:"occurred_at"`
}

// PublishLoginEvent publishes the outcome of a login attempt
func (p *Publisher) PublishLoginEvent(ctx context.Context, event auth.LoginEvent) error {
	msg := LoginEventMessage{
		EventID:    uuid.NewString(),
		Username:   event.Username,
		Succeeded:  event.Succeeded,
		Reason:     event.Reason,
		OccurredAt: event.OccurredAt.UTC().Format(time.RFC3339Nano),
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	routingKey := RoutingKeyLoginFailed
	if event.Succeeded {
		routingKey = RoutingKeyLoginSucceeded
	}

	p.mu.Lock()
	err = p.channel.PublishWithContext(
		ctx,
		p.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    msg.EventID,
			Timestamp:    event.OccurredAt,
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	p.mu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("published login event",
		zap.String("routing_key", routingKey),
		zap.String("event_id", msg.EventID),
	)

	return nil
}

// Close closes the publisher channel
func (p *Publisher) Close() error {
	if p.channel != nil {
		return p.channel.Close()
	}
	return nil
}
