// Package notify broadcasts calendar event changes to other services.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/jw6ventures/crmcal/internal/calendar"
	"github.com/jw6ventures/crmcal/internal/metrics"
)

// DefaultChannel is the pub/sub channel event changes are published on.
const DefaultChannel = "crmcal-events"

// Message is the JSON payload published for every change.
type Message struct {
	Type string `json:"type"`
	calendar.Change
}

type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher publishes event changes on a Redis channel.
type RedisPublisher struct {
	client  publisher
	channel string
	logger  *zap.Logger
}

// Dial connects to Redis at url and verifies the connection.
func Dial(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func NewRedisPublisher(client *redis.Client, channel string, logger *zap.Logger) *RedisPublisher {
	return newRedisPublisher(client, channel, logger)
}

func newRedisPublisher(client publisher, channel string, logger *zap.Logger) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPublisher{client: client, channel: channel, logger: logger.Named("notify")}
}

// Publish sends change as a JSON message of type "event.<kind>".
func (p *RedisPublisher) Publish(ctx context.Context, change calendar.Change) error {
	msg := Message{Type: "event." + string(change.Kind), Change: change}
	payload, err := json.Marshal(msg)
	if err != nil {
		metrics.ObservePublish(string(change.Kind), err)
		return fmt.Errorf("marshal change: %w", err)
	}

	err = p.client.Publish(ctx, p.channel, payload).Err()
	metrics.ObservePublish(string(change.Kind), err)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", p.channel, err)
	}
	p.logger.Debug("published event change",
		zap.String("channel", p.channel),
		zap.String("type", msg.Type),
		zap.String("event_id", change.EventID))
	return nil
}

// LogPublisher records changes in the log when no broker is configured.
type LogPublisher struct {
	Logger *zap.Logger
}

func (p LogPublisher) Publish(_ context.Context, change calendar.Change) error {
	if p.Logger != nil {
		p.Logger.Info("event change",
			zap.String("type", "event."+string(change.Kind)),
			zap.String("workspace_id", change.WorkspaceID),
			zap.String("event_id", change.EventID))
	}
	metrics.ObservePublish(string(change.Kind), nil)
	return nil
}
