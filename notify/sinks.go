package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// LogHandler writes notifications to the default logger.
func LogHandler(ctx context.Context, n Notification) error {
	level := slog.LevelInfo
	switch n.Priority {
	case PriorityCritical:
		level = slog.LevelError
	case PriorityHigh:
		level = slog.LevelWarn
	case PriorityLow:
		level = slog.LevelDebug
	}
	slog.Log(ctx, level, n.Title,
		"category", n.Category,
		"priority", n.Priority,
		"empire", n.EmpireID,
		"fleet", n.FleetID,
		"time", n.Timestamp,
		"description", n.Description,
	)
	return nil
}

// Publisher is the part of a redis client the redis handler needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// DefaultChannel is where notifications are published when no channel is configured.
const DefaultChannel = "armada:notifications"

// RedisHandler publishes notifications as JSON to a redis channel so the
// game's event bus can pick them up.
func RedisHandler(client Publisher, channel string) Handler {
	if channel == "" {
		channel = DefaultChannel
	}
	return func(ctx context.Context, n Notification) error {
		data, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("marshal notification: %w", err)
		}
		if err := client.Publish(ctx, channel, data).Err(); err != nil {
			return fmt.Errorf("publish to redis: %w", err)
		}
		return nil
	}
}

// NewRedisClient connects to the redis instance at url.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}
