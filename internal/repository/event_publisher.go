package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/matricula-api/internal/models"
)

// RedisEventPublisher publishes enrollment transition events on a Redis channel
// where the notification service subscribes.
type RedisEventPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisEventPublisher constructs a publisher bound to channel.
func NewRedisEventPublisher(client *redis.Client, channel string) *RedisEventPublisher {
	return &RedisEventPublisher{client: client, channel: channel}
}

// Publish encodes the event as JSON and sends it to the channel.
func (p *RedisEventPublisher) Publish(ctx context.Context, event models.EnrollmentEvent) error {
	if p.client == nil {
		return fmt.Errorf("redis client not configured")
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal enrollment event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish enrollment event: %w", err)
	}
	return nil
}
