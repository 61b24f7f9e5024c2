package reminders

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Channel carries reminder notices; frontend gateways subscribe and route
// each notice to the named user's session.
const Channel = "booking_reminders"

// RedisPublisher delivers notices over Redis pub/sub.
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher constructs the publisher.
func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// PublishReminder sends the notice on the reminder channel.
func (p *RedisPublisher) PublishReminder(ctx context.Context, notice Notice) error {
	data, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("marshal reminder notice: %w", err)
	}
	if err := p.client.Publish(ctx, Channel, data).Err(); err != nil {
		return fmt.Errorf("publish reminder notice: %w", err)
	}
	return nil
}
