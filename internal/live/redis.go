package live

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/mtlprog/taskpulse/internal/domain"
)

type redisMessage struct {
	UserID string          `json:"user_id"`
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data"`
}

// NewRedisClient connects to the Redis server at url (redis://...) and checks it responds.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
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

// RedisPublisher pushes events through a Redis channel so that every process
// subscribed with Subscribe can deliver them to its local connections.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher creates a new RedisPublisher.
func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{
		client:  client,
		channel: channel,
	}
}

// Push publishes the event for userID.
func (p *RedisPublisher) Push(ctx context.Context, userID string, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event, err)
	}

	msg, err := json.Marshal(redisMessage{UserID: userID, Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("marshal %s message: %w", event, err)
	}

	if err := p.client.Publish(ctx, p.channel, msg).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", p.channel, err)
	}
	return nil
}

// Subscribe forwards events published on channel to local until ctx is done.
// It returns once the subscription fails to start or ctx is cancelled.
func Subscribe(ctx context.Context, client *redis.Client, channel string, local domain.Pusher) error {
	pubsub := client.Subscribe(ctx, channel)
	defer func() {
		if err := pubsub.Close(); err != nil {
			slog.Warn("failed to close redis subscription", "channel", channel, "error", err)
		}
	}()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to %s: %w", channel, err)
	}

	slog.Info("live fan-out subscribed", "channel", channel)

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-messages:
			if !ok {
				return nil
			}

			var msg redisMessage
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				slog.Warn("dropping malformed live message", "channel", channel, "error", err)
				continue
			}
			if err := local.Push(ctx, msg.UserID, msg.Event, msg.Data); err != nil {
				slog.Warn("local live push failed", "user_id", msg.UserID, "error", err)
			}
		}
	}
}
