package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/campuslink/student-portal-api/internal/models"
)

// Notifier pushes portal events onto the realtime notification channel.
type Notifier interface {
	Publish(ctx context.Context, event models.Event) error
}

// RedisNotifier publishes events over Redis pub/sub. The frontend socket
// fanout subscribes to the same channel.
type RedisNotifier struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// NewRedisNotifier constructs a notifier. A nil client disables publishing.
func NewRedisNotifier(client *redis.Client, channel string, logger *zap.Logger) *RedisNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if channel == "" {
		channel = "portal:events"
	}
	return &RedisNotifier{client: client, channel: channel, logger: logger}
}

// Publish sends the event. Delivery is best-effort: notification loss never
// fails the triggering request.
func (n *RedisNotifier) Publish(ctx context.Context, event models.Event) error {
	if n.client == nil {
		return nil
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		n.logger.Warn("failed to publish event", zap.String("type", event.Type), zap.Error(err))
		return err
	}
	return nil
}
