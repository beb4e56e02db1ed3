// Package push публикует уведомления в канал реального времени пользователя.
package push

import (
	"context"
	"fmt"

	"github.com/fsdevblog/groph-invest/internal/domain"
	"github.com/fsdevblog/groph-invest/internal/transport/mq"
	"github.com/redis/go-redis/v9"
)

const channelPrefix = "push:user:"

// RedisPublisher публикует события в Redis pub/sub. Доставку подписчикам (websocket, мобильные push)
// выполняют внешние сервисы.
type RedisPublisher struct {
	client redis.Cmdable
}

func NewRedisPublisher(client redis.Cmdable) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func Channel(userID int64) string {
	return fmt.Sprintf("%s%d", channelPrefix, userID)
}

func (p *RedisPublisher) Publish(ctx context.Context, event domain.OutboxEvent) error {
	payload, err := mq.MarshalEnvelope(event)
	if err != nil {
		return err //nolint:wrapcheck
	}
	if pubErr := p.client.Publish(ctx, Channel(event.UserID), payload).Err(); pubErr != nil {
		return fmt.Errorf("redis publish to %s: %w", Channel(event.UserID), pubErr)
	}
	return nil
}
