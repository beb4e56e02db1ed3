package push

import (
	"context"
	"errors"
	"testing"

	"github.com/fsdevblog/groph-invest/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
)

// fakeRedis реализует только Publish, остальные методы redis.Cmdable не вызываются.
type fakeRedis struct {
	redis.Cmdable
	channels []string
	err      error
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, _ interface{}) *redis.IntCmd {
	f.channels = append(f.channels, channel)
	cmd := redis.NewIntCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	cmd.SetVal(1)
	return cmd
}

type RedisPublisherTestSuite struct {
	suite.Suite
}

func TestRedisPublisherSuite(t *testing.T) {
	suite.Run(t, new(RedisPublisherTestSuite))
}

func (s *RedisPublisherTestSuite) TestPublish() {
	client := &fakeRedis{}
	p := NewRedisPublisher(client)

	err := p.Publish(s.T().Context(), domain.OutboxEvent{ID: uuid.New(), Kind: domain.EventKindNotification, UserID: 9})
	s.Require().NoError(err)
	s.Equal([]string{"push:user:9"}, client.channels)
}

func (s *RedisPublisherTestSuite) TestPublishError() {
	client := &fakeRedis{err: errors.New("redis: client is closed")}
	p := NewRedisPublisher(client)

	err := p.Publish(s.T().Context(), domain.OutboxEvent{ID: uuid.New(), Kind: domain.EventKindPush, UserID: 1})
	s.Require().ErrorIs(err, client.err)
}
