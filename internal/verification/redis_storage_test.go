package verification

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
)

// fakeRedis реализует только команды, которые использует RedisStorage.
type fakeRedis struct {
	redis.Cmdable
	data map[string]string
	ttl  map[string]time.Duration
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	f.data[key] = value.(string) //nolint:forcetypeassert
	f.ttl[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeRedis) Eval(_ context.Context, script string, keys []string, args ...any) *redis.Cmd {
	key := keys[0]
	switch script {
	case deleteIfEqualScript:
		if v, ok := f.data[key]; ok && v == args[0] {
			delete(f.data, key)
			return redis.NewCmdResult(int64(1), nil)
		}
		return redis.NewCmdResult(int64(0), nil)
	case incrScript:
		n, _ := strconv.ParseInt(f.data[key], 10, 64)
		n++
		f.data[key] = strconv.FormatInt(n, 10)
		if n == 1 {
			f.ttl[key] = time.Duration(args[0].(int64)) * time.Millisecond //nolint:forcetypeassert
		}
		return redis.NewCmdResult(n, nil)
	}
	return redis.NewCmdResult(nil, errors.New("unknown script"))
}

type RedisStorageTestSuite struct {
	suite.Suite
	client  *fakeRedis
	storage *RedisStorage
}

func TestRedisStorageSuite(t *testing.T) {
	suite.Run(t, new(RedisStorageTestSuite))
}

func (s *RedisStorageTestSuite) SetupTest() {
	s.client = &fakeRedis{data: map[string]string{}, ttl: map[string]time.Duration{}}
	s.storage = NewRedisStorage(s.client)
}

func (s *RedisStorageTestSuite) TestSetGetDelete() {
	ctx := s.T().Context()

	s.Require().NoError(s.storage.Set(ctx, "k", "hash", DefaultCodeTTL))
	s.Equal(DefaultCodeTTL, s.client.ttl["k"])

	v, err := s.storage.Get(ctx, "k")
	s.Require().NoError(err)
	s.Equal("hash", v)

	s.Require().NoError(s.storage.Delete(ctx, "k"))
	_, err = s.storage.Get(ctx, "k")
	s.Require().ErrorIs(err, ErrCodeNotFound)
}

func (s *RedisStorageTestSuite) TestDeleteIfEqual() {
	ctx := s.T().Context()
	s.Require().NoError(s.storage.Set(ctx, "k", "hash", DefaultCodeTTL))

	deleted, err := s.storage.DeleteIfEqual(ctx, "k", "other")
	s.Require().NoError(err)
	s.False(deleted)
	s.Contains(s.client.data, "k")

	deleted, err = s.storage.DeleteIfEqual(ctx, "k", "hash")
	s.Require().NoError(err)
	s.True(deleted)

	// повторное удаление уже ничего не находит.
	deleted, err = s.storage.DeleteIfEqual(ctx, "k", "hash")
	s.Require().NoError(err)
	s.False(deleted)
}

func (s *RedisStorageTestSuite) TestIncr() {
	ctx := s.T().Context()

	for want := int64(1); want <= 3; want++ {
		n, err := s.storage.Incr(ctx, "attempts", time.Minute)
		s.Require().NoError(err)
		s.Equal(want, n)
	}
	s.Equal(time.Minute, s.client.ttl["attempts"])
}
