package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loan-checker/internal/common/config"
)

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *RedisClient) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := NewRedis(config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestNewRedis_RequiresAddress(t *testing.T) {
	_, err := NewRedis(config.RedisConfig{})
	assert.Error(t, err)
}

func TestRedisClient_Ping(t *testing.T) {
	mr, client := newMiniRedis(t)
	require.NoError(t, client.Ping(context.Background()))

	mr.Close()
	assert.Error(t, client.Ping(context.Background()))
}

func TestRedisClient_IncrWindow(t *testing.T) {
	mr, client := newMiniRedis(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		count, ttl, err := client.IncrWindow(ctx, "rl:test", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, count)
		assert.Greater(t, ttl, time.Duration(0))
	}
	assert.Equal(t, time.Minute, mr.TTL("rl:test"))

	mr.FastForward(time.Minute + time.Second)

	count, _, err := client.IncrWindow(ctx, "rl:test", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "a new window starts after expiry")
}

func TestRedisClient_IncrWindow_RepairsMissingExpiry(t *testing.T) {
	mr, client := newMiniRedis(t)
	require.NoError(t, mr.Set("rl:stuck", "4"))

	count, ttl, err := client.IncrWindow(context.Background(), "rl:stuck", 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)
	assert.Equal(t, 30*time.Second, ttl)
	assert.Equal(t, 30*time.Second, mr.TTL("rl:stuck"))
}

func TestRedisClient_IncrWindow_Errors(t *testing.T) {
	tests := []struct {
		name   string
		expect func(mock redismock.ClientMock)
	}{
		{
			name: "incr fails",
			expect: func(mock redismock.ClientMock) {
				mock.ExpectIncr("rl:key").SetErr(errors.New("connection refused"))
			},
		},
		{
			name: "expire fails",
			expect: func(mock redismock.ClientMock) {
				mock.ExpectIncr("rl:key").SetVal(1)
				mock.ExpectExpire("rl:key", time.Minute).SetErr(errors.New("readonly"))
			},
		},
		{
			name: "ttl fails",
			expect: func(mock redismock.ClientMock) {
				mock.ExpectIncr("rl:key").SetVal(2)
				mock.ExpectTTL("rl:key").SetErr(redis.ErrClosed)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rdb, mock := redismock.NewClientMock()
			tt.expect(mock)

			client := NewRedisFromClient(rdb)
			_, _, err := client.IncrWindow(context.Background(), "rl:key", time.Minute)

			assert.Error(t, err)
			assert.Contains(t, err.Error(), "rl:key")
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
