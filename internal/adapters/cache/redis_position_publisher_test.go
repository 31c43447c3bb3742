package cache

import (
	"context"
	"encoding/json"
	"snail-trail-service/internal/domain"
	"snail-trail-service/internal/ports"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisPositionPublisherPublish(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)

	sub := client.Subscribe(ctx, PositionsChannel)
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	pub := NewRedisPositionPublisher(client, time.Minute)
	snail := domain.Snail{
		ID:             "s1",
		Name:           "Speedy",
		Location:       domain.Coordinate{Latitude: 1, Longitude: 2},
		TargetLocation: domain.Coordinate{Latitude: 3, Longitude: 4},
		Speed:          domain.DefaultSpeed,
	}
	require.NoError(t, pub.Publish(ctx, ports.PositionSnapshot{Tick: 7, Snails: []domain.Snail{snail}}))

	raw, err := mr.Get(PositionKey("s1"))
	require.NoError(t, err)
	var stored domain.Snail
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	assert.Equal(t, snail, stored)
	assert.Equal(t, time.Minute, mr.TTL(PositionKey("s1")))

	select {
	case msg := <-sub.Channel():
		var got positionsMessage
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, uint64(7), got.Tick)
		require.Len(t, got.Snails, 1)
		assert.Equal(t, "s1", got.Snails[0].ID)
	case <-time.After(2 * time.Second):
		t.Fatal("no message published")
	}
}

func TestRedisPositionPublisherForget(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	pub := NewRedisPositionPublisher(client, 0)

	require.NoError(t, mr.Set(PositionKey("s1"), "{}"))
	require.NoError(t, pub.Forget(ctx, "s1"))
	assert.False(t, mr.Exists(PositionKey("s1")))
}

func TestRedisPositionPublisherUnavailable(t *testing.T) {
	mr, client := newTestRedis(t)
	mr.Close()

	pub := NewRedisPositionPublisher(client, 0)
	err := pub.Publish(context.Background(), ports.PositionSnapshot{Tick: 1})
	require.Error(t, err)
}
