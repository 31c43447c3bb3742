package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"snail-trail-service/internal/domain"
	"snail-trail-service/internal/platform/obs"
	"snail-trail-service/internal/ports"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	PositionKeyPrefix = "snail:pos:"
	PositionsChannel  = "snail:positions"
)

// Wire format of one published tick.
type positionsMessage struct {
	Tick   uint64         `json:"tick"`
	Snails []domain.Snail `json:"snails"`
}

// RedisPositionPublisher mirrors the latest position of every snail into
// Redis keys and announces each tick on a pub/sub channel.
type RedisPositionPublisher struct {
	client redis.UniversalClient
	ttl    time.Duration
}

var _ ports.PositionPublisher = (*RedisPositionPublisher)(nil)

// ttl of zero keeps position keys until overwritten.
func NewRedisPositionPublisher(client redis.UniversalClient, ttl time.Duration) *RedisPositionPublisher {
	return &RedisPositionPublisher{client: client, ttl: ttl}
}

func PositionKey(id string) string {
	return PositionKeyPrefix + id
}

func (p *RedisPositionPublisher) Publish(ctx context.Context, snap ports.PositionSnapshot) (err error) {
	defer obs.Time(ctx, "positions.Publish")(&err)

	if p.client == nil {
		return errors.New("position publisher: redis client is nil")
	}

	payload, err := json.Marshal(positionsMessage{Tick: snap.Tick, Snails: snap.Snails})
	if err != nil {
		return fmt.Errorf("publish positions: encode tick %d: %w", snap.Tick, err)
	}

	pipe := p.client.TxPipeline()
	for _, s := range snap.Snails {
		record, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("publish positions: encode snail %s: %w", s.ID, err)
		}
		pipe.Set(ctx, PositionKey(s.ID), record, p.ttl)
	}
	pipe.Publish(ctx, PositionsChannel, payload)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish positions tick %d: %w", snap.Tick, err)
	}
	return nil
}

// Forget removes the mirrored position of a deleted snail.
func (p *RedisPositionPublisher) Forget(ctx context.Context, id string) error {
	if p.client == nil {
		return errors.New("position publisher: redis client is nil")
	}
	if err := p.client.Del(ctx, PositionKey(id)).Err(); err != nil {
		return fmt.Errorf("forget position %s: %w", id, err)
	}
	return nil
}
