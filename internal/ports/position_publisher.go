package ports

import (
	"context"
	"snail-trail-service/internal/domain"
)

// Snapshot of every snail position after one tick.
type PositionSnapshot struct {
	Tick   uint64
	Snails []domain.Snail
}

// Publishes position snapshots to out-of-process consumers.
type PositionPublisher interface {
	Publish(ctx context.Context, snap PositionSnapshot) error
}
