package ports

import (
	"context"
	"snail-trail-service/internal/domain"
)

// Distance and travel duration between two locations.
type DistanceResult struct {
	DistanceMeters  float64
	DurationSeconds float64
}

// Contract for retrieving travel distance and duration between coordinates.
type DistanceProvider interface {
	// Return travel distance and estimated duration between two coordinates.
	GetDistance(ctx context.Context, origin, destination domain.Coordinate) (DistanceResult, error)
}

// Optional extension of DistanceProvider that supports batched lookups.
type DistanceMatrixProvider interface {
	DistanceProvider
	// Return distances from one origin to many destinations, in input order.
	GetDistances(ctx context.Context, origin domain.Coordinate, destinations []domain.Coordinate) ([]DistanceResult, error)
}
