package ports

import (
	"context"
	"errors"
	"snail-trail-service/internal/domain"
)

// ErrAddressNotFound is returned when an address resolves to no location.
var ErrAddressNotFound = errors.New("address not found")

// Resolves a free-form address into a coordinate.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (domain.Coordinate, error)
}

// Persistent address -> coordinate cache consulted before geocoding.
// Keys are expected to be normalized by the caller.
type GeocodeCache interface {
	GetMany(ctx context.Context, addresses []string) (map[string]domain.Coordinate, error)
	PutMany(ctx context.Context, results map[string]domain.Coordinate) error
}
