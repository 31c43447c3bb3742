package distance

import (
	"context"
	"errors"
	"fmt"
	"math"
	"snail-trail-service/internal/domain"
	"snail-trail-service/internal/geo"
	"snail-trail-service/internal/platform/obs"
	"snail-trail-service/internal/ports"
)

// HaversineProvider implements DistanceMatrixProvider with great-circle
// distances. Durations assume travel at a constant reference speed.
//
// The provider is stateless and safe for concurrent use.
type HaversineProvider struct {
	speed float64
}

// NewHaversineProvider returns a provider whose durations are computed at
// speed meters/second. A zero speed is allowed and yields +Inf durations.
func NewHaversineProvider(speed float64) (*HaversineProvider, error) {
	if math.IsNaN(speed) || math.IsInf(speed, 0) || speed < 0 {
		return nil, fmt.Errorf("haversine provider: invalid speed %v", speed)
	}
	return &HaversineProvider{speed: speed}, nil
}

func (p *HaversineProvider) GetDistance(
	ctx context.Context,
	origin domain.Coordinate,
	destination domain.Coordinate,
) (ports.DistanceResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.DistanceResult{}, err
	}
	if err := origin.Validate(); err != nil {
		return ports.DistanceResult{}, fmt.Errorf("get distance: origin: %w", err)
	}
	if err := destination.Validate(); err != nil {
		return ports.DistanceResult{}, fmt.Errorf("get distance: destination: %w", err)
	}

	return p.result(origin, destination), nil
}

// Compute distances from a single origin to many destinations.
func (p *HaversineProvider) GetDistances(
	ctx context.Context,
	origin domain.Coordinate,
	destinations []domain.Coordinate,
) (_ []ports.DistanceResult, err error) {
	defer obs.Time(ctx, "haversine.GetDistances")(&err)

	if err := origin.Validate(); err != nil {
		return nil, fmt.Errorf("get distances: origin: %w", err)
	}

	if len(destinations) == 0 {
		return []ports.DistanceResult{}, nil
	}

	out := make([]ports.DistanceResult, 0, len(destinations))
	for i, d := range destinations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("get distances: destination #%d: %w", i, err)
		}
		out = append(out, p.result(origin, d))
	}

	return out, nil
}

func (p *HaversineProvider) result(origin, destination domain.Coordinate) ports.DistanceResult {
	meters := geo.DistanceMeters(origin, destination)
	return ports.DistanceResult{
		DistanceMeters:  meters,
		DurationSeconds: geo.ETASeconds(origin, destination, p.speed),
	}
}

var errNilProvider = errors.New("distance provider is nil")

// Lookup fetches origin -> destinations through provider, preferring the
// batched path when it is supported.
func Lookup(
	ctx context.Context,
	provider ports.DistanceProvider,
	origin domain.Coordinate,
	destinations []domain.Coordinate,
) ([]ports.DistanceResult, error) {
	if provider == nil {
		return nil, errNilProvider
	}

	if mp, ok := provider.(ports.DistanceMatrixProvider); ok {
		results, err := mp.GetDistances(ctx, origin, destinations)
		if err != nil {
			return nil, fmt.Errorf("lookup distances: %w", err)
		}
		if len(results) != len(destinations) {
			return nil, fmt.Errorf("lookup distances: got %d results for %d destinations", len(results), len(destinations))
		}
		return results, nil
	}

	out := make([]ports.DistanceResult, 0, len(destinations))
	for _, d := range destinations {
		r, err := provider.GetDistance(ctx, origin, d)
		if err != nil {
			return nil, fmt.Errorf("lookup distance %v -> %v: %w", origin, d, err)
		}
		out = append(out, r)
	}
	return out, nil
}
