package distance

import (
	"context"
	"fmt"
	"snail-trail-service/internal/domain"
	"snail-trail-service/internal/ports"
)

type MockPair struct {
	From, To domain.Coordinate
	Meters   float64
	Seconds  float64
}

// MockDistanceProvider returns canned results; it does not implement the
// matrix extension so callers exercise the single-lookup path.
type MockDistanceProvider struct {
	m     map[[2]domain.Coordinate]ports.DistanceResult
	Calls int
}

func NewMockDistanceProvider(pairs []MockPair) *MockDistanceProvider {
	m := make(map[[2]domain.Coordinate]ports.DistanceResult, len(pairs))
	for _, p := range pairs {
		m[[2]domain.Coordinate{p.From, p.To}] = ports.DistanceResult{DistanceMeters: p.Meters, DurationSeconds: p.Seconds}
	}
	return &MockDistanceProvider{m: m}
}

func (p *MockDistanceProvider) GetDistance(ctx context.Context, origin, destination domain.Coordinate) (ports.DistanceResult, error) {
	p.Calls++
	r, ok := p.m[[2]domain.Coordinate{origin, destination}]
	if !ok {
		return ports.DistanceResult{}, fmt.Errorf("missing pair %v -> %v", origin, destination)
	}

	return r, nil
}
