package distance

import (
	"context"
	"math"
	"snail-trail-service/internal/domain"
	"snail-trail-service/internal/geo"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHaversineProviderGetDistance(t *testing.T) {
	p, err := NewHaversineProvider(domain.DefaultSpeed)
	require.NoError(t, err)

	a := domain.Coordinate{Latitude: 37.3315, Longitude: -121.8911}
	b := domain.Coordinate{Latitude: 37.3315, Longitude: -121.8811}

	r, err := p.GetDistance(context.Background(), a, b)
	require.NoError(t, err)

	assert.Equal(t, geo.DistanceMeters(a, b), r.DistanceMeters)
	assert.Equal(t, geo.ETASeconds(a, b, domain.DefaultSpeed), r.DurationSeconds)
}

func TestHaversineProviderRejectsInvalid(t *testing.T) {
	p, err := NewHaversineProvider(1)
	require.NoError(t, err)

	_, err = p.GetDistance(context.Background(), domain.Coordinate{Latitude: 100}, domain.Coordinate{})
	require.ErrorIs(t, err, domain.ErrInvalidCoordinate)

	_, err = p.GetDistances(context.Background(), domain.Coordinate{}, []domain.Coordinate{{Longitude: 200}})
	require.ErrorIs(t, err, domain.ErrInvalidCoordinate)

	_, err = NewHaversineProvider(-1)
	require.Error(t, err)
}

func TestHaversineProviderZeroSpeed(t *testing.T) {
	p, err := NewHaversineProvider(0)
	require.NoError(t, err)

	r, err := p.GetDistance(context.Background(), domain.Coordinate{}, domain.Coordinate{Latitude: 1})
	require.NoError(t, err)
	assert.True(t, math.IsInf(r.DurationSeconds, 1))
}

func TestLookupPrefersMatrix(t *testing.T) {
	p, err := NewHaversineProvider(1)
	require.NoError(t, err)

	origin := domain.Coordinate{}
	dests := []domain.Coordinate{{Latitude: 1}, {Longitude: 1}, {}}

	results, err := Lookup(context.Background(), p, origin, dests)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Zero(t, results[2].DistanceMeters)
	assert.InDelta(t, results[0].DistanceMeters, results[1].DistanceMeters, 1e-6)
}

func TestLookupFallsBackToSingleCalls(t *testing.T) {
	origin := domain.Coordinate{}
	a := domain.Coordinate{Latitude: 1}
	b := domain.Coordinate{Latitude: 2}

	mock := NewMockDistanceProvider([]MockPair{
		{From: origin, To: a, Meters: 100, Seconds: 10},
		{From: origin, To: b, Meters: 200, Seconds: 20},
	})

	results, err := Lookup(context.Background(), mock, origin, []domain.Coordinate{a, b})
	require.NoError(t, err)
	assert.Equal(t, 2, mock.Calls)
	assert.Equal(t, 200.0, results[1].DistanceMeters)

	_, err = Lookup(context.Background(), mock, origin, []domain.Coordinate{{Latitude: 3}})
	require.Error(t, err)

	_, err = Lookup(context.Background(), nil, origin, nil)
	require.Error(t, err)
}

func TestGetDistancesHonorsCancellation(t *testing.T) {
	p, err := NewHaversineProvider(1)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = p.GetDistances(ctx, domain.Coordinate{}, []domain.Coordinate{{Latitude: 1}})
	require.ErrorIs(t, err, context.Canceled)
}
