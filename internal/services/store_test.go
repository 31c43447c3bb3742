package services

import (
	"context"
	"fmt"
	"snail-trail-service/internal/domain"
	"snail-trail-service/internal/geo"
	"snail-trail-service/internal/ports"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	applePark   = domain.Coordinate{Latitude: 37.3349, Longitude: -122.0090}
	infiniteLp  = domain.Coordinate{Latitude: 37.3318, Longitude: -122.0312}
	newYorkCity = domain.Coordinate{Latitude: 40.7128, Longitude: -74.0060}
)

func snail(id, name string, from, to domain.Coordinate) domain.Snail {
	return domain.Snail{
		ID:             id,
		Name:           name,
		Location:       from,
		TargetLocation: to,
		Speed:          domain.DefaultSpeed,
	}
}

func newStore(t *testing.T, balance float64, snails ...domain.Snail) *AppState {
	t.Helper()
	s, err := NewAppState(snails, domain.UserProfile{Username: "shelly", Balance: balance})
	require.NoError(t, err)
	return s
}

func TestAppStateAddGetList(t *testing.T) {
	s := newStore(t, 0,
		snail("2", "Turbo", applePark, infiniteLp),
		snail("1", "Turbo", applePark, infiniteLp),
		snail("3", "Ace", applePark, infiniteLp),
	)

	ids := []string{}
	for _, sn := range s.List() {
		ids = append(ids, sn.ID)
	}
	assert.Equal(t, []string{"3", "1", "2"}, ids)

	err := s.AddEntity(snail("1", "Again", applePark, applePark))
	require.ErrorIs(t, err, ErrDuplicateID)

	err = s.AddEntity(snail("4", "", applePark, applePark))
	require.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = s.Get("missing")
	require.ErrorIs(t, err, ports.ErrNotFound)
}

func TestAppStateReturnsCopies(t *testing.T) {
	color := "#123456"
	sn := snail("1", "Ace", applePark, infiniteLp)
	sn.Color = &color
	s := newStore(t, 0, sn)

	got, err := s.Get("1")
	require.NoError(t, err)
	*got.Color = "#000000"

	again, err := s.Get("1")
	require.NoError(t, err)
	assert.Equal(t, "#123456", *again.Color)
}

func TestAppStateUpdateRemove(t *testing.T) {
	s := newStore(t, 0, snail("1", "Ace", applePark, infiniteLp))

	updated, err := s.UpdateEntity("1", func(sn domain.Snail) (domain.Snail, error) {
		sn.Name = "Renamed"
		return sn, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)

	_, err = s.UpdateEntity("1", func(sn domain.Snail) (domain.Snail, error) {
		sn.ID = "other"
		return sn, nil
	})
	require.ErrorIs(t, err, domain.ErrInvalidID)

	_, err = s.UpdateEntity("1", func(sn domain.Snail) (domain.Snail, error) {
		sn.Speed = -1
		return sn, nil
	})
	require.ErrorIs(t, err, domain.ErrInvalidSpeed)

	got, err := s.Get("1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, domain.DefaultSpeed, got.Speed)

	require.NoError(t, s.RemoveEntity("1"))
	require.ErrorIs(t, s.RemoveEntity("1"), ports.ErrNotFound)
	_, err = s.UpdateEntity("1", func(sn domain.Snail) (domain.Snail, error) { return sn, nil })
	require.ErrorIs(t, err, ports.ErrNotFound)
}

func TestSetUserLocationRetargetsFollowers(t *testing.T) {
	follower := snail("f", "Follower", applePark, applePark)
	follower.FollowUser = true
	fixed := snail("x", "Fixed", applePark, infiniteLp)
	s := newStore(t, 0, follower, fixed)

	changed, err := s.SetUserLocation(newYorkCity)
	require.NoError(t, err)
	require.Len(t, changed, 1)
	assert.Equal(t, "f", changed[0].ID)

	got, _ := s.Get("f")
	assert.Equal(t, newYorkCity, got.TargetLocation)
	got, _ = s.Get("x")
	assert.Equal(t, infiniteLp, got.TargetLocation)

	loc, ok := s.UserLocation()
	require.True(t, ok)
	assert.Equal(t, newYorkCity, loc)

	late := snail("l", "Late", applePark, applePark)
	late.FollowUser = true
	require.NoError(t, s.AddEntity(late))
	got, _ = s.Get("l")
	assert.Equal(t, newYorkCity, got.TargetLocation)

	_, err = s.SetUserLocation(domain.Coordinate{Latitude: 95})
	require.ErrorIs(t, err, domain.ErrInvalidCoordinate)
}

func TestAdvanceAllMatchesEngine(t *testing.T) {
	snails := make([]domain.Snail, 0, 50)
	for i := range 50 {
		sn := snail(fmt.Sprintf("s%02d", i), "Snail", applePark, infiniteLp)
		sn.Speed = float64(i%10+1) * domain.MetersPerSecondPerMph
		snails = append(snails, sn)
	}
	s := newStore(t, 0, snails...)
	s.SetWorkers(4)

	arrived, err := s.AdvanceAll(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, arrived)

	for _, want := range snails {
		got, err := s.Get(want.ID)
		require.NoError(t, err)
		assert.Equal(t, geo.Advance(want.Location, want.TargetLocation, want.Speed, 1), got.Location, want.ID)
	}
}

func TestAdvanceAllReportsArrivalOnce(t *testing.T) {
	near := geo.Destination(infiniteLp, 0, 1)
	s := newStore(t, 0,
		snail("near", "Near", near, infiniteLp),
		snail("far", "Far", applePark, infiniteLp),
	)

	arrived, err := s.AdvanceAll(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"near"}, arrived)

	got, _ := s.Get("near")
	assert.Equal(t, infiniteLp, got.Location)

	arrived, err = s.AdvanceAll(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, arrived)
}

func TestAdvanceAllZeroSpeedStaysPut(t *testing.T) {
	sn := snail("z", "Zero", applePark, infiniteLp)
	sn.Speed = 0
	s := newStore(t, 0, sn)

	_, err := s.AdvanceAll(context.Background(), 1)
	require.NoError(t, err)
	got, _ := s.Get("z")
	assert.Equal(t, applePark, got.Location)

	_, err = s.AdvanceAll(context.Background(), -1)
	require.Error(t, err)
}

func TestAdvanceAllSkipsSnailRetargetedMidTick(t *testing.T) {
	near := geo.Destination(infiniteLp, 0, 1)
	follower := snail("f", "Follower", near, infiniteLp)
	follower.FollowUser = true
	s := newStore(t, 0, follower, snail("fixed", "Fixed", applePark, infiniteLp))

	planned, err := s.planAdvance(context.Background(), 1)
	require.NoError(t, err)

	_, err = s.SetUserLocation(newYorkCity)
	require.NoError(t, err)

	assert.Empty(t, s.applyAdvance(planned), "arrival judged against a stale target")

	got, err := s.Get("f")
	require.NoError(t, err)
	assert.Equal(t, near, got.Location)
	assert.Equal(t, newYorkCity, got.TargetLocation)

	fixed, err := s.Get("fixed")
	require.NoError(t, err)
	assert.Equal(t, geo.Advance(applePark, infiniteLp, domain.DefaultSpeed, 1), fixed.Location)

	_, err = s.AdvanceAll(context.Background(), 1)
	require.NoError(t, err)
	got, err = s.Get("f")
	require.NoError(t, err)
	assert.Equal(t, geo.Advance(near, newYorkCity, domain.DefaultSpeed, 1), got.Location)
}

func TestAdvanceAllHonorsCancellation(t *testing.T) {
	s := newStore(t, 0, snail("a", "A", applePark, infiniteLp))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.AdvanceAll(ctx, 1)
	require.ErrorIs(t, err, context.Canceled)

	got, _ := s.Get("a")
	assert.Equal(t, applePark, got.Location)
}

func TestAdvanceAllConcurrentWithMutations(t *testing.T) {
	snails := make([]domain.Snail, 0, 20)
	for i := range 20 {
		snails = append(snails, snail(fmt.Sprintf("s%02d", i), "Snail", applePark, infiniteLp))
	}
	s := newStore(t, 0, snails...)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for range 100 {
			_, _ = s.AdvanceAll(context.Background(), 1)
		}
	}()
	go func() {
		defer wg.Done()
		for i := range 20 {
			id := fmt.Sprintf("s%02d", i)
			if i%2 == 0 {
				_ = s.RemoveEntity(id)
				continue
			}
			_, _ = s.UpdateEntity(id, func(sn domain.Snail) (domain.Snail, error) {
				sn.Name = "Renamed"
				return sn, nil
			})
		}
	}()
	wg.Wait()

	assert.Equal(t, 10, s.Len())
	for _, sn := range s.List() {
		assert.Equal(t, "Renamed", sn.Name)
	}
}

func TestAdjustBalanceNeverNegative(t *testing.T) {
	s := newStore(t, 10)

	b, err := s.AdjustBalance(-4)
	require.NoError(t, err)
	assert.Equal(t, 6.0, b)

	b, err = s.AdjustBalance(-6.5)
	require.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, 6.0, b)
	assert.Equal(t, 6.0, s.Balance())

	b, err = s.AdjustBalance(-6)
	require.NoError(t, err)
	assert.Equal(t, 0.0, b)

	_, err = NewAppState(nil, domain.UserProfile{Balance: -1})
	require.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestUpdateProfileKeepsBalance(t *testing.T) {
	s := newStore(t, 25)

	p := s.UpdateProfile(func(p domain.UserProfile) domain.UserProfile {
		p.Username = "  turbo  "
		p.Bio = "fast"
		p.Balance = 1e9
		return p
	})
	assert.Equal(t, "turbo", p.Username)
	assert.Equal(t, 25.0, p.Balance)
	assert.Equal(t, "fast", s.Profile().Bio)
}
