package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"snail-trail-service/internal/domain"
	"snail-trail-service/internal/ports"

	"github.com/google/uuid"
)

const (
	StarterName = "Speedy"

	// StarterRadiusMeters is 1000 miles.
	StarterRadiusMeters = 1609344.0
	metersPerDegree     = 111000.0
)

var (
	ErrStarterExists  = errors.New("starter snail already exists")
	ErrNoUserLocation = errors.New("user location unknown")
)

// NewStarterSnail places a free snail at a random offset of up to
// StarterRadiusMeters (approximated in degrees) from user, aimed at user.
func NewStarterSnail(user domain.Coordinate, rnd *rand.Rand) (domain.Snail, error) {
	if err := user.Validate(); err != nil {
		return domain.Snail{}, fmt.Errorf("new starter snail: %w", err)
	}
	if rnd == nil {
		return domain.Snail{}, errors.New("new starter snail: rand source is nil")
	}

	radius := StarterRadiusMeters / metersPerDegree
	offset := func() float64 { return (rnd.Float64()*2 - 1) * radius }

	loc := domain.Coordinate{
		Latitude:  min(max(user.Latitude+offset(), -90), 90),
		Longitude: min(max(user.Longitude+offset(), -180), 180),
	}

	return domain.Snail{
		ID:             uuid.NewString(),
		Name:           StarterName,
		Location:       loc,
		TargetLocation: user,
		Speed:          domain.DefaultSpeed,
		FollowUser:     true,
	}, nil
}

// CreateStarter gives a user without snails their first one, free of charge.
func CreateStarter(ctx context.Context, store *AppState, repo ports.SnailRepository, rnd *rand.Rand) (domain.Snail, error) {
	if store.Len() > 0 {
		return domain.Snail{}, fmt.Errorf("create starter: %w", ErrStarterExists)
	}

	user, ok := store.UserLocation()
	if !ok {
		return domain.Snail{}, fmt.Errorf("create starter: %w", ErrNoUserLocation)
	}

	sn, err := NewStarterSnail(user, rnd)
	if err != nil {
		return domain.Snail{}, fmt.Errorf("create starter: %w", err)
	}

	if err := store.AddEntity(sn); err != nil {
		return domain.Snail{}, fmt.Errorf("create starter: %w", err)
	}

	if repo != nil {
		if err := repo.SaveSnail(ctx, sn); err != nil {
			_ = store.RemoveEntity(sn.ID)
			return domain.Snail{}, fmt.Errorf("create starter: persist: %w", err)
		}
	}

	return store.Get(sn.ID)
}
