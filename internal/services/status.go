package services

import (
	"context"
	"fmt"
	"snail-trail-service/internal/adapters/distance"
	"snail-trail-service/internal/domain"
	"snail-trail-service/internal/geo"
	"snail-trail-service/internal/ports"
)

// SnailStatus is a snail together with how far it still has to go.
type SnailStatus struct {
	Snail           domain.Snail
	RemainingMeters float64
	ETASeconds      float64
	Countdown       string

	// Set only when the user's location is known.
	DistanceToUser *float64
}

// Statuses lists every snail with its remaining distance and countdown.
// Distances to the user go through provider in a single batched lookup.
func Statuses(ctx context.Context, store *AppState, provider ports.DistanceProvider) ([]SnailStatus, error) {
	snails := store.List()

	out := make([]SnailStatus, len(snails))
	for i, sn := range snails {
		remaining := geo.DistanceMeters(sn.Location, sn.TargetLocation)
		eta := geo.ETASeconds(sn.Location, sn.TargetLocation, sn.Speed)
		if remaining == 0 {
			eta = 0
		}
		out[i] = SnailStatus{
			Snail:           sn,
			RemainingMeters: remaining,
			ETASeconds:      eta,
			Countdown:       FormatETA(eta),
		}
	}

	user, ok := store.UserLocation()
	if !ok || provider == nil || len(snails) == 0 {
		return out, nil
	}

	locs := make([]domain.Coordinate, len(snails))
	for i, sn := range snails {
		locs[i] = sn.Location
	}

	results, err := distance.Lookup(ctx, provider, user, locs)
	if err != nil {
		return nil, fmt.Errorf("snail statuses: %w", err)
	}
	for i := range out {
		d := results[i].DistanceMeters
		out[i].DistanceToUser = &d
	}

	return out, nil
}
