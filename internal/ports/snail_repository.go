package ports

import (
	"context"
	"errors"
	"snail-trail-service/internal/domain"
)

var ErrNotFound = errors.New("not found")

// Port: durable storage for snails.
type SnailRepository interface {
	// Retrieve every stored snail ordered by id.
	ListSnails(ctx context.Context) ([]domain.Snail, error)
	// Retrieve one snail; returns ErrNotFound when absent.
	GetSnail(ctx context.Context, id string) (domain.Snail, error)
	// Insert or replace a snail record.
	SaveSnail(ctx context.Context, s domain.Snail) error
	// Remove a snail; returns ErrNotFound when absent.
	DeleteSnail(ctx context.Context, id string) error
	// Persist current and target locations for many snails in one transaction.
	SavePositions(ctx context.Context, snails []domain.Snail) error
}

// Port: durable storage for the single local user profile.
type ProfileRepository interface {
	// Retrieve the profile; returns ErrNotFound before the first save.
	GetProfile(ctx context.Context) (domain.UserProfile, error)
	SaveProfile(ctx context.Context, p domain.UserProfile) error
}
