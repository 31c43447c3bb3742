package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

const (
	// MetersPerSecondPerMph converts miles per hour to meters per second.
	MetersPerSecondPerMph = 0.44704

	// DefaultSpeed is a walking pace of 3 mph.
	DefaultSpeed = 3 * MetersPerSecondPerMph
	MinSpeed     = 1 * MetersPerSecondPerMph
	MaxSpeed     = 10 * MetersPerSecondPerMph
)

var (
	ErrInvalidSpeed = errors.New("invalid speed")
	ErrInvalidName  = errors.New("invalid name")
	ErrInvalidID    = errors.New("invalid id")
)

// Snail is a movable entity crawling toward its target location.
// Snails are values: updating one means storing a new record under the same ID.
//
// The JSON shape is the persisted record format. FollowUser is kept out of it
// and stored as a separate column by repositories.
type Snail struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Location       Coordinate `json:"location"`
	TargetLocation Coordinate `json:"targetLocation"`
	Speed          float64    `json:"speed"`
	Color          *string    `json:"color,omitempty"`

	// FollowUser retargets the snail whenever the user's live location changes.
	FollowUser bool `json:"-"`
}

// Validate checks the structural invariants every stored snail must satisfy.
func (s Snail) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("validate snail: %w: id must not be empty", ErrInvalidID)
	}
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("validate snail %s: %w: name must not be empty", s.ID, ErrInvalidName)
	}
	if math.IsNaN(s.Speed) || math.IsInf(s.Speed, 0) || s.Speed < 0 {
		return fmt.Errorf("validate snail %s: %w: %v", s.ID, ErrInvalidSpeed, s.Speed)
	}
	if err := s.Location.Validate(); err != nil {
		return fmt.Errorf("validate snail %s: location: %w", s.ID, err)
	}
	if err := s.TargetLocation.Validate(); err != nil {
		return fmt.Errorf("validate snail %s: target: %w", s.ID, err)
	}
	if s.Color != nil {
		if _, err := ParseColor(*s.Color); err != nil {
			return fmt.Errorf("validate snail %s: %w", s.ID, err)
		}
	}
	return nil
}

// ValidatePurchasableSpeed checks the 1-10 mph range offered to users.
func ValidatePurchasableSpeed(speed float64) error {
	if math.IsNaN(speed) || speed < MinSpeed || speed > MaxSpeed {
		return fmt.Errorf("%w: %v m/s must be between %v and %v", ErrInvalidSpeed, speed, MinSpeed, MaxSpeed)
	}
	return nil
}

// ColorOrDefault returns the snail color, falling back to DefaultColor.
func (s Snail) ColorOrDefault() string {
	if s.Color == nil {
		return DefaultColor
	}
	return *s.Color
}

// WithLocation returns a copy of the snail moved to loc.
func (s Snail) WithLocation(loc Coordinate) Snail {
	s.Location = loc
	s.Color = cloneString(s.Color)
	return s
}

// WithTarget returns a copy of the snail aimed at target.
func (s Snail) WithTarget(target Coordinate) Snail {
	s.TargetLocation = target
	s.Color = cloneString(s.Color)
	return s
}

// Clone returns a copy that shares no pointers with s.
func (s Snail) Clone() Snail {
	s.Color = cloneString(s.Color)
	return s
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
