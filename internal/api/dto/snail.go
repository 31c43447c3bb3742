package dto

import "snail-trail-service/internal/domain"

type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (c Coordinate) Domain() domain.Coordinate {
	return domain.Coordinate{Latitude: c.Latitude, Longitude: c.Longitude}
}

func FromCoordinate(c domain.Coordinate) Coordinate {
	return Coordinate{Latitude: c.Latitude, Longitude: c.Longitude}
}

type SnailResponse struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Location       Coordinate `json:"location"`
	TargetLocation Coordinate `json:"target_location"`
	Speed          float64    `json:"speed"`
	SpeedMph       float64    `json:"speed_mph"`
	Color          string     `json:"color"`
	FollowUser     bool       `json:"follow_user"`

	RemainingMeters      *float64 `json:"remaining_meters,omitempty"`
	ETASeconds           *float64 `json:"eta_seconds,omitempty"`
	Countdown            string   `json:"countdown,omitempty"`
	DistanceToUserMeters *float64 `json:"distance_to_user_meters,omitempty"`
}

type ListSnailsResponse struct {
	Snails []SnailResponse `json:"snails"`
}

// CreateSnailRequest buys a snail. Target wins over TargetAddress; with
// neither, the snail follows the user. Speed is in m/s unless SpeedMph is set.
type CreateSnailRequest struct {
	Name          string      `json:"name"`
	Location      *Coordinate `json:"location"`
	Target        *Coordinate `json:"target"`
	TargetAddress string      `json:"target_address"`
	Speed         *float64    `json:"speed"`
	SpeedMph      *float64    `json:"speed_mph"`
	Color         *string     `json:"color"`
}

type CreateSnailResponse struct {
	Snail   SnailResponse `json:"snail"`
	Quote   QuoteResponse `json:"quote"`
	Balance float64       `json:"balance"`
}

// UpdateSnailRequest changes only the fields that are present.
// Setting Target stops the snail from following the user.
type UpdateSnailRequest struct {
	Name       *string     `json:"name"`
	Color      *string     `json:"color"`
	Target     *Coordinate `json:"target"`
	FollowUser *bool       `json:"follow_user"`
}

type QuoteResponse struct {
	DistanceMeters float64  `json:"distance_meters"`
	Cost           float64  `json:"cost"`
	ETASeconds     *float64 `json:"eta_seconds"`
	Countdown      string   `json:"countdown"`
}
