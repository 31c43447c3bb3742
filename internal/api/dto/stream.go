package dto

import "snail-trail-service/internal/domain"

const FramePositions = "positions"

// PositionsFrame is pushed to stream clients after every tick. Snails use
// the persisted record shape.
type PositionsFrame struct {
	Type   string         `json:"type"`
	Tick   uint64         `json:"tick"`
	Snails []domain.Snail `json:"snails"`
}
