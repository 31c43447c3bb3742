package handlers

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"snail-trail-service/internal/api/dto"
	"snail-trail-service/internal/domain"
	"snail-trail-service/internal/ports"
	"snail-trail-service/internal/services"
	"strings"
	"sync"
)

// PositionForgetter drops published state for a deleted snail.
type PositionForgetter interface {
	Forget(ctx context.Context, id string) error
}

// SnailHandler exposes snail listing, purchase, editing and removal.
type SnailHandler struct {
	Store     *services.AppState
	Purchaser *services.Purchaser
	Repo      ports.SnailRepository
	Distances ports.DistanceProvider
	Forgetter PositionForgetter

	randMu sync.Mutex
	Rand   *rand.Rand
}

func (h *SnailHandler) List(w http.ResponseWriter, r *http.Request) {
	statuses, err := services.Statuses(r.Context(), h.Store, h.Distances)
	if err != nil {
		writeServiceError(w, r, "list snails", err)
		return
	}

	res := dto.ListSnailsResponse{Snails: make([]dto.SnailResponse, 0, len(statuses))}
	for _, st := range statuses {
		res.Snails = append(res.Snails, statusResponse(st))
	}

	writeJSON(w, r, http.StatusOK, res)
}

func (h *SnailHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.Store.Get(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, "get snail", err)
		return
	}

	writeJSON(w, r, http.StatusOK, snailResponse(s))
}

// Create buys a new snail, debiting its quoted cost from the balance.
func (h *SnailHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateSnailRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	svcReq, ok := h.purchaseRequest(w, r, req)
	if !ok {
		return
	}

	s, q, err := h.Purchaser.Purchase(r.Context(), svcReq)
	if err != nil {
		writeServiceError(w, r, "purchase snail", err)
		return
	}

	writeJSON(w, r, http.StatusCreated, dto.CreateSnailResponse{
		Snail:   snailResponse(s),
		Quote:   quoteResponse(q),
		Balance: h.Store.Balance(),
	})
}

// Quote prices a snail without buying it.
func (h *SnailHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateSnailRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	svcReq, ok := h.purchaseRequest(w, r, req)
	if !ok {
		return
	}

	_, q, err := h.Purchaser.Quote(r.Context(), svcReq)
	if err != nil {
		writeServiceError(w, r, "quote snail", err)
		return
	}

	writeJSON(w, r, http.StatusOK, quoteResponse(q))
}

func (h *SnailHandler) purchaseRequest(w http.ResponseWriter, r *http.Request, req dto.CreateSnailRequest) (services.PurchaseRequest, bool) {
	if req.Location == nil {
		writeError(w, r, http.StatusBadRequest, "location is required")
		return services.PurchaseRequest{}, false
	}

	speed := domain.DefaultSpeed
	switch {
	case req.Speed != nil && req.SpeedMph != nil:
		writeError(w, r, http.StatusBadRequest, "set only one of speed and speed_mph")
		return services.PurchaseRequest{}, false
	case req.Speed != nil:
		speed = *req.Speed
	case req.SpeedMph != nil:
		speed = *req.SpeedMph * domain.MetersPerSecondPerMph
	}

	out := services.PurchaseRequest{
		Name:          req.Name,
		Location:      req.Location.Domain(),
		TargetAddress: req.TargetAddress,
		Speed:         speed,
		Color:         req.Color,
	}
	if req.Target != nil {
		t := req.Target.Domain()
		out.Target = &t
	}
	return out, true
}

// Update edits name, color or target of an existing snail.
func (h *SnailHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req dto.UpdateSnailRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	prev, err := h.Store.Get(id)
	if err != nil {
		writeServiceError(w, r, "update snail", err)
		return
	}

	user, hasUser := h.Store.UserLocation()

	updated, err := h.Store.UpdateEntity(id, func(s domain.Snail) (domain.Snail, error) {
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return s, domain.ErrInvalidName
			}
			s.Name = name
		}
		if req.Color != nil {
			c, err := domain.ParseColor(*req.Color)
			if err != nil {
				return s, err
			}
			s.Color = &c
		}
		if req.FollowUser != nil {
			s.FollowUser = *req.FollowUser
			if s.FollowUser && hasUser {
				s.TargetLocation = user
			}
		}
		if req.Target != nil {
			s.TargetLocation = req.Target.Domain()
			s.FollowUser = false
		}
		return s, nil
	})
	if err != nil {
		writeServiceError(w, r, "update snail", err)
		return
	}

	if h.Repo != nil {
		if err := h.Repo.SaveSnail(r.Context(), updated); err != nil {
			_, _ = h.Store.UpdateEntity(id, func(s domain.Snail) (domain.Snail, error) {
				prev.Location = s.Location
				return prev, nil
			})
			writeServiceError(w, r, "persist snail", err)
			return
		}
	}

	writeJSON(w, r, http.StatusOK, snailResponse(updated))
}

// Delete removes a snail from storage first and then from memory, so a
// failed storage delete leaves the snail in place.
func (h *SnailHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if _, err := h.Store.Get(id); err != nil {
		writeServiceError(w, r, "delete snail", err)
		return
	}

	if h.Repo != nil {
		if err := h.Repo.DeleteSnail(r.Context(), id); err != nil && !errors.Is(err, ports.ErrNotFound) {
			writeServiceError(w, r, "delete snail", err)
			return
		}
	}

	if err := h.Store.RemoveEntity(id); err != nil && !errors.Is(err, ports.ErrNotFound) {
		writeServiceError(w, r, "delete snail", err)
		return
	}

	if h.Forgetter != nil {
		if err := h.Forgetter.Forget(r.Context(), id); err != nil {
			slog.WarnContext(r.Context(), "forget snail position failed", "id", id, "err", err)
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// Starter hands out the free first snail near the user's location.
func (h *SnailHandler) Starter(w http.ResponseWriter, r *http.Request) {
	h.randMu.Lock()
	if h.Rand == nil {
		h.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	s, err := services.CreateStarter(r.Context(), h.Store, h.Repo, h.Rand)
	h.randMu.Unlock()

	if err != nil {
		writeServiceError(w, r, "create starter snail", err)
		return
	}

	writeJSON(w, r, http.StatusCreated, snailResponse(s))
}
