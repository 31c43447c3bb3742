package handlers

import (
	"log/slog"
	"net/http"
	"snail-trail-service/internal/api/dto"
	"snail-trail-service/internal/ports"
	"snail-trail-service/internal/services"
)

// LocationHandler receives the user's live location from the client.
type LocationHandler struct {
	Store *services.AppState
	Repo  ports.SnailRepository
}

func (h *LocationHandler) Put(w http.ResponseWriter, r *http.Request) {
	var req dto.Coordinate
	if !decodeJSON(w, r, &req) {
		return
	}

	changed, err := h.Store.SetUserLocation(req.Domain())
	if err != nil {
		writeServiceError(w, r, "set user location", err)
		return
	}

	// The next ticker checkpoint saves targets again.
	if h.Repo != nil && len(changed) > 0 {
		if err := h.Repo.SavePositions(r.Context(), changed); err != nil {
			slog.WarnContext(r.Context(), "save retargeted snails failed", "count", len(changed), "err", err)
		}
	}

	writeJSON(w, r, http.StatusOK, dto.LocationResponse{Location: req, Retargeted: len(changed)})
}
