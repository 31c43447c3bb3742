package handlers

import (
	"log/slog"
	"net/http"
	"snail-trail-service/internal/api/dto"
	"snail-trail-service/internal/domain"
	"snail-trail-service/internal/ports"
	"snail-trail-service/internal/services"
)

type ProfileHandler struct {
	Store *services.AppState
	Repo  ports.ProfileRepository
}

func profileResponse(p domain.UserProfile) dto.ProfileResponse {
	return dto.ProfileResponse{
		Username:       p.Username,
		Bio:            p.Bio,
		ProfilePicture: p.ProfilePicture,
		Balance:        p.Balance,
	}
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, profileResponse(h.Store.Profile()))
}

func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p := h.Store.UpdateProfile(func(p domain.UserProfile) domain.UserProfile {
		if req.Username != nil {
			p.Username = *req.Username
		}
		if req.Bio != nil {
			p.Bio = *req.Bio
		}
		switch {
		case req.RemovePicture:
			p.ProfilePicture = nil
		case len(req.ProfilePicture) > 0:
			p.ProfilePicture = req.ProfilePicture
		}
		return p
	})

	if !h.persist(w, r, p) {
		return
	}
	writeJSON(w, r, http.StatusOK, profileResponse(p))
}

// AdjustBalance credits or debits coins. The balance never goes negative.
func (h *ProfileHandler) AdjustBalance(w http.ResponseWriter, r *http.Request) {
	var req dto.AdjustBalanceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	balance, err := h.Store.AdjustBalance(req.Delta)
	if err != nil {
		writeServiceError(w, r, "adjust balance", err)
		return
	}

	if !h.persist(w, r, h.Store.Profile()) {
		return
	}
	writeJSON(w, r, http.StatusOK, dto.BalanceResponse{Balance: balance})
}

func (h *ProfileHandler) persist(w http.ResponseWriter, r *http.Request, p domain.UserProfile) bool {
	if h.Repo == nil {
		return true
	}
	if err := h.Repo.SaveProfile(r.Context(), p); err != nil {
		slog.ErrorContext(r.Context(), "save profile failed", "err", err)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return false
	}
	return true
}
