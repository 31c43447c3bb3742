package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"snail-trail-service/internal/api/dto"
	"snail-trail-service/internal/domain"
	"snail-trail-service/internal/platform/obs"
	"snail-trail-service/internal/ports"
	"snail-trail-service/internal/services"
)

const maxBodyBytes = 8 << 20

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(r.Context(), "encode failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, map[string]string{"error": msg})
}

// decodeJSON reads exactly one JSON object from the request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	defer r.Body.Close()
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeError(w, r, http.StatusBadRequest, "body must contain only one JSON object")
		return false
	}
	return true
}

// writeServiceError maps known sentinel errors to client statuses and hides
// everything else behind a 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidCoordinate),
		errors.Is(err, domain.ErrInvalidColor),
		errors.Is(err, domain.ErrInvalidSpeed),
		errors.Is(err, domain.ErrInvalidName),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, services.ErrGeocodingDisabled),
		errors.Is(err, ports.ErrAddressNotFound):
		status = http.StatusBadRequest
	case errors.Is(err, ports.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrDuplicateID),
		errors.Is(err, services.ErrStarterExists),
		errors.Is(err, services.ErrNoUserLocation):
		status = http.StatusConflict
	case errors.Is(err, services.ErrInsufficientBalance):
		status = http.StatusPaymentRequired
	}

	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), op+" failed", "req_id", obs.RequestID(r.Context()), "err", err)
		writeError(w, r, status, "internal server error")
		return
	}
	writeError(w, r, status, err.Error())
}

// finite drops values JSON cannot carry.
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func snailResponse(s domain.Snail) dto.SnailResponse {
	return dto.SnailResponse{
		ID:             s.ID,
		Name:           s.Name,
		Location:       dto.FromCoordinate(s.Location),
		TargetLocation: dto.FromCoordinate(s.TargetLocation),
		Speed:          s.Speed,
		SpeedMph:       s.Speed / domain.MetersPerSecondPerMph,
		Color:          s.ColorOrDefault(),
		FollowUser:     s.FollowUser,
	}
}

func statusResponse(st services.SnailStatus) dto.SnailResponse {
	res := snailResponse(st.Snail)
	res.RemainingMeters = finite(st.RemainingMeters)
	res.ETASeconds = finite(st.ETASeconds)
	res.Countdown = st.Countdown
	res.DistanceToUserMeters = st.DistanceToUser
	return res
}

func quoteResponse(q services.Quote) dto.QuoteResponse {
	return dto.QuoteResponse{
		DistanceMeters: q.DistanceMeters,
		Cost:           q.Cost,
		ETASeconds:     finite(q.ETASeconds),
		Countdown:      q.Countdown,
	}
}
