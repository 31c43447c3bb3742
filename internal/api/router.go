package api

import (
	"net/http"
	"snail-trail-service/internal/api/handlers"
	"snail-trail-service/internal/platform/metrics"
	"snail-trail-service/internal/ports"
	"snail-trail-service/internal/services"
)

// Deps carries everything the HTTP layer needs. Optional fields may be nil.
type Deps struct {
	Store     *services.AppState
	Purchaser *services.Purchaser
	Snails    ports.SnailRepository
	Profiles  ports.ProfileRepository
	Distances ports.DistanceProvider
	Forgetter handlers.PositionForgetter
	Stream    *handlers.StreamHub
	Metrics   *metrics.Collector
}

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()

	snailHandler := &handlers.SnailHandler{
		Store:     d.Store,
		Purchaser: d.Purchaser,
		Repo:      d.Snails,
		Distances: d.Distances,
		Forgetter: d.Forgetter,
	}
	profileHandler := &handlers.ProfileHandler{Store: d.Store, Repo: d.Profiles}
	locationHandler := &handlers.LocationHandler{Store: d.Store, Repo: d.Snails}

	mux.HandleFunc("GET /health", handlers.Health)

	mux.HandleFunc("GET /snails", snailHandler.List)
	mux.HandleFunc("POST /snails", snailHandler.Create)
	mux.HandleFunc("POST /snails/starter", snailHandler.Starter)
	mux.HandleFunc("GET /snails/{id}", snailHandler.Get)
	mux.HandleFunc("PATCH /snails/{id}", snailHandler.Update)
	mux.HandleFunc("DELETE /snails/{id}", snailHandler.Delete)
	mux.HandleFunc("POST /quotes", snailHandler.Quote)

	mux.HandleFunc("PUT /location", locationHandler.Put)

	mux.HandleFunc("GET /profile", profileHandler.Get)
	mux.HandleFunc("PUT /profile", profileHandler.Update)
	mux.HandleFunc("POST /profile/balance", profileHandler.AdjustBalance)

	if d.Stream != nil {
		mux.Handle("GET /stream", d.Stream)
	}
	mux.Handle("GET /metrics", d.Metrics.Handler())

	return loggingMiddleware(mux)
}
