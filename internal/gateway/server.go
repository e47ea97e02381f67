package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", g.handleHealth())
	if g.metrics != nil {
		r.Handle("/metrics", g.metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/turn", g.handleTurn())
		r.Get("/participants/{id}/summary", g.handleSummary())
		if g.ledger != nil {
			r.Get("/participants/{id}/usage", g.handleUsage())
			r.Post("/participants/{id}/unlock", g.handleUnlock())
		}
	})

	return r
}
