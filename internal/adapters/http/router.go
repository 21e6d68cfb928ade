package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/viralforge/deal-agents/internal/application"
)

type Handler struct {
	service   *application.Service
	jwtSecret []byte
}

// NewHandler binds the HTTP surface to the application service. When
// jwtSecret is empty the bearer value itself is taken as the actor id.
func NewHandler(service *application.Service, jwtSecret string) *Handler {
	h := &Handler{service: service}
	if jwtSecret != "" {
		h.jwtSecret = []byte(jwtSecret)
	}
	return h
}

func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(handler.authMiddleware)
			r.Post("/negotiations", handler.startNegotiation)
			r.Post("/negotiations/resume", handler.resumeNegotiation)
			r.Get("/negotiations/{contract_id}", handler.getNegotiation)
			r.Post("/settlements/audit", handler.auditContent)
			r.Post("/settlements", handler.settle)
			r.Get("/settlements/{contract_id}", handler.getSettlement)
			r.Get("/activity/{entity_id}", handler.listActivity)
			r.Get("/graphs/negotiation", handler.negotiationGraph)
			r.Get("/graphs/settlement", handler.settlementGraph)
		})
	})
	return r
}
