package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/user/price-tracker/internal/delivery/http/handler"
	"github.com/user/price-tracker/internal/delivery/http/middleware"
	"github.com/user/price-tracker/pkg/metrics"
)

func New(h *handler.Handler, m *metrics.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics(m))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))

	r.Handle("/metrics", m.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.HandleHealthCheck)
		r.Post("/runs", h.HandleStartRun)
		r.Get("/runs/latest", h.HandleLatestRun)
		r.Get("/alerts/latest", h.HandleLatestAlerts)
		r.Get("/products/{productID}", h.HandleGetProduct)
		r.Get("/failed-products", h.HandleFailedProducts)
	})

	return r
}
