package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/user/price-tracker/internal/delivery/http/response"
	"github.com/user/price-tracker/internal/usecase"
	"github.com/user/price-tracker/pkg/errs"
)

const healthCheckTimeout = 3 * time.Second

// HealthCheck pings one dependency.
type HealthCheck func(ctx context.Context) error

type Handler struct {
	runs    usecase.RunService
	catalog usecase.CatalogService
	checks  map[string]HealthCheck
	logger  *zap.Logger
}

func NewHandler(runs usecase.RunService, catalog usecase.CatalogService, checks map[string]HealthCheck, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{runs: runs, catalog: catalog, checks: checks, logger: logger}
}

// HandleStartRun triggers a pipeline run in the background.
func (h *Handler) HandleStartRun(w http.ResponseWriter, r *http.Request) {
	runID, err := h.runs.Start(r.Context())
	if err != nil {
		if errs.Is(err, errs.ErrRunInProgress) {
			h.writeJSONError(w, err.Error(), http.StatusConflict)
			return
		}
		h.logger.Error("Failed to start pipeline run", zap.Error(err))
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusAccepted, response.RunAcceptedResponse{
		Status:  "accepted",
		Message: "Pipeline run started",
		RunID:   runID,
	})
}

func (h *Handler) HandleLatestRun(w http.ResponseWriter, r *http.Request) {
	report, err := h.runs.LatestReport(r.Context())
	if err != nil {
		h.logger.Error("Failed to read latest run report", zap.Error(err))
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if report == nil {
		h.writeJSONError(w, "No pipeline run recorded yet", http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

func (h *Handler) HandleLatestAlerts(w http.ResponseWriter, r *http.Request) {
	summary, err := h.runs.LatestAlerts(r.Context())
	if err != nil {
		h.logger.Error("Failed to read latest alerts", zap.Error(err))
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if summary == nil {
		h.writeJSONError(w, "No alerts published yet", http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) HandleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.catalog.Product(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		if errs.Is(err, errs.ErrInvalidInput) {
			h.writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("Failed to read product", zap.Error(err))
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if product == nil {
		h.writeJSONError(w, "Product not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, response.NewProductResponse(product))
}

// HandleFailedProducts lists products whose fetch keeps failing, worst first.
func (h *Handler) HandleFailedProducts(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.writeJSONError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	failed, err := h.catalog.FailedProducts(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list failed products", zap.Error(err))
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, response.NewFailedProductsResponse(failed))
}

func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := response.HealthResponse{Status: "ok", Checks: make(map[string]string, len(h.checks))}
	status := http.StatusOK
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.Warn("Health check failed", zap.String("dependency", name), zap.Error(err))
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	h.writeJSON(w, status, resp)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to write JSON response", zap.Error(err))
	}
}

func (h *Handler) writeJSONError(w http.ResponseWriter, message string, status int) {
	h.writeJSON(w, status, response.ErrorResponse{Error: message})
}
