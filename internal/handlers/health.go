package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/microcom/cyberquest/pkg/catalog"
	"github.com/microcom/cyberquest/pkg/game"
)

type HealthResponse struct {
	Status     string                 `json:"status"`
	Timestamp  time.Time              `json:"timestamp"`
	Service    string                 `json:"service"`
	Components map[string]interface{} `json:"components"`
}

type HealthHandler struct {
	store   game.SessionStore
	catalog *catalog.Catalog
	logger  *slog.Logger
}

func NewHealthHandler(store game.SessionStore, c *catalog.Catalog, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		store:   store,
		catalog: c,
		logger:  logger,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	h.logger.Debug("Health check requested",
		"method", r.Method,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr)

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	components := make(map[string]interface{})
	overallStatus := "healthy"

	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn("Session store health check failed", "error", err)
		components["session_store"] = "unhealthy"
		overallStatus = "degraded"
	} else {
		components["session_store"] = "healthy"
	}

	components["catalog"] = map[string]interface{}{
		"name":  h.catalog.Name(),
		"mode":  h.catalog.Mode(),
		"items": h.catalog.Len(),
	}

	response := HealthResponse{
		Status:     overallStatus,
		Timestamp:  time.Now(),
		Service:    "cyberquest",
		Components: components,
	}

	statusCode := http.StatusOK
	if overallStatus != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}

	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("Failed to encode health response", "error", err)
	}
}
