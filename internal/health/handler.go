package health

import (
	"context"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"slotline/pkg/client"
	httputil "slotline/pkg/http"
	"slotline/pkg/logger"
)

type Response struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
	Cache    string `json:"cache,omitempty"`
}

// Handler serves liveness and readiness probes. Readiness checks the
// mongo and redis connections the engine actually depends on.
type Handler struct {
	client *client.Client
	log    *logger.Logger
}

func NewHandler(c *client.Client, log *logger.Logger) *Handler {
	return &Handler{
		client: c,
		log:    log,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := httputil.WriteJSON(w, http.StatusOK, Response{Status: "ok"}); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Health", "operation", "WriteJSON", "error", err)
	}
}

func (h *Handler) Ready(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := Response{Status: "ready", Database: "ok"}

	if h.client.Mongo != nil {
		if err := h.client.Mongo.Ping(ctx, nil); err != nil {
			h.log.Error("Database health check failed", "error", err, "path", r.URL.Path)
			resp = Response{Status: "unavailable", Database: "error"}
			if writeErr := httputil.WriteJSON(w, http.StatusServiceUnavailable, resp); writeErr != nil {
				h.log.Error("failed to write JSON response", "handler", "Ready", "operation", "WriteJSON", "error", writeErr)
			}
			return
		}
	}

	if h.client.Redis != nil {
		if err := h.client.Redis.Ping(ctx).Err(); err != nil {
			// Redis only backs the idempotency cache; degraded, not down.
			h.log.Warn("Cache health check failed", "error", err)
			resp.Cache = "error"
		} else {
			resp.Cache = "ok"
		}
	}

	if err := httputil.WriteJSON(w, http.StatusOK, resp); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Ready", "operation", "WriteJSON", "error", err)
	}
}

func (h *Handler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
}
