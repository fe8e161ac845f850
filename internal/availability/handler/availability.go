package handler

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"slotline/internal/availability/service"
	apperrors "slotline/pkg/errors"
	httputil "slotline/pkg/http"
	"slotline/pkg/logger"
	"slotline/pkg/model"
)

// TenantHeader carries the caller's tenant on every request.
const TenantHeader = "X-Tenant-ID"

type AvailabilityHandler struct {
	service service.AvailabilityService
	log     *logger.Logger
}

func NewAvailabilityHandler(service service.AvailabilityService, log *logger.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{
		service: service,
		log:     log,
	}
}

func (h *AvailabilityHandler) CreateRule(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	tenantID := r.Header.Get(TenantHeader)

	var rule model.AvailabilityRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		if writeErr := httputil.WriteError(w, apperrors.InvalidInput("Invalid request body")); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "CreateRule", "operation", "WriteError", "error", writeErr)
		}
		return
	}
	rule.TenantID = tenantID

	if err := h.service.CreateRule(r.Context(), &rule); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "CreateRule", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, rule); err != nil {
		h.log.Error("failed to write created response", "handler", "CreateRule", "operation", "WriteCreated", "error", err)
	}
}

func (h *AvailabilityHandler) DeleteRule(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	tenantID := r.Header.Get(TenantHeader)
	id := ps.ByName("id")

	if err := h.service.DeleteRule(r.Context(), tenantID, id); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "DeleteRule", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}

func (h *AvailabilityHandler) ListRules(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	tenantID := r.Header.Get(TenantHeader)
	resourceID := r.URL.Query().Get("resource_id")

	rules, err := h.service.ListRules(r.Context(), tenantID, resourceID)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ListRules", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, rules); err != nil {
		h.log.Error("failed to write success response", "handler", "ListRules", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AvailabilityHandler) CreateException(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	tenantID := r.Header.Get(TenantHeader)

	var exc model.AvailabilityException
	if err := json.NewDecoder(r.Body).Decode(&exc); err != nil {
		if writeErr := httputil.WriteError(w, apperrors.InvalidInput("Invalid request body")); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "CreateException", "operation", "WriteError", "error", writeErr)
		}
		return
	}
	exc.TenantID = tenantID

	if err := h.service.CreateException(r.Context(), &exc); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "CreateException", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, exc); err != nil {
		h.log.Error("failed to write created response", "handler", "CreateException", "operation", "WriteCreated", "error", err)
	}
}

func (h *AvailabilityHandler) DeleteException(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	tenantID := r.Header.Get(TenantHeader)
	id := ps.ByName("id")

	if err := h.service.DeleteException(r.Context(), tenantID, id); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "DeleteException", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}

func (h *AvailabilityHandler) OpenIntervals(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	tenantID := r.Header.Get(TenantHeader)
	query := r.URL.Query()

	intervals, err := h.service.OpenIntervals(r.Context(), tenantID,
		query.Get("resource_id"), query.Get("from"), query.Get("to"))
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "OpenIntervals", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, intervals); err != nil {
		h.log.Error("failed to write success response", "handler", "OpenIntervals", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AvailabilityHandler) AvailableSlots(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	tenantID := r.Header.Get(TenantHeader)
	query := r.URL.Query()

	slots, err := h.service.AvailableSlots(r.Context(), tenantID,
		query.Get("resource_id"), query.Get("service_id"), query.Get("from"), query.Get("to"))
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "AvailableSlots", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, slots); err != nil {
		h.log.Error("failed to write success response", "handler", "AvailableSlots", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AvailabilityHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/availability/rules", h.CreateRule)
	router.GET("/api/v1/availability/rules", h.ListRules)
	router.DELETE("/api/v1/availability/rules/:id", h.DeleteRule)
	router.POST("/api/v1/availability/exceptions", h.CreateException)
	router.DELETE("/api/v1/availability/exceptions/:id", h.DeleteException)
	router.GET("/api/v1/availability/open", h.OpenIntervals)
	router.GET("/api/v1/availability/slots", h.AvailableSlots)
}
