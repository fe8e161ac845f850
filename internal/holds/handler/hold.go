package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	bookingservice "slotline/internal/bookings/service"
	"slotline/internal/holds/service"
	apperrors "slotline/pkg/errors"
	httputil "slotline/pkg/http"
	"slotline/pkg/logger"
	"slotline/pkg/model"
)

const (
	TenantHeader = "X-Tenant-ID"
	// OwnerTokenHeader authenticates release and promote calls for a
	// hold. The token is only ever shown to the hold's creator.
	OwnerTokenHeader = "X-Owner-Token"
)

type CreateHoldPayload struct {
	ResourceID string    `json:"resource_id"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	TTLSeconds int       `json:"ttl_seconds,omitempty"`
}

type PromoteHoldPayload struct {
	ServiceID  string `json:"service_id"`
	CustomerID string `json:"customer_id"`
}

type HoldHandler struct {
	service  service.HoldService
	bookings bookingservice.BookingService
	log      *logger.Logger
}

func NewHoldHandler(service service.HoldService, bookings bookingservice.BookingService, log *logger.Logger) *HoldHandler {
	return &HoldHandler{
		service:  service,
		bookings: bookings,
		log:      log,
	}
}

func (h *HoldHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	tenantID := r.Header.Get(TenantHeader)

	var payload CreateHoldPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		if writeErr := httputil.WriteError(w, apperrors.InvalidInput("Invalid request body")); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Create", "operation", "WriteError", "error", writeErr)
		}
		return
	}
	if payload.TTLSeconds < 0 {
		if writeErr := httputil.WriteError(w, apperrors.InvalidInput("ttl_seconds cannot be negative")); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Create", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	hold, err := h.service.Create(r.Context(), service.CreateHoldRequest{
		TenantID:   tenantID,
		ResourceID: payload.ResourceID,
		Interval:   model.NewInterval(payload.Start, payload.End),
		TTL:        time.Duration(payload.TTLSeconds) * time.Second,
	})
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Create", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, hold); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *HoldHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	tenantID := r.Header.Get(TenantHeader)

	hold, err := h.service.Get(r.Context(), tenantID, ps.ByName("id"))
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetByID", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	// The owner token is write-once at creation time.
	hold.OwnerToken = ""
	if err := httputil.WriteSuccess(w, hold); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *HoldHandler) Release(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	tenantID := r.Header.Get(TenantHeader)
	ownerToken := r.Header.Get(OwnerTokenHeader)

	if err := h.service.Release(r.Context(), tenantID, ps.ByName("id"), ownerToken); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Release", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}

// Promote converts a live hold into a pending booking in one call.
func (h *HoldHandler) Promote(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	tenantID := r.Header.Get(TenantHeader)
	ownerToken := r.Header.Get(OwnerTokenHeader)

	var payload PromoteHoldPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		if writeErr := httputil.WriteError(w, apperrors.InvalidInput("Invalid request body")); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Promote", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	draft, err := h.service.Promote(r.Context(), tenantID, ps.ByName("id"), ownerToken)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Promote", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	booking, err := h.bookings.CreateFromDraft(r.Context(), draft, payload.ServiceID, payload.CustomerID)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Promote", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, booking); err != nil {
		h.log.Error("failed to write created response", "handler", "Promote", "operation", "WriteCreated", "error", err)
	}
}

func (h *HoldHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/holds", h.Create)
	router.GET("/api/v1/holds/:id", h.GetByID)
	router.DELETE("/api/v1/holds/:id", h.Release)
	router.POST("/api/v1/holds/:id/promote", h.Promote)
}
