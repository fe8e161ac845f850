package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"slotline/internal/bookings/service"
	apperrors "slotline/pkg/errors"
	httputil "slotline/pkg/http"
	"slotline/pkg/logger"
	"slotline/pkg/model"
)

const (
	TenantHeader = "X-Tenant-ID"
	// IdempotencyKeyHeader makes POST /bookings safe to retry.
	IdempotencyKeyHeader = "Idempotency-Key"
)

type CreateBookingPayload struct {
	ResourceID string    `json:"resource_id"`
	ServiceID  string    `json:"service_id"`
	CustomerID string    `json:"customer_id"`
	Start      time.Time `json:"start"`
}

type CancelBookingPayload struct {
	Actor  string `json:"actor,omitempty"`
	Reason string `json:"reason,omitempty"`
}

type RescheduleBookingPayload struct {
	NewStart time.Time `json:"new_start"`
}

// ConfirmBookingPayload covers out-of-band payment results recorded by an
// operator. Success defaults to true when the body is empty.
type ConfirmBookingPayload struct {
	Success   *bool  `json:"success,omitempty"`
	Reference string `json:"reference,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

type BookingHandler struct {
	service service.BookingService
	log     *logger.Logger
}

func NewBookingHandler(service service.BookingService, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log,
	}
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	tenantID := r.Header.Get(TenantHeader)

	var payload CreateBookingPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		if writeErr := httputil.WriteError(w, apperrors.InvalidInput("Invalid request body")); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Create", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	booking, err := h.service.Create(r.Context(), service.CreateBookingRequest{
		TenantID:       tenantID,
		ResourceID:     payload.ResourceID,
		ServiceID:      payload.ServiceID,
		CustomerID:     payload.CustomerID,
		Start:          payload.Start,
		IdempotencyKey: r.Header.Get(IdempotencyKeyHeader),
	})
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Create", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, booking); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	tenantID := r.Header.Get(TenantHeader)

	booking, err := h.service.Get(r.Context(), tenantID, ps.ByName("id"))
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetByID", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	tenantID := r.Header.Get(TenantHeader)
	customerID := r.URL.Query().Get("customer_id")

	bookings, err := h.service.ListByCustomer(r.Context(), tenantID, customerID)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "List", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, bookings); err != nil {
		h.log.Error("failed to write success response", "handler", "List", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	tenantID := r.Header.Get(TenantHeader)

	var payload CancelBookingPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		if writeErr := httputil.WriteError(w, apperrors.InvalidInput("Invalid request body")); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Cancel", "operation", "WriteError", "error", writeErr)
		}
		return
	}
	actor := payload.Actor
	if actor == "" {
		actor = "customer"
	}

	if err := h.service.Cancel(r.Context(), tenantID, ps.ByName("id"), actor, payload.Reason); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Cancel", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}

func (h *BookingHandler) Reschedule(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	tenantID := r.Header.Get(TenantHeader)

	var payload RescheduleBookingPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		if writeErr := httputil.WriteError(w, apperrors.InvalidInput("Invalid request body")); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Reschedule", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	booking, err := h.service.Reschedule(r.Context(), tenantID, ps.ByName("id"), payload.NewStart)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Reschedule", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "Reschedule", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) Confirm(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	tenantID := r.Header.Get(TenantHeader)

	var payload ConfirmBookingPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		if writeErr := httputil.WriteError(w, apperrors.InvalidInput("Invalid request body")); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Confirm", "operation", "WriteError", "error", writeErr)
		}
		return
	}
	success := true
	if payload.Success != nil {
		success = *payload.Success
	}

	booking, err := h.service.Confirm(r.Context(), tenantID, model.PaymentResult{
		BookingID: ps.ByName("id"),
		Success:   success,
		Reference: payload.Reference,
		Reason:    payload.Reason,
	})
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Confirm", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "Confirm", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) MarkNoShow(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	tenantID := r.Header.Get(TenantHeader)

	if err := h.service.MarkNoShow(r.Context(), tenantID, ps.ByName("id"), "staff"); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "MarkNoShow", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}

func (h *BookingHandler) Complete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	tenantID := r.Header.Get(TenantHeader)

	if err := h.service.Complete(r.Context(), tenantID, ps.ByName("id")); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Complete", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/bookings", h.Create)
	router.GET("/api/v1/bookings", h.List)
	router.GET("/api/v1/bookings/:id", h.GetByID)
	router.POST("/api/v1/bookings/:id/confirm", h.Confirm)
	router.POST("/api/v1/bookings/:id/cancel", h.Cancel)
	router.POST("/api/v1/bookings/:id/reschedule", h.Reschedule)
	router.POST("/api/v1/bookings/:id/no-show", h.MarkNoShow)
	router.POST("/api/v1/bookings/:id/complete", h.Complete)
}
