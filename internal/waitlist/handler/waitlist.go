package handler

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"slotline/internal/waitlist/service"
	apperrors "slotline/pkg/errors"
	httputil "slotline/pkg/http"
	"slotline/pkg/logger"
	"slotline/pkg/model"
)

const TenantHeader = "X-Tenant-ID"

type WaitlistHandler struct {
	service service.WaitlistService
	log     *logger.Logger
}

func NewWaitlistHandler(service service.WaitlistService, log *logger.Logger) *WaitlistHandler {
	return &WaitlistHandler{
		service: service,
		log:     log,
	}
}

func (h *WaitlistHandler) Join(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	tenantID := r.Header.Get(TenantHeader)

	var entry model.WaitlistEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		if writeErr := httputil.WriteError(w, apperrors.InvalidInput("Invalid request body")); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Join", "operation", "WriteError", "error", writeErr)
		}
		return
	}
	entry.TenantID = tenantID

	if err := h.service.Join(r.Context(), &entry); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Join", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, entry); err != nil {
		h.log.Error("failed to write created response", "handler", "Join", "operation", "WriteCreated", "error", err)
	}
}

func (h *WaitlistHandler) Leave(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	tenantID := r.Header.Get(TenantHeader)

	if err := h.service.Leave(r.Context(), tenantID, ps.ByName("id")); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Leave", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}

func (h *WaitlistHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	tenantID := r.Header.Get(TenantHeader)
	resourceID := r.URL.Query().Get("resource_id")

	entries, err := h.service.List(r.Context(), tenantID, resourceID)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "List", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, entries); err != nil {
		h.log.Error("failed to write success response", "handler", "List", "operation", "WriteSuccess", "error", err)
	}
}

func (h *WaitlistHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/waitlist", h.Join)
	router.GET("/api/v1/waitlist", h.List)
	router.DELETE("/api/v1/waitlist/:id", h.Leave)
}
