package handlers

import (
	"net/http"
	"strings"

	"github.com/diagnosis/service-sphere/internal/domain"
	"github.com/diagnosis/service-sphere/internal/http/middleware"
	"github.com/diagnosis/service-sphere/internal/http/response"
	"github.com/diagnosis/service-sphere/internal/service"
)

type BookingsHandler struct {
	svc service.BookingService
}

func NewBookingsHandler(svc service.BookingService) *BookingsHandler {
	return &BookingsHandler{svc: svc}
}

func (h *BookingsHandler) List(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.svc.ListForCustomer(r.Context(), middleware.Actor(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{"success": true, "bookings": bookings})
}

func (h *BookingsHandler) ListForProvider(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.svc.ListForProvider(r.Context(), middleware.Actor(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{"success": true, "bookings": bookings})
}

func (h *BookingsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in domain.CreateBookingRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))

	b, err := h.svc.Create(r.Context(), middleware.Actor(r), &in, key)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, http.StatusCreated, map[string]any{"success": true, "booking": b})
}

func (h *BookingsHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var in domain.UpdateStatusRequest
	if !decodeJSON(w, r, &in) {
		return
	}

	b, err := h.svc.UpdateStatus(r.Context(), middleware.Actor(r), id, &in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Booking updated successfully",
		"booking": b,
	})
}

func (h *BookingsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	b, err := h.svc.Cancel(r.Context(), middleware.Actor(r), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Booking cancelled successfully",
		"booking": b,
	})
}
