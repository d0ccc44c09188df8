package booking_api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-booking/internal/models"
	"ms-booking/internal/utils"
)

// BookingService is what the transport needs from the core.
type BookingService interface {
	CreateTickets(ctx context.Context, req models.CreateTicketsRequest) (*models.CreateTicketsResponse, []models.Ticket, error)
	ConfirmPayment(ctx context.Context, groupRef string) (*models.ConfirmPaymentResponse, []models.Ticket, error)
	CancelPaymentGroup(ctx context.Context, groupRef string) ([]models.Ticket, error)
	CheckIn(ctx context.Context, eventID, sessionID, ticketCode string) (*models.Ticket, error)
	CheckInByQR(ctx context.Context, eventID, sessionID, encrypted string) (*models.Ticket, error)
	GetTicket(ctx context.Context, code string) (*models.Ticket, error)
	GetTicketsByPaymentGroup(ctx context.Context, groupRef string) ([]models.Ticket, error)
	GetZoneAvailability(ctx context.Context, zoneID string) (*models.ZoneAvailability, error)
	GetCheckedInCount(ctx context.Context, sessionID string) (int, error)
}

type Handler struct {
	Service BookingService
}

func NewHandler(service BookingService) *Handler {
	return &Handler{Service: service}
}

// Routes mounts the booking API. The checkinAuth middleware guards the
// staff-facing gate endpoints; pass nil to leave them open.
func (h *Handler) Routes(r chi.Router, checkinAuth func(http.Handler) http.Handler) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/tickets", h.CreateTickets)
		r.Get("/tickets/{ticketCode}", h.ViewTicket)
		r.Get("/tickets/{ticketCode}/qr", h.TicketQR)

		r.Route("/payment-groups/{groupRef}", func(r chi.Router) {
			r.Post("/confirm", h.ConfirmPayment)
			r.Post("/cancel", h.CancelPaymentGroup)
			r.Get("/tickets", h.ListGroupTickets)
		})

		r.Get("/zones/{zoneID}/availability", h.ZoneAvailability)
		r.Get("/sessions/{sessionID}/checked-in-count", h.CheckedInCount)

		r.Group(func(r chi.Router) {
			if checkinAuth != nil {
				r.Use(checkinAuth)
			}
			r.Post("/events/{eventID}/sessions/{sessionID}/check-in", h.CheckIn)
		})
	})
}

func (h *Handler) CreateTickets(w http.ResponseWriter, r *http.Request) {
	var req models.CreateTicketsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	resp, _, err := h.Service.CreateTickets(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "tickets issued", resp)
}

func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	groupRef := chi.URLParam(r, "groupRef")
	resp, _, err := h.Service.ConfirmPayment(r.Context(), groupRef)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "payment confirmed", resp)
}

func (h *Handler) CancelPaymentGroup(w http.ResponseWriter, r *http.Request) {
	groupRef := chi.URLParam(r, "groupRef")
	tickets, err := h.Service.CancelPaymentGroup(r.Context(), groupRef)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "payment group cancelled", tickets)
}

func (h *Handler) ListGroupTickets(w http.ResponseWriter, r *http.Request) {
	groupRef := chi.URLParam(r, "groupRef")
	tickets, err := h.Service.GetTicketsByPaymentGroup(r.Context(), groupRef)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "tickets", tickets)
}

// CheckIn accepts either a plain ticket code or an encrypted QR payload from
// a scanner.
func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	sessionID := chi.URLParam(r, "sessionID")

	var body struct {
		TicketCode  string `json:"ticket_code"`
		EncryptedQR string `json:"encrypted_qr"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if body.TicketCode == "" && body.EncryptedQR == "" {
		utils.WriteError(w, http.StatusBadRequest, "ticket_code or encrypted_qr is required", nil)
		return
	}

	var (
		ticket *models.Ticket
		err    error
	)
	if body.TicketCode != "" {
		ticket, err = h.Service.CheckIn(r.Context(), eventID, sessionID, body.TicketCode)
	} else {
		ticket, err = h.Service.CheckInByQR(r.Context(), eventID, sessionID, body.EncryptedQR)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "checked in", ticket)
}

func (h *Handler) ViewTicket(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.Service.GetTicket(r.Context(), chi.URLParam(r, "ticketCode"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "ticket", ticket)
}

// TicketQR serves the stored QR image for a ticket.
func (h *Handler) TicketQR(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.Service.GetTicket(r.Context(), chi.URLParam(r, "ticketCode"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if len(ticket.QRCode) == 0 {
		utils.WriteError(w, http.StatusNotFound, "ticket has no QR code", nil)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(ticket.QRCode)
}

func (h *Handler) ZoneAvailability(w http.ResponseWriter, r *http.Request) {
	availability, err := h.Service.GetZoneAvailability(r.Context(), chi.URLParam(r, "zoneID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "zone availability", availability)
}

func (h *Handler) CheckedInCount(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	count, err := h.Service.GetCheckedInCount(r.Context(), sessionID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "checked-in count", map[string]interface{}{
		"session_id":       sessionID,
		"checked_in_count": count,
	})
}

// writeServiceError maps core sentinel errors to stable statuses so clients
// can tell "offer another zone" from "already used" from "not found".
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidRequest), errors.Is(err, models.ErrSessionMismatch):
		utils.WriteError(w, http.StatusBadRequest, "invalid request", err)
	case errors.Is(err, models.ErrNotFound):
		utils.WriteError(w, http.StatusNotFound, "not found", err)
	case errors.Is(err, models.ErrNotPaid):
		utils.WriteError(w, http.StatusPaymentRequired, "ticket not paid", err)
	case errors.Is(err, models.ErrCapacityExceeded):
		utils.WriteError(w, http.StatusUnprocessableEntity, "capacity exceeded", err)
	case errors.Is(err, models.ErrZoneLocked):
		utils.WriteError(w, http.StatusConflict, "zone busy, retry shortly", err)
	case errors.Is(err, models.ErrAlreadyCheckedIn),
		errors.Is(err, models.ErrAlreadyCancelled),
		errors.Is(err, models.ErrAlreadyPaid):
		utils.WriteError(w, http.StatusConflict, "conflict", err)
	default:
		utils.WriteError(w, http.StatusInternalServerError, "internal error", err)
	}
}
