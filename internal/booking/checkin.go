package booking

import (
	"context"
	"fmt"
	"time"

	"ms-booking/internal/models"
)

// CheckIn admits one ticket at the venue door, exactly once. The sequence is
// resolve code, verify it belongs to this event and session, verify it is
// paid, then flip checked_in with a conditional update; when two scanners
// race on the same code, the storage layer lets only one through.
func (s *Service) CheckIn(ctx context.Context, eventID, sessionID, ticketCode string) (*models.Ticket, error) {
	if ticketCode == "" {
		return nil, fmt.Errorf("%w: ticket code is required", models.ErrInvalidRequest)
	}

	ticket, err := s.DB.GetTicketByCode(ctx, ticketCode)
	if err != nil {
		return nil, fmt.Errorf("ticket %s: %w", ticketCode, err)
	}

	if ticket.EventID != eventID || ticket.SessionID != sessionID {
		return nil, fmt.Errorf("ticket %s: %w", ticketCode, models.ErrSessionMismatch)
	}
	if ticket.Registration == models.RegistrationCancelled {
		return nil, fmt.Errorf("ticket %s: %w", ticketCode, models.ErrAlreadyCancelled)
	}
	if ticket.PaymentStatus != models.PaymentPaid {
		return nil, fmt.Errorf("ticket %s: %w", ticketCode, models.ErrNotPaid)
	}
	if ticket.CheckedIn {
		return nil, fmt.Errorf("ticket %s: %w", ticketCode, models.ErrAlreadyCheckedIn)
	}

	now := time.Now()
	won, err := s.DB.MarkCheckedIn(ctx, ticketCode, now)
	if err != nil {
		return nil, fmt.Errorf("check in ticket %s: %w", ticketCode, err)
	}
	if !won {
		// A concurrent scan got there first between our read and the update.
		return nil, fmt.Errorf("ticket %s: %w", ticketCode, models.ErrAlreadyCheckedIn)
	}

	if err := ticket.MarkCheckedIn(now); err != nil {
		return nil, fmt.Errorf("ticket %s: %w", ticketCode, err)
	}

	if s.Log != nil {
		s.Log.LogCheckin(ticketCode, "admitted")
	}
	if s.Kafka != nil {
		if err := s.Kafka.PublishTicketCheckedIn(*ticket); err != nil {
			s.logWarn("KAFKA", fmt.Sprintf("publish check-in for %s: %v", ticketCode, err))
		}
	}

	return ticket, nil
}

// CheckInByQR decodes a scanned QR and runs the normal check-in against the
// event and session embedded in the payload, which must also match the
// scanner's station.
func (s *Service) CheckInByQR(ctx context.Context, eventID, sessionID, encrypted string) (*models.Ticket, error) {
	if s.QR == nil {
		return nil, fmt.Errorf("%w: QR check-in is not enabled", models.ErrInvalidRequest)
	}
	payload, err := s.QR.Decode(encrypted)
	if err != nil {
		return nil, fmt.Errorf("%w: unreadable QR payload", models.ErrInvalidRequest)
	}
	if payload.EventID != eventID || payload.SessionID != sessionID {
		return nil, fmt.Errorf("%w: QR was issued for a different session", models.ErrSessionMismatch)
	}
	return s.CheckIn(ctx, eventID, sessionID, payload.TicketCode)
}
