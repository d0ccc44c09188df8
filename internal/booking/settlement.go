package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"ms-booking/internal/models"
)

// ConfirmPayment settles a payment group: every ticket sharing the reference
// flips to PAID/CONFIRMED in one transaction, or none do. Confirming an
// already-paid group is a safe no-op that returns the same tickets without
// touching paid_at.
func (s *Service) ConfirmPayment(ctx context.Context, groupRef string) (*models.ConfirmPaymentResponse, []models.Ticket, error) {
	tickets, err := s.DB.GetTicketsByPaymentGroup(ctx, groupRef)
	if err != nil {
		return nil, nil, fmt.Errorf("load payment group %s: %w", groupRef, err)
	}
	if len(tickets) == 0 {
		return nil, nil, fmt.Errorf("payment group %s: %w", groupRef, models.ErrNotFound)
	}

	allPaid := true
	now := time.Now()
	for i := range tickets {
		if tickets[i].PaymentStatus != models.PaymentPaid {
			allPaid = false
		}
		// Dry-run the transition on the in-memory copies so an unconfirmable
		// group (e.g. swept by the hold sweeper) is rejected before any row
		// is touched.
		probe := tickets[i]
		if err := probe.ConfirmPayment(now); err != nil {
			return nil, nil, fmt.Errorf("payment group %s: %w", groupRef, err)
		}
	}

	if !allPaid {
		if err := s.DB.ConfirmGroup(ctx, groupRef, now); err != nil {
			return nil, nil, fmt.Errorf("confirm payment group %s: %w", groupRef, err)
		}
		tickets, err = s.DB.GetTicketsByPaymentGroup(ctx, groupRef)
		if err != nil {
			return nil, nil, fmt.Errorf("reload payment group %s: %w", groupRef, err)
		}

		s.logInfo("BOOKING", fmt.Sprintf("[CONFIRM] %s - %d tickets settled", groupRef, len(tickets)))

		if s.Kafka != nil {
			if err := s.Kafka.PublishPaymentConfirmed(groupRef, tickets); err != nil {
				s.logWarn("KAFKA", fmt.Sprintf("publish payment confirmed for %s: %v", groupRef, err))
			}
		}
	}

	return buildConfirmResponse(groupRef, tickets), tickets, nil
}

// CancelPaymentGroup cancels an entire unpaid purchase, releasing its
// capacity. A group with any paid ticket cannot be cancelled here; a group
// already fully cancelled is returned as-is.
func (s *Service) CancelPaymentGroup(ctx context.Context, groupRef string) ([]models.Ticket, error) {
	tickets, err := s.DB.GetTicketsByPaymentGroup(ctx, groupRef)
	if err != nil {
		return nil, fmt.Errorf("load payment group %s: %w", groupRef, err)
	}
	if len(tickets) == 0 {
		return nil, fmt.Errorf("payment group %s: %w", groupRef, models.ErrNotFound)
	}

	allCancelled := true
	now := time.Now()
	for i := range tickets {
		if tickets[i].Registration == models.RegistrationCancelled {
			continue
		}
		allCancelled = false
		probe := tickets[i]
		if err := probe.Cancel(models.CancelledByUser, now); err != nil {
			return nil, fmt.Errorf("payment group %s: %w", groupRef, err)
		}
	}
	if allCancelled {
		return tickets, nil
	}

	if err := s.DB.CancelGroup(ctx, groupRef, models.CancelledByUser, now); err != nil {
		return nil, fmt.Errorf("cancel payment group %s: %w", groupRef, err)
	}
	tickets, err = s.DB.GetTicketsByPaymentGroup(ctx, groupRef)
	if err != nil {
		return nil, fmt.Errorf("reload payment group %s: %w", groupRef, err)
	}

	s.logInfo("BOOKING", fmt.Sprintf("[CANCEL] %s - %d tickets cancelled", groupRef, len(tickets)))

	if s.Kafka != nil {
		if err := s.Kafka.PublishGroupCancelled(groupRef, tickets); err != nil {
			s.logWarn("KAFKA", fmt.Sprintf("publish group cancelled for %s: %v", groupRef, err))
		}
	}

	return tickets, nil
}

func buildConfirmResponse(groupRef string, tickets []models.Ticket) *models.ConfirmPaymentResponse {
	total := decimal.Zero
	var paidAt time.Time
	for _, t := range tickets {
		total = total.Add(t.UnitPrice)
		if paidAt.IsZero() || (!t.PaidAt.IsZero() && t.PaidAt.Before(paidAt)) {
			paidAt = t.PaidAt
		}
	}
	return &models.ConfirmPaymentResponse{
		PaymentGroupRef: groupRef,
		PaymentStatus:   models.PaymentPaid,
		PaidAt:          paidAt,
		TotalPrice:      total,
	}
}
