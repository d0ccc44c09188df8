package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "UNPAID"
	PaymentPaid   PaymentStatus = "PAID"
)

type RegistrationStatus string

const (
	RegistrationPending   RegistrationStatus = "PENDING"
	RegistrationConfirmed RegistrationStatus = "CONFIRMED"
	RegistrationCancelled RegistrationStatus = "CANCELLED"
)

type CancelledReason string

const (
	CancelledPaymentTimeout CancelledReason = "PAYMENT_TIMEOUT"
	CancelledByUser         CancelledReason = "USER_CANCELLED"
)

// Ticket is one admission unit: one row per seat sold, not per purchase.
// Event, session and zone references are denormalized so check-in resolves a
// code without join chains.
type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	TicketCode      string             `bun:"ticket_code,pk" json:"ticket_code"`
	PaymentGroupRef string             `bun:"payment_group_ref,notnull" json:"payment_group_ref"`
	ZoneID          string             `bun:"zone_id,notnull" json:"zone_id"`
	SessionID       string             `bun:"session_id,notnull" json:"session_id"`
	EventID         string             `bun:"event_id,notnull" json:"event_id"`
	PurchaserID     string             `bun:"purchaser_id,notnull" json:"purchaser_id"`
	UnitPrice       decimal.Decimal    `bun:"unit_price,notnull" json:"unit_price"`
	PaymentStatus   PaymentStatus      `bun:"payment_status,notnull" json:"payment_status"`
	Registration    RegistrationStatus `bun:"registration_status,notnull" json:"registration_status"`
	HoldExpiresAt   time.Time          `bun:"hold_expires_at,notnull" json:"hold_expires_at"`
	CheckedIn       bool               `bun:"checked_in,notnull" json:"checked_in"`
	CheckedInAt     time.Time          `bun:"checked_in_at,nullzero" json:"checked_in_at,omitempty"`
	CancelledReason CancelledReason    `bun:"cancelled_reason,nullzero" json:"cancelled_reason,omitempty"`
	QRCode          []byte             `bun:"qr_code" json:"-"`
	CreatedAt       time.Time          `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt       time.Time          `bun:"updated_at,notnull" json:"updated_at"`
	PaidAt          time.Time          `bun:"paid_at,nullzero" json:"paid_at,omitempty"`
}

// Committed reports whether this ticket still occupies a unit of its zone's
// capacity: any non-cancelled ticket counts, paid or not.
func (t *Ticket) Committed() bool {
	return t.Registration != RegistrationCancelled
}

// ConfirmPayment moves the ticket to PAID/CONFIRMED. Re-confirming a paid
// ticket is a no-op so group confirmation stays idempotent; paidAt is never
// overwritten.
func (t *Ticket) ConfirmPayment(now time.Time) error {
	if t.Registration == RegistrationCancelled {
		return ErrAlreadyCancelled
	}
	if t.PaymentStatus == PaymentPaid {
		return nil
	}
	t.PaymentStatus = PaymentPaid
	t.Registration = RegistrationConfirmed
	t.PaidAt = now
	t.UpdatedAt = now
	return nil
}

// MarkCheckedIn flips the ticket to its terminal CHECKED_IN state. The
// storage layer additionally guards this with a conditional update; this
// method is the transition table for the in-memory copy.
func (t *Ticket) MarkCheckedIn(now time.Time) error {
	if t.Registration == RegistrationCancelled {
		return ErrAlreadyCancelled
	}
	if t.PaymentStatus != PaymentPaid {
		return ErrNotPaid
	}
	if t.CheckedIn {
		return ErrAlreadyCheckedIn
	}
	t.CheckedIn = true
	t.CheckedInAt = now
	t.UpdatedAt = now
	return nil
}

// Cancel releases the ticket's capacity. Checked-in and already paid tickets
// cannot be cancelled through this transition.
func (t *Ticket) Cancel(reason CancelledReason, now time.Time) error {
	if t.CheckedIn {
		return ErrAlreadyCheckedIn
	}
	if t.Registration == RegistrationCancelled {
		return ErrAlreadyCancelled
	}
	if t.PaymentStatus == PaymentPaid {
		return ErrAlreadyPaid
	}
	t.Registration = RegistrationCancelled
	t.CancelledReason = reason
	t.UpdatedAt = now
	return nil
}
