package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PurchaseItem is one (zone, quantity) line of a purchase.
type PurchaseItem struct {
	ZoneID   string `json:"zone_id"`
	Quantity int    `json:"quantity"`
}

// UnmarshalJSON accepts the legacy "seat_zone_id"/"seatZoneId" aliases some
// clients still send. Normalization happens here at the boundary only; the
// core never sees anything but ZoneID.
func (p *PurchaseItem) UnmarshalJSON(data []byte) error {
	var raw struct {
		ZoneID     string `json:"zone_id"`
		ZoneIDAlt  string `json:"zoneId"`
		SeatZoneID string `json:"seat_zone_id"`
		SeatZoneAl string `json:"seatZoneId"`
		Quantity   int    `json:"quantity"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.ZoneID = raw.ZoneID
	if p.ZoneID == "" {
		p.ZoneID = raw.ZoneIDAlt
	}
	if p.ZoneID == "" {
		p.ZoneID = raw.SeatZoneID
	}
	if p.ZoneID == "" {
		p.ZoneID = raw.SeatZoneAl
	}
	p.Quantity = raw.Quantity
	return nil
}

// CreateTicketsRequest is the canonical purchase payload.
type CreateTicketsRequest struct {
	PurchaserEmail string         `json:"purchaser_email"`
	EventID        string         `json:"event_id"`
	SessionID      string         `json:"session_id"`
	Items          []PurchaseItem `json:"items"`
}

// NormalizedEmail returns the trimmed, lowercased purchaser email.
func (r *CreateTicketsRequest) NormalizedEmail() string {
	return strings.ToLower(strings.TrimSpace(r.PurchaserEmail))
}

// CreateTicketsResponse summarizes one purchase. Zone fields describe the
// first line item as a representative sample; TicketCodes enumerates every
// issued code across all line items.
type CreateTicketsResponse struct {
	PaymentGroupRef string          `json:"payment_group_ref"`
	EventID         string          `json:"event_id"`
	SessionID       string          `json:"session_id"`
	ZoneID          string          `json:"zone_id"`
	ZoneName        string          `json:"zone_name"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	TicketCount     int             `json:"ticket_count"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	PaymentStatus   PaymentStatus   `json:"payment_status"`
	HoldExpiresAt   time.Time       `json:"hold_expires_at"`
	TicketCodes     []string        `json:"ticket_codes"`
}

type ConfirmPaymentResponse struct {
	PaymentGroupRef string          `json:"payment_group_ref"`
	PaymentStatus   PaymentStatus   `json:"payment_status"`
	PaidAt          time.Time       `json:"paid_at"`
	TotalPrice      decimal.Decimal `json:"total_price"`
}

// ZoneAvailability is the read-only committed-vs-capacity view of a zone.
type ZoneAvailability struct {
	ZoneID    string `json:"zone_id"`
	ZoneName  string `json:"zone_name"`
	Capacity  int    `json:"capacity"`
	Committed int    `json:"committed"`
	Remaining int    `json:"remaining"`
}
