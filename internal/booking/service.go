package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/qr"
	"ms-booking/internal/utils"
)

// Store is the persistence contract the booking core needs: catalog reads,
// the ticket table, and the committed-count query behind the capacity check.
type Store interface {
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	GetSession(ctx context.Context, id string) (*models.Session, error)
	GetZone(ctx context.Context, id string) (*models.Zone, error)

	CountCommitted(ctx context.Context, zoneID string) (int, error)
	TicketCodeExists(ctx context.Context, code string) (bool, error)
	InsertTickets(ctx context.Context, tickets []models.Ticket) error

	GetTicketByCode(ctx context.Context, code string) (*models.Ticket, error)
	GetTicketsByPaymentGroup(ctx context.Context, groupRef string) ([]models.Ticket, error)
	ConfirmGroup(ctx context.Context, groupRef string, now time.Time) error
	MarkCheckedIn(ctx context.Context, code string, now time.Time) (bool, error)
	CancelGroup(ctx context.Context, groupRef string, reason models.CancelledReason, now time.Time) error
	CancelExpiredHolds(ctx context.Context, now time.Time) (int64, error)
	CountCheckedInBySession(ctx context.Context, sessionID string) (int, error)
}

// PurchaserResolver maps an email to an identity, creating a guest on first
// contact.
type PurchaserResolver interface {
	Resolve(ctx context.Context, email string) (*models.Purchaser, error)
}

// ZoneLocker serializes the capacity check-and-insert per zone.
type ZoneLocker interface {
	LockZones(ctx context.Context, zoneIDs []string, groupRef string) (bool, error)
	UnlockZones(ctx context.Context, zoneIDs []string, groupRef string) error
}

// EventPublisher streams booking lifecycle events.
type EventPublisher interface {
	PublishTicketsIssued(groupRef string, tickets []models.Ticket) error
	PublishPaymentConfirmed(groupRef string, tickets []models.Ticket) error
	PublishTicketCheckedIn(ticket models.Ticket) error
	PublishGroupCancelled(groupRef string, tickets []models.Ticket) error
}

// QRCodec renders a ticket's admission QR image and reads scanned payloads
// back.
type QRCodec interface {
	Encode(p qr.Payload) ([]byte, error)
	Decode(encrypted string) (qr.Payload, error)
}

const codeRetryLimit = 5

// Service is the reservation-and-settlement engine.
type Service struct {
	DB         Store
	Resolver   PurchaserResolver
	Locks      ZoneLocker
	Kafka      EventPublisher
	QR         QRCodec
	Log        *logger.Logger
	HoldWindow time.Duration
}

func NewService(db Store, resolver PurchaserResolver, locks ZoneLocker, kafka EventPublisher, qrGen QRCodec, log *logger.Logger, holdWindow time.Duration) *Service {
	if holdWindow <= 0 {
		holdWindow = 10 * time.Minute
	}
	return &Service{
		DB:         db,
		Resolver:   resolver,
		Locks:      locks,
		Kafka:      kafka,
		QR:         qrGen,
		Log:        log,
		HoldWindow: holdWindow,
	}
}

func (s *Service) logInfo(category, message string) {
	if s.Log != nil {
		s.Log.Info(category, message)
	}
}

func (s *Service) logWarn(category, message string) {
	if s.Log != nil {
		s.Log.Warn(category, message)
	}
}

// CreateTickets validates a purchase, reserves capacity and issues every
// ticket of the request under one payment group. All line items succeed or
// the whole call fails; no rows are written on a rejected batch.
func (s *Service) CreateTickets(ctx context.Context, req models.CreateTicketsRequest) (*models.CreateTicketsResponse, []models.Ticket, error) {
	email := req.NormalizedEmail()
	if email == "" {
		return nil, nil, fmt.Errorf("%w: purchaser email is required", models.ErrInvalidRequest)
	}
	if len(req.Items) == 0 {
		return nil, nil, fmt.Errorf("%w: at least one line item is required", models.ErrInvalidRequest)
	}
	for _, item := range req.Items {
		if item.ZoneID == "" {
			return nil, nil, fmt.Errorf("%w: zone id is required", models.ErrInvalidRequest)
		}
		if item.Quantity <= 0 {
			return nil, nil, fmt.Errorf("%w: quantity must be positive", models.ErrInvalidRequest)
		}
	}

	event, err := s.DB.GetEvent(ctx, req.EventID)
	if err != nil {
		return nil, nil, fmt.Errorf("event %s: %w", req.EventID, wrapLookup(err))
	}
	session, err := s.DB.GetSession(ctx, req.SessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("session %s: %w", req.SessionID, wrapLookup(err))
	}
	if session.EventID != event.ID {
		return nil, nil, fmt.Errorf("%w: session %s does not belong to event %s", models.ErrInvalidRequest, session.ID, event.ID)
	}

	// Merge duplicate zone lines so each zone gets one admission decision.
	requested := make(map[string]int, len(req.Items))
	zoneOrder := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		if _, seen := requested[item.ZoneID]; !seen {
			zoneOrder = append(zoneOrder, item.ZoneID)
		}
		requested[item.ZoneID] += item.Quantity
	}

	zones := make(map[string]*models.Zone, len(zoneOrder))
	for _, zoneID := range zoneOrder {
		zone, err := s.DB.GetZone(ctx, zoneID)
		if err != nil {
			return nil, nil, fmt.Errorf("zone %s: %w", zoneID, wrapLookup(err))
		}
		if zone.SessionID != session.ID {
			return nil, nil, fmt.Errorf("%w: zone %s does not belong to session %s", models.ErrInvalidRequest, zoneID, session.ID)
		}
		zones[zoneID] = zone
	}

	purchaser, err := s.Resolver.Resolve(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve purchaser: %w", err)
	}

	now := time.Now()
	groupRef, err := utils.GeneratePaymentGroupRef(now)
	if err != nil {
		return nil, nil, fmt.Errorf("generate payment group ref: %w", err)
	}

	// The zone locks serialize the committed-count read against concurrent
	// purchases for the same zones; without them two callers could both see
	// the last unit as free.
	ok, err := s.Locks.LockZones(ctx, zoneOrder, groupRef)
	if err != nil {
		return nil, nil, fmt.Errorf("lock zones: %w", err)
	}
	if !ok {
		return nil, nil, models.ErrZoneLocked
	}
	defer func() {
		if err := s.Locks.UnlockZones(ctx, zoneOrder, groupRef); err != nil {
			s.logWarn("BOOKING", fmt.Sprintf("failed to unlock zones for %s: %v", groupRef, err))
		}
	}()

	for _, zoneID := range zoneOrder {
		zone := zones[zoneID]
		committed, err := s.DB.CountCommitted(ctx, zoneID)
		if err != nil {
			return nil, nil, fmt.Errorf("count committed for zone %s: %w", zoneID, err)
		}
		if committed+requested[zoneID] > zone.Capacity {
			return nil, nil, fmt.Errorf("zone %s has %d of %d seats committed, cannot issue %d more: %w",
				zone.Name, committed, zone.Capacity, requested[zoneID], models.ErrCapacityExceeded)
		}
	}

	holdExpiresAt := now.Add(s.HoldWindow)
	tickets := make([]models.Ticket, 0)
	for _, zoneID := range zoneOrder {
		zone := zones[zoneID]
		for i := 0; i < requested[zoneID]; i++ {
			code, err := s.newTicketCode(ctx)
			if err != nil {
				return nil, nil, err
			}

			ticket := models.Ticket{
				TicketCode:      code,
				PaymentGroupRef: groupRef,
				ZoneID:          zone.ID,
				SessionID:       session.ID,
				EventID:         event.ID,
				PurchaserID:     purchaser.ID,
				UnitPrice:       zone.Price,
				PaymentStatus:   models.PaymentUnpaid,
				Registration:    models.RegistrationPending,
				HoldExpiresAt:   holdExpiresAt,
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			if s.QR != nil {
				qrBytes, err := s.QR.Encode(qr.Payload{
					TicketCode: code,
					EventID:    event.ID,
					SessionID:  session.ID,
				})
				if err != nil {
					return nil, nil, fmt.Errorf("generate QR for %s: %w", code, err)
				}
				ticket.QRCode = qrBytes
			}
			tickets = append(tickets, ticket)
		}
	}

	if err := s.DB.InsertTickets(ctx, tickets); err != nil {
		return nil, nil, fmt.Errorf("insert tickets: %w", err)
	}

	s.logInfo("BOOKING", fmt.Sprintf("[ISSUE] %s - issued %d tickets for session %s", groupRef, len(tickets), session.ID))

	if s.Kafka != nil {
		if err := s.Kafka.PublishTicketsIssued(groupRef, tickets); err != nil {
			s.logWarn("KAFKA", fmt.Sprintf("publish tickets issued for %s: %v", groupRef, err))
		}
	}

	return buildCreateResponse(req, zones, requested, groupRef, holdExpiresAt, tickets), tickets, nil
}

func (s *Service) newTicketCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < codeRetryLimit; attempt++ {
		code, err := utils.GenerateTicketCode()
		if err != nil {
			return "", fmt.Errorf("generate ticket code: %w", err)
		}
		exists, err := s.DB.TicketCodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check ticket code: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("could not generate a unique ticket code after %d attempts", codeRetryLimit)
}

func buildCreateResponse(req models.CreateTicketsRequest, zones map[string]*models.Zone, requested map[string]int, groupRef string, holdExpiresAt time.Time, tickets []models.Ticket) *models.CreateTicketsResponse {
	codes := make([]string, len(tickets))
	total := decimal.Zero
	for i, t := range tickets {
		codes[i] = t.TicketCode
		total = total.Add(t.UnitPrice)
	}

	// The first line item's zone is the representative sample in the summary.
	first := zones[req.Items[0].ZoneID]

	return &models.CreateTicketsResponse{
		PaymentGroupRef: groupRef,
		EventID:         req.EventID,
		SessionID:       req.SessionID,
		ZoneID:          first.ID,
		ZoneName:        first.Name,
		UnitPrice:       first.Price,
		TicketCount:     len(tickets),
		TotalPrice:      total,
		PaymentStatus:   models.PaymentUnpaid,
		HoldExpiresAt:   holdExpiresAt,
		TicketCodes:     codes,
	}
}

// wrapLookup turns a storage miss into the caller-facing InvalidRequest: a
// purchase naming an unknown event, session or zone is a bad request, not a
// lookup of a missing resource.
func wrapLookup(err error) error {
	if errors.Is(err, models.ErrNotFound) {
		return models.ErrInvalidRequest
	}
	return err
}

// GetTicket resolves a single ticket by its code.
func (s *Service) GetTicket(ctx context.Context, code string) (*models.Ticket, error) {
	return s.DB.GetTicketByCode(ctx, code)
}

// GetTicketsByPaymentGroup is the read-only group lookup.
func (s *Service) GetTicketsByPaymentGroup(ctx context.Context, groupRef string) ([]models.Ticket, error) {
	tickets, err := s.DB.GetTicketsByPaymentGroup(ctx, groupRef)
	if err != nil {
		return nil, err
	}
	if len(tickets) == 0 {
		return nil, fmt.Errorf("payment group %s: %w", groupRef, models.ErrNotFound)
	}
	return tickets, nil
}

// GetZoneAvailability reports committed vs capacity for a zone.
func (s *Service) GetZoneAvailability(ctx context.Context, zoneID string) (*models.ZoneAvailability, error) {
	zone, err := s.DB.GetZone(ctx, zoneID)
	if err != nil {
		return nil, err
	}
	committed, err := s.DB.CountCommitted(ctx, zoneID)
	if err != nil {
		return nil, err
	}
	return &models.ZoneAvailability{
		ZoneID:    zone.ID,
		ZoneName:  zone.Name,
		Capacity:  zone.Capacity,
		Committed: committed,
		Remaining: zone.Capacity - committed,
	}, nil
}

// GetCheckedInCount returns how many tickets were admitted for a session.
func (s *Service) GetCheckedInCount(ctx context.Context, sessionID string) (int, error) {
	return s.DB.CountCheckedInBySession(ctx, sessionID)
}
