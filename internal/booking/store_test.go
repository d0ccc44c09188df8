package booking_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"ms-booking/internal/models"
)

// fakeStore is an in-memory booking.Store. All operations take one lock, so
// each call is atomic the way a database transaction is; interleaving across
// calls is still free to happen, which is exactly what the zone locks must
// defend against.
type fakeStore struct {
	mu sync.Mutex

	events   map[string]models.Event
	sessions map[string]models.Session
	zones    map[string]models.Zone
	tickets  map[string]models.Ticket

	failOn      string
	failErr     error
	codeClashes int

	// beforeConfirm runs at the start of ConfirmGroup, outside the store
	// lock, so a test can interleave a sweep or a competing purchase between
	// settlement's read and its write.
	beforeConfirm func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		events:   make(map[string]models.Event),
		sessions: make(map[string]models.Session),
		zones:    make(map[string]models.Zone),
		tickets:  make(map[string]models.Ticket),
	}
}

func (f *fakeStore) addCatalog(event models.Event, session models.Session, zones ...models.Zone) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[event.ID] = event
	f.sessions[session.ID] = session
	for _, z := range zones {
		f.zones[z.ID] = z
	}
}

func (f *fakeStore) ticket(code string) models.Ticket {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tickets[code]
}

func (f *fakeStore) fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOn = op
	f.failErr = err
}

func (f *fakeStore) failure(op string) error {
	if f.failOn == op {
		return f.failErr
	}
	return nil
}

func (f *fakeStore) GetEvent(_ context.Context, id string) (*models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("GetEvent"); err != nil {
		return nil, err
	}
	e, ok := f.events[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &e, nil
}

func (f *fakeStore) GetSession(_ context.Context, id string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &s, nil
}

func (f *fakeStore) GetZone(_ context.Context, id string) (*models.Zone, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	z, ok := f.zones[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &z, nil
}

func (f *fakeStore) CountCommitted(_ context.Context, zoneID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("CountCommitted"); err != nil {
		return 0, err
	}
	count := 0
	for _, t := range f.tickets {
		if t.ZoneID == zoneID && t.Registration != models.RegistrationCancelled {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) TicketCodeExists(_ context.Context, code string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.codeClashes > 0 {
		f.codeClashes--
		return true, nil
	}
	_, ok := f.tickets[code]
	return ok, nil
}

func (f *fakeStore) InsertTickets(_ context.Context, tickets []models.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("InsertTickets"); err != nil {
		return err
	}
	for _, t := range tickets {
		if _, exists := f.tickets[t.TicketCode]; exists {
			return fmt.Errorf("duplicate ticket code %s", t.TicketCode)
		}
	}
	for _, t := range tickets {
		f.tickets[t.TicketCode] = t
	}
	return nil
}

func (f *fakeStore) GetTicketByCode(_ context.Context, code string) (*models.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[code]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &t, nil
}

func (f *fakeStore) GetTicketsByPaymentGroup(_ context.Context, groupRef string) ([]models.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("GetTicketsByPaymentGroup"); err != nil {
		return nil, err
	}
	var out []models.Ticket
	for _, t := range f.tickets {
		if t.PaymentGroupRef == groupRef {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TicketCode < out[j].TicketCode })
	return out, nil
}

func (f *fakeStore) ConfirmGroup(_ context.Context, groupRef string, now time.Time) error {
	if f.beforeConfirm != nil {
		f.beforeConfirm()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("ConfirmGroup"); err != nil {
		return err
	}
	for _, t := range f.tickets {
		if t.PaymentGroupRef == groupRef && t.Registration == models.RegistrationCancelled {
			return fmt.Errorf("payment group %s has cancelled tickets: %w", groupRef, models.ErrAlreadyCancelled)
		}
	}
	for code, t := range f.tickets {
		if t.PaymentGroupRef == groupRef && t.PaymentStatus == models.PaymentUnpaid && t.Registration == models.RegistrationPending {
			t.PaymentStatus = models.PaymentPaid
			t.Registration = models.RegistrationConfirmed
			t.PaidAt = now
			t.UpdatedAt = now
			f.tickets[code] = t
		}
	}
	return nil
}

func (f *fakeStore) MarkCheckedIn(_ context.Context, code string, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[code]
	if !ok || t.CheckedIn {
		return false, nil
	}
	t.CheckedIn = true
	t.CheckedInAt = now
	t.UpdatedAt = now
	f.tickets[code] = t
	return true, nil
}

func (f *fakeStore) CancelGroup(_ context.Context, groupRef string, reason models.CancelledReason, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for code, t := range f.tickets {
		if t.PaymentGroupRef == groupRef && t.PaymentStatus == models.PaymentUnpaid && t.Registration == models.RegistrationPending {
			t.Registration = models.RegistrationCancelled
			t.CancelledReason = reason
			t.UpdatedAt = now
			f.tickets[code] = t
		}
	}
	return nil
}

func (f *fakeStore) CancelExpiredHolds(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var swept int64
	for code, t := range f.tickets {
		if t.PaymentStatus == models.PaymentUnpaid && t.Registration == models.RegistrationPending && t.HoldExpiresAt.Before(now) {
			t.Registration = models.RegistrationCancelled
			t.CancelledReason = models.CancelledPaymentTimeout
			t.UpdatedAt = now
			f.tickets[code] = t
			swept++
		}
	}
	return swept, nil
}

func (f *fakeStore) CountCheckedInBySession(_ context.Context, sessionID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, t := range f.tickets {
		if t.SessionID == sessionID && t.CheckedIn {
			count++
		}
	}
	return count, nil
}

// blockingLocker serializes zone admission with real mutexes, so two
// concurrent purchases for the same zone run their capacity checks one after
// the other instead of one of them bouncing off a busy lock.
type blockingLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newBlockingLocker() *blockingLocker {
	return &blockingLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *blockingLocker) zoneMutex(zoneID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[zoneID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[zoneID] = m
	}
	return m
}

func (l *blockingLocker) LockZones(_ context.Context, zoneIDs []string, _ string) (bool, error) {
	ordered := append([]string(nil), zoneIDs...)
	sort.Strings(ordered)
	for _, id := range ordered {
		l.zoneMutex(id).Lock()
	}
	return true, nil
}

func (l *blockingLocker) UnlockZones(_ context.Context, zoneIDs []string, _ string) error {
	for _, id := range zoneIDs {
		l.zoneMutex(id).Unlock()
	}
	return nil
}

// busyLocker always reports the zones as held by someone else.
type busyLocker struct{}

func (busyLocker) LockZones(context.Context, []string, string) (bool, error) { return false, nil }
func (busyLocker) UnlockZones(context.Context, []string, string) error       { return nil }

// fakeResolver is an in-memory purchaser directory.
type fakeResolver struct {
	mu         sync.Mutex
	purchasers map[string]*models.Purchaser
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{purchasers: make(map[string]*models.Purchaser)}
}

func (r *fakeResolver) Resolve(_ context.Context, email string) (*models.Purchaser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.purchasers[email]; ok {
		return p, nil
	}
	p := &models.Purchaser{
		ID:        fmt.Sprintf("purchaser-%d", len(r.purchasers)+1),
		Email:     email,
		Guest:     true,
		CreatedAt: time.Now(),
	}
	r.purchasers[email] = p
	return p, nil
}

// recordingPublisher counts lifecycle events per kind.
type recordingPublisher struct {
	mu        sync.Mutex
	issued    int
	confirmed int
	checkedIn int
	cancelled int
}

func (p *recordingPublisher) PublishTicketsIssued(string, []models.Ticket) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.issued++
	return nil
}

func (p *recordingPublisher) PublishPaymentConfirmed(string, []models.Ticket) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.confirmed++
	return nil
}

func (p *recordingPublisher) PublishTicketCheckedIn(models.Ticket) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checkedIn++
	return nil
}

func (p *recordingPublisher) PublishGroupCancelled(string, []models.Ticket) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelled++
	return nil
}
