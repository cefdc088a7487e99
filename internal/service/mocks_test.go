package service

import (
	"context"
	"sync"
	"time"

	"github.com/EiadSorour/Ticketr/internal/domain"
)

// memStore is an in-memory stand-in for all three repositories. It keeps
// the same transition guards the SQL layer enforces, so the services see
// the behavior they would against a real store.
type memStore struct {
	mu      sync.Mutex
	events  map[string]*domain.Event
	entries map[string]*domain.WaitingEntry
	tickets map[string]*domain.Ticket
	seq     int64

	// error injection hooks
	createEntryErr   error
	finalizeErr      error
	expireWaitingErr error
}

func newMemStore() *memStore {
	return &memStore{
		events:  make(map[string]*domain.Event),
		entries: make(map[string]*domain.WaitingEntry),
		tickets: make(map[string]*domain.Ticket),
	}
}

// EventRepository

func (m *memStore) Create(ctx context.Context, event *domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *event
	m.events[event.ID] = &cp
	return nil
}

func (m *memStore) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	event, ok := m.events[id]
	if !ok {
		return nil, domain.ErrEventNotFound
	}
	cp := *event
	return &cp, nil
}

func (m *memStore) UpdateTiers(ctx context.Context, event *domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.events[event.ID]
	if !ok {
		return domain.ErrEventNotFound
	}
	stored.Silver = event.Silver
	stored.Gold = event.Gold
	stored.Platinum = event.Platinum
	stored.UpdatedAt = time.Now()
	return nil
}

func (m *memStore) MarkCancelled(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	event, ok := m.events[id]
	if !ok {
		return domain.ErrEventNotFound
	}
	event.IsCancelled = true
	return nil
}

func (m *memStore) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Event
	for _, e := range m.events {
		if e.OwnerID == ownerID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

// entryRepo wraps memStore to satisfy WaitingListRepository without
// method-name collisions against the other interfaces.
type entryRepo struct{ s *memStore }

func (r entryRepo) Create(ctx context.Context, entry *domain.WaitingEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.createEntryErr != nil {
		return r.s.createEntryErr
	}
	for _, e := range r.s.entries {
		if e.EventID == entry.EventID && e.UserID == entry.UserID && e.Status != domain.EntryStatusExpired {
			return domain.ErrAlreadyInWaitingList
		}
	}
	r.s.seq++
	entry.ArrivalSeq = r.s.seq
	cp := *entry
	r.s.entries[entry.ID] = &cp
	return nil
}

func (r entryRepo) GetByID(ctx context.Context, id string) (*domain.WaitingEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	entry, ok := r.s.entries[id]
	if !ok {
		return nil, domain.ErrEntryNotFound
	}
	cp := *entry
	return &cp, nil
}

func (r entryRepo) GetActiveByUserAndEvent(ctx context.Context, eventID, userID string) (*domain.WaitingEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.entries {
		if e.EventID == eventID && e.UserID == userID && e.Status != domain.EntryStatusExpired {
			cp := *e
			return &cp, nil
		}
	}
	return nil, domain.ErrEntryNotFound
}

func (r entryRepo) ListWaiting(ctx context.Context, eventID string, limit int) ([]*domain.WaitingEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.WaitingEntry
	for _, e := range r.s.entries {
		if e.EventID == eventID && e.Status == domain.EntryStatusWaiting {
			cp := *e
			out = append(out, &cp)
		}
	}
	sortByArrival(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r entryRepo) ListExpiredOffers(ctx context.Context, now time.Time, limit int) ([]*domain.WaitingEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.WaitingEntry
	for _, e := range r.s.entries {
		if e.Status == domain.EntryStatusOffered && e.OfferExpiresAt != nil && !e.OfferExpiresAt.After(now) {
			cp := *e
			out = append(out, &cp)
		}
	}
	sortByArrival(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r entryRepo) ListLiveOffers(ctx context.Context, now time.Time, limit int) ([]*domain.WaitingEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.WaitingEntry
	for _, e := range r.s.entries {
		if e.Status == domain.EntryStatusOffered && e.OfferExpiresAt != nil && e.OfferExpiresAt.After(now) {
			cp := *e
			out = append(out, &cp)
		}
	}
	sortByArrival(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r entryRepo) MarkOffered(ctx context.Context, id string, expiresAt time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	entry, ok := r.s.entries[id]
	if !ok || entry.Status != domain.EntryStatusWaiting {
		return false, nil
	}
	entry.Status = domain.EntryStatusOffered
	t := expiresAt
	entry.OfferExpiresAt = &t
	entry.UpdatedAt = time.Now()
	return true, nil
}

func (r entryRepo) ExpireOffered(ctx context.Context, id string) (bool, error) {
	return r.transition(id, domain.EntryStatusOffered, domain.EntryStatusExpired)
}

func (r entryRepo) ExpireWaiting(ctx context.Context, id string) (bool, error) {
	r.s.mu.Lock()
	if err := r.s.expireWaitingErr; err != nil {
		r.s.mu.Unlock()
		return false, err
	}
	r.s.mu.Unlock()
	return r.transition(id, domain.EntryStatusWaiting, domain.EntryStatusExpired)
}

func (r entryRepo) transition(id string, from, to domain.EntryStatus) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	entry, ok := r.s.entries[id]
	if !ok || entry.Status != from {
		return false, nil
	}
	entry.Status = to
	entry.UpdatedAt = time.Now()
	return true, nil
}

func (r entryRepo) ExpireActiveForEvent(ctx context.Context, eventID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, e := range r.s.entries {
		if e.EventID == eventID && (e.Status == domain.EntryStatusWaiting || e.Status == domain.EntryStatusOffered) {
			e.Status = domain.EntryStatusExpired
			e.UpdatedAt = time.Now()
			n++
		}
	}
	return n, nil
}

func (r entryRepo) CountAhead(ctx context.Context, eventID string, arrivalSeq int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, e := range r.s.entries {
		if e.EventID == eventID && e.ArrivalSeq < arrivalSeq &&
			(e.Status == domain.EntryStatusWaiting || e.Status == domain.EntryStatusOffered) {
			n++
		}
	}
	return n, nil
}

func (r entryRepo) SumActiveOffers(ctx context.Context, eventID string, now time.Time) (domain.TierCounts, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var sum domain.TierCounts
	for _, e := range r.s.entries {
		if e.EventID == eventID && e.Status == domain.EntryStatusOffered &&
			e.OfferExpiresAt != nil && e.OfferExpiresAt.After(now) {
			sum = sum.Add(e.Requested)
		}
	}
	return sum, nil
}

func (r entryRepo) HasActiveEntries(ctx context.Context, eventID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.entries {
		if e.EventID == eventID && (e.Status == domain.EntryStatusWaiting || e.Status == domain.EntryStatusOffered) {
			return true, nil
		}
	}
	return false, nil
}

// ticketRepo wraps memStore to satisfy TicketRepository.
type ticketRepo struct{ s *memStore }

func (r ticketRepo) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ticket, ok := r.s.tickets[id]
	if !ok {
		return nil, domain.ErrTicketNotFound
	}
	cp := *ticket
	return &cp, nil
}

func (r ticketRepo) ListByUser(ctx context.Context, userID string) ([]*domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.Ticket
	for _, t := range r.s.tickets {
		if t.UserID == userID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r ticketRepo) SumSold(ctx context.Context, eventID string) (domain.TierCounts, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var sum domain.TierCounts
	for _, t := range r.s.tickets {
		if t.EventID == eventID && t.Status.CountsAsSold() {
			sum = sum.Add(t.Counts)
		}
	}
	return sum, nil
}

func (r ticketRepo) HasSold(ctx context.Context, eventID string) (bool, error) {
	sum, _ := r.SumSold(ctx, eventID)
	return !sum.IsZero(), nil
}

func (r ticketRepo) UpdateStatus(ctx context.Context, id string, from, to domain.TicketStatus) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ticket, ok := r.s.tickets[id]
	if !ok || ticket.Status != from {
		return false, nil
	}
	ticket.Status = to
	ticket.UpdatedAt = time.Now()
	return true, nil
}

func (r ticketRepo) FinalizePurchase(ctx context.Context, ticket *domain.Ticket, entryID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.finalizeErr != nil {
		return r.s.finalizeErr
	}
	entry, ok := r.s.entries[entryID]
	if !ok || !entry.OfferLive(time.Now()) {
		// Same guard the SQL transaction enforces: offered AND the
		// deadline still in the future at commit time.
		return domain.ErrOfferNotActive
	}
	entry.Status = domain.EntryStatusPurchased
	entry.UpdatedAt = time.Now()
	cp := *ticket
	r.s.tickets[ticket.ID] = &cp
	return nil
}

func sortByArrival(entries []*domain.WaitingEntry) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j-1].ArrivalSeq > entries[j].ArrivalSeq; j-- {
			entries[j-1], entries[j] = entries[j], entries[j-1]
		}
	}
}

// capturePublisher records published lifecycle events for assertions.
type capturePublisher struct {
	mu     sync.Mutex
	joined []string
	offers []string
	lapsed []string
	evicts []string
	bought []string
	halted []string
}

func newCapturePublisher() *capturePublisher { return &capturePublisher{} }

func (p *capturePublisher) PublishJoined(ctx context.Context, entry *domain.WaitingEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.joined = append(p.joined, entry.ID)
	return nil
}

func (p *capturePublisher) PublishOffered(ctx context.Context, entry *domain.WaitingEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.offers = append(p.offers, entry.ID)
	return nil
}

func (p *capturePublisher) PublishOfferExpired(ctx context.Context, entry *domain.WaitingEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lapsed = append(p.lapsed, entry.ID)
	return nil
}

func (p *capturePublisher) PublishEvicted(ctx context.Context, entry *domain.WaitingEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.evicts = append(p.evicts, entry.ID)
	return nil
}

func (p *capturePublisher) PublishPurchased(ctx context.Context, entry *domain.WaitingEntry, ticketID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bought = append(p.bought, ticketID)
	return nil
}

func (p *capturePublisher) PublishEventCancelled(ctx context.Context, eventID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.halted = append(p.halted, eventID)
	return nil
}

func (p *capturePublisher) Close() error { return nil }
