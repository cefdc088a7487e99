package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EiadSorour/Ticketr/internal/domain"
	"github.com/EiadSorour/Ticketr/internal/lock"
	"github.com/EiadSorour/Ticketr/internal/scheduler"
)

// engineFixture wires the full service graph over the in-memory store.
type engineFixture struct {
	store        *memStore
	pub          *capturePublisher
	timers       *scheduler.TimerRegistry
	availability AvailabilityService
	allocation   AllocationService
	waitlist     WaitlistService
	purchase     PurchaseService
	events       EventService
	tickets      TicketService
}

func newEngineFixture(t *testing.T, offerTTL time.Duration) *engineFixture {
	t.Helper()

	store := newMemStore()
	pub := newCapturePublisher()
	timers := scheduler.NewTimerRegistry()
	t.Cleanup(timers.StopAll)
	locker := lock.NewKeyedMutex()

	entries := entryRepo{s: store}
	tickets := ticketRepo{s: store}

	availability := NewAvailabilityService(store, entries, tickets)
	allocation := NewAllocationService(store, entries, availability, pub, locker, timers, offerTTL)

	return &engineFixture{
		store:        store,
		pub:          pub,
		timers:       timers,
		availability: availability,
		allocation:   allocation,
		waitlist:     NewWaitlistService(store, entries, allocation, pub),
		purchase:     NewPurchaseService(store, entries, tickets, pub, allocation, locker, timers),
		events:       NewEventService(store, entries, tickets, pub, locker),
		tickets:      NewTicketService(tickets, allocation),
	}
}

func (f *engineFixture) seedEvent(t *testing.T, id string, silver, gold, platinum int) {
	t.Helper()
	now := time.Now()
	f.store.events[id] = &domain.Event{
		ID:        id,
		Name:      "Test Event",
		OwnerID:   "owner-1",
		EventDate: now.Add(30 * 24 * time.Hour),
		Silver:    domain.TierConfig{Name: domain.TierSilver, UnitPrice: 50, Capacity: silver},
		Gold:      domain.TierConfig{Name: domain.TierGold, UnitPrice: 100, Capacity: gold},
		Platinum:  domain.TierConfig{Name: domain.TierPlatinum, UnitPrice: 200, Capacity: platinum},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (f *engineFixture) entry(id string) *domain.WaitingEntry {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	e, ok := f.store.entries[id]
	if !ok {
		return nil
	}
	cp := *e
	return &cp
}

func TestAllocation_GrantsOfferWhenRequestFits(t *testing.T) {
	f := newEngineFixture(t, time.Hour)
	f.seedEvent(t, "ev-1", 10, 5, 2)

	status, err := f.waitlist.Join(context.Background(), "ev-1", "user-1", domain.TierCounts{Silver: 2, Gold: 1})
	require.NoError(t, err)

	assert.Equal(t, domain.EntryStatusOffered, status.Entry.Status)
	require.NotNil(t, status.Entry.OfferExpiresAt)
	assert.True(t, status.Entry.OfferExpiresAt.After(time.Now()))
	assert.Equal(t, int64(1), status.Position)
	assert.Len(t, f.pub.offers, 1)
	assert.Equal(t, 1, f.timers.Len())
}

func TestAllocation_OffersReserveCapacity(t *testing.T) {
	f := newEngineFixture(t, time.Hour)
	f.seedEvent(t, "ev-1", 3, 0, 0)

	first, err := f.waitlist.Join(context.Background(), "ev-1", "user-1", domain.TierCounts{Silver: 2})
	require.NoError(t, err)
	assert.Equal(t, domain.EntryStatusOffered, first.Entry.Status)

	// 2 of 3 silver are held by the live offer, so a request for 2 more
	// must wait even though nothing is sold yet.
	second, err := f.waitlist.Join(context.Background(), "ev-1", "user-2", domain.TierCounts{Silver: 2})
	require.NoError(t, err)
	assert.Equal(t, domain.EntryStatusWaiting, second.Entry.Status)
	assert.Equal(t, int64(2), second.Position)

	avail, err := f.availability.GetAvailability(context.Background(), "ev-1")
	require.NoError(t, err)
	assert.Equal(t, 1, avail.Remaining().Silver)
	assert.Equal(t, 3, avail.Unsold().Silver)
}

func TestAllocation_EvictsRequestThatCanNeverFit(t *testing.T) {
	f := newEngineFixture(t, time.Hour)
	f.seedEvent(t, "ev-1", 5, 0, 0)

	// Sell 4 silver directly; only 4 could ever still be freed by
	// refunds, never the 5th this entry wants on top.
	f.store.tickets["tk-1"] = &domain.Ticket{
		ID: "tk-1", EventID: "ev-1", UserID: "buyer",
		Counts: domain.TierCounts{Silver: 4}, Status: domain.TicketStatusValid,
	}

	status, err := f.waitlist.Join(context.Background(), "ev-1", "user-1", domain.TierCounts{Silver: 2})
	require.NoError(t, err)

	assert.Equal(t, domain.EntryStatusExpired, status.Entry.Status)
	assert.Len(t, f.pub.evicts, 1)
}

func TestAllocation_SkipKeepsPlaceAndServesSmallerRequest(t *testing.T) {
	f := newEngineFixture(t, time.Hour)
	f.seedEvent(t, "ev-1", 5, 0, 0)

	holder, err := f.waitlist.Join(context.Background(), "ev-1", "holder", domain.TierCounts{Silver: 4})
	require.NoError(t, err)
	require.Equal(t, domain.EntryStatusOffered, holder.Entry.Status)

	// Wants 3, only 1 unreserved: skipped, not evicted. Could still fit
	// if the holder lets the offer lapse.
	big, err := f.waitlist.Join(context.Background(), "ev-1", "big", domain.TierCounts{Silver: 3})
	require.NoError(t, err)
	assert.Equal(t, domain.EntryStatusWaiting, big.Entry.Status)

	// A later, smaller request is served past the skipped one.
	small, err := f.waitlist.Join(context.Background(), "ev-1", "small", domain.TierCounts{Silver: 1})
	require.NoError(t, err)
	assert.Equal(t, domain.EntryStatusOffered, small.Entry.Status)

	assert.Equal(t, domain.EntryStatusWaiting, f.entry(big.Entry.ID).Status)
}

func TestAllocation_ExpireOfferFreesCapacityForNextInLine(t *testing.T) {
	f := newEngineFixture(t, time.Hour)
	f.seedEvent(t, "ev-1", 4, 0, 0)

	holder, err := f.waitlist.Join(context.Background(), "ev-1", "holder", domain.TierCounts{Silver: 3})
	require.NoError(t, err)
	require.Equal(t, domain.EntryStatusOffered, holder.Entry.Status)

	next, err := f.waitlist.Join(context.Background(), "ev-1", "next", domain.TierCounts{Silver: 2})
	require.NoError(t, err)
	require.Equal(t, domain.EntryStatusWaiting, next.Entry.Status)

	require.NoError(t, f.allocation.ExpireOffer(context.Background(), holder.Entry.ID))

	assert.Equal(t, domain.EntryStatusExpired, f.entry(holder.Entry.ID).Status)
	// The lapse rescans in the same call, promoting the waiter.
	assert.Equal(t, domain.EntryStatusOffered, f.entry(next.Entry.ID).Status)
	assert.Len(t, f.pub.lapsed, 1)
}

func TestAllocation_ExpireOfferIsIdempotent(t *testing.T) {
	f := newEngineFixture(t, time.Hour)
	f.seedEvent(t, "ev-1", 4, 0, 0)

	holder, err := f.waitlist.Join(context.Background(), "ev-1", "holder", domain.TierCounts{Silver: 1})
	require.NoError(t, err)
	require.Equal(t, domain.EntryStatusOffered, holder.Entry.Status)

	require.NoError(t, f.allocation.ExpireOffer(context.Background(), holder.Entry.ID))
	require.NoError(t, f.allocation.ExpireOffer(context.Background(), holder.Entry.ID))
	require.NoError(t, f.allocation.ExpireOffer(context.Background(), "no-such-entry"))

	assert.Len(t, f.pub.lapsed, 1)
}

func TestAllocation_ExpireOfferAfterPurchaseIsNoOp(t *testing.T) {
	f := newEngineFixture(t, time.Hour)
	f.seedEvent(t, "ev-1", 4, 0, 0)

	holder, err := f.waitlist.Join(context.Background(), "ev-1", "holder", domain.TierCounts{Silver: 1})
	require.NoError(t, err)

	_, err = f.purchase.Confirm(context.Background(), holder.Entry.ID, "holder", "pay-1")
	require.NoError(t, err)

	// The timer firing after the purchase must not disturb anything.
	require.NoError(t, f.allocation.ExpireOffer(context.Background(), holder.Entry.ID))
	assert.Equal(t, domain.EntryStatusPurchased, f.entry(holder.Entry.ID).Status)
	assert.Empty(t, f.pub.lapsed)
}

func TestAllocation_ReleaseOffer(t *testing.T) {
	f := newEngineFixture(t, time.Hour)
	f.seedEvent(t, "ev-1", 4, 0, 0)

	holder, err := f.waitlist.Join(context.Background(), "ev-1", "holder", domain.TierCounts{Silver: 1})
	require.NoError(t, err)
	require.Equal(t, domain.EntryStatusOffered, holder.Entry.Status)

	err = f.allocation.ReleaseOffer(context.Background(), holder.Entry.ID, "someone-else")
	assert.ErrorIs(t, err, domain.ErrEntryOwnershipMismatch)

	require.NoError(t, f.allocation.ReleaseOffer(context.Background(), holder.Entry.ID, "holder"))
	assert.Equal(t, domain.EntryStatusExpired, f.entry(holder.Entry.ID).Status)

	// Released entries hold nothing; a second release has no offer left.
	err = f.allocation.ReleaseOffer(context.Background(), holder.Entry.ID, "holder")
	assert.ErrorIs(t, err, domain.ErrOfferNotActive)
}

func TestAllocation_NoOversellAcrossSequentialGrants(t *testing.T) {
	f := newEngineFixture(t, time.Hour)
	f.seedEvent(t, "ev-1", 5, 0, 0)

	users := []string{"u1", "u2", "u3", "u4"}
	offered := 0
	for _, u := range users {
		status, err := f.waitlist.Join(context.Background(), "ev-1", u, domain.TierCounts{Silver: 2})
		require.NoError(t, err)
		if status.Entry.Status == domain.EntryStatusOffered {
			offered++
		}
	}

	// 2+2 fits in 5, the third 2 does not; 4 held would oversell.
	assert.Equal(t, 2, offered)

	avail, err := f.availability.GetAvailability(context.Background(), "ev-1")
	require.NoError(t, err)
	assert.Equal(t, 1, avail.Remaining().Silver)
	assert.False(t, avail.Remaining().AnyNegative())
}

func TestAllocation_ScanContinuesPastFailingEntry(t *testing.T) {
	f := newEngineFixture(t, time.Hour)
	f.seedEvent(t, "ev-1", 3, 0, 0)

	// 2 of 3 sold; a request for 2 can never fit and must be evicted.
	f.store.tickets["tk-1"] = &domain.Ticket{
		ID: "tk-1", EventID: "ev-1", UserID: "buyer",
		Counts: domain.TierCounts{Silver: 2}, Status: domain.TicketStatusValid,
	}

	// Make that eviction fail. The scan logs it and keeps walking.
	f.store.expireWaitingErr = errors.New("store hiccup")

	doomed, err := f.waitlist.Join(context.Background(), "ev-1", "u1", domain.TierCounts{Silver: 2})
	require.NoError(t, err)
	assert.Equal(t, domain.EntryStatusWaiting, doomed.Entry.Status)

	// The entry behind the failing one is still served.
	next, err := f.waitlist.Join(context.Background(), "ev-1", "u2", domain.TierCounts{Silver: 1})
	require.NoError(t, err)
	assert.Equal(t, domain.EntryStatusOffered, next.Entry.Status)

	// Once the store recovers, the next scan finishes the eviction.
	f.store.expireWaitingErr = nil
	require.NoError(t, f.allocation.ProcessQueue(context.Background(), "ev-1"))
	assert.Equal(t, domain.EntryStatusExpired, f.entry(doomed.Entry.ID).Status)
	assert.Len(t, f.pub.evicts, 1)
}

func TestAllocation_ProcessQueueSkipsCancelledEvent(t *testing.T) {
	f := newEngineFixture(t, time.Hour)
	f.seedEvent(t, "ev-1", 4, 0, 0)
	f.store.events["ev-1"].IsCancelled = true

	require.NoError(t, f.allocation.ProcessQueue(context.Background(), "ev-1"))
	assert.Empty(t, f.pub.offers)
}

func TestAllocation_ExpireDueOffers(t *testing.T) {
	f := newEngineFixture(t, time.Hour)
	f.seedEvent(t, "ev-1", 4, 0, 0)

	holder, err := f.waitlist.Join(context.Background(), "ev-1", "holder", domain.TierCounts{Silver: 1})
	require.NoError(t, err)

	// Backdate the deadline so the sweep sees it as due.
	f.store.mu.Lock()
	past := time.Now().Add(-time.Minute)
	f.store.entries[holder.Entry.ID].OfferExpiresAt = &past
	f.store.mu.Unlock()

	expired, err := f.allocation.ExpireDueOffers(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)
	assert.Equal(t, domain.EntryStatusExpired, f.entry(holder.Entry.ID).Status)

	expired, err = f.allocation.ExpireDueOffers(context.Background(), 100)
	require.NoError(t, err)
	assert.Zero(t, expired)
}

func TestAllocation_RearmLiveOffers(t *testing.T) {
	f := newEngineFixture(t, time.Hour)
	f.seedEvent(t, "ev-1", 4, 0, 0)

	holder, err := f.waitlist.Join(context.Background(), "ev-1", "holder", domain.TierCounts{Silver: 1})
	require.NoError(t, err)
	require.Equal(t, domain.EntryStatusOffered, holder.Entry.Status)

	// Simulate a restart: the registry lost its timers.
	f.timers.StopAll()
	require.Zero(t, f.timers.Len())

	rearmed, err := f.allocation.RearmLiveOffers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rearmed)
	assert.Equal(t, 1, f.timers.Len())
}
