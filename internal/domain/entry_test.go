package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWaitingEntry_OfferLive(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Minute)
	past := now.Add(-time.Minute)

	tests := []struct {
		name  string
		entry WaitingEntry
		want  bool
	}{
		{"offered with future deadline", WaitingEntry{Status: EntryStatusOffered, OfferExpiresAt: &future}, true},
		{"offered past deadline", WaitingEntry{Status: EntryStatusOffered, OfferExpiresAt: &past}, false},
		{"offered without deadline", WaitingEntry{Status: EntryStatusOffered}, false},
		{"waiting", WaitingEntry{Status: EntryStatusWaiting, OfferExpiresAt: &future}, false},
		{"purchased", WaitingEntry{Status: EntryStatusPurchased, OfferExpiresAt: &future}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.entry.OfferLive(now))
		})
	}
}

func TestWaitingEntry_IsActive(t *testing.T) {
	// Purchased entries stay active: they keep holding the user's one
	// slot per event.
	assert.True(t, (&WaitingEntry{Status: EntryStatusWaiting}).IsActive())
	assert.True(t, (&WaitingEntry{Status: EntryStatusOffered}).IsActive())
	assert.True(t, (&WaitingEntry{Status: EntryStatusPurchased}).IsActive())
	assert.False(t, (&WaitingEntry{Status: EntryStatusExpired}).IsActive())
}

func TestWaitingEntry_Validate(t *testing.T) {
	valid := WaitingEntry{EventID: "ev-1", UserID: "u1", Requested: TierCounts{Silver: 1}}
	assert.NoError(t, valid.Validate())

	noUser := valid
	noUser.UserID = ""
	assert.ErrorIs(t, noUser.Validate(), ErrInvalidUserID)

	noEvent := valid
	noEvent.EventID = ""
	assert.ErrorIs(t, noEvent.Validate(), ErrInvalidEventID)

	zero := valid
	zero.Requested = TierCounts{}
	assert.ErrorIs(t, zero.Validate(), ErrInvalidTicketCounts)

	negative := valid
	negative.Requested = TierCounts{Silver: 2, Gold: -1}
	assert.ErrorIs(t, negative.Validate(), ErrInvalidTicketCounts)
}

func TestEntryStatus_IsTerminal(t *testing.T) {
	assert.False(t, EntryStatusWaiting.IsTerminal())
	assert.False(t, EntryStatusOffered.IsTerminal())
	assert.True(t, EntryStatusPurchased.IsTerminal())
	assert.True(t, EntryStatusExpired.IsTerminal())
}
