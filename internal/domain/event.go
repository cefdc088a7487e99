package domain

import "time"

// Tier identifies one of the three ticket classes sold for every event.
type Tier string

const (
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
)

// Tiers lists all tiers in display order.
var Tiers = []Tier{TierSilver, TierGold, TierPlatinum}

// TierCounts holds a per-tier ticket count. It is used both for requested
// counts on waiting-list entries and for purchased counts on tickets.
type TierCounts struct {
	Silver   int `json:"silver"`
	Gold     int `json:"gold"`
	Platinum int `json:"platinum"`
}

// Get returns the count for a single tier.
func (c TierCounts) Get(t Tier) int {
	switch t {
	case TierSilver:
		return c.Silver
	case TierGold:
		return c.Gold
	case TierPlatinum:
		return c.Platinum
	}
	return 0
}

// Add returns the element-wise sum of two count sets.
func (c TierCounts) Add(o TierCounts) TierCounts {
	return TierCounts{
		Silver:   c.Silver + o.Silver,
		Gold:     c.Gold + o.Gold,
		Platinum: c.Platinum + o.Platinum,
	}
}

// Total returns the number of tickets across all tiers.
func (c TierCounts) Total() int {
	return c.Silver + c.Gold + c.Platinum
}

// IsZero reports whether no tickets are requested in any tier.
func (c TierCounts) IsZero() bool {
	return c.Silver == 0 && c.Gold == 0 && c.Platinum == 0
}

// AnyNegative reports whether any tier count is below zero.
func (c TierCounts) AnyNegative() bool {
	return c.Silver < 0 || c.Gold < 0 || c.Platinum < 0
}

// FitsWithin reports whether every tier count is <= the corresponding
// count in limit.
func (c TierCounts) FitsWithin(limit TierCounts) bool {
	return c.Silver <= limit.Silver && c.Gold <= limit.Gold && c.Platinum <= limit.Platinum
}

// ExceedsAny reports whether any tier count is strictly greater than the
// corresponding count in limit.
func (c TierCounts) ExceedsAny(limit TierCounts) bool {
	return !c.FitsWithin(limit)
}

// TierConfig is the sale configuration of a single tier.
type TierConfig struct {
	Name      Tier    `json:"name"`
	UnitPrice float64 `json:"unit_price"`
	Capacity  int     `json:"capacity"`
}

// Event is the sale configuration for one event. The engine treats events
// as read-mostly: tier capacities may only ever be revised upward once
// tickets are sold (see EventService.UpdateTiers).
type Event struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Location    string     `json:"location"`
	EventDate   time.Time  `json:"event_date"`
	OwnerID     string     `json:"owner_id"`
	Silver      TierConfig `json:"silver"`
	Gold        TierConfig `json:"gold"`
	Platinum    TierConfig `json:"platinum"`
	IsCancelled bool       `json:"is_cancelled"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Capacities returns the configured capacity of every tier.
func (e *Event) Capacities() TierCounts {
	return TierCounts{
		Silver:   e.Silver.Capacity,
		Gold:     e.Gold.Capacity,
		Platinum: e.Platinum.Capacity,
	}
}

// PriceOf returns the unit price for a tier.
func (e *Event) PriceOf(t Tier) float64 {
	switch t {
	case TierSilver:
		return e.Silver.UnitPrice
	case TierGold:
		return e.Gold.UnitPrice
	case TierPlatinum:
		return e.Platinum.UnitPrice
	}
	return 0
}

// TotalPrice returns the cost of the given counts at this event's prices.
func (e *Event) TotalPrice(c TierCounts) float64 {
	return float64(c.Silver)*e.Silver.UnitPrice +
		float64(c.Gold)*e.Gold.UnitPrice +
		float64(c.Platinum)*e.Platinum.UnitPrice
}

// TierAvailability is the ledger view of a single tier.
type TierAvailability struct {
	Capacity     int  `json:"capacity"`
	Sold         int  `json:"sold"`
	ActiveOffers int  `json:"active_offers"`
	Reserved     int  `json:"reserved"`
	Remaining    int  `json:"remaining"`
	SoldOut      bool `json:"sold_out"`
}

// Availability is a derived, never-stored snapshot of an event's inventory:
// reserved = sold + live offers per tier, remaining = max(0, capacity-reserved).
type Availability struct {
	EventID  string           `json:"event_id"`
	Silver   TierAvailability `json:"silver"`
	Gold     TierAvailability `json:"gold"`
	Platinum TierAvailability `json:"platinum"`
}

// Remaining returns the per-tier remaining counts.
func (a *Availability) Remaining() TierCounts {
	return TierCounts{
		Silver:   a.Silver.Remaining,
		Gold:     a.Gold.Remaining,
		Platinum: a.Platinum.Remaining,
	}
}

// Sold returns the per-tier sold counts.
func (a *Availability) Sold() TierCounts {
	return TierCounts{
		Silver:   a.Silver.Sold,
		Gold:     a.Gold.Sold,
		Platinum: a.Platinum.Sold,
	}
}

// Unsold returns capacity minus sold per tier: the counts that could still
// be served if every live offer lapsed.
func (a *Availability) Unsold() TierCounts {
	return TierCounts{
		Silver:   a.Silver.Capacity - a.Silver.Sold,
		Gold:     a.Gold.Capacity - a.Gold.Sold,
		Platinum: a.Platinum.Capacity - a.Platinum.Sold,
	}
}

// FullyReserved reports whether no tier has remaining capacity.
func (a *Availability) FullyReserved() bool {
	return a.Silver.Remaining <= 0 && a.Gold.Remaining <= 0 && a.Platinum.Remaining <= 0
}

// NewAvailability computes the snapshot from capacities, sold counts and
// live offer counts.
func NewAvailability(eventID string, capacity, sold, offers TierCounts) *Availability {
	tier := func(capacity, sold, offered int) TierAvailability {
		reserved := sold + offered
		remaining := capacity - reserved
		if remaining < 0 {
			remaining = 0
		}
		return TierAvailability{
			Capacity:     capacity,
			Sold:         sold,
			ActiveOffers: offered,
			Reserved:     reserved,
			Remaining:    remaining,
			SoldOut:      reserved >= capacity,
		}
	}
	return &Availability{
		EventID:  eventID,
		Silver:   tier(capacity.Silver, sold.Silver, offers.Silver),
		Gold:     tier(capacity.Gold, sold.Gold, offers.Gold),
		Platinum: tier(capacity.Platinum, sold.Platinum, offers.Platinum),
	}
}
