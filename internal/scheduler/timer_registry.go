// Package scheduler arms one in-process timer per live offer so expiry
// fires promptly at the deadline. Timers are lost on restart; the
// expiry worker's periodic sweep picks up anything they miss.
package scheduler

import (
	"sync"
	"time"
)

// TimerRegistry tracks cancellable one-shot timers keyed by entry ID
type TimerRegistry struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewTimerRegistry creates an empty registry
func NewTimerRegistry() *TimerRegistry {
	return &TimerRegistry{
		timers: make(map[string]*time.Timer),
	}
}

// Schedule arms a timer that runs fn at the given time. Scheduling the
// same entry again replaces the previous timer.
func (r *TimerRegistry) Schedule(entryID string, at time.Time, fn func()) {
	delay := time.Until(at)
	if delay < 0 {
		delay = 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.timers[entryID]; ok {
		existing.Stop()
	}

	r.timers[entryID] = time.AfterFunc(delay, func() {
		r.mu.Lock()
		delete(r.timers, entryID)
		r.mu.Unlock()
		fn()
	})
}

// Cancel stops the timer for an entry. Returns true if a timer was
// armed and stopped before firing.
func (r *TimerRegistry) Cancel(entryID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	timer, ok := r.timers[entryID]
	if !ok {
		return false
	}
	delete(r.timers, entryID)
	return timer.Stop()
}

// Len returns the number of armed timers
func (r *TimerRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

// StopAll cancels every armed timer
func (r *TimerRegistry) StopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, timer := range r.timers {
		timer.Stop()
		delete(r.timers, id)
	}
}
