package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerRegistry_FiresAtDeadline(t *testing.T) {
	r := NewTimerRegistry()
	defer r.StopAll()

	fired := make(chan struct{})
	r.Schedule("entry-1", time.Now().Add(10*time.Millisecond), func() {
		close(fired)
	})
	require.Equal(t, 1, r.Len())

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}

	// A fired timer removes itself.
	assert.Eventually(t, func() bool { return r.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestTimerRegistry_CancelPreventsFiring(t *testing.T) {
	r := NewTimerRegistry()
	defer r.StopAll()

	var fired atomic.Bool
	r.Schedule("entry-1", time.Now().Add(30*time.Millisecond), func() {
		fired.Store(true)
	})

	assert.True(t, r.Cancel("entry-1"))
	assert.Zero(t, r.Len())

	time.Sleep(60 * time.Millisecond)
	assert.False(t, fired.Load())

	// Cancelling an unknown entry reports nothing armed.
	assert.False(t, r.Cancel("entry-1"))
}

func TestTimerRegistry_RescheduleReplaces(t *testing.T) {
	r := NewTimerRegistry()
	defer r.StopAll()

	var count atomic.Int32
	r.Schedule("entry-1", time.Now().Add(10*time.Millisecond), func() {
		count.Add(1)
	})
	r.Schedule("entry-1", time.Now().Add(20*time.Millisecond), func() {
		count.Add(1)
	})
	require.Equal(t, 1, r.Len())

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(1), count.Load())
}

func TestTimerRegistry_PastDeadlineFiresImmediately(t *testing.T) {
	r := NewTimerRegistry()
	defer r.StopAll()

	fired := make(chan struct{})
	r.Schedule("entry-1", time.Now().Add(-time.Minute), func() {
		close(fired)
	})

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("past-deadline timer did not fire")
	}
}

func TestTimerRegistry_StopAll(t *testing.T) {
	r := NewTimerRegistry()

	var fired atomic.Int32
	for _, id := range []string{"a", "b", "c"} {
		r.Schedule(id, time.Now().Add(30*time.Millisecond), func() {
			fired.Add(1)
		})
	}
	require.Equal(t, 3, r.Len())

	r.StopAll()
	assert.Zero(t, r.Len())

	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, fired.Load())
}
