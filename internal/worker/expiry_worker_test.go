package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockAllocationService counts sweep calls
type mockAllocationService struct {
	sweeps   atomic.Int32
	expired  int
	sweepErr error
}

func (m *mockAllocationService) ProcessQueue(ctx context.Context, eventID string) error { return nil }

func (m *mockAllocationService) ExpireOffer(ctx context.Context, entryID string) error { return nil }

func (m *mockAllocationService) ReleaseOffer(ctx context.Context, entryID, userID string) error {
	return nil
}

func (m *mockAllocationService) RearmLiveOffers(ctx context.Context) (int, error) { return 0, nil }

func (m *mockAllocationService) ExpireDueOffers(ctx context.Context, limit int) (int, error) {
	m.sweeps.Add(1)
	if m.sweepErr != nil {
		return 0, m.sweepErr
	}
	return m.expired, nil
}

func TestExpiryWorker_SweepsOnStartAndInterval(t *testing.T) {
	allocation := &mockAllocationService{expired: 2}
	w := NewExpiryWorker(allocation, &ExpiryWorkerConfig{
		SweepInterval: 20 * time.Millisecond,
		BatchSize:     100,
	})

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	assert.Eventually(t, func() bool {
		return allocation.sweeps.Load() >= 3
	}, time.Second, 5*time.Millisecond)

	assert.GreaterOrEqual(t, w.TotalExpired(), int64(6))
}

func TestExpiryWorker_StartTwiceFails(t *testing.T) {
	w := NewExpiryWorker(&mockAllocationService{}, DefaultExpiryWorkerConfig())
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	assert.Error(t, w.Start(context.Background()))
}

func TestExpiryWorker_StopIsIdempotent(t *testing.T) {
	allocation := &mockAllocationService{}
	w := NewExpiryWorker(allocation, &ExpiryWorkerConfig{
		SweepInterval: 10 * time.Millisecond,
		BatchSize:     100,
	})

	require.NoError(t, w.Start(context.Background()))
	w.Stop()
	w.Stop()

	count := allocation.sweeps.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, count, allocation.sweeps.Load())
}

func TestExpiryWorker_SurvivesSweepErrors(t *testing.T) {
	allocation := &mockAllocationService{sweepErr: errors.New("store down")}
	w := NewExpiryWorker(allocation, &ExpiryWorkerConfig{
		SweepInterval: 10 * time.Millisecond,
		BatchSize:     100,
	})

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	// Sweeps keep coming despite the failures.
	assert.Eventually(t, func() bool {
		return allocation.sweeps.Load() >= 2
	}, time.Second, 5*time.Millisecond)
	assert.Zero(t, w.TotalExpired())
}
