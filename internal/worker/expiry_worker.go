package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/EiadSorour/Ticketr/internal/service"
	"github.com/EiadSorour/Ticketr/pkg/logger"
)

// ExpiryWorkerConfig contains configuration for the expiry worker
type ExpiryWorkerConfig struct {
	// SweepInterval is the interval between sweeps for overdue offers
	SweepInterval time.Duration
	// BatchSize is the number of offers to expire per sweep
	BatchSize int
}

// DefaultExpiryWorkerConfig returns default configuration
func DefaultExpiryWorkerConfig() *ExpiryWorkerConfig {
	return &ExpiryWorkerConfig{
		SweepInterval: 5 * time.Second,
		BatchSize:     100,
	}
}

// ExpiryWorker is the backstop behind the per-offer timers. Timers die
// with the process; the sweep finds offers whose deadline passed with
// no timer left to fire and lapses them through the same idempotent
// path, so a timer and a sweep racing on one offer is harmless.
type ExpiryWorker struct {
	allocation service.AllocationService
	config     *ExpiryWorkerConfig
	log        *logger.Logger
	stopCh     chan struct{}
	wg         sync.WaitGroup
	mu         sync.Mutex
	running    bool

	totalExpired int64
	lastSweep    time.Time
}

// NewExpiryWorker creates a new expiry worker
func NewExpiryWorker(allocation service.AllocationService, config *ExpiryWorkerConfig) *ExpiryWorker {
	if config == nil {
		config = DefaultExpiryWorkerConfig()
	}

	return &ExpiryWorker{
		allocation: allocation,
		config:     config,
		log:        logger.Get(),
		stopCh:     make(chan struct{}),
	}
}

// Start starts the expiry worker
func (w *ExpiryWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("expiry worker already running")
	}
	w.running = true
	w.mu.Unlock()

	w.log.Info("Starting expiry worker")

	w.wg.Add(1)
	go w.sweepLoop(ctx)

	return nil
}

// Stop stops the expiry worker
func (w *ExpiryWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	w.log.Info("Stopping expiry worker")
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("Expiry worker stopped")
}

// TotalExpired returns how many offers the sweeps have lapsed
func (w *ExpiryWorker) TotalExpired() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.totalExpired
}

func (w *ExpiryWorker) sweepLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.SweepInterval)
	defer ticker.Stop()

	// Run immediately on start; this is what catches offers orphaned
	// by a restart.
	w.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *ExpiryWorker) sweep(ctx context.Context) {
	w.mu.Lock()
	w.lastSweep = time.Now()
	w.mu.Unlock()

	expired, err := w.allocation.ExpireDueOffers(ctx, w.config.BatchSize)
	if err != nil {
		w.log.Error(fmt.Sprintf("Failed to expire due offers: %v", err))
		return
	}

	if expired > 0 {
		w.log.Info(fmt.Sprintf("Sweep expired %d overdue offers", expired))
		w.mu.Lock()
		w.totalExpired += int64(expired)
		w.mu.Unlock()
	}
}
