package di

import (
	"github.com/EiadSorour/Ticketr/internal/handler"
	"github.com/EiadSorour/Ticketr/internal/lock"
	"github.com/EiadSorour/Ticketr/internal/repository"
	"github.com/EiadSorour/Ticketr/internal/scheduler"
	"github.com/EiadSorour/Ticketr/internal/service"
	"github.com/EiadSorour/Ticketr/internal/worker"
	"github.com/EiadSorour/Ticketr/pkg/config"
	"github.com/EiadSorour/Ticketr/pkg/database"
	"github.com/EiadSorour/Ticketr/pkg/redis"
)

// Container holds all dependencies for the waiting-list engine
type Container struct {
	// Infrastructure
	DB     *database.Postgres
	Redis  *redis.Client
	Locker lock.Locker
	Timers *scheduler.TimerRegistry

	// Repositories
	EventRepo  repository.EventRepository
	EntryRepo  repository.WaitingListRepository
	TicketRepo repository.TicketRepository

	// Services
	Publisher           service.EventPublisher
	AvailabilityService service.AvailabilityService
	AllocationService   service.AllocationService
	WaitlistService     service.WaitlistService
	PurchaseService     service.PurchaseService
	EventService        service.EventService
	TicketService       service.TicketService

	// Workers
	ExpiryWorker *worker.ExpiryWorker

	// Handlers
	HealthHandler   *handler.HealthHandler
	QueueHandler    *handler.QueueHandler
	PurchaseHandler *handler.PurchaseHandler
	EventHandler    *handler.EventHandler
	TicketHandler   *handler.TicketHandler
	WebhookHandler  *handler.WebhookHandler
}

// ContainerConfig contains configuration for building the container
type ContainerConfig struct {
	DB        *database.Postgres
	Redis     *redis.Client
	Publisher service.EventPublisher
	Engine    *config.EngineConfig
	Stripe    *config.StripeConfig
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *ContainerConfig) *Container {
	c := &Container{
		DB:        cfg.DB,
		Redis:     cfg.Redis,
		Publisher: cfg.Publisher,
		Timers:    scheduler.NewTimerRegistry(),
	}

	if c.Publisher == nil {
		c.Publisher = service.NewNoOpEventPublisher()
	}

	// A single instance serializes per-event mutations in process.
	// With Redis the lock also covers replicas.
	if c.Redis != nil {
		c.Locker = lock.NewRedisLocker(c.Redis)
	} else {
		c.Locker = lock.NewKeyedMutex()
	}

	// Initialize repositories
	c.EventRepo = repository.NewPostgresEventRepository(c.DB.Pool())
	c.EntryRepo = repository.NewPostgresWaitingListRepository(c.DB.Pool())
	c.TicketRepo = repository.NewPostgresTicketRepository(c.DB.Pool())

	// Initialize services
	c.AvailabilityService = service.NewAvailabilityService(c.EventRepo, c.EntryRepo, c.TicketRepo)
	c.AllocationService = service.NewAllocationService(
		c.EventRepo, c.EntryRepo, c.AvailabilityService, c.Publisher,
		c.Locker, c.Timers, cfg.Engine.OfferTTL,
	)
	c.WaitlistService = service.NewWaitlistService(c.EventRepo, c.EntryRepo, c.AllocationService, c.Publisher)
	c.PurchaseService = service.NewPurchaseService(
		c.EventRepo, c.EntryRepo, c.TicketRepo, c.Publisher, c.AllocationService, c.Locker, c.Timers,
	)
	c.EventService = service.NewEventService(c.EventRepo, c.EntryRepo, c.TicketRepo, c.Publisher, c.Locker)
	c.TicketService = service.NewTicketService(c.TicketRepo, c.AllocationService)

	// Expiry worker backstops the in-process offer timers
	c.ExpiryWorker = worker.NewExpiryWorker(c.AllocationService, &worker.ExpiryWorkerConfig{
		SweepInterval: cfg.Engine.SweepInterval,
		BatchSize:     cfg.Engine.SweepBatchSize,
	})

	// Initialize handlers
	c.HealthHandler = handler.NewHealthHandler(c.DB, c.Redis)
	c.QueueHandler = handler.NewQueueHandler(c.WaitlistService, c.AllocationService)
	c.PurchaseHandler = handler.NewPurchaseHandler(c.PurchaseService)
	c.EventHandler = handler.NewEventHandler(c.EventService, c.AvailabilityService)
	c.TicketHandler = handler.NewTicketHandler(c.TicketService)

	if cfg.Stripe != nil && cfg.Stripe.WebhookSecret != "" {
		c.WebhookHandler = handler.NewWebhookHandler(c.PurchaseService, c.AllocationService, cfg.Stripe.WebhookSecret)
	}

	return c
}

// Shutdown stops background work. The HTTP server must be drained first.
func (c *Container) Shutdown() {
	if c.ExpiryWorker != nil {
		c.ExpiryWorker.Stop()
	}
	if c.Timers != nil {
		c.Timers.StopAll()
	}
	if c.Publisher != nil {
		_ = c.Publisher.Close()
	}
}
