package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/EiadSorour/Ticketr/internal/lock"
	"github.com/EiadSorour/Ticketr/internal/metrics"
	"github.com/EiadSorour/Ticketr/internal/repository"
	"github.com/EiadSorour/Ticketr/internal/scheduler"
	"github.com/EiadSorour/Ticketr/internal/service"
	"github.com/EiadSorour/Ticketr/internal/worker"
	"github.com/EiadSorour/Ticketr/pkg/config"
	"github.com/EiadSorour/Ticketr/pkg/database"
	"github.com/EiadSorour/Ticketr/pkg/logger"
	pkgredis "github.com/EiadSorour/Ticketr/pkg/redis"
)

// Standalone offer-expiry sweeper. Deployments that scale the API
// horizontally run one of these instead of relying on each replica's
// in-process timers. It shares the engine's status-guarded transitions,
// so running it next to the API is safe too.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logCfg := &logger.Config{
		Level:       cfg.App.Environment,
		ServiceName: "expiry-worker",
		Development: cfg.IsDevelopment(),
	}
	if err := logger.Init(logCfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("Starting offer expiry worker...")

	if err := metrics.Init(); err != nil {
		appLog.Warn(fmt.Sprintf("Metrics disabled: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.NewPostgres(ctx, &cfg.Database, false)
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Failed to connect to database: %v", err))
	}
	defer db.Close()
	appLog.Info("Database connected")

	// The Redis lock keeps the sweep from racing API replicas over the
	// same event. Without Redis the status guards still prevent double
	// transitions, only the scan ordering loosens.
	var locker lock.Locker = lock.NewKeyedMutex()
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(ctx, &cfg.Redis)
		if err != nil {
			appLog.Warn(fmt.Sprintf("Redis connection failed, using in-process lock: %v", err))
		} else {
			defer redisClient.Close()
			locker = lock.NewRedisLocker(redisClient)
			appLog.Info(fmt.Sprintf("Redis connected at %s", cfg.Redis.Addr()))
		}
	}

	var publisher service.EventPublisher = service.NewNoOpEventPublisher()
	if cfg.Kafka.Enabled {
		kafkaPublisher, err := service.NewKafkaEventPublisher(ctx, &service.EventPublisherConfig{
			Brokers:     cfg.Kafka.Brokers,
			Topic:       cfg.Kafka.Topic,
			ServiceName: "expiry-worker",
			ClientID:    cfg.Kafka.ClientID,
		})
		if err != nil {
			appLog.Warn(fmt.Sprintf("Kafka connection failed, events will not be published: %v", err))
		} else {
			publisher = kafkaPublisher
			defer publisher.Close()
		}
	}

	eventRepo := repository.NewPostgresEventRepository(db.Pool())
	entryRepo := repository.NewPostgresWaitingListRepository(db.Pool())
	ticketRepo := repository.NewPostgresTicketRepository(db.Pool())

	availability := service.NewAvailabilityService(eventRepo, entryRepo, ticketRepo)
	allocation := service.NewAllocationService(
		eventRepo, entryRepo, availability, publisher,
		locker, scheduler.NewTimerRegistry(), cfg.Engine.OfferTTL,
	)

	expiryWorker := worker.NewExpiryWorker(allocation, &worker.ExpiryWorkerConfig{
		SweepInterval: cfg.Engine.SweepInterval,
		BatchSize:     cfg.Engine.SweepBatchSize,
	})
	if err := expiryWorker.Start(ctx); err != nil {
		appLog.Fatal(fmt.Sprintf("Failed to start expiry worker: %v", err))
	}

	appLog.Info(fmt.Sprintf("Sweeping every %s, batch size %d", cfg.Engine.SweepInterval, cfg.Engine.SweepBatchSize))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLog.Info("Shutting down expiry worker...")
	expiryWorker.Stop()
	appLog.Info(fmt.Sprintf("Expiry worker stopped, %d offers expired this run", expiryWorker.TotalExpired()))
}
