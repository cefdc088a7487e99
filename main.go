package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/EiadSorour/Ticketr/internal/di"
	"github.com/EiadSorour/Ticketr/internal/metrics"
	"github.com/EiadSorour/Ticketr/internal/service"
	"github.com/EiadSorour/Ticketr/migrations"
	"github.com/EiadSorour/Ticketr/pkg/config"
	"github.com/EiadSorour/Ticketr/pkg/database"
	"github.com/EiadSorour/Ticketr/pkg/logger"
	"github.com/EiadSorour/Ticketr/pkg/middleware"
	pkgredis "github.com/EiadSorour/Ticketr/pkg/redis"
	"github.com/EiadSorour/Ticketr/pkg/telemetry"
)

func main() {
	runtime.GOMAXPROCS(runtime.NumCPU())

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logCfg := &logger.Config{
		Level:       cfg.App.Environment,
		ServiceName: cfg.App.Name,
		Development: cfg.IsDevelopment(),
	}
	if err := logger.Init(logCfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("Starting waiting-list engine...")

	ctx := context.Background()

	// Initialize tracing
	if _, err := telemetry.Init(ctx, &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    cfg.OTel.ServiceName,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		CollectorAddr:  cfg.OTel.CollectorAddr,
		SampleRatio:    cfg.OTel.SampleRatio,
	}); err != nil {
		appLog.Warn(fmt.Sprintf("Tracing disabled: %v", err))
	}

	if err := metrics.Init(); err != nil {
		appLog.Warn(fmt.Sprintf("Metrics disabled: %v", err))
	}

	// The database is the source of truth; without it nothing works.
	db, err := database.NewPostgres(ctx, &cfg.Database, cfg.OTel.Enabled)
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Database connection failed: %v", err))
	}
	defer db.Close()
	appLog.Info(fmt.Sprintf("Database connected (pool: min=%d, max=%d)", cfg.Database.MinConns, cfg.Database.MaxConns))

	if err := migrations.Apply(ctx, db.Pool()); err != nil {
		appLog.Fatal(fmt.Sprintf("Failed to apply migrations: %v", err))
	}

	// Redis is optional: it adds request idempotency and a cross-replica
	// event lock, both degrade gracefully without it.
	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(ctx, &cfg.Redis)
		if err != nil {
			appLog.Warn(fmt.Sprintf("Redis connection failed, running without it: %v", err))
			redisClient = nil
		} else {
			defer redisClient.Close()
			appLog.Info(fmt.Sprintf("Redis connected at %s", cfg.Redis.Addr()))
		}
	}

	// Kafka publisher for waitlist lifecycle events
	var publisher service.EventPublisher
	if cfg.Kafka.Enabled {
		kafkaPublisher, err := service.NewKafkaEventPublisher(ctx, &service.EventPublisherConfig{
			Brokers:     cfg.Kafka.Brokers,
			Topic:       cfg.Kafka.Topic,
			ServiceName: cfg.App.Name,
			ClientID:    cfg.Kafka.ClientID,
		})
		if err != nil {
			appLog.Warn(fmt.Sprintf("Kafka connection failed, events will not be published: %v", err))
		} else {
			publisher = kafkaPublisher
			appLog.Info(fmt.Sprintf("Kafka connected, publishing to %q", cfg.Kafka.Topic))
		}
	}

	container := di.NewContainer(&di.ContainerConfig{
		DB:        db,
		Redis:     redisClient,
		Publisher: publisher,
		Engine:    &cfg.Engine,
		Stripe:    &cfg.Stripe,
	})
	defer container.Shutdown()

	// Re-arm expiry timers for offers that survived a restart. The sweep
	// worker would catch them eventually; this restores exact deadlines.
	if rearmed, err := container.AllocationService.RearmLiveOffers(ctx); err != nil {
		appLog.Warn(fmt.Sprintf("Failed to re-arm offer timers: %v", err))
	} else if rearmed > 0 {
		appLog.Info(fmt.Sprintf("Re-armed %d offer expiry timers", rearmed))
	}

	if err := container.ExpiryWorker.Start(ctx); err != nil {
		appLog.Fatal(fmt.Sprintf("Failed to start expiry worker: %v", err))
	}

	router := setupRouter(cfg, container, redisClient)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 2 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		appLog.Info(fmt.Sprintf("Waiting-list engine listening on %s", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Fatal(fmt.Sprintf("Failed to start server: %v", err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error(fmt.Sprintf("Server forced to shutdown: %v", err))
	}

	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		appLog.Warn(fmt.Sprintf("Tracer shutdown failed: %v", err))
	}

	appLog.Info("Server exited gracefully")
}

func setupRouter(cfg *config.Config, container *di.Container, redisClient *pkgredis.Client) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(telemetry.TracingMiddleware(cfg.App.Name))

	router.GET("/health", container.HealthHandler.Health)
	router.GET("/ready", container.HealthHandler.Ready)

	// Stripe calls this with its own signature scheme, no JWT
	if container.WebhookHandler != nil {
		router.POST("/webhooks/stripe", container.WebhookHandler.HandleStripeWebhook)
	}

	auth := middleware.AuthMiddleware(&middleware.AuthConfig{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
	})

	var idem gin.HandlerFunc
	if redisClient != nil {
		idemCfg := middleware.DefaultIdempotencyConfig(redisClient)
		idemCfg.SkipPaths = []string{"/health", "/ready"}
		idem = middleware.IdempotencyMiddleware(idemCfg)
	} else {
		idem = func(c *gin.Context) { c.Next() }
	}

	v1 := router.Group("/api/v1")
	v1.Use(auth)
	{
		events := v1.Group("/events")
		{
			events.POST("", idem, container.EventHandler.Create)
			events.GET("/mine", container.EventHandler.ListMine)
			events.GET("/:id", container.EventHandler.Get)
			events.PUT("/:id/tiers", idem, container.EventHandler.UpdateTiers)
			events.DELETE("/:id", idem, container.EventHandler.Cancel)
			events.GET("/:id/availability", container.EventHandler.Availability)
			events.GET("/:id/queue/status", container.QueueHandler.Status)
		}

		queue := v1.Group("/queue")
		{
			queue.POST("/join", idem, container.QueueHandler.Join)
			queue.POST("/entries/:id/release", idem, container.QueueHandler.Release)
			queue.POST("/entries/:id/confirm", idem, container.PurchaseHandler.Confirm)
		}

		tickets := v1.Group("/tickets")
		{
			tickets.GET("/mine", container.TicketHandler.ListMine)
			tickets.GET("/:id", container.TicketHandler.Get)
			tickets.POST("/:id/redeem", idem, container.TicketHandler.Redeem)
			tickets.POST("/:id/refund", idem, container.TicketHandler.Refund)
		}
	}

	return router
}
