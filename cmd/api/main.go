package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fridgeops_backend/internal/adapters/storage"
	"fridgeops_backend/internal/contacts"
	"fridgeops_backend/internal/conversation"
	"fridgeops_backend/internal/events"
	apphttp "fridgeops_backend/internal/http"
	"fridgeops_backend/internal/http/router"
	"fridgeops_backend/internal/messaging"
	"fridgeops_backend/internal/notification"
	"fridgeops_backend/internal/pricing"
	"fridgeops_backend/internal/tickets"
	"fridgeops_backend/internal/villages"
	"fridgeops_backend/platform/config"
	"fridgeops_backend/platform/db"
	"fridgeops_backend/platform/logger"
	"fridgeops_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(cfg, "migrations", log)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus()

	// Shared validator instance for dependency injection
	val := validator.New()

	// Storage for WhatsApp media (MinIO); degrades to a logged no-op when
	// not configured so the webhook keeps working in development.
	var storageSvc storage.Service
	if cfg.IsMinIOEnabled() {
		minioSvc, err := storage.NewMinIOService(cfg)
		if err != nil {
			log.Error("failed to initialize storage service", "error", err)
			panic("failed to initialize storage service: " + err.Error())
		}
		if err := withRetry(ctx, log, "ensure photo bucket", 5, 2*time.Second, func() error {
			return minioSvc.EnsureBucketExists(ctx)
		}); err != nil {
			log.Error("failed to ensure photo bucket exists", "error", err)
			panic("failed to ensure photo bucket exists: " + err.Error())
		}
		storageSvc = minioSvc
		log.Info("storage service initialized", "photoBucket", cfg.GetMinioBucketPhotos())
	} else {
		storageSvc = storage.Disabled{}
		log.Warn("MINIO_ENDPOINT not configured; media storage disabled")
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	contactsModule := contacts.NewModule(pool, eventBus, cfg.GetContactRetention(), val, log)
	villagesModule := villages.NewModule(pool, log)
	pricingModule := pricing.NewModule(pool, val, log)
	ticketsModule := tickets.NewModule(pool, eventBus, val, log)

	conversationStates := conversation.NewRepository(pool, cfg.GetConversationTTL())

	whatsappClient := messaging.NewClient(cfg, log)
	messagingModule := messaging.NewModule(messaging.Deps{
		Contacts: contactsModule.Service(),
		States:   conversationStates,
		Villages: villagesModule.Service(),
		Pricing:  pricingModule.Calculator(),
		Tickets:  ticketsModule.Service(),
		Photos:   storageSvc,
		Bus:      eventBus,
		Config:   cfg,
		Logger:   log,
	})

	// Notification module subscribes to ticket and conversation events.
	notificationModule := notification.NewModule(pool, contactsModule.Service(), whatsappClient, eventBus, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			messagingModule,
			contactsModule,
			villagesModule,
			pricingModule,
			ticketsModule,
			notificationModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = shutdownCtx
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
