package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fridgeops_backend/internal/contacts"
	"fridgeops_backend/internal/events"
	"fridgeops_backend/internal/messaging"
	"fridgeops_backend/internal/notification"
	"fridgeops_backend/internal/scheduler"
	"fridgeops_backend/platform/config"
	"fridgeops_backend/platform/db"
	"fridgeops_backend/platform/logger"
	"fridgeops_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// The worker binary runs the notification outbox dispatcher and the asynq
// consumer. It shares the database with the API but owns no HTTP surface.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting worker", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.GetRedisURL() == "" {
		log.Error("REDIS_URL not configured; worker cannot run")
		os.Exit(1)
	}

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

	eventBus := events.NewInMemoryBus()
	val := validator.New()

	// The notification module subscribes its outbox handler on the bus; the
	// worker publishes NotificationOutboxDue when asynq delivers a task.
	contactsModule := contacts.NewModule(pool, eventBus, cfg.GetContactRetention(), val, log)
	whatsappClient := messaging.NewClient(cfg, log)
	notification.NewModule(pool, contactsModule.Service(), whatsappClient, eventBus, log)

	dispatcher, err := scheduler.NewNotificationOutboxDispatcher(cfg, pool, log)
	if err != nil {
		log.Error("failed to build outbox dispatcher", "error", err)
		panic("failed to build outbox dispatcher: " + err.Error())
	}
	defer dispatcher.Close()

	worker, err := scheduler.NewWorker(cfg, eventBus, log)
	if err != nil {
		log.Error("failed to build scheduler worker", "error", err)
		panic("failed to build scheduler worker: " + err.Error())
	}

	go dispatcher.Run(ctx)

	log.Info("worker running", "queue", cfg.GetAsynqQueueName())
	worker.Run(ctx)
	log.Info("worker stopped")
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if lastErr = fn(); lastErr == nil {
			return nil
		}
		log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", lastErr)

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return lastErr
}
