package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fridgeops_backend/internal/notification/outbox"
	"fridgeops_backend/platform/logger"

	"github.com/google/uuid"
)

// Reminder and follow-up scheduling offsets.
const (
	reminderLeadTime = 24 * time.Hour
	followUpDelay    = 24 * time.Hour
	resendDelay      = 5 * time.Minute
)

// maxDeliveryAttempts bounds send retries before a record is marked failed.
const maxDeliveryAttempts = 3

// Sender delivers outbound notification messages.
type Sender interface {
	SendText(ctx context.Context, to, body string) error
}

// OutboxStore is the persistence port for scheduled notifications.
type OutboxStore interface {
	Insert(ctx context.Context, p outbox.InsertParams) (uuid.UUID, error)
	GetByID(ctx context.Context, id uuid.UUID) (outbox.Record, error)
	ClaimPending(ctx context.Context, limit int) ([]outbox.Record, error)
	MarkPending(ctx context.Context, id uuid.UUID, lastError *string) error
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	MarkSucceeded(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error
}

// Service schedules outbox notifications and delivers due ones over WhatsApp.
type Service struct {
	store  OutboxStore
	sender Sender
	log    *logger.Logger
}

// NewService creates a notification service.
func NewService(store OutboxStore, sender Sender, log *logger.Logger) *Service {
	return &Service{store: store, sender: sender, log: log}
}

// ScheduleParams identify the recipient and template inputs for one
// scheduled notification.
type ScheduleParams struct {
	ContactID  int64
	TicketID   *int64
	WhatsAppID string
	Kind       string
	Payload    Payload
	RunAt      time.Time
}

// Schedule inserts a pending outbox record.
func (s *Service) Schedule(ctx context.Context, p ScheduleParams) (uuid.UUID, error) {
	id, err := s.store.Insert(ctx, outbox.InsertParams{
		ContactID:  p.ContactID,
		TicketID:   p.TicketID,
		WhatsAppID: p.WhatsAppID,
		Kind:       p.Kind,
		Payload:    p.Payload,
		RunAt:      p.RunAt,
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("schedule %s notification: %w", p.Kind, err)
	}
	s.log.Info("notification scheduled", "kind", p.Kind, "outboxId", id, "runAt", p.RunAt)
	return id, nil
}

// Process delivers a single outbox record by id. Called by the asynq worker
// when the record's task fires.
func (s *Service) Process(ctx context.Context, id uuid.UUID) error {
	rec, err := s.store.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load outbox record %s: %w", id, err)
	}
	if rec.Status == outbox.StatusSucceeded {
		return nil
	}

	return s.deliver(ctx, rec)
}

// ProcessDue claims and delivers up to limit due records in one pass. This
// backs the manual processing endpoint and works without Redis.
func (s *Service) ProcessDue(ctx context.Context, limit int) (processed, succeeded int, err error) {
	records, err := s.store.ClaimPending(ctx, limit)
	if err != nil {
		return 0, 0, fmt.Errorf("claim pending notifications: %w", err)
	}

	for _, rec := range records {
		if rec.RunAt.After(time.Now()) {
			// Claimed early; push it back for the dispatcher.
			if err := s.store.MarkPending(ctx, rec.ID, nil); err != nil {
				s.log.Warn("outbox unclaim failed", "outboxId", rec.ID, "error", err)
			}
			continue
		}
		processed++
		if err := s.deliver(ctx, rec); err == nil {
			succeeded++
		}
	}
	return processed, succeeded, nil
}

func (s *Service) deliver(ctx context.Context, rec outbox.Record) error {
	if err := s.store.MarkProcessing(ctx, rec.ID); err != nil {
		return fmt.Errorf("mark processing %s: %w", rec.ID, err)
	}

	var payload Payload
	if len(rec.Payload) > 0 {
		if err := json.Unmarshal(rec.Payload, &payload); err != nil {
			msg := fmt.Sprintf("decode payload: %v", err)
			_ = s.store.MarkFailed(ctx, rec.ID, msg)
			return fmt.Errorf("outbox %s: %s", rec.ID, msg)
		}
	}

	body := renderMessage(rec.Kind, payload, time.Now())
	if err := s.sender.SendText(ctx, rec.WhatsAppID, body); err != nil {
		s.log.SendFailure(rec.WhatsAppID, err)
		// MarkProcessing incremented attempts; retry until the cap.
		if rec.Attempts+1 < maxDeliveryAttempts {
			msg := err.Error()
			_ = s.store.MarkPending(ctx, rec.ID, &msg)
		} else {
			_ = s.store.MarkFailed(ctx, rec.ID, err.Error())
		}
		return fmt.Errorf("deliver outbox %s: %w", rec.ID, err)
	}

	if err := s.store.MarkSucceeded(ctx, rec.ID); err != nil {
		return fmt.Errorf("mark succeeded %s: %w", rec.ID, err)
	}
	s.log.Info("notification delivered", "kind", rec.Kind, "outboxId", rec.ID, "waId", rec.WhatsAppID)
	return nil
}
