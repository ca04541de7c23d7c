// Package notification schedules and delivers WhatsApp notifications through
// a Postgres outbox: appointment reminders, completion notices, feedback
// follow-ups, and replays of failed conversation replies.
package notification

import (
	"context"
	"time"

	"fridgeops_backend/internal/contacts"
	"fridgeops_backend/internal/events"
	apphttp "fridgeops_backend/internal/http"
	"fridgeops_backend/internal/notification/outbox"
	"fridgeops_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ContactNames resolves contact display names for notification payloads.
type ContactNames interface {
	Get(ctx context.Context, id int64) (contacts.Contact, error)
}

// Module is the notification bounded context module implementing http.Module.
type Module struct {
	service *Service
	handler *Handler
	names   ContactNames
	log     *logger.Logger
}

// NewModule creates the notification module and subscribes it to the domain
// events that drive scheduling.
func NewModule(pool *pgxpool.Pool, names ContactNames, sender Sender, bus events.Bus, log *logger.Logger) *Module {
	service := NewService(outbox.New(pool), sender, log)
	m := &Module{
		service: service,
		handler: NewHandler(service),
		names:   names,
		log:     log,
	}

	bus.Subscribe(events.TicketCreated{}.EventName(), events.HandlerFunc(m.onTicketCreated))
	bus.Subscribe(events.TicketCompleted{}.EventName(), events.HandlerFunc(m.onTicketCompleted))
	bus.Subscribe(events.ReplySendFailed{}.EventName(), events.HandlerFunc(m.onReplySendFailed))
	bus.Subscribe(events.NotificationOutboxDue{}.EventName(), events.HandlerFunc(m.onOutboxDue))

	return m
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "notification"
}

// Service exposes the notification service for cross-module wiring.
func (m *Module) Service() *Service {
	return m.service
}

// RegisterRoutes mounts the manual processing endpoint.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.V1.POST("/notifications/process", m.handler.HandleProcess)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)

// onTicketCreated schedules an appointment reminder for tickets that carry a
// visit time: 24 hours ahead, or immediately when the visit is closer.
func (m *Module) onTicketCreated(ctx context.Context, event events.Event) error {
	e, ok := event.(events.TicketCreated)
	if !ok || e.ScheduledFor == nil || e.WhatsAppID == "" {
		return nil
	}

	runAt := e.ScheduledFor.Add(-reminderLeadTime)
	if runAt.Before(time.Now()) {
		runAt = time.Now()
	}

	_, err := m.service.Schedule(ctx, ScheduleParams{
		ContactID:  e.ContactID,
		TicketID:   &e.TicketID,
		WhatsAppID: e.WhatsAppID,
		Kind:       KindAppointmentReminder,
		Payload: Payload{
			CustomerName: m.contactName(ctx, e.ContactID),
			TicketCode:   e.Code,
			TicketType:   e.Type,
			ScheduledFor: e.ScheduledFor,
		},
		RunAt: runAt,
	})
	return err
}

// onTicketCompleted schedules the completion notice right away and a
// feedback follow-up a day later.
func (m *Module) onTicketCompleted(ctx context.Context, event events.Event) error {
	e, ok := event.(events.TicketCompleted)
	if !ok || e.WhatsAppID == "" {
		return nil
	}

	name := m.contactName(ctx, e.ContactID)
	payload := Payload{CustomerName: name, TicketCode: e.Code, TicketType: e.Type}

	if _, err := m.service.Schedule(ctx, ScheduleParams{
		ContactID:  e.ContactID,
		TicketID:   &e.TicketID,
		WhatsAppID: e.WhatsAppID,
		Kind:       KindJobCompleted,
		Payload:    payload,
		RunAt:      time.Now(),
	}); err != nil {
		return err
	}

	_, err := m.service.Schedule(ctx, ScheduleParams{
		ContactID:  e.ContactID,
		TicketID:   &e.TicketID,
		WhatsAppID: e.WhatsAppID,
		Kind:       KindFollowUp,
		Payload:    payload,
		RunAt:      time.Now().Add(followUpDelay),
	})
	return err
}

// onReplySendFailed dead-letters the undelivered reply for a retry.
func (m *Module) onReplySendFailed(ctx context.Context, event events.Event) error {
	e, ok := event.(events.ReplySendFailed)
	if !ok || e.WhatsAppID == "" || e.Body == "" {
		return nil
	}

	_, err := m.service.Schedule(ctx, ScheduleParams{
		ContactID:  e.ContactID,
		WhatsAppID: e.WhatsAppID,
		Kind:       KindResendReply,
		Payload:    Payload{Body: e.Body},
		RunAt:      time.Now().Add(resendDelay),
	})
	return err
}

// onOutboxDue delivers a record whose scheduled task fired.
func (m *Module) onOutboxDue(ctx context.Context, event events.Event) error {
	e, ok := event.(events.NotificationOutboxDue)
	if !ok {
		return nil
	}
	return m.service.Process(ctx, e.OutboxID)
}

func (m *Module) contactName(ctx context.Context, contactID int64) string {
	contact, err := m.names.Get(ctx, contactID)
	if err != nil {
		m.log.Warn("contact lookup for notification failed", "contactId", contactID, "error", err)
		return ""
	}
	if contact.Name == nil {
		return ""
	}
	return *contact.Name
}
