// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"fridgeops_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Contact Domain Events
// =============================================================================

// ContactCreated is published when a contact is created from a first inbound message.
type ContactCreated struct {
	BaseEvent
	ContactID  int64  `json:"contactId"`
	WhatsAppID string `json:"whatsappId"`
}

func (e ContactCreated) EventName() string { return "contacts.contact.created" }

// ConsentGranted is published when a contact opts in.
type ConsentGranted struct {
	BaseEvent
	ContactID  int64  `json:"contactId"`
	WhatsAppID string `json:"whatsappId"`
}

func (e ConsentGranted) EventName() string { return "contacts.consent.granted" }

// ConsentWithdrawn is published when a contact declines or withdraws consent.
type ConsentWithdrawn struct {
	BaseEvent
	ContactID  int64  `json:"contactId"`
	WhatsAppID string `json:"whatsappId"`
}

func (e ConsentWithdrawn) EventName() string { return "contacts.consent.withdrawn" }

// =============================================================================
// Conversation Domain Events
// =============================================================================

// FlowCompleted is published when an intake flow reaches a terminal step.
type FlowCompleted struct {
	BaseEvent
	ContactID  int64  `json:"contactId"`
	WhatsAppID string `json:"whatsappId"`
	FlowType   string `json:"flowType"`
	FinalStep  string `json:"finalStep"`
}

func (e FlowCompleted) EventName() string { return "conversation.flow.completed" }

// ReplySendFailed is published when an outbound reply could not be delivered.
// The notification module dead-letters it into the outbox for retry.
type ReplySendFailed struct {
	BaseEvent
	ContactID  int64  `json:"contactId"`
	WhatsAppID string `json:"whatsappId"`
	Body       string `json:"body"`
	Reason     string `json:"reason"`
}

func (e ReplySendFailed) EventName() string { return "conversation.reply.send_failed" }

// =============================================================================
// Ticket Domain Events
// =============================================================================

// TicketCreated is published when a ticket is created, from a flow or the dashboard.
type TicketCreated struct {
	BaseEvent
	TicketID     int64      `json:"ticketId"`
	ContactID    int64      `json:"contactId"`
	WhatsAppID   string     `json:"whatsappId"`
	Code         string     `json:"code"`
	Type         string     `json:"type"`
	ScheduledFor *time.Time `json:"scheduledFor,omitempty"`
}

func (e TicketCreated) EventName() string { return "tickets.ticket.created" }

// TicketCompleted is published when a ticket transitions to completed.
type TicketCompleted struct {
	BaseEvent
	TicketID   int64  `json:"ticketId"`
	ContactID  int64  `json:"contactId"`
	WhatsAppID string `json:"whatsappId"`
	Code       string `json:"code"`
	Type       string `json:"type"`
}

func (e TicketCompleted) EventName() string { return "tickets.ticket.completed" }

// =============================================================================
// Notification Domain Events
// =============================================================================

// NotificationOutboxDue is published by the scheduler when a notification outbox
// record should be processed.
type NotificationOutboxDue struct {
	BaseEvent
	OutboxID uuid.UUID `json:"outboxId"`
}

func (e NotificationOutboxDue) EventName() string { return "notification.outbox.due" }
