package tickets

import (
	"context"
	"errors"
	"time"

	"fridgeops_backend/internal/events"
	"fridgeops_backend/platform/apperr"
	"fridgeops_backend/platform/logger"
	"fridgeops_backend/platform/sanitize"
)

const codeRetries = 5

// allowedTransitions defines the forward status order. Closing is allowed
// from any non-closed status; reopening is not supported.
var allowedTransitions = map[string][]string{
	StatusOpen:       {StatusAssigned, StatusInProgress, StatusClosed},
	StatusAssigned:   {StatusInProgress, StatusOpen, StatusClosed},
	StatusInProgress: {StatusCompleted, StatusClosed},
	StatusCompleted:  {StatusClosed},
	StatusClosed:     {},
}

// Store abstracts ticket persistence so the service is testable.
// Repository is the production implementation.
type Store interface {
	Create(ctx context.Context, p CreateParams) (Ticket, error)
	GetByID(ctx context.Context, id int64) (Ticket, error)
	GetByCode(ctx context.Context, code string) (Ticket, error)
	LatestRepairForContact(ctx context.Context, contactID int64) (Ticket, error)
	List(ctx context.Context, status string, limit int) ([]Ticket, error)
	UpdateStatus(ctx context.Context, id int64, status string) (Ticket, error)
	Assign(ctx context.Context, id int64, assignee string) (Ticket, error)
	AddPhoto(ctx context.Context, ticketID int64, storagePath, caption string) (Photo, error)
	ContactWhatsAppID(ctx context.Context, contactID int64) (string, error)
}

var _ Store = (*Repository)(nil)

// Service wraps the store with code generation, transition rules and
// event publishing.
type Service struct {
	store Store
	bus   events.Bus
	log   *logger.Logger
}

// NewService creates a new tickets service.
func NewService(store Store, bus events.Bus, log *logger.Logger) *Service {
	return &Service{store: store, bus: bus, log: log}
}

// CreateRepair creates an open repair ticket from a completed repair flow.
func (s *Service) CreateRepair(ctx context.Context, contactID int64, description string) (Ticket, error) {
	description = sanitize.Text(description)
	if description == "" {
		description = "Repair request"
	}
	return s.create(ctx, CreateParams{
		ContactID:   contactID,
		Category:    TypeRepair,
		Type:        TypeRepair,
		Description: description,
	})
}

// CreateManualParams carries the fields for dashboard ticket creation.
type CreateManualParams struct {
	ContactID    int64
	Type         string
	Category     string
	Description  string
	ScheduledFor *time.Time
}

// CreateManual creates a ticket from the dashboard.
func (s *Service) CreateManual(ctx context.Context, p CreateManualParams) (Ticket, error) {
	if p.Type != TypeSell && p.Type != TypeRepair {
		return Ticket{}, apperr.Validation("invalid ticket type: " + p.Type)
	}
	if p.Category == "" {
		p.Category = p.Type
	}
	return s.create(ctx, CreateParams{
		ContactID:    p.ContactID,
		Category:     p.Category,
		Type:         p.Type,
		Description:  p.Description,
		ScheduledFor: p.ScheduledFor,
	})
}

// create inserts a ticket, regenerating the code on a same-day collision.
func (s *Service) create(ctx context.Context, p CreateParams) (Ticket, error) {
	var ticket Ticket
	var err error
	for attempt := 0; attempt < codeRetries; attempt++ {
		p.Code = newCode(p.Type, time.Now())
		ticket, err = s.store.Create(ctx, p)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrCodeConflict) {
			return Ticket{}, err
		}
	}
	if err != nil {
		return Ticket{}, apperr.Wrap(apperr.KindConflict, "could not allocate a unique ticket code", err)
	}

	waID, err := s.store.ContactWhatsAppID(ctx, ticket.ContactID)
	if err != nil {
		s.log.Warn("ticket created but contact lookup failed", "ticketId", ticket.ID, "error", err)
		waID = ""
	}

	s.bus.Publish(ctx, events.TicketCreated{
		BaseEvent:    events.NewBaseEvent(),
		TicketID:     ticket.ID,
		ContactID:    ticket.ContactID,
		WhatsAppID:   waID,
		Code:         ticket.Code,
		Type:         ticket.Type,
		ScheduledFor: ticket.ScheduledFor,
	})
	return ticket, nil
}

// LatestRepairForContact returns the most recent repair ticket for a contact.
func (s *Service) LatestRepairForContact(ctx context.Context, contactID int64) (Ticket, error) {
	return s.store.LatestRepairForContact(ctx, contactID)
}

// AttachPhoto links a stored photo to a ticket.
func (s *Service) AttachPhoto(ctx context.Context, ticketID int64, storagePath, caption string) (Photo, error) {
	return s.store.AddPhoto(ctx, ticketID, storagePath, caption)
}

// ChangeStatus applies a status transition, publishing TicketCompleted when
// the ticket reaches completed.
func (s *Service) ChangeStatus(ctx context.Context, id int64, status string) (Ticket, error) {
	ticket, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrTicketNotFound) {
			return Ticket{}, apperr.NotFound("ticket not found")
		}
		return Ticket{}, err
	}

	if !transitionAllowed(ticket.Status, status) {
		return Ticket{}, apperr.Validation("cannot transition ticket from " + ticket.Status + " to " + status)
	}

	updated, err := s.store.UpdateStatus(ctx, id, status)
	if err != nil {
		return Ticket{}, err
	}

	if status == StatusCompleted {
		waID, err := s.store.ContactWhatsAppID(ctx, updated.ContactID)
		if err != nil {
			s.log.Warn("ticket completed but contact lookup failed", "ticketId", updated.ID, "error", err)
			waID = ""
		}
		s.bus.Publish(ctx, events.TicketCompleted{
			BaseEvent:  events.NewBaseEvent(),
			TicketID:   updated.ID,
			ContactID:  updated.ContactID,
			WhatsAppID: waID,
			Code:       updated.Code,
			Type:       updated.Type,
		})
	}
	return updated, nil
}

// Assign hands a ticket to a runner, setting the assignee and moving the
// status to assigned in one update. Reassigning an already assigned ticket
// is allowed; tickets past assigned keep their runner.
func (s *Service) Assign(ctx context.Context, id int64, assignee string) (Ticket, error) {
	assignee = sanitize.Text(assignee)
	if assignee == "" {
		return Ticket{}, apperr.Validation("assignee is required")
	}

	ticket, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrTicketNotFound) {
			return Ticket{}, apperr.NotFound("ticket not found")
		}
		return Ticket{}, err
	}

	if ticket.Status != StatusOpen && ticket.Status != StatusAssigned {
		return Ticket{}, apperr.Validation("cannot assign ticket in status " + ticket.Status)
	}

	return s.store.Assign(ctx, id, assignee)
}

func transitionAllowed(from, to string) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// List returns tickets for the dashboard.
func (s *Service) List(ctx context.Context, status string, limit int) ([]Ticket, error) {
	if status != "" {
		if _, ok := allowedTransitions[status]; !ok {
			return nil, apperr.Validation("invalid ticket status: " + status)
		}
	}
	return s.store.List(ctx, status, limit)
}

// GetByCode fetches a ticket by its human-readable code.
func (s *Service) GetByCode(ctx context.Context, code string) (Ticket, error) {
	ticket, err := s.store.GetByCode(ctx, code)
	if errors.Is(err, ErrTicketNotFound) {
		return Ticket{}, apperr.NotFound("ticket not found")
	}
	return ticket, err
}
