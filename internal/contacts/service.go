package contacts

import (
	"context"
	"time"

	"fridgeops_backend/internal/events"
	"fridgeops_backend/platform/apperr"
	"fridgeops_backend/platform/logger"
	"fridgeops_backend/platform/sanitize"
)

var validStatuses = map[string]bool{
	StatusNew:       true,
	StatusQualified: true,
	StatusConverted: true,
	StatusArchived:  true,
}

// Service wraps the repository with domain rules and event publishing.
type Service struct {
	repo      *Repository
	bus       events.Bus
	retention time.Duration
	log       *logger.Logger
}

// NewService creates a new contacts service.
func NewService(repo *Repository, bus events.Bus, retention time.Duration, log *logger.Logger) *Service {
	if retention <= 0 {
		retention = 2 * 365 * 24 * time.Hour
	}
	return &Service{repo: repo, bus: bus, retention: retention, log: log}
}

// FindOrCreate resolves the WhatsApp id, creating the contact on first
// inbound message. New contacts start at status new with consent not given
// and a retention expiry, and record the origin message as a note.
func (s *Service) FindOrCreate(ctx context.Context, waID string, displayName *string, originText string) (Contact, bool, error) {
	if originText == "" {
		originText = "Media message"
	}
	note := "Created via WhatsApp inbound: " + originText

	contact, created, err := s.repo.FindOrCreate(ctx, waID, displayName, note, s.retention)
	if err != nil {
		return Contact{}, false, err
	}

	if created {
		s.bus.Publish(ctx, events.ContactCreated{
			BaseEvent:  events.NewBaseEvent(),
			ContactID:  contact.ID,
			WhatsAppID: contact.WhatsAppID,
		})
	}
	return contact, created, nil
}

// GrantConsent records an opt-in and publishes ConsentGranted.
func (s *Service) GrantConsent(ctx context.Context, contact Contact) error {
	if err := s.repo.UpdateConsent(ctx, contact.ID, ConsentGiven, time.Now().UTC()); err != nil {
		return err
	}
	s.bus.Publish(ctx, events.ConsentGranted{
		BaseEvent:  events.NewBaseEvent(),
		ContactID:  contact.ID,
		WhatsAppID: contact.WhatsAppID,
	})
	return nil
}

// WithdrawConsent records an opt-out and publishes ConsentWithdrawn.
func (s *Service) WithdrawConsent(ctx context.Context, contact Contact) error {
	if err := s.repo.UpdateConsent(ctx, contact.ID, ConsentWithdrawn, time.Now().UTC()); err != nil {
		return err
	}
	s.bus.Publish(ctx, events.ConsentWithdrawn{
		BaseEvent:  events.NewBaseEvent(),
		ContactID:  contact.ID,
		WhatsAppID: contact.WhatsAppID,
	})
	return nil
}

// SetName updates the contact's display name. The name arrives as free
// text from a chat message, so it is sanitized before storage.
func (s *Service) SetName(ctx context.Context, id int64, name string) error {
	return s.repo.UpdateName(ctx, id, sanitize.Text(name))
}

// SetVillage links the contact to a village.
func (s *Service) SetVillage(ctx context.Context, id int64, villageID int64) error {
	return s.repo.UpdateVillage(ctx, id, villageID)
}

// MarkQualified moves the contact to qualified after a completed flow.
func (s *Service) MarkQualified(ctx context.Context, id int64) error {
	return s.repo.UpdateStatus(ctx, id, StatusQualified)
}

// AppendNote appends a free-text note line.
func (s *Service) AppendNote(ctx context.Context, id int64, note string) error {
	return s.repo.AppendNote(ctx, id, sanitize.Text(note))
}

// ChangeStatus updates the pipeline status from the dashboard.
func (s *Service) ChangeStatus(ctx context.Context, id int64, status string) (Contact, error) {
	if !validStatuses[status] {
		return Contact{}, apperr.Validation("invalid contact status: " + status)
	}
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		if err == ErrContactNotFound {
			return Contact{}, apperr.NotFound("contact not found")
		}
		return Contact{}, err
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return Contact{}, err
	}
	return s.repo.GetByID(ctx, id)
}

// List returns contacts for the dashboard, optionally filtered by status.
func (s *Service) List(ctx context.Context, status string, limit int) ([]Contact, error) {
	if status != "" && !validStatuses[status] {
		return nil, apperr.Validation("invalid contact status: " + status)
	}
	return s.repo.List(ctx, status, limit)
}

// Get fetches a single contact by id.
func (s *Service) Get(ctx context.Context, id int64) (Contact, error) {
	contact, err := s.repo.GetByID(ctx, id)
	if err == ErrContactNotFound {
		return Contact{}, apperr.NotFound("contact not found")
	}
	return contact, err
}
