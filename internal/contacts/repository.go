// Package contacts provides the contact store bounded context.
// A contact is a person engaging via WhatsApp, keyed by their platform id.
package contacts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrContactNotFound is returned when no contact matches the lookup key.
var ErrContactNotFound = errors.New("contact not found")

// Consent status values.
const (
	ConsentNotGiven  = "not_given"
	ConsentGiven     = "given"
	ConsentWithdrawn = "withdrawn"
)

// Contact status values.
const (
	StatusNew       = "new"
	StatusQualified = "qualified"
	StatusConverted = "converted"
	StatusArchived  = "archived"
)

// Contact represents a person reachable via WhatsApp.
type Contact struct {
	ID                 int64      `json:"id"`
	WhatsAppID         string     `json:"whatsappId"`
	Name               *string    `json:"name,omitempty"`
	Notes              string     `json:"notes"`
	ConsentStatus      string     `json:"consentStatus"`
	ConsentAt          *time.Time `json:"consentAt,omitempty"`
	Status             string     `json:"status"`
	VillageID          *int64     `json:"villageId,omitempty"`
	RetentionExpiresAt time.Time  `json:"retentionExpiresAt"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// HasConsent reports whether the contact has currently opted in.
func (c Contact) HasConsent() bool {
	return c.ConsentStatus == ConsentGiven
}

// Repository provides data access for contacts.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new contacts repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const contactColumns = `id, whatsapp_id, name, notes, consent_status, consent_at,
	status, village_id, retention_expires_at, created_at, updated_at`

func scanContact(row pgx.Row) (Contact, error) {
	var c Contact
	err := row.Scan(
		&c.ID, &c.WhatsAppID, &c.Name, &c.Notes, &c.ConsentStatus, &c.ConsentAt,
		&c.Status, &c.VillageID, &c.RetentionExpiresAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Contact{}, ErrContactNotFound
	}
	return c, err
}

// FindOrCreate resolves a WhatsApp id to a contact, inserting one on first
// contact. The unique index on whatsapp_id makes concurrent first deliveries
// safe: the loser of the insert race falls through to the re-select.
// Returns the contact and whether it was created by this call.
func (r *Repository) FindOrCreate(ctx context.Context, waID string, displayName *string, originNote string, retention time.Duration) (Contact, bool, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO contacts (whatsapp_id, name, notes, consent_status, status, retention_expires_at)
		VALUES ($1, $2, $3, $4, $5, now() + $6::interval)
		ON CONFLICT (whatsapp_id) DO NOTHING
		RETURNING %s`, contactColumns),
		waID, displayName, originNote, ConsentNotGiven, StatusNew, retention.String(),
	)

	contact, err := scanContact(row)
	if err == nil {
		return contact, true, nil
	}
	if !errors.Is(err, ErrContactNotFound) {
		return Contact{}, false, err
	}

	contact, err = r.GetByWhatsAppID(ctx, waID)
	return contact, false, err
}

// GetByWhatsAppID fetches a contact by its WhatsApp id.
func (r *Repository) GetByWhatsAppID(ctx context.Context, waID string) (Contact, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(
		`SELECT %s FROM contacts WHERE whatsapp_id = $1`, contactColumns), waID)
	return scanContact(row)
}

// GetByID fetches a contact by primary key.
func (r *Repository) GetByID(ctx context.Context, id int64) (Contact, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(
		`SELECT %s FROM contacts WHERE id = $1`, contactColumns), id)
	return scanContact(row)
}

// List returns contacts, optionally filtered by status, newest first.
func (r *Repository) List(ctx context.Context, status string, limit int) ([]Contact, error) {
	if limit < 1 || limit > 200 {
		limit = 100
	}

	query := fmt.Sprintf(`SELECT %s FROM contacts`, contactColumns)
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, c)
	}
	return results, rows.Err()
}

// UpdateName sets the contact's display name.
func (r *Repository) UpdateName(ctx context.Context, id int64, name string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE contacts SET name = $2, updated_at = now() WHERE id = $1`, id, name)
	return err
}

// UpdateVillage links the contact to a village.
func (r *Repository) UpdateVillage(ctx context.Context, id int64, villageID int64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE contacts SET village_id = $2, updated_at = now() WHERE id = $1`, id, villageID)
	return err
}

// UpdateStatus sets the contact's pipeline status.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, status string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE contacts SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	return err
}

// UpdateConsent records a consent decision and its timestamp.
func (r *Repository) UpdateConsent(ctx context.Context, id int64, consentStatus string, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE contacts SET consent_status = $2, consent_at = $3, updated_at = now() WHERE id = $1`,
		id, consentStatus, at)
	return err
}

// AppendNote appends a line to the contact's notes. Notes are never replaced.
func (r *Repository) AppendNote(ctx context.Context, id int64, note string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE contacts SET notes = notes || E'\n' || $2, updated_at = now() WHERE id = $1`,
		id, note)
	return err
}
