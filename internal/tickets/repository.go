// Package tickets provides the field-work ticket bounded context.
// Tickets are created from completed repair flows or manually from the
// dashboard, and carry a human-readable code for runners.
package tickets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Ticket types.
const (
	TypeSell   = "sell"
	TypeRepair = "repair"
)

// Ticket statuses.
const (
	StatusOpen       = "open"
	StatusAssigned   = "assigned"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusClosed     = "closed"
)

// Sentinel errors.
var (
	ErrTicketNotFound = errors.New("ticket not found")
	ErrCodeConflict   = errors.New("ticket code already exists")
)

// Ticket is a unit of field work.
type Ticket struct {
	ID           int64      `json:"id"`
	ContactID    int64      `json:"contactId"`
	Code         string     `json:"code"`
	Category     string     `json:"category"`
	Type         string     `json:"type"`
	Status       string     `json:"status"`
	Description  string     `json:"description"`
	ScheduledFor *time.Time `json:"scheduledFor,omitempty"`
	Assignee     *string    `json:"assignee,omitempty"`
	ImageURL     *string    `json:"imageUrl,omitempty"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Photo is an attachment linked to a ticket. Append-only.
type Photo struct {
	ID          int64     `json:"id"`
	TicketID    int64     `json:"ticketId"`
	StoragePath string    `json:"storagePath"`
	Caption     string    `json:"caption"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Repository provides data access for tickets.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new tickets repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const ticketColumns = `id, contact_id, code, category, type, status, description,
	scheduled_for, assignee, image_url, completed_at, created_at, updated_at`

func scanTicket(row pgx.Row) (Ticket, error) {
	var t Ticket
	err := row.Scan(&t.ID, &t.ContactID, &t.Code, &t.Category, &t.Type, &t.Status,
		&t.Description, &t.ScheduledFor, &t.Assignee, &t.ImageURL, &t.CompletedAt,
		&t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Ticket{}, ErrTicketNotFound
	}
	return t, err
}

// CreateParams carries the fields needed to insert a ticket.
type CreateParams struct {
	ContactID    int64
	Code         string
	Category     string
	Type         string
	Description  string
	ScheduledFor *time.Time
}

// Create inserts a ticket with status open. Returns ErrCodeConflict when the
// generated code already exists, so the caller can retry with a new one.
func (r *Repository) Create(ctx context.Context, p CreateParams) (Ticket, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO tickets (contact_id, code, category, type, status, description, scheduled_for)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING %s`, ticketColumns),
		p.ContactID, p.Code, p.Category, p.Type, StatusOpen, p.Description, p.ScheduledFor,
	)

	ticket, err := scanTicket(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Ticket{}, ErrCodeConflict
		}
		return Ticket{}, err
	}
	return ticket, nil
}

// GetByID fetches a ticket by primary key.
func (r *Repository) GetByID(ctx context.Context, id int64) (Ticket, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(
		`SELECT %s FROM tickets WHERE id = $1`, ticketColumns), id)
	return scanTicket(row)
}

// GetByCode fetches a ticket by its human-readable code.
func (r *Repository) GetByCode(ctx context.Context, code string) (Ticket, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(
		`SELECT %s FROM tickets WHERE code = $1`, ticketColumns), code)
	return scanTicket(row)
}

// LatestRepairForContact returns the most recent repair ticket for a contact.
func (r *Repository) LatestRepairForContact(ctx context.Context, contactID int64) (Ticket, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM tickets
		WHERE contact_id = $1 AND type = $2
		ORDER BY created_at DESC LIMIT 1`, ticketColumns),
		contactID, TypeRepair)
	return scanTicket(row)
}

// List returns tickets, optionally filtered by status, newest first.
func (r *Repository) List(ctx context.Context, status string, limit int) ([]Ticket, error) {
	if limit < 1 || limit > 200 {
		limit = 100
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets`, ticketColumns)
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

	var results []Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, t)
	}
	return results, rows.Err()
}

// UpdateStatus sets a ticket's status; completing stamps completed_at.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, status string) (Ticket, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		UPDATE tickets
		SET status = $2,
		    completed_at = CASE WHEN $2 = 'completed' THEN now() ELSE completed_at END,
		    updated_at = now()
		WHERE id = $1
		RETURNING %s`, ticketColumns), id, status)
	return scanTicket(row)
}

// Assign sets the ticket's assignee and moves it to assigned in one update.
func (r *Repository) Assign(ctx context.Context, id int64, assignee string) (Ticket, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		UPDATE tickets
		SET assignee = $2, status = $3, updated_at = now()
		WHERE id = $1
		RETURNING %s`, ticketColumns), id, assignee, StatusAssigned)
	return scanTicket(row)
}

// AddPhoto inserts a photo row and sets the ticket's primary image when unset.
func (r *Repository) AddPhoto(ctx context.Context, ticketID int64, storagePath, caption string) (Photo, error) {
	var photo Photo
	err := r.pool.QueryRow(ctx, `
		INSERT INTO ticket_photos (ticket_id, storage_path, caption)
		VALUES ($1, $2, $3)
		RETURNING id, ticket_id, storage_path, caption, created_at`,
		ticketID, storagePath, caption,
	).Scan(&photo.ID, &photo.TicketID, &photo.StoragePath, &photo.Caption, &photo.CreatedAt)
	if err != nil {
		return Photo{}, err
	}

	_, err = r.pool.Exec(ctx, `
		UPDATE tickets SET image_url = COALESCE(image_url, $2), updated_at = now()
		WHERE id = $1`, ticketID, storagePath)
	return photo, err
}

// ContactWhatsAppID resolves the WhatsApp id of the ticket's contact.
func (r *Repository) ContactWhatsAppID(ctx context.Context, contactID int64) (string, error) {
	var waID string
	err := r.pool.QueryRow(ctx,
		`SELECT whatsapp_id FROM contacts WHERE id = $1`, contactID).Scan(&waID)
	return waID, err
}
