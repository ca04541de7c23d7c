package messaging

import (
	"context"

	"fridgeops_backend/internal/contacts"
	"fridgeops_backend/internal/conversation"
	"fridgeops_backend/internal/flow"
	"fridgeops_backend/internal/tickets"
)

// Narrow ports over the collaborating modules so the inbound pipeline can be
// tested without HTTP, Postgres or MinIO.

// Sender delivers outbound replies.
type Sender interface {
	SendText(ctx context.Context, to, body string) error
}

// MediaSource resolves and downloads WhatsApp attachments.
type MediaSource interface {
	ResolveMedia(ctx context.Context, mediaID string) (MediaInfo, error)
	Download(ctx context.Context, url string) ([]byte, error)
}

// ContactDirectory is the slice of the contacts service the pipeline uses.
type ContactDirectory interface {
	FindOrCreate(ctx context.Context, waID string, displayName *string, originText string) (contacts.Contact, bool, error)
	GrantConsent(ctx context.Context, contact contacts.Contact) error
	WithdrawConsent(ctx context.Context, contact contacts.Contact) error
	SetName(ctx context.Context, id int64, name string) error
	SetVillage(ctx context.Context, id int64, villageID int64) error
	MarkQualified(ctx context.Context, id int64) error
	AppendNote(ctx context.Context, id int64, note string) error
}

// StateStore persists conversation state with optimistic concurrency.
type StateStore interface {
	GetOrCreate(ctx context.Context, waID string, contactID int64) (conversation.State, error)
	Save(ctx context.Context, state conversation.State) (conversation.State, error)
	ClearCollected(ctx context.Context, state conversation.State) (conversation.State, error)
}

// FlowEngine advances a conversation by one text message.
type FlowEngine interface {
	Apply(ctx context.Context, contactID int64, state conversation.State, text string) (conversation.State, flow.Effects, error)
}

// PhotoStore persists attachment bytes and returns a public URL.
type PhotoStore interface {
	PutPhoto(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// TicketDesk is the slice of the tickets service the media pipeline uses.
type TicketDesk interface {
	CreateRepair(ctx context.Context, contactID int64, description string) (tickets.Ticket, error)
	LatestRepairForContact(ctx context.Context, contactID int64) (tickets.Ticket, error)
	AttachPhoto(ctx context.Context, ticketID int64, storagePath, caption string) (tickets.Photo, error)
}
