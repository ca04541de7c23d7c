package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fridgeops_backend/internal/contacts"
	"fridgeops_backend/internal/conversation"
	"fridgeops_backend/internal/events"
	"fridgeops_backend/internal/tickets"
)

// handleMedia runs the attachment pipeline: resolve, download, store, then
// route the stored photo by conversation state. Any failure aborts silently
// with a log line; the webhook never errors over a broken attachment.
func (s *Service) handleMedia(ctx context.Context, contact contacts.Contact, media Media) error {
	info, err := s.source.ResolveMedia(ctx, media.ID)
	if err != nil {
		s.log.Warn("media resolve failed", "mediaId", media.ID, "error", err)
		return nil
	}

	data, err := s.source.Download(ctx, info.URL)
	if err != nil {
		s.log.Warn("media download failed", "mediaId", media.ID, "error", err)
		return nil
	}

	key := fmt.Sprintf("whatsapp/%d-%s.%s", time.Now().UnixMilli(), media.ID, extensionFor(info.MimeType))
	url, err := s.photos.PutPhoto(ctx, key, data, info.MimeType)
	if err != nil {
		s.log.Warn("media upload failed", "mediaId", media.ID, "error", err)
		return nil
	}
	s.log.Info("media stored", "mediaId", media.ID, "url", url)

	caption := media.Caption
	if caption == "" {
		caption = "Photo from WhatsApp"
	}

	state, err := s.states.GetOrCreate(ctx, contact.WhatsAppID, contact.ID)
	if err != nil {
		s.log.Warn("conversation state lookup failed for media", "waId", contact.WhatsAppID, "error", err)
		return s.notePhoto(ctx, contact, url)
	}

	if state.FlowType == conversation.FlowRepair && state.Step == conversation.StepAwaitingRepairPhotos {
		return s.attachRepairPhoto(ctx, contact, state, url, caption)
	}

	return s.notePhoto(ctx, contact, url)
}

// attachRepairPhoto links the photo to the contact's repair request. When no
// ticket exists yet the collected description finalizes the flow: the ticket
// is created with the photo already attached and the flow completes.
func (s *Service) attachRepairPhoto(ctx context.Context, contact contacts.Contact, state conversation.State, url, caption string) error {
	existing, err := s.tickets.LatestRepairForContact(ctx, contact.ID)
	if err == nil {
		if _, err := s.tickets.AttachPhoto(ctx, existing.ID, url, caption); err != nil {
			s.log.Warn("photo attach failed", "ticketId", existing.ID, "error", err)
			return s.notePhoto(ctx, contact, url)
		}
		s.reply(ctx, contact, photoReceivedAck())
		return nil
	}
	if !errors.Is(err, tickets.ErrTicketNotFound) {
		s.log.Warn("ticket lookup failed for photo", "contactId", contact.ID, "error", err)
		return s.notePhoto(ctx, contact, url)
	}

	description := state.Collected["description"]
	if description == "" {
		return s.notePhoto(ctx, contact, url)
	}

	ticket, err := s.tickets.CreateRepair(ctx, contact.ID, description)
	if err != nil {
		s.log.Error("repair ticket creation from photo failed", "contactId", contact.ID, "error", err)
		return s.notePhoto(ctx, contact, url)
	}
	if _, err := s.tickets.AttachPhoto(ctx, ticket.ID, url, caption); err != nil {
		s.log.Warn("photo attach failed", "ticketId", ticket.ID, "error", err)
	}

	state.Step = conversation.StepCompleted
	if _, err := s.states.Save(ctx, state); err != nil {
		s.log.Warn("conversation completion save failed", "waId", contact.WhatsAppID, "error", err)
	}
	if err := s.contacts.MarkQualified(ctx, contact.ID); err != nil {
		s.log.Warn("contact qualification failed", "contactId", contact.ID, "error", err)
	}
	s.bus.Publish(ctx, events.FlowCompleted{
		BaseEvent:  events.NewBaseEvent(),
		ContactID:  contact.ID,
		WhatsAppID: contact.WhatsAppID,
		FlowType:   conversation.FlowRepair,
		FinalStep:  conversation.StepCompleted,
	})

	s.reply(ctx, contact, photoTicketCreated(ticket.Code))
	return nil
}

// notePhoto records a photo that arrived outside the repair photo step.
func (s *Service) notePhoto(ctx context.Context, contact contacts.Contact, url string) error {
	if err := s.contacts.AppendNote(ctx, contact.ID, "[Photo received: "+url+"]"); err != nil {
		s.log.Warn("photo note failed", "contactId", contact.ID, "error", err)
	}
	return nil
}

// extensionFor derives a file extension from a MIME type, defaulting to jpg.
func extensionFor(mimeType string) string {
	_, sub, found := strings.Cut(mimeType, "/")
	if !found || sub == "" {
		return "jpg"
	}
	// "image/svg+xml" style subtypes keep only the bare subtype.
	if base, _, ok := strings.Cut(sub, "+"); ok {
		return base
	}
	return sub
}
