package messaging

import (
	"context"
	"errors"
	"strings"

	"fridgeops_backend/internal/contacts"
	"fridgeops_backend/internal/conversation"
	"fridgeops_backend/internal/events"
	"fridgeops_backend/internal/flow"
	"fridgeops_backend/platform/logger"
)

// saveRetries bounds the optimistic concurrency retry loop. Two webhook
// deliveries racing on the same conversation is the only expected cause,
// so one or two retries settle it.
const saveRetries = 3

// Inbound is one normalized inbound message extracted from the webhook.
type Inbound struct {
	WaID        string
	ProfileName string
	Text        string
	Media       *Media
}

// Service orchestrates the inbound pipeline: contact resolution, the
// consent gate, the media pipeline and the conversation flow engine.
// Every path sends at most one reply per inbound message.
type Service struct {
	contacts ContactDirectory
	states   StateStore
	engine   FlowEngine
	sender   Sender
	source   MediaSource
	photos   PhotoStore
	tickets  TicketDesk
	bus      events.Bus
	log      *logger.Logger
}

// NewService creates the inbound message service.
func NewService(
	contactDir ContactDirectory,
	states StateStore,
	engine FlowEngine,
	sender Sender,
	source MediaSource,
	photos PhotoStore,
	desk TicketDesk,
	bus events.Bus,
	log *logger.Logger,
) *Service {
	return &Service{
		contacts: contactDir,
		states:   states,
		engine:   engine,
		sender:   sender,
		source:   source,
		photos:   photos,
		tickets:  desk,
		bus:      bus,
		log:      log,
	}
}

// HandleInbound processes one inbound message end to end. Errors returned
// here are logged by the handler; the webhook still acknowledges with 200
// so WhatsApp does not redeliver.
func (s *Service) HandleInbound(ctx context.Context, in Inbound) error {
	var displayName *string
	if in.ProfileName != "" {
		displayName = &in.ProfileName
	}

	contact, created, err := s.contacts.FindOrCreate(ctx, in.WaID, displayName, in.Text)
	if err != nil {
		return err
	}

	if created {
		// First contact: ask for consent. Media-only first messages get
		// no welcome; the attachment is still stored below.
		if in.Media == nil {
			s.reply(ctx, contact, consentRequest(contactName(contact, in.ProfileName)))
			return nil
		}
		return s.handleMedia(ctx, contact, *in.Media)
	}

	upper := strings.ToUpper(strings.TrimSpace(in.Text))

	switch contact.ConsentStatus {
	case contacts.ConsentNotGiven:
		switch {
		case upper == "YES" || strings.Contains(upper, "CONSENT") || strings.Contains(upper, "AGREE"):
			if err := s.contacts.GrantConsent(ctx, contact); err != nil {
				return err
			}
			s.reply(ctx, contact, welcomeMenu(contactName(contact, in.ProfileName)))
			return nil
		case upper == "NO" || strings.Contains(upper, "DECLINE"):
			if err := s.contacts.WithdrawConsent(ctx, contact); err != nil {
				return err
			}
			s.reply(ctx, contact, msgConsentDeclined)
			return nil
		case in.Media == nil:
			s.reply(ctx, contact, consentRequest(contactName(contact, in.ProfileName)))
			return nil
		}
		// Attachments are stored even before consent is settled.

	case contacts.ConsentWithdrawn:
		if upper == "YES" || strings.Contains(upper, "CONSENT") {
			if err := s.contacts.GrantConsent(ctx, contact); err != nil {
				return err
			}
			s.reply(ctx, contact, welcomeMenu(contactName(contact, in.ProfileName)))
			return nil
		}
		s.reply(ctx, contact, msgConsentWithdrawnReminder)
		return nil
	}

	if in.Media != nil {
		return s.handleMedia(ctx, contact, *in.Media)
	}

	return s.applyFlow(ctx, contact, in.Text)
}

// applyFlow runs the flow engine against the stored conversation state,
// retrying on optimistic concurrency losses, then applies the effects.
func (s *Service) applyFlow(ctx context.Context, contact contacts.Contact, text string) error {
	state, err := s.states.GetOrCreate(ctx, contact.WhatsAppID, contact.ID)
	if err != nil {
		return err
	}

	var saved conversation.State
	var fx flow.Effects
	for attempt := 0; ; attempt++ {
		next, effects, err := s.engine.Apply(ctx, contact.ID, state, text)
		if err != nil {
			return err
		}
		fx = effects

		if effects.ResetCollected {
			cleared, err := s.states.ClearCollected(ctx, state)
			if err != nil {
				if errors.Is(err, conversation.ErrStaleState) && attempt < saveRetries {
					if state, err = s.states.GetOrCreate(ctx, contact.WhatsAppID, contact.ID); err != nil {
						return err
					}
					continue
				}
				return err
			}
			next.Version = cleared.Version
		}

		saved, err = s.states.Save(ctx, next)
		if err == nil {
			break
		}
		if errors.Is(err, conversation.ErrStaleState) && attempt < saveRetries {
			if state, err = s.states.GetOrCreate(ctx, contact.WhatsAppID, contact.ID); err != nil {
				return err
			}
			continue
		}
		return err
	}

	if fx.SetContactName != "" {
		if err := s.contacts.SetName(ctx, contact.ID, fx.SetContactName); err != nil {
			s.log.Warn("contact name update failed", "contactId", contact.ID, "error", err)
		}
	}
	if fx.SetContactVillage != nil {
		if err := s.contacts.SetVillage(ctx, contact.ID, *fx.SetContactVillage); err != nil {
			s.log.Warn("contact village update failed", "contactId", contact.ID, "error", err)
		}
	}
	if fx.MarkQualified {
		if err := s.contacts.MarkQualified(ctx, contact.ID); err != nil {
			s.log.Warn("contact qualification failed", "contactId", contact.ID, "error", err)
		}
	}
	if fx.CompletedFlow != "" {
		s.bus.Publish(ctx, events.FlowCompleted{
			BaseEvent:  events.NewBaseEvent(),
			ContactID:  contact.ID,
			WhatsAppID: contact.WhatsAppID,
			FlowType:   fx.CompletedFlow,
			FinalStep:  saved.Step,
		})
	}
	if fx.Reply != "" {
		s.reply(ctx, contact, fx.Reply)
	}
	return nil
}

// reply sends the single outbound reply for this inbound message. Send
// failures never fail the webhook; they are logged and published so the
// notification outbox can retry the delivery.
func (s *Service) reply(ctx context.Context, contact contacts.Contact, body string) {
	if err := s.sender.SendText(ctx, contact.WhatsAppID, body); err != nil {
		s.log.SendFailure(contact.WhatsAppID, err)
		s.bus.Publish(ctx, events.ReplySendFailed{
			BaseEvent:  events.NewBaseEvent(),
			ContactID:  contact.ID,
			WhatsAppID: contact.WhatsAppID,
			Body:       body,
			Reason:     err.Error(),
		})
	}
}

func contactName(contact contacts.Contact, profileName string) string {
	if contact.Name != nil && *contact.Name != "" {
		return *contact.Name
	}
	return profileName
}
