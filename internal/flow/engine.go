// Package flow implements the conversational state machine behind the
// WhatsApp intake: the sell flow (name, village, condition, offer) and the
// repair flow (description, location, photos). The engine is a pure
// transition function over conversation state; all I/O sits behind narrow
// ports so transitions can be tested without a database or HTTP.
package flow

import (
	"context"
	"strconv"
	"strings"

	"fridgeops_backend/internal/conversation"
	"fridgeops_backend/platform/logger"
)

// Village is the resolved location a caller reported.
type Village struct {
	ID   int64
	Name string
}

// VillageDirectory resolves free-text village input and renders the pick
// list shown to callers.
type VillageDirectory interface {
	// Resolve maps a numeric list index or a (partial) name to a village.
	Resolve(ctx context.Context, input string) (Village, bool, error)
	// ListPrompt renders the numbered village list for a reply.
	ListPrompt(ctx context.Context) string
}

// Offer is the priced result presented to a seller.
type Offer struct {
	Amount      int
	Currency    string
	VillageName string
}

// OfferCalculator prices a fridge given its condition and location.
type OfferCalculator interface {
	CalculateOffer(ctx context.Context, condition string, villageID *int64, villageName string) Offer
}

// TicketRef identifies a created repair ticket.
type TicketRef struct {
	ID   int64
	Code string
}

// TicketCreator opens repair tickets for completed repair flows.
type TicketCreator interface {
	CreateRepair(ctx context.Context, contactID int64, description string) (TicketRef, error)
}

// Effects is everything a transition asks the caller to do besides saving
// the new state. At most one reply is ever produced per inbound message.
type Effects struct {
	Reply string

	SetContactName    string
	SetContactVillage *int64
	MarkQualified     bool

	// ResetCollected signals that the flow restarted and the stored
	// answer bag must be cleared before the state row is saved.
	ResetCollected bool

	// CompletedFlow holds the flow type when this transition reached the
	// completed step, for event publication.
	CompletedFlow string

	// TicketCode is set when a repair ticket was created.
	TicketCode string
}

// Engine applies inbound text messages to conversation state.
type Engine struct {
	villages VillageDirectory
	offers   OfferCalculator
	tickets  TicketCreator
	log      *logger.Logger
}

// NewEngine creates a flow engine.
func NewEngine(villages VillageDirectory, offers OfferCalculator, tickets TicketCreator, log *logger.Logger) *Engine {
	return &Engine{villages: villages, offers: offers, tickets: tickets, log: log}
}

var greetings = map[string]bool{"HELLO": true, "HI": true}

// Apply advances the conversation by one inbound text message. It returns
// the updated state and the side effects the caller must apply. The input
// state is not mutated.
func (e *Engine) Apply(ctx context.Context, contactID int64, state conversation.State, text string) (conversation.State, Effects, error) {
	trimmed := strings.TrimSpace(text)
	upper := strings.ToUpper(trimmed)

	// Flow keywords restart the matching flow from any step. The keyword
	// message is consumed by the restart and never treated as an answer.
	switch {
	case strings.Contains(upper, "SELL"):
		return e.startSell(state)
	case strings.Contains(upper, "REPAIR"):
		return e.startRepair(state)
	case strings.Contains(upper, "INFO"):
		return state, Effects{Reply: msgInfo}, nil
	}

	switch state.FlowType {
	case conversation.FlowSell:
		return e.applySell(ctx, state, trimmed, upper)
	case conversation.FlowRepair:
		return e.applyRepair(ctx, contactID, state, trimmed, upper)
	}

	// No active flow. Greetings are answered by the consent/welcome layer
	// upstream; anything else gets a nudge toward the keywords.
	if greetings[upper] {
		return state, Effects{}, nil
	}
	return state, Effects{Reply: msgIdleNudge}, nil
}

func (e *Engine) startSell(state conversation.State) (conversation.State, Effects, error) {
	state.FlowType = conversation.FlowSell
	state.Step = conversation.StepAwaitingName
	state.Collected = map[string]string{}
	return state, Effects{Reply: msgSellStart, ResetCollected: true}, nil
}

func (e *Engine) startRepair(state conversation.State) (conversation.State, Effects, error) {
	state.FlowType = conversation.FlowRepair
	state.Step = conversation.StepAwaitingRepairDescription
	state.Collected = map[string]string{}
	return state, Effects{Reply: msgRepairStart, ResetCollected: true}, nil
}

func (e *Engine) applySell(ctx context.Context, state conversation.State, trimmed, upper string) (conversation.State, Effects, error) {
	switch state.Step {
	case conversation.StepAwaitingName:
		if len(trimmed) < 2 {
			return state, Effects{Reply: msgNameTooShort}, nil
		}
		state.Collected["name"] = trimmed
		state.Step = conversation.StepAwaitingVillage
		return state, Effects{
			Reply:          msgNiceToMeet(trimmed, e.villages.ListPrompt(ctx)),
			SetContactName: trimmed,
		}, nil

	case conversation.StepAwaitingVillage:
		village, ok, err := e.villages.Resolve(ctx, trimmed)
		if err != nil {
			return state, Effects{}, err
		}
		if !ok {
			return state, Effects{Reply: msgVillageNotFound}, nil
		}
		state.Collected["village_id"] = strconv.FormatInt(village.ID, 10)
		state.Collected["village_name"] = village.Name
		state.Step = conversation.StepAwaitingFridgeCondition
		villageID := village.ID
		return state, Effects{
			Reply:             msgVillageNoted(village.Name),
			SetContactVillage: &villageID,
		}, nil

	case conversation.StepAwaitingFridgeCondition:
		condition := strings.ToLower(upper)
		switch upper {
		case "EXCELLENT", "GOOD", "FAIR", "POOR":
		default:
			return state, Effects{Reply: msgConditionInvalid}, nil
		}
		state.Collected["fridge_condition"] = condition

		var villageID *int64
		if raw, ok := state.Collected["village_id"]; ok {
			if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
				villageID = &id
			}
		}
		offer := e.offers.CalculateOffer(ctx, condition, villageID, state.Collected["village_name"])
		state.Collected["offer_amount"] = strconv.Itoa(offer.Amount)
		state.Step = conversation.StepAwaitingOfferResponse
		return state, Effects{Reply: msgOffer(offer.Amount, condition, state.Collected["village_name"])}, nil

	case conversation.StepAwaitingOfferResponse:
		switch {
		case upper == "YES" || strings.Contains(upper, "ACCEPT"):
			state.Step = conversation.StepCompleted
			return state, Effects{
				Reply:         msgOfferAccepted,
				MarkQualified: true,
				CompletedFlow: conversation.FlowSell,
			}, nil
		case upper == "NO" || strings.Contains(upper, "DECLINE"):
			state.Step = conversation.StepCancelled
			return state, Effects{Reply: msgOfferDeclined}, nil
		case strings.Contains(upper, "NEGOTIATE"):
			// Deliberately leaves the state untouched so a later YES or
			// NO still resolves the offer.
			return state, Effects{Reply: msgOfferNegotiate}, nil
		default:
			return state, Effects{Reply: msgOfferResponseInvalid}, nil
		}
	}

	// Terminal steps ignore further messages until a keyword restarts a flow.
	return state, Effects{}, nil
}

func (e *Engine) applyRepair(ctx context.Context, contactID int64, state conversation.State, trimmed, upper string) (conversation.State, Effects, error) {
	switch state.Step {
	case conversation.StepAwaitingRepairDescription:
		if len(trimmed) < 10 {
			return state, Effects{Reply: msgDescriptionTooShort}, nil
		}
		state.Collected["description"] = trimmed
		state.Step = conversation.StepAwaitingRepairLocation
		return state, Effects{Reply: msgRepairDescriptionNoted(e.villages.ListPrompt(ctx))}, nil

	case conversation.StepAwaitingRepairLocation:
		village, ok, err := e.villages.Resolve(ctx, trimmed)
		if err != nil {
			return state, Effects{}, err
		}
		if !ok {
			return state, Effects{Reply: msgVillageNotFound}, nil
		}
		state.Collected["village_id"] = strconv.FormatInt(village.ID, 10)
		state.Collected["village_name"] = village.Name
		state.Step = conversation.StepAwaitingRepairPhotos
		villageID := village.ID
		return state, Effects{
			Reply:             msgRepairVillageNoted(village.Name),
			SetContactVillage: &villageID,
		}, nil

	case conversation.StepAwaitingRepairPhotos:
		// Any text, SKIP included, finalizes the request. Actual photo
		// attachments are handled by the media pipeline, not here.
		ticket, err := e.tickets.CreateRepair(ctx, contactID, state.Collected["description"])
		if err != nil {
			e.log.Error("repair ticket creation failed", "contactId", contactID, "error", err)
			return state, Effects{Reply: msgTicketCreateFailed}, nil
		}
		state.Step = conversation.StepCompleted
		return state, Effects{
			Reply:         msgTicketCreated(ticket.Code),
			MarkQualified: true,
			CompletedFlow: conversation.FlowRepair,
			TicketCode:    ticket.Code,
		}, nil
	}

	return state, Effects{}, nil
}
