// Package conversation provides the durable per-contact conversation state
// store. One active state exists per contact; absence means never engaged.
package conversation

import "time"

// Flow types.
const (
	FlowIdle   = "idle"
	FlowSell   = "sell"
	FlowRepair = "repair"
)

// Steps. Linear within each flow; completed and cancelled are terminal.
const (
	StepWelcome                   = "welcome"
	StepAwaitingName              = "awaiting_name"
	StepAwaitingVillage           = "awaiting_village"
	StepAwaitingFridgeCondition   = "awaiting_fridge_condition"
	StepAwaitingOfferResponse     = "awaiting_offer_response"
	StepAwaitingRepairDescription = "awaiting_repair_description"
	StepAwaitingRepairLocation    = "awaiting_repair_location"
	StepAwaitingRepairPhotos      = "awaiting_repair_photos"
	StepCompleted                 = "completed"
	StepCancelled                 = "cancelled"
)

// State is the persisted conversation position for one contact.
// Version is an optimistic concurrency token: every save must present the
// version it read, and bumps it on success.
type State struct {
	WhatsAppID    string            `json:"whatsappId"`
	ContactID     int64             `json:"contactId"`
	FlowType      string            `json:"flowType"`
	Step          string            `json:"step"`
	Collected     map[string]string `json:"collected"`
	LastMessageAt time.Time         `json:"lastMessageAt"`
	ExpiresAt     time.Time         `json:"expiresAt"`
	Version       int64             `json:"version"`
}

// Expired reports whether the state's sliding window has lapsed.
func (s State) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Terminal reports whether the state sits at a terminal step.
func (s State) Terminal() bool {
	return s.Step == StepCompleted || s.Step == StepCancelled
}

// Reset returns a copy of the state back at idle/welcome with an empty
// collected bag, keeping the identity and version intact.
func (s State) Reset() State {
	s.FlowType = FlowIdle
	s.Step = StepWelcome
	s.Collected = map[string]string{}
	return s
}
