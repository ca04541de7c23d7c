package messaging

import (
	"context"
	"errors"
	"strings"
	"testing"

	"fridgeops_backend/internal/contacts"
	"fridgeops_backend/internal/conversation"
	"fridgeops_backend/internal/events"
	"fridgeops_backend/internal/flow"
	"fridgeops_backend/internal/tickets"
	"fridgeops_backend/platform/logger"
)

type fakeBus struct {
	published []events.Event
}

func (b *fakeBus) Publish(_ context.Context, e events.Event) {
	b.published = append(b.published, e)
}

func (b *fakeBus) PublishSync(_ context.Context, e events.Event) error {
	b.published = append(b.published, e)
	return nil
}

func (b *fakeBus) Subscribe(string, events.Handler) {}

type fakeContacts struct {
	contact   contacts.Contact
	created   bool
	granted   bool
	withdrawn bool
	name      string
	village   *int64
	qualified bool
	notes     []string
}

func (f *fakeContacts) FindOrCreate(context.Context, string, *string, string) (contacts.Contact, bool, error) {
	return f.contact, f.created, nil
}
func (f *fakeContacts) GrantConsent(context.Context, contacts.Contact) error {
	f.granted = true
	return nil
}
func (f *fakeContacts) WithdrawConsent(context.Context, contacts.Contact) error {
	f.withdrawn = true
	return nil
}
func (f *fakeContacts) SetName(_ context.Context, _ int64, name string) error {
	f.name = name
	return nil
}
func (f *fakeContacts) SetVillage(_ context.Context, _ int64, villageID int64) error {
	f.village = &villageID
	return nil
}
func (f *fakeContacts) MarkQualified(context.Context, int64) error {
	f.qualified = true
	return nil
}
func (f *fakeContacts) AppendNote(_ context.Context, _ int64, note string) error {
	f.notes = append(f.notes, note)
	return nil
}

type fakeStates struct {
	state      conversation.State
	staleSaves int
	saves      []conversation.State
	cleared    bool
}

func (f *fakeStates) GetOrCreate(context.Context, string, int64) (conversation.State, error) {
	return f.state, nil
}

func (f *fakeStates) Save(_ context.Context, s conversation.State) (conversation.State, error) {
	if f.staleSaves > 0 {
		f.staleSaves--
		return conversation.State{}, conversation.ErrStaleState
	}
	s.Version++
	f.saves = append(f.saves, s)
	return s, nil
}

func (f *fakeStates) ClearCollected(_ context.Context, s conversation.State) (conversation.State, error) {
	f.cleared = true
	s.Collected = map[string]string{}
	s.Version++
	return s, nil
}

type fakeEngine struct {
	applies int
	fn      func(state conversation.State, text string) (conversation.State, flow.Effects, error)
}

func (f *fakeEngine) Apply(_ context.Context, _ int64, state conversation.State, text string) (conversation.State, flow.Effects, error) {
	f.applies++
	if f.fn == nil {
		return state, flow.Effects{}, nil
	}
	return f.fn(state, text)
}

type fakeSender struct {
	sent []string
	err  error
}

func (f *fakeSender) SendText(_ context.Context, _, body string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, body)
	return nil
}

type fakeSource struct{}

func (fakeSource) ResolveMedia(context.Context, string) (MediaInfo, error) {
	return MediaInfo{URL: "https://lookaside.example/media", MimeType: "image/jpeg"}, nil
}
func (fakeSource) Download(context.Context, string) ([]byte, error) {
	return []byte{0xFF, 0xD8}, nil
}

type fakePhotos struct {
	keys []string
}

func (f *fakePhotos) PutPhoto(_ context.Context, key string, _ []byte, _ string) (string, error) {
	f.keys = append(f.keys, key)
	return "https://photos.example/" + key, nil
}

type fakeDesk struct {
	latest    tickets.Ticket
	latestErr error
	created   []string
	attached  []string
}

func (f *fakeDesk) CreateRepair(_ context.Context, _ int64, description string) (tickets.Ticket, error) {
	f.created = append(f.created, description)
	return tickets.Ticket{ID: 7, ContactID: 1, Code: "REP-20260831-123", Type: tickets.TypeRepair}, nil
}
func (f *fakeDesk) LatestRepairForContact(context.Context, int64) (tickets.Ticket, error) {
	return f.latest, f.latestErr
}
func (f *fakeDesk) AttachPhoto(_ context.Context, _ int64, storagePath, _ string) (tickets.Photo, error) {
	f.attached = append(f.attached, storagePath)
	return tickets.Photo{}, nil
}

type fixture struct {
	service  *Service
	contacts *fakeContacts
	states   *fakeStates
	engine   *fakeEngine
	sender   *fakeSender
	photos   *fakePhotos
	desk     *fakeDesk
	bus      *fakeBus
}

func newFixture(contact contacts.Contact, created bool) *fixture {
	f := &fixture{
		contacts: &fakeContacts{contact: contact, created: created},
		states: &fakeStates{state: conversation.State{
			WhatsAppID: contact.WhatsAppID,
			ContactID:  contact.ID,
			FlowType:   conversation.FlowIdle,
			Step:       conversation.StepWelcome,
			Collected:  map[string]string{},
			Version:    1,
		}},
		engine: &fakeEngine{},
		sender: &fakeSender{},
		photos: &fakePhotos{},
		desk:   &fakeDesk{latestErr: tickets.ErrTicketNotFound},
		bus:    &fakeBus{},
	}
	f.service = NewService(f.contacts, f.states, f.engine, f.sender, fakeSource{}, f.photos, f.desk, f.bus, logger.New("test"))
	return f
}

func consentedContact() contacts.Contact {
	name := "Jane"
	return contacts.Contact{ID: 1, WhatsAppID: "27821234567", Name: &name, ConsentStatus: contacts.ConsentGiven}
}

func TestNewContactGetsConsentRequest(t *testing.T) {
	contact := contacts.Contact{ID: 1, WhatsAppID: "27821234567", ConsentStatus: contacts.ConsentNotGiven}
	f := newFixture(contact, true)

	if err := f.service.HandleInbound(context.Background(), Inbound{WaID: contact.WhatsAppID, Text: "Hello"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.sender.sent) != 1 {
		t.Fatalf("expected exactly one reply, got %d", len(f.sender.sent))
	}
	if !strings.Contains(f.sender.sent[0], "Privacy Notice") {
		t.Fatalf("first reply must carry the privacy notice, got %q", f.sender.sent[0])
	}
	if f.engine.applies != 0 {
		t.Fatal("flow engine must not run before consent")
	}
}

func TestConsentYesGrantsAndWelcomes(t *testing.T) {
	contact := contacts.Contact{ID: 1, WhatsAppID: "27821234567", ConsentStatus: contacts.ConsentNotGiven}
	f := newFixture(contact, false)

	if err := f.service.HandleInbound(context.Background(), Inbound{WaID: contact.WhatsAppID, Text: "yes"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !f.contacts.granted {
		t.Fatal("YES must grant consent")
	}
	if len(f.sender.sent) != 1 || !strings.Contains(f.sender.sent[0], "What can we help you with today?") {
		t.Fatalf("expected the welcome menu, got %v", f.sender.sent)
	}
	if f.engine.applies != 0 {
		t.Fatal("the consent message itself must not enter a flow")
	}
}

func TestUnconsentedKeywordDoesNotStartFlow(t *testing.T) {
	contact := contacts.Contact{ID: 1, WhatsAppID: "27821234567", ConsentStatus: contacts.ConsentNotGiven}
	f := newFixture(contact, false)

	if err := f.service.HandleInbound(context.Background(), Inbound{WaID: contact.WhatsAppID, Text: "SELL"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.sender.sent) != 1 || !strings.Contains(f.sender.sent[0], "Privacy Notice") {
		t.Fatalf("keyword before consent must re-prompt for consent, got %v", f.sender.sent)
	}
	if f.engine.applies != 0 {
		t.Fatal("SELL must not start a flow before consent")
	}
	if f.contacts.granted || f.contacts.withdrawn {
		t.Fatal("keyword text must not change consent")
	}
}

func TestConsentDecline(t *testing.T) {
	contact := contacts.Contact{ID: 1, WhatsAppID: "27821234567", ConsentStatus: contacts.ConsentNotGiven}
	f := newFixture(contact, false)

	if err := f.service.HandleInbound(context.Background(), Inbound{WaID: contact.WhatsAppID, Text: "NO"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !f.contacts.withdrawn {
		t.Fatal("NO must withdraw consent")
	}
	if len(f.sender.sent) != 1 || f.sender.sent[0] != msgConsentDeclined {
		t.Fatalf("expected decline acknowledgement, got %v", f.sender.sent)
	}
}

func TestWithdrawnContactGetsReminder(t *testing.T) {
	contact := contacts.Contact{ID: 1, WhatsAppID: "27821234567", ConsentStatus: contacts.ConsentWithdrawn}
	f := newFixture(contact, false)

	if err := f.service.HandleInbound(context.Background(), Inbound{WaID: contact.WhatsAppID, Text: "SELL"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f.contacts.granted {
		t.Fatal("SELL must not re-grant consent")
	}
	if len(f.sender.sent) != 1 || f.sender.sent[0] != msgConsentWithdrawnReminder {
		t.Fatalf("expected withdrawn reminder, got %v", f.sender.sent)
	}
	if f.engine.applies != 0 {
		t.Fatal("withdrawn contacts must not enter flows")
	}
}

func TestWithdrawnContactCanReconsent(t *testing.T) {
	contact := contacts.Contact{ID: 1, WhatsAppID: "27821234567", ConsentStatus: contacts.ConsentWithdrawn}
	f := newFixture(contact, false)

	if err := f.service.HandleInbound(context.Background(), Inbound{WaID: contact.WhatsAppID, Text: "YES"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !f.contacts.granted {
		t.Fatal("YES must re-grant consent")
	}
	if len(f.sender.sent) != 1 || !strings.Contains(f.sender.sent[0], "What can we help you with today?") {
		t.Fatalf("expected the welcome menu, got %v", f.sender.sent)
	}
}

func TestConsentedTextAppliesEffects(t *testing.T) {
	f := newFixture(consentedContact(), false)
	villageID := int64(10)
	f.engine.fn = func(state conversation.State, _ string) (conversation.State, flow.Effects, error) {
		state.Step = conversation.StepAwaitingFridgeCondition
		return state, flow.Effects{
			Reply:             "noted",
			SetContactName:    "Jane",
			SetContactVillage: &villageID,
		}, nil
	}

	if err := f.service.HandleInbound(context.Background(), Inbound{WaID: "27821234567", Text: "Mamelodi"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.states.saves) != 1 {
		t.Fatalf("expected one state save, got %d", len(f.states.saves))
	}
	if f.contacts.name != "Jane" {
		t.Fatalf("expected name effect applied, got %q", f.contacts.name)
	}
	if f.contacts.village == nil || *f.contacts.village != 10 {
		t.Fatalf("expected village effect applied, got %v", f.contacts.village)
	}
	if len(f.sender.sent) != 1 || f.sender.sent[0] != "noted" {
		t.Fatalf("expected exactly the engine reply, got %v", f.sender.sent)
	}
}

func TestStaleStateSaveRetries(t *testing.T) {
	f := newFixture(consentedContact(), false)
	f.states.staleSaves = 1
	f.engine.fn = func(state conversation.State, _ string) (conversation.State, flow.Effects, error) {
		return state, flow.Effects{Reply: "ok"}, nil
	}

	if err := f.service.HandleInbound(context.Background(), Inbound{WaID: "27821234567", Text: "hi there"}); err != nil {
		t.Fatalf("expected retry to absorb the stale save, got %v", err)
	}

	if f.engine.applies != 2 {
		t.Fatalf("expected the transition to be reapplied after a stale save, applies=%d", f.engine.applies)
	}
	if len(f.sender.sent) != 1 {
		t.Fatalf("retries must still produce exactly one reply, got %d", len(f.sender.sent))
	}
}

func TestCompletedFlowPublishesEvent(t *testing.T) {
	f := newFixture(consentedContact(), false)
	f.engine.fn = func(state conversation.State, _ string) (conversation.State, flow.Effects, error) {
		state.FlowType = conversation.FlowSell
		state.Step = conversation.StepCompleted
		return state, flow.Effects{Reply: "done", MarkQualified: true, CompletedFlow: conversation.FlowSell}, nil
	}

	if err := f.service.HandleInbound(context.Background(), Inbound{WaID: "27821234567", Text: "YES"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !f.contacts.qualified {
		t.Fatal("completed flow must qualify the contact")
	}
	var completed *events.FlowCompleted
	for _, e := range f.bus.published {
		if fc, ok := e.(events.FlowCompleted); ok {
			completed = &fc
		}
	}
	if completed == nil {
		t.Fatal("expected a FlowCompleted event")
	}
	if completed.FlowType != conversation.FlowSell || completed.FinalStep != conversation.StepCompleted {
		t.Fatalf("unexpected event payload: %+v", completed)
	}
}

func TestSendFailurePublishesDeadLetter(t *testing.T) {
	f := newFixture(consentedContact(), false)
	f.sender.err = errors.New("network down")
	f.engine.fn = func(state conversation.State, _ string) (conversation.State, flow.Effects, error) {
		return state, flow.Effects{Reply: "hello"}, nil
	}

	if err := f.service.HandleInbound(context.Background(), Inbound{WaID: "27821234567", Text: "hi there"}); err != nil {
		t.Fatalf("send failures must not fail the webhook, got %v", err)
	}

	var failed *events.ReplySendFailed
	for _, e := range f.bus.published {
		if rf, ok := e.(events.ReplySendFailed); ok {
			failed = &rf
		}
	}
	if failed == nil {
		t.Fatal("expected a ReplySendFailed event")
	}
	if failed.Body != "hello" || failed.Reason != "network down" {
		t.Fatalf("unexpected dead letter payload: %+v", failed)
	}
}

func TestPhotoAtRepairStepCreatesTicket(t *testing.T) {
	f := newFixture(consentedContact(), false)
	f.states.state.FlowType = conversation.FlowRepair
	f.states.state.Step = conversation.StepAwaitingRepairPhotos
	f.states.state.Collected = map[string]string{"description": "Not cooling at all"}

	in := Inbound{WaID: "27821234567", Media: &Media{ID: "media-1", MimeType: "image/jpeg"}}
	if err := f.service.HandleInbound(context.Background(), in); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.photos.keys) != 1 || !strings.HasPrefix(f.photos.keys[0], "whatsapp/") {
		t.Fatalf("expected photo stored under whatsapp/, got %v", f.photos.keys)
	}
	if len(f.desk.created) != 1 || f.desk.created[0] != "Not cooling at all" {
		t.Fatalf("expected ticket created with collected description, got %v", f.desk.created)
	}
	if len(f.desk.attached) != 1 {
		t.Fatalf("expected photo attached to the ticket, got %v", f.desk.attached)
	}
	if len(f.states.saves) != 1 || f.states.saves[0].Step != conversation.StepCompleted {
		t.Fatalf("expected the flow to complete, saves=%v", f.states.saves)
	}
	if len(f.sender.sent) != 1 || !strings.Contains(f.sender.sent[0], "REP-20260831-123") {
		t.Fatalf("expected a single reply carrying the ticket code, got %v", f.sender.sent)
	}
}

func TestPhotoOutsideFlowGoesToNotes(t *testing.T) {
	f := newFixture(consentedContact(), false)

	in := Inbound{WaID: "27821234567", Media: &Media{ID: "media-2", MimeType: "image/png"}}
	if err := f.service.HandleInbound(context.Background(), in); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.contacts.notes) != 1 || !strings.Contains(f.contacts.notes[0], "[Photo received: ") {
		t.Fatalf("expected a photo note, got %v", f.contacts.notes)
	}
	if len(f.desk.created) != 0 {
		t.Fatal("a photo outside the repair flow must not create tickets")
	}
	if len(f.sender.sent) != 0 {
		t.Fatalf("a general photo gets no reply, got %v", f.sender.sent)
	}
}

func TestUnconsentedPhotoStoredWithoutPrompt(t *testing.T) {
	contact := contacts.Contact{ID: 1, WhatsAppID: "27821234567", ConsentStatus: contacts.ConsentNotGiven}
	f := newFixture(contact, false)

	in := Inbound{WaID: "27821234567", Media: &Media{ID: "media-3", MimeType: "image/jpeg"}}
	if err := f.service.HandleInbound(context.Background(), in); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.photos.keys) != 1 {
		t.Fatalf("the attachment must be stored before consent is settled, keys=%v", f.photos.keys)
	}
	if len(f.contacts.notes) != 1 || !strings.Contains(f.contacts.notes[0], "[Photo received: ") {
		t.Fatalf("expected a photo note, got %v", f.contacts.notes)
	}
	if len(f.sender.sent) != 0 {
		t.Fatalf("no consent prompt or reply for a bare attachment, got %v", f.sender.sent)
	}
	if f.engine.applies != 0 {
		t.Fatalf("a photo must not advance the conversation, applies=%d", f.engine.applies)
	}
	if f.contacts.granted || f.contacts.withdrawn {
		t.Fatal("a photo must not change consent")
	}
}
