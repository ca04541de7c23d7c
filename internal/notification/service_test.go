package notification

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"fridgeops_backend/internal/notification/outbox"
	"fridgeops_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeStore struct {
	records    map[uuid.UUID]*outbox.Record
	claimable  []outbox.Record
	processing []uuid.UUID
	succeeded  []uuid.UUID
	failed     map[uuid.UUID]string
	repending  []uuid.UUID
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records: map[uuid.UUID]*outbox.Record{},
		failed:  map[uuid.UUID]string{},
	}
}

func (f *fakeStore) add(rec outbox.Record) uuid.UUID {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	f.records[rec.ID] = &rec
	return rec.ID
}

func (f *fakeStore) Insert(_ context.Context, p outbox.InsertParams) (uuid.UUID, error) {
	payload, err := json.Marshal(p.Payload)
	if err != nil {
		return uuid.Nil, err
	}
	return f.add(outbox.Record{
		ContactID:  p.ContactID,
		TicketID:   p.TicketID,
		WhatsAppID: p.WhatsAppID,
		Kind:       p.Kind,
		Payload:    payload,
		RunAt:      p.RunAt,
		Status:     outbox.StatusPending,
	}), nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (outbox.Record, error) {
	rec, ok := f.records[id]
	if !ok {
		return outbox.Record{}, errors.New("not found")
	}
	return *rec, nil
}

func (f *fakeStore) ClaimPending(context.Context, int) ([]outbox.Record, error) {
	return f.claimable, nil
}

func (f *fakeStore) MarkPending(_ context.Context, id uuid.UUID, _ *string) error {
	f.repending = append(f.repending, id)
	return nil
}

func (f *fakeStore) MarkProcessing(_ context.Context, id uuid.UUID) error {
	f.processing = append(f.processing, id)
	return nil
}

func (f *fakeStore) MarkSucceeded(_ context.Context, id uuid.UUID) error {
	f.succeeded = append(f.succeeded, id)
	return nil
}

func (f *fakeStore) MarkFailed(_ context.Context, id uuid.UUID, lastError string) error {
	f.failed[id] = lastError
	return nil
}

type recordingSender struct {
	sent []string
	to   []string
	err  error
}

func (r *recordingSender) SendText(_ context.Context, to, body string) error {
	if r.err != nil {
		return r.err
	}
	r.to = append(r.to, to)
	r.sent = append(r.sent, body)
	return nil
}

func mustPayload(t *testing.T, p Payload) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return data
}

func TestRenderMessage_ReminderVariants(t *testing.T) {
	now := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)

	soon := now.Add(90 * time.Minute)
	short := renderMessage(KindAppointmentReminder, Payload{CustomerName: "Jane", TicketType: "repair", ScheduledFor: &soon}, now)
	if !strings.Contains(short, "1 Hour Until Your Appointment") {
		t.Fatalf("appointment under two hours away must use the short-notice variant, got %q", short)
	}
	if !strings.Contains(short, "repair service") {
		t.Fatalf("repair reminder must name the repair service, got %q", short)
	}

	later := now.Add(26 * time.Hour)
	full := renderMessage(KindAppointmentReminder, Payload{CustomerName: "Jane", TicketType: "sell", ScheduledFor: &later}, now)
	if !strings.Contains(full, "*Appointment Reminder*") {
		t.Fatalf("distant appointment must use the standard reminder, got %q", full)
	}
	if !strings.Contains(full, "Fridge Collection") {
		t.Fatalf("sell reminder must name the collection, got %q", full)
	}
	if !strings.Contains(full, "2026-09-01") {
		t.Fatalf("standard reminder must carry the date, got %q", full)
	}
}

func TestRenderMessage_OtherKinds(t *testing.T) {
	now := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)

	completed := renderMessage(KindJobCompleted, Payload{CustomerName: "Jane", TicketCode: "REP-20260830-017", TicketType: "repair"}, now)
	if !strings.Contains(completed, "REP-20260830-017") {
		t.Fatalf("completion notice must carry the ticket code, got %q", completed)
	}

	followUp := renderMessage(KindFollowUp, Payload{}, now)
	if !strings.Contains(followUp, "Hi there!") {
		t.Fatalf("missing name must fall back to a generic greeting, got %q", followUp)
	}
	if !strings.Contains(followUp, "⭐⭐⭐⭐⭐") {
		t.Fatalf("follow-up must carry the rating scale, got %q", followUp)
	}

	resend := renderMessage(KindResendReply, Payload{Body: "original reply text"}, now)
	if resend != "original reply text" {
		t.Fatalf("resend must replay the original body verbatim, got %q", resend)
	}
}

func TestProcess_DeliversAndMarks(t *testing.T) {
	store := newFakeStore()
	sender := &recordingSender{}
	service := NewService(store, sender, logger.New("test"))

	id := store.add(outbox.Record{
		ContactID:  1,
		WhatsAppID: "27821234567",
		Kind:       KindFollowUp,
		Payload:    mustPayload(t, Payload{CustomerName: "Jane"}),
		RunAt:      time.Now().Add(-time.Minute),
		Status:     outbox.StatusEnqueued,
	})

	if err := service.Process(context.Background(), id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.processing) != 1 || len(store.succeeded) != 1 {
		t.Fatalf("expected processing then succeeded, got processing=%v succeeded=%v", store.processing, store.succeeded)
	}
	if len(sender.to) != 1 || sender.to[0] != "27821234567" {
		t.Fatalf("expected one send to the contact, got %v", sender.to)
	}
}

func TestProcess_SendFailureRetriesThenFails(t *testing.T) {
	store := newFakeStore()
	sender := &recordingSender{err: errors.New("api down")}
	service := NewService(store, sender, logger.New("test"))

	fresh := store.add(outbox.Record{
		ContactID:  1,
		WhatsAppID: "27821234567",
		Kind:       KindFollowUp,
		Payload:    mustPayload(t, Payload{}),
		Status:     outbox.StatusEnqueued,
	})

	if err := service.Process(context.Background(), fresh); err == nil {
		t.Fatal("expected a delivery error")
	}
	if len(store.repending) != 1 || store.repending[0] != fresh {
		t.Fatalf("first failure must push the record back for retry, got %v", store.repending)
	}
	if _, ok := store.failed[fresh]; ok {
		t.Fatal("first failure must not mark the record failed")
	}

	exhausted := store.add(outbox.Record{
		ContactID:  1,
		WhatsAppID: "27821234567",
		Kind:       KindFollowUp,
		Payload:    mustPayload(t, Payload{}),
		Status:     outbox.StatusEnqueued,
		Attempts:   2,
	})

	if err := service.Process(context.Background(), exhausted); err == nil {
		t.Fatal("expected a delivery error")
	}
	if store.failed[exhausted] != "api down" {
		t.Fatalf("exhausted record must be marked failed, got %v", store.failed)
	}
	if len(store.succeeded) != 0 {
		t.Fatal("failed delivery must not be marked succeeded")
	}
}

func TestProcess_SucceededRecordIsIdempotent(t *testing.T) {
	store := newFakeStore()
	sender := &recordingSender{}
	service := NewService(store, sender, logger.New("test"))

	id := store.add(outbox.Record{
		ContactID:  1,
		WhatsAppID: "27821234567",
		Kind:       KindFollowUp,
		Status:     outbox.StatusSucceeded,
	})

	if err := service.Process(context.Background(), id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("already-delivered record must not resend, got %v", sender.sent)
	}
}

func TestProcessDue_SkipsFutureRecords(t *testing.T) {
	store := newFakeStore()
	sender := &recordingSender{}
	service := NewService(store, sender, logger.New("test"))

	due := outbox.Record{
		ID:         uuid.New(),
		ContactID:  1,
		WhatsAppID: "27821234567",
		Kind:       KindFollowUp,
		Payload:    mustPayload(t, Payload{}),
		RunAt:      time.Now().Add(-time.Minute),
	}
	future := outbox.Record{
		ID:         uuid.New(),
		ContactID:  2,
		WhatsAppID: "27827654321",
		Kind:       KindFollowUp,
		Payload:    mustPayload(t, Payload{}),
		RunAt:      time.Now().Add(time.Hour),
	}
	store.records[due.ID] = &due
	store.records[future.ID] = &future
	store.claimable = []outbox.Record{due, future}

	processed, succeeded, err := service.ProcessDue(context.Background(), 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if processed != 1 || succeeded != 1 {
		t.Fatalf("expected 1 processed and delivered, got processed=%d succeeded=%d", processed, succeeded)
	}
	if len(store.repending) != 1 || store.repending[0] != future.ID {
		t.Fatalf("future record must be pushed back to pending, got %v", store.repending)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected one delivery, got %d", len(sender.sent))
	}
}
