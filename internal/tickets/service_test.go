package tickets

import (
	"context"
	"testing"

	"fridgeops_backend/internal/events"
	"fridgeops_backend/platform/apperr"
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

// fakeStore implements Store in memory. conflicts makes the next N Create
// calls fail with ErrCodeConflict before one succeeds.
type fakeStore struct {
	ticket    Ticket
	getErr    error
	conflicts int
	created   []CreateParams
	assignees []string
}

func (f *fakeStore) Create(_ context.Context, p CreateParams) (Ticket, error) {
	f.created = append(f.created, p)
	if f.conflicts > 0 {
		f.conflicts--
		return Ticket{}, ErrCodeConflict
	}
	return Ticket{ID: 7, ContactID: p.ContactID, Code: p.Code, Type: p.Type, Status: StatusOpen}, nil
}

func (f *fakeStore) GetByID(context.Context, int64) (Ticket, error) {
	return f.ticket, f.getErr
}

func (f *fakeStore) GetByCode(context.Context, string) (Ticket, error) {
	return f.ticket, f.getErr
}

func (f *fakeStore) LatestRepairForContact(context.Context, int64) (Ticket, error) {
	return f.ticket, f.getErr
}

func (f *fakeStore) List(context.Context, string, int) ([]Ticket, error) {
	return nil, nil
}

func (f *fakeStore) UpdateStatus(_ context.Context, _ int64, status string) (Ticket, error) {
	t := f.ticket
	t.Status = status
	return t, nil
}

func (f *fakeStore) Assign(_ context.Context, _ int64, assignee string) (Ticket, error) {
	f.assignees = append(f.assignees, assignee)
	t := f.ticket
	t.Assignee = &assignee
	t.Status = StatusAssigned
	return t, nil
}

func (f *fakeStore) AddPhoto(context.Context, int64, string, string) (Photo, error) {
	return Photo{}, nil
}

func (f *fakeStore) ContactWhatsAppID(context.Context, int64) (string, error) {
	return "27820001111", nil
}

func newTestService(store *fakeStore) (*Service, *fakeBus) {
	bus := &fakeBus{}
	return NewService(store, bus, logger.New("test")), bus
}

func TestCreateRepair_RetriesOnCodeConflict(t *testing.T) {
	store := &fakeStore{conflicts: 1}
	service, bus := newTestService(store)

	ticket, err := service.CreateRepair(context.Background(), 42, "compressor keeps tripping")
	if err != nil {
		t.Fatalf("expected retry to recover from code conflict, got %v", err)
	}
	if len(store.created) != 2 {
		t.Fatalf("expected 2 insert attempts, got %d", len(store.created))
	}
	for _, p := range store.created {
		if !codePattern.MatchString(p.Code) {
			t.Fatalf("attempt used malformed code %q", p.Code)
		}
	}
	if ticket.Code == "" || ticket.ContactID != 42 {
		t.Fatalf("unexpected ticket returned: %+v", ticket)
	}
	if len(bus.published) != 1 {
		t.Fatalf("expected one TicketCreated event, got %d", len(bus.published))
	}
	if _, ok := bus.published[0].(events.TicketCreated); !ok {
		t.Fatalf("expected TicketCreated event, got %T", bus.published[0])
	}
}

func TestCreateRepair_CodeConflictExhausted(t *testing.T) {
	store := &fakeStore{conflicts: codeRetries}
	service, bus := newTestService(store)

	_, err := service.CreateRepair(context.Background(), 42, "compressor keeps tripping")
	if err == nil {
		t.Fatal("expected error after exhausting code retries")
	}
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict kind, got %v", err)
	}
	if len(store.created) != codeRetries {
		t.Fatalf("expected %d insert attempts, got %d", codeRetries, len(store.created))
	}
	if len(bus.published) != 0 {
		t.Fatalf("expected no events on failure, got %d", len(bus.published))
	}
}

func TestAssign_SetsRunnerAndStatus(t *testing.T) {
	store := &fakeStore{ticket: Ticket{ID: 7, ContactID: 42, Code: "REP-20260314-001", Status: StatusOpen}}
	service, _ := newTestService(store)

	ticket, err := service.Assign(context.Background(), 7, "Thabo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ticket.Status != StatusAssigned {
		t.Fatalf("expected status %q, got %q", StatusAssigned, ticket.Status)
	}
	if ticket.Assignee == nil || *ticket.Assignee != "Thabo" {
		t.Fatalf("expected assignee Thabo, got %v", ticket.Assignee)
	}
	if len(store.assignees) != 1 || store.assignees[0] != "Thabo" {
		t.Fatalf("expected one assignment of Thabo, got %v", store.assignees)
	}
}

func TestAssign_ReassignAllowed(t *testing.T) {
	store := &fakeStore{ticket: Ticket{ID: 7, Status: StatusAssigned}}
	service, _ := newTestService(store)

	if _, err := service.Assign(context.Background(), 7, "Lindiwe"); err != nil {
		t.Fatalf("reassigning an assigned ticket should work, got %v", err)
	}
}

func TestAssign_RejectedOnceInProgress(t *testing.T) {
	store := &fakeStore{ticket: Ticket{ID: 7, Status: StatusInProgress}}
	service, _ := newTestService(store)

	_, err := service.Assign(context.Background(), 7, "Thabo")
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(store.assignees) != 0 {
		t.Fatalf("expected no assignment, got %v", store.assignees)
	}
}

func TestAssign_TicketNotFound(t *testing.T) {
	store := &fakeStore{getErr: ErrTicketNotFound}
	service, _ := newTestService(store)

	_, err := service.Assign(context.Background(), 99, "Thabo")
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestAssign_EmptyAssigneeRejected(t *testing.T) {
	store := &fakeStore{ticket: Ticket{ID: 7, Status: StatusOpen}}
	service, _ := newTestService(store)

	_, err := service.Assign(context.Background(), 7, "   ")
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
