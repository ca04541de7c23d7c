package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrStaleState is returned when a save loses an optimistic concurrency race.
// Callers should re-read the state and reapply their transition.
var ErrStaleState = errors.New("conversation state was modified concurrently")

// Repository provides data access for conversation states.
type Repository struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

// NewRepository creates a new conversation state repository. ttl is the
// sliding expiry window refreshed on every save.
func NewRepository(pool *pgxpool.Pool, ttl time.Duration) *Repository {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Repository{pool: pool, ttl: ttl}
}

func scanState(row pgx.Row) (State, error) {
	var s State
	var collected []byte
	err := row.Scan(&s.WhatsAppID, &s.ContactID, &s.FlowType, &s.Step,
		&collected, &s.LastMessageAt, &s.ExpiresAt, &s.Version)
	if err != nil {
		return State{}, err
	}

	s.Collected = map[string]string{}
	if len(collected) > 0 {
		if err := json.Unmarshal(collected, &s.Collected); err != nil {
			return State{}, fmt.Errorf("decode collected data: %w", err)
		}
	}
	return s, nil
}

const stateColumns = `whatsapp_id, contact_id, flow_type, current_step,
	collected_data, last_message_at, expires_at, version`

// GetOrCreate fetches the contact's conversation state, lazily inserting an
// idle one on first engagement. A state read past its expiry is returned
// already reset to idle/welcome with an empty collected bag; the reset is
// persisted by the next Save through the normal version check.
func (r *Repository) GetOrCreate(ctx context.Context, waID string, contactID int64) (State, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO conversation_states (whatsapp_id, contact_id, flow_type, current_step, collected_data, expires_at)
		VALUES ($1, $2, $3, $4, '{}'::jsonb, now() + $5::interval)
		ON CONFLICT (whatsapp_id) DO NOTHING
		RETURNING %s`, stateColumns),
		waID, contactID, FlowIdle, StepWelcome, r.ttl.String(),
	)

	state, err := scanState(row)
	if errors.Is(err, pgx.ErrNoRows) {
		row = r.pool.QueryRow(ctx, fmt.Sprintf(
			`SELECT %s FROM conversation_states WHERE whatsapp_id = $1`, stateColumns), waID)
		state, err = scanState(row)
	}
	if err != nil {
		return State{}, err
	}

	if state.Expired(time.Now()) {
		state = state.Reset()
	}
	return state, nil
}

// Save persists a transitioned state using the version it was read at.
// Collected data is merged into the stored bag (jsonb ||), never replaced,
// and the sliding expiry window is refreshed. Returns ErrStaleState when a
// concurrent save won the race.
func (r *Repository) Save(ctx context.Context, state State) (State, error) {
	collected, err := json.Marshal(state.Collected)
	if err != nil {
		return State{}, fmt.Errorf("encode collected data: %w", err)
	}

	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		UPDATE conversation_states
		SET flow_type = $2,
		    current_step = $3,
		    collected_data = collected_data || $4::jsonb,
		    last_message_at = now(),
		    expires_at = now() + $5::interval,
		    version = version + 1
		WHERE whatsapp_id = $1 AND version = $6
		RETURNING %s`, stateColumns),
		state.WhatsAppID, state.FlowType, state.Step, collected, r.ttl.String(), state.Version,
	)

	saved, err := scanState(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return State{}, ErrStaleState
	}
	return saved, err
}

// ClearCollected empties the stored collected bag for a fresh flow start.
// Runs under the same version check as Save.
func (r *Repository) ClearCollected(ctx context.Context, state State) (State, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(`
		UPDATE conversation_states
		SET collected_data = '{}'::jsonb,
		    last_message_at = now(),
		    expires_at = now() + $2::interval,
		    version = version + 1
		WHERE whatsapp_id = $1 AND version = $3
		RETURNING %s`, stateColumns),
		state.WhatsAppID, r.ttl.String(), state.Version,
	)

	saved, err := scanState(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return State{}, ErrStaleState
	}
	return saved, err
}

// Get fetches an existing state without creating one. Returns pgx.ErrNoRows
// via the wrapped error when absent.
func (r *Repository) Get(ctx context.Context, waID string) (State, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf(
		`SELECT %s FROM conversation_states WHERE whatsapp_id = $1`, stateColumns), waID)
	return scanState(row)
}
