// Package villages provides the village directory used for location
// resolution in intake flows.
package villages

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrVillageNotFound is returned when no village matches the lookup.
var ErrVillageNotFound = errors.New("village not found")

// Village is a serviceable location.
type Village struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

// Repository provides data access for villages.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new villages repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListActive returns all active villages ordered by name. The ordering is
// what makes numeric selection deterministic.
func (r *Repository) ListActive(ctx context.Context) ([]Village, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, active, created_at FROM villages WHERE active ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Village
	for rows.Next() {
		var v Village
		if err := rows.Scan(&v.ID, &v.Name, &v.Active, &v.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, v)
	}
	return results, rows.Err()
}

// likeEscaper neutralizes ILIKE wildcards in caller input so "100%" matches
// the literal name instead of everything.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// FindByName returns the first active village whose name contains the input,
// case-insensitively. The input is matched literally; ILIKE wildcards in it
// are escaped.
func (r *Repository) FindByName(ctx context.Context, input string) (Village, error) {
	var v Village
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, active, created_at FROM villages
		 WHERE active AND name ILIKE '%' || $1 || '%'
		 ORDER BY name LIMIT 1`, likeEscaper.Replace(input)).
		Scan(&v.ID, &v.Name, &v.Active, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Village{}, ErrVillageNotFound
	}
	return v, err
}
