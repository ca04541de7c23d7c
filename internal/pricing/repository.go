// Package pricing provides the offer calculation engine. Pricing rules are
// managed elsewhere; this subsystem only reads them.
package pricing

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Conditions accepted by the engine.
const (
	ConditionExcellent = "excellent"
	ConditionGood      = "good"
	ConditionFair      = "fair"
	ConditionPoor      = "poor"
)

// ValidCondition reports whether the condition is one the engine prices.
func ValidCondition(condition string) bool {
	switch condition {
	case ConditionExcellent, ConditionGood, ConditionFair, ConditionPoor:
		return true
	}
	return false
}

// Rule is a pricing rule row. VillageID nil means the rule is general.
type Rule struct {
	ID        int64
	Name      string
	Condition string
	VillageID *int64
	BasePrice float64
	Multiplier float64
	MinPrice  *float64
	MaxPrice  *float64
	Priority  int
	Active    bool
	CreatedAt time.Time
}

// Repository provides read access to pricing rules.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new pricing repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ActiveRules returns the active rules for a condition ordered by priority
// descending, village-scoped rules before general ones within a priority.
func (r *Repository) ActiveRules(ctx context.Context, condition string) ([]Rule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, rule_name, condition_type, village_id, base_price, multiplier,
		       min_price, max_price, priority, active, created_at
		FROM pricing_rules
		WHERE condition_type = $1 AND active
		ORDER BY priority DESC, village_id DESC NULLS LAST`, condition)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Rule
	for rows.Next() {
		var rule Rule
		if err := rows.Scan(&rule.ID, &rule.Name, &rule.Condition, &rule.VillageID,
			&rule.BasePrice, &rule.Multiplier, &rule.MinPrice, &rule.MaxPrice,
			&rule.Priority, &rule.Active, &rule.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, rule)
	}
	return results, rows.Err()
}
