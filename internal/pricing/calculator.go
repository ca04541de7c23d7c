package pricing

import (
	"context"
	"math"
	"time"

	"fridgeops_backend/platform/logger"
)

const offerValidity = 7 * 24 * time.Hour

// Offer is a computed purchase price, valid for a limited time.
type Offer struct {
	Amount      int       `json:"amount"`
	Currency    string    `json:"currency"`
	Condition   string    `json:"condition"`
	VillageName string    `json:"village_name,omitempty"`
	RuleApplied *string   `json:"rule_applied,omitempty"`
	ValidUntil  time.Time `json:"valid_until"`
}

// Fallback pricing when no rules are configured or the lookup fails.
var (
	fallbackBasePrices = map[string]float64{
		ConditionExcellent: 800,
		ConditionGood:      600,
		ConditionFair:      400,
		ConditionPoor:      250,
	}
	fallbackMultipliers = map[string]float64{
		ConditionExcellent: 1.5,
		ConditionGood:      1.2,
		ConditionFair:      0.8,
		ConditionPoor:      0.5,
	}
)

// RuleSource abstracts the rule lookup so the calculator is testable
// without a database.
type RuleSource interface {
	ActiveRules(ctx context.Context, condition string) ([]Rule, error)
}

// Calculator computes offers from pricing rules with a hardcoded fallback.
// It never returns an error: pricing must not block a conversation, so any
// lookup failure degrades to the fallback table.
type Calculator struct {
	rules RuleSource
	log   *logger.Logger
}

// NewCalculator creates a new offer calculator.
func NewCalculator(rules RuleSource, log *logger.Logger) *Calculator {
	return &Calculator{rules: rules, log: log}
}

// CalculateOffer computes an offer for a condition and optional village.
// Rule selection: first rule scoped exactly to the village, else the first
// general rule, else the highest-priority rule of the set; with no usable
// rules, the fallback table applies.
func (c *Calculator) CalculateOffer(ctx context.Context, condition string, villageID *int64, villageName string) Offer {
	rules, err := c.rules.ActiveRules(ctx, condition)
	if err != nil {
		c.log.Warn("pricing rule lookup failed, using fallback", "condition", condition, "error", err)
		return c.fallbackOffer(condition, villageName)
	}
	if len(rules) == 0 {
		return c.fallbackOffer(condition, villageName)
	}

	rule := selectRule(rules, villageID)

	amount := rule.BasePrice * rule.Multiplier
	if rule.MinPrice != nil && amount < *rule.MinPrice {
		amount = *rule.MinPrice
	}
	if rule.MaxPrice != nil && amount > *rule.MaxPrice {
		amount = *rule.MaxPrice
	}

	return Offer{
		Amount:      roundToTen(amount),
		Currency:    "ZAR",
		Condition:   condition,
		VillageName: villageName,
		RuleApplied: &rule.Name,
		ValidUntil:  time.Now().Add(offerValidity),
	}
}

func selectRule(rules []Rule, villageID *int64) Rule {
	if villageID != nil {
		for _, rule := range rules {
			if rule.VillageID != nil && *rule.VillageID == *villageID {
				return rule
			}
		}
	}
	for _, rule := range rules {
		if rule.VillageID == nil {
			return rule
		}
	}
	return rules[0]
}

func (c *Calculator) fallbackOffer(condition, villageName string) Offer {
	basePrice, ok := fallbackBasePrices[condition]
	if !ok {
		basePrice = 400
	}
	multiplier, ok := fallbackMultipliers[condition]
	if !ok {
		multiplier = 1.0
	}

	return Offer{
		Amount:      roundToTen(basePrice * multiplier),
		Currency:    "ZAR",
		Condition:   condition,
		VillageName: villageName,
		ValidUntil:  time.Now().Add(offerValidity),
	}
}

// roundToTen rounds to the nearest multiple of 10, half up.
func roundToTen(amount float64) int {
	return int(math.Floor(amount/10+0.5)) * 10
}
