package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"fridgeops_backend/platform/logger"
)

type fakeRuleSource struct {
	rules []Rule
	err   error
}

func (f *fakeRuleSource) ActiveRules(ctx context.Context, condition string) ([]Rule, error) {
	if f.err != nil {
		return nil, f.err
	}
	var matching []Rule
	for _, r := range f.rules {
		if r.Condition == condition {
			matching = append(matching, r)
		}
	}
	return matching, nil
}

func newTestCalculator(src RuleSource) *Calculator {
	return NewCalculator(src, logger.New("development"))
}

func TestCalculateOffer_FallbackTable(t *testing.T) {
	calc := newTestCalculator(&fakeRuleSource{})

	cases := []struct {
		condition string
		amount    int
	}{
		{ConditionExcellent, 1200}, // 800 * 1.5
		{ConditionGood, 720},       // 600 * 1.2
		{ConditionFair, 320},       // 400 * 0.8
		{ConditionPoor, 130},       // 250 * 0.5 = 125, rounds half-up to 130
	}

	for _, tc := range cases {
		offer := calc.CalculateOffer(context.Background(), tc.condition, nil, "")
		if offer.Amount != tc.amount {
			t.Fatalf("condition %s: expected amount %d, got %d", tc.condition, tc.amount, offer.Amount)
		}
		if offer.Currency != "ZAR" {
			t.Fatalf("condition %s: expected currency ZAR, got %s", tc.condition, offer.Currency)
		}
		if offer.RuleApplied != nil {
			t.Fatalf("condition %s: fallback offer should not name a rule", tc.condition)
		}
	}
}

func TestCalculateOffer_FallbackOnLookupError(t *testing.T) {
	calc := newTestCalculator(&fakeRuleSource{err: errors.New("connection refused")})

	offer := calc.CalculateOffer(context.Background(), ConditionGood, nil, "")
	if offer.Amount != 720 {
		t.Fatalf("expected fallback amount 720, got %d", offer.Amount)
	}
}

func TestCalculateOffer_VillageRuleOutranksGeneral(t *testing.T) {
	villageID := int64(7)
	calc := newTestCalculator(&fakeRuleSource{rules: []Rule{
		{ID: 1, Name: "general good", Condition: ConditionGood, BasePrice: 500, Multiplier: 1.0, Priority: 10},
		{ID: 2, Name: "village good", Condition: ConditionGood, VillageID: &villageID, BasePrice: 700, Multiplier: 1.0, Priority: 5},
	}})

	offer := calc.CalculateOffer(context.Background(), ConditionGood, &villageID, "Khayelitsha")
	if offer.Amount != 700 {
		t.Fatalf("expected village-scoped rule amount 700, got %d", offer.Amount)
	}
	if offer.RuleApplied == nil || *offer.RuleApplied != "village good" {
		t.Fatalf("expected village rule to be applied, got %v", offer.RuleApplied)
	}
}

func TestCalculateOffer_GeneralRuleWhenVillageUnmatched(t *testing.T) {
	otherVillage := int64(3)
	requested := int64(7)
	calc := newTestCalculator(&fakeRuleSource{rules: []Rule{
		{ID: 1, Name: "scoped", Condition: ConditionFair, VillageID: &otherVillage, BasePrice: 900, Multiplier: 1.0, Priority: 10},
		{ID: 2, Name: "general", Condition: ConditionFair, BasePrice: 300, Multiplier: 1.0, Priority: 5},
	}})

	offer := calc.CalculateOffer(context.Background(), ConditionFair, &requested, "")
	if offer.RuleApplied == nil || *offer.RuleApplied != "general" {
		t.Fatalf("expected general rule, got %v", offer.RuleApplied)
	}
	if offer.Amount != 300 {
		t.Fatalf("expected amount 300, got %d", offer.Amount)
	}
}

func TestCalculateOffer_ClampAndRounding(t *testing.T) {
	minPrice := 500.0
	maxPrice := 1000.0
	calc := newTestCalculator(&fakeRuleSource{rules: []Rule{
		{ID: 1, Name: "clamped", Condition: ConditionExcellent, BasePrice: 900, Multiplier: 2.0,
			MinPrice: &minPrice, MaxPrice: &maxPrice, Priority: 1},
	}})

	offer := calc.CalculateOffer(context.Background(), ConditionExcellent, nil, "")
	if offer.Amount != 1000 {
		t.Fatalf("expected clamped amount 1000, got %d", offer.Amount)
	}
}

func TestCalculateOffer_ValidUntilSevenDays(t *testing.T) {
	calc := newTestCalculator(&fakeRuleSource{})

	before := time.Now().Add(offerValidity - time.Minute)
	offer := calc.CalculateOffer(context.Background(), ConditionPoor, nil, "")
	after := time.Now().Add(offerValidity + time.Minute)

	if offer.ValidUntil.Before(before) || offer.ValidUntil.After(after) {
		t.Fatalf("expected valid_until about 7 days out, got %v", offer.ValidUntil)
	}
}

func TestRoundToTen(t *testing.T) {
	cases := []struct {
		in   float64
		want int
	}{
		{125, 130},
		{124.9, 120},
		{1200, 1200},
		{0, 0},
	}
	for _, tc := range cases {
		if got := roundToTen(tc.in); got != tc.want {
			t.Fatalf("roundToTen(%v): expected %d, got %d", tc.in, tc.want, got)
		}
	}
}
