package pricing

import (
	"errors"
	"testing"

	"github.com/xtding233/wishsim/internal/gacha"
	"github.com/xtding233/wishsim/internal/token"
)

func allFirst(cat Catalog) FirstTimeState {
	f := FirstTimeState{}
	for _, p := range cat.Packs {
		f[p.ID] = true
	}
	return f
}

func TestMinCostWithoutFirstTime(t *testing.T) {
	cat := DefaultCatalog()
	plan := MinCostAtLeastTokens(cat, 160, nil)
	if plan.TotalCents != 3*99 || plan.TotalTokens != 180 {
		t.Fatalf("got %+v", plan)
	}
	if len(plan.Purchases) != 1 || plan.Purchases[0].Qty != 3 {
		t.Fatalf("purchases %+v", plan.Purchases)
	}
}

func TestFirstTimeDoubleUsedOnce(t *testing.T) {
	cat := DefaultCatalog()
	plan := MinCostAtLeastTokens(cat, 160, allFirst(cat))
	// one doubled 60 pack (120) plus one repeat 60 pack
	if plan.TotalCents != 2*99 || plan.TotalTokens != 180 {
		t.Fatalf("got %+v", plan)
	}
	if plan.Purchases[0].PackID != "60" || plan.Purchases[1].PackID != "60#x2" {
		t.Fatalf("purchases %+v", plan.Purchases)
	}
	for _, p := range plan.Purchases {
		if p.PackID == "60#x2" && p.Qty != 1 {
			t.Fatalf("first-time double bought %d times", p.Qty)
		}
	}
}

func TestMinCostCoversTarget(t *testing.T) {
	cat := DefaultCatalog()
	for _, target := range []int{1, 59, 61, 1000, 6480, 14400} {
		plan := MinCostAtLeastTokens(cat, target, allFirst(cat))
		if plan.TotalTokens < target {
			t.Fatalf("target %d: only %d tokens", target, plan.TotalTokens)
		}
	}
	if plan := MinCostAtLeastTokens(cat, 0, nil); len(plan.Purchases) != 0 || plan.Currency != "USD" {
		t.Fatalf("zero target: %+v", plan)
	}
}

func TestTaxApplied(t *testing.T) {
	cat := DefaultCatalog()
	cat.TaxRate = 0.13
	plan := MinCostAtLeastTokens(cat, 60, nil)
	if plan.SubCents != 99 || plan.TaxCents != 13 || plan.TotalCents != 112 {
		t.Fatalf("got %+v", plan)
	}
}

func TestMaxTokensUnderBudget(t *testing.T) {
	cat := DefaultCatalog()
	if plan := MaxTokensUnderBudget(cat, 198, nil); plan.TotalTokens != 120 {
		t.Fatalf("no first-time: %+v", plan)
	}
	if plan := MaxTokensUnderBudget(cat, 198, allFirst(cat)); plan.TotalTokens != 180 || plan.SubCents > 198 {
		t.Fatalf("first-time: %+v", plan)
	}
	if plan := MaxTokensUnderBudget(cat, 50, nil); plan.TotalTokens != 0 {
		t.Fatalf("cannot afford anything: %+v", plan)
	}
}

func TestForPulls(t *testing.T) {
	cat := DefaultCatalog()
	plan := ForPulls(cat, token.Primogem, 1, 100, allFirst(cat))
	if plan.TotalTokens != 120 || plan.TotalCents != 99 || plan.Pulls != 1 {
		t.Fatalf("got %+v", plan)
	}
	if plan := ForPulls(cat, token.Primogem, 2, 400, nil); len(plan.Purchases) != 0 {
		t.Fatalf("enough crystals held, got %+v", plan)
	}
}

func TestCatalogValidate(t *testing.T) {
	if err := DefaultCatalog().Validate(); err != nil {
		t.Fatal(err)
	}
	bad := Catalog{TaxRate: -1, Packs: []Pack{{ID: "a", Tokens: 10, PriceCents: 1}, {ID: "a", PriceCents: 0}}}
	err := bad.Validate()
	var ce *gacha.ConfigError
	if !errors.As(err, &ce) || len(ce.Problems) != 4 {
		t.Fatalf("got %v", err)
	}
}
