package pricing

import (
	"fmt"
	"math"

	"github.com/xtding233/wishsim/internal/gacha"
)

// Pack models a purchasable crystal pack in the store.
type Pack struct {
	ID          string `json:"id" yaml:"id"`                     // SKU id, e.g., "6480"
	Name        string `json:"name" yaml:"name"`                 // display name
	Tokens      int    `json:"tokens" yaml:"tokens"`             // base Genesis Crystals granted
	BonusTokens int    `json:"bonusTokens" yaml:"bonus_tokens"`  // extra crystals on a repeat purchase
	FirstTimeX2 bool   `json:"firstTimeX2" yaml:"first_time_x2"` // first purchase doubles Tokens and replaces the bonus
	PriceCents  int    `json:"priceCents" yaml:"price_cents"`    // price in minor units
}

// Catalog is a regional product catalog and tax info.
type Catalog struct {
	TokenName string `json:"tokenName" yaml:"token_name"`
	Currency  string `json:"currency" yaml:"currency"` // ISO code, e.g., "USD"
	// If prices are pre-tax, TaxRate is applied on subtotal to compute total.
	TaxRate float64 `json:"taxRate" yaml:"tax_rate"`
	Packs   []Pack  `json:"packs" yaml:"packs"`
}

// DefaultCatalog is the Genesis Crystal price list in USD.
func DefaultCatalog() Catalog {
	return Catalog{
		TokenName: "Genesis Crystal",
		Currency:  "USD",
		Packs: []Pack{
			{ID: "60", Name: "60 Genesis Crystals", Tokens: 60, FirstTimeX2: true, PriceCents: 99},
			{ID: "300", Name: "300 Genesis Crystals", Tokens: 300, BonusTokens: 30, FirstTimeX2: true, PriceCents: 499},
			{ID: "980", Name: "980 Genesis Crystals", Tokens: 980, BonusTokens: 110, FirstTimeX2: true, PriceCents: 1499},
			{ID: "1980", Name: "1980 Genesis Crystals", Tokens: 1980, BonusTokens: 260, FirstTimeX2: true, PriceCents: 2999},
			{ID: "3280", Name: "3280 Genesis Crystals", Tokens: 3280, BonusTokens: 600, FirstTimeX2: true, PriceCents: 4999},
			{ID: "6480", Name: "6480 Genesis Crystals", Tokens: 6480, BonusTokens: 1600, FirstTimeX2: true, PriceCents: 9999},
		},
	}
}

// Validate reports every malformed pack.
func (c Catalog) Validate() error {
	var errs []string
	if math.IsNaN(c.TaxRate) || c.TaxRate < 0 || c.TaxRate >= 1 {
		errs = append(errs, "tax_rate must be in [0,1)")
	}
	seen := make(map[string]bool, len(c.Packs))
	for i, p := range c.Packs {
		if p.ID == "" || seen[p.ID] {
			errs = append(errs, fmt.Sprintf("packs[%d].id must be unique and non-empty", i))
		}
		seen[p.ID] = true
		if p.Tokens <= 0 || p.BonusTokens < 0 {
			errs = append(errs, fmt.Sprintf("packs[%d] must grant tokens", i))
		}
		if p.PriceCents <= 0 {
			errs = append(errs, fmt.Sprintf("packs[%d].price_cents must be > 0", i))
		}
	}
	if len(errs) > 0 {
		return &gacha.ConfigError{Problems: errs}
	}
	return nil
}

// FirstTimeState describes per-pack first-time eligibility.
type FirstTimeState map[string]bool // packID -> true if first-time x2 is still available

// Plan summarizes a purchase plan.
type Plan struct {
	Purchases   []Purchase `json:"purchases"`
	SubCents    int        `json:"subtotalCents"` // subtotal before tax
	TaxCents    int        `json:"taxCents"`
	TotalCents  int        `json:"totalCents"`
	TotalTokens int        `json:"totalTokens"`
	Currency    string     `json:"currency"`
	Pulls       int        `json:"pulls,omitempty"` // pulls covered, held crystals included
}

// Purchase is one line item in the plan.
type Purchase struct {
	PackID     string `json:"packId"`
	Name       string `json:"name"`
	Qty        int    `json:"qty"`
	UnitPrice  int    `json:"unitPriceCents"`
	UnitTokens int    `json:"unitTokens"` // tokens received per unit in this plan (x2/bonus applied)
	Subtotal   int    `json:"subtotalCents"`
}

// applyTax computes tax and total given a subtotal and a tax rate.
func applyTax(sub int, taxRate float64) (tax int, total int) {
	if taxRate <= 0 {
		return 0, sub
	}
	t := int(math.Round(float64(sub) * taxRate))
	return t, sub + t
}
