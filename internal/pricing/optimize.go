package pricing

import (
	"cmp"
	"math"
	"slices"

	"github.com/xtding233/wishsim/internal/token"
)

// maxFirstTime bounds the first-purchase subsets that are enumerated.
const maxFirstTime = 16

type variant struct {
	id, name   string
	tok, price int
}

// variants splits the catalog into repeatable packs and the one-off
// first-purchase doubles that are still available.
func variants(cat Catalog, first FirstTimeState) (normal, once []variant) {
	for _, p := range cat.Packs {
		if p.PriceCents <= 0 || p.Tokens+p.BonusTokens <= 0 {
			continue
		}
		if p.FirstTimeX2 && first[p.ID] && len(once) < maxFirstTime {
			once = append(once, variant{p.ID + "#x2", p.Name + " (x2)", p.Tokens * 2, p.PriceCents})
		}
		normal = append(normal, variant{p.ID, p.Name, p.Tokens + p.BonusTokens, p.PriceCents})
	}
	return normal, once
}

// MinCostAtLeastTokens finds the minimum-cost combination to obtain at least targetTokens.
// Repeat purchases are unbounded; each first-time x2 can be used at most once,
// so every subset of the available doubles is tried against one shared table.
func MinCostAtLeastTokens(cat Catalog, targetTokens int, first FirstTimeState) Plan {
	normal, once := variants(cat, first)
	if targetTokens <= 0 || len(normal) == 0 {
		return Plan{Currency: cat.Currency}
	}

	const Inf = math.MaxInt / 2
	// dp[t] = min cost of repeat packs giving at least t tokens
	dp := make([]int, targetTokens+1)
	pr := make([]int, targetTokens+1)
	for t := 1; t <= targetTokens; t++ {
		dp[t], pr[t] = Inf, -1
		for i, e := range normal {
			if c := e.price + dp[max(0, t-e.tok)]; c < dp[t] {
				dp[t], pr[t] = c, i
			}
		}
	}

	bestMask, bestCost, bestTok := 0, Inf, 0
	for mask := range 1 << len(once) {
		price, tok := 0, 0
		for i, e := range once {
			if mask&(1<<i) != 0 {
				price += e.price
				tok += e.tok
			}
		}
		cost := price + dp[max(0, targetTokens-tok)]
		// ties go to more tokens
		if cost < bestCost || (cost == bestCost && tok > bestTok) {
			bestMask, bestCost, bestTok = mask, cost, tok
		}
	}

	counts := map[variant]int{}
	for i, e := range once {
		if bestMask&(1<<i) != 0 {
			counts[e]++
		}
	}
	for t := max(0, targetTokens-bestTok); t > 0; {
		e := normal[pr[t]]
		counts[e]++
		t = max(0, t-e.tok)
	}
	return buildPlan(cat, counts)
}

// MaxTokensUnderBudget computes the maximum tokens purchasable with budgetCents.
func MaxTokensUnderBudget(cat Catalog, budgetCents int, first FirstTimeState) Plan {
	normal, once := variants(cat, first)
	if budgetCents <= 0 || len(normal) == 0 {
		return Plan{Currency: cat.Currency}
	}

	// If prices are pre-tax, reduce effective budget by tax to approximate pre-tax spend.
	effBudget := budgetCents
	if cat.TaxRate > 0 {
		effBudget = int(math.Floor(float64(budgetCents) / (1 + cat.TaxRate)))
	}

	// dp[c] = max tokens of repeat packs costing at most c
	dp := make([]int, effBudget+1)
	choose := make([]int, effBudget+1)
	for c := 0; c <= effBudget; c++ {
		choose[c] = -1
		if c > 0 {
			dp[c] = dp[c-1]
		}
		for i, e := range normal {
			if e.price <= c && dp[c-e.price]+e.tok > dp[c] {
				dp[c], choose[c] = dp[c-e.price]+e.tok, i
			}
		}
	}

	bestMask, bestTok, bestLeft := 0, -1, 0
	for mask := range 1 << len(once) {
		price, tok := 0, 0
		for i, e := range once {
			if mask&(1<<i) != 0 {
				price += e.price
				tok += e.tok
			}
		}
		if price > effBudget {
			continue
		}
		left := effBudget - price
		if tok+dp[left] > bestTok {
			bestMask, bestTok, bestLeft = mask, tok+dp[left], left
		}
	}

	counts := map[variant]int{}
	for i, e := range once {
		if bestMask&(1<<i) != 0 {
			counts[e]++
		}
	}
	for c := bestLeft; c > 0; {
		if choose[c] == -1 {
			c--
			continue
		}
		e := normal[choose[c]]
		counts[e]++
		c -= e.price
	}
	return buildPlan(cat, counts)
}

// ForPulls plans the cheapest top-up covering a deficit of pulls after
// spending the crystals already held.
func ForPulls(cat Catalog, rate token.Token, deficitPulls, heldTokens int, first FirstTimeState) Plan {
	need := rate.TokensForDraws(deficitPulls) - max(0, heldTokens)
	if deficitPulls <= 0 || need <= 0 {
		return Plan{Currency: cat.Currency}
	}
	plan := MinCostAtLeastTokens(cat, need, first)
	plan.Pulls = rate.DrawsFor(plan.TotalTokens + max(0, heldTokens))
	return plan
}

func buildPlan(cat Catalog, counts map[variant]int) Plan {
	plan := Plan{Currency: cat.Currency}
	for k, qty := range counts {
		sub := k.price * qty
		plan.Purchases = append(plan.Purchases, Purchase{
			PackID:     k.id,
			Name:       k.name,
			Qty:        qty,
			UnitPrice:  k.price,
			UnitTokens: k.tok,
			Subtotal:   sub,
		})
		plan.SubCents += sub
		plan.TotalTokens += k.tok * qty
	}
	slices.SortFunc(plan.Purchases, func(a, b Purchase) int {
		return cmp.Or(cmp.Compare(a.UnitPrice, b.UnitPrice), cmp.Compare(a.PackID, b.PackID))
	})
	plan.TaxCents, plan.TotalCents = applyTax(plan.SubCents, cat.TaxRate)
	return plan
}
