package gacha

import (
	"errors"
	"fmt"
)

// MaxSearchPulls bounds the exact distribution and PullsForProbability.
const MaxSearchPulls = 300

// nearCertain stops the distribution early.
const nearCertain = 0.9999

// Daily primogem income of common spending profiles.
const (
	IncomeF2P        = 60
	IncomeWelkin     = 150
	IncomeWelkinBP   = 170
	PrimogemsPerPull = 160
)

// Point is the cumulative chance of the first featured 5-star within Pulls.
type Point struct {
	Pulls       int     `json:"pulls"`
	Probability float64 `json:"cumulativeProbability"`
}

// Distribution computes, exactly, the cumulative probability of getting the
// featured item within 1..maxPulls pulls starting from s. It stops once the
// probability passes 0.9999, so the slice may be shorter than maxPulls.
func Distribution(s State, rules Rules, maxPulls int) []Point {
	if maxPulls <= 0 {
		return []Point{}
	}
	curve := rules.Curve()
	cur := map[State]float64{s: 1}
	var done float64
	out := make([]Point, 0, min(maxPulls, MaxSearchPulls))

	for n := 1; n <= maxPulls; n++ {
		next := make(map[State]float64, len(cur))
		for st, mass := range cur {
			p5 := curve.Rate(st.Pity)
			if p5 < 1 {
				miss := st
				miss.Pity++
				next[miss] += mass * (1 - p5)
			}
			hit := st
			hit.Pity = 0
			pf, _, lose, _ := rules.featured(hit)
			done += mass * p5 * pf
			if pf < 1 {
				next[lose] += mass * p5 * (1 - pf)
			}
		}
		out = append(out, Point{Pulls: n, Probability: done})
		cur = next
		if done > nearCertain {
			break
		}
	}
	return out
}

// PullsForProbability returns the smallest pull count whose cumulative chance
// reaches target, or MaxSearchPulls when it is never reached.
func PullsForProbability(target float64, s State, rules Rules) int {
	for _, pt := range Distribution(s, rules, MaxSearchPulls) {
		if pt.Probability >= target {
			return pt.Pulls
		}
	}
	return MaxSearchPulls
}

// Summary is the exact single-target outlook.
type Summary struct {
	ProbabilityWithPulls float64 `json:"probabilityWithCurrentPulls"`
	PullsFor50           int     `json:"pullsFor50"`
	PullsFor80           int     `json:"pullsFor80"`
	PullsFor90           int     `json:"pullsFor90"`
	PullsFor99           int     `json:"pullsFor99"`
	Distribution         []Point `json:"distribution"`
}

func SingleTarget(s State, rules Rules, availablePulls int) Summary {
	dist := Distribution(s, rules, min(availablePulls, MaxSearchPulls))
	var prob float64
	if len(dist) > 0 {
		// either the point at availablePulls or the early-stop tail
		prob = dist[len(dist)-1].Probability
	}
	return Summary{
		ProbabilityWithPulls: prob,
		PullsFor50:           PullsForProbability(0.50, s, rules),
		PullsFor80:           PullsForProbability(0.80, s, rules),
		PullsFor90:           PullsForProbability(0.90, s, rules),
		PullsFor99:           PullsForProbability(0.99, s, rules),
		Distribution:         dist,
	}
}

// Feasibility grades a required daily income against spending profiles.
type Feasibility string

const (
	FeasibilityEasy      Feasibility = "easy"
	FeasibilityPossible  Feasibility = "possible"
	FeasibilityDifficult Feasibility = "difficult"
	FeasibilityUnlikely  Feasibility = "unlikely"
)

var ErrIncomeInput = errors.New("invalid required income input")

// IncomeEstimate is the answer of RequiredIncome.
type IncomeEstimate struct {
	PullsPerDay     float64     `json:"requiredPullsPerDay"`
	PrimogemsPerDay float64     `json:"requiredPrimosPerDay"`
	VsF2P           float64     `json:"comparedToF2P"`
	VsWelkin        float64     `json:"comparedToWelkin"`
	VsWelkinBP      float64     `json:"comparedToWelkinBP"`
	Feasibility     Feasibility `json:"feasibility"`
}

// RequiredIncome estimates the daily income needed to get targets featured
// copies with probability prob within days. Each target is charged the
// single-target pull count from s, so it is a rough upper estimate.
func RequiredIncome(targets int, prob, days float64, s State, rules Rules) (IncomeEstimate, error) {
	if targets < 1 {
		return IncomeEstimate{}, fmt.Errorf("%w: targets must be >= 1", ErrIncomeInput)
	}
	if !(prob > 0 && prob <= 1) {
		return IncomeEstimate{}, fmt.Errorf("%w: probability must be in (0,1]", ErrIncomeInput)
	}
	if !finite(days) || days <= 0 {
		return IncomeEstimate{}, fmt.Errorf("%w: days must be positive", ErrIncomeInput)
	}

	total := float64(PullsForProbability(prob, s, rules) * targets)
	perDay := total / days
	primos := perDay * PrimogemsPerPull

	est := IncomeEstimate{
		PullsPerDay:     perDay,
		PrimogemsPerDay: primos,
		VsF2P:           primos / IncomeF2P,
		VsWelkin:        primos / IncomeWelkin,
		VsWelkinBP:      primos / IncomeWelkinBP,
	}
	switch {
	case primos <= IncomeF2P:
		est.Feasibility = FeasibilityEasy
	case primos <= IncomeWelkin:
		est.Feasibility = FeasibilityPossible
	case primos <= IncomeWelkinBP*1.5:
		est.Feasibility = FeasibilityDifficult
	default:
		est.Feasibility = FeasibilityUnlikely
	}
	return est, nil
}
