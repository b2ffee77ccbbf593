package sim

import (
	"fmt"
	"math"
	"slices"

	"github.com/xtding233/wishsim/internal/gacha"
)

// Constellation is the outlook for reaching one copy level of a target.
// Pull figures cover only the trials that reached the level.
type Constellation struct {
	Label            string  `json:"label"` // C0..C6, or R1..R5 on the weapon banner
	Probability      float64 `json:"probability"`
	AveragePullsUsed float64 `json:"averagePullsUsed"`
	MedianPullsUsed  int     `json:"medianPullsUsed"`
}

// TargetResult aggregates one target over every completed trial. Pulls used
// by a failed trial is the whole budget it burned.
type TargetResult struct {
	CharacterKey     string           `json:"characterKey"`
	BannerType       gacha.BannerType `json:"bannerType"`
	Date             string           `json:"date"`
	Probability      float64          `json:"probability"`
	AveragePullsUsed float64          `json:"averagePullsUsed"`
	MedianPullsUsed  int              `json:"medianPullsUsed"`
	Pulls            Stats            `json:"pulls"`
	Constellations   []Constellation  `json:"constellations"`
}

// TimelinePoint is the projected pull balance when a target's banner opens.
type TimelinePoint struct {
	Date           string `json:"date"`
	Event          string `json:"event"`
	ProjectedPulls int    `json:"projectedPulls"`
}

// Result is built once per run and never mutated afterwards.
type Result struct {
	PerCharacter            []TargetResult  `json:"perCharacter"`
	AllMustHavesProbability float64         `json:"allMustHavesProbability"`
	NothingProbability      float64         `json:"nothingProbability"`
	PullTimeline            []TimelinePoint `json:"pullTimeline"`

	Iterations          int    `json:"iterations"`
	CompletedIterations int    `json:"completedIterations"`
	Partial             bool   `json:"partial"`
	Seed                uint64 `json:"seed"`
}

func constellationLabel(b gacha.BannerType, level int) string {
	if b == gacha.BannerWeapon {
		return fmt.Sprintf("R%d", level)
	}
	return fmt.Sprintf("C%d", level-1)
}

// result aggregates the completed prefix of every shard.
func (p *plan) result(rec *records, shards []shard) *Result {
	completed, allMust, nothing := 0, 0, 0
	for _, sh := range shards {
		completed += sh.done - sh.lo
		allMust += sh.allMust
		nothing += sh.nothing
	}

	mustHaves := frac(allMust, completed)
	if !slices.ContainsFunc(p.targets, func(t plannedTarget) bool { return t.mustHave }) {
		// vacuous, even when no trial completed
		mustHaves = 1
	}

	res := &Result{
		PerCharacter:            make([]TargetResult, 0, len(p.targets)),
		PullTimeline:            make([]TimelinePoint, 0, len(p.targets)),
		AllMustHavesProbability: mustHaves,
		NothingProbability:      frac(nothing, completed),
		Iterations:              p.iterations,
		CompletedIterations:     completed,
		Partial:                 completed < p.iterations,
		Seed:                    p.base,
	}

	for ti, t := range p.targets {
		samples := make([]int, 0, completed)
		levels := make([][]int, t.copies)
		successes := 0
		for _, sh := range shards {
			for i := sh.lo; i < sh.done; i++ {
				c, u := int(rec.copies[ti][i]), int(rec.pulls[ti][i])
				samples = append(samples, u)
				if c >= t.copies {
					successes++
				}
				for l := 0; l < min(c, t.copies); l++ {
					levels[l] = append(levels[l], u)
				}
			}
		}

		tr := TargetResult{
			CharacterKey:   t.key,
			BannerType:     t.banner,
			Date:           t.date,
			Probability:    frac(successes, completed),
			Constellations: make([]Constellation, t.copies),
		}
		tr.Pulls = calcStats(samples)
		tr.AveragePullsUsed = tr.Pulls.Mean
		tr.MedianPullsUsed = tr.Pulls.Median
		for l, xs := range levels {
			st := calcStats(xs)
			tr.Constellations[l] = Constellation{
				Label:            constellationLabel(t.banner, l+1),
				Probability:      frac(len(xs), completed),
				AveragePullsUsed: st.Mean,
				MedianPullsUsed:  st.Median,
			}
		}
		res.PerCharacter = append(res.PerCharacter, tr)
	}

	res.PullTimeline = p.timeline(res.PerCharacter)
	return res
}

// timeline projects the balance at each banner: starting pulls plus income
// accrued up to it, minus the average spent on earlier targets.
func (p *plan) timeline(per []TargetResult) []TimelinePoint {
	out := make([]TimelinePoint, 0, len(p.targets))
	balance := float64(p.startingPulls)
	for i, t := range p.targets {
		balance = math.Min(balance+float64(t.earned), maxPulls)
		if i > 0 {
			balance -= per[i-1].AveragePullsUsed
		}
		out = append(out, TimelinePoint{
			Date:           t.date,
			Event:          t.key + " banner",
			ProjectedPulls: int(math.Floor(math.Max(0, balance))),
		})
	}
	return out
}
