package sim

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"time"

	"github.com/xtding233/wishsim/internal/gacha"
)

const (
	maxCopiesCharacter = 7 // C0..C6
	maxCopiesWeapon    = 5 // R1..R5
	dateLayout         = "2006-01-02"

	// maxPulls saturates every pull balance; per-trial pulls are stored as int32.
	maxPulls = math.MaxInt32

	// DefaultMaxIterations caps Config.Iterations when Options.MaxIterations is 0.
	DefaultMaxIterations = 5_000_000

	// DefaultMaxCells caps targets × iterations when Options.MaxCells is 0.
	// Each cell holds one trial's outcome for one target, five bytes.
	DefaultMaxCells = 50_000_000
)

// limits bound the per-trial record buffers a run allocates up front.
type limits struct {
	iterations int
	cells      int
}

// plannedTarget is a validated Target with everything a trial needs
// precomputed.
type plannedTarget struct {
	key      string
	date     string
	banner   gacha.BannerType
	slot     int
	rules    gacha.Rules
	earned   int // pulls accrued right before this target
	cap      int // -1 means no cap
	copies   int
	mustHave bool
	override *StateOverride
}

type plan struct {
	targets       []plannedTarget
	start         [4]gacha.State // indexed like gacha.BannerTypes
	startingPulls int
	iterations    int
	chunk         int
	base          uint64
}

func slotOf(b gacha.BannerType) int { return slices.Index(gacha.BannerTypes, b) }

// parseDate accepts a bare date (midnight UTC) or an RFC 3339 timestamp.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// Validate reports configuration and input errors without running anything.
// Only opts.Table, opts.MaxIterations and opts.MaxCells are consulted.
func Validate(in *Input, opts Options) error {
	_, err := prepare(in, opts.Table, time.Now(), opts.limits())
	return err
}

func prepare(in *Input, table gacha.Table, now time.Time, lim limits) (*plan, error) {
	if in == nil {
		return nil, &InputError{Problems: []string{"input is required"}}
	}
	n := in.Config.Iterations
	if n <= 0 || n > lim.iterations {
		return nil, &gacha.ConfigError{Problems: []string{fmt.Sprintf("config.iterations must be 1..%d, got %d", lim.iterations, n)}}
	}
	// Both factors are bounded here, so the product cannot overflow.
	if t := len(in.Targets); t > lim.cells/n {
		return nil, &gacha.ConfigError{Problems: []string{fmt.Sprintf(
			"%d targets × %d iterations exceeds the limit of %d; use fewer targets or iterations", t, n, lim.cells)}}
	}
	if table == nil {
		table = gacha.DefaultTable()
	}
	if in.Rules != nil {
		r, err := gacha.Compile(gacha.BannerCharacter, *in.Rules)
		if err != nil {
			return nil, err
		}
		table = maps.Clone(table)
		table[gacha.BannerCharacter] = r
	}

	var problems []string
	bad := func(format string, args ...any) { problems = append(problems, fmt.Sprintf(format, args...)) }

	asOf := now
	if in.AsOf != "" {
		t, err := parseDate(in.AsOf)
		if err != nil {
			bad("asOf %q is not a date", in.AsOf)
		}
		asOf = t
	}
	if in.StartingPulls < 0 {
		bad("startingPulls must be >= 0")
	}
	if math.IsNaN(in.IncomePerDay) || math.IsInf(in.IncomePerDay, 0) || in.IncomePerDay < 0 {
		bad("incomePerDay must be a finite number >= 0")
	}
	if in.StartingPity < 0 || in.StartingRadiantStreak < 0 || in.StartingFatePoints < 0 {
		bad("starting pity, radiant streak and fate points must be >= 0")
	}
	if len(in.PerTargetStates) > len(in.Targets) {
		bad("perTargetStates has %d entries for %d targets", len(in.PerTargetStates), len(in.Targets))
	}

	type dated struct {
		t  time.Time
		pt plannedTarget
	}
	items := make([]dated, 0, len(in.Targets))
	for i, t := range in.Targets {
		where := fmt.Sprintf("targets[%d]", i)
		d, err := parseDate(t.ExpectedStartDate)
		if err != nil {
			bad("%s.expectedStartDate %q is not a date", where, t.ExpectedStartDate)
		}
		banner, err := gacha.ParseBannerType(string(t.BannerType))
		if err != nil {
			bad("%s.bannerType: %v", where, err)
		}
		rules, ok := table[banner]
		if err == nil && !ok {
			bad("%s.bannerType %q has no rules", where, banner)
		}
		if t.Priority < 1 || t.Priority > 5 {
			bad("%s.priority must be 1..5, got %d", where, t.Priority)
		}
		cp := -1
		if t.MaxPullBudget != nil {
			if *t.MaxPullBudget < 0 {
				bad("%s.maxPullBudget must be >= 0", where)
			}
			cp = *t.MaxPullBudget
		}
		copies := t.CopiesNeeded
		if copies == 0 {
			copies = 1
		}
		limit := maxCopiesCharacter
		if banner == gacha.BannerWeapon {
			limit = maxCopiesWeapon
		}
		if copies < 1 || copies > limit {
			bad("%s.copiesNeeded must be 1..%d, got %d", where, limit, t.CopiesNeeded)
		}
		var ov *StateOverride
		if i < len(in.PerTargetStates) {
			ov = in.PerTargetStates[i]
			if ov != nil && (neg(ov.Pity) || neg(ov.RadiantStreak) || neg(ov.FatePoints)) {
				bad("perTargetStates[%d] must not be negative", i)
			}
		}
		items = append(items, dated{t: d, pt: plannedTarget{
			key:      t.CharacterKey,
			banner:   banner,
			slot:     slotOf(banner),
			rules:    rules,
			cap:      cp,
			copies:   copies,
			mustHave: t.Priority == 1,
			override: ov,
		}})
	}
	if len(problems) > 0 {
		return nil, &InputError{Problems: problems}
	}

	slices.SortStableFunc(items, func(a, b dated) int { return a.t.Compare(b.t) })

	p := &plan{
		targets:       make([]plannedTarget, len(items)),
		startingPulls: min(in.StartingPulls, maxPulls),
		iterations:    in.Config.Iterations,
		chunk:         chunkSize(in.Config),
	}
	for i, it := range items {
		days := math.Max(0, it.t.Sub(asOf).Hours()/24)
		it.pt.earned = int(math.Min(math.Floor(days*in.IncomePerDay), maxPulls))
		it.pt.date = it.t.Format(dateLayout)
		p.targets[i] = it.pt
	}
	for b, s := range in.StartState() {
		p.start[slotOf(b)] = s
	}
	if in.Config.Seed != nil {
		p.base = uint64(*in.Config.Seed)
	} else {
		p.base = gacha.RandomSeed()
	}
	return p, nil
}

func neg(v *int) bool { return v != nil && *v < 0 }

// chunkSize defaults to about 1% of the run, at most 500 trials.
func chunkSize(c Config) int {
	if c.ChunkSize > 0 {
		return c.ChunkSize
	}
	return min(max(c.Iterations/100, 1), 500)
}
