package sim_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/xtding233/wishsim/internal/gacha"
	"github.com/xtding233/wishsim/internal/sim"
)

func intp(v int) *int      { return &v }
func boolp(v bool) *bool   { return &v }
func seedp(v int64) *int64 { return &v }

func baseInput() *sim.Input {
	return &sim.Input{
		Targets: []sim.Target{
			{CharacterKey: "Furina", ExpectedStartDate: "2025-03-01", Priority: 1},
			{CharacterKey: "Neuvillette", ExpectedStartDate: "2025-02-01", Priority: 2, MaxPullBudget: intp(120)},
			{CharacterKey: "Mistsplitter", ExpectedStartDate: "2025-02-15", Priority: 3, BannerType: gacha.BannerWeapon},
		},
		StartingPity:  20,
		StartingPulls: 150,
		IncomePerDay:  1.5,
		AsOf:          "2025-01-01",
		Config:        sim.Config{Iterations: 4000, Seed: seedp(42)},
	}
}

func TestEmptyTargetsVacuousSuccess(t *testing.T) {
	in := &sim.Input{Config: sim.Config{Iterations: 1000}}
	res, err := sim.Run(context.Background(), in, sim.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if res.AllMustHavesProbability != 1 {
		t.Fatalf("allMustHavesProbability=%v", res.AllMustHavesProbability)
	}
	b, _ := json.Marshal(res)
	if !strings.Contains(string(b), `"perCharacter":[]`) || !strings.Contains(string(b), `"pullTimeline":[]`) {
		t.Fatalf("empty lists must encode as []: %s", b)
	}
}

func TestIterationsMustBePositive(t *testing.T) {
	for _, n := range []int{0, -5} {
		in := baseInput()
		in.Config.Iterations = n
		_, err := sim.Run(context.Background(), in, sim.Options{})
		if !errors.Is(err, gacha.ErrConfig) {
			t.Fatalf("iterations=%d: want ErrConfig, got %v", n, err)
		}
	}
}

func TestInvalidRulesRejected(t *testing.T) {
	in := baseInput()
	in.Rules = &gacha.BannerRules{SoftPityStart: 90, HardPity: 80, BaseRate: 0.006}
	if _, err := sim.Run(context.Background(), in, sim.Options{}); !errors.Is(err, gacha.ErrConfig) {
		t.Fatalf("want ErrConfig, got %v", err)
	}
}

func TestInvalidInputListsEveryProblem(t *testing.T) {
	in := baseInput()
	in.Targets[0].ExpectedStartDate = "next tuesday"
	in.Targets[1].MaxPullBudget = intp(-1)
	in.Targets[2].Priority = 9
	_, err := sim.Run(context.Background(), in, sim.Options{})
	if !errors.Is(err, sim.ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput, got %v", err)
	}
	var ie *sim.InputError
	if !errors.As(err, &ie) || len(ie.Problems) != 3 {
		t.Fatalf("want 3 problems, got %v", err)
	}
	if err := sim.Validate(in, sim.Options{}); !errors.Is(err, sim.ErrInvalidInput) {
		t.Fatalf("Validate: %v", err)
	}
}

func TestSeededRunIsDeterministic(t *testing.T) {
	var outs [][]byte
	for _, workers := range []int{1, 1, 3, 8} {
		res, err := sim.Run(context.Background(), baseInput(), sim.Options{Workers: workers})
		if err != nil {
			t.Fatal(err)
		}
		b, err := json.Marshal(res)
		if err != nil {
			t.Fatal(err)
		}
		outs = append(outs, b)
	}
	for i := 1; i < len(outs); i++ {
		if string(outs[i]) != string(outs[0]) {
			t.Fatalf("run %d differs:\n%s\n%s", i, outs[0], outs[i])
		}
	}
}

func TestProbabilityBounds(t *testing.T) {
	res, err := sim.Run(context.Background(), baseInput(), sim.Options{})
	if err != nil {
		t.Fatal(err)
	}
	in01 := func(v float64) bool { return v >= 0 && v <= 1 }
	if !in01(res.AllMustHavesProbability) || !in01(res.NothingProbability) {
		t.Fatalf("aggregate out of range: %+v", res)
	}
	for _, tr := range res.PerCharacter {
		if !in01(tr.Probability) {
			t.Fatalf("%s probability %v", tr.CharacterKey, tr.Probability)
		}
	}
}

func TestTargetsRunInDateOrder(t *testing.T) {
	res, err := sim.Run(context.Background(), baseInput(), sim.Options{})
	if err != nil {
		t.Fatal(err)
	}
	var keys []string
	for _, tr := range res.PerCharacter {
		keys = append(keys, tr.CharacterKey)
	}
	if got := strings.Join(keys, ","); got != "Neuvillette,Mistsplitter,Furina" {
		t.Fatalf("order %s", got)
	}
	if res.PerCharacter[1].Constellations[0].Label != "R1" {
		t.Fatalf("weapon label %q", res.PerCharacter[1].Constellations[0].Label)
	}
}

func TestMaxPullBudgetCapsSpending(t *testing.T) {
	res, err := sim.Run(context.Background(), baseInput(), sim.Options{})
	if err != nil {
		t.Fatal(err)
	}
	n := res.PerCharacter[0]
	if n.Pulls.P99 > 120 || n.AveragePullsUsed > 120 {
		t.Fatalf("capped target spent more than 120: %+v", n.Pulls)
	}
}

func TestNoBudgetNoSuccess(t *testing.T) {
	in := &sim.Input{
		Targets: []sim.Target{{CharacterKey: "Xilonen", ExpectedStartDate: "2025-01-01", Priority: 1}},
		AsOf:    "2025-06-01",
		Config:  sim.Config{Iterations: 200, Seed: seedp(1)},
	}
	res, err := sim.Run(context.Background(), in, sim.Options{})
	if err != nil {
		t.Fatal(err)
	}
	tr := res.PerCharacter[0]
	if tr.Probability != 0 || tr.AveragePullsUsed != 0 || res.AllMustHavesProbability != 0 || res.NothingProbability != 1 {
		t.Fatalf("zero budget: %+v / %+v", tr, res)
	}
}

func TestForcedGuaranteedPull(t *testing.T) {
	in := &sim.Input{
		Targets:            []sim.Target{{CharacterKey: "Mavuika", ExpectedStartDate: "2025-01-01", Priority: 1}},
		StartingPity:       89,
		StartingGuaranteed: true,
		StartingPulls:      1,
		AsOf:               "2025-01-01",
		Config:             sim.Config{Iterations: 500},
	}
	res, err := sim.Run(context.Background(), in, sim.Options{})
	if err != nil {
		t.Fatal(err)
	}
	tr := res.PerCharacter[0]
	if tr.Probability != 1 || tr.MedianPullsUsed != 1 || res.AllMustHavesProbability != 1 {
		t.Fatalf("forced pull: %+v", tr)
	}
}

func TestPerTargetStateOverride(t *testing.T) {
	in := &sim.Input{
		Targets: []sim.Target{
			{CharacterKey: "A", ExpectedStartDate: "2025-01-01", Priority: 1, MaxPullBudget: intp(1)},
			{CharacterKey: "B", ExpectedStartDate: "2025-01-02", Priority: 1, MaxPullBudget: intp(1)},
		},
		StartingPulls: 2,
		AsOf:          "2025-01-01",
		Config:        sim.Config{Iterations: 300, Seed: seedp(3)},
		PerTargetStates: []*sim.StateOverride{
			nil,
			{Pity: intp(89), Guaranteed: boolp(true)},
		},
	}
	res, err := sim.Run(context.Background(), in, sim.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if res.PerCharacter[1].Probability != 1 {
		t.Fatalf("override should force B: %+v", res.PerCharacter[1])
	}
	if res.PerCharacter[0].Probability > 0.05 {
		t.Fatalf("A has a single base-rate pull: %+v", res.PerCharacter[0])
	}
}

func TestConstellationBreakdown(t *testing.T) {
	in := &sim.Input{
		Targets:       []sim.Target{{CharacterKey: "Nahida", ExpectedStartDate: "2025-01-01", Priority: 1, CopiesNeeded: 3}},
		StartingPulls: 400,
		AsOf:          "2025-01-01",
		Config:        sim.Config{Iterations: 2000, Seed: seedp(9)},
	}
	res, err := sim.Run(context.Background(), in, sim.Options{})
	if err != nil {
		t.Fatal(err)
	}
	cs := res.PerCharacter[0].Constellations
	if len(cs) != 3 || cs[0].Label != "C0" || cs[2].Label != "C2" {
		t.Fatalf("labels: %+v", cs)
	}
	for i := 1; i < len(cs); i++ {
		if cs[i].Probability > cs[i-1].Probability {
			t.Fatalf("higher level more likely: %+v", cs)
		}
	}
	if cs[2].Probability != res.PerCharacter[0].Probability {
		t.Fatalf("target probability should equal its top level: %v vs %v", cs[2].Probability, res.PerCharacter[0].Probability)
	}
}

func TestTimeline(t *testing.T) {
	in := &sim.Input{
		Targets: []sim.Target{
			{CharacterKey: "Later", ExpectedStartDate: "2025-01-21", Priority: 2},
			{CharacterKey: "Sooner", ExpectedStartDate: "2025-01-11", Priority: 2, MaxPullBudget: intp(0)},
		},
		StartingPulls: 100,
		IncomePerDay:  1,
		AsOf:          "2025-01-01",
		Config:        sim.Config{Iterations: 10, Seed: seedp(5)},
	}
	res, err := sim.Run(context.Background(), in, sim.Options{})
	if err != nil {
		t.Fatal(err)
	}
	want := []sim.TimelinePoint{
		{Date: "2025-01-11", Event: "Sooner banner", ProjectedPulls: 110},
		{Date: "2025-01-21", Event: "Later banner", ProjectedPulls: 130},
	}
	if len(res.PullTimeline) != 2 || res.PullTimeline[0] != want[0] || res.PullTimeline[1] != want[1] {
		t.Fatalf("timeline %+v", res.PullTimeline)
	}
}

func TestMatchesExactDistribution(t *testing.T) {
	in := &sim.Input{
		Targets:       []sim.Target{{CharacterKey: "Solo", ExpectedStartDate: "2025-01-01", Priority: 1}},
		StartingPulls: 90,
		AsOf:          "2025-01-01",
		Config:        sim.Config{Iterations: 20000, Seed: seedp(77)},
	}
	res, err := sim.Run(context.Background(), in, sim.Options{})
	if err != nil {
		t.Fatal(err)
	}
	dist := gacha.Distribution(gacha.State{}, gacha.DefaultTable()[gacha.BannerCharacter], 90)
	want := dist[len(dist)-1].Probability
	if got := res.PerCharacter[0].Probability; math.Abs(got-want) > 0.02 {
		t.Fatalf("simulated %v, exact %v", got, want)
	}
}

func TestProgressReported(t *testing.T) {
	var seen []float64
	in := baseInput()
	in.Config.ChunkSize = 100
	_, err := sim.Run(context.Background(), in, sim.Options{
		Workers:  1,
		Progress: func(f float64) { seen = append(seen, f) },
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(seen) != 40 {
		t.Fatalf("want a report per chunk, got %d", len(seen))
	}
	for i := 1; i < len(seen); i++ {
		if seen[i] < seen[i-1] {
			t.Fatalf("progress went backwards: %v", seen)
		}
	}
	if seen[len(seen)-1] != 1 {
		t.Fatalf("last progress %v", seen[len(seen)-1])
	}
}

func TestCancelledRunReturnsPartial(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := sim.Run(ctx, baseInput(), sim.Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if res == nil || !res.Partial || res.CompletedIterations != 0 {
		t.Fatalf("partial result: %+v", res)
	}
}

func TestCancelMidRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	in := baseInput()
	in.Config.Iterations = 200000
	in.Config.ChunkSize = 50
	res, err := sim.Run(ctx, in, sim.Options{
		Workers: 2,
		Progress: func(f float64) {
			if f >= 0.01 {
				cancel()
			}
		},
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if !res.Partial || res.CompletedIterations == 0 || res.CompletedIterations >= in.Config.Iterations {
		t.Fatalf("completed %d of %d", res.CompletedIterations, res.Iterations)
	}
	for _, tr := range res.PerCharacter {
		if tr.Probability < 0 || tr.Probability > 1 {
			t.Fatalf("partial probability %v", tr.Probability)
		}
	}
}

func TestIterationsCapped(t *testing.T) {
	in := baseInput()
	in.Config.Iterations = sim.DefaultMaxIterations + 1
	if err := sim.Validate(in, sim.Options{}); !errors.Is(err, gacha.ErrConfig) {
		t.Fatalf("want ErrConfig over the default cap, got %v", err)
	}

	in.Config.Iterations = 1_000_000_000_000
	if _, err := sim.Run(context.Background(), in, sim.Options{MaxIterations: 1000}); !errors.Is(err, gacha.ErrConfig) {
		t.Fatalf("want ErrConfig over a configured cap, got %v", err)
	}

	in.Config.Iterations = 1000
	if _, err := sim.Run(context.Background(), in, sim.Options{MaxIterations: 1000}); err != nil {
		t.Fatalf("run at the cap: %v", err)
	}
}

func TestTargetsTimesIterationsCapped(t *testing.T) {
	in := baseInput()
	many := make([]sim.Target, 20_000)
	for i := range many {
		many[i] = sim.Target{CharacterKey: "Furina", ExpectedStartDate: "2025-03-01", Priority: 2}
	}
	in.Targets = many
	in.Config.Iterations = sim.DefaultMaxIterations
	err := sim.Validate(in, sim.Options{})
	if !errors.Is(err, gacha.ErrConfig) {
		t.Fatalf("want ErrConfig for 20000 targets at the iteration cap, got %v", err)
	}
	if !strings.Contains(err.Error(), "20000 targets") {
		t.Errorf("error should name the target count: %v", err)
	}

	in = baseInput()
	in.Config.Iterations = 1001
	if _, err := sim.Run(context.Background(), in, sim.Options{MaxCells: 3000}); !errors.Is(err, gacha.ErrConfig) {
		t.Fatalf("want ErrConfig over a configured cell cap, got %v", err)
	}

	in.Config.Iterations = 1000
	if _, err := sim.Run(context.Background(), in, sim.Options{MaxCells: 3000}); err != nil {
		t.Fatalf("run at the cell cap: %v", err)
	}
}

func TestHugeIncomeSaturates(t *testing.T) {
	in := &sim.Input{
		Targets:      []sim.Target{{CharacterKey: "Mavuika", ExpectedStartDate: "2025-01-11", Priority: 1}},
		IncomePerDay: 1e19,
		AsOf:         "2025-01-01",
		Config:       sim.Config{Iterations: 200, Seed: seedp(3)},
	}
	res, err := sim.Run(context.Background(), in, sim.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if p := res.PerCharacter[0].Probability; p != 1 {
		t.Fatalf("probability %v with unbounded income", p)
	}
	if pp := res.PullTimeline[0].ProjectedPulls; pp != math.MaxInt32 {
		t.Fatalf("projected pulls %d", pp)
	}
}

func TestHugeStartingPullsSaturates(t *testing.T) {
	in := &sim.Input{
		Targets: []sim.Target{
			{CharacterKey: "Mavuika", ExpectedStartDate: "2025-01-11", Priority: 1},
			{CharacterKey: "Citlali", ExpectedStartDate: "2025-02-01", Priority: 1},
		},
		StartingPulls: math.MaxInt - 5,
		IncomePerDay:  1,
		AsOf:          "2025-01-01",
		Config:        sim.Config{Iterations: 200, Seed: seedp(3)},
	}
	res, err := sim.Run(context.Background(), in, sim.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if res.AllMustHavesProbability != 1 {
		t.Fatalf("allMustHavesProbability %v", res.AllMustHavesProbability)
	}
	for _, tp := range res.PullTimeline {
		if tp.ProjectedPulls < 0 {
			t.Fatalf("negative projection %+v", tp)
		}
	}
}

func TestZeroTrialPartialKeepsVacuousSuccess(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	in := baseInput()
	for i := range in.Targets {
		in.Targets[i].Priority = 2
	}
	res, err := sim.Run(ctx, in, sim.Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if res.CompletedIterations != 0 || res.AllMustHavesProbability != 1 {
		t.Fatalf("completed=%d allMust=%v", res.CompletedIterations, res.AllMustHavesProbability)
	}

	res, _ = sim.Run(ctx, &sim.Input{Config: sim.Config{Iterations: 10}}, sim.Options{})
	if res.AllMustHavesProbability != 1 {
		t.Fatalf("empty targets allMust=%v", res.AllMustHavesProbability)
	}
}
