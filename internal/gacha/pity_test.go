package gacha_test

import (
	"testing"

	"github.com/xtding233/wishsim/internal/gacha"
)

func TestHardPityForced(t *testing.T) {
	rules := gacha.DefaultTable()[gacha.BannerCharacter]
	// largest possible uniform value still hits at pity 89
	out := gacha.Pull(gacha.State{Pity: 89}, rules, seq(0.9999999999, 0.1))
	if !out.Got5Star {
		t.Fatal("pull 90 must be a 5-star")
	}
	if out.Next.Pity != 0 {
		t.Fatalf("pity should reset, got %d", out.Next.Pity)
	}
}

func TestPityResetInvariant(t *testing.T) {
	table := gacha.DefaultTable()
	for _, b := range gacha.BannerTypes {
		rules := table[b]
		rng := gacha.NewSeededRNG(7)
		s := gacha.State{}
		for i := 0; i < 20000; i++ {
			out := gacha.Pull(s, rules, rng)
			if out.Got5Star && out.Next.Pity != 0 {
				t.Fatalf("%s: 5-star left pity %d", b, out.Next.Pity)
			}
			if !out.Got5Star && out.Next.Pity != s.Pity+1 {
				t.Fatalf("%s: miss moved pity %d -> %d", b, s.Pity, out.Next.Pity)
			}
			if out.Next.Pity >= rules.Curve().HardPity {
				t.Fatalf("%s: pity %d passed hard pity", b, out.Next.Pity)
			}
			s = out.Next
		}
	}
}

func TestGuaranteeAlwaysFeatured(t *testing.T) {
	for _, b := range []gacha.BannerType{gacha.BannerCharacter, gacha.BannerChronicled} {
		rules := gacha.DefaultTable()[b]
		for _, v := range []float64{0, 0.49, 0.5, 0.99} {
			rng := seq(0, v)
			out := gacha.Pull(gacha.State{Guaranteed: true, RadiantStreak: 2}, rules, rng)
			if !out.Got5Star || !out.WasFeatured {
				t.Fatalf("%s: guaranteed 5-star not featured (v=%v)", b, v)
			}
			if out.Next.Guaranteed {
				t.Fatalf("%s: guarantee should be consumed", b)
			}
			if out.Next.RadiantStreak != 2 {
				t.Fatalf("%s: guaranteed win changed streak to %d", b, out.Next.RadiantStreak)
			}
			if rng.used != 1 {
				t.Fatalf("%s: guaranteed pull consumed %d values", b, rng.used)
			}
		}
	}
}

func TestMissKeepsState(t *testing.T) {
	rules := gacha.DefaultTable()[gacha.BannerCharacter]
	in := gacha.State{Pity: 10, Guaranteed: true, RadiantStreak: 1}
	out := gacha.Pull(in, rules, seq(0.5))
	if out.Got5Star || out.WasFeatured {
		t.Fatalf("0.5 must miss at base rate: %+v", out)
	}
	want := in
	want.Pity = 11
	if out.Next != want {
		t.Fatalf("got %+v want %+v", out.Next, want)
	}
}

func TestLoseArmsGuarantee(t *testing.T) {
	rules := gacha.DefaultTable()[gacha.BannerCharacter]
	out := gacha.Pull(gacha.State{Pity: 89, RadiantStreak: 2}, rules, seq(0.1, 0.7))
	if !out.Got5Star || out.WasFeatured {
		t.Fatalf("expected lost 50/50: %+v", out)
	}
	if !out.Next.Guaranteed || out.Next.RadiantStreak != 2 {
		t.Fatalf("loss should arm guarantee and keep streak: %+v", out.Next)
	}
}

func TestCapturingRadiance(t *testing.T) {
	rules := gacha.DefaultTable()[gacha.BannerCharacter] // threshold 3
	s := gacha.State{}
	// three plain wins build the streak
	for i := 1; i <= 3; i++ {
		out := gacha.Pull(gacha.State{Pity: 89, RadiantStreak: s.RadiantStreak}, rules, seq(0, 0.2))
		if !out.WasFeatured || out.TriggeredRadiance {
			t.Fatalf("win %d: %+v", i, out)
		}
		if out.Next.RadiantStreak != i {
			t.Fatalf("win %d: streak %d", i, out.Next.RadiantStreak)
		}
		s = out.Next
	}
	// the next win fires radiance and resets the streak
	out := gacha.Pull(s, rules, seq(0.001, 0.2))
	if !out.WasFeatured || !out.TriggeredRadiance || out.Next.RadiantStreak != 0 {
		t.Fatalf("expected radiance: %+v", out)
	}
}

func TestRadianceOffKeepsStreak(t *testing.T) {
	rules := gacha.MustCompile(gacha.BannerCharacter, gacha.BannerRules{
		SoftPityStart: 73, HardPity: 90, BaseRate: 0.006, SoftPityRateIncrease: 0.06,
	})
	out := gacha.Pull(gacha.State{Pity: 89, RadiantStreak: 5}, rules, seq(0, 0.1))
	if out.TriggeredRadiance || out.Next.RadiantStreak != 5 {
		t.Fatalf("radiance disabled but streak moved: %+v", out)
	}
}

func TestWeaponFatePoints(t *testing.T) {
	rules := gacha.DefaultTable()[gacha.BannerWeapon] // max 2

	out := gacha.Pull(gacha.State{Pity: 76}, rules, seq(0.5, 0.9))
	if !out.Got5Star || out.WasFeatured || out.Next.FatePoints != 1 {
		t.Fatalf("first off-path: %+v", out)
	}
	out = gacha.Pull(out.Next, rules, seq(0.001, 0.9))
	if out.WasFeatured || out.Next.FatePoints != 2 {
		t.Fatalf("second off-path: %+v", out)
	}

	// full counter is checked before the 50/50 and consumes no extra value
	rng := seq(0.001, 0.9)
	out = gacha.Pull(out.Next, rules, rng)
	if !out.WasFeatured || out.Next.FatePoints != 0 || rng.used != 1 {
		t.Fatalf("full fate points: %+v used=%d", out, rng.used)
	}

	// a won 50/50 empties the counter too
	out = gacha.Pull(gacha.State{Pity: 76, FatePoints: 1}, rules, seq(0, 0.1))
	if !out.WasFeatured || out.Next.FatePoints != 0 {
		t.Fatalf("won 50/50: %+v", out)
	}
}

func TestWeaponIgnoresCharacterFlags(t *testing.T) {
	rules := gacha.DefaultTable()[gacha.BannerWeapon]
	out := gacha.Pull(gacha.State{Pity: 76, Guaranteed: true, RadiantStreak: 9}, rules, seq(0, 0.9))
	if out.WasFeatured {
		t.Fatal("weapon banner must not honour the character guarantee flag")
	}
	if !out.Next.Guaranteed || out.Next.RadiantStreak != 9 {
		t.Fatalf("foreign fields should be preserved: %+v", out.Next)
	}
}

func TestStandardEveryFiveStarCounts(t *testing.T) {
	rules := gacha.DefaultTable()[gacha.BannerStandard]
	rng := seq(0, 0.99)
	out := gacha.Pull(gacha.State{}, rules, rng)
	if !out.Got5Star || !out.WasFeatured || rng.used != 1 {
		t.Fatalf("standard 5-star: %+v used=%d", out, rng.used)
	}
}

func TestPullDeterministic(t *testing.T) {
	rules := gacha.DefaultTable()[gacha.BannerCharacter]
	run := func() []gacha.Outcome {
		rng := gacha.NewSeededRNG(2024)
		s := gacha.State{Pity: 40, RadiantStreak: 1}
		var outs []gacha.Outcome
		for i := 0; i < 500; i++ {
			o := gacha.Pull(s, rules, rng)
			outs = append(outs, o)
			s = o.Next
		}
		return outs
	}
	a, b := run(), run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("pull %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}
