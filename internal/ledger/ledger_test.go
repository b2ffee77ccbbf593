package ledger

import (
	"testing"
	"time"

	"github.com/xtding233/wishsim/internal/gacha"
	"github.com/xtding233/wishsim/internal/token"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func day(n int) time.Time { return t0.AddDate(0, 0, n) }

func wish(ts time.Time, b gacha.BannerType) gacha.Wish {
	return gacha.Wish{ID: ts.String(), Banner: b, Timestamp: ts, Rarity: 3}
}

func TestAvailableWithoutSnapshot(t *testing.T) {
	r := Records{
		Primogems: []PrimogemEntry{{Timestamp: day(1), Amount: 1600, Source: SourceEvent}},
		Fates:     []FateEntry{{Timestamp: day(1), FateType: FateIntertwined, Amount: 2}},
		Wishes:    []gacha.Wish{wish(day(2), gacha.BannerCharacter)},
	}
	got := AvailablePulls(r, token.DefaultRates(), day(5))
	// wishes are not subtracted without a snapshot
	if got.Pulls != 12 || got.Resources.Primogems != 1600 {
		t.Fatalf("got %+v", got)
	}
}

func TestAvailableFromSnapshot(t *testing.T) {
	snap := &Snapshot{Timestamp: day(0), Wallet: token.Wallet{
		Primogems: 3200, GenesisCrystals: 160, Intertwined: 1, Acquaint: 2, Starglitter: 12,
	}}
	r := Records{
		Snapshot: snap,
		Primogems: []PrimogemEntry{
			{Timestamp: day(-1), Amount: 99999, Source: SourceEvent}, // before snapshot
			{Timestamp: day(1), Amount: 320, Source: SourceEvent},
			{Timestamp: day(9), Amount: 99999, Source: SourceEvent}, // after now
		},
		Fates: []FateEntry{{Timestamp: day(2), FateType: FateAcquaint, Amount: 1}},
		Wishes: []gacha.Wish{
			wish(day(0), gacha.BannerCharacter), // at the snapshot instant, already counted
			wish(day(3), gacha.BannerCharacter),
			wish(day(3).Add(time.Minute), gacha.BannerWeapon),
			wish(day(4), gacha.BannerStandard),
		},
	}
	got := AvailablePulls(r, token.DefaultRates(), day(5))
	// intertwined: 1 - 2 => one bought with 160 primogems
	want := token.Wallet{Primogems: 3200 + 320 - 160, GenesisCrystals: 160, Intertwined: 0, Acquaint: 2, Starglitter: 12}
	if got.Resources != want {
		t.Fatalf("resources %+v, want %+v", got.Resources, want)
	}
	// (3360+160)/160 + 0 + 2 + 12/5
	if got.Pulls != 22+2+2 {
		t.Fatalf("pulls %d", got.Pulls)
	}
}

func TestAvailableClampsAtZero(t *testing.T) {
	r := Records{
		Snapshot: &Snapshot{Timestamp: day(0)},
		Wishes:   []gacha.Wish{wish(day(1), gacha.BannerCharacter), wish(day(2), gacha.BannerCharacter)},
	}
	got := AvailablePulls(r, token.DefaultRates(), day(3))
	if got.Pulls != 0 || got.Resources != (token.Wallet{}) {
		t.Fatalf("got %+v", got)
	}
}

func TestWishSpending(t *testing.T) {
	ws := []gacha.Wish{wish(day(1), gacha.BannerCharacter), wish(day(2), gacha.BannerStandard), wish(day(3), gacha.BannerChronicled)}
	sp := WishSpending(ws, time.Time{}, token.Primogem)
	if sp.TotalPulls != 3 || sp.PrimogemEquivalent != 480 || sp.ByFate[FateIntertwined] != 2 || sp.ByFate[FateAcquaint] != 1 {
		t.Fatalf("got %+v", sp)
	}
	if sp := WishSpending(ws, day(2), token.Primogem); sp.TotalPulls != 1 {
		t.Fatalf("since filter: %+v", sp)
	}
}

func TestIncome(t *testing.T) {
	now := day(30)
	primos := []PrimogemEntry{
		{Timestamp: day(1), Amount: 9999, Source: SourceEvent}, // outside the 10 day window
		{Timestamp: day(21), Amount: 900, Source: SourceDailyCommission},
		{Timestamp: day(25), Amount: 700, Source: SourceWelkin},
		{Timestamp: day(26), Amount: 6480, Source: SourcePurchase},
		{Timestamp: day(27), Amount: -300, Source: SourceCosmetic},
	}
	fates := []FateEntry{{Timestamp: day(28), FateType: FateIntertwined, Amount: 5}}

	est := Income(primos, fates, 10, false, token.DefaultRates(), now)
	if est.PrimogemsPerDay != 160 || est.FatesPerDay != 0.5 || est.PullsPerDay != 1.5 {
		t.Fatalf("got %+v", est)
	}
	withBuys := Income(primos, fates, 10, true, token.DefaultRates(), now)
	if withBuys.PrimogemsPerDay != 808 {
		t.Fatalf("got %+v", withBuys)
	}
	if zero := Income(primos, fates, 0, false, token.DefaultRates(), now); zero.PullsPerDay != 0 {
		t.Fatalf("got %+v", zero)
	}
}

func TestBucketsByWeek(t *testing.T) {
	// 2025-03-01 is a Saturday, 2025-03-03 a Monday
	entries := []PrimogemEntry{
		{Timestamp: day(0), Amount: 100, Source: SourceEvent},
		{Timestamp: day(1), Amount: -50, Source: SourceCosmetic},
		{Timestamp: day(2), Amount: 60, Source: SourceWelkin},
		{Timestamp: day(3), Amount: 300, Source: SourcePurchase},
	}
	bs := Buckets(entries, BucketFilter{Interval: Week, IncludePurchases: true})
	if len(bs) != 2 {
		t.Fatalf("want 2 buckets, got %d", len(bs))
	}
	if bs[0].Label != "2025-02-24" || bs[1].Label != "2025-03-03" {
		t.Fatalf("labels %s %s", bs[0].Label, bs[1].Label)
	}
	if tot := bs[0].Totals; tot.Total != 50 || tot.Earned != 100 || tot.Spent != -50 {
		t.Fatalf("first bucket %+v", tot)
	}
	if tot := bs[1].Totals; tot.Purchased != 300 || tot.Earned != 60 || tot.Sources[SourceWelkin] != 60 {
		t.Fatalf("second bucket %+v", tot)
	}

	noBuys := Buckets(entries, BucketFilter{Interval: Week})
	if noBuys[1].Totals.Purchased != 0 {
		t.Fatalf("purchases not filtered: %+v", noBuys[1].Totals)
	}
	onlyWelkin := Buckets(entries, BucketFilter{Interval: Month, Source: SourceWelkin})
	if len(onlyWelkin) != 1 || onlyWelkin[0].Label != "2025-03" || onlyWelkin[0].Totals.Total != 60 {
		t.Fatalf("got %+v", onlyWelkin)
	}
}

func TestSummarize(t *testing.T) {
	r := Records{Primogems: []PrimogemEntry{{Timestamp: day(-1), Amount: 1600, Source: SourceEvent}}}
	b := Summarize(r, 10, token.DefaultRates(), day(0))
	if b.StartingPulls != 10 || b.IncomePerDay != 1 {
		t.Fatalf("got %+v", b)
	}
}
