package ledger

import (
	"slices"
	"time"

	"github.com/xtding233/wishsim/internal/token"
)

// IncomeEstimate is the average daily income over a trailing window.
type IncomeEstimate struct {
	WindowDays      int     `json:"windowDays"`
	PrimogemsPerDay float64 `json:"primogemsPerDay"`
	FatesPerDay     float64 `json:"fatesPerDay"`
	PullsPerDay     float64 `json:"pullsPerDay"`
}

// Income averages earned primogems and received fates over the windowDays
// before now. Purchases and spending are left out unless includePurchases,
// which adds purchases only.
func Income(primos []PrimogemEntry, fates []FateEntry, windowDays int, includePurchases bool, rates token.Rates, now time.Time) IncomeEstimate {
	est := IncomeEstimate{WindowDays: windowDays}
	if windowDays <= 0 {
		return est
	}
	from := now.AddDate(0, 0, -windowDays)
	in := func(ts time.Time) bool { return ts.After(from) && !ts.After(now) }

	gems := 0
	for _, e := range primos {
		if !in(e.Timestamp) || e.Source.Spending() || e.Source == SourceWishConversion {
			continue
		}
		if e.Source == SourcePurchase && !includePurchases {
			continue
		}
		gems += e.Amount
	}
	fateCount := 0
	for _, e := range fates {
		if in(e.Timestamp) && e.Amount > 0 {
			fateCount += e.Amount
		}
	}

	days := float64(windowDays)
	est.PrimogemsPerDay = float64(gems) / days
	est.FatesPerDay = float64(fateCount) / days
	if per := rates.Primogem.PerDraw; per > 0 {
		est.PullsPerDay = est.PrimogemsPerDay/float64(per) + est.FatesPerDay
	}
	return est
}

// Interval is a bucket width.
type Interval string

const (
	Week  Interval = "week"
	Month Interval = "month"
)

// BucketFilter selects the entries that go into Buckets. Zero times and an
// empty or "all" Source do not filter.
type BucketFilter struct {
	Interval         Interval
	Start, End       time.Time
	Source           Source
	IncludePurchases bool
}

type BucketTotals struct {
	Total     int            `json:"total"`
	Earned    int            `json:"earned"`
	Purchased int            `json:"purchased"`
	Spent     int            `json:"spent"`
	Sources   map[Source]int `json:"sources"`
}

type Bucket struct {
	Start  time.Time    `json:"bucketStart"`
	Label  string       `json:"label"`
	Totals BucketTotals `json:"totals"`
}

// bucketStart truncates to the Monday of the week or the first of the
// month, in the entry's own location.
func bucketStart(t time.Time, iv Interval) time.Time {
	y, m, d := t.Date()
	if iv == Month {
		return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
	}
	day := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	back := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -back)
}

// Buckets groups primogem entries by week or month, oldest first.
func Buckets(entries []PrimogemEntry, f BucketFilter) []Bucket {
	byStart := map[int64]*Bucket{}
	for _, e := range entries {
		if !f.Start.IsZero() && e.Timestamp.Before(f.Start) {
			continue
		}
		if !f.End.IsZero() && e.Timestamp.After(f.End) {
			continue
		}
		if !f.IncludePurchases && e.Source == SourcePurchase {
			continue
		}
		if f.Source != "" && f.Source != "all" && e.Source != f.Source {
			continue
		}

		start := bucketStart(e.Timestamp, f.Interval)
		b, ok := byStart[start.Unix()]
		if !ok {
			layout := "2006-01-02"
			if f.Interval == Month {
				layout = "2006-01"
			}
			b = &Bucket{Start: start, Label: start.Format(layout), Totals: BucketTotals{Sources: make(map[Source]int, len(Sources))}}
			for _, s := range Sources {
				b.Totals.Sources[s] = 0
			}
			byStart[start.Unix()] = b
		}
		b.Totals.Total += e.Amount
		b.Totals.Sources[e.Source] += e.Amount
		switch {
		case e.Source == SourcePurchase:
			b.Totals.Purchased += e.Amount
		case e.Source.Spending():
			b.Totals.Spent += e.Amount
		default:
			b.Totals.Earned += e.Amount
		}
	}

	out := make([]Bucket, 0, len(byStart))
	for _, b := range byStart {
		out = append(out, *b)
	}
	slices.SortFunc(out, func(a, b Bucket) int { return a.Start.Compare(b.Start) })
	return out
}

// Budget is the pair of simulator inputs the ledger supplies.
type Budget struct {
	StartingPulls int            `json:"startingPulls"`
	IncomePerDay  float64        `json:"incomePerDay"`
	Available     Available      `json:"available"`
	Income        IncomeEstimate `json:"income"`
}

// Summarize computes the budget from r with an income window of windowDays.
func Summarize(r Records, windowDays int, rates token.Rates, now time.Time) Budget {
	avail := AvailablePulls(r, rates, now)
	inc := Income(r.Primogems, r.Fates, windowDays, false, rates, now)
	return Budget{StartingPulls: avail.Pulls, IncomePerDay: inc.PullsPerDay, Available: avail, Income: inc}
}
