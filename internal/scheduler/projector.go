package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/xtding233/wishsim/internal/host"
	"github.com/xtding233/wishsim/internal/ledger"
	"github.com/xtding233/wishsim/internal/sim"
	"github.com/xtding233/wishsim/internal/store"
	"github.com/xtding233/wishsim/internal/token"
)

// ScenarioStore is the part of the store a Projector reads.
type ScenarioStore interface {
	Scenarios(ctx context.Context) ([]store.Scenario, error)
	Scenario(ctx context.Context, id string) (*store.Scenario, error)
	Records(ctx context.Context) (ledger.Records, error)
}

type Submitter interface {
	Submit(ctx context.Context, session string, in *sim.Input, opts host.Options) (*host.Job, error)
}

// Projector runs saved scenarios, refreshing ledger-backed budgets first.
type Projector struct {
	Store ScenarioStore
	Host  Submitter
	// Rates returns the current currency rates; nil means token.DefaultRates.
	Rates func() token.Rates
	// IncomeWindowDays is the trailing window of the income estimate.
	IncomeWindowDays int
	Now              func() time.Time
	Logger           *slog.Logger
}

func (p *Projector) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Projector) log() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

// Prepare returns the input a run of sc should use. A ledger-backed scenario
// takes today's balance, income estimate and date. The stored scenario is
// not modified.
func (p *Projector) Prepare(ctx context.Context, sc *store.Scenario) (*sim.Input, error) {
	in := sc.Input
	in.Targets = slices.Clone(sc.Input.Targets)
	in.PerTargetStates = slices.Clone(sc.Input.PerTargetStates)
	if !sc.UseLedger {
		return &in, nil
	}

	recs, err := p.Store.Records(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	rates := token.DefaultRates()
	if p.Rates != nil {
		rates = p.Rates()
	}
	window := p.IncomeWindowDays
	if window <= 0 {
		window = 30
	}
	now := p.now()
	b := ledger.Summarize(recs, window, rates, now)
	in.StartingPulls = b.StartingPulls
	in.IncomePerDay = b.IncomePerDay
	// the balance is today's, so income accrues from today
	in.AsOf = now.UTC().Format("2006-01-02")
	return &in, nil
}

// Run submits one scenario under its own session, superseding a run of the
// same scenario that is still in flight.
func (p *Projector) Run(ctx context.Context, id string) (*host.Job, error) {
	sc, err := p.Store.Scenario(ctx, id)
	if err != nil {
		return nil, err
	}
	return p.submit(ctx, sc)
}

func (p *Projector) submit(ctx context.Context, sc *store.Scenario) (*host.Job, error) {
	in, err := p.Prepare(ctx, sc)
	if err != nil {
		return nil, err
	}
	return p.Host.Submit(ctx, store.ScenarioSession(sc.ID), in, host.Options{})
}

// RunAll submits every saved scenario. Failures are logged and skipped.
func (p *Projector) RunAll(ctx context.Context) ([]*host.Job, error) {
	scs, err := p.Store.Scenarios(ctx)
	if err != nil {
		return nil, err
	}
	jobs := make([]*host.Job, 0, len(scs))
	for i := range scs {
		j, err := p.submit(ctx, &scs[i])
		if err != nil {
			p.log().Warn("scenario projection failed", "scenario", scs[i].ID, "err", err)
			continue
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}
