// Package scheduler re-projects saved scenarios on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// DefaultSpec runs daily at 04:00, after the in-game daily reset.
const DefaultSpec = "0 0 4 * * *"

// Scheduler manages the cron task.
type Scheduler struct {
	Cron      *cron.Cron
	Projector *Projector
	// OnRun is called after every scheduled pass with the number of jobs submitted.
	OnRun func(submitted int)
	Ctx   context.Context
	log   *slog.Logger
}

func New(ctx context.Context, p *Projector, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds()),
		Projector: p,
		Ctx:       ctx,
		log:       logger,
	}
}

// Register adds the projection task; an empty spec uses DefaultSpec.
func (s *Scheduler) Register(spec string) error {
	if spec == "" {
		spec = DefaultSpec
	}
	if _, err := s.Cron.AddFunc(spec, s.project); err != nil {
		return fmt.Errorf("register projection task: %w", err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info("scheduler started", "entries", len(s.Cron.Entries()))
}

// Stop stops the cron scheduler and waits for a running pass.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) project() { s.RunNow() }

// RunNow executes the projection immediately and returns how many scenarios
// were submitted.
func (s *Scheduler) RunNow() int {
	s.log.Info("running scenario projection")
	jobs, err := s.Projector.RunAll(s.Ctx)
	if err != nil {
		s.log.Error("scenario projection", "err", err)
	}
	if s.OnRun != nil {
		s.OnRun(len(jobs))
	}
	return len(jobs)
}
