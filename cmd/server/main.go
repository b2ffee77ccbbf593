package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/xtding233/wishsim/internal/api"
	"github.com/xtding233/wishsim/internal/cache"
	"github.com/xtding233/wishsim/internal/config"
	"github.com/xtding233/wishsim/internal/game"
	"github.com/xtding233/wishsim/internal/host"
	"github.com/xtding233/wishsim/internal/metrics"
	"github.com/xtding233/wishsim/internal/rpc"
	"github.com/xtding233/wishsim/internal/scheduler"
	"github.com/xtding233/wishsim/internal/store"
)

var Version = "dev"

func main() {
	configPath := flag.String("config", "wishsim.yaml", "path to the YAML config file")
	flag.Parse()

	level := new(slog.LevelVar)
	if os.Getenv("WISHSIM_DEBUG") == "true" {
		level.Set(slog.LevelDebug)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(*configPath, logger, level); err != nil {
		logger.Error("wishsim stopped", "err", err)
		os.Exit(1)
	}
}

func run(configPath string, logger *slog.Logger, level *slog.LevelVar) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Debug {
		level.Set(slog.LevelDebug)
	}
	logger.Info("starting wishsim", "version", Version, "game", cfg.Rules.Game, "http", cfg.HTTP.Addr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader := game.NewLoader(cfg.Rules.Dir)
	rules, err := game.NewRules(loader, cfg.Rules.Game, logger)
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.Database.SQLitePath, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	backend, err := cache.New(cfg.Cache)
	if err != nil {
		return err
	}
	if backend != nil {
		defer backend.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := backend.Ping(pingCtx); err != nil {
			logger.Warn("result cache unreachable, continuing", "type", cfg.Cache.Type, "err", err)
		}
		cancel()
	}
	results := cache.NewResults(backend, cfg.Cache.TTL)

	m := metrics.New()
	h := host.New(host.Config{
		Workers:       cfg.Simulation.Workers,
		Timeout:       cfg.Simulation.Timeout,
		MaxJobs:       cfg.Simulation.MaxJobs,
		MaxIterations: cfg.Simulation.MaxIterations,
		MaxCells:      cfg.Simulation.MaxCells,
		Rules:         rules.Table,
		Recorder:      host.Recorders{st, m},
		Logger:        logger,
	})

	if cfg.Rules.Watch {
		go func() {
			err := rules.Watch(ctx, cfg.Rules.Debounce, func(error) { m.RecordReload() })
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("rules watcher stopped", "err", err)
			}
		}()
	}

	projector := &scheduler.Projector{
		Store:            st,
		Host:             h,
		Rates:            rules.Rates,
		IncomeWindowDays: cfg.Ledger.IncomeWindowDays,
		Logger:           logger,
	}
	var sched *scheduler.Scheduler
	if cfg.Schedule.Enabled {
		sched = scheduler.New(ctx, projector, logger)
		sched.OnRun = func(int) { m.RecordCronRun() }
		if err := sched.Register(cfg.Schedule.ProjectionCron); err != nil {
			return err
		}
		sched.Start()
	}

	srv := api.NewServer(cfg.HTTP, api.Deps{
		Host:             h,
		Store:            st,
		Rules:            rules,
		Resolver:         loader,
		Results:          results,
		Projector:        projector,
		Metrics:          m,
		Catalog:          cfg.Catalog,
		Rates:            projector.Rates,
		IncomeWindowDays: cfg.Ledger.IncomeWindowDays,
		Logger:           logger,
	})

	errCh := make(chan error, 2)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var gs *grpc.Server
	if cfg.GRPC.Addr != "" {
		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			return err
		}
		gs = grpc.NewServer()
		rpc.RegisterSimulatorServer(gs, &rpc.Server{Host: h, Results: results, Rules: rules.Table, Logger: logger})
		go func() {
			if err := gs.Serve(lis); err != nil {
				errCh <- err
			}
		}()
		logger.Info("grpc listening", "addr", cfg.GRPC.Addr)
	}

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	services{sched: sched, httpSrv: srv, grpcSrv: gs, jobs: h}.shutdown(shutdownCtx, logger)
	logger.Info("wishsim stopped")
	return serveErr
}

type services struct {
	sched   *scheduler.Scheduler
	httpSrv *api.Server
	grpcSrv *grpc.Server
	jobs    *host.Host
}

// shutdown stops intake, then cancels running jobs so that handlers blocked
// on a job return, then drains both servers. Everything is bounded by ctx.
func (s services) shutdown(ctx context.Context, logger *slog.Logger) {
	if s.sched != nil {
		s.sched.Stop()
	}
	if err := s.jobs.Shutdown(ctx); err != nil {
		logger.Warn("simulation host shutdown", "err", err)
	}
	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			logger.Warn("http shutdown", "err", err)
		}
	}
	if s.grpcSrv != nil {
		stopGRPC(ctx, s.grpcSrv)
	}
}

// stopGRPC drains in-flight calls and closes whatever is left once ctx ends.
func stopGRPC(ctx context.Context, gs *grpc.Server) {
	done := make(chan struct{})
	go func() {
		gs.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		gs.Stop()
		<-done
	}
}
