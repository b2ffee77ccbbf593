package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/xtding233/wishsim/internal/cache"
	"github.com/xtding233/wishsim/internal/pricing"
	"github.com/xtding233/wishsim/internal/sim"
)

// Config holds all application configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	GRPC       GRPCConfig       `yaml:"grpc"`
	Simulation SimulationConfig `yaml:"simulation"`
	Rules      RulesConfig      `yaml:"rules"`
	Database   struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Cache    cache.Config `yaml:"cache"`
	Schedule struct {
		Enabled        bool   `yaml:"enabled"`
		ProjectionCron string `yaml:"projection_cron"`
	} `yaml:"schedule"`
	Ledger struct {
		IncomeWindowDays int `yaml:"income_window_days"`
	} `yaml:"ledger"`
	// Catalog replaces the built-in pack list when it has packs.
	Catalog pricing.Catalog `yaml:"catalog"`
	Debug   bool            `yaml:"debug"`
}

type HTTPConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// ProgressInterval is the minimum gap between websocket progress frames.
	ProgressInterval time.Duration `yaml:"progress_interval"`
}

// GRPCConfig: an empty Addr disables the gRPC listener.
type GRPCConfig struct {
	Addr string `yaml:"addr"`
}

type SimulationConfig struct {
	Workers int           `yaml:"workers"` // 0 = GOMAXPROCS
	Timeout time.Duration `yaml:"timeout"` // default wall-clock cap, 0 = none
	MaxJobs int           `yaml:"max_jobs"`
	// MaxIterations bounds config.iterations of a single run.
	MaxIterations int `yaml:"max_iterations"`
	// MaxCells bounds targets × iterations of a single run.
	MaxCells int `yaml:"max_cells"`
}

type RulesConfig struct {
	Dir      string        `yaml:"dir"`
	Game     string        `yaml:"game"`
	Watch    bool          `yaml:"watch"`
	Debounce time.Duration `yaml:"debounce"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.Rules.Watch = true

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	strs := map[string]*string{
		"WISHSIM_HTTP_ADDR":      &cfg.HTTP.Addr,
		"WISHSIM_GRPC_ADDR":      &cfg.GRPC.Addr,
		"WISHSIM_RULES_DIR":      &cfg.Rules.Dir,
		"WISHSIM_GAME":           &cfg.Rules.Game,
		"WISHSIM_SQLITE_PATH":    &cfg.Database.SQLitePath,
		"WISHSIM_CACHE_TYPE":     &cfg.Cache.Type,
		"WISHSIM_REDIS_ADDR":     &cfg.Cache.RedisAddr,
		"WISHSIM_REDIS_PASSWORD": &cfg.Cache.RedisPassword,
		"WISHSIM_CRON":           &cfg.Schedule.ProjectionCron,
	}
	for k, dst := range strs {
		if v := os.Getenv(k); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"WISHSIM_WORKERS":            &cfg.Simulation.Workers,
		"WISHSIM_MAX_ITERATIONS":     &cfg.Simulation.MaxIterations,
		"WISHSIM_MAX_CELLS":          &cfg.Simulation.MaxCells,
		"WISHSIM_INCOME_WINDOW_DAYS": &cfg.Ledger.IncomeWindowDays,
	}
	for k, dst := range ints {
		if v := os.Getenv(k); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
			*dst = n
		}
	}

	bools := map[string]*bool{
		"WISHSIM_DEBUG":       &cfg.Debug,
		"WISHSIM_RULES_WATCH": &cfg.Rules.Watch,
		"WISHSIM_SCHEDULE":    &cfg.Schedule.Enabled,
	}
	for k, dst := range bools {
		if v := os.Getenv(k); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
			*dst = b
		}
	}

	if v := os.Getenv("WISHSIM_SIM_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("WISHSIM_SIM_TIMEOUT: %w", err)
		}
		cfg.Simulation.Timeout = d
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 30 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 60 * time.Second
	}
	if cfg.HTTP.ProgressInterval == 0 {
		cfg.HTTP.ProgressInterval = 100 * time.Millisecond
	}
	if cfg.Simulation.MaxJobs == 0 {
		cfg.Simulation.MaxJobs = 256
	}
	if cfg.Simulation.MaxIterations == 0 {
		cfg.Simulation.MaxIterations = sim.DefaultMaxIterations
	}
	if cfg.Simulation.MaxCells == 0 {
		cfg.Simulation.MaxCells = sim.DefaultMaxCells
	}
	if cfg.Rules.Dir == "" {
		cfg.Rules.Dir = "configs"
	}
	if cfg.Rules.Game == "" {
		cfg.Rules.Game = "genshin"
	}
	if cfg.Rules.Debounce == 0 {
		cfg.Rules.Debounce = 200 * time.Millisecond
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/wishsim.db"
	}
	if cfg.Cache.Type == "" {
		cfg.Cache.Type = "memory"
	}
	if cfg.Cache.LocalMaxSize == 0 {
		cfg.Cache.LocalMaxSize = 512
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = time.Hour
	}
	if cfg.Schedule.ProjectionCron == "" {
		cfg.Schedule.ProjectionCron = "0 0 4 * * *"
	}
	if cfg.Ledger.IncomeWindowDays == 0 {
		cfg.Ledger.IncomeWindowDays = 30
	}
	if len(cfg.Catalog.Packs) == 0 {
		cfg.Catalog = pricing.DefaultCatalog()
	}
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Simulation.Workers < 0 {
		errs = append(errs, errors.New("simulation.workers must be >= 0"))
	}
	if c.Simulation.Timeout < 0 {
		errs = append(errs, errors.New("simulation.timeout must be >= 0"))
	}
	if c.Simulation.MaxJobs < 1 {
		errs = append(errs, errors.New("simulation.max_jobs must be positive"))
	}
	if c.Simulation.MaxIterations < 1 {
		errs = append(errs, errors.New("simulation.max_iterations must be positive"))
	}
	if c.Simulation.MaxCells < 1 {
		errs = append(errs, errors.New("simulation.max_cells must be positive"))
	}
	if c.Ledger.IncomeWindowDays < 1 {
		errs = append(errs, errors.New("ledger.income_window_days must be positive"))
	}
	switch c.Cache.Type {
	case "none", "memory":
	case "redis":
		if c.Cache.RedisAddr == "" {
			errs = append(errs, errors.New("cache.redis_addr is required for the redis cache"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.type %q is not one of none, memory, redis", c.Cache.Type))
	}
	if c.Schedule.Enabled {
		if _, err := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow).Parse(c.Schedule.ProjectionCron); err != nil {
			errs = append(errs, fmt.Errorf("schedule.projection_cron: %w", err))
		}
	}
	if err := c.Catalog.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("catalog: %w", err))
	}
	return errors.Join(errs...)
}
