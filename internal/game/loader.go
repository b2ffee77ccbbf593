package game

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Paths helper for default/game/banner files.
type Paths struct {
	BaseDir string // base directory, e.g., /opt/wishsim/config
}

func (p Paths) DefaultPath() string {
	return filepath.Join(p.BaseDir, "games", "default.yaml")
}
func (p Paths) GamePath(game string) string {
	return filepath.Join(p.BaseDir, "games", game+".yaml")
}
func (p Paths) BannerPath(game, banner string) string {
	return filepath.Join(p.BaseDir, "games", game, "banners", banner+".yaml")
}

// WatchDirs lists the existing directories holding rule files of game.
func (p Paths) WatchDirs(game string) []string {
	var out []string
	for _, d := range []string{
		filepath.Join(p.BaseDir, "games"),
		filepath.Join(p.BaseDir, "games", game, "banners"),
	} {
		if fi, err := os.Stat(d); err == nil && fi.IsDir() {
			out = append(out, d)
		}
	}
	return out
}

// Loader reads YAML configs and merges default → game → banner.
type Loader struct {
	paths Paths

	mu    sync.RWMutex
	cache map[string]RawConfig // key: "game" or "game/banner"
}

// NewLoader creates a config loader with the given base directory.
func NewLoader(baseDir string) *Loader {
	return &Loader{
		paths: Paths{BaseDir: baseDir},
		cache: make(map[string]RawConfig),
	}
}

func (l *Loader) Paths() Paths { return l.paths }

// LoadMerged loads and merges default → game → banner (banner optional).
// It returns the merged RawConfig without validation.
func (l *Loader) LoadMerged(game, banner string) (RawConfig, error) {
	key := game
	if banner != "" {
		key = game + "/" + banner
	}
	l.mu.RLock()
	if cfg, ok := l.cache[key]; ok {
		l.mu.RUnlock()
		return cfg, nil
	}
	l.mu.RUnlock()

	defCfg, err := readYAML(l.paths.DefaultPath())
	if err != nil {
		return RawConfig{}, fmt.Errorf("read default: %w", err)
	}
	gameCfg, err := readYAML(l.paths.GamePath(game))
	if err != nil {
		return RawConfig{}, fmt.Errorf("read game %s: %w", game, err)
	}
	var bannerCfg RawConfig
	if banner != "" {
		bannerCfg, err = readYAML(l.paths.BannerPath(game, banner))
		if err != nil {
			return RawConfig{}, fmt.Errorf("read banner %s/%s: %w", game, banner, err)
		}
	}

	gameLevel := mergeRaw(defCfg, gameCfg)
	merged := mergeRaw(gameLevel, bannerCfg)

	l.mu.Lock()
	l.cache[game] = gameLevel
	l.cache[key] = merged
	l.mu.Unlock()

	return merged, nil
}

// Invalidate clears loader's cache. Call after hot-reload detects changes.
func (l *Loader) Invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache = make(map[string]RawConfig)
}

// readYAML loads a YAML file into RawConfig. Missing files return zero cfg, no error.
func readYAML(path string) (RawConfig, error) {
	var cfg RawConfig
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return RawConfig{}, nil
		}
		return RawConfig{}, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return RawConfig{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return cfg, nil
}

func pick[T any](a, b *T) *T {
	if b != nil {
		v := *b
		return &v
	}
	return a
}

// mergeRaw performs a deep merge: 'b' overrides 'a' where non-nil/non-empty.
func mergeRaw(a, b RawConfig) RawConfig {
	out := a

	if b.Version != "" {
		out.Version = b.Version
	}
	if b.Notes != "" {
		out.Notes = b.Notes
	}

	out.Pity.SoftStart = pick(a.Pity.SoftStart, b.Pity.SoftStart)
	out.Pity.Hard = pick(a.Pity.Hard, b.Pity.Hard)
	out.Pity.BaseRate = pick(a.Pity.BaseRate, b.Pity.BaseRate)
	out.Pity.RateIncrease = pick(a.Pity.RateIncrease, b.Pity.RateIncrease)

	if b.Radiance != nil {
		r := RadianceConfig{}
		if a.Radiance != nil {
			r = *a.Radiance
		}
		r.Enabled = pick(r.Enabled, b.Radiance.Enabled)
		r.Threshold = pick(r.Threshold, b.Radiance.Threshold)
		out.Radiance = &r
	}
	if b.Fate != nil {
		f := FateConfig{}
		if a.Fate != nil {
			f = *a.Fate
		}
		f.Enabled = pick(f.Enabled, b.Fate.Enabled)
		f.Max = pick(f.Max, b.Fate.Max)
		out.Fate = &f
	}
	if b.Tokens != nil {
		t := TokenConfig{}
		if a.Tokens != nil {
			t = *a.Tokens
		}
		t.PerPull = pick(t.PerPull, b.Tokens.PerPull)
		t.StarglitterPerPull = pick(t.StarglitterPerPull, b.Tokens.StarglitterPerPull)
		out.Tokens = &t
	}
	return out
}
