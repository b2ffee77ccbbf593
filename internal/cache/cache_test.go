package cache

import (
	"context"
	"testing"
	"time"

	"github.com/xtding233/wishsim/internal/gacha"
	"github.com/xtding233/wishsim/internal/sim"
)

func TestLRUCache(t *testing.T) {
	cache := NewLRUCache(100)
	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		if err := cache.Set(ctx, "key1", []byte("value1"), time.Minute); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		val, err := cache.Get(ctx, "key1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(val) != "value1" {
			t.Errorf("expected 'value1', got '%s'", string(val))
		}
	})

	t.Run("GetMiss", func(t *testing.T) {
		val, err := cache.Get(ctx, "nonexistent")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if val != nil {
			t.Errorf("expected nil for cache miss, got: %v", val)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		_ = cache.Set(ctx, "key2", []byte("value2"), time.Minute)
		if err := cache.Delete(ctx, "key2"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if val, _ := cache.Get(ctx, "key2"); val != nil {
			t.Error("expected nil after delete")
		}
	})

	t.Run("TTLExpiration", func(t *testing.T) {
		c := NewLRUCache(10)
		now := time.Unix(1000, 0)
		c.now = func() time.Time { return now }
		_ = c.Set(ctx, "expiring", []byte("temp"), 10*time.Second)

		if val, _ := c.Get(ctx, "expiring"); val == nil {
			t.Error("expected value before expiration")
		}
		now = now.Add(11 * time.Second)
		if val, _ := c.Get(ctx, "expiring"); val != nil {
			t.Error("expected nil after expiration")
		}
		if size, _ := c.Stats(); size != 0 {
			t.Errorf("expired entry not removed, size %d", size)
		}
	})

	t.Run("LRUEviction", func(t *testing.T) {
		small := NewLRUCache(3)
		_ = small.Set(ctx, "a", []byte("1"), time.Minute)
		_ = small.Set(ctx, "b", []byte("2"), time.Minute)
		_ = small.Set(ctx, "c", []byte("3"), time.Minute)
		_, _ = small.Get(ctx, "a") // a is now most recent
		_ = small.Set(ctx, "d", []byte("4"), time.Minute)

		if val, _ := small.Get(ctx, "b"); val != nil {
			t.Error("expected b to be evicted")
		}
		if val, _ := small.Get(ctx, "a"); val == nil {
			t.Error("expected a to survive")
		}
		if size, capacity := small.Stats(); size != 3 || capacity != 3 {
			t.Errorf("stats %d/%d", size, capacity)
		}
	})
}

func TestNew(t *testing.T) {
	if c, err := New(Config{Type: "none"}); c != nil || err != nil {
		t.Fatalf("none: %v %v", c, err)
	}
	if c, err := New(Config{Type: "memory"}); err != nil {
		t.Fatal(err)
	} else if _, ok := c.(*LRUCache); !ok {
		t.Fatalf("memory: got %T", c)
	}
	if _, err := New(Config{Type: "memcached"}); err == nil {
		t.Fatal("expected error for unsupported type")
	}
}

func seeded(seed int64) *sim.Input {
	return &sim.Input{
		Targets:       []sim.Target{{CharacterKey: "Furina", ExpectedStartDate: "2025-04-01", Priority: 1}},
		StartingPulls: 90,
		AsOf:          "2025-03-01",
		Config:        sim.Config{Iterations: 200, Seed: &seed},
	}
}

func TestKey(t *testing.T) {
	table := gacha.DefaultTable()

	k1, ok := Key(seeded(1), table)
	if !ok {
		t.Fatal("seeded input with asOf should be cacheable")
	}
	k2, _ := Key(seeded(1), table)
	if k1 != k2 {
		t.Fatal("key not stable")
	}
	if k3, _ := Key(seeded(2), table); k3 == k1 {
		t.Fatal("seed not part of key")
	}

	raw := gacha.DefaultRules()
	br := raw[gacha.BannerCharacter]
	br.HardPity = 80
	raw[gacha.BannerCharacter] = br
	other, err := gacha.CompileTable(raw)
	if err != nil {
		t.Fatal(err)
	}
	if k4, _ := Key(seeded(1), other); k4 == k1 {
		t.Fatal("rules not part of key")
	}

	in := seeded(1)
	in.Config.Seed = nil
	if _, ok := Key(in, table); ok {
		t.Fatal("unseeded input must not be cached")
	}
	in = seeded(1)
	in.AsOf = ""
	if _, ok := Key(in, table); ok {
		t.Fatal("input without asOf must not be cached")
	}
}

func TestResultsRoundTrip(t *testing.T) {
	ctx := context.Background()
	in := seeded(5)
	res, err := sim.Run(ctx, in, sim.Options{Workers: 2})
	if err != nil {
		t.Fatal(err)
	}

	rc := NewResults(NewLRUCache(8), time.Hour)
	key, _ := Key(in, gacha.DefaultTable())
	if _, ok := rc.Get(ctx, key); ok {
		t.Fatal("unexpected hit")
	}
	rc.Put(ctx, key, res)
	got, ok := rc.Get(ctx, key)
	if !ok {
		t.Fatal("expected hit")
	}
	if got.Seed != res.Seed || got.PerCharacter[0].Probability != res.PerCharacter[0].Probability {
		t.Fatalf("cached result differs: %+v", got)
	}

	partial := *res
	partial.Partial = true
	rc.Put(ctx, "partial", &partial)
	if _, ok := rc.Get(ctx, "partial"); ok {
		t.Fatal("partial results must not be cached")
	}

	var none *Results
	none.Put(ctx, key, res)
	if _, ok := none.Get(ctx, key); ok {
		t.Fatal("nil Results must never hit")
	}
}
