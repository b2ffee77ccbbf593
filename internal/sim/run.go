package sim

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/xtding233/wishsim/internal/gacha"
)

// Options tune how a run executes; none of them change the result of a
// seeded run.
type Options struct {
	// Workers is the number of shards run in parallel; 0 means GOMAXPROCS.
	Workers int
	// Progress receives the completed fraction, non-decreasing, after each
	// chunk. It is called from worker goroutines and must not block.
	Progress func(float64)
	// Table supplies the banner rules; nil means gacha.DefaultTable.
	Table gacha.Table
	// Now is the clock used when Input.AsOf is empty.
	Now func() time.Time
	// MaxIterations rejects larger runs before anything is allocated;
	// 0 means DefaultMaxIterations.
	MaxIterations int
	// MaxCells caps len(Input.Targets) × Config.Iterations, which sizes the
	// record buffers; 0 means DefaultMaxCells.
	MaxCells int
}

func (o Options) limits() limits {
	lim := limits{iterations: DefaultMaxIterations, cells: DefaultMaxCells}
	if o.MaxIterations > 0 {
		lim.iterations = o.MaxIterations
	}
	if o.MaxCells > 0 {
		lim.cells = o.MaxCells
	}
	return lim
}

// records holds per-target outcomes indexed by trial. Shards write disjoint
// trial ranges so no locking is needed.
type records struct {
	copies [][]uint8
	pulls  [][]int32
}

func newRecords(targets, iterations int) *records {
	r := &records{copies: make([][]uint8, targets), pulls: make([][]int32, targets)}
	for i := range targets {
		r.copies[i] = make([]uint8, iterations)
		r.pulls[i] = make([]int32, iterations)
	}
	return r
}

// shard owns trials [lo, hi); done advances chunk by chunk.
type shard struct {
	lo, hi, done int
	allMust      int
	nothing      int
}

func split(iterations, workers int) []shard {
	out := make([]shard, 0, workers)
	size, rest := iterations/workers, iterations%workers
	lo := 0
	for i := range workers {
		n := size
		if i < rest {
			n++
		}
		out = append(out, shard{lo: lo, hi: lo + n, done: lo})
		lo += n
	}
	return out
}

type progress struct {
	mu    sync.Mutex
	total int
	done  int
	last  float64
	fn    func(float64)
}

func (p *progress) add(n int) {
	if p.fn == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done += n
	f := min(1, float64(p.done)/float64(p.total))
	if f > p.last {
		p.last = f
		p.fn(f)
	}
}

// Run validates in and runs every trial. Invalid rules or settings return a
// *gacha.ConfigError, malformed targets an *InputError, and a panic inside
// the trial loop an error wrapping ErrTrialPanic; none of these carry a
// result.
//
// ctx is checked between chunks. When it ends early Run returns the
// aggregate of the completed trials (Partial set) together with ctx.Err().
func Run(ctx context.Context, in *Input, opts Options) (*Result, error) {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	p, err := prepare(in, opts.Table, now(), opts.limits())
	if err != nil {
		return nil, err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	workers = min(workers, p.iterations)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	rec := newRecords(len(p.targets), p.iterations)
	shards := split(p.iterations, workers)
	prog := &progress{total: p.iterations, fn: opts.Progress}
	errs := make([]error, len(shards))

	var wg sync.WaitGroup
	for i := range shards {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.runShard(runCtx, &shards[i], rec, prog); err != nil {
				errs[i] = err
				cancel()
			}
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	res := p.result(rec, shards)
	if res.Partial {
		return res, ctx.Err()
	}
	return res, nil
}

func (p *plan) runShard(ctx context.Context, sh *shard, rec *records, prog *progress) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTrialPanic, r)
		}
	}()

	src := gacha.NewTrialSource()
	for sh.done < sh.hi {
		if ctx.Err() != nil {
			return nil
		}
		end := min(sh.done+p.chunk, sh.hi)
		allMust, nothing := 0, 0
		for i := sh.done; i < end; i++ {
			src.Reset(p.base, i)
			must, none := p.trial(i, src, rec)
			if must {
				allMust++
			}
			if none {
				nothing++
			}
		}
		sh.allMust += allMust
		sh.nothing += nothing
		prog.add(end - sh.done)
		sh.done = end
	}
	return nil
}

// trial plays every target once and records copies and pulls used for trial i.
// It reports whether every must-have succeeded and whether nothing was won.
func (p *plan) trial(i int, rng gacha.RandomSource, rec *records) (allMust, nothing bool) {
	states := p.start
	avail := p.startingPulls
	allMust, nothing = true, true

	for ti := range p.targets {
		t := &p.targets[ti]
		avail = min(avail+t.earned, maxPulls)
		st := &states[t.slot]
		t.override.apply(st)

		budget := avail
		if t.cap >= 0 && t.cap < budget {
			budget = t.cap
		}
		used, copies := 0, 0
		for used < budget && copies < t.copies {
			out := gacha.Pull(*st, t.rules, rng)
			*st = out.Next
			used++
			if out.WasFeatured {
				copies++
			}
		}
		avail -= used

		rec.copies[ti][i] = uint8(copies)
		rec.pulls[ti][i] = int32(used)
		if copies > 0 {
			nothing = false
		}
		if t.mustHave && copies < t.copies {
			allMust = false
		}
	}
	return allMust, nothing
}
