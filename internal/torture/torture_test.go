package torture

import (
	"bytes"
	"context"
	"log"
	"testing"

	"github.com/funvibe/funcell/internal/config"
	"github.com/funvibe/funcell/internal/core"
	"github.com/funvibe/funcell/internal/runtime"
)

func newRuntime(t *testing.T, tweak func(*config.Tuning)) *runtime.Runtime {
	t.Helper()
	cfg := config.Default()
	cfg.Verify = true
	cfg.Ballast = 16 << 10
	if tweak != nil {
		tweak(&cfg)
	}
	r, err := runtime.New(cfg, runtime.WithLogger(log.New(&bytes.Buffer{}, "", 0)))
	if err != nil {
		t.Fatalf("runtime.New: %v", err)
	}
	return r
}

func TestRunIsBalanced(t *testing.T) {
	for _, seed := range []int64{1, 2, 3, 42} {
		r := newRuntime(t, nil)
		base := r.Data().Index()
		depth := r.Frames().Depth()

		var seen int
		rep, err := Run(context.Background(), r, Options{
			Iterations: 3000,
			Seed:       seed,
			OnCycle:    func(core.Stats) { seen++ },
		})
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		if rep.Iterations != 3000 {
			t.Errorf("seed %d: iterations = %d", seed, rep.Iterations)
		}
		if r.Data().Index() != base || r.Frames().Depth() != depth {
			t.Errorf("seed %d: stack %d frames %d after run, want %d and %d",
				seed, r.Data().Index(), r.Frames().Depth(), base, depth)
		}
		if seen == 0 || seen > rep.Cycles {
			t.Errorf("seed %d: cycles = %d, OnCycle saw %d", seed, rep.Cycles, seen)
		}
		if rep.Rescued == 0 {
			t.Errorf("seed %d: no failure was rescued", seed)
		}
		total := 0
		for _, n := range rep.Ops {
			total += n
		}
		if total != rep.Iterations {
			t.Errorf("seed %d: ops add up to %d", seed, total)
		}
		if left := r.Shutdown(); left == 0 {
			t.Errorf("seed %d: shutdown released nothing", seed)
		}
	}
}

func TestRunIsDeterministic(t *testing.T) {
	run := func() *Report {
		r := newRuntime(t, nil)
		rep, err := Run(context.Background(), r, Options{Iterations: 1000, Seed: 7})
		if err != nil {
			t.Fatal(err)
		}
		return rep
	}
	a, b := run(), run()
	if a.Rescued != b.Rescued || a.MaxQuoteDepth != b.MaxQuoteDepth || a.Stats.Allocations != b.Stats.Allocations {
		t.Errorf("same seed diverged: %+v vs %+v", a.Stats, b.Stats)
	}
	for name, n := range a.Ops {
		if b.Ops[name] != n {
			t.Errorf("op %s ran %d then %d times", name, n, b.Ops[name])
		}
	}
}

func TestRunEscalatesQuotes(t *testing.T) {
	r := newRuntime(t, func(c *config.Tuning) { c.InlineQuoteMax = 1 })
	rep, err := Run(context.Background(), r, Options{Iterations: 2000, Seed: 5})
	if err != nil {
		t.Fatal(err)
	}
	if rep.MaxQuoteDepth <= 1 {
		t.Errorf("max quote depth %d never escalated", rep.MaxQuoteDepth)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	r := newRuntime(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep, err := Run(ctx, r, Options{Iterations: 100})
	if err == nil {
		t.Fatal("expected the context error")
	}
	if rep.Iterations != 0 {
		t.Errorf("ran %d iterations after cancel", rep.Iterations)
	}
}
