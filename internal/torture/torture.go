// Package torture drives a runtime through a randomized workload of
// allocations, quoting, binding, stack traffic and collections. With the
// verifier enabled it is the fastest way to shake out graph corruption.
package torture

import (
	"context"
	"math/rand"
	"time"

	"github.com/funvibe/funcell/internal/core"
	"github.com/funvibe/funcell/internal/runtime"
	"github.com/funvibe/funcell/internal/stack"
)

// Options control a run.
type Options struct {
	Iterations int
	Seed       int64

	// OnCycle is called after each iteration in which a collection ran.
	OnCycle func(st core.Stats)
}

// Report summarizes a finished run.
type Report struct {
	Iterations    int
	Cycles        int
	Rescued       int
	Ops           map[string]int
	MaxQuoteDepth int
	Elapsed       time.Duration
	Stats         core.Stats
}

// The workload keeps its live values on the data stack. Once the stack
// passes stackHigh it is cut back to stackLow, which is what makes
// earlier values garbage.
const (
	stackHigh = 256
	stackLow  = 64
)

type op struct {
	name string
	fn   func(w *worker) error
}

var ops = []op{
	{"push", (*worker).push},
	{"pop", (*worker).pop},
	{"array", (*worker).array},
	{"quote", (*worker).quote},
	{"unquote", (*worker).unquote},
	{"object", (*worker).object},
	{"patch", (*worker).patch},
	{"series", (*worker).series},
	{"fail", (*worker).fail},
	{"frame", (*worker).frame},
	{"foreign", (*worker).foreign},
	{"token", (*worker).token},
	{"collect", (*worker).collect},
}

type worker struct {
	r      *runtime.Runtime
	h      *core.Heap
	rng    *rand.Rand
	base   stack.Index
	report *Report
	opts   Options
}

// Run executes opts.Iterations random operations against r and leaves the
// data stack as it found it. It stops early when ctx is cancelled. Fatal
// panics are not recovered.
func Run(ctx context.Context, r *runtime.Runtime, opts Options) (*Report, error) {
	w := &worker{
		r:      r,
		h:      r.Heap(),
		rng:    rand.New(rand.NewSource(opts.Seed)),
		base:   r.Data().Index(),
		report: &Report{Ops: make(map[string]int)},
		opts:   opts,
	}
	start := time.Now()
	defer r.Data().DropTo(w.base)

	for i := 0; i < opts.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return w.finish(start), err
		}
		o := ops[w.rng.Intn(len(ops))]
		if err := r.Rescue(func() error { return o.fn(w) }); err != nil {
			w.report.Rescued++
		}
		w.report.Ops[o.name]++
		w.report.Iterations++

		if r.Data().Index() > w.base+stackHigh {
			r.Data().DropTo(w.base + stackLow)
		}
		r.Checkpoint()
		if w.h.Stats().Cycles > uint64(w.report.Cycles) {
			w.cycled()
		}
	}
	return w.finish(start), nil
}

func (w *worker) cycled() {
	st := w.h.Stats()
	w.report.Cycles = int(st.Cycles)
	if w.opts.OnCycle != nil {
		w.opts.OnCycle(st)
	}
}

func (w *worker) finish(start time.Time) *Report {
	w.report.Elapsed = time.Since(start)
	w.report.Stats = w.h.Stats()
	return w.report
}

// pick returns a random pushed cell, or nil when the workload has nothing
// on the stack.
func (w *worker) pick() *core.Cell {
	top := w.r.Data().Index()
	if top <= w.base {
		return nil
	}
	return w.r.Data().At(w.base + 1 + stack.Index(w.rng.Intn(int(top-w.base))))
}
