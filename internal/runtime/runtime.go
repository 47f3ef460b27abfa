// Package runtime owns the process-wide state of one interpreter instance:
// the heap, both stacks, the canonical global values, and the trap machinery
// that restores stack balance after a recoverable failure.
package runtime

import (
	"fmt"
	"io"
	"log"

	"github.com/google/uuid"

	"github.com/funvibe/funcell/internal/config"
	"github.com/funvibe/funcell/internal/core"
	"github.com/funvibe/funcell/internal/stack"
)

// Runtime is one interpreter instance. It is not safe for concurrent use.
type Runtime struct {
	id  uuid.UUID
	cfg config.Tuning
	log *log.Logger

	heap   *core.Heap
	data   *stack.Data
	frames *stack.Frames

	globals Globals
	lib     *core.Context
}

// Globals are the canonical values written once at startup. Callers copy
// them; they are never modified afterwards.
type Globals struct {
	Blank      core.Cell
	Void       core.Cell
	True       core.Cell
	False      core.Cell
	EmptyBlock core.Cell
	EmptyText  core.Cell
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sends runtime and collector logging to l.
func WithLogger(l *log.Logger) Option {
	return func(r *Runtime) { r.log = l }
}

// New validates cfg and builds a runtime with its globals installed.
func New(cfg config.Tuning, opts ...Option) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Runtime{
		id:  uuid.New(),
		cfg: cfg,
		log: log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.heap = core.NewHeap(cfg, r.log)
	r.data = stack.NewData(r.heap)
	r.frames = stack.NewFrames(r.heap, r.data)
	r.heap.RegisterRoots(r.data)
	r.heap.RegisterRoots(r.frames)
	r.heap.RegisterRoots(core.RootFunc(r.traceGlobals))

	if err := r.initGlobals(); err != nil {
		return nil, fmt.Errorf("installing globals: %w", err)
	}
	r.log.Printf("runtime: %s started", r.id)
	return r, nil
}

func (r *Runtime) initGlobals() error {
	g := &r.globals
	core.InitBlank(&g.Blank)
	core.InitVoid(&g.Void)
	core.InitLogic(&g.True, true)
	core.InitLogic(&g.False, false)

	empty, err := r.heap.MakeArray(0, core.FlagFixedSize)
	if err != nil {
		return err
	}
	r.heap.Manage(empty)
	r.heap.Root(empty)
	core.InitBlock(&g.EmptyBlock, empty)

	text := r.heap.MakeText("")
	text.Head().Flags |= core.FlagFixedSize
	r.heap.Manage(text)
	r.heap.Root(text)
	core.InitText(&g.EmptyText, text)

	for _, c := range []*core.Cell{&g.Blank, &g.Void, &g.True, &g.False, &g.EmptyBlock, &g.EmptyText} {
		c.SetFlag(core.CellFlagConst)
	}

	lib, err := r.heap.MakeContext(core.KindObject, 16)
	if err != nil {
		return err
	}
	lib.Manage()
	r.heap.Root(lib)
	r.lib = lib
	return nil
}

func (r *Runtime) traceGlobals(t core.Tracer) {
	g := &r.globals
	for _, c := range []*core.Cell{&g.Blank, &g.Void, &g.True, &g.False, &g.EmptyBlock, &g.EmptyText} {
		t.TraceCell(c)
	}
}

func (r *Runtime) ID() uuid.UUID         { return r.id }
func (r *Runtime) Config() config.Tuning { return r.cfg }
func (r *Runtime) Logger() *log.Logger   { return r.log }
func (r *Runtime) Heap() *core.Heap      { return r.heap }
func (r *Runtime) Data() *stack.Data     { return r.data }
func (r *Runtime) Frames() *stack.Frames { return r.frames }
func (r *Runtime) Globals() *Globals     { return &r.globals }
func (r *Runtime) Lib() *core.Context    { return r.lib }

// SetGlobal binds name in the lib context to a copy of v.
func (r *Runtime) SetGlobal(name string, v *core.Cell) error {
	return r.lib.Set(r.heap.Intern(name), v)
}

// Global looks name up in the lib context.
func (r *Runtime) Global(name string) (*core.Cell, bool) {
	i := r.lib.Find(r.heap.Intern(name))
	if i == 0 {
		return nil, false
	}
	return r.lib.Var(i), true
}

// Recycle runs a collection cycle now.
func (r *Runtime) Recycle() int {
	return r.heap.Collect()
}

// Checkpoint collects if the allocation budget has run out since the last
// cycle. It returns how many nodes were swept, 0 if no cycle ran.
func (r *Runtime) Checkpoint() int {
	if !r.heap.Signaled() {
		return 0
	}
	return r.heap.Collect()
}

// Shutdown releases every node, roots included, and reports manual nodes
// nobody freed. It returns the number of nodes released.
func (r *Runtime) Shutdown() int {
	leaked := r.heap.Stats().Manual
	if leaked > 0 {
		r.log.Printf("runtime: %s: %d manual nodes were never freed", r.id, leaked)
	}
	r.data.DropTo(0)
	r.frames.DropTo(r.frames.Bottom())
	r.heap.DropGuards(0)
	n := r.heap.Shutdown()
	r.log.Printf("runtime: %s stopped", r.id)
	return n
}
