package runtime

import (
	"fmt"

	"github.com/funvibe/funcell/internal/core"
)

// Scenario is a named end-to-end check of the core run against a fresh
// runtime.
type Scenario struct {
	Name string
	Run  func(r *Runtime) error
}

// Scenarios lists the built-in end-to-end checks.
func Scenarios() []Scenario {
	return []Scenario{
		{"stack-keeps-array-alive", StackKeepsArrayAlive},
		{"rebind-quoted-word", RebindQuotedWord},
		{"rescue-restores-balance", RescueRestoresBalance},
	}
}

// StackKeepsArrayAlive builds [1 2 3], leaves it on the data stack as its
// only reference across a cycle, then pops it and checks the next cycle
// reclaims it.
func StackKeepsArrayAlive(r *Runtime) error {
	h := r.heap
	cells := make([]core.Cell, 3)
	for i := range cells {
		core.InitInteger(&cells[i], int64(i+1))
	}
	a, err := h.MakeArrayOf(cells...)
	if err != nil {
		return err
	}
	h.Manage(a)

	var block core.Cell
	core.InitBlock(&block, a)
	if err := r.data.Push(&block); err != nil {
		return err
	}
	core.InitBlank(&block)

	r.Recycle()
	if !a.Head().IsLive() {
		return fmt.Errorf("array reachable from the data stack was reclaimed")
	}
	if got := r.data.Top().String(); got != "[1 2 3]" {
		return fmt.Errorf("array on the stack molds as %s", got)
	}

	r.data.Pop()
	r.Recycle()
	if a.Head().IsLive() {
		return fmt.Errorf("array survived after its last reference was popped")
	}
	return nil
}

// RebindQuotedWord quotes a bound word five levels deep, rebinds the quoted
// cell to another context, and checks the escaped value's cached binding
// followed while the depth did not change.
func RebindQuotedWord(r *Runtime) error {
	h := r.heap
	sym := h.Intern("x")

	makeObject := func(value int64) (*core.Context, error) {
		ctx, err := h.MakeContext(core.KindObject, 1)
		if err != nil {
			return nil, err
		}
		var v core.Cell
		core.InitInteger(&v, value)
		if err := ctx.Set(sym, &v); err != nil {
			return nil, err
		}
		ctx.Manage()
		h.GuardNode(ctx)
		return ctx, nil
	}
	first, err := makeObject(1)
	if err != nil {
		return err
	}
	defer h.UnguardNode(first)
	second, err := makeObject(2)
	if err != nil {
		return err
	}
	defer h.UnguardNode(second)

	var w core.Cell
	core.InitWord(&w, sym)
	core.BindWord(&w, first, 1)
	h.Quotify(&w, 5)
	h.GuardCell(&w)
	defer h.UnguardCell(&w)

	core.BindWord(&w, second, 1)
	r.Recycle()

	if d := core.QuoteDepth(&w); d != 5 {
		return fmt.Errorf("depth is %d after rebinding, want 5", d)
	}
	inner := core.AsPairing(w.Node()).Escaped()
	if core.UncheckedContext(inner.Binding()) != second {
		return fmt.Errorf("escaped value still cached against the first context")
	}
	v, ok := core.Lookup(&w, nil)
	if !ok || v.Integer() != 2 {
		return fmt.Errorf("quoted word resolves to %v", v)
	}
	return nil
}

// RescueRestoresBalance fails from inside nested pushes and checks that
// both stacks and the guard stack come back to where they started.
func RescueRestoresBalance(r *Runtime) error {
	before := r.Capture()
	manuals := r.heap.Stats().Manual

	err := r.Rescue(func() error {
		var c core.Cell
		for i := 0; i < 10; i++ {
			core.InitInteger(&c, int64(i))
			if err := r.data.Push(&c); err != nil {
				return err
			}
		}
		a, err := r.heap.MakeArray(4, 0)
		if err != nil {
			return err
		}
		r.heap.GuardNode(a)
		_, err = r.heap.Unquotify(&c, 1)
		r.Fail(err)
		return nil
	})
	if err == nil {
		return fmt.Errorf("unquoting an unquoted value did not fail")
	}
	after := r.Capture()
	if after.DataIndex != before.DataIndex || after.GuardDepth != before.GuardDepth || after.Frame != before.Frame {
		return fmt.Errorf("balance not restored: %+v vs %+v", after, before)
	}
	if got := r.heap.Stats().Manual; got != manuals {
		return fmt.Errorf("%d manual nodes leaked by the failed operation", got-manuals)
	}
	return nil
}
