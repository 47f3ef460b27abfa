package core

import (
	"errors"
	"testing"

	"github.com/funvibe/funcell/internal/config"
	"github.com/funvibe/funcell/internal/node"
)

func newTestHeap(t *testing.T) *Heap {
	t.Helper()
	cfg := config.Default()
	cfg.Verify = true
	return NewHeap(cfg, nil)
}

func newTestHeapWith(t *testing.T, tweak func(*config.Tuning)) *Heap {
	t.Helper()
	cfg := config.Default()
	cfg.Verify = true
	tweak(&cfg)
	return NewHeap(cfg, nil)
}

// expectFatal runs fn and fails the test unless it panics with *node.Panic.
func expectFatal(t *testing.T, fn func()) *node.Panic {
	t.Helper()
	var got *node.Panic
	func() {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			p, ok := r.(*node.Panic)
			if !ok {
				panic(r)
			}
			got = p
		}()
		fn()
	}()
	if got == nil {
		t.Fatal("expected a fatal panic, got none")
	}
	return got
}

func expectErr(t *testing.T, err, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func intArray(t *testing.T, h *Heap, values ...int64) *Array {
	t.Helper()
	cells := make([]Cell, len(values))
	for i, v := range values {
		InitInteger(&cells[i], v)
	}
	a, err := h.MakeArrayOf(cells...)
	if err != nil {
		t.Fatalf("MakeArrayOf: %v", err)
	}
	return a
}

func makeArray(t *testing.T, h *Heap, capacity int) *Array {
	t.Helper()
	a, err := h.MakeArray(capacity, 0)
	if err != nil {
		t.Fatalf("MakeArray: %v", err)
	}
	return a
}

func makeBinary(t *testing.T, h *Heap, b []byte) *Series {
	t.Helper()
	s, err := h.MakeBinary(b)
	if err != nil {
		t.Fatalf("MakeBinary: %v", err)
	}
	return s
}

func appendCell(t *testing.T, a *Array, c *Cell) {
	t.Helper()
	if err := a.Append(c); err != nil {
		t.Fatalf("Append: %v", err)
	}
}

// objectWith builds a managed object with the given variable names, each
// set to its 1-based position as an integer.
func objectWith(t *testing.T, h *Heap, names ...string) *Context {
	t.Helper()
	ctx, err := h.MakeContext(KindObject, len(names))
	if err != nil {
		t.Fatalf("MakeContext: %v", err)
	}
	for i, name := range names {
		var v Cell
		InitInteger(&v, int64(i+1))
		if err := ctx.Set(h.Intern(name), &v); err != nil {
			t.Fatalf("Set %s: %v", name, err)
		}
	}
	ctx.Manage()
	return ctx
}

func boundWord(h *Heap, ctx *Context, name string) Cell {
	var w Cell
	sym := h.Intern(name)
	InitWord(&w, sym)
	if i := ctx.Find(sym); i != 0 {
		BindWord(&w, ctx, i)
	}
	return w
}

func asNode(s interface{ Series() *Series }) node.Node { return s.Series() }
