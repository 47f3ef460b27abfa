package runtime

import (
	"bytes"
	"errors"
	"log"
	"strings"
	"testing"

	"github.com/funvibe/funcell/internal/config"
	"github.com/funvibe/funcell/internal/core"
	"github.com/funvibe/funcell/internal/node"
	"github.com/funvibe/funcell/internal/stack"
)

func newRuntime(t *testing.T) *Runtime {
	t.Helper()
	cfg := config.Default()
	cfg.Verify = true
	r, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func push(t *testing.T, r *Runtime, c *core.Cell) {
	t.Helper()
	if err := r.Data().Push(c); err != nil {
		t.Fatalf("push: %v", err)
	}
}

func makeArray(t *testing.T, r *Runtime, capacity int) *core.Array {
	t.Helper()
	a, err := r.Heap().MakeArray(capacity, 0)
	if err != nil {
		t.Fatalf("MakeArray: %v", err)
	}
	return a
}

// ============================================================================
// Construction and globals
// ============================================================================

func TestNewRejectsInvalidTuning(t *testing.T) {
	cfg := config.Default()
	cfg.InlineQuoteMax = 9
	if _, err := New(cfg); err == nil {
		t.Fatal("expected an error for inline_quote_max 9")
	}
}

func TestGlobalsSurviveCollection(t *testing.T) {
	r := newRuntime(t)
	g := r.Globals()
	r.Recycle()
	r.Recycle()

	if !g.True.Logic() || g.False.Logic() {
		t.Error("logic globals")
	}
	if g.EmptyBlock.Array().Len() != 0 || g.EmptyText.Series().Text() != "" {
		t.Error("empty series globals not empty")
	}
	if !g.EmptyBlock.Array().Head().IsLive() || !g.EmptyText.Series().Head().IsLive() {
		t.Fatal("global series reclaimed")
	}
	if !g.Blank.HasFlag(core.CellFlagConst) {
		t.Error("globals should be flagged const")
	}
	if err := g.EmptyBlock.Array().Append(&g.Blank); !errors.Is(err, core.ErrFixedSize) {
		t.Errorf("appending to the empty block: %v", err)
	}
}

func TestLibGlobals(t *testing.T) {
	r := newRuntime(t)
	var v core.Cell
	core.InitInteger(&v, 12)
	if err := r.SetGlobal("answer", &v); err != nil {
		t.Fatal(err)
	}
	r.Recycle()
	got, ok := r.Global("answer")
	if !ok || got.Integer() != 12 {
		t.Fatalf("Global = %v, %v", got, ok)
	}
	if _, ok := r.Global("missing"); ok {
		t.Error("found an unset global")
	}
}

func TestCheckpointCollectsOnlyWhenSignaled(t *testing.T) {
	cfg := config.Default()
	cfg.Ballast = 4096
	r, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	cycles := r.Heap().Stats().Cycles
	r.Checkpoint()
	if !r.Heap().Signaled() && r.Heap().Stats().Cycles != cycles {
		t.Fatal("checkpoint collected without a signal")
	}
	for i := 0; i < 100; i++ {
		a := makeArray(t, r, 8)
		r.Heap().Manage(a)
	}
	if !r.Heap().Signaled() {
		t.Fatal("allocating past the ballast did not raise the signal")
	}
	if swept := r.Checkpoint(); swept < 100 {
		t.Errorf("checkpoint swept %d, want at least 100", swept)
	}
	if r.Heap().Signaled() {
		t.Error("signal not reset by the cycle")
	}
}

// ============================================================================
// Rescue
// ============================================================================

func TestRescueRestoresOnReturnedError(t *testing.T) {
	r := newRuntime(t)
	var one core.Cell
	core.InitInteger(&one, 1)
	push(t, r, &one)

	sentinel := errors.New("boom")
	err := r.Rescue(func() error {
		push(t, r, &one)
		push(t, r, &one)
		f := stack.NewFrame("inner", nil, nil)
		if err := r.Frames().Push(f); err != nil {
			return err
		}
		r.Heap().GuardCell(&one)
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("Rescue returned %v", err)
	}
	if r.Data().Index() != 1 || r.Frames().Depth() != 1 || r.Heap().GuardDepth() != 0 {
		t.Errorf("data %d frames %d guards %d", r.Data().Index(), r.Frames().Depth(), r.Heap().GuardDepth())
	}
}

func TestRescueFailUnwindsNestedCalls(t *testing.T) {
	r := newRuntime(t)
	depth := 0
	var recurse func()
	recurse = func() {
		depth++
		var c core.Cell
		core.InitInteger(&c, int64(depth))
		push(t, r, &c)
		if depth == 50 {
			_, err := r.Heap().Unquotify(&c, 2)
			r.Fail(err)
		}
		recurse()
	}
	err := r.Rescue(func() error {
		recurse()
		return nil
	})
	if !errors.Is(err, core.ErrInsufficientQuoting) {
		t.Fatalf("err = %v", err)
	}
	if r.Data().Index() != 0 {
		t.Errorf("data stack at %d after unwinding", r.Data().Index())
	}
}

func TestRescueFreesManualsAllocatedInside(t *testing.T) {
	r := newRuntime(t)
	keep := makeArray(t, r, 1)
	err := r.Rescue(func() error {
		r.Heap().MakeArray(4, 0)
		r.Heap().MakeText("temporary")
		return errors.New("abandon")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if got := r.Heap().Stats().Manual; got != 1 {
		t.Errorf("manual nodes = %d, want 1", got)
	}
	if !keep.Head().IsLive() {
		t.Error("manual node from before the rescue was freed")
	}
}

func TestRescueDoesNotCatchFatal(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Default()
	r, err := New(cfg, WithLogger(log.New(&buf, "", 0)))
	if err != nil {
		t.Fatal(err)
	}
	a := makeArray(t, r, 1)

	defer func() {
		rec := recover()
		if _, ok := rec.(*node.Panic); !ok {
			t.Fatalf("expected *node.Panic to escape, got %v", rec)
		}
		if !strings.Contains(buf.String(), r.ID().String()) {
			t.Errorf("fatal log does not carry the runtime id: %q", buf.String())
		}
	}()
	r.Rescue(func() error {
		core.AsContext(a)
		return nil
	})
}

func TestBalanced(t *testing.T) {
	r := newRuntime(t)
	var c core.Cell
	core.InitBlank(&c)

	if err := r.Balanced(func() error {
		push(t, r, &c)
		r.Data().Pop()
		return nil
	}); err != nil {
		t.Errorf("balanced function reported %v", err)
	}

	err := r.Balanced(func() error {
		return r.Data().Push(&c)
	})
	if !errors.Is(err, ErrUnbalanced) {
		t.Fatalf("expected ErrUnbalanced, got %v", err)
	}
	if r.Data().Index() != 0 {
		t.Error("imbalance not repaired")
	}
}

// ============================================================================
// Scenarios
// ============================================================================

func TestScenarios(t *testing.T) {
	for _, sc := range Scenarios() {
		t.Run(sc.Name, func(t *testing.T) {
			r := newRuntime(t)
			if err := sc.Run(r); err != nil {
				t.Fatal(err)
			}
			if r.Data().Index() != 0 || r.Heap().GuardDepth() != 0 {
				t.Errorf("scenario left data %d guards %d", r.Data().Index(), r.Heap().GuardDepth())
			}
		})
	}
}

func TestShutdown(t *testing.T) {
	var buf bytes.Buffer
	r, err := New(config.Default(), WithLogger(log.New(&buf, "", 0)))
	if err != nil {
		t.Fatal(err)
	}
	r.Heap().MakeArray(2, 0)
	if n := r.Shutdown(); n == 0 {
		t.Error("shutdown released nothing")
	}
	if !strings.Contains(buf.String(), "1 manual nodes were never freed") {
		t.Errorf("leak not reported: %q", buf.String())
	}
}
