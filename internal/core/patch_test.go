package core

import "testing"

func TestPatchCaching(t *testing.T) {
	h := newTestHeap(t)
	ctx := objectWith(t, h, "a", "b", "c", "d", "e", "f")
	h.GuardNode(ctx)
	defer h.UnguardNode(ctx)

	p1 := h.MakeOrReusePatch(ctx, 5, nil, KindWord)
	p2 := h.MakeOrReusePatch(ctx, 5, nil, KindWord)
	if p1 != p2 {
		t.Fatal("identical requests returned different patches")
	}
	p3 := h.MakeOrReusePatch(ctx, 4, nil, KindWord)
	if p3 == p1 {
		t.Error("different limit reused a patch")
	}
	p4 := h.MakeOrReusePatch(ctx, 5, p3, KindWord)
	if p4 == p1 || p4 == p3 {
		t.Error("different next reused a patch")
	}
	if h.MakeOrReusePatch(ctx, 5, p3, KindWord) != p4 {
		t.Error("chained patch not reused")
	}
	if n := ctx.Variants(); n != 3 {
		t.Errorf("variants = %d, want 3", n)
	}

	patch := AsPatch(p4)
	if patch.Context() != ctx || patch.Limit() != 5 || patch.Next() != p3 {
		t.Errorf("patch fields: limit %d next %v", patch.Limit(), patch.Next())
	}
}

func TestPatchLimitEdges(t *testing.T) {
	h := newTestHeap(t)
	ctx := objectWith(t, h, "a", "b")
	next := h.MakeOrReusePatch(ctx, 1, nil, KindWord)
	if got := h.MakeOrReusePatch(ctx, 0, next, KindWord); got != next {
		t.Error("limit 0 should return next unchanged")
	}
	expectFatal(t, func() { h.MakeOrReusePatch(ctx, 3, nil, KindWord) })
	expectFatal(t, func() { h.MakeOrReusePatch(ctx, -1, nil, KindWord) })
}

func TestLookupRespectsPatchLimit(t *testing.T) {
	h := newTestHeap(t)
	ctx := objectWith(t, h, "a", "b", "c")
	h.GuardNode(ctx)
	defer h.UnguardNode(ctx)

	specifier := h.MakeOrReusePatch(ctx, 2, nil, KindWord)

	// Growing the context after the patch must not leak into it.
	var v Cell
	InitInteger(&v, 4)
	if err := ctx.Set(h.Intern("d"), &v); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		word  string
		found bool
		value int64
	}{
		{"a", true, 1},
		{"b", true, 2},
		{"c", false, 0},
		{"d", false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.word, func(t *testing.T) {
			var w Cell
			InitWord(&w, h.Intern(tt.word))
			got, ok := Lookup(&w, specifier)
			if ok != tt.found {
				t.Fatalf("found = %v, want %v", ok, tt.found)
			}
			if ok && got.Integer() != tt.value {
				t.Errorf("value = %d, want %d", got.Integer(), tt.value)
			}
		})
	}
}

func TestLookupChain(t *testing.T) {
	h := newTestHeap(t)
	outer := objectWith(t, h, "x", "y")
	inner := objectWith(t, h, "y")
	h.GuardNode(outer)
	h.GuardNode(inner)
	defer func() {
		h.UnguardNode(inner)
		h.UnguardNode(outer)
	}()

	chain := h.MakeOrReusePatch(inner, 1, h.MakeOrReusePatch(outer, 2, nil, KindWord), KindWord)

	var y Cell
	InitWord(&y, h.Intern("y"))
	v, ok := Lookup(&y, chain)
	if !ok || v != inner.Var(1) {
		t.Error("inner patch should shadow outer y")
	}
	var x Cell
	InitWord(&x, h.Intern("x"))
	v, ok = Lookup(&x, chain)
	if !ok || v != outer.Var(1) {
		t.Error("x should resolve through the outer patch")
	}

	frame, err := h.MakeContext(KindFrame, 1)
	if err != nil {
		t.Fatal(err)
	}
	var z Cell
	InitInteger(&z, 26)
	if err := frame.Set(h.Intern("z"), &z); err != nil {
		t.Fatal(err)
	}
	InitWord(&x, h.Intern("z"))
	v, ok = Lookup(&x, frame)
	if !ok || v.Integer() != 26 {
		t.Error("varlist specifier not searched")
	}
}

func TestDeadPatchesLeaveTheRing(t *testing.T) {
	h := newTestHeap(t)
	ctx := objectWith(t, h, "a", "b", "c")
	h.GuardNode(ctx)
	defer h.UnguardNode(ctx)

	keep := h.MakeOrReusePatch(ctx, 3, nil, KindWord)
	h.MakeOrReusePatch(ctx, 1, nil, KindWord)
	h.MakeOrReusePatch(ctx, 2, keep, KindWord)
	if ctx.Variants() != 3 {
		t.Fatalf("variants = %d", ctx.Variants())
	}

	h.GuardNode(keep)
	h.Collect()
	if n := ctx.Variants(); n != 1 {
		t.Errorf("variants after collect = %d, want 1", n)
	}
	if h.MakeOrReusePatch(ctx, 3, nil, KindWord) != keep {
		t.Error("surviving patch not found on the ring")
	}
	h.UnguardNode(keep)

	h.Collect()
	if ctx.Variants() != 0 {
		t.Errorf("variants = %d after every patch died", ctx.Variants())
	}
}
