package core

import "github.com/funvibe/funcell/internal/node"

// rootRecorder collects the root set without marking anything.
type rootRecorder struct {
	nodes []node.Node
	cells []*Cell
}

func (r *rootRecorder) TraceNode(n node.Node) {
	if n != nil {
		r.nodes = append(r.nodes, canon(n))
	}
}

func (r *rootRecorder) TraceCell(c *Cell) { r.cells = append(r.cells, c) }

// verify runs between mark and sweep. It recomputes reachability with plain
// recursion, independently of the work-list marker, and checks that the two
// agree and that the marked graph is closed. Any mismatch means an earlier
// operation corrupted the graph, so it is fatal.
func (h *Heap) verify(extra []RootSet) {
	rec := &rootRecorder{}
	h.traceRoots(rec, extra)

	reached := make(map[node.Node]bool)
	var visit func(n node.Node)
	visit = func(n node.Node) {
		n = canon(n)
		if reached[n] {
			return
		}
		if !n.Head().IsLive() {
			node.Fatal(n, h.tick, "verifier reached a freed node")
		}
		reached[n] = true
		eachNodeRef(n, func(c *Cell) { eachCellRef(c, visit) }, visit)
	}
	for _, n := range rec.nodes {
		visit(n)
	}
	for _, c := range rec.cells {
		eachCellRef(c, visit)
		h.verifyCell(c, nil)
	}

	for n := range reached {
		if !n.Head().IsMarked() {
			node.Fatal(n, h.tick, "reachable node was not marked")
		}
	}

	check := func(n node.Node) {
		if !n.Head().IsMarked() {
			return
		}
		if !reached[n] {
			node.Fatal(n, h.tick, "marked node is not reachable from the roots")
		}
		h.verifyNode(n)
	}
	for _, n := range h.managed {
		check(n)
	}
	for _, n := range h.manuals {
		check(n)
	}
}

func (h *Heap) verifyNode(n node.Node) {
	eachNodeRef(n, func(c *Cell) { h.verifyCell(c, n) }, func(ref node.Node) {
		if !ref.Head().IsMarked() {
			node.Fatal(n, h.tick, "marked node holds an unmarked reference")
		}
	})

	s, ok := n.(*Series)
	if !ok {
		return
	}
	switch {
	case s.hdr.Flags&FlagVarlist != 0:
		if s.link == nil || !s.link.Head().IsMarked() {
			node.Fatal(s, h.tick, "varlist marked without its keylist")
		}
	case s.hdr.Flags&FlagKeylist != 0:
		if s.misc == nil || !s.misc.Head().IsMarked() {
			node.Fatal(s, h.tick, "keylist marked without its varlist")
		}
	}
}

func (h *Heap) verifyCell(c *Cell, owner node.Node) {
	if c.node != nil && !c.node.Head().IsMarked() {
		if Kind(c.kind) == KindQuoted {
			node.Fatal(owner, h.tick, "quoted cell marked without its pairing")
		}
		node.Fatal(owner, h.tick, "%s cell references an unmarked node", Kind(c.kind%64))
	}
	if c.binding == nil || c.binding == node.Node(h.unbound) {
		return
	}
	if !c.binding.Head().IsMarked() {
		if c.node != nil && c.Heart().IsWord() {
			node.Fatal(owner, h.tick, "word %s bound to an unmarked context", c.Symbol().Spelling())
		}
		node.Fatal(owner, h.tick, "cell binding is unmarked")
	}
}
