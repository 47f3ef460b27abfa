package core

import (
	"github.com/funvibe/funcell/internal/node"
)

// Tracer receives root references during a collection.
type Tracer interface {
	TraceCell(c *Cell)
	TraceNode(n node.Node)
}

// RootSet is anything that holds cells or nodes the collector must treat as
// live: stacks, frames, embedder tables.
type RootSet interface {
	TraceRoots(t Tracer)
}

// RootFunc adapts a function to RootSet.
type RootFunc func(t Tracer)

func (f RootFunc) TraceRoots(t Tracer) { f(t) }

// marker is the mark phase. Nodes are pushed on the work list only when
// their mark bit goes from clear to set, so cycles terminate and the depth
// of a structure never reaches the Go stack.
type marker struct {
	h    *Heap
	work []node.Node
}

func (m *marker) TraceNode(n node.Node) {
	if n == nil {
		return
	}
	n = canon(n)
	hd := n.Head()
	if !hd.IsLive() {
		node.Fatal(n, m.h.tick, "collector reached a freed node")
	}
	if hd.IsMarked() {
		return
	}
	hd.Set(node.FlagMarked)
	m.work = append(m.work, n)
}

func (m *marker) TraceCell(c *Cell) {
	eachCellRef(c, m.TraceNode)
}

// eachCellRef calls fn for every node a cell holds directly. Pairings are
// reported as nodes; their cells are scanned when the pairing is.
func eachCellRef(c *Cell, fn func(node.Node)) {
	if c.node != nil {
		fn(c.node)
	}
	if c.binding != nil {
		fn(c.binding)
	}
}

// eachNodeRef calls fn for every cell and strong node reference inside n.
// The patch variant ring, the keylist back pointer and the context's ring
// head are weak and not reported.
func eachNodeRef(n node.Node, cellFn func(*Cell), nodeFn func(node.Node)) {
	switch x := n.(type) {
	case *Pairing:
		cellFn(&x.cells[0])
		cellFn(&x.cells[1])
	case *Series:
		if x.hdr.Flags&FlagArray != 0 {
			for i := x.bias; i < x.bias+x.used; i++ {
				cellFn(&x.cells[i])
			}
		}
		switch {
		case x.hdr.Flags&(FlagVarlist|FlagDetails) != 0:
			if x.link != nil {
				nodeFn(x.link)
			}
		case x.hdr.Flags&FlagPatch != 0:
			if x.misc != nil {
				nodeFn(x.misc)
			}
		}
	}
}

func (m *marker) propagate() {
	for len(m.work) > 0 {
		last := len(m.work) - 1
		n := m.work[last]
		m.work[last] = nil
		m.work = m.work[:last]
		eachNodeRef(n, m.TraceCell, m.TraceNode)
	}
}

// traceRoots reports the whole root set to t.
func (h *Heap) traceRoots(t Tracer, extra []RootSet) {
	for _, n := range h.rooted {
		t.TraceNode(n)
	}
	// Manual nodes are never swept, so whatever they hold must survive too.
	for _, n := range h.manuals {
		t.TraceNode(n)
	}
	for _, g := range h.guards {
		if g.n != nil {
			t.TraceNode(g.n)
		} else {
			t.TraceCell(g.c)
		}
	}
	for _, rs := range h.roots {
		rs.TraceRoots(t)
	}
	for _, rs := range extra {
		rs.TraceRoots(t)
	}
}

// Collect runs one stop-the-world cycle and returns how many managed nodes
// were reclaimed. extra root sets are traced in addition to the registered
// ones.
//
// There is no unmark prepass: the sweep clears the mark of every survivor,
// so all marks are clear between cycles.
func (h *Heap) Collect(extra ...RootSet) int {
	if h.recycling {
		node.Fatal(nil, h.tick, "recursive collection")
	}
	h.recycling = true
	defer func() { h.recycling = false }()

	m := &marker{h: h}
	h.traceRoots(m, extra)
	m.propagate()

	if h.cfg.Verify {
		h.verify(extra)
	}

	swept := h.sweep()
	h.stats.Cycles++
	h.stats.Swept += uint64(swept)
	h.stats.LastSwept = swept
	h.resetBallast()
	if h.cfg.Verbose {
		h.log.Printf("gc: cycle %d swept %d, %d managed, %d manual, %d pairings",
			h.stats.Cycles, swept, len(h.managed), len(h.manuals), h.pairings)
	}
	return swept
}

// sweep frees every unmarked managed node and clears the mark on the rest.
func (h *Heap) sweep() int {
	live := 0
	var doomed []node.Node
	for _, n := range h.managed {
		hd := n.Head()
		if hd.IsMarked() {
			hd.Clear(node.FlagMarked)
			hd.SetSlot(live)
			h.managed[live] = n
			live++
			continue
		}
		doomed = append(doomed, n)
	}
	clear(h.managed[live:])
	h.managed = h.managed[:live]

	for _, n := range doomed {
		n.Head().SetSlot(-1)
		h.reclaim(n)
	}
	for _, n := range h.manuals {
		n.Head().Clear(node.FlagMarked)
	}
	return len(doomed)
}
