package core

import (
	"io"
	"log"
	"unsafe"

	"github.com/funvibe/funcell/internal/config"
	"github.com/funvibe/funcell/internal/node"
)

// Heap is the node pool: it owns every series and pairing, the guard stack,
// the symbol table and the recycle budget. A Heap is not safe for concurrent
// use; there is exactly one mutator.
type Heap struct {
	cfg config.Tuning
	log *log.Logger

	tick      uint64
	depletion int
	signal    bool
	recycling bool

	managed []node.Node
	manuals []node.Node
	rooted  []node.Node
	guards  []guard
	roots   []RootSet

	symbols map[string]*Symbol
	unbound *Series

	pairings int
	stats    Stats
}

type guard struct {
	n node.Node
	c *Cell
}

// Stats is a snapshot of pool counters.
type Stats struct {
	Tick        uint64
	Managed     int
	Manual      int
	Pairings    int
	Guards      int
	Symbols     int
	Allocations uint64
	Frees       uint64
	Cycles      uint64
	Swept       uint64
	LastSwept   int
	Memmoves    uint64
	Expansions  uint64
	Depletion   int
}

// NewHeap builds an empty pool. A nil logger discards output.
func NewHeap(cfg config.Tuning, logger *log.Logger) *Heap {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	h := &Heap{
		cfg:       cfg,
		log:       logger,
		depletion: cfg.Ballast,
		symbols:   make(map[string]*Symbol),
	}

	// Whitelisted binding target for words that were bound and then had
	// their context dropped.
	h.unbound, _ = h.newSeries(cellWidth, 1, FlagArray|FlagFixedSize)
	h.addManaged(h.unbound)
	h.Root(h.unbound)
	return h
}

func (h *Heap) Config() config.Tuning { return h.cfg }
func (h *Heap) Logger() *log.Logger  { return h.log }
func (h *Heap) Tick() uint64         { return h.tick }

// Unbound is the sentinel binding for words whose context was dropped.
func (h *Heap) Unbound() node.Node { return h.unbound }

func (h *Heap) nextTick() uint64 {
	h.tick++
	h.stats.Allocations++
	return h.tick
}

// charge spends allocation budget and raises the recycle signal once the
// ballast is exhausted.
func (h *Heap) charge(bytes int) {
	h.depletion -= bytes
	if h.depletion <= 0 {
		h.signal = true
	}
}

// Signaled reports whether enough has been allocated to warrant a cycle.
func (h *Heap) Signaled() bool { return h.signal }

func (h *Heap) resetBallast() {
	h.depletion = h.cfg.Ballast
	h.signal = false
}

// Pool lists. A node's slot is its index in whichever list owns it.

func (h *Heap) addManual(n node.Node) {
	n.Head().SetSlot(len(h.manuals))
	h.manuals = append(h.manuals, n)
}

func (h *Heap) addManaged(n node.Node) {
	hd := n.Head()
	hd.Set(node.FlagManaged)
	hd.SetSlot(len(h.managed))
	h.managed = append(h.managed, n)
}

func (h *Heap) removeFrom(list *[]node.Node, n node.Node) {
	n = canon(n)
	l := *list
	i := n.Head().Slot()
	if i < 0 || i >= len(l) || l[i] != n {
		node.Fatal(n, h.tick, "node not found in its pool list")
	}
	last := len(l) - 1
	l[i] = l[last]
	l[i].Head().SetSlot(i)
	l[last] = nil
	*list = l[:last]
	n.Head().SetSlot(-1)
}

// Manage transfers a manual series to the collector. Managing an already
// managed node is a no-op.
func (h *Heap) Manage(n node.Node) {
	n = canon(n)
	hd := n.Head()
	if !hd.IsLive() {
		node.Fatal(n, h.tick, "managing a freed node")
	}
	if hd.IsManaged() {
		return
	}
	h.removeFrom(&h.manuals, n)
	h.addManaged(n)
}

// Free releases a manual node. Freeing a managed node is fatal: only the
// collector may reclaim those. A varlist takes its keylist with it, and an
// action its paramlist, mirroring Context.Manage and Action.Manage.
func (h *Heap) Free(n node.Node) {
	n = canon(n)
	hd := n.Head()
	if !hd.IsLive() {
		node.Fatal(n, h.tick, "double free")
	}
	if hd.IsManaged() {
		node.Fatal(n, h.tick, "explicit free of a managed node")
	}
	var companion node.Node
	if s, ok := n.(*Series); ok && s.hdr.Flags&(FlagVarlist|FlagDetails) != 0 {
		companion = s.link
	}
	h.removeFrom(&h.manuals, n)
	h.reclaim(n)
	if companion == nil {
		return
	}
	if chd := companion.Head(); chd.IsLive() && !chd.IsManaged() {
		h.Free(companion)
	}
}

// FreeManualsSince frees every manual node allocated after tick and returns
// how many were freed. Used when unwinding a failed operation.
func (h *Heap) FreeManualsSince(tick uint64) int {
	var doomed []node.Node
	for _, n := range h.manuals {
		if n.Head().Tick > tick {
			doomed = append(doomed, n)
		}
	}
	for _, n := range doomed {
		// Freeing a varlist may already have taken its keylist.
		if n.Head().IsLive() {
			h.Free(n)
		}
	}
	return len(doomed)
}

// reclaim turns n into a freed node. It must already be off every list.
func (h *Heap) reclaim(n node.Node) {
	switch x := n.(type) {
	case *Pairing:
		h.pairings--
		x.cells = [2]Cell{}
	case *Series:
		if x.hdr.Flags&FlagPatch != 0 {
			unlinkVariant(x)
		}
		if x.hdr.Flags&FlagHandle != 0 {
			(*Handle)(x).cleanup()
		}
		if x.hdr.Flags&FlagSymbol != 0 {
			delete(h.symbols, x.Text())
		}
		x.cells = nil
		x.bytes = nil
		x.link = nil
		x.misc = nil
		x.extra = nil
		x.used, x.rest, x.bias = 0, 0, 0
	}
	n.Head().Release()
	h.stats.Frees++
}

// Root makes n a permanent member of the root set.
func (h *Heap) Root(n node.Node) {
	n = canon(n)
	hd := n.Head()
	if hd.Has(node.FlagRoot) {
		return
	}
	hd.Set(node.FlagRoot)
	h.rooted = append(h.rooted, n)
}

// Unroot removes n from the root set.
func (h *Heap) Unroot(n node.Node) {
	n = canon(n)
	hd := n.Head()
	if !hd.Has(node.FlagRoot) {
		return
	}
	hd.Clear(node.FlagRoot)
	for i, r := range h.rooted {
		if r == n {
			h.rooted = append(h.rooted[:i], h.rooted[i+1:]...)
			return
		}
	}
}

// Guard stack: values that must survive a call that may collect.

func (h *Heap) GuardNode(n node.Node) { h.guards = append(h.guards, guard{n: canon(n)}) }
func (h *Heap) GuardCell(c *Cell)     { h.guards = append(h.guards, guard{c: c}) }

// UnguardNode drops the top guard, which must be n.
func (h *Heap) UnguardNode(n node.Node) {
	n = canon(n)
	if len(h.guards) == 0 || h.guards[len(h.guards)-1].n != n {
		node.Fatal(n, h.tick, "unguarding a node that is not the top guard")
	}
	h.guards = h.guards[:len(h.guards)-1]
}

// UnguardCell drops the top guard, which must be c.
func (h *Heap) UnguardCell(c *Cell) {
	if len(h.guards) == 0 || h.guards[len(h.guards)-1].c != c {
		node.Fatal(nil, h.tick, "unguarding a cell that is not the top guard")
	}
	h.guards = h.guards[:len(h.guards)-1]
}

func (h *Heap) GuardDepth() int { return len(h.guards) }

// DropGuards trims the guard stack back to depth.
func (h *Heap) DropGuards(depth int) {
	if depth < len(h.guards) {
		clear(h.guards[depth:])
		h.guards = h.guards[:depth]
	}
}

// RegisterRoots adds a permanent root source, such as a stack.
func (h *Heap) RegisterRoots(rs RootSet) {
	h.roots = append(h.roots, rs)
}

// Stats reports the current pool counters.
func (h *Heap) Stats() Stats {
	s := h.stats
	s.Tick = h.tick
	s.Managed = len(h.managed)
	s.Manual = len(h.manuals)
	s.Pairings = h.pairings
	s.Guards = len(h.guards)
	s.Symbols = len(h.symbols)
	s.Depletion = h.depletion
	return s
}

// Shutdown frees every node, roots included, and returns how many there
// were. The heap is unusable afterwards.
func (h *Heap) Shutdown() int {
	count := 0
	for _, n := range h.managed {
		n.Head().SetSlot(-1)
		h.reclaim(n)
		count++
	}
	for _, n := range h.manuals {
		n.Head().SetSlot(-1)
		h.reclaim(n)
		count++
	}
	h.managed, h.manuals, h.rooted, h.guards = nil, nil, nil, nil
	h.log.Printf("heap: shutdown released %d nodes", count)
	return count
}

// Pairing is the two-cell node an out-of-line quoted value lives in.
type Pairing struct {
	hdr   node.Header
	cells [2]Cell
}

func (p *Pairing) Head() *node.Header { return &p.hdr }

// Escaped is the value beneath the quotes.
func (p *Pairing) Escaped() *Cell { return &p.cells[0] }

func (p *Pairing) IsShared() bool { return p.hdr.Flags&PairingFlagShared != 0 }

// allocPairing returns a managed pairing; pairings are never manual.
func (h *Heap) allocPairing() *Pairing {
	p := &Pairing{}
	p.hdr.Init(node.FlagCell, 0, h.nextTick())
	InitTrash(&p.cells[1])
	h.addManaged(p)
	h.pairings++
	h.charge(int(unsafe.Sizeof(*p)))
	return p
}

// freePairing releases a pairing no cell refers to any more.
func (h *Heap) freePairing(p *Pairing) {
	h.removeFrom(&h.managed, p)
	h.reclaim(p)
}
