package core

import "github.com/funvibe/funcell/internal/node"

// NodeInfo describes one pooled node for heap snapshots. Nodes are
// identified by their allocation tick, which is unique per heap.
type NodeInfo struct {
	ID      uint64
	Type    string
	Leading byte
	Flags   uint32
	Width   int
	Used    int
	Rest    int
	Bias    int
	Managed bool
	Root    bool
	Refs    []uint64
}

// Walk reports every live node with its outgoing strong references.
func (h *Heap) Walk(fn func(NodeInfo)) {
	visit := func(n node.Node) {
		hd := n.Head()
		info := NodeInfo{
			ID:      hd.Tick,
			Type:    describe(n),
			Leading: hd.Leading(),
			Flags:   hd.Flags,
			Managed: hd.IsManaged(),
			Root:    hd.Has(node.FlagRoot),
		}
		if s, ok := n.(*Series); ok {
			info.Width, info.Used, info.Rest, info.Bias = s.width, s.used, s.rest, s.bias
		}
		addRef := func(ref node.Node) { info.Refs = append(info.Refs, ref.Head().Tick) }
		eachNodeRef(n, func(c *Cell) { eachCellRef(c, addRef) }, addRef)
		fn(info)
	}
	for _, n := range h.managed {
		visit(n)
	}
	for _, n := range h.manuals {
		visit(n)
	}
}

func describe(n node.Node) string {
	s, ok := n.(*Series)
	if !ok {
		return "pairing"
	}
	f := s.hdr.Flags
	switch {
	case f&FlagVarlist != 0:
		return "varlist"
	case f&FlagKeylist != 0:
		return "keylist"
	case f&FlagDetails != 0:
		return "details"
	case f&FlagPatch != 0:
		return "patch"
	case f&FlagHandle != 0:
		return "handle"
	case f&FlagSymbol != 0:
		return "symbol"
	case f&FlagArray != 0:
		return "array"
	case f&FlagString != 0:
		return "string"
	}
	return "series"
}
