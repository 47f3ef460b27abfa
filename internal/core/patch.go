package core

import "github.com/funvibe/funcell/internal/node"

// Patch is a single-cell node overriding a context's first Limit variables
// in a binding chain. Its cell holds the context (binding) and the limit
// (index); misc is the next link in the chain (another patch, a frame
// varlist, or nil); link is the next variant in the context's ring of
// patches.
type Patch Series

func (p *Patch) Head() *node.Header { return &p.hdr }
func (p *Patch) Series() *Series     { return (*Series)(p) }

// Context is the context whose variables the patch exposes.
func (p *Patch) Context() *Context { return AsContext(p.cells[0].binding) }

// Limit is the context length snapshotted when the patch was made.
func (p *Patch) Limit() int { return p.cells[0].index }

// Next is the rest of the chain.
func (p *Patch) Next() node.Node { return p.misc }

func (p *Patch) Kind() Kind { return Kind(p.cells[0].kind) }

// AsPatch downcasts n to a patch.
func AsPatch(n node.Node) *Patch {
	return (*Patch)(downcast(n, FlagArray|FlagPatch, "patch"))
}

// canon returns the one dynamic type each node is stored under, so that
// interface comparisons between references agree.
func canon(n node.Node) node.Node {
	if s := seriesOf(n); s != nil {
		return s
	}
	return n
}

// MakeOrReusePatch returns the patch exposing the first limit variables of
// ctx ahead of next. Identical (ctx, limit, next) requests return the same
// node, found on the ring of variants hung off ctx. A limit of 0 is a no-op
// returning next.
func (h *Heap) MakeOrReusePatch(ctx *Context, limit int, next node.Node, kind Kind) node.Node {
	if limit == 0 {
		return next
	}
	if limit < 0 || limit > ctx.Len() {
		node.Fatal(ctx, h.tick, "patch limit %d outside context of %d", limit, ctx.Len())
	}
	next = canon(next)

	if head, ok := ctx.misc.(*Series); ok {
		p := head
		for {
			if p.cells[0].index == limit && p.misc == next {
				return p
			}
			p = p.link.(*Series)
			if p == head {
				break
			}
		}
	}

	s, err := h.newSeries(cellWidth, 1, FlagArray|FlagPatch|FlagFixedSize)
	if err != nil {
		node.Fatal(ctx, h.tick, "patch: %v", err)
	}
	s.used = 1
	s.cells[0] = Cell{kind: uint8(kind), binding: ctx.Series(), index: limit}
	s.misc = next

	if head, ok := ctx.misc.(*Series); ok {
		s.link = head.link
		head.link = s
	} else {
		s.link = s
		ctx.misc = s
	}
	h.addManaged(s)
	return s
}

// unlinkVariant removes a dying patch from its context's ring.
func unlinkVariant(p *Series) {
	ctx := seriesOf(p.cells[0].binding)
	if p.link == nil {
		return
	}
	if p.link == node.Node(p) {
		if ctx != nil && ctx.misc == node.Node(p) {
			ctx.misc = nil
		}
		p.link = nil
		return
	}
	q := p
	for q.link != node.Node(p) {
		q = q.link.(*Series)
	}
	q.link = p.link
	if ctx != nil && ctx.misc == node.Node(p) {
		ctx.misc = p.link
	}
	p.link = nil
}

// Variants counts the patches currently hung off ctx.
func (c *Context) Variants() int {
	head, ok := c.misc.(*Series)
	if !ok {
		return 0
	}
	n := 1
	for p := head.link.(*Series); p != head; p = p.link.(*Series) {
		n++
	}
	return n
}

// Lookup finds the variable a word refers to: first through the specifier
// chain of patches and frame varlists, then through the word's own binding.
// A patch never exposes variables beyond its snapshotted limit.
func Lookup(word *Cell, specifier node.Node) (*Cell, bool) {
	sym := word.Symbol()

	for n := specifier; n != nil; {
		s := AsSeries(n)
		switch {
		case s.hdr.Flags&FlagPatch != 0:
			p := (*Patch)(s)
			ctx := p.Context()
			if i := ctx.findWithin(sym, p.Limit()); i != 0 {
				return ctx.Var(i), true
			}
			n = p.Next()
		case s.hdr.Flags&FlagVarlist != 0:
			ctx := (*Context)(s)
			if i := ctx.Find(sym); i != 0 {
				return ctx.Var(i), true
			}
			n = nil
		default:
			node.Fatal(s, s.heap.tick, "specifier is neither patch nor varlist")
		}
	}

	binding, index := WordBinding(word)
	if binding == nil {
		return nil, false
	}
	ctx, ok := TryContext(binding)
	if !ok {
		return nil, false
	}
	if index >= 1 && index <= ctx.Len() && ctx.Key(index) == sym {
		return ctx.Var(index), true
	}
	if i := ctx.Find(sym); i != 0 {
		return ctx.Var(i), true
	}
	return nil, false
}
