package core

import (
	"fmt"

	"github.com/funvibe/funcell/internal/node"
)

// QuoteDepth is the number of quote levels on c.
func QuoteDepth(c *Cell) int {
	if Kind(c.kind) == KindQuoted {
		return c.index
	}
	return int(c.kind) / 64
}

// IsQuoted reports whether c carries at least one quote level.
func IsQuoted(c *Cell) bool { return QuoteDepth(c) > 0 }

// Quotify adds depth quote levels to c in place.
//
// Depth up to the configured inline maximum is counted in the kind byte.
// Beyond that the value moves into a pairing and the outer cell counts the
// depth in its index. For bindable values the outer cell keeps the primary
// binding and the pairing keeps only a cache, since one escaped value may be
// shared by differently bound quoted cells.
func (h *Heap) Quotify(c *Cell, depth int) *Cell {
	if depth < 0 {
		node.Fatal(nil, h.tick, "negative quote depth %d", depth)
	}
	if depth == 0 {
		return c
	}
	if Kind(c.kind) == KindQuoted {
		c.index += depth
		return c
	}

	heart := Kind(c.kind % 64)
	total := int(c.kind)/64 + depth
	if total <= h.cfg.InlineQuoteMax {
		c.kind = kindByte(heart, total)
		return c
	}

	p := h.allocPairing()
	p.cells[0] = *c
	p.cells[0].kind = uint8(heart)
	p.cells[0].flags &^= CellFlagNewline

	outer := Cell{
		kind:  uint8(KindQuoted),
		flags: c.flags,
		node:  p,
		index: total,
	}
	if heart.IsBindable() {
		outer.binding = c.binding
	}
	*c = outer
	return c
}

// Unquotify removes depth quote levels from c in place. It fails without
// touching c when c has fewer than depth levels.
//
// When an out-of-line value drops back within the inline maximum it is
// copied into the outer cell with the primary binding restored, and the
// pairing is freed unless another cell shares it.
func (h *Heap) Unquotify(c *Cell, depth int) (*Cell, error) {
	if depth < 0 {
		node.Fatal(nil, h.tick, "negative unquote depth %d", depth)
	}
	current := QuoteDepth(c)
	if depth > current {
		return c, fmt.Errorf("%w: removing %d from depth %d", ErrInsufficientQuoting, depth, current)
	}
	if depth == 0 {
		return c, nil
	}

	if Kind(c.kind) != KindQuoted {
		c.kind -= uint8(depth * 64)
		return c, nil
	}

	remaining := c.index - depth
	if remaining > h.cfg.InlineQuoteMax {
		c.index = remaining
		return c, nil
	}

	p := AsPairing(c.node)
	primary := c.binding
	flags := c.flags
	*c = p.cells[0]
	heart := Kind(c.kind)
	c.kind = kindByte(heart, remaining)
	c.flags = flags
	if heart.IsBindable() {
		if heart.IsWord() && c.binding != primary {
			c.index = 0
		}
		c.binding = primary
	}
	if !p.IsShared() {
		h.freePairing(p)
	}
	return c, nil
}

// Dequotify strips every quote level from c and returns how many there were.
func (h *Heap) Dequotify(c *Cell) int {
	depth := QuoteDepth(c)
	if _, err := h.Unquotify(c, depth); err != nil {
		node.Fatal(nil, h.tick, "dequotify: %v", err)
	}
	return depth
}

// Unescaped is a read-only view of the value beneath every quote level, with
// the primary binding of an out-of-line value.
func Unescaped(c *Cell) Cell {
	if Kind(c.kind) == KindQuoted {
		v := AsPairing(c.node).cells[0]
		if v.Heart().IsBindable() {
			if v.Heart().IsWord() && v.binding != c.binding {
				v.index = 0
			}
			v.binding = c.binding
		}
		return v
	}
	v := *c
	v.kind = uint8(Kind(c.kind % 64))
	return v
}

// BindWord binds a word (quoted or not) to variable index of ctx. On an
// out-of-line quoted word the outer cell takes the binding and the pairing's
// cache is refreshed; the depth is not affected.
func BindWord(c *Cell, ctx *Context, index int) {
	if !c.Heart().IsWord() {
		node.Fatal(nil, ctx.heap.tick, "binding a %s", c.Heart())
	}
	if Kind(c.kind) == KindQuoted {
		c.binding = ctx.Series()
		inner := &AsPairing(c.node).cells[0]
		inner.binding = ctx.Series()
		inner.index = index
		return
	}
	c.binding = ctx.Series()
	c.index = index
}

// Unbind detaches a word, quoted or not.
func Unbind(c *Cell) {
	if Kind(c.kind) == KindQuoted {
		c.binding = nil
		inner := &AsPairing(c.node).cells[0]
		inner.binding = nil
		inner.index = 0
		return
	}
	c.binding = nil
	c.index = 0
}

// WordBinding returns the binding of a word and its cached variable index.
// The index is 0 when the cache cannot be trusted and a lookup is needed.
func WordBinding(c *Cell) (node.Node, int) {
	if Kind(c.kind) == KindQuoted {
		inner := &AsPairing(c.node).cells[0]
		if inner.binding != c.binding {
			return c.binding, 0
		}
		return c.binding, inner.index
	}
	return c.binding, c.index
}
