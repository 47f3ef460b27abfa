package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/funvibe/funcell/internal/node"
)

// CellFlags are per-cell header bits.
type CellFlags uint8

const (
	// CellFlagNewline asks the molder to start a new line before this cell.
	CellFlagNewline CellFlags = 1 << iota
	// CellFlagConst marks values copied out of the canonical globals.
	CellFlagConst
)

// Cell is the fixed-size value slot: a header (kind byte and flags), a
// payload (node, bits, index) and an extra word holding the binding.
//
// Copy cells with CopyCell when the source may be quoted out of line.
type Cell struct {
	kind  uint8
	flags CellFlags

	node  node.Node // series, symbol, pairing or varlist
	bits  uint64    // immediates: integer, decimal, logic, inline token
	index int       // array position, binding cache, or quote depth

	binding node.Node
}

// RawKind is the kind byte including in-cell quote levels.
func (c *Cell) RawKind() uint8 { return c.kind }

// Heart is the kind beneath any quoting.
func (c *Cell) Heart() Kind {
	if Kind(c.kind) == KindQuoted {
		return c.node.(*Pairing).cells[0].Heart()
	}
	return Kind(c.kind % 64)
}

// Type is KindQuoted for any quoted cell, otherwise the heart.
func (c *Cell) Type() Kind {
	if Kind(c.kind) == KindQuoted || c.kind >= 64 {
		return KindQuoted
	}
	return Kind(c.kind)
}

func (c *Cell) Flags() CellFlags         { return c.flags }
func (c *Cell) SetFlag(f CellFlags)      { c.flags |= f }
func (c *Cell) ClearFlag(f CellFlags)    { c.flags &^= f }
func (c *Cell) HasFlag(f CellFlags) bool { return c.flags&f != 0 }

// Node is the payload node (series, symbol, varlist or pairing).
func (c *Cell) Node() node.Node { return c.node }

// Binding is the extra word. For out-of-line quoted cells this is the
// primary binding of the escaped value.
func (c *Cell) Binding() node.Node { return c.binding }

// Index is the payload index: series position, variable index cache, or the
// quote depth of an out-of-line quoted cell.
func (c *Cell) Index() int { return c.index }

func (c *Cell) IsTrash() bool { return c.kind == uint8(KindTrash) }
func (c *Cell) IsVoid() bool  { return c.kind == uint8(KindVoid) }
func (c *Cell) IsBlank() bool { return c.kind == uint8(KindBlank) }

// CopyCell copies src into dst. An out-of-line pairing becomes shared, so
// later collapsing either copy leaves it for the collector.
func CopyCell(dst, src *Cell) *Cell {
	*dst = *src
	if Kind(src.kind) == KindQuoted {
		src.node.(*Pairing).hdr.Flags |= PairingFlagShared
	}
	return dst
}

// Immediate initializers

func InitTrash(c *Cell) *Cell { *c = Cell{kind: uint8(KindTrash)}; return c }
func InitVoid(c *Cell) *Cell  { *c = Cell{kind: uint8(KindVoid)}; return c }
func InitBlank(c *Cell) *Cell { *c = Cell{kind: uint8(KindBlank)}; return c }

func InitLogic(c *Cell, v bool) *Cell {
	*c = Cell{kind: uint8(KindLogic)}
	if v {
		c.bits = 1
	}
	return c
}

func InitInteger(c *Cell, v int64) *Cell {
	*c = Cell{kind: uint8(KindInteger), bits: uint64(v)}
	return c
}

func InitDecimal(c *Cell, v float64) *Cell {
	*c = Cell{kind: uint8(KindDecimal), bits: math.Float64bits(v)}
	return c
}

func (c *Cell) Logic() bool      { return c.bits != 0 }
func (c *Cell) Integer() int64   { return int64(c.bits) }
func (c *Cell) Decimal() float64 { return math.Float64frombits(c.bits) }

// Node-backed initializers

// InitSeries points c at s starting at index. heart must be a text, binary
// or array kind matching s.
func InitSeries(c *Cell, heart Kind, s *Series, index int) *Cell {
	*c = Cell{kind: uint8(heart), node: s, index: index}
	return c
}

func InitText(c *Cell, s *Series) *Cell   { return InitSeries(c, KindText, s, 0) }
func InitBinary(c *Cell, s *Series) *Cell { return InitSeries(c, KindBinary, s, 0) }

func InitBlock(c *Cell, a *Array) *Cell {
	return InitSeries(c, KindBlock, a.Series(), 0)
}

func InitGroup(c *Cell, a *Array) *Cell {
	return InitSeries(c, KindGroup, a.Series(), 0)
}

// InitAnyWord makes an unbound word of the given word kind.
func InitAnyWord(c *Cell, heart Kind, sym *Symbol) *Cell {
	*c = Cell{kind: uint8(heart), node: sym.Series()}
	return c
}

func InitWord(c *Cell, sym *Symbol) *Cell { return InitAnyWord(c, KindWord, sym) }

func InitObject(c *Cell, ctx *Context) *Cell {
	*c = Cell{kind: uint8(KindObject), node: ctx.Series()}
	return c
}

func InitFrame(c *Cell, ctx *Context) *Cell {
	*c = Cell{kind: uint8(KindFrame), node: ctx.Series()}
	return c
}

func InitAction(c *Cell, act *Action) *Cell {
	*c = Cell{kind: uint8(KindAction), node: act.Series()}
	return c
}

func InitHandle(c *Cell, h *Handle) *Cell {
	*c = Cell{kind: uint8(KindHandle), node: h.Series()}
	return c
}

// Accessors for node-backed cells. They panic on kind mismatch; callers are
// expected to test the heart first.

func (c *Cell) Series() *Series {
	return AsSeries(c.node)
}

func (c *Cell) Array() *Array {
	return AsArray(c.node)
}

func (c *Cell) Context() *Context {
	return AsContext(c.node)
}

func (c *Cell) Action() *Action {
	return AsAction(c.node)
}

func (c *Cell) Handle() *Handle {
	return AsHandle(c.node)
}

// Symbol returns the spelling node of a word cell, looking through quotes.
func (c *Cell) Symbol() *Symbol {
	if Kind(c.kind) == KindQuoted {
		return c.node.(*Pairing).cells[0].Symbol()
	}
	return AsSymbol(c.node)
}

// SetIndex moves an array or string cell to a new position.
func (c *Cell) SetIndex(i int) { c.index = i }

// SetBinding sets the specifier of an array cell or the binding of a word
// without touching any index cache. Use BindWord to bind words.
func (c *Cell) SetBinding(b node.Node) { c.binding = canon(b) }

// String molds the cell for diagnostics.
func (c *Cell) String() string {
	var sb strings.Builder
	moldCell(&sb, c, 0)
	return sb.String()
}

func moldCell(sb *strings.Builder, c *Cell, depth int) {
	if depth > 8 {
		sb.WriteString("...")
		return
	}
	if Kind(c.kind) == KindQuoted {
		sb.WriteString(strings.Repeat("'", c.index))
		moldCell(sb, &c.node.(*Pairing).cells[0], depth)
		return
	}
	sb.WriteString(strings.Repeat("'", int(c.kind)/64))

	switch Kind(c.kind % 64) {
	case KindTrash:
		sb.WriteString("~trash~")
	case KindVoid:
		sb.WriteString("~void~")
	case KindBlank:
		sb.WriteString("_")
	case KindLogic:
		sb.WriteString(strconv.FormatBool(c.Logic()))
	case KindInteger:
		sb.WriteString(strconv.FormatInt(c.Integer(), 10))
	case KindDecimal:
		sb.WriteString(strconv.FormatFloat(c.Decimal(), 'g', -1, 64))
	case KindIssue:
		sb.WriteByte('#')
		sb.WriteString(TokenText(c))
	case KindText:
		sb.WriteString(strconv.Quote(c.Series().Text()[c.index:]))
	case KindBinary:
		fmt.Fprintf(sb, "#{%X}", c.Series().Bytes()[c.index:])
	case KindWord:
		sb.WriteString(c.Symbol().Spelling())
	case KindSetWord:
		sb.WriteString(c.Symbol().Spelling())
		sb.WriteByte(':')
	case KindGetWord:
		sb.WriteByte(':')
		sb.WriteString(c.Symbol().Spelling())
	case KindBlock, KindGroup:
		open, close := "[", "]"
		if Kind(c.kind%64) == KindGroup {
			open, close = "(", ")"
		}
		sb.WriteString(open)
		a := c.Array()
		for i := c.index; i < a.Len(); i++ {
			item := a.At(i)
			if i > c.index {
				if item.HasFlag(CellFlagNewline) {
					sb.WriteByte('\n')
				} else {
					sb.WriteByte(' ')
				}
			}
			moldCell(sb, item, depth+1)
		}
		sb.WriteString(close)
	case KindObject, KindFrame:
		ctx := c.Context()
		sb.WriteString("make ")
		sb.WriteString(Kind(c.kind % 64).String())
		sb.WriteString("! [")
		for i := 1; i <= ctx.Len(); i++ {
			if i > 1 {
				sb.WriteByte(' ')
			}
			sb.WriteString(ctx.Key(i).Spelling())
			sb.WriteString(": ")
			moldCell(sb, ctx.Var(i), depth+1)
		}
		sb.WriteByte(']')
	case KindAction:
		sb.WriteString("#[action]")
	case KindHandle:
		sb.WriteString("#[handle]")
	default:
		fmt.Fprintf(sb, "#[kind %d]", c.kind)
	}
}
