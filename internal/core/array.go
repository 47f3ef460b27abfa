package core

import (
	"fmt"

	"github.com/funvibe/funcell/internal/node"
)

// Array is a series of cells. Position used is an implicit terminator: it is
// never stored, and reading or writing it is a programming error.
type Array Series

func (a *Array) Head() *node.Header { return &a.hdr }
func (a *Array) Series() *Series     { return (*Series)(a) }
func (a *Array) Len() int            { return a.used }

// IsEnd reports whether i is at or past the implicit terminator.
func (a *Array) IsEnd(i int) bool { return i >= a.used }

// MakeArray allocates a manual array with room for capacity cells.
func (h *Heap) MakeArray(capacity int, flags uint32) (*Array, error) {
	s, err := h.newSeries(cellWidth, capacity, flags|FlagArray)
	if err != nil {
		return nil, err
	}
	h.addManual(s)
	return (*Array)(s), nil
}

// MakeArrayOf is MakeArray followed by copying cells in.
func (h *Heap) MakeArrayOf(cells ...Cell) (*Array, error) {
	a, err := h.MakeArray(len(cells), 0)
	if err != nil {
		return nil, err
	}
	for i := range cells {
		CopyCell(&a.cells[i], &cells[i])
	}
	a.used = len(cells)
	return a, nil
}

// At returns the cell at i, which must be below Len.
func (a *Array) At(i int) *Cell {
	if node.Checked && (i < 0 || i >= a.used) {
		node.Fatal(a, a.heap.tick, "array index %d outside [0, %d)", i, a.used)
	}
	return &a.cells[a.bias+i]
}

// Set copies c into slot i, which must be below Len.
func (a *Array) Set(i int, c *Cell) {
	CopyCell(a.At(i), c)
}

// Cells is the live content. The slice aliases the buffer and is invalidated
// by any resize.
func (a *Array) Cells() []Cell {
	return a.cells[a.bias : a.bias+a.used]
}

// Append copies c onto the tail.
func (a *Array) Append(c *Cell) error {
	if err := a.Series().Extend(1); err != nil {
		return err
	}
	CopyCell(&a.cells[a.bias+a.used-1], c)
	return nil
}

// Insert copies cells in before position i.
func (a *Array) Insert(i int, cells ...Cell) error {
	if i < 0 || i > a.used {
		return fmt.Errorf("%w: insert at %d of %d", ErrIndexOutOfRange, i, a.used)
	}
	if err := a.Series().Expand(i, len(cells)); err != nil {
		return err
	}
	for k := range cells {
		CopyCell(&a.cells[a.bias+i+k], &cells[k])
	}
	return nil
}

// CopyArray makes a manual shallow copy of a starting at index.
func (h *Heap) CopyArray(a *Array, index int) (*Array, error) {
	if index < 0 || index > a.used {
		return nil, fmt.Errorf("%w: copy from %d of %d", ErrIndexOutOfRange, index, a.used)
	}
	return h.MakeArrayOf(a.Cells()[index:]...)
}

// Symbol is an interned spelling. Symbols are managed and rooted for the
// life of the heap.
type Symbol Series

func (s *Symbol) Head() *node.Header { return &s.hdr }
func (s *Symbol) Series() *Series     { return (*Series)(s) }
func (s *Symbol) Spelling() string    { return s.Series().Text() }

// Intern returns the symbol for spelling, creating it on first use.
func (h *Heap) Intern(spelling string) *Symbol {
	if sym, ok := h.symbols[spelling]; ok {
		return sym
	}
	s, err := h.newSeries(1, len(spelling), FlagSymbol|FlagString)
	if err != nil {
		node.Fatal(nil, h.tick, "interning %q: %v", spelling, err)
	}
	s.used = len(spelling)
	copy(s.bytes, spelling)
	s.hdr.Flags |= FlagFixedSize
	h.addManaged(s)
	h.Root(s)
	sym := (*Symbol)(s)
	h.symbols[spelling] = sym
	return sym
}
