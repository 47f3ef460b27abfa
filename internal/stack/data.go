// Package stack holds the data stack and the frame stack. Both are root sets
// for the collector: anything on them survives a cycle.
package stack

import (
	"errors"
	"fmt"

	"github.com/funvibe/funcell/internal/core"
	"github.com/funvibe/funcell/internal/node"
)

var (
	ErrStackOverflow = errors.New("data stack overflow")
	ErrFrameOverflow = errors.New("frame stack overflow")
)

// growthIncrement is the minimum number of slots added when the data stack
// is full.
const growthIncrement = 256

// Index is a position on the data stack. 0 is the sentinel slot, so the
// index of an empty stack is 0 and the first pushed value sits at 1.
type Index int

// Data is the data stack: a contiguous run of cells used to accumulate
// results. Slot 0 always holds an unreadable cell. Indices stay valid when
// the stack grows; cell pointers do not.
type Data struct {
	heap  *core.Heap
	cells []core.Cell
	sp    Index
	max   int
}

// NewData makes an empty data stack sized from the heap's tuning.
func NewData(h *core.Heap) *Data {
	cfg := h.Config()
	initial := cfg.DataStackInitial
	if initial < 2 {
		initial = 2
	}
	d := &Data{
		heap:  h,
		cells: make([]core.Cell, initial),
		max:   cfg.DataStackMax,
	}
	core.InitTrash(&d.cells[0])
	return d
}

func (d *Data) grow() error {
	if len(d.cells) >= d.max+1 {
		return fmt.Errorf("%w: %d cells", ErrStackOverflow, d.max)
	}
	growBy := growthIncrement
	if len(d.cells) > growBy {
		growBy = len(d.cells)
	}
	size := len(d.cells) + growBy
	if size > d.max+1 {
		size = d.max + 1
	}
	cells := make([]core.Cell, size)
	copy(cells, d.cells[:d.sp+1])
	d.cells = cells
	return nil
}

// PushSlot reserves the next slot, initialized to void, and returns it.
func (d *Data) PushSlot() (*core.Cell, error) {
	if int(d.sp)+1 >= len(d.cells) {
		if err := d.grow(); err != nil {
			return nil, err
		}
	}
	d.sp++
	return core.InitVoid(&d.cells[d.sp]), nil
}

// Push copies c onto the stack.
func (d *Data) Push(c *core.Cell) error {
	slot, err := d.PushSlot()
	if err != nil {
		return err
	}
	core.CopyCell(slot, c)
	return nil
}

// Pop removes and returns the top cell. Popping the sentinel is fatal.
//
// Push copied the cell with CopyCell, so a quoted value deep enough to live
// in a pairing comes back with the pairing marked shared. Unquotify will
// then leave the pairing to the collector instead of freeing it at once,
// even when the popped cell turns out to be its last holder.
func (d *Data) Pop() core.Cell {
	if d.sp == 0 {
		node.Fatal(nil, d.heap.Tick(), "data stack underflow")
	}
	c := d.cells[d.sp]
	core.InitTrash(&d.cells[d.sp])
	d.sp--
	return c
}

// Top is the topmost cell. The sentinel is never handed out, so calling
// Top on an empty stack is fatal.
func (d *Data) Top() *core.Cell {
	if d.sp == 0 {
		node.Fatal(nil, d.heap.Tick(), "top of an empty data stack")
	}
	return &d.cells[d.sp]
}

// Index is the index of the top cell.
func (d *Data) Index() Index { return d.sp }

// At returns the cell at i, which must be between 1 and Index.
func (d *Data) At(i Index) *core.Cell {
	if i < 1 || i > d.sp {
		node.Fatal(nil, d.heap.Tick(), "data stack index %d outside 1..%d", i, d.sp)
	}
	return &d.cells[i]
}

// DropTo pops down to index i without returning the values.
func (d *Data) DropTo(i Index) {
	if i < 0 || i > d.sp {
		node.Fatal(nil, d.heap.Tick(), "dropping data stack to %d from %d", i, d.sp)
	}
	for j := i + 1; j <= d.sp; j++ {
		core.InitTrash(&d.cells[j])
	}
	d.sp = i
}

// PopToArray moves the cells above base into a new manual array, in push
// order, and drops the stack back to base.
func (d *Data) PopToArray(base Index) (*core.Array, error) {
	if base < 0 || base > d.sp {
		node.Fatal(nil, d.heap.Tick(), "PopToArray base %d above top %d", base, d.sp)
	}
	a, err := d.heap.MakeArrayOf(d.cells[base+1 : d.sp+1]...)
	if err != nil {
		return nil, err
	}
	d.DropTo(base)
	return a, nil
}

// TraceRoots reports every pushed cell.
func (d *Data) TraceRoots(t core.Tracer) {
	for i := Index(1); i <= d.sp; i++ {
		t.TraceCell(&d.cells[i])
	}
}
