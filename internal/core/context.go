package core

import (
	"fmt"

	"github.com/funvibe/funcell/internal/node"
)

// Context is a varlist: slot 0 holds the archetype cell, slots 1..n the
// variables. Its link is the keylist, an array of unbound words parallel to
// the variables; its misc is the head of the patch variant ring.
type Context Series

func (c *Context) Head() *node.Header { return &c.hdr }
func (c *Context) Series() *Series     { return (*Series)(c) }
func (c *Context) Varlist() *Array     { return (*Array)(c) }
func (c *Context) Keylist() *Array     { return AsArray(c.link) }

// Len is the number of variables.
func (c *Context) Len() int { return c.used - 1 }

// Archetype is the cell that stands for the whole context.
func (c *Context) Archetype() *Cell { return &c.cells[c.bias] }

// Var returns variable i, 1-based.
func (c *Context) Var(i int) *Cell {
	if node.Checked && (i < 1 || i > c.Len()) {
		node.Fatal(c, c.heap.tick, "context variable %d outside 1..%d", i, c.Len())
	}
	return &c.cells[c.bias+i]
}

// Key returns the spelling of variable i, 1-based.
func (c *Context) Key(i int) *Symbol {
	return c.Keylist().At(i - 1).Symbol()
}

// Find returns the 1-based index of sym, or 0.
func (c *Context) Find(sym *Symbol) int {
	return c.findWithin(sym, c.Len())
}

func (c *Context) findWithin(sym *Symbol, limit int) int {
	keys := c.Keylist()
	if limit > keys.Len() {
		limit = keys.Len()
	}
	for i := 0; i < limit; i++ {
		if keys.At(i).node == node.Node(sym.Series()) {
			return i + 1
		}
	}
	return 0
}

// MakeContext allocates a manual object context with room for capacity
// variables. The keylist is created alongside and shares its lifetime.
func (h *Heap) MakeContext(heart Kind, capacity int) (*Context, error) {
	if !heart.IsContext() {
		node.Fatal(nil, h.tick, "context of kind %s", heart)
	}
	vs, err := h.newSeries(cellWidth, capacity+1, FlagArray|FlagVarlist)
	if err != nil {
		return nil, err
	}
	ks, err := h.newSeries(cellWidth, capacity, FlagArray|FlagKeylist)
	if err != nil {
		return nil, err
	}
	h.addManual(vs)
	h.addManual(ks)

	ctx := (*Context)(vs)
	vs.link = ks
	ks.misc = vs
	vs.used = 1
	vs.cells[0] = Cell{kind: uint8(heart), node: vs}
	return ctx, nil
}

// Append adds a variable named sym, initialized to void, and returns it.
func (c *Context) Append(sym *Symbol) (*Cell, error) {
	keys := c.Keylist()
	var key Cell
	InitWord(&key, sym)
	if err := keys.Append(&key); err != nil {
		return nil, err
	}
	if err := c.Series().Extend(1); err != nil {
		keys.Series().RemoveUnits(keys.Len()-1, 1)
		return nil, err
	}
	v := c.Var(c.Len())
	InitVoid(v)
	return v, nil
}

// Set appends or overwrites the variable named sym.
func (c *Context) Set(sym *Symbol, v *Cell) error {
	if i := c.Find(sym); i != 0 {
		CopyCell(c.Var(i), v)
		return nil
	}
	slot, err := c.Append(sym)
	if err != nil {
		return err
	}
	CopyCell(slot, v)
	return nil
}

// Manage transfers varlist and keylist to the collector together.
func (c *Context) Manage() {
	c.heap.Manage(c.Series())
	c.heap.Manage(c.link)
}

// Free releases a manual context along with its keylist.
func (c *Context) Free() { c.heap.Free(c.Series()) }

// Action is a details array whose slot 0 is the archetype action cell. Its
// link is the paramlist, a frame context naming the arguments.
type Action Series

// Dispatcher runs an action against a filled-in frame, writing its result.
type Dispatcher func(out *Cell, frame *Context) error

func (a *Action) Head() *node.Header { return &a.hdr }
func (a *Action) Series() *Series     { return (*Series)(a) }
func (a *Action) Details() *Array     { return (*Array)(a) }
func (a *Action) Paramlist() *Context { return AsContext(a.link) }

// MakeAction allocates a manual action with parameters named params.
func (h *Heap) MakeAction(dispatch Dispatcher, params ...string) (*Action, error) {
	paramlist, err := h.MakeContext(KindFrame, len(params))
	if err != nil {
		return nil, err
	}
	for _, p := range params {
		if _, err := paramlist.Append(h.Intern(p)); err != nil {
			return nil, err
		}
	}
	s, err := h.newSeries(cellWidth, 1, FlagArray|FlagDetails)
	if err != nil {
		return nil, err
	}
	h.addManual(s)
	s.link = paramlist.Series()
	s.extra = dispatch
	s.used = 1
	s.cells[0] = Cell{kind: uint8(KindAction), node: s}
	return (*Action)(s), nil
}

// Manage transfers the action and its paramlist to the collector.
func (a *Action) Manage() {
	a.heap.Manage(a.Series())
	a.Paramlist().Manage()
}

// Free releases a manual action along with its paramlist.
func (a *Action) Free() { a.heap.Free(a.Series()) }

// Invoke calls the dispatcher with a frame built by the caller.
func (a *Action) Invoke(out *Cell, frame *Context) error {
	dispatch, ok := a.extra.(Dispatcher)
	if !ok || dispatch == nil {
		return fmt.Errorf("action has no dispatcher")
	}
	return dispatch(out, frame)
}

// MakeFrame allocates a manual frame context for invoking a, with every
// argument slot unreadable until fulfilled.
func (h *Heap) MakeFrame(a *Action) (*Context, error) {
	params := a.Paramlist()
	f, err := h.MakeContext(KindFrame, params.Len())
	if err != nil {
		return nil, err
	}
	for i := 1; i <= params.Len(); i++ {
		slot, err := f.Append(params.Key(i))
		if err != nil {
			return nil, err
		}
		InitTrash(slot)
	}
	f.Archetype().binding = a.Series()
	return f, nil
}

// Handle is a singular array wrapping an opaque Go value, with an optional
// cleaner run when the collector reclaims it.
type Handle Series

func (hd *Handle) Head() *node.Header { return &hd.hdr }
func (hd *Handle) Series() *Series     { return (*Series)(hd) }

type handlePayload struct {
	data    interface{}
	cleaner func(interface{})
}

// MakeHandle allocates a manual handle.
func (h *Heap) MakeHandle(data interface{}, cleaner func(interface{})) *Handle {
	s, err := h.newSeries(cellWidth, 1, FlagArray|FlagHandle|FlagFixedSize)
	if err != nil {
		node.Fatal(nil, h.tick, "handle: %v", err)
	}
	h.addManual(s)
	s.extra = &handlePayload{data: data, cleaner: cleaner}
	return (*Handle)(s)
}

// Data is the wrapped value.
func (hd *Handle) Data() interface{} {
	if p, ok := hd.extra.(*handlePayload); ok {
		return p.data
	}
	return nil
}

func (hd *Handle) cleanup() {
	p, ok := hd.extra.(*handlePayload)
	if !ok || p.cleaner == nil {
		return
	}
	p.cleaner(p.data)
	p.cleaner = nil
}
