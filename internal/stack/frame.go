package stack

import (
	"fmt"

	"github.com/funvibe/funcell/internal/core"
	"github.com/funvibe/funcell/internal/node"
)

// Feed is the cursor a frame evaluates from: an array, a position in it,
// and the specifier its words resolve through.
type Feed struct {
	Array     *core.Array
	Index     int
	Specifier node.Node
}

// IsEnd reports whether the feed is exhausted.
func (f *Feed) IsEnd() bool { return f.Array == nil || f.Array.IsEnd(f.Index) }

// Next returns the current cell and advances, or false at the end.
func (f *Feed) Next() (*core.Cell, bool) {
	if f.IsEnd() {
		return nil, false
	}
	c := f.Array.At(f.Index)
	f.Index++
	return c, true
}

// Frame is one evaluation step in progress.
type Frame struct {
	Feed  Feed
	Out   core.Cell
	Spare core.Cell

	// Varlist is the frame context being fulfilled, if this step is an
	// action invocation.
	Varlist *core.Context

	Label string

	// Baseline is the data stack index when the frame was pushed.
	Baseline Index

	prior *Frame
}

// NewFrame makes a frame reading from a. a may be nil.
func NewFrame(label string, a *core.Array, specifier node.Node) *Frame {
	f := &Frame{Label: label, Feed: Feed{Array: a, Specifier: specifier}}
	core.InitTrash(&f.Out)
	core.InitTrash(&f.Spare)
	return f
}

// Prior is the frame below f, nil for the bottom frame.
func (f *Frame) Prior() *Frame { return f.prior }

func (f *Frame) String() string {
	return fmt.Sprintf("%s@%d", f.Label, f.Feed.Index)
}

// Frames is the frame stack. A bottom frame is installed at construction
// and is never dropped, so Top is never nil.
type Frames struct {
	heap   *core.Heap
	data   *Data
	bottom *Frame
	top    *Frame
	depth  int
	max    int
}

// NewFrames builds a frame stack whose frames record baselines on data.
func NewFrames(h *core.Heap, data *Data) *Frames {
	bottom := NewFrame("bottom", nil, nil)
	return &Frames{
		heap:   h,
		data:   data,
		bottom: bottom,
		top:    bottom,
		depth:  1,
		max:    h.Config().MaxFrameDepth,
	}
}

// Push makes f the top frame and records the data stack baseline.
func (fs *Frames) Push(f *Frame) error {
	if fs.depth >= fs.max {
		return fmt.Errorf("%w: depth %d", ErrFrameOverflow, fs.depth)
	}
	if f.prior != nil || f == fs.bottom {
		node.Fatal(nil, fs.heap.Tick(), "frame %s pushed twice", f)
	}
	f.Baseline = fs.data.Index()
	f.prior = fs.top
	fs.top = f
	fs.depth++
	return nil
}

// Drop removes f, which must be the top frame and not the bottom one.
func (fs *Frames) Drop(f *Frame) {
	if f != fs.top {
		node.Fatal(nil, fs.heap.Tick(), "dropping frame %s that is not on top (top is %s)", f, fs.top)
	}
	if f == fs.bottom {
		node.Fatal(nil, fs.heap.Tick(), "dropping the bottom frame")
	}
	fs.top = f.prior
	f.prior = nil
	fs.depth--
}

// DropTo drops frames until f is on top.
func (fs *Frames) DropTo(f *Frame) {
	for fs.top != f {
		if fs.top == fs.bottom {
			node.Fatal(nil, fs.heap.Tick(), "frame %s is not on the stack", f)
		}
		fs.Drop(fs.top)
	}
}

func (fs *Frames) Top() *Frame    { return fs.top }
func (fs *Frames) Bottom() *Frame { return fs.bottom }
func (fs *Frames) Depth() int     { return fs.depth }

// Each visits frames from the top down until fn returns false.
func (fs *Frames) Each(fn func(f *Frame) bool) {
	for f := fs.top; f != nil; f = f.prior {
		if !fn(f) {
			return
		}
	}
}

// TraceRoots reports every frame's feed, output cells and varlist.
func (fs *Frames) TraceRoots(t core.Tracer) {
	for f := fs.top; f != nil; f = f.prior {
		if f.Feed.Array != nil {
			t.TraceNode(f.Feed.Array)
		}
		if f.Feed.Specifier != nil {
			t.TraceNode(f.Feed.Specifier)
		}
		t.TraceCell(&f.Out)
		t.TraceCell(&f.Spare)
		if f.Varlist != nil {
			t.TraceNode(f.Varlist)
		}
	}
}
