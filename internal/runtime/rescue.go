package runtime

import (
	"errors"
	"fmt"

	"github.com/funvibe/funcell/internal/node"
	"github.com/funvibe/funcell/internal/stack"
)

// Balance is the state Rescue restores after a failure.
type Balance struct {
	DataIndex  stack.Index
	Frame      *stack.Frame
	GuardDepth int
	Tick       uint64
}

// Capture records the current stack balance.
func (r *Runtime) Capture() Balance {
	return Balance{
		DataIndex:  r.data.Index(),
		Frame:      r.frames.Top(),
		GuardDepth: r.heap.GuardDepth(),
		Tick:       r.heap.Tick(),
	}
}

// Restore unwinds to b: the data stack, frame stack and guard stack drop
// back to their captured depth, and manual nodes allocated since b are
// freed, since whoever allocated them will never get to.
func (r *Runtime) Restore(b Balance) {
	r.frames.DropTo(b.Frame)
	if r.data.Index() > b.DataIndex {
		r.data.DropTo(b.DataIndex)
	}
	r.heap.DropGuards(b.GuardDepth)
	if n := r.heap.FreeManualsSince(b.Tick); n > 0 && r.cfg.Verbose {
		r.log.Printf("runtime: unwinding freed %d manual nodes", n)
	}
}

// failure carries an error thrown by Fail up to the nearest Rescue.
type failure struct {
	err error
}

// Fail abandons the current operation with err, unwinding to the nearest
// Rescue. It must only be called inside a Rescue.
func (r *Runtime) Fail(err error) {
	panic(&failure{err: err})
}

// Rescue runs fn. If fn returns an error or calls Fail, the stacks are
// restored to their balance at entry before the error is returned.
//
// Fatal panics (*node.Panic) are not recovered; they are logged with the
// runtime id and re-raised.
func (r *Runtime) Rescue(fn func() error) (err error) {
	b := r.Capture()
	defer func() {
		if rec := recover(); rec != nil {
			switch x := rec.(type) {
			case *failure:
				err = x.err
			case *node.Panic:
				r.log.Printf("runtime: %s: %v", r.id, x)
				panic(x)
			default:
				panic(rec)
			}
		}
		if err != nil {
			r.Restore(b)
		}
	}()
	return fn()
}

// ErrUnbalanced is returned by Balanced when fn left the stacks changed.
var ErrUnbalanced = errors.New("stack imbalance")

// Balanced runs fn and reports ErrUnbalanced if it returned without error
// but left values on the data stack, frames on the frame stack, or guards
// behind. The stacks are restored either way.
func (r *Runtime) Balanced(fn func() error) error {
	b := r.Capture()
	if err := r.Rescue(fn); err != nil {
		return err
	}
	after := r.Capture()
	if after.DataIndex != b.DataIndex || after.Frame != b.Frame || after.GuardDepth != b.GuardDepth {
		r.Restore(b)
		return fmt.Errorf("%w: data %d->%d, guards %d->%d",
			ErrUnbalanced, b.DataIndex, after.DataIndex, b.GuardDepth, after.GuardDepth)
	}
	return nil
}
