package core

import "github.com/funvibe/funcell/internal/node"

// Downcasts from a generic node to a specific subtype. The As* forms verify
// the header flags (in checked builds) and treat a mismatch as corruption;
// the Try* forms always check and report the result instead.
//
// Subtyping runs series -> array -> context, array -> action, and
// node -> pairing.

func seriesOf(n node.Node) *Series {
	switch x := n.(type) {
	case *Series:
		return x
	case *Array:
		return x.Series()
	case *Context:
		return x.Series()
	case *Action:
		return x.Series()
	case *Symbol:
		return x.Series()
	case *Handle:
		return x.Series()
	}
	return nil
}

func tick(n node.Node) uint64 {
	if s := seriesOf(n); s != nil && s.heap != nil {
		return s.heap.tick
	}
	return 0
}

func checkLive(n node.Node, what string) {
	if node.Checked && !n.Head().IsLive() {
		node.Fatal(n, tick(n), "%s downcast of a freed node", what)
	}
}

// AsSeries downcasts n to a series.
func AsSeries(n node.Node) *Series {
	s := seriesOf(n)
	if s == nil {
		node.Fatal(n, 0, "node is not a series (%T)", n)
	}
	checkLive(n, "series")
	return s
}

// TrySeries is the non-panicking AsSeries.
func TrySeries(n node.Node) (*Series, bool) {
	s := seriesOf(n)
	return s, s != nil && s.hdr.IsLive()
}

func downcast(n node.Node, flags uint32, what string) *Series {
	s := seriesOf(n)
	if s == nil {
		node.Fatal(n, 0, "node is not a %s (%T)", what, n)
	}
	if node.Checked {
		checkLive(n, what)
		if s.hdr.Flags&flags != flags {
			node.Fatal(n, s.heap.tick, "node is not a %s", what)
		}
	}
	return s
}

func tryDowncast(n node.Node, flags uint32) (*Series, bool) {
	s, ok := TrySeries(n)
	if !ok || s.hdr.Flags&flags != flags {
		return nil, false
	}
	return s, true
}

func AsArray(n node.Node) *Array     { return (*Array)(downcast(n, FlagArray, "array")) }
func AsContext(n node.Node) *Context { return (*Context)(downcast(n, FlagArray|FlagVarlist, "context")) }
func AsAction(n node.Node) *Action   { return (*Action)(downcast(n, FlagArray|FlagDetails, "action")) }
func AsSymbol(n node.Node) *Symbol   { return (*Symbol)(downcast(n, FlagSymbol, "symbol")) }
func AsHandle(n node.Node) *Handle   { return (*Handle)(downcast(n, FlagArray|FlagHandle, "handle")) }

// AsPairing downcasts n to a pairing.
func AsPairing(n node.Node) *Pairing {
	p, ok := n.(*Pairing)
	if !ok {
		node.Fatal(n, tick(n), "node is not a pairing (%T)", n)
	}
	if node.Checked && (!p.hdr.IsPairing() || !p.hdr.IsLive()) {
		node.Fatal(p, 0, "pairing header is corrupt")
	}
	return p
}

func TryArray(n node.Node) (*Array, bool) {
	s, ok := tryDowncast(n, FlagArray)
	return (*Array)(s), ok
}

func TryContext(n node.Node) (*Context, bool) {
	s, ok := tryDowncast(n, FlagArray|FlagVarlist)
	return (*Context)(s), ok
}

func TryAction(n node.Node) (*Action, bool) {
	s, ok := tryDowncast(n, FlagArray|FlagDetails)
	return (*Action)(s), ok
}

func IsArray(n node.Node) bool   { _, ok := TryArray(n); return ok }
func IsContext(n node.Node) bool { _, ok := TryContext(n); return ok }
func IsAction(n node.Node) bool  { _, ok := TryAction(n); return ok }

// UncheckedArray converts without any verification, for hot paths that
// already know the subtype.
func UncheckedArray(n node.Node) *Array { return (*Array)(seriesOf(n)) }

// UncheckedContext converts without any verification.
func UncheckedContext(n node.Node) *Context { return (*Context)(seriesOf(n)) }
