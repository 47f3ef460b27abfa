// Package node defines the header every heap-lifecycle object carries and
// the byte-level test that tells live nodes, freed nodes and UTF-8 apart.
//
// The leading header byte is laid out so that a live node always starts with
// a UTF-8 continuation byte (10xxxxxx) and a freed node starts with 0xC0 or
// 0xC1, both of which are illegal anywhere in UTF-8. A byte that begins an
// encoded string can therefore never be mistaken for a node, and vice versa.
// Go code dispatches on real types; the layout is kept because snapshots,
// diagnostics and the verifier report it.
package node

import (
	"fmt"
	"strings"
)

// Leading header byte flags.
const (
	FlagNode    byte = 0x80 // always set on anything that came from the pool
	FlagFree    byte = 0x40 // set only on reclaimed nodes
	FlagManaged byte = 0x20 // lifetime owned by the collector
	FlagRoot    byte = 0x10 // marked unconditionally at the start of a cycle
	FlagMarked  byte = 0x08 // reached during the current mark phase
	FlagStack   byte = 0x04 // lifetime tied to a frame, not the pool
	FlagCell    byte = 0x01 // two-cell pairing rather than a series
)

const (
	patternMask byte = 0xC0
	nodePattern byte = 0x80

	// FreedByte is the whole leading byte of a reclaimed series.
	FreedByte = FlagNode | FlagFree
)

// IsNodeByte reports whether b is the leading byte of a live node.
func IsNodeByte(b byte) bool {
	return b&patternMask == nodePattern
}

// IsFreeByte reports whether b is the leading byte of a reclaimed node.
func IsFreeByte(b byte) bool {
	return b == FreedByte || b == FreedByte|FlagCell
}

// Detection is the outcome of classifying a leading byte.
type Detection uint8

const (
	DetectUTF8 Detection = iota
	DetectNode
	DetectPairing
	DetectFree
	DetectInvalid
)

var detectionNames = [...]string{
	DetectUTF8:    "utf8",
	DetectNode:    "node",
	DetectPairing: "pairing",
	DetectFree:    "free",
	DetectInvalid: "invalid",
}

func (d Detection) String() string { return detectionNames[d] }

// Detect classifies the first byte of something claimed to be either text or
// a node without looking any further.
func Detect(b byte) Detection {
	switch {
	case b < 0x80:
		return DetectUTF8
	case IsNodeByte(b):
		if b&FlagCell != 0 {
			return DetectPairing
		}
		return DetectNode
	case IsFreeByte(b):
		return DetectFree
	case b <= 0xF4:
		return DetectUTF8
	default:
		return DetectInvalid
	}
}

// Header is embedded at the front of every pooled object.
type Header struct {
	leading byte

	// Flags holds subtype bits owned by the core package (array, varlist,
	// dynamic, ...). Node-level code never interprets them.
	Flags uint32

	// Tick is the allocation tick, reported by fatal diagnostics.
	Tick uint64

	slot int
}

// Node is anything with a pool header.
type Node interface {
	Head() *Header
}

// Init stamps a fresh header. extra may add FlagCell or FlagManaged.
func (h *Header) Init(extra byte, flags uint32, tick uint64) {
	h.leading = FlagNode | extra
	h.Flags = flags
	h.Tick = tick
	h.slot = -1
}

func (h *Header) Leading() byte { return h.leading }

func (h *Header) Has(f byte) bool { return h.leading&f != 0 }
func (h *Header) Set(f byte)      { h.leading |= f }
func (h *Header) Clear(f byte)    { h.leading &^= f }

func (h *Header) HasFlags(f uint32) bool { return h.Flags&f == f }

func (h *Header) IsLive() bool    { return IsNodeByte(h.leading) }
func (h *Header) IsFree() bool    { return h.leading&FlagFree != 0 }
func (h *Header) IsManaged() bool { return h.leading&FlagManaged != 0 }
func (h *Header) IsMarked() bool  { return h.leading&FlagMarked != 0 }
func (h *Header) IsPairing() bool { return h.leading&FlagCell != 0 }

// Slot is the node's position in the pool list that owns it.
func (h *Header) Slot() int        { return h.slot }
func (h *Header) SetSlot(slot int) { h.slot = slot }

// Release turns the header into the freed pattern, keeping only the cell bit
// so a dangling pairing is still recognizable as one.
func (h *Header) Release() {
	h.leading = FreedByte | (h.leading & FlagCell)
	h.slot = -1
}

var leadingNames = []struct {
	bit  byte
	name string
}{
	{FlagNode, "node"},
	{FlagFree, "free"},
	{FlagManaged, "managed"},
	{FlagRoot, "root"},
	{FlagMarked, "marked"},
	{FlagStack, "stack"},
	{FlagCell, "cell"},
}

// Dump renders the header bits for diagnostics.
func (h *Header) Dump() string {
	var names []string
	for _, ln := range leadingNames {
		if h.leading&ln.bit != 0 {
			names = append(names, ln.name)
		}
	}
	return fmt.Sprintf("leading=%08b [%s] (%s) flags=%032b tick=%d slot=%d",
		h.leading, strings.Join(names, " "), Detect(h.leading), h.Flags, h.Tick, h.slot)
}
