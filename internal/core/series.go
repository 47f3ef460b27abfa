package core

import (
	"fmt"
	"unicode/utf8"
	"unsafe"

	"github.com/funvibe/funcell/internal/node"
)

// Series subtype flags, kept in node.Header.Flags.
const (
	FlagDynamic uint32 = 1 << iota
	FlagArray
	FlagVarlist
	FlagKeylist
	FlagDetails
	FlagPatch
	FlagHandle
	FlagSymbol
	FlagString
	FlagFixedSize
	FlagHeld
	FlagRepossessed
)

// PairingFlagShared is set on a pairing once more than one cell refers to it.
const PairingFlagShared uint32 = 1 << 31

// cellWidth is the element width of every array.
const cellWidth = int(unsafe.Sizeof(Cell{}))

// inlineBytes bounds the width a singular byte series can hold in place.
const inlineBytes = 16

// Series is a growable run of fixed-width units. Singular series keep at
// most one unit inside the node; dynamic ones own a buffer of bias+rest
// units whose logical content is [bias, bias+used).
//
// Units in [used, rest) are kept zeroed.
type Series struct {
	hdr  node.Header
	heap *Heap

	width int
	used  int
	bias  int
	rest  int

	bytes []byte
	cells []Cell

	inlineCell  [1]Cell
	inlineBytes [inlineBytes]byte

	// link and misc carry subtype-specific references (keylist, paramlist,
	// patch next/variant). Which ones the collector follows depends on flags.
	link node.Node
	misc node.Node

	// extra carries Go values: handle data, action dispatcher.
	extra interface{}
}

func (s *Series) Head() *node.Header { return &s.hdr }

func (s *Series) Width() int { return s.width }
func (s *Series) Len() int   { return s.used }
func (s *Series) Rest() int  { return s.rest }
func (s *Series) Bias() int  { return s.bias }

// Capacity is the total buffer size in units, including the bias.
func (s *Series) Capacity() int { return s.bias + s.rest }

func (s *Series) IsDynamic() bool { return s.hdr.Flags&FlagDynamic != 0 }
func (s *Series) isArray() bool   { return s.hdr.Flags&FlagArray != 0 }

// Bytes is the logical content of a non-array series. The slice aliases the
// buffer and is invalidated by any resize.
func (s *Series) Bytes() []byte {
	if s.isArray() {
		node.Fatal(s, s.heap.tick, "Bytes on an array")
	}
	return s.bytes[s.bias*s.width : (s.bias+s.used)*s.width]
}

// Text is the content of a string series.
func (s *Series) Text() string {
	return string(s.Bytes())
}

func (h *Heap) newSeries(width, capacity int, flags uint32) (*Series, error) {
	if width <= 0 {
		node.Fatal(nil, h.tick, "series width %d", width)
	}
	if capacity < 0 || capacity > h.cfg.MaxSeriesUnits {
		return nil, fmt.Errorf("%w: series of %d units", ErrOutOfMemory, capacity)
	}
	s := &Series{heap: h, width: width}
	s.hdr.Init(0, flags, h.nextTick())
	array := flags&FlagArray != 0

	if capacity <= 1 && (array || width <= inlineBytes) {
		s.rest = 1
		if array {
			s.cells = s.inlineCell[:]
		} else {
			s.bytes = s.inlineBytes[:width]
		}
		s.hdr.Flags &^= FlagDynamic
		h.charge(int(unsafe.Sizeof(*s)))
		return s, nil
	}

	s.hdr.Flags |= FlagDynamic
	s.rest = capacity
	if array {
		s.cells = make([]Cell, capacity)
		h.charge(capacity * cellWidth)
	} else {
		s.bytes = make([]byte, capacity*width)
		h.charge(capacity * width)
	}
	return s, nil
}

// MakeSeries allocates a manual series of width-byte units.
func (h *Heap) MakeSeries(width, capacity int, flags uint32) (*Series, error) {
	s, err := h.newSeries(width, capacity, flags&^FlagArray)
	if err != nil {
		return nil, err
	}
	h.addManual(s)
	return s, nil
}

// MakeText allocates a manual string series holding str.
func (h *Heap) MakeText(str string) *Series {
	s, err := h.MakeSeries(1, len(str)+1, FlagString)
	if err != nil {
		node.Fatal(nil, h.tick, "text of %d bytes: %v", len(str), err)
	}
	s.used = len(str)
	copy(s.bytes, str)
	return s
}

// MakeTextFromBytes validates b as UTF-8 before building a string series.
func (h *Heap) MakeTextFromBytes(b []byte) (*Series, error) {
	if !utf8.Valid(b) {
		return nil, ErrInvalidUTF8
	}
	if len(b)+1 > h.cfg.MaxSeriesUnits {
		return nil, fmt.Errorf("%w: text of %d bytes", ErrOutOfMemory, len(b))
	}
	return h.MakeText(string(b)), nil
}

// MakeBinary allocates a manual byte series holding a copy of b.
func (h *Heap) MakeBinary(b []byte) (*Series, error) {
	s, err := h.MakeSeries(1, len(b), 0)
	if err != nil {
		return nil, err
	}
	s.used = len(b)
	copy(s.bytes, b)
	return s, nil
}

// Unit moves. Indices here are physical, i.e. already offset by bias.

func (s *Series) moveUnits(dst, src, n int) {
	if n <= 0 {
		return
	}
	if s.isArray() {
		copy(s.cells[dst:dst+n], s.cells[src:src+n])
		return
	}
	w := s.width
	copy(s.bytes[dst*w:(dst+n)*w], s.bytes[src*w:(src+n)*w])
}

func (s *Series) zeroUnits(from, to int) {
	if to <= from {
		return
	}
	if s.isArray() {
		clear(s.cells[from:to])
		return
	}
	clear(s.bytes[from*s.width : to*s.width])
}

func (s *Series) checkResizable() error {
	switch {
	case s.hdr.Flags&FlagHeld != 0:
		return ErrSeriesHeld
	case s.hdr.Flags&FlagFixedSize != 0:
		return ErrFixedSize
	}
	return nil
}

// biasCeiling is the largest bias head removal may leave behind.
func (s *Series) biasCeiling() int {
	ceiling := s.Capacity() * s.heap.cfg.BiasCeilingPercent / 100
	if ceiling > s.heap.cfg.MaxSeriesBias {
		ceiling = s.heap.cfg.MaxSeriesBias
	}
	return ceiling
}

// grow replaces the buffer with one of at least need units and no bias.
func (s *Series) grow(need int) error {
	limit := s.heap.cfg.MaxSeriesUnits
	if need > limit {
		return fmt.Errorf("%w: series of %d units exceeds %d", ErrOutOfMemory, need, limit)
	}
	newCap := s.Capacity() * 2
	if newCap < need {
		newCap = need
	}
	if newCap < 4 {
		newCap = 4
	}
	if newCap > limit {
		newCap = limit
	}

	if s.isArray() {
		cells := make([]Cell, newCap)
		copy(cells, s.cells[s.bias:s.bias+s.used])
		s.cells = cells
		s.heap.charge(newCap * cellWidth)
	} else {
		w := s.width
		bytes := make([]byte, newCap*w)
		copy(bytes, s.bytes[s.bias*w:(s.bias+s.used)*w])
		s.bytes = bytes
		s.heap.charge(newCap * w)
	}
	s.hdr.Flags |= FlagDynamic
	s.hdr.Flags &^= FlagRepossessed
	s.bias = 0
	s.rest = newCap
	s.heap.stats.Expansions++
	return nil
}

// Extend adds delta zeroed units at the tail.
func (s *Series) Extend(delta int) error {
	node.Assert(delta >= 0, s, s.heap.tick, "negative extend %d", delta)
	if err := s.checkResizable(); err != nil {
		return err
	}
	need := s.used + delta
	switch {
	case need <= s.rest:
	case s.bias > 0 && need <= s.Capacity():
		s.Unbias(true)
	default:
		if err := s.grow(need); err != nil {
			return err
		}
	}
	s.used = need
	return nil
}

// Expand opens a gap of delta zeroed units at index, shifting the tail up.
// index clips to [0, used].
func (s *Series) Expand(index, delta int) error {
	if index < 0 {
		index = 0
	}
	if index > s.used {
		index = s.used
	}
	old := s.used
	if err := s.Extend(delta); err != nil {
		return err
	}
	base := s.bias
	s.moveUnits(base+index+delta, base+index, old-index)
	s.zeroUnits(base+index, base+index+delta)
	return nil
}

// RemoveUnits deletes count units starting at offset and returns how many
// were actually removed; out-of-range requests clip to the content.
//
// Removing from the head of a dynamic series only moves the bias. Once the
// bias passes the ceiling the buffer is compacted with a single move.
func (s *Series) RemoveUnits(offset, count int) int {
	if offset < 0 {
		count += offset
		offset = 0
	}
	if count <= 0 || offset >= s.used {
		return 0
	}
	if count > s.used-offset {
		count = s.used - offset
	}

	if offset == 0 && s.IsDynamic() {
		s.zeroUnits(s.bias, s.bias+count)
		s.bias += count
		s.rest -= count
		s.used -= count
		if s.bias > s.biasCeiling() {
			s.Unbias(true)
		}
		return count
	}

	base := s.bias
	s.moveUnits(base+offset, base+offset+count, s.used-offset-count)
	s.zeroUnits(base+s.used-count, base+s.used)
	s.used -= count
	return count
}

// Unbias folds the bias back into rest. With keep the content moves to the
// start of the buffer; without it the content is discarded and used drops
// to zero.
func (s *Series) Unbias(keep bool) {
	if s.bias == 0 {
		return
	}
	if keep {
		s.moveUnits(0, s.bias, s.used)
		s.zeroUnits(s.used, s.bias+s.used)
		s.heap.stats.Memmoves++
	} else {
		s.zeroUnits(s.bias, s.bias+s.used)
		s.used = 0
	}
	s.rest += s.bias
	s.bias = 0
}

// Reset empties the series, keeping its buffer.
func (s *Series) Reset() {
	s.zeroUnits(s.bias, s.bias+s.used)
	s.used = 0
	s.rest += s.bias
	s.bias = 0
}

// SetLen sets used directly for callers that filled the buffer themselves.
// Shrinking zeroes the dropped units.
func (s *Series) SetLen(n int) {
	node.Assert(n >= 0 && n <= s.rest, s, s.heap.tick, "SetLen(%d) with rest %d", n, s.rest)
	if n < s.used {
		s.zeroUnits(s.bias+n, s.bias+s.used)
	}
	s.used = n
}

// AppendBytes appends raw bytes to a width-1 series.
func (s *Series) AppendBytes(b []byte) error {
	node.Assert(s.width == 1 && !s.isArray(), s, s.heap.tick, "AppendBytes on width %d", s.width)
	old := s.used
	if err := s.Extend(len(b)); err != nil {
		return err
	}
	copy(s.bytes[s.bias+old:], b)
	return nil
}
