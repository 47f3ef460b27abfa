package core

import (
	"fmt"
	"unsafe"
)

// Repossess adopts a buffer allocated outside the heap as the content of a
// managed byte series of width-byte units, without copying. This is the one
// place foreign memory enters the node graph, so the buffer is validated
// first: it must be a whole number of units, and for power-of-two widths up
// to 8 its start must be aligned to the width.
//
// The caller must not touch buf afterwards.
func (h *Heap) Repossess(buf []byte, width int) (*Series, error) {
	if width <= 0 {
		return nil, fmt.Errorf("%w: width %d", ErrBadForeignBuffer, width)
	}
	if len(buf)%width != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of width %d",
			ErrBadForeignBuffer, len(buf), width)
	}
	units := len(buf) / width
	if units > h.cfg.MaxSeriesUnits {
		return nil, fmt.Errorf("%w: %d units", ErrOutOfMemory, units)
	}
	if len(buf) > 0 && width <= 8 && width&(width-1) == 0 {
		if uintptr(unsafe.Pointer(&buf[0]))%uintptr(width) != 0 {
			return nil, fmt.Errorf("%w: buffer not aligned to %d", ErrBadForeignBuffer, width)
		}
	}

	s := &Series{heap: h, width: width}
	s.hdr.Init(0, FlagDynamic|FlagRepossessed, h.nextTick())
	s.bytes = buf[:len(buf):len(buf)]
	s.used = units
	s.rest = units
	h.charge(len(buf))
	h.addManaged(s)
	return s, nil
}

// Borrow lends the raw content of a non-array series to fn. The series is
// held for the duration, so any attempt to resize it fails with
// ErrSeriesHeld; the slice must not be retained after fn returns.
func (s *Series) Borrow(fn func(raw []byte) error) error {
	if s.isArray() {
		return fmt.Errorf("%w: cannot borrow an array as bytes", ErrBadForeignBuffer)
	}
	wasHeld := s.hdr.Flags&FlagHeld != 0
	s.hdr.Flags |= FlagHeld
	defer func() {
		if !wasHeld {
			s.hdr.Flags &^= FlagHeld
		}
	}()
	return fn(s.Bytes())
}

// IsHeld reports whether the series is currently lent out.
func (s *Series) IsHeld() bool { return s.hdr.Flags&FlagHeld != 0 }
