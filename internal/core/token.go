package core

import (
	"fmt"
	"unicode/utf8"

	"github.com/funvibe/funcell/internal/config"
)

// Tokens (issues) keep short UTF-8 directly in the payload bits: the low
// byte is the length, the next seven bytes the text. Longer tokens point at
// a string series. A single codepoint is just a short token, and the empty
// token, codepoint 0, is the blackhole.

// InitChar makes c the single-codepoint token for r.
func InitChar(c *Cell, r rune) error {
	if r > config.MaxCodepoint {
		return fmt.Errorf("%w: %#x", ErrCodepointTooHigh, r)
	}
	if r < 0 || (r >= 0xD800 && r <= 0xDFFF) {
		return fmt.Errorf("%w: %#x", ErrInvalidCodepoint, r)
	}
	if r == 0 {
		InitBlackhole(c)
		return nil
	}
	var buf [utf8.UTFMax]byte
	n := utf8.EncodeRune(buf[:], r)
	initInlineToken(c, buf[:n])
	return nil
}

// InitBlackhole makes c the reserved codepoint-0 token.
func InitBlackhole(c *Cell) *Cell {
	*c = Cell{kind: uint8(KindIssue)}
	return c
}

// InitToken makes c an issue spelling text, promoting it to a managed
// string series when it does not fit in the cell.
func (h *Heap) InitToken(c *Cell, text string) error {
	if !utf8.ValidString(text) {
		return ErrInvalidUTF8
	}
	if len(text) <= config.TokenInlineBytes {
		initInlineToken(c, []byte(text))
		return nil
	}
	s := h.MakeText(text)
	s.hdr.Flags |= FlagFixedSize
	h.Manage(s)
	*c = Cell{kind: uint8(KindIssue), node: s}
	return nil
}

func initInlineToken(c *Cell, b []byte) {
	bits := uint64(len(b))
	for i, ch := range b {
		bits |= uint64(ch) << (8 * (i + 1))
	}
	*c = Cell{kind: uint8(KindIssue), bits: bits}
}

// TokenText is the spelling of an issue without the leading #.
func TokenText(c *Cell) string {
	if c.node != nil {
		return c.Series().Text()
	}
	n := int(c.bits & 0xFF)
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(c.bits >> (8 * (i + 1)))
	}
	return string(b)
}

// IsTokenInline reports whether an issue lives entirely in the cell.
func IsTokenInline(c *Cell) bool { return c.node == nil }

// IsBlackhole reports whether c is the codepoint-0 token. Blackholes are
// used as opt-in/opt-out signals rather than errors.
func IsBlackhole(c *Cell) bool {
	return c.kind == uint8(KindIssue) && c.node == nil && c.bits == 0
}

// Codepoint returns the codepoint of a single-codepoint issue.
func Codepoint(c *Cell) (rune, bool) {
	if Kind(c.kind) != KindIssue {
		return 0, false
	}
	if IsBlackhole(c) {
		return 0, true
	}
	text := TokenText(c)
	r, size := utf8.DecodeRuneInString(text)
	if size != len(text) || r == utf8.RuneError {
		return 0, false
	}
	return r, true
}
