package core

import "github.com/funvibe/funcell/internal/config"

// Kind is a base datatype. A cell's kind byte is base + 64*depth for quoting
// that fits in the byte; KindQuoted marks quoting that moved out of line.
type Kind uint8

const (
	KindTrash   Kind = iota // unreadable: data stack slot 0, unfulfilled args
	KindVoid                // absence of a value
	KindBlank               // _
	KindLogic               // true/false
	KindInteger             // 64-bit signed
	KindDecimal             // float64
	KindIssue               // #token, single codepoints are issues too
	KindText                // "string"
	KindBinary              // #{bytes}
	KindWord                // word
	KindSetWord             // word:
	KindGetWord             // :word
	KindBlock               // [...]
	KindGroup               // (...)
	KindObject              // make object! [...]
	KindFrame               // function invocation context
	KindAction              // function
	KindHandle              // opaque Go value
	kindMax

	// KindQuoted is never a base kind; only the kind byte of a cell whose
	// quoting lives in a pairing.
	KindQuoted Kind = config.QuoteShift - 1
)

var kindNames = [...]string{
	KindTrash:   "trash",
	KindVoid:    "void",
	KindBlank:   "blank",
	KindLogic:   "logic",
	KindInteger: "integer",
	KindDecimal: "decimal",
	KindIssue:   "issue",
	KindText:    "text",
	KindBinary:  "binary",
	KindWord:    "word",
	KindSetWord: "set-word",
	KindGetWord: "get-word",
	KindBlock:   "block",
	KindGroup:   "group",
	KindObject:  "object",
	KindFrame:   "frame",
	KindAction:  "action",
	KindHandle:  "handle",
}

func (k Kind) String() string {
	if k == KindQuoted {
		return "quoted"
	}
	if k < kindMax {
		return kindNames[k]
	}
	return "!kind"
}

// IsWord reports whether k is one of the word kinds.
func (k Kind) IsWord() bool {
	return k == KindWord || k == KindSetWord || k == KindGetWord
}

// IsArray reports whether cells of kind k point at an array and position.
func (k Kind) IsArray() bool {
	return k == KindBlock || k == KindGroup
}

// IsContext reports whether cells of kind k point at a varlist.
func (k Kind) IsContext() bool {
	return k == KindObject || k == KindFrame
}

// IsBindable reports whether the extra field of a cell of kind k carries a
// binding or specifier.
func (k Kind) IsBindable() bool {
	return k.IsWord() || k.IsArray() || k == KindAction
}

func kindByte(heart Kind, depth int) uint8 {
	return uint8(heart) + uint8(depth*config.QuoteShift)
}
