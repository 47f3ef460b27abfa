package core

import "errors"

// Recoverable failures. They surface as ordinary error values; callers
// compare with errors.Is since most are wrapped with detail.
var (
	ErrInsufficientQuoting = errors.New("insufficient quoting")
	ErrCodepointTooHigh    = errors.New("codepoint too high")
	ErrInvalidCodepoint    = errors.New("invalid codepoint")
	ErrInvalidUTF8         = errors.New("invalid UTF-8")
	ErrOutOfMemory         = errors.New("out of memory")
	ErrIndexOutOfRange     = errors.New("index out of range")
	ErrSeriesHeld          = errors.New("series is held")
	ErrFixedSize           = errors.New("series has a fixed size")
	ErrBadForeignBuffer    = errors.New("bad foreign buffer")
)
