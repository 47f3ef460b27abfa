package core

import (
	"testing"

	"github.com/funvibe/funcell/internal/config"
)

func TestInitChar(t *testing.T) {
	tests := []struct {
		name    string
		r       rune
		wantErr error
	}{
		{"ascii", 'a', nil},
		{"two bytes", 'é', nil},
		{"three bytes", '€', nil},
		{"four bytes", '😀', nil},
		{"max", config.MaxCodepoint, nil},
		{"too high", config.MaxCodepoint + 1, ErrCodepointTooHigh},
		{"surrogate", 0xD800, ErrInvalidCodepoint},
		{"negative", -1, ErrInvalidCodepoint},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Cell
			err := InitChar(&c, tt.r)
			if tt.wantErr != nil {
				expectErr(t, err, tt.wantErr)
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if !IsTokenInline(&c) {
				t.Error("single codepoint should be inline")
			}
			got, ok := Codepoint(&c)
			if !ok || got != tt.r {
				t.Errorf("Codepoint = %U, %v", got, ok)
			}
		})
	}
}

func TestBlackhole(t *testing.T) {
	var c Cell
	if err := InitChar(&c, 0); err != nil {
		t.Fatal(err)
	}
	if !IsBlackhole(&c) {
		t.Fatal("codepoint 0 should be the blackhole")
	}
	if r, ok := Codepoint(&c); !ok || r != 0 {
		t.Errorf("Codepoint = %U, %v", r, ok)
	}
	var a Cell
	InitChar(&a, 'a')
	if IsBlackhole(&a) {
		t.Error("'a' reported as blackhole")
	}
	if c.String() != "#" {
		t.Errorf("mold = %q", c.String())
	}
}

func TestTokens(t *testing.T) {
	h := newTestHeap(t)
	tests := []struct {
		text   string
		inline bool
	}{
		{"", true},
		{"abc", true},
		{"1234567", true},
		{"12345678", false},
		{"héllo", true},
		{"a-much-longer-token", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			var c Cell
			if err := h.InitToken(&c, tt.text); err != nil {
				t.Fatal(err)
			}
			if IsTokenInline(&c) != tt.inline {
				t.Errorf("inline = %v, want %v", IsTokenInline(&c), tt.inline)
			}
			if got := TokenText(&c); got != tt.text {
				t.Errorf("text = %q", got)
			}
			if c.Type() != KindIssue {
				t.Errorf("type = %s", c.Type())
			}
		})
	}

	var c Cell
	expectErr(t, h.InitToken(&c, "\xff"), ErrInvalidUTF8)
}

func TestLongTokenIsCollected(t *testing.T) {
	h := newTestHeap(t)
	var c Cell
	if err := h.InitToken(&c, "promoted-token"); err != nil {
		t.Fatal(err)
	}
	s := c.Series()
	if !s.Head().IsManaged() {
		t.Fatal("promoted token should be managed")
	}
	expectErr(t, s.Extend(1), ErrFixedSize)

	h.GuardCell(&c)
	h.Collect()
	if !s.Head().IsLive() {
		t.Fatal("guarded token series swept")
	}
	h.UnguardCell(&c)
	h.Collect()
	if s.Head().IsLive() {
		t.Error("unreferenced token series survived")
	}
}

func TestMultiCodepointIsNotChar(t *testing.T) {
	h := newTestHeap(t)
	var c Cell
	h.InitToken(&c, "ab")
	if _, ok := Codepoint(&c); ok {
		t.Error("two-codepoint token reported as a char")
	}
}
