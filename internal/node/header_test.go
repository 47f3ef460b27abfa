package node

import (
	"strings"
	"testing"
	"unicode/utf8"
)

type testNode struct{ h Header }

func (n *testNode) Head() *Header { return &n.h }

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		b    byte
		want Detection
	}{
		{"ascii", 'a', DetectUTF8},
		{"nul", 0x00, DetectUTF8},
		{"two byte lead", 0xC3, DetectUTF8},
		{"four byte lead", 0xF0, DetectUTF8},
		{"live node", FlagNode | FlagManaged, DetectNode},
		{"pairing", FlagNode | FlagCell, DetectPairing},
		{"freed series", FreedByte, DetectFree},
		{"freed pairing", FreedByte | FlagCell, DetectFree},
		{"beyond utf8", 0xF8, DetectInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Detect(tt.b); got != tt.want {
				t.Errorf("Detect(%#x) = %s, want %s", tt.b, got, tt.want)
			}
		})
	}
}

func TestNodeBytesNeverStartUTF8(t *testing.T) {
	for b := 0; b < 256; b++ {
		if !IsNodeByte(byte(b)) && !IsFreeByte(byte(b)) {
			continue
		}
		if utf8.RuneStart(byte(b)) && utf8.Valid([]byte{byte(b)}) {
			t.Errorf("byte %#x is both a node pattern and a valid UTF-8 start", b)
		}
		if utf8.FullRune([]byte{byte(b), 0x80}) {
			r, _ := utf8.DecodeRune([]byte{byte(b), 0x80})
			if r != utf8.RuneError {
				t.Errorf("byte %#x decodes as %q", b, r)
			}
		}
	}
}

func TestHeaderLifecycle(t *testing.T) {
	n := &testNode{}
	n.h.Init(FlagManaged, 0x5, 42)
	if !n.h.IsLive() || !n.h.IsManaged() || n.h.IsFree() {
		t.Fatalf("fresh header has wrong state: %s", n.h.Dump())
	}
	n.h.Set(FlagMarked)
	if !n.h.IsMarked() {
		t.Fatal("mark bit not set")
	}
	n.h.Release()
	if n.h.IsLive() || !n.h.IsFree() {
		t.Fatalf("released header still live: %s", n.h.Dump())
	}
	if Detect(n.h.Leading()) != DetectFree {
		t.Errorf("released header detects as %s", Detect(n.h.Leading()))
	}
}

func TestFatalCarriesDiagnostics(t *testing.T) {
	n := &testNode{}
	n.h.Init(0, 0, 7)
	defer func() {
		r := recover()
		p, ok := r.(*Panic)
		if !ok {
			t.Fatalf("recovered %T, want *Panic", r)
		}
		if p.Tick != 7 || p.Now != 99 {
			t.Errorf("ticks = %d/%d, want 7/99", p.Tick, p.Now)
		}
		if !strings.Contains(p.Error(), "bad thing 3") || !strings.Contains(p.Error(), "leading=") {
			t.Errorf("unexpected message: %s", p.Error())
		}
	}()
	Fatal(n, 99, "bad thing %d", 3)
}
