package node

import (
	"fmt"
	"strings"
)

// Panic is the value passed to panic() for representation corruption. It is
// never recovered by the runtime's trap machinery.
type Panic struct {
	Message string
	Tick    uint64 // allocation tick of the offending node, 0 if none
	Now     uint64 // pool tick when the problem was detected
	Dump    string
}

func (p *Panic) Error() string {
	var sb strings.Builder
	sb.WriteString("fatal: ")
	sb.WriteString(p.Message)
	if p.Dump != "" {
		fmt.Fprintf(&sb, "\n  node: %s", p.Dump)
	}
	fmt.Fprintf(&sb, "\n  allocated at tick %d, detected at tick %d", p.Tick, p.Now)
	return sb.String()
}

// Fatal panics with a *Panic describing n. n may be nil.
func Fatal(n Node, now uint64, format string, args ...interface{}) {
	p := &Panic{Message: fmt.Sprintf(format, args...), Now: now}
	if n != nil {
		if h := n.Head(); h != nil {
			p.Tick = h.Tick
			p.Dump = h.Dump()
		}
	}
	panic(p)
}

// Assert is Fatal guarded by cond, skipped entirely in release builds.
func Assert(cond bool, n Node, now uint64, format string, args ...interface{}) {
	if Checked && !cond {
		Fatal(n, now, format, args...)
	}
}
