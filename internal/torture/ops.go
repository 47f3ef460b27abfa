package torture

import (
	"fmt"

	"github.com/funvibe/funcell/internal/core"
	"github.com/funvibe/funcell/internal/stack"
)

var words = []string{"alpha", "beta", "gamma", "delta", "epsilon", "zeta"}

func (w *worker) push() error {
	var c core.Cell
	switch w.rng.Intn(4) {
	case 0:
		core.InitInteger(&c, w.rng.Int63())
	case 1:
		core.InitDecimal(&c, w.rng.Float64())
	case 2:
		core.InitLogic(&c, w.rng.Intn(2) == 0)
	default:
		core.CopyCell(&c, &w.r.Globals().Blank)
	}
	return w.r.Data().Push(&c)
}

func (w *worker) pop() error {
	if w.r.Data().Index() > w.base {
		w.r.Data().Pop()
	}
	return nil
}

// array builds a block from a run of stack values, managed, and pushes it.
func (w *worker) array() error {
	n := w.rng.Intn(8)
	mark := w.r.Data().Index()
	for i := 0; i < n; i++ {
		if c := w.pick(); c != nil && w.rng.Intn(2) == 0 {
			var copied core.Cell
			core.CopyCell(&copied, c)
			if err := w.r.Data().Push(&copied); err != nil {
				return err
			}
			continue
		}
		if err := w.push(); err != nil {
			return err
		}
	}
	a, err := w.r.Data().PopToArray(mark)
	if err != nil {
		return err
	}
	w.h.Manage(a)
	var block core.Cell
	if w.rng.Intn(3) == 0 {
		core.InitGroup(&block, a)
	} else {
		core.InitBlock(&block, a)
	}
	return w.r.Data().Push(&block)
}

func (w *worker) quote() error {
	c := w.pick()
	if c == nil {
		return nil
	}
	depth := w.rng.Intn(12)
	w.h.Quotify(c, depth)
	if d := core.QuoteDepth(c); d > w.report.MaxQuoteDepth {
		w.report.MaxQuoteDepth = d
	}
	return nil
}

// unquote sometimes asks for more levels than there are, which must fail
// without touching the cell.
func (w *worker) unquote() error {
	c := w.pick()
	if c == nil {
		return nil
	}
	depth := w.rng.Intn(core.QuoteDepth(c) + 2)
	_, err := w.h.Unquotify(c, depth)
	return err
}

// object makes a context, binds a word into it, quotes the word, and
// sometimes rebinds it into the lib context.
func (w *worker) object() error {
	ctx, err := w.h.MakeContext(core.KindObject, 2)
	if err != nil {
		return err
	}
	n := 1 + w.rng.Intn(len(words))
	for i := 0; i < n; i++ {
		var v core.Cell
		core.InitInteger(&v, int64(i))
		if err := ctx.Set(w.h.Intern(words[i]), &v); err != nil {
			return err
		}
	}
	ctx.Manage()

	var obj core.Cell
	core.InitObject(&obj, ctx)
	if err := w.r.Data().Push(&obj); err != nil {
		return err
	}

	name := words[w.rng.Intn(ctx.Len())]
	word, err := w.r.Data().PushSlot()
	if err != nil {
		return err
	}
	sym := w.h.Intern(name)
	core.InitWord(word, sym)
	core.BindWord(word, ctx, ctx.Find(sym))
	w.h.Quotify(word, w.rng.Intn(8))

	if w.rng.Intn(2) == 0 {
		lib := w.r.Lib()
		if lib.Find(sym) == 0 {
			if err := w.r.SetGlobal(name, &w.r.Globals().Void); err != nil {
				return err
			}
		}
		core.BindWord(word, lib, lib.Find(sym))
	}
	if _, ok := core.Lookup(word, nil); !ok {
		return fmt.Errorf("bound word %s does not resolve", name)
	}
	return nil
}

// patch chains a patch over a context found on the stack and resolves a
// word through it.
func (w *worker) patch() error {
	c := w.pick()
	if c == nil || c.Type() != core.KindObject {
		return nil
	}
	ctx := c.Context()
	if ctx.Len() == 0 {
		return nil
	}
	limit := w.rng.Intn(ctx.Len() + 1)
	specifier := w.h.MakeOrReusePatch(ctx, limit, nil, core.KindWord)
	if specifier == nil {
		return nil
	}
	var block core.Cell
	core.CopyCell(&block, &w.r.Globals().EmptyBlock)
	block.SetBinding(specifier)
	if err := w.r.Data().Push(&block); err != nil {
		return err
	}

	var word core.Cell
	core.InitWord(&word, ctx.Key(1))
	if _, ok := core.Lookup(&word, specifier); !ok {
		return fmt.Errorf("patch of limit %d does not expose variable 1", limit)
	}
	return nil
}

// series exercises growth and head removal on a binary.
func (w *worker) series() error {
	data := make([]byte, 1+w.rng.Intn(200))
	w.rng.Read(data)
	s, err := w.h.MakeBinary(data)
	if err != nil {
		return err
	}
	for i := 0; i < 4; i++ {
		if w.rng.Intn(2) == 0 {
			s.RemoveUnits(0, w.rng.Intn(s.Len()+1))
		} else if err := s.AppendBytes(data[:w.rng.Intn(len(data))]); err != nil {
			return err
		}
	}
	w.h.Manage(s)
	var bin core.Cell
	core.InitBinary(&bin, s)
	return w.r.Data().Push(&bin)
}

// fail pushes scratch values and allocates, then fails, so Rescue has
// something to unwind.
func (w *worker) fail() error {
	n := w.rng.Intn(10)
	for i := 0; i < n; i++ {
		if err := w.push(); err != nil {
			return err
		}
	}
	if _, err := w.h.MakeArray(4, 0); err != nil {
		return err
	}
	var c core.Cell
	core.InitInteger(&c, 1)
	if _, err := w.h.Unquotify(&c, 1); err != nil {
		w.r.Fail(err)
	}
	return nil
}

// frame pushes a frame over a block found on the stack, walks its feed and
// drops it again.
func (w *worker) frame() error {
	c := w.pick()
	if c == nil || !c.Type().IsArray() {
		return nil
	}
	f := stack.NewFrame("walk", c.Array(), c.Binding())
	if err := w.r.Frames().Push(f); err != nil {
		return err
	}
	f.Feed.Index = c.Index()
	count := 0
	for {
		item, ok := f.Feed.Next()
		if !ok {
			break
		}
		core.CopyCell(&f.Out, item)
		count++
	}
	if count > 0 && w.rng.Intn(4) == 0 {
		w.r.Recycle()
	}
	w.r.Frames().Drop(f)
	return nil
}

func (w *worker) foreign() error {
	width := []int{1, 2, 4, 8}[w.rng.Intn(4)]
	buf := make([]byte, width*(1+w.rng.Intn(16)))
	s, err := w.h.Repossess(buf, width)
	if err != nil {
		return err
	}
	err = s.Borrow(func(raw []byte) error {
		for i := range raw {
			raw[i] = byte(i)
		}
		if err := s.Extend(1); err == nil {
			return fmt.Errorf("held series resized during borrow")
		}
		return nil
	})
	if err != nil || width != 1 {
		return err
	}
	var bin core.Cell
	core.InitBinary(&bin, s)
	return w.r.Data().Push(&bin)
}

func (w *worker) token() error {
	slot, err := w.r.Data().PushSlot()
	if err != nil {
		return err
	}
	if w.rng.Intn(2) == 0 {
		return core.InitChar(slot, rune(1+w.rng.Intn(0xD000)))
	}
	return w.h.InitToken(slot, words[w.rng.Intn(len(words))]+"-token")
}

func (w *worker) collect() error {
	w.r.Recycle()
	return nil
}
