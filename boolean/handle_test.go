package boolean_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/ezachrisen/tripwire/boolean"
	"github.com/matryer/is"
)

func TestHandleReplaceKeepsOldGeneration(t *testing.T) {
	is := is.New(t)
	h := boolean.NewHandle()
	empty := h.Load()
	is.Equal(empty.Len(), 2)

	b := boolean.NewBuilder()
	v := b.Variable()
	not := b.Not(v.Expression())
	first := h.Replace(b)
	is.Equal(h.Load(), first)

	e := first.Evaluator()

	b2 := boolean.NewBuilder()
	b2.Variable()
	second := h.Replace(b2)
	is.Equal(h.Load(), second)
	is.True(second.Instance() != first.Instance())

	// the evaluator still works against the generation it captured
	e.Set(v, true)
	is.Equal(e.Get(not), boolean.False)
	is.Equal(first.Len(), 4)
}

func TestHandleModifyFailureKeepsPublished(t *testing.T) {
	is := is.New(t)
	h := boolean.NewHandle()

	good, err := h.Modify(func(b *boolean.Builder) error {
		b.Variable()
		return nil
	})
	is.NoErr(err)
	is.Equal(h.Load(), good)

	errBroken := errors.New("broken rule")
	g, err := h.Modify(func(b *boolean.Builder) error {
		b.Variable()
		b.Variable()
		return errBroken
	})
	is.True(errors.Is(err, errBroken))
	is.True(g == nil)
	is.Equal(h.Load(), good)
}

func TestHandleConcurrentReaders(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test in short mode.")
	}
	h := boolean.NewHandle()

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			_, _ = h.Modify(func(b *boolean.Builder) error {
				x, y := b.Variable(), b.Variable()
				b.Not(b.And(x.Expression(), y.Expression()))
				return nil
			})
		}
		close(stop)
	}()

	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				g := h.Load()
				e := g.Evaluator()
				if g.Len() != 2 && g.Len() != 6 {
					t.Errorf("torn generation with %d nodes", g.Len())
					return
				}
				if e.Get(g.Literal(true)) != boolean.True {
					t.Error("literal true is not true")
					return
				}
			}
		}()
	}
	wg.Wait()
}
