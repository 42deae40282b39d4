package memory

import (
	"testing"

	"github.com/matzehuels/anchorstack/pkg/anchor"
)

func TestFlushRunsFramesInOrder(t *testing.T) {
	h := New()
	var got []int
	h.RequestFrame(func() { got = append(got, 1) })
	cancel := h.RequestFrame(func() { got = append(got, 2) })
	h.RequestFrame(func() {
		got = append(got, 3)
		h.RequestFrame(func() { got = append(got, 4) })
	})
	cancel()

	if n := h.Flush(); n != 2 {
		t.Fatalf("Flush() = %d, want 2", n)
	}
	if len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Errorf("ran %v, want [1 3]", got)
	}
	if h.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1 frame requested during Flush", h.Pending())
	}
	h.Flush()
	if got[len(got)-1] != 4 {
		t.Errorf("ran %v, want 4 last", got)
	}
}

func TestListenAndScroll(t *testing.T) {
	h := New()
	var triggers []anchor.Trigger
	stop := h.Listen(func(tr anchor.Trigger) { triggers = append(triggers, tr) })

	h.ScrollTo(40)
	h.ResizeWindow()
	stop()
	h.ResizeWindow()

	if len(triggers) != 2 || triggers[0] != anchor.TriggerScroll || triggers[1] != anchor.TriggerResize {
		t.Errorf("triggers = %v, want [scroll resize]", triggers)
	}
	if h.ScrollTop() != 40 {
		t.Errorf("ScrollTop() = %v, want 40", h.ScrollTop())
	}
	if h.Listeners() != 0 {
		t.Errorf("Listeners() = %d, want 0", h.Listeners())
	}
}

func TestElementBoundsFollowScroll(t *testing.T) {
	h := New()
	el := h.NewElement(100, 20)
	h.ScrollTo(30)

	want := anchor.Rect{Top: 70, Height: 20}
	if got := el.Bounds(); got != want {
		t.Errorf("Bounds() = %+v, want %+v", got, want)
	}

	el.Move(10)
	if got := el.Bounds().Top; got != -20 {
		t.Errorf("Bounds().Top after Move = %v, want -20", got)
	}
}

func TestObserveResize(t *testing.T) {
	h := New()
	el := h.NewElement(0, 10)
	var calls int
	stop := h.Observe(el, func() { calls++ })

	el.Resize(10) // unchanged
	el.Resize(12)
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if h.Observed(el) != 1 {
		t.Errorf("Observed() = %d, want 1", h.Observed(el))
	}

	stop()
	el.Resize(14)
	if calls != 1 || h.Observed(el) != 0 {
		t.Errorf("after stop: calls = %d observed = %d, want 1 and 0", calls, h.Observed(el))
	}
}

func TestObserveForeignElement(t *testing.T) {
	h := New()
	stop := h.Observe(foreign{}, func() { t.Error("unexpected call") })
	stop()
}

type foreign struct{}

func (foreign) Bounds() anchor.Rect { return anchor.Rect{} }

func TestSettleOnce(t *testing.T) {
	h := New()
	h.Settle()
	h.Settle()
	select {
	case <-h.Settled():
	default:
		t.Error("Settled() should be closed after Settle")
	}
}

func TestResolver(t *testing.T) {
	h := New()
	el := h.NewElement(5, 0)
	h.SetAnchor("a", el)
	resolve := Resolver[int](h)

	if got := resolve(anchor.Item[int]{ID: "a"}); got != el {
		t.Errorf("resolve(a) = %v, want the anchor", got)
	}
	if got := resolve(anchor.Item[int]{ID: "missing"}); got != nil {
		t.Errorf("resolve(missing) = %v, want nil", got)
	}

	h.RemoveAnchor("a")
	if got := resolve(anchor.Item[int]{ID: "a"}); got != nil {
		t.Errorf("resolve(a) after remove = %v, want nil", got)
	}
}
