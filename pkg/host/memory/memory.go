// Package memory provides an in-process anchor.Host with a manual frame pump.
//
// Nothing happens on its own: frames run when Flush is called, and resize,
// scroll, size changes and the settled signal fire only when the matching
// method is called. That makes every scheduler cycle deterministic, which is
// what tests and batch runs (anchorstack solve) need.
//
//	h := memory.New()
//	h.SetAnchor("c1", h.NewElement(120, 0))
//	sched, _ := anchor.NewScheduler(ctx, h, anchor.Options[string]{
//	    Items:    items,
//	    Resolver: memory.Resolver[string](h),
//	})
//	sched.Handles().Get("c1").Attach(h.NewElement(0, 48))
//	h.Flush()
package memory

import (
	"slices"
	"sync"

	"github.com/matzehuels/anchorstack/pkg/anchor"
)

// Host is a deterministic anchor.Host. The zero value is not usable; call New.
type Host struct {
	mu         sync.Mutex
	scrollTop  float64
	frames     map[uint64]func()
	nextFrame  uint64
	listeners  map[uint64]func(anchor.Trigger)
	observers  map[*Element]map[uint64]func()
	nextSub    uint64
	anchors    map[string]*Element
	settled    chan struct{}
	settleOnce sync.Once
}

// New creates an empty host scrolled to the top.
func New() *Host {
	return &Host{
		frames:    make(map[uint64]func()),
		listeners: make(map[uint64]func(anchor.Trigger)),
		observers: make(map[*Element]map[uint64]func()),
		anchors:   make(map[string]*Element),
		settled:   make(chan struct{}),
	}
}

var _ anchor.Host = (*Host)(nil)

// =============================================================================
// anchor.Host
// =============================================================================

// ScrollTop returns the current scroll offset.
func (h *Host) ScrollTop() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.scrollTop
}

// RequestFrame queues fn for the next Flush.
func (h *Host) RequestFrame(fn func()) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextFrame++
	id := h.nextFrame
	h.frames[id] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.frames, id)
	}
}

// Observe registers onResize for size changes of el.
func (h *Host) Observe(el anchor.Element, onResize func()) func() {
	e, ok := el.(*Element)
	if !ok {
		return func() {}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextSub++
	id := h.nextSub
	if h.observers[e] == nil {
		h.observers[e] = make(map[uint64]func())
	}
	h.observers[e][id] = onResize
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.observers[e], id)
		if len(h.observers[e]) == 0 {
			delete(h.observers, e)
		}
	}
}

// Listen registers fn for ResizeWindow and ScrollTo.
func (h *Host) Listen(fn func(anchor.Trigger)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextSub++
	id := h.nextSub
	h.listeners[id] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.listeners, id)
	}
}

// Settled returns the channel closed by Settle.
func (h *Host) Settled() <-chan struct{} {
	return h.settled
}

// =============================================================================
// Driving the host
// =============================================================================

// Flush runs every frame requested before the call, in request order, and
// returns how many ran. Frames requested while flushing wait for the next
// Flush.
func (h *Host) Flush() int {
	h.mu.Lock()
	ids := make([]uint64, 0, len(h.frames))
	for id := range h.frames {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(), len(ids))
	for i, id := range ids {
		fns[i] = h.frames[id]
		delete(h.frames, id)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	return len(fns)
}

// Pending returns the number of frames waiting for Flush.
func (h *Host) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.frames)
}

// ScrollTo moves the document and notifies listeners with TriggerScroll.
func (h *Host) ScrollTo(y float64) {
	h.mu.Lock()
	h.scrollTop = y
	h.mu.Unlock()
	h.notify(anchor.TriggerScroll)
}

// ResizeWindow notifies listeners with TriggerResize.
func (h *Host) ResizeWindow() {
	h.notify(anchor.TriggerResize)
}

// Settle closes the settled channel. Later calls do nothing.
func (h *Host) Settle() {
	h.settleOnce.Do(func() { close(h.settled) })
}

// Observed returns how many observers are registered for el.
func (h *Host) Observed(el *Element) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.observers[el])
}

// Listeners returns how many window listeners are registered.
func (h *Host) Listeners() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners)
}

func (h *Host) notify(t anchor.Trigger) {
	h.mu.Lock()
	fns := make([]func(anchor.Trigger), 0, len(h.listeners))
	for _, fn := range h.listeners {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(t)
	}
}

func (h *Host) resized(e *Element) {
	h.mu.Lock()
	fns := make([]func(), 0, len(h.observers[e]))
	for _, fn := range h.observers[e] {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// =============================================================================
// Anchors
// =============================================================================

// SetAnchor makes el the anchor for id.
func (h *Host) SetAnchor(id string, el *Element) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.anchors[id] = el
}

// RemoveAnchor forgets the anchor for id; it resolves to nil afterwards.
func (h *Host) RemoveAnchor(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.anchors, id)
}

// Anchor returns the anchor for id, or nil.
func (h *Host) Anchor(id string) *Element {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.anchors[id]
}

// Resolver returns a resolver that looks items up with h.Anchor.
func Resolver[T any](h *Host) anchor.Resolver[T] {
	return func(it anchor.Item[T]) anchor.Element {
		if el := h.Anchor(it.ID); el != nil {
			return el
		}
		return nil
	}
}
