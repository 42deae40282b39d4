package term

import (
	"slices"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/matzehuels/anchorstack/pkg/anchor"
	"github.com/matzehuels/anchorstack/pkg/document"
)

// frameMsg asks Update to run one requested frame.
type frameMsg struct{ id uint64 }

// runFramesMsg asks Update to run every pending frame. It is sent once at
// start-up for frames requested before the program could receive messages.
type runFramesMsg struct{}

type pendingFrame struct {
	fn    func()
	timer *time.Timer
}

type cardObserver struct {
	card     *Card
	onResize func()
}

// Host is the anchor.Host side of the preview.
type Host struct {
	mu        sync.Mutex
	send      func(tea.Msg)
	delay     time.Duration
	frames    map[uint64]*pendingFrame
	nextID    uint64
	listeners map[uint64]func(anchor.Trigger)
	observers map[uint64]cardObserver
	scrollTop float64
	cardWidth int
	closed    bool

	settled    chan struct{}
	settleOnce sync.Once
}

var _ anchor.Host = (*Host)(nil)

func newHost(delay time.Duration, scrollTop float64) *Host {
	return &Host{
		delay:     delay,
		frames:    make(map[uint64]*pendingFrame),
		listeners: make(map[uint64]func(anchor.Trigger)),
		observers: make(map[uint64]cardObserver),
		scrollTop: scrollTop,
		cardWidth: minCardWidth,
		settled:   make(chan struct{}),
	}
}

// bind sets the function used to deliver frame messages to the program.
func (h *Host) bind(send func(tea.Msg)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.send = send
}

func (h *Host) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, f := range h.frames {
		if f.timer != nil {
			f.timer.Stop()
		}
		delete(h.frames, id)
	}
}

// ScrollTop returns the first visible row.
func (h *Host) ScrollTop() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.scrollTop
}

// RequestFrame queues fn and, once the program is running, posts a frame
// message after the frame delay.
func (h *Host) RequestFrame(fn func()) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	f := &pendingFrame{fn: fn}
	h.frames[id] = f
	if h.send != nil && !h.closed {
		send := h.send
		f.timer = time.AfterFunc(h.delay, func() { send(frameMsg{id: id}) })
	}
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if f.timer != nil {
			f.timer.Stop()
		}
		delete(h.frames, id)
	}
}

// Observe calls onResize when a card's rendered height changes.
func (h *Host) Observe(el anchor.Element, onResize func()) func() {
	c, ok := el.(*Card)
	if !ok {
		return func() {}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	h.observers[id] = cardObserver{card: c, onResize: onResize}
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.observers, id)
	}
}

// Listen reports terminal resizes and scrolling.
func (h *Host) Listen(fn func(anchor.Trigger)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	h.listeners[id] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.listeners, id)
	}
}

// Settled closes on the first window size message.
func (h *Host) Settled() <-chan struct{} {
	return h.settled
}

func (h *Host) settle() {
	h.settleOnce.Do(func() { close(h.settled) })
}

// runFrame runs the frame with the given id if it is still pending.
func (h *Host) runFrame(id uint64) {
	h.mu.Lock()
	f, ok := h.frames[id]
	delete(h.frames, id)
	h.mu.Unlock()

	if ok {
		f.fn()
	}
}

// runPending runs every pending frame in request order.
func (h *Host) runPending() int {
	h.mu.Lock()
	ids := make([]uint64, 0, len(h.frames))
	for id := range h.frames {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(), 0, len(ids))
	for _, id := range ids {
		f := h.frames[id]
		if f.timer != nil {
			f.timer.Stop()
		}
		fns = append(fns, f.fn)
		delete(h.frames, id)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	return len(fns)
}

func (h *Host) pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.frames)
}

// scrollTo moves the viewport and reports TriggerScroll if it moved.
func (h *Host) scrollTo(top float64) {
	h.mu.Lock()
	changed := h.scrollTop != top
	h.scrollTop = top
	h.mu.Unlock()

	if changed {
		h.notify(anchor.TriggerScroll)
	}
}

// resize sets the card width, fires observers of cards whose rendered
// height changed, and reports TriggerResize.
func (h *Host) resize(cardWidth int) {
	h.mu.Lock()
	old := h.cardWidth
	h.cardWidth = cardWidth
	var changed []func()
	for _, o := range h.observers {
		if renderedHeight(o.card.card, old) != renderedHeight(o.card.card, cardWidth) {
			changed = append(changed, o.onResize)
		}
	}
	h.mu.Unlock()

	for _, fn := range changed {
		fn()
	}
	h.notify(anchor.TriggerResize)
}

func (h *Host) width() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cardWidth
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

// =============================================================================
// Elements
// =============================================================================

// Anchor is a document row.
type Anchor struct {
	host *Host
	row  float64
}

// Bounds returns the row relative to the viewport.
func (a *Anchor) Bounds() anchor.Rect {
	return anchor.Rect{Top: a.row - a.host.ScrollTop(), Height: 1}
}

// Card is a rendered card. Only its height is meaningful.
type Card struct {
	host *Host
	card document.Card
}

// Bounds returns the rendered height at the current card width.
func (c *Card) Bounds() anchor.Rect {
	return anchor.Rect{Height: float64(renderedHeight(c.card, c.host.width()))}
}
