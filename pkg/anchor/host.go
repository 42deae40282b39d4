package anchor

// Rect is the vertical extent of an element relative to the viewport.
type Rect struct {
	Top    float64 `json:"top"`
	Height float64 `json:"height"`
}

// Bottom returns Top + Height.
func (r Rect) Bottom() float64 { return r.Top + r.Height }

// Element is anything whose vertical bounds can be measured: an anchor in the
// document or a rendered card. Implementations must be comparable (pointer
// types in practice) because handles compare elements to detect changes.
type Element interface {
	Bounds() Rect
}

// Resolver maps an item to its anchor element. Returning nil means the anchor
// cannot be found this cycle; the item is skipped and retried next cycle.
// A typed nil pointer is not nil; return a literal nil.
type Resolver[T any] func(Item[T]) Element

// Host supplies everything the scheduler needs from the platform.
type Host interface {
	// ScrollTop returns the current document scroll offset. Anchor tops are
	// measured as Bounds().Top + ScrollTop().
	ScrollTop() float64

	// RequestFrame arranges for fn to run once before the next paint. It must
	// not run fn synchronously. The returned function cancels a pending call.
	RequestFrame(fn func()) (cancel func())

	// Observe calls onResize whenever el changes size, until stop is called.
	Observe(el Element, onResize func()) (stop func())

	// Listen reports window level layout changes (TriggerResize and
	// TriggerScroll) until stop is called.
	Listen(fn func(Trigger)) (stop func())

	// Settled returns a channel closed once layout metrics are final, for
	// example after web fonts load. A nil channel never settles.
	Settled() <-chan struct{}
}
