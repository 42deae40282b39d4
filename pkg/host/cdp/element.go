package cdp

import (
	"context"
	"sync"

	"github.com/matzehuels/anchorstack/pkg/anchor"
)

// Element is a page element addressed by selector.
type Element struct {
	host     *Host
	selector string

	mu   sync.Mutex
	last anchor.Rect
}

// Selector returns the CSS selector addressing the element.
func (e *Element) Selector() string { return e.selector }

// Bounds measures the element. If it cannot be measured the last known
// bounds are returned.
func (e *Element) Bounds() anchor.Rect {
	r, ok, err := e.host.measure(e.host.ctx, e.selector)
	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil || !ok {
		if err != nil {
			e.host.logger.Debug("measure element", "selector", e.selector, "err", err)
		}
		return e.last
	}
	e.last = r
	return r
}

// measure returns the viewport-relative bounds of selector and whether the
// element exists.
func (h *Host) measure(ctx context.Context, selector string) (anchor.Rect, bool, error) {
	var r jsRect
	if err := h.eval(ctx, boundsScript(selector), &r, false); err != nil {
		return anchor.Rect{}, false, err
	}
	if !r.Found {
		return anchor.Rect{}, false, nil
	}
	return r.rect(), true, nil
}

// lookup returns the element for selector if it is on the page.
func (h *Host) lookup(selector string) *Element {
	r, ok, err := h.measure(h.ctx, selector)
	if err != nil {
		h.logger.Debug("look up element", "selector", selector, "err", err)
		return nil
	}
	if !ok {
		return nil
	}
	return &Element{host: h, selector: selector, last: r}
}

// Anchor returns the anchor element for id, or nil if the page has none.
func (h *Host) Anchor(id string) *Element {
	return h.lookup(selectorFor(h.cfg.AnchorSelector, id))
}

// Card returns the card element for id, or nil if the page has none.
func (h *Host) Card(id string) *Element {
	return h.lookup(selectorFor(h.cfg.CardSelector, id))
}

// Resolver returns a resolver that finds anchors with the anchor selector.
func Resolver[T any](h *Host) anchor.Resolver[T] {
	return func(it anchor.Item[T]) anchor.Element {
		if el := h.Anchor(it.ID); el != nil {
			return el
		}
		return nil
	}
}
