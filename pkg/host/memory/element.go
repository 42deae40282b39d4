package memory

import (
	"sync"

	"github.com/matzehuels/anchorstack/pkg/anchor"
)

// Element is a box at a fixed document position.
type Element struct {
	host *Host

	mu     sync.Mutex
	top    float64
	height float64
}

// NewElement creates an element whose top is in document coordinates.
func (h *Host) NewElement(top, height float64) *Element {
	return &Element{host: h, top: top, height: height}
}

// Bounds returns the element's extent relative to the viewport.
func (e *Element) Bounds() anchor.Rect {
	scrollTop := e.host.ScrollTop()
	e.mu.Lock()
	defer e.mu.Unlock()
	return anchor.Rect{Top: e.top - scrollTop, Height: e.height}
}

// Move changes the document top. Moving is not a size change and notifies
// nobody, like a reflow that leaves the box size alone.
func (e *Element) Move(top float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.top = top
}

// Resize changes the height and notifies the element's observers when it
// actually changed.
func (e *Element) Resize(height float64) {
	e.mu.Lock()
	changed := e.height != height
	e.height = height
	e.mu.Unlock()

	if changed {
		e.host.resized(e)
	}
}
