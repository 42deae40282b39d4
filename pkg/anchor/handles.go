package anchor

import (
	"slices"
	"sync"
)

// Handle is the stable measurement handle for one item's card. A renderer
// attaches the card element once it exists; the scheduler reads its height.
type Handle struct {
	id    string
	owner *Handles

	mu sync.RWMutex
	el Element
}

// ID returns the item id this handle belongs to.
func (h *Handle) ID() string { return h.id }

// Attach sets the card element. Attaching the element that is already set is
// a no-op; attaching nil detaches.
func (h *Handle) Attach(el Element) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.el == el {
		return
	}
	prev := h.el
	h.el = el
	if h.owner != nil && h.owner.onAttach != nil {
		h.owner.onAttach(h, prev, el)
	}
}

// Detach clears the card element.
func (h *Handle) Detach() { h.Attach(nil) }

// Element returns the attached card element, or nil.
func (h *Handle) Element() Element {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.el
}

// IsAttached reports whether a card element is attached.
func (h *Handle) IsAttached() bool {
	return h.Element() != nil
}

// Handles gives every item id a stable handle, created on first request and
// kept for the registry's lifetime. It never evicts: when the set of ids
// changes the owner replaces the whole registry instead.
type Handles struct {
	mu      sync.Mutex
	handles map[string]*Handle

	// onAttach is called with the handle's lock held.
	onAttach func(h *Handle, prev, next Element)
}

// NewHandles creates an empty registry.
func NewHandles() *Handles {
	return newHandles(nil)
}

func newHandles(onAttach func(h *Handle, prev, next Element)) *Handles {
	return &Handles{
		handles:  make(map[string]*Handle),
		onAttach: onAttach,
	}
}

// Get returns the handle for id, creating it on first use.
func (r *Handles) Get(id string) *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[id]
	if !ok {
		h = &Handle{id: id, owner: r}
		r.handles[id] = h
	}
	return h
}

// Len returns the number of handles created so far.
func (r *Handles) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

// IDs returns the ids with a handle, sorted.
func (r *Handles) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.handles))
	for id := range r.handles {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
