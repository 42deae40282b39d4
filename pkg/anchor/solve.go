package anchor

import (
	"cmp"
	"math"
	"slices"
)

// Input is everything Solve needs for one computation.
//
// Every item is expected to have an entry in AnchorTops; callers filter out
// items whose anchor could not be resolved before solving. A missing entry in
// either map reads as 0. SelectedID is empty when nothing is selected.
//
// Duplicate ids and a negative gap are precondition violations; use
// [Validate] when the input is not already known to be well formed.
type Input[T any] struct {
	Items      []Item[T]
	AnchorTops map[string]float64
	Heights    map[string]float64
	SelectedID string
	Gap        float64
}

// Result holds the positions keyed by id and the items sorted by anchor.
type Result[T any] struct {
	Positions   map[string]Position
	SortedItems []Item[T]
}

// placement is the solver-local record of where an item ended up in the
// forward pass.
type placement struct {
	id        string
	anchorTop float64
	top       float64
	height    float64
	bottom    float64
}

// Solve places every item as close to its anchor as possible without overlap.
//
// Items are stably sorted by anchor and walked top to bottom. An item that
// clears its predecessor (bottom plus gap) sits on its anchor. An item that
// does not is pushed down to the predecessor's bottom plus gap, unless it is
// the selected item: the selected item always sits on its anchor and the
// predecessors it overlaps are pushed up, nearest first, until one already
// has enough clearance.
//
// The upward relief only rewrites positions that were already emitted; the
// forward pass keeps using the original placements.
func Solve[T any](in Input[T]) Result[T] {
	sorted := slices.Clone(in.Items)
	slices.SortStableFunc(sorted, func(a, b Item[T]) int {
		return cmp.Compare(in.AnchorTops[a.ID], in.AnchorTops[b.ID])
	})

	positions := make(map[string]Position, len(sorted))
	placed := make([]placement, len(sorted))

	for i, item := range sorted {
		anchorTop := in.AnchorTops[item.ID]
		height := in.Heights[item.ID]

		previousBottom := math.Inf(-1)
		if i > 0 {
			previousBottom = placed[i-1].bottom + in.Gap
		}

		top := anchorTop
		switch {
		case anchorTop >= previousBottom:
			// clear of the predecessor
		case item.ID != in.SelectedID:
			top = previousBottom
		default:
			relieve(placed[:i], positions, anchorTop, in.Gap)
		}

		positions[item.ID] = Position{ID: item.ID, Top: top, IsStacked: top != anchorTop}
		placed[i] = placement{
			id:        item.ID,
			anchorTop: anchorTop,
			top:       top,
			height:    height,
			bottom:    top + height,
		}
	}

	return Result[T]{Positions: positions, SortedItems: sorted}
}

// relieve pushes the placements above a selected item upward so that each one
// ends gap above the next. It stops at the first placement that already clears.
func relieve(above []placement, positions map[string]Position, selectedTop, gap float64) {
	nextTop := selectedTop
	for j := len(above) - 1; j >= 0; j-- {
		p := above[j]
		if p.bottom+gap <= nextTop {
			return
		}

		top := nextTop - gap - p.height
		positions[p.id] = Position{ID: p.id, Top: top, IsStacked: top != p.anchorTop}
		nextTop = top
	}
}
