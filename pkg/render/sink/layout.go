package sink

import (
	"math"

	"github.com/matzehuels/anchorstack/pkg/anchor"
)

// Measure is what was measured for one item in the cycle that produced a
// snapshot.
type Measure struct {
	Anchor float64
	Height float64
}

// Source collects what NewLayout needs besides the snapshot itself.
type Source[T any] struct {
	Snapshot   anchor.Snapshot[T]
	Measures   map[string]Measure
	Selected   string
	Gap        float64
	Title      string
	Unresolved []string

	// Label extracts display text from item data. Optional.
	Label func(T) (author, body string)
}

// Layout is the serializable result of one recomputation.
type Layout struct {
	Title      string   `json:"title,omitempty"`
	Gap        float64  `json:"gap"`
	Selected   string   `json:"selected,omitempty"`
	Revision   uint64   `json:"revision"`
	Cards      []Card   `json:"cards"`
	Unresolved []string `json:"unresolved,omitempty"`
}

// Card is one placed card.
type Card struct {
	ID       string  `json:"id"`
	Anchor   float64 `json:"anchor"`
	Height   float64 `json:"height"`
	Top      float64 `json:"top"`
	Stacked  bool    `json:"stacked"`
	Selected bool    `json:"selected,omitempty"`
	Author   string  `json:"author,omitempty"`
	Body     string  `json:"body,omitempty"`
}

// Bottom returns Top + Height.
func (c Card) Bottom() float64 { return c.Top + c.Height }

// Offset returns how far the card sits from its anchor; negative is above.
func (c Card) Offset() float64 { return c.Top - c.Anchor }

// NewLayout builds a Layout from a snapshot. Cards follow the snapshot's
// sorted order; items without a position are skipped.
func NewLayout[T any](src Source[T]) Layout {
	l := Layout{
		Title:      src.Title,
		Gap:        src.Gap,
		Selected:   src.Selected,
		Revision:   src.Snapshot.Revision,
		Cards:      make([]Card, 0, len(src.Snapshot.SortedItems)),
		Unresolved: src.Unresolved,
	}

	for _, it := range src.Snapshot.SortedItems {
		pos, ok := src.Snapshot.Positions[it.ID]
		if !ok {
			continue
		}
		m := src.Measures[it.ID]
		c := Card{
			ID:       it.ID,
			Anchor:   m.Anchor,
			Height:   m.Height,
			Top:      pos.Top,
			Stacked:  pos.IsStacked,
			Selected: it.ID == src.Selected,
		}
		if src.Label != nil {
			c.Author, c.Body = src.Label(it.Data)
		}
		l.Cards = append(l.Cards, c)
	}
	return l
}

// Extent returns the smallest and largest document coordinate covered by
// any anchor or card. An empty layout spans [0, 0].
func (l Layout) Extent() (lo, hi float64) {
	if len(l.Cards) == 0 {
		return 0, 0
	}
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, c := range l.Cards {
		lo = min(lo, c.Anchor, c.Top)
		hi = max(hi, c.Anchor, c.Bottom())
	}
	return lo, hi
}

// Card returns the card with the given id.
func (l Layout) Card(id string) (Card, bool) {
	for _, c := range l.Cards {
		if c.ID == id {
			return c, true
		}
	}
	return Card{}, false
}
