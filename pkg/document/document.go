package document

import (
	"math"

	"github.com/matzehuels/anchorstack/pkg/anchor"
	errs "github.com/matzehuels/anchorstack/pkg/errors"
)

// Document is a page of text with cards anchored into it.
type Document struct {
	Title     string   `json:"title,omitempty" toml:"title,omitempty"`
	Text      []string `json:"text,omitempty" toml:"text,omitempty"`
	Gap       *float64 `json:"gap,omitempty" toml:"gap,omitempty"`
	Selected  string   `json:"selected,omitempty" toml:"selected,omitempty"`
	ScrollTop float64  `json:"scroll_top,omitempty" toml:"scroll_top,omitempty"`
	Cards     []Card   `json:"cards" toml:"cards"`
}

// Card is one floating card. Anchor is the document position it belongs
// next to; Height is used when no renderer measures the card.
type Card struct {
	ID     string  `json:"id" toml:"id"`
	Anchor float64 `json:"anchor" toml:"anchor"`
	Height float64 `json:"height" toml:"height"`
	Author string  `json:"author,omitempty" toml:"author,omitempty"`
	Body   string  `json:"body,omitempty" toml:"body,omitempty"`
}

// GapOr returns the document gap, or def when the document sets none.
func (d *Document) GapOr(def float64) float64 {
	if d.Gap == nil {
		return def
	}
	return *d.Gap
}

// Items returns the cards as anchor items, in document order.
func (d *Document) Items() []anchor.Item[Card] {
	items := make([]anchor.Item[Card], len(d.Cards))
	for i, c := range d.Cards {
		items[i] = anchor.Item[Card]{ID: c.ID, Data: c}
	}
	return items
}

// Card returns the card with the given id.
func (d *Document) Card(id string) (Card, bool) {
	for _, c := range d.Cards {
		if c.ID == id {
			return c, true
		}
	}
	return Card{}, false
}

// Lines returns the number of text lines, or the row just past the lowest
// anchor when that is further down.
func (d *Document) Lines() int {
	n := len(d.Text)
	for _, c := range d.Cards {
		if row := int(math.Ceil(c.Anchor)) + 1; row > n {
			n = row
		}
	}
	return n
}

// Validate reports the first problem that would make the document unusable.
func (d *Document) Validate() error {
	if d.Gap != nil {
		if err := errs.ValidateGap(*d.Gap); err != nil {
			return err
		}
	}
	if math.IsNaN(d.ScrollTop) || math.IsInf(d.ScrollTop, 0) {
		return errs.New(errs.ErrCodeInvalidDocument, "scroll_top must be finite")
	}

	seen := make(map[string]struct{}, len(d.Cards))
	for i, c := range d.Cards {
		if err := errs.ValidateID(c.ID); err != nil {
			return errs.Wrap(errs.GetCode(err), err, "card %d", i)
		}
		if _, dup := seen[c.ID]; dup {
			return errs.New(errs.ErrCodeDuplicateID, "duplicate card id %q", c.ID)
		}
		seen[c.ID] = struct{}{}

		if math.IsNaN(c.Anchor) || math.IsInf(c.Anchor, 0) {
			return errs.New(errs.ErrCodeInvalidDocument, "card %q: anchor must be finite", c.ID)
		}
		if math.IsNaN(c.Height) || math.IsInf(c.Height, 0) || c.Height < 0 {
			return errs.New(errs.ErrCodeInvalidDocument, "card %q: height must be a non-negative number", c.ID)
		}
	}

	if d.Selected != "" {
		if _, ok := seen[d.Selected]; !ok {
			return errs.New(errs.ErrCodeInvalidDocument, "selected card %q does not exist", d.Selected)
		}
	}
	return nil
}
