package anchor

// DefaultGap is the vertical clearance between cards when none is configured.
const DefaultGap = 8.0

// Item is a caller-owned entry positioned next to its anchor.
// IDs must be unique and non-empty; Data is never inspected or mutated.
type Item[T any] struct {
	ID   string `json:"id"`
	Data T      `json:"data"`
}

// Position is the published placement of one item.
// IsStacked is true when Top differs from the item's own anchor.
type Position struct {
	ID        string  `json:"id"`
	Top       float64 `json:"top"`
	IsStacked bool    `json:"is_stacked"`
}

// Snapshot is one published result of the scheduler.
// Positions and SortedItems always come from the same recomputation and must
// be treated as read-only.
type Snapshot[T any] struct {
	Positions   map[string]Position
	SortedItems []Item[T]
	Revision    uint64
}

// IDs returns the ids of items in order.
func IDs[T any](items []Item[T]) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}
