package anchor

import (
	errs "github.com/matzehuels/anchorstack/pkg/errors"
)

// Validate checks the preconditions Solve relies on: non-empty unique ids and
// a finite, non-negative gap. Solve itself does not check them.
func Validate[T any](items []Item[T], gap float64) error {
	if err := errs.ValidateGap(gap); err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(items))
	for i, it := range items {
		if it.ID == "" {
			return errs.New(errs.ErrCodeEmptyID, "item %d has an empty id", i)
		}
		if _, dup := seen[it.ID]; dup {
			return errs.New(errs.ErrCodeDuplicateID, "duplicate item id %q", it.ID)
		}
		seen[it.ID] = struct{}{}
	}
	return nil
}

// dedupe keeps the first occurrence of every id and drops items with an empty
// id. It returns the ids it dropped, in input order.
func dedupe[T any](items []Item[T]) (kept []Item[T], dropped []string) {
	seen := make(map[string]struct{}, len(items))
	kept = make([]Item[T], 0, len(items))
	for _, it := range items {
		if _, dup := seen[it.ID]; dup || it.ID == "" {
			dropped = append(dropped, it.ID)
			continue
		}
		seen[it.ID] = struct{}{}
		kept = append(kept, it)
	}
	return kept, dropped
}

// sameIDs reports whether two item lists carry the same set of ids.
func sameIDs[T any](a, b []Item[T]) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, it := range a {
		set[it.ID] = struct{}{}
	}
	for _, it := range b {
		if _, ok := set[it.ID]; !ok {
			return false
		}
	}
	return true
}
