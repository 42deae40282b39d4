// Package anchor keeps floating cards aligned with their anchors in a document
// without letting them overlap.
//
// # Overview
//
// Every item has an anchor (a vertical position in the document) and a card
// (a rendered box with a height). Cards want to sit exactly next to their
// anchors; when two anchors are closer than the card above is tall, the lower
// card is pushed down until it clears its predecessor plus a gap. The selected
// card is the exception: it always stays on its anchor, and whatever it
// collides with above it is pushed up instead.
//
// The package has three parts:
//
//   - [Solve]: the pure positioning function. Given anchors, heights, the
//     selected id and the gap it returns one [Position] per item and the items
//     sorted by anchor.
//   - [Handles]: a lazily populated registry that gives every item id a stable
//     [*Handle] that a renderer attaches the card's [Element] to.
//   - [Scheduler]: keeps published positions current. It reacts to item,
//     selection and gap changes and to host signals (resize, scroll, card size
//     changes, layout settled), coalesces any number of them into a single
//     recomputation per frame, and feeds [Solve] with live measurements.
//
// # Hosts
//
// The scheduler never touches a platform directly. Everything it needs comes
// from a [Host] (scroll offset, frames, size observation, resize and scroll
// notifications, a one-time settled signal) and a [Resolver] that maps an item
// to its anchor [Element]. Implementations live under pkg/host: an in-memory
// host for tests and batch runs, a bubbletea terminal host and a chromedp
// browser host.
//
// # Usage
//
//	sched, err := anchor.NewScheduler(ctx, host, anchor.Options[Comment]{
//	    Items:    items,
//	    Resolver: func(it anchor.Item[Comment]) anchor.Element { return page.Anchor(it.ID) },
//	}, anchor.WithGap(8))
//	if err != nil {
//	    return err
//	}
//	defer sched.Close()
//
//	sched.Handles().Get("c1").Attach(cardElement)
//	cancel := sched.Subscribe(func(s anchor.Snapshot[Comment]) {
//	    for _, it := range s.SortedItems {
//	        draw(it, s.Positions[it.ID].Top)
//	    }
//	})
//	defer cancel()
package anchor
