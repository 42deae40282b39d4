package pipeline

import (
	"context"
	"fmt"

	"github.com/matzehuels/anchorstack/pkg/anchor"
	"github.com/matzehuels/anchorstack/pkg/document"
	"github.com/matzehuels/anchorstack/pkg/host/memory"
	"github.com/matzehuels/anchorstack/pkg/render/sink"
)

// maxFlushes bounds the frame pump. A static document publishes on the
// first flush.
const maxFlushes = 8

// Solve places the document's cards. It mounts a scheduler on an in-memory
// host, where each card's anchor sits at its document row and each card has
// its declared height, and converts the published snapshot into a layout.
func Solve(ctx context.Context, doc *document.Document, opts Options) (sink.Layout, error) {
	gap := opts.GapFor(doc)
	selected := opts.SelectedFor(doc)

	h := memory.New()
	h.ScrollTo(doc.ScrollTop)
	measures := make(map[string]sink.Measure, len(doc.Cards))
	for _, c := range doc.Cards {
		h.SetAnchor(c.ID, h.NewElement(c.Anchor, 0))
		measures[c.ID] = sink.Measure{Anchor: c.Anchor, Height: c.Height}
	}

	schedOpts := []anchor.Option{anchor.WithGap(gap)}
	if opts.Logger != nil {
		schedOpts = append(schedOpts, anchor.WithLogger(opts.Logger))
	}
	sched, err := anchor.NewScheduler(ctx, h, anchor.Options[document.Card]{
		Items:      doc.Items(),
		SelectedID: selected,
		Resolver:   memory.Resolver[document.Card](h),
	}, schedOpts...)
	if err != nil {
		return sink.Layout{}, fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Close()

	handles := sched.Handles()
	for _, c := range doc.Cards {
		handles.Get(c.ID).Attach(h.NewElement(0, c.Height))
	}
	for i := 0; i < maxFlushes && h.Pending() > 0; i++ {
		h.Flush()
	}
	if err := ctx.Err(); err != nil {
		return sink.Layout{}, err
	}

	snap := sched.Snapshot()
	var unresolved []string
	for _, c := range doc.Cards {
		if _, ok := snap.Positions[c.ID]; !ok {
			unresolved = append(unresolved, c.ID)
		}
	}

	return sink.NewLayout(sink.Source[document.Card]{
		Snapshot:   snap,
		Measures:   measures,
		Selected:   selected,
		Gap:        gap,
		Title:      doc.Title,
		Unresolved: unresolved,
		Label:      func(c document.Card) (string, string) { return c.Author, c.Body },
	}), nil
}
