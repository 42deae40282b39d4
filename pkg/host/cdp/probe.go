package cdp

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/anchorstack/pkg/anchor"
	"github.com/matzehuels/anchorstack/pkg/render/sink"
)

// DefaultSettle is how long the layout must stay unchanged before a probe
// reads it.
const DefaultSettle = 500 * time.Millisecond

// ProbeOptions configures Probe.
type ProbeOptions struct {
	Browser BrowserOptions
	Host    Config

	// IDs lists the items to place. Empty means every anchor found by
	// Discover.
	IDs      []string
	Selected string
	Gap      float64

	// Settle is the quiet period after the last publish.
	Settle time.Duration

	// Apply writes the solved positions back onto the page.
	Apply bool
	// Screenshot captures the page after solving (and applying).
	Screenshot bool
}

// ProbeResult is the outcome of one probe.
type ProbeResult struct {
	Layout     sink.Layout
	Applied    int
	Screenshot []byte
}

// Probe opens url, places its cards with a scheduler driven by the live page
// and returns the layout once it has settled.
func Probe(ctx context.Context, url string, opts ProbeOptions) (*ProbeResult, error) {
	if opts.Settle <= 0 {
		opts.Settle = DefaultSettle
	}
	if opts.Host.Logger == nil {
		opts.Host.Logger = log.Default()
	}
	logger := opts.Host.Logger

	tab, closeTab, err := Open(ctx, url, opts.Browser)
	if err != nil {
		return nil, err
	}
	defer closeTab()

	h, err := New(tab, opts.Host)
	if err != nil {
		return nil, err
	}
	defer h.Close()

	ids := opts.IDs
	if len(ids) == 0 {
		if ids, err = h.Discover(ctx); err != nil {
			return nil, err
		}
	}
	logger.Debug("probing page", "url", url, "anchors", len(ids))

	items := make([]anchor.Item[string], len(ids))
	for i, id := range ids {
		items[i] = anchor.Item[string]{ID: id, Data: id}
	}
	sched, err := anchor.NewScheduler(ctx, h, anchor.Options[string]{
		Items:      items,
		SelectedID: opts.Selected,
		Resolver:   Resolver[string](h),
	}, anchor.WithGap(opts.Gap), anchor.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Close()

	published := make(chan struct{}, 1)
	stopSub := sched.Subscribe(func(anchor.Snapshot[string]) {
		select {
		case published <- struct{}{}:
		default:
		}
	})
	defer stopSub()

	handles := sched.Handles()
	cards := make(map[string]*Element, len(ids))
	for _, id := range ids {
		if card := h.Card(id); card != nil {
			cards[id] = card
			handles.Get(id).Attach(card)
		} else {
			logger.Warn("card not found on page", "id", id)
		}
	}

	if err := awaitQuiet(ctx, h.Settled(), published, opts.Settle, opts.Browser.NavTimeout); err != nil {
		return nil, err
	}

	snap := sched.Snapshot()
	scrollTop := h.ScrollTop()
	measures := make(map[string]sink.Measure, len(snap.SortedItems))
	var unresolved []string
	for _, id := range ids {
		if _, ok := snap.Positions[id]; !ok {
			unresolved = append(unresolved, id)
			continue
		}
		var m sink.Measure
		if a := h.Anchor(id); a != nil {
			m.Anchor = a.Bounds().Top + scrollTop
		}
		if c := cards[id]; c != nil {
			m.Height = c.Bounds().Height
		}
		measures[id] = m
	}

	res := &ProbeResult{
		Layout: sink.NewLayout(sink.Source[string]{
			Snapshot:   snap,
			Measures:   measures,
			Selected:   sched.Selected(),
			Gap:        opts.Gap,
			Title:      url,
			Unresolved: unresolved,
		}),
	}

	if opts.Apply {
		if res.Applied, err = h.Apply(ctx, snap.Positions); err != nil {
			return nil, err
		}
	}
	if opts.Screenshot {
		if res.Screenshot, err = h.Screenshot(ctx); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// awaitQuiet returns once the page has settled, at least one snapshot has
// been published, and no publish happened for quiet. It gives up waiting
// after limit and uses whatever was published last.
func awaitQuiet(ctx context.Context, settled <-chan struct{}, published <-chan struct{}, quiet, limit time.Duration) error {
	if limit <= 0 {
		limit = 30 * time.Second
	}
	deadline := time.NewTimer(limit)
	defer deadline.Stop()
	timer := time.NewTimer(quiet)
	defer timer.Stop()

	isSettled := settled == nil
	seen := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return nil
		case <-settled:
			settled = nil
			isSettled = true
			timer.Reset(quiet)
		case <-published:
			seen = true
			timer.Reset(quiet)
		case <-timer.C:
			if isSettled && seen {
				return nil
			}
			timer.Reset(quiet)
		}
	}
}
