package cdp

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"

	"github.com/matzehuels/anchorstack/pkg/anchor"
	errs "github.com/matzehuels/anchorstack/pkg/errors"
)

// BrowserOptions configures the Chrome instance started by Open.
type BrowserOptions struct {
	Width      int
	Height     int
	Headful    bool
	ExecPath   string
	NavTimeout time.Duration
}

// Open starts Chrome, navigates a new tab to url and waits for the body.
// The returned function closes the tab and the browser.
func Open(ctx context.Context, url string, opts BrowserOptions) (context.Context, func(), error) {
	if err := errs.ValidateURL(url); err != nil {
		return nil, nil, err
	}
	if opts.Width <= 0 {
		opts.Width = 1280
	}
	if opts.Height <= 0 {
		opts.Height = 800
	}
	if opts.NavTimeout <= 0 {
		opts.NavTimeout = 30 * time.Second
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", !opts.Headful),
		chromedp.Flag("disable-gpu", true),
		chromedp.WindowSize(opts.Width, opts.Height),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	tab, tabCancel := chromedp.NewContext(allocCtx)
	closeAll := func() {
		tabCancel()
		allocCancel()
	}

	navCtx, navCancel := context.WithTimeout(tab, opts.NavTimeout)
	defer navCancel()

	err := chromedp.Run(navCtx,
		emulation.SetDeviceMetricsOverride(int64(opts.Width), int64(opts.Height), 1, false),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		closeAll()
		if errors.Is(navCtx.Err(), context.DeadlineExceeded) {
			return nil, nil, errs.Wrap(errs.ErrCodeTimeout, err, "navigation timed out after %s", opts.NavTimeout)
		}
		if ctx.Err() != nil {
			return nil, nil, fmt.Errorf("navigation canceled: %w", ctx.Err())
		}
		return nil, nil, errs.Wrap(errs.ErrCodeNetwork, err, "navigate to %s", url)
	}
	return tab, closeAll, nil
}

// Discover lists the ids of every anchor on the page in document order.
func (h *Host) Discover(ctx context.Context) ([]string, error) {
	ctx, cancel := joinContext(h.ctx, ctx)
	defer cancel()

	var ids []string
	if err := h.eval(ctx, discoverScript(h.cfg.AnchorAttr), &ids, false); err != nil {
		return nil, fmt.Errorf("discover anchors: %w", err)
	}
	return usableIDs(ids, h.logger), nil
}

// usableIDs drops ids that cannot be placed in a selector template.
func usableIDs(ids []string, logger *log.Logger) []string {
	return slices.DeleteFunc(ids, func(id string) bool {
		if err := errs.ValidateID(id); err != nil {
			logger.Warn("skipping anchor", "id", id, "err", err)
			return true
		}
		return false
	})
}

// Apply moves the cards on the page to the given positions and returns how
// many cards were found. Cards are visited in id order.
func (h *Host) Apply(ctx context.Context, positions map[string]anchor.Position) (int, error) {
	entries := make([]applyEntry, 0, len(positions))
	for _, p := range positions {
		entries = append(entries, applyEntry{
			Selector: selectorFor(h.cfg.CardSelector, p.ID),
			Top:      p.Top,
			Stacked:  p.IsStacked,
		})
	}
	slices.SortFunc(entries, func(a, b applyEntry) int {
		return cmp.Compare(a.Selector, b.Selector)
	})

	ctx, cancel := joinContext(h.ctx, ctx)
	defer cancel()

	var n int
	if err := h.eval(ctx, applyScript(entries), &n, false); err != nil {
		return 0, fmt.Errorf("apply positions: %w", err)
	}
	return n, nil
}

// Screenshot captures the full page as PNG.
func (h *Host) Screenshot(ctx context.Context) ([]byte, error) {
	ctx, cancel := joinContext(h.ctx, ctx)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, 4*h.cfg.Timeout)
	defer cancelTimeout()

	var buf []byte
	if err := chromedp.Run(ctx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return buf, nil
}

// joinContext returns a context carrying base's values (the chromedp tab)
// that is also cancelled when op is.
func joinContext(base, op context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(base)
	stop := context.AfterFunc(op, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
