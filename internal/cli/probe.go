package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/anchorstack/pkg/anchor"
	"github.com/matzehuels/anchorstack/pkg/cache"
	errs "github.com/matzehuels/anchorstack/pkg/errors"
	"github.com/matzehuels/anchorstack/pkg/host/cdp"
	"github.com/matzehuels/anchorstack/pkg/render/sink"
)

const (
	probeFormatTable = "table"
	probeFormatJSON  = "json"

	probeAttempts  = 3
	probeBaseDelay = 2 * time.Second
)

// probeOpts holds the command-line flags for the probe command.
type probeOpts struct {
	ids        []string
	selected   string
	apply      bool
	screenshot string // PNG path; empty means no screenshot
	format     string
	output     string
	noCache    bool
	refresh    bool
}

// probeCommand creates the probe command: open a page in Chrome, drive a
// scheduler from the live DOM and report where the cards end up.
func (c *CLI) probeCommand() *cobra.Command {
	var opts probeOpts

	cmd := &cobra.Command{
		Use:   "probe [url]",
		Short: "Place the cards of a live web page",
		Long: `Probe opens a page in headless Chrome, finds its anchors and cards by
selector, places the cards with the same scheduler used offline and
reports the settled layout.

Anchors and cards are matched by id: by default [data-anchor-id="<id>"]
and [data-card-id="<id>"]. --apply moves the cards on the page and
--screenshot saves the result as PNG.`,
		Example: `  anchorstack probe http://localhost:3000/review/42
  anchorstack probe file:///tmp/page.html --selected c2 --apply --screenshot page.png`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runProbe(cmd, args[0], opts)
		},
	}

	fs := cmd.Flags()
	fs.String("anchor-selector", "", "anchor selector template with one %s for the id")
	fs.String("card-selector", "", "card selector template with one %s for the id")
	fs.Int("width", 1280, "viewport width")
	fs.Int("height", 800, "viewport height")
	fs.Bool("headful", false, "show the browser window")
	fs.String("chrome", "", "path to the Chrome executable")
	fs.Duration("timeout", 30*time.Second, "navigation timeout")
	fs.Duration("settle", cdp.DefaultSettle, "how long the layout must stay unchanged")
	fs.Float64("gap", anchor.DefaultGap, "minimum space between cards in CSS pixels")
	fs.StringSliceVar(&opts.ids, "ids", nil, "ids to place (default: every anchor on the page)")
	fs.StringVar(&opts.selected, "selected", "", "card to place on its anchor")
	fs.BoolVar(&opts.apply, "apply", false, "move the cards on the page")
	fs.StringVar(&opts.screenshot, "screenshot", "", "save a full-page PNG to this path")
	fs.StringVarP(&opts.format, "format", "f", probeFormatTable, "output format: table, json")
	fs.StringVarP(&opts.output, "output", "o", "", "write the layout to a file instead of stdout")
	fs.BoolVar(&opts.noCache, "no-cache", false, "disable the probe cache")
	fs.BoolVar(&opts.refresh, "refresh", false, "probe again even when the layout is cached")

	bindConfig(fs, "anchor-selector", "probe.anchor_selector")
	bindConfig(fs, "card-selector", "probe.card_selector")
	bindConfig(fs, "width", "probe.width")
	bindConfig(fs, "height", "probe.height")
	bindConfig(fs, "headful", "probe.headful")
	bindConfig(fs, "chrome", "probe.exec_path")
	bindConfig(fs, "timeout", "probe.nav_timeout")
	bindConfig(fs, "settle", "probe.settle")
	bindConfig(fs, "gap", "solve.gap")

	return cmd
}

func (c *CLI) runProbe(cmd *cobra.Command, url string, opts probeOpts) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)
	stderr := cmd.ErrOrStderr()

	if opts.format != probeFormatTable && opts.format != probeFormatJSON {
		return errs.New(errs.ErrCodeInvalidFormat, "invalid format: %q (must be table or json)", opts.format)
	}
	if err := errs.ValidateURL(url); err != nil {
		return err
	}
	for _, id := range opts.ids {
		if err := errs.ValidateID(id); err != nil {
			return err
		}
	}

	p := c.Config.Probe
	popts := cdp.ProbeOptions{
		Browser: cdp.BrowserOptions{
			Width:      p.Width,
			Height:     p.Height,
			Headful:    p.Headful,
			ExecPath:   p.ExecPath,
			NavTimeout: p.NavTimeout,
		},
		Host: cdp.Config{
			AnchorSelector: p.AnchorSelector,
			CardSelector:   p.CardSelector,
			FrameInterval:  p.FrameInterval,
			PollInterval:   p.PollInterval,
			Logger:         logger,
		},
		IDs:        opts.ids,
		Selected:   opts.selected,
		Gap:        c.Config.Solve.Gap,
		Settle:     p.Settle,
		Apply:      opts.apply,
		Screenshot: opts.screenshot != "",
	}

	// Probes with side effects always run.
	useCache := !opts.noCache && !opts.apply && opts.screenshot == ""
	cc, err := c.newCache(ctx, !useCache)
	if err != nil {
		return err
	}
	defer cc.Close()

	key := cache.NewDefaultKeyer().ProbeKey(url, cache.ProbeKeyOpts{
		AnchorSelector: p.AnchorSelector,
		CardSelector:   p.CardSelector,
		Width:          p.Width,
		Height:         p.Height,
		Selected:       opts.selected,
		Gap:            popts.Gap,
		IDs:            opts.ids,
	})

	layout, hit := cachedLayout(ctx, cc, key, opts.refresh)
	if hit {
		logger.Debug("probe cache hit", "url", url)
	} else {
		res, err := c.probeWithRetry(ctx, cmd, url, popts)
		if err != nil {
			return err
		}
		layout = res.Layout

		if useCache {
			if data, err := json.Marshal(layout); err == nil {
				if err := cc.Set(ctx, key, data, cache.TTLProbe); err != nil {
					logger.Warn("cache write failed", "err", err)
				}
			}
		}
		if opts.apply {
			printInfo(stderr, "Moved %d cards on the page", res.Applied)
		}
		if opts.screenshot != "" {
			if err := os.WriteFile(opts.screenshot, res.Screenshot, 0o644); err != nil {
				return fmt.Errorf("write screenshot: %w", err)
			}
			printFile(stderr, opts.screenshot)
		}
	}

	if err := c.writeProbeLayout(cmd, layout, opts); err != nil {
		return err
	}
	for _, id := range layout.Unresolved {
		printWarning(stderr, "anchor %q not found on the page", id)
	}
	printStats(stderr, len(layout.Cards), countStacked(layout), hit)
	return nil
}

// probeWithRetry runs cdp.Probe behind a spinner, retrying when Chrome or
// the page cannot be reached.
func (c *CLI) probeWithRetry(ctx context.Context, cmd *cobra.Command, url string, popts cdp.ProbeOptions) (*cdp.ProbeResult, error) {
	logger := loggerFromContext(ctx)
	spinner := newSpinner(ctx, cmd.ErrOrStderr(), "Probing "+url)
	spinner.Start()

	var res *cdp.ProbeResult
	attempt := 0
	err := cache.RetryWithBackoff(ctx, func() error {
		attempt++
		if attempt > 1 {
			spinner.SetMessage(fmt.Sprintf("Probing %s (attempt %d)", url, attempt))
		}
		r, err := cdp.Probe(ctx, url, popts)
		if err != nil {
			if errs.Is(err, errs.ErrCodeNetwork) {
				logger.Debug("probe failed, retrying", "attempt", attempt, "err", err)
				return cache.Retryable(err)
			}
			return err
		}
		res = r
		return nil
	}, cache.WithAttempts(probeAttempts), cache.WithBaseDelay(probeBaseDelay))

	if err != nil {
		if spinner.Cancelled() {
			spinner.Stop()
			return nil, ctx.Err()
		}
		spinner.StopWithError("Probe failed")
		return nil, err
	}
	spinner.StopWithSuccess(fmt.Sprintf("Probed %s", url))
	return res, nil
}

// cachedLayout returns the layout stored under key. refresh skips the
// lookup. Cache failures count as misses.
func cachedLayout(ctx context.Context, cc cache.Cache, key string, refresh bool) (sink.Layout, bool) {
	if refresh {
		return sink.Layout{}, false
	}
	data, ok, err := cc.Get(ctx, key)
	if err != nil || !ok {
		if err != nil {
			loggerFromContext(ctx).Warn("cache read failed", "err", err)
		}
		return sink.Layout{}, false
	}
	var l sink.Layout
	if err := json.Unmarshal(data, &l); err != nil {
		return sink.Layout{}, false
	}
	return l, true
}

func (c *CLI) writeProbeLayout(cmd *cobra.Command, l sink.Layout, opts probeOpts) error {
	var data []byte
	switch opts.format {
	case probeFormatJSON:
		var err error
		if data, err = sink.RenderJSON(l); err != nil {
			return err
		}
	default:
		data = []byte(sink.RenderTable(l) + "\n")
	}

	if opts.output == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(opts.output, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", opts.output, err)
	}
	printFile(cmd.ErrOrStderr(), opts.output)
	return nil
}

func countStacked(l sink.Layout) int {
	n := 0
	for _, card := range l.Cards {
		if card.Stacked {
			n++
		}
	}
	return n
}
