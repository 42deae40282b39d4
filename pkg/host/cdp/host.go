package cdp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/matzehuels/anchorstack/pkg/anchor"
	errs "github.com/matzehuels/anchorstack/pkg/errors"
)

// Defaults for Config.
const (
	DefaultAnchorAttr    = "data-anchor-id"
	DefaultCardAttr      = "data-card-id"
	DefaultFrameInterval = 16 * time.Millisecond
	DefaultPollInterval  = 100 * time.Millisecond
	DefaultTimeout       = 5 * time.Second
)

// Config configures a Host. Zero fields take the defaults.
type Config struct {
	// AnchorAttr and CardAttr name the attributes holding item ids. They
	// are used by Discover and to derive the selector templates.
	AnchorAttr string
	CardAttr   string

	// AnchorSelector and CardSelector override the derived templates. Each
	// must contain exactly one %s.
	AnchorSelector string
	CardSelector   string

	FrameInterval time.Duration
	PollInterval  time.Duration
	Timeout       time.Duration

	Logger *log.Logger
}

func (c Config) withDefaults() Config {
	if c.AnchorAttr == "" {
		c.AnchorAttr = DefaultAnchorAttr
	}
	if c.CardAttr == "" {
		c.CardAttr = DefaultCardAttr
	}
	if c.AnchorSelector == "" {
		c.AnchorSelector = attrSelector(c.AnchorAttr)
	}
	if c.CardSelector == "" {
		c.CardSelector = attrSelector(c.CardAttr)
	}
	if c.FrameInterval <= 0 {
		c.FrameInterval = DefaultFrameInterval
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Logger == nil {
		c.Logger = log.Default()
	}
	return c
}

// Validate checks the selector templates.
func (c Config) Validate() error {
	c = c.withDefaults()
	if err := errs.ValidateSelectorTemplate(c.AnchorSelector); err != nil {
		return fmt.Errorf("anchor selector: %w", err)
	}
	if err := errs.ValidateSelectorTemplate(c.CardSelector); err != nil {
		return fmt.Errorf("card selector: %w", err)
	}
	return nil
}

type observer struct {
	el       *Element
	onResize func()
	height   float64
	seen     bool
}

// Host implements anchor.Host for one Chrome tab.
type Host struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    Config
	logger *log.Logger
	wg     sync.WaitGroup

	mu        sync.Mutex
	scrollTop float64
	vp        viewport
	vpKnown   bool
	listeners map[uint64]func(anchor.Trigger)
	observers map[uint64]*observer
	nextSub   uint64

	settled chan struct{}
}

var _ anchor.Host = (*Host)(nil)

// New wraps a chromedp tab context. The page should already be loaded; see
// Open. The host polls the page until Close is called or tab is cancelled.
func New(tab context.Context, cfg Config) (*Host, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if chromedp.FromContext(tab) == nil {
		return nil, errs.New(errs.ErrCodeInvalidInput, "context is not a chromedp context")
	}
	cfg = cfg.withDefaults()

	h := &Host{
		cfg:       cfg,
		logger:    cfg.Logger,
		listeners: make(map[uint64]func(anchor.Trigger)),
		observers: make(map[uint64]*observer),
		settled:   make(chan struct{}),
	}
	h.ctx, h.cancel = context.WithCancel(tab)

	h.wg.Add(2)
	go h.awaitFonts()
	go h.poll()
	return h, nil
}

// Close stops polling. It does not close the tab.
func (h *Host) Close() error {
	h.cancel()
	h.wg.Wait()
	return nil
}

// Config returns the effective configuration.
func (h *Host) Config() Config { return h.cfg }

// eval runs a script in the page with the host's timeout.
func (h *Host) eval(ctx context.Context, script string, res any, awaitPromise bool) error {
	ctx, cancel := context.WithTimeout(ctx, h.cfg.Timeout)
	defer cancel()

	var opts []chromedp.EvaluateOption
	if awaitPromise {
		opts = append(opts, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		})
	}
	err := chromedp.Run(ctx, chromedp.Evaluate(script, res, opts...))
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errs.Wrap(errs.ErrCodeTimeout, err, "page script timed out after %s", h.cfg.Timeout)
	}
	return err
}

// =============================================================================
// anchor.Host
// =============================================================================

// ScrollTop reads the page scroll offset, falling back to the last known
// value when the page cannot be reached.
func (h *Host) ScrollTop() float64 {
	var top float64
	if err := h.eval(h.ctx, scrollTopScript, &top, false); err != nil {
		h.logger.Debug("read scroll offset", "err", err)
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.scrollTop
	}
	h.mu.Lock()
	h.scrollTop = top
	h.mu.Unlock()
	return top
}

// RequestFrame runs fn after the frame interval on a timer goroutine.
func (h *Host) RequestFrame(fn func()) func() {
	t := time.AfterFunc(h.cfg.FrameInterval, func() {
		if h.ctx.Err() != nil {
			return
		}
		fn()
	})
	return func() { t.Stop() }
}

// Observe polls el's height and calls onResize when it changes.
func (h *Host) Observe(el anchor.Element, onResize func()) func() {
	e, ok := el.(*Element)
	if !ok {
		return func() {}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextSub++
	id := h.nextSub
	h.observers[id] = &observer{el: e, onResize: onResize}
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.observers, id)
	}
}

// Listen reports scroll and viewport size changes detected by polling.
func (h *Host) Listen(fn func(anchor.Trigger)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextSub++
	id := h.nextSub
	h.listeners[id] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.listeners, id)
	}
}

// Settled closes once the page's fonts have loaded.
func (h *Host) Settled() <-chan struct{} {
	return h.settled
}

// =============================================================================
// Background work
// =============================================================================

func (h *Host) awaitFonts() {
	defer h.wg.Done()
	var ready bool
	if err := h.eval(h.ctx, fontsReadyScript, &ready, true); err != nil {
		if h.ctx.Err() == nil {
			h.logger.Warn("waiting for fonts failed, treating layout as settled", "err", err)
		}
	}
	if h.ctx.Err() == nil {
		close(h.settled)
	}
}

func (h *Host) poll() {
	defer h.wg.Done()
	ticker := time.NewTicker(h.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			h.pollViewport()
			h.pollObservers()
		}
	}
}

func (h *Host) pollViewport() {
	var vp viewport
	if err := h.eval(h.ctx, viewportScript, &vp, false); err != nil {
		if h.ctx.Err() == nil {
			h.logger.Debug("poll viewport", "err", err)
		}
		return
	}

	h.mu.Lock()
	var triggers []anchor.Trigger
	if h.vpKnown {
		if vp.Width != h.vp.Width || vp.Height != h.vp.Height {
			triggers = append(triggers, anchor.TriggerResize)
		}
		if vp.ScrollTop != h.vp.ScrollTop {
			triggers = append(triggers, anchor.TriggerScroll)
		}
	}
	h.vp, h.vpKnown = vp, true
	h.scrollTop = vp.ScrollTop
	fns := make([]func(anchor.Trigger), 0, len(h.listeners))
	for _, fn := range h.listeners {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, t := range triggers {
		for _, fn := range fns {
			fn(t)
		}
	}
}

func (h *Host) pollObservers() {
	h.mu.Lock()
	obs := make([]*observer, 0, len(h.observers))
	selectors := make([]string, 0, len(h.observers))
	for _, o := range h.observers {
		obs = append(obs, o)
		selectors = append(selectors, o.el.selector)
	}
	h.mu.Unlock()
	if len(obs) == 0 {
		return
	}

	var heights []float64
	if err := h.eval(h.ctx, heightsScript(selectors), &heights, false); err != nil {
		if h.ctx.Err() == nil {
			h.logger.Debug("poll card sizes", "err", err)
		}
		return
	}

	var changed []func()
	h.mu.Lock()
	for i, o := range obs {
		if i >= len(heights) || heights[i] < 0 {
			continue
		}
		if o.seen && o.height != heights[i] {
			changed = append(changed, o.onResize)
		}
		o.height, o.seen = heights[i], true
	}
	h.mu.Unlock()

	for _, fn := range changed {
		fn()
	}
}
