package anchor

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	errs "github.com/matzehuels/anchorstack/pkg/errors"
	"github.com/matzehuels/anchorstack/pkg/observability"
)

// Options configures a Scheduler.
type Options[T any] struct {
	Items      []Item[T]
	SelectedID string
	Resolver   Resolver[T]
}

// Option tunes optional scheduler settings.
type Option func(*settings)

type settings struct {
	gap    float64
	logger *log.Logger
}

// WithGap sets the minimum clearance between cards. The default is DefaultGap.
func WithGap(gap float64) Option { return func(s *settings) { s.gap = gap } }

// WithLogger sets the logger used for diagnostics. The default is log.Default().
func WithLogger(l *log.Logger) Option { return func(s *settings) { s.logger = l } }

// Scheduler keeps published positions current.
//
// Any number of triggers between two frames collapse into one recomputation,
// which reads the latest items, selection and gap when the frame fires. The
// recomputation never runs inside the trigger call itself.
//
// A Scheduler is safe for concurrent use. The resolver, the host measurements
// and subscribers run inside the frame callback without any scheduler lock
// held, so they may call back into the scheduler.
type Scheduler[T any] struct {
	ctx       context.Context
	cancel    context.CancelFunc
	stopAfter func() bool
	wg        sync.WaitGroup

	host     Host
	resolver Resolver[T]
	logger   *log.Logger

	mu          sync.Mutex
	items       []Item[T]
	selectedID  string
	gap         float64
	handles     *Handles
	observers   map[*Handle]func()
	armed       bool
	frameSeq    uint64
	cancelFrame func()
	stopListen  func()
	closed      bool

	pubMu    sync.RWMutex
	snapshot Snapshot[T]
	subs     map[int]func(Snapshot[T])
	nextSub  int
}

// NewScheduler creates a scheduler and arms its first recomputation.
//
// The scheduler lives until Close is called or ctx is cancelled. Items with
// duplicate or empty ids are dropped with a warning; the first occurrence of
// an id wins.
func NewScheduler[T any](ctx context.Context, host Host, opts Options[T], options ...Option) (*Scheduler[T], error) {
	if host == nil {
		return nil, errs.New(errs.ErrCodeInvalidInput, "scheduler requires a host")
	}
	if opts.Resolver == nil {
		return nil, errs.New(errs.ErrCodeInvalidInput, "scheduler requires an anchor resolver")
	}

	cfg := settings{gap: DefaultGap}
	for _, o := range options {
		o(&cfg)
	}
	if err := errs.ValidateGap(cfg.gap); err != nil {
		return nil, err
	}
	if cfg.logger == nil {
		cfg.logger = log.Default()
	}

	s := &Scheduler[T]{
		host:       host,
		resolver:   opts.Resolver,
		logger:     cfg.logger,
		selectedID: opts.SelectedID,
		gap:        cfg.gap,
		observers:  make(map[*Handle]func()),
		snapshot:   Snapshot[T]{Positions: map[string]Position{}, SortedItems: []Item[T]{}},
		subs:       make(map[int]func(Snapshot[T])),
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.items = s.sanitize(opts.Items)
	s.handles = newHandles(s.attached)

	s.stopListen = host.Listen(s.trigger)
	if settled := host.Settled(); settled != nil {
		s.wg.Add(1)
		go s.awaitSettled(settled)
	}
	stopAfter := context.AfterFunc(ctx, func() { _ = s.Close() })
	s.mu.Lock()
	s.stopAfter = stopAfter
	s.mu.Unlock()

	s.trigger(TriggerMount)
	return s, nil
}

func (s *Scheduler[T]) awaitSettled(settled <-chan struct{}) {
	defer s.wg.Done()
	select {
	case <-settled:
		s.trigger(TriggerSettled)
	case <-s.ctx.Done():
	}
}

// sanitize copies items, dropping empty and duplicate ids.
func (s *Scheduler[T]) sanitize(items []Item[T]) []Item[T] {
	kept, dropped := dedupe(items)
	for _, id := range dropped {
		if id == "" {
			s.logger.Warn("dropping item with empty id")
			continue
		}
		s.logger.Warn("dropping duplicate item id", "item", id)
	}
	return kept
}

// =============================================================================
// Triggers
// =============================================================================

// SetItems replaces the item list. When the set of ids differs from the
// current one, the handle registry is replaced wholesale and callers must
// fetch it again with Handles.
func (s *Scheduler[T]) SetItems(items []Item[T]) {
	items = s.sanitize(items)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	var stale map[*Handle]func()
	if !sameIDs(s.items, items) {
		stale = s.observers
		s.observers = make(map[*Handle]func())
		s.handles = newHandles(s.attached)
	}
	s.items = items
	s.mu.Unlock()

	for _, stop := range stale {
		stop()
	}
	s.trigger(TriggerItems)
}

// Select changes the selected item. An empty id clears the selection.
func (s *Scheduler[T]) Select(id string) {
	s.mu.Lock()
	changed := s.selectedID != id
	s.selectedID = id
	s.mu.Unlock()

	if changed {
		s.trigger(TriggerSelection)
	}
}

// SetGap changes the clearance between cards.
func (s *Scheduler[T]) SetGap(gap float64) error {
	if err := errs.ValidateGap(gap); err != nil {
		return err
	}

	s.mu.Lock()
	changed := s.gap != gap
	s.gap = gap
	s.mu.Unlock()

	if changed {
		s.trigger(TriggerGap)
	}
	return nil
}

// Invalidate requests a recomputation for a change the scheduler cannot see.
func (s *Scheduler[T]) Invalidate() {
	s.trigger(TriggerManual)
}

// trigger arms a frame unless one is already pending.
func (s *Scheduler[T]) trigger(t Trigger) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.armed {
		s.mu.Unlock()
		observability.Scheduler().OnCoalesced(s.ctx, t.String())
		return
	}
	s.armed = true
	s.frameSeq++
	seq := s.frameSeq
	s.mu.Unlock()

	observability.Scheduler().OnSchedule(s.ctx, t.String())
	s.logger.Debug("recompute scheduled", "trigger", t)

	cancel := s.host.RequestFrame(func() { s.frame(seq) })

	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		cancel()
		return
	case s.armed && s.frameSeq == seq:
		s.cancelFrame = cancel
	}
	s.mu.Unlock()
}

// attached keeps the size observer in step with a handle's element.
// It runs with the handle's lock held.
func (s *Scheduler[T]) attached(h *Handle, _, next Element) {
	s.mu.Lock()
	if s.closed || h.owner != s.handles {
		s.mu.Unlock()
		return
	}
	stop := s.observers[h]
	delete(s.observers, h)
	s.mu.Unlock()

	if stop != nil {
		stop()
	}

	if next != nil {
		stop = s.host.Observe(next, func() { s.trigger(TriggerElementResize) })

		s.mu.Lock()
		if s.closed || h.owner != s.handles {
			s.mu.Unlock()
			stop()
			return
		}
		s.observers[h] = stop
		s.mu.Unlock()
	}

	s.trigger(TriggerElementAttached)
}

// =============================================================================
// Recomputation
// =============================================================================

// frame runs one recomputation cycle for the frame armed with seq.
func (s *Scheduler[T]) frame(seq uint64) {
	s.mu.Lock()
	if s.closed || !s.armed || s.frameSeq != seq {
		s.mu.Unlock()
		return
	}
	s.armed = false
	s.cancelFrame = nil
	items := s.items
	selectedID := s.selectedID
	gap := s.gap
	handles := s.handles
	s.mu.Unlock()

	start := time.Now()
	result, unresolved := s.measureAndSolve(items, selectedID, gap, handles)
	observability.Scheduler().OnCycle(s.ctx, len(result.SortedItems), unresolved, time.Since(start))

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.pubMu.Lock()
	s.snapshot = Snapshot[T]{
		Positions:   result.Positions,
		SortedItems: result.SortedItems,
		Revision:    s.snapshot.Revision + 1,
	}
	snap := s.snapshot
	subs := slices.Collect(maps.Values(s.subs))
	s.pubMu.Unlock()
	s.mu.Unlock()

	s.logger.Debug("positions published",
		"revision", snap.Revision,
		"items", len(snap.SortedItems),
		"unresolved", unresolved)

	for _, fn := range subs {
		fn(snap)
	}
}

// measureAndSolve resolves anchors, measures them and the attached cards, and
// solves the resolved subset.
func (s *Scheduler[T]) measureAndSolve(items []Item[T], selectedID string, gap float64, handles *Handles) (Result[T], int) {
	scrollTop := s.host.ScrollTop()
	anchorTops := make(map[string]float64, len(items))
	heights := make(map[string]float64, len(items))
	resolved := make([]Item[T], 0, len(items))

	for _, item := range items {
		el := s.resolver(item)
		if el == nil {
			s.logger.Error("could not find anchor element", "item", item.ID)
			observability.Scheduler().OnUnresolved(s.ctx, item.ID)
			continue
		}
		anchorTops[item.ID] = el.Bounds().Top + scrollTop
		resolved = append(resolved, item)
	}

	for _, item := range resolved {
		if card := handles.Get(item.ID).Element(); card != nil {
			heights[item.ID] = card.Bounds().Height
		}
	}

	result := Solve(Input[T]{
		Items:      resolved,
		AnchorTops: anchorTops,
		Heights:    heights,
		SelectedID: selectedID,
		Gap:        gap,
	})
	return result, len(items) - len(resolved)
}

// =============================================================================
// Read side
// =============================================================================

// Subscribe calls fn after every publish until cancel is called. fn runs on
// whichever goroutine the host runs frames on.
func (s *Scheduler[T]) Subscribe(fn func(Snapshot[T])) (cancel func()) {
	s.pubMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.pubMu.Unlock()

	return func() {
		s.pubMu.Lock()
		delete(s.subs, id)
		s.pubMu.Unlock()
	}
}

// Snapshot returns the latest published result.
func (s *Scheduler[T]) Snapshot() Snapshot[T] {
	s.pubMu.RLock()
	defer s.pubMu.RUnlock()
	return s.snapshot
}

// Positions returns a copy of the latest published positions.
func (s *Scheduler[T]) Positions() map[string]Position {
	return maps.Clone(s.Snapshot().Positions)
}

// SortedItems returns a copy of the latest published items in anchor order.
func (s *Scheduler[T]) SortedItems() []Item[T] {
	return slices.Clone(s.Snapshot().SortedItems)
}

// Handles returns the current handle registry.
func (s *Scheduler[T]) Handles() *Handles {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handles
}

// Items returns a copy of the current item list.
func (s *Scheduler[T]) Items() []Item[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.items)
}

// Selected returns the selected id, or "" when nothing is selected.
func (s *Scheduler[T]) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedID
}

// Gap returns the configured clearance.
func (s *Scheduler[T]) Gap() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gap
}

// Pending reports whether a recomputation is armed.
func (s *Scheduler[T]) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armed
}

// =============================================================================
// Teardown
// =============================================================================

// Close cancels a pending frame, stops every host subscription and makes all
// later triggers no-ops. The last published snapshot stays readable. Close is
// idempotent.
func (s *Scheduler[T]) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.armed = false
	cancelFrame := s.cancelFrame
	s.cancelFrame = nil
	stopListen := s.stopListen
	s.stopListen = nil
	observers := s.observers
	s.observers = nil
	stopAfter := s.stopAfter
	s.mu.Unlock()

	if stopAfter != nil {
		stopAfter()
	}
	s.cancel()
	if cancelFrame != nil {
		cancelFrame()
	}
	if stopListen != nil {
		stopListen()
	}
	for _, stop := range observers {
		stop()
	}
	s.wg.Wait()
	return nil
}
