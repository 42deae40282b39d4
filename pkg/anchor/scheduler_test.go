package anchor_test

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/anchorstack/pkg/anchor"
	errs "github.com/matzehuels/anchorstack/pkg/errors"
	"github.com/matzehuels/anchorstack/pkg/host/memory"
	"github.com/matzehuels/anchorstack/pkg/observability"
)

type fixture struct {
	host  *memory.Host
	sched *anchor.Scheduler[string]
}

// newFixture mounts a scheduler over anchors placed at the given document
// tops. Items are created in the order of ids.
func newFixture(t *testing.T, ids []string, tops []float64, opts ...anchor.Option) *fixture {
	t.Helper()
	h := memory.New()
	items := make([]anchor.Item[string], len(ids))
	for i, id := range ids {
		h.SetAnchor(id, h.NewElement(tops[i], 0))
		items[i] = anchor.Item[string]{ID: id, Data: "comment " + id}
	}

	opts = append([]anchor.Option{anchor.WithLogger(log.New(io.Discard))}, opts...)
	s, err := anchor.NewScheduler(context.Background(), h, anchor.Options[string]{
		Items:    items,
		Resolver: memory.Resolver[string](h),
	}, opts...)
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return &fixture{host: h, sched: s}
}

// attach gives every id a card of the given height.
func (f *fixture) attach(height float64, ids ...string) map[string]*memory.Element {
	cards := make(map[string]*memory.Element, len(ids))
	for _, id := range ids {
		card := f.host.NewElement(0, height)
		f.sched.Handles().Get(id).Attach(card)
		cards[id] = card
	}
	return cards
}

func wantTop(t *testing.T, got map[string]anchor.Position, id string, top float64, stacked bool) {
	t.Helper()
	p, ok := got[id]
	if !ok {
		t.Fatalf("no position for %q in %v", id, got)
	}
	if p.Top != top || p.IsStacked != stacked {
		t.Errorf("%s = {Top: %v, IsStacked: %v}, want {Top: %v, IsStacked: %v}",
			id, p.Top, p.IsStacked, top, stacked)
	}
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNewSchedulerValidation(t *testing.T) {
	h := memory.New()
	ctx := context.Background()
	quiet := anchor.WithLogger(log.New(io.Discard))

	if _, err := anchor.NewScheduler[string](ctx, nil, anchor.Options[string]{
		Resolver: memory.Resolver[string](h),
	}); !errs.Is(err, errs.ErrCodeInvalidInput) {
		t.Errorf("nil host: error = %v, want INVALID_INPUT", err)
	}

	if _, err := anchor.NewScheduler(ctx, h, anchor.Options[string]{}); !errs.Is(err, errs.ErrCodeInvalidInput) {
		t.Errorf("nil resolver: error = %v, want INVALID_INPUT", err)
	}

	if _, err := anchor.NewScheduler(ctx, h, anchor.Options[string]{
		Resolver: memory.Resolver[string](h),
	}, anchor.WithGap(-1), quiet); !errs.Is(err, errs.ErrCodeInvalidGap) {
		t.Errorf("negative gap: error = %v, want INVALID_GAP", err)
	}

	if h.Listeners() != 0 || h.Pending() != 0 {
		t.Error("rejected schedulers must not touch the host")
	}
}

func TestSchedulerMountPublishesOnFrame(t *testing.T) {
	f := newFixture(t, []string{"a", "b"}, []float64{100, 300})

	if !f.sched.Pending() {
		t.Fatal("mount should arm a frame")
	}
	if f.host.Pending() != 1 {
		t.Fatalf("host frames = %d, want 1", f.host.Pending())
	}
	if snap := f.sched.Snapshot(); snap.Revision != 0 || len(snap.Positions) != 0 {
		t.Fatalf("nothing should be published before the frame, got %+v", snap)
	}

	if n := f.host.Flush(); n != 1 {
		t.Fatalf("Flush() ran %d frames, want 1", n)
	}

	snap := f.sched.Snapshot()
	if snap.Revision != 1 {
		t.Errorf("Revision = %d, want 1", snap.Revision)
	}
	wantTop(t, snap.Positions, "a", 100, false)
	wantTop(t, snap.Positions, "b", 300, false)
	if got := anchor.IDs(snap.SortedItems); strings.Join(got, ",") != "a,b" {
		t.Errorf("SortedItems = %v, want [a b]", got)
	}
	if f.sched.Pending() {
		t.Error("no frame should be armed after publishing")
	}
}

func TestSchedulerCoalescesTriggers(t *testing.T) {
	f := newFixture(t, []string{"a", "b"}, []float64{0, 0})
	f.host.Flush()

	var calls int
	cancel := f.sched.Subscribe(func(anchor.Snapshot[string]) { calls++ })
	defer cancel()

	f.host.ResizeWindow()
	f.host.ScrollTo(10)
	f.sched.Invalidate()
	f.sched.Select("b")
	if err := f.sched.SetGap(4); err != nil {
		t.Fatal(err)
	}
	f.sched.Select("a")

	if f.host.Pending() != 1 {
		t.Fatalf("host frames = %d, want 1", f.host.Pending())
	}
	f.host.Flush()

	if calls != 1 {
		t.Errorf("subscriber calls = %d, want 1", calls)
	}
	snap := f.sched.Snapshot()
	if snap.Revision != 2 {
		t.Errorf("Revision = %d, want 2", snap.Revision)
	}
	// Latest selection and gap win; no cards attached so heights are zero.
	wantTop(t, snap.Positions, "a", 0, false)
	wantTop(t, snap.Positions, "b", 4, true)
}

func TestSchedulerTriggersNeverRunSynchronously(t *testing.T) {
	f := newFixture(t, []string{"a"}, []float64{50})
	f.host.Flush()

	f.sched.Invalidate()
	if rev := f.sched.Snapshot().Revision; rev != 1 {
		t.Errorf("Revision after trigger = %d, want 1 until the frame runs", rev)
	}
}

func TestSchedulerUsesCardHeights(t *testing.T) {
	f := newFixture(t, []string{"a", "b"}, []float64{0, 0})
	f.host.Flush()

	// Unattached cards count as zero height.
	wantTop(t, f.sched.Positions(), "b", anchor.DefaultGap, true)

	f.attach(20, "a", "b")
	f.host.Flush()
	wantTop(t, f.sched.Positions(), "b", 20+anchor.DefaultGap, true)
}

func TestSchedulerSelectionRelief(t *testing.T) {
	f := newFixture(t, []string{"a", "b"}, []float64{0, 0}, anchor.WithGap(6))
	f.attach(20, "a", "b")
	f.sched.Select("b")
	f.host.Flush()

	got := f.sched.Positions()
	wantTop(t, got, "a", -26, true)
	wantTop(t, got, "b", 0, false)
	if f.sched.Selected() != "b" {
		t.Errorf("Selected() = %q, want b", f.sched.Selected())
	}

	f.sched.Select("")
	f.host.Flush()
	got = f.sched.Positions()
	wantTop(t, got, "a", 0, false)
	wantTop(t, got, "b", 26, true)
}

func TestSchedulerCardResizeTriggers(t *testing.T) {
	f := newFixture(t, []string{"a", "b"}, []float64{0, 0})
	cards := f.attach(10, "a", "b")
	f.host.Flush()

	if got := f.host.Observed(cards["a"]); got != 1 {
		t.Fatalf("observers on card a = %d, want 1", got)
	}

	cards["a"].Resize(30)
	if f.host.Pending() != 1 {
		t.Fatalf("resize should arm a frame, host frames = %d", f.host.Pending())
	}
	f.host.Flush()
	wantTop(t, f.sched.Positions(), "b", 30+anchor.DefaultGap, true)

	f.sched.Handles().Get("a").Detach()
	if got := f.host.Observed(cards["a"]); got != 0 {
		t.Errorf("observers after detach = %d, want 0", got)
	}
	f.host.Flush()
	wantTop(t, f.sched.Positions(), "b", anchor.DefaultGap, true)
}

func TestSchedulerReattachSwapsObserver(t *testing.T) {
	f := newFixture(t, []string{"a"}, []float64{0})
	h := f.sched.Handles().Get("a")

	first := f.host.NewElement(0, 10)
	second := f.host.NewElement(0, 12)
	h.Attach(first)
	h.Attach(second)

	if f.host.Observed(first) != 0 || f.host.Observed(second) != 1 {
		t.Errorf("observers = (%d, %d), want (0, 1)", f.host.Observed(first), f.host.Observed(second))
	}
}

func TestSchedulerScrollDoesNotMoveDocumentPositions(t *testing.T) {
	f := newFixture(t, []string{"a", "b"}, []float64{120, 400})
	f.host.Flush()
	before := f.sched.Positions()

	f.host.ScrollTo(250)
	f.host.Flush()
	after := f.sched.Positions()

	for id, p := range before {
		if after[id] != p {
			t.Errorf("%s moved from %+v to %+v after scrolling", id, p, after[id])
		}
	}
}

func TestSchedulerUnresolvedAnchors(t *testing.T) {
	var buf bytes.Buffer
	hooks := &recordingHooks{}
	observability.SetSchedulerHooks(hooks)
	defer observability.Reset()

	f := newFixture(t, []string{"a", "b"}, []float64{0, 50}, anchor.WithLogger(log.New(&buf)))
	f.host.RemoveAnchor("b")
	f.host.Flush()

	got := f.sched.Positions()
	if _, ok := got["b"]; ok {
		t.Error("unresolved item should have no position")
	}
	if len(f.sched.SortedItems()) != 1 {
		t.Errorf("SortedItems = %v, want only a", f.sched.SortedItems())
	}
	if !strings.Contains(buf.String(), "could not find anchor element") || !strings.Contains(buf.String(), "b") {
		t.Errorf("log output = %q, want unresolved diagnostic for b", buf.String())
	}
	if ids := hooks.unresolvedIDs(); len(ids) != 1 || ids[0] != "b" {
		t.Errorf("OnUnresolved ids = %v, want [b]", ids)
	}

	// Retried on the next cycle.
	f.host.SetAnchor("b", f.host.NewElement(80, 0))
	f.sched.Invalidate()
	f.host.Flush()
	wantTop(t, f.sched.Positions(), "b", 80, false)
}

func TestSchedulerDropsDuplicateIDs(t *testing.T) {
	var buf bytes.Buffer
	h := memory.New()
	h.SetAnchor("a", h.NewElement(0, 0))
	s, err := anchor.NewScheduler(context.Background(), h, anchor.Options[string]{
		Items: []anchor.Item[string]{
			{ID: "a", Data: "first"},
			{ID: "a", Data: "second"},
			{ID: "", Data: "anonymous"},
		},
		Resolver: memory.Resolver[string](h),
	}, anchor.WithLogger(log.New(&buf)))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	items := s.Items()
	if len(items) != 1 || items[0].Data != "first" {
		t.Errorf("Items() = %v, want only the first a", items)
	}
	if !strings.Contains(buf.String(), "dropping duplicate item id") {
		t.Errorf("log output = %q, want duplicate warning", buf.String())
	}
}

func TestSchedulerSetItemsRebuildsHandlesOnNewIDs(t *testing.T) {
	f := newFixture(t, []string{"a", "b"}, []float64{0, 30})
	cards := f.attach(10, "a", "b")
	f.host.Flush()
	old := f.sched.Handles()

	// Same ids, different order and data: registry kept.
	f.sched.SetItems([]anchor.Item[string]{{ID: "b", Data: "x"}, {ID: "a", Data: "y"}})
	if f.sched.Handles() != old {
		t.Fatal("registry should survive an update with the same ids")
	}
	if f.host.Observed(cards["a"]) != 1 {
		t.Error("observers should survive an update with the same ids")
	}

	f.host.SetAnchor("c", f.host.NewElement(60, 0))
	f.sched.SetItems([]anchor.Item[string]{{ID: "a"}, {ID: "c"}})
	fresh := f.sched.Handles()
	if fresh == old {
		t.Fatal("registry should be replaced when the id set changes")
	}
	if fresh.Len() != 0 {
		t.Errorf("fresh registry has %d handles, want 0", fresh.Len())
	}
	if f.host.Observed(cards["a"]) != 0 || f.host.Observed(cards["b"]) != 0 {
		t.Error("observers of the old registry should be stopped")
	}

	// Attaching through a stale handle is ignored.
	old.Get("a").Attach(f.host.NewElement(0, 99))
	f.host.Flush()

	got := f.sched.Positions()
	wantTop(t, got, "a", 0, false)
	wantTop(t, got, "c", 60, false)
	if _, ok := got["b"]; ok {
		t.Error("removed item b should have no position")
	}
}

func TestSchedulerSubscribeCancel(t *testing.T) {
	f := newFixture(t, []string{"a"}, []float64{0})

	var calls int
	cancel := f.sched.Subscribe(func(anchor.Snapshot[string]) { calls++ })
	f.host.Flush()
	cancel()
	f.sched.Invalidate()
	f.host.Flush()

	if calls != 1 {
		t.Errorf("subscriber calls = %d, want 1", calls)
	}
}

func TestSchedulerSubscriberMayReenter(t *testing.T) {
	f := newFixture(t, []string{"a"}, []float64{0})

	var seen []uint64
	cancel := f.sched.Subscribe(func(s anchor.Snapshot[string]) {
		seen = append(seen, s.Revision)
		if s.Revision == 1 {
			f.sched.Invalidate()
		}
	})
	defer cancel()

	f.host.Flush()
	f.host.Flush()
	if len(seen) != 2 || seen[1] != 2 {
		t.Errorf("revisions seen = %v, want [1 2]", seen)
	}
}

func TestSchedulerCloseCancelsPendingFrame(t *testing.T) {
	f := newFixture(t, []string{"a"}, []float64{0})
	card := f.attach(10, "a")["a"]
	f.host.Flush()

	f.sched.Invalidate()
	if err := f.sched.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := f.sched.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	if f.host.Pending() != 0 {
		t.Errorf("host frames = %d, want 0 after Close", f.host.Pending())
	}
	if f.host.Listeners() != 0 {
		t.Errorf("listeners = %d, want 0 after Close", f.host.Listeners())
	}
	if f.host.Observed(card) != 0 {
		t.Errorf("card observers = %d, want 0 after Close", f.host.Observed(card))
	}

	f.sched.Invalidate()
	f.host.ScrollTo(40)
	f.host.Flush()
	if rev := f.sched.Snapshot().Revision; rev != 1 {
		t.Errorf("Revision = %d, want 1: nothing publishes after Close", rev)
	}
	wantTop(t, f.sched.Positions(), "a", 0, false)
}

func TestSchedulerClosesWithContext(t *testing.T) {
	h := memory.New()
	ctx, cancel := context.WithCancel(context.Background())
	s, err := anchor.NewScheduler(ctx, h, anchor.Options[string]{
		Resolver: memory.Resolver[string](h),
	}, anchor.WithLogger(log.New(io.Discard)))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	cancel()
	eventually(t, func() bool { return h.Listeners() == 0 && h.Pending() == 0 })
}

func TestSchedulerSettledTriggers(t *testing.T) {
	f := newFixture(t, []string{"a"}, []float64{0})
	f.host.Flush()

	f.host.Settle()
	eventually(t, f.sched.Pending)
	f.host.Flush()
	if rev := f.sched.Snapshot().Revision; rev != 2 {
		t.Errorf("Revision = %d, want 2", rev)
	}
}

func TestSchedulerSetGapRejectsNegative(t *testing.T) {
	f := newFixture(t, []string{"a"}, []float64{0})
	if err := f.sched.SetGap(-3); !errs.Is(err, errs.ErrCodeInvalidGap) {
		t.Errorf("SetGap(-3) error = %v, want INVALID_GAP", err)
	}
	if f.sched.Gap() != anchor.DefaultGap {
		t.Errorf("Gap() = %v, want %v", f.sched.Gap(), anchor.DefaultGap)
	}
}

func TestSchedulerConcurrentTriggers(t *testing.T) {
	f := newFixture(t, []string{"a", "b", "c"}, []float64{0, 10, 20})
	f.attach(15, "a", "b", "c")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				switch j % 3 {
				case 0:
					f.sched.Invalidate()
				case 1:
					f.sched.Select([]string{"a", "b", "c", ""}[i%4])
				default:
					f.host.ResizeWindow()
				}
			}
		}(i)
	}
	wg.Wait()

	if f.host.Pending() != 1 {
		t.Fatalf("host frames = %d, want exactly one coalesced frame", f.host.Pending())
	}
	f.host.Flush()
	if len(f.sched.Positions()) != 3 {
		t.Errorf("Positions() = %v, want 3 entries", f.sched.Positions())
	}
}

type recordingHooks struct {
	observability.NoopSchedulerHooks
	mu  sync.Mutex
	ids []string
}

func (h *recordingHooks) OnUnresolved(_ context.Context, id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ids = append(h.ids, id)
}

func (h *recordingHooks) unresolvedIDs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.ids...)
}
