package term

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/matzehuels/anchorstack/pkg/anchor"
	"github.com/matzehuels/anchorstack/pkg/document"
)

// DefaultGap is the clearance between cards in rows.
const DefaultGap = 1.0

const (
	defaultFrameDelay = 16 * time.Millisecond
	wheelStep         = 3
)

// Option configures the preview.
type Option func(*options)

type options struct {
	gap        *float64
	logger     *log.Logger
	frameDelay time.Duration
}

// WithGap overrides the document's gap.
func WithGap(gap float64) Option { return func(o *options) { o.gap = &gap } }

// WithLogger sets the scheduler's logger. Nothing should log to the
// terminal while the preview owns it; the default discards.
func WithLogger(l *log.Logger) Option { return func(o *options) { o.logger = l } }

// WithFrameDelay sets how long a requested frame waits before running.
func WithFrameDelay(d time.Duration) Option { return func(o *options) { o.frameDelay = d } }

// Model is the bubbletea model of the preview.
type Model struct {
	doc     *document.Document
	host    *Host
	sched   *anchor.Scheduler[document.Card]
	cards   map[string]*Card
	anchors map[string]*Anchor
	stopSub func()

	snap     anchor.Snapshot[document.Card]
	width    int
	height   int
	reveal   string
	quitting bool
}

// NewModel builds the preview for doc. Close releases the scheduler.
func NewModel(ctx context.Context, doc *document.Document, opts ...Option) (*Model, error) {
	o := options{frameDelay: defaultFrameDelay}
	for _, opt := range opts {
		opt(&o)
	}
	gap := doc.GapOr(DefaultGap)
	if o.gap != nil {
		gap = *o.gap
	}
	if o.logger == nil {
		o.logger = log.New(io.Discard)
	}

	m := &Model{
		doc:     doc,
		host:    newHost(o.frameDelay, doc.ScrollTop),
		cards:   make(map[string]*Card, len(doc.Cards)),
		anchors: make(map[string]*Anchor, len(doc.Cards)),
	}
	for _, c := range doc.Cards {
		m.anchors[c.ID] = &Anchor{host: m.host, row: c.Anchor}
		m.cards[c.ID] = &Card{host: m.host, card: c}
	}

	sched, err := anchor.NewScheduler(ctx, m.host, anchor.Options[document.Card]{
		Items:      doc.Items(),
		SelectedID: doc.Selected,
		Resolver:   m.resolve,
	}, anchor.WithGap(gap), anchor.WithLogger(o.logger))
	if err != nil {
		return nil, fmt.Errorf("start scheduler: %w", err)
	}
	m.sched = sched
	m.stopSub = sched.Subscribe(m.published)

	handles := sched.Handles()
	for id, c := range m.cards {
		handles.Get(id).Attach(c)
	}
	return m, nil
}

func (m *Model) resolve(it anchor.Item[document.Card]) anchor.Element {
	if a, ok := m.anchors[it.ID]; ok {
		return a
	}
	return nil
}

// Scheduler returns the scheduler driving the preview.
func (m *Model) Scheduler() *anchor.Scheduler[document.Card] { return m.sched }

// Close stops the scheduler and drops pending frames.
func (m *Model) Close() error {
	m.stopSub()
	err := m.sched.Close()
	m.host.close()
	return err
}

// published runs inside a frame, on the Update goroutine.
func (m *Model) published(s anchor.Snapshot[document.Card]) {
	m.snap = s
	if id := m.reveal; id != "" {
		m.reveal = ""
		m.scrollIntoView(id)
	}
}

// Init runs frames requested before the program started.
func (m *Model) Init() tea.Cmd {
	return func() tea.Msg { return runFramesMsg{} }
}

// Update handles frames, resizes, keys and the mouse wheel.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case frameMsg:
		m.host.runFrame(msg.id)

	case runFramesMsg:
		m.host.runPending()

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.host.resize(cardWidthFor(msg.Width))
		m.host.settle()
		m.scrollTo(int(m.host.ScrollTop()))

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "j", "down":
			m.step(1)
		case "k", "up":
			m.step(-1)
		case "esc":
			m.reveal = ""
			m.sched.Select("")
		case "pgdown", " ":
			m.scrollBy(m.viewHeight())
		case "pgup":
			m.scrollBy(-m.viewHeight())
		case "g", "home":
			m.scrollTo(0)
		case "G", "end":
			m.scrollTo(m.maxScroll())
		}

	case tea.MouseMsg:
		if msg.Action != tea.MouseActionPress {
			break
		}
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			m.scrollBy(-wheelStep)
		case tea.MouseButtonWheelDown:
			m.scrollBy(wheelStep)
		}
	}
	return m, nil
}

// step moves the selection through the cards in anchor order.
func (m *Model) step(delta int) {
	ids := anchor.IDs(m.snap.SortedItems)
	if len(ids) == 0 {
		return
	}

	current := m.sched.Selected()
	idx := -1
	for i, id := range ids {
		if id == current {
			idx = i
			break
		}
	}

	switch {
	case idx < 0 && delta > 0:
		idx = 0
	case idx < 0:
		idx = len(ids) - 1
	default:
		idx = min(max(idx+delta, 0), len(ids)-1)
	}

	next := ids[idx]
	if next == current {
		m.scrollIntoView(next)
		return
	}
	m.reveal = next
	m.sched.Select(next)
}

// scrollIntoView scrolls so the card and its anchor are visible, using the
// latest published position.
func (m *Model) scrollIntoView(id string) {
	pos, ok := m.snap.Positions[id]
	a, hasAnchor := m.anchors[id]
	if !ok || !hasAnchor {
		return
	}
	height := float64(renderedHeight(m.cards[id].card, m.host.width()))
	lo := int(math.Floor(min(a.row, pos.Top)))
	hi := int(math.Ceil(max(a.row+1, pos.Top+height)))

	top := int(m.host.ScrollTop())
	rows := m.viewHeight()
	if lo >= top && hi <= top+rows {
		return
	}
	m.scrollTo(lo - rows/3)
}

func (m *Model) scrollBy(delta int) {
	m.scrollTo(int(m.host.ScrollTop()) + delta)
}

func (m *Model) scrollTo(row int) {
	row = min(max(row, 0), m.maxScroll())
	m.host.scrollTo(float64(row))
}

// viewHeight is the number of document rows shown above the status line.
func (m *Model) viewHeight() int {
	return max(m.height-1, 1)
}

// maxScroll is the last scroll offset that still fills the view.
func (m *Model) maxScroll() int {
	end := m.doc.Lines()
	for _, it := range m.snap.SortedItems {
		if pos, ok := m.snap.Positions[it.ID]; ok {
			bottom := pos.Top + float64(renderedHeight(it.Data, m.host.width()))
			end = max(end, int(math.Ceil(bottom)))
		}
	}
	return max(end-m.viewHeight(), 0)
}

// Run shows the preview until the user quits or ctx is cancelled.
func Run(ctx context.Context, doc *document.Document, opts ...Option) error {
	m, err := NewModel(ctx, doc, opts...)
	if err != nil {
		return err
	}
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	m.host.bind(p.Send)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run preview: %w", err)
	}
	return nil
}
