package term

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/anchorstack/pkg/document"
)

const (
	minCardWidth = 20
	maxCardWidth = 48
)

var (
	colorCyan  = lipgloss.Color("36")
	colorAmber = lipgloss.Color("220")
	colorGray  = lipgloss.Color("245")
	colorDim   = lipgloss.Color("240")

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorDim).
			Padding(0, 1)
	cardSelectedStyle = cardStyle.BorderForeground(colorCyan)
	cardStackedStyle  = cardStyle.BorderForeground(colorAmber)

	authorStyle    = lipgloss.NewStyle().Bold(true)
	textStyle      = lipgloss.NewStyle().Foreground(colorGray)
	markerStyle    = lipgloss.NewStyle().Foreground(colorDim)
	markerSelStyle = lipgloss.NewStyle().Foreground(colorCyan).Bold(true)
	statusStyle    = lipgloss.NewStyle().Foreground(colorDim)
	titleStyle     = lipgloss.NewStyle().Foreground(colorCyan).Bold(true)
)

// cardWidthFor picks the card column width for a terminal width.
func cardWidthFor(termWidth int) int {
	return min(max(termWidth/3, minCardWidth), maxCardWidth)
}

// cardContent is the text inside a card's border.
func cardContent(c document.Card) string {
	head := c.Author
	if head == "" {
		head = c.ID
	}
	if c.Body == "" {
		return authorStyle.Render(head)
	}
	return authorStyle.Render(head) + "\n" + c.Body
}

// renderCard renders a card with its border at the given total width.
// Selection and stacking change only the border colour, never the height.
func renderCard(c document.Card, width int, selected, stacked bool) string {
	style := cardStyle
	switch {
	case selected:
		style = cardSelectedStyle
	case stacked:
		style = cardStackedStyle
	}
	// Width covers padding and content; the border adds two columns.
	return style.Width(width - 2).Render(cardContent(c))
}

func renderedHeight(c document.Card, width int) int {
	return lipgloss.Height(renderCard(c, width, false, false))
}

// View renders the visible rows: document text on the left, cards on the
// right, and a status line.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 {
		return "loading…"
	}

	rows := m.viewHeight()
	scrollTop := int(m.host.ScrollTop())
	cardWidth := m.host.width()
	textWidth := max(m.width-cardWidth-4, 1)

	right := make([]string, rows)
	for _, it := range m.snap.SortedItems {
		pos, ok := m.snap.Positions[it.ID]
		if !ok {
			continue
		}
		card := renderCard(it.Data, cardWidth, it.ID == m.sched.Selected(), pos.IsStacked)
		top := int(math.Round(pos.Top))
		for i, line := range strings.Split(card, "\n") {
			if r := top + i - scrollTop; r >= 0 && r < rows {
				right[r] = line
			}
		}
	}

	markers := make(map[int]bool, len(m.doc.Cards))
	for _, c := range m.doc.Cards {
		row := int(math.Floor(c.Anchor))
		markers[row] = markers[row] || c.ID == m.sched.Selected()
	}

	var b strings.Builder
	for r := 0; r < rows; r++ {
		docRow := scrollTop + r
		text := ""
		if docRow >= 0 && docRow < len(m.doc.Text) {
			text = m.doc.Text[docRow]
		}
		text = fit(text, textWidth)

		marker := " "
		if selected, ok := markers[docRow]; ok {
			marker = markerStyle.Render("●")
			if selected {
				marker = markerSelStyle.Render("●")
			}
		}

		b.WriteString(textStyle.Render(text))
		b.WriteString(" ")
		b.WriteString(marker)
		b.WriteString("  ")
		b.WriteString(right[r])
		b.WriteString("\n")
	}
	b.WriteString(m.status())
	return b.String()
}

func (m *Model) status() string {
	title := m.doc.Title
	if title == "" {
		title = "anchorstack"
	}
	sel := m.sched.Selected()
	if sel == "" {
		sel = "none"
	}
	info := fmt.Sprintf(" rev %d • row %d • selected %s • j/k select • esc clear • q quit",
		m.snap.Revision, int(m.host.ScrollTop()), sel)
	return titleStyle.Render(title) + statusStyle.Render(info)
}

// fit truncates s to width columns and pads it with spaces.
func fit(s string, width int) string {
	if lipgloss.Width(s) > width {
		runes := []rune(s)
		for len(runes) > 0 && lipgloss.Width(string(runes))+1 > width {
			runes = runes[:len(runes)-1]
		}
		s = string(runes) + "…"
	}
	if pad := width - lipgloss.Width(s); pad > 0 {
		s += strings.Repeat(" ", pad)
	}
	return s
}
