package sink

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	tableBorderStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	tableHeaderStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Bold(true)
	tableSelectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("36")).Bold(true)
	tableStackedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	tableCellStyle     = lipgloss.NewStyle().Padding(0, 1)
)

// RenderTable renders the layout as a bordered terminal table, one row per
// card in anchor order.
func RenderTable(l Layout) string {
	rows := make([][]string, len(l.Cards))
	for i, c := range l.Cards {
		mark := ""
		if c.Selected {
			mark = "▶"
		}
		rows[i] = []string{
			mark,
			c.ID,
			formatNum(c.Anchor),
			formatNum(c.Height),
			formatNum(c.Top),
			formatOffset(c.Offset()),
			strconv.FormatBool(c.Stacked),
		}
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(tableBorderStyle).
		Headers("", "ID", "Anchor", "Height", "Top", "Offset", "Stacked").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle.Padding(0, 1)
			}
			if row < 0 || row >= len(l.Cards) {
				return tableCellStyle
			}
			c := l.Cards[row]
			switch {
			case c.Selected:
				return tableSelectedStyle.Padding(0, 1)
			case c.Stacked && col == 6:
				return tableStackedStyle.Padding(0, 1)
			}
			return tableCellStyle
		})

	return t.Render()
}

func formatNum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOffset(v float64) string {
	if v == 0 {
		return "0"
	}
	return fmt.Sprintf("%+g", v)
}
