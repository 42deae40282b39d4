// Package term previews a document in the terminal with bubbletea.
//
// The preview is itself the anchor.Host: one terminal row is one document
// unit, the first visible row is the scroll offset, and card heights are the
// heights of the cards as lipgloss renders them at the current width. Frames
// are delivered to the program as messages and run inside Update, so the
// scheduler publishes on the same goroutine that renders.
//
// Keys:
//
//	j, down     select the next card
//	k, up       select the previous card
//	esc         clear the selection
//	pgdn, pgup  scroll a page (the mouse wheel scrolls three rows)
//	g, G        jump to the top or bottom
//	q, ctrl+c   quit
//
// A newly selected card is scrolled into view after the recomputation that
// places it, never before.
package term
