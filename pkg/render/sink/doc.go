// Package sink renders a published anchor layout into output formats.
//
// # Overview
//
// A [Layout] is the serializable view of one scheduler snapshot: every
// resolved card in anchor order with its anchor, measured height, placed top
// and flags. Sinks turn it into:
//
//   - JSON: layout data for other tools and the HTTP API
//   - SVG: a two-column diagram, anchors on the left and cards on the right
//   - Table: a lipgloss table for terminals
//   - PDF/PNG: SVG converted with rsvg-convert
//
// # Building a Layout
//
//	l := sink.NewLayout(sink.Source[document.Card]{
//	    Snapshot: sched.Snapshot(),
//	    Measures: measures,
//	    Selected: sched.Selected(),
//	    Gap:      sched.Gap(),
//	})
//	svg := sink.RenderSVG(l, sink.WithWidth(720))
//
// # SVG Output
//
// Stacked cards are drawn with a dashed outline, the selected card with a
// heavier stroke, and each card is joined to its anchor by a connector line.
package sink
