package sink

import (
	"bytes"
	"encoding/xml"
	"fmt"
)

const svgStyle = `
    .doc { fill: #fafafa; stroke: #d0d0d0; }
    .anchor { stroke: #9a9a9a; stroke-width: 1; }
    .anchor-dot { fill: #5a5a5a; }
    .connector { stroke: #b0b0b0; stroke-width: 1; fill: none; }
    .card { fill: #ffffff; stroke: #3b6ea5; stroke-width: 1.5; }
    .card.stacked { stroke-dasharray: 4 3; }
    .card.selected { fill: #eef5ff; stroke-width: 3; }
    .card-author { font: bold 12px sans-serif; fill: #222; }
    .card-body { font: 12px sans-serif; fill: #444; }`

const (
	defaultSVGWidth   = 640.0
	defaultSVGMargin  = 24.0
	defaultMinCardH   = 4.0
	columnGutter      = 40.0
	connectorMaxDrop  = 12.0
	textMinCardHeight = 16.0
	approxCharWidth   = 7.0
)

// SVGOption configures SVG rendering via [RenderSVG].
type SVGOption func(*svgRenderer)

type svgRenderer struct {
	width      float64
	margin     float64
	minCardH   float64
	showLabels bool
}

// WithWidth sets the total drawing width. Document units map 1:1 to SVG
// units vertically regardless of width.
func WithWidth(w float64) SVGOption { return func(r *svgRenderer) { r.width = w } }

// WithMargin sets the padding around the drawing.
func WithMargin(m float64) SVGOption { return func(r *svgRenderer) { r.margin = m } }

// WithMinCardHeight draws cards no shorter than h so zero-height cards stay visible.
func WithMinCardHeight(h float64) SVGOption { return func(r *svgRenderer) { r.minCardH = h } }

// WithoutLabels omits author and body text.
func WithoutLabels() SVGOption { return func(r *svgRenderer) { r.showLabels = false } }

func newSVGRenderer(opts ...SVGOption) svgRenderer {
	r := svgRenderer{
		width:      defaultSVGWidth,
		margin:     defaultSVGMargin,
		minCardH:   defaultMinCardH,
		showLabels: true,
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// RenderSVG draws the layout as a standalone SVG document.
func RenderSVG(l Layout, opts ...SVGOption) []byte {
	r := newSVGRenderer(opts...)

	lo, hi := l.Extent()
	for _, c := range l.Cards {
		hi = max(hi, c.Top+r.cardHeight(c))
	}
	height := hi - lo + 2*r.margin
	y := func(v float64) float64 { return v - lo + r.margin }

	mid := r.width / 2
	docLeft, docRight := r.margin, mid-columnGutter/2
	cardLeft, cardRight := mid+columnGutter/2, r.width-r.margin

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.1f %.1f" width="%.0f" height="%.0f">`+"\n",
		r.width, height, r.width, height)
	fmt.Fprintf(&buf, "  <style>%s\n  </style>\n", svgStyle)
	if l.Title != "" {
		fmt.Fprintf(&buf, "  <title>%s</title>\n", escapeXML(l.Title))
	}

	fmt.Fprintf(&buf, `  <rect class="doc" x="%.1f" y="%.1f" width="%.1f" height="%.1f"/>`+"\n",
		docLeft, r.margin/2, docRight-docLeft, height-r.margin)

	for _, c := range l.Cards {
		ay := y(c.Anchor)
		fmt.Fprintf(&buf, `  <line class="anchor" x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f"/>`+"\n",
			docLeft, ay, docRight, ay)
		fmt.Fprintf(&buf, `  <circle class="anchor-dot" cx="%.1f" cy="%.1f" r="2.5"/>`+"\n", docRight, ay)
	}

	for _, c := range l.Cards {
		h := r.cardHeight(c)
		top := y(c.Top)
		fmt.Fprintf(&buf, `  <path class="connector" d="M %.1f %.1f L %.1f %.1f"/>`+"\n",
			docRight, y(c.Anchor), cardLeft, top+min(connectorMaxDrop, h/2))
	}

	for _, c := range l.Cards {
		r.renderCard(&buf, c, cardLeft, cardRight-cardLeft, y(c.Top))
	}

	buf.WriteString("</svg>\n")
	return buf.Bytes()
}

func (r svgRenderer) cardHeight(c Card) float64 {
	return max(c.Height, r.minCardH)
}

func (r svgRenderer) renderCard(buf *bytes.Buffer, c Card, x, w, top float64) {
	class := "card"
	if c.Stacked {
		class += " stacked"
	}
	if c.Selected {
		class += " selected"
	}
	h := r.cardHeight(c)

	fmt.Fprintf(buf, `  <rect id="card-%s" class="%s" x="%.1f" y="%.1f" width="%.1f" height="%.1f" rx="4"/>`+"\n",
		escapeXML(c.ID), class, x, top, w, h)

	if !r.showLabels || h < textMinCardHeight {
		return
	}
	label := c.Author
	if label == "" {
		label = c.ID
	}
	maxChars := int((w - 16) / approxCharWidth)
	fmt.Fprintf(buf, `  <text class="card-author" x="%.1f" y="%.1f">%s</text>`+"\n",
		x+8, top+14, escapeXML(truncate(label, maxChars)))
	if c.Body != "" && h >= 2*textMinCardHeight {
		fmt.Fprintf(buf, `  <text class="card-body" x="%.1f" y="%.1f">%s</text>`+"\n",
			x+8, top+30, escapeXML(truncate(c.Body, maxChars)))
	}
}

func escapeXML(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if n <= 0 {
		return ""
	}
	if len(runes) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(runes[:n-1]) + "…"
}
