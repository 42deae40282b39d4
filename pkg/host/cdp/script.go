package cdp

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/matzehuels/anchorstack/pkg/anchor"
)

// jsString encodes s as a JavaScript string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// selectorFor fills a selector template with an item id.
func selectorFor(tmpl, id string) string {
	return strings.Replace(tmpl, "%s", id, 1)
}

// attrSelector builds the default template for an id attribute.
func attrSelector(attr string) string {
	return fmt.Sprintf(`[%s="%%s"]`, attr)
}

type jsRect struct {
	Found  bool    `json:"found"`
	Top    float64 `json:"top"`
	Height float64 `json:"height"`
}

func (r jsRect) rect() anchor.Rect { return anchor.Rect{Top: r.Top, Height: r.Height} }

// queryFn is a querySelector that returns null for selectors the page
// cannot parse.
const queryFn = `(s) => { try { return document.querySelector(s); } catch (e) { return null; } }`

// boundsScript evaluates to {found, top, height} for the first match.
func boundsScript(selector string) string {
	return fmt.Sprintf(`(() => {
  const el = (%s)(%s);
  if (!el) return {found: false, top: 0, height: 0};
  const r = el.getBoundingClientRect();
  return {found: true, top: r.top, height: r.height};
})()`, queryFn, jsString(selector))
}

const scrollTopScript = `(document.scrollingElement || document.documentElement).scrollTop`

type viewport struct {
	ScrollTop float64 `json:"scroll_top"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
}

const viewportScript = `({
  scroll_top: (document.scrollingElement || document.documentElement).scrollTop,
  width: window.innerWidth,
  height: window.innerHeight
})`

// heightsScript evaluates to an array of heights, -1 for missing elements.
func heightsScript(selectors []string) string {
	return fmt.Sprintf(`(%s).map(s => {
  const el = (%s)(s);
  return el ? el.getBoundingClientRect().height : -1;
})`, mustJSON(selectors), queryFn)
}

const fontsReadyScript = `document.fonts ? document.fonts.ready.then(() => true) : true`

// discoverScript lists the values of attr on every element carrying it, in
// document order, without duplicates.
func discoverScript(attr string) string {
	return fmt.Sprintf(`(() => {
  const attr = %s;
  const seen = new Set();
  const out = [];
  for (const el of document.querySelectorAll("[" + attr + "]")) {
    const id = el.getAttribute(attr);
    if (id && !seen.has(id)) { seen.add(id); out.push(id); }
  }
  return out;
})()`, jsString(attr))
}

type applyEntry struct {
	Selector string  `json:"selector"`
	Top      float64 `json:"top"`
	Stacked  bool    `json:"stacked"`
}

// applyScript positions each card and marks stacked ones with a
// data-stacked attribute. It evaluates to the number of cards found.
func applyScript(entries []applyEntry) string {
	return fmt.Sprintf(`(%s).reduce((n, p) => {
  const el = (%s)(p.selector);
  if (!el) return n;
  el.style.position = "absolute";
  el.style.top = p.top + "px";
  el.toggleAttribute("data-stacked", p.stacked);
  return n + 1;
}, 0)`, mustJSON(entries), queryFn)
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}
