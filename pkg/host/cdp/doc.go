// Package cdp is an anchor.Host backed by a live page in headless Chrome,
// driven over the DevTools protocol with chromedp.
//
// # Overview
//
// Anchors and cards are found with CSS selector templates; the item id
// replaces the single %s:
//
//	anchors: [data-anchor-id="%s"]
//	cards:   [data-card-id="%s"]
//
// Bounds come from getBoundingClientRect and the scroll offset from the
// scrolling element, so anchor tops are in document coordinates exactly as
// in a browser integration. Frames fire on a timer, size observation and
// scroll/resize detection poll the page, and the host settles once
// document.fonts.ready resolves.
//
// # Usage
//
//	tab, closeTab, err := cdp.Open(ctx, url, cdp.BrowserOptions{Width: 1280, Height: 800})
//	defer closeTab()
//	h, err := cdp.New(tab, cdp.Config{})
//	defer h.Close()
//	ids, _ := h.Discover(ctx)
//	sched, _ := anchor.NewScheduler(ctx, h, anchor.Options[string]{
//	    Items:    items,
//	    Resolver: cdp.Resolver[string](h),
//	})
//
// Every DevTools call is bounded by Config.Timeout. A failed measurement is
// logged and the element reports its last known bounds.
package cdp
