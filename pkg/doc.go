// Package pkg provides the core libraries for Anchorstack card placement.
//
// # Overview
//
// Anchorstack positions floating cards (comments, annotations, footnotes)
// next to the content they refer to. Every card wants to sit level with its
// anchor; when cards would overlap they are pushed down, and when one card is
// selected the cards above it are pushed up so the selected card can sit
// exactly on its anchor. The pkg directory is organized into these areas:
//
//  1. [anchor] - Domain logic (position solver, scheduler, handle registry)
//  2. [host] - Rendering environments the scheduler measures through
//  3. [document] - Offline documents of text and anchored cards
//  4. [pipeline] - Orchestration (solve → render)
//  5. [render/sink] - Output formats for solved layouts
//  6. [server] - HTTP API
//
// # Architecture
//
// The typical data flow through Anchorstack:
//
//	Document, terminal or web page
//	         ↓
//	    [host] package (measure anchors and cards, schedule frames)
//	         ↓
//	    [anchor] package (coalesce triggers, solve, publish snapshots)
//	         ↓
//	    [render/sink] package (table, JSON, SVG, PNG, PDF)
//
// # Quick Start
//
// Place two cards with the in-memory host:
//
//	import (
//	    "context"
//	    "github.com/matzehuels/anchorstack/pkg/anchor"
//	    "github.com/matzehuels/anchorstack/pkg/host/memory"
//	)
//
//	h := memory.New()
//	h.SetAnchor("a", h.NewElement(0, 0))
//	h.SetAnchor("b", h.NewElement(5, 0))
//
//	s, _ := anchor.NewScheduler(context.Background(), h, anchor.Options[string]{
//	    Items:    []anchor.Item[string]{{ID: "a"}, {ID: "b"}},
//	    Resolver: memory.Resolver[string](h),
//	})
//	defer s.Close()
//
//	s.Handles().Get("a").Attach(h.NewElement(0, 20))
//	s.Handles().Get("b").Attach(h.NewElement(0, 20))
//	h.Flush()
//
//	s.Positions()["b"] // {ID: "b", Top: 28, IsStacked: true}
//
// # Main Packages
//
// [anchor] - The pure position solver ([anchor.Solve]), the [anchor.Scheduler]
// that turns layout triggers into at most one recomputation per frame, and the
// handle registry cards attach their rendered elements to.
//
// [host/memory] - A deterministic host for tests and offline solving. Frames
// run when the caller flushes them.
//
// [host/term] - A bubbletea terminal preview with cards in the right margin.
//
// [host/cdp] - A live Chrome page driven through the DevTools Protocol.
//
// [document] - TOML and JSON documents with validation and a canonical form
// used for cache keys.
//
// [pipeline] - Solve and render pipeline used by CLI and API. Ensures
// consistent behavior across all entry points.
//
// [cache] - Layout caches: file (CLI), Redis (API) and null, plus key
// generation and retry helpers.
//
// [observability] - Hook interfaces for HTTP, cache and scheduler events.
//
// [errors] - Coded errors shared by every layer.
//
// # Testing
//
// Run tests:
//
//	go test ./pkg/...                    # All tests
//	go test ./pkg/anchor/...             # Specific package
//	go test -tags integration ./pkg/...  # Include Chrome and Redis tests
//
// [anchor]: https://pkg.go.dev/github.com/matzehuels/anchorstack/pkg/anchor
// [host]: https://pkg.go.dev/github.com/matzehuels/anchorstack/pkg/host
// [host/memory]: https://pkg.go.dev/github.com/matzehuels/anchorstack/pkg/host/memory
// [host/term]: https://pkg.go.dev/github.com/matzehuels/anchorstack/pkg/host/term
// [host/cdp]: https://pkg.go.dev/github.com/matzehuels/anchorstack/pkg/host/cdp
// [document]: https://pkg.go.dev/github.com/matzehuels/anchorstack/pkg/document
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/anchorstack/pkg/pipeline
// [render/sink]: https://pkg.go.dev/github.com/matzehuels/anchorstack/pkg/render/sink
// [server]: https://pkg.go.dev/github.com/matzehuels/anchorstack/pkg/server
// [cache]: https://pkg.go.dev/github.com/matzehuels/anchorstack/pkg/cache
// [observability]: https://pkg.go.dev/github.com/matzehuels/anchorstack/pkg/observability
// [errors]: https://pkg.go.dev/github.com/matzehuels/anchorstack/pkg/errors
package pkg
