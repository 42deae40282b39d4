// Package document reads and writes the static page descriptions used by the
// solve, view and serve commands.
//
// # Overview
//
// A document is a page of text with cards pinned to positions in it, the
// kind of layout a margin-comment column produces. Positions are in document
// units: pixels for the HTTP API and SVG output, rows for the terminal
// preview. The anchor solver only needs each card's anchor and height.
//
// # Formats
//
// TOML and JSON carry the same fields. The format is picked from the file
// extension by [Read] and [Write]:
//
//	title = "Design review"
//	gap = 8
//	selected = "c2"
//	text = ["First paragraph", "", "Second paragraph"]
//
//	[[cards]]
//	id = "c1"
//	anchor = 0
//	height = 40
//	author = "ana"
//	body = "Can we drop this?"
//
//	[[cards]]
//	id = "c2"
//	anchor = 12
//	height = 64
//	body = "Agreed."
//
// # Validation
//
// [Document.Validate] rejects empty or duplicate card ids, a negative or
// non-finite gap or height, and a selection that names no card. [Read] and
// [Decode] validate before returning.
package document
