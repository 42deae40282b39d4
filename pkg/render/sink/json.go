package sink

import "encoding/json"

// JSONOption configures JSON rendering via [RenderJSON].
type JSONOption func(*jsonRenderer)

type jsonRenderer struct {
	compact bool
}

// WithJSONCompact drops indentation.
func WithJSONCompact() JSONOption { return func(r *jsonRenderer) { r.compact = true } }

// RenderJSON encodes the layout. It returns an error only if marshaling
// fails, which does not happen for layouts built by NewLayout.
func RenderJSON(l Layout, opts ...JSONOption) ([]byte, error) {
	r := jsonRenderer{}
	for _, opt := range opts {
		opt(&r)
	}

	if l.Cards == nil {
		l.Cards = []Card{}
	}
	if r.compact {
		return json.Marshal(l)
	}
	return json.MarshalIndent(l, "", "  ")
}
