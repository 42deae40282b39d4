package cache

import "strings"

// Key prefixes, also reported as the key type to cache hooks.
const (
	KeyTypeProbe = "probe"
	KeyTypeSolve = "solve"
)

// ProbeKeyOpts holds everything besides the URL that changes a probe result.
type ProbeKeyOpts struct {
	AnchorSelector string  `json:"anchor_selector"`
	CardSelector   string  `json:"card_selector"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	Selected       string  `json:"selected,omitempty"`
	Gap            float64 `json:"gap"`

	// IDs restricts the probe to these anchors, in item order. Empty means
	// every anchor discovered on the page.
	IDs []string `json:"ids,omitempty"`
}

// SolveKeyOpts holds everything besides the document that changes a solve.
type SolveKeyOpts struct {
	Gap      float64 `json:"gap"`
	Selected string  `json:"selected,omitempty"`
}

// Keyer generates cache keys.
type Keyer interface {
	// ProbeKey keys a browser probe of url.
	ProbeKey(url string, opts ProbeKeyOpts) string

	// SolveKey keys a solved document identified by its content hash.
	SolveKey(docHash string, opts SolveKeyOpts) string
}

// DefaultKeyer produces unscoped keys.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the default keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// ProbeKey returns "probe:<hash>".
func (DefaultKeyer) ProbeKey(url string, opts ProbeKeyOpts) string {
	return hashKey(KeyTypeProbe, strings.TrimSpace(url), opts)
}

// SolveKey returns "solve:<hash>".
func (DefaultKeyer) SolveKey(docHash string, opts SolveKeyOpts) string {
	return hashKey(KeyTypeSolve, docHash, opts)
}

// KeyType returns the prefix of a key up to the first colon, skipping any
// scope prefix added by ScopedKeyer.
func KeyType(key string) string {
	for _, t := range []string{KeyTypeProbe, KeyTypeSolve} {
		if strings.HasPrefix(key, t+":") || strings.Contains(key, ":"+t+":") {
			return t
		}
	}
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}
