package cache

// ScopedKeyer wraps a Keyer with a prefix so several tenants or
// environments can share one Redis without colliding.
//
//	k := cache.NewScopedKeyer(cache.NewDefaultKeyer(), "staging:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

// ProbeKey generates a prefixed probe key.
func (k *ScopedKeyer) ProbeKey(url string, opts ProbeKeyOpts) string {
	return k.prefix + k.inner.ProbeKey(url, opts)
}

// SolveKey generates a prefixed solve key.
func (k *ScopedKeyer) SolveKey(docHash string, opts SolveKeyOpts) string {
	return k.prefix + k.inner.SolveKey(docHash, opts)
}
