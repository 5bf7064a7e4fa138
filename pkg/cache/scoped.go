package cache

// ScopedKeyer wraps a Keyer with a prefix so that several deployments or
// users can share one backend without colliding.
//
// Example usage:
//
//	// Keys for one API tenant
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "tenant:lab-7:")
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
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// RunKey generates a prefixed run key.
func (k *ScopedKeyer) RunKey(inputsHash string, opts RunKeyOpts) string {
	return k.prefix + k.inner.RunKey(inputsHash, opts)
}

// PlotKey generates a prefixed plot key. runKey is expected to carry the
// prefix already and is hashed as-is.
func (k *ScopedKeyer) PlotKey(runKey, format string) string {
	return k.prefix + k.inner.PlotKey(runKey, format)
}
