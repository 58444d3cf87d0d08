package cache

// ScopedKeyer wraps a Keyer with a prefix for namespace isolation. Useful
// when one cache backend serves several contexts, such as a shared redis
// instance behind the HTTP API.
//
// Example usage:
//
//	// Per-tenant keys
//	tenantKeyer := NewScopedKeyer(NewDefaultKeyer(), "tenant:abc123:")
//
//	// Global keys
//	globalKeyer := NewDefaultKeyer()
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

// ProgramKey generates a prefixed key for parsed program caching.
func (k *ScopedKeyer) ProgramKey(manifestHash string) string {
	return k.prefix + k.inner.ProgramKey(manifestHash)
}

// ReportKey generates a prefixed key for legalization result caching.
func (k *ScopedKeyer) ReportKey(programHash string, opts ReportKeyOpts) string {
	return k.prefix + k.inner.ReportKey(programHash, opts)
}

// ArtifactKey generates a prefixed key for rendered artifact caching.
func (k *ScopedKeyer) ArtifactKey(reportHash string, opts ArtifactKeyOpts) string {
	return k.prefix + k.inner.ArtifactKey(reportHash, opts)
}
