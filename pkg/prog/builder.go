package prog

import (
	"fmt"
	"slices"
)

// Builder-side operations: collision-free naming for synthesized entities
// and use rewriting. These are the only mutations legalization needs beyond
// AddNode and MoveBefore.

// UniqueName returns base if no node, buffer or value uses it yet, otherwise
// base with a numeric suffix ("base__2", "base__3", ...). The name is not
// reserved; call the relevant Add method promptly.
func (r *Region) UniqueName(base string) string {
	name := base
	for i := 2; r.nameTaken(name); i++ {
		name = fmt.Sprintf("%s__%d", base, i)
	}
	return name
}

func (r *Region) nameTaken(name string) bool {
	if _, ok := r.byName[name]; ok {
		return true
	}
	if _, ok := r.buffers[name]; ok {
		return true
	}
	_, ok := r.values[name]
	return ok
}

// NewTempBuffer declares a synthesized buffer with a collision-free name
// derived from base.
func (r *Region) NewTempBuffer(base string) *Buffer {
	b, err := r.addBuffer(r.UniqueName(base), true)
	if err != nil {
		// UniqueName guarantees the only failure mode is an empty base.
		panic(err)
	}
	return b
}

// NewTempValue declares a synthesized shaped value with a collision-free
// name derived from base.
func (r *Region) NewTempValue(base string) *Value {
	v, err := r.AddValue(r.UniqueName(base), true)
	if err != nil {
		panic(err)
	}
	return v
}

// RedirectValueUses replaces old with new in the argument list of the node
// within, leaving every other use of old untouched.
func (r *Region) RedirectValueUses(within ID, old, new string) {
	n := r.Node(within)
	if n == nil {
		return
	}
	for i, a := range n.Args {
		if a == old {
			n.Args[i] = new
		}
	}
}

// RedirectBufferLoads replaces old with new in the load list of the node
// within. Stores are never redirected; a bypass chain feeds reads only.
func (r *Region) RedirectBufferLoads(within ID, old, new string) {
	n := r.Node(within)
	if n == nil {
		return
	}
	for i, b := range n.Loads {
		if b == old {
			n.Loads[i] = new
		}
	}
}

// LoadsBuffer reports whether the node's interior loads the named buffer.
func (n *Node) LoadsBuffer(name string) bool { return slices.Contains(n.Loads, name) }

// StoresBuffer reports whether the node's interior stores the named buffer.
func (n *Node) StoresBuffer(name string) bool { return slices.Contains(n.Stores, name) }
