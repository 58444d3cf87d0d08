package prog

import (
	"errors"
	"slices"
)

var (
	// ErrInvalidName is returned by [Region.AddNode], [Region.AddBuffer] and
	// [Region.AddValue] when the name is empty. All entities must have
	// non-empty identifiers.
	ErrInvalidName = errors.New("name must not be empty")

	// ErrDuplicateName is returned when a node, buffer or value with the
	// same name already exists in the region. Names are unique per region.
	ErrDuplicateName = errors.New("duplicate name")

	// ErrUnknownBuffer is returned by [Region.AddNode] when a loop node
	// references a buffer that has not been declared with AddBuffer.
	ErrUnknownBuffer = errors.New("unknown buffer")

	// ErrUnknownValue is returned by [Region.AddNode] when a node consumes
	// a value that has not been declared with AddValue.
	ErrUnknownValue = errors.New("unknown value")

	// ErrValueOwned is returned by [Region.AddNode] when a node declares a
	// result value that is already produced by another node.
	ErrValueOwned = errors.New("value already has a producer")

	// ErrUnknownNode is returned by region accessors and [Region.MoveBefore]
	// when a node ID is out of range.
	ErrUnknownNode = errors.New("unknown node")
)

// ID is a stable arena index identifying a node within its region.
// IDs are assigned sequentially by [Region.AddNode] and never reused,
// so side tables keyed by ID remain valid across reordering.
type ID int

// Kind classifies a node for scheduling purposes.
type Kind int

const (
	// KindCompute is an ordinary dataflow operation producing result values.
	KindCompute Kind = iota
	// KindLoop is a repetition construct whose interior loads and stores buffers.
	KindLoop
	// KindCopy is a buffering operation synthesized during bypass resolution.
	KindCopy
	// KindAlloc materializes a buffer. Never scheduled.
	KindAlloc
	// KindConst materializes a constant. Never scheduled.
	KindConst
	// KindReturn terminates the region. Never scheduled.
	KindReturn
)

var kindNames = map[Kind]string{
	KindCompute: "compute",
	KindLoop:    "loop",
	KindCopy:    "copy",
	KindAlloc:   "alloc",
	KindConst:   "const",
	KindReturn:  "return",
}

// String returns the manifest spelling of the kind.
func (k Kind) String() string { return kindNames[k] }

// IsDataflow reports whether nodes of this kind participate in dataflow
// scheduling. Allocations, constants and terminators are bookkeeping and
// never receive a level.
func (k Kind) IsDataflow() bool {
	return k == KindCompute || k == KindLoop || k == KindCopy
}

// Node is an operation in a region. Loop nodes access buffers through their
// interior; compute and copy nodes consume and produce values. A node is
// addressed by its arena [ID]; the struct itself carries no position - the
// region's program order does.
type Node struct {
	Name string
	Kind Kind

	// Loads and Stores name the buffers accessed by a loop's interior,
	// in declaration order.
	Loads  []string
	Stores []string

	// Args names the values consumed and Results the values produced.
	Args    []string
	Results []string

	// Origin links a synthesized copy node back to the carrier it buffers.
	// Empty for original program nodes.
	Origin string
}

// Synthesized reports whether the node was created during legalization
// rather than parsed from the program.
func (n *Node) Synthesized() bool { return n.Origin != "" }

// Buffer is an addressable memory location shared by loop nodes.
type Buffer struct {
	Name string
	// Synthesized marks buffers created during bypass resolution.
	Synthesized bool
}

// Value is the result of a compute or copy node. Only shaped values form
// dataflow edges; scalar immediates do not.
type Value struct {
	Name     string
	Shaped   bool
	Producer ID // -1 until a node declares the value as a result
}

// Region is one function-like scope: an arena of nodes in program order,
// the buffers and values they reference, and annotation side tables.
//
// The zero value is not usable - use [New]. A Region is not safe for
// concurrent use; independent regions may be processed in parallel.
type Region struct {
	name    string
	nodes   []*Node // arena, indexed by ID
	order   []ID    // program order of top-level nodes
	byName  map[string]ID
	buffers map[string]*Buffer
	values  map[string]*Value
	bufSeq  []string // buffer declaration order

	intAttrs map[string]map[ID]int64
	flags    map[string]bool
}

// New creates an empty region with the given name.
func New(name string) *Region {
	return &Region{
		name:     name,
		byName:   make(map[string]ID),
		buffers:  make(map[string]*Buffer),
		values:   make(map[string]*Value),
		intAttrs: make(map[string]map[ID]int64),
		flags:    make(map[string]bool),
	}
}

// Name returns the region name.
func (r *Region) Name() string { return r.name }

// AddBuffer declares a buffer. Returns ErrInvalidName for an empty name or
// ErrDuplicateName if the buffer already exists.
func (r *Region) AddBuffer(name string) (*Buffer, error) {
	return r.addBuffer(name, false)
}

func (r *Region) addBuffer(name string, synthesized bool) (*Buffer, error) {
	if name == "" {
		return nil, ErrInvalidName
	}
	if _, exists := r.buffers[name]; exists {
		return nil, ErrDuplicateName
	}
	b := &Buffer{Name: name, Synthesized: synthesized}
	r.buffers[name] = b
	r.bufSeq = append(r.bufSeq, name)
	return b, nil
}

// AddValue declares a value. Shaped values participate in dataflow edges.
func (r *Region) AddValue(name string, shaped bool) (*Value, error) {
	if name == "" {
		return nil, ErrInvalidName
	}
	if _, exists := r.values[name]; exists {
		return nil, ErrDuplicateName
	}
	v := &Value{Name: name, Shaped: shaped, Producer: -1}
	r.values[name] = v
	return v, nil
}

// AddNode appends a node to the region's program order and returns its ID.
// All referenced buffers and values must be declared beforehand; result
// values must not already have a producer.
func (r *Region) AddNode(n Node) (ID, error) {
	if n.Name == "" {
		return -1, ErrInvalidName
	}
	if _, exists := r.byName[n.Name]; exists {
		return -1, ErrDuplicateName
	}
	for _, name := range slices.Concat(n.Loads, n.Stores) {
		if _, ok := r.buffers[name]; !ok {
			return -1, ErrUnknownBuffer
		}
	}
	for _, name := range slices.Concat(n.Args, n.Results) {
		if _, ok := r.values[name]; !ok {
			return -1, ErrUnknownValue
		}
	}
	for _, name := range n.Results {
		if r.values[name].Producer >= 0 {
			return -1, ErrValueOwned
		}
	}

	id := ID(len(r.nodes))
	node := n
	r.nodes = append(r.nodes, &node)
	r.order = append(r.order, id)
	r.byName[n.Name] = id
	for _, name := range n.Results {
		r.values[name].Producer = id
	}
	return id, nil
}

// Node returns the node with the given ID. The returned pointer refers to
// the node in the arena; mutate with care.
func (r *Region) Node(id ID) *Node {
	if id < 0 || int(id) >= len(r.nodes) {
		return nil
	}
	return r.nodes[id]
}

// NodeByName returns the ID of the named node, or false if absent.
func (r *Region) NodeByName(name string) (ID, bool) {
	id, ok := r.byName[name]
	return id, ok
}

// Order returns the top-level nodes in program order. The returned slice
// is the region's own index; callers must not modify it.
func (r *Region) Order() []ID { return r.order }

// NodeCount returns the number of nodes in the arena, synthesized included.
func (r *Region) NodeCount() int { return len(r.nodes) }

// Buffer returns the named buffer, or nil if absent.
func (r *Region) Buffer(name string) *Buffer { return r.buffers[name] }

// Buffers returns all buffer names in declaration order.
func (r *Region) Buffers() []string { return slices.Clone(r.bufSeq) }

// Value returns the named value, or nil if absent.
func (r *Region) Value(name string) *Value { return r.values[name] }

// MoveBefore repositions node id so it immediately precedes node before in
// program order. Both nodes must exist. Moving a node before itself is a
// no-op.
func (r *Region) MoveBefore(id, before ID) error {
	if r.Node(id) == nil || r.Node(before) == nil {
		return ErrUnknownNode
	}
	if id == before {
		return nil
	}
	i := slices.Index(r.order, id)
	if i < 0 {
		return ErrUnknownNode
	}
	r.order = slices.Delete(r.order, i, i+1)
	j := slices.Index(r.order, before)
	if j < 0 {
		return ErrUnknownNode
	}
	r.order = slices.Insert(r.order, j, id)
	return nil
}

// SetIntAttr records an integer annotation for a node under the given name.
func (r *Region) SetIntAttr(id ID, name string, v int64) {
	tab := r.intAttrs[name]
	if tab == nil {
		tab = make(map[ID]int64)
		r.intAttrs[name] = tab
	}
	tab[id] = v
}

// IntAttr returns a node's integer annotation and whether it is present.
func (r *Region) IntAttr(id ID, name string) (int64, bool) {
	v, ok := r.intAttrs[name][id]
	return v, ok
}

// ClearIntAttr removes all annotations recorded under the given name.
func (r *Region) ClearIntAttr(name string) {
	delete(r.intAttrs, name)
}

// SetFlag records a boolean annotation on the region itself.
func (r *Region) SetFlag(name string, v bool) { r.flags[name] = v }

// Flag returns the region's boolean annotation; absent flags read false.
func (r *Region) Flag(name string) bool { return r.flags[name] }

// Clone returns a deep copy of the region. Side tables and program order
// are copied; the clone shares nothing with the original.
func (r *Region) Clone() *Region {
	c := New(r.name)
	for _, name := range r.bufSeq {
		b := *r.buffers[name]
		c.buffers[name] = &b
		c.bufSeq = append(c.bufSeq, name)
	}
	for name, v := range r.values {
		cv := *v
		c.values[name] = &cv
	}
	for _, n := range r.nodes {
		cn := Node{
			Name:    n.Name,
			Kind:    n.Kind,
			Loads:   slices.Clone(n.Loads),
			Stores:  slices.Clone(n.Stores),
			Args:    slices.Clone(n.Args),
			Results: slices.Clone(n.Results),
			Origin:  n.Origin,
		}
		c.nodes = append(c.nodes, &cn)
		c.byName[n.Name] = ID(len(c.nodes) - 1)
	}
	c.order = slices.Clone(r.order)
	for name, tab := range r.intAttrs {
		ct := make(map[ID]int64, len(tab))
		for id, v := range tab {
			ct[id] = v
		}
		c.intAttrs[name] = ct
	}
	for name, v := range r.flags {
		c.flags[name] = v
	}
	return c
}

// Program is a parsed dataflow program: an ordered list of regions.
type Program struct {
	Name    string
	Regions []*Region
}
