// Package layout caches combined native vertex declarations for the tuples
// of vertex layouts that are active together.
package layout

import (
	"math"
	"sync"

	"github.com/spaghettifunk/continuum/engine/core"
	"github.com/spaghettifunk/continuum/engine/renderer/native"
)

// Backend is the part of the native device the cache talks to.
type Backend interface {
	native.DeclarationFactory
	ReleaseResource(p native.Ptr) uint32
	SetVertexDeclaration(decl native.Ptr) native.Result
}

// Binding is the shared, reference counted handle of one distinct layout.
type Binding struct {
	layout   VertexLayout
	hash     uint64
	refCount int
	// root is the node of the single-stream tuple made of this binding.
	root *node
	// edges holds every tree node reached through this binding, root
	// included, so they can be cut when the binding goes away.
	edges map[*node]struct{}
}

// Layout returns a copy of the layout the binding stands for.
func (b *Binding) Layout() VertexLayout {
	return b.layout.clone()
}

func (b *Binding) Stride() uint32 { return b.layout.Stride }

type node struct {
	parent   *node
	key      *Binding
	children map[*Binding]*node

	decl      native.Ptr
	semantics []Semantic
}

func newNode(parent *node, key *Binding) *node {
	return &node{parent: parent, key: key, children: make(map[*Binding]*node)}
}

// Semantic reports where one element of the active declaration ended up.
type Semantic struct {
	Stream     int
	Offset     uint16
	Usage      native.DeclUsage
	UsageIndex uint8
	// Requested is the usage index the layout asked for. It differs from
	// UsageIndex when the slot was taken by an earlier stream.
	Requested uint8
}

func (s Semantic) Reassigned() bool { return s.UsageIndex != s.Requested }

type Stats struct {
	Bindings     int
	Nodes        int
	Declarations int
	Hits         uint64
	Misses       uint64
}

// Cache is owned by one device; a single mutex serialises every operation.
type Cache struct {
	mu         sync.Mutex
	backend    Backend
	maxStreams int

	buckets map[uint64][]*Binding
	root    *node

	active    []*Binding
	semantics []Semantic

	hits   uint64
	misses uint64
}

func NewCache(backend Backend, maxStreams int) *Cache {
	if maxStreams < 1 {
		maxStreams = 1
	}
	return &Cache{
		backend:    backend,
		maxStreams: maxStreams,
		buckets:    make(map[uint64][]*Binding),
		root:       newNode(nil, nil),
	}
}

// Rebind points the cache at a replacement native device. Declarations of
// the previous device must have been released with ReleaseDeclarations.
func (c *Cache) Rebind(backend Backend, maxStreams int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.backend = backend
	if maxStreams >= 1 {
		c.maxStreams = maxStreams
	}
	c.active = nil
	c.semantics = nil
}

// CreateBinding returns the shared binding of layout, creating it on first use.
func (c *Cache) CreateBinding(layout *VertexLayout) (*Binding, error) {
	if err := layout.validate(); err != nil {
		return nil, err
	}
	h := hashLayout(layout)

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, b := range c.buckets[h] {
		if b.layout.equal(layout) {
			b.refCount++
			return b, nil
		}
	}

	b := &Binding{
		layout:   layout.clone(),
		hash:     h,
		refCount: 1,
		edges:    make(map[*node]struct{}),
	}
	b.root = newNode(c.root, b)
	c.root.children[b] = b.root
	b.edges[b.root] = struct{}{}
	c.buckets[h] = append(c.buckets[h], b)
	core.LogDebug("vertex layout binding created (%d elements, stride %d)", len(layout.Elements), layout.Stride)
	return b, nil
}

// RefCount returns the number of live CreateBinding calls for b.
func (c *Cache) RefCount(b *Binding) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return b.refCount
}

// ReleaseBinding drops one reference. The last release removes every tree
// node reached through b and frees their native declarations.
func (c *Cache) ReleaseBinding(b *Binding) error {
	if b == nil {
		return core.Argumentf("release vertex layout binding: binding is nil")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if b.refCount <= 0 {
		return core.ObjectDisposedf("vertex layout binding already released")
	}
	b.refCount--
	if b.refCount > 0 {
		return nil
	}

	for n := range b.edges {
		if n.parent != nil {
			delete(n.parent.children, n.key)
			n.parent = nil
		}
		c.releaseSubtree(n)
	}
	b.edges = nil
	b.root = nil

	bucket := c.buckets[b.hash]
	for i, o := range bucket {
		if o == b {
			bucket = append(bucket[:i:i], bucket[i+1:]...)
			break
		}
	}
	if len(bucket) == 0 {
		delete(c.buckets, b.hash)
	} else {
		c.buckets[b.hash] = bucket
	}

	for _, a := range c.active {
		if a == b {
			c.active = nil
			c.semantics = nil
			break
		}
	}
	return nil
}

func (c *Cache) releaseSubtree(n *node) {
	for key, child := range n.children {
		delete(n.children, key)
		child.parent = nil
		if child.key != nil && child.key.edges != nil {
			delete(child.key.edges, child)
		}
		c.releaseSubtree(child)
	}
	c.releaseDeclaration(n)
}

func (c *Cache) releaseDeclaration(n *node) {
	if n.decl.IsNull() {
		return
	}
	if c.backend != nil {
		c.backend.ReleaseResource(n.decl)
	}
	n.decl = native.Null
	n.semantics = nil
}

// SetSingle activates one vertex stream.
func (c *Cache) SetSingle(b *Binding) error {
	return c.SetVertexDeclaration([]*Binding{b}, 1)
}

// SetVertexDeclaration activates the first count bindings as streams
// 0..count-1. The combined declaration of a tuple is built once and reused;
// activating the tuple that is already active issues no native call.
func (c *Cache) SetVertexDeclaration(bindings []*Binding, count int) error {
	if count < 1 || count > len(bindings) {
		return core.ArgumentOutOfRangef("vertex stream count %d outside [1, %d]", count, len(bindings))
	}
	tuple := bindings[:count]

	c.mu.Lock()
	defer c.mu.Unlock()
	if count > c.maxStreams {
		return core.InvalidOperationf("%d vertex streams exceed the device limit of %d", count, c.maxStreams)
	}
	for i, b := range tuple {
		if b == nil || b.refCount <= 0 {
			return core.ObjectDisposedf("vertex layout binding for stream %d", i)
		}
	}
	if c.isActive(tuple) {
		return nil
	}
	if c.backend == nil {
		return core.ObjectDisposedf("vertex layout cache has no device")
	}

	var leaf *node
	if count == 1 {
		leaf = tuple[0].root
	} else {
		leaf = c.walk(tuple)
	}

	if leaf.decl.IsNull() {
		c.misses++
		if err := c.build(leaf, tuple); err != nil {
			return err
		}
	} else {
		c.hits++
	}

	if err := core.CheckResult("set vertex declaration", c.backend.SetVertexDeclaration(leaf.decl)); err != nil {
		return err
	}
	c.active = append(c.active[:0:0], tuple...)
	c.semantics = leaf.semantics
	return nil
}

func (c *Cache) isActive(tuple []*Binding) bool {
	if len(c.active) != len(tuple) {
		return false
	}
	for i := range tuple {
		if c.active[i] != tuple[i] {
			return false
		}
	}
	return true
}

// walk follows one edge per stream from the cache root, creating missing
// nodes on the way.
func (c *Cache) walk(tuple []*Binding) *node {
	n := tuple[0].root
	for _, b := range tuple[1:] {
		child, ok := n.children[b]
		if !ok {
			child = newNode(n, b)
			n.children[b] = child
			b.edges[child] = struct{}{}
		}
		n = child
	}
	return n
}

type usageSlot struct {
	usage native.DeclUsage
	index uint8
}

// build concatenates the elements of every stream, moves colliding usage
// slots to the next free index and creates the native declaration. On
// failure the leaf keeps no declaration so the next call retries.
func (c *Cache) build(leaf *node, tuple []*Binding) error {
	total := 0
	for _, b := range tuple {
		total += len(b.layout.Elements)
	}
	elements := make([]native.VertexElement, 0, total+1)
	semantics := make([]Semantic, 0, total)
	used := make(map[usageSlot]struct{}, total)

	for stream, b := range tuple {
		for _, e := range b.layout.Elements {
			t, err := declType(e.Format, e.Usage)
			if err != nil {
				return err
			}
			index := e.UsageIndex
			for attempts := 0; ; attempts++ {
				if _, taken := used[usageSlot{e.Usage, index}]; !taken {
					break
				}
				if attempts+1 >= c.maxStreams || index == math.MaxUint8 {
					return core.Argumentf("usage %d index %d of stream %d collides and no free index was found within %d streams or below 256",
						e.Usage, e.UsageIndex, stream, c.maxStreams)
				}
				index++
			}
			used[usageSlot{e.Usage, index}] = struct{}{}
			if index != e.UsageIndex {
				core.LogDebug("stream %d: usage %d index %d moved to %d", stream, e.Usage, e.UsageIndex, index)
			}

			elements = append(elements, native.VertexElement{
				Stream:     uint16(stream),
				Offset:     e.Offset,
				Type:       t,
				Method:     native.DeclMethodDefault,
				Usage:      e.Usage,
				UsageIndex: index,
			})
			semantics = append(semantics, Semantic{
				Stream:     stream,
				Offset:     e.Offset,
				Usage:      e.Usage,
				UsageIndex: index,
				Requested:  e.UsageIndex,
			})
		}
	}
	elements = append(elements, native.DeclEnd)

	decl, r := c.backend.CreateCombinedDeclaration(elements)
	if err := core.CheckResult("create combined vertex declaration", r); err != nil {
		return err
	}
	if decl.IsNull() {
		return core.OutOfMemoryf("native device returned no vertex declaration")
	}
	leaf.decl = decl
	leaf.semantics = semantics
	return nil
}

// Semantics returns where every element of the active declaration is bound.
func (c *Cache) Semantics() []Semantic {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Semantic, len(c.semantics))
	copy(out, c.semantics)
	return out
}

// Invalidate forgets the active tuple so the next activation is issued to
// the device again.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = nil
	c.semantics = nil
}

// ReleaseDeclarations frees every native declaration and keeps the tree,
// so the same tuples are rebuilt on demand on the next device.
func (c *Cache) ReleaseDeclarations() {
	c.mu.Lock()
	defer c.mu.Unlock()
	var release func(n *node)
	release = func(n *node) {
		for _, child := range n.children {
			release(child)
		}
		c.releaseDeclaration(n)
	}
	release(c.root)
	c.active = nil
	c.semantics = nil
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Stats{Hits: c.hits, Misses: c.misses}
	for _, bucket := range c.buckets {
		s.Bindings += len(bucket)
	}
	var count func(n *node)
	count = func(n *node) {
		for _, child := range n.children {
			s.Nodes++
			if !child.decl.IsNull() {
				s.Declarations++
			}
			count(child)
		}
	}
	count(c.root)
	return s
}
