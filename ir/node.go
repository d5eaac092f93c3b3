package ir

import (
	"fmt"

	"github.com/gpuir/shady/arena"
)

// Node is the single tagged-variant type covering every IR entity: types,
// values, instructions, blocks, terminators, declarations and the module
// root. Type is the node's inferred qualified type; it is nil for type
// nodes themselves, for Root, for instructions (see Types below), for
// blocks, and for the Unbound and UntypedNumber placeholders.
//
// Instructions produce zero or more variables at once (spec §4.2: "the
// inferred type is a NodeList of qualified types, one per produced
// variable"), which a single *Node Type field cannot hold alongside the
// scalar qualified type every value node carries. Types is that
// NodeList for instruction-tag nodes and nil everywhere else; Type stays
// nil for instructions. This is the one place this package's shape
// departs from a literal "Type *Node" field per spec §3.3 — recorded as
// an open-question resolution in DESIGN.md.
//
// Nodes are never constructed directly outside this package's
// constructors: every constructor type-checks its inputs, infers Type,
// and interns the result through the owning Arena, so structural
// equality and pointer equality coincide for any two nodes built in the
// same Arena (spec §3.4 invariant 1).
type Node struct {
	Tag     Tag
	Type    *Node
	Types   *NodeList
	Payload interface{}
}

func (n *Node) String() string {
	if n == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s@%p", n.Tag, n)
}

// NodeList is an interned, arena-owned sequence of nodes. Two NodeLists
// built from the same pointer sequence compare equal by identity once
// both are interned (spec §3.2).
type NodeList struct {
	Items []*Node
}

// StringList re-exports arena.StringList so callers of this package
// never need to import arena directly for node payloads that carry
// interned name lists (e.g. Record member names).
type StringList = arena.StringList

// Arena owns every Node, NodeList and interned string built for a single
// IR graph. It wraps the byte-bump allocator and string interner in
// package arena with the node- and node-list-level dedup that package
// cannot key on its own (it doesn't know about Node).
type Arena struct {
	*arena.Arena

	nodes        map[uint32][]*Node
	nodeLists    map[uint32][]*NodeList
	nodeKeys     map[*Node][]byte // the byte key each interned node was built from
}

// NewArena creates an empty Arena with the default block size.
func NewArena() *Arena {
	return &Arena{
		Arena:     arena.New(),
		nodes:     make(map[uint32][]*Node),
		nodeLists: make(map[uint32][]*NodeList),
		nodeKeys:  make(map[*Node][]byte),
	}
}

// Nodes interns a slice of nodes into a NodeList (arena.c's nodes()).
func (a *Arena) Nodes(items []*Node) *NodeList {
	key := nodeListKey(items)
	digest := arena.HashBytes(key)
	for _, candidate := range a.nodeLists[digest] {
		if sameNodes(candidate.Items, items) {
			return candidate
		}
	}
	owned := make([]*Node, len(items))
	copy(owned, items)
	list := &NodeList{Items: owned}
	a.nodeLists[digest] = append(a.nodeLists[digest], list)
	return list
}

// AppendNodes returns a NodeList equal to old with node appended
// (arena.c's append_nodes — a functional append, since NodeLists are
// immutable once interned).
func (a *Arena) AppendNodes(old *NodeList, node *Node) *NodeList {
	combined := make([]*Node, 0, len(old.Items)+1)
	combined = append(combined, old.Items...)
	combined = append(combined, node)
	return a.Nodes(combined)
}

func nodeListKey(items []*Node) []byte {
	buf := make([]byte, 0, len(items)*8)
	for _, n := range items {
		buf = fmt.Appendf(buf, "%p|", n)
	}
	return buf
}

func sameNodes(a, b []*Node) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// internNode looks up an existing node under key, or builds and registers
// one via build. Constructors call this as their last step so the
// resulting *Node is canonical for its (tag, payload) (spec §4.2).
func (a *Arena) internNode(key []byte, build func() *Node) *Node {
	digest := arena.HashBytes(key)
	bucket := a.nodes[digest]
	for _, candidate := range bucket {
		if candidateKey, ok := a.nodeKeys[candidate]; ok && string(candidateKey) == string(key) {
			return candidate
		}
	}
	node := build()
	a.nodes[digest] = append(bucket, node)
	a.nodeKeys[node] = key
	return node
}

// keyBuilder assembles the deterministic byte key a constructor hashes to
// dedup through internNode. It mirrors arena.c's approach of hashing the
// node's tag and raw payload bytes (here, payload fields serialized in a
// fixed order instead of a raw struct memcpy, since Go payloads hold
// pointers and interfaces rather than flat bytes).
type keyBuilder struct {
	buf []byte
}

func newKey(tag Tag) *keyBuilder {
	return &keyBuilder{buf: append([]byte{byte(tag)}, 0)}
}

func (k *keyBuilder) node(n *Node) *keyBuilder {
	k.buf = fmt.Appendf(k.buf, "n%p|", n)
	return k
}

func (k *keyBuilder) list(l *NodeList) *keyBuilder {
	k.buf = fmt.Appendf(k.buf, "l%p|", l)
	return k
}

func (k *keyBuilder) strList(l *StringList) *keyBuilder {
	k.buf = fmt.Appendf(k.buf, "s%p|", l)
	return k
}

func (k *keyBuilder) str(s *string) *keyBuilder {
	k.buf = fmt.Appendf(k.buf, "t%p|", s)
	return k
}

func (k *keyBuilder) u8(v uint8) *keyBuilder {
	k.buf = append(k.buf, 'b', v)
	return k
}

func (k *keyBuilder) u32(v uint32) *keyBuilder {
	k.buf = fmt.Appendf(k.buf, "u%d|", v)
	return k
}

func (k *keyBuilder) i32(v int32) *keyBuilder {
	k.buf = fmt.Appendf(k.buf, "i%d|", v)
	return k
}

func (k *keyBuilder) i64(v int64) *keyBuilder {
	k.buf = fmt.Appendf(k.buf, "I%d|", v)
	return k
}

func (k *keyBuilder) boolean(v bool) *keyBuilder {
	if v {
		k.buf = append(k.buf, 'T')
	} else {
		k.buf = append(k.buf, 'F')
	}
	return k
}

func (k *keyBuilder) tagOf(t Tag) *keyBuilder {
	k.buf = append(k.buf, 'g', byte(t))
	return k
}

func (k *keyBuilder) bytes() []byte {
	return k.buf
}
