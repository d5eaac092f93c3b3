package ir

// Types never carry an inferred Type themselves (see Node.Type), and all
// type constructors dedup through the
// same node-intern set as every other tag.

// Int is the payload for integer types of width 8/16/32/64.
type Int struct {
	Width uint8
}

// IntType returns the canonical Int(width) type node.
func (a *Arena) IntType(width uint8) *Node {
	switch width {
	case 8, 16, 32, 64:
	default:
		panic(errf(ErrMalformedNode, "invalid integer width %d", width))
	}
	key := newKey(TagInt).u8(width).bytes()
	return a.internNode(key, func() *Node {
		return &Node{Tag: TagInt, Payload: Int{Width: width}}
	})
}

// BoolType returns the canonical Bool type node.
func (a *Arena) BoolType() *Node {
	key := newKey(TagBool).bytes()
	return a.internNode(key, func() *Node { return &Node{Tag: TagBool} })
}

// Float is the payload for floating-point types.
type Float struct {
	Width uint8
}

// FloatType returns the canonical Float(width) type node.
func (a *Arena) FloatType(width uint8) *Node {
	switch width {
	case 16, 32, 64:
	default:
		panic(errf(ErrMalformedNode, "invalid float width %d", width))
	}
	key := newKey(TagFloat).u8(width).bytes()
	return a.internNode(key, func() *Node {
		return &Node{Tag: TagFloat, Payload: Float{Width: width}}
	})
}

// MaskType returns the canonical Mask type node: a subgroup-wide
// execution-mask value, used to track active-invocation sets across
// structured control flow and by the tail-call dispatcher's mask global.
func (a *Arena) MaskType() *Node {
	key := newKey(TagMask).bytes()
	return a.internNode(key, func() *Node { return &Node{Tag: TagMask} })
}

// NoReturnType returns the canonical NoReturn type node, the inferred
// type of instructions that never produce control flow to a successor
// (e.g. a leaf whose only exit is the dispatcher call in lower_tailcalls).
func (a *Arena) NoReturnType() *Node {
	key := newKey(TagNoReturn).bytes()
	return a.internNode(key, func() *Node { return &Node{Tag: TagNoReturn} })
}

// Record is the payload for struct types: parallel member-name/member-type lists.
type Record struct {
	MemberNames *StringList
	MemberTypes *NodeList
}

// RecordType returns the canonical Record{members} type node. names and
// types must agree in length and every type must itself be a type node.
func (a *Arena) RecordType(names []*string, types []*Node) *Node {
	if len(names) != len(types) {
		panic(errf(ErrMalformedNode, "record has %d names but %d types", len(names), len(types)))
	}
	for _, t := range types {
		requireType(t)
	}
	nameList := a.InternStringList(names)
	typeList := a.Nodes(types)
	key := newKey(TagRecord).strList(nameList).list(typeList).bytes()
	return a.internNode(key, func() *Node {
		return &Node{Tag: TagRecord, Payload: Record{MemberNames: nameList, MemberTypes: typeList}}
	})
}

// Ptr is the payload for pointer types.
type Ptr struct {
	Space   AddressSpace
	Pointee *Node
}

// PtrType returns the canonical Ptr{space, pointee} type node.
func (a *Arena) PtrType(space AddressSpace, pointee *Node) *Node {
	requireType(pointee)
	key := newKey(TagPtr).u8(uint8(space)).node(pointee).bytes()
	return a.internNode(key, func() *Node {
		return &Node{Tag: TagPtr, Payload: Ptr{Space: space, Pointee: pointee}}
	})
}

// Arr is the payload for array types. Size is nil for a runtime-sized
// (unbounded) array.
type Arr struct {
	Elem *Node
	Size *uint32
}

// ArrType returns the canonical Arr{elem, size} type node. Pass a nil
// size for a runtime array.
func (a *Arena) ArrType(elem *Node, size *uint32) *Node {
	requireType(elem)
	kb := newKey(TagArr).node(elem)
	if size != nil {
		kb = kb.u32(*size)
	} else {
		kb = kb.u8(0xff)
	}
	key := kb.bytes()
	return a.internNode(key, func() *Node {
		var sizeCopy *uint32
		if size != nil {
			v := *size
			sizeCopy = &v
		}
		return &Node{Tag: TagArr, Payload: Arr{Elem: elem, Size: sizeCopy}}
	})
}

// Fn is the payload for function types.
type Fn struct {
	Params         *NodeList
	Returns        *NodeList
	IsContinuation bool
}

// FnType returns the canonical Fn{params, returns, is_continuation} type node.
func (a *Arena) FnType(params, returns []*Node, isContinuation bool) *Node {
	for _, p := range params {
		requireType(p)
	}
	for _, r := range returns {
		requireType(r)
	}
	paramList := a.Nodes(params)
	returnList := a.Nodes(returns)
	key := newKey(TagFn).list(paramList).list(returnList).boolean(isContinuation).bytes()
	return a.internNode(key, func() *Node {
		return &Node{Tag: TagFn, Payload: Fn{Params: paramList, Returns: returnList, IsContinuation: isContinuation}}
	})
}

// Qualified is the payload for a qualified type: a type paired with a
// uniformity qualifier (spec §3.3). Types themselves are never qualified
// (Qualified wraps a non-Qualified type); value-producing expressions'
// inferred Type is always a Qualified node.
type Qualified struct {
	IsUniform bool
	Inner     *Node
}

// QualifiedType returns the canonical (uniform|varying) T qualified type.
// Wrapping an already-qualified type is a construction error.
func (a *Arena) QualifiedType(isUniform bool, inner *Node) *Node {
	requireType(inner)
	if inner.Tag == TagQualified {
		panic(errf(ErrMalformedNode, "cannot qualify an already-qualified type"))
	}
	key := newKey(TagQualified).boolean(isUniform).node(inner).bytes()
	return a.internNode(key, func() *Node {
		return &Node{Tag: TagQualified, Payload: Qualified{IsUniform: isUniform, Inner: inner}}
	})
}

// Uniform is shorthand for QualifiedType(true, t).
func (a *Arena) Uniform(t *Node) *Node { return a.QualifiedType(true, t) }

// Varying is shorthand for QualifiedType(false, t).
func (a *Arena) Varying(t *Node) *Node { return a.QualifiedType(false, t) }

// Unqualify strips a Qualified wrapper, returning t unchanged if it is
// not qualified.
func Unqualify(t *Node) *Node {
	if t != nil && t.Tag == TagQualified {
		return t.Payload.(Qualified).Inner
	}
	return t
}

// IsUniform reports whether a qualified type (or an unqualified type,
// treated as uniform) carries the uniform qualifier.
func IsUniform(t *Node) bool {
	if t != nil && t.Tag == TagQualified {
		return t.Payload.(Qualified).IsUniform
	}
	return true
}

func requireType(n *Node) {
	if n == nil || !n.Tag.IsType() {
		panic(errf(ErrMalformedNode, "expected a type node, got %v", n))
	}
}
