package ir

// Block is a straight-line sequence of instructions (Let/PrimOp/Call/If/
// Match/Loop nodes) ended by exactly one terminator (spec §3.3). Blocks
// are never interned: two blocks with identical contents are still
// distinct control-flow locations.
type Block struct {
	Instructions *NodeList
	Terminator   *Node
}

// BlockNode builds a Block from an ordered instruction list and its
// terminator. Every entry in instructions must be an instruction-tag
// node (Let wraps the rest, so in practice every entry is a Let).
func (a *Arena) BlockNode(instructions []*Node, terminator *Node) *Node {
	for _, inst := range instructions {
		switch inst.Tag {
		case TagLet, TagPrimOp, TagCall, TagIf, TagMatch, TagLoop:
		default:
			panic(errf(ErrMalformedNode, "block instruction must be an instruction node, got %v", inst.Tag))
		}
	}
	if !isTerminatorTag(terminator.Tag) {
		panic(errf(ErrMalformedNode, "block terminator must be a terminator node, got %v", terminator.Tag))
	}
	return &Node{
		Tag: TagBlock,
		Payload: Block{
			Instructions: a.Nodes(instructions),
			Terminator:   terminator,
		},
	}
}

func isTerminatorTag(t Tag) bool {
	switch t {
	case TagReturn, TagBranch, TagJoin, TagCallc, TagMergeConstruct, TagUnreachable:
		return true
	default:
		return false
	}
}

// ParsedBlock is a pre-Bind block shape: a sequence of instructions that
// may still reference Unbound names, with a terminator that may itself be
// partially unresolved. The Bind pass consumes ParsedBlock and produces
// Block; the front end itself builds Block nodes directly, leaving any
// Unbound names inside them for Bind.
type ParsedBlock struct {
	Instructions *NodeList
	Terminator   *Node
}

// ParsedBlockNode builds a ParsedBlock without the tag-shape checks
// BlockNode performs, since a freshly parsed block may still carry
// Unbound placeholders that haven't been checked against Bind's rules.
func (a *Arena) ParsedBlockNode(instructions []*Node, terminator *Node) *Node {
	return &Node{
		Tag: TagParsedBlock,
		Payload: ParsedBlock{
			Instructions: a.Nodes(instructions),
			Terminator:   terminator,
		},
	}
}
