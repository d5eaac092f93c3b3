package ir

// Root is the payload for the single module-level node every pass reads
// and produces: the full set of top-level declarations (spec §3.3). Root
// is never qualified and never interned — a module is a single mutable
// unit of construction, not a value to be deduplicated against another.
type Root struct {
	Declarations *NodeList
}

// RootNode builds the module root from its top-level declarations
// (Constant, GlobalVariable and Function nodes, in any order — Bind
// resolves forward references).
func (a *Arena) RootNode(declarations []*Node) *Node {
	for _, d := range declarations {
		switch d.Tag {
		case TagConstant, TagGlobalVariable, TagFunction:
		default:
			panic(errf(ErrMalformedNode, "root declaration must be Constant, GlobalVariable or Function, got %v", d.Tag))
		}
	}
	return &Node{Tag: TagRoot, Payload: Root{Declarations: a.Nodes(declarations)}}
}

// Functions returns every Function declaration in root, in declaration order.
func Functions(root *Node) []*Node {
	var out []*Node
	for _, d := range root.Payload.(Root).Declarations.Items {
		if d.Tag == TagFunction {
			out = append(out, d)
		}
	}
	return out
}

// EntryPoints returns every Function declaration in root whose FnAttrs
// marks it as an entry point.
func EntryPoints(root *Node) []*Node {
	var out []*Node
	for _, fn := range Functions(root) {
		if fn.Payload.(Function).Attrs.IsEntryPoint {
			out = append(out, fn)
		}
	}
	return out
}
