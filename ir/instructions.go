package ir

import "fmt"

// PrimOpKind enumerates the built-in operations a PrimOp instruction can
// perform. Arithmetic/comparison/logical ops dispatch on operand type
// alone (spec §4.2); load/store/alloca/lea/select have bespoke inference.
type PrimOpKind uint8

const (
	OpAdd PrimOpKind = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEq
	OpNeq
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
	OpNot
	OpLoad
	OpStore
	OpAlloca
	OpLea
	OpSelect
	// OpSubgroupActiveMask reads the current subgroup's active-invocation
	// mask; lower_tailcalls uses it to seed the dispatcher's mask global
	// at every entry-point wrapper (spec §4.6).
	OpSubgroupActiveMask
)

func (k PrimOpKind) String() string {
	names := [...]string{
		"add", "sub", "mul", "div", "mod",
		"eq", "neq", "lt", "le", "gt", "ge",
		"and", "or", "not",
		"load", "store", "alloca", "lea", "select",
		"subgroup_active_mask",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "unknown_op"
}

// PrimOp is the payload for a primitive operation instruction.
type PrimOp struct {
	Op       PrimOpKind
	Operands *NodeList
}

func isNumeric(t *Node) bool {
	u := Unqualify(t)
	return u != nil && (u.Tag == TagInt || u.Tag == TagFloat)
}

func isLogical(t *Node) bool {
	u := Unqualify(t)
	return u != nil && u.Tag == TagBool
}

func sameUnqualified(a, b *Node) bool {
	return Unqualify(a) == Unqualify(b)
}

// anyVarying reports whether any of the given qualified types is varying;
// used to propagate the varying qualifier conservatively through an
// operation's result (spec §3.3).
func anyVarying(types ...*Node) bool {
	for _, t := range types {
		if !IsUniform(t) {
			return true
		}
	}
	return false
}

func qualifyLike(a *Arena, varying bool, t *Node) *Node {
	if varying {
		return a.Varying(t)
	}
	return a.Uniform(t)
}

// PrimOpNode builds a PrimOp instruction, inferring its result types from
// the operands per spec §4.2's rules. It panics (a construction error,
// spec §3.4 invariant 3) if the operands don't type-check for op.
func (a *Arena) PrimOpNode(op PrimOpKind, operands []*Node) *Node {
	operandList := a.Nodes(operands)
	var resultTypes []*Node

	switch op {
	case OpAdd, OpSub, OpMul, OpDiv, OpMod:
		resultTypes = []*Node{inferArithmetic(a, operandList.Items)}
	case OpEq, OpNeq, OpLt, OpLe, OpGt, OpGe:
		resultTypes = []*Node{inferComparison(a, operandList.Items)}
	case OpAnd, OpOr:
		resultTypes = []*Node{inferLogical(a, operandList.Items)}
	case OpNot:
		resultTypes = []*Node{inferUnaryLogical(a, operandList.Items)}
	case OpLoad:
		resultTypes = []*Node{inferLoad(a, operandList.Items)}
	case OpStore:
		inferStore(operandList.Items)
		resultTypes = nil
	case OpAlloca:
		resultTypes = []*Node{inferAlloca(a, operandList.Items)}
	case OpLea:
		resultTypes = []*Node{inferLea(a, operandList.Items)}
	case OpSelect:
		resultTypes = []*Node{inferSelect(a, operandList.Items)}
	case OpSubgroupActiveMask:
		if len(operandList.Items) != 0 {
			panic(errf(ErrTypeMismatch, "subgroup_active_mask takes no operands"))
		}
		resultTypes = []*Node{a.Uniform(a.MaskType())}
	default:
		panic(errf(ErrMalformedNode, "unknown primop %v", op))
	}

	types := a.Nodes(resultTypes)
	key := newKey(TagPrimOp).u8(uint8(op)).list(operandList).bytes()
	return a.internNode(key, func() *Node {
		return &Node{Tag: TagPrimOp, Types: types, Payload: PrimOp{Op: op, Operands: operandList}}
	})
}

func inferArithmetic(a *Arena, ops []*Node) *Node {
	if len(ops) < 2 {
		panic(errf(ErrTypeMismatch, "arithmetic op requires at least 2 operands"))
	}
	base := ops[0].Type
	if !isNumeric(base) {
		panic(errf(ErrTypeMismatch, "arithmetic op requires numeric operands"))
	}
	for _, o := range ops[1:] {
		if !sameUnqualified(base, o.Type) {
			panic(errf(ErrTypeMismatch, "arithmetic operands must share a type"))
		}
	}
	return qualifyLike(a, anyVarying(extractTypes(ops)...), Unqualify(base))
}

func inferComparison(a *Arena, ops []*Node) *Node {
	if len(ops) != 2 {
		panic(errf(ErrTypeMismatch, "comparison requires exactly 2 operands"))
	}
	l, r := ops[0].Type, ops[1].Type
	if !sameUnqualified(l, r) || !(isNumeric(l) || isLogical(l)) {
		panic(errf(ErrTypeMismatch, "comparison operands must share a numeric or logical type"))
	}
	return qualifyLike(a, anyVarying(l, r), a.BoolType())
}

func inferLogical(a *Arena, ops []*Node) *Node {
	if len(ops) != 2 {
		panic(errf(ErrTypeMismatch, "logical op requires exactly 2 operands"))
	}
	if !isLogical(ops[0].Type) || !isLogical(ops[1].Type) {
		panic(errf(ErrTypeMismatch, "logical op requires bool operands"))
	}
	return qualifyLike(a, anyVarying(ops[0].Type, ops[1].Type), a.BoolType())
}

func inferUnaryLogical(a *Arena, ops []*Node) *Node {
	if len(ops) != 1 || !isLogical(ops[0].Type) {
		panic(errf(ErrTypeMismatch, "not requires exactly 1 bool operand"))
	}
	return qualifyLike(a, !IsUniform(ops[0].Type), a.BoolType())
}

func inferLoad(a *Arena, ops []*Node) *Node {
	if len(ops) != 1 {
		panic(errf(ErrTypeMismatch, "load requires exactly 1 operand"))
	}
	ptrType := Unqualify(ops[0].Type)
	if ptrType == nil || ptrType.Tag != TagPtr {
		panic(errf(ErrTypeMismatch, "load requires a pointer operand"))
	}
	p := ptrType.Payload.(Ptr)
	varying := !IsUniform(ops[0].Type) || p.Space.IsPhysical()
	return qualifyLike(a, varying, p.Pointee)
}

func inferStore(ops []*Node) {
	if len(ops) != 2 {
		panic(errf(ErrTypeMismatch, "store requires exactly 2 operands"))
	}
	ptrType := Unqualify(ops[0].Type)
	if ptrType == nil || ptrType.Tag != TagPtr {
		panic(errf(ErrTypeMismatch, "store requires a pointer first operand"))
	}
	p := ptrType.Payload.(Ptr)
	if Unqualify(ops[1].Type) != p.Pointee {
		panic(errf(ErrTypeMismatch, "store value type does not match pointee type"))
	}
}

func inferAlloca(a *Arena, ops []*Node) *Node {
	if len(ops) != 1 || !ops[0].Tag.IsType() {
		panic(errf(ErrTypeMismatch, "alloca requires exactly 1 type operand"))
	}
	return a.Uniform(a.PtrType(SpaceFunctionLogical, ops[0]))
}

func inferLea(a *Arena, ops []*Node) *Node {
	if len(ops) < 1 {
		panic(errf(ErrTypeMismatch, "lea requires a base pointer operand"))
	}
	baseType := Unqualify(ops[0].Type)
	if baseType == nil || baseType.Tag != TagPtr {
		panic(errf(ErrTypeMismatch, "lea requires a pointer base"))
	}
	p := baseType.Payload.(Ptr)
	cur := p.Pointee
	varying := !IsUniform(ops[0].Type)
	// Every operand after the base is a member/element index to walk;
	// lea takes no byte-offset operand.
	indices := ops[1:]
	for _, idx := range indices {
		if !isNumeric(idx.Type) {
			panic(errf(ErrTypeMismatch, "lea index must be numeric"))
		}
		if !IsUniform(idx.Type) {
			varying = true
		}
		switch cur.Tag {
		case TagRecord:
			lit, ok := idx.Payload.(IntLiteral)
			if !ok {
				panic(errf(ErrTypeMismatch, "lea into a record requires a constant index"))
			}
			members := cur.Payload.(Record).MemberTypes.Items
			if lit.Value < 0 || int(lit.Value) >= len(members) {
				panic(errf(ErrTypeMismatch, "lea record index out of range"))
			}
			cur = members[lit.Value]
		case TagArr:
			cur = cur.Payload.(Arr).Elem
		default:
			panic(errf(ErrTypeMismatch, "lea cannot index into %v", cur.Tag))
		}
	}
	return qualifyLike(a, varying, a.PtrType(p.Space, cur))
}

func inferSelect(a *Arena, ops []*Node) *Node {
	if len(ops) != 3 {
		panic(errf(ErrTypeMismatch, "select requires exactly 3 operands"))
	}
	if !isLogical(ops[0].Type) {
		panic(errf(ErrTypeMismatch, "select condition must be bool"))
	}
	if !sameUnqualified(ops[1].Type, ops[2].Type) {
		panic(errf(ErrTypeMismatch, "select branches must share a type"))
	}
	return qualifyLike(a, anyVarying(extractTypes(ops)...), Unqualify(ops[1].Type))
}

func extractTypes(nodes []*Node) []*Node {
	out := make([]*Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.Type
	}
	return out
}

// Call is the payload for a direct or (pre-lowering) indirect call.
type Call struct {
	Callee *Node
	Args   *NodeList
}

// CallNode builds a Call instruction. callee must be a Function node (or,
// pre-lowering, a value of pointer-to-Fn type); its Fn.Returns become the
// instruction's produced types, conservatively qualified varying since a
// call may diverge across the subgroup.
func (a *Arena) CallNode(callee *Node, args []*Node) *Node {
	var fnType Fn
	switch {
	case callee.Tag == TagFunction:
		fnType = Unqualify(callee.Type).Payload.(Fn)
	default:
		ptrType := Unqualify(callee.Type)
		if ptrType == nil || ptrType.Tag != TagPtr {
			panic(errf(ErrTypeMismatch, "call callee must be a Function or function pointer"))
		}
		pointee := ptrType.Payload.(Ptr).Pointee
		if pointee.Tag != TagFn {
			panic(errf(ErrTypeMismatch, "call callee pointer must point to a function type"))
		}
		fnType = pointee.Payload.(Fn)
	}
	if len(args) != len(fnType.Params.Items) {
		panic(errf(ErrTypeMismatch, "call argument count mismatch: want %d got %d", len(fnType.Params.Items), len(args)))
	}
	for i, arg := range args {
		if Unqualify(arg.Type) != fnType.Params.Items[i] {
			panic(errf(ErrTypeMismatch, "call argument %d type mismatch", i))
		}
	}
	resultTypes := make([]*Node, len(fnType.Returns.Items))
	for i, r := range fnType.Returns.Items {
		resultTypes[i] = a.Varying(r)
	}
	argList := a.Nodes(args)
	key := newKey(TagCall).node(callee).list(argList).bytes()
	return a.internNode(key, func() *Node {
		return &Node{
			Tag:     TagCall,
			Types:   a.Nodes(resultTypes),
			Payload: Call{Callee: callee, Args: argList},
		}
	})
}

// If is the payload for a structured two-way branch instruction.
type If struct {
	Cond    *Node
	Yield   *NodeList // result types
	IfTrue  *Node     // Block
	IfFalse *Node     // Block, may be nil
}

// IfNode builds an If instruction. yieldTypes may be empty for a
// statement-position if with no merged value.
func (a *Arena) IfNode(cond *Node, yieldTypes []*Node, ifTrue, ifFalse *Node) *Node {
	if !isLogical(cond.Type) {
		panic(errf(ErrTypeMismatch, "if condition must be bool"))
	}
	if ifTrue.Tag != TagBlock {
		panic(errf(ErrMalformedNode, "if branches must be Block nodes"))
	}
	if ifFalse != nil && ifFalse.Tag != TagBlock {
		panic(errf(ErrMalformedNode, "if branches must be Block nodes"))
	}
	yieldList := a.Nodes(yieldTypes)
	resultTypes := make([]*Node, len(yieldTypes))
	for i, y := range yieldTypes {
		resultTypes[i] = a.Varying(y)
	}
	key := newKey(TagIf).node(cond).list(yieldList).node(ifTrue).node(ifFalse).bytes()
	return a.internNode(key, func() *Node {
		return &Node{
			Tag:   TagIf,
			Types: a.Nodes(resultTypes),
			Payload: If{
				Cond:    cond,
				Yield:   yieldList,
				IfTrue:  ifTrue,
				IfFalse: ifFalse,
			},
		}
	})
}

// Match is the payload for a structured multi-way branch (switch)
// instruction.
type Match struct {
	Inspect *Node
	Literals *NodeList // IntLiteral nodes, parallel to Cases
	Cases    *NodeList // Block nodes
	Default  *Node     // Block
	Yield    *NodeList
}

// MatchNode builds a Match instruction over integer literal cases.
func (a *Arena) MatchNode(inspect *Node, literals, cases []*Node, def *Node, yieldTypes []*Node) *Node {
	if !isNumeric(inspect.Type) {
		panic(errf(ErrTypeMismatch, "match inspected value must be numeric"))
	}
	if len(literals) != len(cases) {
		panic(errf(ErrMalformedNode, "match literals/cases length mismatch"))
	}
	for _, c := range cases {
		if c.Tag != TagBlock {
			panic(errf(ErrMalformedNode, "match cases must be Block nodes"))
		}
	}
	if def.Tag != TagBlock {
		panic(errf(ErrMalformedNode, "match default must be a Block node"))
	}
	resultTypes := make([]*Node, len(yieldTypes))
	for i, y := range yieldTypes {
		resultTypes[i] = a.Varying(y)
	}
	literalList := a.Nodes(literals)
	caseList := a.Nodes(cases)
	yieldList := a.Nodes(yieldTypes)
	key := newKey(TagMatch).node(inspect).list(literalList).list(caseList).node(def).list(yieldList).bytes()
	return a.internNode(key, func() *Node {
		return &Node{
			Tag:   TagMatch,
			Types: a.Nodes(resultTypes),
			Payload: Match{
				Inspect:  inspect,
				Literals: literalList,
				Cases:    caseList,
				Default:  def,
				Yield:    yieldList,
			},
		}
	})
}

// Loop is the payload for a structured loop instruction with block
// parameters seeded by initial arguments, in the style of an SSA loop
// header (spec §3.3).
type Loop struct {
	Params      *NodeList // Variable nodes
	InitialArgs *NodeList
	Yield       *NodeList
	Body        *Node // Block
}

// LoopNode builds a Loop instruction. len(params) must equal
// len(initialArgs), each pairwise type-compatible.
func (a *Arena) LoopNode(params, initialArgs []*Node, yieldTypes []*Node, body *Node) *Node {
	if len(params) != len(initialArgs) {
		panic(errf(ErrMalformedNode, "loop has %d params but %d initial args", len(params), len(initialArgs)))
	}
	for i, p := range params {
		if p.Tag != TagVariable {
			panic(errf(ErrMalformedNode, "loop param must be a Variable node"))
		}
		if Unqualify(p.Type) != Unqualify(initialArgs[i].Type) {
			panic(errf(ErrTypeMismatch, "loop param %d type does not match its initial arg", i))
		}
	}
	if body.Tag != TagBlock {
		panic(errf(ErrMalformedNode, "loop body must be a Block node"))
	}
	resultTypes := make([]*Node, len(yieldTypes))
	for i, y := range yieldTypes {
		resultTypes[i] = a.Varying(y)
	}
	paramList := a.Nodes(params)
	initList := a.Nodes(initialArgs)
	yieldList := a.Nodes(yieldTypes)
	key := newKey(TagLoop).list(paramList).list(initList).list(yieldList).node(body).bytes()
	return a.internNode(key, func() *Node {
		return &Node{
			Tag:   TagLoop,
			Types: a.Nodes(resultTypes),
			Payload: Loop{
				Params:      paramList,
				InitialArgs: initList,
				Yield:       yieldList,
				Body:        body,
			},
		}
	})
}

// Let is the payload for a binding instruction: it runs Instruction and
// binds each of its produced types to a fresh Variable (spec §4.2).
type Let struct {
	Variables   *NodeList
	Instruction *Node
	IsMutable   bool
}

// LetNode wraps instruction in a Let, minting one fresh Variable per
// produced type. It returns both the Let node (to place in a block's
// instruction list) and the fresh Variables (for the caller — typically
// a binder or the front end — to put in scope).
func (a *Arena) LetNode(instruction *Node, mutable bool) (*Node, []*Node) {
	if instruction.Types == nil {
		panic(errf(ErrMalformedNode, "let requires an instruction with produced types"))
	}
	key := newKey(TagLet).node(instruction).boolean(mutable).bytes()
	node := a.internNode(key, func() *Node {
		vars := make([]*Node, len(instruction.Types.Items))
		for i, qt := range instruction.Types.Items {
			vars[i] = a.NewVariable(fmt.Sprintf("_%d", a.FreshID()), qt)
		}
		return &Node{
			Tag:   TagLet,
			Types: instruction.Types,
			Payload: Let{
				Variables:   a.Nodes(vars),
				Instruction: instruction,
				IsMutable:   mutable,
			},
		}
	})
	return node, node.Payload.(Let).Variables.Items
}
