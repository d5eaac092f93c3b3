package ir

// Return is the payload for a function-exit terminator.
type Return struct {
	Values *NodeList
}

// ReturnNode builds a Return terminator. values must type-check against
// the enclosing function's Returns, which this constructor cannot see —
// callers (the front end, Bind) check that separately.
func (a *Arena) ReturnNode(values []*Node) *Node {
	valueList := a.Nodes(values)
	key := newKey(TagReturn).list(valueList).bytes()
	return a.internNode(key, func() *Node {
		return &Node{Tag: TagReturn, Type: a.Uniform(a.NoReturnType()), Payload: Return{Values: valueList}}
	})
}

// BranchKind distinguishes the shapes a Branch terminator can take. All
// except BranchTailcall direct control to another continuation (a
// Function whose IsContinuation attribute is set) rather than falling
// through, unlike
// the structured If/Match instructions which merge back into the same
// block (spec §3.3, §4.6).
type BranchKind uint8

const (
	// BranchJump is an unconditional jump to a single continuation.
	BranchJump BranchKind = iota
	// BranchIfElse jumps to one of two continuations based on a condition.
	BranchIfElse
	// BranchSwitch jumps to one of several continuations based on an
	// integer value, falling back to a default.
	BranchSwitch
	// BranchTailcall calls an arbitrary function (not necessarily a known
	// continuation) in tail position; lower_tailcalls rewrites an
	// occurrence inside an entry-point or continuation leaf into a
	// dispatcher-token store + return.
	BranchTailcall
)

// Branch is the payload for an unstructured control-transfer terminator.
// Only the fields relevant to Kind are populated; the rest are left zero.
type Branch struct {
	Kind BranchKind

	// BranchJump, BranchIfElse, BranchSwitch, BranchTailcall: arguments
	// passed to the target continuation(s) or callee.
	Args *NodeList

	// BranchJump
	Target *Node

	// BranchIfElse
	Cond        *Node
	TrueTarget  *Node
	FalseTarget *Node

	// BranchSwitch
	Inspect *Node
	Literals *NodeList
	Targets  *NodeList
	Default  *Node

	// BranchTailcall
	Callee *Node
}

// JumpNode builds an unconditional Branch to target with args.
func (a *Arena) JumpNode(target *Node, args []*Node) *Node {
	requireContinuation(target)
	argList := a.Nodes(args)
	key := newKey(TagBranch).u8(uint8(BranchJump)).node(target).list(argList).bytes()
	return a.internNode(key, func() *Node {
		return &Node{
			Tag:     TagBranch,
			Type:    a.Uniform(a.NoReturnType()),
			Payload: Branch{Kind: BranchJump, Target: target, Args: argList},
		}
	})
}

// IfElseBranchNode builds a conditional Branch between two continuations.
func (a *Arena) IfElseBranchNode(cond, trueTarget, falseTarget *Node, args []*Node) *Node {
	if !isLogical(cond.Type) {
		panic(errf(ErrTypeMismatch, "if-else branch condition must be bool"))
	}
	requireContinuation(trueTarget)
	requireContinuation(falseTarget)
	argList := a.Nodes(args)
	key := newKey(TagBranch).u8(uint8(BranchIfElse)).node(cond).node(trueTarget).node(falseTarget).list(argList).bytes()
	return a.internNode(key, func() *Node {
		return &Node{
			Tag:  TagBranch,
			Type: a.Uniform(a.NoReturnType()),
			Payload: Branch{
				Kind: BranchIfElse, Cond: cond,
				TrueTarget: trueTarget, FalseTarget: falseTarget,
				Args: argList,
			},
		}
	})
}

// SwitchBranchNode builds a multi-way Branch over integer literal cases.
func (a *Arena) SwitchBranchNode(inspect *Node, literals, targets []*Node, def *Node, args []*Node) *Node {
	if !isNumeric(inspect.Type) {
		panic(errf(ErrTypeMismatch, "switch branch inspected value must be numeric"))
	}
	if len(literals) != len(targets) {
		panic(errf(ErrMalformedNode, "switch literals/targets length mismatch"))
	}
	for _, t := range targets {
		requireContinuation(t)
	}
	requireContinuation(def)
	literalList := a.Nodes(literals)
	targetList := a.Nodes(targets)
	argList := a.Nodes(args)
	key := newKey(TagBranch).u8(uint8(BranchSwitch)).node(inspect).list(literalList).list(targetList).node(def).list(argList).bytes()
	return a.internNode(key, func() *Node {
		return &Node{
			Tag:  TagBranch,
			Type: a.Uniform(a.NoReturnType()),
			Payload: Branch{
				Kind: BranchSwitch, Inspect: inspect,
				Literals: literalList, Targets: targetList, Default: def,
				Args: argList,
			},
		}
	})
}

// TailcallBranchNode builds a tail call to callee, the terminator shape
// lower_tailcalls rewrites into the FnPtr-token dispatch loop (spec §4.6,
// SPEC_FULL.md §9).
func (a *Arena) TailcallBranchNode(callee *Node, args []*Node) *Node {
	argList := a.Nodes(args)
	key := newKey(TagBranch).u8(uint8(BranchTailcall)).node(callee).list(argList).bytes()
	return a.internNode(key, func() *Node {
		return &Node{
			Tag:     TagBranch,
			Type:    a.Uniform(a.NoReturnType()),
			Payload: Branch{Kind: BranchTailcall, Callee: callee, Args: argList},
		}
	})
}

func requireContinuation(fn *Node) {
	if fn.Tag != TagFunction || !fn.Payload.(Function).Attrs.IsContinuation {
		panic(errf(ErrMalformedNode, "branch target must be a continuation Function node"))
	}
}

// Join is the payload for resuming a structured merge point from inside
// a Loop/If/Match body — the counterpart to a `break`/loop-continue
// inside the source language, before lower_tailcalls turns an indirect
// join into a stored token + active-mask update (spec §4.6).
type Join struct {
	Target     *Node // the MergeConstruct-bearing merge point, or nil if indirect
	Args       *NodeList
	IsIndirect bool
}

// JoinNode builds a Join terminator to a statically known merge point.
func (a *Arena) JoinNode(target *Node, args []*Node) *Node {
	argList := a.Nodes(args)
	key := newKey(TagJoin).boolean(false).node(target).list(argList).bytes()
	return a.internNode(key, func() *Node {
		return &Node{
			Tag:     TagJoin,
			Type:    a.Uniform(a.NoReturnType()),
			Payload: Join{Target: target, Args: argList, IsIndirect: false},
		}
	})
}

// IndirectJoinNode builds a Join whose target is not known until runtime
// (reached only through an intervening indirect tail call) — the case
// lower_tailcalls must emulate with a stored token and active mask,
// since SPIR-V has no indirect branch.
func (a *Arena) IndirectJoinNode(args []*Node) *Node {
	argList := a.Nodes(args)
	key := newKey(TagJoin).boolean(true).list(argList).bytes()
	return a.internNode(key, func() *Node {
		return &Node{
			Tag:     TagJoin,
			Type:    a.Uniform(a.NoReturnType()),
			Payload: Join{Args: argList, IsIndirect: true},
		}
	})
}

// Callc is the payload for a "call with continuation" terminator: it
// calls callee and, on return, resumes execution at returnCont with the
// call's results as arguments. Every ordinary call-then-continue in
// source surface syntax desugars to this shape; lower_tailcalls turns it
// into a tail call whose leaf stores returnCont's token before jumping
// (SPEC_FULL.md §9's second Open Question resolution).
type Callc struct {
	Callee     *Node
	Args       *NodeList
	ReturnCont *Node
}

// CallcNode builds a Callc terminator.
func (a *Arena) CallcNode(callee *Node, args []*Node, returnCont *Node) *Node {
	requireContinuation(returnCont)
	argList := a.Nodes(args)
	key := newKey(TagCallc).node(callee).list(argList).node(returnCont).bytes()
	return a.internNode(key, func() *Node {
		return &Node{
			Tag:     TagCallc,
			Type:    a.Uniform(a.NoReturnType()),
			Payload: Callc{Callee: callee, Args: argList, ReturnCont: returnCont},
		}
	})
}

// MergeKind distinguishes how a MergeConstruct terminator exits a
// structured If/Match/Loop body back to the instruction that introduced it.
type MergeKind uint8

const (
	// MergeSelection ends an If/Match case block, yielding Args as that
	// instruction's produced values.
	MergeSelection MergeKind = iota
	// MergeContinue loops a Loop body back to its header with new
	// argument values for the loop parameters.
	MergeContinue
	// MergeBreak exits a Loop, yielding Args as the Loop instruction's
	// produced values.
	MergeBreak
)

// MergeConstruct is the payload for the terminator that ends a block
// nested directly inside an If/Match/Loop instruction's body.
type MergeConstruct struct {
	Kind MergeKind
	Args *NodeList
}

// SelectionMergeNode builds a MergeSelection terminator.
func (a *Arena) SelectionMergeNode(args []*Node) *Node {
	argList := a.Nodes(args)
	key := newKey(TagMergeConstruct).u8(uint8(MergeSelection)).list(argList).bytes()
	return a.internNode(key, func() *Node {
		return &Node{
			Tag:     TagMergeConstruct,
			Type:    a.Uniform(a.NoReturnType()),
			Payload: MergeConstruct{Kind: MergeSelection, Args: argList},
		}
	})
}

// ContinueMergeNode builds a MergeContinue terminator.
func (a *Arena) ContinueMergeNode(args []*Node) *Node {
	argList := a.Nodes(args)
	key := newKey(TagMergeConstruct).u8(uint8(MergeContinue)).list(argList).bytes()
	return a.internNode(key, func() *Node {
		return &Node{
			Tag:     TagMergeConstruct,
			Type:    a.Uniform(a.NoReturnType()),
			Payload: MergeConstruct{Kind: MergeContinue, Args: argList},
		}
	})
}

// BreakMergeNode builds a MergeBreak terminator.
func (a *Arena) BreakMergeNode(args []*Node) *Node {
	argList := a.Nodes(args)
	key := newKey(TagMergeConstruct).u8(uint8(MergeBreak)).list(argList).bytes()
	return a.internNode(key, func() *Node {
		return &Node{
			Tag:     TagMergeConstruct,
			Type:    a.Uniform(a.NoReturnType()),
			Payload: MergeConstruct{Kind: MergeBreak, Args: argList},
		}
	})
}

// Unreachable is the payload for a terminator marking a block that
// control can never reach (an impossible switch default, or the tail of
// a function whose every path already returned).
type Unreachable struct{}

// UnreachableNode builds an Unreachable terminator.
func (a *Arena) UnreachableNode() *Node {
	key := newKey(TagUnreachable).bytes()
	return a.internNode(key, func() *Node {
		return &Node{Tag: TagUnreachable, Type: a.Uniform(a.NoReturnType()), Payload: Unreachable{}}
	})
}
