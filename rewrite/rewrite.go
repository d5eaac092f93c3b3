package rewrite

import (
	"fmt"

	"github.com/gpuir/shady/ir"
)

// NodeHook lets a pass override how a specific node is rewritten. It
// receives the Rewriter (to recurse via Default or RewriteNode) and the
// source node, and must return the equivalent node in Dst.
type NodeHook func(r *Rewriter, n *ir.Node) *ir.Node

// Rewriter carries the source and destination arenas for one rewrite
// pass plus the processed-node memo table (original_source/src/
// passes/bind.c's `processed` Dict, keyed here by source pointer instead
// of a generic hash map since Go pointers are already canonical keys).
type Rewriter struct {
	Src *ir.Arena
	Dst *ir.Arena

	// RewriteNode is consulted for every node before Default; a pass sets
	// this to intercept the tags it cares about and call r.Default(n) (or
	// recurse into r.RewriteNode(child)) for everything else.
	RewriteNode NodeHook

	processed map[*ir.Node]*ir.Node
}

// New creates a Rewriter copying from src into dst.
func New(src, dst *ir.Arena) *Rewriter {
	return &Rewriter{
		Src:       src,
		Dst:       dst,
		processed: make(map[*ir.Node]*ir.Node),
	}
}

// RegisterProcessed records that old (a Src node) has already been
// rewritten to new (a Dst node), short-circuiting future visits —
// essential for recursive declarations and for let-bound Variables,
// which Default never fabricates on its own (see rewriteVariable).
func (r *Rewriter) RegisterProcessed(old, new *ir.Node) {
	r.processed[old] = new
}

// FindProcessed looks up a previously registered rewrite.
func (r *Rewriter) FindProcessed(old *ir.Node) (*ir.Node, bool) {
	n, ok := r.processed[old]
	return n, ok
}

// Rewrite dispatches n to the pass's override hook if set, else to
// Default. Passes should call this (not Default directly) whenever
// recursing into a child node, so overrides apply transitively.
func (r *Rewriter) Rewrite(n *ir.Node) *ir.Node {
	if n == nil {
		return nil
	}
	if existing, ok := r.FindProcessed(n); ok {
		return existing
	}
	if r.RewriteNode != nil {
		return r.RewriteNode(r, n)
	}
	return r.Default(n)
}

func (r *Rewriter) rewriteList(l *ir.NodeList) []*ir.Node {
	if l == nil {
		return nil
	}
	out := make([]*ir.Node, len(l.Items))
	for i, item := range l.Items {
		out[i] = r.Rewrite(item)
	}
	return out
}

func (r *Rewriter) rewriteType(t *ir.Node) *ir.Node {
	if t == nil {
		return nil
	}
	return r.Rewrite(t)
}

// Default recreates n's identity in Dst, recursively rewriting every
// child via r.Rewrite (so override hooks apply transitively), then
// running it through the matching smart constructor — never the raw
// struct literal — so the copy stays canonical in Dst (original_source/
// src/passes/bind.c's recreate_node_identity).
func (r *Rewriter) Default(n *ir.Node) *ir.Node {
	switch n.Tag {
	// Types
	case ir.TagInt:
		return r.Dst.IntType(n.Payload.(ir.Int).Width)
	case ir.TagBool:
		return r.Dst.BoolType()
	case ir.TagFloat:
		return r.Dst.FloatType(n.Payload.(ir.Float).Width)
	case ir.TagMask:
		return r.Dst.MaskType()
	case ir.TagNoReturn:
		return r.Dst.NoReturnType()
	case ir.TagRecord:
		p := n.Payload.(ir.Record)
		return r.Dst.RecordType(cloneStrings(r, p.MemberNames), r.rewriteList(p.MemberTypes))
	case ir.TagPtr:
		p := n.Payload.(ir.Ptr)
		return r.Dst.PtrType(p.Space, r.Rewrite(p.Pointee))
	case ir.TagArr:
		p := n.Payload.(ir.Arr)
		return r.Dst.ArrType(r.Rewrite(p.Elem), p.Size)
	case ir.TagFn:
		p := n.Payload.(ir.Fn)
		return r.Dst.FnType(r.rewriteList(p.Params), r.rewriteList(p.Returns), p.IsContinuation)
	case ir.TagQualified:
		p := n.Payload.(ir.Qualified)
		return r.Dst.QualifiedType(p.IsUniform, r.Rewrite(p.Inner))

	// Values
	case ir.TagIntLiteral:
		p := n.Payload.(ir.IntLiteral)
		return r.Dst.IntLiteralNode(p.Value, p.Width)
	case ir.TagTrue:
		return r.Dst.True()
	case ir.TagFalse:
		return r.Dst.False()
	case ir.TagFloatLiteral:
		p := n.Payload.(ir.FloatLiteral)
		return r.Dst.FloatLiteralNode(p.Value, p.Width)
	case ir.TagUntypedNumber:
		p := n.Payload.(ir.UntypedNumber)
		if p.IsFloat {
			return r.Dst.UntypedNumberNode(fmt.Sprintf("%g", p.FloatValue))
		}
		return r.Dst.UntypedNumberNode(fmt.Sprintf("%d", p.IntValue))
	case ir.TagVariable:
		return r.rewriteVariable(n)
	case ir.TagUnbound:
		return r.Dst.UnboundNode(*n.Payload.(ir.Unbound).Name)
	case ir.TagFnAddr:
		p := n.Payload.(ir.FnAddr)
		return r.Dst.FnAddrNode(r.Rewrite(p.Fn))
	case ir.TagConstant:
		p := n.Payload.(ir.Constant)
		return r.Dst.ConstantNode(*p.Name, r.Rewrite(p.Value))
	case ir.TagGlobalVariable:
		return r.rewriteGlobalVariable(n)
	case ir.TagFunction:
		return r.rewriteFunction(n)

	// Instructions
	case ir.TagLet:
		p := n.Payload.(ir.Let)
		inst := r.Rewrite(p.Instruction)
		letNode, vars := r.Dst.LetNode(inst, p.IsMutable)
		for i, oldVar := range p.Variables.Items {
			r.RegisterProcessed(oldVar, vars[i])
		}
		return letNode
	case ir.TagPrimOp:
		p := n.Payload.(ir.PrimOp)
		return r.Dst.PrimOpNode(p.Op, r.rewriteList(p.Operands))
	case ir.TagCall:
		p := n.Payload.(ir.Call)
		return r.Dst.CallNode(r.Rewrite(p.Callee), r.rewriteList(p.Args))
	case ir.TagIf:
		p := n.Payload.(ir.If)
		var falseBlock *ir.Node
		if p.IfFalse != nil {
			falseBlock = r.Rewrite(p.IfFalse)
		}
		return r.Dst.IfNode(r.Rewrite(p.Cond), r.rewriteList(p.Yield), r.Rewrite(p.IfTrue), falseBlock)
	case ir.TagMatch:
		p := n.Payload.(ir.Match)
		return r.Dst.MatchNode(r.Rewrite(p.Inspect), r.rewriteList(p.Literals), r.rewriteList(p.Cases), r.Rewrite(p.Default), r.rewriteList(p.Yield))
	case ir.TagLoop:
		p := n.Payload.(ir.Loop)
		params := r.rewriteLoopParams(p.Params)
		return r.Dst.LoopNode(params, r.rewriteList(p.InitialArgs), r.rewriteList(p.Yield), r.Rewrite(p.Body))

	// Blocks
	case ir.TagBlock:
		p := n.Payload.(ir.Block)
		return r.Dst.BlockNode(r.rewriteList(p.Instructions), r.Rewrite(p.Terminator))
	case ir.TagParsedBlock:
		p := n.Payload.(ir.ParsedBlock)
		return r.Dst.ParsedBlockNode(r.rewriteList(p.Instructions), r.Rewrite(p.Terminator))

	// Terminators
	case ir.TagReturn:
		p := n.Payload.(ir.Return)
		return r.Dst.ReturnNode(r.rewriteList(p.Values))
	case ir.TagBranch:
		return r.rewriteBranch(n)
	case ir.TagJoin:
		p := n.Payload.(ir.Join)
		if p.IsIndirect {
			return r.Dst.IndirectJoinNode(r.rewriteList(p.Args))
		}
		return r.Dst.JoinNode(r.Rewrite(p.Target), r.rewriteList(p.Args))
	case ir.TagCallc:
		p := n.Payload.(ir.Callc)
		return r.Dst.CallcNode(r.Rewrite(p.Callee), r.rewriteList(p.Args), r.Rewrite(p.ReturnCont))
	case ir.TagMergeConstruct:
		p := n.Payload.(ir.MergeConstruct)
		switch p.Kind {
		case ir.MergeSelection:
			return r.Dst.SelectionMergeNode(r.rewriteList(p.Args))
		case ir.MergeContinue:
			return r.Dst.ContinueMergeNode(r.rewriteList(p.Args))
		default:
			return r.Dst.BreakMergeNode(r.rewriteList(p.Args))
		}
	case ir.TagUnreachable:
		return r.Dst.UnreachableNode()

	case ir.TagRoot:
		p := n.Payload.(ir.Root)
		return r.Dst.RootNode(r.RewriteDeclarations(p.Declarations.Items))

	default:
		panic(fmt.Sprintf("rewrite: unhandled tag %v", n.Tag))
	}
}

// rewriteVariable never fabricates a new Variable: every Variable is
// bound exactly once, at a Let or a Function/Loop parameter list, and
// that binding site's rewrite registers the mapping before any reference
// to it is visited. Reaching here for an unregistered Variable means a
// pass visited a use before its binder — a construction bug in the pass,
// not a recoverable rewrite case.
func (r *Rewriter) rewriteVariable(n *ir.Node) *ir.Node {
	if existing, ok := r.FindProcessed(n); ok {
		return existing
	}
	panic(fmt.Sprintf("rewrite: reference to unbound Variable %s — its binder must be rewritten first", n))
}

// rewriteLoopParams rewrites a Loop instruction's parameter Variables,
// registering each one as processed (keyed by its source identity)
// before the loop body (which references them) is visited. Loop params
// and Function params follow the same self-referential-binder shape as
// Let: the binder must exist before its scope is rewritten.
func (r *Rewriter) rewriteLoopParams(params *ir.NodeList) []*ir.Node {
	out := make([]*ir.Node, len(params.Items))
	for i, p := range params.Items {
		v := p.Payload.(ir.Variable)
		qtype := r.Rewrite(p.Type)
		fresh := r.Dst.NewVariable(*v.Name, qtype)
		r.RegisterProcessed(p, fresh)
		out[i] = fresh
	}
	return out
}

func (r *Rewriter) rewriteGlobalVariable(n *ir.Node) *ir.Node {
	p := n.Payload.(ir.GlobalVariable)
	valueType := ir.Unqualify(n.Type)
	if ptr, ok := valueType.Payload.(ir.Ptr); ok {
		valueType = r.Rewrite(ptr.Pointee)
	}
	var init *ir.Node
	if p.Init != nil {
		init = r.Rewrite(p.Init)
	}
	fresh := r.Dst.GlobalVariableNode(*p.Name, valueType, p.Space, init)
	r.RegisterProcessed(n, fresh)
	return fresh
}

func (r *Rewriter) rewriteBranch(n *ir.Node) *ir.Node {
	p := n.Payload.(ir.Branch)
	switch p.Kind {
	case ir.BranchJump:
		return r.Dst.JumpNode(r.Rewrite(p.Target), r.rewriteList(p.Args))
	case ir.BranchIfElse:
		return r.Dst.IfElseBranchNode(r.Rewrite(p.Cond), r.Rewrite(p.TrueTarget), r.Rewrite(p.FalseTarget), r.rewriteList(p.Args))
	case ir.BranchSwitch:
		return r.Dst.SwitchBranchNode(r.Rewrite(p.Inspect), r.rewriteList(p.Literals), r.rewriteList(p.Targets), r.Rewrite(p.Default), r.rewriteList(p.Args))
	default: // BranchTailcall
		return r.Dst.TailcallBranchNode(r.Rewrite(p.Callee), r.rewriteList(p.Args))
	}
}

// rewriteFunction implements the two-phase declaration protocol: the
// header (signature, attrs, fresh parameter Variables) is built and
// registered as processed before the body is visited, so a call
// referencing this function from within its own body — or from a
// mutually recursive sibling — resolves to the same Dst node instead of
// recursing into Default a second time (original_source/src/passes/
// bind.c's recreate_decl_header_identity / recreate_decl_body_identity).
func (r *Rewriter) rewriteFunction(n *ir.Node) *ir.Node {
	p := n.Payload.(ir.Function)
	params := make([]*ir.Node, len(p.Params.Items))
	for i, param := range p.Params.Items {
		v := param.Payload.(ir.Variable)
		qtype := r.Rewrite(param.Type)
		params[i] = r.Dst.NewVariable(*v.Name, qtype)
	}
	returns := r.rewriteList(p.Returns)
	header := r.Dst.NewFunctionHeader(p.Attrs, *p.Name, params, returns)
	r.RegisterProcessed(n, header)
	for i, param := range p.Params.Items {
		r.RegisterProcessed(param, params[i])
	}
	if p.Block != nil {
		body := r.Rewrite(p.Block)
		ir.SetBody(header, body)
	}
	return header
}

// RewriteDeclarations rewrites a set of top-level declarations, letting
// every Function header get registered before any body is visited, so
// mutual recursion across declarations resolves regardless of order.
func (r *Rewriter) RewriteDeclarations(decls []*ir.Node) []*ir.Node {
	headers := make([]*ir.Node, len(decls))
	for i, d := range decls {
		if d.Tag == ir.TagFunction {
			headers[i] = r.rewriteFunctionHeaderOnly(d)
		}
	}
	out := make([]*ir.Node, len(decls))
	for i, d := range decls {
		switch d.Tag {
		case ir.TagFunction:
			out[i] = r.rewriteFunctionBodyOnly(d, headers[i])
		default:
			out[i] = r.Rewrite(d)
		}
	}
	return out
}

func (r *Rewriter) rewriteFunctionHeaderOnly(n *ir.Node) *ir.Node {
	if existing, ok := r.FindProcessed(n); ok {
		return existing
	}
	p := n.Payload.(ir.Function)
	params := make([]*ir.Node, len(p.Params.Items))
	for i, param := range p.Params.Items {
		v := param.Payload.(ir.Variable)
		qtype := r.Rewrite(param.Type)
		params[i] = r.Dst.NewVariable(*v.Name, qtype)
	}
	returns := r.rewriteList(p.Returns)
	header := r.Dst.NewFunctionHeader(p.Attrs, *p.Name, params, returns)
	r.RegisterProcessed(n, header)
	for i, param := range p.Params.Items {
		r.RegisterProcessed(param, params[i])
	}
	return header
}

func (r *Rewriter) rewriteFunctionBodyOnly(n, header *ir.Node) *ir.Node {
	p := n.Payload.(ir.Function)
	if p.Block != nil {
		body := r.Rewrite(p.Block)
		ir.SetBody(header, body)
	}
	return header
}

func cloneStrings(r *Rewriter, l *ir.StringList) []*string {
	if l == nil {
		return nil
	}
	out := make([]*string, len(l.Items))
	for i, s := range l.Items {
		out[i] = r.Dst.InternString(*s)
	}
	return out
}
