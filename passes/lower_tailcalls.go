package passes

import (
	"github.com/gpuir/shady/ir"
	"github.com/gpuir/shady/rewrite"
)

// argStackCapacity and retStackCapacity size the per-invocation emulated
// stacks lower_tailcalls synthesizes. Both stacks carry plain i32 words —
// every continuation parameter and every stored return-continuation
// token is represented as a 32-bit scalar, the same restriction
// original_source/src/passes/lower_tailcalls.c's reference C runtime
// places on its emulated stack; a continuation with a float- or
// pointer-typed parameter is out of scope for this lowering (see
// SPEC_FULL.md §9's Open Question resolution and DESIGN.md).
const (
	argStackCapacity = 64
	retStackCapacity = 16
)

// TailcallLowering is the pass state for one module: the FnPtr token
// table, the synthesized dispatcher-state globals, and the entry-point
// wrappers still waiting for the dispatcher to exist before their bodies
// can be filled in.
type TailcallLowering struct {
	tokens map[*ir.Node]int32

	argStack, argTop   *ir.Node
	retStack, retTop   *ir.Node
	nextToken          *ir.Node
	activeMask         *ir.Node
	dispatcherFn       *ir.Node

	wrappers []entryWrapper
	inLeaf   bool
}

type entryWrapper struct {
	srcFn   *ir.Node
	wrapper *ir.Node
	params  []*ir.Node
}

type leafRef struct {
	token  int32
	header *ir.Node
}

// RunLowerTailcalls rewrites root so every entry point and every
// indirectly reached continuation becomes a parameterless leaf, every indirect control transfer becomes
// a token store into a mutable global, and a synthesized top_dispatcher
// function loops over that token until it sees the reserved halt value
// 0 (spec §4.6, SPEC_FULL.md §4.6/§9).
func RunLowerTailcalls(src, dst *ir.Arena, root *ir.Node) (out *ir.Node, err error) {
	defer recoverStageError(&err)

	lt := &TailcallLowering{tokens: make(map[*ir.Node]int32)}
	rw := rewrite.New(src, dst)
	rw.RewriteNode = lt.hook

	decls := root.Payload.(ir.Root).Declarations.Items
	indirect := collectIndirectTargets(decls)
	lt.assignTokens(decls, indirect)

	var outDecls []*ir.Node
	outDecls = append(outDecls, lt.declareGlobals(dst)...)

	type pendingBody struct {
		srcFn  *ir.Node
		header *ir.Node
		isLeaf bool
	}
	var pending []pendingBody
	var leaves []leafRef

	for _, d := range decls {
		switch d.Tag {
		case ir.TagConstant, ir.TagGlobalVariable:
			outDecls = append(outDecls, rw.Rewrite(d))
		case ir.TagFunction:
			fn := d.Payload.(ir.Function)
			switch {
			case fn.Attrs.IsEntryPoint:
				wrapper, leafHeader := lt.splitEntryPoint(rw, d)
				outDecls = append(outDecls, wrapper, leafHeader)
				leaves = append(leaves, leafRef{token: lt.tokens[d], header: leafHeader})
				pending = append(pending, pendingBody{d, leafHeader, true})
			case fn.Attrs.IsContinuation && indirect[d]:
				leafHeader := lt.buildLeafHeader(rw, d)
				outDecls = append(outDecls, leafHeader)
				leaves = append(leaves, leafRef{token: lt.tokens[d], header: leafHeader})
				pending = append(pending, pendingBody{d, leafHeader, true})
			default:
				header := lt.buildOrdinaryHeader(rw, d)
				outDecls = append(outDecls, header)
				pending = append(pending, pendingBody{d, header, false})
			}
		}
	}

	for _, pb := range pending {
		fn := pb.srcFn.Payload.(ir.Function)
		if fn.Block == nil {
			continue
		}
		if pb.isLeaf {
			lt.fillLeafBody(rw, pb.srcFn, pb.header)
		} else {
			body := rw.Rewrite(fn.Block)
			ir.SetBody(pb.header, body)
		}
	}

	dispatcher := lt.buildDispatcher(rw.Dst, leaves)
	outDecls = append(outDecls, dispatcher)
	lt.dispatcherFn = dispatcher

	for _, w := range lt.wrappers {
		lt.finishWrapper(rw.Dst, w)
	}

	return dst.RootNode(outDecls), nil
}

// assignTokens walks declarations in source order, handing out FnPtr
// tokens starting at 1 to every entry point and every continuation that
// is only reachable indirectly (addressed by FnAddr for a dynamic tail
// call, or the ReturnCont of a Callc). Token 0 stays reserved for the
// dispatcher's halt signal. Continuations reached only by a direct
// Jump/IfElse/Switch never need a token: the emitter wires those in as
// ordinary basic blocks of their owning function (spec §4.6). Walking in
// source order rather than branch-discovery order (as original_source/
// src/passes/lower_tailcalls.c does inline during its rewrite) gives the
// same uniqueness guarantee with a result independent of traversal
// order.
func (lt *TailcallLowering) assignTokens(decls []*ir.Node, indirect map[*ir.Node]bool) {
	next := int32(1)
	for _, d := range decls {
		if d.Tag != ir.TagFunction {
			continue
		}
		fn := d.Payload.(ir.Function)
		if fn.Attrs.IsEntryPoint || (fn.Attrs.IsContinuation && indirect[d]) {
			lt.tokens[d] = next
			next++
		}
	}
}

// collectIndirectTargets scans every declaration's instructions and
// terminators for the two constructs that make a continuation's
// reachability genuinely unknown until runtime: a function address taken
// for a dynamic tail call (FnAddr), and a call-with-continuation's return
// point. A continuation reached only through a direct Jump/IfElse/Switch
// never appears here — original_source/src/emit/emit.c emits those
// straight as OpBranch/OpBranchConditional, never through the dispatcher.
func collectIndirectTargets(decls []*ir.Node) map[*ir.Node]bool {
	indirect := make(map[*ir.Node]bool)
	seen := make(map[*ir.Node]bool)
	var walk func(n *ir.Node)
	walk = func(n *ir.Node) {
		if n == nil || seen[n] {
			return
		}
		seen[n] = true
		switch n.Tag {
		case ir.TagFnAddr:
			indirect[n.Payload.(ir.FnAddr).Fn] = true
		case ir.TagLet:
			walk(n.Payload.(ir.Let).Instruction)
		case ir.TagPrimOp:
			for _, o := range n.Payload.(ir.PrimOp).Operands.Items {
				walk(o)
			}
		case ir.TagCall:
			p := n.Payload.(ir.Call)
			walk(p.Callee)
			for _, a := range p.Args.Items {
				walk(a)
			}
		case ir.TagIf:
			p := n.Payload.(ir.If)
			walk(p.Cond)
			walk(p.IfTrue)
			walk(p.IfFalse)
		case ir.TagMatch:
			p := n.Payload.(ir.Match)
			walk(p.Inspect)
			for _, c := range p.Cases.Items {
				walk(c)
			}
			walk(p.Default)
		case ir.TagLoop:
			p := n.Payload.(ir.Loop)
			for _, a := range p.InitialArgs.Items {
				walk(a)
			}
			walk(p.Body)
		case ir.TagBlock:
			p := n.Payload.(ir.Block)
			for _, inst := range p.Instructions.Items {
				walk(inst)
			}
			walk(p.Terminator)
		case ir.TagParsedBlock:
			p := n.Payload.(ir.ParsedBlock)
			for _, inst := range p.Instructions.Items {
				walk(inst)
			}
			walk(p.Terminator)
		case ir.TagReturn:
			for _, v := range n.Payload.(ir.Return).Values.Items {
				walk(v)
			}
		case ir.TagBranch:
			p := n.Payload.(ir.Branch)
			for _, a := range p.Args.Items {
				walk(a)
			}
			switch p.Kind {
			case ir.BranchIfElse:
				walk(p.Cond)
			case ir.BranchSwitch:
				walk(p.Inspect)
			case ir.BranchTailcall:
				walk(p.Callee)
			}
		case ir.TagJoin:
			for _, a := range n.Payload.(ir.Join).Args.Items {
				walk(a)
			}
		case ir.TagCallc:
			p := n.Payload.(ir.Callc)
			walk(p.Callee)
			for _, a := range p.Args.Items {
				walk(a)
			}
			indirect[p.ReturnCont] = true
		case ir.TagMergeConstruct:
			for _, a := range n.Payload.(ir.MergeConstruct).Args.Items {
				walk(a)
			}
		}
	}
	for _, d := range decls {
		if d.Tag != ir.TagFunction {
			continue
		}
		if block := d.Payload.(ir.Function).Block; block != nil {
			walk(block)
		}
	}
	return indirect
}

func (lt *TailcallLowering) tokenFor(srcFn *ir.Node) int32 {
	tok, ok := lt.tokens[srcFn]
	if !ok {
		panic(&ir.Error{Kind: ir.ErrMalformedNode, Message: "lower_tailcalls: branch target is not a continuation or entry point"})
	}
	return tok
}

func (lt *TailcallLowering) declareGlobals(a *ir.Arena) []*ir.Node {
	argCap := uint32(argStackCapacity)
	retCap := uint32(retStackCapacity)
	lt.argStack = a.GlobalVariableNode("__arg_stack", a.ArrType(a.IntType(32), &argCap), ir.SpacePrivateLogical, nil)
	lt.argTop = a.GlobalVariableNode("__arg_stack_top", a.IntType(32), ir.SpacePrivateLogical, a.IntLiteralNode(0, 32))
	lt.retStack = a.GlobalVariableNode("__ret_stack", a.ArrType(a.IntType(32), &retCap), ir.SpacePrivateLogical, nil)
	lt.retTop = a.GlobalVariableNode("__ret_stack_top", a.IntType(32), ir.SpacePrivateLogical, a.IntLiteralNode(0, 32))
	lt.nextToken = a.GlobalVariableNode("__next_fn_token", a.IntType(32), ir.SpacePrivateLogical, a.IntLiteralNode(0, 32))
	lt.activeMask = a.GlobalVariableNode("__active_mask", a.MaskType(), ir.SpacePrivateLogical, nil)
	return []*ir.Node{lt.argStack, lt.argTop, lt.retStack, lt.retTop, lt.nextToken, lt.activeMask}
}

func (lt *TailcallLowering) hook(rw *rewrite.Rewriter, n *ir.Node) *ir.Node {
	switch n.Tag {
	case ir.TagFnAddr:
		fn := n.Payload.(ir.FnAddr).Fn
		return rw.Dst.IntLiteralNode(int64(lt.tokenFor(fn)), 32)
	case ir.TagBlock:
		return lt.lowerBlock(rw, n)
	default:
		return rw.Default(n)
	}
}

// lowerBlock is the pass's core: every Block passes through here. Only a
// terminator whose target is genuinely unknown until runtime — a
// BranchTailcall, an indirect Join, or a Callc's implicit resumption —
// gets leaf treatment (push/store/return through the dispatcher's
// emulated stacks); lt.inLeaf marks the span of a continuation or entry
// leaf's own body (including every nested structured sub-block reached
// while rewriting it) that these terminators can appear in. A direct
// Jump/IfElse/Switch/Join is never rewritten here, leaf or not: it passes
// through unchanged, and spirv/emit.go emits it straight as an
// OpBranch/OpBranchConditional using scope.Build's dominator order
// (spec §4.6, §4.7.5; ground truth: original_source/src/emit/emit.c's
// emit_terminator only errors on BrSwitch/BrTailcall, never on BrJump or
// BrIfElse).
func (lt *TailcallLowering) lowerBlock(rw *rewrite.Rewriter, n *ir.Node) *ir.Node {
	a := rw.Dst
	p := n.Payload.(ir.Block)
	instrs := make([]*ir.Node, 0, len(p.Instructions.Items))
	for _, inst := range p.Instructions.Items {
		instrs = append(instrs, rw.Rewrite(inst))
	}

	term := p.Terminator
	switch {
	case !lt.inLeaf:
		return a.BlockNode(instrs, rw.Rewrite(term))
	case term.Tag == ir.TagReturn:
		instrs = append(instrs, lt.storeToken(a, a.Int32(0)))
		return a.BlockNode(instrs, a.ReturnNode(nil))
	case term.Tag == ir.TagBranch && term.Payload.(ir.Branch).Kind == ir.BranchTailcall:
		return lt.lowerLeafBranch(rw, instrs, term)
	case term.Tag == ir.TagJoin && term.Payload.(ir.Join).IsIndirect:
		return lt.lowerLeafJoin(rw, instrs, term)
	case term.Tag == ir.TagCallc:
		return lt.lowerLeafCallc(rw, instrs, term)
	default:
		return a.BlockNode(instrs, rw.Rewrite(term))
	}
}

// lowerLeafBranch handles the one Branch kind whose target isn't a known
// continuation node: a dynamic tail call through a runtime function
// pointer. BranchJump/BranchIfElse/BranchSwitch never reach here — they
// stay direct terminators regardless of lt.inLeaf (see lowerBlock).
func (lt *TailcallLowering) lowerLeafBranch(rw *rewrite.Rewriter, instrs []*ir.Node, term *ir.Node) *ir.Node {
	a := rw.Dst
	p := term.Payload.(ir.Branch)
	calleeVal := rw.Rewrite(p.Callee)
	instrs = append(instrs, lt.pushArgsReversed(rw, p.Args.Items)...)
	instrs = append(instrs, lt.storeToken(a, calleeVal))
	return a.BlockNode(instrs, a.ReturnNode(nil))
}

// lowerLeafJoin handles only an indirect Join, whose resumption point was
// stashed on the return stack by some earlier Callc; a direct Join never
// reaches here (see lowerBlock).
func (lt *TailcallLowering) lowerLeafJoin(rw *rewrite.Rewriter, instrs []*ir.Node, term *ir.Node) *ir.Node {
	a := rw.Dst
	p := term.Payload.(ir.Join)
	instrs = append(instrs, lt.pushArgsReversed(rw, p.Args.Items)...)
	popInstrs, retTok := lt.popRet(a)
	instrs = append(instrs, popInstrs...)
	instrs = append(instrs, lt.storeToken(a, retTok))
	return a.BlockNode(instrs, a.ReturnNode(nil))
}

func (lt *TailcallLowering) lowerLeafCallc(rw *rewrite.Rewriter, instrs []*ir.Node, term *ir.Node) *ir.Node {
	a := rw.Dst
	p := term.Payload.(ir.Callc)
	calleeVal := rw.Rewrite(p.Callee)
	instrs = append(instrs, lt.pushArgsReversed(rw, p.Args.Items)...)
	instrs = append(instrs, lt.pushRet(a, a.Int32(lt.tokenFor(p.ReturnCont)))...)
	instrs = append(instrs, lt.storeToken(a, calleeVal))
	return a.BlockNode(instrs, a.ReturnNode(nil))
}

func (lt *TailcallLowering) storeToken(a *ir.Arena, value *ir.Node) *ir.Node {
	return a.PrimOpNode(ir.OpStore, []*ir.Node{lt.nextToken, value})
}

// pushArgsReversed rewrites and pushes args from last to first, so the
// first declared argument ends on top of the stack — the callee's
// prologue then pops in forward declaration order (SPEC_FULL.md §9).
func (lt *TailcallLowering) pushArgsReversed(rw *rewrite.Rewriter, args []*ir.Node) []*ir.Node {
	var instrs []*ir.Node
	for i := len(args) - 1; i >= 0; i-- {
		val := rw.Rewrite(args[i])
		instrs = append(instrs, lt.pushArg(rw.Dst, val)...)
	}
	return instrs
}

func (lt *TailcallLowering) pushArg(a *ir.Arena, value *ir.Node) []*ir.Node {
	return pushOnto(a, lt.argStack, lt.argTop, value)
}

func (lt *TailcallLowering) popArg(a *ir.Arena) ([]*ir.Node, *ir.Node) {
	return popFrom(a, lt.argStack, lt.argTop)
}

func (lt *TailcallLowering) pushRet(a *ir.Arena, value *ir.Node) []*ir.Node {
	return pushOnto(a, lt.retStack, lt.retTop, value)
}

func (lt *TailcallLowering) popRet(a *ir.Arena) ([]*ir.Node, *ir.Node) {
	return popFrom(a, lt.retStack, lt.retTop)
}

func pushOnto(a *ir.Arena, stack, top, value *ir.Node) []*ir.Node {
	var instrs []*ir.Node
	loadTop, topVars := a.LetNode(a.PrimOpNode(ir.OpLoad, []*ir.Node{top}), false)
	instrs = append(instrs, loadTop)
	addr, addrVars := a.LetNode(a.PrimOpNode(ir.OpLea, []*ir.Node{stack, topVars[0]}), false)
	instrs = append(instrs, addr)
	instrs = append(instrs, a.PrimOpNode(ir.OpStore, []*ir.Node{addrVars[0], value}))
	newTop, newTopVars := a.LetNode(a.PrimOpNode(ir.OpAdd, []*ir.Node{topVars[0], a.Int32(1)}), false)
	instrs = append(instrs, newTop)
	instrs = append(instrs, a.PrimOpNode(ir.OpStore, []*ir.Node{top, newTopVars[0]}))
	return instrs
}

func popFrom(a *ir.Arena, stack, top *ir.Node) ([]*ir.Node, *ir.Node) {
	var instrs []*ir.Node
	loadTop, topVars := a.LetNode(a.PrimOpNode(ir.OpLoad, []*ir.Node{top}), false)
	instrs = append(instrs, loadTop)
	newTop, newTopVars := a.LetNode(a.PrimOpNode(ir.OpSub, []*ir.Node{topVars[0], a.Int32(1)}), false)
	instrs = append(instrs, newTop)
	instrs = append(instrs, a.PrimOpNode(ir.OpStore, []*ir.Node{top, newTopVars[0]}))
	addr, addrVars := a.LetNode(a.PrimOpNode(ir.OpLea, []*ir.Node{stack, newTopVars[0]}), false)
	instrs = append(instrs, addr)
	val, valVars := a.LetNode(a.PrimOpNode(ir.OpLoad, []*ir.Node{addrVars[0]}), false)
	instrs = append(instrs, val)
	return instrs, valVars[0]
}

func (lt *TailcallLowering) buildLeafHeader(rw *rewrite.Rewriter, srcFn *ir.Node) *ir.Node {
	header := rw.Dst.NewFunctionHeader(ir.FnAttrs{}, *srcFn.Payload.(ir.Function).Name, nil, nil)
	rw.RegisterProcessed(srcFn, header)
	return header
}

func (lt *TailcallLowering) buildOrdinaryHeader(rw *rewrite.Rewriter, srcFn *ir.Node) *ir.Node {
	fn := srcFn.Payload.(ir.Function)
	params := make([]*ir.Node, len(fn.Params.Items))
	for i, param := range fn.Params.Items {
		v := param.Payload.(ir.Variable)
		qtype := rw.Rewrite(param.Type)
		fresh := rw.Dst.NewVariable(*v.Name, qtype)
		rw.RegisterProcessed(param, fresh)
		params[i] = fresh
	}
	returns := make([]*ir.Node, len(fn.Returns.Items))
	for i, r := range fn.Returns.Items {
		returns[i] = rw.Rewrite(r)
	}
	header := rw.Dst.NewFunctionHeader(fn.Attrs, *fn.Name, params, returns)
	rw.RegisterProcessed(srcFn, header)
	return header
}

// splitEntryPoint keeps a thin wrapper under the entry point's original
// name and signature (SPIR-V's OpEntryPoint interface needs the real
// builtin parameters), and hoists the original body into a parameterless
// leaf. finishWrapper fills the wrapper's body once top_dispatcher exists.
func (lt *TailcallLowering) splitEntryPoint(rw *rewrite.Rewriter, srcFn *ir.Node) (wrapper, leafHeader *ir.Node) {
	fn := srcFn.Payload.(ir.Function)
	params := make([]*ir.Node, len(fn.Params.Items))
	for i, param := range fn.Params.Items {
		v := param.Payload.(ir.Variable)
		qtype := rw.Rewrite(param.Type)
		params[i] = rw.Dst.NewVariable(*v.Name, qtype)
	}
	returns := make([]*ir.Node, len(fn.Returns.Items))
	for i, r := range fn.Returns.Items {
		returns[i] = rw.Rewrite(r)
	}
	wrapper = rw.Dst.NewFunctionHeader(fn.Attrs, *fn.Name, params, returns)
	leafHeader = rw.Dst.NewFunctionHeader(ir.FnAttrs{}, *fn.Name+"_body", nil, nil)
	rw.RegisterProcessed(srcFn, wrapper)
	lt.wrappers = append(lt.wrappers, entryWrapper{srcFn: srcFn, wrapper: wrapper, params: params})
	return wrapper, leafHeader
}

// fillLeafBody pops the continuation's (or entry's) original parameters
// off the argument stack as a prologue, binds each to its original
// Variable identity so the rest of the body resolves references to them
// normally, then lowers the body under lt.inLeaf.
func (lt *TailcallLowering) fillLeafBody(rw *rewrite.Rewriter, srcFn *ir.Node, header *ir.Node) {
	fn := srcFn.Payload.(ir.Function)
	if fn.Block == nil {
		return
	}
	a := rw.Dst
	var prologue []*ir.Node
	for _, param := range fn.Params.Items {
		popInstrs, val := lt.popArg(a)
		prologue = append(prologue, popInstrs...)
		rw.RegisterProcessed(param, val)
	}
	lt.inLeaf = true
	body := rw.Rewrite(fn.Block)
	lt.inLeaf = false
	bp := body.Payload.(ir.Block)
	combined := append(append([]*ir.Node{}, prologue...), bp.Instructions.Items...)
	finalBody := a.BlockNode(combined, bp.Terminator)
	ir.SetBody(header, finalBody)
}

// finishWrapper builds an entry wrapper's body: push its builtin
// parameters for the leaf to pop, snapshot the subgroup's active mask,
// seed the dispatch token with the leaf's own token, then hand off to
// top_dispatcher.
func (lt *TailcallLowering) finishWrapper(a *ir.Arena, w entryWrapper) {
	var instrs []*ir.Node
	for i := len(w.params) - 1; i >= 0; i-- {
		instrs = append(instrs, lt.pushArg(a, w.params[i])...)
	}
	maskLet, maskVars := a.LetNode(a.PrimOpNode(ir.OpSubgroupActiveMask, nil), false)
	instrs = append(instrs, maskLet)
	instrs = append(instrs, a.PrimOpNode(ir.OpStore, []*ir.Node{lt.activeMask, maskVars[0]}))
	instrs = append(instrs, lt.storeToken(a, a.Int32(lt.tokenFor(w.srcFn))))
	instrs = append(instrs, a.CallNode(lt.dispatcherFn, nil))
	body := a.BlockNode(instrs, a.ReturnNode(nil))
	ir.SetBody(w.wrapper, body)
}

// buildDispatcher assembles top_dispatcher: a loop that reloads the
// token global every iteration, calls whichever leaf it names via a
// Match, and halts the moment it sees token 0.
func (lt *TailcallLowering) buildDispatcher(a *ir.Arena, leaves []leafRef) *ir.Node {
	header := a.NewFunctionHeader(ir.FnAttrs{}, "top_dispatcher", nil, nil)

	loadTok, tokVars := a.LetNode(a.PrimOpNode(ir.OpLoad, []*ir.Node{lt.nextToken}), false)
	cur := tokVars[0]

	literals := make([]*ir.Node, len(leaves))
	cases := make([]*ir.Node, len(leaves))
	for i, lf := range leaves {
		literals[i] = a.Int32(lf.token)
		cases[i] = a.BlockNode([]*ir.Node{a.CallNode(lf.header, nil)}, a.SelectionMergeNode(nil))
	}
	defaultBlock := a.BlockNode(nil, a.SelectionMergeNode(nil))
	matchInstr := a.MatchNode(cur, literals, cases, defaultBlock, nil)

	haltLet, haltVars := a.LetNode(a.PrimOpNode(ir.OpEq, []*ir.Node{cur, a.Int32(0)}), false)
	trueBlock := a.BlockNode(nil, a.BreakMergeNode(nil))
	falseBlock := a.BlockNode(nil, a.ContinueMergeNode(nil))
	ifInstr := a.IfNode(haltVars[0], nil, trueBlock, falseBlock)

	loopBody := a.BlockNode([]*ir.Node{loadTok, matchInstr, haltLet, ifInstr}, a.UnreachableNode())
	loopInstr := a.LoopNode(nil, nil, nil, loopBody)
	outerBody := a.BlockNode([]*ir.Node{loopInstr}, a.ReturnNode(nil))
	ir.SetBody(header, outerBody)
	return header
}
