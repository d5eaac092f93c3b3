package passes

import (
	"github.com/gpuir/shady/ir"
	"github.com/gpuir/shady/rewrite"
)

// Infer narrows every UntypedNumber residue left after Bind into a
// concrete IntLiteral or FloatLiteral, using whatever typed context the
// numeral appears in: a sibling operand of the same PrimOp, the declared
// parameter type at a call site, or a global's declared value type. A
// numeral with no such context (a bare literal return value, for
// instance) falls back to a 32-bit default — the same default width
// original_source/src/passes/infer.c uses for an unconstrained numeral.
type Infer struct{}

// RunInfer narrows root's untyped numerals into a fresh ir.Arena.
func RunInfer(src, dst *ir.Arena, root *ir.Node) (out *ir.Node, err error) {
	defer recoverStageError(&err)
	inf := &Infer{}
	rw := rewrite.New(src, dst)
	rw.RewriteNode = inf.hook
	return rw.Rewrite(root), nil
}

func (inf *Infer) hook(rw *rewrite.Rewriter, n *ir.Node) *ir.Node {
	switch n.Tag {
	case ir.TagUntypedNumber:
		return narrowDefault(rw.Dst, n)
	case ir.TagPrimOp:
		return inf.rewritePrimOp(rw, n)
	case ir.TagCall:
		return inf.rewriteCall(rw, n)
	case ir.TagGlobalVariable:
		return inf.rewriteGlobal(rw, n)
	default:
		return rw.Default(n)
	}
}

func narrowDefault(a *ir.Arena, n *ir.Node) *ir.Node {
	p := n.Payload.(ir.UntypedNumber)
	if p.IsFloat {
		return a.FloatLiteralNode(p.FloatValue, 32)
	}
	return a.IntLiteralNode(p.IntValue, 32)
}

// narrowTo resolves n (which must be an UntypedNumber) against the
// concrete unqualified target type, or returns nil if target isn't a
// numeral type n can be narrowed to.
func narrowTo(a *ir.Arena, n *ir.Node, target *ir.Node) *ir.Node {
	p := n.Payload.(ir.UntypedNumber)
	switch t := target.Payload.(type) {
	case ir.Int:
		return a.IntLiteralNode(p.IntValue, t.Width)
	case ir.Float:
		if p.IsFloat {
			return a.FloatLiteralNode(p.FloatValue, t.Width)
		}
		return a.FloatLiteralNode(float64(p.IntValue), t.Width)
	default:
		return nil
	}
}

// narrowSiblings rewrites an operand list for an op whose operands must
// share a type: the first concretely-typed operand sets the target every
// UntypedNumber sibling narrows to, falling back to the default width if
// every operand is untyped.
func (inf *Infer) narrowSiblings(rw *rewrite.Rewriter, ops []*ir.Node) []*ir.Node {
	var refType *ir.Node
	for _, op := range ops {
		if op.Tag != ir.TagUntypedNumber {
			refType = rw.Rewrite(ir.Unqualify(op.Type))
			break
		}
	}
	out := make([]*ir.Node, len(ops))
	for i, op := range ops {
		if op.Tag != ir.TagUntypedNumber {
			out[i] = rw.Rewrite(op)
			continue
		}
		if refType != nil {
			if narrowed := narrowTo(rw.Dst, op, refType); narrowed != nil {
				out[i] = narrowed
				continue
			}
		}
		out[i] = narrowDefault(rw.Dst, op)
	}
	return out
}

func (inf *Infer) rewritePrimOp(rw *rewrite.Rewriter, n *ir.Node) *ir.Node {
	p := n.Payload.(ir.PrimOp)
	switch p.Op {
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv, ir.OpMod,
		ir.OpEq, ir.OpNeq, ir.OpLt, ir.OpLe, ir.OpGt, ir.OpGe:
		return rw.Dst.PrimOpNode(p.Op, inf.narrowSiblings(rw, p.Operands.Items))
	case ir.OpSelect:
		operands := make([]*ir.Node, len(p.Operands.Items))
		operands[0] = rw.Rewrite(p.Operands.Items[0])
		copy(operands[1:], inf.narrowSiblings(rw, p.Operands.Items[1:]))
		return rw.Dst.PrimOpNode(p.Op, operands)
	default:
		operands := make([]*ir.Node, len(p.Operands.Items))
		for i, op := range p.Operands.Items {
			operands[i] = rw.Rewrite(op)
		}
		return rw.Dst.PrimOpNode(p.Op, operands)
	}
}

func (inf *Infer) rewriteCall(rw *rewrite.Rewriter, n *ir.Node) *ir.Node {
	p := n.Payload.(ir.Call)
	callee := rw.Rewrite(p.Callee)

	paramType := func(i int) *ir.Node {
		switch callee.Tag {
		case ir.TagFunction:
			fn := callee.Payload.(ir.Function)
			if i >= len(fn.Params.Items) {
				return nil
			}
			return ir.Unqualify(fn.Params.Items[i].Type)
		default:
			ptrType := ir.Unqualify(callee.Type).Payload.(ir.Ptr)
			fnType := ptrType.Pointee.Payload.(ir.Fn)
			if i >= len(fnType.Params.Items) {
				return nil
			}
			return fnType.Params.Items[i]
		}
	}

	args := make([]*ir.Node, len(p.Args.Items))
	for i, arg := range p.Args.Items {
		if arg.Tag == ir.TagUntypedNumber {
			if target := paramType(i); target != nil {
				if narrowed := narrowTo(rw.Dst, arg, target); narrowed != nil {
					args[i] = narrowed
					continue
				}
			}
			args[i] = narrowDefault(rw.Dst, arg)
			continue
		}
		args[i] = rw.Rewrite(arg)
	}
	return rw.Dst.CallNode(callee, args)
}

func (inf *Infer) rewriteGlobal(rw *rewrite.Rewriter, n *ir.Node) *ir.Node {
	p := n.Payload.(ir.GlobalVariable)
	pointee := ir.Unqualify(n.Type).Payload.(ir.Ptr).Pointee
	valueType := rw.Rewrite(pointee)
	var init *ir.Node
	if p.Init != nil {
		if p.Init.Tag == ir.TagUntypedNumber {
			if narrowed := narrowTo(rw.Dst, p.Init, valueType); narrowed != nil {
				init = narrowed
			} else {
				init = narrowDefault(rw.Dst, p.Init)
			}
		} else {
			init = rw.Rewrite(p.Init)
		}
	}
	return rw.Dst.GlobalVariableNode(*p.Name, valueType, p.Space, init)
}
