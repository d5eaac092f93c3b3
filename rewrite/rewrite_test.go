package rewrite

import (
	"testing"

	"github.com/gpuir/shady/ir"
)

func TestDefault_IdentityCopyOfSimpleFunction(t *testing.T) {
	src := ir.NewArena()
	header := src.NewFunctionHeader(ir.FnAttrs{}, "f", nil, []*ir.Node{src.IntType(32)})
	ir.SetBody(header, src.BlockNode(nil, src.ReturnNode([]*ir.Node{src.IntLiteralNode(42, 32)})))
	root := src.RootNode([]*ir.Node{header})

	dst := ir.NewArena()
	r := New(src, dst)
	out := r.Rewrite(root)

	fns := ir.Functions(out)
	if len(fns) != 1 {
		t.Fatalf("Functions(out) = %v, want 1 function", fns)
	}
	f := fns[0].Payload.(ir.Function)
	if *f.Name != "f" {
		t.Errorf("rewritten function name = %q, want \"f\"", *f.Name)
	}
	block := f.Block.Payload.(ir.Block)
	ret := block.Terminator.Payload.(ir.Return)
	lit := ret.Values.Items[0].Payload.(ir.IntLiteral)
	if lit.Value != 42 {
		t.Errorf("rewritten return value = %d, want 42", lit.Value)
	}
}

func TestDefault_NodesLandInDstArenaNotSrc(t *testing.T) {
	src := ir.NewArena()
	srcInt := src.IntType(32)

	dst := ir.NewArena()
	r := New(src, dst)
	out := r.Rewrite(srcInt)

	if out == srcInt {
		t.Errorf("rewrite returned the same pointer as the source node")
	}
	if out != dst.IntType(32) {
		t.Errorf("rewritten IntType(32) did not intern into dst")
	}
}

func TestRewriteVariable_PanicsOnUnregisteredReference(t *testing.T) {
	src := ir.NewArena()
	qtype := src.Uniform(src.IntType(32))
	v := src.NewVariable("x", qtype)

	dst := ir.NewArena()
	r := New(src, dst)
	defer func() {
		if recover() == nil {
			t.Errorf("rewriting a Variable with no registered binder did not panic")
		}
	}()
	r.Rewrite(v)
}

func TestRewriteFunction_RecursiveCallResolvesToSameHeader(t *testing.T) {
	src := ir.NewArena()
	header := src.NewFunctionHeader(ir.FnAttrs{IsContinuation: true}, "loop", nil, nil)
	selfCall := src.TailcallBranchNode(header, nil)
	ir.SetBody(header, src.BlockNode(nil, selfCall))
	root := src.RootNode([]*ir.Node{header})

	dst := ir.NewArena()
	r := New(src, dst)
	out := r.Rewrite(root)

	fn := ir.Functions(out)[0]
	block := fn.Payload.(ir.Function).Block.Payload.(ir.Block)
	branch := block.Terminator.Payload.(ir.Branch)
	if branch.Callee != fn {
		t.Errorf("self-recursive tail call did not resolve to the same rewritten function header")
	}
}

func TestRewriteDeclarations_MutualRecursionAcrossOrder(t *testing.T) {
	src := ir.NewArena()
	a := src.NewFunctionHeader(ir.FnAttrs{IsContinuation: true}, "a", nil, nil)
	b := src.NewFunctionHeader(ir.FnAttrs{IsContinuation: true}, "b", nil, nil)
	ir.SetBody(a, src.BlockNode(nil, src.JumpNode(b, nil)))
	ir.SetBody(b, src.BlockNode(nil, src.JumpNode(a, nil)))
	root := src.RootNode([]*ir.Node{a, b})

	dst := ir.NewArena()
	r := New(src, dst)
	out := r.Rewrite(root)

	fns := ir.Functions(out)
	aOut, bOut := fns[0], fns[1]
	aBranch := aOut.Payload.(ir.Function).Block.Payload.(ir.Block).Terminator.Payload.(ir.Branch)
	bBranch := bOut.Payload.(ir.Function).Block.Payload.(ir.Block).Terminator.Payload.(ir.Branch)
	if aBranch.Target != bOut {
		t.Errorf("a's jump target did not resolve to the rewritten b")
	}
	if bBranch.Target != aOut {
		t.Errorf("b's jump target did not resolve to the rewritten a")
	}
}

func TestRewriteNode_OverrideHookIsConsulted(t *testing.T) {
	src := ir.NewArena()
	srcBool := src.BoolType()

	dst := ir.NewArena()
	r := New(src, dst)
	var sawBool bool
	r.RewriteNode = func(rr *Rewriter, n *ir.Node) *ir.Node {
		if n.Tag == ir.TagBool {
			sawBool = true
		}
		return rr.Default(n)
	}
	r.Rewrite(srcBool)
	if !sawBool {
		t.Errorf("RewriteNode override hook was not consulted for a Bool type node")
	}
}

func TestFindProcessed_ShortCircuitsRepeatRewrites(t *testing.T) {
	src := ir.NewArena()
	header := src.NewFunctionHeader(ir.FnAttrs{}, "f", nil, nil)
	ir.SetBody(header, src.BlockNode(nil, src.ReturnNode(nil)))

	dst := ir.NewArena()
	r := New(src, dst)
	first := r.Rewrite(header)
	second := r.Rewrite(header)
	if first != second {
		t.Errorf("rewriting the same source node twice produced distinct dst nodes")
	}
}
