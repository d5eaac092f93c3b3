package passes

import (
	"testing"

	"github.com/gpuir/shady/ir"
)

func rawPrimOp(a *ir.Arena, op ir.PrimOpKind, types []*ir.Node, operands []*ir.Node) *ir.Node {
	return &ir.Node{
		Tag:     ir.TagPrimOp,
		Types:   a.Nodes(types),
		Payload: ir.PrimOp{Op: op, Operands: a.Nodes(operands)},
	}
}

// rawCall builds a Call node without going through CallNode's argument
// type-check, the way a not-yet-narrowed call with an UntypedNumber
// argument exists transiently between Bind and Infer.
func rawCall(a *ir.Arena, callee *ir.Node, returnTypes []*ir.Node, args []*ir.Node) *ir.Node {
	return &ir.Node{
		Tag:     ir.TagCall,
		Types:   a.Nodes(returnTypes),
		Payload: ir.Call{Callee: callee, Args: a.Nodes(args)},
	}
}

func TestRunInfer_BareUntypedLiteralDefaultsTo32Bit(t *testing.T) {
	src := ir.NewArena()
	header := src.NewFunctionHeader(ir.FnAttrs{}, "main", nil, nil)
	ir.SetBody(header, src.BlockNode(nil, src.ReturnNode([]*ir.Node{src.UntypedNumberNode("5")})))
	root := src.RootNode([]*ir.Node{header})

	dst := ir.NewArena()
	out, err := RunInfer(src, dst, root)
	if err != nil {
		t.Fatalf("RunInfer returned error: %v", err)
	}
	fns := ir.Functions(out)
	block := fns[0].Payload.(ir.Function).Block.Payload.(ir.Block)
	ret := block.Terminator.Payload.(ir.Return)
	lit := ret.Values.Items[0].Payload.(ir.IntLiteral)
	if lit.Value != 5 || lit.Width != 32 {
		t.Errorf("bare untyped literal narrowed to %+v, want {Value:5 Width:32}", lit)
	}
}

func TestRunInfer_SiblingNarrowsArithmeticOperand(t *testing.T) {
	src := ir.NewArena()
	i16 := src.IntType(16)
	typed := src.IntLiteralNode(3, 16)
	untyped := src.UntypedNumberNode("1")
	addType := src.Uniform(i16)
	add := rawPrimOp(src, ir.OpAdd, []*ir.Node{addType}, []*ir.Node{typed, untyped})

	letNode, vars := src.LetNode(add, false)
	header := src.NewFunctionHeader(ir.FnAttrs{}, "main", nil, []*ir.Node{i16})
	ir.SetBody(header, src.BlockNode([]*ir.Node{letNode}, src.ReturnNode([]*ir.Node{vars[0]})))
	root := src.RootNode([]*ir.Node{header})

	dst := ir.NewArena()
	out, err := RunInfer(src, dst, root)
	if err != nil {
		t.Fatalf("RunInfer returned error: %v", err)
	}
	fns := ir.Functions(out)
	block := fns[0].Payload.(ir.Function).Block.Payload.(ir.Block)
	let := block.Instructions.Items[0].Payload.(ir.Let)
	po := let.Instruction.Payload.(ir.PrimOp)
	second := po.Operands.Items[1].Payload.(ir.IntLiteral)
	if second.Width != 16 {
		t.Errorf("untyped sibling narrowed to width %d, want 16 (matching the typed operand)", second.Width)
	}
}

func TestRunInfer_SelectLeavesConditionOperandAlone(t *testing.T) {
	src := ir.NewArena()
	i32 := src.IntType(32)
	cond := src.True()
	typedBranch := src.IntLiteralNode(7, 32)
	untypedBranch := src.UntypedNumberNode("9")
	selType := src.Uniform(i32)
	sel := rawPrimOp(src, ir.OpSelect, []*ir.Node{selType}, []*ir.Node{cond, typedBranch, untypedBranch})

	letNode, vars := src.LetNode(sel, false)
	header := src.NewFunctionHeader(ir.FnAttrs{}, "main", nil, []*ir.Node{i32})
	ir.SetBody(header, src.BlockNode([]*ir.Node{letNode}, src.ReturnNode([]*ir.Node{vars[0]})))
	root := src.RootNode([]*ir.Node{header})

	dst := ir.NewArena()
	out, err := RunInfer(src, dst, root)
	if err != nil {
		t.Fatalf("RunInfer returned error: %v", err)
	}
	fns := ir.Functions(out)
	block := fns[0].Payload.(ir.Function).Block.Payload.(ir.Block)
	let := block.Instructions.Items[0].Payload.(ir.Let)
	po := let.Instruction.Payload.(ir.PrimOp)
	if po.Operands.Items[0].Tag != ir.TagTrue {
		t.Errorf("select condition operand tag = %v, want TagTrue (untouched)", po.Operands.Items[0].Tag)
	}
	last := po.Operands.Items[2].Payload.(ir.IntLiteral)
	if last.Width != 32 {
		t.Errorf("select's untyped branch narrowed to width %d, want 32", last.Width)
	}
}

func TestRunInfer_CallArgumentNarrowsAgainstParamType(t *testing.T) {
	src := ir.NewArena()
	i8 := src.IntType(8)
	param := src.NewVariable("x", src.Uniform(i8))
	callee := src.NewFunctionHeader(ir.FnAttrs{}, "callee", []*ir.Node{param}, nil)
	ir.SetBody(callee, src.BlockNode(nil, src.ReturnNode(nil)))

	call := rawCall(src, callee, nil, []*ir.Node{src.UntypedNumberNode("2")})

	main := src.NewFunctionHeader(ir.FnAttrs{}, "main", nil, nil)
	ir.SetBody(main, src.BlockNode([]*ir.Node{call}, src.ReturnNode(nil)))
	root := src.RootNode([]*ir.Node{main, callee})

	dst := ir.NewArena()
	out, err := RunInfer(src, dst, root)
	if err != nil {
		t.Fatalf("RunInfer returned error: %v", err)
	}
	fns := ir.Functions(out)
	block := fns[0].Payload.(ir.Function).Block.Payload.(ir.Block)
	callOut := block.Instructions.Items[0].Payload.(ir.Call)
	arg := callOut.Args.Items[0].Payload.(ir.IntLiteral)
	if arg.Width != 8 {
		t.Errorf("call argument narrowed to width %d, want 8 (callee's declared parameter type)", arg.Width)
	}
}

func TestRunInfer_GlobalInitializerNarrowsAgainstDeclaredType(t *testing.T) {
	src := ir.NewArena()
	i64 := src.IntType(64)
	g := src.GlobalVariableNode("g", i64, ir.SpacePrivateLogical, src.UntypedNumberNode("3"))
	root := src.RootNode([]*ir.Node{g})

	dst := ir.NewArena()
	out, err := RunInfer(src, dst, root)
	if err != nil {
		t.Fatalf("RunInfer returned error: %v", err)
	}
	decls := out.Payload.(ir.Root).Declarations.Items
	gOut := decls[0].Payload.(ir.GlobalVariable)
	init := gOut.Init.Payload.(ir.IntLiteral)
	if init.Width != 64 {
		t.Errorf("global initializer narrowed to width %d, want 64", init.Width)
	}
}
