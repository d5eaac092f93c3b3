package ir

import "testing"

func TestPrimOpNode_Arithmetic_InfersOperandType(t *testing.T) {
	a := NewArena()
	l := a.IntLiteralNode(1, 32)
	r := a.IntLiteralNode(2, 32)
	add := a.PrimOpNode(OpAdd, []*Node{l, r})
	if len(add.Types.Items) != 1 {
		t.Fatalf("OpAdd produced %d result types, want 1", len(add.Types.Items))
	}
	if Unqualify(add.Types.Items[0]) != a.IntType(32) {
		t.Errorf("OpAdd result type = %v, want IntType(32)", add.Types.Items[0])
	}
}

func TestPrimOpNode_Arithmetic_MismatchedTypesPanics(t *testing.T) {
	a := NewArena()
	defer func() {
		if recover() == nil {
			t.Errorf("OpAdd with mismatched operand types did not panic")
		}
	}()
	a.PrimOpNode(OpAdd, []*Node{a.IntLiteralNode(1, 32), a.FloatLiteralNode(1, 32)})
}

func TestPrimOpNode_Comparison_ResultIsBool(t *testing.T) {
	a := NewArena()
	eq := a.PrimOpNode(OpEq, []*Node{a.IntLiteralNode(1, 32), a.IntLiteralNode(2, 32)})
	if Unqualify(eq.Types.Items[0]) != a.BoolType() {
		t.Errorf("OpEq result type = %v, want Bool", eq.Types.Items[0])
	}
}

func TestPrimOpNode_VaryingPropagates(t *testing.T) {
	a := NewArena()
	varyingInt := a.Varying(a.IntType(32))
	v := a.NewVariable("x", varyingInt)
	add := a.PrimOpNode(OpAdd, []*Node{v, a.IntLiteralNode(1, 32)})
	if IsUniform(add.Types.Items[0]) {
		t.Errorf("OpAdd with a varying operand produced a uniform result")
	}
}

func TestPrimOpNode_StoreProducesNoResults(t *testing.T) {
	a := NewArena()
	i32 := a.IntType(32)
	ptr := a.PrimOpNode(OpAlloca, []*Node{i32})
	ptrVar := a.NewVariable("p", ptr.Types.Items[0])
	store := a.PrimOpNode(OpStore, []*Node{ptrVar, a.IntLiteralNode(5, 32)})
	if len(store.Types.Items) != 0 {
		t.Errorf("OpStore produced %d results, want 0", len(store.Types.Items))
	}
}

func TestPrimOpNode_LoadRequiresPointer(t *testing.T) {
	a := NewArena()
	defer func() {
		if recover() == nil {
			t.Errorf("OpLoad on a non-pointer operand did not panic")
		}
	}()
	a.PrimOpNode(OpLoad, []*Node{a.IntLiteralNode(1, 32)})
}

func TestPrimOpNode_SubgroupActiveMask_RejectsOperands(t *testing.T) {
	a := NewArena()
	mask := a.PrimOpNode(OpSubgroupActiveMask, nil)
	if Unqualify(mask.Types.Items[0]) != a.MaskType() {
		t.Errorf("OpSubgroupActiveMask result type = %v, want Mask", mask.Types.Items[0])
	}
	defer func() {
		if recover() == nil {
			t.Errorf("OpSubgroupActiveMask with an operand did not panic")
		}
	}()
	a.PrimOpNode(OpSubgroupActiveMask, []*Node{a.IntLiteralNode(1, 32)})
}

func TestCallNode_ArgCountMismatchPanics(t *testing.T) {
	a := NewArena()
	param := a.NewVariable("x", a.Uniform(a.IntType(32)))
	fn := a.NewFunctionHeader(FnAttrs{}, "f", []*Node{param}, nil)
	defer func() {
		if recover() == nil {
			t.Errorf("CallNode with wrong argument count did not panic")
		}
	}()
	a.CallNode(fn, nil)
}

func TestCallNode_ResultsAreVarying(t *testing.T) {
	a := NewArena()
	i32 := a.IntType(32)
	fn := a.NewFunctionHeader(FnAttrs{}, "f", nil, []*Node{i32})
	call := a.CallNode(fn, nil)
	if IsUniform(call.Types.Items[0]) {
		t.Errorf("CallNode result was uniform, want varying (a call may diverge)")
	}
}

func TestIfNode_RequiresBoolCond(t *testing.T) {
	a := NewArena()
	block := a.BlockNode(nil, a.UnreachableNode())
	defer func() {
		if recover() == nil {
			t.Errorf("IfNode with a non-bool condition did not panic")
		}
	}()
	a.IfNode(a.IntLiteralNode(1, 32), nil, block, nil)
}

func TestLoopNode_ParamArgLengthMismatchPanics(t *testing.T) {
	a := NewArena()
	block := a.BlockNode(nil, a.UnreachableNode())
	param := a.NewVariable("i", a.Uniform(a.IntType(32)))
	defer func() {
		if recover() == nil {
			t.Errorf("LoopNode with mismatched params/args did not panic")
		}
	}()
	a.LoopNode([]*Node{param}, nil, nil, block)
}

func TestLetNode_MintsOneVariablePerProducedType(t *testing.T) {
	a := NewArena()
	add := a.PrimOpNode(OpAdd, []*Node{a.IntLiteralNode(1, 32), a.IntLiteralNode(2, 32)})
	let, vars := a.LetNode(add, false)
	if len(vars) != 1 {
		t.Fatalf("LetNode minted %d variables, want 1", len(vars))
	}
	if let.Tag != TagLet {
		t.Errorf("LetNode tag = %v, want TagLet", let.Tag)
	}
	if vars[0].Tag != TagVariable {
		t.Errorf("LetNode's minted binding was not a Variable node")
	}
}

func TestLetNode_RejectsInstructionWithNoTypes(t *testing.T) {
	a := NewArena()
	defer func() {
		if recover() == nil {
			t.Errorf("LetNode on an instruction with nil Types did not panic")
		}
	}()
	a.LetNode(&Node{Tag: TagPrimOp}, false)
}
