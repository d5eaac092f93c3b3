package ir

import "testing"

func TestReturnNode_TypeIsNoReturn(t *testing.T) {
	a := NewArena()
	ret := a.ReturnNode(nil)
	if Unqualify(ret.Type) != a.NoReturnType() {
		t.Errorf("ReturnNode's type was not NoReturn")
	}
}

func TestJumpNode_RequiresContinuationTarget(t *testing.T) {
	a := NewArena()
	ordinary := a.NewFunctionHeader(FnAttrs{}, "f", nil, nil)
	defer func() {
		if recover() == nil {
			t.Errorf("JumpNode to a non-continuation function did not panic")
		}
	}()
	a.JumpNode(ordinary, nil)
}

func TestJumpNode_AcceptsContinuation(t *testing.T) {
	a := NewArena()
	cont := a.NewFunctionHeader(FnAttrs{IsContinuation: true}, "k", nil, nil)
	jump := a.JumpNode(cont, nil)
	branch := jump.Payload.(Branch)
	if branch.Kind != BranchJump || branch.Target != cont {
		t.Errorf("JumpNode did not record the continuation as its target")
	}
}

func TestIfElseBranchNode_RequiresBoolCond(t *testing.T) {
	a := NewArena()
	cont := a.NewFunctionHeader(FnAttrs{IsContinuation: true}, "k", nil, nil)
	defer func() {
		if recover() == nil {
			t.Errorf("IfElseBranchNode with a non-bool condition did not panic")
		}
	}()
	a.IfElseBranchNode(a.IntLiteralNode(1, 32), cont, cont, nil)
}

func TestSwitchBranchNode_LengthMismatchPanics(t *testing.T) {
	a := NewArena()
	cont := a.NewFunctionHeader(FnAttrs{IsContinuation: true}, "k", nil, nil)
	defer func() {
		if recover() == nil {
			t.Errorf("SwitchBranchNode with literals/targets length mismatch did not panic")
		}
	}()
	a.SwitchBranchNode(a.IntLiteralNode(0, 32), []*Node{a.IntLiteralNode(1, 32)}, nil, cont, nil)
}

func TestCallcNode_RequiresContinuationReturn(t *testing.T) {
	a := NewArena()
	callee := a.NewFunctionHeader(FnAttrs{}, "f", nil, nil)
	ordinary := a.NewFunctionHeader(FnAttrs{}, "g", nil, nil)
	defer func() {
		if recover() == nil {
			t.Errorf("CallcNode with a non-continuation return target did not panic")
		}
	}()
	a.CallcNode(callee, nil, ordinary)
}

func TestMergeConstructNodes_RecordTheirKind(t *testing.T) {
	a := NewArena()
	sel := a.SelectionMergeNode(nil).Payload.(MergeConstruct)
	cont := a.ContinueMergeNode(nil).Payload.(MergeConstruct)
	brk := a.BreakMergeNode(nil).Payload.(MergeConstruct)
	if sel.Kind != MergeSelection || cont.Kind != MergeContinue || brk.Kind != MergeBreak {
		t.Errorf("merge construct constructors did not record the expected kinds: %v %v %v", sel.Kind, cont.Kind, brk.Kind)
	}
}

func TestUnreachableNode_Singleton(t *testing.T) {
	a := NewArena()
	if a.UnreachableNode() != a.UnreachableNode() {
		t.Errorf("UnreachableNode returned distinct nodes")
	}
}

func TestIndirectJoinNode_MarksIndirect(t *testing.T) {
	a := NewArena()
	join := a.IndirectJoinNode(nil).Payload.(Join)
	if !join.IsIndirect || join.Target != nil {
		t.Errorf("IndirectJoinNode did not mark itself indirect with a nil target")
	}
}
