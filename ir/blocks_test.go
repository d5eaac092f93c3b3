package ir

import "testing"

func TestBlockNode_RejectsNonInstructionEntry(t *testing.T) {
	a := NewArena()
	defer func() {
		if recover() == nil {
			t.Errorf("BlockNode with a type node in its instruction list did not panic")
		}
	}()
	a.BlockNode([]*Node{a.IntType(32)}, a.UnreachableNode())
}

func TestBlockNode_RejectsNonTerminator(t *testing.T) {
	a := NewArena()
	add := a.PrimOpNode(OpAdd, []*Node{a.IntLiteralNode(1, 32), a.IntLiteralNode(2, 32)})
	defer func() {
		if recover() == nil {
			t.Errorf("BlockNode with a non-terminator tail did not panic")
		}
	}()
	a.BlockNode(nil, add)
}

func TestBlockNode_AcceptsLetAndTerminator(t *testing.T) {
	a := NewArena()
	add := a.PrimOpNode(OpAdd, []*Node{a.IntLiteralNode(1, 32), a.IntLiteralNode(2, 32)})
	let, vars := a.LetNode(add, false)
	ret := a.ReturnNode(vars)
	block := a.BlockNode([]*Node{let}, ret)
	b := block.Payload.(Block)
	if len(b.Instructions.Items) != 1 || b.Terminator != ret {
		t.Errorf("BlockNode did not preserve its instructions/terminator")
	}
}

func TestBlockNode_NeverInterned(t *testing.T) {
	a := NewArena()
	b1 := a.BlockNode(nil, a.UnreachableNode())
	b2 := a.BlockNode(nil, a.UnreachableNode())
	if b1 == b2 {
		t.Errorf("BlockNode interned two structurally identical but distinct control-flow locations")
	}
}

func TestParsedBlockNode_SkipsShapeChecks(t *testing.T) {
	a := NewArena()
	// A ParsedBlock may carry an Unbound terminator-adjacent reference; the
	// constructor must not reject it the way BlockNode would.
	pb := a.ParsedBlockNode([]*Node{a.UnboundNode("x")}, a.UnreachableNode())
	if pb.Tag != TagParsedBlock {
		t.Errorf("ParsedBlockNode tag = %v, want TagParsedBlock", pb.Tag)
	}
}
