package ir

import "testing"

func TestIntLiteralNode_Dedup(t *testing.T) {
	a := NewArena()
	l1 := a.IntLiteralNode(7, 32)
	l2 := a.IntLiteralNode(7, 32)
	if l1 != l2 {
		t.Errorf("IntLiteralNode(7, 32) returned distinct nodes")
	}
	l3 := a.IntLiteralNode(7, 64)
	if l1 == l3 {
		t.Errorf("IntLiteralNode did not distinguish width")
	}
}

func TestIntLiteralNode_TypeIsUniform(t *testing.T) {
	a := NewArena()
	lit := a.IntLiteralNode(1, 32)
	if !IsUniform(lit.Type) {
		t.Errorf("IntLiteralNode's type was not uniform")
	}
	if Unqualify(lit.Type) != a.IntType(32) {
		t.Errorf("IntLiteralNode's type did not unqualify to IntType(32)")
	}
}

func TestTrueFalse_AreDistinctSingletons(t *testing.T) {
	a := NewArena()
	if a.True() != a.True() {
		t.Errorf("True() returned distinct nodes")
	}
	if a.False() != a.False() {
		t.Errorf("False() returned distinct nodes")
	}
	if a.True() == a.False() {
		t.Errorf("True() and False() interned to the same node")
	}
}

func TestUntypedNumberNode_ParsesIntVsFloat(t *testing.T) {
	a := NewArena()
	intNode := a.UntypedNumberNode("42")
	floatNode := a.UntypedNumberNode("4.2")

	intPayload := intNode.Payload.(UntypedNumber)
	if intPayload.IsFloat || intPayload.IntValue != 42 {
		t.Errorf("UntypedNumberNode(\"42\") = %+v, want IsFloat=false IntValue=42", intPayload)
	}
	floatPayload := floatNode.Payload.(UntypedNumber)
	if !floatPayload.IsFloat || floatPayload.FloatValue != 4.2 {
		t.Errorf("UntypedNumberNode(\"4.2\") = %+v, want IsFloat=true FloatValue=4.2", floatPayload)
	}
	if intNode.Type != nil {
		t.Errorf("UntypedNumberNode has a Type before Infer narrows it")
	}
}

func TestNewVariable_NeverDedups(t *testing.T) {
	a := NewArena()
	qtype := a.Uniform(a.IntType(32))
	v1 := a.NewVariable("x", qtype)
	v2 := a.NewVariable("x", qtype)
	if v1 == v2 {
		t.Errorf("NewVariable deduped two distinct bindings of the same name/type")
	}
	p1 := v1.Payload.(Variable)
	p2 := v2.Payload.(Variable)
	if p1.ID == p2.ID {
		t.Errorf("NewVariable issued the same ID twice: %d", p1.ID)
	}
}

func TestUnboundNode_DedupByName(t *testing.T) {
	a := NewArena()
	u1 := a.UnboundNode("foo")
	u2 := a.UnboundNode("foo")
	if u1 != u2 {
		t.Errorf("UnboundNode(\"foo\") returned distinct nodes")
	}
	u3 := a.UnboundNode("bar")
	if u1 == u3 {
		t.Errorf("UnboundNode did not distinguish names")
	}
}

func TestFnAddrNode_RequiresFunction(t *testing.T) {
	a := NewArena()
	defer func() {
		if recover() == nil {
			t.Errorf("FnAddrNode on a non-Function node did not panic")
		}
	}()
	a.FnAddrNode(a.IntType(32))
}

func TestConstantNode_RejectsTypeValue(t *testing.T) {
	a := NewArena()
	defer func() {
		if recover() == nil {
			t.Errorf("ConstantNode with a type-node value did not panic")
		}
	}()
	a.ConstantNode("c", a.IntType(32))
}

func TestConstantNode_TypeMatchesValue(t *testing.T) {
	a := NewArena()
	lit := a.IntLiteralNode(5, 32)
	c := a.ConstantNode("pi", lit)
	if Unqualify(c.Type) != a.IntType(32) {
		t.Errorf("ConstantNode's type did not follow its value's type")
	}
	if !IsUniform(c.Type) {
		t.Errorf("ConstantNode's type was not uniform")
	}
}

func TestGlobalVariableNode_InputSpaceIsVarying(t *testing.T) {
	a := NewArena()
	g := a.GlobalVariableNode("in_pos", a.FloatType(32), SpaceInput, nil)
	if IsUniform(g.Type) {
		t.Errorf("GlobalVariableNode in SpaceInput produced a uniform pointer")
	}
}

func TestGlobalVariableNode_OtherSpacesAreUniform(t *testing.T) {
	a := NewArena()
	g := a.GlobalVariableNode("buf", a.FloatType(32), SpaceGlobalLogical, nil)
	if !IsUniform(g.Type) {
		t.Errorf("GlobalVariableNode in SpaceGlobalLogical produced a varying pointer")
	}
}
