package ir

import "testing"

func TestRootNode_RejectsNonDeclaration(t *testing.T) {
	a := NewArena()
	defer func() {
		if recover() == nil {
			t.Errorf("RootNode with a non-declaration node did not panic")
		}
	}()
	a.RootNode([]*Node{a.IntType(32)})
}

func TestFunctions_FiltersToFunctionDecls(t *testing.T) {
	a := NewArena()
	fn := a.NewFunctionHeader(FnAttrs{}, "f", nil, nil)
	SetBody(fn, a.BlockNode(nil, a.ReturnNode(nil)))
	lit := a.IntLiteralNode(1, 32)
	c := a.ConstantNode("c", lit)
	root := a.RootNode([]*Node{c, fn})

	fns := Functions(root)
	if len(fns) != 1 || fns[0] != fn {
		t.Errorf("Functions(root) = %v, want [%v]", fns, fn)
	}
}

func TestEntryPoints_FiltersByAttr(t *testing.T) {
	a := NewArena()
	entry := a.NewFunctionHeader(FnAttrs{IsEntryPoint: true, Stage: StageCompute}, "main", nil, nil)
	SetBody(entry, a.BlockNode(nil, a.ReturnNode(nil)))
	helper := a.NewFunctionHeader(FnAttrs{}, "helper", nil, nil)
	SetBody(helper, a.BlockNode(nil, a.ReturnNode(nil)))
	root := a.RootNode([]*Node{entry, helper})

	entries := EntryPoints(root)
	if len(entries) != 1 || entries[0] != entry {
		t.Errorf("EntryPoints(root) = %v, want [%v]", entries, entry)
	}
}

func TestSetBody_RequiresFunctionNode(t *testing.T) {
	a := NewArena()
	defer func() {
		if recover() == nil {
			t.Errorf("SetBody on a non-Function node did not panic")
		}
	}()
	SetBody(a.IntType(32), a.BlockNode(nil, a.UnreachableNode()))
}
