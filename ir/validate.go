package ir

import "fmt"

// ValidationError is one problem found by Validate, distinct from the
// ErrMalformedNode panics a Node constructor raises: these are found by
// walking an already-built module for whole-module properties no single
// constructor call can see, so they are collected and reported rather
// than panicking mid-build. Function is the
// enclosing declaration's name, empty for module-level problems.
type ValidationError struct {
	Function string
	Message  string
}

func (e ValidationError) Error() string {
	if e.Function != "" {
		return fmt.Sprintf("in function %s: %s", e.Function, e.Message)
	}
	return e.Message
}

// validator accumulates ValidationErrors while walking a Root's
// declarations, following the naga.Validator shape (ir/validate.go in
// the teacher): one struct holding the errors slice plus whatever
// lookup tables the checks need, with one validateX method per concern.
type validator struct {
	declared map[*Node]bool // top-level Function nodes present in Root.Declarations
	errors   []ValidationError
}

// Validate runs structural self-checks over root that construction-time
// panics in the ir package cannot catch, because they depend on the
// whole module rather than one constructor's immediate arguments:
// branch/join/callc targets that point at a continuation not
// reachable from any declared top-level function, and entry points
// that carry attributes reserved for continuations. It does not
// re-check anything a Node constructor already enforces (e.g. that a
// Branch target is itself a continuation Function) since interning
// makes that unconditional.
//
// Validate never panics; it returns the collected errors (nil if none)
// alongside a hard error only when root itself is not a well-formed
// Root node.
func Validate(root *Node) ([]ValidationError, error) {
	if root.Tag != TagRoot {
		return nil, errf(ErrMalformedNode, "Validate requires a Root node, got %v", root.Tag)
	}
	decls := root.Payload.(Root).Declarations.Items
	v := &validator{declared: make(map[*Node]bool, len(decls))}
	for _, d := range decls {
		if d.Tag == TagFunction {
			v.declared[d] = true
		}
	}
	for _, d := range decls {
		if d.Tag != TagFunction {
			continue
		}
		v.validateFunction(d)
	}
	return v.errors, nil
}

func (v *validator) fail(fn *Node, format string, args ...interface{}) {
	name := ""
	if fn != nil {
		name = *fn.Payload.(Function).Name
	}
	v.errors = append(v.errors, ValidationError{Function: name, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) validateFunction(decl *Node) {
	fn := decl.Payload.(Function)
	if fn.Attrs.IsEntryPoint && fn.Attrs.IsContinuation {
		v.fail(decl, "entry point cannot also be a continuation")
	}
	if fn.Attrs.IsEntryPoint && len(fn.Returns.Items) != 0 {
		v.fail(decl, "entry point must not declare return values")
	}
	if fn.Block == nil {
		v.fail(decl, "declaration has no body")
		return
	}
	v.checkReachable(decl, decl, fn.Block)
}

// checkReachable confirms every continuation decl's body transfers
// control to is itself a declared top-level Function, the property
// lower_tailcalls and the SPIR-V emitter both assume (a dangling
// target would surface there as a panic instead of a reported error).
func (v *validator) checkReachable(decl, fn *Node, block *Node) {
	var instrs []*Node
	var term *Node
	switch block.Tag {
	case TagBlock:
		b := block.Payload.(Block)
		instrs, term = b.Instructions.Items, b.Terminator
	case TagParsedBlock:
		b := block.Payload.(ParsedBlock)
		instrs, term = b.Instructions.Items, b.Terminator
	default:
		v.fail(decl, "%v is not a block", block.Tag)
		return
	}
	for _, inst := range instrs {
		v.checkInstruction(decl, inst)
	}
	if term == nil {
		v.fail(decl, "block has no terminator")
		return
	}
	v.checkTerminator(decl, term)
}

func (v *validator) checkInstruction(decl, n *Node) {
	switch n.Tag {
	case TagLet:
		v.checkInstruction(decl, n.Payload.(Let).Instruction)
	case TagIf:
		ifp := n.Payload.(If)
		v.checkReachable(decl, decl, ifp.IfTrue)
		if ifp.IfFalse != nil {
			v.checkReachable(decl, decl, ifp.IfFalse)
		}
	case TagMatch:
		m := n.Payload.(Match)
		for _, c := range m.Cases.Items {
			v.checkReachable(decl, decl, c)
		}
		v.checkReachable(decl, decl, m.Default)
	case TagLoop:
		v.checkReachable(decl, decl, n.Payload.(Loop).Body)
	}
}

func (v *validator) checkTerminator(decl, n *Node) {
	switch n.Tag {
	case TagBranch:
		b := n.Payload.(Branch)
		switch b.Kind {
		case BranchJump:
			v.requireDeclared(decl, b.Target)
		case BranchIfElse:
			v.requireDeclared(decl, b.TrueTarget)
			v.requireDeclared(decl, b.FalseTarget)
		case BranchSwitch:
			for _, t := range b.Targets.Items {
				v.requireDeclared(decl, t)
			}
			v.requireDeclared(decl, b.Default)
		}
	case TagJoin:
		j := n.Payload.(Join)
		if !j.IsIndirect {
			v.requireDeclared(decl, j.Target)
		}
	case TagCallc:
		c := n.Payload.(Callc)
		v.requireDeclared(decl, c.ReturnCont)
	}
}

func (v *validator) requireDeclared(decl, target *Node) {
	if !v.declared[target] {
		name := "<anonymous>"
		if target.Tag == TagFunction {
			name = *target.Payload.(Function).Name
		}
		v.fail(decl, "control transfers to continuation %q which is not in the module's declarations", name)
	}
}
