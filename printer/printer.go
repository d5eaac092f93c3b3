package printer

import (
	"fmt"
	"strings"

	"github.com/gpuir/shady/ir"
)

// Options controls how Print renders a module.
type Options struct {
	// ShowAddresses annotates every node with its raw pointer identity,
	// the "-debug" mode original_source/src/print.c offers for telling
	// apart two structurally-equal-looking nodes that are nonetheless
	// distinct locations in the graph (e.g. two Blocks with identical
	// contents at different points in the control-flow graph).
	ShowAddresses bool
}

// Printer renders one module's worth of ir.Node trees to text.
type Printer struct {
	opts   Options
	out    strings.Builder
	indent int

	varNames map[*ir.Node]string
	fnNames  map[*ir.Node]string
}

// Print renders root (an ir.Root node) as text.
func Print(root *ir.Node, opts Options) string {
	p := &Printer{
		opts:     opts,
		varNames: make(map[*ir.Node]string),
		fnNames:  make(map[*ir.Node]string),
	}
	p.writeRoot(root)
	return p.out.String()
}

func (p *Printer) line(format string, args ...interface{}) {
	p.out.WriteString(strings.Repeat("  ", p.indent))
	fmt.Fprintf(&p.out, format, args...)
	p.out.WriteByte('\n')
}

func (p *Printer) addr(n *ir.Node) string {
	if !p.opts.ShowAddresses {
		return ""
	}
	return fmt.Sprintf(" @%p", n)
}

func (p *Printer) writeRoot(root *ir.Node) {
	decls := root.Payload.(ir.Root).Declarations.Items
	for _, d := range decls {
		switch d.Tag {
		case ir.TagConstant:
			p.writeConstant(d)
		case ir.TagGlobalVariable:
			p.writeGlobal(d)
		case ir.TagFunction:
			p.writeFunction(d)
		}
		p.out.WriteByte('\n')
	}
}

func (p *Printer) writeConstant(n *ir.Node) {
	c := n.Payload.(ir.Constant)
	p.line("const %s = %s%s", *c.Name, p.value(c.Value), p.addr(n))
}

func (p *Printer) writeGlobal(n *ir.Node) {
	g := n.Payload.(ir.GlobalVariable)
	pointee := ir.Unqualify(n.Type).Payload.(ir.Ptr).Pointee
	init := ""
	if g.Init != nil {
		init = " = " + p.value(g.Init)
	}
	p.line("var<%s> %s: %s%s%s", spaceName(g.Space), *g.Name, p.typeName(pointee), init, p.addr(n))
}

func (p *Printer) writeFunction(n *ir.Node) {
	fn := n.Payload.(ir.Function)
	p.fnNames[n] = *fn.Name

	attrs := ""
	if fn.Attrs.IsEntryPoint {
		attrs = fmt.Sprintf("@entry(%s) ", stageName(fn.Attrs.Stage))
	} else if fn.Attrs.IsContinuation {
		attrs = "@continuation "
	}

	params := make([]string, len(fn.Params.Items))
	for i, param := range fn.Params.Items {
		params[i] = fmt.Sprintf("%s: %s", p.varName(param), p.typeName(ir.Unqualify(param.Type)))
	}
	returns := make([]string, len(fn.Returns.Items))
	for i, r := range fn.Returns.Items {
		returns[i] = p.typeName(r)
	}
	sig := fmt.Sprintf("%sfn %s(%s)", attrs, *fn.Name, strings.Join(params, ", "))
	if len(returns) > 0 {
		sig += " -> (" + strings.Join(returns, ", ") + ")"
	}
	p.line("%s%s {", sig, p.addr(n))
	p.indent++
	if fn.Block != nil {
		p.writeBlockBody(fn.Block)
	} else {
		p.line("<no body>")
	}
	p.indent--
	p.line("}")
}

func (p *Printer) writeBlockBody(n *ir.Node) {
	var instrs []*ir.Node
	var term *ir.Node
	switch n.Tag {
	case ir.TagBlock:
		b := n.Payload.(ir.Block)
		instrs, term = b.Instructions.Items, b.Terminator
	case ir.TagParsedBlock:
		b := n.Payload.(ir.ParsedBlock)
		instrs, term = b.Instructions.Items, b.Terminator
	default:
		p.line("<unexpected block tag %v>", n.Tag)
		return
	}
	for _, inst := range instrs {
		p.writeInstruction(inst)
	}
	if term != nil {
		p.writeTerminator(term)
	}
}

func (p *Printer) writeInstruction(n *ir.Node) {
	switch n.Tag {
	case ir.TagLet:
		l := n.Payload.(ir.Let)
		names := make([]string, len(l.Variables.Items))
		for i, v := range l.Variables.Items {
			names[i] = p.varName(v)
		}
		kw := "let"
		if l.IsMutable {
			kw = "var"
		}
		p.line("%s %s = %s%s", kw, strings.Join(names, ", "), p.instructionRHS(l.Instruction), p.addr(n))
	default:
		p.line("%s%s", p.instructionRHS(n), p.addr(n))
	}
}

func (p *Printer) instructionRHS(n *ir.Node) string {
	switch n.Tag {
	case ir.TagPrimOp:
		po := n.Payload.(ir.PrimOp)
		args := make([]string, len(po.Operands.Items))
		for i, o := range po.Operands.Items {
			args[i] = p.value(o)
		}
		return fmt.Sprintf("%s(%s)", po.Op, strings.Join(args, ", "))
	case ir.TagCall:
		c := n.Payload.(ir.Call)
		args := make([]string, len(c.Args.Items))
		for i, a := range c.Args.Items {
			args[i] = p.value(a)
		}
		return fmt.Sprintf("call %s(%s)", p.calleeName(c.Callee), strings.Join(args, ", "))
	case ir.TagIf:
		ifp := n.Payload.(ir.If)
		p.line("if %s {", p.value(ifp.Cond))
		p.indent++
		p.writeBlockBody(ifp.IfTrue)
		p.indent--
		if ifp.IfFalse != nil {
			p.line("} else {")
			p.indent++
			p.writeBlockBody(ifp.IfFalse)
			p.indent--
		}
		p.line("}")
		return "<if above>"
	case ir.TagMatch:
		m := n.Payload.(ir.Match)
		p.line("match %s {", p.value(m.Inspect))
		p.indent++
		for i, lit := range m.Literals.Items {
			p.line("case %s:", p.value(lit))
			p.indent++
			p.writeBlockBody(m.Cases.Items[i])
			p.indent--
		}
		p.line("default:")
		p.indent++
		p.writeBlockBody(m.Default)
		p.indent--
		p.indent--
		p.line("}")
		return "<match above>"
	case ir.TagLoop:
		l := n.Payload.(ir.Loop)
		params := make([]string, len(l.Params.Items))
		for i, pr := range l.Params.Items {
			params[i] = fmt.Sprintf("%s = %s", p.varName(pr), p.value(l.InitialArgs.Items[i]))
		}
		p.line("loop (%s) {", strings.Join(params, ", "))
		p.indent++
		p.writeBlockBody(l.Body)
		p.indent--
		p.line("}")
		return "<loop above>"
	default:
		return p.value(n)
	}
}

func (p *Printer) calleeName(n *ir.Node) string {
	if n.Tag == ir.TagFunction {
		if name, ok := p.fnNames[n]; ok {
			return name
		}
		return *n.Payload.(ir.Function).Name
	}
	return p.value(n)
}

func (p *Printer) writeTerminator(n *ir.Node) {
	switch n.Tag {
	case ir.TagReturn:
		r := n.Payload.(ir.Return)
		vals := make([]string, len(r.Values.Items))
		for i, v := range r.Values.Items {
			vals[i] = p.value(v)
		}
		p.line("return %s%s", strings.Join(vals, ", "), p.addr(n))
	case ir.TagBranch:
		p.writeBranch(n)
	case ir.TagJoin:
		j := n.Payload.(ir.Join)
		args := p.values(j.Args.Items)
		if j.IsIndirect {
			p.line("join indirect(%s)%s", strings.Join(args, ", "), p.addr(n))
		} else {
			p.line("join %s(%s)%s", p.calleeName(j.Target), strings.Join(args, ", "), p.addr(n))
		}
	case ir.TagCallc:
		c := n.Payload.(ir.Callc)
		args := p.values(c.Args.Items)
		p.line("callc %s(%s) -> %s%s", p.calleeName(c.Callee), strings.Join(args, ", "), p.calleeName(c.ReturnCont), p.addr(n))
	case ir.TagMergeConstruct:
		m := n.Payload.(ir.MergeConstruct)
		args := p.values(m.Args.Items)
		p.line("%s(%s)%s", mergeKindName(m.Kind), strings.Join(args, ", "), p.addr(n))
	case ir.TagUnreachable:
		p.line("unreachable%s", p.addr(n))
	default:
		p.line("<unknown terminator %v>", n.Tag)
	}
}

func (p *Printer) writeBranch(n *ir.Node) {
	b := n.Payload.(ir.Branch)
	args := p.values(b.Args.Items)
	switch b.Kind {
	case ir.BranchJump:
		p.line("jump %s(%s)%s", p.calleeName(b.Target), strings.Join(args, ", "), p.addr(n))
	case ir.BranchIfElse:
		p.line("branch %s ? %s(%s) : %s(%s)%s", p.value(b.Cond), p.calleeName(b.TrueTarget), strings.Join(args, ", "), p.calleeName(b.FalseTarget), strings.Join(args, ", "), p.addr(n))
	case ir.BranchSwitch:
		p.line("switch %s {%s", p.value(b.Inspect), p.addr(n))
		p.indent++
		for i, lit := range b.Literals.Items {
			p.line("case %s: jump %s(%s)", p.value(lit), p.calleeName(b.Targets.Items[i]), strings.Join(args, ", "))
		}
		p.line("default: jump %s(%s)", p.calleeName(b.Default), strings.Join(args, ", "))
		p.indent--
		p.line("}")
	case ir.BranchTailcall:
		p.line("tailcall %s(%s)%s", p.value(b.Callee), strings.Join(args, ", "), p.addr(n))
	}
}

func (p *Printer) values(ns []*ir.Node) []string {
	out := make([]string, len(ns))
	for i, n := range ns {
		out[i] = p.value(n)
	}
	return out
}

func (p *Printer) value(n *ir.Node) string {
	if n == nil {
		return "<nil>"
	}
	switch n.Payload.(type) {
	case ir.IntLiteral:
		lit := n.Payload.(ir.IntLiteral)
		return fmt.Sprintf("%di%d", lit.Value, lit.Width)
	case ir.FloatLiteral:
		lit := n.Payload.(ir.FloatLiteral)
		return fmt.Sprintf("%gf%d", lit.Value, lit.Width)
	case ir.UntypedNumber:
		un := n.Payload.(ir.UntypedNumber)
		if un.IsFloat {
			return fmt.Sprintf("%g<untyped>", un.FloatValue)
		}
		return fmt.Sprintf("%d<untyped>", un.IntValue)
	case ir.Variable:
		return p.varName(n)
	case ir.Unbound:
		return "?" + *n.Payload.(ir.Unbound).Name
	case ir.FnAddr:
		return "&" + p.calleeName(n.Payload.(ir.FnAddr).Fn)
	}
	switch n.Tag {
	case ir.TagTrue:
		return "true"
	case ir.TagFalse:
		return "false"
	case ir.TagFunction:
		return p.calleeName(n)
	default:
		return p.instructionRHS(n)
	}
}

func (p *Printer) varName(n *ir.Node) string {
	if name, ok := p.varNames[n]; ok {
		return name
	}
	v := n.Payload.(ir.Variable)
	name := fmt.Sprintf("%s_%d", *v.Name, v.ID)
	p.varNames[n] = name
	return name
}

func (p *Printer) typeName(n *ir.Node) string {
	if n == nil {
		return "<notype>"
	}
	switch t := n.Payload.(type) {
	case ir.Int:
		return fmt.Sprintf("i%d", t.Width)
	case ir.Float:
		return fmt.Sprintf("f%d", t.Width)
	case nil:
		switch n.Tag {
		case ir.TagBool:
			return "bool"
		case ir.TagMask:
			return "mask"
		case ir.TagNoReturn:
			return "!"
		}
	case ir.Record:
		names := make([]string, len(t.MemberTypes.Items))
		for i, m := range t.MemberTypes.Items {
			names[i] = fmt.Sprintf("%s: %s", *t.MemberNames.Items[i], p.typeName(m))
		}
		return fmt.Sprintf("{%s}", strings.Join(names, ", "))
	case ir.Ptr:
		return fmt.Sprintf("ptr<%s, %s>", spaceName(t.Space), p.typeName(t.Pointee))
	case ir.Arr:
		if t.Size == nil {
			return fmt.Sprintf("[%s]", p.typeName(t.Elem))
		}
		return fmt.Sprintf("[%s; %d]", p.typeName(t.Elem), *t.Size)
	case ir.Fn:
		params := make([]string, len(t.Params.Items))
		for i, pt := range t.Params.Items {
			params[i] = p.typeName(pt)
		}
		returns := make([]string, len(t.Returns.Items))
		for i, rt := range t.Returns.Items {
			returns[i] = p.typeName(rt)
		}
		return fmt.Sprintf("fn(%s) -> (%s)", strings.Join(params, ", "), strings.Join(returns, ", "))
	case ir.Qualified:
		qual := "uniform"
		if !t.IsUniform {
			qual = "varying"
		}
		return fmt.Sprintf("%s %s", qual, p.typeName(t.Inner))
	}
	return n.Tag.String()
}

func spaceName(s ir.AddressSpace) string {
	return fmt.Sprintf("%v", s)
}

func stageName(s ir.ShaderStage) string {
	switch s {
	case ir.StageVertex:
		return "vertex"
	case ir.StageFragment:
		return "fragment"
	default:
		return "compute"
	}
}

func mergeKindName(k ir.MergeKind) string {
	switch k {
	case ir.MergeSelection:
		return "merge_selection"
	case ir.MergeContinue:
		return "merge_continue"
	default:
		return "merge_break"
	}
}
