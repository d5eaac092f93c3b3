package passes

import (
	"fmt"

	"github.com/gpuir/shady/ir"
	"github.com/gpuir/shady/rewrite"
)

// Bind resolves every top-level Unbound reference left by the front end.
// The front end resolves local names (let bindings, function and loop
// parameters) immediately as it parses them, the way
// original_source/src/slim/parser.c does — it never builds an AST to
// resolve names against later. Unbound only survives parsing for a
// reference to a declaration that appears later in the source (a
// function calling a sibling defined further down the file, or a
// global's initializer naming another global). Bind exists to resolve
// exactly that case, grounded on original_source/src/passes/bind.c's
// two-phase header-then-body declaration walk.
type Bind struct {
	globals map[string]*ir.Node
}

// RunBind resolves root's forward references into a fresh ir.Arena.
// root's declarations may contain ParsedBlock function bodies or Block
// bodies (the parser's output, or an already-bound module); both are
// accepted so Bind can run on output from a parser or from another Bind
// pass (idempotent on an already-bound module).
func RunBind(src, dst *ir.Arena, root *ir.Node) (out *ir.Node, err error) {
	defer recoverStageError(&err)

	b := &Bind{globals: make(map[string]*ir.Node)}
	rw := rewrite.New(src, dst)
	rw.RewriteNode = b.hook

	decls := root.Payload.(ir.Root).Declarations.Items
	headers := make([]*ir.Node, len(decls))

	for i, d := range decls {
		switch d.Tag {
		case ir.TagFunction:
			headers[i] = b.buildFunctionHeader(rw, d)
		case ir.TagConstant:
			p := d.Payload.(ir.Constant)
			value := rw.Rewrite(p.Value)
			fresh := dst.ConstantNode(*p.Name, value)
			rw.RegisterProcessed(d, fresh)
			b.globals[*p.Name] = fresh
			headers[i] = fresh
		case ir.TagGlobalVariable:
			headers[i] = b.buildGlobal(rw, d)
		default:
			panic(fmt.Sprintf("bind: unexpected top-level declaration tag %v", d.Tag))
		}
	}

	for i, d := range decls {
		if d.Tag != ir.TagFunction {
			continue
		}
		p := d.Payload.(ir.Function)
		if p.Block == nil {
			continue
		}
		body := rw.Rewrite(p.Block)
		ir.SetBody(headers[i], body)
	}

	return dst.RootNode(headers), nil
}

func (b *Bind) buildFunctionHeader(rw *rewrite.Rewriter, d *ir.Node) *ir.Node {
	p := d.Payload.(ir.Function)
	params := make([]*ir.Node, len(p.Params.Items))
	for i, param := range p.Params.Items {
		v := param.Payload.(ir.Variable)
		qtype := rw.Rewrite(param.Type)
		fresh := rw.Dst.NewVariable(*v.Name, qtype)
		rw.RegisterProcessed(param, fresh)
		params[i] = fresh
	}
	returns := make([]*ir.Node, len(p.Returns.Items))
	for i, ret := range p.Returns.Items {
		returns[i] = rw.Rewrite(ret)
	}
	header := rw.Dst.NewFunctionHeader(p.Attrs, *p.Name, params, returns)
	rw.RegisterProcessed(d, header)
	b.globals[*p.Name] = header
	return header
}

func (b *Bind) buildGlobal(rw *rewrite.Rewriter, d *ir.Node) *ir.Node {
	p := d.Payload.(ir.GlobalVariable)
	pointee := ir.Unqualify(d.Type).Payload.(ir.Ptr).Pointee
	valueType := rw.Rewrite(pointee)
	var init *ir.Node
	if p.Init != nil {
		init = rw.Rewrite(p.Init)
	}
	fresh := rw.Dst.GlobalVariableNode(*p.Name, valueType, p.Space, init)
	rw.RegisterProcessed(d, fresh)
	b.globals[*p.Name] = fresh
	return fresh
}

func (b *Bind) hook(rw *rewrite.Rewriter, n *ir.Node) *ir.Node {
	switch n.Tag {
	case ir.TagUnbound:
		name := *n.Payload.(ir.Unbound).Name
		if node, ok := b.globals[name]; ok {
			return node
		}
		panic(&ir.Error{Kind: ir.ErrUnresolved, Message: fmt.Sprintf("undeclared name %q", name)})
	case ir.TagParsedBlock:
		p := n.Payload.(ir.ParsedBlock)
		instrs := make([]*ir.Node, len(p.Instructions.Items))
		for i, inst := range p.Instructions.Items {
			instrs[i] = rw.Rewrite(inst)
		}
		term := rw.Rewrite(p.Terminator)
		return rw.Dst.BlockNode(instrs, term)
	default:
		return rw.Default(n)
	}
}
