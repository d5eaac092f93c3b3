package scope

import "github.com/gpuir/shady/ir"

// CFNode is one continuation's place in the control-flow graph built
// over a function and every continuation reachable from it.
type CFNode struct {
	Fn           *ir.Node
	Successors   []*CFNode
	Predecessors []*CFNode
	IDom         *CFNode // nil for the entry node
}

// Scope is the reachable continuation graph for one entry function,
// plus its dominator tree.
type Scope struct {
	Entry *CFNode
	Nodes map[*ir.Node]*CFNode
	// Order is reachable nodes in discovery (depth-first preorder) order;
	// the dominator fixpoint iterates over a separately computed reverse
	// postorder.
	Order []*CFNode
}

// Dominates reports whether a dominates b (reflexively: a dominates itself).
func (s *Scope) Dominates(a, b *CFNode) bool {
	for n := b; n != nil; n = n.IDom {
		if n == a {
			return true
		}
	}
	return false
}

// Build walks entry's body and every continuation reachable from it
// through Branch/Join/Callc terminators, then computes the dominator
// tree via the standard iterative fixpoint over a reverse-postorder
// traversal (Cooper, Harvey & Kennedy) — practical here since a shader
// function's continuation count is small.
func Build(entry *ir.Node) *Scope {
	s := &Scope{Nodes: make(map[*ir.Node]*CFNode)}
	s.Entry = s.discover(entry)
	s.computeDominators()
	return s
}

func (s *Scope) discover(fn *ir.Node) *CFNode {
	if existing, ok := s.Nodes[fn]; ok {
		return existing
	}
	node := &CFNode{Fn: fn}
	s.Nodes[fn] = node
	s.Order = append(s.Order, node)

	for _, target := range successors(fn) {
		succ := s.discover(target)
		node.Successors = append(node.Successors, succ)
		succ.Predecessors = append(succ.Predecessors, node)
	}
	return node
}

// successors returns the continuation Functions fn's body can transfer
// control to directly. Nested If/Match/Loop instructions terminate their
// own sub-blocks with MergeConstruct, which never crosses a function
// boundary, so only the continuation's own Block.Terminator matters here.
func successors(fn *ir.Node) []*ir.Node {
	body := fn.Payload.(ir.Function).Block
	if body == nil {
		return nil
	}
	term := body.Payload.(ir.Block).Terminator
	switch term.Tag {
	case ir.TagReturn, ir.TagUnreachable:
		return nil
	case ir.TagBranch:
		b := term.Payload.(ir.Branch)
		switch b.Kind {
		case ir.BranchJump:
			return []*ir.Node{b.Target}
		case ir.BranchIfElse:
			return []*ir.Node{b.TrueTarget, b.FalseTarget}
		case ir.BranchSwitch:
			out := append([]*ir.Node{}, b.Targets.Items...)
			return append(out, b.Default)
		default: // BranchTailcall: target is resolved only at runtime
			return nil
		}
	case ir.TagJoin:
		j := term.Payload.(ir.Join)
		if j.IsIndirect || j.Target == nil {
			return nil
		}
		return []*ir.Node{j.Target}
	case ir.TagCallc:
		c := term.Payload.(ir.Callc)
		return []*ir.Node{c.ReturnCont}
	default:
		return nil
	}
}

// computeDominators runs the standard worklist fixpoint: the entry node
// dominates only itself, and every other node's immediate dominator is
// the intersection of its predecessors' dominator chains, iterated to a
// fixpoint over reverse postorder.
func (s *Scope) computeDominators() {
	order := reversePostorder(s.Entry)
	index := make(map[*CFNode]int, len(order))
	for i, n := range order {
		index[n] = i
	}

	s.Entry.IDom = s.Entry
	changed := true
	for changed {
		changed = false
		for _, n := range order {
			if n == s.Entry {
				continue
			}
			var newIDom *CFNode
			for _, pred := range n.Predecessors {
				if pred.IDom == nil {
					continue
				}
				if newIDom == nil {
					newIDom = pred
					continue
				}
				newIDom = intersect(newIDom, pred, index)
			}
			if newIDom != nil && n.IDom != newIDom {
				n.IDom = newIDom
				changed = true
			}
		}
	}
	s.Entry.IDom = nil
}

func intersect(a, b *CFNode, index map[*CFNode]int) *CFNode {
	for a != b {
		for index[a] > index[b] {
			a = a.IDom
		}
		for index[b] > index[a] {
			b = b.IDom
		}
	}
	return a
}

func reversePostorder(entry *CFNode) []*CFNode {
	var post []*CFNode
	visited := make(map[*CFNode]bool)
	var visit func(*CFNode)
	visit = func(n *CFNode) {
		if visited[n] {
			return
		}
		visited[n] = true
		for _, succ := range n.Successors {
			visit(succ)
		}
		post = append(post, n)
	}
	visit(entry)
	// reverse
	for i, j := 0, len(post)-1; i < j; i, j = i+1, j-1 {
		post[i], post[j] = post[j], post[i]
	}
	return post
}
