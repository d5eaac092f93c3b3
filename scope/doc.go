// Package scope computes, for a given entry function, the dominator
// tree over the continuations (Function nodes whose IsContinuation
// attribute is set) it can reach through Branch/Join/Callc terminators.
// The SPIR-V emitter uses it to lay out the continuations a function
// reaches directly as basic blocks of that function, entry block first.
//
// naga's Statement tree is already structurally scoped, so it has no
// equivalent of this analysis; shady's continuations are plain
// functions connected by arbitrary jumps, so the dominator tree has to
// be reconstructed from the jump graph instead of being given by nesting.
package scope
