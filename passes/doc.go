// Package passes implements the three IR-to-IR transformations every
// module runs through in order: Bind (top-level name resolution),
// Infer (untyped-literal narrowing), and LowerTailcalls (the signature
// pass that rewrites every entry point and every indirectly reached
// continuation into a parameterless leaf plus a dispatcher loop, since
// SPIR-V has no indirect branch).
//
// Each pass builds a fresh destination ir.Arena via rewrite.Rewriter and
// returns a (*ir.Node, error) rather than panicking past its own
// boundary: ir and rewrite constructors panic with *ir.Error on a
// malformed or ill-typed graph (spec's construction-time invariant
// checks), and each Run function here recovers that panic into a
// regular error, the one place in the pipeline where a panic is
// expected to cross a function boundary (SPEC_FULL.md §3.7).
package passes
