// Package rewrite provides a generic arena-to-arena structural copy
// framework for ir.Node graphs. Every pass (bind, infer,
// lower_tailcalls) is a Rewriter with one or more tag-specific override hooks; nodes it does
// not override fall through to Default, which recreates the node's
// identity in the destination arena by recursively rewriting its
// children (original_source/src/passes/bind.c's recreate_node_identity).
//
// Declarations (Function, Constant, GlobalVariable) are rewritten in two
// phases so that self- and mutually-recursive references resolve without
// exposing a cycle to an override hook: a header is built and registered
// as processed before its body is visited, mirroring
// original_source/src/passes/bind.c's
// recreate_decl_header_identity/recreate_decl_body_identity split.
package rewrite
