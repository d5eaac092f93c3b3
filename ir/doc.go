// Package ir defines shady's hash-consed, arena-allocated intermediate
// representation: a single tagged-variant Node type covering types,
// values, instructions, terminators, declarations and the module root,
// built through smart constructors that infer each node's type and
// intern the result.
//
// Every Node is owned by an Arena (node.go in this package, which wraps
// the low-level arena.Arena with the node/node-list interning that
// package does not know how to key). Two nodes built from structurally
// equal inputs in the same Arena are the same *Node: reference equality
// is structural equality for any arena-allocated node.
package ir
