// Package arena implements the bump allocator and structural-sharing
// interner that the ir package builds hash-consed nodes on top of.
//
// An Arena owns a growable list of fixed-size memory blocks that nodes
// and interned strings/lists are bump-allocated from, plus two intern
// sets (strings, string lists) that guarantee reference-equality iff
// structural-equality for anything built through them; the node and
// node-list intern sets live in package ir. Everything an Arena allocates lives for the Arena's lifetime;
// there is no per-node free.
package arena
