// Package frontend is the minimal source-language front end spec.md §6.1
// calls for: a lexer and a recursive-descent parser that builds ir.Node
// values directly, with no intermediate AST, in the shape of
// original_source/src/slim/parser.c rather than naga's lex→AST→lower
// pipeline. Unresolved identifiers become ir.Unbound placeholders and
// integer literals become ir.UntypedNumber; passes.Bind and passes.Infer
// resolve both.
package frontend
