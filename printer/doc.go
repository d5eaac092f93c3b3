// Package printer renders an ir.Node graph as readable text: the same
// job original_source/src/print.c does for debugging a compilation
// in flight, reshaped into the teacher's writer idiom (an indent-tracked
// strings.Builder with one write* method per construct, as in
// gogpu-naga/glsl/writer.go and gogpu-naga/hlsl/writer.go) rather than a
// direct C port, since this package prints *ir.Node trees instead of a
// target shading language.
package printer
