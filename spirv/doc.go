// Package spirv generates a SPIR-V binary module from an ir.Node Root,
// after lower_tailcalls has run (spec §4.7).
//
//	words, err := spirv.Emit(root)
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Emit walks the module's Function declarations and emits one SPIR-V
// OpFunction per non-continuation ir.Function (continuations it reaches
// directly become labelled blocks inside it), translating PrimOp instructions to their
// scalar/logical SPIR-V opcode and structured If/Match/Loop instructions
// to OpSelectionMerge/OpLoopMerge/OpSwitch with explicit merge and
// continue labels, tracked on an explicit merge-target stack
// (SPEC_FULL.md §4.7.4) rather than the single loopStack a pipeline
// without Match needs.
//
// The low-level binary writer (ModuleBuilder, InstructionBuilder) in
// writer.go is trimmed teacher infrastructure: it assembles SPIR-V's
// fixed section order and word encoding and has no awareness of any
// particular source IR.
package spirv
