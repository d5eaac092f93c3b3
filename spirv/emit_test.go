package spirv

import (
	"encoding/binary"
	"testing"

	"github.com/gpuir/shady/ir"
)

func TestEmit_MinimalComputeEntryPointProducesValidModule(t *testing.T) {
	a := ir.NewArena()
	entry := a.NewFunctionHeader(ir.FnAttrs{IsEntryPoint: true, Stage: ir.StageCompute}, "main", nil, nil)
	ir.SetBody(entry, a.BlockNode(nil, a.ReturnNode(nil)))
	root := a.RootNode([]*ir.Node{entry})

	words, err := Emit(root)
	if err != nil {
		t.Fatalf("Emit returned error: %v", err)
	}
	if len(words) < 20 {
		t.Fatalf("Emit produced %d bytes, want at least a 20-byte header", len(words))
	}
	magic := binary.LittleEndian.Uint32(words[0:4])
	if magic != MagicNumber {
		t.Errorf("Emit output magic = 0x%08X, want 0x%08X", magic, MagicNumber)
	}
}

func TestEmit_ArithmeticFunctionSucceeds(t *testing.T) {
	a := ir.NewArena()
	i32 := a.IntType(32)
	add := a.PrimOpNode(ir.OpAdd, []*ir.Node{a.IntLiteralNode(1, 32), a.IntLiteralNode(2, 32)})
	letNode, vars := a.LetNode(add, false)
	fn := a.NewFunctionHeader(ir.FnAttrs{}, "add_one_two", nil, []*ir.Node{i32})
	ir.SetBody(fn, a.BlockNode([]*ir.Node{letNode}, a.ReturnNode([]*ir.Node{vars[0]})))
	root := a.RootNode([]*ir.Node{fn})

	if _, err := Emit(root); err != nil {
		t.Fatalf("Emit returned error for a simple arithmetic function: %v", err)
	}
}

func TestEmit_IfYieldingValueSucceeds(t *testing.T) {
	a := ir.NewArena()
	i32 := a.IntType(32)
	trueBlock := a.BlockNode(nil, a.SelectionMergeNode([]*ir.Node{a.IntLiteralNode(1, 32)}))
	falseBlock := a.BlockNode(nil, a.SelectionMergeNode([]*ir.Node{a.IntLiteralNode(2, 32)}))
	ifInstr := a.IfNode(a.True(), []*ir.Node{i32}, trueBlock, falseBlock)
	letNode, vars := a.LetNode(ifInstr, false)
	fn := a.NewFunctionHeader(ir.FnAttrs{}, "pick", nil, []*ir.Node{i32})
	ir.SetBody(fn, a.BlockNode([]*ir.Node{letNode}, a.ReturnNode([]*ir.Node{vars[0]})))
	root := a.RootNode([]*ir.Node{fn})

	words, err := Emit(root)
	if err != nil {
		t.Fatalf("Emit returned error for an if-expression yielding a value: %v", err)
	}

	// emitIf (SPEC_FULL.md §4.7.4): the yield slot is hoisted to a
	// function-entry OpVariable, the selection merge and conditional
	// branch precede the true/false blocks, each arm stores into the
	// slot and branches to the merge label, which then loads the result.
	want := []OpCode{
		OpFunction, OpVariable, OpLabel,
		OpSelectionMerge, OpBranchConditional,
		OpLabel, OpStore, OpBranch,
		OpLabel, OpStore, OpBranch,
		OpLabel, OpLoad, OpReturnValue, OpFunctionEnd,
	}
	assertOpcodeSequence(t, onlyFunctionBody(decodeSPIRVInstructions(words)), want)
}

func TestEmit_MatchYieldingValue_ExactOpcodeSequence(t *testing.T) {
	a := ir.NewArena()
	i32 := a.IntType(32)
	inspect := a.IntLiteralNode(0, 32)
	case0 := a.BlockNode(nil, a.SelectionMergeNode([]*ir.Node{a.IntLiteralNode(10, 32)}))
	case1 := a.BlockNode(nil, a.SelectionMergeNode([]*ir.Node{a.IntLiteralNode(20, 32)}))
	def := a.BlockNode(nil, a.SelectionMergeNode([]*ir.Node{a.IntLiteralNode(99, 32)}))
	matchInstr := a.MatchNode(inspect, []*ir.Node{a.IntLiteralNode(0, 32), a.IntLiteralNode(1, 32)}, []*ir.Node{case0, case1}, def, []*ir.Node{i32})
	letNode, vars := a.LetNode(matchInstr, false)
	fn := a.NewFunctionHeader(ir.FnAttrs{}, "pick_case", nil, []*ir.Node{i32})
	ir.SetBody(fn, a.BlockNode([]*ir.Node{letNode}, a.ReturnNode([]*ir.Node{vars[0]})))
	root := a.RootNode([]*ir.Node{fn})

	words, err := Emit(root)
	if err != nil {
		t.Fatalf("Emit returned error for a match-expression yielding a value: %v", err)
	}

	// emitMatch mirrors emitIf but dispatches with OpSwitch over the
	// case labels instead of OpBranchConditional over two; the default
	// case is emitted last, exactly as it is in the IR (spec §4.6).
	want := []OpCode{
		OpFunction, OpVariable, OpLabel,
		OpSelectionMerge, OpSwitch,
		OpLabel, OpStore, OpBranch, // case 0
		OpLabel, OpStore, OpBranch, // case 1
		OpLabel, OpStore, OpBranch, // default
		OpLabel, OpLoad, OpReturnValue, OpFunctionEnd,
	}
	assertOpcodeSequence(t, onlyFunctionBody(decodeSPIRVInstructions(words)), want)
}

func TestEmit_LoopWithBreak_ExactOpcodeSequence(t *testing.T) {
	a := ir.NewArena()
	i32 := a.IntType(32)
	body := a.BlockNode(nil, a.BreakMergeNode([]*ir.Node{a.IntLiteralNode(42, 32)}))
	loopInstr := a.LoopNode(nil, nil, []*ir.Node{i32}, body)
	letNode, vars := a.LetNode(loopInstr, false)
	fn := a.NewFunctionHeader(ir.FnAttrs{}, "count_loop", nil, []*ir.Node{i32})
	ir.SetBody(fn, a.BlockNode([]*ir.Node{letNode}, a.ReturnNode([]*ir.Node{vars[0]})))
	root := a.RootNode([]*ir.Node{fn})

	words, err := Emit(root)
	if err != nil {
		t.Fatalf("Emit returned error for a loop yielding a value on break: %v", err)
	}

	// emitLoop (grounded on naga's backend.go emitLoop, SPEC_FULL.md
	// §4.7.4): entry branches to a header carrying OpLoopMerge, the
	// header falls straight to the body (this loop has no condition
	// check), the break stores the yield and branches to merge, and the
	// continue block (unreachable here since the body never falls off
	// the end) still closes the back-edge to the header.
	want := []OpCode{
		OpFunction, OpVariable, OpLabel,
		OpBranch, // entry -> header
		OpLabel, OpLoopMerge, OpBranch, // header -> body
		OpLabel, OpStore, OpBranch, // body: break stores + -> merge
		OpLabel, OpBranch, // continue -> header (back-edge)
		OpLabel, OpLoad, OpReturnValue, OpFunctionEnd, // merge
	}
	assertOpcodeSequence(t, onlyFunctionBody(decodeSPIRVInstructions(words)), want)

	instrs := decodeSPIRVInstructions(words)
	if got := countOpcode(instrs, OpLoopMerge); got != 1 {
		t.Errorf("OpLoopMerge count = %d, want exactly 1", got)
	}
}

// TestEmit_DirectJumpFoldsIntoSingleFunction exercises the routing this
// emitter added for Comment 1: a continuation reached only by a direct
// Jump must become an additional basic block of its caller's OpFunction
// (scope.Build's dominator walk in emitFunctionBody), never a second
// OpFunction and never the push-args/store-token/dispatcher protocol
// lower_tailcalls reserves for indirect tail calls.
func TestEmit_DirectJumpFoldsIntoSingleFunction(t *testing.T) {
	a := ir.NewArena()
	i32 := a.IntType(32)
	cont := a.NewFunctionHeader(ir.FnAttrs{IsContinuation: true}, "k", nil, []*ir.Node{i32})
	ir.SetBody(cont, a.BlockNode(nil, a.ReturnNode([]*ir.Node{a.IntLiteralNode(7, 32)})))
	fn := a.NewFunctionHeader(ir.FnAttrs{}, "f", nil, nil)
	ir.SetBody(fn, a.BlockNode(nil, a.JumpNode(cont, nil)))
	root := a.RootNode([]*ir.Node{fn, cont})

	words, err := Emit(root)
	if err != nil {
		t.Fatalf("Emit returned error for a direct jump to a continuation: %v", err)
	}

	instrs := decodeSPIRVInstructions(words)
	if got := countOpcode(instrs, OpFunction); got != 1 {
		t.Errorf("OpFunction count = %d, want 1 (the continuation must fold into its caller, not declare its own)", got)
	}
	if got := countOpcode(instrs, OpFunctionEnd); got != 1 {
		t.Errorf("OpFunctionEnd count = %d, want 1", got)
	}
	want := []OpCode{
		OpFunction, OpLabel, OpBranch,
		OpLabel, OpReturnValue, OpFunctionEnd,
	}
	assertOpcodeSequence(t, onlyFunctionBody(instrs), want)
}

func TestEmit_DirectIfElseBranchEmitsConditionalBranch(t *testing.T) {
	a := ir.NewArena()
	trueCont := a.NewFunctionHeader(ir.FnAttrs{IsContinuation: true}, "on_true", nil, nil)
	ir.SetBody(trueCont, a.BlockNode(nil, a.ReturnNode(nil)))
	falseCont := a.NewFunctionHeader(ir.FnAttrs{IsContinuation: true}, "on_false", nil, nil)
	ir.SetBody(falseCont, a.BlockNode(nil, a.ReturnNode(nil)))
	fn := a.NewFunctionHeader(ir.FnAttrs{}, "f", nil, nil)
	ir.SetBody(fn, a.BlockNode(nil, a.IfElseBranchNode(a.True(), trueCont, falseCont, nil)))
	root := a.RootNode([]*ir.Node{fn, trueCont, falseCont})

	words, err := Emit(root)
	if err != nil {
		t.Fatalf("Emit returned error for a direct if-else branch: %v", err)
	}

	instrs := decodeSPIRVInstructions(words)
	if got := countOpcode(instrs, OpFunction); got != 1 {
		t.Errorf("OpFunction count = %d, want 1 (both branch targets must fold into the caller)", got)
	}
	if got := countOpcode(instrs, OpBranchConditional); got != 1 {
		t.Errorf("OpBranchConditional count = %d, want exactly 1", got)
	}
	if got := countOpcode(instrs, OpLabel); got != 3 {
		t.Errorf("OpLabel count = %d, want 3 (entry + two folded continuations)", got)
	}
}

func TestEmit_CallToDeclaredFunctionSucceeds(t *testing.T) {
	a := ir.NewArena()
	i32 := a.IntType(32)
	callee := a.NewFunctionHeader(ir.FnAttrs{}, "callee", nil, []*ir.Node{i32})
	ir.SetBody(callee, a.BlockNode(nil, a.ReturnNode([]*ir.Node{a.IntLiteralNode(9, 32)})))
	call := a.CallNode(callee, nil)
	letNode, vars := a.LetNode(call, false)
	caller := a.NewFunctionHeader(ir.FnAttrs{}, "caller", nil, []*ir.Node{i32})
	ir.SetBody(caller, a.BlockNode([]*ir.Node{letNode}, a.ReturnNode([]*ir.Node{vars[0]})))
	root := a.RootNode([]*ir.Node{caller, callee})

	if _, err := Emit(root); err != nil {
		t.Fatalf("Emit returned error for a call to an already-declared function: %v", err)
	}
}

func TestEmit_UnboundReferenceIsAStagingError(t *testing.T) {
	a := ir.NewArena()
	i32 := a.IntType(32)
	unresolved := a.UnboundNode("missing")
	fn := a.NewFunctionHeader(ir.FnAttrs{}, "f", nil, []*ir.Node{i32})
	ir.SetBody(fn, a.BlockNode(nil, a.ReturnNode([]*ir.Node{unresolved})))
	root := a.RootNode([]*ir.Node{fn})

	_, err := Emit(root)
	if err == nil {
		t.Fatalf("Emit accepted a module containing an unresolved Unbound reference")
	}
	irErr, ok := err.(*ir.Error)
	if !ok {
		t.Fatalf("error type = %T, want *ir.Error", err)
	}
	if irErr.Kind != ir.ErrUnlowered {
		t.Errorf("error kind = %v, want ErrUnlowered", irErr.Kind)
	}
}

func TestEmit_RootTagRequiredOnTopLevelNode(t *testing.T) {
	a := ir.NewArena()
	fn := a.NewFunctionHeader(ir.FnAttrs{}, "f", nil, nil)
	ir.SetBody(fn, a.BlockNode(nil, a.ReturnNode(nil)))

	_, err := Emit(fn)
	if err == nil {
		t.Fatalf("Emit accepted a non-Root node")
	}
}

func TestEmit_FragmentEntryPointSetsOriginUpperLeft(t *testing.T) {
	a := ir.NewArena()
	entry := a.NewFunctionHeader(ir.FnAttrs{IsEntryPoint: true, Stage: ir.StageFragment}, "ps_main", nil, nil)
	ir.SetBody(entry, a.BlockNode(nil, a.ReturnNode(nil)))
	root := a.RootNode([]*ir.Node{entry})

	words, err := Emit(root)
	if err != nil {
		t.Fatalf("Emit returned error: %v", err)
	}
	if len(words) == 0 {
		t.Fatalf("Emit produced no output for a fragment entry point")
	}
	found := false
	for _, inst := range decodeSPIRVInstructions(words) {
		if inst.opcode == OpExecutionMode && len(inst.words) >= 3 && ExecutionMode(inst.words[2]) == ExecutionModeOriginUpperLeft {
			found = true
		}
	}
	if !found {
		t.Errorf("no OpExecutionMode OriginUpperLeft emitted for a fragment entry point")
	}
}

// spirvInstruction and decodeSPIRVInstructions mirror the disassembly
// helpers gogpu-naga's spirv tests use (var_init_test.go,
// loop_test.go) to assert exact opcode sequences instead of only
// "Emit didn't error" — the word stream is the actual contract an
// SPIR-V consumer (a driver, spirv-val) checks against.
type spirvInstruction struct {
	offset    int
	opcode    OpCode
	wordCount int
	words     []uint32
}

func decodeSPIRVInstructions(data []byte) []spirvInstruction {
	if len(data) < 20 || len(data)%4 != 0 {
		return nil
	}
	words := make([]uint32, len(data)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	var instrs []spirvInstruction
	offset := 5 // skip the 5-word module header
	for offset < len(words) {
		wc := int(words[offset] >> 16)
		op := OpCode(words[offset] & 0xFFFF)
		if wc == 0 || offset+wc > len(words) {
			break
		}
		instrs = append(instrs, spirvInstruction{
			offset:    offset,
			opcode:    op,
			wordCount: wc,
			words:     words[offset : offset+wc],
		})
		offset += wc
	}
	return instrs
}

func countOpcode(instrs []spirvInstruction, opcode OpCode) int {
	n := 0
	for _, inst := range instrs {
		if inst.opcode == opcode {
			n++
		}
	}
	return n
}

// onlyFunctionBody slices instrs down to the first OpFunction..OpFunctionEnd
// run, the part of the module every exact-sequence test in this file
// cares about; every test here emits exactly one OpFunction.
func onlyFunctionBody(instrs []spirvInstruction) []spirvInstruction {
	start := -1
	for i, inst := range instrs {
		if inst.opcode == OpFunction {
			start = i
			break
		}
	}
	if start == -1 {
		return nil
	}
	for i := start; i < len(instrs); i++ {
		if instrs[i].opcode == OpFunctionEnd {
			return instrs[start : i+1]
		}
	}
	return instrs[start:]
}

func assertOpcodeSequence(t *testing.T, instrs []spirvInstruction, want []OpCode) {
	t.Helper()
	got := make([]OpCode, len(instrs))
	for i, inst := range instrs {
		got[i] = inst.opcode
	}
	if len(got) != len(want) {
		t.Fatalf("opcode sequence length = %d, want %d\ngot:  %v\nwant: %v", len(got), len(want), got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("opcode[%d] = %v, want %v\ngot:  %v\nwant: %v", i, got[i], want[i], got, want)
		}
	}
}
