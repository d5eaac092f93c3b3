package spirv

import (
	"fmt"

	"github.com/gpuir/shady/ir"
	"github.com/gpuir/shady/scope"
)

// Emit translates root (which must already have passed Bind, Infer and
// LowerTailcalls, spec §4.7) into a complete SPIR-V binary module.
// opts is variadic so existing callers requesting default options (no
// debug names) do not need to change; at most the first value is used.
//
// The structured If/Match/Loop translation is adapted from naga's
// backend.go emitIf/emitLoop idiom (SPEC_FULL.md §4.7.4): merge, true,
// false, continue and case labels are allocated up front so branches can
// forward-reference them, and an explicit merge-target stack (mergeFrame)
// tracks where MergeSelection/MergeBreak/MergeContinue terminators should
// branch to, generalizing naga's single loopStack to also cover Match.
func Emit(root *ir.Node, opts ...Options) (words []byte, err error) {
	defer recoverEmitError(&err)
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	e := newEmitter(o)
	e.emitRoot(root)
	return e.mb.Build(), nil
}

func recoverEmitError(err *error) {
	if r := recover(); r != nil {
		switch v := r.(type) {
		case *ir.Error:
			*err = v
		case error:
			*err = v
		default:
			panic(r)
		}
	}
}

func stageErrf(format string, args ...interface{}) error {
	return &ir.Error{Kind: ir.ErrUnlowered, Message: fmt.Sprintf(format, args...)}
}

// mergeFrame tracks one level of structured control flow nesting so a
// MergeConstruct terminator, which may be buried several blocks deep,
// knows which label to branch to and which Function-storage slots carry
// its yielded values. Selection frames (If/Match) are consulted by
// MergeSelection; break/continue always target the nearest loop frame.
type mergeFrame struct {
	isLoop        bool
	mergeLabel    uint32
	continueLabel uint32
	resultSlots   []uint32
	resultTypes   []uint32
}

// Emitter holds the per-module state that accumulates while walking an
// ir.Node Root: the binary builder, and memoization tables from Arena
// node identity to the SPIR-V IDs already emitted for that node, the
// same pointer-identity-as-cache-key trick the arena's own interning
// relies on.
type Emitter struct {
	mb *ModuleBuilder

	typeIDs   map[*ir.Node]uint32
	constIDs  map[*ir.Node]uint32
	globalIDs map[*ir.Node]uint32
	fnIDs     map[*ir.Node]uint32
	fnTypeIDs map[*ir.Node]uint32

	// labelIDs holds the pre-reserved OpLabel id for every continuation
	// Function (one reached only by a direct Jump/IfElse/Join from some
	// top-level function's body, per lower_tailcalls) so a forward branch
	// to it resolves before its basic block is actually emitted.
	labelIDs map[*ir.Node]uint32

	// Reset at the start of every function.
	localIDs     map[*ir.Node]uint32
	yieldSlots   map[*ir.Node][]uint32
	yieldTypeIDs map[*ir.Node][]uint32
	merges       []mergeFrame

	voidID uint32

	debug bool

	capsAdded map[Capability]bool

	// Raw types/constants for the subgroup_active_mask lowering, kept
	// separate from typeIDs/constIDs because they have no backing
	// ir.Node to key on.
	uint32TypeID uint32
	uintConsts   map[uint32]uint32
	rawBoolID    uint32
	rawTrueID    uint32
}

func newEmitter(opts Options) *Emitter {
	return &Emitter{
		mb:        NewModuleBuilder(Version1_3),
		debug:     opts.Debug,
		typeIDs:   make(map[*ir.Node]uint32),
		constIDs:  make(map[*ir.Node]uint32),
		globalIDs: make(map[*ir.Node]uint32),
		fnIDs:     make(map[*ir.Node]uint32),
		fnTypeIDs: make(map[*ir.Node]uint32),
	}
}

func (e *Emitter) emitRoot(root *ir.Node) {
	if root.Tag != ir.TagRoot {
		panic(stageErrf("Emit requires a Root node, got %v", root.Tag))
	}
	e.mb.AddCapability(CapabilityShader)
	e.mb.SetMemoryModel(AddressingModelLogical, MemoryModelGLSL450)

	decls := root.Payload.(ir.Root).Declarations.Items

	// Pre-declare every top-level function's ID and OpTypeFunction so
	// forward calls (the tailcall dispatcher is declared after the
	// wrappers that call it) resolve. A continuation Function is never
	// its own OpFunction — lower_tailcalls only leaves that attribute set
	// on continuations still reached by a direct Jump/IfElse/Join, which
	// the owning function's scope.Build walk folds in as another basic
	// block of the same OpFunction — so it gets a bare label id instead.
	for _, d := range decls {
		if d.Tag != ir.TagFunction {
			continue
		}
		if d.Payload.(ir.Function).Attrs.IsContinuation {
			e.reserveContinuationLabel(d)
		} else {
			e.declareFunction(d)
		}
	}
	for _, d := range decls {
		switch d.Tag {
		case ir.TagConstant:
			e.constantID(d)
		case ir.TagGlobalVariable:
			e.globalID(d)
		}
	}
	for _, d := range decls {
		if d.Tag != ir.TagFunction {
			continue
		}
		if d.Payload.(ir.Function).Attrs.IsContinuation {
			continue
		}
		e.emitFunctionBody(d)
	}
	for _, d := range decls {
		if d.Tag != ir.TagFunction {
			continue
		}
		f := d.Payload.(ir.Function)
		if !f.Attrs.IsEntryPoint {
			continue
		}
		id := e.fnIDs[d]
		// SPIR-V 1.3's Interface operand lists Input/Output globals;
		// this toy front end has no I/O-space global syntax, so the
		// interface list is always empty.
		e.mb.AddEntryPoint(executionModelFor(f.Attrs.Stage), id, *f.Name, nil)
		switch f.Attrs.Stage {
		case ir.StageCompute:
			e.mb.AddExecutionMode(id, ExecutionModeLocalSize, 1, 1, 1)
		case ir.StageFragment:
			e.mb.AddExecutionMode(id, ExecutionModeOriginUpperLeft)
		}
	}
}

func executionModelFor(stage ir.ShaderStage) ExecutionModel {
	switch stage {
	case ir.StageVertex:
		return ExecutionModelVertex
	case ir.StageFragment:
		return ExecutionModelFragment
	default:
		return ExecutionModelGLCompute
	}
}

// storageClassFor maps a logical address space to its SPIR-V storage
// class. Physical spaces and ProgramCode are expected to have been
// eliminated before SPIR-V emission (ir/addrspace.go); seeing one here
// is a staging error.
func storageClassFor(space ir.AddressSpace) StorageClass {
	switch space {
	case ir.SpaceGeneric:
		return StorageClassGeneric
	case ir.SpaceGlobalLogical:
		return StorageClassStorageBuffer
	case ir.SpaceSharedLogical:
		return StorageClassWorkgroup
	case ir.SpacePrivateLogical:
		return StorageClassPrivate
	case ir.SpaceFunctionLogical:
		return StorageClassFunction
	case ir.SpaceInput:
		return StorageClassInput
	case ir.SpaceOutput:
		return StorageClassOutput
	case ir.SpaceExternal:
		return StorageClassUniformConstant
	default:
		panic(stageErrf("address space %v must be lowered away before SPIR-V emission", space))
	}
}

// typeID returns the memoized SPIR-V type ID for t, creating it (and any
// nested types) on first use.
func (e *Emitter) typeID(t *ir.Node) uint32 {
	t = ir.Unqualify(t)
	if id, ok := e.typeIDs[t]; ok {
		return id
	}
	var id uint32
	switch payload := t.Payload.(type) {
	case ir.Int:
		e.ensureIntCapability(payload.Width)
		id = e.mb.AddTypeInt(uint32(payload.Width), true)
	case ir.Float:
		e.ensureFloatCapability(payload.Width)
		id = e.mb.AddTypeFloat(uint32(payload.Width))
	case ir.Record:
		members := make([]uint32, len(payload.MemberTypes.Items))
		for i, m := range payload.MemberTypes.Items {
			members[i] = e.typeID(m)
		}
		id = e.mb.AddTypeStruct(members...)
	case ir.Ptr:
		id = e.mb.AddTypePointer(storageClassFor(payload.Space), e.typeID(payload.Pointee))
	case ir.Arr:
		if payload.Size == nil {
			panic(stageErrf("runtime-sized arrays are not supported by this emitter"))
		}
		lengthType := e.rawUint32Type()
		lengthConst := e.uintConst(*payload.Size)
		id = e.mb.AddTypeArray(e.typeID(payload.Elem), lengthConst)
		_ = lengthType
	case ir.Fn:
		panic(stageErrf("function types have no standalone SPIR-V type id outside a function declaration"))
	default:
		switch t.Tag {
		case ir.TagBool:
			id = e.mb.AddTypeBool()
		case ir.TagMask:
			// Models a subgroup ballot result the way OpGroupNonUniformBallot
			// returns one: a 4-component vector of 32-bit unsigned ints.
			id = e.mb.AddTypeVector(e.rawUint32Type(), 4)
		case ir.TagNoReturn:
			panic(stageErrf("NoReturn has no SPIR-V representation"))
		default:
			panic(stageErrf("unsupported type tag %v", t.Tag))
		}
	}
	e.typeIDs[t] = id
	return id
}

func (e *Emitter) ensureIntCapability(width uint8) {
	switch width {
	case 8:
		e.addCapabilityOnce(CapabilityInt8)
	case 16:
		e.addCapabilityOnce(CapabilityInt16)
	case 64:
		e.addCapabilityOnce(CapabilityInt64)
	}
}

func (e *Emitter) ensureFloatCapability(width uint8) {
	switch width {
	case 16:
		e.addCapabilityOnce(CapabilityFloat16)
	case 64:
		e.addCapabilityOnce(CapabilityFloat64)
	}
}

func (e *Emitter) addCapabilityOnce(c Capability) {
	if e.capsAdded == nil {
		e.capsAdded = make(map[Capability]bool)
	}
	if e.capsAdded[c] {
		return
	}
	e.capsAdded[c] = true
	e.mb.AddCapability(c)
}

func (e *Emitter) voidTypeID() uint32 {
	if e.voidID == 0 {
		e.voidID = e.mb.AddTypeVoid()
	}
	return e.voidID
}

func (e *Emitter) rawUint32Type() uint32 {
	if e.uint32TypeID == 0 {
		e.uint32TypeID = e.mb.AddTypeInt(32, false)
	}
	return e.uint32TypeID
}

func (e *Emitter) uintConst(v uint32) uint32 {
	if e.uintConsts == nil {
		e.uintConsts = make(map[uint32]uint32)
	}
	if id, ok := e.uintConsts[v]; ok {
		return id
	}
	id := e.mb.AddConstant(e.rawUint32Type(), v)
	e.uintConsts[v] = id
	return id
}

// voidOrSingleType resolves a Function's Returns (or a Call's produced
// Types) list to a single SPIR-V result type, the shape every function
// and call this pipeline ever produces.
func (e *Emitter) voidOrSingleType(types []*ir.Node) uint32 {
	switch len(types) {
	case 0:
		return e.voidTypeID()
	case 1:
		return e.typeID(types[0])
	default:
		panic(stageErrf("functions or calls with more than one result are not supported by this emitter"))
	}
}

func (e *Emitter) declareFunction(fn *ir.Node) {
	id := e.mb.AllocID()
	e.fnIDs[fn] = id
	f := fn.Payload.(ir.Function)
	if e.debug {
		e.mb.AddName(id, *f.Name)
	}

	paramTypes := make([]uint32, len(f.Params.Items))
	for i, p := range f.Params.Items {
		paramTypes[i] = e.typeID(p.Type)
	}
	retType := e.voidOrSingleType(f.Returns.Items)
	e.fnTypeIDs[fn] = e.mb.AddTypeFunction(retType, paramTypes...)
}

// reserveContinuationLabel allocates the OpLabel id a continuation's
// basic block will be emitted under once its owning function's
// scope.Build walk reaches it.
func (e *Emitter) reserveContinuationLabel(fn *ir.Node) {
	if e.labelIDs == nil {
		e.labelIDs = make(map[*ir.Node]uint32)
	}
	e.labelIDs[fn] = e.mb.AllocID()
}

// continuationLabel resolves a direct Branch/Join target to its
// pre-reserved label id. Reaching here for a Function with no reserved
// label means lower_tailcalls treated it as a dispatcher leaf (a
// separate OpFunction, not a basic block) — such a target can only be
// reached through a BranchTailcall, not a direct Jump/IfElse/Join.
func (e *Emitter) continuationLabel(fn *ir.Node) uint32 {
	id, ok := e.labelIDs[fn]
	if !ok {
		panic(stageErrf("branch target %q is not a direct continuation of this function", *fn.Payload.(ir.Function).Name))
	}
	return id
}

func (e *Emitter) rawFunction(retType, id, fnType uint32) {
	b := NewInstructionBuilder()
	b.AddWord(retType)
	b.AddWord(id)
	b.AddWord(uint32(FunctionControlNone))
	b.AddWord(fnType)
	e.mb.functions = append(e.mb.functions, b.Build(OpFunction))
}

func (e *Emitter) addLocalVariable(ptrType uint32) uint32 {
	id := e.mb.AllocID()
	b := NewInstructionBuilder()
	b.AddWord(ptrType)
	b.AddWord(id)
	b.AddWord(uint32(StorageClassFunction))
	e.mb.functions = append(e.mb.functions, b.Build(OpVariable))
	return id
}

func (e *Emitter) addLabelID(id uint32) {
	b := NewInstructionBuilder()
	b.AddWord(id)
	e.mb.functions = append(e.mb.functions, b.Build(OpLabel))
}

func (e *Emitter) addBranch(target uint32) {
	b := NewInstructionBuilder()
	b.AddWord(target)
	e.mb.functions = append(e.mb.functions, b.Build(OpBranch))
}

func (e *Emitter) addUnreachable() {
	e.mb.functions = append(e.mb.functions, NewInstructionBuilder().Build(OpUnreachable))
}

func (e *Emitter) addSwitch(selector, def uint32, literals []*ir.Node, labels []uint32) {
	b := NewInstructionBuilder()
	b.AddWord(selector)
	b.AddWord(def)
	for i, lit := range literals {
		b.AddWord(uint32(lit.Payload.(ir.IntLiteral).Value))
		b.AddWord(labels[i])
	}
	e.mb.functions = append(e.mb.functions, b.Build(OpSwitch))
}

func (e *Emitter) rawFunctionCall(retType, calleeID uint32, args []uint32) uint32 {
	id := e.mb.AllocID()
	b := NewInstructionBuilder()
	b.AddWord(retType)
	b.AddWord(id)
	b.AddWord(calleeID)
	for _, a := range args {
		b.AddWord(a)
	}
	e.mb.functions = append(e.mb.functions, b.Build(OpFunctionCall))
	return id
}

func (e *Emitter) rawBoolTypeID() uint32 {
	if e.rawBoolID == 0 {
		e.rawBoolID = e.mb.AddTypeBool()
	}
	return e.rawBoolID
}

// rawBoolConstTrue is a locally cached OpConstantTrue for the ballot
// predicate operand, kept separate from the module's IR-level Bool type
// (if any) to avoid threading an *ir.Arena into the emitter just to ask
// it for BoolType(). This can in principle duplicate OpTypeBool/
// OpConstantTrue if the module also uses bool literals elsewhere -
// cosmetic, has no semantic effect, not worth the plumbing to avoid.
func (e *Emitter) rawBoolConstTrue() uint32 {
	if e.rawTrueID != 0 {
		return e.rawTrueID
	}
	t := e.rawBoolTypeID()
	id := e.mb.AllocID()
	b := NewInstructionBuilder()
	b.AddWord(t)
	b.AddWord(id)
	e.mb.types = append(e.mb.types, b.Build(OpConstantTrue))
	e.rawTrueID = id
	return id
}

const scopeSubgroup uint32 = 3

func (e *Emitter) rawGroupNonUniformBallot(resType, scope, pred uint32) uint32 {
	id := e.mb.AllocID()
	b := NewInstructionBuilder()
	b.AddWord(resType)
	b.AddWord(id)
	b.AddWord(scope)
	b.AddWord(pred)
	e.mb.functions = append(e.mb.functions, b.Build(OpGroupNonUniformBallot))
	return id
}

// emitFunctionBody emits fn as one OpFunction whose basic blocks are fn's
// own entry block plus every continuation scope.Build finds reachable
// from it through a direct Jump/IfElse/Switch/Join/Callc — mirroring
// original_source/src/emit/emit.c's emit_function/emit_basic_block, which
// calls build_scope once per top-level function and recurses over its
// dominator tree rather than opening a new OpFunction per continuation
// (spec §4.5, §4.7.6).
func (e *Emitter) emitFunctionBody(fn *ir.Node) {
	f := fn.Payload.(ir.Function)
	if f.Block == nil {
		panic(stageErrf("function %q has no body", *f.Name))
	}
	id := e.fnIDs[fn]
	fnType := e.fnTypeIDs[fn]
	retType := e.voidOrSingleType(f.Returns.Items)

	e.localIDs = make(map[*ir.Node]uint32)
	e.yieldSlots = make(map[*ir.Node][]uint32)
	e.yieldTypeIDs = make(map[*ir.Node][]uint32)
	e.merges = nil

	e.rawFunction(retType, id, fnType)
	for _, param := range f.Params.Items {
		e.localIDs[param] = e.mb.AddFunctionParameter(e.typeID(param.Type))
	}

	s := scope.Build(fn)
	for _, cf := range s.Order {
		e.hoistFunctionLocals(cf.Fn.Payload.(ir.Function).Block)
	}

	e.mb.AddLabel()
	e.emitBlockBody(f.Block)
	for _, cf := range s.Order {
		if cf.Fn != fn {
			e.emitContinuationBlock(cf.Fn)
		}
	}
	e.mb.AddFunctionEnd()
}

// emitContinuationBlock emits one continuation reachable from the
// enclosing OpFunction's entry as an additional basic block, under its
// pre-reserved label rather than a fresh OpFunction.
func (e *Emitter) emitContinuationBlock(fn *ir.Node) {
	f := fn.Payload.(ir.Function)
	id := e.continuationLabel(fn)
	e.addLabelID(id)
	if e.debug && f.Name != nil {
		e.mb.AddName(id, *f.Name)
	}
	e.emitBlockBody(f.Block)
}

// hoistFunctionLocals walks a function body recursively (descending into
// If/Match/Loop sub-blocks) and hoists every `var`-declared alloca and
// every structured instruction's yield slots to Function-storage
// OpVariable declarations at the very start of the entry block, since
// SPIR-V requires all Function-storage OpVariable instructions to appear
// there rather than wherever the alloca textually occurs.
func (e *Emitter) hoistFunctionLocals(n *ir.Node) {
	if n == nil {
		return
	}
	switch n.Tag {
	case ir.TagBlock:
		// ParsedBlock never reaches Emit: Bind consumes every ParsedBlock
		// and produces Block before Infer/LowerTailcalls ever run.
		b := n.Payload.(ir.Block)
		for _, inst := range b.Instructions.Items {
			e.hoistFunctionLocals(inst)
		}
	case ir.TagLet:
		l := n.Payload.(ir.Let)
		if po, ok := l.Instruction.Payload.(ir.PrimOp); ok && po.Op == ir.OpAlloca {
			v := l.Variables.Items[0]
			e.localIDs[v] = e.addLocalVariable(e.typeID(v.Type))
			return
		}
		e.hoistFunctionLocals(l.Instruction)
	case ir.TagIf:
		p := n.Payload.(ir.If)
		e.hoistYield(n, p.Yield.Items)
		e.hoistFunctionLocals(p.IfTrue)
		if p.IfFalse != nil {
			e.hoistFunctionLocals(p.IfFalse)
		}
	case ir.TagMatch:
		p := n.Payload.(ir.Match)
		e.hoistYield(n, p.Yield.Items)
		for _, c := range p.Cases.Items {
			e.hoistFunctionLocals(c)
		}
		e.hoistFunctionLocals(p.Default)
	case ir.TagLoop:
		p := n.Payload.(ir.Loop)
		e.hoistYield(n, p.Yield.Items)
		e.hoistFunctionLocals(p.Body)
	}
}

func (e *Emitter) hoistYield(n *ir.Node, yield []*ir.Node) {
	if len(yield) == 0 {
		return
	}
	slots := make([]uint32, len(yield))
	types := make([]uint32, len(yield))
	for i, y := range yield {
		types[i] = e.typeID(y)
		ptrType := e.mb.AddTypePointer(StorageClassFunction, types[i])
		slots[i] = e.addLocalVariable(ptrType)
	}
	e.yieldSlots[n] = slots
	e.yieldTypeIDs[n] = types
}

func (e *Emitter) emitBlockBody(n *ir.Node) {
	b := n.Payload.(ir.Block)
	for _, inst := range b.Instructions.Items {
		e.emitTopInstruction(inst)
	}
	e.emitTerminator(b.Terminator)
}

func (e *Emitter) emitTopInstruction(n *ir.Node) {
	if n.Tag == ir.TagLet {
		l := n.Payload.(ir.Let)
		v := l.Variables.Items[0]
		if _, already := e.localIDs[v]; already {
			// Already materialized by hoistFunctionLocals (an alloca).
			return
		}
		results := e.emitInstruction(l.Instruction)
		for i, rv := range l.Variables.Items {
			if i < len(results) {
				e.localIDs[rv] = results[i]
			}
		}
		return
	}
	e.emitInstruction(n)
}

func (e *Emitter) emitInstruction(n *ir.Node) []uint32 {
	switch n.Payload.(type) {
	case ir.PrimOp:
		return e.emitPrimOp(n)
	case ir.Call:
		return e.emitCall(n)
	case ir.If:
		return e.emitIf(n)
	case ir.Match:
		return e.emitMatch(n)
	case ir.Loop:
		return e.emitLoop(n)
	default:
		panic(stageErrf("unsupported instruction tag %v", n.Tag))
	}
}

func (e *Emitter) emitCall(n *ir.Node) []uint32 {
	c := n.Payload.(ir.Call)
	calleeID, ok := e.fnIDs[c.Callee]
	if !ok {
		panic(stageErrf("call to a function not declared at the module root"))
	}
	args := make([]uint32, len(c.Args.Items))
	for i, a := range c.Args.Items {
		args[i] = e.valueID(a)
	}
	retType := e.voidOrSingleType(n.Types.Items)
	resultID := e.rawFunctionCall(retType, calleeID, args)
	if len(n.Types.Items) == 0 {
		return nil
	}
	return []uint32{resultID}
}

func (e *Emitter) emitPrimOp(n *ir.Node) []uint32 {
	p := n.Payload.(ir.PrimOp)
	ops := p.Operands.Items
	switch p.Op {
	case ir.OpStore:
		e.mb.AddStore(e.valueID(ops[0]), e.valueID(ops[1]))
		return nil
	case ir.OpAlloca:
		panic(stageErrf("alloca reached emitPrimOp directly; hoistFunctionLocals should have handled it"))
	case ir.OpLoad:
		resType := e.typeID(n.Types.Items[0])
		return []uint32{e.mb.AddLoad(resType, e.valueID(ops[0]))}
	case ir.OpLea:
		resType := e.typeID(n.Types.Items[0])
		base := e.valueID(ops[0])
		indices := make([]uint32, 0, len(ops)-1)
		for _, idx := range ops[1:] {
			indices = append(indices, e.valueID(idx))
		}
		return []uint32{e.mb.AddAccessChain(resType, base, indices...)}
	case ir.OpSelect:
		resType := e.typeID(n.Types.Items[0])
		return []uint32{e.mb.AddSelect(resType, e.valueID(ops[0]), e.valueID(ops[1]), e.valueID(ops[2]))}
	case ir.OpNot:
		resType := e.typeID(n.Types.Items[0])
		return []uint32{e.mb.AddUnaryOp(OpLogicalNot, resType, e.valueID(ops[0]))}
	case ir.OpSubgroupActiveMask:
		e.addCapabilityOnce(CapabilityGroupNonUniform)
		e.addCapabilityOnce(CapabilityGroupNonUniformBallot)
		resType := e.typeID(n.Types.Items[0])
		scope := e.uintConst(scopeSubgroup)
		pred := e.rawBoolConstTrue()
		return []uint32{e.rawGroupNonUniformBallot(resType, scope, pred)}
	default:
		return []uint32{e.emitBinaryPrimOp(n, p, ops)}
	}
}

func pickOp(cond bool, ifTrue, ifFalse OpCode) OpCode {
	if cond {
		return ifTrue
	}
	return ifFalse
}

func (e *Emitter) emitBinaryPrimOp(n *ir.Node, p ir.PrimOp, ops []*ir.Node) uint32 {
	resType := e.typeID(n.Types.Items[0])
	l := e.valueID(ops[0])
	r := e.valueID(ops[1])
	operandType := ir.Unqualify(ops[0].Type)
	isFloat := operandType.Tag == ir.TagFloat
	isBool := operandType.Tag == ir.TagBool

	var opcode OpCode
	switch p.Op {
	case ir.OpAdd:
		opcode = pickOp(isFloat, OpFAdd, OpIAdd)
	case ir.OpSub:
		opcode = pickOp(isFloat, OpFSub, OpISub)
	case ir.OpMul:
		opcode = pickOp(isFloat, OpFMul, OpIMul)
	case ir.OpDiv:
		opcode = pickOp(isFloat, OpFDiv, OpSDiv)
	case ir.OpMod:
		opcode = pickOp(isFloat, OpFMod, OpSMod)
	case ir.OpEq:
		switch {
		case isBool:
			opcode = OpLogicalEqual
		case isFloat:
			opcode = OpFOrdEqual
		default:
			opcode = OpIEqual
		}
	case ir.OpNeq:
		switch {
		case isBool:
			opcode = OpLogicalNotEqual
		case isFloat:
			opcode = OpFOrdNotEqual
		default:
			opcode = OpINotEqual
		}
	case ir.OpLt:
		opcode = pickOp(isFloat, OpFOrdLessThan, OpSLessThan)
	case ir.OpLe:
		opcode = pickOp(isFloat, OpFOrdLessThanEqual, OpSLessThanEqual)
	case ir.OpGt:
		opcode = pickOp(isFloat, OpFOrdGreaterThan, OpSGreaterThan)
	case ir.OpGe:
		opcode = pickOp(isFloat, OpFOrdGreaterThanEqual, OpSGreaterThanEqual)
	case ir.OpAnd:
		opcode = OpLogicalAnd
	case ir.OpOr:
		opcode = OpLogicalOr
	default:
		panic(stageErrf("unsupported primop %v", p.Op))
	}
	return e.mb.AddBinaryOp(opcode, resType, l, r)
}

func (e *Emitter) emitIf(n *ir.Node) []uint32 {
	p := n.Payload.(ir.If)
	cond := e.valueID(p.Cond)
	slots, types := e.yieldSlots[n], e.yieldTypeIDs[n]

	mergeLabel := e.mb.AllocID()
	trueLabel := e.mb.AllocID()
	falseLabel := mergeLabel
	if p.IfFalse != nil {
		falseLabel = e.mb.AllocID()
	}

	e.mb.AddSelectionMerge(mergeLabel, SelectionControlNone)
	e.mb.AddBranchConditional(cond, trueLabel, falseLabel)

	e.pushMergeFrame(mergeFrame{mergeLabel: mergeLabel, resultSlots: slots, resultTypes: types})
	e.addLabelID(trueLabel)
	e.emitBlockBody(p.IfTrue)
	if p.IfFalse != nil {
		e.addLabelID(falseLabel)
		e.emitBlockBody(p.IfFalse)
	}
	e.popMergeFrame()

	e.addLabelID(mergeLabel)
	return e.loadYieldSlots(slots, types)
}

func (e *Emitter) emitMatch(n *ir.Node) []uint32 {
	p := n.Payload.(ir.Match)
	inspect := e.valueID(p.Inspect)
	slots, types := e.yieldSlots[n], e.yieldTypeIDs[n]

	mergeLabel := e.mb.AllocID()
	defaultLabel := e.mb.AllocID()
	caseLabels := make([]uint32, len(p.Cases.Items))
	for i := range caseLabels {
		caseLabels[i] = e.mb.AllocID()
	}

	e.mb.AddSelectionMerge(mergeLabel, SelectionControlNone)
	e.addSwitch(inspect, defaultLabel, p.Literals.Items, caseLabels)

	e.pushMergeFrame(mergeFrame{mergeLabel: mergeLabel, resultSlots: slots, resultTypes: types})
	for i, c := range p.Cases.Items {
		e.addLabelID(caseLabels[i])
		e.emitBlockBody(c)
	}
	e.addLabelID(defaultLabel)
	e.emitBlockBody(p.Default)
	e.popMergeFrame()

	e.addLabelID(mergeLabel)
	return e.loadYieldSlots(slots, types)
}

func (e *Emitter) emitLoop(n *ir.Node) []uint32 {
	p := n.Payload.(ir.Loop)
	if len(p.Params.Items) != 0 {
		panic(stageErrf("loop parameters are not supported by this emitter; no surface syntax produces them"))
	}
	slots, types := e.yieldSlots[n], e.yieldTypeIDs[n]

	headerLabel := e.mb.AllocID()
	bodyLabel := e.mb.AllocID()
	continueLabel := e.mb.AllocID()
	mergeLabel := e.mb.AllocID()

	e.addBranch(headerLabel)
	e.addLabelID(headerLabel)
	e.mb.AddLoopMerge(mergeLabel, continueLabel, LoopControlNone)
	e.addBranch(bodyLabel)
	e.addLabelID(bodyLabel)

	e.pushMergeFrame(mergeFrame{isLoop: true, mergeLabel: mergeLabel, continueLabel: continueLabel, resultSlots: slots, resultTypes: types})
	e.emitBlockBody(p.Body)
	e.popMergeFrame()

	e.addLabelID(continueLabel)
	e.addBranch(headerLabel)
	e.addLabelID(mergeLabel)
	return e.loadYieldSlots(slots, types)
}

func (e *Emitter) loadYieldSlots(slots, types []uint32) []uint32 {
	if len(slots) == 0 {
		return nil
	}
	out := make([]uint32, len(slots))
	for i := range slots {
		out[i] = e.mb.AddLoad(types[i], slots[i])
	}
	return out
}

func (e *Emitter) pushMergeFrame(f mergeFrame) { e.merges = append(e.merges, f) }
func (e *Emitter) popMergeFrame()              { e.merges = e.merges[:len(e.merges)-1] }

func (e *Emitter) topMergeFrame() mergeFrame {
	if len(e.merges) == 0 {
		panic(stageErrf("merge construct outside of any structured selection or loop"))
	}
	return e.merges[len(e.merges)-1]
}

func (e *Emitter) nearestLoopFrame() mergeFrame {
	for i := len(e.merges) - 1; i >= 0; i-- {
		if e.merges[i].isLoop {
			return e.merges[i]
		}
	}
	panic(stageErrf("break or continue outside of a loop"))
}

func (e *Emitter) storeYield(slots []uint32, args []*ir.Node) {
	for i, slot := range slots {
		e.mb.AddStore(slot, e.valueID(args[i]))
	}
}

func (e *Emitter) emitTerminator(n *ir.Node) {
	switch n.Tag {
	case ir.TagReturn:
		r := n.Payload.(ir.Return)
		switch len(r.Values.Items) {
		case 0:
			e.mb.AddReturn()
		case 1:
			e.mb.AddReturnValue(e.valueID(r.Values.Items[0]))
		default:
			panic(stageErrf("returning more than one value is not supported by this emitter"))
		}
	case ir.TagBranch:
		e.emitBranch(n.Payload.(ir.Branch))
	case ir.TagJoin:
		j := n.Payload.(ir.Join)
		if j.IsIndirect {
			panic(stageErrf("indirect join terminator reached SPIR-V emission unlowered"))
		}
		if len(j.Args.Items) != 0 {
			panic(stageErrf("join arguments are not supported by this emitter"))
		}
		e.addBranch(e.continuationLabel(j.Target))
	case ir.TagCallc:
		panic(stageErrf("call-with-continuation terminator reached SPIR-V emission unlowered"))
	case ir.TagUnreachable:
		e.addUnreachable()
	case ir.TagMergeConstruct:
		e.emitMergeConstruct(n)
	default:
		panic(stageErrf("terminator %v reached SPIR-V emission unlowered", n.Tag))
	}
}

// emitBranch maps the two statically-known Branch shapes straight to
// OpBranch/OpBranchConditional (spec §4.7.5). BranchSwitch is not
// supported and is reported as an ErrUnlowered staging error, as is any
// BranchTailcall: lower_tailcalls rewrites the tail calls inside
// entry-point and continuation leaves into dispatcher-token stores, and a
// tail call anywhere else reaches here unlowered.
func (e *Emitter) emitBranch(b ir.Branch) {
	if len(b.Args.Items) != 0 {
		panic(stageErrf("branch arguments are not supported by this emitter"))
	}
	switch b.Kind {
	case ir.BranchJump:
		e.addBranch(e.continuationLabel(b.Target))
	case ir.BranchIfElse:
		e.mb.AddBranchConditional(e.valueID(b.Cond), e.continuationLabel(b.TrueTarget), e.continuationLabel(b.FalseTarget))
	case ir.BranchSwitch:
		panic(stageErrf("switch branches are not supported by this emitter"))
	default: // BranchTailcall
		panic(stageErrf("tail call terminator reached SPIR-V emission unlowered"))
	}
}

func (e *Emitter) emitMergeConstruct(n *ir.Node) {
	m := n.Payload.(ir.MergeConstruct)
	switch m.Kind {
	case ir.MergeSelection:
		f := e.topMergeFrame()
		e.storeYield(f.resultSlots, m.Args.Items)
		e.addBranch(f.mergeLabel)
	case ir.MergeBreak:
		f := e.nearestLoopFrame()
		e.storeYield(f.resultSlots, m.Args.Items)
		e.addBranch(f.mergeLabel)
	case ir.MergeContinue:
		f := e.nearestLoopFrame()
		e.storeYield(f.resultSlots, m.Args.Items)
		e.addBranch(f.continueLabel)
	}
}

// valueID resolves any value-producing node (a literal, a variable
// reference, a global, a named constant) to the SPIR-V ID that holds it,
// materializing module-level constants the first time they're seen.
func (e *Emitter) valueID(n *ir.Node) uint32 {
	switch payload := n.Payload.(type) {
	case ir.IntLiteral:
		return e.intLiteralID(n, payload)
	case ir.FloatLiteral:
		return e.floatLiteralID(n, payload)
	case ir.UntypedNumber:
		panic(stageErrf("untyped numeric literal reached SPIR-V emission; Infer should have narrowed it"))
	case ir.Unbound:
		panic(stageErrf("unresolved identifier %q reached SPIR-V emission; Bind should have resolved it", derefOr(payload.Name, "<anonymous>")))
	case ir.Variable:
		if id, ok := e.localIDs[n]; ok {
			return id
		}
		panic(stageErrf("variable %q referenced before its defining instruction was emitted", derefOr(payload.Name, "<anonymous>")))
	case ir.FnAddr:
		panic(stageErrf("FnAddr reached SPIR-V emission; LowerTailcalls should have rewritten it to an int literal token"))
	}
	switch n.Tag {
	case ir.TagTrue:
		return e.boolConst(n, true)
	case ir.TagFalse:
		return e.boolConst(n, false)
	case ir.TagGlobalVariable:
		return e.globalID(n)
	case ir.TagConstant:
		return e.constantID(n)
	case ir.TagFunction:
		id, ok := e.fnIDs[n]
		if !ok {
			panic(stageErrf("reference to an undeclared function"))
		}
		return id
	}
	panic(stageErrf("value of unexpected tag %v reached SPIR-V emission", n.Tag))
}

func derefOr(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}

func (e *Emitter) boolConst(n *ir.Node, v bool) uint32 {
	if id, ok := e.constIDs[n]; ok {
		return id
	}
	boolType := e.typeID(n.Type)
	id := e.mb.AllocID()
	b := NewInstructionBuilder()
	b.AddWord(boolType)
	b.AddWord(id)
	opcode := OpConstantFalse
	if v {
		opcode = OpConstantTrue
	}
	e.mb.types = append(e.mb.types, b.Build(opcode))
	e.constIDs[n] = id
	return id
}

func (e *Emitter) intLiteralID(n *ir.Node, lit ir.IntLiteral) uint32 {
	if id, ok := e.constIDs[n]; ok {
		return id
	}
	typeID := e.typeID(n.Type)
	var id uint32
	if lit.Width == 64 {
		v := uint64(lit.Value)
		id = e.mb.AddConstant(typeID, uint32(v), uint32(v>>32))
	} else {
		id = e.mb.AddConstant(typeID, uint32(lit.Value))
	}
	e.constIDs[n] = id
	return id
}

func (e *Emitter) floatLiteralID(n *ir.Node, lit ir.FloatLiteral) uint32 {
	if id, ok := e.constIDs[n]; ok {
		return id
	}
	typeID := e.typeID(n.Type)
	var id uint32
	switch lit.Width {
	case 32:
		id = e.mb.AddConstantFloat32(typeID, float32(lit.Value))
	case 64:
		id = e.mb.AddConstantFloat64(typeID, lit.Value)
	default:
		panic(stageErrf("%d-bit float constants are not supported by this emitter", lit.Width))
	}
	e.constIDs[n] = id
	return id
}

func (e *Emitter) globalID(n *ir.Node) uint32 {
	if id, ok := e.globalIDs[n]; ok {
		return id
	}
	g := n.Payload.(ir.GlobalVariable)
	ptrType := e.typeID(n.Type)
	sc := storageClassFor(g.Space)
	var id uint32
	if g.Init != nil {
		id = e.mb.AddVariableWithInit(ptrType, sc, e.valueID(g.Init))
	} else {
		id = e.mb.AddVariable(ptrType, sc)
	}
	if e.debug && g.Name != nil {
		e.mb.AddName(id, *g.Name)
	}
	e.globalIDs[n] = id
	return id
}

func (e *Emitter) constantID(n *ir.Node) uint32 {
	if id, ok := e.constIDs[n]; ok {
		return id
	}
	c := n.Payload.(ir.Constant)
	id := e.valueID(c.Value)
	if e.debug && c.Name != nil {
		e.mb.AddName(id, *c.Name)
	}
	e.constIDs[n] = id
	return id
}
