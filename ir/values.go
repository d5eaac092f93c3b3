package ir

import "math"

// IntLiteral is the payload for a fixed-width integer literal.
type IntLiteral struct {
	Value int64
	Width uint8
}

// Int32 returns a 32-bit signed IntLiteral node, the most common literal
// shape used by the lowering passes (fn-pointer tokens, array indices).
func (a *Arena) Int32(value int32) *Node {
	return a.IntLiteralNode(int64(value), 32)
}

// IntLiteralNode returns the canonical IntLiteral(value, width) node,
// qualified uniform (a literal is the same in every invocation).
func (a *Arena) IntLiteralNode(value int64, width uint8) *Node {
	key := newKey(TagIntLiteral).i64(value).u8(width).bytes()
	return a.internNode(key, func() *Node {
		return &Node{
			Tag:     TagIntLiteral,
			Type:    a.Uniform(a.IntType(width)),
			Payload: IntLiteral{Value: value, Width: width},
		}
	})
}

// FloatLiteral is the payload for a fixed-width floating-point literal.
type FloatLiteral struct {
	Value float64
	Width uint8
}

// FloatLiteralNode returns the canonical FloatLiteral(value, width) node,
// qualified uniform.
func (a *Arena) FloatLiteralNode(value float64, width uint8) *Node {
	key := newKey(TagFloatLiteral).i64(int64(math.Float64bits(value))).u8(width).bytes()
	return a.internNode(key, func() *Node {
		return &Node{
			Tag:     TagFloatLiteral,
			Type:    a.Uniform(a.FloatType(width)),
			Payload: FloatLiteral{Value: value, Width: width},
		}
	})
}

// True returns the canonical boolean literal `true`.
func (a *Arena) True() *Node {
	key := newKey(TagTrue).bytes()
	return a.internNode(key, func() *Node {
		return &Node{Tag: TagTrue, Type: a.Uniform(a.BoolType())}
	})
}

// False returns the canonical boolean literal `false`.
func (a *Arena) False() *Node {
	key := newKey(TagFalse).bytes()
	return a.internNode(key, func() *Node {
		return &Node{Tag: TagFalse, Type: a.Uniform(a.BoolType())}
	})
}

// UntypedNumber is the payload for a numeral the parser could not yet
// assign a concrete width/signedness to. The Infer pass narrows these to
// IntLiteral or a float literal encoding based on context (spec §6.1).
type UntypedNumber struct {
	IntValue   int64
	FloatValue float64
	IsFloat    bool
}

// UntypedNumberNode returns an interned UntypedNumber placeholder. It has
// no Type (Type is assigned once Infer narrows it); Tag alone marks it as
// not-yet-typed so Infer can find every occurrence by a single pattern
// match (spec §6.1: "a well-typed IR contains neither [Unbound nor
// UntypedNumber]").
func (a *Arena) UntypedNumberNode(raw string) *Node {
	intVal, floatVal, isFloat := parseNumber(raw)
	key := newKey(TagUntypedNumber).i64(intVal).i64(int64(math.Float64bits(floatVal))).boolean(isFloat).bytes()
	return a.internNode(key, func() *Node {
		return &Node{
			Tag:     TagUntypedNumber,
			Payload: UntypedNumber{IntValue: intVal, FloatValue: floatVal, IsFloat: isFloat},
		}
	})
}

func parseNumber(raw string) (intVal int64, floatVal float64, isFloat bool) {
	for _, c := range raw {
		if c == '.' || c == 'e' || c == 'E' {
			isFloat = true
			break
		}
	}
	if isFloat {
		floatVal = parseFloatOrZero(raw)
		return 0, floatVal, true
	}
	intVal = parseIntOrZero(raw)
	return intVal, 0, false
}

func parseIntOrZero(s string) int64 {
	var v int64
	neg := false
	for i, c := range s {
		if i == 0 && c == '-' {
			neg = true
			continue
		}
		if c < '0' || c > '9' {
			break
		}
		v = v*10 + int64(c-'0')
	}
	if neg {
		v = -v
	}
	return v
}

func parseFloatOrZero(s string) float64 {
	var intPart, fracPart int64
	var fracDigits int
	neg := false
	i := 0
	if i < len(s) && s[i] == '-' {
		neg = true
		i++
	}
	for ; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		intPart = intPart*10 + int64(s[i]-'0')
	}
	if i < len(s) && s[i] == '.' {
		i++
		for ; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
			fracPart = fracPart*10 + int64(s[i]-'0')
			fracDigits++
		}
	}
	v := float64(intPart)
	if fracDigits > 0 {
		div := 1.0
		for k := 0; k < fracDigits; k++ {
			div *= 10
		}
		v += float64(fracPart) / div
	}
	if neg {
		v = -v
	}
	return v
}

// Variable is the payload for a bound variable: a unique arena-scoped ID
// plus the name it was declared under (names are not unique; IDs are,
// spec §3.4 invariant 4).
type Variable struct {
	Name *string
	ID   uint32
}

// NewVariable allocates a fresh variable ID and returns a Variable node
// of the given qualified type. Unlike type constructors this never
// dedups against an existing node: every call introduces a new binding.
func (a *Arena) NewVariable(name string, qtype *Node) *Node {
	id := a.FreshID()
	interned := a.InternString(name)
	key := newKey(TagVariable).u32(id).bytes()
	return a.internNode(key, func() *Node {
		return &Node{Tag: TagVariable, Type: qtype, Payload: Variable{Name: interned, ID: id}}
	})
}

// Unbound is the payload for an identifier the parser has not yet
// resolved to a declaration (spec §6.1). The Bind pass replaces every
// Unbound with the Variable it lexically denotes.
type Unbound struct {
	Name *string
}

// UnboundNode returns an interned Unbound{name} placeholder.
func (a *Arena) UnboundNode(name string) *Node {
	interned := a.InternString(name)
	key := newKey(TagUnbound).str(interned).bytes()
	return a.internNode(key, func() *Node {
		return &Node{Tag: TagUnbound, Payload: Unbound{Name: interned}}
	})
}

// FnAddr is the payload for a reference to a function's address, the
// value lower_tailcalls rewrites into an emulated i32 function pointer.
type FnAddr struct {
	Fn *Node
}

// FnAddrNode returns the address-of value for a Function node, typed as
// a uniform pointer to the function's Fn type in ProgramCode space.
func (a *Arena) FnAddrNode(fn *Node) *Node {
	if fn.Tag != TagFunction {
		panic(errf(ErrMalformedNode, "FnAddr requires a Function node, got %v", fn.Tag))
	}
	key := newKey(TagFnAddr).node(fn).bytes()
	return a.internNode(key, func() *Node {
		fnType := Unqualify(fn.Type)
		return &Node{
			Tag:     TagFnAddr,
			Type:    a.Uniform(a.PtrType(SpaceProgramCode, fnType)),
			Payload: FnAddr{Fn: fn},
		}
	})
}

// Constant is the payload for a module-scope named constant.
type Constant struct {
	Name  *string
	Value *Node
}

// ConstantNode returns a Constant{name, value} declaration node, typed
// after its value (constants are always uniform: every invocation agrees).
func (a *Arena) ConstantNode(name string, value *Node) *Node {
	if value.Tag.IsType() {
		panic(errf(ErrMalformedNode, "constant value must not be a type node"))
	}
	interned := a.InternString(name)
	return &Node{
		Tag:     TagConstant,
		Type:    a.Uniform(Unqualify(value.Type)),
		Payload: Constant{Name: interned, Value: value},
	}
}

// GlobalVariable is the payload for a module-scope variable.
type GlobalVariable struct {
	Name  *string
	Space AddressSpace
	Init  *Node // optional
}

// GlobalVariableNode declares a global of the given pointee type and
// address space. Its inferred type is a pointer to valueType in Space;
// the Input space produces a varying pointer, every other space a
// uniform one.
func (a *Arena) GlobalVariableNode(name string, valueType *Node, space AddressSpace, init *Node) *Node {
	requireType(valueType)
	interned := a.InternString(name)
	ptrType := a.PtrType(space, valueType)
	qualified := a.Uniform(ptrType)
	if space == SpaceInput {
		qualified = a.Varying(ptrType)
	}
	return &Node{
		Tag:     TagGlobalVariable,
		Type:    qualified,
		Payload: GlobalVariable{Name: interned, Space: space, Init: init},
	}
}

// FnAttrs captures a Function's entry-point/continuation attributes.
type FnAttrs struct {
	IsEntryPoint   bool
	IsContinuation bool
	Stage          ShaderStage
}

// ShaderStage names the pipeline stage an entry point runs in.
type ShaderStage uint8

const (
	StageCompute ShaderStage = iota
	StageVertex
	StageFragment
)

// Function is the payload for a function or continuation declaration.
// Block is nil until the declaration's body has been filled in (the
// rewriter's two-phase header/body protocol, spec §4.3).
type Function struct {
	Attrs   FnAttrs
	Name    *string
	Params  *NodeList // Variable nodes
	Returns *NodeList // type nodes
	Block   *Node
}

// NewFunctionHeader creates a Function declaration with its signature
// filled in but Block left nil, for two-phase rewriting (a pass
// registers the header as "processed" before visiting the body, so
// self- and mutually-recursive calls resolve without cycles in the
// rewrite callback itself).
func (a *Arena) NewFunctionHeader(attrs FnAttrs, name string, params []*Node, returns []*Node) *Node {
	for _, p := range params {
		if p.Tag != TagVariable {
			panic(errf(ErrMalformedNode, "function parameter must be a Variable node"))
		}
	}
	for _, r := range returns {
		requireType(r)
	}
	interned := a.InternString(name)
	paramList := a.Nodes(params)
	returnList := a.Nodes(returns)
	paramTypes := make([]*Node, len(params))
	for i, p := range params {
		paramTypes[i] = Unqualify(p.Type)
	}
	fnType := a.FnType(paramTypes, returns, attrs.IsContinuation)
	return &Node{
		Tag:  TagFunction,
		Type: a.Uniform(fnType),
		Payload: Function{
			Attrs:   attrs,
			Name:    interned,
			Params:  paramList,
			Returns: returnList,
		},
	}
}

// SetBody fills in a function header's Block, completing the two-phase
// declaration protocol. fn must have come from NewFunctionHeader (or an
// equivalent) and not yet have a body.
func SetBody(fn *Node, block *Node) {
	if fn.Tag != TagFunction {
		panic(errf(ErrMalformedNode, "SetBody requires a Function node"))
	}
	payload := fn.Payload.(Function)
	payload.Block = block
	fn.Payload = payload
}
