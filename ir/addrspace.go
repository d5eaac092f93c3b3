package ir

// AddressSpace enumerates the memory address spaces a Ptr type or
// GlobalVariable can live in (spec §3.3). Several "physical" spaces are
// expected to have been lowered away before SPIR-V emission; the emitter
// fails loudly if it still sees one (spec §4.7.2).
type AddressSpace uint8

const (
	SpaceGeneric AddressSpace = iota
	SpaceGlobalLogical
	SpaceSharedLogical
	SpacePrivateLogical
	SpaceFunctionLogical
	SpaceGlobalPhysical
	SpaceSharedPhysical
	SpaceSubgroupPhysical
	SpacePrivatePhysical
	SpaceInput
	SpaceOutput
	SpaceExternal
	SpaceProgramCode
)

func (s AddressSpace) String() string {
	switch s {
	case SpaceGeneric:
		return "generic"
	case SpaceGlobalLogical:
		return "global_logical"
	case SpaceSharedLogical:
		return "shared_logical"
	case SpacePrivateLogical:
		return "private_logical"
	case SpaceFunctionLogical:
		return "function_logical"
	case SpaceGlobalPhysical:
		return "global_physical"
	case SpaceSharedPhysical:
		return "shared_physical"
	case SpaceSubgroupPhysical:
		return "subgroup_physical"
	case SpacePrivatePhysical:
		return "private_physical"
	case SpaceInput:
		return "input"
	case SpaceOutput:
		return "output"
	case SpaceExternal:
		return "external"
	case SpaceProgramCode:
		return "program_code"
	default:
		return "unknown_space"
	}
}

// IsPhysical reports whether the address space is one of the physical
// spaces that the emitter requires to have been lowered away beforehand
// (spec §3.3, §4.7.2), i.e. everything except Generic/*Logical/Input/
// Output/External/ProgramCode.
func (s AddressSpace) IsPhysical() bool {
	switch s {
	case SpaceGlobalPhysical, SpaceSharedPhysical, SpaceSubgroupPhysical, SpacePrivatePhysical:
		return true
	default:
		return false
	}
}
