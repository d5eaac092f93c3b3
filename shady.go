// Package shady is a pure Go compiler for the toy structured-control-flow
// shading language described by spec.md, compiling source text straight
// to a SPIR-V binary module.
//
// The compilation pipeline is:
//
//	frontend.Parse (source -> ir.Node, Unbound names left for Bind)
//	passes.RunBind (resolve Unbound names to their declarations)
//	passes.RunInfer (narrow UntypedNumber, infer PrimOp/Call/If/Match/Loop types)
//	passes.RunLowerTailcalls (Callc/indirect Join -> dispatcher, spec §4.7)
//	spirv.Emit (ir.Node Root -> SPIR-V words)
//
// Each pass rewrites from one ir.Arena into a fresh one (rewrite.New),
// the same source-arena/dest-arena split the teacher's wgsl->ir lowering
// uses, so no pass ever mutates a node another stage has already
// interned.
package shady

import (
	"fmt"
	"os"

	"github.com/gpuir/shady/frontend"
	"github.com/gpuir/shady/ir"
	"github.com/gpuir/shady/passes"
	"github.com/gpuir/shady/printer"
	"github.com/gpuir/shady/spirv"
)

// Config configures compilation, in the shape of naga.CompileOptions.
type Config struct {
	// FrontEnd selects whether source is run through the bundled front
	// end (frontend.Parse, spec.md §6.3) at all. False is for a caller
	// that already holds a bound+inferred ir.Node Root of its own (a
	// driver embedding shady with a different surface syntax) and wants
	// only LowerTailcalls+Emit; LowerAndEmit is the entry point for that
	// case, since CompileWithConfig's signature only accepts source text.
	FrontEnd bool

	// Debug requests OpName debug symbols in the emitted module
	// (spirv.Options.Debug) and ShowAddresses-style verbosity from
	// anything that prints intermediate IR for diagnostics.
	Debug bool

	// Validate runs ir.Validate's structural self-checks against the
	// lowered IR before handing it to the SPIR-V emitter, the same
	// Validate-before-Generate step naga.CompileWithOptions takes.
	Validate bool
}

// DefaultConfig returns sensible default options.
func DefaultConfig() Config {
	return Config{FrontEnd: true, Debug: false, Validate: true}
}

// Compile compiles source to a SPIR-V binary module using DefaultConfig.
func Compile(source []byte) ([]byte, error) {
	return CompileWithConfig(source, DefaultConfig())
}

// CompileWithConfig runs the full parse/bind/infer/lower/emit pipeline
// over source, returning the compiled SPIR-V binary or the first stage
// error encountered. cfg.FrontEnd must be true, since source is raw
// text here; a caller that wants to skip the bundled front end should
// build its own ir.Node Root and call LowerAndEmit directly.
func CompileWithConfig(source []byte, cfg Config) ([]byte, error) {
	if !cfg.FrontEnd {
		return nil, fmt.Errorf("CompileWithConfig requires Config.FrontEnd; use LowerAndEmit for a pre-built IR Root")
	}

	parseArena := ir.NewArena()
	root, err := frontend.Parse(parseArena, string(source))
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}

	bindArena := ir.NewArena()
	root, err = passes.RunBind(parseArena, bindArena, root)
	if err != nil {
		return nil, fmt.Errorf("bind error: %w", err)
	}

	inferArena := ir.NewArena()
	root, err = passes.RunInfer(bindArena, inferArena, root)
	if err != nil {
		return nil, fmt.Errorf("type inference error: %w", err)
	}

	return LowerAndEmit(inferArena, root, cfg)
}

// LowerAndEmit runs RunLowerTailcalls and SPIR-V emission over a
// bound+inferred ir.Node Root, honoring cfg.Debug and cfg.Validate. It
// is the second half of CompileWithConfig's pipeline, split out for
// callers whose Config.FrontEnd is false and who therefore built root
// themselves (e.g. a different surface syntax reusing this package's
// middle and back end).
func LowerAndEmit(srcArena *ir.Arena, root *ir.Node, cfg Config) ([]byte, error) {
	lowerArena := ir.NewArena()
	root, err := passes.RunLowerTailcalls(srcArena, lowerArena, root)
	if err != nil {
		return nil, fmt.Errorf("tailcall lowering error: %w", err)
	}

	if cfg.Validate {
		validationErrors, err := ir.Validate(root)
		if err != nil {
			return nil, fmt.Errorf("validation error: %w", err)
		}
		if len(validationErrors) > 0 {
			return nil, fmt.Errorf("validation failed: %w", validationErrors[0])
		}
	}

	if cfg.Debug {
		fmt.Fprintln(os.Stderr, printer.Print(root, printer.Options{ShowAddresses: true}))
	}

	words, err := spirv.Emit(root, spirv.Options{Debug: cfg.Debug})
	if err != nil {
		return nil, fmt.Errorf("SPIR-V emission error: %w", err)
	}
	return words, nil
}
