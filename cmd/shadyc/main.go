// Command shadyc is the shady shader compiler CLI.
//
// Usage:
//
//	shadyc [options] <input>
//
// Examples:
//
//	shadyc shader.sdy                    # Compile to stdout
//	shadyc -o shader.spv shader.sdy      # Compile to SPIR-V file
//	shadyc -debug shader.sdy             # Compile with OpName debug info
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/gpuir/shady"
)

var (
	output      = flag.String("o", "", "output file (default: stdout)")
	debugFlag   = flag.Bool("debug", false, "include OpName debug info")
	validate    = flag.Bool("validate", true, "run structural validation before emission")
	versionFlag = flag.Bool("version", false, "print version")
)

func version() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			return info.Main.Version
		}
	}
	return "dev"
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if *versionFlag {
		fmt.Printf("shadyc version %s\n", version())
		return
	}

	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Error: no input file specified")
		usage()
		os.Exit(1)
	}

	source, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading file: %v\n", err)
		os.Exit(1)
	}

	cfg := shady.DefaultConfig()
	cfg.Debug = *debugFlag
	cfg.Validate = *validate
	words, err := shady.CompileWithConfig(source, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Compilation error: %v\n", err)
		os.Exit(1)
	}

	if *output != "" {
		if err := os.WriteFile(*output, words, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if _, err := os.Stdout.Write(words); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: shadyc [options] <input>\n\n")
	fmt.Fprintf(os.Stderr, "Options:\n")
	flag.PrintDefaults()
}
