package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/cashblocks/go-cashblocks/blocks"
	"github.com/cashblocks/go-cashblocks/codegen/cashscript"
	"github.com/cashblocks/go-cashblocks/parser"
)

func compile(args []string) error {
	fs := flag.NewFlagSet("compile", flag.ExitOnError)
	outputFile := fs.String("output", "", "Write contract source to file instead of stdout")
	outputJSON := fs.Bool("json", false, "Output the full compile result (source + constructor arguments) as JSON")
	showArgs := fs.Bool("args", false, "List the constructor arguments the contract expects at deployment")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: cashblocks compile <workspace.json|workspace.hcl> [options]

Compile a block-graph workspace into CashScript contract source.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Compile to stdout
  cashblocks compile vault.json

  # Compile an HCL workspace to a file
  cashblocks compile vault.hcl --output vault.cash

  # Show deployment arguments
  cashblocks compile vault.json --args
`)
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return fmt.Errorf("workspace file required")
	}

	g, err := loadWorkspace(fs.Arg(0))
	if err != nil {
		return err
	}

	result := cashscript.Compile(g)
	if result.Err != "" {
		return fmt.Errorf("compile: %s", result.Err)
	}

	if *outputJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	if *outputFile != "" {
		if err := os.WriteFile(*outputFile, []byte(result.Source), 0644); err != nil {
			return fmt.Errorf("write %s: %w", *outputFile, err)
		}
		fmt.Printf("Wrote %d bytes to %s\n", len(result.Source), *outputFile)
	} else {
		fmt.Print(result.Source)
	}

	if *showArgs {
		if len(result.Args) == 0 {
			fmt.Println("No constructor arguments: all values are inlined.")
		} else {
			fmt.Printf("Constructor arguments (%d):\n", len(result.Args))
			for i, a := range result.Args {
				fmt.Printf("  %d. %s %s\n", i+1, a.Type, a.Name)
			}
		}
	}

	return nil
}

func loadWorkspace(path string) (*blocks.BlockGraph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workspace: %w", err)
	}
	if strings.HasSuffix(path, ".hcl") {
		return parser.FromHCL(path, data)
	}
	return parser.FromJSON(data)
}
