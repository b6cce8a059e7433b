package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/cashblocks/go-cashblocks/blocks"
)

func validate(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	outputJSON := fs.Bool("json", false, "Output results as JSON")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: cashblocks validate <workspace.json|workspace.hcl> [options]

Check a workspace's structure without generating code.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Checks performed:
  - A trigger block is present and resolves to a block in the graph
  - At least one action block exists (a contract that enforces
    nothing is invalid)

Unreachable blocks are not errors: they are simply never compiled.
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

	result := blocks.Validate(g)

	if *outputJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	} else {
		fmt.Printf("Blocks: %d  Edges: %d  Actions: %d\n",
			result.Summary.Blocks, result.Summary.Edges, result.Summary.Actions)
		for _, issue := range result.Errors {
			fmt.Printf("  error: %s", issue.Message)
			if issue.Suggestion != "" {
				fmt.Printf(" (%s)", issue.Suggestion)
			}
			fmt.Println()
		}
		if result.Valid {
			fmt.Println("Workspace is valid.")
		}
	}

	if !result.Valid {
		return fmt.Errorf("workspace has %d error(s)", len(result.Errors))
	}
	return nil
}
