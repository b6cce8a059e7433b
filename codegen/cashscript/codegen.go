// Package cashscript compiles block graphs into CashScript contract
// source. The compiler is a pure function over an immutable graph
// value: identical graphs always produce byte-identical source and
// constructor-argument lists.
package cashscript

import (
	"fmt"
	"strings"

	"github.com/cashblocks/go-cashblocks/blocks"
)

const pragma = "pragma cashscript ^0.8.0;"

// defaultContractName is used when the workspace carries no name.
const defaultContractName = "CashBlocks"

// CompileResult pairs the generated source with the ordered
// constructor-argument list. The pairing is meaningless unless Err is
// empty; callers must check Err first. Source is always empty on
// failure so a partial result can never be used by accident.
type CompileResult struct {
	Source string           `json:"source"`
	Args   []ConstructorArg `json:"constructorArgs"`
	Err    string           `json:"error,omitempty"`
}

// unlockMode selects the unlocking-parameter signature of the single
// entry function.
type unlockMode int

const (
	modePubKey unlockMode = iota
	modeSingleSig
	modeMultiSig
)

// Compile validates, sequences and assembles the graph into contract
// source. It performs no I/O and is safe to call concurrently.
func Compile(g *blocks.BlockGraph) *CompileResult {
	if result := blocks.Validate(g); !result.Valid {
		return &CompileResult{Err: strings.Join(result.Messages(), "; ")}
	}

	seq := blocks.Sequence(g)

	// Constructor-argument collection pass: harvest every reachable
	// block's arguments, deduplicating by name, first occurrence wins.
	args, err := collectArgs(seq)
	if err != nil {
		return &CompileResult{Err: err.Error()}
	}

	owned := blocks.BranchOwned(g, seq)
	mode, required, withPreimage := decideUnlock(seq)

	a := &assembler{graph: g}
	slot := 0
	for _, n := range seq {
		if owned[n.ID] {
			continue
		}
		slot, err = a.emitNode(n, 2, slot)
		if err != nil {
			return &CompileResult{Err: err.Error()}
		}
	}

	var src strings.Builder
	src.WriteString(pragma + "\n\n")
	src.WriteString(fmt.Sprintf("contract %s(%s) {\n", contractName(g.Name), renderArgs(args)))
	src.WriteString(fmt.Sprintf("    function spend(%s) {\n", renderUnlockParams(mode, required, withPreimage)))
	if mode == modeSingleSig && !hasAddressCheck(seq) {
		src.WriteString("        require(checkSig(s, pk));\n")
	}
	src.WriteString(a.body.String())
	src.WriteString("    }\n")
	src.WriteString("}\n")

	return &CompileResult{Source: src.String(), Args: args}
}

// collectArgs walks the ordered sequence once, asking the template
// library for each node's constructor arguments. The output slot does
// not influence argument derivation, so zero is passed throughout.
func collectArgs(seq []*blocks.BlockNode) ([]ConstructorArg, error) {
	args := make([]ConstructorArg, 0)
	seen := make(map[string]bool)
	for _, n := range seq {
		frag, err := templateFor(n, 0)
		if err != nil {
			return nil, err
		}
		if frag == nil {
			continue
		}
		for _, arg := range frag.args {
			if seen[arg.Name] {
				continue
			}
			seen[arg.Name] = true
			args = append(args, arg)
		}
	}
	return args, nil
}

// decideUnlock chooses the unlocking-parameter signature. A hash-lock
// trigger prepends a preimage parameter; a multisig trigger requires
// one signature per required signer; otherwise the presence of any
// Action or address-check block forces single-signature mode, and a
// bare public key is the fallback.
func decideUnlock(seq []*blocks.BlockNode) (mode unlockMode, required int, withPreimage bool) {
	mode = modePubKey
	for _, n := range seq {
		switch n.Type {
		case blocks.HashPreimage:
			withPreimage = true
		case blocks.MultiSig:
			if mode != modeMultiSig {
				mode = modeMultiSig
				required = n.Params.Required
				if required < 1 {
					required = 1
				}
			}
		case blocks.AddressCheck:
			if mode == modePubKey {
				mode = modeSingleSig
			}
		default:
			if mode == modePubKey {
				if c, err := n.Category(); err == nil && c == blocks.CategoryAction {
					mode = modeSingleSig
				}
			}
		}
	}
	return mode, required, withPreimage
}

func hasAddressCheck(seq []*blocks.BlockNode) bool {
	for _, n := range seq {
		if n.Type == blocks.AddressCheck {
			return true
		}
	}
	return false
}

func renderUnlockParams(mode unlockMode, required int, withPreimage bool) string {
	var params []string
	if withPreimage {
		params = append(params, "bytes preimage")
	}
	switch mode {
	case modeMultiSig:
		for i := 0; i < required; i++ {
			params = append(params, fmt.Sprintf("sig s%d", i))
		}
	case modeSingleSig:
		params = append(params, "sig s", "pubkey pk")
	default:
		params = append(params, "pubkey pk")
	}
	return strings.Join(params, ", ")
}

func renderArgs(args []ConstructorArg) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprintf("%s %s", a.Type, a.Name)
	}
	return strings.Join(parts, ", ")
}

// contractName strips separators the contract grammar does not allow.
func contractName(name string) string {
	name = strings.ReplaceAll(name, "-", "")
	name = strings.ReplaceAll(name, "_", "")
	name = strings.ReplaceAll(name, " ", "")
	if name == "" {
		return defaultContractName
	}
	return name
}

// assembler walks the ordered, non-branch-owned nodes and concatenates
// the contract body, tracking the output-slot counter. The counter is
// threaded explicitly through every call so recursive branch assembly
// can never observe stale state.
type assembler struct {
	graph *blocks.BlockGraph
	body  strings.Builder
}

func (a *assembler) writeLine(depth int, line string) {
	a.body.WriteString(strings.Repeat("    ", depth))
	a.body.WriteString(line)
	a.body.WriteString("\n")
}

// emitNode emits one node at the given indentation depth and returns
// the slot counter after it. Non-conditional Action nodes claim the
// current slot and advance the counter, except split_percent, which
// constrains two slots without claiming one. Conditional nodes emit an
// if/else wrapper; both arms start from the same slot value because
// they are alternative single-execution paths addressing the same
// outputs.
func (a *assembler) emitNode(n *blocks.BlockNode, depth, slot int) (int, error) {
	if n.Type == blocks.IfElse {
		cond := resolveCondition(a.graph, n.Params.CondRoot)
		a.writeLine(depth, fmt.Sprintf("if (%s) {", cond))
		trueEnd, err := a.emitArm(n.WhenTrue, depth+1, slot)
		if err != nil {
			return slot, err
		}
		a.writeLine(depth, "} else {")
		falseEnd, err := a.emitArm(n.WhenFalse, depth+1, slot)
		if err != nil {
			return slot, err
		}
		a.writeLine(depth, "}")
		if falseEnd > trueEnd {
			trueEnd = falseEnd
		}
		return trueEnd, nil
	}

	frag, err := templateFor(n, slot)
	if err != nil {
		return slot, err
	}
	if frag == nil {
		return slot, nil
	}
	for _, line := range frag.code {
		a.writeLine(depth, line)
	}

	if c, err := n.Category(); err == nil && c == blocks.CategoryAction && n.Type != blocks.SplitPercent {
		slot++
	}
	return slot, nil
}

// emitArm assembles one branch arm: a depth-first pre-order walk of the
// nodes owned by the arm, with an arm-local visited set. Arms of nested
// conditionals are not collected here; the nested emitNode call emits
// them inside its own wrapper.
func (a *assembler) emitArm(heads []string, depth, slot int) (int, error) {
	visited := make(map[string]bool)
	var order []*blocks.BlockNode

	var collect func(id string)
	collect = func(id string) {
		if visited[id] {
			return
		}
		n := a.graph.Node(id)
		if n == nil {
			return
		}
		visited[id] = true
		order = append(order, n)
		if n.Type == blocks.IfElse {
			for _, child := range n.Next {
				collect(child)
			}
			return
		}
		for _, child := range n.Children() {
			collect(child)
		}
	}
	for _, h := range heads {
		collect(h)
	}

	var err error
	for _, n := range order {
		slot, err = a.emitNode(n, depth, slot)
		if err != nil {
			return slot, err
		}
	}
	return slot, nil
}
