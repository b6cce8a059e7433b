package cashscript

import (
	"fmt"

	"github.com/cashblocks/go-cashblocks/blocks"
)

// comparisonOps are the operator symbols a compare block may carry.
var comparisonOps = map[string]bool{
	">": true, "<": true, ">=": true, "<=": true, "==": true,
}

// resolveCondition lowers the expression sub-graph rooted at id into a
// boolean CashScript expression for use inside a branch guard.
// Comparison nodes always reference the first transaction input's
// value; logic_and / logic_or recursively wrap their operand slots.
// Any other or absent node resolves to the literal "true", turning the
// branch into an unconditional one rather than failing the compile.
func resolveCondition(g *blocks.BlockGraph, id string) string {
	n := g.Node(id)
	if n == nil {
		return "true"
	}

	switch n.Type {
	case blocks.Compare:
		op := n.Params.Operator
		if !comparisonOps[op] {
			op = ">"
		}
		var threshold int64
		if n.Params.Amount != nil {
			threshold = *n.Params.Amount
		}
		return fmt.Sprintf("tx.inputs[0].value %s %d", op, threshold)

	case blocks.LogicAnd:
		left := resolveCondition(g, n.Params.Left)
		right := resolveCondition(g, n.Params.Right)
		return fmt.Sprintf("(%s && %s)", left, right)

	case blocks.LogicOr:
		left := resolveCondition(g, n.Params.Left)
		right := resolveCondition(g, n.Params.Right)
		return fmt.Sprintf("(%s || %s)", left, right)

	default:
		return "true"
	}
}
