package blocks

import "fmt"

// Issue represents a single validation finding.
type Issue struct {
	Severity   string   `json:"severity"` // "error", "warning"
	Category   string   `json:"category"` // "structure"
	Message    string   `json:"message"`
	Location   []string `json:"location,omitempty"` // affected block ids
	Suggestion string   `json:"suggestion,omitempty"`
}

// ValidationResult contains the result of validating a block graph.
type ValidationResult struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
	Summary  Summary `json:"summary"`
}

// Summary provides an overview of the validated graph.
type Summary struct {
	Blocks   int `json:"blocks"`
	Edges    int `json:"edges"`
	Actions  int `json:"actions"`
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
}

// Messages returns the error messages in report order.
func (r *ValidationResult) Messages() []string {
	out := make([]string, 0, len(r.Errors))
	for _, issue := range r.Errors {
		out = append(out, issue.Message)
	}
	return out
}

type validator struct {
	graph  *BlockGraph
	result *ValidationResult
}

// Validate checks the structural invariants a graph must satisfy before
// any code is emitted. Errors are accumulated rather than
// short-circuited, with one exception: a graph with no trigger is
// reported alone, since nothing else is well-defined without a root.
//
// Cycles, unreachable nodes and dangling edges are deliberately not
// errors; unreachable nodes are simply never emitted.
func Validate(g *BlockGraph) *ValidationResult {
	v := &validator{
		graph: g,
		result: &ValidationResult{
			Valid: true,
			Summary: Summary{
				Blocks: len(g.Nodes),
				Edges:  len(g.Edges()),
			},
		},
	}
	v.checkStructure()

	v.result.Valid = len(v.result.Errors) == 0
	v.result.Summary.Errors = len(v.result.Errors)
	v.result.Summary.Warnings = len(v.result.Warnings)
	return v.result
}

func (v *validator) checkStructure() {
	if v.graph.RootID == "" {
		v.addError("Contract has no trigger block", nil,
			"Add a trigger block to define when the contract can be spent")
		return
	}

	if v.graph.Node(v.graph.RootID) == nil {
		v.addError(fmt.Sprintf("Trigger block '%s' is not present in the graph", v.graph.RootID),
			[]string{v.graph.RootID}, "Reconnect the trigger block")
	}

	actions := 0
	for _, n := range v.graph.Nodes {
		if c, err := CategoryOf(n.Type); err == nil && c == CategoryAction {
			actions++
		}
	}
	v.result.Summary.Actions = actions
	if actions == 0 {
		v.addError("Contract has no action block", nil,
			"Add at least one action block so the contract enforces something")
	}
}

func (v *validator) addError(message string, location []string, suggestion string) {
	v.result.Errors = append(v.result.Errors, Issue{
		Severity:   "error",
		Category:   "structure",
		Message:    message,
		Location:   location,
		Suggestion: suggestion,
	})
}
