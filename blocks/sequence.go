package blocks

// Sequence orders the graph's nodes into an execution sequence: a
// depth-first pre-order traversal starting at the root, visiting each
// node's children left-to-right in recorded order. A visited set
// tolerates diamond shapes without duplicate emission. Nodes that are
// not reachable from the root are excluded, which also excludes them
// from code generation; that is intentional.
func Sequence(g *BlockGraph) []*BlockNode {
	root := g.Root()
	if root == nil {
		return nil
	}

	var ordered []*BlockNode
	visited := make(map[string]bool)

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		n := g.Node(id)
		if n == nil {
			return
		}
		visited[id] = true
		ordered = append(ordered, n)
		for _, child := range n.Children() {
			visit(child)
		}
	}
	visit(g.RootID)

	return ordered
}

// BranchOwned marks every node reachable inside either arm of any
// if_else node in seq as branch-owned. Branch-owned nodes are skipped
// by the main emission loop and emitted only inside their branch
// wrapper. Nested conditionals are handled by the recursive walk.
func BranchOwned(g *BlockGraph, seq []*BlockNode) map[string]bool {
	owned := make(map[string]bool)

	var claim func(id string)
	claim = func(id string) {
		if owned[id] {
			return
		}
		n := g.Node(id)
		if n == nil {
			return
		}
		owned[id] = true
		for _, child := range n.Children() {
			claim(child)
		}
	}

	for _, n := range seq {
		if n.Type != IfElse {
			continue
		}
		for _, arm := range n.WhenTrue {
			claim(arm)
		}
		for _, arm := range n.WhenFalse {
			claim(arm)
		}
	}
	return owned
}
