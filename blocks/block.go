// Package blocks implements the core block-graph data structures.
// A block graph is a directed graph of typed blocks (Trigger, Logic,
// Action, State) assembled on a visual canvas; it is the compilation
// unit consumed by codegen/cashscript.
package blocks

import (
	"fmt"
	"sort"
)

// Category groups block types into the four behavioral families.
type Category int

const (
	CategoryTrigger Category = iota
	CategoryLogic
	CategoryAction
	CategoryState
)

// String returns the lowercase category name.
func (c Category) String() string {
	switch c {
	case CategoryTrigger:
		return "trigger"
	case CategoryLogic:
		return "logic"
	case CategoryAction:
		return "action"
	case CategoryState:
		return "state"
	default:
		return "unknown"
	}
}

// BlockType identifies one member of the closed block-type set.
type BlockType string

const (
	// Trigger types: activating conditions of the contract's entry function.
	BchReceived   BlockType = "bch_received"
	TokenReceived BlockType = "token_received"
	TimePassed    BlockType = "time_passed"
	MultiSig      BlockType = "multisig"
	PriceOracle   BlockType = "price_oracle"
	HashPreimage  BlockType = "hash_preimage"

	// Logic types: branching, boolean expression operands, address checks.
	IfElse       BlockType = "if_else"
	Compare      BlockType = "compare"
	LogicAnd     BlockType = "logic_and"
	LogicOr      BlockType = "logic_or"
	AddressCheck BlockType = "address_check"

	// Action types: each constrains one numbered transaction output.
	SendBCH      BlockType = "send_bch"
	SendToken    BlockType = "send_token"
	SendBack     BlockType = "send_back"
	SplitPercent BlockType = "split_percent"

	// State types: read or rewrite the per-UTXO NFT commitment field.
	KeepState        BlockType = "keep_state"
	ReadState        BlockType = "read_state"
	IncrementCounter BlockType = "increment_counter"
)

// categories is the single type-to-category lookup table. Membership
// checks anywhere else in the repo go through CategoryOf.
var categories = map[BlockType]Category{
	BchReceived:   CategoryTrigger,
	TokenReceived: CategoryTrigger,
	TimePassed:    CategoryTrigger,
	MultiSig:      CategoryTrigger,
	PriceOracle:   CategoryTrigger,
	HashPreimage:  CategoryTrigger,

	IfElse:       CategoryLogic,
	Compare:      CategoryLogic,
	LogicAnd:     CategoryLogic,
	LogicOr:      CategoryLogic,
	AddressCheck: CategoryLogic,

	SendBCH:      CategoryAction,
	SendToken:    CategoryAction,
	SendBack:     CategoryAction,
	SplitPercent: CategoryAction,

	KeepState:        CategoryState,
	ReadState:        CategoryState,
	IncrementCounter: CategoryState,
}

// CategoryOf returns the category of a block type.
// Unknown types are rejected, never silently ignored.
func CategoryOf(t BlockType) (Category, error) {
	c, ok := categories[t]
	if !ok {
		return 0, fmt.Errorf("unknown block type: %q", t)
	}
	return c, nil
}

// KnownType reports whether t is a member of the closed block-type set.
func KnownType(t BlockType) bool {
	_, ok := categories[t]
	return ok
}

// Params is the per-block parameter bag. Which fields are populated
// depends on the block type; pointer fields distinguish "left
// unspecified by the user" (nil, becomes a constructor argument) from
// an explicit literal value (inlined into the generated source).
type Params struct {
	Amount     *int64 // satoshis or token units, also compare threshold
	Days       *int64 // deploy-time info for time_passed
	UnlockTime *int64 // absolute locktime for time_passed
	Percent    *int64 // split_percent ratio, 0..100

	Recipient string // 20-byte hash (hex) or CashAddr string
	TokenCat  string // token category, hex
	Hash      string // sha256 digest for hash_preimage, hex
	Operator  string // compare operator: > < >= <= ==

	Required int // multisig signatures required
	Total    int // multisig public keys held

	PriceTarget *int64 // price_oracle floor
	OracleCat   string // oracle token category, hex

	// Guard-slot wiring for logic blocks. CondRoot is the root of an
	// if_else guard expression; Left/Right are the operand slots of
	// logic_and / logic_or nodes.
	CondRoot string
	Left     string
	Right    string
}

// BlockNode is one visual block. Next holds sequential continuations in
// canvas order; WhenTrue/WhenFalse are the branch arms of an if_else
// node and are empty for every other type.
type BlockNode struct {
	ID        string
	Type      BlockType
	Params    Params
	Next      []string
	WhenTrue  []string
	WhenFalse []string
}

// Category returns the node's category.
func (n *BlockNode) Category() (Category, error) {
	return CategoryOf(n.Type)
}

// Children returns the node's outgoing control edges left-to-right:
// branch arms first (true, then false), then sequential continuations.
func (n *BlockNode) Children() []string {
	if n.Type != IfElse {
		return n.Next
	}
	out := make([]string, 0, len(n.WhenTrue)+len(n.WhenFalse)+len(n.Next))
	out = append(out, n.WhenTrue...)
	out = append(out, n.WhenFalse...)
	out = append(out, n.Next...)
	return out
}

// EdgeKind discriminates the relation an edge represents.
type EdgeKind int

const (
	EdgeNext EdgeKind = iota
	EdgeCondTrue
	EdgeCondFalse
)

// String returns the serialized edge-kind name.
func (k EdgeKind) String() string {
	switch k {
	case EdgeCondTrue:
		return "condition_true"
	case EdgeCondFalse:
		return "condition_false"
	default:
		return "next"
	}
}

// Edge is a directed relation between two node identifiers.
type Edge struct {
	From string
	To   string
	Kind EdgeKind
}

// BlockGraph is the compilation unit: a distinguished root (the unique
// Trigger; empty RootID means no trigger was placed), the node set and
// an optional contract name. The graph is immutable during compilation.
type BlockGraph struct {
	Name   string
	RootID string
	Nodes  map[string]*BlockNode
}

// NewBlockGraph creates an empty graph.
func NewBlockGraph(name string) *BlockGraph {
	return &BlockGraph{
		Name:  name,
		Nodes: make(map[string]*BlockNode),
	}
}

// Add inserts a node and returns it. The first Trigger-category node
// added becomes the root unless a root is already set.
func (g *BlockGraph) Add(n *BlockNode) *BlockNode {
	g.Nodes[n.ID] = n
	if g.RootID == "" {
		if c, err := CategoryOf(n.Type); err == nil && c == CategoryTrigger {
			g.RootID = n.ID
		}
	}
	return n
}

// Node returns the node with the given id, or nil.
func (g *BlockGraph) Node(id string) *BlockNode {
	if id == "" {
		return nil
	}
	return g.Nodes[id]
}

// Root returns the root node, or nil when no trigger is present.
func (g *BlockGraph) Root() *BlockNode {
	return g.Node(g.RootID)
}

// Edges derives the edge set from each node's child lists. Nodes are
// visited in sorted-identifier order so the result is deterministic.
func (g *BlockGraph) Edges() []Edge {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var edges []Edge
	for _, id := range ids {
		n := g.Nodes[id]
		for _, to := range n.WhenTrue {
			edges = append(edges, Edge{From: id, To: to, Kind: EdgeCondTrue})
		}
		for _, to := range n.WhenFalse {
			edges = append(edges, Edge{From: id, To: to, Kind: EdgeCondFalse})
		}
		for _, to := range n.Next {
			edges = append(edges, Edge{From: id, To: to, Kind: EdgeNext})
		}
	}
	return edges
}

// Int64 is a convenience for building literal Params fields.
func Int64(v int64) *int64 { return &v }
