// Package parser builds block graphs from serialized visual-editor
// workspaces. Two formats are supported: the editor's JSON export and
// an HCL form for authoring graphs by hand.
package parser

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/cashblocks/go-cashblocks/blocks"
	"github.com/cashblocks/go-cashblocks/cashaddr"
)

// FromJSON parses a workspace from JSON bytes. The format is:
//
//	{
//	  "name": "HodlVault",
//	  "root": "t1",
//	  "blocks": [
//	    {"id": "t1", "type": "time_passed", "params": {"days": 90}, "next": ["a1"]},
//	    {"id": "a1", "type": "send_bch", "params": {"recipient": "bchtest:..."}}
//	  ]
//	}
//
// Blocks without an id are assigned one. When "root" is absent, the
// first trigger-category block in declaration order becomes the root.
func FromJSON(data []byte) (*blocks.BlockGraph, error) {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("JSON root must be an object")
	}

	name := ""
	if v, ok := m["name"].(string); ok {
		name = v
	}
	g := blocks.NewBlockGraph(name)

	blocksRaw, found := m["blocks"]
	if !found {
		return nil, fmt.Errorf("workspace has no blocks")
	}
	list, ok := blocksRaw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("\"blocks\" must be an array")
	}

	for i, item := range list {
		bm, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("block %d must be an object", i)
		}
		n, err := parseBlock(bm)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		g.Add(n)
	}

	if v, ok := m["root"].(string); ok && v != "" {
		if g.Node(v) == nil {
			return nil, fmt.Errorf("root %q does not name a block", v)
		}
		g.RootID = v
	}

	return g, nil
}

func parseBlock(m map[string]interface{}) (*blocks.BlockNode, error) {
	typ, _ := m["type"].(string)
	if typ == "" {
		return nil, fmt.Errorf("block has no type")
	}
	if !blocks.KnownType(blocks.BlockType(typ)) {
		return nil, fmt.Errorf("unknown block type: %q", typ)
	}

	id, _ := m["id"].(string)
	if id == "" {
		id = uuid.NewString()
	}

	n := &blocks.BlockNode{ID: id, Type: blocks.BlockType(typ)}

	if params, ok := m["params"].(map[string]interface{}); ok {
		for key, v := range params {
			if err := applyParam(n, key, v); err != nil {
				return nil, err
			}
		}
	}

	var err error
	if n.Next, err = stringList(m["next"]); err != nil {
		return nil, fmt.Errorf("next: %w", err)
	}
	if n.WhenTrue, err = stringList(firstOf(m, "whenTrue", "when_true")); err != nil {
		return nil, fmt.Errorf("whenTrue: %w", err)
	}
	if n.WhenFalse, err = stringList(firstOf(m, "whenFalse", "when_false")); err != nil {
		return nil, fmt.Errorf("whenFalse: %w", err)
	}

	return n, nil
}

func firstOf(m map[string]interface{}, keys ...string) interface{} {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v
		}
	}
	return nil
}

func stringList(v interface{}) ([]string, error) {
	if v == nil {
		return nil, nil
	}
	switch t := v.(type) {
	case string:
		return []string{t}, nil
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, x := range t {
			s, ok := x.(string)
			if !ok {
				return nil, fmt.Errorf("expected string, got %T", x)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected string or array of strings, got %T", v)
	}
}

// applyParam sets a single parameter on a node. Keys are matched
// case-insensitively with underscores ignored, so the JSON editor's
// camelCase and the HCL form's snake_case address the same fields.
func applyParam(n *blocks.BlockNode, key string, v interface{}) error {
	switch canonicalKey(key) {
	case "amount", "threshold":
		amt, err := asAmount(v)
		if err != nil {
			return fmt.Errorf("amount: %w", err)
		}
		n.Params.Amount = &amt
	case "days":
		d, err := asInt64(v)
		if err != nil {
			return fmt.Errorf("days: %w", err)
		}
		n.Params.Days = &d
	case "unlocktime":
		t, err := asInt64(v)
		if err != nil {
			return fmt.Errorf("unlockTime: %w", err)
		}
		n.Params.UnlockTime = &t
	case "percent":
		p, err := asInt64(v)
		if err != nil {
			return fmt.Errorf("percent: %w", err)
		}
		n.Params.Percent = &p
	case "pricetarget":
		p, err := asInt64(v)
		if err != nil {
			return fmt.Errorf("priceTarget: %w", err)
		}
		n.Params.PriceTarget = &p
	case "required":
		r, err := asInt64(v)
		if err != nil {
			return fmt.Errorf("required: %w", err)
		}
		n.Params.Required = int(r)
	case "total":
		t, err := asInt64(v)
		if err != nil {
			return fmt.Errorf("total: %w", err)
		}
		n.Params.Total = int(t)
	case "recipient":
		n.Params.Recipient, _ = v.(string)
	case "tokencategory":
		n.Params.TokenCat, _ = v.(string)
	case "oraclecategory":
		n.Params.OracleCat, _ = v.(string)
	case "hash":
		n.Params.Hash, _ = v.(string)
	case "operator":
		n.Params.Operator, _ = v.(string)
	case "condition":
		n.Params.CondRoot, _ = v.(string)
	case "left":
		n.Params.Left, _ = v.(string)
	case "right":
		n.Params.Right, _ = v.(string)
	default:
		return fmt.Errorf("unknown parameter %q for block type %q", key, n.Type)
	}
	return nil
}

func canonicalKey(key string) string {
	return strings.ReplaceAll(strings.ToLower(key), "_", "")
}

// asAmount accepts JSON numbers and decimal or 0x-hex strings,
// normalized through the satoshi parser.
func asAmount(v interface{}) (int64, error) {
	if s, ok := v.(string); ok {
		return cashaddr.ParseAmount(s)
	}
	return asInt64(v)
}

func asInt64(v interface{}) (int64, error) {
	switch t := v.(type) {
	case float64:
		if t != float64(int64(t)) {
			return 0, fmt.Errorf("expected integer, got %v", t)
		}
		return int64(t), nil
	case int:
		return int64(t), nil
	case int64:
		return t, nil
	case json.Number:
		return t.Int64()
	case string:
		return cashaddr.ParseAmount(t)
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}
