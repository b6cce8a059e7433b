package parser

import (
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/cashblocks/go-cashblocks/blocks"
)

// hclWorkspace is the top-level structure of a workspace file.
type hclWorkspace struct {
	Contracts []*hclContract `hcl:"contract,block"`
}

type hclContract struct {
	Name   string      `hcl:"name,label"`
	Root   *string     `hcl:"root,optional"`
	Blocks []*hclBlock `hcl:"block,block"`
}

// hclBlock keeps the per-type parameters as a raw body; they are
// decoded attribute-by-attribute since their shape depends on the
// block type.
type hclBlock struct {
	Type string   `hcl:"type,label"`
	ID   string   `hcl:"id,label"`
	Body hcl.Body `hcl:",remain"`
}

// FromHCL parses a workspace from HCL source, e.g.:
//
//	contract "HodlVault" {
//	  root = "t1"
//	  block "time_passed" "t1" {
//	    days = 90
//	    next = ["a1"]
//	  }
//	  block "send_bch" "a1" {
//	    recipient = "bchtest:qq1234..."
//	  }
//	}
func FromHCL(filename string, src []byte) (*blocks.BlockGraph, error) {
	file, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse %s: %w", filename, diags)
	}

	var ws hclWorkspace
	if diags := gohcl.DecodeBody(file.Body, nil, &ws); diags.HasErrors() {
		return nil, fmt.Errorf("decode %s: %w", filename, diags)
	}
	if len(ws.Contracts) != 1 {
		return nil, fmt.Errorf("expected exactly one contract block, got %d", len(ws.Contracts))
	}

	c := ws.Contracts[0]
	g := blocks.NewBlockGraph(c.Name)

	for _, hb := range c.Blocks {
		n, err := parseHCLBlock(hb)
		if err != nil {
			return nil, err
		}
		g.Add(n)
	}

	if c.Root != nil && *c.Root != "" {
		if g.Node(*c.Root) == nil {
			return nil, fmt.Errorf("root %q does not name a block", *c.Root)
		}
		g.RootID = *c.Root
	}

	return g, nil
}

func parseHCLBlock(hb *hclBlock) (*blocks.BlockNode, error) {
	if !blocks.KnownType(blocks.BlockType(hb.Type)) {
		return nil, fmt.Errorf("unknown block type: %q", hb.Type)
	}
	id := hb.ID
	if id == "" {
		id = uuid.NewString()
	}
	n := &blocks.BlockNode{ID: id, Type: blocks.BlockType(hb.Type)}

	attrs, diags := hb.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("block %q: %w", id, diags)
	}

	for name, attr := range attrs {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("block %q attribute %q: %w", id, name, diags)
		}

		var err error
		switch name {
		case "next":
			n.Next, err = ctyStringList(val)
		case "when_true":
			n.WhenTrue, err = ctyStringList(val)
		case "when_false":
			n.WhenFalse, err = ctyStringList(val)
		default:
			var gv interface{}
			if gv, err = ctyToGo(val); err == nil {
				err = applyParam(n, name, gv)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("block %q attribute %q: %w", id, name, err)
		}
	}

	return n, nil
}

func ctyToGo(v cty.Value) (interface{}, error) {
	switch v.Type() {
	case cty.String:
		return v.AsString(), nil
	case cty.Number:
		i, acc := v.AsBigFloat().Int64()
		if acc != big.Exact {
			return nil, fmt.Errorf("expected an integer, got %s", v.AsBigFloat().String())
		}
		return i, nil
	default:
		return nil, fmt.Errorf("unsupported value type %s", v.Type().FriendlyName())
	}
}

func ctyStringList(v cty.Value) ([]string, error) {
	if v.Type() == cty.String {
		return []string{v.AsString()}, nil
	}
	if v.Type().IsTupleType() || v.Type().IsListType() {
		var out []string
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			if ev.Type() != cty.String {
				return nil, fmt.Errorf("expected string elements, got %s", ev.Type().FriendlyName())
			}
			out = append(out, ev.AsString())
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected string or list of strings, got %s", v.Type().FriendlyName())
}
