package cashscript

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/cashblocks/go-cashblocks/blocks"
	"github.com/cashblocks/go-cashblocks/cashaddr"
)

// feeAllowance is subtracted from the spendable input value wherever a
// template constrains change or split outputs, leaving room for the
// miner fee.
const feeAllowance = 1000

// ArgType is one of the closed set of constructor-argument types the
// generated contracts use.
type ArgType string

const (
	ArgBytes20 ArgType = "bytes20"
	ArgInt     ArgType = "int"
	ArgBytes   ArgType = "bytes"
	ArgPubKey  ArgType = "pubkey"
	ArgSig     ArgType = "sig"
)

// ConstructorArg is a named, typed value the generated contract expects
// at deployment time. Name is the deduplication key across blocks.
type ConstructorArg struct {
	Name string  `json:"name"`
	Type ArgType `json:"type"`
}

// fragment is one block's contribution to the contract body: the guard
// lines it emits (unindented) and the constructor arguments those lines
// reference.
type fragment struct {
	code []string
	args []ConstructorArg
}

func (f *fragment) line(format string, a ...interface{}) {
	f.code = append(f.code, fmt.Sprintf(format, a...))
}

func (f *fragment) arg(name string, t ArgType) string {
	f.args = append(f.args, ConstructorArg{Name: name, Type: t})
	return name
}

// templateFor maps one block to its source fragment. slot is the
// numbered transaction output the block constrains; it is only
// meaningful for Action-category blocks. A nil fragment with nil error
// means the block emits no independent code (the value-producing logic
// types, which only matter through condition resolution).
func templateFor(n *blocks.BlockNode, slot int) (*fragment, error) {
	f := &fragment{}
	p := n.Params

	switch n.Type {

	// ----- Triggers -----

	case blocks.BchReceived:
		if p.Amount != nil {
			f.line("require(tx.inputs[0].value >= %d);", *p.Amount)
		} else {
			f.line("require(tx.inputs[0].value >= %s);", f.arg("minAmount", ArgInt))
		}

	case blocks.TokenReceived:
		if p.TokenCat != "" {
			lit, err := hexLiteral(p.TokenCat, "token category")
			if err != nil {
				return nil, err
			}
			f.line("require(tx.inputs[0].tokenCategory == %s);", lit)
		} else {
			f.line("require(tx.inputs[0].tokenCategory == %s);", f.arg("tokenCategory", ArgBytes))
		}
		if p.Amount != nil {
			f.line("require(tx.inputs[0].tokenAmount >= %d);", *p.Amount)
		}

	case blocks.TimePassed:
		// An absolute locktime literal is inlined. A days parameter is
		// deploy-time information: the unlock time it implies is only
		// known when the contract is instantiated, so it surfaces as a
		// constructor argument instead.
		if p.UnlockTime != nil {
			f.line("require(tx.time >= %d);", *p.UnlockTime)
		} else {
			f.line("require(tx.time >= %s);", f.arg("unlockTime", ArgInt))
		}

	case blocks.MultiSig:
		required, total := p.Required, p.Total
		if total < 1 {
			total = 1
		}
		if required < 1 {
			required = 1
		}
		if required > total {
			return nil, fmt.Errorf("multisig requires %d of %d keys", required, total)
		}
		sigs := make([]string, required)
		for i := range sigs {
			sigs[i] = fmt.Sprintf("s%d", i)
		}
		pks := make([]string, total)
		for i := range pks {
			pks[i] = f.arg(fmt.Sprintf("pk%d", i), ArgPubKey)
		}
		f.line("require(checkMultiSig([%s], [%s]));",
			strings.Join(sigs, ", "), strings.Join(pks, ", "))

	case blocks.PriceOracle:
		if p.OracleCat != "" {
			lit, err := hexLiteral(p.OracleCat, "oracle category")
			if err != nil {
				return nil, err
			}
			f.line("require(tx.inputs[1].tokenCategory == %s);", lit)
		} else {
			f.line("require(tx.inputs[1].tokenCategory == %s);", f.arg("oracleCategory", ArgBytes))
		}
		f.line("int oraclePrice = int(tx.inputs[1].nftCommitment);")
		if p.PriceTarget != nil {
			f.line("require(oraclePrice >= %d);", *p.PriceTarget)
		} else {
			f.line("require(oraclePrice >= %s);", f.arg("priceTarget", ArgInt))
		}

	case blocks.HashPreimage:
		if p.Hash != "" {
			lit, err := hexLiteral(p.Hash, "preimage hash")
			if err != nil {
				return nil, err
			}
			f.line("require(sha256(preimage) == %s);", lit)
		} else {
			f.line("require(sha256(preimage) == %s);", f.arg("secretHash", ArgBytes))
		}

	// ----- Logic -----

	case blocks.IfElse, blocks.Compare, blocks.LogicAnd, blocks.LogicOr:
		// No independent code; branching and condition lowering happen
		// in the assembler and condition resolver.
		return nil, nil

	case blocks.AddressCheck:
		ref, err := recipientRef(f, p.Recipient, "ownerPkh")
		if err != nil {
			return nil, err
		}
		f.line("require(hash160(pk) == %s);", ref)
		f.line("require(checkSig(s, pk));")

	// ----- Actions -----

	case blocks.SendBCH:
		ref, err := recipientRef(f, p.Recipient, "recipientPkh")
		if err != nil {
			return nil, err
		}
		f.line("require(tx.outputs[%d].lockingBytecode == new LockingBytecodeP2PKH(%s));", slot, ref)
		if p.Amount != nil {
			f.line("require(tx.outputs[%d].value >= %d);", slot, *p.Amount)
		}

	case blocks.SendToken:
		ref, err := recipientRef(f, p.Recipient, "recipientPkh")
		if err != nil {
			return nil, err
		}
		f.line("require(tx.outputs[%d].lockingBytecode == new LockingBytecodeP2PKH(%s));", slot, ref)
		if p.TokenCat != "" {
			lit, err := hexLiteral(p.TokenCat, "token category")
			if err != nil {
				return nil, err
			}
			f.line("require(tx.outputs[%d].tokenCategory == %s);", slot, lit)
		} else {
			f.line("require(tx.outputs[%d].tokenCategory == %s);", slot, f.arg("tokenCategory", ArgBytes))
		}
		if p.Amount != nil {
			f.line("require(tx.outputs[%d].tokenAmount >= %d);", slot, *p.Amount)
		}

	case blocks.SendBack:
		f.line("require(tx.outputs[%d].lockingBytecode == tx.inputs[0].lockingBytecode);", slot)
		f.line("require(tx.outputs[%d].value >= tx.inputs[0].value - %d);", slot, feeAllowance)

	case blocks.SplitPercent:
		pct := int64(50)
		if p.Percent != nil {
			pct = *p.Percent
		}
		if pct < 0 || pct > 100 {
			return nil, fmt.Errorf("split percentage %d out of range 0..100", pct)
		}
		// The split does not claim a slot itself: the two action blocks
		// chained after it claim slot and slot+1, so its ratio guards
		// must reference those same indices.
		f.line("int spendable%d = tx.inputs[0].value - %d;", slot, feeAllowance)
		f.line("require(tx.outputs[%d].value >= spendable%d * %d / 100);", slot, slot, pct)
		f.line("require(tx.outputs[%d].value >= spendable%d * %d / 100);", slot+1, slot, 100-pct)

	// ----- State -----

	case blocks.KeepState:
		f.line("require(tx.outputs[0].nftCommitment == tx.inputs[0].nftCommitment);")

	case blocks.ReadState:
		f.line("bytes stateCommitment = tx.inputs[0].nftCommitment;")

	case blocks.IncrementCounter:
		f.line("int counter = int(tx.inputs[0].nftCommitment);")
		f.line("require(tx.outputs[0].nftCommitment == bytes8(counter + 1));")

	default:
		return nil, fmt.Errorf("unknown block type: %q", n.Type)
	}

	return f, nil
}

// recipientRef resolves a recipient parameter to either an inlined hash
// literal or a named bytes20 constructor argument. Normalization
// failures abort template resolution.
func recipientRef(f *fragment, recipient, argName string) (string, error) {
	if recipient == "" {
		return f.arg(argName, ArgBytes20), nil
	}
	hash, err := cashaddr.DecodeRecipientHash(recipient)
	if err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(hash), nil
}

// hexLiteral normalizes a hex parameter into a 0x literal.
func hexLiteral(s, what string) (string, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	b, err := hex.DecodeString(raw)
	if err != nil {
		return "", fmt.Errorf("invalid %s %q: %w", what, s, err)
	}
	if len(b) == 0 {
		return "", fmt.Errorf("empty %s", what)
	}
	return "0x" + hex.EncodeToString(b), nil
}
