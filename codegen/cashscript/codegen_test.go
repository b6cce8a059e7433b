package cashscript

import (
	"strings"
	"testing"

	"github.com/cashblocks/go-cashblocks/blocks"
)

const testHash = "f5bf48b397dae70be82b3cca4793f8eb2b6cdac9"

func TestCompileDeterminism(t *testing.T) {
	g := hodlGraph()

	first := Compile(g)
	second := Compile(g)

	if first.Err != "" || second.Err != "" {
		t.Fatalf("unexpected errors: %q / %q", first.Err, second.Err)
	}
	if first.Source != second.Source {
		t.Error("source differs between identical compilations")
	}
	if len(first.Args) != len(second.Args) {
		t.Fatalf("arg count differs: %d vs %d", len(first.Args), len(second.Args))
	}
	for i := range first.Args {
		if first.Args[i] != second.Args[i] {
			t.Errorf("arg %d differs: %+v vs %+v", i, first.Args[i], second.Args[i])
		}
	}
}

func TestCompileMissingTrigger(t *testing.T) {
	g := blocks.NewBlockGraph("Test")
	g.Add(&blocks.BlockNode{ID: "a1", Type: blocks.SendBCH})

	result := Compile(g)
	if result.Source != "" {
		t.Error("source must be empty on failure")
	}
	if !strings.Contains(result.Err, "trigger") {
		t.Errorf("error %q should mention trigger", result.Err)
	}
}

func TestCompileNoAction(t *testing.T) {
	g := blocks.NewBlockGraph("Test")
	g.Add(&blocks.BlockNode{ID: "t1", Type: blocks.TimePassed})

	result := Compile(g)
	if result.Source != "" {
		t.Error("source must be empty on failure")
	}
	if !strings.Contains(result.Err, "action") {
		t.Errorf("error %q should mention action", result.Err)
	}
}

// hodlGraph is the canonical time-locked payout: TimePassed(days=90)
// followed by a SendBCH with no recipient wired in.
func hodlGraph() *blocks.BlockGraph {
	g := blocks.NewBlockGraph("HodlVault")
	g.Add(&blocks.BlockNode{
		ID:     "t1",
		Type:   blocks.TimePassed,
		Params: blocks.Params{Days: blocks.Int64(90)},
		Next:   []string{"a1"},
	})
	g.Add(&blocks.BlockNode{ID: "a1", Type: blocks.SendBCH})
	return g
}

func TestCompileHodlScenario(t *testing.T) {
	result := Compile(hodlGraph())
	if result.Err != "" {
		t.Fatalf("compile failed: %s", result.Err)
	}

	// Exactly two constructor arguments in first-seen order: the
	// unlock time (deploy-time derived from the days parameter) and
	// the recipient hash.
	if len(result.Args) != 2 {
		t.Fatalf("expected 2 constructor args, got %d: %+v", len(result.Args), result.Args)
	}
	if result.Args[0].Name != "unlockTime" || result.Args[0].Type != ArgInt {
		t.Errorf("arg 0 = %+v, want int unlockTime", result.Args[0])
	}
	if result.Args[1].Name != "recipientPkh" || result.Args[1].Type != ArgBytes20 {
		t.Errorf("arg 1 = %+v, want bytes20 recipientPkh", result.Args[1])
	}

	src := result.Source
	if !strings.Contains(src, "contract HodlVault(int unlockTime, bytes20 recipientPkh)") {
		t.Errorf("unexpected contract declaration:\n%s", src)
	}
	timeGuard := strings.Index(src, "require(tx.time >= unlockTime);")
	outGuard := strings.Index(src, "require(tx.outputs[0].lockingBytecode == new LockingBytecodeP2PKH(recipientPkh));")
	if timeGuard < 0 || outGuard < 0 {
		t.Fatalf("missing guards:\n%s", src)
	}
	if timeGuard > outGuard {
		t.Error("time guard must precede the slot 0 output guard")
	}
}

func TestCompileLiteralWiring(t *testing.T) {
	g := blocks.NewBlockGraph("Literal")
	g.Add(&blocks.BlockNode{
		ID:     "t1",
		Type:   blocks.TimePassed,
		Params: blocks.Params{UnlockTime: blocks.Int64(820000)},
		Next:   []string{"a1"},
	})
	g.Add(&blocks.BlockNode{
		ID:     "a1",
		Type:   blocks.SendBCH,
		Params: blocks.Params{Recipient: testHash},
	})

	result := Compile(g)
	if result.Err != "" {
		t.Fatalf("compile failed: %s", result.Err)
	}
	if len(result.Args) != 0 {
		t.Errorf("expected zero constructor args, got %+v", result.Args)
	}
	if !strings.Contains(result.Source, "require(tx.time >= 820000);") {
		t.Error("expected inlined unlock time")
	}
	if !strings.Contains(result.Source, "new LockingBytecodeP2PKH(0x"+testHash+")") {
		t.Error("expected inlined recipient hash literal")
	}
}

func TestCompileArgDeduplication(t *testing.T) {
	g := blocks.NewBlockGraph("Dedup")
	g.Add(&blocks.BlockNode{
		ID:     "t1",
		Type:   blocks.BchReceived,
		Params: blocks.Params{Amount: blocks.Int64(1000)},
		Next:   []string{"a1"},
	})
	g.Add(&blocks.BlockNode{ID: "a1", Type: blocks.SendBCH, Next: []string{"a2"}})
	g.Add(&blocks.BlockNode{ID: "a2", Type: blocks.SendBCH})

	result := Compile(g)
	if result.Err != "" {
		t.Fatalf("compile failed: %s", result.Err)
	}
	count := 0
	for _, a := range result.Args {
		if a.Name == "recipientPkh" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected exactly one recipientPkh arg, got %d (%+v)", count, result.Args)
	}
}

func TestCompileUnreachableExcluded(t *testing.T) {
	g := blocks.NewBlockGraph("Orphans")
	g.Add(&blocks.BlockNode{
		ID:     "t1",
		Type:   blocks.BchReceived,
		Params: blocks.Params{Amount: blocks.Int64(1000)},
		Next:   []string{"a1"},
	})
	g.Add(&blocks.BlockNode{
		ID:     "a1",
		Type:   blocks.SendBCH,
		Params: blocks.Params{Recipient: testHash},
	})
	// Unreachable: would contribute a recipientPkh arg if visited.
	g.Add(&blocks.BlockNode{ID: "orphan", Type: blocks.SendBCH})

	result := Compile(g)
	if result.Err != "" {
		t.Fatalf("compile failed: %s", result.Err)
	}
	if len(result.Args) != 0 {
		t.Errorf("unreachable node leaked constructor args: %+v", result.Args)
	}
	if strings.Contains(result.Source, "recipientPkh") {
		t.Error("unreachable node leaked code")
	}
	if strings.Contains(result.Source, "tx.outputs[1]") {
		t.Error("unreachable node advanced the slot counter")
	}
}

func TestCompileSplitSlots(t *testing.T) {
	g := blocks.NewBlockGraph("Split")
	g.Add(&blocks.BlockNode{
		ID:     "t1",
		Type:   blocks.BchReceived,
		Params: blocks.Params{Amount: blocks.Int64(100000)},
		Next:   []string{"sp"},
	})
	g.Add(&blocks.BlockNode{
		ID:     "sp",
		Type:   blocks.SplitPercent,
		Params: blocks.Params{Percent: blocks.Int64(30)},
		Next:   []string{"a1"},
	})
	g.Add(&blocks.BlockNode{
		ID:     "a1",
		Type:   blocks.SendBCH,
		Params: blocks.Params{Recipient: testHash},
		Next:   []string{"a2"},
	})
	g.Add(&blocks.BlockNode{ID: "a2", Type: blocks.SendBack})

	result := Compile(g)
	if result.Err != "" {
		t.Fatalf("compile failed: %s", result.Err)
	}
	src := result.Source

	// The split's own ratio guards reference slots 0 and 1.
	if !strings.Contains(src, "require(tx.outputs[0].value >= spendable0 * 30 / 100);") {
		t.Errorf("missing slot 0 ratio guard:\n%s", src)
	}
	if !strings.Contains(src, "require(tx.outputs[1].value >= spendable0 * 70 / 100);") {
		t.Errorf("missing slot 1 ratio guard:\n%s", src)
	}
	// The two chained actions claim those same two slots.
	if !strings.Contains(src, "require(tx.outputs[0].lockingBytecode == new LockingBytecodeP2PKH(0x"+testHash+"));") {
		t.Error("first action should claim slot 0")
	}
	if !strings.Contains(src, "require(tx.outputs[1].lockingBytecode == tx.inputs[0].lockingBytecode);") {
		t.Error("second action should claim slot 1")
	}
	if strings.Contains(src, "tx.outputs[2]") {
		t.Error("split must not consume a slot of its own")
	}
}

func TestCompileBranchSlots(t *testing.T) {
	g := blocks.NewBlockGraph("Branch")
	g.Add(&blocks.BlockNode{
		ID:     "t1",
		Type:   blocks.BchReceived,
		Params: blocks.Params{Amount: blocks.Int64(1000)},
		Next:   []string{"c1"},
	})
	g.Add(&blocks.BlockNode{
		ID:        "c1",
		Type:      blocks.IfElse,
		Params:    blocks.Params{CondRoot: "cmp"},
		WhenTrue:  []string{"a1"},
		WhenFalse: []string{"a2"},
	})
	g.Add(&blocks.BlockNode{
		ID:     "cmp",
		Type:   blocks.Compare,
		Params: blocks.Params{Operator: ">", Amount: blocks.Int64(50000)},
	})
	g.Add(&blocks.BlockNode{
		ID:     "a1",
		Type:   blocks.SendBCH,
		Params: blocks.Params{Recipient: testHash},
	})
	g.Add(&blocks.BlockNode{ID: "a2", Type: blocks.SendBack})

	result := Compile(g)
	if result.Err != "" {
		t.Fatalf("compile failed: %s", result.Err)
	}
	src := result.Source

	if !strings.Contains(src, "if (tx.inputs[0].value > 50000) {") {
		t.Errorf("missing branch guard:\n%s", src)
	}
	if !strings.Contains(src, "} else {") {
		t.Error("missing else arm")
	}
	// Both arms are alternative paths and must address slot 0.
	if !strings.Contains(src, "require(tx.outputs[0].lockingBytecode == new LockingBytecodeP2PKH(0x"+testHash+"));") {
		t.Error("true arm should constrain slot 0")
	}
	if !strings.Contains(src, "require(tx.outputs[0].lockingBytecode == tx.inputs[0].lockingBytecode);") {
		t.Error("false arm should constrain slot 0")
	}
	if strings.Contains(src, "tx.outputs[1]") {
		t.Error("branch arms must not claim distinct slots")
	}
	// Branch-owned nodes are emitted only inside the wrapper.
	if strings.Count(src, "LockingBytecodeP2PKH") != 1 {
		t.Error("branch-owned action emitted more than once")
	}
}

func TestCompileNestedConditional(t *testing.T) {
	g := blocks.NewBlockGraph("Nested")
	g.Add(&blocks.BlockNode{
		ID:     "t1",
		Type:   blocks.BchReceived,
		Params: blocks.Params{Amount: blocks.Int64(1000)},
		Next:   []string{"c1"},
	})
	g.Add(&blocks.BlockNode{
		ID:        "c1",
		Type:      blocks.IfElse,
		Params:    blocks.Params{CondRoot: "cmp1"},
		WhenTrue:  []string{"c2"},
		WhenFalse: []string{"a3"},
	})
	g.Add(&blocks.BlockNode{
		ID:        "c2",
		Type:      blocks.IfElse,
		Params:    blocks.Params{CondRoot: "cmp2"},
		WhenTrue:  []string{"a1"},
		WhenFalse: []string{"a2"},
	})
	g.Add(&blocks.BlockNode{
		ID:     "cmp1",
		Type:   blocks.Compare,
		Params: blocks.Params{Operator: ">", Amount: blocks.Int64(100000)},
	})
	g.Add(&blocks.BlockNode{
		ID:     "cmp2",
		Type:   blocks.Compare,
		Params: blocks.Params{Operator: "<", Amount: blocks.Int64(500000)},
	})
	g.Add(&blocks.BlockNode{
		ID:     "a1",
		Type:   blocks.SendBCH,
		Params: blocks.Params{Recipient: testHash},
	})
	g.Add(&blocks.BlockNode{ID: "a2", Type: blocks.SendBack})
	g.Add(&blocks.BlockNode{ID: "a3", Type: blocks.SendBack})

	result := Compile(g)
	if result.Err != "" {
		t.Fatalf("compile failed: %s", result.Err)
	}
	src := result.Source

	if strings.Count(src, "if (") != 2 {
		t.Errorf("expected two if wrappers:\n%s", src)
	}
	if strings.Count(src, "} else {") != 2 {
		t.Errorf("expected two else arms:\n%s", src)
	}
	// Deeper nesting means deeper indentation.
	if !strings.Contains(src, "\n            if (tx.inputs[0].value < 500000) {") {
		t.Errorf("nested conditional not indented inside outer arm:\n%s", src)
	}
}

func TestCompileMultiSig(t *testing.T) {
	g := blocks.NewBlockGraph("Shared")
	g.Add(&blocks.BlockNode{
		ID:     "t1",
		Type:   blocks.MultiSig,
		Params: blocks.Params{Required: 2, Total: 3},
		Next:   []string{"a1"},
	})
	g.Add(&blocks.BlockNode{
		ID:     "a1",
		Type:   blocks.SendBCH,
		Params: blocks.Params{Recipient: testHash},
	})

	result := Compile(g)
	if result.Err != "" {
		t.Fatalf("compile failed: %s", result.Err)
	}
	src := result.Source

	if !strings.Contains(src, "contract Shared(pubkey pk0, pubkey pk1, pubkey pk2)") {
		t.Errorf("expected three pubkey constructor args:\n%s", src)
	}
	if !strings.Contains(src, "function spend(sig s0, sig s1)") {
		t.Errorf("expected one sig param per required signer:\n%s", src)
	}
	if !strings.Contains(src, "require(checkMultiSig([s0, s1], [pk0, pk1, pk2]));") {
		t.Error("missing checkMultiSig guard")
	}
	if strings.Contains(src, "require(checkSig(s, pk));") {
		t.Error("multisig mode must not add the single-signature guard")
	}
}

func TestCompileHashPreimage(t *testing.T) {
	digest := strings.Repeat("ab", 32)
	g := blocks.NewBlockGraph("Reveal")
	g.Add(&blocks.BlockNode{
		ID:     "t1",
		Type:   blocks.HashPreimage,
		Params: blocks.Params{Hash: digest},
		Next:   []string{"a1"},
	})
	g.Add(&blocks.BlockNode{ID: "a1", Type: blocks.SendBack})

	result := Compile(g)
	if result.Err != "" {
		t.Fatalf("compile failed: %s", result.Err)
	}
	src := result.Source

	if !strings.Contains(src, "function spend(bytes preimage, sig s, pubkey pk)") {
		t.Errorf("preimage parameter must be prepended:\n%s", src)
	}
	if !strings.Contains(src, "require(sha256(preimage) == 0x"+digest+");") {
		t.Error("missing inlined preimage guard")
	}
}

func TestCompileSingleSigGuard(t *testing.T) {
	g := blocks.NewBlockGraph("Guarded")
	g.Add(&blocks.BlockNode{
		ID:     "t1",
		Type:   blocks.BchReceived,
		Params: blocks.Params{Amount: blocks.Int64(1000)},
		Next:   []string{"a1"},
	})
	g.Add(&blocks.BlockNode{ID: "a1", Type: blocks.SendBack})

	result := Compile(g)
	if result.Err != "" {
		t.Fatalf("compile failed: %s", result.Err)
	}
	src := result.Source

	if !strings.Contains(src, "function spend(sig s, pubkey pk)") {
		t.Errorf("action must force single-signature mode:\n%s", src)
	}
	if strings.Count(src, "require(checkSig(s, pk));") != 1 {
		t.Errorf("expected exactly one signature guard:\n%s", src)
	}
	// The guard leads the body.
	body := src[strings.Index(src, "function spend"):]
	if strings.Index(body, "require(checkSig(s, pk));") > strings.Index(body, "tx.outputs[0]") {
		t.Error("signature guard should precede output guards")
	}
}

func TestCompileAddressCheckSuppressesSigGuard(t *testing.T) {
	g := blocks.NewBlockGraph("Owned")
	g.Add(&blocks.BlockNode{
		ID:     "t1",
		Type:   blocks.BchReceived,
		Params: blocks.Params{Amount: blocks.Int64(1000)},
		Next:   []string{"l1"},
	})
	g.Add(&blocks.BlockNode{
		ID:     "l1",
		Type:   blocks.AddressCheck,
		Params: blocks.Params{Recipient: testHash},
		Next:   []string{"a1"},
	})
	g.Add(&blocks.BlockNode{ID: "a1", Type: blocks.SendBack})

	result := Compile(g)
	if result.Err != "" {
		t.Fatalf("compile failed: %s", result.Err)
	}
	src := result.Source

	if !strings.Contains(src, "require(hash160(pk) == 0x"+testHash+");") {
		t.Error("missing owner hash guard")
	}
	// The address check already verifies the signature; no second
	// standalone guard may be prepended.
	if strings.Count(src, "require(checkSig(s, pk));") != 1 {
		t.Errorf("expected exactly one checkSig:\n%s", src)
	}
}

func TestCompileStateBlocks(t *testing.T) {
	g := blocks.NewBlockGraph("Counter")
	g.Add(&blocks.BlockNode{
		ID:     "t1",
		Type:   blocks.TokenReceived,
		Params: blocks.Params{TokenCat: strings.Repeat("11", 32)},
		Next:   []string{"st"},
	})
	g.Add(&blocks.BlockNode{ID: "st", Type: blocks.IncrementCounter, Next: []string{"a1"}})
	g.Add(&blocks.BlockNode{ID: "a1", Type: blocks.SendBack})

	result := Compile(g)
	if result.Err != "" {
		t.Fatalf("compile failed: %s", result.Err)
	}
	src := result.Source

	if !strings.Contains(src, "require(tx.inputs[0].tokenCategory == 0x"+strings.Repeat("11", 32)+");") {
		t.Error("missing token category guard")
	}
	if !strings.Contains(src, "int counter = int(tx.inputs[0].nftCommitment);") {
		t.Error("missing counter decode")
	}
	if !strings.Contains(src, "require(tx.outputs[0].nftCommitment == bytes8(counter + 1));") {
		t.Error("missing counter re-encode guard")
	}
}

func TestCompilePriceOracle(t *testing.T) {
	g := blocks.NewBlockGraph("Peg")
	g.Add(&blocks.BlockNode{
		ID:     "t1",
		Type:   blocks.PriceOracle,
		Params: blocks.Params{PriceTarget: blocks.Int64(25000)},
		Next:   []string{"a1"},
	})
	g.Add(&blocks.BlockNode{ID: "a1", Type: blocks.SendBack})

	result := Compile(g)
	if result.Err != "" {
		t.Fatalf("compile failed: %s", result.Err)
	}
	src := result.Source

	if !strings.Contains(src, "require(tx.inputs[1].tokenCategory == oracleCategory);") {
		t.Error("missing oracle category guard")
	}
	if !strings.Contains(src, "int oraclePrice = int(tx.inputs[1].nftCommitment);") {
		t.Error("missing oracle price decode")
	}
	if !strings.Contains(src, "require(oraclePrice >= 25000);") {
		t.Error("missing price floor")
	}
	if len(result.Args) != 1 || result.Args[0].Name != "oracleCategory" {
		t.Errorf("expected a single oracleCategory arg, got %+v", result.Args)
	}
}

func TestCompileBadRecipientAborts(t *testing.T) {
	g := blocks.NewBlockGraph("Broken")
	g.Add(&blocks.BlockNode{
		ID:     "t1",
		Type:   blocks.BchReceived,
		Params: blocks.Params{Amount: blocks.Int64(1000)},
		Next:   []string{"a1"},
	})
	g.Add(&blocks.BlockNode{
		ID:     "a1",
		Type:   blocks.SendBCH,
		Params: blocks.Params{Recipient: "0xdeadbeef"},
	})

	result := Compile(g)
	if result.Source != "" {
		t.Error("no partial source may accompany an error")
	}
	if !strings.Contains(result.Err, "20 bytes") {
		t.Errorf("normalization error should reach the caller verbatim, got %q", result.Err)
	}
}

func TestCompileUnknownTypeAborts(t *testing.T) {
	g := blocks.NewBlockGraph("Unknown")
	g.Add(&blocks.BlockNode{ID: "t1", Type: blocks.TimePassed, Next: []string{"a1"}})
	g.Add(&blocks.BlockNode{ID: "a1", Type: blocks.SendBack, Next: []string{"x1"}})
	g.Nodes["x1"] = &blocks.BlockNode{ID: "x1", Type: blocks.BlockType("teleport")}

	result := Compile(g)
	if result.Source != "" {
		t.Error("no partial source may accompany an error")
	}
	if !strings.Contains(result.Err, "teleport") {
		t.Errorf("unknown type must be rejected, got %q", result.Err)
	}
}

func TestCompileHeader(t *testing.T) {
	result := Compile(hodlGraph())
	if result.Err != "" {
		t.Fatalf("compile failed: %s", result.Err)
	}
	if !strings.HasPrefix(result.Source, "pragma cashscript ^0.8.0;\n") {
		t.Error("missing language pragma")
	}
	if !strings.HasSuffix(result.Source, "}\n") {
		t.Error("unbalanced contract body")
	}
	t.Logf("Generated contract:\n%s", result.Source)
}

func TestContractNameSanitized(t *testing.T) {
	g := hodlGraph()
	g.Name = "my hodl_vault-2"
	result := Compile(g)
	if result.Err != "" {
		t.Fatalf("compile failed: %s", result.Err)
	}
	if !strings.Contains(result.Source, "contract myhodlvault2(") {
		t.Errorf("contract name not sanitized:\n%s", result.Source)
	}

	g2 := hodlGraph()
	g2.Name = ""
	if !strings.Contains(Compile(g2).Source, "contract CashBlocks(") {
		t.Error("empty workspace name should fall back to the default")
	}
}
