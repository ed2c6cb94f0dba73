package chain

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/HigherOrderCO/Kindelia/hvm"
	"github.com/HigherOrderCO/Kindelia/kdlcrypto"
)

func effName(t *testing.T, s string) uint64 {
	n, ok := ParseName(s)
	require.True(t, ok)
	return n.Uint64()
}

func doneTerm(t *testing.T, v *hvm.Term) *hvm.Term {
	return hvm.CtrTerm(effName(t, "DONE"), []*hvm.Term{v})
}

func saveTerm(t *testing.T, v, k *hvm.Term) *hvm.Term {
	return hvm.CtrTerm(effName(t, "SAVE"), []*hvm.Term{v, k})
}

func takeTerm(t *testing.T, k *hvm.Term) *hvm.Term {
	return hvm.CtrTerm(effName(t, "TAKE"), []*hvm.Term{k})
}

func blockCtx(tick uint64) BlockContext {
	return BlockContext{Tick: tick, Time: tick * 1000}
}

func TestSaveThenTakeRoundTrips(t *testing.T) {
	exec, err := NewExecutor(1_000_000, 1_000_000)
	require.NoError(t, err)

	save := &Statement{Run: &RunStatement{Body: saveTerm(t, hvm.NumTermU64(5), doneTerm(t, hvm.NumTermU64(5)))}}
	res := exec.ApplyBlock(blockCtx(1), []*Statement{save})
	require.True(t, res.Statements[0].Success)
	require.Equal(t, "5", res.Statements[0].Value.NumVal().String())

	take := &Statement{Run: &RunStatement{Body: takeTerm(t, hvm.LamTerm(1, doneTerm(t, hvm.VarTerm(1))))}}
	res = exec.ApplyBlock(blockCtx(2), []*Statement{take})
	require.True(t, res.Statements[0].Success)
	require.Equal(t, "5", res.Statements[0].Value.NumVal().String())
}

func TestTakeWithoutPriorSaveFailsTheStatement(t *testing.T) {
	exec, err := NewExecutor(1_000_000, 1_000_000)
	require.NoError(t, err)

	take := &Statement{Run: &RunStatement{Body: takeTerm(t, hvm.LamTerm(1, doneTerm(t, hvm.VarTerm(1))))}}
	res := exec.ApplyBlock(blockCtx(1), []*Statement{take})
	require.False(t, res.Statements[0].Success)
}

func TestRollbackRestoresPriorState(t *testing.T) {
	exec, err := NewExecutor(1_000_000, 1_000_000)
	require.NoError(t, err)

	setTo := func(v uint64) *Statement {
		return &Statement{Run: &RunStatement{Body: saveTerm(t, hvm.NumTermU64(v), doneTerm(t, hvm.NumTermU64(v)))}}
	}

	exec.ApplyBlock(blockCtx(1), []*Statement{setTo(5)})
	h1 := exec.Snapshot().Height()

	exec.ApplyBlock(blockCtx(2), []*Statement{setTo(9)})

	exec.Snapshot().RollbackTo(h1)

	take := &Statement{Run: &RunStatement{Body: takeTerm(t, hvm.LamTerm(1, doneTerm(t, hvm.VarTerm(1))))}}
	res := exec.ApplyBlock(blockCtx(3), []*Statement{take})
	require.True(t, res.Statements[0].Success)
	require.Equal(t, "5", res.Statements[0].Value.NumVal().String())
}

func TestCostExceededRevertsStatementOnly(t *testing.T) {
	exec, err := NewExecutor(1, 1_000_000) // 1 mana: not even CostPrimitive(5) fits
	require.NoError(t, err)

	body := doneTerm(t, hvm.Op2Term(hvm.OpAdd, hvm.NumTermU64(1), hvm.NumTermU64(1)))
	res := exec.ApplyBlock(blockCtx(1), []*Statement{{Run: &RunStatement{Body: body}}})
	require.False(t, res.Statements[0].Success)
	require.Equal(t, ErrCostExceeded, res.Statements[0].Err.Kind)
}

// A body that fits easily under the mana cap but needs more heap cells than
// the bits cap allows (dup's two new constructor instances) must also revert
// the statement, the same way a mana-starved one does.
func TestCostExceededRevertsStatementOnlyViaBits(t *testing.T) {
	exec, err := NewExecutor(1_000_000, 1) // 1 bit: dup-of-ctr needs several cells' worth
	require.NoError(t, err)

	pairName, ok := ParseName("Pair")
	require.True(t, ok)
	decl := &Statement{Ctr: &CtrStatement{Name: pairName, Fields: []string{"fst", "snd"}}}
	res := exec.ApplyBlock(blockCtx(1), []*Statement{decl})
	require.True(t, res.Statements[0].Success)

	pair := hvm.CtrTerm(pairName.Uint64(), []*hvm.Term{hvm.NumTermU64(3), hvm.NumTermU64(4)})
	body := doneTerm(t, hvm.DupTerm(1, 2, pair, hvm.VarTerm(1)))
	res = exec.ApplyBlock(blockCtx(2), []*Statement{{Run: &RunStatement{Body: body}}})
	require.False(t, res.Statements[0].Success)
	require.Equal(t, ErrCostExceeded, res.Statements[0].Err.Kind)
}

// A stateful fun's init term that exceeds the mana cap must report the mana
// it actually spent reducing Init, not zero: before this was fixed, Init ran
// against its own throwaway budget instead of the one applyFun's caller
// reports through, so every init-path CostExceeded masked the real spend.
func TestStatefulInitCostExceededReportsManaConsumed(t *testing.T) {
	exec, err := NewExecutor(1, 1_000_000) // 1 mana: CostPrimitive(5) alone exceeds it
	require.NoError(t, err)

	counter, ok := ParseName("Counter")
	require.True(t, ok)
	fn := &Statement{Fun: &FunStatement{
		Name:     counter,
		Stateful: true,
		Init:     hvm.Op2Term(hvm.OpAdd, hvm.NumTermU64(1), hvm.NumTermU64(1)),
		Rules: []FunRule{{
			LHS: hvm.FunTerm(counter.Uint64(), nil),
			RHS: hvm.NumTermU64(0),
		}},
	}}
	res := exec.ApplyBlock(blockCtx(1), []*Statement{fn})
	require.False(t, res.Statements[0].Success)
	require.Equal(t, ErrCostExceeded, res.Statements[0].Err.Kind)
	require.Equal(t, hvm.CostPrimitive, res.Statements[0].ManaConsumed)
}

// A run statement driven entirely through non-CALL effect continuations
// (here a single SUBJ) must still be metered in bits per allocated
// continuation cell, the same way a CALL or a dup commutation is: before
// applyCont/continueWith/buildFunCall/duplicate were routed through
// ChargeAlloc, this path paid no bits at all and a low bits cap could never
// bound it.
func TestRunThroughNonCallEffectsIsBitsMetered(t *testing.T) {
	exec, err := NewExecutor(1_000_000, 1) // 1 bit: even one SUBJ continuation needs several cells
	require.NoError(t, err)

	subj := hvm.CtrTerm(effName(t, "SUBJ"), []*hvm.Term{hvm.LamTerm(1, doneTerm(t, hvm.VarTerm(1)))})
	res := exec.ApplyBlock(blockCtx(1), []*Statement{{Run: &RunStatement{Body: subj}}})
	require.False(t, res.Statements[0].Success)
	require.Equal(t, ErrCostExceeded, res.Statements[0].Err.Kind)
}

func TestCallDispatchesToDeclaredFunctionRule(t *testing.T) {
	exec, err := NewExecutor(1_000_000, 1_000_000)
	require.NoError(t, err)

	double, ok := ParseName("Double")
	require.True(t, ok)
	const xVar = uint64(1)

	fn := &Statement{Fun: &FunStatement{
		Name: double,
		Rules: []FunRule{{
			LHS: hvm.FunTerm(double.Uint64(), []*hvm.Term{hvm.VarTerm(xVar)}),
			// {DONE (x + x)}, with x shared through an explicit dup.
			RHS: doneTerm(t, hvm.DupTerm(3, 4, hvm.VarTerm(xVar), hvm.Op2Term(hvm.OpAdd, hvm.VarTerm(3), hvm.VarTerm(4)))),
		}},
	}}
	res := exec.ApplyBlock(blockCtx(1), []*Statement{fn})
	require.True(t, res.Statements[0].Success)

	call := hvm.CtrTerm(effName(t, "CALL"), []*hvm.Term{
		hvm.NumTermU64(double.Uint64()),
		hvm.NumTermU64(21),
		hvm.LamTerm(2, doneTerm(t, hvm.VarTerm(2))),
	})
	res = exec.ApplyBlock(blockCtx(2), []*Statement{{Run: &RunStatement{Body: call}}})
	require.True(t, res.Statements[0].Success)
	require.Equal(t, "42", res.Statements[0].Value.NumVal().String())
}

func TestRegNamespaceRequiresSignerOwnership(t *testing.T) {
	exec, err := NewExecutor(1_000_000, 1_000_000)
	require.NoError(t, err)

	priv := [32]byte{}
	priv[31] = 1
	acct := kdlcrypto.FromPrivateKey(priv)
	ns := NewName(acct.NameValue)

	msg := nameSigningHash(ns)
	sig := acct.Sign(msg)

	reg := &Statement{Reg: &RegStatement{Namespace: ns, Sig: sig}}
	res := exec.ApplyBlock(blockCtx(1), []*Statement{reg})
	require.True(t, res.Statements[0].Success)

	// A second account cannot register the same namespace out from under
	// the first.
	other := [32]byte{}
	other[31] = 2
	acct2 := kdlcrypto.FromPrivateKey(other)
	sig2 := acct2.Sign(msg)
	reg2 := &Statement{Reg: &RegStatement{Namespace: ns, Sig: sig2}}
	res = exec.ApplyBlock(blockCtx(2), []*Statement{reg2})
	require.False(t, res.Statements[0].Success)
	require.Equal(t, ErrNameExists, res.Statements[0].Err.Kind)
}

func TestCtrDeclarationOwnershipAndDuplicateRejection(t *testing.T) {
	exec, err := NewExecutor(1_000_000, 1_000_000)
	require.NoError(t, err)

	name, ok := ParseName("Leaf")
	require.True(t, ok)

	stmt := &Statement{Ctr: &CtrStatement{Name: name, Fields: nil}}
	res := exec.ApplyBlock(blockCtx(1), []*Statement{stmt})
	require.True(t, res.Statements[0].Success)

	res = exec.ApplyBlock(blockCtx(2), []*Statement{stmt})
	require.False(t, res.Statements[0].Success)
	require.Equal(t, ErrNameExists, res.Statements[0].Err.Kind)
}
