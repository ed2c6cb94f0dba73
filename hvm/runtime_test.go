package hvm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReduceAddition(t *testing.T) {
	rt := NewRuntime()
	loc := rt.Alloc(1)
	term := Op2Term(OpAdd, NumTermU64(2), NumTermU64(3))
	_, err := rt.CreateTerm(term, loc)
	require.NoError(t, err)

	budget := NewBudget(1_000_000, 1_000_000)
	result, err := rt.Reduce(loc, budget)
	require.NoError(t, err)
	require.Equal(t, TagNUM, result.Tag)
	require.Equal(t, "5", result.NumVal().String())
}

func TestReduceBetaIdentity(t *testing.T) {
	rt := NewRuntime()
	loc := rt.Alloc(1)
	// (λx. x) 7
	identity := LamTerm(1, VarTerm(1))
	term := AppTerm(identity, NumTermU64(7))
	_, err := rt.CreateTerm(term, loc)
	require.NoError(t, err)

	budget := NewBudget(1_000_000, 1_000_000)
	result, err := rt.Reduce(loc, budget)
	require.NoError(t, err)
	require.Equal(t, TagNUM, result.Tag)
	require.Equal(t, "7", result.NumVal().String())
}

func TestDupOfNumberSharesValueWithBothProjections(t *testing.T) {
	rt := NewRuntime()
	loc := rt.Alloc(1)
	// dup a b = 9; (Add a b)
	term := DupTerm(1, 2, NumTermU64(9), Op2Term(OpAdd, VarTerm(1), VarTerm(2)))
	_, err := rt.CreateTerm(term, loc)
	require.NoError(t, err)

	budget := NewBudget(1_000_000, 1_000_000)
	result, err := rt.Reduce(loc, budget)
	require.NoError(t, err)
	require.Equal(t, "18", result.NumVal().String())
}

// TestDupOfLambdaDistributesApplication exercises reduceDup's TagLAM
// commutation: duplicating a lambda yields two independent lambdas sharing
// the original body through a fresh sup pair, rather than two copies of the
// body itself.
func TestDupOfLambdaDistributesApplication(t *testing.T) {
	rt := NewRuntime()
	loc := rt.Alloc(1)
	// dup f g = (λx. x); (Add (f 10) (g 20))
	identity := LamTerm(9, VarTerm(9))
	body := Op2Term(OpAdd, AppTerm(VarTerm(1), NumTermU64(10)), AppTerm(VarTerm(2), NumTermU64(20)))
	term := DupTerm(1, 2, identity, body)
	_, err := rt.CreateTerm(term, loc)
	require.NoError(t, err)

	budget := NewBudget(1_000_000, 1_000_000)
	result, err := rt.Reduce(loc, budget)
	require.NoError(t, err)
	require.Equal(t, "30", result.NumVal().String())
}

// TestDupOfConstructorDistributesFields exercises reduceDup's TagCTR
// commutation: each field of the constructor gets its own dup node instead
// of the whole constructor being copied wholesale.
func TestDupOfConstructorDistributesFields(t *testing.T) {
	rt := NewRuntime()
	pairID, err := rt.Intern(2001)
	require.NoError(t, err)
	rt.DefineArity(pairID, 2)

	loc := rt.Alloc(1)
	// dup a b = {Pair 3 4}; a
	pair := CtrTerm(2001, []*Term{NumTermU64(3), NumTermU64(4)})
	term := DupTerm(1, 2, pair, VarTerm(1))
	_, err = rt.CreateTerm(term, loc)
	require.NoError(t, err)

	budget := NewBudget(1_000_000, 1_000_000)
	result, err := rt.Reduce(loc, budget)
	require.NoError(t, err)
	require.Equal(t, TagCTR, result.Tag)
	require.Equal(t, uint64(2001), rt.NameOf(result.Ext))
	// Each field is a dup projection until it is reduced in its own cell.
	f0, err := rt.Reduce(result.Pos+0, budget)
	require.NoError(t, err)
	require.Equal(t, "3", f0.NumVal().String())
	f1, err := rt.Reduce(result.Pos+1, budget)
	require.NoError(t, err)
	require.Equal(t, "4", f1.NumVal().String())
}

// buildSup wires a raw {v0 v1} superposition under label directly onto the
// heap, bypassing CreateTerm: the surface grammar has no literal sup
// constructor (it only ever arises mid-reduction), so tests that need one
// as a starting point build it by hand, exactly as reduceApp/reduceDup/
// reduceOp2 themselves do when emitting one.
func buildSup(rt *Runtime, label uint32, v0, v1 Ptr) Ptr {
	node := rt.Alloc(2)
	rt.Write(node+0, v0)
	rt.Write(node+1, v1)
	return MkSup(label, node)
}

// buildDup wires a raw dup node around expr, with its two projections'
// occurrence sites at occ0/occ1 (an ARG back-pointer each, matching what
// link() would have installed had this dup been built through CreateTerm).
// Returns the DP0 pointer occ0 should hold.
func buildDup(rt *Runtime, label uint32, expr Ptr, occ0, occ1 uint32) Ptr {
	node := rt.Alloc(3)
	rt.Write(node+0, MkArg(occ0))
	rt.Write(node+1, MkArg(occ1))
	rt.Write(node+2, expr)
	return MkDp0(label, node)
}

// TestDupOfSupSameLabelAnnihilates exercises reduceDup's TagSUP branch when
// the dup and the sup it meets share a label: the pair annihilates, handing
// each projection its matching half directly with no new nodes created.
func TestDupOfSupSameLabelAnnihilates(t *testing.T) {
	rt := NewRuntime()
	const label = uint32(7)

	addNode := rt.Alloc(2)
	sup := buildSup(rt, label, MkNumU64(10), MkNumU64(20))
	dp0 := buildDup(rt, label, sup, addNode+0, addNode+1)
	rt.Write(addNode+0, dp0)
	rt.Write(addNode+1, MkDp1(label, dp0.Pos))

	budget := NewBudget(1_000_000, 1_000_000)
	done, err := rt.reduceDup(addNode+0, rt.Read(addNode+0), budget)
	require.NoError(t, err)
	require.True(t, done)
	require.Equal(t, uint64(CostDup), budget.Mana())
	require.Zero(t, budget.Bits(), "annihilation allocates no new cells")

	require.Equal(t, "10", rt.Read(addNode+0).NumVal().String())
	require.Equal(t, "20", rt.Read(addNode+1).NumVal().String())
}

// TestDupOfSupDifferentLabelCommutes exercises reduceDup's TagSUP branch
// when the labels differ: the dup must commute through the sup, producing
// a fresh sup over two dup nodes (the original one and a new one) rather
// than annihilating.
func TestDupOfSupDifferentLabelCommutes(t *testing.T) {
	rt := NewRuntime()
	const dupLabel, supLabel = uint32(7), uint32(9)

	addNode := rt.Alloc(2)
	sup := buildSup(rt, supLabel, MkNumU64(10), MkNumU64(20))
	dp0 := buildDup(rt, dupLabel, sup, addNode+0, addNode+1)
	rt.Write(addNode+0, dp0)
	rt.Write(addNode+1, MkDp1(dupLabel, dp0.Pos))

	budget := NewBudget(1_000_000, 1_000_000)
	done, err := rt.reduceDup(addNode+0, rt.Read(addNode+0), budget)
	require.NoError(t, err)
	require.False(t, done, "commutation leaves the new sup for the driver to revisit")
	require.NotZero(t, budget.Bits(), "commutation allocates a new sup node and a new dup node")

	result := rt.Read(addNode+0)
	require.Equal(t, TagSUP, result.Tag)
	require.Equal(t, supLabel, result.Ext)
	branch0 := rt.Arg(result, 0)
	branch1 := rt.Arg(result, 1)
	require.Equal(t, TagDP0, branch0.Tag)
	require.Equal(t, TagDP0, branch1.Tag)
	require.Equal(t, dupLabel, branch0.Ext)
	require.Equal(t, dupLabel, branch1.Ext)
	require.Equal(t, "10", rt.Arg(branch0, 2).NumVal().String())
	require.Equal(t, "20", rt.Arg(branch1, 2).NumVal().String())
}

// TestSupOfAppCommutes exercises reduceApp's TagSUP branch: applying a sup
// to an argument commutes into a sup of two applications, one per branch.
func TestSupOfAppCommutes(t *testing.T) {
	rt := NewRuntime()
	const label = uint32(3)

	identity := LamTerm(1, VarTerm(1))
	// λx. dup a b = x; (Add a b): x is used twice, so it goes through a dup.
	double := LamTerm(2, DupTerm(3, 4, VarTerm(2), Op2Term(OpAdd, VarTerm(3), VarTerm(4))))
	fLoc, gLoc := rt.Alloc(1), rt.Alloc(1)
	_, err := rt.CreateTerm(identity, fLoc)
	require.NoError(t, err)
	_, err = rt.CreateTerm(double, gLoc)
	require.NoError(t, err)

	sup := buildSup(rt, label, rt.Read(fLoc), rt.Read(gLoc))
	appNode := rt.Alloc(2)
	rt.Write(appNode+0, sup)
	rt.Write(appNode+1, MkNumU64(7))
	loc := rt.Alloc(1)
	rt.Write(loc, MkApp(appNode))

	budget := NewBudget(1_000_000, 1_000_000)
	done, err := rt.reduceApp(loc, rt.Read(loc), budget)
	require.NoError(t, err)
	require.False(t, done, "commutation leaves two new apps for the driver to reduce further")

	result := rt.Read(loc)
	require.Equal(t, TagSUP, result.Tag)
	require.Equal(t, label, result.Ext)
	app0, app1 := rt.Arg(result, 0), rt.Arg(result, 1)
	require.Equal(t, TagAPP, app0.Tag)
	require.Equal(t, TagAPP, app1.Tag)

	// result.Pos+0/+1 are the locations holding app0/app1 themselves; Reduce
	// takes a location to read from, not the term value already read.
	v0, err := rt.Reduce(result.Pos+0, budget)
	require.NoError(t, err)
	require.Equal(t, "7", v0.NumVal().String())
	v1, err := rt.Reduce(result.Pos+1, budget)
	require.NoError(t, err)
	require.Equal(t, "14", v1.NumVal().String())
}

// TestSupOfOp2Commutes exercises reduceOp2's two sup branches: a primitive
// meeting a superposed operand commutes into a sup of two primitives
// instead of forcing the sup apart first.
func TestSupOfOp2Commutes(t *testing.T) {
	rt := NewRuntime()
	const label = uint32(5)

	loc := rt.Alloc(1)
	opNode := rt.Alloc(2)
	sup := buildSup(rt, label, MkNumU64(1), MkNumU64(2))
	rt.Write(opNode+0, sup)
	rt.Write(opNode+1, MkNumU64(10))
	rt.Write(loc, MkOp2(OpAdd, opNode))

	budget := NewBudget(1_000_000, 1_000_000)
	done, err := rt.reduceOp2(loc, rt.Read(loc), budget)
	require.NoError(t, err)
	require.False(t, done)

	result := rt.Read(loc)
	require.Equal(t, TagSUP, result.Tag)
	require.Equal(t, label, result.Ext)
	op0, op1 := rt.Arg(result, 0), rt.Arg(result, 1)
	require.Equal(t, TagOP2, op0.Tag)
	require.Equal(t, TagOP2, op1.Tag)

	v0, err := rt.Reduce(result.Pos+0, budget)
	require.NoError(t, err)
	require.Equal(t, "11", v0.NumVal().String())
	v1, err := rt.Reduce(result.Pos+1, budget)
	require.NoError(t, err)
	require.Equal(t, "12", v1.NumVal().String())

	// Symmetric case: the sup on the right operand instead of the left.
	loc2 := rt.Alloc(1)
	opNode2 := rt.Alloc(2)
	sup2 := buildSup(rt, label, MkNumU64(1), MkNumU64(2))
	rt.Write(opNode2+0, MkNumU64(10))
	rt.Write(opNode2+1, sup2)
	rt.Write(loc2, MkOp2(OpAdd, opNode2))

	done, err = rt.reduceOp2(loc2, rt.Read(loc2), budget)
	require.NoError(t, err)
	require.False(t, done)
	result2 := rt.Read(loc2)
	require.Equal(t, TagSUP, result2.Tag)
	v2, err := rt.Reduce(result2.Pos+0, budget)
	require.NoError(t, err)
	require.Equal(t, "11", v2.NumVal().String())
}

// TestReduceFailsOnceBitBudgetExhausted exercises the heap-bit half of cost
// accounting: a commutation that allocates new cells (here, a sup meeting
// an application) must fail once the bit cap is spent, the same way an
// over-mana statement fails.
func TestReduceFailsOnceBitBudgetExhausted(t *testing.T) {
	rt := NewRuntime()
	const label = uint32(3)

	identity := LamTerm(1, VarTerm(1))
	fLoc := rt.Alloc(1)
	_, err := rt.CreateTerm(identity, fLoc)
	require.NoError(t, err)

	sup := buildSup(rt, label, rt.Read(fLoc), rt.Read(fLoc))
	appNode := rt.Alloc(2)
	rt.Write(appNode+0, sup)
	rt.Write(appNode+1, MkNumU64(7))
	loc := rt.Alloc(1)
	rt.Write(loc, MkApp(appNode))

	budget := NewBudget(1_000_000, 1) // 1 bit: the sup/app commutation allocates 5 cells
	_, err = rt.Reduce(loc, budget)
	require.ErrorIs(t, err, ErrBitsExceeded)
}

func TestFunctionRuleDispatch(t *testing.T) {
	rt := NewRuntime()
	succID, err := rt.Intern(1001)
	require.NoError(t, err)
	zeroID, err := rt.Intern(1002)
	require.NoError(t, err)
	doubleID, err := rt.Intern(1003)
	require.NoError(t, err)
	rt.DefineArity(succID, 1)
	rt.DefineArity(zeroID, 0)
	rt.DefineArity(doubleID, 1)

	// fun (Double Zero) = Zero
	// fun (Double (Succ n)) = (Succ (Succ (Double n)))
	ruleZero := [2]*Term{
		FunTerm(1003, []*Term{CtrTerm(1002, nil)}),
		CtrTerm(1002, nil),
	}
	ruleSucc := [2]*Term{
		FunTerm(1003, []*Term{CtrTerm(1001, []*Term{VarTerm(7)})}),
		CtrTerm(1001, []*Term{CtrTerm(1001, []*Term{FunTerm(1003, []*Term{VarTerm(7)})})}),
	}
	fn, err := rt.BuildFunc([][2]*Term{ruleZero, ruleSucc})
	require.NoError(t, err)
	rt.DefineFunc(doubleID, fn)

	// (Double (Succ (Succ Zero)))
	two := CtrTerm(1001, []*Term{CtrTerm(1001, []*Term{CtrTerm(1002, nil)})})
	loc := rt.Alloc(1)
	_, err = rt.CreateTerm(FunTerm(1003, []*Term{two}), loc)
	require.NoError(t, err)

	budget := NewBudget(1_000_000, 1_000_000)
	result, err := rt.Reduce(loc, budget)
	require.NoError(t, err)
	require.Equal(t, TagCTR, result.Tag)
	require.Equal(t, uint64(1001), rt.NameOf(result.Ext))
}

// TestRollbackToTruncatesInternerWithHeap exercises the fix to RollbackTo's
// interner handling: a node that commits two blocks' worth of interned
// names and then rolls back to the first block must end up with exactly
// the interner state a node that only ever committed the first block
// would have, not a table still carrying the second block's ids.
func TestRollbackToTruncatesInternerWithHeap(t *testing.T) {
	rt := NewRuntime()

	idA, err := rt.Intern(1001)
	require.NoError(t, err)
	rt.CommitBlock(1)
	lenAtHeight1 := rt.interner.Len()

	_, err = rt.Intern(1002)
	require.NoError(t, err)
	_, err = rt.Intern(1003)
	require.NoError(t, err)
	rt.CommitBlock(2)
	require.Greater(t, rt.interner.Len(), lenAtHeight1)

	rt.RollbackTo(1)
	require.Equal(t, lenAtHeight1, rt.interner.Len())

	_, ok := rt.Lookup(1002)
	require.False(t, ok, "name interned only in the rolled-back block must no longer resolve")

	// Re-interning 1002 now must yield the same id a node that never saw
	// the rolled-back block would assign it: the next free slot after 1001.
	idB, err := rt.Intern(1002)
	require.NoError(t, err)
	require.Equal(t, idA+1, idB)
}

// TestSeedDupLabelIsIndependentOfPriorHistory exercises the fix to
// nextDupLabel's determinism: two runtimes that reach the same statement
// via different amounts of prior dup-label churn (e.g. one replayed through
// a reorg, one did not) must still allocate the identical label sequence
// for that statement once both reseed from its (tick, index) coordinates.
func TestSeedDupLabelIsIndependentOfPriorHistory(t *testing.T) {
	rtA := NewRuntime()
	rtB := NewRuntime()

	// rtB accumulates unrelated prior dup-label churn that rtA never sees,
	// modeling a node that replayed extra history through a reorg.
	for i := 0; i < 1000; i++ {
		rtB.NextDupLabel()
	}

	const tick, index = uint64(42), uint64(3)
	rtA.SeedDupLabel(tick, index)
	rtB.SeedDupLabel(tick, index)

	for i := 0; i < 5; i++ {
		require.Equal(t, rtA.NextDupLabel(), rtB.NextDupLabel())
	}
}

func TestBudgetExceeded(t *testing.T) {
	rt := NewRuntime()
	loc := rt.Alloc(1)
	term := Op2Term(OpAdd, NumTermU64(1), NumTermU64(1))
	_, err := rt.CreateTerm(term, loc)
	require.NoError(t, err)

	budget := NewBudget(1, 1_000_000) // CostPrimitive(5) exceeds a 1-mana cap
	_, err = rt.Reduce(loc, budget)
	require.ErrorIs(t, err, ErrManaExceeded)
}
