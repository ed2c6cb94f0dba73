package chain

import (
	"fmt"

	"github.com/HigherOrderCO/Kindelia/hvm"
)

// effect constructor names, fixed by the ABI. They are interned like any
// other constructor name but are recognized specially by the interpreter
// rather than dispatched through the function table.
const (
	effDoneName = "DONE"
	effTakeName = "TAKE"
	effSaveName = "SAVE"
	effLoadName = "LOAD"
	effCallName = "CALL"
	effSubjName = "SUBJ"
	effFromName = "FROM"
	effTickName = "TICK"
	effTimeName = "TIME"
	effMetaName = "META"
	effHax0Name = "HAX0"
	effHax1Name = "HAX1"
	effGidxName = "GIDX"
	effSth0Name = "STH0"
	effSth1Name = "STH1"
)

// EffectTable holds the interned ids of the fifteen effect-ABI
// constructors, resolved once per Runtime so the interpreter can recognize
// a WHNF constructor's head in O(1) without re-parsing its name.
type EffectTable struct {
	ids  map[uint32]string
	byID map[string]uint32
}

func NewEffectTable(rt *hvm.Runtime) (*EffectTable, error) {
	names := []string{
		effDoneName, effTakeName, effSaveName, effLoadName, effCallName,
		effSubjName, effFromName, effTickName, effTimeName, effMetaName,
		effHax0Name, effHax1Name, effGidxName, effSth0Name, effSth1Name,
	}
	t := &EffectTable{ids: map[uint32]string{}, byID: map[string]uint32{}}
	for _, n := range names {
		name, ok := ParseName(n)
		if !ok {
			return nil, fmt.Errorf("chain: effect name %q does not fit the name alphabet", n)
		}
		id, err := rt.Intern(name.Uint64())
		if err != nil {
			return nil, err
		}
		t.ids[id] = n
		t.byID[n] = id
	}
	return t, nil
}

func (t *EffectTable) nameOf(id uint32) string { return t.ids[id] }

// EffectError is returned by the trampoline when a run's reduced term is
// not headed by a recognized effect constructor, or an effect's
// preconditions are violated (e.g. TAKE on an empty slot).
type EffectError struct {
	Reason string
}

func (e *EffectError) Error() string { return "effect error: " + e.Reason }

// runEffects drives the trampoline described by the ABI: reduce the term at
// root to WHNF, dispatch on its head constructor, and either return a final
// value (DONE) or build the next root from the continuation and loop. It
// never recurses through the host stack across effects.
func (x *Executor) runEffects(root uint32, ctx StatementContext, budget *hvm.Budget) (hvm.Ptr, error) {
	rt := x.rt
	for {
		whnf, err := rt.Reduce(root, budget)
		if err != nil {
			return hvm.Ptr{}, err
		}
		if whnf.Tag != hvm.TagCTR {
			return hvm.Ptr{}, &EffectError{Reason: "run body did not reduce to an effect constructor"}
		}
		name := x.effects.nameOf(whnf.Ext)

		switch name {
		case effDoneName:
			// The result is reduced to WHNF in place (DONE's only field).
			return rt.Reduce(whnf.Pos, budget)

		case effTakeName:
			k := rt.Arg(whnf, 0)
			id, err := rt.Intern(ctx.Subject.Uint64())
			if err != nil {
				return hvm.Ptr{}, err
			}
			v, ok := x.states.Take(id)
			if !ok {
				return hvm.Ptr{}, &EffectError{Reason: "TAKE on empty state"}
			}
			if root, err = applyCont(rt, k, v, budget); err != nil {
				return hvm.Ptr{}, err
			}

		case effSaveName:
			v := rt.Arg(whnf, 0)
			k := rt.Arg(whnf, 1)
			id, err := rt.Intern(ctx.Subject.Uint64())
			if err != nil {
				return hvm.Ptr{}, err
			}
			x.states.Save(id, v)
			if root, err = continueWith(rt, k, budget); err != nil {
				return hvm.Ptr{}, err
			}

		case effLoadName:
			// LOAD is TAKE immediately followed by SAVE of a duplicated copy:
			// a non-consuming read.
			k := rt.Arg(whnf, 0)
			id, err := rt.Intern(ctx.Subject.Uint64())
			if err != nil {
				return hvm.Ptr{}, err
			}
			v, ok := x.states.Take(id)
			if !ok {
				v = hvm.MkEra()
			}
			a, b, err := duplicate(rt, v, budget)
			if err != nil {
				return hvm.Ptr{}, err
			}
			x.states.Save(id, a)
			if root, err = applyCont(rt, k, b, budget); err != nil {
				return hvm.Ptr{}, err
			}

		case effCallName:
			calleeNum := rt.Arg(whnf, 0)
			arg := rt.Arg(whnf, 1)
			k := rt.Arg(whnf, 2)
			if calleeNum.Tag != hvm.TagNUM {
				return hvm.Ptr{}, &EffectError{Reason: "CALL target must be a name literal"}
			}
			callee := NewName(calleeNum.NumVal().Uint64())
			calleeID, err := rt.Intern(callee.Uint64())
			if err != nil {
				return hvm.Ptr{}, err
			}
			calleeCtx := ctx.AsCallee(callee)
			calleeRoot, err := buildFunCall(rt, calleeID, arg, budget)
			if err != nil {
				return hvm.Ptr{}, err
			}
			result, err := x.runEffects(calleeRoot, calleeCtx, budget)
			if err != nil {
				// nested effects are atomic: any failure inside CALL
				// reverts the entire enclosing statement.
				return hvm.Ptr{}, err
			}
			if root, err = applyCont(rt, k, result, budget); err != nil {
				return hvm.Ptr{}, err
			}

		case effSubjName:
			root, err = applyCont(rt, rt.Arg(whnf, 0), nameNum(ctx.Subject), budget)
		case effFromName:
			root, err = applyCont(rt, rt.Arg(whnf, 0), nameNum(ctx.Caller), budget)
		case effTickName:
			root, err = applyCont(rt, rt.Arg(whnf, 0), hvm.MkNumU64(ctx.Block.Tick), budget)
		case effTimeName:
			root, err = applyCont(rt, rt.Arg(whnf, 0), hvm.MkNumU64(ctx.Block.Time), budget)
		case effMetaName:
			root, err = applyCont(rt, rt.Arg(whnf, 0), hvm.MkNumU64(ctx.Block.Meta), budget)
		case effHax0Name:
			root, err = applyCont(rt, rt.Arg(whnf, 0), hvm.MkNumU64(ctx.Block.Hax0), budget)
		case effHax1Name:
			root, err = applyCont(rt, rt.Arg(whnf, 0), hvm.MkNumU64(ctx.Block.Hax1), budget)

		case effGidxName:
			target := rt.Arg(whnf, 0)
			k := rt.Arg(whnf, 1)
			if target.Tag != hvm.TagNUM {
				return hvm.Ptr{}, &EffectError{Reason: "GIDX target must be a name literal"}
			}
			rec, _ := x.names.Get(NewName(target.NumVal().Uint64()))
			root, err = applyCont(rt, k, hvm.MkNumU64(rec.StmtIndex), budget)

		case effSth0Name, effSth1Name:
			idxPtr := rt.Arg(whnf, 0)
			k := rt.Arg(whnf, 1)
			if idxPtr.Tag != hvm.TagNUM {
				return hvm.Ptr{}, &EffectError{Reason: "STH0/STH1 index must be a number"}
			}
			idx := idxPtr.NumVal().Uint64()
			half := x.statementHashHalf(idx, name == effSth1Name)
			root, err = applyCont(rt, k, hvm.MkNumU64(half), budget)

		default:
			return hvm.Ptr{}, &EffectError{Reason: "unrecognized effect constructor"}
		}
		if err != nil {
			return hvm.Ptr{}, err
		}
	}
}

// applyCont allocates `(k v)` on the heap and returns a fresh root slot
// pointing at it, ready for the next Reduce pass. Metered through
// ChargeAlloc like every rewrite's own allocation, so a run statement built
// entirely out of non-CALL effect continuations still pays bits per step
// and can trip the bits cap the same as any other heap growth.
func applyCont(rt *hvm.Runtime, k, v hvm.Ptr, budget *hvm.Budget) (uint32, error) {
	node, err := rt.ChargeAlloc(2, budget)
	if err != nil {
		return 0, err
	}
	rt.Write(node+0, k)
	rt.Write(node+1, v)
	root, err := rt.ChargeAlloc(1, budget)
	if err != nil {
		return 0, err
	}
	rt.Write(root, hvm.MkApp(node))
	return root, nil
}

// continueWith wraps an already-formed continuation term in a fresh root
// slot without applying it to anything (SAVE's continuation is the next
// computation itself, not a function awaiting an argument).
func continueWith(rt *hvm.Runtime, k hvm.Ptr, budget *hvm.Budget) (uint32, error) {
	root, err := rt.ChargeAlloc(1, budget)
	if err != nil {
		return 0, err
	}
	rt.Write(root, k)
	return root, nil
}

// buildFunCall constructs `(FUN calleeID arg)` and wraps it in a root slot.
func buildFunCall(rt *hvm.Runtime, calleeID uint32, arg hvm.Ptr, budget *hvm.Budget) (uint32, error) {
	node, err := rt.ChargeAlloc(1, budget)
	if err != nil {
		return 0, err
	}
	rt.Write(node+0, arg)
	root, err := rt.ChargeAlloc(1, budget)
	if err != nil {
		return 0, err
	}
	rt.Write(root, hvm.MkFun(calleeID, node))
	return root, nil
}

// duplicate shares v between two fresh projections via an explicit dup
// node, the linear-discipline way to hand the same value to two
// consumers (LOAD's non-consuming semantics).
func duplicate(rt *hvm.Runtime, v hvm.Ptr, budget *hvm.Budget) (hvm.Ptr, hvm.Ptr, error) {
	node, err := rt.ChargeAlloc(3, budget)
	if err != nil {
		return hvm.Ptr{}, hvm.Ptr{}, err
	}
	label := rt.NextDupLabel()
	rt.Write(node+2, v)
	a := hvm.MkDp0(label, node)
	b := hvm.MkDp1(label, node)
	return a, b, nil
}

func nameNum(n Name) hvm.Ptr { return hvm.MkNumU64(n.Uint64()) }
