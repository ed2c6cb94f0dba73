package hvm

import "math/big"

// TermKind discriminates the shape of a Term tree node.
type TermKind uint8

const (
	TVar TermKind = iota
	TDup
	TLam
	TApp
	TCtr
	TFun
	TNum
	TOp2
)

// VarNone marks a pattern variable that is never referenced in its rule's
// body, so its matched value can be collected instead of bound.
const VarNone uint64 = ^uint64(0)

// Term is the tree form of a program fragment, as produced by a statement's
// parsed `ctr`/`fun`/`run` body before it is written onto a Heap. Raw chain
// names (Name/FunID) are resolved through the Runtime's Interner when the
// term is created, not when the tree is built.
type Term struct {
	Kind TermKind

	Name uint64 // TVar: variable name

	Nam0, Nam1 uint64 // TDup: projection names
	Expr, Body *Term  // TDup: duplicated expr and continuation; TLam reuses Body

	Func, Argm *Term // TApp

	FunID uint64 // TCtr/TFun: raw chain name of the constructor/function
	Args  []*Term

	Num *big.Int // TNum

	Oper       Op    // TOp2
	Val0, Val1 *Term // TOp2
}

func VarTerm(name uint64) *Term { return &Term{Kind: TVar, Name: name} }

func DupTerm(nam0, nam1 uint64, expr, body *Term) *Term {
	return &Term{Kind: TDup, Nam0: nam0, Nam1: nam1, Expr: expr, Body: body}
}

func LamTerm(name uint64, body *Term) *Term {
	return &Term{Kind: TLam, Name: name, Body: body}
}

func AppTerm(fn, arg *Term) *Term { return &Term{Kind: TApp, Func: fn, Argm: arg} }

func CtrTerm(id uint64, args []*Term) *Term { return &Term{Kind: TCtr, FunID: id, Args: args} }

func FunTerm(id uint64, args []*Term) *Term { return &Term{Kind: TFun, FunID: id, Args: args} }

func NumTerm(v *big.Int) *Term { return &Term{Kind: TNum, Num: maskNum(v)} }

func NumTermU64(v uint64) *Term { return NumTerm(new(big.Int).SetUint64(v)) }

func Op2Term(op Op, v0, v1 *Term) *Term { return &Term{Kind: TOp2, Oper: op, Val0: v0, Val1: v1} }
