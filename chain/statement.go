package chain

import (
	"github.com/HigherOrderCO/Kindelia/hvm"
	"github.com/HigherOrderCO/Kindelia/kdlcrypto"
)

// StatementKind identifies one of the four statement forms the executor
// accepts.
type StatementKind uint8

const (
	KindCtr StatementKind = iota
	KindFun
	KindRun
	KindReg
)

func (k StatementKind) String() string {
	switch k {
	case KindCtr:
		return "ctr"
	case KindFun:
		return "fun"
	case KindRun:
		return "run"
	case KindReg:
		return "reg"
	default:
		return "unknown"
	}
}

// CtrStatement registers a constructor with a fixed arity.
type CtrStatement struct {
	Name   Name
	Fields []string
}

// FunRule is one left-hand/right-hand rule pair of a function declaration,
// expressed directly in hvm.Term form (already past parsing).
type FunRule struct {
	LHS *hvm.Term
	RHS *hvm.Term
}

// FunStatement registers a function: its arity (implicit in the LHS
// patterns), its rewrite rules, and an optional initial state term for
// stateful functions (those that participate in TAKE/SAVE).
type FunStatement struct {
	Name    Name
	Rules   []FunRule
	Init    *hvm.Term // nil if the function is not stateful
	Stateful bool
}

// RunStatement reduces Body to WHNF and feeds the result to the effect
// interpreter. An unsigned run executes as Root; Sig, when present, is
// recovered against the keccak256 of the statement's canonical encoding.
type RunStatement struct {
	Body *hvm.Term
	Sig  *kdlcrypto.Signature
}

// RegStatement claims ownership of a namespace prefix for the signer.
type RegStatement struct {
	Namespace Name
	Sig       kdlcrypto.Signature
}

// Statement is the parsed, not-yet-applied form of one block entry. Exactly
// one of the typed fields is populated; kind() reports which one.
type Statement struct {
	Hash kdlcrypto.Hash

	Ctr *CtrStatement
	Fun *FunStatement
	Run *RunStatement
	Reg *RegStatement
}

func (s *Statement) kind() StatementKind {
	switch {
	case s.Ctr != nil:
		return KindCtr
	case s.Fun != nil:
		return KindFun
	case s.Run != nil:
		return KindRun
	default:
		return KindReg
	}
}

func (s *Statement) String() string { return s.kind().String() }
