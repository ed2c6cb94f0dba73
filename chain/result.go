package chain

import "github.com/HigherOrderCO/Kindelia/hvm"

// ErrorKind enumerates the error categories the core surfaces, per the
// statement executor's error handling contract: statement index, offending
// name (if any), and cost consumed always accompany a failure.
type ErrorKind string

const (
	ErrNameExists      ErrorKind = "NameExists"
	ErrNameUnknown     ErrorKind = "NameUnknown"
	ErrArityMismatch   ErrorKind = "ArityMismatch"
	ErrTypeMismatch    ErrorKind = "TypeMismatch"
	ErrNoRuleMatch     ErrorKind = "NoRuleMatch"
	ErrNotOwner        ErrorKind = "NotOwner"
	ErrBadSignature    ErrorKind = "BadSignature"
	ErrUnsignedRequired ErrorKind = "UnsignedRequired"
	ErrCostExceeded    ErrorKind = "CostExceeded"
	ErrEffectError     ErrorKind = "EffectError"
)

// StatementError reports a failed statement with enough context for a
// caller (or a test) to attribute blame without re-deriving it.
type StatementError struct {
	Kind          ErrorKind
	Message       string
	StatementIdx  uint64
	Name          Name
	ManaConsumed  uint64
}

func (e *StatementError) Error() string { return string(e.Kind) + ": " + e.Message }

// StatementResult is the outcome of applying one statement: on success, the
// effect interpreter's final value; on failure, the error. A failed
// statement's heap and state writes are never committed — the diff is
// empty, satisfying the "effect atomicity" property.
type StatementResult struct {
	Index        uint64
	Kind         StatementKind
	Subject      Name
	Success      bool
	Value        *hvm.Ptr
	Err          *StatementError
	ManaConsumed uint64
	BitsConsumed uint64
}

// BlockResult collects the per-statement outcomes of applying one block.
type BlockResult struct {
	Height     uint64
	Statements []StatementResult
}
