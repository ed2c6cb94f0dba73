package chain

import (
	"errors"
	"fmt"

	log "github.com/inconshreveable/log15"

	"github.com/HigherOrderCO/Kindelia/hvm"
	"github.com/HigherOrderCO/Kindelia/kdlcrypto"
)

// Executor applies statements against a shared hvm.Runtime and name-record
// map, enforcing ownership, charging mana/bits, and reverting a statement's
// effects in isolation on any failure. It holds exclusive ownership of both
// structures for the duration of a block, per the single-threaded
// determinism requirement.
type Executor struct {
	rt      *hvm.Runtime
	names   *RuntimeState
	states  *StateStore
	effects *EffectTable

	manaCap uint64
	bitsCap uint64

	blockHashes []kdlcrypto.Hash // per-statement hashes of the block in progress
	log         log.Logger
}

func NewExecutor(manaCapPerStatement, bitsCapPerStatement uint64) (*Executor, error) {
	rt := hvm.NewRuntime()
	effects, err := NewEffectTable(rt)
	if err != nil {
		return nil, err
	}
	return &Executor{
		rt:      rt,
		names:   NewRuntimeState(),
		states:  NewStateStore(rt),
		effects: effects,
		manaCap: manaCapPerStatement,
		bitsCap: bitsCapPerStatement,
		log:     log.New("module", "chain/executor"),
	}, nil
}

func (x *Executor) Snapshot() *Snapshot { return NewSnapshot(x) }

// ShowState renders a name's currently stored state term, for read-only
// JSON-RPC queries. It does not consume the value the way a TAKE effect
// would.
func (x *Executor) ShowState(n Name) (string, bool) {
	rec, exists := x.names.Get(n)
	if !exists || !rec.Stateful {
		return "", false
	}
	id, ok := x.rt.Lookup(n.Uint64())
	if !ok {
		return "", false
	}
	v, ok := x.states.Peek(id)
	if !ok {
		return "", false
	}
	return x.rt.ShowPtr(v), true
}

func (x *Executor) statementHashHalf(idx uint64, high bool) uint64 {
	if idx >= uint64(len(x.blockHashes)) {
		return 0
	}
	h := x.blockHashes[idx]
	var b []byte
	if high {
		b = h[0:8]
	} else {
		b = h[24:32]
	}
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

// ApplyBlock applies every statement of a block in order, committing the
// block layer once all statements have run (successfully or not — a failed
// statement reverts only itself, the block is still valid).
func (x *Executor) ApplyBlock(ctx BlockContext, statements []*Statement) *BlockResult {
	x.blockHashes = make([]kdlcrypto.Hash, len(statements))
	for i, s := range statements {
		x.blockHashes[i] = s.Hash
	}

	result := &BlockResult{Height: ctx.Tick, Statements: make([]StatementResult, len(statements))}
	for i, stmt := range statements {
		sctx := StatementContext{Block: ctx, Index: uint64(i)}
		result.Statements[i] = x.applyOne(sctx, stmt)
	}
	x.Snapshot().CommitBlock(ctx.Tick)
	return result
}

func (x *Executor) applyOne(ctx StatementContext, stmt *Statement) StatementResult {
	budget := hvm.NewBudget(x.manaCap, x.bitsCap)
	x.rt.SeedDupLabel(ctx.Block.Tick, ctx.Index)

	subject, err := x.resolveSubject(ctx, stmt)
	if err != nil {
		return x.fail(ctx, stmt, err, budget)
	}
	ctx.Subject = subject
	ctx.Caller = subject

	var (
		value *hvm.Ptr
		applyErr error
	)
	switch {
	case stmt.Ctr != nil:
		applyErr = x.applyCtr(ctx, stmt.Ctr)
	case stmt.Fun != nil:
		applyErr = x.applyFun(ctx, stmt.Fun, budget)
	case stmt.Reg != nil:
		applyErr = x.applyReg(ctx, stmt.Reg)
	case stmt.Run != nil:
		var v hvm.Ptr
		v, applyErr = x.applyRun(ctx, stmt.Run, budget)
		if applyErr == nil {
			value = &v
		}
	default:
		applyErr = fmt.Errorf("chain: statement has no populated kind")
	}

	if applyErr != nil {
		return x.fail(ctx, stmt, applyErr, budget)
	}

	x.rt.CommitStatement()
	x.names.CommitStatement()
	x.log.Debug("statement applied", "index", ctx.Index, "kind", stmt.String(), "subject", ctx.Subject, "mana", budget.Mana())
	return StatementResult{
		Index: ctx.Index, Kind: stmt.kind(), Subject: ctx.Subject,
		Success: true, Value: value, ManaConsumed: budget.Mana(), BitsConsumed: budget.Bits(),
	}
}

func (x *Executor) fail(ctx StatementContext, stmt *Statement, err error, budget *hvm.Budget) StatementResult {
	x.rt.DiscardStatement()
	x.names.DiscardStatement()

	se, ok := err.(*StatementError)
	if !ok {
		se = &StatementError{Kind: ErrEffectError, Message: err.Error()}
	}
	se.StatementIdx = ctx.Index
	se.ManaConsumed = budget.Mana()

	x.log.Error("statement reverted", "index", ctx.Index, "kind", stmt.String(), "reason", se.Error())
	return StatementResult{
		Index: ctx.Index, Kind: stmt.kind(), Subject: ctx.Subject,
		Success: false, Err: se, ManaConsumed: budget.Mana(), BitsConsumed: budget.Bits(),
	}
}

// resolveSubject returns the signer's name for a signed run, recovered from
// the run's signature over stmt.Hash, and Root for every other statement
// (unsigned runs, and ctr/fun/reg, which carry no statement signature).
func (x *Executor) resolveSubject(ctx StatementContext, stmt *Statement) (Name, error) {
	if stmt.Run == nil || stmt.Run.Sig == nil {
		return Root, nil
	}
	name, err := stmt.Run.Sig.SignerName(stmt.Hash)
	if err != nil {
		return 0, &StatementError{Kind: ErrBadSignature, Message: err.Error()}
	}
	return NewName(name), nil
}

func (x *Executor) applyCtr(ctx StatementContext, c *CtrStatement) error {
	if _, exists := x.names.Get(c.Name); exists {
		return &StatementError{Kind: ErrNameExists, Message: c.Name.String(), Name: c.Name}
	}
	if !ctx.Subject.Owns(c.Name) {
		return &StatementError{Kind: ErrNotOwner, Message: c.Name.String(), Name: c.Name}
	}
	id, err := x.rt.Intern(c.Name.Uint64())
	if err != nil {
		return err
	}
	x.rt.DefineArity(id, uint32(len(c.Fields)))
	x.names.Set(c.Name, NameRecord{
		Owner: ctx.Subject, CreatedAtTick: ctx.Block.Tick, StmtIndex: ctx.Index, IsConstructor: true,
	})
	return nil
}

func (x *Executor) applyFun(ctx StatementContext, f *FunStatement, budget *hvm.Budget) error {
	if _, exists := x.names.Get(f.Name); exists {
		return &StatementError{Kind: ErrNameExists, Message: f.Name.String(), Name: f.Name}
	}
	if !ctx.Subject.Owns(f.Name) {
		return &StatementError{Kind: ErrNotOwner, Message: f.Name.String(), Name: f.Name}
	}

	lines := make([][2]*hvm.Term, len(f.Rules))
	for i, r := range f.Rules {
		lines[i] = [2]*hvm.Term{r.LHS, r.RHS}
	}
	fn, err := x.rt.BuildFunc(lines)
	if err != nil {
		return &StatementError{Kind: ErrArityMismatch, Message: err.Error(), Name: f.Name}
	}

	id, err := x.rt.Intern(f.Name.Uint64())
	if err != nil {
		return err
	}
	x.rt.DefineArity(id, fn.Arity)
	x.rt.DefineFunc(id, fn)

	if f.Stateful && f.Init != nil {
		loc := x.rt.Alloc(1)
		if _, err := x.rt.CreateTerm(f.Init, loc); err != nil {
			return err
		}
		v, err := x.rt.Reduce(loc, budget)
		if err != nil {
			return &StatementError{Kind: ErrCostExceeded, Message: err.Error(), Name: f.Name}
		}
		x.states.Save(id, v)
	}

	x.names.Set(f.Name, NameRecord{
		Owner: ctx.Subject, CreatedAtTick: ctx.Block.Tick, StmtIndex: ctx.Index,
		IsFunction: true, Stateful: f.Stateful,
	})
	return nil
}

func (x *Executor) applyReg(ctx StatementContext, r *RegStatement) error {
	if _, exists := x.names.Get(r.Namespace); exists {
		return &StatementError{Kind: ErrNameExists, Message: r.Namespace.String(), Name: r.Namespace}
	}
	name, err := r.Sig.SignerName(nameSigningHash(r.Namespace))
	if err != nil {
		return &StatementError{Kind: ErrBadSignature, Message: err.Error(), Name: r.Namespace}
	}
	signer := NewName(name)
	if !signer.Owns(r.Namespace) {
		return &StatementError{Kind: ErrNotOwner, Message: r.Namespace.String(), Name: r.Namespace}
	}
	x.names.Set(r.Namespace, NameRecord{
		Owner: signer, CreatedAtTick: ctx.Block.Tick, StmtIndex: ctx.Index,
	})
	return nil
}

// nameSigningHash is the canonical message a reg statement's signature
// covers: the keccak256 of the namespace name's 8-byte big-endian value.
func nameSigningHash(n Name) kdlcrypto.Hash {
	v := n.Uint64()
	var buf [8]byte
	for i := 7; i >= 0; i-- {
		buf[i] = byte(v)
		v >>= 8
	}
	return kdlcrypto.Keccak256(buf[:])
}

func (x *Executor) applyRun(ctx StatementContext, r *RunStatement, budget *hvm.Budget) (hvm.Ptr, error) {
	loc := x.rt.Alloc(1)
	if _, err := x.rt.CreateTerm(r.Body, loc); err != nil {
		return hvm.Ptr{}, err
	}
	v, err := x.runEffects(loc, ctx, budget)
	if err != nil {
		if errors.Is(err, hvm.ErrManaExceeded) || errors.Is(err, hvm.ErrBitsExceeded) {
			return hvm.Ptr{}, &StatementError{Kind: ErrCostExceeded, Message: err.Error()}
		}
		if se, ok := err.(*StatementError); ok {
			return hvm.Ptr{}, se
		}
		return hvm.Ptr{}, &StatementError{Kind: ErrEffectError, Message: err.Error()}
	}
	return v, nil
}
