package hvm

// Runtime drives one node's copy of the interaction-net machine: a shared
// global cell index space, stacked as immutable past-block layers under a
// mutable current-block layer and a statement-scoped draw buffer, plus the
// dense id tables (Interner, dup label counter) every layer's pointers are
// expressed in terms of.
//
// Reads search draw, then block, then committed layers from newest to
// oldest. Writes always land in draw. A statement's effects are made
// durable by absorbing draw into block; a block is closed by pushing block
// onto committed and starting a fresh one. A committed layer is not written
// again except when Coalesce merges the oldest layers together, which is
// what makes rollback to any surviving height exact.
type Runtime struct {
	draw      *Heap
	block     *Heap
	committed []*Heap
	heights   []uint64
	internAt  []int // interner.Len() snapshot at each CommitBlock, parallel to heights

	interner *Interner
	next     uint32              // global bump allocator cursor
	free     map[uint32][]uint32 // arity -> reusable freed run bases
	dupSeed  uint32
}

func NewRuntime() *Runtime {
	return &Runtime{
		draw:     NewHeap(),
		block:    NewHeap(),
		interner: NewInterner(),
		free:     make(map[uint32][]uint32),
	}
}

// Intern exposes the runtime's name interner to callers building Terms from
// raw chain names.
func (rt *Runtime) Intern(name uint64) (uint32, error) { return rt.interner.Intern(name) }

func (rt *Runtime) NameOf(id uint32) uint64 { return rt.interner.Name(id) }

// Lookup returns the id already assigned to name, without interning a new
// one — used by read-only queries that must not mutate the interner.
func (rt *Runtime) Lookup(name uint64) (uint32, bool) { return rt.interner.Lookup(name) }

// Alloc reserves a run of n contiguous cells from the shared index space,
// preferring a previously freed run of the same size over growing further.
func (rt *Runtime) Alloc(n uint32) uint32 {
	if n == 0 {
		return 0
	}
	if runs, ok := rt.free[n]; ok && len(runs) > 0 {
		base := runs[len(runs)-1]
		rt.free[n] = runs[:len(runs)-1]
		return base
	}
	base := rt.next
	rt.next += n
	return base
}

// ChargeAlloc reserves n cells and charges the bit half of a rewrite's cost
// against budget before handing the run to the caller, the heap-bit
// counterpart to the flat mana charge every rewrite already pays.
func (rt *Runtime) ChargeAlloc(n uint32, budget *Budget) (uint32, error) {
	if err := budget.SpendBits(uint64(n) * CostLink); err != nil {
		return 0, err
	}
	return rt.Alloc(n), nil
}

// Free releases a run back to the allocator and clears its cells from draw.
// Lower layers are not touched, so a later Read of a freed index returns
// whatever a lower layer still holds there (the zero Ptr if none does).
func (rt *Runtime) Free(loc, n uint32) {
	if n == 0 {
		return
	}
	for i := uint32(0); i < n; i++ {
		rt.draw.Unset(loc + i)
	}
	rt.free[n] = append(rt.free[n], loc)
}

// Read walks the layer stack newest-to-oldest. An index nothing ever wrote
// reads as the zero Ptr, matching the linear discipline that every index a
// rule ever dereferences was allocated and linked before use.
func (rt *Runtime) Read(idx uint32) Ptr {
	if p, ok := rt.draw.Read(idx); ok {
		return p
	}
	if p, ok := rt.block.Read(idx); ok {
		return p
	}
	for i := len(rt.committed) - 1; i >= 0; i-- {
		if p, ok := rt.committed[i].Read(idx); ok {
			return p
		}
	}
	return Ptr{}
}

func (rt *Runtime) Write(idx uint32, val Ptr) { rt.draw.Write(idx, val) }

func (rt *Runtime) Arg(term Ptr, i uint32) Ptr { return rt.Read(term.Pos + i) }

// GetArity resolves a constructor/function id's declared field count,
// falling through the same layer order as Read.
func (rt *Runtime) GetArity(id uint32) uint32 {
	if a, ok := rt.draw.Arity(id); ok {
		return a
	}
	if a, ok := rt.block.Arity(id); ok {
		return a
	}
	for i := len(rt.committed) - 1; i >= 0; i-- {
		if a, ok := rt.committed[i].Arity(id); ok {
			return a
		}
	}
	return 0
}

func (rt *Runtime) GetFunc(id uint32) *Func {
	if f, ok := rt.draw.Func(id); ok {
		return f
	}
	if f, ok := rt.block.Func(id); ok {
		return f
	}
	for i := len(rt.committed) - 1; i >= 0; i-- {
		if f, ok := rt.committed[i].Func(id); ok {
			return f
		}
	}
	return nil
}

// DefineFunc registers fn under id for the statement currently in draw.
func (rt *Runtime) DefineFunc(id uint32, fn *Func) { rt.draw.DefineFunc(id, fn) }

// BuildFunc compiles lines against this runtime's interner, so the compiled
// rules' match conditions use the same dense ids CreateTerm will write into
// call terms.
func (rt *Runtime) BuildFunc(lines [][2]*Term) (*Func, error) {
	return BuildFunc(rt.interner, lines)
}

func (rt *Runtime) DefineArity(id uint32, arity uint32) { rt.draw.DefineArity(id, arity) }

// DiskRead/DiskWrite implement the TAKE/SAVE effect's persistent slot for a
// name's state term, layered and rolled back exactly like graph cells.
func (rt *Runtime) DiskRead(id uint32) (Ptr, bool) {
	if p, ok := rt.draw.DiskRead(id); ok {
		return p, true
	}
	if p, ok := rt.block.DiskRead(id); ok {
		return p, true
	}
	for i := len(rt.committed) - 1; i >= 0; i-- {
		if p, ok := rt.committed[i].DiskRead(id); ok {
			return p, true
		}
	}
	return Ptr{}, false
}

func (rt *Runtime) DiskWrite(id uint32, val Ptr) { rt.draw.DiskWrite(id, val) }

func (rt *Runtime) nextDupLabel() uint32 {
	label := rt.dupSeed
	rt.dupSeed = (rt.dupSeed + 1) % MaxFuncs
	return label
}

// NextDupLabel exposes the per-statement dup-label counter to callers
// outside the package that need to build an explicit dup/sup pair (the
// effect interpreter's LOAD, which shares a taken value between two
// consumers instead of consuming it once).
func (rt *Runtime) NextDupLabel() uint32 { return rt.nextDupLabel() }

// SeedDupLabel resets the duplication-label counter for a new statement,
// deriving the starting point from the statement's own (tick, index)
// coordinates rather than carrying it forward as a free-running count
// across the runtime's whole lifetime. Two nodes that apply the same
// statement at the same block height always reseed to the same value and
// then hand out the same label sequence for that statement's dups,
// regardless of how much rollback/reorg history preceded it — a
// free-running counter shared across statements would instead reflect how
// many prior dups each node's own history happened to allocate, which
// diverges across differently-reorg'd nodes at identical chain state.
func (rt *Runtime) SeedDupLabel(tick uint64, index uint64) {
	h := tick*2654435761 + index*40503 // spread (tick, index) pairs across the label space
	rt.dupSeed = uint32(h % MaxFuncs)
}

// CommitStatement absorbs draw's effects into the current block layer,
// keeping them but ending their transactional isolation. Call this after a
// statement finishes without error.
func (rt *Runtime) CommitStatement() {
	rt.block.Absorb(rt.draw, true)
	rt.draw = NewHeap()
}

// DiscardStatement drops draw's effects entirely, used when a statement
// errors out partway through (e.g. exceeds its mana/bit budget) so the
// block is left exactly as it was before the statement ran.
func (rt *Runtime) DiscardStatement() {
	rt.draw.Clear()
}

// CommitBlock finalizes the current block layer as immutable history at
// height and starts a fresh block layer for the next one. The interner's
// length is snapshotted alongside the height so RollbackTo can restore it
// exactly, the same way the heap layer itself is restored.
func (rt *Runtime) CommitBlock(height uint64) {
	rt.committed = append(rt.committed, rt.block)
	rt.heights = append(rt.heights, height)
	rt.internAt = append(rt.internAt, rt.interner.Len())
	rt.block = NewHeap()
}

// RollbackTo discards every committed block layer strictly above height,
// plus the in-progress block and draw layers, and truncates the interner
// back to the id count recorded at the surviving height. Without that last
// step a node that reorg'd through some now-discarded blocks would keep
// every id those blocks interned permanently counted against MaxFuncs,
// while a node that reached the identical committed height without ever
// seeing them would not — identical chain state, divergent interner
// tables. It is the only operation that removes layers rather than adding
// them.
func (rt *Runtime) RollbackTo(height uint64) {
	i := len(rt.heights)
	for i > 0 && rt.heights[i-1] > height {
		i--
	}
	rt.committed = rt.committed[:i]
	rt.heights = rt.heights[:i]
	if i > 0 {
		rt.interner.Truncate(rt.internAt[i-1])
	} else {
		rt.interner.Truncate(0)
	}
	rt.internAt = rt.internAt[:i]
	rt.block = NewHeap()
	rt.draw = NewHeap()
}

// Coalesce merges the oldest committed layers into their successors until
// at most keep of them remain (keep <= 0 leaves them as they are), bounding the number of layers a full
// replay from genesis has to hold open. Grounded on the teacher runtime's
// rollback_push policy of keeping roughly log16(height) heaps.
func (rt *Runtime) Coalesce(keep int) {
	for len(rt.committed) > keep && keep > 0 {
		oldest := rt.committed[0]
		next := rt.committed[1]
		next.Absorb(oldest, false)
		rt.committed = rt.committed[1:]
		rt.heights = rt.heights[1:]
		rt.internAt = rt.internAt[1:]
	}
}

// Height reports the height passed to the most recent surviving
// CommitBlock, or 0 if no block layer has been committed.
func (rt *Runtime) Height() uint64 {
	if len(rt.heights) == 0 {
		return 0
	}
	return rt.heights[len(rt.heights)-1]
}

// link writes val at loc and, when val is a bound-variable pointer
// (DP0/DP1/VAR), records loc as that variable's one live occurrence by
// writing an ARG back-pointer into the variable's home slot. subst later
// reads that back-pointer to patch the occurrence directly in O(1).
func (rt *Runtime) link(loc uint32, val Ptr) Ptr {
	rt.Write(loc, val)
	switch val.Tag {
	case TagDP0, TagVAR:
		rt.Write(val.Pos, MkArg(loc))
	case TagDP1:
		rt.Write(val.Pos+1, MkArg(loc))
	}
	return val
}

// subst resolves a binder's home-slot content (an ARG back-pointer to the
// variable's sole occurrence, or ERA if the variable was never used) and
// either patches the occurrence with val or collects val as garbage.
func (rt *Runtime) subst(home Ptr, val Ptr) {
	if home.Tag != TagERA {
		rt.link(home.Pos, val)
	} else {
		rt.collect(val)
	}
}

// binder tracks, within one top-level CreateTerm call, which pattern
// variable names already have a bound value waiting (values) versus which
// have only been referenced by an occurrence that hasn't seen its binder
// yet (pending). A name is in at most one of the two maps at a time.
type binder struct {
	values  map[uint64]Ptr
	pending map[uint64]uint32
}

func newBinder() *binder {
	return &binder{values: make(map[uint64]Ptr), pending: make(map[uint64]uint32)}
}

func (rt *Runtime) bind(b *binder, loc uint32, name uint64, val Ptr) {
	if name == VarNone {
		rt.link(loc, MkEra())
		return
	}
	if ploc, ok := b.pending[name]; ok {
		delete(b.pending, name)
		rt.link(ploc, val)
		return
	}
	b.values[name] = val
	rt.link(loc, MkEra())
}

// CreateTerm writes term onto the heap at loc and returns the pointer now
// stored there, resolving every bound-variable occurrence against its
// binder within the same call.
func (rt *Runtime) CreateTerm(term *Term, loc uint32) (Ptr, error) {
	return rt.createTerm(newBinder(), term, loc)
}

func (rt *Runtime) createTerm(b *binder, term *Term, loc uint32) (Ptr, error) {
	val, err := rt.buildTermValue(b, term, loc)
	if err != nil {
		return Ptr{}, err
	}
	return rt.link(loc, val), nil
}

func (rt *Runtime) buildTermValue(b *binder, term *Term, loc uint32) (Ptr, error) {
	switch term.Kind {
	case TVar:
		if v, ok := b.values[term.Name]; ok {
			delete(b.values, term.Name)
			return v, nil
		}
		b.pending[term.Name] = loc
		return MkNumU64(0), nil

	case TDup:
		node := rt.Alloc(3)
		label := rt.nextDupLabel()
		rt.bind(b, node+0, term.Nam0, MkDp0(label, node))
		rt.bind(b, node+1, term.Nam1, MkDp1(label, node))
		if _, err := rt.createTerm(b, term.Expr, node+2); err != nil {
			return Ptr{}, err
		}
		return rt.buildTermValue(b, term.Body, loc)

	case TLam:
		node := rt.Alloc(2)
		rt.bind(b, node+0, term.Name, MkVar(node))
		if _, err := rt.createTerm(b, term.Body, node+1); err != nil {
			return Ptr{}, err
		}
		return MkLam(node), nil

	case TApp:
		node := rt.Alloc(2)
		if _, err := rt.createTerm(b, term.Func, node+0); err != nil {
			return Ptr{}, err
		}
		if _, err := rt.createTerm(b, term.Argm, node+1); err != nil {
			return Ptr{}, err
		}
		return MkApp(node), nil

	case TCtr, TFun:
		id, err := rt.interner.Intern(term.FunID)
		if err != nil {
			return Ptr{}, err
		}
		node := rt.Alloc(uint32(len(term.Args)))
		for i, arg := range term.Args {
			if _, err := rt.createTerm(b, arg, node+uint32(i)); err != nil {
				return Ptr{}, err
			}
		}
		if term.Kind == TCtr {
			return MkCtr(id, node), nil
		}
		return MkFun(id, node), nil

	case TNum:
		return MkNum(term.Num), nil

	case TOp2:
		node := rt.Alloc(2)
		if _, err := rt.createTerm(b, term.Val0, node+0); err != nil {
			return Ptr{}, err
		}
		if _, err := rt.createTerm(b, term.Val1, node+1); err != nil {
			return Ptr{}, err
		}
		return MkOp2(term.Oper, node), nil

	default:
		return Ptr{}, ErrMalformedRule
	}
}

// collect walks a subterm's cells and erases them, recursively discarding
// anything it holds — the counterpart of a rewrite rule's unused arguments
// (eras) and a dup-to-nothing's operand.
func (rt *Runtime) collect(term Ptr) {
	stack := []Ptr{}
	next := term
	for {
		cur := next
		switch cur.Tag {
		case TagDP0, TagDP1:
			// Erase this projection's own home slot. The pair's shared
			// expr can only be freed once both projections are unused.
			mySlot, otherSlot := uint32(0), uint32(1)
			if cur.Tag == TagDP1 {
				mySlot, otherSlot = 1, 0
			}
			rt.link(cur.Pos+mySlot, MkEra())
			if other := rt.Read(cur.Pos + otherSlot); other.Tag == TagERA {
				next = rt.Arg(cur, 2)
				rt.Free(cur.Pos, 3)
				continue
			}
		case TagVAR:
			rt.link(cur.Pos+0, MkEra())
		case TagLAM:
			if arg0 := rt.Arg(cur, 0); arg0.Tag != TagERA {
				rt.link(arg0.Pos, MkEra())
			}
			next = rt.Arg(cur, 1)
			rt.Free(cur.Pos, 2)
			continue
		case TagAPP:
			stack = append(stack, rt.Arg(cur, 0))
			next = rt.Arg(cur, 1)
			rt.Free(cur.Pos, 2)
			continue
		case TagSUP:
			stack = append(stack, rt.Arg(cur, 0))
			next = rt.Arg(cur, 1)
			rt.Free(cur.Pos, 2)
			continue
		case TagOP2:
			stack = append(stack, rt.Arg(cur, 0))
			next = rt.Arg(cur, 1)
			rt.Free(cur.Pos, 2)
			continue
		case TagNUM:
			// nothing to do
		case TagCTR, TagFUN:
			arity := rt.GetArity(cur.Ext)
			if arity > 0 {
				for i := uint32(0); i < arity; i++ {
					if i < arity-1 {
						stack = append(stack, rt.Arg(cur, i))
					} else {
						next = rt.Arg(cur, i)
					}
				}
				rt.Free(cur.Pos, arity)
				continue
			}
		}
		if len(stack) == 0 {
			return
		}
		next = stack[len(stack)-1]
		stack = stack[:len(stack)-1]
	}
}
