package hvm

// MaxFuncs bounds how many distinct function/constructor identifiers a
// chain may ever declare. It sizes the 24-bit Ext field of Ptr (spec.md
// §3 "label/extension (up to 24 bits)"), matching the original runtime's
// MAX_FUNCS constant.
const MaxFuncs = 1 << 24

// Interner maps 60-bit chain names onto the dense, 24-bit identifiers that
// fit inside a Ptr's Ext field. Assignment is append-only and in first-seen
// order, so two nodes applying the same statement in the same position
// always agree on the id it gets. The table itself must still roll back
// with the heap layers it indexes: Runtime.RollbackTo truncates it via Len/
// Truncate so that a node which reorg'd through some ids and a node that
// reached the identical committed height without ever seeing them end up
// with identical tables, not just identical named ids within them.
type Interner struct {
	byName map[uint64]uint32
	byID   []uint64
}

func NewInterner() *Interner {
	return &Interner{byName: make(map[uint64]uint32)}
}

// Intern returns the dense id for name, allocating a fresh one if this is
// the first time name has been seen.
func (in *Interner) Intern(name uint64) (uint32, error) {
	if id, ok := in.byName[name]; ok {
		return id, nil
	}
	if len(in.byID) >= MaxFuncs {
		return 0, ErrTooManyNames
	}
	id := uint32(len(in.byID))
	in.byID = append(in.byID, name)
	in.byName[name] = id
	return id, nil
}

// Lookup returns the id already assigned to name, if any.
func (in *Interner) Lookup(name uint64) (uint32, bool) {
	id, ok := in.byName[name]
	return id, ok
}

// Name recovers the chain name for a previously interned id.
func (in *Interner) Name(id uint32) uint64 {
	if int(id) >= len(in.byID) {
		return 0
	}
	return in.byID[id]
}

// Len reports how many ids have been assigned so far, for Runtime to
// snapshot alongside a committed block layer.
func (in *Interner) Len() int { return len(in.byID) }

// Truncate discards every id assigned at or after index n, restoring the
// table to the state it was in when it had exactly n entries. Used by
// Runtime.RollbackTo to undo interning done by blocks being rolled back.
func (in *Interner) Truncate(n int) {
	if n >= len(in.byID) {
		return
	}
	for _, name := range in.byID[n:] {
		delete(in.byName, name)
	}
	in.byID = in.byID[:n]
}
