package chain

import "github.com/HigherOrderCO/Kindelia/hvm"

// NameRecord is the per-name metadata the executor tracks alongside the
// heap: who may mutate the name, when it was declared, and what kind of
// declaration it is. StmtIndex is the block-local index of the declaring
// statement; later statements that use the name do not update it.
type NameRecord struct {
	Owner         Name
	CreatedAtTick uint64
	StmtIndex     uint64
	IsFunction    bool
	IsConstructor bool
	Stateful      bool
	StateLoc      uint32 // not assigned by the executor; stored state is keyed by the name's interned id
}

type recordLayer map[Name]NameRecord

// RuntimeState is the layered persistent map of NameRecords, structured
// identically to the hvm heap's own draw/block/committed layering so that a
// rollback to height h reproduces both the heap and this map bit-for-bit.
type RuntimeState struct {
	draw      recordLayer
	block     recordLayer
	committed []recordLayer
	heights   []uint64
}

func NewRuntimeState() *RuntimeState {
	return &RuntimeState{draw: recordLayer{}, block: recordLayer{}}
}

func (s *RuntimeState) Get(n Name) (NameRecord, bool) {
	if r, ok := s.draw[n]; ok {
		return r, true
	}
	if r, ok := s.block[n]; ok {
		return r, true
	}
	for i := len(s.committed) - 1; i >= 0; i-- {
		if r, ok := s.committed[i][n]; ok {
			return r, true
		}
	}
	return NameRecord{}, false
}

func (s *RuntimeState) Set(n Name, rec NameRecord) { s.draw[n] = rec }

func (s *RuntimeState) CommitStatement() {
	for n, r := range s.draw {
		s.block[n] = r
	}
	s.draw = recordLayer{}
}

func (s *RuntimeState) DiscardStatement() { s.draw = recordLayer{} }

func (s *RuntimeState) CommitBlock(height uint64) {
	s.committed = append(s.committed, s.block)
	s.heights = append(s.heights, height)
	s.block = recordLayer{}
}

func (s *RuntimeState) RollbackTo(height uint64) {
	i := len(s.heights)
	for i > 0 && s.heights[i-1] > height {
		i--
	}
	s.committed = s.committed[:i]
	s.heights = s.heights[:i]
	s.block = recordLayer{}
	s.draw = recordLayer{}
}

func (s *RuntimeState) Coalesce(keep int) {
	for len(s.committed) > keep && keep > 0 {
		oldest := s.committed[0]
		next := s.committed[1]
		for n, r := range oldest {
			if _, overwritten := next[n]; !overwritten {
				next[n] = r
			}
		}
		s.committed = s.committed[1:]
		s.heights = s.heights[1:]
	}
}

func (s *RuntimeState) Height() uint64 {
	if len(s.heights) == 0 {
		return 0
	}
	return s.heights[len(s.heights)-1]
}

// StateStore wraps a hvm.Runtime's disk table (itself layered by the same
// draw/block/committed discipline) to give each stateful name a slot for
// its stored state term, keyed by the name's interned function id.
type StateStore struct {
	rt *hvm.Runtime
}

func NewStateStore(rt *hvm.Runtime) *StateStore { return &StateStore{rt: rt} }

// Take reads and empties a name's stored state. A second Take without an
// intervening Save returns ok=false, matching the effect ABI's rule that
// TAKE without SAVE leaves the slot empty for the rest of the statement.
func (s *StateStore) Take(id uint32) (hvm.Ptr, bool) {
	v, ok := s.rt.DiskRead(id)
	if !ok || v.Tag == hvm.TagERA {
		return hvm.Ptr{}, false
	}
	s.rt.DiskWrite(id, hvm.MkEra())
	return v, true
}

func (s *StateStore) Save(id uint32, v hvm.Ptr) { s.rt.DiskWrite(id, v) }

// Peek reads a name's stored state without emptying the slot, for read-only
// queries that must not disturb a subsequent TAKE.
func (s *StateStore) Peek(id uint32) (hvm.Ptr, bool) {
	v, ok := s.rt.DiskRead(id)
	if !ok || v.Tag == hvm.TagERA {
		return hvm.Ptr{}, false
	}
	return v, true
}
