package chain

// BlockContext is the immutable per-block environment every statement
// executes under: height, timestamp, producer metadata, and the two halves
// of the block hash exposed to the effect interpreter as HAX0/HAX1.
type BlockContext struct {
	Tick uint64
	Time uint64
	Meta uint64
	Hax0 uint64
	Hax1 uint64
}

// StatementContext narrows BlockContext to one statement: who is running
// it (Subject, the verified signer or Root) and on whose behalf (Caller,
// which only diverges from Subject inside a nested CALL effect).
type StatementContext struct {
	Block   BlockContext
	Index   uint64
	Subject Name
	Caller  Name
}

func (c StatementContext) AsCallee(callee Name) StatementContext {
	c.Caller = c.Subject
	c.Subject = callee
	return c
}
