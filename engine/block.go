// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package engine

import (
	"github.com/ava-labs/avalanchego/ids"

	"github.com/HigherOrderCO/Kindelia/chain"
)

// Block is one applied unit of chain history: a height, a parent, the
// statements executed at that height, and the root the executor produced.
// Unlike the teacher's Block, this type does not implement snowman.Block —
// tip selection and consensus are the gossip collaborator's job; this
// package only ever receives a block whose statements have already been
// chosen and ordered.
//
// Statements is not itself wire-tagged: a recursive hvm.Term AST with an
// arbitrary-precision Num field has no shape the codec's struct reflection
// can walk. StatementBytes is the actual wire payload (chain.EncodeStatement
// per entry); BlockState.PutBlock/GetBlock fill one from the other across
// the codec boundary, the same opaque-payload idiom as the teacher's own
// Block.Data.
type Block struct {
	BlockID        ids.ID             `serialize:"true"`
	ParentID       ids.ID             `serialize:"true"`
	Hght           uint64             `serialize:"true"`
	Context        chain.BlockContext `serialize:"true"`
	StatementBytes [][]byte           `serialize:"true"`
	ResultRoot     ids.ID             `serialize:"true"`

	Statements []*chain.Statement
}

func (b *Block) ID() ids.ID        { return b.BlockID }
func (b *Block) Parent() ids.ID    { return b.ParentID }
func (b *Block) Height() uint64    { return b.Hght }
func (b *Block) Timestamp() uint64 { return b.Context.Time }
