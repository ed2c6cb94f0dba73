// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package engine

import (
	"testing"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/manager"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/version"
	"github.com/stretchr/testify/assert"

	"github.com/HigherOrderCO/Kindelia/chain"
)

func newTestDB(t *testing.T) database.Database {
	dbManager := manager.NewMemDB(version.Semantic1_0_0)
	return dbManager.Current().Database
}

func newTestEngine(t *testing.T) *Engine {
	e := NewEngine()
	assert.NoError(t, e.Initialize(newTestDB(t), Config{
		ManaCapPerStatement: 1_000_000,
		BitsCapPerStatement: 1_000_000,
	}))
	return e
}

func TestGenesisIsInitializedOnce(t *testing.T) {
	db := newTestDB(t)

	e := NewEngine()
	assert.NoError(t, e.Initialize(db, Config{}))

	last := e.LastAccepted()
	assert.NotEqual(t, ids.Empty, last)

	genesis, err := e.GetBlock(last)
	assert.NoError(t, err)
	assert.Equal(t, ids.Empty, genesis.ParentID)
	assert.Equal(t, uint64(0), genesis.Hght)

	// Re-initializing against the same underlying db must not rebuild
	// genesis: the initialized flag it wrote on the first pass is already set.
	e2 := NewEngine()
	assert.NoError(t, e2.Initialize(db, Config{}))
	assert.Equal(t, last, e2.LastAccepted())
}

func TestBuildBlockAppliesMempoolAndAdvancesTick(t *testing.T) {
	e := newTestEngine(t)

	ctr := &chain.CtrStatement{Name: chain.Name(0), Fields: []string{"x"}}
	stmt := &chain.Statement{Ctr: ctr}

	e.ProposeStatement(stmt)
	blk, result, err := e.BuildBlock(0, 0, 0, 1234)
	assert.NoError(t, err)
	assert.Equal(t, uint64(1), blk.Hght)
	assert.Len(t, result.Statements, 1)

	got, err := e.GetBlock(blk.BlockID)
	assert.NoError(t, err)
	assert.Equal(t, blk.BlockID, got.BlockID)
	assert.Equal(t, e.LastAccepted(), blk.BlockID)
}

func TestServiceGetTickAndGetBlock(t *testing.T) {
	e := newTestEngine(t)
	svc := &Service{engine: e}

	var tickReply GetTickReply
	assert.NoError(t, svc.GetTick(nil, &struct{}{}, &tickReply))
	assert.Equal(t, uint64(0), tickReply.Tick)

	var blockReply Block
	assert.NoError(t, svc.GetBlock(nil, &BlockIDArgs{}, &blockReply))
	assert.Equal(t, e.LastAccepted(), blockReply.BlockID)
}
