// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package engine

import (
	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/prefixdb"
	"github.com/ava-labs/avalanchego/database/versiondb"
)

var (
	singletonStatePrefix = []byte("singleton")
	blockStatePrefix     = []byte("block")

	_ State = &state{}
)

// State bundles SingletonState and BlockState behind one Commit/Close
// lifecycle, backed by a single versioned base database.
type State interface {
	SingletonState
	BlockState

	Commit() error
	Close() error
}

type state struct {
	SingletonState
	BlockState

	baseDB *versiondb.Database
}

func NewState(db database.Database) State {
	baseDB := versiondb.New(db)

	singletonDB := prefixdb.New(singletonStatePrefix, baseDB)
	blockDB := prefixdb.New(blockStatePrefix, baseDB)

	return &state{
		SingletonState: NewSingletonState(singletonDB),
		BlockState:     NewBlockState(blockDB),
		baseDB:         baseDB,
	}
}

func (s *state) Commit() error { return s.baseDB.Commit() }
func (s *state) Close() error  { return s.baseDB.Close() }
