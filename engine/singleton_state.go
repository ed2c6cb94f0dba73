// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package engine

import (
	"encoding/binary"

	"github.com/ava-labs/avalanchego/database"
)

var (
	isInitializedKey    = []byte{0}
	checkpointHeightKey = []byte{1}

	_ SingletonState = (*singletonState)(nil)
)

// SingletonState is a thin wrapper around a database providing the two
// facts that don't belong to any one block: whether the database has been
// initialized with genesis, and the height of the last checkpoint taken.
// On startup Engine.Initialize replays every accepted block, genesis
// first, from the block store; the checkpoint height is only logged.
type SingletonState interface {
	IsInitialized() (bool, error)
	SetInitialized() error

	CheckpointHeight() (uint64, bool, error)
	SetCheckpointHeight(height uint64) error
}

type singletonState struct {
	db database.Database
}

func NewSingletonState(db database.Database) SingletonState {
	return &singletonState{db: db}
}

func (s *singletonState) IsInitialized() (bool, error) {
	return s.db.Has(isInitializedKey)
}

func (s *singletonState) SetInitialized() error {
	return s.db.Put(isInitializedKey, nil)
}

func (s *singletonState) CheckpointHeight() (uint64, bool, error) {
	has, err := s.db.Has(checkpointHeightKey)
	if err != nil || !has {
		return 0, false, err
	}
	raw, err := s.db.Get(checkpointHeightKey)
	if err != nil {
		return 0, false, err
	}
	return binary.BigEndian.Uint64(raw), true, nil
}

func (s *singletonState) SetCheckpointHeight(height uint64) error {
	raw := make([]byte, 8)
	binary.BigEndian.PutUint64(raw, height)
	return s.db.Put(checkpointHeightKey, raw)
}
