// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package engine

import (
	"errors"
	"net/http"

	"github.com/ava-labs/avalanchego/api"
	"github.com/ava-labs/avalanchego/ids"

	"github.com/HigherOrderCO/Kindelia/chain"
)

var errNoSuchState = errors.New("engine: no stored state for that name")

// Service is the read-only JSON-RPC query surface (SPEC_FULL.md §4):
// callers submit statements out-of-band (ProposeStatement, or a future
// gossip collaborator) and poll here for ticks, blocks, and state.
type Service struct{ engine *Engine }

// NewService wraps an Engine for both the HTTP (CreateHandlers) and
// net/rpc (cmd/kindelia-plugin) transports to share.
func NewService(e *Engine) *Service { return &Service{engine: e} }

// GetTickReply reports the engine's current height.
type GetTickReply struct {
	Tick uint64 `json:"tick"`
}

func (s *Service) GetTick(_ *http.Request, _ *struct{}, reply *GetTickReply) error {
	blk, err := s.engine.GetBlock(s.engine.LastAccepted())
	if err != nil {
		return err
	}
	reply.Tick = blk.Hght
	return nil
}

// BlockIDArgs is an API request where the only argument is a single block
// ID — ids.Empty requests the last accepted block.
type BlockIDArgs struct {
	ID ids.ID `json:"id"`
}

func (s *Service) GetBlock(_ *http.Request, args *BlockIDArgs, reply *Block) error {
	id := args.ID
	if id == ids.Empty {
		id = s.engine.LastAccepted()
	}
	blk, err := s.engine.GetBlock(id)
	if err != nil {
		return err
	}
	*reply = *blk
	return nil
}

// GetStateArgs names the record whose stored state is requested.
type GetStateArgs struct {
	Name string `json:"name"`
}

// GetStateReply is the s-expression rendering of a name's current stored
// state term (hvm.Runtime.ShowPtr), not a re-parseable wire value — callers
// needing the raw term should read it from a CALL within a run statement
// instead.
type GetStateReply struct {
	State string `json:"state"`
}

func (s *Service) GetState(_ *http.Request, args *GetStateArgs, reply *GetStateReply) error {
	name, ok := chain.ParseName(args.Name)
	if !ok {
		return errors.New("engine: malformed name")
	}
	state, ok := s.engine.GetState(name)
	if !ok {
		return errNoSuchState
	}
	reply.State = state
	return nil
}

// GetResultArgs names the tick whose block result is requested.
type GetResultArgs struct {
	Tick uint64 `json:"tick"`
}

func (s *Service) GetResult(_ *http.Request, args *GetResultArgs, reply *chain.BlockResult) error {
	result, ok := s.engine.GetResult(args.Tick)
	if !ok {
		return errors.New("engine: no result at that tick")
	}
	*reply = *result
	return nil
}

// ProposeStatementArgs carries one already-parsed, already-signed statement.
type ProposeStatementArgs struct {
	Statement *chain.Statement `json:"statement"`
}

func (s *Service) ProposeStatement(_ *http.Request, args *ProposeStatementArgs, reply *api.EmptyReply) error {
	s.engine.ProposeStatement(args.Statement)
	return nil
}
