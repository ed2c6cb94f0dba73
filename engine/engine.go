// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package engine

import (
	"errors"
	"fmt"
	"math"
	"net/http"

	log "github.com/inconshreveable/log15"

	"github.com/gorilla/rpc/v2"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"
	cjson "github.com/ava-labs/avalanchego/utils/json"
	"github.com/ava-labs/avalanchego/version"

	"github.com/HigherOrderCO/Kindelia/chain"
	"github.com/HigherOrderCO/Kindelia/kdlcrypto"
)

const Name = "kindelia"

// checkpointInterval bounds how often a block commit also coalesces the
// executor's layered heap/name-record history and records a new checkpoint
// height — the supplemented checkpoint/journal persistence design
// (SPEC_FULL.md §4), grounded on the teacher runtime's rollback_push policy
// of keeping roughly log16(height) heaps rather than one per block.
const checkpointInterval = 16

var (
	Version = &version.Semantic{Major: 0, Minor: 1, Patch: 0}

	errNotInitialized = errors.New("engine: not initialized")
)

// Engine drives one node's copy of the core: it owns the statement
// executor, the persisted block/checkpoint state, and a small mempool of
// not-yet-applied statements. Unlike the teacher's VM, Engine does not
// implement block.ChainVM or snowman.Block — tip selection, gossip, and
// consensus are external collaborators (SPEC_FULL.md §1); this type only
// ever applies a block whose statements and context are already decided.
type Engine struct {
	state State
	exec  *chain.Executor

	mempool       []*chain.Statement
	resultsByTick map[uint64]*chain.BlockResult

	log log.Logger
}

func NewEngine() *Engine {
	return &Engine{
		resultsByTick: map[uint64]*chain.BlockResult{},
		log:           log.New("module", "engine"),
	}
}

// Config carries the knobs Initialize needs that the teacher's VM would
// otherwise have received from the consensus engine (snow.Context,
// dbManager, genesisData, toEngine channel) — none of which apply here.
type Config struct {
	ManaCapPerStatement uint64
	BitsCapPerStatement uint64
	Genesis             []*chain.Statement
}

// Initialize opens db, replays or creates genesis, and leaves the engine
// ready to accept ApplyBlock calls.
func (e *Engine) Initialize(db database.Database, cfg Config) error {
	e.log.Info("initializing engine", "version", Version)
	e.state = NewState(db)

	exec, err := chain.NewExecutor(cfg.ManaCapPerStatement, cfg.BitsCapPerStatement)
	if err != nil {
		return fmt.Errorf("engine: building executor: %w", err)
	}
	e.exec = exec

	initialized, err := e.state.IsInitialized()
	if err != nil {
		return fmt.Errorf("engine: checking initialization: %w", err)
	}
	if initialized {
		if height, ok, err := e.state.CheckpointHeight(); err == nil && ok {
			e.log.Info("resuming from checkpoint", "height", height)
		}
		// Rebuild the executor's state by replaying every accepted block,
		// genesis first, from the block store.
		var history []*Block
		for id := e.state.GetLastAccepted(); id != ids.Empty; {
			blk, err := e.state.GetBlock(id)
			if err != nil {
				return fmt.Errorf("engine: loading block for replay: %w", err)
			}
			history = append(history, blk)
			id = blk.ParentID
		}
		for i := len(history) - 1; i >= 0; i-- {
			blk := history[i]
			e.resultsByTick[blk.Context.Tick] = e.exec.ApplyBlock(blk.Context, blk.Statements)
		}
		return nil
	}

	genesisCtx := chain.BlockContext{Tick: 0}
	result := e.exec.ApplyBlock(genesisCtx, cfg.Genesis)
	e.resultsByTick[0] = result

	genesis := &Block{
		BlockID:    ids.ID{'g', 'e', 'n', 'e', 's', 'i', 's'},
		ParentID:   ids.Empty,
		Hght:       0,
		Context:    genesisCtx,
		Statements: cfg.Genesis,
		ResultRoot: resultRoot(result),
	}
	if err := e.state.PutBlock(genesis); err != nil {
		return fmt.Errorf("engine: saving genesis block: %w", err)
	}
	e.state.SetLastAccepted(genesis.BlockID)
	if err := e.state.SetInitialized(); err != nil {
		return fmt.Errorf("engine: marking initialized: %w", err)
	}
	return e.state.Commit()
}

// ProposeStatement enqueues a statement for the next BuildBlock call.
func (e *Engine) ProposeStatement(stmt *chain.Statement) { e.mempool = append(e.mempool, stmt) }

// BuildBlock drains the mempool into a new block on top of the last
// accepted one, applies it, and persists the result. There is no separate
// propose/verify/accept pipeline here: without a consensus collaborator to
// arbitrate between competing proposals, build and accept are the same
// step.
func (e *Engine) BuildBlock(meta, hax0, hax1, timestamp uint64) (*Block, *chain.BlockResult, error) {
	if e.state == nil {
		return nil, nil, errNotInitialized
	}
	parent, err := e.state.GetBlock(e.state.GetLastAccepted())
	if err != nil {
		return nil, nil, fmt.Errorf("engine: loading parent block: %w", err)
	}

	statements := e.mempool
	e.mempool = nil

	ctx := chain.BlockContext{Tick: parent.Hght + 1, Time: timestamp, Meta: meta, Hax0: hax0, Hax1: hax1}
	result := e.exec.ApplyBlock(ctx, statements)
	e.resultsByTick[ctx.Tick] = result

	blk := &Block{
		BlockID:    blockID(parent.BlockID, ctx.Tick),
		ParentID:   parent.BlockID,
		Hght:       ctx.Tick,
		Context:    ctx,
		Statements: statements,
		ResultRoot: resultRoot(result),
	}
	if err := e.state.PutBlock(blk); err != nil {
		return nil, nil, fmt.Errorf("engine: saving block: %w", err)
	}
	e.state.SetLastAccepted(blk.BlockID)
	if err := e.state.Commit(); err != nil {
		return nil, nil, err
	}
	e.maybeCheckpoint(ctx.Tick)
	return blk, result, nil
}

// ApplyBlock executes a block whose statements and context were already
// decided by the gossip/consensus collaborator — the entry point an
// external block-production pipeline uses instead of BuildBlock.
func (e *Engine) ApplyBlock(blk *Block) (*chain.BlockResult, error) {
	if e.state == nil {
		return nil, errNotInitialized
	}
	result := e.exec.ApplyBlock(blk.Context, blk.Statements)
	e.resultsByTick[blk.Context.Tick] = result
	blk.ResultRoot = resultRoot(result)

	if err := e.state.PutBlock(blk); err != nil {
		return nil, err
	}
	e.state.SetLastAccepted(blk.BlockID)
	if err := e.state.Commit(); err != nil {
		return result, err
	}
	e.maybeCheckpoint(blk.Context.Tick)
	return result, nil
}

// maybeCheckpoint coalesces the executor's committed layers down to
// roughly log16(tick) once every checkpointInterval blocks, and records the
// new checkpoint height so a restart knows how far the block store has to
// replay from. Failures are logged, not fatal: the next interval tries
// again, and an un-coalesced history is still correct, just larger.
func (e *Engine) maybeCheckpoint(tick uint64) {
	if tick == 0 || tick%checkpointInterval != 0 {
		return
	}
	keep := 1
	if tick > 16 {
		keep = int(math.Log(float64(tick))/math.Log(16)) + 1
	}
	e.exec.Snapshot().Coalesce(keep)
	if err := e.state.SetCheckpointHeight(tick); err != nil {
		e.log.Warn("failed to record checkpoint height", "tick", tick, "err", err)
	}
}

// RollbackTo rewinds the executor's layered heap and name-record map to
// height, the core's half of a chain reorganization; the caller is
// responsible for also rewinding the block store's last-accepted pointer.
func (e *Engine) RollbackTo(height uint64) { e.exec.Snapshot().RollbackTo(height) }

func (e *Engine) GetBlock(id ids.ID) (*Block, error) { return e.state.GetBlock(id) }

func (e *Engine) LastAccepted() ids.ID { return e.state.GetLastAccepted() }

func (e *Engine) GetResult(tick uint64) (*chain.BlockResult, bool) {
	r, ok := e.resultsByTick[tick]
	return r, ok
}

func (e *Engine) GetState(name chain.Name) (string, bool) { return e.exec.ShowState(name) }

func (e *Engine) HealthCheck() (interface{}, error) { return nil, nil }

func (e *Engine) VersionString() (string, error) { return Version.String(), nil }

// CreateHandlers builds the JSON-RPC transport for Service, the way the
// teacher's VM builds its own gorilla/rpc handler — but returning a plain
// http.Handler rather than a map keyed for a consensus host, since there is
// no snow/engine/common.HTTPHandler type to return here.
func (e *Engine) CreateHandlers() (http.Handler, error) {
	server := rpc.NewServer()
	codec := cjson.NewCodec()
	server.RegisterCodec(codec, "application/json")
	server.RegisterCodec(codec, "application/json;charset=UTF-8")
	if err := server.RegisterService(NewService(e), Name); err != nil {
		return nil, err
	}
	return server, nil
}

func blockID(parent ids.ID, height uint64) ids.ID {
	h := kdlcrypto.Keccak256(parent[:], encodeUint64(height))
	var id ids.ID
	copy(id[:], h[:])
	return id
}

func resultRoot(r *chain.BlockResult) ids.ID {
	hashes := make([][]byte, 0, len(r.Statements))
	for _, s := range r.Statements {
		hashes = append(hashes, encodeUint64(s.ManaConsumed), encodeBool(s.Success))
	}
	h := kdlcrypto.Keccak256(hashes...)
	var id ids.ID
	copy(id[:], h[:])
	return id
}
