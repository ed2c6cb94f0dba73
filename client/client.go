package client

import (
	"context"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/rpc"

	"github.com/HigherOrderCO/Kindelia/chain"
	"github.com/HigherOrderCO/Kindelia/engine"
)

// Client defines the operations a node's JSON-RPC query surface exposes:
// statement submission and the read-only tick/block/state/result queries
// SPEC_FULL.md §4 supplements the core with.
type Client interface {
	// ProposeStatement submits an already-parsed, already-signed statement.
	ProposeStatement(ctx context.Context, stmt *chain.Statement) error

	// GetTick fetches the engine's current height.
	GetTick(ctx context.Context) (uint64, error)

	// GetBlock fetches the block with the given ID, or the last accepted
	// block if blockID is ids.Empty.
	GetBlock(ctx context.Context, blockID ids.ID) (*engine.Block, error)

	// GetState fetches the s-expression rendering of a name's current
	// stored state.
	GetState(ctx context.Context, name chain.Name) (string, error)

	// GetResult fetches the execution result of the block at the given
	// tick.
	GetResult(ctx context.Context, tick uint64) (*chain.BlockResult, error)
}

// New creates a new client object.
func New(uri string) Client {
	req := rpc.NewEndpointRequester(uri, engine.Name)
	return &client{req: req}
}

type client struct {
	req rpc.EndpointRequester
}

func (cli *client) ProposeStatement(ctx context.Context, stmt *chain.Statement) error {
	resp := new(interface{})
	return cli.req.SendRequest(ctx,
		"proposeStatement",
		&engine.ProposeStatementArgs{Statement: stmt},
		resp,
	)
}

func (cli *client) GetTick(ctx context.Context) (uint64, error) {
	resp := new(engine.GetTickReply)
	err := cli.req.SendRequest(ctx, "getTick", &struct{}{}, resp)
	if err != nil {
		return 0, err
	}
	return resp.Tick, nil
}

func (cli *client) GetBlock(ctx context.Context, blockID ids.ID) (*engine.Block, error) {
	resp := new(engine.Block)
	err := cli.req.SendRequest(ctx,
		"getBlock",
		&engine.BlockIDArgs{ID: blockID},
		resp,
	)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (cli *client) GetState(ctx context.Context, name chain.Name) (string, error) {
	resp := new(engine.GetStateReply)
	err := cli.req.SendRequest(ctx,
		"getState",
		&engine.GetStateArgs{Name: name.String()},
		resp,
	)
	if err != nil {
		return "", err
	}
	return resp.State, nil
}

func (cli *client) GetResult(ctx context.Context, tick uint64) (*chain.BlockResult, error) {
	resp := new(chain.BlockResult)
	err := cli.req.SendRequest(ctx,
		"getResult",
		&engine.GetResultArgs{Tick: tick},
		resp,
	)
	if err != nil {
		return nil, err
	}
	return resp, nil
}
