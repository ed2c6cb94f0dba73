// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"net/rpc"

	goplugin "github.com/hashicorp/go-plugin"

	"github.com/HigherOrderCO/Kindelia/chain"
	"github.com/HigherOrderCO/Kindelia/engine"
)

// Handshake is the negotiation both the plugin process and its host must
// agree on before go-plugin will bridge a connection between them — the
// same purpose the teacher's rpcchainvm.Handshake served, but naming this
// core's own cookie instead of avalanchego's.
var Handshake = goplugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "KINDELIA_PLUGIN",
	MagicCookieValue: "kindelia",
}

// EnginePlugin adapts an *engine.Service to go-plugin's net/rpc transport.
// Unlike the teacher's rpcchainvm.New, which hands go-plugin something
// conforming to block.ChainVM over gRPC, this wraps the read-only query
// service directly — there is no consensus-facing surface to proxy.
type EnginePlugin struct {
	Impl *engine.Service
}

func (p *EnginePlugin) Server(*goplugin.MuxBroker) (interface{}, error) {
	return &RPCServer{impl: p.Impl}, nil
}

func (p *EnginePlugin) Client(_ *goplugin.MuxBroker, client *rpc.Client) (interface{}, error) {
	return &RPCClient{client: client}, nil
}

// RPCServer is the net/rpc-shaped wrapper the plugin process registers:
// each method drops Service's leading *http.Request argument, which only
// exists to satisfy gorilla/rpc's HTTP transport.
type RPCServer struct {
	impl *engine.Service
}

func (s *RPCServer) GetTick(_ struct{}, reply *engine.GetTickReply) error {
	return s.impl.GetTick(nil, &struct{}{}, reply)
}

func (s *RPCServer) GetBlock(args engine.BlockIDArgs, reply *engine.Block) error {
	return s.impl.GetBlock(nil, &args, reply)
}

func (s *RPCServer) GetState(args engine.GetStateArgs, reply *engine.GetStateReply) error {
	return s.impl.GetState(nil, &args, reply)
}

func (s *RPCServer) GetResult(args engine.GetResultArgs, reply *chain.BlockResult) error {
	return s.impl.GetResult(nil, &args, reply)
}

// RPCClient is the host-side stub a process embedding this plugin would
// use instead of dialing the HTTP service directly.
type RPCClient struct {
	client *rpc.Client
}

func (c *RPCClient) GetTick() (engine.GetTickReply, error) {
	var reply engine.GetTickReply
	err := c.client.Call("Plugin.GetTick", struct{}{}, &reply)
	return reply, err
}

func (c *RPCClient) GetBlock(args engine.BlockIDArgs) (engine.Block, error) {
	var reply engine.Block
	err := c.client.Call("Plugin.GetBlock", args, &reply)
	return reply, err
}
