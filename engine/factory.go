// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package engine

import "github.com/ava-labs/avalanchego/ids"

// ID names this engine when it is hosted as a plugin VM (cmd/kindelia-plugin).
var ID = ids.ID{'k', 'i', 'n', 'd', 'e', 'l', 'i', 'a'}

// Factory builds fresh Engine instances. Unlike the teacher's Factory, it
// does not implement vms.Factory (that interface hands back a
// block.ChainVM, which Engine deliberately is not) — cmd/kindelia-plugin
// constructs an Engine directly and hosts it behind go-plugin's net/rpc
// transport itself.
type Factory struct{}

func (f *Factory) New() *Engine { return NewEngine() }
