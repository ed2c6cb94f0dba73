// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"os"

	goplugin "github.com/hashicorp/go-plugin"

	"github.com/HigherOrderCO/Kindelia/engine"
)

func main() {
	print, err := PrintVMID()
	if err != nil {
		fmt.Printf("couldn't get config: %s\n", err)
		os.Exit(1)
	}
	if print {
		fmt.Printf("%s@%s\n", engine.Name, engine.Version)
		os.Exit(0)
	}

	cfg, err := getConfig()
	if err != nil {
		fmt.Printf("couldn't get config: %s\n", err)
		os.Exit(1)
	}

	db, err := openDB(cfg)
	if err != nil {
		fmt.Printf("couldn't open db: %s\n", err)
		os.Exit(1)
	}

	e := engine.NewEngine()
	if err := e.Initialize(db, engine.Config{
		ManaCapPerStatement: cfg.manaCap,
		BitsCapPerStatement: cfg.bitsCap,
	}); err != nil {
		fmt.Printf("couldn't initialize engine: %s\n", err)
		os.Exit(1)
	}

	goplugin.Serve(&goplugin.ServeConfig{
		HandshakeConfig: Handshake,
		Plugins: map[string]goplugin.Plugin{
			"engine": &EnginePlugin{Impl: engine.NewService(e)},
		},
	})
}
