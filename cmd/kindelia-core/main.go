// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/HigherOrderCO/Kindelia/engine"
)

func main() {
	printID, err := PrintVMID()
	if err != nil {
		fmt.Printf("couldn't get config: %s\n", err)
		os.Exit(1)
	}
	if printID {
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
		fmt.Printf("couldn't open db at %q: %s\n", cfg.dbPath, err)
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

	handler, err := e.CreateHandlers()
	if err != nil {
		fmt.Printf("couldn't build RPC handlers: %s\n", err)
		os.Exit(1)
	}

	fmt.Printf("%s listening on %s\n", engine.Name, cfg.listenAddr)
	if err := http.ListenAndServe(cfg.listenAddr, handler); err != nil {
		fmt.Printf("serve returned an error: %s\n", err)
		os.Exit(1)
	}
}
