// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"flag"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/manager"
	"github.com/ava-labs/avalanchego/version"
)

const (
	vmIDKey    = "vmID"
	manaCapKey = "manaCap"
	bitsCapKey = "bitsCap"
)

const (
	defaultManaCap = uint64(1_000_000)
	defaultBitsCap = uint64(1_000_000)
)

func buildFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("kindelia-plugin", flag.ContinueOnError)

	fs.Bool(vmIDKey, false, "If true, prints the engine's name/version and quits")
	fs.Uint64(manaCapKey, defaultManaCap, "Mana budget charged against a single run statement")
	fs.Uint64(bitsCapKey, defaultBitsCap, "Bit-cost budget charged against a single run statement")

	return fs
}

func getViper() (*viper.Viper, error) {
	v := viper.New()

	fs := buildFlagSet()
	pflag.CommandLine.AddGoFlagSet(fs)
	pflag.Parse()
	if err := v.BindPFlags(pflag.CommandLine); err != nil {
		return nil, err
	}

	return v, nil
}

func PrintVMID() (bool, error) {
	v, err := getViper()
	if err != nil {
		return false, err
	}
	return v.GetBool(vmIDKey), nil
}

type config struct {
	manaCap uint64
	bitsCap uint64
}

func getConfig() (config, error) {
	v, err := getViper()
	if err != nil {
		return config{}, err
	}
	return config{
		manaCap: v.GetUint64(manaCapKey),
		bitsCap: v.GetUint64(bitsCapKey),
	}, nil
}

// openDB opens the plugin process's backing store. A bare in-memory store
// is the right default for a plugin that's handed its persistence
// boundary by whatever embeds it; a future -db-path flag can swap this for
// a leveldb.New call without touching the engine.
func openDB(_ config) (database.Database, error) {
	dbManager := manager.NewMemDB(version.Semantic1_0_0)
	return dbManager.Current().Database, nil
}
