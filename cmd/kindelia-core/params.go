// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"flag"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/leveldb"
	"github.com/ava-labs/avalanchego/utils/logging"
)

const (
	vmIDKey       = "vmID"
	dbPathKey     = "db-path"
	listenAddrKey = "listen-addr"
	manaCapKey    = "manaCap"
	bitsCapKey    = "bitsCap"
)

const (
	defaultDBPath     = "./kindelia-db"
	defaultListenAddr = ":9650"
	defaultManaCap    = uint64(1_000_000)
	defaultBitsCap    = uint64(1_000_000)
)

func buildFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("kindelia-core", flag.ContinueOnError)

	fs.Bool(vmIDKey, false, "If true, prints the engine's name/version and quits")
	fs.String(dbPathKey, defaultDBPath, "Path to the node's persistent database")
	fs.String(listenAddrKey, defaultListenAddr, "Address the JSON-RPC query surface listens on")
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
	dbPath     string
	listenAddr string
	manaCap    uint64
	bitsCap    uint64
}

func getConfig() (config, error) {
	v, err := getViper()
	if err != nil {
		return config{}, err
	}
	return config{
		dbPath:     v.GetString(dbPathKey),
		listenAddr: v.GetString(listenAddrKey),
		manaCap:    v.GetUint64(manaCapKey),
		bitsCap:    v.GetUint64(bitsCapKey),
	}, nil
}

func openDB(cfg config) (database.Database, error) {
	return leveldb.New(cfg.dbPath, nil, logging.NoLog{}, "kindelia", nil)
}
