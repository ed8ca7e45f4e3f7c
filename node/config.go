// Copyright 2024 The go-nano Authors
// This file is part of the go-nano library.
//
// The go-nano library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-nano library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-nano library. If not, see <http://www.gnu.org/licenses/>.

package node

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/naoina/toml"
	"github.com/nanocurrency/go-nano/node/blockprocessing"
	"github.com/nanocurrency/go-nano/node/cementing"
	"github.com/nanocurrency/go-nano/node/consensus"
)

// Config is the full node configuration, TOML-loadable.
type Config struct {
	// Network selects dev, beta, test or live constants.
	Network string
	// DataDir holds the ledger database; empty runs in memory.
	DataDir string
	// LogLevel is trace/debug/info/warn/error.
	LogLevel string

	BlockProcessor blockprocessing.Config
	VoteCache      consensus.VoteCacheConfig
	Elections      consensus.ElectionsConfig
	Cementing      cementing.Config
	// UncheckedMax bounds the unchecked dependency map.
	UncheckedMax int
}

// DefaultConfig returns the deployed defaults for the given network.
func DefaultConfig(network string) Config {
	return Config{
		Network:        network,
		DataDir:        defaultDataDir(network),
		LogLevel:       "info",
		BlockProcessor: blockprocessing.DefaultConfig(),
		VoteCache:      consensus.DefaultVoteCacheConfig(),
		Elections:      consensus.DefaultElectionsConfig(),
		Cementing:      cementing.DefaultConfig(),
		UncheckedMax:   blockprocessing.DefaultUncheckedMax,
	}
}

func defaultDataDir(network string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	dir := filepath.Join(home, ".go-nano")
	if network != "live" && network != "" {
		dir = filepath.Join(dir, network)
	}
	return dir
}

// LoadConfig overlays a TOML file onto the defaults.
func LoadConfig(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config %q: %w", path, err)
	}
	defer f.Close()
	if err := toml.NewDecoder(f).Decode(cfg); err != nil {
		return fmt.Errorf("parse config %q: %w", path, err)
	}
	return nil
}

// SaveConfig writes the effective configuration, the dump users start from.
func SaveConfig(path string, cfg Config) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}
