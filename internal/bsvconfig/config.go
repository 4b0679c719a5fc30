// Package bsvconfig holds the Config struct consumed by the chain store and
// block archive subsystems (spec.md §6 "Configuration surface"), following
// the teacher's miveconfig.Config + TOML pattern.
package bsvconfig

import (
	"github.com/Danconnolly/bsvdb/internal/genparams"
)

// ChainStoreConfig gates and parameterizes the ChainStore core.
type ChainStoreConfig struct {
	Enabled bool

	// RootPath is the chain_store.root_path directory prefix in the KV,
	// split on "/" (spec.md §6). Empty means the chain's conventional
	// default (genparams.Chain.DefaultRootPath).
	RootPath string `toml:",omitempty"`

	// ClusterFile is the FoundationDB cluster file path; empty selects the
	// default cluster file.
	ClusterFile string `toml:",omitempty"`
}

// BlockArchiveConfig gates and parameterizes the filesystem BlockArchive.
type BlockArchiveConfig struct {
	Enabled bool

	// RootPath is the filesystem root under which blocks are bucketed
	// (spec.md §6).
	RootPath string `toml:",omitempty"`
}

// Config is the top-level configuration surface of spec.md §6.
type Config struct {
	// Blockchain selects the genesis profile (mainnet, testnet, stn, regtest).
	Blockchain genparams.Chain

	ChainStore   ChainStoreConfig
	BlockArchive BlockArchiveConfig
}

// DefaultConfig returns the zero-value-safe defaults: mainnet, both
// subsystems disabled until explicitly turned on. This mirrors the
// teacher's node.DefaultConfig pattern of a conservative, opt-in default.
func DefaultConfig() Config {
	return Config{
		Blockchain: genparams.Mainnet,
	}
}

// ResolvedChainStoreRootPath returns cfg's configured root path, falling
// back to the chain's conventional default when empty.
func (c Config) ResolvedChainStoreRootPath() string {
	if c.ChainStore.RootPath != "" {
		return c.ChainStore.RootPath
	}
	return c.Blockchain.DefaultRootPath()
}
