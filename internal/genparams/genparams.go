// Package genparams holds the per-chain genesis constants and default
// directory roots described in spec.md §4.3 and §6. It plays the role the
// teacher's params.ChainConfig / params.MainnetChainConfig play for
// go-ethereum: a small, fixed table of network parameters selected by name.
package genparams

import (
	"math/big"

	"github.com/Danconnolly/bsvdb/internal/chainerr"
)

// Chain identifies one of the four supported networks.
type Chain string

const (
	Mainnet  Chain = "mainnet"
	Testnet  Chain = "testnet"
	Stn      Chain = "stn"
	Regtest  Chain = "regtest"
	Unconfig Chain = ""
)

// Genesis holds the fixed attributes of chain id 0 for a given network, per
// spec.md §4.3 "Genesis constants".
type Genesis struct {
	HeaderHex  string // 160 hex chars, the 80-byte genesis header
	HashHex    string // big-endian display form, for documentation/tests only
	Size       uint64
	NumTx      uint64
	TotalTx    uint64
	TotalSize  uint64
	Miner      string
	MedianTime uint64
	ChainWork  *big.Int
}

// DefaultRootPath returns the bsvmain|bsvtest|bsvstn|bsvregtest default used
// when chain_store.root_path is left empty (§6).
func (c Chain) DefaultRootPath() string {
	switch c {
	case Mainnet:
		return "bsvmain"
	case Testnet:
		return "bsvtest"
	case Stn:
		return "bsvstn"
	case Regtest:
		return "bsvregtest"
	default:
		return ""
	}
}

// genesisHeaderHex is the canonical Bitcoin genesis block header: version 1,
// zero previous-hash, the well-known single-coinbase merkle root, timestamp
// 1231006505 (2009-01-03), bits 0x1d00ffff, nonce 2083236893. Test, STN and
// regtest networks reuse the same header bytes in this implementation; only
// the derived median_time/chain_work bookkeeping differs per spec.md §4.3.
const genesisHeaderHex = "01000000" +
	"0000000000000000000000000000000000000000000000000000000000000000" +
	"3ba3edfd7a7b12b27ac72c3e67768f617fc81bc3888a51323a9fb8aa4b1e5e4a" +
	"29ab5f49" +
	"ffff001d" +
	"1dac2b7c"

var genesisChainWorkMain = mustHexBig("0000000000000000000000000000000000000000000000000000000100010001")
var genesisChainWorkRegtest = mustHexBig("0000000000000000000000000000000000000000000000000000000000000002")

func mustHexBig(hex string) *big.Int {
	v, ok := new(big.Int).SetString(hex, 16)
	if !ok {
		panic("genparams: invalid hex constant " + hex)
	}
	return v
}

// GenesisFor returns the fixed genesis record for a chain, per spec.md §4.3.
func GenesisFor(c Chain) (Genesis, error) {
	base := Genesis{
		HeaderHex: genesisHeaderHex,
		Size:      285,
		NumTx:     1,
		TotalTx:   1,
		TotalSize: 285,
		Miner:     "Satoshi Nakamoto",
	}
	switch c {
	case Mainnet:
		base.HashHex = "000000000019d6689c085ae165831e934ff763ae46a2a6c172b3f1b60a8ce26f"
		base.MedianTime = 1231006505
		base.ChainWork = genesisChainWorkMain
		return base, nil
	case Testnet, Stn:
		base.MedianTime = 1296688602
		base.ChainWork = genesisChainWorkMain
		return base, nil
	case Regtest:
		base.MedianTime = 1296688602
		base.ChainWork = genesisChainWorkRegtest
		return base, nil
	default:
		return Genesis{}, chainerr.ErrBlockchainUnknown
	}
}

// Valid reports whether c names one of the four supported networks.
func (c Chain) Valid() bool {
	switch c {
	case Mainnet, Testnet, Stn, Regtest:
		return true
	default:
		return false
	}
}
