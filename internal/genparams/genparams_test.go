package genparams

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Danconnolly/bsvdb/internal/chainerr"
)

func TestChainValid(t *testing.T) {
	assert.True(t, Mainnet.Valid())
	assert.True(t, Testnet.Valid())
	assert.True(t, Stn.Valid())
	assert.True(t, Regtest.Valid())
	assert.False(t, Unconfig.Valid())
	assert.False(t, Chain("unknown").Valid())
}

func TestDefaultRootPath(t *testing.T) {
	assert.Equal(t, "bsvmain", Mainnet.DefaultRootPath())
	assert.Equal(t, "bsvtest", Testnet.DefaultRootPath())
	assert.Equal(t, "bsvstn", Stn.DefaultRootPath())
	assert.Equal(t, "bsvregtest", Regtest.DefaultRootPath())
	assert.Equal(t, "", Unconfig.DefaultRootPath())
}

func TestGenesisForUnknownChain(t *testing.T) {
	_, err := GenesisFor(Chain("nope"))
	assert.ErrorIs(t, err, chainerr.ErrBlockchainUnknown)
}

func TestGenesisForEachSupportedChain(t *testing.T) {
	for _, c := range []Chain{Mainnet, Testnet, Stn, Regtest} {
		gen, err := GenesisFor(c)
		require.NoError(t, err)
		assert.Len(t, gen.HeaderHex, 160)
		assert.NotNil(t, gen.ChainWork)
		assert.Equal(t, uint64(1), gen.NumTx)
	}
}

// TestMainnetGenesisHashIsTheKnownBitcoinGenesisHash double-SHA256es the
// genesis header constant and checks it against the well-known mainnet
// genesis block hash, catching any transcription error in the header bytes.
func TestMainnetGenesisHashIsTheKnownBitcoinGenesisHash(t *testing.T) {
	gen, err := GenesisFor(Mainnet)
	require.NoError(t, err)

	headerBytes, err := hex.DecodeString(gen.HeaderHex)
	require.NoError(t, err)
	require.Len(t, headerBytes, 80)

	first := sha256.Sum256(headerBytes)
	second := sha256.Sum256(first[:])

	reversed := make([]byte, len(second))
	for i := range second {
		reversed[i] = second[len(second)-1-i]
	}
	assert.Equal(t, gen.HashHex, hex.EncodeToString(reversed))
}
