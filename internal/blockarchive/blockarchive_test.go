package blockarchive

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Danconnolly/bsvdb/internal/chainstore"
)

func TestRelativePathScheme(t *testing.T) {
	var hash chainstore.BlockHash
	raw, err := hex.DecodeString("000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f")
	require.NoError(t, err)
	copy(hash[:], raw)

	dir1, dir2, filename := relativePath(hash)
	assert.Equal(t, "1f", dir1)
	assert.Equal(t, "1e", dir2)
	assert.Equal(t, "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f.bin", filename)
}

func genesisBlockBytes() []byte {
	header := chainstore.BlockHeader{Version: 1, Timestamp: 1231006505, Bits: 0x1d00ffff, Nonce: 2083236893}
	var buf bytes.Buffer
	buf.Write(header.Encode())
	buf.WriteByte(0x01) // CompactSize: 1 transaction
	return buf.Bytes()
}

func TestReadBlockMeta(t *testing.T) {
	header, numTx, err := ReadBlockMeta(bytes.NewReader(genesisBlockBytes()))
	require.NoError(t, err)
	assert.Equal(t, uint32(1), header.Version)
	assert.Equal(t, uint64(1), numTx)
}

func TestReadCompactSizeWidths(t *testing.T) {
	cases := []struct {
		name string
		in   []byte
		want uint64
	}{
		{"single byte", []byte{0xfc}, 0xfc},
		{"uint16 prefix", []byte{0xfd, 0x34, 0x12}, 0x1234},
		{"uint32 prefix", []byte{0xfe, 0x78, 0x56, 0x34, 0x12}, 0x12345678},
		{"uint64 prefix", []byte{0xff, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}, 1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := readCompactSize(bytes.NewReader(c.in))
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestReadBlockMetaTruncatedHeader(t *testing.T) {
	_, _, err := ReadBlockMeta(bytes.NewReader(make([]byte, 10)))
	assert.Error(t, err)
}
