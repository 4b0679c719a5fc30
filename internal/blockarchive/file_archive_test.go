package blockarchive

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Danconnolly/bsvdb/internal/chainerr"
	"github.com/Danconnolly/bsvdb/internal/chainstore"
)

func writeBlock(t *testing.T, root string, hash chainstore.BlockHash, data []byte) {
	t.Helper()
	dir1, dir2, filename := relativePath(hash)
	dir := filepath.Join(root, dir1, dir2)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), data, 0o644))
}

func TestFileArchiveRoundTrip(t *testing.T) {
	root := t.TempDir()
	archive := NewFileArchive(root)

	var hash chainstore.BlockHash
	hash[0] = 0x42
	data := genesisBlockBytes()
	writeBlock(t, root, hash, data)

	exists, err := archive.BlockExists(hash)
	require.NoError(t, err)
	assert.True(t, exists)

	size, err := archive.BlockSize(hash)
	require.NoError(t, err)
	assert.Equal(t, uint64(len(data)), size)

	header, err := archive.BlockHeader(hash)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), header.Version)

	r, err := archive.GetBlock(hash)
	require.NoError(t, err)
	defer r.Close()

	headerFromMeta, numTx, err := archive.ReadMeta(hash)
	require.NoError(t, err)
	assert.Equal(t, header, headerFromMeta)
	assert.Equal(t, uint64(1), numTx)
}

func TestFileArchiveMissingBlock(t *testing.T) {
	root := t.TempDir()
	archive := NewFileArchive(root)

	var hash chainstore.BlockHash
	hash[0] = 0x99

	exists, err := archive.BlockExists(hash)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = archive.BlockSize(hash)
	assert.ErrorIs(t, err, chainerr.ErrBlockNotFound)

	_, err = archive.BlockHeader(hash)
	assert.ErrorIs(t, err, chainerr.ErrBlockNotFound)
}

func TestFileArchiveBlockList(t *testing.T) {
	root := t.TempDir()
	archive := NewFileArchive(root)

	var h1, h2 chainstore.BlockHash
	h1[0], h1[31] = 0x01, 0xaa
	h2[0], h2[31] = 0x02, 0xbb
	writeBlock(t, root, h1, genesisBlockBytes())
	writeBlock(t, root, h2, genesisBlockBytes())

	// A non-conforming file must be skipped, not surfaced as a hash.
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.txt"), []byte("not a block"), 0o644))

	seen := map[chainstore.BlockHash]bool{}
	for h := range archive.BlockList() {
		seen[h] = true
	}
	assert.Len(t, seen, 2)
	assert.True(t, seen[h1])
	assert.True(t, seen[h2])
}

func TestHashFromFilenameRejectsMismatchedBuckets(t *testing.T) {
	root := t.TempDir()
	name := "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
	dir := filepath.Join(root, "00", "00") // wrong bucket for this name
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, name+".bin")
	require.NoError(t, os.WriteFile(path, []byte{}, 0o644))

	_, ok := hashFromFilename(root, path)
	assert.False(t, ok)
}
