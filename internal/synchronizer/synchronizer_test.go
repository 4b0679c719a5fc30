package synchronizer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Danconnolly/bsvdb/internal/chainerr"
	"github.com/Danconnolly/bsvdb/internal/chainstore"
)

// fakeArchive is an in-memory blockarchive.Archive backed by a map of raw
// block bytes (80-byte header + CompactSize transaction count), enough to
// exercise the pipeline without a filesystem.
type fakeArchive struct {
	blocks map[chainstore.BlockHash][]byte
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{blocks: map[chainstore.BlockHash][]byte{}}
}

func (a *fakeArchive) add(header chainstore.BlockHeader) chainstore.BlockHash {
	var buf bytes.Buffer
	buf.Write(header.Encode())
	buf.WriteByte(0x01)
	hash := header.Hash()
	a.blocks[hash] = buf.Bytes()
	return hash
}

func (a *fakeArchive) BlockHeader(hash chainstore.BlockHash) (chainstore.BlockHeader, error) {
	b, ok := a.blocks[hash]
	if !ok {
		return chainstore.BlockHeader{}, chainerr.ErrBlockNotFound
	}
	h, err := chainstore.DecodeHeader(b[:chainstore.HeaderSize])
	return h, err
}

func (a *fakeArchive) BlockSize(hash chainstore.BlockHash) (uint64, error) {
	b, ok := a.blocks[hash]
	if !ok {
		return 0, chainerr.ErrBlockNotFound
	}
	return uint64(len(b)), nil
}

func (a *fakeArchive) GetBlock(hash chainstore.BlockHash) (io.ReadCloser, error) {
	b, ok := a.blocks[hash]
	if !ok {
		return nil, chainerr.ErrBlockNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (a *fakeArchive) BlockExists(hash chainstore.BlockHash) (bool, error) {
	_, ok := a.blocks[hash]
	return ok, nil
}

func (a *fakeArchive) BlockList() <-chan chainstore.BlockHash {
	out := make(chan chainstore.BlockHash, len(a.blocks))
	for h := range a.blocks {
		out <- h
	}
	close(out)
	return out
}

// fakeStore is a minimal in-memory ChainStoreReader: StoreBlockInfo allocates
// sequential ids and records by hash, so later parent lookups in the same
// test see earlier inserts.
type fakeStore struct {
	mu      sync.Mutex
	byHash  map[chainstore.BlockHash]*chainstore.BlockInfo
	nextID  chainstore.BlockId
	storeErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{byHash: map[chainstore.BlockHash]*chainstore.BlockInfo{}, nextID: 1}
}

func (s *fakeStore) seed(info *chainstore.BlockInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byHash[info.Hash] = info
}

func (s *fakeStore) BlockInfoByHash(hash chainstore.BlockHash) (*chainstore.BlockInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byHash[hash], nil
}

func (s *fakeStore) StoreBlockInfo(info *chainstore.BlockInfo) (*chainstore.BlockInfo, error) {
	if s.storeErr != nil {
		return nil, s.storeErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *info
	stored.Hash = info.Header.Hash()
	stored.Id = s.nextID
	s.nextID++
	s.byHash[stored.Hash] = &stored
	return &stored, nil
}

func TestRunStoresChildOfKnownParent(t *testing.T) {
	store := newFakeStore()
	genesisHeader := chainstore.BlockHeader{Version: 1, Nonce: 1}
	genesisHash := genesisHeader.Hash()
	store.seed(&chainstore.BlockInfo{Id: 0, Hash: genesisHash, Header: genesisHeader, Validity: chainstore.ValidityValid})

	archive := newFakeArchive()
	childHeader := chainstore.BlockHeader{Version: 1, PrevHash: genesisHash, Nonce: 2}
	childHash := archive.add(childHeader)

	result, err := Run(context.Background(), store, archive)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ArchiveHashes)
	assert.Equal(t, 1, result.Stored)
	assert.Equal(t, 0, result.Orphaned)

	stored, err := store.BlockInfoByHash(childHash)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, childHeader, stored.Header)
}

func TestRunSkipsAlreadyKnownHash(t *testing.T) {
	store := newFakeStore()
	header := chainstore.BlockHeader{Version: 1}
	hash := header.Hash()
	store.seed(&chainstore.BlockInfo{Id: 0, Hash: hash, Header: header})

	archive := newFakeArchive()
	archive.add(header)

	result, err := Run(context.Background(), store, archive)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ArchiveHashes)
	assert.Equal(t, 0, result.Stored)
}

func TestRunReportsOrphanForUnknownParent(t *testing.T) {
	store := newFakeStore()
	archive := newFakeArchive()

	var unknownParent chainstore.BlockHash
	unknownParent[0] = 0xff
	orphanHeader := chainstore.BlockHeader{Version: 1, PrevHash: unknownParent, Nonce: 7}
	archive.add(orphanHeader)

	result, err := Run(context.Background(), store, archive)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ArchiveHashes)
	assert.Equal(t, 0, result.Stored)
	assert.Equal(t, 1, result.Orphaned)
}

func TestRunChainsThroughMultipleGenerations(t *testing.T) {
	store := newFakeStore()
	genesisHeader := chainstore.BlockHeader{Version: 1, Nonce: 100}
	genesisHash := genesisHeader.Hash()
	store.seed(&chainstore.BlockInfo{Id: 0, Hash: genesisHash, Header: genesisHeader, Validity: chainstore.ValidityValid})

	archive := newFakeArchive()
	h1 := chainstore.BlockHeader{Version: 1, PrevHash: genesisHash, Nonce: 101}
	h1Hash := archive.add(h1)
	h2 := chainstore.BlockHeader{Version: 1, PrevHash: h1Hash, Nonce: 102}
	archive.add(h2)

	result, err := Run(context.Background(), store, archive)
	require.NoError(t, err)
	assert.Equal(t, 2, result.ArchiveHashes)
	assert.Equal(t, 2, result.Stored)
	assert.Equal(t, 0, result.Orphaned)
}

func TestRunToleratesStoreFailureWithoutAbortingDrain(t *testing.T) {
	store := &fakeStore{byHash: map[chainstore.BlockHash]*chainstore.BlockInfo{}, nextID: 1, storeErr: errors.New("boom")}
	var genesisHash chainstore.BlockHash
	store.seed(&chainstore.BlockInfo{Id: 0, Hash: genesisHash, Validity: chainstore.ValidityValid})

	archive := newFakeArchive()
	header := chainstore.BlockHeader{Version: 1, PrevHash: genesisHash}
	archive.add(header)

	result, err := Run(context.Background(), store, archive)
	// store_block_info failures are logged and skipped by drain, not fatal
	// to the pipeline as a whole (spec.md §4.6's drain never aborts early).
	require.NoError(t, err)
	assert.Equal(t, 0, result.Stored)
}
