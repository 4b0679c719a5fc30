// Package blockarchive implements the BlockArchive collaborator contract
// (spec.md §4.5, C5): a read-mostly, content-addressed store of raw block
// bytes on the filesystem, keyed by block hash under a fixed bucketed path
// scheme (spec.md §6).
package blockarchive

import (
	"encoding/binary"
	"encoding/hex"
	"io"

	"github.com/Danconnolly/bsvdb/internal/chainstore"
)

// Archive is the contract ChainStore and the Synchronizer consume (spec.md
// §4.5). Implementations must ignore files that do not conform to the path
// scheme in relativePath and must never yield the same hash twice from
// BlockList.
type Archive interface {
	BlockHeader(hash chainstore.BlockHash) (chainstore.BlockHeader, error)
	BlockSize(hash chainstore.BlockHash) (uint64, error)
	GetBlock(hash chainstore.BlockHash) (io.ReadCloser, error)
	BlockExists(hash chainstore.BlockHash) (bool, error)
	BlockList() <-chan chainstore.BlockHash
}

// listCapacity is the bounded channel capacity for BlockList, matching the
// ≥1000 backpressure convention used throughout spec.md §4/§9.
const listCapacity = 1000

// relativePath computes the bucketed path scheme of spec.md §6: a block
// with hex hash H (64 chars) lives at H[62:64]/H[60:62]/H.bin. H here is the
// raw byte order of the hash (not the little-endian-reversed display
// convention), since this is a storage-internal layout, not a user-facing
// rendering.
func relativePath(hash chainstore.BlockHash) (dir1, dir2, filename string) {
	h := hex.EncodeToString(hash.Bytes())
	return h[62:64], h[60:62], h + ".bin"
}

// ReadBlockMeta reads the fixed 80-byte header and the transaction-count
// CompactSize varint that follows it in the standard block serialization,
// used directly by the Synchronizer pipeline's filter&spool stage (spec.md
// §4.6) since the BlockArchive contract exposes no dedicated accessor for
// transaction count.
func ReadBlockMeta(r io.Reader) (chainstore.BlockHeader, uint64, error) {
	headerBytes := make([]byte, chainstore.HeaderSize)
	if _, err := io.ReadFull(r, headerBytes); err != nil {
		return chainstore.BlockHeader{}, 0, err
	}
	header, err := chainstore.DecodeHeader(headerBytes)
	if err != nil {
		return chainstore.BlockHeader{}, 0, err
	}
	numTx, err := readCompactSize(r)
	if err != nil {
		return chainstore.BlockHeader{}, 0, err
	}
	return header, numTx, nil
}

// readCompactSize decodes a Bitcoin-style CompactSize varint.
func readCompactSize(r io.Reader) (uint64, error) {
	var prefix [1]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return 0, err
	}
	switch {
	case prefix[0] < 0xfd:
		return uint64(prefix[0]), nil
	case prefix[0] == 0xfd:
		var b [2]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, err
		}
		return uint64(binary.LittleEndian.Uint16(b[:])), nil
	case prefix[0] == 0xfe:
		var b [4]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, err
		}
		return uint64(binary.LittleEndian.Uint32(b[:])), nil
	default:
		var b [8]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, err
		}
		return binary.LittleEndian.Uint64(b[:]), nil
	}
}
