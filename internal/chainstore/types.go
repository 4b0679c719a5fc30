// Package chainstore implements the ChainStore core (spec.md §4.3): the
// header-level graph of blocks, identifier allocation, validity propagation,
// per-chain tip bookkeeping, and the actor front-end that serializes
// command intake while letting reads run concurrently.
//
// The on-disk layout follows spec.md §6 bit-for-bit: directories are laid
// out with the FoundationDB directory layer and every key/value is packed
// with the FoundationDB tuple layer, mirroring how original_source's
// fdb_chain_store.rs used the same substrate.
package chainstore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/Danconnolly/bsvdb/internal/chainerr"
)

// BlockId is a compact identifier assigned by a ChainStore instance.
// 0 is reserved for the chain's genesis block.
type BlockId = uint64

// HashSize is the length in bytes of a BlockHash (double-SHA256 digest).
const HashSize = 32

// HeaderSize is the length in bytes of an encoded BlockHeader.
const HeaderSize = 80

// BlockHash is the 32-byte double-SHA256 digest of a block header. It is
// totally ordered by byte comparison (spec.md §3).
type BlockHash [HashSize]byte

// Bytes returns the raw 32 bytes in the order the hash function produced
// them (no reversal).
func (h BlockHash) Bytes() []byte { return h[:] }

// String renders the hash in the little-endian-reversed hex convention used
// by block explorers and the reference client (spec.md §3 "hex rendering").
func (h BlockHash) String() string {
	rev := make([]byte, HashSize)
	for i := range h {
		rev[i] = h[HashSize-1-i]
	}
	return hex.EncodeToString(rev)
}

// Less reports whether h sorts before other under the byte-comparison total
// order defined in spec.md §3.
func (h BlockHash) Less(other BlockHash) bool {
	for i := range h {
		if h[i] != other[i] {
			return h[i] < other[i]
		}
	}
	return false
}

// IsZero reports whether h is the all-zero hash (used as the conventional
// previous-hash of genesis).
func (h BlockHash) IsZero() bool {
	return h == BlockHash{}
}

// HashFromReversedHex parses the little-endian-reversed display form (the
// inverse of BlockHash.String) back into a BlockHash.
func HashFromReversedHex(s string) (BlockHash, error) {
	var h BlockHash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("chainstore: decode hash hex: %w", err)
	}
	if len(b) != HashSize {
		return h, fmt.Errorf("chainstore: hash hex has %d bytes, want %d", len(b), HashSize)
	}
	for i := range b {
		h[i] = b[HashSize-1-i]
	}
	return h, nil
}

// BlockHeader is the 80-byte fixed Bitcoin-style block header (spec.md §3):
// version(4) prev-hash(32) merkle-root(32) timestamp(4) bits(4) nonce(4).
type BlockHeader struct {
	Version    uint32
	PrevHash   BlockHash
	MerkleRoot BlockHash
	Timestamp  uint32
	Bits       uint32
	Nonce      uint32
}

// Encode serializes the header into its verbatim 80-byte wire form.
func (h BlockHeader) Encode() []byte {
	buf := make([]byte, HeaderSize)
	putUint32LE(buf[0:4], h.Version)
	copy(buf[4:36], h.PrevHash[:])
	copy(buf[36:68], h.MerkleRoot[:])
	putUint32LE(buf[68:72], h.Timestamp)
	putUint32LE(buf[72:76], h.Bits)
	putUint32LE(buf[76:80], h.Nonce)
	return buf
}

// DecodeHeader parses an 80-byte wire-form header, per spec.md §7 HeaderDecode.
func DecodeHeader(b []byte) (BlockHeader, error) {
	var h BlockHeader
	if len(b) != HeaderSize {
		return h, fmt.Errorf("chainstore: header is %d bytes, want %d: %w", len(b), HeaderSize, chainerr.ErrHeaderDecode)
	}
	h.Version = getUint32LE(b[0:4])
	copy(h.PrevHash[:], b[4:36])
	copy(h.MerkleRoot[:], b[36:68])
	h.Timestamp = getUint32LE(b[68:72])
	h.Bits = getUint32LE(b[72:76])
	h.Nonce = getUint32LE(b[76:80])
	return h, nil
}

// Hash computes the double-SHA256 of the encoded header. The hash is
// computed on demand and is never stored as part of the header blob
// (spec.md §3).
func (h BlockHeader) Hash() BlockHash {
	first := sha256.Sum256(h.Encode())
	second := sha256.Sum256(first[:])
	return BlockHash(second)
}

func putUint32LE(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func getUint32LE(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// Validity is the block validation state lattice described in spec.md §4.3
// and the GLOSSARY.
type Validity uint8

const (
	ValidityUnknown Validity = iota
	ValidityValid
	ValidityValidHeader
	ValidityInvalid
	ValidityHeaderInvalid
	ValidityInvalidAncestor
)

func (v Validity) String() string {
	switch v {
	case ValidityUnknown:
		return "Unknown"
	case ValidityValid:
		return "Valid"
	case ValidityValidHeader:
		return "ValidHeader"
	case ValidityInvalid:
		return "Invalid"
	case ValidityHeaderInvalid:
		return "HeaderInvalid"
	case ValidityInvalidAncestor:
		return "InvalidAncestor"
	default:
		return fmt.Sprintf("Validity(%d)", uint8(v))
	}
}

// IsInvalid reports whether v belongs to the invalid-tip classification used
// by ChainState (spec.md §3 invariant 6 and §4.3 chain-state maintenance).
func (v Validity) IsInvalid() bool {
	switch v {
	case ValidityInvalid, ValidityHeaderInvalid, ValidityInvalidAncestor:
		return true
	default:
		return false
	}
}

// propagationTable implements spec.md §4.3's parent\candidate validity
// lattice exactly as tabulated. Row = parent validity, column = candidate
// (submitted) validity.
var propagationTable = map[Validity]map[Validity]Validity{
	ValidityUnknown: {
		ValidityUnknown:       ValidityUnknown,
		ValidityValidHeader:   ValidityUnknown,
		ValidityValid:         ValidityUnknown,
		ValidityInvalid:       ValidityUnknown,
		ValidityHeaderInvalid: ValidityUnknown,
	},
	ValidityValid: {
		ValidityUnknown:       ValidityUnknown,
		ValidityValidHeader:   ValidityValidHeader,
		ValidityValid:         ValidityValid,
		ValidityInvalid:       ValidityInvalid,
		ValidityHeaderInvalid: ValidityHeaderInvalid,
	},
	ValidityValidHeader: {
		ValidityUnknown:       ValidityUnknown,
		ValidityValidHeader:   ValidityValidHeader,
		ValidityValid:         ValidityValidHeader,
		ValidityInvalid:       ValidityInvalid,
		ValidityHeaderInvalid: ValidityHeaderInvalid,
	},
	ValidityInvalid: {
		ValidityUnknown:       ValidityInvalidAncestor,
		ValidityValidHeader:   ValidityInvalidAncestor,
		ValidityValid:         ValidityInvalidAncestor,
		ValidityInvalid:       ValidityInvalidAncestor,
		ValidityHeaderInvalid: ValidityInvalidAncestor,
	},
	ValidityHeaderInvalid: {
		ValidityUnknown:       ValidityInvalidAncestor,
		ValidityValidHeader:   ValidityInvalidAncestor,
		ValidityValid:         ValidityInvalidAncestor,
		ValidityInvalid:       ValidityInvalidAncestor,
		ValidityHeaderInvalid: ValidityInvalidAncestor,
	},
	ValidityInvalidAncestor: {
		ValidityUnknown:       ValidityInvalidAncestor,
		ValidityValidHeader:   ValidityInvalidAncestor,
		ValidityValid:         ValidityInvalidAncestor,
		ValidityInvalid:       ValidityInvalidAncestor,
		ValidityHeaderInvalid: ValidityInvalidAncestor,
	},
}

// PropagateValidity returns the child's stored validity given its parent's
// validity and the candidate validity submitted with the insert, per the
// table in spec.md §4.3.
func PropagateValidity(parent, candidate Validity) Validity {
	row, ok := propagationTable[parent]
	if !ok {
		return ValidityUnknown
	}
	v, ok := row[candidate]
	if !ok {
		return ValidityUnknown
	}
	return v
}

// BlockInfo is the indexed record for one block (spec.md §3).
type BlockInfo struct {
	Id     BlockId
	Hash   BlockHash
	Header BlockHeader
	Height uint64
	PrevId BlockId
	NextIds []BlockId

	// Optional aggregates; nil/unset means "absent" per spec.md §3 and §4.3.
	Size       *uint64
	NumTx      *uint64
	MedianTime *uint64
	TotalTx    *uint64
	TotalSize  *uint64
	ChainWork  *[]byte // big-endian unsigned integer bytes
	Miner      *string

	Validity Validity
}

// Clone returns a deep copy of info so callers may mutate the result without
// aliasing the slices/pointers of the original.
func (info *BlockInfo) Clone() *BlockInfo {
	if info == nil {
		return nil
	}
	c := *info
	if info.NextIds != nil {
		c.NextIds = append([]BlockId(nil), info.NextIds...)
	}
	if info.Size != nil {
		v := *info.Size
		c.Size = &v
	}
	if info.NumTx != nil {
		v := *info.NumTx
		c.NumTx = &v
	}
	if info.MedianTime != nil {
		v := *info.MedianTime
		c.MedianTime = &v
	}
	if info.TotalTx != nil {
		v := *info.TotalTx
		c.TotalTx = &v
	}
	if info.TotalSize != nil {
		v := *info.TotalSize
		c.TotalSize = &v
	}
	if info.ChainWork != nil {
		v := append([]byte(nil), (*info.ChainWork)...)
		c.ChainWork = &v
	}
	if info.Miner != nil {
		v := *info.Miner
		c.Miner = &v
	}
	return &c
}

// hasNextId reports whether id is already present in info.NextIds.
func (info *BlockInfo) hasNextId(id BlockId) bool {
	for _, n := range info.NextIds {
		if n == id {
			return true
		}
	}
	return false
}

// ChainState is the current set of chain tips (spec.md §3).
type ChainState struct {
	MostWorkTip BlockId
	ActiveTips  []BlockId
	DormantTips []BlockId
	InvalidTips []BlockId
}

// Clone returns a deep copy of the chain state.
func (cs ChainState) Clone() ChainState {
	return ChainState{
		MostWorkTip: cs.MostWorkTip,
		ActiveTips:  append([]BlockId(nil), cs.ActiveTips...),
		DormantTips: append([]BlockId(nil), cs.DormantTips...),
		InvalidTips: append([]BlockId(nil), cs.InvalidTips...),
	}
}

func removeTip(tips []BlockId, id BlockId) []BlockId {
	out := tips[:0:0]
	for _, t := range tips {
		if t != id {
			out = append(out, t)
		}
	}
	return out
}

func containsTip(tips []BlockId, id BlockId) bool {
	for _, t := range tips {
		if t == id {
			return true
		}
	}
	return false
}
