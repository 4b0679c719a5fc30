package chainstore

import (
	"fmt"

	"github.com/Danconnolly/bsvdb/internal/kvstore"
)

// directories groups the three FDB directories that make up one chain's
// keyspace (spec.md §4.1/§6): chain_dir (root), infos_dir (child), and
// h_index_dir (child).
type directories struct {
	chain  kvstore.Directory
	infos  kvstore.Directory
	hindex kvstore.Directory
}

// openDirectories implements spec.md §4.3 "Initialization": ensure
// chain_dir, infos_dir, h_index_dir exist, creating them if absent.
func openDirectories(db *kvstore.DB, rootPath string) (directories, error) {
	root := kvstore.RootPathComponents(rootPath)
	chain, err := db.OpenOrCreateDirectory(root)
	if err != nil {
		return directories{}, fmt.Errorf("chainstore: open chain_dir: %w", err)
	}
	infos, err := db.OpenOrCreateDirectory(append(append([]string(nil), root...), "infos"))
	if err != nil {
		return directories{}, fmt.Errorf("chainstore: open infos_dir: %w", err)
	}
	hindex, err := db.OpenOrCreateDirectory(append(append([]string(nil), root...), "hindex"))
	if err != nil {
		return directories{}, fmt.Errorf("chainstore: open h_index_dir: %w", err)
	}
	return directories{chain: chain, infos: infos, hindex: hindex}, nil
}

// Singleton keys living directly under chain_dir (spec.md §6).
var (
	stateKeyTuple  = kvstore.Tuple{"state"}
	nextIdKeyTuple = kvstore.Tuple{"next_id"}
)

func (d directories) stateKey() []byte  { return d.chain.Pack(stateKeyTuple) }
func (d directories) nextIdKey() []byte { return d.chain.Pack(nextIdKeyTuple) }

func (d directories) infoKey(id BlockId) []byte {
	return d.infos.Pack(kvstore.Tuple{int64(id)})
}

func (d directories) hashIndexKey(h BlockHash) []byte {
	return d.hindex.Pack(kvstore.Tuple{h.Bytes()})
}

// idsToTuple packs a slice of BlockIds as a nested tuple of integers, per
// spec.md §4.1 "next_ids encodes as a nested tuple of integers".
func idsToTuple(ids []BlockId) kvstore.Tuple {
	t := make(kvstore.Tuple, len(ids))
	for i, id := range ids {
		t[i] = int64(id)
	}
	return t
}

func tupleToIds(t kvstore.Tuple) ([]BlockId, error) {
	ids := make([]BlockId, len(t))
	for i, v := range t {
		id, ok := asUint64(v)
		if !ok {
			return nil, fmt.Errorf("chainstore: next_ids element %d has unexpected type %T", i, v)
		}
		ids[i] = id
	}
	return ids, nil
}

func asUint64(v interface{}) (uint64, bool) {
	switch n := v.(type) {
	case int64:
		return uint64(n), true
	case uint64:
		return n, true
	default:
		return 0, false
	}
}

// optionalUint packs an *uint64 as either nil or the value, per spec.md
// §4.1 "Optional fields encode as nil when absent".
func optionalUint(v *uint64) interface{} {
	if v == nil {
		return nil
	}
	return int64(*v)
}

func decodeOptionalUint(v interface{}) (*uint64, error) {
	if v == nil {
		return nil, nil
	}
	n, ok := asUint64(v)
	if !ok {
		return nil, fmt.Errorf("chainstore: expected optional uint, got %T", v)
	}
	return &n, nil
}

func optionalBytes(v *[]byte) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func decodeOptionalBytes(v interface{}) (*[]byte, error) {
	if v == nil {
		return nil, nil
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("chainstore: expected optional bytes, got %T", v)
	}
	out := append([]byte(nil), b...)
	return &out, nil
}

func optionalString(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func decodeOptionalString(v interface{}) (*string, error) {
	if v == nil {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("chainstore: expected optional string, got %T", v)
	}
	return &s, nil
}

// encodeBlockInfo packs a BlockInfo as the 14-element tuple laid out in
// spec.md §4.1, field order fixed as part of the external, bit-exact
// on-disk contract (spec.md §6).
func encodeBlockInfo(info *BlockInfo) []byte {
	headerBytes := info.Header.Encode()
	t := kvstore.Tuple{
		int64(info.Id),
		info.Hash.Bytes(),
		headerBytes,
		int64(info.Height),
		int64(info.PrevId),
		idsToTuple(info.NextIds),
		optionalUint(info.Size),
		optionalUint(info.NumTx),
		optionalUint(info.MedianTime),
		optionalBytes(info.ChainWork),
		optionalUint(info.TotalTx),
		optionalUint(info.TotalSize),
		optionalString(info.Miner),
		int64(info.Validity),
	}
	return kvstore.PackTuple(t)
}

// decodeBlockInfo is the inverse of encodeBlockInfo; the round-trip law is
// exercised in codec_test.go per spec.md §8.
func decodeBlockInfo(b []byte) (*BlockInfo, error) {
	t, err := kvstore.UnpackTuple(b)
	if err != nil {
		return nil, fmt.Errorf("chainstore: decode BlockInfo: %w", err)
	}
	if len(t) != 14 {
		return nil, fmt.Errorf("chainstore: decode BlockInfo: expected 14 fields, got %d", len(t))
	}
	info := &BlockInfo{}

	id, ok := asUint64(t[0])
	if !ok {
		return nil, fmt.Errorf("chainstore: decode BlockInfo: bad id field")
	}
	info.Id = id

	hashBytes, ok := t[1].([]byte)
	if !ok || len(hashBytes) != HashSize {
		return nil, fmt.Errorf("chainstore: decode BlockInfo: bad hash field")
	}
	copy(info.Hash[:], hashBytes)

	headerBytes, ok := t[2].([]byte)
	if !ok {
		return nil, fmt.Errorf("chainstore: decode BlockInfo: bad header field")
	}
	header, err := DecodeHeader(headerBytes)
	if err != nil {
		return nil, fmt.Errorf("chainstore: decode BlockInfo: %w", err)
	}
	info.Header = header

	height, ok := asUint64(t[3])
	if !ok {
		return nil, fmt.Errorf("chainstore: decode BlockInfo: bad height field")
	}
	info.Height = height

	prevId, ok := asUint64(t[4])
	if !ok {
		return nil, fmt.Errorf("chainstore: decode BlockInfo: bad prev_id field")
	}
	info.PrevId = prevId

	nextTuple, ok := kvstore.AsNestedTuple(t[5])
	if !ok {
		return nil, fmt.Errorf("chainstore: decode BlockInfo: bad next_ids field")
	}
	nextIds, err := tupleToIds(nextTuple)
	if err != nil {
		return nil, err
	}
	info.NextIds = nextIds

	if info.Size, err = decodeOptionalUint(t[6]); err != nil {
		return nil, err
	}
	if info.NumTx, err = decodeOptionalUint(t[7]); err != nil {
		return nil, err
	}
	if info.MedianTime, err = decodeOptionalUint(t[8]); err != nil {
		return nil, err
	}
	if info.ChainWork, err = decodeOptionalBytes(t[9]); err != nil {
		return nil, err
	}
	if info.TotalTx, err = decodeOptionalUint(t[10]); err != nil {
		return nil, err
	}
	if info.TotalSize, err = decodeOptionalUint(t[11]); err != nil {
		return nil, err
	}
	if info.Miner, err = decodeOptionalString(t[12]); err != nil {
		return nil, err
	}

	validity, ok := asUint64(t[13])
	if !ok {
		return nil, fmt.Errorf("chainstore: decode BlockInfo: bad validity field")
	}
	info.Validity = Validity(validity)

	return info, nil
}

// encodeChainState packs a ChainState as the 4-element tuple in spec.md §6.
func encodeChainState(cs ChainState) []byte {
	t := kvstore.Tuple{
		int64(cs.MostWorkTip),
		idsToTuple(cs.ActiveTips),
		idsToTuple(cs.DormantTips),
		idsToTuple(cs.InvalidTips),
	}
	return kvstore.PackTuple(t)
}

func decodeChainState(b []byte) (ChainState, error) {
	t, err := kvstore.UnpackTuple(b)
	if err != nil {
		return ChainState{}, fmt.Errorf("chainstore: decode ChainState: %w", err)
	}
	if len(t) != 4 {
		return ChainState{}, fmt.Errorf("chainstore: decode ChainState: expected 4 fields, got %d", len(t))
	}
	mostWork, ok := asUint64(t[0])
	if !ok {
		return ChainState{}, fmt.Errorf("chainstore: decode ChainState: bad most_work_tip field")
	}
	active, err := tupleFieldToIds(t[1])
	if err != nil {
		return ChainState{}, err
	}
	dormant, err := tupleFieldToIds(t[2])
	if err != nil {
		return ChainState{}, err
	}
	invalid, err := tupleFieldToIds(t[3])
	if err != nil {
		return ChainState{}, err
	}
	return ChainState{
		MostWorkTip: mostWork,
		ActiveTips:  active,
		DormantTips: dormant,
		InvalidTips: invalid,
	}, nil
}

func tupleFieldToIds(v interface{}) ([]BlockId, error) {
	t, ok := kvstore.AsNestedTuple(v)
	if !ok {
		return nil, fmt.Errorf("chainstore: expected nested tuple, got %T", v)
	}
	return tupleToIds(t)
}

// encodeNextId packs the single-element next_id singleton value.
func encodeNextId(id BlockId) []byte {
	return kvstore.PackTuple(kvstore.Tuple{int64(id)})
}

func decodeNextId(b []byte) (BlockId, error) {
	t, err := kvstore.UnpackTuple(b)
	if err != nil {
		return 0, fmt.Errorf("chainstore: decode next_id: %w", err)
	}
	if len(t) != 1 {
		return 0, fmt.Errorf("chainstore: decode next_id: expected 1 field, got %d", len(t))
	}
	id, ok := asUint64(t[0])
	if !ok {
		return 0, fmt.Errorf("chainstore: decode next_id: bad field")
	}
	return id, nil
}
