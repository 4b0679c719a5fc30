package chainstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBlockInfo() *BlockInfo {
	size := uint64(285)
	numTx := uint64(1)
	medianTime := uint64(1231006505)
	chainWork := []byte{0x01, 0x00, 0x01}
	totalTx := uint64(1)
	totalSize := uint64(285)
	miner := "Satoshi Nakamoto"

	return &BlockInfo{
		Id:     0,
		Hash:   BlockHash{0xaa, 0xbb},
		Header: BlockHeader{Version: 1, Timestamp: 1231006505, Bits: 0x1d00ffff, Nonce: 2083236893},
		Height: 0,
		PrevId: 0,

		NextIds: []BlockId{1, 2},

		Size:       &size,
		NumTx:      &numTx,
		MedianTime: &medianTime,
		ChainWork:  &chainWork,
		TotalTx:    &totalTx,
		TotalSize:  &totalSize,
		Miner:      &miner,

		Validity: ValidityValid,
	}
}

func TestEncodeDecodeBlockInfoRoundTrip(t *testing.T) {
	info := sampleBlockInfo()
	encoded := encodeBlockInfo(info)

	decoded, err := decodeBlockInfo(encoded)
	require.NoError(t, err)
	assert.Equal(t, info, decoded)
}

func TestEncodeDecodeBlockInfoWithAbsentOptionals(t *testing.T) {
	info := &BlockInfo{
		Id:       5,
		Hash:     BlockHash{1},
		Header:   BlockHeader{Version: 2},
		Height:   5,
		PrevId:   4,
		NextIds:  nil,
		Validity: ValidityUnknown,
	}
	encoded := encodeBlockInfo(info)

	decoded, err := decodeBlockInfo(encoded)
	require.NoError(t, err)
	assert.Nil(t, decoded.Size)
	assert.Nil(t, decoded.NumTx)
	assert.Nil(t, decoded.MedianTime)
	assert.Nil(t, decoded.ChainWork)
	assert.Nil(t, decoded.TotalTx)
	assert.Nil(t, decoded.TotalSize)
	assert.Nil(t, decoded.Miner)
	assert.Equal(t, ValidityUnknown, decoded.Validity)
	assert.Empty(t, decoded.NextIds)
}

func TestDecodeBlockInfoRejectsWrongArity(t *testing.T) {
	_, err := decodeBlockInfo(encodeNextId(1))
	assert.Error(t, err)
}

func TestEncodeDecodeChainStateRoundTrip(t *testing.T) {
	cs := ChainState{
		MostWorkTip: 7,
		ActiveTips:  []BlockId{7, 8},
		DormantTips: []BlockId{3},
		InvalidTips: nil,
	}
	encoded := encodeChainState(cs)

	decoded, err := decodeChainState(encoded)
	require.NoError(t, err)
	assert.Equal(t, cs.MostWorkTip, decoded.MostWorkTip)
	assert.ElementsMatch(t, cs.ActiveTips, decoded.ActiveTips)
	assert.ElementsMatch(t, cs.DormantTips, decoded.DormantTips)
	assert.Empty(t, decoded.InvalidTips)
}

func TestEncodeDecodeNextIdRoundTrip(t *testing.T) {
	for _, id := range []BlockId{0, 1, 12345, 1 << 40} {
		encoded := encodeNextId(id)
		decoded, err := decodeNextId(encoded)
		require.NoError(t, err)
		assert.Equal(t, id, decoded)
	}
}

func TestIdsToTupleRoundTrip(t *testing.T) {
	ids := []BlockId{1, 2, 3}
	tup := idsToTuple(ids)
	back, err := tupleToIds(tup)
	require.NoError(t, err)
	assert.Equal(t, ids, back)
}
