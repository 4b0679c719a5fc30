package chainstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockHeaderEncodeDecodeRoundTrip(t *testing.T) {
	h := BlockHeader{
		Version:    1,
		PrevHash:   BlockHash{1, 2, 3},
		MerkleRoot: BlockHash{4, 5, 6},
		Timestamp:  1231006505,
		Bits:       0x1d00ffff,
		Nonce:      2083236893,
	}
	encoded := h.Encode()
	require.Len(t, encoded, HeaderSize)

	decoded, err := DecodeHeader(encoded)
	require.NoError(t, err)
	assert.Equal(t, h, decoded)
}

func TestDecodeHeaderRejectsWrongLength(t *testing.T) {
	_, err := DecodeHeader(make([]byte, HeaderSize-1))
	assert.Error(t, err)
}

func TestBlockHashStringRoundTrip(t *testing.T) {
	var h BlockHash
	for i := range h {
		h[i] = byte(i)
	}
	s := h.String()

	parsed, err := HashFromReversedHex(s)
	require.NoError(t, err)
	assert.Equal(t, h, parsed)
}

func TestBlockHashLess(t *testing.T) {
	a := BlockHash{0, 0, 1}
	b := BlockHash{0, 0, 2}
	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
	assert.False(t, a.Less(a))
}

func TestBlockHashIsZero(t *testing.T) {
	assert.True(t, BlockHash{}.IsZero())
	assert.False(t, BlockHash{1}.IsZero())
}

// TestPropagateValidity exercises cells from every row of the lattice table
// of spec.md §4.3 (the whole Valid row, a subset of the others):
// row = parent validity, column = candidate (submitted) validity.
func TestPropagateValidity(t *testing.T) {
	cases := []struct {
		parent, candidate, want Validity
	}{
		{ValidityValid, ValidityValid, ValidityValid},
		{ValidityValid, ValidityValidHeader, ValidityValidHeader},
		{ValidityValid, ValidityUnknown, ValidityUnknown},
		{ValidityValid, ValidityInvalid, ValidityInvalid},
		{ValidityValid, ValidityHeaderInvalid, ValidityHeaderInvalid},

		{ValidityValidHeader, ValidityValid, ValidityValidHeader},
		{ValidityValidHeader, ValidityValidHeader, ValidityValidHeader},
		{ValidityValidHeader, ValidityInvalid, ValidityInvalid},

		{ValidityUnknown, ValidityValid, ValidityUnknown},
		{ValidityUnknown, ValidityValidHeader, ValidityUnknown},
		{ValidityUnknown, ValidityInvalid, ValidityUnknown},

		{ValidityInvalid, ValidityValid, ValidityInvalidAncestor},
		{ValidityInvalid, ValidityUnknown, ValidityInvalidAncestor},
		{ValidityHeaderInvalid, ValidityValid, ValidityInvalidAncestor},
		{ValidityInvalidAncestor, ValidityValid, ValidityInvalidAncestor},
		{ValidityInvalidAncestor, ValidityInvalid, ValidityInvalidAncestor},
	}
	for _, c := range cases {
		got := PropagateValidity(c.parent, c.candidate)
		assert.Equalf(t, c.want, got, "parent=%s candidate=%s", c.parent, c.candidate)
	}
}

func TestValidityIsInvalid(t *testing.T) {
	assert.True(t, ValidityInvalid.IsInvalid())
	assert.True(t, ValidityHeaderInvalid.IsInvalid())
	assert.True(t, ValidityInvalidAncestor.IsInvalid())
	assert.False(t, ValidityValid.IsInvalid())
	assert.False(t, ValidityValidHeader.IsInvalid())
	assert.False(t, ValidityUnknown.IsInvalid())
}

func TestBlockInfoCloneIsDeep(t *testing.T) {
	size := uint64(100)
	chainWork := []byte{1, 2, 3}
	miner := "satoshi"
	info := &BlockInfo{
		Id:        1,
		NextIds:   []BlockId{2, 3},
		Size:      &size,
		ChainWork: &chainWork,
		Miner:     &miner,
	}

	clone := info.Clone()
	clone.NextIds[0] = 99
	*clone.Size = 200
	(*clone.ChainWork)[0] = 9
	*clone.Miner = "changed"

	assert.Equal(t, BlockId(2), info.NextIds[0])
	assert.Equal(t, uint64(100), *info.Size)
	assert.Equal(t, byte(1), (*info.ChainWork)[0])
	assert.Equal(t, "satoshi", *info.Miner)
}

func TestBlockInfoHasNextId(t *testing.T) {
	info := &BlockInfo{NextIds: []BlockId{1, 2, 3}}
	assert.True(t, info.hasNextId(2))
	assert.False(t, info.hasNextId(4))
}

func TestChainStateCloneIsDeep(t *testing.T) {
	cs := ChainState{MostWorkTip: 1, ActiveTips: []BlockId{1, 2}}
	clone := cs.Clone()
	clone.ActiveTips[0] = 99
	assert.Equal(t, BlockId(1), cs.ActiveTips[0])
}

func TestRemoveAndContainsTip(t *testing.T) {
	tips := []BlockId{1, 2, 3}
	tips = removeTip(tips, 2)
	assert.ElementsMatch(t, []BlockId{1, 3}, tips)
	assert.True(t, containsTip(tips, 1))
	assert.False(t, containsTip(tips, 2))
}
