package chainstore

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/lru"
	"github.com/ethereum/go-ethereum/log"

	"github.com/Danconnolly/bsvdb/internal/chainerr"
	"github.com/Danconnolly/bsvdb/internal/genparams"
	"github.com/Danconnolly/bsvdb/internal/kvstore"
	"github.com/Danconnolly/bsvdb/internal/metrics"
)

// ancestorStreamCapacity is the bounded channel capacity for get_block_infos,
// per spec.md §4.3/§9 "channel capacity 1,000".
const ancestorStreamCapacity = 1000

// idCacheSize bounds the hash->id lookup cache, the chainstore analog of the
// teacher's HeaderChain.numberCache: the hash index is write-once per hash
// (a hash never gets reassigned to a different id), so the cache needs no
// invalidation path.
const idCacheSize = 8192

// ChainStore is the C3 core: header-graph storage, identifier allocation and
// chain-state bookkeeping described in spec.md §4.3. Most callers should use
// the actor front-end (Handle, in actor.go) rather than this type directly;
// ChainStore itself does no command serialization of its own beyond the
// allocator mutex.
type ChainStore struct {
	db   *kvstore.DB
	dirs directories

	// allocMu serializes the get-modify-set of NEXT_ID_KEY, per spec.md §9
	// "Allocator serialization": a throughput optimization, not a
	// correctness requirement, since the KV layer would otherwise retry.
	allocMu sync.Mutex

	idCache *lru.Cache[BlockHash, BlockId]
}

// Open ensures the chain's directories and genesis record exist and returns
// a ready ChainStore, per spec.md §4.3 "Initialization". rootPath, if empty,
// defaults to the chain's conventional root (spec.md §6).
func Open(db *kvstore.DB, chain genparams.Chain, rootPath string) (*ChainStore, error) {
	if !chain.Valid() {
		return nil, chainerr.ErrBlockchainUnknown
	}
	if rootPath == "" {
		rootPath = chain.DefaultRootPath()
	}
	dirs, err := openDirectories(db, rootPath)
	if err != nil {
		return nil, err
	}
	cs := &ChainStore{db: db, dirs: dirs, idCache: lru.NewCache[BlockHash, BlockId](idCacheSize)}
	if err := cs.ensureInitialized(chain); err != nil {
		return nil, err
	}
	return cs, nil
}

// ensureInitialized implements spec.md §4.3's idempotent bootstrap: if
// STATE_KEY is already present this is a no-op read; otherwise genesis,
// NEXT_ID_KEY and STATE_KEY are written atomically.
func (cs *ChainStore) ensureInitialized(chain genparams.Chain) error {
	return cs.db.Transact(func(tr kvstore.Transaction) error {
		_, ok, err := tr.Get(cs.dirs.stateKey())
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		gen, err := genparams.GenesisFor(chain)
		if err != nil {
			return err
		}
		headerBytes, err := hex.DecodeString(gen.HeaderHex)
		if err != nil {
			return fmt.Errorf("chainstore: decode genesis header constant: %w", err)
		}
		header, err := DecodeHeader(headerBytes)
		if err != nil {
			return fmt.Errorf("chainstore: genesis header constant: %w", err)
		}

		size, numTx, totalTx, totalSize, medianTime := gen.Size, gen.NumTx, gen.TotalTx, gen.TotalSize, gen.MedianTime
		miner := gen.Miner
		chainWork := gen.ChainWork.Bytes()

		genesis := &BlockInfo{
			Id:         0,
			Hash:       header.Hash(),
			Header:     header,
			Height:     0,
			PrevId:     0,
			Size:       &size,
			NumTx:      &numTx,
			MedianTime: &medianTime,
			TotalTx:    &totalTx,
			TotalSize:  &totalSize,
			ChainWork:  &chainWork,
			Miner:      &miner,
			Validity:   ValidityValid,
		}

		tr.Set(cs.dirs.infoKey(0), encodeBlockInfo(genesis))
		tr.Set(cs.dirs.hashIndexKey(genesis.Hash), encodeNextId(0))
		tr.Set(cs.dirs.nextIdKey(), encodeNextId(1))
		tr.Set(cs.dirs.stateKey(), encodeChainState(ChainState{
			MostWorkTip: 0,
			ActiveTips:  []BlockId{0},
		}))

		log.Info("chainstore initialized", "chain", string(chain), "genesis", genesis.Hash.String())
		return nil
	})
}

// GetChainState returns the current set of chain tips (spec.md §4.3).
func (cs *ChainStore) GetChainState() (ChainState, error) {
	var result ChainState
	err := cs.db.ReadTransact(func(tr kvstore.Transaction) error {
		val, ok, err := tr.Get(cs.dirs.stateKey())
		if err != nil {
			return err
		}
		if !ok {
			return chainerr.NewInternal("get_chain_state", errors.New("chain state not initialized"))
		}
		result, err = decodeChainState(val)
		return err
	})
	return result, err
}

// GetBlockInfo returns the record for id, or (nil, nil) if absent.
func (cs *ChainStore) GetBlockInfo(id BlockId) (*BlockInfo, error) {
	var result *BlockInfo
	err := cs.db.ReadTransact(func(tr kvstore.Transaction) error {
		val, ok, err := tr.Get(cs.dirs.infoKey(id))
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		info, err := decodeBlockInfo(val)
		if err != nil {
			return err
		}
		result = info
		return nil
	})
	return result, err
}

// GetBlockInfoByHash returns the record for hash, or (nil, nil) if absent.
func (cs *ChainStore) GetBlockInfoByHash(hash BlockHash) (*BlockInfo, error) {
	var result *BlockInfo
	err := cs.db.ReadTransact(func(tr kvstore.Transaction) error {
		id, ok, err := cs.lookupId(tr, hash)
		if err != nil || !ok {
			return err
		}
		val, ok, err := tr.Get(cs.dirs.infoKey(id))
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		info, err := decodeBlockInfo(val)
		if err != nil {
			return err
		}
		result = info
		return nil
	})
	return result, err
}

// GetBlockInfos returns a lazy, bounded ancestor stream starting at id and
// walking prev_id pointers, per spec.md §4.3 "Ancestor stream". The channel
// is closed when the stream terminates; max, if non-nil, bounds the number
// of delivered records.
func (cs *ChainStore) GetBlockInfos(id BlockId, max *uint64) <-chan *BlockInfo {
	out := make(chan *BlockInfo, ancestorStreamCapacity)
	go cs.runAncestorStream(id, max, out)
	return out
}

func (cs *ChainStore) runAncestorStream(startId BlockId, max *uint64, out chan<- *BlockInfo) {
	defer close(out)
	defer metrics.AncestorStreamTimer.UpdateSince(time.Now())

	mtr, err := cs.db.NewManualTransaction()
	if err != nil {
		log.Error("ancestor stream: open transaction failed", "err", err)
		return
	}

	cursor := startId
	var delivered uint64
	for {
		if max != nil && delivered >= *max {
			mtr.Cancel()
			return
		}

		val, ok, err := mtr.Txn().Get(cs.dirs.infoKey(cursor))
		if err != nil {
			if kvstore.IsRetryable(err) {
				mtr.Reset()
				continue
			}
			log.Error("ancestor stream: read failed", "id", cursor, "err", err)
			mtr.Cancel()
			return
		}
		if !ok {
			log.Debug("ancestor stream: terminated at missing record", "id", cursor)
			mtr.Cancel()
			return
		}

		info, err := decodeBlockInfo(val)
		if err != nil {
			log.Error("ancestor stream: decode failed", "id", cursor, "err", err)
			mtr.Cancel()
			return
		}

		out <- info
		delivered++
		if info.Height == 0 {
			mtr.Cancel()
			return
		}
		cursor = info.PrevId
	}
}

// StoreBlockInfo implements the eight-step insert algorithm of spec.md
// §4.3, returning the stored record (with id, height, prev_id, aggregates
// and validity resolved) or ErrParentNotFound.
func (cs *ChainStore) StoreBlockInfo(candidate *BlockInfo) (*BlockInfo, error) {
	defer metrics.StoreInsertTimer.UpdateSince(time.Now())

	info := candidate.Clone()
	var result *BlockInfo
	var allocated bool

	err := cs.db.Transact(func(tr kvstore.Transaction) error {
		id, isNew, err := cs.resolveId(tr, info.Hash)
		if err != nil {
			return err
		}
		allocated = isNew

		parentId, ok, err := cs.lookupId(tr, info.Header.PrevHash)
		if err != nil {
			return err
		}
		if !ok {
			return chainerr.ErrParentNotFound
		}
		parentVal, ok, err := tr.Get(cs.dirs.infoKey(parentId))
		if err != nil {
			return err
		}
		if !ok {
			return chainerr.ErrParentNotFound
		}
		parent, err := decodeBlockInfo(parentVal)
		if err != nil {
			return err
		}

		if !parent.hasNextId(id) {
			parent.NextIds = append(parent.NextIds, id)
			tr.Set(cs.dirs.infoKey(parentId), encodeBlockInfo(parent))
		}

		if parent.TotalSize != nil && info.Size != nil {
			v := *parent.TotalSize + *info.Size
			info.TotalSize = &v
		} else {
			info.TotalSize = nil
		}
		if parent.TotalTx != nil && info.NumTx != nil {
			v := *parent.TotalTx + *info.NumTx
			info.TotalTx = &v
		} else {
			info.TotalTx = nil
		}

		info.Id = id
		info.Height = parent.Height + 1
		info.PrevId = parentId
		info.Validity = PropagateValidity(parent.Validity, info.Validity)

		tr.Set(cs.dirs.infoKey(id), encodeBlockInfo(info))

		if err := cs.applyChainStateInsert(tr, parentId, id, info); err != nil {
			return err
		}

		result = info.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	if allocated {
		// Only now, after a successful commit, is it safe to cache the
		// hash->id mapping: caching inside the transaction closure would
		// leak an id that a later non-retryable failure (e.g.
		// ErrParentNotFound) never actually persisted.
		cs.idCache.Add(result.Hash, result.Id)
		metrics.BlocksStoredCounter.Inc(1)
	}
	metrics.ChainHeightGauge.Update(int64(result.Height))
	return result, nil
}

// resolveId implements spec.md §4.3 step 1: adopt an existing hash→id
// mapping, or allocate the next id under the allocator mutex. The bool
// result reports whether a new id was allocated.
func (cs *ChainStore) resolveId(tr kvstore.Transaction, hash BlockHash) (BlockId, bool, error) {
	id, ok, err := cs.lookupId(tr, hash)
	if err != nil {
		return 0, false, err
	}
	if ok {
		return id, false, nil
	}

	cs.allocMu.Lock()
	defer cs.allocMu.Unlock()

	nextVal, ok, err := tr.Get(cs.dirs.nextIdKey())
	if err != nil {
		return 0, false, err
	}
	var next BlockId
	if ok {
		next, err = decodeNextId(nextVal)
		if err != nil {
			return 0, false, err
		}
	} else {
		next = 1
	}

	tr.Set(cs.dirs.nextIdKey(), encodeNextId(next+1))
	tr.Set(cs.dirs.hashIndexKey(hash), encodeNextId(next))
	return next, true, nil
}

func (cs *ChainStore) lookupId(tr kvstore.Transaction, hash BlockHash) (BlockId, bool, error) {
	if id, ok := cs.idCache.Get(hash); ok {
		return id, true, nil
	}
	val, ok, err := tr.Get(cs.dirs.hashIndexKey(hash))
	if err != nil || !ok {
		return 0, false, err
	}
	id, err := decodeNextId(val)
	if err != nil {
		return 0, false, err
	}
	cs.idCache.Add(hash, id)
	return id, true, nil
}

// applyChainStateInsert implements spec.md §4.3 "Chain-state maintenance":
// the parent loses tip status, the new block joins active_tips or
// invalid_tips, and most_work_tip either follows the tip it directly
// extends or advances on strictly greater chain_work between siblings (a
// tie leaves the first-committed tip in place, per the Fork scenario in
// spec.md §8).
func (cs *ChainStore) applyChainStateInsert(tr kvstore.Transaction, parentId, newId BlockId, info *BlockInfo) error {
	val, ok, err := tr.Get(cs.dirs.stateKey())
	if err != nil {
		return err
	}
	var state ChainState
	if ok {
		state, err = decodeChainState(val)
		if err != nil {
			return err
		}
	}

	extendsMostWorkTip := state.MostWorkTip == parentId

	state.ActiveTips = removeTip(state.ActiveTips, parentId)
	state.DormantTips = removeTip(state.DormantTips, parentId)
	state.InvalidTips = removeTip(state.InvalidTips, parentId)

	if info.Validity.IsInvalid() {
		if !containsTip(state.InvalidTips, newId) {
			state.InvalidTips = append(state.InvalidTips, newId)
		}
	} else {
		if !containsTip(state.ActiveTips, newId) {
			state.ActiveTips = append(state.ActiveTips, newId)
		}

		switch {
		case extendsMostWorkTip:
			// parentId just left active_tips above, and newId is its only
			// valid child: newId must become the most-work tip regardless
			// of whether chain_work was supplied, or invariant 6
			// (most_work_tip ∈ active_tips) breaks on every ordinary
			// extension of the canonical chain.
			state.MostWorkTip = newId
		case info.ChainWork != nil:
			replace, err := cs.outworks(tr, state.MostWorkTip, newId, *info.ChainWork)
			if err != nil {
				return err
			}
			if replace {
				state.MostWorkTip = newId
			}
		}
	}

	tr.Set(cs.dirs.stateKey(), encodeChainState(state))
	return nil
}

// outworks reports whether candidateWork strictly exceeds the chain_work of
// the current most-work tip.
func (cs *ChainStore) outworks(tr kvstore.Transaction, currentTip, candidateId BlockId, candidateWork []byte) (bool, error) {
	if currentTip == candidateId {
		return false, nil
	}
	tipVal, ok, err := tr.Get(cs.dirs.infoKey(currentTip))
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	tipInfo, err := decodeBlockInfo(tipVal)
	if err != nil {
		return false, err
	}
	if tipInfo.ChainWork == nil {
		return true, nil
	}
	return new(big.Int).SetBytes(candidateWork).Cmp(new(big.Int).SetBytes(*tipInfo.ChainWork)) > 0, nil
}
