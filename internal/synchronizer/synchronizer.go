// Package synchronizer implements the Synchronizer pipeline (spec.md §4.6,
// C6): it ingests every hash the BlockArchive holds into the ChainStore,
// preserving the invariant that parents are inserted before children.
package synchronizer

import (
	"context"

	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/errgroup"

	"github.com/Danconnolly/bsvdb/internal/blockarchive"
	"github.com/Danconnolly/bsvdb/internal/chainstore"
	"github.com/Danconnolly/bsvdb/internal/metrics"
)

// stageCapacity is the bounded channel capacity between pipeline stages,
// per spec.md §4.6 "channels between stages are bounded at 1,000".
const stageCapacity = 1000

// ChainStoreReader is the subset of the actor Handle's methods the pipeline
// needs; narrowed to an interface so tests can substitute a fake.
type ChainStoreReader interface {
	BlockInfoByHash(hash chainstore.BlockHash) (*chainstore.BlockInfo, error)
	StoreBlockInfo(info *chainstore.BlockInfo) (*chainstore.BlockInfo, error)
}

// Result summarizes one pipeline run, for logging and for the `sync` CLI
// command's exit summary.
type Result struct {
	ArchiveHashes int
	Stored        int
	Orphaned      int
}

// hashFuture pairs a hash with the still-pending lookup for its existing
// BlockInfo, threaded from the emit stage to the filter&spool stage.
type hashFuture struct {
	hash   chainstore.BlockHash
	result chan lookupResult
}

type lookupResult struct {
	info *chainstore.BlockInfo
	err  error
}

// partialInfo is the not-yet-linked BlockInfo produced by filter&spool,
// carrying the block's own hash (not yet assigned a store id).
type partialInfo struct {
	hash chainstore.BlockHash
	info *chainstore.BlockInfo
}

// parentLookup pairs a partialInfo with the pending lookup of its parent.
type parentLookup struct {
	partial partialInfo
	result  chan lookupResult
}

// Run drives the full five-stage pipeline followed by the topological
// drain, against every hash archive.BlockList() yields.
func Run(ctx context.Context, store ChainStoreReader, archive blockarchive.Archive) (Result, error) {
	g, ctx := errgroup.WithContext(ctx)

	var archiveHashes int
	emitted := make(chan hashFuture, stageCapacity)
	g.Go(func() error { return stageEmit(ctx, store, archive, emitted, &archiveHashes) })

	spooled := make(chan partialInfo, stageCapacity)
	g.Go(func() error { return stageFilterAndSpool(ctx, archive, emitted, spooled) })

	sized := make(chan partialInfo, stageCapacity)
	g.Go(func() error { return stageSize(ctx, archive, spooled, sized) })

	withParent := make(chan parentLookup, stageCapacity)
	g.Go(func() error { return stageParentLookup(ctx, store, sized, withParent) })

	headers := make(map[chainstore.BlockHash]*chainstore.BlockInfo)
	children := make(map[chainstore.BlockHash][]chainstore.BlockHash)
	knownParents := make(map[chainstore.BlockHash]struct{})

	g.Go(func() error {
		return stageAccumulate(ctx, withParent, headers, children, knownParents)
	})

	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	metrics.SyncArchiveHashesGauge.Update(int64(archiveHashes))

	stored, orphaned := drain(store, headers, children, knownParents)
	metrics.SyncOrphanedGauge.Update(int64(orphaned))

	return Result{ArchiveHashes: archiveHashes, Stored: stored, Orphaned: orphaned}, nil
}

// stageEmit iterates archive hashes and launches a ChainStore lookup for
// each, forwarding (future, hash) per spec.md §4.6 stage 1. Every hash the
// archive yields is counted in archiveHashes, whether or not it is later
// found to be already stored.
func stageEmit(ctx context.Context, store ChainStoreReader, archive blockarchive.Archive, out chan<- hashFuture, archiveHashes *int) error {
	defer close(out)
	for hash := range archive.BlockList() {
		hash := hash
		*archiveHashes++
		result := make(chan lookupResult, 1)
		go func() {
			info, err := store.BlockInfoByHash(hash)
			result <- lookupResult{info: info, err: err}
		}()
		select {
		case out <- hashFuture{hash: hash, result: result}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// stageFilterAndSpool awaits each lookup future; present hashes are dropped,
// absent ones are read from the archive and turned into a partial BlockInfo
// (spec.md §4.6 stage 2).
func stageFilterAndSpool(ctx context.Context, archive blockarchive.Archive, in <-chan hashFuture, out chan<- partialInfo) error {
	defer close(out)
	for fut := range in {
		res := <-fut.result
		if res.err != nil {
			log.Error("synchronizer: block_info_by_hash lookup failed", "hash", fut.hash, "err", res.err)
			continue
		}
		if res.info != nil {
			continue
		}

		r, err := archive.GetBlock(fut.hash)
		if err != nil {
			log.Error("synchronizer: get_block failed", "hash", fut.hash, "err", err)
			continue
		}
		header, numTx, err := blockarchive.ReadBlockMeta(r)
		r.Close()
		if err != nil {
			log.Error("synchronizer: read block meta failed", "hash", fut.hash, "err", err)
			continue
		}

		info := &chainstore.BlockInfo{
			Hash:     fut.hash,
			Header:   header,
			Height:   0,
			PrevId:   0,
			NextIds:  nil,
			NumTx:    &numTx,
			Validity: chainstore.ValidityUnknown,
		}

		select {
		case out <- partialInfo{hash: fut.hash, info: info}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// stageSize fills in the block's size from the archive (spec.md §4.6 stage 3).
func stageSize(ctx context.Context, archive blockarchive.Archive, in <-chan partialInfo, out chan<- partialInfo) error {
	defer close(out)
	for p := range in {
		size, err := archive.BlockSize(p.hash)
		if err != nil {
			log.Error("synchronizer: block_size failed", "hash", p.hash, "err", err)
			continue
		}
		p.info.Size = &size

		select {
		case out <- p:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// stageParentLookup launches a ChainStore lookup for the block's parent
// hash and forwards (partial_info, future) (spec.md §4.6 stage 4).
func stageParentLookup(ctx context.Context, store ChainStoreReader, in <-chan partialInfo, out chan<- parentLookup) error {
	defer close(out)
	for p := range in {
		p := p
		result := make(chan lookupResult, 1)
		go func() {
			info, err := store.BlockInfoByHash(p.info.Header.PrevHash)
			result <- lookupResult{info: info, err: err}
		}()

		select {
		case out <- parentLookup{partial: p, result: result}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// stageAccumulate awaits each parent future and builds the headers,
// children and known_parents structures the topological drain consumes
// (spec.md §4.6 stage 5). It owns the three maps for the lifetime of the
// pipeline, so it is the only stage allowed to mutate them.
func stageAccumulate(
	ctx context.Context,
	in <-chan parentLookup,
	headers map[chainstore.BlockHash]*chainstore.BlockInfo,
	children map[chainstore.BlockHash][]chainstore.BlockHash,
	knownParents map[chainstore.BlockHash]struct{},
) error {
	for pl := range in {
		hash := pl.partial.hash
		headers[hash] = pl.partial.info

		parentHash := pl.partial.info.Header.PrevHash
		children[parentHash] = append(children[parentHash], hash)

		res := <-pl.result
		if res.err != nil {
			log.Error("synchronizer: parent lookup failed", "hash", hash, "err", res.err)
			continue
		}
		if res.info != nil {
			knownParents[parentHash] = struct{}{}
		}
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// drain implements spec.md §4.6's "Topological drain": repeatedly pop a
// hash from known_parents, store every child referencing it, and seed
// known_parents with the newly stored hashes. Terminates when
// known_parents is empty; any remaining entries in children indicate
// unreachable parents (logged, not fatal).
func drain(
	store ChainStoreReader,
	headers map[chainstore.BlockHash]*chainstore.BlockInfo,
	children map[chainstore.BlockHash][]chainstore.BlockHash,
	knownParents map[chainstore.BlockHash]struct{},
) (stored, orphaned int) {
	for len(knownParents) > 0 {
		var parentHash chainstore.BlockHash
		for h := range knownParents {
			parentHash = h
			break
		}
		delete(knownParents, parentHash)

		for _, childHash := range children[parentHash] {
			info := headers[childHash]
			if info == nil {
				continue
			}
			if _, err := store.StoreBlockInfo(info); err != nil {
				log.Error("synchronizer: store_block_info failed", "hash", childHash, "err", err)
				continue
			}
			stored++
			metrics.SyncStoredCounter.Inc(1)
			knownParents[childHash] = struct{}{}
		}
		delete(children, parentHash)
	}

	for parentHash, orphans := range children {
		orphaned += len(orphans)
		log.Warn("synchronizer: unreachable parent, children left unstored", "parent", parentHash, "count", len(orphans))
	}
	return stored, orphaned
}
