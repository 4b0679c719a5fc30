package chainstore

import (
	"sync/atomic"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"

	"github.com/Danconnolly/bsvdb/internal/chainerr"
	"github.com/Danconnolly/bsvdb/internal/genparams"
	"github.com/Danconnolly/bsvdb/internal/kvstore"
)

// actorCommandBuffer is the command channel capacity, per spec.md §4.4.
const actorCommandBuffer = 1000

// actorCommand is the message taxonomy of spec.md §4.4. Each variant is a
// distinct request type carrying its own single-use reply channel, the Go
// analog of the source's enum-of-oneshot-senders.
type actorCommand interface{ isActorCommand() }

type chainStateResult struct {
	state ChainState
	err   error
}

type cmdChainState struct{ reply chan chainStateResult }

func (cmdChainState) isActorCommand() {}

type blockInfoResult struct {
	info *BlockInfo
	err  error
}

type cmdBlockInfo struct {
	id    BlockId
	reply chan blockInfoResult
}

func (cmdBlockInfo) isActorCommand() {}

type cmdBlockInfoByHash struct {
	hash  BlockHash
	reply chan blockInfoResult
}

func (cmdBlockInfoByHash) isActorCommand() {}

type cmdBlockInfos struct {
	id  BlockId
	max *uint64
	out chan *BlockInfo
	ack chan struct{}
}

func (cmdBlockInfos) isActorCommand() {}

type cmdStoreBlockInfo struct {
	info  *BlockInfo
	reply chan blockInfoResult
}

func (cmdStoreBlockInfo) isActorCommand() {}

type cmdShutdown struct{ reply chan struct{} }

func (cmdShutdown) isActorCommand() {}

// handleState is the shared state behind every clone of a Handle: the
// command channel and a closed flag, per spec.md §4.4 "Cloning: the handle
// is cheaply cloneable; all clones share the single actor."
type handleState struct {
	cmds   chan actorCommand
	closed atomic.Bool
}

// Handle is a cloneable front-end to a ChainStore actor (spec.md §4.4, C4).
// All I/O happens in per-request child goroutines spawned by the actor loop;
// Handle only ever touches the command channel.
type Handle struct {
	state *handleState
}

// OpenActor opens (or initializes) a ChainStore and starts its actor loop,
// returning the first Handle to it.
func OpenActor(db *kvstore.DB, chain genparams.Chain, rootPath string) (*Handle, error) {
	cs, err := Open(db, chain, rootPath)
	if err != nil {
		return nil, err
	}
	state := &handleState{cmds: make(chan actorCommand, actorCommandBuffer)}
	go cs.runActor(state.cmds)
	return &Handle{state: state}, nil
}

// Clone returns a new Handle sharing the same underlying actor.
func (h *Handle) Clone() *Handle {
	return &Handle{state: h.state}
}

func (h *Handle) send(cmd actorCommand) error {
	if h.state.closed.Load() {
		return chainerr.ErrClosed
	}
	h.state.cmds <- cmd
	return nil
}

// ChainState requests the current tip set.
func (h *Handle) ChainState() (ChainState, error) {
	reply := make(chan chainStateResult, 1)
	if err := h.send(cmdChainState{reply: reply}); err != nil {
		return ChainState{}, err
	}
	res := <-reply
	return res.state, res.err
}

// BlockInfo requests the record for id.
func (h *Handle) BlockInfo(id BlockId) (*BlockInfo, error) {
	reply := make(chan blockInfoResult, 1)
	if err := h.send(cmdBlockInfo{id: id, reply: reply}); err != nil {
		return nil, err
	}
	res := <-reply
	return res.info, res.err
}

// BlockInfoByHash requests the record for hash.
func (h *Handle) BlockInfoByHash(hash BlockHash) (*BlockInfo, error) {
	reply := make(chan blockInfoResult, 1)
	if err := h.send(cmdBlockInfoByHash{hash: hash, reply: reply}); err != nil {
		return nil, err
	}
	res := <-reply
	return res.info, res.err
}

// BlockInfos requests the ancestor stream starting at id. It blocks until
// the actor acknowledges the request, then returns immediately; the
// returned channel is filled by an independent child goroutine, per
// spec.md §4.4 "the actor sends an immediate acknowledgment reply and the
// child task streams results over the provided channel."
func (h *Handle) BlockInfos(id BlockId, max *uint64) (<-chan *BlockInfo, error) {
	out := make(chan *BlockInfo, ancestorStreamCapacity)
	ack := make(chan struct{})
	if err := h.send(cmdBlockInfos{id: id, max: max, out: out, ack: ack}); err != nil {
		return nil, err
	}
	<-ack
	return out, nil
}

// StoreBlockInfo submits a candidate BlockInfo for insertion.
func (h *Handle) StoreBlockInfo(info *BlockInfo) (*BlockInfo, error) {
	reply := make(chan blockInfoResult, 1)
	if err := h.send(cmdStoreBlockInfo{info: info, reply: reply}); err != nil {
		return nil, err
	}
	res := <-reply
	return res.info, res.err
}

// Shutdown requests the actor to exit its select loop and waits for the
// acknowledgment. In-flight per-request child goroutines are not waited on;
// they hold their own transactions and run to completion independently, per
// spec.md §4.4. Calling Shutdown more than once is a no-op after the first.
func (h *Handle) Shutdown() {
	if h.state.closed.Swap(true) {
		return
	}
	reply := make(chan struct{})
	h.state.cmds <- cmdShutdown{reply: reply}
	<-reply
}

// runActor is the actor's select loop: it never performs KV I/O itself,
// only dispatches each command to a freshly spawned goroutine, matching
// spec.md §4.4's "the actor returns immediately to the select loop."
func (cs *ChainStore) runActor(cmds chan actorCommand) {
	for cmd := range cmds {
		// reqID correlates this command's dispatch with its completion in the
		// log, since each command runs in its own child goroutine and replies
		// out of order with every other in-flight request.
		reqID := uuid.NewString()

		switch c := cmd.(type) {
		case cmdChainState:
			log.Debug("chainstore actor: dispatch chain_state", "req", reqID)
			go func(c cmdChainState) {
				state, err := cs.GetChainState()
				log.Debug("chainstore actor: complete chain_state", "req", reqID, "err", err)
				c.reply <- chainStateResult{state: state, err: err}
			}(c)

		case cmdBlockInfo:
			log.Debug("chainstore actor: dispatch block_info", "req", reqID, "id", c.id)
			go func(c cmdBlockInfo) {
				info, err := cs.GetBlockInfo(c.id)
				log.Debug("chainstore actor: complete block_info", "req", reqID, "err", err)
				c.reply <- blockInfoResult{info: info, err: err}
			}(c)

		case cmdBlockInfoByHash:
			log.Debug("chainstore actor: dispatch block_info_by_hash", "req", reqID, "hash", c.hash)
			go func(c cmdBlockInfoByHash) {
				info, err := cs.GetBlockInfoByHash(c.hash)
				log.Debug("chainstore actor: complete block_info_by_hash", "req", reqID, "err", err)
				c.reply <- blockInfoResult{info: info, err: err}
			}(c)

		case cmdBlockInfos:
			log.Debug("chainstore actor: dispatch block_infos stream", "req", reqID, "id", c.id)
			close(c.ack)
			go func(c cmdBlockInfos) {
				for info := range cs.GetBlockInfos(c.id, c.max) {
					c.out <- info
				}
				close(c.out)
				log.Debug("chainstore actor: complete block_infos stream", "req", reqID)
			}(c)

		case cmdStoreBlockInfo:
			log.Debug("chainstore actor: dispatch store_block_info", "req", reqID, "hash", c.info.Hash)
			go func(c cmdStoreBlockInfo) {
				info, err := cs.StoreBlockInfo(c.info)
				log.Debug("chainstore actor: complete store_block_info", "req", reqID, "err", err)
				c.reply <- blockInfoResult{info: info, err: err}
			}(c)

		case cmdShutdown:
			log.Debug("chainstore actor shutting down", "req", reqID)
			close(c.reply)
			return

		default:
			log.Error("chainstore actor: unknown command type", "req", reqID, "type", cmd)
		}
	}
}
