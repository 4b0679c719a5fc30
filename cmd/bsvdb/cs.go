package main

import (
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/Danconnolly/bsvdb/internal/chainerr"
	"github.com/Danconnolly/bsvdb/internal/chainstore"
	"github.com/Danconnolly/bsvdb/internal/kvstore"
)

var csMaxFlag = &cli.Uint64Flag{
	Name:  "max",
	Usage: "Maximum number of ancestors to stream (default: unbounded)",
}

var csCommand = &cli.Command{
	Name:  "cs",
	Usage: "Inspect the chain store",
	Subcommands: []*cli.Command{
		csTipCommand,
		csGetCommand,
		csChainCommand,
	},
}

var csTipCommand = &cli.Command{
	Name:      "tip",
	Usage:     "Print the current chain state (tips)",
	ArgsUsage: " ",
	Action:    csTip,
}

var csGetCommand = &cli.Command{
	Name:      "get",
	Usage:     "Print the record for a block, by id or by hash",
	ArgsUsage: "<id|hash>",
	Action:    csGet,
}

var csChainCommand = &cli.Command{
	Name:      "chain",
	Usage:     "Stream a block and its ancestors, most recent first",
	ArgsUsage: "<id>",
	Flags:     []cli.Flag{csMaxFlag},
	Action:    csChain,
}

func openChainStore(ctx *cli.Context) (*chainstore.Handle, func(), error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, nil, err
	}
	if !cfg.ChainStore.Enabled {
		return nil, nil, chainerr.ErrChainStoreNotEnabled
	}
	db, err := kvstore.Open(cfg.ChainStore.ClusterFile)
	if err != nil {
		return nil, nil, fmt.Errorf("open chain store: %w", err)
	}
	handle, err := chainstore.OpenActor(db, cfg.Blockchain, cfg.ResolvedChainStoreRootPath())
	if err != nil {
		return nil, nil, fmt.Errorf("open chain store: %w", err)
	}
	return handle, handle.Shutdown, nil
}

func formatBlockInfo(info *chainstore.BlockInfo) string {
	s := fmt.Sprintf("id=%d hash=%s height=%d prev_id=%d validity=%s",
		info.Id, info.Hash, info.Height, info.PrevId, info.Validity)
	if info.Size != nil {
		s += fmt.Sprintf(" size=%d", *info.Size)
	}
	if info.NumTx != nil {
		s += fmt.Sprintf(" num_tx=%d", *info.NumTx)
	}
	if info.TotalSize != nil {
		s += fmt.Sprintf(" total_size=%d", *info.TotalSize)
	}
	if info.TotalTx != nil {
		s += fmt.Sprintf(" total_tx=%d", *info.TotalTx)
	}
	if info.MedianTime != nil {
		s += fmt.Sprintf(" median_time=%d", *info.MedianTime)
	}
	if info.Miner != nil {
		s += fmt.Sprintf(" miner=%q", *info.Miner)
	}
	return s
}

func csTip(ctx *cli.Context) error {
	handle, closeFn, err := openChainStore(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	state, err := handle.ChainState()
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.App.Writer, "most_work_tip: %d\n", state.MostWorkTip)
	fmt.Fprintf(ctx.App.Writer, "active_tips:   %v\n", state.ActiveTips)
	fmt.Fprintf(ctx.App.Writer, "dormant_tips:  %v\n", state.DormantTips)
	fmt.Fprintf(ctx.App.Writer, "invalid_tips:  %v\n", state.InvalidTips)
	return nil
}

func csGet(ctx *cli.Context) error {
	if ctx.Args().Len() != 1 {
		return cli.Exit("expected exactly one <id|hash> argument", 1)
	}
	handle, closeFn, err := openChainStore(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	arg := ctx.Args().First()
	var info *chainstore.BlockInfo
	if id, perr := strconv.ParseUint(arg, 10, 64); perr == nil {
		info, err = handle.BlockInfo(id)
	} else {
		var hash chainstore.BlockHash
		hash, err = chainstore.HashFromReversedHex(arg)
		if err == nil {
			info, err = handle.BlockInfoByHash(hash)
		}
	}
	if err != nil {
		return err
	}
	if info == nil {
		return chainerr.ErrBlockNotFound
	}
	fmt.Fprintln(ctx.App.Writer, formatBlockInfo(info))
	return nil
}

func csChain(ctx *cli.Context) error {
	if ctx.Args().Len() != 1 {
		return cli.Exit("expected exactly one <id> argument", 1)
	}
	id, err := strconv.ParseUint(ctx.Args().First(), 10, 64)
	if err != nil {
		return fmt.Errorf("parse <id>: %w", err)
	}

	handle, closeFn, err := openChainStore(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	var max *uint64
	if ctx.IsSet(csMaxFlag.Name) {
		v := ctx.Uint64(csMaxFlag.Name)
		max = &v
	}

	stream, err := handle.BlockInfos(id, max)
	if err != nil {
		return err
	}
	for info := range stream {
		fmt.Fprintln(ctx.App.Writer, formatBlockInfo(info))
	}
	return nil
}
