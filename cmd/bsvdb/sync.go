package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/Danconnolly/bsvdb/internal/blockarchive"
	"github.com/Danconnolly/bsvdb/internal/synchronizer"
)

var syncCommand = &cli.Command{
	Name:      "sync",
	Usage:     "Ingest every block in the archive into the chain store",
	ArgsUsage: " ",
	Action:    syncRun,
}

func syncRun(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	if !cfg.ChainStore.Enabled {
		return fmt.Errorf("sync: chain store is not enabled")
	}
	if !cfg.BlockArchive.Enabled {
		return fmt.Errorf("sync: block archive is not enabled")
	}

	handle, closeFn, err := openChainStore(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	archive := blockarchive.NewFileArchive(cfg.BlockArchive.RootPath)

	result, err := synchronizer.Run(ctx.Context, handle, archive)
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}

	log.Info("sync complete", "archive_hashes", result.ArchiveHashes, "stored", result.Stored, "orphaned", result.Orphaned)
	fmt.Fprintf(ctx.App.Writer, "archive_hashes: %d\nstored:         %d\norphaned:       %d\n",
		result.ArchiveHashes, result.Stored, result.Orphaned)
	return nil
}
