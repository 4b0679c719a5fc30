package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/Danconnolly/bsvdb/internal/blockarchive"
	"github.com/Danconnolly/bsvdb/internal/chainerr"
	"github.com/Danconnolly/bsvdb/internal/chainstore"
)

var baCommand = &cli.Command{
	Name:  "ba",
	Usage: "Inspect the block archive",
	Subcommands: []*cli.Command{
		baListCommand,
		baHeaderCommand,
		baExistsCommand,
	},
}

var baListCommand = &cli.Command{
	Name:      "list",
	Usage:     "List every block hash in the archive",
	ArgsUsage: " ",
	Action:    baList,
}

var baHeaderCommand = &cli.Command{
	Name:      "header",
	Usage:     "Print the decoded header of one archived block",
	ArgsUsage: "<hash>",
	Action:    baHeader,
}

var baExistsCommand = &cli.Command{
	Name:      "exists",
	Usage:     "Check whether a block is present in the archive",
	ArgsUsage: "<hash>",
	Action:    baExists,
}

func openArchive(ctx *cli.Context) (*blockarchive.FileArchive, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	if !cfg.BlockArchive.Enabled {
		return nil, chainerr.ErrBlockArchiveNotEnabled
	}
	return blockarchive.NewFileArchive(cfg.BlockArchive.RootPath), nil
}

func baList(ctx *cli.Context) error {
	archive, err := openArchive(ctx)
	if err != nil {
		return err
	}
	for hash := range archive.BlockList() {
		fmt.Fprintln(ctx.App.Writer, hash.String())
	}
	return nil
}

func parseHashArg(ctx *cli.Context) (chainstore.BlockHash, error) {
	if ctx.Args().Len() != 1 {
		return chainstore.BlockHash{}, cli.Exit("expected exactly one <hash> argument", 1)
	}
	return chainstore.HashFromReversedHex(ctx.Args().First())
}

func baHeader(ctx *cli.Context) error {
	archive, err := openArchive(ctx)
	if err != nil {
		return err
	}
	hash, err := parseHashArg(ctx)
	if err != nil {
		return err
	}
	header, err := archive.BlockHeader(hash)
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.App.Writer, "hash:        %s\n", header.Hash())
	fmt.Fprintf(ctx.App.Writer, "version:     %d\n", header.Version)
	fmt.Fprintf(ctx.App.Writer, "prev_hash:   %s\n", header.PrevHash)
	fmt.Fprintf(ctx.App.Writer, "merkle_root: %s\n", header.MerkleRoot)
	fmt.Fprintf(ctx.App.Writer, "timestamp:   %d\n", header.Timestamp)
	fmt.Fprintf(ctx.App.Writer, "bits:        0x%08x\n", header.Bits)
	fmt.Fprintf(ctx.App.Writer, "nonce:       %d\n", header.Nonce)
	return nil
}

func baExists(ctx *cli.Context) error {
	archive, err := openArchive(ctx)
	if err != nil {
		return err
	}
	hash, err := parseHashArg(ctx)
	if err != nil {
		return err
	}
	exists, err := archive.BlockExists(hash)
	if err != nil {
		return err
	}
	fmt.Fprintln(ctx.App.Writer, exists)
	return nil
}
