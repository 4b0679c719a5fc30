package main

import (
	"github.com/urfave/cli/v2"

	"github.com/Danconnolly/bsvdb/cmd/bsvdb/internal/flags"
)

var (
	configFileFlag = &cli.StringFlag{
		Name:     "config",
		Usage:    "TOML configuration file",
		Category: flags.GeneralCategory,
	}
	chainFlag = &cli.StringFlag{
		Name:     "chain",
		Usage:    "Blockchain to operate on (mainnet, testnet, stn, regtest)",
		Value:    "mainnet",
		Category: flags.GeneralCategory,
	}

	chainStoreRootFlag = &cli.StringFlag{
		Name:     "chainstore.root",
		Usage:    "Directory prefix for the chain store in the KV cluster (default: per-chain convention)",
		Category: flags.ChainStoreCategory,
	}
	chainStoreClusterFileFlag = &cli.StringFlag{
		Name:     "chainstore.cluster-file",
		Usage:    "FoundationDB cluster file (default: platform default cluster file)",
		Category: flags.ChainStoreCategory,
	}

	blockArchiveRootFlag = &cli.StringFlag{
		Name:     "archive.root",
		Usage:    "Filesystem root of the block archive",
		Category: flags.BlockArchiveCategory,
	}

	verbosityFlag = &cli.IntFlag{
		Name:     "verbosity",
		Usage:    "Logging verbosity: 0=crit, 1=error, 2=warn, 3=info, 4=debug, 5=trace",
		Value:    3,
		Category: flags.LoggingCategory,
	}
	logJSONFlag = &cli.BoolFlag{
		Name:     "log.json",
		Usage:    "Format console logs as JSON",
		Category: flags.LoggingCategory,
	}
	logFileFlag = &cli.StringFlag{
		Name:     "log.file",
		Usage:    "Write logs to a rotating file in addition to the console",
		Category: flags.LoggingCategory,
	}

	metricsAddrFlag = &cli.StringFlag{
		Name:     "metrics.addr",
		Usage:    "Serve Prometheus-format metrics on this address (e.g. 127.0.0.1:6061); empty disables",
		Category: flags.GeneralCategory,
	}
)

var appFlags = []cli.Flag{
	configFileFlag,
	chainFlag,
	chainStoreRootFlag,
	chainStoreClusterFileFlag,
	blockArchiveRootFlag,
	verbosityFlag,
	logJSONFlag,
	logFileFlag,
	metricsAddrFlag,
}
