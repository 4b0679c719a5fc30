// Package flags provides the category constants and app scaffold shared by
// the bsvdb subcommands, mirroring the teacher's internal/flags.NewApp and
// flags.Category idiom (cmd/mive/main.go).
package flags

import "github.com/urfave/cli/v2"

// Flag categories, grouping --help output the way the teacher groups flags
// under flags.EthCategory / flags.AccountCategory.
const (
	GeneralCategory      = "GENERAL"
	ChainStoreCategory   = "CHAIN STORE"
	BlockArchiveCategory = "BLOCK ARCHIVE"
	LoggingCategory      = "LOGGING"
)

// NewApp creates a urfave/cli App pre-populated with identity and usage,
// the same role the teacher's flags.NewApp plays for cmd/mive.
func NewApp(usage string) *cli.App {
	app := cli.NewApp()
	app.EnableBashCompletion = true
	app.Usage = usage
	app.Copyright = "Copyright 2026 The bsvdb Authors"
	return app
}
