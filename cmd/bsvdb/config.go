package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"reflect"
	"unicode"

	"github.com/naoina/toml"
	"github.com/urfave/cli/v2"

	"github.com/Danconnolly/bsvdb/internal/bsvconfig"
	"github.com/Danconnolly/bsvdb/internal/genparams"
)

// tomlSettings ensures TOML keys use the same names as the Go struct
// fields, matching the teacher's cmd/mive/config.go tomlSettings exactly.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		var link string
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see https://godoc.org/%s#%s for available fields", rt.PkgPath(), rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

func loadConfigFile(file string, cfg *bsvconfig.Config) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	return err
}

// loadConfig builds the effective Config from defaults, an optional TOML
// file, and command-line flag overrides, in that precedence order — the
// same layering as the teacher's loadBaseConfig. The Enabled fields do not
// follow that layering: the chain store is always enabled, and the block
// archive is enabled whenever its root path is set, whatever the file says.
func loadConfig(ctx *cli.Context) (bsvconfig.Config, error) {
	cfg := bsvconfig.DefaultConfig()

	if file := ctx.String(configFileFlag.Name); file != "" {
		if err := loadConfigFile(file, &cfg); err != nil {
			return bsvconfig.Config{}, fmt.Errorf("load config file: %w", err)
		}
	}

	if ctx.IsSet(chainFlag.Name) {
		chain := genparams.Chain(ctx.String(chainFlag.Name))
		if !chain.Valid() {
			return bsvconfig.Config{}, fmt.Errorf("unknown --chain %q", ctx.String(chainFlag.Name))
		}
		cfg.Blockchain = chain
	}

	if ctx.IsSet(chainStoreRootFlag.Name) {
		cfg.ChainStore.RootPath = ctx.String(chainStoreRootFlag.Name)
	}
	if ctx.IsSet(chainStoreClusterFileFlag.Name) {
		cfg.ChainStore.ClusterFile = ctx.String(chainStoreClusterFileFlag.Name)
	}
	if ctx.IsSet(blockArchiveRootFlag.Name) {
		cfg.BlockArchive.RootPath = ctx.String(blockArchiveRootFlag.Name)
	}

	if cfg.BlockArchive.RootPath != "" {
		cfg.BlockArchive.Enabled = true
	}
	cfg.ChainStore.Enabled = true

	return cfg, nil
}
