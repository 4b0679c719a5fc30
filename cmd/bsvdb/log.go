package main

import (
	"io"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"
	"gopkg.in/natefinch/lumberjack.v2"
)

// setupLogging wires the console and optional rotating-file output,
// matching the teacher's cmd/mive log setup idiom: colorable/isatty decide
// whether the console gets ANSI color, lumberjack owns file rotation, and
// verbosity is a single --verbosity integer rather than per-package filters.
func setupLogging(ctx *cli.Context) error {
	var writer io.Writer = os.Stderr
	useColor := isatty.IsTerminal(os.Stderr.Fd()) && !ctx.Bool(logJSONFlag.Name)
	if useColor {
		writer = colorable.NewColorable(os.Stderr)
	}

	if file := ctx.String(logFileFlag.Name); file != "" {
		rotator := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    100,
			MaxBackups: 10,
			MaxAge:     30,
			Compress:   true,
		}
		writer = io.MultiWriter(writer, rotator)
	}

	format := log.TerminalFormat(useColor)
	if ctx.Bool(logJSONFlag.Name) {
		format = log.JSONFormat()
	}

	lvl := log.Lvl(ctx.Int(verbosityFlag.Name))
	log.Root().SetHandler(log.LvlFilterHandler(lvl, log.StreamHandler(writer, format)))
	return nil
}
