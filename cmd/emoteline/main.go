package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"strings"

	"github.com/emoteline/emoteline"
	"github.com/emoteline/emoteline/utils"
	"github.com/urfave/cli/v3"
)

const HelpBanner = `
┌─┐┌┬┐┌─┐┌┬┐┌─┐┬  ┬┌┐┌┌─┐
├┤ ││││ │ │ ├┤ │  ││││├┤
└─┘┴ ┴└─┘ ┴ └─┘┴─┘┴┘└┘└─┘

Outline, resize and squeeze animated emotes.
    Version: %s

`

// pipeName is the file name that indicates stdin/stdout is being used.
const pipeName = "-"

// maxWorkers sets the maximum number of concurrently processed files.
const maxWorkers = 20

// Version indicates the current build version.
var Version string

var cmd = &cli.Command{
	Name:      "emoteline",
	Usage:     "add a vector outline to an animation and fit it to a platform's size limits",
	UsageText: "emoteline -i tail.png -o tail.gif [--preset discord] [options]",
	Version:   Version,
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "in", Aliases: []string{"i"}, Value: pipeName, Usage: "source file, directory, URL or - for stdin"},
		&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Value: pipeName, Usage: "destination file, directory or - for stdout"},
		&cli.StringFlag{Name: "preset", Aliases: []string{"p"}, Usage: "target platform: " + strings.Join(emoteline.PresetNames(), ", ")},
		&cli.IntFlag{Name: "size", Aliases: []string{"s"}, Value: 1000, Usage: "square output size in pixels"},
		&cli.FloatFlag{Name: "width", Aliases: []string{"w"}, Value: 6, Usage: "outline width in pixels at full resolution"},
		&cli.StringFlag{Name: "color", Aliases: []string{"c"}, Value: "FFFFFF", Usage: "outline color as hex"},
		&cli.IntFlag{Name: "padding", Value: 80, Usage: "transparent margin added before tracing"},
		&cli.FloatFlag{Name: "max-size", Value: 10, Usage: "maximum GIF size in MB, 0 disables the limit"},
		&cli.IntFlag{Name: "alpha-threshold", Value: 10, Usage: "alpha value separating subject from background"},
		&cli.IntFlag{Name: "min-resolution", Usage: "reject outputs smaller than this many pixels"},
		&cli.StringFlag{Name: "trace", Value: "per-frame", Usage: "trace policy: per-frame or once"},
		&cli.BoolFlag{Name: "crop", Usage: "strip the padding again after compositing"},
		&cli.BoolFlag{Name: "keep-temp", Usage: "keep intermediate masks, outlines and strokes"},
		&cli.StringFlag{Name: "work-dir", Usage: "parent directory of the intermediates"},
		&cli.IntFlag{Name: "workers", Value: int64(runtime.NumCPU()), Usage: "frames processed concurrently"},
		&cli.IntFlag{Name: "conc", Value: int64(runtime.NumCPU()), Usage: "files processed concurrently in directory mode"},
		&cli.IntFlag{Name: "fps", Value: emoteline.DefaultVideoFPS, Usage: "sampling rate for video inputs"},
		&cli.BoolFlag{Name: "skip-outline", Usage: "do not add an outline"},
		&cli.BoolFlag{Name: "skip-resize", Usage: "keep the original dimensions"},
		&cli.BoolFlag{Name: "skip-gif", Usage: "write a lossless APNG instead of a GIF"},
		&cli.BoolFlag{Name: "accept-best", Usage: "write the smallest GIF when the size limit cannot be met"},
		&cli.BoolFlag{Name: "debug", Usage: "log every stage and encoding attempt"},
	},
	Action: run,
}

func main() {
	log.SetFlags(0)

	cli.HelpPrinter = helpPrinter(cli.HelpPrinter)
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, utils.DecorateText(err.Error(), utils.ErrorMessage))
		os.Exit(1)
	}
}

// helpPrinter prints the banner above the generated help.
func helpPrinter(next func(w io.Writer, tmpl string, data any)) func(w io.Writer, tmpl string, data any) {
	return func(w io.Writer, tmpl string, data any) {
		fmt.Fprintf(w, HelpBanner, Version)
		next(w, tmpl, data)
	}
}
