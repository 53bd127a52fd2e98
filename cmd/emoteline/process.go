package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/emoteline/emoteline"
	"github.com/emoteline/emoteline/utils"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"
)

// job holds everything needed to convert one file.
type job struct {
	opts       emoteline.Options
	fps        int
	acceptBest bool
	forceAPNG  bool
}

// result holds the outcome of converting one file.
type result struct {
	path   string
	report *emoteline.Report
	err    error
}

// run is the command action.
func run(ctx context.Context, c *cli.Command) error {
	if c.Bool("debug") {
		emoteline.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	j, err := jobFromFlags(c)
	if err != nil {
		return err
	}
	src, dst := c.String("in"), c.String("out")

	// A remote source is fetched into a temporary file first.
	if utils.IsValidUrl(src) {
		f, err := utils.DownloadFile(src)
		if err != nil {
			return errors.Wrap(err, "failed to load the source")
		}
		f.Close()
		defer os.Remove(f.Name())
		src = f.Name()
	}

	var fs os.FileInfo
	if src == pipeName {
		fs, err = os.Stdin.Stat()
	} else {
		fs, err = os.Stat(src)
	}
	if err != nil {
		return errors.Wrap(err, "failed to load the source")
	}

	now := time.Now()
	if fs.IsDir() {
		if err := batch(src, dst, j, int(c.Int("conc"))); err != nil {
			return err
		}
	} else {
		res := j.single(src, dst)
		printStatus(res)
		if res.err != nil {
			return cli.Exit("", 1)
		}
	}
	fmt.Fprintf(os.Stderr, "\nExecution time: %s\n",
		utils.DecorateText(utils.FormatTime(time.Since(now)), utils.SuccessMessage))
	return nil
}

// jobFromFlags builds the pipeline options. Explicit flags win over the
// preset.
func jobFromFlags(c *cli.Command) (*job, error) {
	opts := emoteline.DefaultOptions()

	if name := c.String("preset"); name != "" {
		preset, err := emoteline.LookupPreset(name)
		if err != nil {
			return nil, err
		}
		preset.Apply(&opts)
	}
	if c.IsSet("size") || c.String("preset") == "" {
		opts.Size = int(c.Int("size"))
	}
	if c.IsSet("max-size") || c.String("preset") == "" {
		opts.MaxBytes = int(c.Float("max-size") * emoteline.MB)
	}
	if c.IsSet("min-resolution") {
		opts.MinResolution = int(c.Int("min-resolution"))
	}

	col, err := emoteline.ParseColor(c.String("color"))
	if err != nil {
		return nil, err
	}
	policy, err := emoteline.ParseTracePolicy(c.String("trace"))
	if err != nil {
		return nil, err
	}
	threshold := c.Int("alpha-threshold")
	if threshold < 0 || threshold > 255 {
		return nil, errors.Errorf("alpha threshold must be within 0..255, got %d", threshold)
	}

	opts.StrokeWidth = c.Float("width")
	opts.StrokeColor = col
	opts.Padding = int(c.Int("padding"))
	opts.AlphaThreshold = uint8(threshold)
	opts.TracePolicy = policy
	opts.CropPadding = c.Bool("crop")
	opts.Preserve = c.Bool("keep-temp")
	opts.WorkDir = c.String("work-dir")
	opts.Workers = int(c.Int("workers"))
	opts.SkipOutline = c.Bool("skip-outline")
	opts.SkipResize = c.Bool("skip-resize")

	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &job{
		opts:       opts,
		fps:        int(c.Int("fps")),
		acceptBest: c.Bool("accept-best"),
		forceAPNG:  c.Bool("skip-gif"),
	}, nil
}

// single converts one file and shows a progress indicator while doing so.
func (j *job) single(in, out string) result {
	spinnerText := fmt.Sprintf("%s %s",
		utils.DecorateText("⚡ EMOTELINE", utils.StatusMessage),
		utils.DecorateText("⇢ outlining and encoding (be patient, it may take a while)...", utils.DefaultMessage))
	spinner := utils.NewSpinner(spinnerText, 80*time.Millisecond, true)

	// Capture CTRL-C, restore the cursor and drop the partial output.
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signalChan)
	go func() {
		if _, ok := <-signalChan; !ok {
			return
		}
		spinner.RestoreCursor()
		if out != pipeName {
			os.Remove(out)
		}
		os.Exit(1)
	}()

	spinner.Start()
	res := j.convert(in, out)
	if res.err != nil {
		spinner.StopMsg = fmt.Sprintf("%s %s %s\n",
			utils.DecorateText("⚡ EMOTELINE", utils.StatusMessage),
			utils.DecorateText("conversion failed...", utils.DefaultMessage),
			utils.DecorateText("✘", utils.ErrorMessage))
	} else {
		spinner.StopMsg = fmt.Sprintf("%s %s %s\n",
			utils.DecorateText("⚡ EMOTELINE", utils.StatusMessage),
			utils.DecorateText("⇢", utils.DefaultMessage),
			utils.DecorateText("the emote has been converted successfully ✔", utils.SuccessMessage))
	}
	spinner.Stop()
	return res
}

// convert runs the pipeline for one source and destination.
func (j *job) convert(in, out string) result {
	res := result{path: out}

	opts := j.opts
	switch {
	case j.forceAPNG:
		opts.Format = emoteline.FormatAPNG
	case out != pipeName:
		format, err := emoteline.FormatFromPath(out)
		if err != nil {
			res.err = err
			return res
		}
		opts.Format = format
	}

	a, err := j.decode(in)
	if err != nil {
		res.err = err
		return res
	}

	output, err := emoteline.NewPipeline(opts).Run(a)
	var data []byte
	var unattainable *emoteline.BudgetUnattainable
	switch {
	case err == nil:
		data = output.Data
		res.report = output.Report
	case errors.As(err, &unattainable) && j.acceptBest:
		data = unattainable.Best
		res.report = &emoteline.Report{Attempts: unattainable.Attempts, Bytes: unattainable.BestSize()}
	default:
		res.err = err
		return res
	}

	dst, err := openDestination(out)
	if err != nil {
		res.err = err
		return res
	}
	if _, err := dst.Write(data); err != nil {
		res.err = errors.Wrap(err, "write output")
	}
	if dst != os.Stdout {
		if err := dst.Close(); err != nil && res.err == nil {
			res.err = err
		}
	}
	if res.err != nil && out != pipeName {
		os.Remove(out)
	}
	return res
}

// decode reads the source animation from a file, a video clip or stdin.
func (j *job) decode(in string) (*emoteline.Animation, error) {
	switch {
	case in == pipeName:
		if term.IsTerminal(int(os.Stdin.Fd())) {
			return nil, errors.New("`-` should be used with a pipe for stdin")
		}
		return emoteline.Decode(os.Stdin)
	case emoteline.IsVideo(in):
		return emoteline.DecodeVideo(in, j.fps)
	default:
		return emoteline.DecodeFile(in)
	}
}

// openDestination returns a writer for a regular file or stdout.
func openDestination(out string) (*os.File, error) {
	if out == pipeName {
		if term.IsTerminal(int(os.Stdout.Fd())) {
			return nil, errors.New("`-` should be used with a pipe for stdout")
		}
		return os.Stdout, nil
	}
	f, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create the destination file")
	}
	return f, nil
}

// printStatus displays the outcome of a conversion.
func printStatus(res result) {
	if res.err != nil {
		fmt.Fprint(os.Stderr,
			utils.DecorateText("\nError converting the emote: ", utils.ErrorMessage),
			utils.DecorateText(fmt.Sprintf("\n\tReason: %v\n", res.err), utils.DefaultMessage),
		)
		var unattainable *emoteline.BudgetUnattainable
		if errors.As(res.err, &unattainable) {
			fmt.Fprint(os.Stderr, utils.DecorateText(
				"\tUse --accept-best to keep the smallest attempt anyway.\n", utils.WarningMessage))
		}
		return
	}
	if res.path != pipeName {
		fmt.Fprintf(os.Stderr, "\nThe emote has been saved as: %s %s\n",
			utils.DecorateText(filepath.Base(res.path), utils.SuccessMessage),
			utils.DefaultColor,
		)
	}
	if res.report != nil {
		printReport(os.Stderr, res.report)
	}
}

// printReport summarizes the stages and the accepted encoding.
func printReport(w io.Writer, r *emoteline.Report) {
	for _, s := range r.Stages {
		fmt.Fprintf(w, "\t%-10s %s\n", s.Stage, utils.FormatTime(s.Elapsed))
	}
	if r.Step != nil {
		fmt.Fprintf(w, "\tencoded with %s after %d attempt(s)\n", r.Step, len(r.Attempts))
	}
	fmt.Fprintf(w, "\t%d frame(s), %s\n", r.OutputFrames, utils.FormatBytes(r.Bytes))
}
