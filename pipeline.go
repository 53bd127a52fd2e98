package emoteline

import (
	"bytes"
	"image"
	"io"
	"time"

	"github.com/pkg/errors"
)

// minTraceArea is the largest silhouette that may legitimately trace to an
// empty outline. Anything bigger must produce paths.
const minTraceArea = 2

// StageTiming records how long a pipeline stage took.
type StageTiming struct {
	Stage   string
	Elapsed time.Duration
}

// Report describes a finished run.
type Report struct {
	InputFrames  int
	OutputFrames int
	InputSize    image.Point
	OutputSize   image.Point
	Format       Format
	Bytes        int
	// Step is the accepted GIF step, nil for APNG output.
	Step     *Step
	Attempts []Attempt
	Stages   []StageTiming
	// WorkDir is set when the intermediates were preserved.
	WorkDir string
}

// Output is the artifact of a run together with the animation it encodes.
type Output struct {
	Data      []byte
	Animation *Animation
	Report    *Report
}

// Pipeline turns an animation into an outlined, resized and size-bounded
// artifact. The zero Tracer and Renderer fall back to PotraceTracer and
// StrokeRenderer.
type Pipeline struct {
	Options  Options
	Tracer   Tracer
	Renderer Renderer
}

// NewPipeline returns a pipeline using the potrace tracer and the gg stroke
// renderer.
func NewPipeline(opts Options) *Pipeline {
	return &Pipeline{
		Options:  opts,
		Tracer:   NewPotraceTracer(),
		Renderer: StrokeRenderer{},
	}
}

func (p *Pipeline) tracer() Tracer {
	if p.Tracer == nil {
		return NewPotraceTracer()
	}
	return p.Tracer
}

func (p *Pipeline) renderer() Renderer {
	if p.Renderer == nil {
		return StrokeRenderer{}
	}
	return p.Renderer
}

// stageClock appends a timing entry per finished stage.
type stageClock struct {
	report *Report
	start  time.Time
}

func (c *stageClock) done(stage string) {
	elapsed := time.Since(c.start)
	c.report.Stages = append(c.report.Stages, StageTiming{Stage: stage, Elapsed: elapsed})
	Logger().Debug("stage finished", "stage", stage, "elapsed", elapsed)
	c.start = time.Now()
}

// Process decodes r, runs the pipeline and writes the artifact to w.
func (p *Pipeline) Process(r io.Reader, w io.Writer) (*Report, error) {
	a, err := Decode(r)
	if err != nil {
		return nil, err
	}
	out, err := p.Run(a)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(out.Data); err != nil {
		return nil, errors.Wrap(err, "write output")
	}
	return out.Report, nil
}

// Run executes every stage on a. Each stage consumes the complete animation
// before the next one starts; frames inside a stage are processed
// concurrently.
func (p *Pipeline) Run(a *Animation) (*Output, error) {
	opts := p.Options
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := a.Validate(); err != nil {
		return nil, inputErr("validate", err)
	}

	report := &Report{
		InputFrames: len(a.Frames),
		InputSize:   a.Size(),
		Format:      opts.Format,
	}
	clock := &stageClock{report: report, start: time.Now()}

	wd, err := newWorkDir(opts.WorkDir, opts.Preserve)
	if err != nil {
		return nil, err
	}
	defer wd.Close()
	if opts.Preserve {
		report.WorkDir = wd.Path()
	}

	cur := a
	if !opts.SkipOutline {
		if cur, err = p.outline(cur, wd, clock); err != nil {
			return nil, err
		}
	}
	if !opts.SkipResize {
		cur = p.resample(cur)
		clock.done("resample")
	}

	out := &Output{Animation: cur, Report: report}
	switch opts.Format {
	case FormatAPNG:
		var buf bytes.Buffer
		if err := EncodeAPNG(&buf, cur); err != nil {
			return nil, err
		}
		out.Data = buf.Bytes()
		report.OutputFrames = len(cur.Frames)
	default:
		enc := &BudgetedEncoder{Budget: opts.Budget(), Workers: opts.Workers}
		res, err := enc.Encode(cur)
		if err != nil {
			return nil, err
		}
		out.Data = res.Data
		report.Step = &res.Step
		report.Attempts = res.Attempts
		report.OutputFrames = res.Frames
	}
	clock.done("encode")

	report.OutputSize = cur.Size()
	report.Bytes = len(out.Data)
	return out, nil
}

// outline runs padding, silhouette extraction, tracing, rendering,
// compositing and the optional crop.
func (p *Pipeline) outline(a *Animation, wd *workDir, clock *stageClock) (*Animation, error) {
	opts := p.Options
	padded := Pad(a, opts.Padding)
	canvas := padded.Size()
	n := len(padded.Frames)
	clock.done("pad")

	masks := make([]*Mask, n)
	err := forEachFrame(n, opts.Workers, func(i int) error {
		masks[i] = ExtractSilhouette(padded.Frames[i].Image, opts.AlphaThreshold)
		return wd.saveMask(i, masks[i])
	})
	if err != nil {
		return nil, errors.Wrap(err, "save mask")
	}
	clock.done("silhouette")

	if opts.TracePolicy == TraceOnce {
		masks = []*Mask{MergeMasks(masks)}
	}
	outlines := make([]*Outline, len(masks))
	err = forEachFrame(len(masks), opts.Workers, func(i int) error {
		o, err := p.trace(i, masks[i])
		if err != nil {
			return err
		}
		outlines[i] = o
		return wd.saveOutline(i, o, opts.Stroke())
	})
	if err != nil {
		return nil, err
	}
	clock.done("trace")

	layers := make([]*image.NRGBA, len(outlines))
	err = forEachFrame(len(outlines), opts.Workers, func(i int) error {
		layer, err := p.renderer().Render(outlines[i], opts.Stroke(), canvas)
		if err != nil {
			return &ExternalToolError{Tool: "rasterizer", Frame: i, Err: err}
		}
		if got := layer.Bounds().Size(); got != canvas {
			return &CoordinateMismatchError{Frame: i, Want: canvas, Got: got}
		}
		layers[i] = layer
		return wd.saveStroke(i, layer)
	})
	if err != nil {
		return nil, err
	}
	clock.done("render")

	out, err := Compositor{}.Composite(padded, layers, opts.Workers)
	if err != nil {
		return nil, err
	}
	clock.done("composite")

	if opts.CropPadding {
		if out, err = Crop(out, opts.Padding); err != nil {
			return nil, err
		}
		clock.done("crop")
	}
	return out, nil
}

// trace runs the tracer on one mask. Empty masks skip the tracer and yield an
// empty outline.
func (p *Pipeline) trace(i int, m *Mask) (*Outline, error) {
	size := m.Bounds().Size()
	if m.Empty() {
		return &Outline{Size: size}, nil
	}
	o, err := p.tracer().Trace(m)
	if err != nil {
		return nil, &ExternalToolError{Tool: "tracer", Frame: i, Err: err}
	}
	if o == nil || (o.Empty() && m.Count() > minTraceArea) {
		return nil, &ExternalToolError{Tool: "tracer", Frame: i, Err: errors.New("empty outline")}
	}
	if o.Size != size {
		return nil, &CoordinateMismatchError{Frame: i, Want: size, Got: o.Size}
	}
	Logger().Debug("traced frame", "frame", i, "islands", len(o.Groups), "paths", o.PathCount())
	return o, nil
}

func (p *Pipeline) resample(a *Animation) *Animation {
	return ResampleAnimation(a, p.Options.Size, p.Options.Workers)
}
