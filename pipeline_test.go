package emoteline

import (
	"bytes"
	"image"
	"image/gif"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

// boxTracer outlines the bounding box of the silhouette and reports the size
// of every mask it is handed.
type boxTracer struct {
	mu    sync.Mutex
	sizes []image.Point
}

func (b *boxTracer) Trace(m *Mask) (*Outline, error) {
	b.mu.Lock()
	b.sizes = append(b.sizes, m.Bounds().Size())
	b.mu.Unlock()

	r := m.ForegroundBounds()
	return &Outline{
		Size: m.Bounds().Size(),
		Groups: []PathGroup{{Paths: []Path{
			rectPath(float64(r.Min.X), float64(r.Min.Y), float64(r.Max.X), float64(r.Max.Y), false),
		}}},
	}, nil
}

func (b *boxTracer) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sizes)
}

func testOptions(t *testing.T) Options {
	opts := DefaultOptions()
	opts.WorkDir = t.TempDir()
	opts.Workers = 2
	return opts
}

// A 2000×2000 black square gets a white outline at full resolution and is
// then resampled to 1000×1000. The stroke survives as a thin light border just
// outside the square while the square itself stays black.
func TestPipeline_BlackSquare(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping the full resolution run in short mode")
	}
	art := squareImage(2000, 2000, image.Rect(0, 0, 2000, 2000), black)
	tracer := &boxTracer{}
	p := &Pipeline{Options: testOptions(t), Tracer: tracer, Renderer: StrokeRenderer{}}

	out, err := p.Run(&Animation{Frames: []Frame{{Image: art, Duration: 40}}})
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, []image.Point{{2160, 2160}}, tracer.sizes)
	assert.Equal(t, image.Pt(2000, 2000), out.Report.InputSize)
	assert.Equal(t, image.Pt(1000, 1000), out.Report.OutputSize)

	img := out.Animation.Frames[0].Image
	edge := img.NRGBAAt(36, 500)
	assert.Greater(t, edge.R, uint8(100))
	assert.Greater(t, edge.A, uint8(0))
	assert.Equal(t, uint8(0), img.NRGBAAt(30, 500).A)
	assert.Equal(t, black, img.NRGBAAt(500, 500))

	g, err := gif.DecodeAll(bytes.NewReader(out.Data))
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, 1000, g.Config.Width)
	assert.Len(t, g.Image, 1)
}

func TestPipeline_TracesBeforeResampling(t *testing.T) {
	opts := testOptions(t)
	opts.Size = 50
	opts.Padding = 10
	tracer := &boxTracer{}
	p := &Pipeline{Options: opts, Tracer: tracer, Renderer: StrokeRenderer{}}

	a := &Animation{Frames: []Frame{
		{Image: squareImage(100, 100, image.Rect(20, 20, 80, 80), red), Duration: 40},
		{Image: squareImage(100, 100, image.Rect(30, 30, 70, 70), red), Duration: 60},
	}}
	out, err := p.Run(a)
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, []image.Point{{120, 120}, {120, 120}}, tracer.sizes)
	assert.Equal(t, image.Pt(50, 50), out.Animation.Size())
	assert.Equal(t, []int{40, 60}, out.Animation.Durations())
	assert.Equal(t, 2, out.Report.OutputFrames)
	assert.NotNil(t, out.Report.Step)

	var stages []string
	for _, s := range out.Report.Stages {
		stages = append(stages, s.Stage)
	}
	assert.Equal(t, []string{"pad", "silhouette", "trace", "render", "composite", "resample", "encode"}, stages)
}

func TestPipeline_TraceOnce(t *testing.T) {
	opts := testOptions(t)
	opts.SkipResize = true
	opts.Padding = 4
	opts.TracePolicy = TraceOnce
	tracer := &boxTracer{}
	p := &Pipeline{Options: opts, Tracer: tracer}

	a := &Animation{Frames: []Frame{
		{Image: squareImage(20, 20, image.Rect(2, 2, 8, 8), red), Duration: 40},
		{Image: squareImage(20, 20, image.Rect(12, 12, 18, 18), blue), Duration: 40},
		{Image: squareImage(20, 20, image.Rect(2, 12, 8, 18), white), Duration: 40},
	}}
	out, err := p.Run(a)
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, 1, tracer.calls())
	assert.Len(t, out.Animation.Frames, 3)

	opts.TracePolicy = TracePerFrame
	tracer = &boxTracer{}
	_, err = (&Pipeline{Options: opts, Tracer: tracer}).Run(a)
	assert.NoError(t, err)
	assert.Equal(t, 3, tracer.calls())
}

func TestPipeline_CropPadding(t *testing.T) {
	opts := testOptions(t)
	opts.SkipResize = true
	opts.CropPadding = true
	opts.Padding = 8
	opts.StrokeWidth = 4
	opts.Format = FormatAPNG

	art := squareImage(30, 30, image.Rect(5, 5, 25, 25), red)
	out, err := (&Pipeline{Options: opts, Tracer: &boxTracer{}}).Run(&Animation{Frames: []Frame{{Image: art, Duration: 40}}})
	if !assert.NoError(t, err) {
		return
	}
	got := out.Animation.Frames[0].Image
	assert.Equal(t, image.Pt(30, 30), got.Bounds().Size())
	assert.Equal(t, red, got.NRGBAAt(5, 5))
	assert.Equal(t, red, got.NRGBAAt(24, 24))
	assert.Equal(t, white, got.NRGBAAt(15, 4))
	assert.Equal(t, uint8(0), got.NRGBAAt(15, 0).A)
	assert.Nil(t, out.Report.Step)
	assert.Equal(t, FormatAPNG, out.Report.Format)
}

func TestPipeline_RealTracerKeepsIslandsApart(t *testing.T) {
	opts := testOptions(t)
	opts.SkipResize = true
	opts.Padding = 4
	opts.StrokeWidth = 2
	opts.Format = FormatAPNG

	art := squareImage(60, 30, image.Rect(5, 5, 25, 25), black)
	for y := 5; y < 25; y++ {
		for x := 35; x < 55; x++ {
			art.SetNRGBA(x, y, black)
		}
	}
	out, err := NewPipeline(opts).Run(&Animation{Frames: []Frame{{Image: art, Duration: 40}}})
	if !assert.NoError(t, err) {
		return
	}
	got := out.Animation.Frames[0].Image
	assert.Equal(t, image.Pt(68, 38), got.Bounds().Size())
	// Between the islands the canvas stays transparent.
	assert.Equal(t, uint8(0), got.NRGBAAt(34, 19).A)
	// Just outside each island the stroke shows.
	assert.Greater(t, got.NRGBAAt(8, 19).A, uint8(200))
	assert.Greater(t, got.NRGBAAt(59, 19).A, uint8(200))
	assert.Equal(t, black, got.NRGBAAt(20, 19))
}

func TestPipeline_PreserveWorkDir(t *testing.T) {
	opts := testOptions(t)
	opts.SkipResize = true
	opts.Padding = 2
	opts.Preserve = true

	a := &Animation{Frames: []Frame{
		{Image: squareImage(10, 10, image.Rect(2, 2, 8, 8), red), Duration: 40},
		{Image: squareImage(10, 10, image.Rect(3, 3, 7, 7), red), Duration: 40},
	}}
	out, err := (&Pipeline{Options: opts, Tracer: &boxTracer{}}).Run(a)
	if !assert.NoError(t, err) {
		return
	}
	dir := out.Report.WorkDir
	if !assert.NotEmpty(t, dir) {
		return
	}
	for _, name := range []string{
		"masks/frame_0000.bmp", "masks/frame_0001.bmp",
		"outlines/frame_0000.svg", "outlines/frame_0001.svg",
		"strokes/frame_0000.png", "strokes/frame_0001.png",
	} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
}

func TestPipeline_RemovesWorkDir(t *testing.T) {
	opts := testOptions(t)
	opts.SkipResize = true

	_, err := (&Pipeline{Options: opts, Tracer: &boxTracer{}}).Run(solidAnimation(2, 12, 40))
	if !assert.NoError(t, err) {
		return
	}
	entries, err := os.ReadDir(opts.WorkDir)
	assert.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPipeline_EmptyFrameSkipsTracer(t *testing.T) {
	opts := testOptions(t)
	opts.SkipResize = true
	tracer := TracerFunc(func(m *Mask) (*Outline, error) {
		return nil, errors.New("tracer must not run")
	})

	a := &Animation{Frames: []Frame{{Image: image.NewNRGBA(image.Rect(0, 0, 8, 8)), Duration: 40}}}
	out, err := (&Pipeline{Options: opts, Tracer: tracer}).Run(a)
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, 1, out.Report.OutputFrames)
}

func TestPipeline_TracerErrors(t *testing.T) {
	a := &Animation{Frames: []Frame{
		{Image: squareImage(16, 16, image.Rect(2, 2, 14, 14), red), Duration: 40},
		{Image: squareImage(16, 16, image.Rect(4, 4, 12, 12), red), Duration: 40},
	}}

	failing := TracerFunc(func(m *Mask) (*Outline, error) {
		return nil, errors.New("potrace: not found")
	})
	empty := TracerFunc(func(m *Mask) (*Outline, error) {
		return &Outline{Size: m.Bounds().Size()}, nil
	})
	shifted := TracerFunc(func(m *Mask) (*Outline, error) {
		return &Outline{
			Size:   m.Bounds().Size().Add(image.Pt(1, 0)),
			Groups: []PathGroup{{Paths: []Path{rectPath(1, 1, 5, 5, false)}}},
		}, nil
	})

	for name, tc := range map[string]struct {
		tracer   Tracer
		mismatch bool
	}{
		"failing": {tracer: failing},
		"empty":   {tracer: empty},
		"shifted": {tracer: shifted, mismatch: true},
	} {
		opts := testOptions(t)
		opts.SkipResize = true
		_, err := (&Pipeline{Options: opts, Tracer: tc.tracer}).Run(a)

		if tc.mismatch {
			var mismatch *CoordinateMismatchError
			assert.True(t, errors.As(err, &mismatch), name)
			continue
		}
		var toolErr *ExternalToolError
		if assert.True(t, errors.As(err, &toolErr), name) {
			assert.Equal(t, "tracer", toolErr.Tool, name)
			assert.Equal(t, 0, toolErr.Frame, name)
		}
	}
}

func TestPipeline_RendererErrors(t *testing.T) {
	a := solidAnimation(1, 12, 40)

	broken := RendererFunc(func(o *Outline, s Stroke, canvas image.Point) (*image.NRGBA, error) {
		return nil, errors.New("rasterizer unavailable")
	})
	cropped := RendererFunc(func(o *Outline, s Stroke, canvas image.Point) (*image.NRGBA, error) {
		return image.NewNRGBA(image.Rect(0, 0, canvas.X-1, canvas.Y)), nil
	})

	opts := testOptions(t)
	opts.SkipResize = true

	_, err := (&Pipeline{Options: opts, Tracer: &boxTracer{}, Renderer: broken}).Run(a)
	var toolErr *ExternalToolError
	if assert.True(t, errors.As(err, &toolErr)) {
		assert.Equal(t, "rasterizer", toolErr.Tool)
	}

	_, err = (&Pipeline{Options: opts, Tracer: &boxTracer{}, Renderer: cropped}).Run(a)
	var mismatch *CoordinateMismatchError
	assert.True(t, errors.As(err, &mismatch))
}

func TestPipeline_MinResolution(t *testing.T) {
	opts := testOptions(t)
	Presets["slack"].Apply(&opts)
	opts.SkipOutline = true

	a := solidAnimation(1, 64, 40)

	opts.SkipResize = true
	_, err := (&Pipeline{Options: opts}).Run(a)
	assert.True(t, errors.Is(err, ErrBelowMinResolution))

	opts.SkipResize = false
	out, err := (&Pipeline{Options: opts}).Run(a)
	if assert.NoError(t, err) {
		assert.Equal(t, image.Pt(128, 128), out.Report.OutputSize)
	}
}

func TestPipeline_InvalidInput(t *testing.T) {
	_, err := NewPipeline(DefaultOptions()).Run(&Animation{})
	var inputErr *InputError
	assert.True(t, errors.As(err, &inputErr))
	assert.True(t, errors.Is(err, ErrEmptyAnimation))

	opts := DefaultOptions()
	opts.Padding = -1
	_, err = NewPipeline(opts).Run(solidAnimation(1, 8, 40))
	assert.Error(t, err)
}

func TestPipeline_Process(t *testing.T) {
	src, err := EncodeGIF(solidAnimation(3, 16, 50), Step{Colors: 256, Skip: 1}, 10)
	if !assert.NoError(t, err) {
		return
	}

	opts := testOptions(t)
	opts.Size = 24
	opts.Padding = 4
	var dst bytes.Buffer
	report, err := (&Pipeline{Options: opts, Tracer: &boxTracer{}}).Process(bytes.NewReader(src), &dst)
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, 3, report.InputFrames)
	assert.Equal(t, dst.Len(), report.Bytes)

	out, err := Decode(&dst)
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, image.Pt(24, 24), out.Size())
	assert.Equal(t, []int{50, 50, 50}, out.Durations())
}
