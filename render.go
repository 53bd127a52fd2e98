package emoteline

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/gogpu/gg"
	"github.com/pkg/errors"
)

// Stroke describes how an outline is drawn.
type Stroke struct {
	Width float64
	Color color.NRGBA
}

// Renderer rasterizes an outline into a transparent layer of the given canvas
// size. The layer must share the coordinate space of the outline: no crop, no
// offset and no scaling.
type Renderer interface {
	Render(o *Outline, s Stroke, canvas image.Point) (*image.NRGBA, error)
}

// RendererFunc adapts a plain function to the Renderer interface.
type RendererFunc func(o *Outline, s Stroke, canvas image.Point) (*image.NRGBA, error)

// Render calls f(o, s, canvas).
func (f RendererFunc) Render(o *Outline, s Stroke, canvas image.Point) (*image.NRGBA, error) {
	return f(o, s, canvas)
}

// StrokeRenderer strokes outlines with the gg software rasterizer using round
// joins and caps. The path interiors are never filled.
type StrokeRenderer struct{}

// Render implements Renderer.
func (StrokeRenderer) Render(o *Outline, s Stroke, canvas image.Point) (*image.NRGBA, error) {
	if canvas.X <= 0 || canvas.Y <= 0 {
		return nil, errors.Errorf("invalid canvas %dx%d", canvas.X, canvas.Y)
	}
	if o.Empty() || s.Width <= 0 {
		return image.NewNRGBA(image.Rect(0, 0, canvas.X, canvas.Y)), nil
	}

	dc := gg.NewContext(canvas.X, canvas.Y)
	defer dc.Close()

	dc.SetColor(s.Color)
	dc.SetLineWidth(s.Width)
	dc.SetLineJoin(gg.LineJoinRound)
	dc.SetLineCap(gg.LineCapRound)

	for _, g := range o.Groups {
		for _, p := range g.Paths {
			if len(p.Segments) == 0 {
				continue
			}
			dc.MoveTo(p.Start.X, p.Start.Y)
			for _, seg := range p.Segments {
				switch seg.Kind {
				case SegmentCubic:
					dc.CubicTo(seg.C1.X, seg.C1.Y, seg.C2.X, seg.C2.Y, seg.To.X, seg.To.Y)
				default:
					dc.LineTo(seg.To.X, seg.To.Y)
				}
			}
			dc.ClosePath()
		}
	}
	if err := dc.Stroke(); err != nil {
		return nil, errors.Wrap(err, "stroke outline")
	}

	layer := imaging.Clone(dc.Image())
	if s := layer.Bounds().Size(); s != canvas {
		return nil, errors.Errorf("rasterizer produced %dx%d, want %dx%d", s.X, s.Y, canvas.X, canvas.Y)
	}
	return layer, nil
}
