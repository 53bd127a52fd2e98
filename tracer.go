package emoteline

import (
	"image/color"

	"github.com/gotranspile/gotrace"
	"github.com/pkg/errors"
)

// Tracer turns a binary silhouette into a vector outline expressed in the
// mask's own pixel coordinates. Implementations must keep disconnected
// foreground regions in separate path groups.
type Tracer interface {
	Trace(m *Mask) (*Outline, error)
}

// TracerFunc adapts a plain function to the Tracer interface.
type TracerFunc func(m *Mask) (*Outline, error)

// Trace calls f(m).
func (f TracerFunc) Trace(m *Mask) (*Outline, error) { return f(m) }

// PotraceTracer traces masks with the potrace algorithm. Every top-level
// component is emitted as its own island group, which is the equivalent of
// potrace's flat mode: components are never merged or bridged.
type PotraceTracer struct {
	// TurdSize suppresses speckles of up to this many pixels.
	TurdSize int
	// AlphaMax is the corner threshold; lower values keep more corners.
	AlphaMax float64
	// OptTolerance controls how aggressively curves are joined.
	OptTolerance float64
}

// NewPotraceTracer returns a tracer with the settings the outline generator
// has always used (--opttolerance 0.3).
func NewPotraceTracer() *PotraceTracer {
	return &PotraceTracer{
		TurdSize:     2,
		AlphaMax:     1.0,
		OptTolerance: 0.3,
	}
}

// Trace implements Tracer.
func (t *PotraceTracer) Trace(m *Mask) (*Outline, error) {
	if m == nil {
		return nil, errors.New("nil mask")
	}
	size := m.Bounds().Size()

	params := gotrace.DefaultConfig()
	params.TurdSize = t.TurdSize
	params.AlphaMax = t.AlphaMax
	params.OptiCurve = true
	params.OptTolerance = t.OptTolerance

	bm := gotrace.BitmapFromGray(m.Gray, func(c color.Gray) bool {
		return c.Y == maskForeground
	})
	paths, err := gotrace.Trace(bm, params)
	if err != nil {
		return nil, errors.Wrap(err, "potrace")
	}

	o := &Outline{Size: size}
	appendGroups(o, paths)

	if o.Empty() {
		// Speckles below TurdSize legitimately vanish.
		if m.Count() <= t.TurdSize {
			return o, nil
		}
		return nil, errors.Errorf("potrace returned no paths for %d foreground pixels", m.Count())
	}
	// The bitmap stores raster row y at h-1-y, so potrace answers in a y-up frame.
	return o.flipY(), nil
}

// appendGroups walks the potrace path tree. Siblings at one level are islands,
// the childlist of an island holds its holes and the childlist of a hole holds
// the islands nested inside it, which become groups of their own.
func appendGroups(o *Outline, tree *gotrace.Path) {
	for p := tree; p != nil; p = p.Sibling {
		group := PathGroup{Paths: []Path{convertCurve(&p.Curve, false)}}
		for hole := p.Childlist; hole != nil; hole = hole.Sibling {
			group.Paths = append(group.Paths, convertCurve(&hole.Curve, true))
		}
		o.Groups = append(o.Groups, group)

		for hole := p.Childlist; hole != nil; hole = hole.Sibling {
			appendGroups(o, hole.Childlist)
		}
	}
}

// convertCurve translates a potrace curve. A potrace curve is closed and starts
// at the end point of its last segment; corner segments pass through the
// vertex stored in C[i][1].
func convertCurve(curve *gotrace.Curve, hole bool) Path {
	p := Path{Hole: hole}
	n := min(curve.N, len(curve.C), len(curve.Tag))
	if n == 0 {
		return p
	}
	p.Start = dpoint(curve.C[n-1][2])

	for i := 0; i < n; i++ {
		c := curve.C[i]
		switch curve.Tag[i] {
		case gotrace.POTRACE_CORNER:
			p.Segments = append(p.Segments,
				Segment{Kind: SegmentLine, To: dpoint(c[1])},
				Segment{Kind: SegmentLine, To: dpoint(c[2])},
			)
		case gotrace.POTRACE_CURVETO:
			p.Segments = append(p.Segments, Segment{
				Kind: SegmentCubic,
				C1:   dpoint(c[0]),
				C2:   dpoint(c[1]),
				To:   dpoint(c[2]),
			})
		}
	}
	return p
}

func dpoint(p gotrace.DPoint) Point { return Point{p.X, p.Y} }
