package emoteline

import (
	"fmt"
	"image"
	"io"
	"math"
	"strings"

	svg "github.com/ajstarks/svgo"
)

// curveSteps is the number of line segments a cubic is flattened into.
const curveSteps = 12

// Point is a location in the pixel coordinate space of the traced frame.
type Point struct {
	X, Y float64
}

// SegmentKind tells how a Segment reaches its end point.
type SegmentKind int

const (
	SegmentLine SegmentKind = iota
	SegmentCubic
)

// Segment is one piece of a closed path. C1 and C2 are only meaningful for
// cubic segments.
type Segment struct {
	Kind   SegmentKind
	C1, C2 Point
	To     Point
}

// Path is a closed contour starting at Start. The last segment returns to
// Start. Hole marks contours that bound a transparent region inside an island.
type Path struct {
	Start    Point
	Segments []Segment
	Hole     bool
}

// PathGroup is one island: its outer boundary first, followed by its holes.
// Groups never share geometry.
type PathGroup struct {
	Paths []Path
}

// Outline is the vector description of a silhouette. Its coordinates live in
// the same pixel space as the mask it was traced from, without any crop or
// offset.
type Outline struct {
	Size   image.Point
	Groups []PathGroup
}

// Empty reports whether the outline has no drawable path.
func (o *Outline) Empty() bool {
	if o == nil {
		return true
	}
	for _, g := range o.Groups {
		for _, p := range g.Paths {
			if len(p.Segments) > 0 {
				return false
			}
		}
	}
	return true
}

// PathCount returns the number of contours across all groups.
func (o *Outline) PathCount() int {
	var n int
	for _, g := range o.Groups {
		n += len(g.Paths)
	}
	return n
}

// Flatten approximates the path with a closed polyline.
func (p Path) Flatten() []Point {
	pts := []Point{p.Start}
	cur := p.Start
	for _, s := range p.Segments {
		switch s.Kind {
		case SegmentCubic:
			for i := 1; i <= curveSteps; i++ {
				pts = append(pts, cubicAt(cur, s.C1, s.C2, s.To, float64(i)/curveSteps))
			}
		default:
			pts = append(pts, s.To)
		}
		cur = s.To
	}
	return pts
}

func cubicAt(p0, p1, p2, p3 Point, t float64) Point {
	mt := 1 - t
	a := mt * mt * mt
	b := 3 * mt * mt * t
	c := 3 * mt * t * t
	d := t * t * t
	return Point{
		X: a*p0.X + b*p1.X + c*p2.X + d*p3.X,
		Y: a*p0.Y + b*p1.Y + c*p2.Y + d*p3.Y,
	}
}

// Bounds returns the bounding box of the flattened outline.
func (o *Outline) Bounds() (lo, hi Point) {
	lo = Point{math.Inf(1), math.Inf(1)}
	hi = Point{math.Inf(-1), math.Inf(-1)}
	for _, g := range o.Groups {
		for _, p := range g.Paths {
			for _, pt := range p.Flatten() {
				lo.X, lo.Y = math.Min(lo.X, pt.X), math.Min(lo.Y, pt.Y)
				hi.X, hi.Y = math.Max(hi.X, pt.X), math.Max(hi.Y, pt.Y)
			}
		}
	}
	return lo, hi
}

// Contains reports whether pt lies inside the outline using the even-odd rule,
// so points inside holes are outside.
func (o *Outline) Contains(pt Point) bool {
	inside := false
	for _, g := range o.Groups {
		for _, p := range g.Paths {
			if polygonContains(p.Flatten(), pt) {
				inside = !inside
			}
		}
	}
	return inside
}

// GroupContaining returns the index of the group whose outer boundary holds pt,
// or -1.
func (o *Outline) GroupContaining(pt Point) int {
	for i, g := range o.Groups {
		if len(g.Paths) > 0 && polygonContains(g.Paths[0].Flatten(), pt) {
			return i
		}
	}
	return -1
}

func polygonContains(poly []Point, pt Point) bool {
	inside := false
	for i, j := 0, len(poly)-1; i < len(poly); j, i = i, i+1 {
		a, b := poly[i], poly[j]
		if (a.Y > pt.Y) != (b.Y > pt.Y) &&
			pt.X < (b.X-a.X)*(pt.Y-a.Y)/(b.Y-a.Y)+a.X {
			inside = !inside
		}
	}
	return inside
}

// flipY mirrors the outline vertically inside its canvas.
func (o *Outline) flipY() *Outline {
	h := float64(o.Size.Y)
	f := func(p Point) Point { return Point{p.X, h - p.Y} }

	out := &Outline{Size: o.Size, Groups: make([]PathGroup, len(o.Groups))}
	for gi, g := range o.Groups {
		paths := make([]Path, len(g.Paths))
		for pi, p := range g.Paths {
			segs := make([]Segment, len(p.Segments))
			for si, s := range p.Segments {
				segs[si] = Segment{Kind: s.Kind, C1: f(s.C1), C2: f(s.C2), To: f(s.To)}
			}
			paths[pi] = Path{Start: f(p.Start), Segments: segs, Hole: p.Hole}
		}
		out.Groups[gi] = PathGroup{Paths: paths}
	}
	return out
}

// PathData renders the path as an SVG path "d" attribute.
func (p Path) PathData() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "M%s,%s", fmtFloat(p.Start.X), fmtFloat(p.Start.Y))
	for _, s := range p.Segments {
		switch s.Kind {
		case SegmentCubic:
			fmt.Fprintf(&sb, " C%s,%s %s,%s %s,%s",
				fmtFloat(s.C1.X), fmtFloat(s.C1.Y),
				fmtFloat(s.C2.X), fmtFloat(s.C2.Y),
				fmtFloat(s.To.X), fmtFloat(s.To.Y))
		default:
			fmt.Fprintf(&sb, " L%s,%s", fmtFloat(s.To.X), fmtFloat(s.To.Y))
		}
	}
	sb.WriteString(" Z")
	return sb.String()
}

func fmtFloat(v float64) string {
	s := fmt.Sprintf("%.3f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

// WriteOutlineSVG writes the outline as a stroked SVG document, one <g> per island.
// The file mirrors what is handed to the renderer and is kept among the
// preserved intermediates.
func WriteOutlineSVG(w io.Writer, o *Outline, stroke Stroke) {
	canvas := svg.New(w)
	canvas.Start(o.Size.X, o.Size.Y)
	style := fmt.Sprintf(
		"fill:none;stroke:#%02x%02x%02x;stroke-width:%s;stroke-linejoin:round;stroke-linecap:round",
		stroke.Color.R, stroke.Color.G, stroke.Color.B, fmtFloat(stroke.Width),
	)
	for i, g := range o.Groups {
		canvas.Gid(fmt.Sprintf("island-%d", i))
		for _, p := range g.Paths {
			canvas.Path(p.PathData(), style)
		}
		canvas.Gend()
	}
	canvas.End()
}
