package emoteline

import (
	"image"
	"testing"

	"github.com/gotranspile/gotrace"
	"github.com/stretchr/testify/assert"
)

// fillMask marks every pixel of r as foreground.
func fillMask(m *Mask, r image.Rectangle, fg bool) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			m.Set(x, y, fg)
		}
	}
}

func TestTracer_KeepsIslandsApart(t *testing.T) {
	m := NewMask(40, 24)
	fillMask(m, image.Rect(4, 2, 14, 12), true)
	fillMask(m, image.Rect(20, 2, 30, 12), true)

	o, err := NewPotraceTracer().Trace(m)
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, image.Pt(40, 24), o.Size)
	assert.Len(t, o.Groups, 2)

	left := o.GroupContaining(Point{9, 7})
	right := o.GroupContaining(Point{25, 7})
	assert.NotEqual(t, -1, left)
	assert.NotEqual(t, -1, right)
	assert.NotEqual(t, left, right)
	assert.False(t, o.Contains(Point{17, 7}), "the gap between the islands is not covered")
}

func TestTracer_MatchesRasterOrientation(t *testing.T) {
	// The square sits in the top half only, so a mirrored outline would miss it.
	m := NewMask(30, 30)
	fillMask(m, image.Rect(5, 2, 25, 10), true)

	o, err := NewPotraceTracer().Trace(m)
	if !assert.NoError(t, err) {
		return
	}
	assert.True(t, o.Contains(Point{15, 6}))
	assert.False(t, o.Contains(Point{15, 24}))

	lo, hi := o.Bounds()
	assert.InDelta(t, 2, lo.Y, 1.5)
	assert.InDelta(t, 10, hi.Y, 1.5)
}

func TestTracer_Holes(t *testing.T) {
	m := NewMask(30, 30)
	fillMask(m, image.Rect(5, 5, 25, 25), true)
	fillMask(m, image.Rect(11, 11, 19, 19), false)

	o, err := NewPotraceTracer().Trace(m)
	if !assert.NoError(t, err) {
		return
	}
	if !assert.Len(t, o.Groups, 1) {
		return
	}
	paths := o.Groups[0].Paths
	assert.Len(t, paths, 2)
	assert.False(t, paths[0].Hole)
	assert.True(t, paths[1].Hole)

	assert.True(t, o.Contains(Point{7, 15}))
	assert.False(t, o.Contains(Point{15, 15}))
}

func TestTracer_SpecklesVanish(t *testing.T) {
	m := NewMask(10, 10)
	m.Set(4, 4, true)

	o, err := NewPotraceTracer().Trace(m)
	assert.NoError(t, err)
	assert.True(t, o.Empty())
	assert.Equal(t, image.Pt(10, 10), o.Size)

	_, err = NewPotraceTracer().Trace(nil)
	assert.Error(t, err)
}

func TestTracer_Func(t *testing.T) {
	var called int
	tr := TracerFunc(func(m *Mask) (*Outline, error) {
		called++
		return &Outline{Size: m.Bounds().Size()}, nil
	})
	o, err := tr.Trace(NewMask(3, 2))
	assert.NoError(t, err)
	assert.Equal(t, image.Pt(3, 2), o.Size)
	assert.Equal(t, 1, called)
}

// cornerCurve returns a closed potrace curve of corner segments around the
// rectangle x0,y0 x1,y1.
func cornerCurve(x0, y0, x1, y1 float64) gotrace.Curve {
	corners := [][2]float64{{x1, y0}, {x1, y1}, {x0, y1}, {x0, y0}}
	c := gotrace.Curve{N: len(corners)}
	for i, v := range corners {
		prev := corners[(i+len(corners)-1)%len(corners)]
		mid := gotrace.DPoint{X: (prev[0] + v[0]) / 2, Y: (prev[1] + v[1]) / 2}
		next := corners[(i+1)%len(corners)]
		end := gotrace.DPoint{X: (v[0] + next[0]) / 2, Y: (v[1] + next[1]) / 2}
		c.Tag = append(c.Tag, gotrace.POTRACE_CORNER)
		c.C = append(c.C, [3]gotrace.DPoint{mid, {X: v[0], Y: v[1]}, end})
	}
	return c
}

func TestTracer_ConvertCurve(t *testing.T) {
	c := gotrace.Curve{
		N:   2,
		Tag: []int{gotrace.POTRACE_CORNER, gotrace.POTRACE_CURVETO},
		C: [][3]gotrace.DPoint{
			{{}, {X: 4, Y: 0}, {X: 4, Y: 2}},
			{{X: 4, Y: 4}, {X: 0, Y: 4}, {X: 0, Y: 0}},
		},
	}
	p := convertCurve(&c, true)
	assert.True(t, p.Hole)
	assert.Equal(t, Point{0, 0}, p.Start)
	assert.Equal(t, []Segment{
		{Kind: SegmentLine, To: Point{4, 0}},
		{Kind: SegmentLine, To: Point{4, 2}},
		{Kind: SegmentCubic, C1: Point{4, 4}, C2: Point{0, 4}, To: Point{0, 0}},
	}, p.Segments)

	empty := convertCurve(&gotrace.Curve{}, false)
	assert.Empty(t, empty.Segments)
}

func TestTracer_WalksPathTree(t *testing.T) {
	nested := &gotrace.Path{Sign: '+', Curve: cornerCurve(12, 12, 14, 14)}
	hole := &gotrace.Path{Sign: '-', Curve: cornerCurve(10, 10, 16, 16), Childlist: nested}
	right := &gotrace.Path{Sign: '+', Curve: cornerCurve(30, 2, 40, 20)}
	left := &gotrace.Path{Sign: '+', Curve: cornerCurve(2, 2, 24, 24), Childlist: hole, Sibling: right}
	// Next chains every path in prefix order; the walk must not follow it.
	left.Next, hole.Next, nested.Next, right.Next = hole, nested, right, nil

	o := &Outline{Size: image.Pt(48, 32)}
	appendGroups(o, left)
	if !assert.Len(t, o.Groups, 3) {
		return
	}
	assert.Len(t, o.Groups[0].Paths, 2)
	assert.False(t, o.Groups[0].Paths[0].Hole)
	assert.True(t, o.Groups[0].Paths[1].Hole)
	assert.Len(t, o.Groups[1].Paths, 1)
	assert.Len(t, o.Groups[2].Paths, 1)

	assert.Equal(t, 0, o.GroupContaining(Point{5, 5}))
	assert.Equal(t, 2, o.GroupContaining(Point{35, 10}))
	assert.True(t, polygonContains(o.Groups[1].Paths[0].Flatten(), Point{13, 13}))
	assert.False(t, o.Contains(Point{11, 11}))
	assert.True(t, o.Contains(Point{13, 13}))
}

func TestTracer_FlipsIntoRasterFrame(t *testing.T) {
	// A 4x3 block close to the top edge lands at the same rows after tracing.
	m := NewMask(8, 8)
	fillMask(m, image.Rect(2, 1, 6, 4), true)

	o, err := NewPotraceTracer().Trace(m)
	if !assert.NoError(t, err) {
		return
	}
	lo, hi := o.Bounds()
	assert.InDelta(t, 1, lo.Y, 0.75)
	assert.InDelta(t, 4, hi.Y, 0.75)
	assert.InDelta(t, 2, lo.X, 0.75)
	assert.InDelta(t, 6, hi.X, 0.75)
	assert.True(t, o.Contains(Point{4, 2.5}))
	assert.False(t, o.Contains(Point{4, 6.5}))
}
