package emoteline

import (
	"image"
	"image/draw"

	"github.com/pkg/errors"
)

// DefaultFrameDuration is used when a source frame carries no timing.
const DefaultFrameDuration = 40

// Frame is a single picture of an animation together with its display
// duration in milliseconds. Frames are treated as immutable once a stage has
// produced them.
type Frame struct {
	Image    *image.NRGBA
	Duration int
}

// Animation is an ordered sequence of equally sized frames.
// LoopCount is the number of plays as stored by APNG; 0 plays forever.
type Animation struct {
	Frames    []Frame
	LoopCount int
}

// Size returns the common frame size, or the zero point for an empty animation.
func (a *Animation) Size() image.Point {
	if a == nil || len(a.Frames) == 0 {
		return image.Point{}
	}
	return a.Frames[0].Image.Bounds().Size()
}

// Durations returns the per-frame durations in frame order.
func (a *Animation) Durations() []int {
	d := make([]int, len(a.Frames))
	for i, f := range a.Frames {
		d[i] = f.Duration
	}
	return d
}

// TotalDuration returns the sum of all frame durations in milliseconds.
func (a *Animation) TotalDuration() int {
	var total int
	for _, f := range a.Frames {
		total += f.Duration
	}
	return total
}

// Validate checks that the animation has frames and that every frame shares
// the size of the first one.
func (a *Animation) Validate() error {
	if a == nil || len(a.Frames) == 0 {
		return ErrEmptyAnimation
	}
	size := a.Size()
	if size.X <= 0 || size.Y <= 0 {
		return errors.Errorf("frame 0 has an empty canvas %dx%d", size.X, size.Y)
	}
	for i, f := range a.Frames {
		if f.Image == nil {
			return errors.Errorf("frame %d has no pixels", i)
		}
		if s := f.Image.Bounds().Size(); s != size {
			return errors.Errorf("frame %d is %dx%d, expected %dx%d", i, s.X, s.Y, size.X, size.Y)
		}
		if f.Duration < 0 {
			return errors.Errorf("frame %d has a negative duration", i)
		}
	}
	return nil
}

// withFrames returns a new animation sharing the loop count of a.
func (a *Animation) withFrames(frames []Frame) *Animation {
	return &Animation{Frames: frames, LoopCount: a.LoopCount}
}

// padFrame places img at (pad, pad) on a transparent canvas grown by pad on
// every side.
func padFrame(img *image.NRGBA, pad int) *image.NRGBA {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx()+2*pad, b.Dy()+2*pad))
	draw.Draw(dst, image.Rect(pad, pad, pad+b.Dx(), pad+b.Dy()), img, b.Min, draw.Src)
	return dst
}

// cropFrame removes pad pixels from every side, reversing padFrame exactly.
func cropFrame(img *image.NRGBA, pad int) *image.NRGBA {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx()-2*pad, b.Dy()-2*pad))
	draw.Draw(dst, dst.Bounds(), img, image.Pt(b.Min.X+pad, b.Min.Y+pad), draw.Src)
	return dst
}

// Pad grows every frame by pad transparent pixels on each side.
func Pad(a *Animation, pad int) *Animation {
	if pad <= 0 {
		return a
	}
	frames := make([]Frame, len(a.Frames))
	for i, f := range a.Frames {
		frames[i] = Frame{Image: padFrame(f.Image, pad), Duration: f.Duration}
	}
	return a.withFrames(frames)
}

// Crop strips pad pixels from each side of every frame.
func Crop(a *Animation, pad int) (*Animation, error) {
	if pad <= 0 {
		return a, nil
	}
	size := a.Size()
	if size.X <= 2*pad || size.Y <= 2*pad {
		return nil, errors.Errorf("cannot crop %dpx from a %dx%d canvas", pad, size.X, size.Y)
	}
	frames := make([]Frame, len(a.Frames))
	for i, f := range a.Frames {
		frames[i] = Frame{Image: cropFrame(f.Image, pad), Duration: f.Duration}
	}
	return a.withFrames(frames), nil
}
