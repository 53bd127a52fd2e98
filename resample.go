package emoteline

import (
	"image"

	"github.com/disintegration/imaging"
)

// Resample scales img to size×size with a Lanczos filter applied to every
// channel including alpha. Non-square inputs are stretched.
func Resample(img *image.NRGBA, size int) *image.NRGBA {
	if b := img.Bounds(); b.Dx() == size && b.Dy() == size {
		return imaging.Clone(img)
	}
	return imaging.Resize(img, size, size, imaging.Lanczos)
}

// ResampleAnimation scales every frame of a on up to workers goroutines,
// keeping durations and loop count.
func ResampleAnimation(a *Animation, size, workers int) *Animation {
	frames := make([]Frame, len(a.Frames))
	_ = forEachFrame(len(a.Frames), workers, func(i int) error {
		f := a.Frames[i]
		frames[i] = Frame{Image: Resample(f.Image, size), Duration: f.Duration}
		return nil
	})
	return a.withFrames(frames)
}
