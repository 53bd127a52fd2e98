package emoteline

import (
	"image"

	"github.com/emoteline/emoteline/imop"
	"github.com/pkg/errors"
)

// Compositor places a stroke layer beneath the artwork of a frame.
type Compositor struct{}

// CompositeFrame returns a new image with layer drawn under img using the
// Porter-Duff destination-over operator. Opaque artwork always wins over the
// stroke, so the outline shows only around the silhouette. index is reported
// in the error when the two images disagree on size.
func (Compositor) CompositeFrame(index int, img, layer *image.NRGBA) (*image.NRGBA, error) {
	want, got := img.Bounds().Size(), layer.Bounds().Size()
	if want != got {
		return nil, &CoordinateMismatchError{Frame: index, Want: want, Got: got}
	}

	op := imop.InitOp()
	if err := op.Set(imop.DstOver); err != nil {
		return nil, err
	}
	out := image.NewNRGBA(image.Rect(0, 0, want.X, want.Y))
	if err := op.Draw(out, layer, img); err != nil {
		return nil, err
	}
	return out, nil
}

// Composite merges layers[i] under frame i on up to workers goroutines,
// preserving frame count, order and durations. A single layer is shared by
// every frame.
func (c Compositor) Composite(a *Animation, layers []*image.NRGBA, workers int) (*Animation, error) {
	if len(layers) != 1 && len(layers) != len(a.Frames) {
		return nil, errors.Errorf("%d stroke layers for %d frames", len(layers), len(a.Frames))
	}
	frames := make([]Frame, len(a.Frames))
	err := forEachFrame(len(a.Frames), workers, func(i int) error {
		f := a.Frames[i]
		layer := layers[0]
		if len(layers) > 1 {
			layer = layers[i]
		}
		img, err := c.CompositeFrame(i, f.Image, layer)
		if err != nil {
			return err
		}
		frames[i] = Frame{Image: img, Duration: f.Duration}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return a.withFrames(frames), nil
}
