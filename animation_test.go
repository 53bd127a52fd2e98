package emoteline

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

// squareImage returns a transparent w×h image with rect filled by c.
func squareImage(w, h int, rect image.Rectangle, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, rect, image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

// solidAnimation returns n frames of the same size, each filled with a slightly
// different shade so no two frames are near-duplicates.
func solidAnimation(n, size int, duration int) *Animation {
	a := &Animation{}
	for i := 0; i < n; i++ {
		c := color.NRGBA{R: uint8(i * 8), G: 0x40, B: 0x80, A: 0xff}
		a.Frames = append(a.Frames, Frame{
			Image:    squareImage(size, size, image.Rect(size/4, size/4, 3*size/4, 3*size/4), c),
			Duration: duration,
		})
	}
	return a
}

func TestAnimation_Validate(t *testing.T) {
	var nilAnim *Animation
	assert.True(t, errors.Is(nilAnim.Validate(), ErrEmptyAnimation))
	assert.True(t, errors.Is((&Animation{}).Validate(), ErrEmptyAnimation))

	a := solidAnimation(3, 8, 40)
	assert.NoError(t, a.Validate())

	a.Frames[1].Image = image.NewNRGBA(image.Rect(0, 0, 8, 9))
	assert.Error(t, a.Validate())

	a = solidAnimation(2, 8, 40)
	a.Frames[1].Duration = -1
	assert.Error(t, a.Validate())
}

func TestAnimation_Durations(t *testing.T) {
	a := solidAnimation(3, 4, 40)
	a.Frames[2].Duration = 100

	assert.Equal(t, []int{40, 40, 100}, a.Durations())
	assert.Equal(t, 180, a.TotalDuration())
	assert.Equal(t, image.Pt(4, 4), a.Size())
	assert.Equal(t, image.Point{}, (&Animation{}).Size())
}

func TestAnimation_PadAndCropAreExactInverses(t *testing.T) {
	a := solidAnimation(2, 12, 50)
	a.LoopCount = 4
	a.Frames[0].Image.SetNRGBA(0, 0, red)
	a.Frames[1].Image.SetNRGBA(11, 11, blue)

	padded := Pad(a, 5)
	assert.Equal(t, image.Pt(22, 22), padded.Size())
	assert.Equal(t, 4, padded.LoopCount)
	assert.Equal(t, []int{50, 50}, padded.Durations())
	assert.Equal(t, red, padded.Frames[0].Image.NRGBAAt(5, 5))
	assert.Equal(t, uint8(0), padded.Frames[0].Image.NRGBAAt(4, 4).A)

	cropped, err := Crop(padded, 5)
	if !assert.NoError(t, err) {
		return
	}
	for i := range a.Frames {
		assert.Equal(t, a.Frames[i].Image.Pix, cropped.Frames[i].Image.Pix, "frame %d", i)
	}
}

func TestAnimation_PadZeroIsIdentity(t *testing.T) {
	a := solidAnimation(1, 4, 40)
	assert.Same(t, a, Pad(a, 0))

	cropped, err := Crop(a, 0)
	assert.NoError(t, err)
	assert.Same(t, a, cropped)
}

func TestAnimation_CropTooLarge(t *testing.T) {
	_, err := Crop(solidAnimation(1, 10, 40), 5)
	assert.Error(t, err)
}
