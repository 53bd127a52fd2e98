package emoteline

import (
	"image"
)

const (
	maskForeground = 0x00
	maskBackground = 0xff
)

// Mask is a binary silhouette aligned 1:1 with the frame it was taken from.
// Foreground pixels are black and background pixels white, which is the
// polarity expected by potrace.
type Mask struct {
	*image.Gray
}

// NewMask returns an all-background mask of the given size.
func NewMask(w, h int) *Mask {
	m := &Mask{image.NewGray(image.Rect(0, 0, w, h))}
	for i := range m.Pix {
		m.Pix[i] = maskBackground
	}
	return m
}

// Foreground reports whether the pixel at (x, y) belongs to the silhouette.
func (m *Mask) Foreground(x, y int) bool {
	if !(image.Point{x, y}.In(m.Rect)) {
		return false
	}
	return m.Pix[m.PixOffset(x, y)] == maskForeground
}

// Set marks the pixel at (x, y) as foreground or background.
func (m *Mask) Set(x, y int, fg bool) {
	v := uint8(maskBackground)
	if fg {
		v = maskForeground
	}
	m.Pix[m.PixOffset(x, y)] = v
}

// Count returns the number of foreground pixels.
func (m *Mask) Count() int {
	var n int
	for _, v := range m.Pix {
		if v == maskForeground {
			n++
		}
	}
	return n
}

// Empty reports whether the mask has no foreground at all.
func (m *Mask) Empty() bool {
	for _, v := range m.Pix {
		if v == maskForeground {
			return false
		}
	}
	return true
}

// ExtractSilhouette thresholds the alpha channel of img. A pixel is foreground
// when its alpha is strictly greater than threshold, so anti-aliased edge
// pixels survive and only (near) fully transparent pixels are dropped.
// No smoothing is applied and disconnected regions stay disconnected.
func ExtractSilhouette(img *image.NRGBA, threshold uint8) *Mask {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	m := NewMask(w, h)

	for y := 0; y < h; y++ {
		si := img.PixOffset(b.Min.X, b.Min.Y+y)
		di := m.PixOffset(0, y)
		for x := 0; x < w; x++ {
			if img.Pix[si+3] > threshold {
				m.Pix[di] = maskForeground
			}
			si += 4
			di++
		}
	}
	return m
}

// MergeMasks returns the union of equally sized masks. It is used to trace a
// single representative silhouette for the whole animation.
func MergeMasks(masks []*Mask) *Mask {
	if len(masks) == 0 {
		return nil
	}
	b := masks[0].Bounds()
	merged := NewMask(b.Dx(), b.Dy())
	for _, m := range masks {
		for i, v := range m.Pix {
			if v == maskForeground {
				merged.Pix[i] = maskForeground
			}
		}
	}
	return merged
}

// ForegroundBounds returns the bounding box of the foreground pixels.
func (m *Mask) ForegroundBounds() image.Rectangle {
	var r image.Rectangle
	b := m.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if m.Pix[m.PixOffset(x, y)] != maskForeground {
				continue
			}
			r = r.Union(image.Rect(x, y, x+1, y+1))
		}
	}
	return r
}
