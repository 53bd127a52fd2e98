package emoteline

import (
	"image"
	"image/color"
	"image/draw"
	"sort"

	"github.com/lucasb-eyer/go-colorful"
)

// histBits is the per-channel precision of the color histogram.
const histBits = 5

// histEntry is one populated cell of the color histogram.
type histEntry struct {
	key     int
	count   int
	sum     [3]int
	channel [3]uint8
}

// colorBox is a median cut box over histogram entries.
type colorBox struct {
	entries []histEntry
	lo, hi  [3]uint8
}

// Histogram accumulates the opaque colors of a set of frames.
type Histogram struct {
	cells     []histEntry
	threshold uint8
}

// NewHistogram returns an empty histogram. Pixels with alpha below threshold
// are ignored because they end up on the transparent index.
func NewHistogram(threshold uint8) *Histogram {
	return &Histogram{
		cells:     make([]histEntry, 1<<(3*histBits)),
		threshold: threshold,
	}
}

// Add counts the opaque pixels of img.
func (h *Histogram) Add(img *image.NRGBA) {
	b := img.Bounds()
	shift := 8 - histBits
	for y := b.Min.Y; y < b.Max.Y; y++ {
		i := img.PixOffset(b.Min.X, y)
		for x := b.Min.X; x < b.Max.X; x++ {
			px := img.Pix[i : i+4 : i+4]
			i += 4
			if px[3] < h.threshold {
				continue
			}
			r, g, bl := px[0]>>shift, px[1]>>shift, px[2]>>shift
			key := int(r)<<(2*histBits) | int(g)<<histBits | int(bl)
			c := &h.cells[key]
			c.key = key
			c.count++
			c.sum[0] += int(px[0])
			c.sum[1] += int(px[1])
			c.sum[2] += int(px[2])
			c.channel = [3]uint8{r, g, bl}
		}
	}
}

func (h *Histogram) entries() []histEntry {
	var out []histEntry
	for _, c := range h.cells {
		if c.count > 0 {
			out = append(out, c)
		}
	}
	return out
}

// MedianCut reduces the histogram to at most n colors. The result is sorted by
// perceptual lightness and is fully determined by the histogram contents.
func (h *Histogram) MedianCut(n int) []color.NRGBA {
	entries := h.entries()
	if len(entries) == 0 || n <= 0 {
		return nil
	}

	boxes := []*colorBox{newColorBox(entries)}
	for len(boxes) < n {
		idx, ch := widestBox(boxes)
		if idx < 0 {
			break
		}
		a, b := boxes[idx].split(ch)
		boxes = append(boxes[:idx], append([]*colorBox{a, b}, boxes[idx+1:]...)...)
	}

	palette := make([]color.NRGBA, 0, len(boxes))
	seen := make(map[color.NRGBA]bool, len(boxes))
	for _, b := range boxes {
		c := b.average()
		if seen[c] {
			continue
		}
		seen[c] = true
		palette = append(palette, c)
	}
	sortByLightness(palette)
	return palette
}

func newColorBox(entries []histEntry) *colorBox {
	b := &colorBox{entries: entries}
	b.lo = [3]uint8{255, 255, 255}
	for _, e := range entries {
		for c := 0; c < 3; c++ {
			b.lo[c] = min(b.lo[c], e.channel[c])
			b.hi[c] = max(b.hi[c], e.channel[c])
		}
	}
	return b
}

// widestBox picks the splittable box with the longest channel range. Ties go
// to the earliest box and the lowest channel index.
func widestBox(boxes []*colorBox) (int, int) {
	best, bestCh, bestRange := -1, 0, 0
	for i, b := range boxes {
		if len(b.entries) < 2 {
			continue
		}
		for c := 0; c < 3; c++ {
			if r := int(b.hi[c]) - int(b.lo[c]); r > bestRange {
				best, bestCh, bestRange = i, c, r
			}
		}
	}
	return best, bestCh
}

// split cuts the box at the population weighted median of channel ch.
func (b *colorBox) split(ch int) (*colorBox, *colorBox) {
	entries := append([]histEntry(nil), b.entries...)
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].channel[ch] != entries[j].channel[ch] {
			return entries[i].channel[ch] < entries[j].channel[ch]
		}
		return entries[i].key < entries[j].key
	})

	var total int
	for _, e := range entries {
		total += e.count
	}
	cut, acc := 1, 0
	for i, e := range entries[:len(entries)-1] {
		acc += e.count
		cut = i + 1
		if acc*2 >= total {
			break
		}
	}
	return newColorBox(entries[:cut]), newColorBox(entries[cut:])
}

func (b *colorBox) average() color.NRGBA {
	var n int
	var s [3]int
	for _, e := range b.entries {
		n += e.count
		for c := 0; c < 3; c++ {
			s[c] += e.sum[c]
		}
	}
	return color.NRGBA{
		R: uint8((s[0] + n/2) / n),
		G: uint8((s[1] + n/2) / n),
		B: uint8((s[2] + n/2) / n),
		A: 0xff,
	}
}

func sortByLightness(p []color.NRGBA) {
	light := make(map[color.NRGBA]float64, len(p))
	for _, c := range p {
		l, _, _ := colorful.Color{
			R: float64(c.R) / 255,
			G: float64(c.G) / 255,
			B: float64(c.B) / 255,
		}.Lab()
		light[c] = l
	}
	sort.SliceStable(p, func(i, j int) bool {
		li, lj := light[p[i]], light[p[j]]
		if li != lj {
			return li < lj
		}
		return packRGB(p[i]) < packRGB(p[j])
	})
}

func packRGB(c color.NRGBA) int {
	return int(c.R)<<16 | int(c.G)<<8 | int(c.B)
}

// transparentEntry is always the last palette index.
var transparentEntry = color.NRGBA{}

// BuildPalette derives a GIF palette of at most n entries from frames. The
// last entry is the transparent color; all others are opaque.
func BuildPalette(frames []*image.NRGBA, n int, threshold uint8) color.Palette {
	h := NewHistogram(threshold)
	for _, f := range frames {
		h.Add(f)
	}
	opaque := h.MedianCut(n - 1)
	if len(opaque) == 0 {
		opaque = []color.NRGBA{{A: 0xff}}
	}
	p := make(color.Palette, 0, len(opaque)+1)
	for _, c := range opaque {
		p = append(p, c)
	}
	return append(p, transparentEntry)
}

// Paletted maps img onto p. Pixels with alpha below threshold receive the
// transparent index; every other pixel is treated as fully opaque and mapped
// onto the opaque part of the palette, optionally with Floyd-Steinberg error
// diffusion.
func Paletted(img *image.NRGBA, p color.Palette, threshold uint8, dither bool) *image.Paletted {
	b := img.Bounds()
	rect := image.Rect(0, 0, b.Dx(), b.Dy())
	transparent := uint8(len(p) - 1)

	opaque := image.NewNRGBA(rect)
	copy(opaque.Pix, imagePix(img))
	if dither {
		bleedOpaque(opaque, threshold)
	}
	for i := 3; i < len(opaque.Pix); i += 4 {
		opaque.Pix[i] = 0xff
	}

	// The transparent entry is excluded while mapping so an opaque pixel can
	// never land on it.
	dst := image.NewPaletted(rect, p[:len(p)-1])
	if dither {
		draw.FloydSteinberg.Draw(dst, rect, opaque, image.Point{})
	} else {
		draw.Draw(dst, rect, opaque, image.Point{}, draw.Src)
	}
	dst.Palette = p

	src := imagePix(img)
	for i, j := 3, 0; i < len(src); i, j = i+4, j+1 {
		if src[i] < threshold {
			dst.Pix[j] = transparent
		}
	}
	return dst
}

// bleedOpaque gives every pixel below threshold the color of its nearest
// opaque pixel, so Floyd-Steinberg carries no error from the invisible
// background into the silhouette edge. img must start at the origin.
func bleedOpaque(img *image.NRGBA, threshold uint8) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	filled := make([]bool, w*h)
	queue := make([]int, 0, w*h)
	for j := range filled {
		if img.Pix[4*j+3] >= threshold {
			filled[j] = true
			queue = append(queue, j)
		}
	}
	if len(queue) == 0 {
		return
	}
	for len(queue) > 0 {
		j := queue[0]
		queue = queue[1:]
		x, y := j%w, j/w
		for _, n := range [4][2]int{{x, y - 1}, {x - 1, y}, {x + 1, y}, {x, y + 1}} {
			if n[0] < 0 || n[0] >= w || n[1] < 0 || n[1] >= h {
				continue
			}
			k := n[1]*w + n[0]
			if filled[k] {
				continue
			}
			filled[k] = true
			copy(img.Pix[4*k:4*k+3], img.Pix[4*j:4*j+3])
			queue = append(queue, k)
		}
	}
}

// imagePix returns the tightly packed pixels of img.
func imagePix(img *image.NRGBA) []uint8 {
	b := img.Bounds()
	if img.Stride == 4*b.Dx() && b.Min == (image.Point{}) {
		return img.Pix[:4*b.Dx()*b.Dy()]
	}
	out := make([]uint8, 0, 4*b.Dx()*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		i := img.PixOffset(b.Min.X, y)
		out = append(out, img.Pix[i:i+4*b.Dx()]...)
	}
	return out
}
