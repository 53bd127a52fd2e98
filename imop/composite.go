// Package imop implements the Porter-Duff compositing operators over
// non-premultiplied NRGBA pixel buffers.
package imop

import (
	"fmt"
	"image"
	"slices"
)

// Op names a compositing operator.
type Op string

const (
	Clear   Op = "clear"
	Copy    Op = "copy"
	Dst     Op = "dst"
	SrcOver Op = "src_over"
	DstOver Op = "dst_over"
	SrcIn   Op = "src_in"
	DstIn   Op = "dst_in"
	SrcOut  Op = "src_out"
	DstOut  Op = "dst_out"
	SrcAtop Op = "src_atop"
	DstAtop Op = "dst_atop"
	Xor     Op = "xor"
)

// Composite holds the currently selected operator.
type Composite struct {
	current Op
	ops     []Op
}

// InitOp returns a Composite using SrcOver.
func InitOp() *Composite {
	return &Composite{
		current: SrcOver,
		ops: []Op{
			Clear, Copy, Dst,
			SrcOver, DstOver,
			SrcIn, DstIn,
			SrcOut, DstOut,
			SrcAtop, DstAtop,
			Xor,
		},
	}
}

// Set changes the active operator. Unknown operators leave it unchanged.
func (op *Composite) Set(o Op) error {
	if !slices.Contains(op.ops, o) {
		return fmt.Errorf("unsupported composite operation %q", o)
	}
	op.current = o
	return nil
}

// Get returns the active operator.
func (op *Composite) Get() Op {
	return op.current
}

// factors returns the Porter-Duff source and backdrop coefficients scaled to
// 0..255 for the given alpha values.
func (op *Composite) factors(as, ab int) (fa, fb int) {
	switch op.current {
	case Clear:
		return 0, 0
	case Copy:
		return 255, 0
	case Dst:
		return 0, 255
	case DstOver:
		return 255 - ab, 255
	case SrcIn:
		return ab, 0
	case DstIn:
		return 0, as
	case SrcOut:
		return 255 - ab, 0
	case DstOut:
		return 0, 255 - as
	case SrcAtop:
		return ab, 255 - as
	case DstAtop:
		return 255 - ab, as
	case Xor:
		return 255 - ab, 255 - as
	default: // SrcOver
		return 255, 255 - as
	}
}

// Draw composites src onto backdrop and writes the result into dst. All three
// images must have the same size; dst may alias backdrop or src. The arithmetic
// is integer only, so results are reproducible across platforms.
func (op *Composite) Draw(dst, src, backdrop *image.NRGBA) error {
	size := src.Bounds().Size()
	if backdrop.Bounds().Size() != size || dst.Bounds().Size() != size {
		return fmt.Errorf("size mismatch: src %v, backdrop %v, dst %v",
			size, backdrop.Bounds().Size(), dst.Bounds().Size())
	}
	sb, bb, db := src.Bounds(), backdrop.Bounds(), dst.Bounds()

	for y := 0; y < size.Y; y++ {
		si := src.PixOffset(sb.Min.X, sb.Min.Y+y)
		bi := backdrop.PixOffset(bb.Min.X, bb.Min.Y+y)
		di := dst.PixOffset(db.Min.X, db.Min.Y+y)
		for x := 0; x < size.X; x++ {
			s := src.Pix[si : si+4 : si+4]
			b := backdrop.Pix[bi : bi+4 : bi+4]
			as, ab := int(s[3]), int(b[3])
			fa, fb := op.factors(as, ab)

			// Alpha in 255² units, premultiplied color in 255³ units.
			alpha := as*fa + ab*fb
			var px [4]uint8
			if alpha > 0 {
				for c := 0; c < 3; c++ {
					n := int(s[c])*as*fa + int(b[c])*ab*fb
					px[c] = clamp((n + alpha/2) / alpha)
				}
				px[3] = clamp((alpha + 127) / 255)
				if px[3] == 0 {
					px = [4]uint8{}
				}
			}
			copy(dst.Pix[di:di+4], px[:])

			si += 4
			bi += 4
			di += 4
		}
	}
	return nil
}

func clamp(v int) uint8 {
	if v > 255 {
		return 255
	}
	if v < 0 {
		return 0
	}
	return uint8(v)
}
