package emoteline

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"

	"github.com/emoteline/emoteline/utils"
	"github.com/pkg/errors"
)

// MaxAttempts bounds the number of encodings tried for one animation.
const MaxAttempts = 64

// mergeTolerance is the largest per-channel difference for two frames to be
// considered near-duplicates.
const mergeTolerance = 3

// MB is the unit used for byte budgets on the command line.
const MB = 1 << 20

// Budget bounds the encoded artifact.
type Budget struct {
	// MaxBytes is the byte ceiling. Zero means unconstrained.
	MaxBytes int
	// AlphaThreshold separates transparent from opaque pixels.
	AlphaThreshold uint8
	// MinResolution rejects animations with a smaller width or height.
	MinResolution int
}

// Step is one rung of the degradation ladder.
type Step struct {
	Colors          int
	Dither          bool
	Skip            int
	MergeDuplicates bool
}

func (s Step) String() string {
	str := fmt.Sprintf("%d colors", s.Colors)
	if s.Dither {
		str += ", dithered"
	}
	if s.MergeDuplicates {
		str += ", merged duplicates"
	}
	if s.Skip > 1 {
		str += fmt.Sprintf(", every %d frames", s.Skip)
	}
	return str
}

// Attempt records one encoding and its size.
type Attempt struct {
	Step  Step
	Bytes int
}

// Result is the accepted encoding.
type Result struct {
	Data     []byte
	Step     Step
	Frames   int
	Attempts []Attempt
}

// Ladder returns the ordered degradation steps for an animation of n frames,
// best quality first. Frame skipping only lists factors that actually change
// the number of kept frames.
func Ladder(n int) []Step {
	steps := []Step{
		{Colors: 256, Dither: true, Skip: 1},
		{Colors: 256, Skip: 1},
	}
	for c := 224; c >= 64; c -= 32 {
		steps = append(steps, Step{Colors: c, Skip: 1})
	}
	if n > 1 {
		steps = append(steps, Step{Colors: 64, Skip: 1, MergeDuplicates: true})
	}
	prev := n
	for k := 2; k <= n; k++ {
		kept := (n + k - 1) / k
		if kept == prev {
			continue
		}
		prev = kept
		steps = append(steps, Step{Colors: 64, Skip: k, MergeDuplicates: true})
	}
	if len(steps) > MaxAttempts {
		steps = steps[:MaxAttempts]
	}
	return steps
}

// BudgetedEncoder encodes animations as GIF, degrading quality step by step
// until the output fits the budget.
type BudgetedEncoder struct {
	Budget  Budget
	Workers int
}

// Encode walks the ladder and returns the first encoding that fits. When no
// step fits, the error is a *BudgetUnattainable holding the smallest output.
func (e *BudgetedEncoder) Encode(a *Animation) (*Result, error) {
	if err := a.Validate(); err != nil {
		return nil, inputErr("encode", err)
	}
	size := a.Size()
	if floor := e.Budget.MinResolution; size.X < floor || size.Y < floor {
		return nil, inputErr("encode", errors.Wrapf(ErrBelowMinResolution,
			"%dx%d is below %dx%d", size.X, size.Y, floor, floor))
	}

	var (
		attempts []Attempt
		best     []byte
	)
	for _, step := range Ladder(len(a.Frames)) {
		reduced := ApplyStep(a, step)
		data, err := encodeGIF(reduced, step, e.Budget.AlphaThreshold, e.Workers)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, Attempt{Step: step, Bytes: len(data)})
		Logger().Info("gif attempt", "step", step.String(), "frames", len(reduced.Frames), "bytes", len(data))

		if best == nil || len(data) < len(best) {
			best = data
		}
		if e.Budget.MaxBytes == 0 || len(data) <= e.Budget.MaxBytes {
			return &Result{Data: data, Step: step, Frames: len(reduced.Frames), Attempts: attempts}, nil
		}
	}

	Logger().Warn("byte budget unattainable", "max", e.Budget.MaxBytes, "best", len(best))
	return nil, &BudgetUnattainable{MaxBytes: e.Budget.MaxBytes, Best: best, Attempts: attempts}
}

// ApplyStep merges near-duplicate frames and drops frames as the step asks.
// Durations of dropped frames are added to the frame kept before them so the
// total playback time never changes.
func ApplyStep(a *Animation, step Step) *Animation {
	frames := a.Frames
	if step.MergeDuplicates {
		frames = mergeDuplicates(frames)
	}
	if step.Skip > 1 {
		frames = skipFrames(frames, step.Skip)
	}
	return a.withFrames(frames)
}

func mergeDuplicates(frames []Frame) []Frame {
	if len(frames) == 0 {
		return nil
	}
	out := []Frame{frames[0]}
	for _, f := range frames[1:] {
		last := &out[len(out)-1]
		if nearlyEqual(last.Image, f.Image, mergeTolerance) {
			last.Duration += f.Duration
			continue
		}
		out = append(out, f)
	}
	return out
}

func skipFrames(frames []Frame, k int) []Frame {
	out := make([]Frame, 0, (len(frames)+k-1)/k)
	for i := 0; i < len(frames); i += k {
		f := frames[i]
		for j := i + 1; j < i+k && j < len(frames); j++ {
			f.Duration += frames[j].Duration
		}
		out = append(out, f)
	}
	return out
}

func nearlyEqual(a, b *image.NRGBA, tol int) bool {
	if a.Bounds().Size() != b.Bounds().Size() {
		return false
	}
	pa, pb := imagePix(a), imagePix(b)
	for i := range pa {
		if utils.Abs(int(pa[i])-int(pb[i])) > tol {
			return false
		}
	}
	return true
}

// EncodeGIF encodes a with a single global palette built for step.
func EncodeGIF(a *Animation, step Step, threshold uint8) ([]byte, error) {
	return encodeGIF(a, step, threshold, 1)
}

func encodeGIF(a *Animation, step Step, threshold uint8, workers int) ([]byte, error) {
	images := make([]*image.NRGBA, len(a.Frames))
	for i, f := range a.Frames {
		images[i] = f.Image
	}
	palette := BuildPalette(images, step.Colors, threshold)

	size := a.Size()
	g := &gif.GIF{
		Image:     make([]*image.Paletted, len(a.Frames)),
		Delay:     make([]int, len(a.Frames)),
		Disposal:  make([]byte, len(a.Frames)),
		LoopCount: gifLoopCount(a.LoopCount),
		// A global color table lets every frame skip its local one.
		Config: image.Config{
			ColorModel: palette,
			Width:      size.X,
			Height:     size.Y,
		},
		BackgroundIndex: byte(len(palette) - 1),
	}
	err := forEachFrame(len(a.Frames), workers, func(i int) error {
		g.Image[i] = Paletted(images[i], palette, threshold, step.Dither)
		g.Delay[i] = centiseconds(a.Frames[i].Duration)
		g.Disposal[i] = gif.DisposalBackground
		return nil
	})
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, g); err != nil {
		return nil, errors.Wrap(err, "encode gif")
	}
	return buf.Bytes(), nil
}

// centiseconds rounds a millisecond duration to the GIF delay unit.
func centiseconds(ms int) int {
	return (ms + 5) / 10
}

// gifLoopCount converts a play count (0 = forever) to the GIF convention where
// the value is the number of repeats after the first play and -1 plays once.
func gifLoopCount(plays int) int {
	switch {
	case plays <= 0:
		return 0
	case plays == 1:
		return -1
	default:
		return plays - 1
	}
}

// playsFromGIF is the inverse of gifLoopCount.
func playsFromGIF(loop int) int {
	switch {
	case loop == 0:
		return 0
	case loop < 0:
		return 1
	default:
		return loop + 1
	}
}
