package emoteline

import (
	"bufio"
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/kettek/apng"
	"github.com/pkg/errors"
	ffmpeg "github.com/u2takey/ffmpeg-go"
	"golang.org/x/image/webp"
)

// DefaultVideoFPS is the sampling rate used when importing video clips. It
// matches DefaultFrameDuration.
const DefaultVideoFPS = 1000 / DefaultFrameDuration

var (
	pngSignature = []byte("\x89PNG\r\n\x1a\n")
	pngTrailer   = []byte("\x00\x00\x00\x00IEND\xaeB`\x82")
)

// videoExtensions are handed to ffmpeg instead of the image decoders.
var videoExtensions = []string{".mp4", ".webm", ".mov", ".mkv", ".avi"}

// IsVideo reports whether path looks like a video clip.
func IsVideo(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range videoExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// DecodeFile decodes the animation stored at path. Video clips go through
// ffmpeg, everything else through Decode.
func DecodeFile(path string) (*Animation, error) {
	if IsVideo(path) {
		return DecodeVideo(path, DefaultVideoFPS)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, inputErr("open", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads an animated GIF, an APNG, a static PNG or a static WebP. Every
// frame is normalized to a full-canvas NRGBA image; partial frames are
// composed according to their dispose and blend operations.
func Decode(r io.Reader) (*Animation, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(12)
	if err != nil && len(head) == 0 {
		return nil, inputErr("decode", errors.Wrap(err, "read header"))
	}

	var a *Animation
	switch {
	case bytes.HasPrefix(head, []byte("GIF8")):
		a, err = decodeGIF(br)
	case bytes.HasPrefix(head, pngSignature):
		a, err = decodeAPNG(br)
	case len(head) >= 12 && string(head[:4]) == "RIFF" && string(head[8:12]) == "WEBP":
		a, err = decodeWebP(br)
	default:
		return nil, inputErr("decode", errors.New("unsupported image format"))
	}
	if err != nil {
		return nil, inputErr("decode", err)
	}
	if err := a.Validate(); err != nil {
		return nil, inputErr("decode", err)
	}
	return a, nil
}

func decodeGIF(r io.Reader) (*Animation, error) {
	g, err := gif.DecodeAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "gif")
	}
	if len(g.Image) == 0 {
		return nil, ErrEmptyAnimation
	}

	canvasRect := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	if canvasRect.Empty() {
		canvasRect = g.Image[0].Bounds()
	}
	canvas := image.NewNRGBA(canvasRect)
	a := &Animation{LoopCount: playsFromGIF(g.LoopCount)}

	for i, frame := range g.Image {
		var disposal byte
		if i < len(g.Disposal) {
			disposal = g.Disposal[i]
		}
		var previous *image.NRGBA
		if disposal == gif.DisposalPrevious {
			previous = imaging.Clone(canvas)
		}

		draw.Draw(canvas, frame.Bounds(), frame, frame.Bounds().Min, draw.Over)

		duration := DefaultFrameDuration
		if i < len(g.Delay) && g.Delay[i] > 0 {
			duration = g.Delay[i] * 10
		}
		a.Frames = append(a.Frames, Frame{Image: imaging.Clone(canvas), Duration: duration})

		switch disposal {
		case gif.DisposalBackground:
			draw.Draw(canvas, frame.Bounds(), image.Transparent, image.Point{}, draw.Src)
		case gif.DisposalPrevious:
			canvas = previous
		}
	}
	return a, nil
}

func decodeAPNG(r io.Reader) (*Animation, error) {
	anim, err := apng.DecodeAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "png")
	}
	frames := anim.Frames
	// A default image without frame control is not part of the animation.
	if len(frames) > 1 && frames[0].IsDefault {
		frames = frames[1:]
	}
	if len(frames) == 0 {
		return nil, ErrEmptyAnimation
	}

	first := frames[0].Image.Bounds()
	canvas := image.NewNRGBA(image.Rect(0, 0, first.Dx()+frames[0].XOffset, first.Dy()+frames[0].YOffset))
	a := &Animation{LoopCount: int(anim.LoopCount)}

	for _, f := range frames {
		b := f.Image.Bounds()
		region := image.Rect(f.XOffset, f.YOffset, f.XOffset+b.Dx(), f.YOffset+b.Dy())

		var previous *image.NRGBA
		if f.DisposeOp == apng.DISPOSE_OP_PREVIOUS {
			previous = imaging.Clone(canvas)
		}

		op := draw.Over
		if f.BlendOp == apng.BLEND_OP_SOURCE {
			op = draw.Src
		}
		draw.Draw(canvas, region, f.Image, b.Min, op)
		a.Frames = append(a.Frames, Frame{Image: imaging.Clone(canvas), Duration: apngDelay(f)})

		switch f.DisposeOp {
		case apng.DISPOSE_OP_BACKGROUND:
			draw.Draw(canvas, region, image.Transparent, image.Point{}, draw.Src)
		case apng.DISPOSE_OP_PREVIOUS:
			canvas = previous
		}
	}
	return a, nil
}

// apngDelay converts a frame delay fraction to milliseconds. A zero
// denominator means hundredths of a second.
func apngDelay(f apng.Frame) int {
	if f.DelayNumerator == 0 {
		return DefaultFrameDuration
	}
	den := float64(f.DelayDenominator)
	if den == 0 {
		den = 100
	}
	return int(math.Round(float64(f.DelayNumerator) * 1000 / den))
}

func decodeWebP(r io.Reader) (*Animation, error) {
	img, err := webp.Decode(r)
	if err != nil {
		return nil, errors.Wrap(err, "webp")
	}
	return &Animation{Frames: []Frame{{Image: imaging.Clone(img), Duration: DefaultFrameDuration}}}, nil
}

// DecodeVideo samples a video clip at fps frames per second through ffmpeg.
// The ffmpeg binary must be on PATH.
func DecodeVideo(path string, fps int) (*Animation, error) {
	if fps <= 0 {
		fps = DefaultVideoFPS
	}
	var out, stderr bytes.Buffer
	err := ffmpeg.Input(path).
		Output("pipe:1", ffmpeg.KwArgs{
			"format": "image2pipe",
			"vcodec": "png",
			"r":      fmt.Sprint(fps),
		}).
		WithOutput(&out).
		WithErrorOutput(&stderr).
		Run()
	if err != nil {
		return nil, &ExternalToolError{Tool: "ffmpeg", Frame: -1,
			Err: errors.Wrap(err, strings.TrimSpace(lastLine(stderr.String())))}
	}

	duration := int(math.Round(1000 / float64(fps)))
	a := &Animation{}
	for i, chunk := range splitPNGStream(out.Bytes()) {
		img, err := imaging.Decode(bytes.NewReader(chunk))
		if err != nil {
			return nil, inputErr("decode video", errors.Wrapf(err, "frame %d", i))
		}
		a.Frames = append(a.Frames, Frame{Image: imaging.Clone(img), Duration: duration})
	}
	if err := a.Validate(); err != nil {
		return nil, inputErr("decode video", err)
	}
	return a, nil
}

// splitPNGStream cuts a concatenation of PNG files at their IEND chunks.
func splitPNGStream(data []byte) [][]byte {
	var chunks [][]byte
	for len(data) > 0 {
		i := bytes.Index(data, pngTrailer)
		if i < 0 {
			break
		}
		end := i + len(pngTrailer)
		chunks = append(chunks, data[:end])
		data = data[end:]
	}
	return chunks
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// EncodeAPNG writes a as a lossless animated PNG. Durations are stored in
// milliseconds and the loop count is kept.
func EncodeAPNG(w io.Writer, a *Animation) error {
	if err := a.Validate(); err != nil {
		return inputErr("encode", err)
	}
	out := apng.APNG{LoopCount: uint(max(a.LoopCount, 0))}
	for _, f := range a.Frames {
		out.Frames = append(out.Frames, apng.Frame{
			Image:            f.Image,
			DelayNumerator:   uint16(min(f.Duration, math.MaxUint16)),
			DelayDenominator: 1000,
			BlendOp:          apng.BLEND_OP_SOURCE,
		})
	}
	if err := apng.Encode(w, out); err != nil {
		return errors.Wrap(err, "encode apng")
	}
	return nil
}

// Encode writes a in the given format. GIF output is encoded at full quality
// without a byte ceiling; use BudgetedEncoder to enforce one.
func Encode(w io.Writer, a *Animation, format Format, threshold uint8) error {
	if format == FormatAPNG {
		return EncodeAPNG(w, a)
	}
	data, err := EncodeGIF(a, Ladder(len(a.Frames))[0], threshold)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// FormatFromPath picks the output format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gif":
		return FormatGIF, nil
	case ".png", ".apng":
		return FormatAPNG, nil
	}
	return 0, errors.Errorf("unsupported output extension %q", filepath.Ext(path))
}
