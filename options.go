package emoteline

import (
	"image/color"
	"runtime"
	"sort"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
)

// TracePolicy selects how many times the tracer runs per animation.
type TracePolicy int

const (
	// TracePerFrame traces every frame's own silhouette.
	TracePerFrame TracePolicy = iota
	// TraceOnce traces the union of all silhouettes and draws that single
	// outline under every frame.
	TraceOnce
)

func (p TracePolicy) String() string {
	if p == TraceOnce {
		return "once"
	}
	return "per-frame"
}

// ParseTracePolicy accepts "per-frame" or "once".
func ParseTracePolicy(s string) (TracePolicy, error) {
	switch strings.ToLower(s) {
	case "", "per-frame", "perframe", "frame":
		return TracePerFrame, nil
	case "once", "merged":
		return TraceOnce, nil
	}
	return 0, errors.Errorf("unknown trace policy %q", s)
}

// Format is the output container.
type Format int

const (
	// FormatGIF enforces the byte budget.
	FormatGIF Format = iota
	// FormatAPNG is lossless and ignores the byte budget.
	FormatAPNG
)

func (f Format) String() string {
	if f == FormatAPNG {
		return "apng"
	}
	return "gif"
}

// Options configures a Pipeline.
type Options struct {
	// Size is the square output size in pixels.
	Size int
	// StrokeWidth is the outline width in pixels at full resolution.
	StrokeWidth float64
	// StrokeColor is the outline color. Alpha is ignored.
	StrokeColor color.NRGBA
	// Padding is the transparent margin added around every frame before
	// tracing so the stroke is never clipped.
	Padding int
	// MaxBytes is the GIF size ceiling. Zero disables it.
	MaxBytes int
	// AlphaThreshold separates foreground from background.
	AlphaThreshold uint8
	// MinResolution rejects inputs smaller than this on either side.
	MinResolution int
	TracePolicy   TracePolicy
	// CropPadding removes the padding again after compositing.
	CropPadding bool
	// Preserve keeps the work directory with its intermediates.
	Preserve bool
	// WorkDir is the parent of the per-run work directory. Empty means the
	// system temporary directory.
	WorkDir string
	// Workers bounds the per-stage worker pool. Zero uses every CPU.
	Workers     int
	SkipOutline bool
	SkipResize  bool
	Format      Format
}

// DefaultOptions returns the settings of the "default" preset: a white 6px
// outline, 1000px output and a 10MB ceiling.
func DefaultOptions() Options {
	return Options{
		Size:           1000,
		StrokeWidth:    6,
		StrokeColor:    color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff},
		Padding:        80,
		MaxBytes:       10 * MB,
		AlphaThreshold: 10,
		MinResolution:  0,
		TracePolicy:    TracePerFrame,
		Workers:        runtime.NumCPU(),
		Format:         FormatGIF,
	}
}

// Validate reports the first invalid setting.
func (o Options) Validate() error {
	switch {
	case o.Size <= 0 && !o.SkipResize:
		return errors.Errorf("size must be positive, got %d", o.Size)
	case o.StrokeWidth < 0:
		return errors.Errorf("stroke width must not be negative, got %g", o.StrokeWidth)
	case o.Padding < 0:
		return errors.Errorf("padding must not be negative, got %d", o.Padding)
	case o.MaxBytes < 0:
		return errors.Errorf("max bytes must not be negative, got %d", o.MaxBytes)
	case o.MinResolution < 0:
		return errors.Errorf("min resolution must not be negative, got %d", o.MinResolution)
	case o.Workers < 0:
		return errors.Errorf("workers must not be negative, got %d", o.Workers)
	case o.TracePolicy != TracePerFrame && o.TracePolicy != TraceOnce:
		return errors.Errorf("unknown trace policy %d", o.TracePolicy)
	case o.Format != FormatGIF && o.Format != FormatAPNG:
		return errors.Errorf("unknown output format %d", o.Format)
	}
	return nil
}

// Stroke returns the stroke described by the options.
func (o Options) Stroke() Stroke {
	c := o.StrokeColor
	c.A = 0xff
	return Stroke{Width: o.StrokeWidth, Color: c}
}

// Budget returns the encoder budget described by the options.
func (o Options) Budget() Budget {
	return Budget{
		MaxBytes:       o.MaxBytes,
		AlphaThreshold: o.AlphaThreshold,
		MinResolution:  o.MinResolution,
	}
}

// Preset is a named target platform.
type Preset struct {
	Name     string
	Size     int
	MaxBytes int
}

// Presets lists the known targets by name.
var Presets = map[string]Preset{
	"discord": {Name: "discord", Size: 512, MaxBytes: MB / 4},
	"twitch":  {Name: "twitch", Size: 112, MaxBytes: MB},
	"slack":   {Name: "slack", Size: 128, MaxBytes: MB / 8},
	"default": {Name: "default", Size: 1000, MaxBytes: 10 * MB},
}

// PresetNames returns the preset names in alphabetical order.
func PresetNames() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Apply copies the preset targets onto o. The minimum resolution follows the
// target size.
func (p Preset) Apply(o *Options) {
	o.Size = p.Size
	o.MaxBytes = p.MaxBytes
	o.MinResolution = p.Size
}

// LookupPreset returns the named preset.
func LookupPreset(name string) (Preset, error) {
	p, ok := Presets[strings.ToLower(name)]
	if !ok {
		return Preset{}, errors.Errorf("unknown preset %q (available: %s)", name, strings.Join(PresetNames(), ", "))
	}
	return p, nil
}

// ParseColor parses a hex color such as "FFFFFF", "#ff0000" or "f00".
func ParseColor(s string) (color.NRGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	c, err := colorful.Hex("#" + s)
	if err != nil {
		return color.NRGBA{}, errors.Wrapf(err, "invalid color %q", s)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 0xff}, nil
}
