package emoteline

import (
	"fmt"
	"image"

	"github.com/pkg/errors"
)

// ErrBelowMinResolution is wrapped by the InputError returned when an animation
// is smaller than the configured minimum resolution.
var ErrBelowMinResolution = errors.New("input below minimum resolution")

// ErrEmptyAnimation is reported when an animation carries no frames.
var ErrEmptyAnimation = errors.New("animation contains no frames")

// InputError reports an unreadable, corrupt or too small input.
type InputError struct {
	Op  string
	Err error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("input error: %s: %v", e.Op, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

// ExternalToolError reports a tracer or rasterizer that is unavailable or
// returned an unusable result.
type ExternalToolError struct {
	Tool  string
	Frame int
	Err   error
}

func (e *ExternalToolError) Error() string {
	if e.Frame >= 0 {
		return fmt.Sprintf("%s failed on frame %d: %v", e.Tool, e.Frame, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Tool, e.Err)
}

func (e *ExternalToolError) Unwrap() error { return e.Err }

// CoordinateMismatchError is returned when a rendered layer does not share the
// dimensions of the frame it is composited onto.
type CoordinateMismatchError struct {
	Frame int
	Want  image.Point
	Got   image.Point
}

func (e *CoordinateMismatchError) Error() string {
	return fmt.Sprintf("coordinate mismatch on frame %d: layer is %dx%d, frame is %dx%d",
		e.Frame, e.Got.X, e.Got.Y, e.Want.X, e.Want.Y)
}

// BudgetUnattainable is returned when every degradation step was tried and none
// fit the byte ceiling. Best holds the smallest artifact produced so a caller
// may still decide to keep it.
type BudgetUnattainable struct {
	MaxBytes int
	Best     []byte
	Attempts []Attempt
}

func (e *BudgetUnattainable) Error() string {
	return fmt.Sprintf("no encoding fits %d bytes after %d attempts (smallest was %d bytes)",
		e.MaxBytes, len(e.Attempts), len(e.Best))
}

// BestSize returns the byte size of the smallest artifact produced.
func (e *BudgetUnattainable) BestSize() int { return len(e.Best) }

func inputErr(op string, err error) error {
	return &InputError{Op: op, Err: err}
}
