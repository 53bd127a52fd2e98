package emoteline

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"golang.org/x/image/bmp"
)

// workDir stores the per-run intermediates: silhouette masks, outline SVGs and
// stroke layers. A nil *workDir discards everything.
type workDir struct {
	path     string
	preserve bool
}

// newWorkDir creates a fresh directory under parent (or the system temporary
// directory when parent is empty).
func newWorkDir(parent string, preserve bool) (*workDir, error) {
	if parent != "" {
		if err := os.MkdirAll(parent, 0755); err != nil {
			return nil, errors.Wrap(err, "create work dir parent")
		}
	}
	path, err := os.MkdirTemp(parent, "emoteline-")
	if err != nil {
		return nil, errors.Wrap(err, "create work dir")
	}
	for _, sub := range []string{"masks", "outlines", "strokes"} {
		if err := os.Mkdir(filepath.Join(path, sub), 0755); err != nil {
			os.RemoveAll(path)
			return nil, errors.Wrap(err, "create work dir")
		}
	}
	return &workDir{path: path, preserve: preserve}, nil
}

// Path returns the directory, or "" for a nil work dir.
func (w *workDir) Path() string {
	if w == nil {
		return ""
	}
	return w.path
}

// Close removes the directory unless it is preserved.
func (w *workDir) Close() error {
	if w == nil || w.preserve {
		return nil
	}
	return os.RemoveAll(w.path)
}

func (w *workDir) file(sub string, frame int, ext string) (*os.File, error) {
	name := filepath.Join(w.path, sub, fmt.Sprintf("frame_%04d.%s", frame, ext))
	return os.Create(name)
}

func (w *workDir) saveMask(frame int, m *Mask) error {
	if w == nil {
		return nil
	}
	f, err := w.file("masks", frame, "bmp")
	if err != nil {
		return err
	}
	defer f.Close()
	return bmp.Encode(f, m.Gray)
}

func (w *workDir) saveOutline(frame int, o *Outline, s Stroke) error {
	if w == nil {
		return nil
	}
	f, err := w.file("outlines", frame, "svg")
	if err != nil {
		return err
	}
	defer f.Close()
	WriteOutlineSVG(f, o, s)
	return nil
}

func (w *workDir) saveStroke(frame int, img image.Image) error {
	if w == nil {
		return nil
	}
	f, err := w.file("strokes", frame, "png")
	if err != nil {
		return err
	}
	defer f.Close()
	return imaging.Encode(f, img, imaging.PNG)
}
