package detect

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// Preparer downscales oversized assets before they are handed to the detector.
// The detector resizes to its own input size anyway; sending it a smaller copy
// keeps decode time and memory of the child process bounded.
type Preparer struct {
	// MaxDimension is the largest width or height passed through unchanged.
	MaxDimension int
	// TempDir holds downscaled copies. Empty means os.TempDir().
	TempDir string
}

// NewPreparer creates a preparer, or nil when maxDimension disables it
func NewPreparer(maxDimension int, tempDir string) *Preparer {
	if maxDimension <= 0 {
		return nil
	}
	return &Preparer{MaxDimension: maxDimension, TempDir: tempDir}
}

// Prepare returns the path the detector should read and a cleanup func that
// removes any temporary copy. The original path is returned when the image is
// already small enough.
func (p *Preparer) Prepare(path string) (string, func(), error) {
	noop := func() {}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return path, noop, fmt.Errorf("image decode failed: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() <= p.MaxDimension && bounds.Dy() <= p.MaxDimension {
		return path, noop, nil
	}

	ext := strings.ToLower(filepath.Ext(path))
	if _, err := imaging.FormatFromExtension(ext); err != nil {
		ext = ".png"
	}

	tmp, err := os.CreateTemp(p.TempDir, "asset-*"+ext)
	if err != nil {
		return path, noop, fmt.Errorf("temp file create failed: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	cleanup := func() { os.Remove(tmpPath) }

	resized := imaging.Fit(img, p.MaxDimension, p.MaxDimension, imaging.Lanczos)
	if err := imaging.Save(resized, tmpPath, imaging.JPEGQuality(90)); err != nil {
		cleanup()
		return path, noop, fmt.Errorf("image encode failed: %w", err)
	}

	return tmpPath, cleanup, nil
}
