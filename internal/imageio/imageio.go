// Package imageio loads source images and prepares them for the keypoint
// detector.
package imageio

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	"image/png"
	"io/fs"
	"os"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"  // register decoder
	_ "golang.org/x/image/tiff" // register decoder
	_ "golang.org/x/image/webp" // register decoder
)

// ErrInputNotFound is returned when the source image path does not exist.
var ErrInputNotFound = errors.New("input not found")

// LoadImage decodes the image at path. A missing file yields an error that
// matches both ErrInputNotFound and fs.ErrNotExist.
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: image %q: %w", ErrInputNotFound, path, err)
		}
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %q: %w", path, err)
	}
	diagf("decoded %s (%s, %dx%d)", path, format, img.Bounds().Dx(), img.Bounds().Dy())
	return img, nil
}

// CheckExists fails with ErrInputNotFound when path is missing or is a
// directory. The CLI calls it before doing any work.
func CheckExists(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: image %q: %w", ErrInputNotFound, path, err)
		}
		return fmt.Errorf("failed to stat image: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %q is a directory", ErrInputNotFound, path)
	}
	return nil
}

// DefaultInputSize is the OpenPose network input height, used as the
// longest side of a prepared frame.
const DefaultInputSize = 368

// Prepared is a detector-ready frame plus the factors that map its pixel
// coordinates back onto the source image.
type Prepared struct {
	Image *image.RGBA
	// ToSourceX and ToSourceY multiply detector-space coordinates into
	// source pixels. They differ slightly when a side was rounded.
	ToSourceX, ToSourceY float64
}

// Preprocess converts img to RGBA and resizes it so its longest side is
// size pixels, preserving aspect ratio. size <= 0 keeps the source size.
// The output depends only on the input pixels and size.
func Preprocess(img image.Image, size int) Prepared {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	longest := max(w, h)

	scale := 1.0
	if size > 0 && longest > 0 {
		scale = float64(size) / float64(longest)
	}
	dw := max(1, int(float64(w)*scale+0.5))
	dh := max(1, int(float64(h)*scale+0.5))
	if longest == 0 {
		dw, dh = 1, 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	if scale == 1 && dw == w && dh == h {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	}

	sx, sy := 1.0, 1.0
	if w > 0 && h > 0 {
		sx = float64(w) / float64(dw)
		sy = float64(h) / float64(dh)
	}
	tracef("preprocess %dx%d -> %dx%d (to-source %.4f x %.4f)", w, h, dw, dh, sx, sy)
	return Prepared{Image: dst, ToSourceX: sx, ToSourceY: sy}
}

// WritePNG encodes img as PNG at path.
func WritePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode png: %w", err)
	}
	return f.Close()
}
