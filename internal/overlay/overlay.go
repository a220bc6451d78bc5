// Package overlay draws a detected BODY25 skeleton over its source image.
package overlay

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/posemap/internal/body25"
)

// ErrNoPose is returned when asked to draw a frame without a detection.
var ErrNoPose = errors.New("overlay: no pose to draw")

// Style controls how the skeleton is drawn.
type Style struct {
	LimbColor  color.Color
	JointColor color.Color
	LimbWidth  vg.Length
	JointSize  vg.Length
	// Keypoints below MinConfidence are not drawn, nor are limbs touching them.
	MinConfidence float64
	// DPI of the saved raster; one image pixel per output pixel at 96.
	DPI float64
}

// DefaultStyle matches the usual OpenPose rendering: green limbs, red joints.
func DefaultStyle() Style {
	return Style{
		LimbColor:     color.RGBA{G: 220, A: 255},
		JointColor:    color.RGBA{R: 230, A: 255},
		LimbWidth:     vg.Points(2),
		JointSize:     vg.Points(3),
		MinConfidence: 0.2,
		DPI:           96,
	}
}

// supportedExt is what plot.Save can encode.
var supportedExt = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".tif": true, ".tiff": true,
	".svg": true, ".pdf": true, ".eps": true,
}

// CheckFormat reports whether dest has an extension the overlay can be
// saved as.
func CheckFormat(dest string) error {
	ext := strings.ToLower(filepath.Ext(dest))
	if !supportedExt[ext] {
		return fmt.Errorf("unsupported overlay format %q", ext)
	}
	return nil
}

// Plot builds the overlay plot. Image y grows downward, the plot's upward,
// so keypoints are placed at (x, height-y).
func Plot(img image.Image, pose body25.Pose, style Style) (*plot.Plot, error) {
	if !pose.Detected() {
		return nil, ErrNoPose
	}
	b := img.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())

	p := plot.New()
	p.HideAxes()
	p.X.Min, p.X.Max = 0, w
	p.Y.Min, p.Y.Max = 0, h
	p.X.Padding, p.Y.Padding = 0, 0
	p.Add(plotter.NewImage(img, 0, 0, w, h))

	visible := func(k body25.Keypoint) bool {
		return k.Finite() && k.Confidence >= style.MinConfidence
	}
	toPlot := func(k body25.Keypoint) plotter.XY {
		return plotter.XY{X: k.X, Y: h - k.Y}
	}

	limbs := 0
	for _, limb := range body25.Limbs {
		a, c := pose.At(limb[0]), pose.At(limb[1])
		if !visible(a) || !visible(c) {
			continue
		}
		line, err := plotter.NewLine(plotter.XYs{toPlot(a), toPlot(c)})
		if err != nil {
			return nil, fmt.Errorf("failed to build limb %s-%s: %w",
				body25.Name(limb[0]), body25.Name(limb[1]), err)
		}
		line.Color = style.LimbColor
		line.Width = style.LimbWidth
		p.Add(line)
		limbs++
	}

	joints := make(plotter.XYs, 0, body25.NumKeypoints)
	for _, k := range pose.Keypoints() {
		if visible(k) {
			joints = append(joints, toPlot(k))
		}
	}
	if len(joints) > 0 {
		scatter, err := plotter.NewScatter(joints)
		if err != nil {
			return nil, fmt.Errorf("failed to build joints: %w", err)
		}
		scatter.GlyphStyle = draw.GlyphStyle{
			Color:  style.JointColor,
			Radius: style.JointSize,
			Shape:  draw.CircleGlyph{},
		}
		p.Add(scatter)
	}
	tracef("overlay: %d limbs, %d joints", limbs, len(joints))
	return p, nil
}

// DrawSkeleton renders the skeleton over img and saves it to dest; the
// format follows the extension. An empty dest renders to a temporary PNG
// and opens it in the platform image viewer. Returns the written path.
func DrawSkeleton(img image.Image, pose body25.Pose, dest string) (string, error) {
	return DrawSkeletonStyle(img, pose, dest, DefaultStyle())
}

// DrawSkeletonStyle is DrawSkeleton with an explicit style.
func DrawSkeletonStyle(img image.Image, pose body25.Pose, dest string, style Style) (string, error) {
	show := dest == ""
	if show {
		f, err := os.CreateTemp("", "posemap-overlay-*.png")
		if err != nil {
			return "", fmt.Errorf("failed to create overlay file: %w", err)
		}
		dest = f.Name()
		f.Close()
	}
	if err := CheckFormat(dest); err != nil {
		return "", err
	}

	p, err := Plot(img, pose, style)
	if err != nil {
		return "", err
	}

	dpi := style.DPI
	if dpi <= 0 {
		dpi = 96
	}
	b := img.Bounds()
	width := vg.Length(float64(b.Dx())/dpi) * vg.Inch
	height := vg.Length(float64(b.Dy())/dpi) * vg.Inch
	if err := p.Save(width, height, dest); err != nil {
		return "", fmt.Errorf("failed to save overlay %s: %w", dest, err)
	}
	diagf("overlay written to %s", dest)

	if show {
		if err := openViewer(dest); err != nil {
			opsf("failed to open viewer for %s: %v", dest, err)
			return dest, err
		}
	}
	return dest, nil
}

// openViewer launches the platform viewer without waiting for it.
var openViewer = func(path string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", path)
	default:
		cmd = exec.Command("xdg-open", path)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to launch viewer: %w", err)
	}
	go cmd.Wait()
	return nil
}
