package keypoints

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/banshee-data/posemap/internal/body25"
	"github.com/banshee-data/posemap/internal/imageio"
)

// Space names the pixel grid a detection's coordinates refer to.
type Space int

const (
	// SpaceSource coordinates are source-image pixels.
	SpaceSource Space = iota
	// SpaceDetector coordinates are pixels of the preprocessed frame.
	SpaceDetector
)

// Detection is the result of running a source on one frame.
type Detection struct {
	Pose  body25.Pose
	Space Space
	// People is how many people the detector reported; only one is kept.
	People int
}

// Found reports whether a person was detected.
func (d Detection) Found() bool { return d.Pose.Detected() }

// InSource returns the pose in source-image pixels.
func (d Detection) InSource(frame imageio.Prepared) body25.Pose {
	if d.Space == SpaceDetector && frame.ToSourceX != 0 && frame.ToSourceY != 0 {
		return d.Pose.ScaledXY(frame.ToSourceX, frame.ToSourceY)
	}
	return d.Pose
}

// Source extracts one BODY25 detection from a prepared frame. A frame
// without a person is not an error: Detection.Found reports false.
type Source interface {
	Extract(ctx context.Context, frame imageio.Prepared) (Detection, error)
}

// ErrNoKeypoints is returned when a keypoint file is missing.
var ErrNoKeypoints = errors.New("keypoints file not found")

// SidecarPath returns the OpenPose output name for an image:
// photo.jpg -> photo_keypoints.json.
func SidecarPath(imagePath string) string {
	ext := filepath.Ext(imagePath)
	return strings.TrimSuffix(imagePath, ext) + "_keypoints.json"
}

// JSONSource reads a precomputed OpenPose JSON file. Its coordinates are
// in source-image pixels.
type JSONSource struct {
	Path string
}

// Extract implements Source. The frame is not read.
func (s JSONSource) Extract(ctx context.Context, _ imageio.Prepared) (Detection, error) {
	if err := ctx.Err(); err != nil {
		return Detection{}, err
	}
	f, err := os.Open(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Detection{}, fmt.Errorf("%w: %s", ErrNoKeypoints, s.Path)
		}
		return Detection{}, fmt.Errorf("failed to open keypoints file: %w", err)
	}
	defer f.Close()

	pose, people, err := ParseOpenPose(f)
	if err != nil {
		return Detection{}, fmt.Errorf("%s: %w", s.Path, err)
	}
	if people > 1 {
		diagf("%s: %d people detected, keeping the most confident", s.Path, people)
	}
	return Detection{Pose: pose, Space: SpaceSource, People: people}, nil
}

// DefaultDetectorTimeout bounds one CommandSource run when no timeout is
// configured.
const DefaultDetectorTimeout = 30 * time.Second

// ImagePlaceholder is replaced with the frame path in CommandSource.Argv.
const ImagePlaceholder = "{image}"

// CommandSource runs an external detector on each frame. The frame is
// written to a temporary PNG, ImagePlaceholder in Argv is replaced with its
// path, and the command must print OpenPose JSON on stdout.
type CommandSource struct {
	Argv    []string
	Timeout time.Duration
	// TempDir holds the frame files; empty uses os.TempDir.
	TempDir string
}

// ParseCommand splits a detector command line on whitespace.
func ParseCommand(cmdline string) []string {
	return strings.Fields(cmdline)
}

// Extract implements Source.
func (s CommandSource) Extract(ctx context.Context, frame imageio.Prepared) (Detection, error) {
	if len(s.Argv) == 0 {
		return Detection{}, errors.New("detector command is empty")
	}
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	tmp, err := os.CreateTemp(s.TempDir, "posemap-frame-*.png")
	if err != nil {
		return Detection{}, fmt.Errorf("failed to create frame file: %w", err)
	}
	framePath := tmp.Name()
	tmp.Close()
	defer os.Remove(framePath)

	if err := imageio.WritePNG(framePath, frame.Image); err != nil {
		return Detection{}, err
	}

	args := make([]string, len(s.Argv))
	for i, a := range s.Argv {
		args[i] = strings.ReplaceAll(a, ImagePlaceholder, framePath)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Bound the wait for pipes held open by grandchildren after a kill.
	cmd.WaitDelay = time.Second

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return Detection{}, fmt.Errorf("detector %s: %w", args[0], ctx.Err())
		}
		opsf("detector %s failed: %v: %s", args[0], err, strings.TrimSpace(stderr.String()))
		return Detection{}, fmt.Errorf("detector %s failed: %w", args[0], err)
	}
	tracef("detector %s finished in %s", args[0], time.Since(start))

	pose, people, err := ParseOpenPose(&stdout)
	if err != nil {
		return Detection{}, fmt.Errorf("detector %s: %w", args[0], err)
	}
	return Detection{Pose: pose, Space: SpaceDetector, People: people}, nil
}

// StaticSource returns the same detection for every frame.
type StaticSource struct {
	Detection Detection
	Err       error
}

// Extract implements Source.
func (s StaticSource) Extract(ctx context.Context, _ imageio.Prepared) (Detection, error) {
	if err := ctx.Err(); err != nil {
		return Detection{}, err
	}
	return s.Detection, s.Err
}
