// Package pipeline runs the image → keypoints → joint vector flow for a
// batch of images and fans the results out to the configured sinks.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/posemap/internal/body25"
	"github.com/banshee-data/posemap/internal/controller"
	"github.com/banshee-data/posemap/internal/db"
	"github.com/banshee-data/posemap/internal/humanoid"
	"github.com/banshee-data/posemap/internal/imageio"
	"github.com/banshee-data/posemap/internal/keypoints"
	"github.com/banshee-data/posemap/internal/overlay"
	"github.com/banshee-data/posemap/internal/posemap"
	"github.com/banshee-data/posemap/internal/report"
)

// User-facing result lines.
const (
	MsgNoPose   = "No pose detected in the provided image."
	MsgDetected = "Pose detected! Humanoid joint vector (17 values):"
	MsgFailed   = "Could not process the image:"
)

// Options configures a Run. Only Images is required.
type Options struct {
	Images []string

	// Out is the overlay destination; empty or blank disables saving. With
	// more than one image the 1-based index is appended to the base name.
	Out string
	// Show renders each overlay to a temporary file and opens a viewer.
	Show bool

	// KeypointsPath is an OpenPose JSON file for a single image. When empty
	// each image's sidecar (<base>_keypoints.json) is read.
	KeypointsPath string
	// DetectorCmd runs an external detector instead of reading JSON files.
	DetectorCmd []string
	// DetectorTimeout defaults to keypoints.DefaultDetectorTimeout.
	DetectorTimeout time.Duration
	// Source overrides KeypointsPath and DetectorCmd.
	Source keypoints.Source

	// InputSize defaults to imageio.DefaultInputSize.
	InputSize int
	// Mapper defaults to posemap.Default().
	Mapper *posemap.Mapper

	// Optional sinks.
	DB         *db.DB
	RunConfig  any
	ReportPath string
	Controller *controller.Controller

	// Workers bounds concurrent image processing; <= 0 means 1.
	Workers int
}

// Item is the outcome for one image.
type Item struct {
	Image  string
	Pose   body25.Pose
	Result posemap.Result
	// Overlay is the saved overlay path, if one was written.
	Overlay string
	// OverlayErr is set when the result is valid but its overlay could not
	// be written.
	OverlayErr error
	// Err is set when the image could not be processed. Pose and Result
	// are then unset.
	Err error
}

// Summary is the outcome of a Run.
type Summary struct {
	Items []Item
	// RunID is set when results were stored.
	RunID string
}

// Mapped counts the items with a detected pose.
func (s Summary) Mapped() int {
	n := 0
	for _, it := range s.Items {
		if it.Err == nil && it.Result.Ok() {
			n++
		}
	}
	return n
}

// Failed counts the items that could not be processed.
func (s Summary) Failed() int {
	n := 0
	for _, it := range s.Items {
		if it.Err != nil {
			n++
		}
	}
	return n
}

// OverlayPath returns the overlay destination for image index i of total.
func OverlayPath(out string, i, total int) string {
	if out == "" || total <= 1 {
		return out
	}
	ext := filepath.Ext(out)
	return fmt.Sprintf("%s_%d%s", strings.TrimSuffix(out, ext), i+1, ext)
}

func (o *Options) validate() error {
	if len(o.Images) == 0 {
		return errors.New("no input images")
	}
	if o.KeypointsPath != "" && len(o.Images) > 1 {
		return errors.New("a keypoints file can only be given for a single image")
	}
	o.Out = strings.TrimSpace(o.Out)
	if o.Out != "" {
		if err := overlay.CheckFormat(o.Out); err != nil {
			return fmt.Errorf("invalid -out %q: %w", o.Out, err)
		}
	}
	return nil
}

func (o *Options) sourceFor(image string) keypoints.Source {
	switch {
	case o.Source != nil:
		return o.Source
	case len(o.DetectorCmd) > 0:
		timeout := o.DetectorTimeout
		if timeout <= 0 {
			timeout = keypoints.DefaultDetectorTimeout
		}
		return keypoints.CommandSource{Argv: o.DetectorCmd, Timeout: timeout}
	case o.KeypointsPath != "":
		return keypoints.JSONSource{Path: o.KeypointsPath}
	default:
		return keypoints.JSONSource{Path: keypoints.SidecarPath(image)}
	}
}

// Run processes every image and writes the user-facing result lines to
// stdout in input order. All inputs are checked for existence before any
// work starts, and a missing input fails the run. Any other failure is
// recorded on its Item and reported in place of that image's result; only
// cancellation of ctx stops the remaining images.
func Run(ctx context.Context, opts Options, stdout io.Writer) (Summary, error) {
	if err := opts.validate(); err != nil {
		return Summary{}, err
	}
	for _, image := range opts.Images {
		if err := imageio.CheckExists(image); err != nil {
			return Summary{}, err
		}
	}
	if opts.Mapper == nil {
		opts.Mapper = posemap.Default()
	}
	if opts.InputSize <= 0 {
		opts.InputSize = imageio.DefaultInputSize
	}
	workers := max(1, opts.Workers)

	items := make([]Item, len(opts.Images))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, image := range opts.Images {
		g.Go(func() error {
			item, err := processImage(gctx, &opts, i, image)
			if err != nil {
				err = fmt.Errorf("%s: %w", image, err)
				if gctx.Err() != nil || errors.Is(err, imageio.ErrInputNotFound) {
					return err
				}
				opsf("%v", err)
				item = Item{Image: image, Err: err}
			}
			items[i] = item
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		opsf("run aborted: %v", err)
		return Summary{}, err
	}
	if err := ctx.Err(); err != nil {
		return Summary{}, err
	}

	summary := Summary{Items: items}
	if err := emit(&opts, &summary, stdout); err != nil {
		return summary, err
	}
	diagf("processed %d images, %d with a pose, %d failed", len(items), summary.Mapped(), summary.Failed())
	return summary, nil
}

func processImage(ctx context.Context, opts *Options, i int, image string) (Item, error) {
	start := time.Now()
	item := Item{Image: image}

	img, err := imageio.LoadImage(image)
	if err != nil {
		return item, err
	}
	frame := imageio.Preprocess(img, opts.InputSize)

	det, err := opts.sourceFor(image).Extract(ctx, frame)
	if err != nil {
		return item, fmt.Errorf("failed to extract keypoints: %w", err)
	}
	item.Pose = det.InSource(frame)
	item.Result = opts.Mapper.Map(item.Pose)

	if !item.Result.Ok() {
		diagf("%s: no pose detected", image)
		return item, nil
	}
	if n := item.Result.DefaultedCount(); n > 0 {
		diagf("%s: %d joints defaulted: %s", image, n, defaultedNames(item.Result))
	}

	// The vector stands on its own; a failed overlay is only logged.
	if dest := OverlayPath(opts.Out, i, len(opts.Images)); dest != "" {
		if item.Overlay, err = overlay.DrawSkeleton(img, item.Pose, dest); err != nil {
			item.OverlayErr = err
			opsf("%s: %v", image, err)
		}
	}
	if opts.Show {
		if _, err := overlay.DrawSkeleton(img, item.Pose, ""); err != nil {
			// Viewer problems do not invalidate the result.
			opsf("%s: %v", image, err)
		}
	}
	tracef("%s: processed in %s", image, time.Since(start))
	return item, nil
}

func defaultedNames(r posemap.Result) string {
	var names []string
	for i, d := range r.Defaulted {
		if d {
			names = append(names, humanoid.JointName(i))
		}
	}
	return strings.Join(names, ",")
}

// emit prints the results and feeds the store, controller and report.
func emit(opts *Options, summary *Summary, stdout io.Writer) error {
	if opts.DB != nil {
		run, err := opts.DB.StartRun(opts.RunConfig)
		if err != nil {
			return err
		}
		summary.RunID = run.ID
	}

	batch := len(summary.Items) > 1
	for _, it := range summary.Items {
		if batch {
			fmt.Fprintf(stdout, "%s:\n", it.Image)
		}
		if it.Err != nil {
			fmt.Fprintln(stdout, MsgFailed, it.Err)
			continue
		}
		if v, ok := it.Result.Get(); ok {
			fmt.Fprintln(stdout, MsgDetected)
			fmt.Fprintln(stdout, v)
		} else {
			fmt.Fprintln(stdout, MsgNoPose)
		}

		if opts.DB != nil {
			if _, err := opts.DB.RecordResult(summary.RunID, it.Image, it.Result); err != nil {
				return err
			}
		}
		if opts.Controller != nil && it.Result.Ok() {
			if err := opts.Controller.Send(it.Result.Vector); err != nil {
				return err
			}
		}
	}

	if opts.ReportPath != "" {
		entries := make([]report.Entry, 0, len(summary.Items))
		for _, it := range summary.Items {
			if it.Err == nil {
				entries = append(entries, report.Entry{Image: it.Image, Result: it.Result})
			}
		}
		if err := report.WriteFile(opts.ReportPath, entries); err != nil {
			return err
		}
		diagf("report written to %s", opts.ReportPath)
	}
	return nil
}
