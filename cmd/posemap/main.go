package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/banshee-data/posemap/internal/config"
	"github.com/banshee-data/posemap/internal/controller"
	"github.com/banshee-data/posemap/internal/db"
	"github.com/banshee-data/posemap/internal/imageio"
	"github.com/banshee-data/posemap/internal/keypoints"
	"github.com/banshee-data/posemap/internal/pipeline"
	"github.com/banshee-data/posemap/internal/version"
)

var (
	imagePath       string
	outPath         string
	show            = flag.Bool("show", false, "Display the skeleton overlay in the platform image viewer")
	keypointsPath   = flag.String("keypoints", "", "OpenPose JSON for the image (default <image base>_keypoints.json)")
	detectorCmd     = flag.String("detector-cmd", "", "External BODY25 detector command; {image} is replaced with the frame path and OpenPose JSON is read from stdout")
	detectorTimeout = flag.Duration("detector-timeout", 0, "Timeout for one detector run (default from config, 30s)")
	configPath      = flag.String("config", "", "Mapping config JSON (default built-in joint table)")
	dbPath          = flag.String("db", "", "SQLite database to store results in")
	reportPath      = flag.String("report", "", "Write an HTML joint report to this path")
	serialPort      = flag.String("serial", "", "Serial port of the humanoid controller")
	baudRate        = flag.Int("baud", controller.DefaultBaudRate, "Controller baud rate")
	workers         = flag.Int("workers", 1, "Images processed concurrently")
	logFile         = flag.String("log-file", "", "Write logs to this file (rotated) instead of stderr")
	verbose         = flag.Bool("v", false, "Enable diagnostic logging")
	trace           = flag.Bool("trace", false, "Enable per-stage trace logging")
	showVersion     = flag.Bool("version", false, "Print version and exit")
)

func init() {
	flag.StringVar(&imagePath, "image", "", "Path to the image file; further images may follow as arguments")
	flag.StringVar(&imagePath, "i", "", "Shorthand for -image")
	flag.StringVar(&outPath, "out", "out.jpg", "Where to save the skeleton overlay (empty string to skip saving)")
	flag.StringVar(&outPath, "o", "out.jpg", "Shorthand for -out")
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("posemap"))
		return
	}

	closeLogs := setupLogging()
	defer closeLogs()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Stdout); err != nil {
		closeLogs()
		log.Fatalf("posemap: %v", err)
	}
}

// logWriters builds the ops/diag/trace writers from the logging flags.
func logWriters(out io.Writer) pipeline.LogWriters {
	w := pipeline.LogWriters{Ops: out}
	if *verbose {
		w.Diag = out
	}
	if *trace {
		w.Trace = out
	}
	return w
}

func setupLogging() (closeFn func()) {
	var out io.Writer = os.Stderr
	closeFn = func() {}
	if *logFile != "" {
		rotating := &lumberjack.Logger{
			Filename:   *logFile,
			MaxSize:    10, // MB
			MaxBackups: 3,
			MaxAge:     28, // days
		}
		out = rotating
		closeFn = func() { rotating.Close() }
		log.SetOutput(io.MultiWriter(os.Stderr, rotating))
	}
	pipeline.SetLogWriters(logWriters(out))
	return closeFn
}

func images() []string {
	var imgs []string
	if imagePath != "" {
		imgs = append(imgs, imagePath)
	}
	return append(imgs, flag.Args()...)
}

func loadConfig() (*config.MappingConfig, error) {
	if *configPath == "" {
		return config.EmptyMappingConfig(), nil
	}
	return config.LoadMappingConfig(*configPath)
}

// run executes the pipeline for the parsed flags.
func run(ctx context.Context, stdout io.Writer) error {
	imgs := images()
	if len(imgs) == 0 {
		return errors.New("an image is required (-image)")
	}
	// Inputs are checked before any sink is opened so a missing image
	// leaves no database or port behind.
	for _, img := range imgs {
		if err := imageio.CheckExists(img); err != nil {
			return err
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	mapper, err := cfg.Mapper()
	if err != nil {
		return err
	}

	timeout := *detectorTimeout
	if timeout <= 0 {
		timeout = cfg.GetDetectorTimeout()
	}

	opts := pipeline.Options{
		Images:          imgs,
		Out:             outPath,
		Show:            *show,
		KeypointsPath:   *keypointsPath,
		DetectorCmd:     keypoints.ParseCommand(*detectorCmd),
		DetectorTimeout: timeout,
		InputSize:       cfg.GetDetectorInputSize(),
		Mapper:          mapper,
		ReportPath:      *reportPath,
		Workers:         *workers,
		RunConfig:       runConfig(cfg, imgs),
	}

	if *dbPath != "" {
		store, err := db.OpenDB(*dbPath)
		if err != nil {
			return err
		}
		defer store.Close()
		opts.DB = store
	}

	if *serialPort != "" {
		ctrl, err := controller.Open(*serialPort, controller.PortOptions{BaudRate: *baudRate})
		if err != nil {
			return err
		}
		defer ctrl.Close()
		opts.Controller = ctrl
	}

	start := time.Now()
	summary, err := pipeline.Run(ctx, opts, stdout)
	if err != nil {
		return err
	}
	if *verbose {
		log.Printf("processed %d images (%d with a pose) in %s", len(summary.Items), summary.Mapped(), time.Since(start).Round(time.Millisecond))
	}
	if n := summary.Failed(); n > 0 {
		return fmt.Errorf("%d of %d images could not be processed", n, len(summary.Items))
	}
	return nil
}

// runConfig is the configuration stored alongside a results run.
func runConfig(cfg *config.MappingConfig, imgs []string) map[string]any {
	return map[string]any{
		"images":              len(imgs),
		"min_confidence":      cfg.GetMinConfidence(),
		"detector_input_size": cfg.GetDetectorInputSize(),
		"detector_cmd":        *detectorCmd,
		"config":              *configPath,
		"version":             version.Version,
	}
}
