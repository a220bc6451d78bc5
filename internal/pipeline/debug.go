package pipeline

import (
	"io"
	"log"
	"sync"

	"github.com/banshee-data/posemap/internal/controller"
	"github.com/banshee-data/posemap/internal/db"
	"github.com/banshee-data/posemap/internal/imageio"
	"github.com/banshee-data/posemap/internal/keypoints"
	"github.com/banshee-data/posemap/internal/overlay"
)

// LogWriters holds the io.Writers for each logging stream.
type LogWriters struct {
	Ops   io.Writer
	Diag  io.Writer
	Trace io.Writer
}

var (
	mu          sync.RWMutex
	opsLogger   *log.Logger
	diagLogger  *log.Logger
	traceLogger *log.Logger
)

// SetLogWriters configures the three logging streams for the pipeline and
// every package it drives. Pass nil for any writer to disable that stream.
func SetLogWriters(w LogWriters) {
	mu.Lock()
	opsLogger = newLogger("[pipeline] ", w.Ops)
	diagLogger = newLogger("[pipeline] ", w.Diag)
	traceLogger = newLogger("[pipeline] ", w.Trace)
	mu.Unlock()

	imageio.SetLogWriters(w.Ops, w.Diag, w.Trace)
	keypoints.SetLogWriters(w.Ops, w.Diag, w.Trace)
	overlay.SetLogWriters(w.Ops, w.Diag, w.Trace)
	controller.SetLogWriters(w.Ops, w.Diag, w.Trace)
	db.SetLogWriters(w.Ops, w.Diag, w.Trace)
}

func newLogger(prefix string, w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)
}

// opsf logs to the ops stream (actionable warnings, errors).
func opsf(format string, args ...interface{}) {
	mu.RLock()
	l := opsLogger
	mu.RUnlock()
	if l != nil {
		l.Printf(format, args...)
	}
}

// diagf logs to the diag stream (per-image outcomes, defaulted joints).
func diagf(format string, args ...interface{}) {
	mu.RLock()
	l := diagLogger
	mu.RUnlock()
	if l != nil {
		l.Printf(format, args...)
	}
}

// tracef logs to the trace stream (per-stage timings).
func tracef(format string, args ...interface{}) {
	mu.RLock()
	l := traceLogger
	mu.RUnlock()
	if l != nil {
		l.Printf(format, args...)
	}
}
