// Package posemap maps a BODY25 detection onto the 17-value humanoid joint
// vector. Mapping is a pure function of its input: no I/O, no retained
// state, safe to call from any number of goroutines.
package posemap

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/posemap/internal/body25"
	"github.com/banshee-data/posemap/internal/geom"
	"github.com/banshee-data/posemap/internal/humanoid"
)

// Status tags a mapping result.
type Status int

const (
	// Unmapped means there was no detection to map; Vector is meaningless.
	Unmapped Status = iota
	// Mapped means Vector holds 17 finite joint values.
	Mapped
)

func (s Status) String() string {
	switch s {
	case Mapped:
		return "mapped"
	case Unmapped:
		return "unmapped"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Result is the outcome of one mapping call.
type Result struct {
	Status Status
	Vector humanoid.Vector
	// Defaulted marks joints that fell back to their default because a
	// required keypoint was missing, low-confidence or degenerate.
	Defaulted [humanoid.NumJoints]bool
	Frame     Frame
}

// Ok reports whether the result carries a vector.
func (r Result) Ok() bool { return r.Status == Mapped }

// Get returns the vector and whether it is valid.
func (r Result) Get() (humanoid.Vector, bool) {
	return r.Vector, r.Status == Mapped
}

// DefaultedCount is the number of joints that used their fallback value.
func (r Result) DefaultedCount() int {
	n := 0
	for _, d := range r.Defaulted {
		if d {
			n++
		}
	}
	return n
}

// Mapper converts BODY25 poses using a fixed joint table and confidence
// threshold. A Mapper is immutable after construction.
type Mapper struct {
	table         Table
	minConfidence float64
}

var defaultMapper = &Mapper{table: DefaultTable(), minConfidence: DefaultMinConfidence}

// Default returns the mapper built from the built-in table and threshold.
func Default() *Mapper { return defaultMapper }

// NewMapper validates the table and threshold and returns a mapper that
// owns a private copy of the table.
func NewMapper(table Table, minConfidence float64) (*Mapper, error) {
	if math.IsNaN(minConfidence) || minConfidence < 0 || minConfidence > 1 {
		return nil, fmt.Errorf("min confidence must be between 0 and 1, got %v", minConfidence)
	}
	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("invalid joint table: %w", err)
	}
	return &Mapper{table: table.Clone(), minConfidence: minConfidence}, nil
}

// MinConfidence returns the gating threshold.
func (m *Mapper) MinConfidence() float64 { return m.minConfidence }

// Table returns a copy of the joint table.
func (m *Mapper) Table() Table { return m.table.Clone() }

// Map maps one pose with the default mapper.
func Map(p body25.Pose) Result {
	return defaultMapper.Map(p)
}

// Map converts a pose into a joint vector. A pose without a detection
// yields Unmapped; any detected pose yields Mapped with finite values,
// each joint degrading to its default independently.
func (m *Mapper) Map(p body25.Pose) Result {
	if !p.Detected() {
		return Result{Status: Unmapped}
	}

	usable := func(idx int) bool {
		k := p.At(idx)
		return k.Finite() && k.Confidence >= m.minConfidence
	}

	frame := buildFrame(p, usable)
	res := Result{Status: Mapped, Frame: frame}

	for pos, spec := range m.table {
		v, ok := m.derive(spec, p, frame, usable)
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
			res.Vector[pos] = spec.Default
			res.Defaulted[pos] = true
			continue
		}
		res.Vector[pos] = v
	}
	return res
}

func (m *Mapper) derive(s JointSpec, p body25.Pose, f Frame, usable func(int) bool) (float64, bool) {
	pts := make([]r2.Vec, len(s.Points))
	for i, idx := range s.Points {
		if !usable(idx) {
			return 0, false
		}
		pts[i] = f.Normalize(p.At(idx))
	}

	var (
		v  float64
		ok bool
	)
	switch s.Kind {
	case KindSegment:
		ref := geom.Up
		if s.Ref == RefDown {
			ref = geom.Down
		}
		v, ok = geom.SignedAngle(ref, r2.Sub(pts[1], pts[0]))
	case KindHinge:
		v, ok = geom.Flexion(pts[0], pts[1], pts[2])
	case KindTwist:
		v, ok = geom.SignedAngle(r2.Sub(pts[3], pts[2]), r2.Sub(pts[1], pts[0]))
	case KindForeshorten:
		v, ok = geom.Foreshortening(r2.Sub(pts[1], pts[0]), r2.Sub(pts[3], pts[2]), s.Gain)
	}
	if !ok {
		return 0, false
	}
	return s.Sign * v, true
}
