// Package body25 defines the BODY25 keypoint topology produced by
// OpenPose-style detectors and the pose value that carries one detection.
package body25

import (
	"errors"
	"fmt"
	"math"
)

// Keypoint indices in BODY25 order. The index is the keypoint's identity.
const (
	Nose      = 0
	Neck      = 1
	RShoulder = 2
	RElbow    = 3
	RWrist    = 4
	LShoulder = 5
	LElbow    = 6
	LWrist    = 7
	MidHip    = 8
	RHip      = 9
	RKnee     = 10
	RAnkle    = 11
	LHip      = 12
	LKnee     = 13
	LAnkle    = 14
	REye      = 15
	LEye      = 16
	REar      = 17
	LEar      = 18
	LBigToe   = 19
	LSmallToe = 20
	LHeel     = 21
	RBigToe   = 22
	RSmallToe = 23
	RHeel     = 24

	// NumKeypoints is the fixed size of a BODY25 detection.
	NumKeypoints = 25
)

// names is indexed by keypoint index.
var names = [NumKeypoints]string{
	"Nose", "Neck",
	"RShoulder", "RElbow", "RWrist",
	"LShoulder", "LElbow", "LWrist",
	"MidHip",
	"RHip", "RKnee", "RAnkle",
	"LHip", "LKnee", "LAnkle",
	"REye", "LEye", "REar", "LEar",
	"LBigToe", "LSmallToe", "LHeel",
	"RBigToe", "RSmallToe", "RHeel",
}

// Limbs lists the keypoint pairs joined when drawing a BODY25 skeleton.
var Limbs = [...][2]int{
	{Neck, MidHip},
	{Neck, RShoulder}, {RShoulder, RElbow}, {RElbow, RWrist},
	{Neck, LShoulder}, {LShoulder, LElbow}, {LElbow, LWrist},
	{MidHip, RHip}, {RHip, RKnee}, {RKnee, RAnkle},
	{MidHip, LHip}, {LHip, LKnee}, {LKnee, LAnkle},
	{Neck, Nose}, {Nose, REye}, {REye, REar}, {Nose, LEye}, {LEye, LEar},
	{LAnkle, LBigToe}, {LBigToe, LSmallToe}, {LAnkle, LHeel},
	{RAnkle, RBigToe}, {RBigToe, RSmallToe}, {RAnkle, RHeel},
}

// ErrInvalidLength is returned when a keypoint set is neither empty nor
// exactly NumKeypoints long.
var ErrInvalidLength = errors.New("body25: keypoint count must be 0 or 25")

// Name returns the anatomical name of a BODY25 index.
func Name(idx int) string {
	if idx < 0 || idx >= NumKeypoints {
		return fmt.Sprintf("Keypoint(%d)", idx)
	}
	return names[idx]
}

// Index returns the BODY25 index for an anatomical name.
func Index(name string) (int, bool) {
	for i, n := range names {
		if n == name {
			return i, true
		}
	}
	return -1, false
}

// Keypoint is one landmark in image-plane coordinates.
type Keypoint struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Confidence float64 `json:"confidence"`
}

// Finite reports whether both coordinates are usable numbers.
func (k Keypoint) Finite() bool {
	return !math.IsNaN(k.X) && !math.IsInf(k.X, 0) &&
		!math.IsNaN(k.Y) && !math.IsInf(k.Y, 0)
}

// Pose is one BODY25 detection. The zero value is "no detection".
type Pose struct {
	points   [NumKeypoints]Keypoint
	detected bool
}

// NoDetection returns the pose value for a frame without a person.
func NoDetection() Pose {
	return Pose{}
}

// NewPose builds a pose from a keypoint slice. An empty slice yields
// NoDetection; any length other than 0 or NumKeypoints is rejected.
func NewPose(kps []Keypoint) (Pose, error) {
	switch len(kps) {
	case 0:
		return NoDetection(), nil
	case NumKeypoints:
		var p Pose
		copy(p.points[:], kps)
		p.detected = true
		return p, nil
	default:
		return Pose{}, fmt.Errorf("%w: got %d", ErrInvalidLength, len(kps))
	}
}

// FromArray builds a detected pose from a fixed-size array.
func FromArray(kps [NumKeypoints]Keypoint) Pose {
	return Pose{points: kps, detected: true}
}

// Detected reports whether the pose carries keypoints.
func (p Pose) Detected() bool { return p.detected }

// Len is 0 for no detection and NumKeypoints otherwise.
func (p Pose) Len() int {
	if !p.detected {
		return 0
	}
	return NumKeypoints
}

// At returns the keypoint at a BODY25 index. It panics on an out-of-range
// index, like a slice access.
func (p Pose) At(idx int) Keypoint {
	return p.points[idx]
}

// Keypoints returns a copy of the keypoints, or nil for no detection.
func (p Pose) Keypoints() []Keypoint {
	if !p.detected {
		return nil
	}
	out := make([]Keypoint, NumKeypoints)
	copy(out, p.points[:])
	return out
}

// Scaled returns a copy with every coordinate multiplied by f. Confidence
// is unchanged.
func (p Pose) Scaled(f float64) Pose {
	return p.ScaledXY(f, f)
}

// ScaledXY multiplies x coordinates by fx and y coordinates by fy.
func (p Pose) ScaledXY(fx, fy float64) Pose {
	if !p.detected {
		return p
	}
	out := p
	for i := range out.points {
		out.points[i].X *= fx
		out.points[i].Y *= fy
	}
	return out
}

// MeanConfidence is the average confidence over all keypoints.
func (p Pose) MeanConfidence() float64 {
	if !p.detected {
		return 0
	}
	var sum float64
	for _, k := range p.points {
		sum += k.Confidence
	}
	return sum / NumKeypoints
}
