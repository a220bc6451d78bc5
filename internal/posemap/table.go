package posemap

import (
	"fmt"
	"math"

	"github.com/banshee-data/posemap/internal/body25"
	"github.com/banshee-data/posemap/internal/humanoid"
)

// Kind selects how a joint value is derived from its keypoints.
type Kind string

const (
	// KindSegment is the signed angle from the reference direction to the
	// segment Points[0]→Points[1].
	KindSegment Kind = "segment"
	// KindHinge is the flexion at Points[1] of the chain Points[0..2];
	// a straight chain reads 0.
	KindHinge Kind = "hinge"
	// KindTwist is the signed angle from line Points[2]→Points[3] to line
	// Points[0]→Points[1].
	KindTwist Kind = "twist"
	// KindForeshorten estimates out-of-plane rotation from the length of
	// Points[0]→Points[1] relative to Gain times Points[2]→Points[3].
	KindForeshorten Kind = "foreshorten"
)

// PointCount is the number of keypoints a kind consumes.
func (k Kind) PointCount() int {
	switch k {
	case KindSegment:
		return 2
	case KindHinge:
		return 3
	case KindTwist, KindForeshorten:
		return 4
	default:
		return 0
	}
}

// Reference is the direction a segment angle is measured from.
type Reference string

const (
	RefUp   Reference = "up"
	RefDown Reference = "down"
)

// JointSpec describes how one output joint is computed.
type JointSpec struct {
	Kind    Kind
	Points  []int
	Ref     Reference
	Gain    float64
	Sign    float64
	Default float64
}

// Table holds one JointSpec per output position.
type Table [humanoid.NumJoints]JointSpec

// DefaultMinConfidence is the keypoint confidence below which a joint
// falls back to its default value.
const DefaultMinConfidence = 0.2

// defaultTable maps BODY25 keypoints onto the humanoid actuator order.
// Left/right pairs share a formula; Sign mirrors lateral angles so that
// abduction reads positive on both sides.
var defaultTable = Table{
	humanoid.AbdomenY: {Kind: KindForeshorten, Points: []int{body25.Neck, body25.MidHip, body25.RShoulder, body25.LShoulder}, Gain: 1.4, Sign: 1},
	humanoid.AbdomenZ: {Kind: KindTwist, Points: []int{body25.RShoulder, body25.LShoulder, body25.RHip, body25.LHip}, Sign: 1},
	humanoid.AbdomenX: {Kind: KindSegment, Points: []int{body25.MidHip, body25.Neck}, Ref: RefUp, Sign: 1},

	humanoid.RightHipX: {Kind: KindSegment, Points: []int{body25.RHip, body25.RKnee}, Ref: RefDown, Sign: -1},
	humanoid.RightHipZ: {Kind: KindSegment, Points: []int{body25.RHeel, body25.RBigToe}, Ref: RefDown, Sign: -1},
	humanoid.RightHipY: {Kind: KindForeshorten, Points: []int{body25.RHip, body25.RKnee, body25.RKnee, body25.RAnkle}, Gain: 1, Sign: 1},
	humanoid.RightKnee: {Kind: KindHinge, Points: []int{body25.RHip, body25.RKnee, body25.RAnkle}, Sign: 1},

	humanoid.LeftHipX: {Kind: KindSegment, Points: []int{body25.LHip, body25.LKnee}, Ref: RefDown, Sign: 1},
	humanoid.LeftHipZ: {Kind: KindSegment, Points: []int{body25.LHeel, body25.LBigToe}, Ref: RefDown, Sign: 1},
	humanoid.LeftHipY: {Kind: KindForeshorten, Points: []int{body25.LHip, body25.LKnee, body25.LKnee, body25.LAnkle}, Gain: 1, Sign: 1},
	humanoid.LeftKnee: {Kind: KindHinge, Points: []int{body25.LHip, body25.LKnee, body25.LAnkle}, Sign: 1},

	humanoid.RightShoulder1: {Kind: KindSegment, Points: []int{body25.RShoulder, body25.RElbow}, Ref: RefDown, Sign: -1},
	humanoid.RightShoulder2: {Kind: KindForeshorten, Points: []int{body25.RShoulder, body25.RElbow, body25.RElbow, body25.RWrist}, Gain: 1, Sign: 1},
	humanoid.RightElbow:     {Kind: KindHinge, Points: []int{body25.RShoulder, body25.RElbow, body25.RWrist}, Sign: 1},

	humanoid.LeftShoulder1: {Kind: KindSegment, Points: []int{body25.LShoulder, body25.LElbow}, Ref: RefDown, Sign: 1},
	humanoid.LeftShoulder2: {Kind: KindForeshorten, Points: []int{body25.LShoulder, body25.LElbow, body25.LElbow, body25.LWrist}, Gain: 1, Sign: 1},
	humanoid.LeftElbow:     {Kind: KindHinge, Points: []int{body25.LShoulder, body25.LElbow, body25.LWrist}, Sign: 1},
}

// DefaultTable returns a copy of the built-in joint table.
func DefaultTable() Table {
	return defaultTable.Clone()
}

// Clone returns a deep copy, so callers never share Points slices.
func (t Table) Clone() Table {
	out := t
	for i := range out {
		out[i].Points = append([]int(nil), t[i].Points...)
	}
	return out
}

// Validate checks every entry for a known kind, the right number of
// in-range keypoint indices and usable parameters.
func (t Table) Validate() error {
	for pos, s := range t {
		name := humanoid.JointName(pos)
		want := s.Kind.PointCount()
		if want == 0 {
			return fmt.Errorf("joint %s: unknown kind %q", name, s.Kind)
		}
		if len(s.Points) != want {
			return fmt.Errorf("joint %s: kind %s needs %d keypoints, got %d", name, s.Kind, want, len(s.Points))
		}
		for _, idx := range s.Points {
			if idx < 0 || idx >= body25.NumKeypoints {
				return fmt.Errorf("joint %s: keypoint index %d out of range", name, idx)
			}
		}
		if s.Kind == KindSegment && s.Ref != RefUp && s.Ref != RefDown {
			return fmt.Errorf("joint %s: segment reference must be %q or %q, got %q", name, RefUp, RefDown, s.Ref)
		}
		if s.Kind == KindForeshorten && !(s.Gain > 0) {
			return fmt.Errorf("joint %s: foreshorten gain must be positive, got %v", name, s.Gain)
		}
		if s.Sign != 1 && s.Sign != -1 {
			return fmt.Errorf("joint %s: sign must be 1 or -1, got %v", name, s.Sign)
		}
		if math.IsNaN(s.Default) || math.IsInf(s.Default, 0) {
			return fmt.Errorf("joint %s: default must be finite", name)
		}
	}
	return nil
}

// Uses reports whether the joint at pos reads keypoint idx.
func (t Table) Uses(pos, idx int) bool {
	for _, p := range t[pos].Points {
		if p == idx {
			return true
		}
	}
	return false
}
