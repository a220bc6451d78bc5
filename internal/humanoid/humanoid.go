// Package humanoid defines the 17-value joint vector consumed by the
// humanoid controller, in the actuator order of the MuJoCo Humanoid model.
package humanoid

import (
	"fmt"
	"math"
	"strings"
)

// Joint positions in the output vector. This order is the contract with
// downstream consumers and must never change.
const (
	AbdomenY = iota
	AbdomenZ
	AbdomenX
	RightHipX
	RightHipZ
	RightHipY
	RightKnee
	LeftHipX
	LeftHipZ
	LeftHipY
	LeftKnee
	RightShoulder1
	RightShoulder2
	RightElbow
	LeftShoulder1
	LeftShoulder2
	LeftElbow

	// NumJoints is the fixed length of a pose vector.
	NumJoints
)

var jointNames = [NumJoints]string{
	"abdomen_y", "abdomen_z", "abdomen_x",
	"right_hip_x", "right_hip_z", "right_hip_y", "right_knee",
	"left_hip_x", "left_hip_z", "left_hip_y", "left_knee",
	"right_shoulder1", "right_shoulder2", "right_elbow",
	"left_shoulder1", "left_shoulder2", "left_elbow",
}

// JointName returns the name at a vector position.
func JointName(pos int) string {
	if pos < 0 || pos >= NumJoints {
		return fmt.Sprintf("joint(%d)", pos)
	}
	return jointNames[pos]
}

// JointNames returns the joint names in vector order.
func JointNames() []string {
	out := make([]string, NumJoints)
	copy(out, jointNames[:])
	return out
}

// JointIndex looks up a vector position by joint name.
func JointIndex(name string) (int, bool) {
	for i, n := range jointNames {
		if n == name {
			return i, true
		}
	}
	return -1, false
}

// Vector holds one joint value per position, in radians.
type Vector [NumJoints]float64

// Finite reports whether every value is a real number.
func (v Vector) Finite() bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// Slice returns the values as a new slice.
func (v Vector) Slice() []float64 {
	out := make([]float64, NumJoints)
	copy(out, v[:])
	return out
}

// Degrees returns the values converted to degrees.
func (v Vector) Degrees() Vector {
	var out Vector
	for i, x := range v {
		out[i] = x * 180 / math.Pi
	}
	return out
}

// String formats the vector the way the CLI prints it.
func (v Vector) String() string {
	parts := make([]string, NumJoints)
	for i, x := range v {
		parts[i] = fmt.Sprintf("%.4f", x)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
