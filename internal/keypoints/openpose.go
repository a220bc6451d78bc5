// Package keypoints adapts external BODY25 detectors to the pose mapper.
// The detector itself is not part of this module; sources read its
// OpenPose-format JSON output from a file or from a subprocess.
package keypoints

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/banshee-data/posemap/internal/body25"
)

// openPoseFrame is the subset of the OpenPose per-image JSON we consume.
type openPoseFrame struct {
	Version float64          `json:"version"`
	People  []openPosePerson `json:"people"`
}

type openPosePerson struct {
	PersonID      []int     `json:"person_id"`
	PoseKeypoints []float64 `json:"pose_keypoints_2d"`
}

// valuesPerPerson is x, y, confidence for each BODY25 keypoint.
const valuesPerPerson = body25.NumKeypoints * 3

// ParseOpenPose decodes an OpenPose JSON document. With no people it
// returns NoDetection. With several, the person with the highest summed
// confidence is returned and people reports how many were present.
func ParseOpenPose(r io.Reader) (pose body25.Pose, people int, err error) {
	var frame openPoseFrame
	if err := json.NewDecoder(r).Decode(&frame); err != nil {
		return body25.NoDetection(), 0, fmt.Errorf("failed to decode keypoints JSON: %w", err)
	}

	best := -1
	bestScore := -1.0
	for i, p := range frame.People {
		if len(p.PoseKeypoints) == 0 {
			continue
		}
		if len(p.PoseKeypoints) != valuesPerPerson {
			return body25.NoDetection(), 0, fmt.Errorf("%w: person %d has %d values, want %d",
				body25.ErrInvalidLength, i, len(p.PoseKeypoints), valuesPerPerson)
		}
		score := 0.0
		for k := 2; k < valuesPerPerson; k += 3 {
			score += p.PoseKeypoints[k]
		}
		people++
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return body25.NoDetection(), 0, nil
	}

	vals := frame.People[best].PoseKeypoints
	var kps [body25.NumKeypoints]body25.Keypoint
	for i := range kps {
		kps[i] = body25.Keypoint{X: vals[3*i], Y: vals[3*i+1], Confidence: vals[3*i+2]}
	}
	return body25.FromArray(kps), people, nil
}

// EncodeOpenPose writes a pose in OpenPose JSON form. No detection is
// written as an empty people list.
func EncodeOpenPose(w io.Writer, pose body25.Pose) error {
	frame := openPoseFrame{Version: 1.3, People: []openPosePerson{}}
	if pose.Detected() {
		vals := make([]float64, 0, valuesPerPerson)
		for _, k := range pose.Keypoints() {
			vals = append(vals, k.X, k.Y, k.Confidence)
		}
		frame.People = append(frame.People, openPosePerson{PersonID: []int{-1}, PoseKeypoints: vals})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(frame)
}
