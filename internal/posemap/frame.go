package posemap

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/posemap/internal/body25"
	"github.com/banshee-data/posemap/internal/geom"
)

// Frame is the body-centric reference frame: keypoints are translated so
// Origin sits at (0,0), divided by Scale, and flipped so +y points up.
type Frame struct {
	Origin r2.Vec
	Scale  float64
}

// Normalize expresses an image-plane keypoint in the body frame.
func (f Frame) Normalize(k body25.Keypoint) r2.Vec {
	return r2.Vec{
		X: (k.X - f.Origin.X) / f.Scale,
		Y: (f.Origin.Y - k.Y) / f.Scale,
	}
}

// buildFrame picks the origin and unit length from the most stable
// landmarks available. Origin: MidHip, then the hip midpoint, then the
// centroid of confident keypoints. Scale: origin to Neck, then origin to
// the shoulder midpoint, then the bounding-box diagonal, else 1.
func buildFrame(p body25.Pose, ok func(int) bool) Frame {
	pt := func(idx int) r2.Vec {
		k := p.At(idx)
		return r2.Vec{X: k.X, Y: k.Y}
	}

	var confident []r2.Vec
	for i := 0; i < body25.NumKeypoints; i++ {
		if ok(i) {
			confident = append(confident, pt(i))
		}
	}

	var origin r2.Vec
	switch {
	case ok(body25.MidHip):
		origin = pt(body25.MidHip)
	case ok(body25.RHip) && ok(body25.LHip):
		origin = geom.Midpoint(pt(body25.RHip), pt(body25.LHip))
	default:
		origin, _ = geom.Centroid(confident)
	}

	scale := 0.0
	switch {
	case ok(body25.Neck):
		scale = r2.Norm(r2.Sub(pt(body25.Neck), origin))
	case ok(body25.RShoulder) && ok(body25.LShoulder):
		scale = r2.Norm(r2.Sub(geom.Midpoint(pt(body25.RShoulder), pt(body25.LShoulder)), origin))
	}
	if !usableScale(scale) {
		scale = geom.BoundsDiagonal(confident)
	}
	if !usableScale(scale) {
		scale = 1
	}

	return Frame{Origin: origin, Scale: scale}
}

func usableScale(s float64) bool {
	return s > geom.Epsilon && !math.IsInf(s, 0) && !math.IsNaN(s)
}
