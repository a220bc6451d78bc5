// Package geom holds the planar vector helpers used to derive joint angles
// from image-plane keypoints.
package geom

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r2"
)

// Epsilon is the smallest segment length treated as non-degenerate.
const Epsilon = 1e-9

// Up and Down are unit reference directions in a y-up frame.
var (
	Up   = r2.Vec{X: 0, Y: 1}
	Down = r2.Vec{X: 0, Y: -1}
)

// Degenerate reports whether v is too short to define a direction.
func Degenerate(v r2.Vec) bool {
	n := r2.Norm(v)
	return math.IsNaN(n) || n < Epsilon
}

// SignedAngle returns the counter-clockwise angle in (-π, π] that rotates
// from onto to. ok is false when either vector is degenerate.
func SignedAngle(from, to r2.Vec) (angle float64, ok bool) {
	if Degenerate(from) || Degenerate(to) {
		return 0, false
	}
	a := math.Atan2(r2.Cross(from, to), r2.Dot(from, to))
	if a <= -math.Pi {
		a = math.Pi
	}
	return a, true
}

// InteriorAngle returns the unsigned angle at b formed by a-b-c, in [0, π].
func InteriorAngle(a, b, c r2.Vec) (angle float64, ok bool) {
	ba := r2.Sub(a, b)
	bc := r2.Sub(c, b)
	if Degenerate(ba) || Degenerate(bc) {
		return 0, false
	}
	return math.Acos(Clamp(r2.Cos(ba, bc), -1, 1)), true
}

// Flexion is π minus the interior angle, so a straight limb reads 0.
func Flexion(a, b, c r2.Vec) (float64, bool) {
	theta, ok := InteriorAngle(a, b, c)
	if !ok {
		return 0, false
	}
	return math.Pi - theta, true
}

// Foreshortening estimates an out-of-plane rotation from the ratio of a
// segment's projected length to gain times a reference length:
// acos(clamp(|seg| / (gain·|ref|), 0, 1)).
func Foreshortening(seg, ref r2.Vec, gain float64) (float64, bool) {
	if Degenerate(seg) || Degenerate(ref) || gain <= 0 {
		return 0, false
	}
	ratio := r2.Norm(seg) / (gain * r2.Norm(ref))
	return math.Acos(Clamp(ratio, 0, 1)), true
}

// Midpoint of two points.
func Midpoint(a, b r2.Vec) r2.Vec {
	return r2.Scale(0.5, r2.Add(a, b))
}

// Centroid of a point set. ok is false for an empty set.
func Centroid(pts []r2.Vec) (r2.Vec, bool) {
	if len(pts) == 0 {
		return r2.Vec{}, false
	}
	xs, ys := split(pts)
	n := float64(len(pts))
	return r2.Vec{X: floats.Sum(xs) / n, Y: floats.Sum(ys) / n}, true
}

// BoundsDiagonal is the diagonal length of the axis-aligned bounding box.
func BoundsDiagonal(pts []r2.Vec) float64 {
	if len(pts) == 0 {
		return 0
	}
	xs, ys := split(pts)
	w := floats.Max(xs) - floats.Min(xs)
	h := floats.Max(ys) - floats.Min(ys)
	return math.Hypot(w, h)
}

// Clamp limits x to [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

func split(pts []r2.Vec) (xs, ys []float64) {
	xs = make([]float64, len(pts))
	ys = make([]float64, len(pts))
	for i, p := range pts {
		xs[i] = p.X
		ys[i] = p.Y
	}
	return xs, ys
}
