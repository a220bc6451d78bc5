package geom

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/spatial/r2"
)

func TestSignedAngle(t *testing.T) {
	tests := []struct {
		name     string
		from, to r2.Vec
		want     float64
		ok       bool
	}{
		{"same direction", Up, Up, 0, true},
		{"quarter turn ccw", r2.Vec{X: 1}, Up, math.Pi / 2, true},
		{"quarter turn cw", r2.Vec{X: 1}, Down, -math.Pi / 2, true},
		{"opposite", Up, Down, math.Pi, true},
		{"degenerate from", r2.Vec{}, Up, 0, false},
		{"degenerate to", Up, r2.Vec{X: 1e-12}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SignedAngle(tt.from, tt.to)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestInteriorAngleAndFlexion(t *testing.T) {
	a := r2.Vec{X: 0, Y: 2}
	b := r2.Vec{X: 0, Y: 1}
	straight := r2.Vec{X: 0, Y: 0}
	bent := r2.Vec{X: 1, Y: 1}

	theta, ok := InteriorAngle(a, b, straight)
	assert.True(t, ok)
	assert.InDelta(t, math.Pi, theta, 1e-12)

	flex, ok := Flexion(a, b, straight)
	assert.True(t, ok)
	assert.InDelta(t, 0, flex, 1e-12)

	flex, ok = Flexion(a, b, bent)
	assert.True(t, ok)
	assert.InDelta(t, math.Pi/2, flex, 1e-12)

	_, ok = Flexion(a, a, bent)
	assert.False(t, ok)
}

func TestForeshortening(t *testing.T) {
	seg := r2.Vec{X: 0, Y: 1}

	got, ok := Foreshortening(seg, seg, 1)
	assert.True(t, ok)
	assert.InDelta(t, 0, got, 1e-12)

	got, ok = Foreshortening(seg, r2.Vec{X: 0, Y: 2}, 1)
	assert.True(t, ok)
	assert.InDelta(t, math.Pi/3, got, 1e-12)

	// Longer than reference clamps to zero rotation.
	got, ok = Foreshortening(r2.Vec{Y: 3}, seg, 1)
	assert.True(t, ok)
	assert.Equal(t, 0.0, got)

	_, ok = Foreshortening(seg, seg, 0)
	assert.False(t, ok)
}

func TestCentroidAndBounds(t *testing.T) {
	pts := []r2.Vec{{X: 0, Y: 0}, {X: 4, Y: 0}, {X: 4, Y: 3}, {X: 0, Y: 3}}
	c, ok := Centroid(pts)
	assert.True(t, ok)
	assert.Equal(t, r2.Vec{X: 2, Y: 1.5}, c)
	assert.InDelta(t, 5.0, BoundsDiagonal(pts), 1e-12)

	_, ok = Centroid(nil)
	assert.False(t, ok)
	assert.Equal(t, 0.0, BoundsDiagonal(nil))
}

func TestMidpointAndClamp(t *testing.T) {
	assert.Equal(t, r2.Vec{X: 1, Y: 2}, Midpoint(r2.Vec{}, r2.Vec{X: 2, Y: 4}))
	assert.Equal(t, 1.0, Clamp(3, -1, 1))
	assert.Equal(t, -1.0, Clamp(-3, -1, 1))
	assert.Equal(t, 0.5, Clamp(0.5, -1, 1))
}
