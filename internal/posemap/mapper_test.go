package posemap

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/posemap/internal/body25"
	"github.com/banshee-data/posemap/internal/humanoid"
)

func TestMap_NoDetectionIsUnmapped(t *testing.T) {
	res := Map(body25.NoDetection())
	assert.Equal(t, Unmapped, res.Status)
	assert.False(t, res.Ok())

	_, ok := res.Get()
	assert.False(t, ok)

	empty, err := body25.NewPose(nil)
	require.NoError(t, err)
	assert.Equal(t, Unmapped, Map(empty).Status)
}

func TestMap_StandingPoseIsPlausible(t *testing.T) {
	res := Map(body25.FromArray(standingPose()))
	require.True(t, res.Ok())
	assert.Zero(t, res.DefaultedCount())

	v, ok := res.Get()
	require.True(t, ok)
	assert.True(t, v.Finite())

	const straight = 0.1 // radians
	for _, j := range []int{humanoid.RightKnee, humanoid.LeftKnee, humanoid.RightElbow, humanoid.LeftElbow} {
		assert.InDelta(t, 0, v[j], straight, "%s should be near straight", humanoid.JointName(j))
	}
	for _, j := range []int{humanoid.AbdomenX, humanoid.AbdomenY, humanoid.AbdomenZ} {
		assert.InDelta(t, 0, v[j], straight, "%s should be near neutral", humanoid.JointName(j))
	}
	for _, j := range []int{humanoid.RightHipY, humanoid.LeftHipY, humanoid.RightShoulder2, humanoid.LeftShoulder2} {
		assert.InDelta(t, 0, v[j], straight, "%s should be near neutral", humanoid.JointName(j))
	}

	// Arms hang slightly away from the body; both sides read the same sign.
	assert.Greater(t, v[humanoid.RightShoulder1], 0.0)
	assert.Greater(t, v[humanoid.LeftShoulder1], 0.0)
	assert.InDelta(t, v[humanoid.RightShoulder1], v[humanoid.LeftShoulder1], 1e-9)
	assert.InDelta(t, v[humanoid.RightHipX], v[humanoid.LeftHipX], 1e-9)
}

func TestMap_FrameUsesMidHipAndNeck(t *testing.T) {
	res := Map(body25.FromArray(standingPose()))
	assert.Equal(t, 200.0, res.Frame.Origin.X)
	assert.Equal(t, 380.0, res.Frame.Origin.Y)
	assert.InDelta(t, 220.0, res.Frame.Scale, 1e-12)

	neck := res.Frame.Normalize(standingPose()[body25.Neck])
	assert.InDelta(t, 0, neck.X, 1e-12)
	assert.InDelta(t, 1, neck.Y, 1e-12, "neck sits one unit above the origin")
}

func TestMap_TranslationAndScaleInvariance(t *testing.T) {
	base := Map(body25.FromArray(standingPose())).Vector

	tests := []struct {
		name          string
		scale, dx, dy float64
	}{
		{"translate", 1, 1234.5, -87.25},
		{"scale up", 3.7, 0, 0},
		{"scale down", 0.013, 0, 0},
		{"scale and translate", 12.5, -4000, 9000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Map(transform(standingPose(), tt.scale, tt.dx, tt.dy)).Vector
			if diff := cmp.Diff(base, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
				t.Errorf("vector changed (-base +got):\n%s", diff)
			}
		})
	}
}

func TestMap_LowConfidenceFallbackIsPerJoint(t *testing.T) {
	m := Default()
	table := m.Table()
	base := m.Map(body25.FromArray(standingPose()))

	for idx := 0; idx < body25.NumKeypoints; idx++ {
		t.Run(body25.Name(idx), func(t *testing.T) {
			a := standingPose()
			a[idx].Confidence = 0
			res := m.Map(body25.FromArray(a))
			require.True(t, res.Ok())

			for pos := 0; pos < humanoid.NumJoints; pos++ {
				if table.Uses(pos, idx) {
					assert.True(t, res.Defaulted[pos], "%s should fall back", humanoid.JointName(pos))
					assert.Equal(t, table[pos].Default, res.Vector[pos])
					continue
				}
				assert.False(t, res.Defaulted[pos], "%s should be unaffected", humanoid.JointName(pos))
				assert.InDelta(t, base.Vector[pos], res.Vector[pos], 1e-9, "%s should be unaffected", humanoid.JointName(pos))
			}
		})
	}
}

func TestMap_ThresholdBoundary(t *testing.T) {
	a := standingPose()
	a[body25.RKnee].Confidence = DefaultMinConfidence
	res := Map(body25.FromArray(a))
	assert.False(t, res.Defaulted[humanoid.RightKnee], "confidence equal to the threshold is usable")

	a[body25.RKnee].Confidence = math.Nextafter(DefaultMinConfidence, 0)
	res = Map(body25.FromArray(a))
	assert.True(t, res.Defaulted[humanoid.RightKnee])
}

func TestMap_IgnoresKeypointsOutsideDerivationSet(t *testing.T) {
	base := Map(body25.FromArray(standingPose())).Vector

	a := standingPose()
	for _, idx := range []int{body25.Nose, body25.REye, body25.LEye, body25.REar, body25.LEar, body25.LSmallToe, body25.RSmallToe} {
		a[idx] = body25.Keypoint{X: -5e4, Y: 7e5, Confidence: 1}
	}
	assert.Equal(t, base, Map(body25.FromArray(a)).Vector)
}

func TestMap_Deterministic(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	for i := 0; i < 50; i++ {
		p := randomPose(r)
		first := Map(p)
		second := Map(p)
		assert.Equal(t, first.Vector, second.Vector)
		assert.Equal(t, first.Defaulted, second.Defaulted)
	}
}

func TestMap_AlwaysSeventeenFiniteValues(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 500; i++ {
		res := Map(randomPose(r))
		require.True(t, res.Ok())
		require.Len(t, res.Vector.Slice(), humanoid.NumJoints)
		require.True(t, res.Vector.Finite(), "iteration %d produced %v", i, res.Vector)
	}
}

func TestMap_PathologicalInputs(t *testing.T) {
	fill := func(k body25.Keypoint) body25.Pose {
		var a [body25.NumKeypoints]body25.Keypoint
		for i := range a {
			a[i] = k
		}
		return body25.FromArray(a)
	}

	tests := []struct {
		name string
		pose body25.Pose
	}{
		{"all zero", body25.FromArray([body25.NumKeypoints]body25.Keypoint{})},
		{"coincident confident points", fill(body25.Keypoint{X: 10, Y: 10, Confidence: 1})},
		{"all NaN", fill(body25.Keypoint{X: math.NaN(), Y: math.NaN(), Confidence: 1})},
		{"all Inf", fill(body25.Keypoint{X: math.Inf(1), Y: math.Inf(-1), Confidence: 1})},
		{"huge coordinates", fill(body25.Keypoint{X: math.MaxFloat64, Y: -math.MaxFloat64, Confidence: 1})},
		{"NaN confidence", fill(body25.Keypoint{X: 3, Y: 4, Confidence: math.NaN()})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Map(tt.pose)
			require.True(t, res.Ok())
			assert.True(t, res.Vector.Finite())
			assert.Equal(t, humanoid.NumJoints, res.DefaultedCount())
		})
	}
}

func TestMap_HugeSpreadStaysFinite(t *testing.T) {
	a := standingPose()
	a[body25.MidHip] = body25.Keypoint{X: -math.MaxFloat64, Y: math.MaxFloat64, Confidence: 1}
	a[body25.Neck] = body25.Keypoint{X: math.MaxFloat64, Y: -math.MaxFloat64, Confidence: 1}
	res := Map(body25.FromArray(a))
	assert.True(t, res.Vector.Finite())
}

func TestNewMapper_Validation(t *testing.T) {
	_, err := NewMapper(DefaultTable(), -0.1)
	assert.Error(t, err)
	_, err = NewMapper(DefaultTable(), 1.5)
	assert.Error(t, err)
	_, err = NewMapper(DefaultTable(), math.NaN())
	assert.Error(t, err)

	bad := DefaultTable()
	bad[humanoid.RightKnee].Points = []int{body25.RHip, body25.RKnee}
	_, err = NewMapper(bad, 0.2)
	assert.ErrorContains(t, err, "right_knee")
}

func TestNewMapper_CustomDefaultAndThreshold(t *testing.T) {
	table := DefaultTable()
	table[humanoid.LeftElbow].Default = 0.25

	m, err := NewMapper(table, 0.95)
	require.NoError(t, err)
	assert.Equal(t, 0.95, m.MinConfidence())

	// The fixture's 0.9 confidences are all below 0.95.
	res := m.Map(body25.FromArray(standingPose()))
	assert.Equal(t, humanoid.NumJoints, res.DefaultedCount())
	assert.Equal(t, 0.25, res.Vector[humanoid.LeftElbow])

	// Mutating the caller's table after construction has no effect.
	table[humanoid.LeftElbow].Default = 9
	table[humanoid.LeftElbow].Points[0] = body25.Nose
	assert.Equal(t, 0.25, m.Map(body25.FromArray(standingPose())).Vector[humanoid.LeftElbow])
	assert.Equal(t, body25.LShoulder, m.Table()[humanoid.LeftElbow].Points[0])
}

func TestMap_BentKnee(t *testing.T) {
	a := standingPose()
	// Swing the right ankle out sideways: 90 degrees at the knee.
	a[body25.RAnkle] = body25.Keypoint{X: a[body25.RKnee].X - 145, Y: a[body25.RKnee].Y, Confidence: 0.9}
	v := Map(body25.FromArray(a)).Vector
	assert.InDelta(t, math.Pi/2, v[humanoid.RightKnee], 0.05)
	assert.InDelta(t, 0, v[humanoid.LeftKnee], 0.1)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "mapped", Mapped.String())
	assert.Equal(t, "unmapped", Unmapped.String())
	assert.Equal(t, "Status(7)", Status(7).String())
}

func randomPose(r *rand.Rand) body25.Pose {
	var a [body25.NumKeypoints]body25.Keypoint
	for i := range a {
		a[i] = body25.Keypoint{
			X:          r.Float64()*2000 - 500,
			Y:          r.Float64()*2000 - 500,
			Confidence: r.Float64(),
		}
		switch r.IntN(20) {
		case 0:
			a[i].X = math.NaN()
		case 1:
			a[i].Y = math.Inf(1)
		case 2:
			a[i] = a[(i+1)%body25.NumKeypoints]
		}
	}
	return body25.FromArray(a)
}
