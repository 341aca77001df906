package core

import (
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// originView is a camera at the origin looking down -Z.
func originView() View {
	cam := NewCameraState()
	cam.Position = mgl32.Vec3{}
	return cam.View(1.0)
}

func unitParticle(pos mgl32.Vec3) ParticleSample {
	return ParticleSample{
		Position: pos,
		Size:     mgl32.Vec3{1, 1, 1},
	}
}

func randomParticles(seed int64, n int) []ParticleSample {
	r := rand.New(rand.NewSource(seed))
	ps := make([]ParticleSample, n)
	for i := range ps {
		ps[i] = ParticleSample{
			Position:       mgl32.Vec3{r.Float32()*40 - 20, r.Float32()*40 - 20, -r.Float32() * 80},
			Velocity:       mgl32.Vec3{r.Float32() - 0.5, r.Float32(), r.Float32() - 0.5},
			Rotation:       r.Float32() * 6,
			AxisOfRotation: mgl32.Vec3{0, 1, 0},
			Size:           mgl32.Vec3{1, 1, 1}.Mul(0.5 + r.Float32()),
		}
	}
	return ps
}

func TestBuild_Empty(t *testing.T) {
	b := NewBatchBuilder(16)
	buf := b.Build(nil, DefaultBatchConfig(), originView())
	assert.Equal(t, 0, buf.Count())
	assert.Empty(t, buf.Indices)
}

func TestBuild_DepthOrderScenario(t *testing.T) {
	particles := []ParticleSample{
		unitParticle(mgl32.Vec3{0, 0, -5}),
		unitParticle(mgl32.Vec3{0, 0, -1}),
		unitParticle(mgl32.Vec3{0, 0, -3}),
	}

	b := NewBatchBuilder(16)
	cfg := DefaultBatchConfig()
	cfg.SortByDepth = true

	cfg.SortOrder = NearestFirst
	buf := b.Build(particles, cfg, originView())
	assert.Equal(t, []int{1, 2, 0}, buf.Indices)

	cfg.SortOrder = FarthestFirst
	buf = b.Build(particles, cfg, originView())
	assert.Equal(t, []int{0, 2, 1}, buf.Indices)
}

func TestBuild_UnsortedKeepsParticleOrder(t *testing.T) {
	particles := randomParticles(3, 40)
	b := NewBatchBuilder(64)

	buf := b.Build(particles, DefaultBatchConfig(), originView())
	require.Equal(t, 40, buf.Count())
	for i, idx := range buf.Indices {
		assert.Equal(t, i, idx)
	}
	for _, c := range b.Candidates() {
		assert.Zero(t, c.DepthKey)
	}
}

func TestBuild_DepthMonotonic(t *testing.T) {
	particles := randomParticles(5, 500)
	view := originView()
	b := NewBatchBuilder(MaxInstancesPerDraw)

	for _, order := range []SortOrder{NearestFirst, FarthestFirst} {
		cfg := DefaultBatchConfig()
		cfg.SortByDepth = true
		cfg.SortOrder = order
		cfg.Rotation = RotationBillboard

		buf := b.Build(particles, cfg, view)
		require.Equal(t, len(particles), buf.Count())

		prev := float32(-1)
		for i, m := range buf.Transforms {
			d := TranslationOf(m).Sub(view.Position).LenSqr()
			if i > 0 {
				if order == NearestFirst {
					assert.GreaterOrEqual(t, d, prev, "instance %d", i)
				} else {
					assert.LessOrEqual(t, d, prev, "instance %d", i)
				}
			}
			prev = d
		}
	}
}

func TestBuild_CapacityTruncation(t *testing.T) {
	particles := randomParticles(9, 50)

	b := NewBatchBuilder(10)
	buf := b.Build(particles, DefaultBatchConfig(), originView())
	require.Equal(t, 10, buf.Count())
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, buf.Indices)

	// Config capacity below the builder capacity wins, and sorting only
	// reorders the accepted prefix.
	b = NewBatchBuilder(MaxInstancesPerDraw)
	cfg := DefaultBatchConfig()
	cfg.Capacity = 7
	cfg.SortByDepth = true
	buf = b.Build(particles, cfg, originView())
	require.Equal(t, 7, buf.Count())
	assert.ElementsMatch(t, []int{0, 1, 2, 3, 4, 5, 6}, buf.Indices)

	// Config capacity above the builder capacity is clamped.
	b = NewBatchBuilder(5)
	cfg.Capacity = 500
	assert.Equal(t, 5, b.Build(particles, cfg, originView()).Count())
}

func TestBuild_Deterministic(t *testing.T) {
	particles := randomParticles(21, 300)
	cfg := DefaultBatchConfig()
	cfg.SortByDepth = true
	cfg.FrustumCull = true
	cfg.Rotation = RotationAlignWithVelocity

	b := NewBatchBuilder(MaxInstancesPerDraw)
	first := b.Build(particles, cfg, originView())
	transforms := append([]mgl32.Mat4(nil), first.Transforms...)
	indices := append([]int(nil), first.Indices...)

	second := b.Build(particles, cfg, originView())
	assert.Equal(t, transforms, second.Transforms)
	assert.Equal(t, indices, second.Indices)
}

func TestBuild_FrustumCull(t *testing.T) {
	particles := []ParticleSample{
		unitParticle(mgl32.Vec3{0, 0, -10}), // visible
		unitParticle(mgl32.Vec3{0, 0, 10}),  // behind
		unitParticle(mgl32.Vec3{500, 0, -10}),
		unitParticle(mgl32.Vec3{0, 1, -20}), // visible
	}
	cfg := DefaultBatchConfig()
	cfg.FrustumCull = true

	b := NewBatchBuilder(8)
	buf := b.Build(particles, cfg, originView())
	assert.Equal(t, []int{0, 3}, buf.Indices)

	// Culling off draws everything.
	cfg.FrustumCull = false
	assert.Equal(t, 4, b.Build(particles, cfg, originView()).Count())
}

func TestBuild_CullUsesScaledBoundRadius(t *testing.T) {
	// Just outside the left plane of a 60 degree frustum.
	p := unitParticle(mgl32.Vec3{-13, 0, -20})
	cfg := DefaultBatchConfig()
	cfg.FrustumCull = true
	cfg.BoundRadius = 0.5

	b := NewBatchBuilder(4)
	assert.Equal(t, 0, b.Build([]ParticleSample{p}, cfg, originView()).Count())

	cfg.MeshScale = mgl32.Vec3{1, 8, 1}
	assert.Equal(t, 1, b.Build([]ParticleSample{p}, cfg, originView()).Count())

	cfg.MeshScale = mgl32.Vec3{1, 1, 1}
	cfg.FrustumPadding = 5
	assert.Equal(t, 1, b.Build([]ParticleSample{p}, cfg, originView()).Count())
}

func TestBuild_OffsetAndScale(t *testing.T) {
	p := ParticleSample{
		Position: mgl32.Vec3{1, 2, -3},
		Size:     mgl32.Vec3{1, 2, 3},
	}
	cfg := DefaultBatchConfig()
	cfg.MeshOffset = mgl32.Vec3{0, 1, 0}
	cfg.MeshScale = mgl32.Vec3{2, 2, 2}

	b := NewBatchBuilder(1)
	buf := b.Build([]ParticleSample{p}, cfg, originView())
	require.Equal(t, 1, buf.Count())

	want := mgl32.Translate3D(1, 3, -3).Mul4(mgl32.Scale3D(2, 4, 6))
	got := buf.Transforms[0]
	assert.InDeltaSlice(t, want[:], got[:], 1e-5, "got %v", got)
}

func TestBuild_OffsetFollowsRotation(t *testing.T) {
	p := ParticleSample{
		Position: mgl32.Vec3{0, 0, -10},
		Velocity: mgl32.Vec3{1, 0, 0},
		Size:     mgl32.Vec3{1, 1, 1},
	}
	cfg := DefaultBatchConfig()
	cfg.Rotation = RotationAlignWithVelocity
	cfg.MeshOffset = mgl32.Vec3{0, 0, 2}

	buf := NewBatchBuilder(1).Build([]ParticleSample{p}, cfg, originView())
	assertVec3Near(t, mgl32.Vec3{2, 0, -10}, TranslationOf(buf.Transforms[0]), "offset along velocity")
}
