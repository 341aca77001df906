package instancing

import (
	"testing"

	"github.com/gekko3d/instancing/meshrt/rt/core"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitter_EmitRespectsCapacity(t *testing.T) {
	cfg := DefaultEmitterConfig()
	cfg.MaxParticles = 8
	em := NewParticleEmitter(cfg, 1)

	em.Emit(5)
	assert.Equal(t, 5, em.Alive())
	em.Emit(10)
	assert.Equal(t, 8, em.Alive())
	assert.Equal(t, 8, em.MaxParticles())
}

func TestEmitter_SimulateSpawnsAndRetires(t *testing.T) {
	cfg := DefaultEmitterConfig()
	cfg.MaxParticles = 100
	cfg.SpawnRate = 60
	cfg.LifetimeRange = [2]float32{0.5, 0.5}
	em := NewParticleEmitter(cfg, 2)

	// 0.25s at 60/s spawns 15 particles.
	for i := 0; i < 15; i++ {
		em.Simulate(1.0 / 60.0)
	}
	assert.InDelta(t, 15, em.Alive(), 1)

	cfg.SpawnRate = 0
	em.Config = cfg
	for i := 0; i < 60; i++ {
		em.Simulate(1.0 / 60.0)
	}
	assert.Zero(t, em.Alive(), "every particle outlived its lifetime")
}

func TestEmitter_Snapshot(t *testing.T) {
	cfg := DefaultEmitterConfig()
	cfg.MaxParticles = 10
	cfg.ConeAngleDegrees = 0
	cfg.SpawnRate = 0
	cfg.Gravity = 0
	cfg.Drag = 0
	cfg.StartSpeedRange = [2]float32{2, 2}
	em := NewParticleEmitter(cfg, 3)
	em.Transform.Position = mgl32.Vec3{1, 0, 0}
	em.Emit(3)
	em.Simulate(0.5)

	dst := make([]core.ParticleSample, 2)
	require.Equal(t, 2, em.Particles(dst))

	for _, p := range dst {
		want := mgl32.Vec3{1, 1, 0}
		assert.InDeltaSlice(t, want[:], p.Position[:], 1e-4, "got %v", p.Position)
		assert.Equal(t, p.Size.X(), p.Size.Z())
		assert.InDelta(t, 0.5, p.Age, 1e-6)
		assert.Greater(t, p.Lifetime, float32(0))
	}
}

func TestEmitter_SeedIsReproducible(t *testing.T) {
	a := NewParticleEmitter(DefaultEmitterConfig(), 42)
	b := NewParticleEmitter(DefaultEmitterConfig(), 42)
	for i := 0; i < 30; i++ {
		a.Simulate(1.0 / 60.0)
		b.Simulate(1.0 / 60.0)
	}

	pa := make([]core.ParticleSample, a.MaxParticles())
	pb := make([]core.ParticleSample, b.MaxParticles())
	na, nb := a.Particles(pa), b.Particles(pb)
	require.Equal(t, na, nb)
	assert.Equal(t, pa[:na], pb[:nb])
}

func TestEmitter_Bounds(t *testing.T) {
	cfg := DefaultEmitterConfig()
	cfg.MaxParticles = 32
	cfg.SpawnRate = 0
	em := NewParticleEmitter(cfg, 3)

	_, _, ok := em.Bounds()
	assert.False(t, ok)

	em.Emit(32)
	em.Simulate(0.25)

	box, maxSize, ok := em.Bounds()
	require.True(t, ok)
	assert.LessOrEqual(t, maxSize, cfg.StartSizeRange[1])
	assert.GreaterOrEqual(t, maxSize, cfg.StartSizeRange[0])

	snap := make([]core.ParticleSample, em.MaxParticles())
	n := em.Particles(snap)
	for _, p := range snap[:n] {
		for axis := 0; axis < 3; axis++ {
			assert.GreaterOrEqual(t, p.Position[axis], box[0][axis])
			assert.LessOrEqual(t, p.Position[axis], box[1][axis])
		}
	}

	var _ BoundedSource = em
}

func TestEmitter_RandomSeedStableAcrossSwapRemove(t *testing.T) {
	cfg := DefaultEmitterConfig()
	cfg.MaxParticles = 16
	cfg.SpawnRate = 0
	cfg.LifetimeRange = [2]float32{0.2, 0.2}
	em := NewParticleEmitter(cfg, 9)
	em.Emit(8)
	em.Config.LifetimeRange = [2]float32{5, 5}
	em.Emit(8)

	before := make([]core.ParticleSample, em.MaxParticles())
	n := em.Particles(before)
	bySeed := map[uint32][4]float32{}
	for _, p := range before[:n] {
		bySeed[p.RandomSeed] = p.Color
	}
	require.Len(t, bySeed, n, "seeds are distinct")

	// The short-lived first half dies and the rest is swapped into its slots.
	em.Simulate(0.5)
	require.Equal(t, 8, em.Alive())

	after := make([]core.ParticleSample, em.MaxParticles())
	for _, p := range after[:em.Particles(after)] {
		color, ok := bySeed[p.RandomSeed]
		require.True(t, ok)
		assert.Equal(t, color, p.Color, "seed travels with its particle")
		assert.Equal(t, float32(5), p.Lifetime)
	}
}
