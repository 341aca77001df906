package instancing

import (
	"math"
	"math/rand"

	"github.com/gekko3d/instancing/meshrt/rt/core"
	"github.com/go-gl/mathgl/mgl32"
)

// EmitterConfig controls a CPU-simulated particle emitter.
type EmitterConfig struct {
	MaxParticles int

	SpawnRate            float32    // particles per second
	LifetimeRange        [2]float32 // seconds (min,max)
	StartSpeedRange      [2]float32 // units/sec (min,max)
	StartSizeRange       [2]float32 // world units (min,max)
	AngularVelocityRange [2]float32 // radians/sec (min,max)
	StartColorMin        [4]float32 // RGBA min (0..1)
	StartColorMax        [4]float32 // RGBA max (0..1)
	Gravity              float32    // positive acceleration downward (m/s^2)
	Drag                 float32    // per-second linear drag (0..inf)
	ConeAngleDegrees     float32    // 0=along emitter up axis; larger spreads
}

func DefaultEmitterConfig() EmitterConfig {
	return EmitterConfig{
		MaxParticles:         1000,
		SpawnRate:            200,
		LifetimeRange:        [2]float32{2, 4},
		StartSpeedRange:      [2]float32{4, 8},
		StartSizeRange:       [2]float32{0.2, 0.6},
		AngularVelocityRange: [2]float32{-2, 2},
		StartColorMin:        [4]float32{0.8, 0.4, 0.1, 1},
		StartColorMax:        [4]float32{1, 0.8, 0.3, 1},
		Gravity:              4,
		Drag:                 0.1,
		ConeAngleDegrees:     25,
	}
}

// ParticleEmitter is a fixed-size particle pool (SoA, swap-remove on death)
// that implements ParticleSource.
type ParticleEmitter struct {
	Config    EmitterConfig
	Transform *core.Transform

	pos    []mgl32.Vec3
	vel    []mgl32.Vec3
	axis   []mgl32.Vec3
	rot    []float32
	angVel []float32
	age    []float32
	life   []float32
	size   []float32
	color  [][4]float32
	seed   []uint32

	alive    int
	spawnAcc float32 // fractional spawns accumulator
	rng      *rand.Rand
}

func NewParticleEmitter(cfg EmitterConfig, seed int64) *ParticleEmitter {
	e := &ParticleEmitter{
		Config:    cfg,
		Transform: core.NewTransform(),
		rng:       rand.New(rand.NewSource(seed)),
	}
	e.ensurePool()
	return e
}

func (e *ParticleEmitter) ensurePool() {
	n := e.Config.MaxParticles
	if n <= 0 {
		n = 1
	}
	if len(e.pos) == n {
		return
	}
	e.pos = make([]mgl32.Vec3, n)
	e.vel = make([]mgl32.Vec3, n)
	e.axis = make([]mgl32.Vec3, n)
	e.rot = make([]float32, n)
	e.angVel = make([]float32, n)
	e.age = make([]float32, n)
	e.life = make([]float32, n)
	e.size = make([]float32, n)
	e.color = make([][4]float32, n)
	e.seed = make([]uint32, n)
	e.alive = 0
	e.spawnAcc = 0
}

func (e *ParticleEmitter) MaxParticles() int { return len(e.pos) }

func (e *ParticleEmitter) Alive() int { return e.alive }

// Particles copies the live particles, oldest slots first, into dst.
func (e *ParticleEmitter) Particles(dst []core.ParticleSample) int {
	n := min(e.alive, len(dst))
	for i := 0; i < n; i++ {
		s := e.size[i]
		dst[i] = core.ParticleSample{
			Position:       e.pos[i],
			Velocity:       e.vel[i],
			Rotation:       e.rot[i],
			AxisOfRotation: e.axis[i],
			Size:           mgl32.Vec3{s, s, s},
			Color:          e.color[i],
			Age:            e.age[i],
			Lifetime:       e.life[i],
			RandomSeed:     e.seed[i],
		}
	}
	return n
}

// Bounds returns the box around every live particle position and the
// largest live particle size. ok is false when nothing is alive.
func (e *ParticleEmitter) Bounds() (box [2]mgl32.Vec3, maxSize float32, ok bool) {
	if e.alive == 0 {
		return box, 0, false
	}
	box = [2]mgl32.Vec3{e.pos[0], e.pos[0]}
	for i := 0; i < e.alive; i++ {
		p := e.pos[i]
		for axis := 0; axis < 3; axis++ {
			box[0][axis] = min(box[0][axis], p[axis])
			box[1][axis] = max(box[1][axis], p[axis])
		}
		maxSize = max(maxSize, e.size[i])
	}
	return box, maxSize, true
}

// Emit spawns up to count particles immediately.
func (e *ParticleEmitter) Emit(count int) {
	e.ensurePool()
	count = min(count, len(e.pos)-e.alive)
	for i := 0; i < count; i++ {
		e.spawn()
	}
}

func lerp(a, b, t float32) float32 { return a + (b-a)*t }

func (e *ParticleEmitter) spawn() {
	cfg := &e.Config
	idx := e.alive
	e.alive++

	e.pos[idx] = e.Transform.Position

	dir := e.sampleDirection()
	speed := lerp(cfg.StartSpeedRange[0], cfg.StartSpeedRange[1], e.rng.Float32())
	e.vel[idx] = dir.Mul(speed)

	e.axis[idx] = e.sampleDirection()
	e.rot[idx] = e.rng.Float32() * 2 * math.Pi
	e.angVel[idx] = lerp(cfg.AngularVelocityRange[0], cfg.AngularVelocityRange[1], e.rng.Float32())

	e.age[idx] = 0
	e.life[idx] = lerp(cfg.LifetimeRange[0], cfg.LifetimeRange[1], e.rng.Float32())
	e.size[idx] = lerp(cfg.StartSizeRange[0], cfg.StartSizeRange[1], e.rng.Float32())

	var c [4]float32
	for j := 0; j < 4; j++ {
		c[j] = lerp(cfg.StartColorMin[j], cfg.StartColorMax[j], e.rng.Float32())
	}
	e.color[idx] = c
	e.seed[idx] = e.rng.Uint32()
}

// sampleDirection picks a direction uniformly in a cone around the
// emitter's up axis, rotated by the emitter rotation.
func (e *ParticleEmitter) sampleDirection() mgl32.Vec3 {
	rot := e.Transform.Rotation
	if e.Config.ConeAngleDegrees <= 0 {
		return rot.Rotate(core.WorldUp).Normalize()
	}
	thetaMax := float64(mgl32.DegToRad(e.Config.ConeAngleDegrees))
	cosTheta := lerp(float32(math.Cos(thetaMax)), 1.0, e.rng.Float32())
	sinTheta := float32(math.Sqrt(float64(1.0 - cosTheta*cosTheta)))
	phi := 2.0 * math.Pi * float64(e.rng.Float32())

	local := mgl32.Vec3{
		float32(math.Cos(phi)) * sinTheta,
		cosTheta,
		float32(math.Sin(phi)) * sinTheta,
	}
	return rot.Rotate(local).Normalize()
}

// Swap-remove one particle
func (e *ParticleEmitter) killAt(i int) {
	last := e.alive - 1
	e.pos[i] = e.pos[last]
	e.vel[i] = e.vel[last]
	e.axis[i] = e.axis[last]
	e.rot[i] = e.rot[last]
	e.angVel[i] = e.angVel[last]
	e.age[i] = e.age[last]
	e.life[i] = e.life[last]
	e.size[i] = e.size[last]
	e.color[i] = e.color[last]
	e.seed[i] = e.seed[last]
	e.alive--
}

// Simulate spawns, integrates and retires particles over dt seconds.
func (e *ParticleEmitter) Simulate(dt float32) {
	e.ensurePool()
	if dt <= 0 {
		dt = 1.0 / 60.0
	}
	cfg := &e.Config

	e.spawnAcc += cfg.SpawnRate * dt
	spawnCount := int(e.spawnAcc)
	if spawnCount > 0 {
		e.spawnAcc -= float32(spawnCount)
	}
	e.Emit(spawnCount)

	drag := float32(math.Max(0, float64(1.0-cfg.Drag*dt)))
	gravity := mgl32.Vec3{0, -cfg.Gravity * dt, 0}

	i := 0
	for i < e.alive {
		age := e.age[i] + dt
		if age >= e.life[i] {
			e.killAt(i)
			continue
		}

		v := e.vel[i].Add(gravity).Mul(drag)
		e.vel[i] = v
		e.pos[i] = e.pos[i].Add(v.Mul(dt))
		e.rot[i] += e.angVel[i] * dt
		e.age[i] = age
		i++
	}
}

// Update advances the emitter by the frame delta.
func (e *ParticleEmitter) Update(t *Time) {
	e.Simulate(t.Seconds())
}
