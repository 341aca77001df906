package core

import "github.com/go-gl/mathgl/mgl32"

// ParticleSample is one live particle as reported by a particle source.
// It is only valid for the frame it was sampled in.
type ParticleSample struct {
	Position       mgl32.Vec3
	Velocity       mgl32.Vec3
	Rotation       float32 // radians about AxisOfRotation
	AxisOfRotation mgl32.Vec3
	Size           mgl32.Vec3
	Color          [4]float32

	Age      float32 // seconds since spawn
	Lifetime float32 // total lifetime in seconds

	// RandomSeed is fixed at spawn, for per-particle choices that must not
	// change from frame to frame.
	RandomSeed uint32
}

// NormalizedAge is Age/Lifetime clamped to [0,1].
func (p ParticleSample) NormalizedAge() float32 {
	if p.Lifetime <= 0 {
		return 1
	}
	t := p.Age / p.Lifetime
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}
