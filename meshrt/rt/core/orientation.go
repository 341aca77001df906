package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

type RotationPolicy int

const (
	RotationFromParticle RotationPolicy = iota
	RotationBillboard
	RotationAlignWithVelocity
)

func (r RotationPolicy) String() string {
	switch r {
	case RotationFromParticle:
		return "particle"
	case RotationBillboard:
		return "billboard"
	case RotationAlignWithVelocity:
		return "velocity"
	}
	return "unknown"
}

// ParseRotationPolicy accepts the names produced by RotationPolicy.String.
func ParseRotationPolicy(s string) (RotationPolicy, bool) {
	for _, r := range []RotationPolicy{RotationFromParticle, RotationBillboard, RotationAlignWithVelocity} {
		if r.String() == s {
			return r, true
		}
	}
	return RotationFromParticle, false
}

const degenerateEps = 1e-12

var forwardAxis = mgl32.Vec3{0, 0, 1}

// AngleAxis rotates by angle radians about axis. A zero axis means +Z.
func AngleAxis(angle float32, axis mgl32.Vec3) mgl32.Quat {
	if axis.LenSqr() < degenerateEps {
		axis = forwardAxis
	}
	return mgl32.QuatRotate(angle, axis.Normalize())
}

// LookRotation returns the rotation that maps +Z onto forward and +Y as
// close to up as possible. Zero forward gives identity; an up parallel to
// forward gives the shortest arc from +Z.
func LookRotation(forward, up mgl32.Vec3) mgl32.Quat {
	if forward.LenSqr() < degenerateEps {
		return mgl32.QuatIdent()
	}
	z := forward.Normalize()

	x := up.Cross(z)
	if x.LenSqr() < degenerateEps {
		return mgl32.QuatBetweenVectors(forwardAxis, z)
	}
	x = x.Normalize()
	y := z.Cross(x)

	return mgl32.Mat4ToQuat(mgl32.Mat3FromCols(x, y, z).Mat4()).Normalize()
}

// Orientation computes a particle's instance rotation for the given policy.
func Orientation(policy RotationPolicy, p *ParticleSample, cameraPos mgl32.Vec3) mgl32.Quat {
	switch policy {
	case RotationAlignWithVelocity:
		// Zero velocity resolves to identity through LookRotation.
		return LookRotation(p.Velocity, WorldUp)
	case RotationBillboard:
		forward := p.Position.Sub(cameraPos)
		left := forward.Cross(WorldUp)
		up := AngleAxis(p.Rotation, forward).Rotate(left.Cross(forward))
		return LookRotation(forward, up)
	default:
		return AngleAxis(p.Rotation, p.AxisOfRotation)
	}
}
