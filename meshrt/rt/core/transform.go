package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

type Transform struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3
}

func NewTransform() *Transform {
	return &Transform{
		Position: mgl32.Vec3{0, 0, 0},
		Rotation: mgl32.QuatIdent(),
		Scale:    mgl32.Vec3{1, 1, 1},
	}
}

func (t *Transform) ObjectToWorld() mgl32.Mat4 {
	return ComposeTRS(t.Position, t.Rotation, t.Scale)
}

// ComposeTRS builds M = T * R * S.
func ComposeTRS(pos mgl32.Vec3, rot mgl32.Quat, scale mgl32.Vec3) mgl32.Mat4 {
	translate := mgl32.Translate3D(pos.X(), pos.Y(), pos.Z())
	rotate := rot.Mat4()
	s := mgl32.Scale3D(scale.X(), scale.Y(), scale.Z())

	return translate.Mul4(rotate).Mul4(s)
}

// TranslationOf returns the translation column of an affine transform.
func TranslationOf(m mgl32.Mat4) mgl32.Vec3 {
	return m.Col(3).Vec3()
}

// MulComponents is the component-wise (Hadamard) product.
func MulComponents(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}

func maxComponent(v mgl32.Vec3) float32 {
	m := v[0]
	if v[1] > m {
		m = v[1]
	}
	if v[2] > m {
		m = v[2]
	}
	return m
}
