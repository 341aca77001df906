package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// WorldUp is the engine up axis used by billboards and look rotations.
var WorldUp = mgl32.Vec3{0, 1, 0}

type CameraState struct {
	Position    mgl32.Vec3
	Yaw         float32
	Pitch       float32
	FovY        float32 // degrees
	Near        float32
	Far         float32
	Speed       float32
	Sensitivity float32
}

func NewCameraState() *CameraState {
	return &CameraState{
		Position:    mgl32.Vec3{0, 2, 20},
		FovY:        60,
		Near:        0.1,
		Far:         1000,
		Speed:       10.0,
		Sensitivity: 0.003,
	}
}

// GetForward returns the view direction. Yaw 0 looks down -Z.
func (c *CameraState) GetForward() mgl32.Vec3 {
	return mgl32.Vec3{
		float32(math.Cos(float64(c.Pitch)) * math.Sin(float64(c.Yaw))),
		float32(math.Sin(float64(c.Pitch))),
		float32(-math.Cos(float64(c.Pitch)) * math.Cos(float64(c.Yaw))),
	}
}

func (c *CameraState) GetRight() mgl32.Vec3 {
	return mgl32.Vec3{
		float32(math.Cos(float64(c.Yaw))),
		0,
		float32(math.Sin(float64(c.Yaw))),
	}
}

func (c *CameraState) GetViewMatrix() mgl32.Mat4 {
	eye := c.Position
	return mgl32.LookAtV(eye, eye.Add(c.GetForward()), WorldUp)
}

func (c *CameraState) GetProjectionMatrix(aspect float32) mgl32.Mat4 {
	if aspect <= 0 {
		aspect = 1
	}
	return mgl32.Perspective(mgl32.DegToRad(c.FovY), aspect, c.Near, c.Far)
}

// View captures what the batch builder needs from the camera for one frame.
func (c *CameraState) View(aspect float32) View {
	vp := c.GetProjectionMatrix(aspect).Mul4(c.GetViewMatrix())
	return View{
		Position: c.Position,
		ViewProj: vp,
		Planes:   c.ExtractFrustum(vp),
	}
}

// ExtractFrustum extracts the 6 planes of the frustum from the view-projection matrix.
// Returns planes in order: Left, Right, Bottom, Top, Near, Far.
// Plane is Ax + By + Cz + D = 0 with the normal pointing inside.
func (c *CameraState) ExtractFrustum(vp mgl32.Mat4) [6]mgl32.Vec4 {
	return ExtractFrustum(vp)
}

func ExtractFrustum(vp mgl32.Mat4) [6]mgl32.Vec4 {
	r0, r1, r2, r3 := vp.Rows()

	planes := [6]mgl32.Vec4{
		r3.Add(r0), // left
		r3.Sub(r0), // right
		r3.Add(r1), // bottom
		r3.Sub(r1), // top
		r3.Add(r2), // near, GL style -1..1
		r3.Sub(r2), // far
	}

	for i := range planes {
		length := planes[i].Vec3().Len()
		if length > 0 {
			planes[i] = planes[i].Mul(1.0 / length)
		}
	}
	return planes
}

// View is a per-frame camera snapshot.
type View struct {
	Position mgl32.Vec3
	ViewProj mgl32.Mat4
	Planes   [6]mgl32.Vec4
}
