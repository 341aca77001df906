package core

import "github.com/go-gl/mathgl/mgl32"

// IsSphereInFrustum reports whether a sphere intersects or lies inside the
// frustum. Planes follow ExtractFrustum: normalised, normal pointing inside.
// Padding widens the radius so instances do not pop at the screen edges.
func IsSphereInFrustum(planes [6]mgl32.Vec4, center mgl32.Vec3, radius, padding float32) bool {
	if radius < 0 {
		radius = 0
	}
	if padding < 0 {
		padding = 0
	}
	limit := -(radius + padding)

	for i := 0; i < 6; i++ {
		plane := planes[i]
		dist := plane[0]*center[0] + plane[1]*center[1] + plane[2]*center[2] + plane[3]
		if dist < limit {
			return false
		}
	}
	return true
}

// AABBInFrustum reports whether the box {min, max} is at least partly
// inside the frustum. It tests the most-inside corner against each plane,
// so boxes near frustum corners can pass while outside.
func AABBInFrustum(aabb [2]mgl32.Vec3, planes [6]mgl32.Vec4) bool {
	for i := 0; i < 6; i++ {
		plane := planes[i]

		var p mgl32.Vec3
		for axis := 0; axis < 3; axis++ {
			if plane[axis] > 0 {
				p[axis] = aabb[1][axis]
			} else {
				p[axis] = aabb[0][axis]
			}
		}

		if plane[0]*p[0]+plane[1]*p[1]+plane[2]*p[2]+plane[3] < 0 {
			return false
		}
	}
	return true
}

// ExpandAABB grows a box by margin on every side.
func ExpandAABB(aabb [2]mgl32.Vec3, margin float32) [2]mgl32.Vec3 {
	m := mgl32.Vec3{margin, margin, margin}
	return [2]mgl32.Vec3{aabb[0].Sub(m), aabb[1].Add(m)}
}
