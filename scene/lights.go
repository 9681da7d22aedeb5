package scene

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Lights is the fixed directional light rig shared by every backend,
// strongest first. Quality settings select a prefix of it.
var Lights = []mgl32.Vec3{
	mgl32.Vec3{0.4, 0.8, 0.45}.Normalize(),
	mgl32.Vec3{-0.6, 0.5, 0.6}.Normalize(),
	{0, -1, 0},
	mgl32.Vec3{0.7, 0.2, -0.7}.Normalize(),
	mgl32.Vec3{-0.7, 0.2, -0.7}.Normalize(),
	{1, 0, 0},
	{-1, 0, 0},
	{0, 0, 1},
}

// KeyLightViewProjection returns the orthographic light-space transform
// used by shadow passes. It covers a 20x20 area around the origin.
func KeyLightViewProjection() mgl32.Mat4 {
	view := mgl32.LookAtV(Lights[0].Mul(20), mgl32.Vec3{}, mgl32.Vec3{0, 0, 1})
	return mgl32.Ortho(-10, 10, -10, 10, 0.1, 50).Mul4(view)
}
