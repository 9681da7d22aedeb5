package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// OrbitControls moves a camera on a sphere around its target using azimuth,
// elevation and radius, with optional auto-rotation and damping.
type OrbitControls struct {
	Camera *Camera

	// Enabled gates user input. Auto-rotation runs regardless.
	Enabled bool

	AutoRotate bool

	// RotationSpeed is the auto-rotation rate in radians per second.
	RotationSpeed float64

	// Damping is the fraction of input velocity kept per 1/60 s, in [0, 1).
	Damping float64

	MinRadius, MaxRadius float64

	azimuth, elevation, radius float64
	vAzimuth, vElevation       float64
}

const maxElevation = math.Pi/2 - 0.01

// NewOrbitControls derives azimuth, elevation and radius from the camera's
// current position relative to its target.
func NewOrbitControls(cam *Camera) *OrbitControls {
	o := &OrbitControls{
		Camera:        cam,
		Enabled:       true,
		RotationSpeed: 0.5,
		Damping:       0.9,
		MinRadius:     1,
		MaxRadius:     100,
	}
	off := cam.Position.Sub(cam.Target)
	o.radius = float64(off.Len())
	if o.radius > 0 {
		o.elevation = math.Asin(float64(off[1]) / o.radius)
	}
	o.azimuth = math.Atan2(float64(off[0]), float64(off[2]))
	return o
}

// Rotate applies user drag input in radians.
func (o *OrbitControls) Rotate(dAzimuth, dElevation float64) {
	if !o.Enabled {
		return
	}
	o.vAzimuth += dAzimuth
	o.vElevation += dElevation
}

// Zoom scales the orbit radius by factor, clamped to [MinRadius, MaxRadius].
func (o *OrbitControls) Zoom(factor float64) {
	if !o.Enabled || factor <= 0 {
		return
	}
	o.radius = clamp(o.radius*factor, o.MinRadius, o.MaxRadius)
}

// Azimuth returns the current azimuth in radians.
func (o *OrbitControls) Azimuth() float64 { return o.azimuth }

// Elevation returns the current elevation in radians.
func (o *OrbitControls) Elevation() float64 { return o.elevation }

// Radius returns the current distance to the target.
func (o *OrbitControls) Radius() float64 { return o.radius }

// Update advances the controls by dt seconds and repositions the camera.
func (o *OrbitControls) Update(dt float64) {
	if o.AutoRotate {
		o.azimuth += o.RotationSpeed * dt
	}
	o.azimuth += o.vAzimuth
	o.elevation = clamp(o.elevation+o.vElevation, -maxElevation, maxElevation)

	keep := math.Pow(clamp(o.Damping, 0, 0.999), dt*60)
	o.vAzimuth *= keep
	o.vElevation *= keep

	cosE := math.Cos(o.elevation)
	off := mgl32.Vec3{
		float32(o.radius * cosE * math.Sin(o.azimuth)),
		float32(o.radius * math.Sin(o.elevation)),
		float32(o.radius * cosE * math.Cos(o.azimuth)),
	}
	o.Camera.Position = o.Camera.Target.Add(off)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
