package scan

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// DiscPolicy generates instant-scan rays: the forward axis jittered by a
// point drawn uniformly from a disc of Radius in the right/up plane.
type DiscPolicy struct {
	RayCount int
	Radius   float64
}

// Offset draws a point uniformly distributed over the disc area. The square
// root keeps the areal density flat; drawing the radius directly would crowd
// samples near the centre.
func (p DiscPolicy) Offset(rng RandomSource) (x, y float64) {
	if p.Radius <= 0 {
		return 0, 0
	}
	u := uniform(rng, 0, p.Radius)
	angle := uniform(rng, 0, 2*math.Pi)
	r := math.Sqrt(u * p.Radius)
	return r * math.Cos(angle), r * math.Sin(angle)
}

// Directions returns RayCount unit ray directions for pose. A non-positive
// RayCount yields no rays.
func (p DiscPolicy) Directions(pose Pose, rng RandomSource) []r3.Vec {
	if p.RayCount <= 0 {
		return nil
	}
	forward, right, up := pose.Axes()
	dirs := make([]r3.Vec, 0, p.RayCount)
	for i := 0; i < p.RayCount; i++ {
		x, y := p.Offset(rng)
		d := r3.Add(forward, r3.Add(r3.Scale(x, right), r3.Scale(y, up)))
		dirs = append(dirs, r3.Unit(d))
	}
	return dirs
}

// SweepPolicy generates one horizontal line of sweep-scan rays at a fixed
// vertical angle.
type SweepPolicy struct {
	RayCount        int
	HorizontalAngle float64 // degrees, full width of the line
}

// Step returns the angular spacing between adjacent rays in degrees.
func (p SweepPolicy) Step() float64 {
	if p.RayCount <= 0 {
		return 0
	}
	return p.HorizontalAngle / float64(p.RayCount)
}

// Yaws returns the jittered horizontal angle of each ray, relative to the
// camera. Each ray stays within half a step of its slot to avoid banding.
func (p SweepPolicy) Yaws(rng RandomSource) []float64 {
	if p.RayCount <= 0 {
		return nil
	}
	step := p.Step()
	yaws := make([]float64, p.RayCount)
	for i := range yaws {
		base := -p.HorizontalAngle/2 + float64(i)*step
		yaws[i] = base + uniform(rng, -step/2, step/2)
	}
	return yaws
}

// Directions returns the ray directions for one sweep line. verticalAngle is
// shared by every ray in the line.
func (p SweepPolicy) Directions(pose Pose, verticalAngle float64, rng RandomSource) []r3.Vec {
	yaws := p.Yaws(rng)
	if len(yaws) == 0 {
		return nil
	}
	camera := pose.Rotation.Rotation()
	dirs := make([]r3.Vec, len(yaws))
	for i, yaw := range yaws {
		local := Rotator{Pitch: verticalAngle, Yaw: yaw}.Rotation()
		dirs[i] = compose(camera, local).Rotate(axisForward)
	}
	return dirs
}
