package scene

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

const parallelEpsilon = 1e-8

// Shape is a primitive a ray can be intersected with. Intersect returns the
// ray parameter of the nearest intersection in [tMin, tMax]; direction is
// unit length so t is a distance.
type Shape interface {
	Intersect(origin, direction r3.Vec, tMin, tMax float64) (float64, bool)
}

// Sphere is a solid sphere.
type Sphere struct {
	Center r3.Vec
	Radius float64
}

// Intersect solves the ray/sphere quadratic, trying the nearer root first.
func (s Sphere) Intersect(origin, direction r3.Vec, tMin, tMax float64) (float64, bool) {
	oc := r3.Sub(origin, s.Center)
	a := r3.Dot(direction, direction)
	halfB := r3.Dot(oc, direction)
	c := r3.Dot(oc, oc) - s.Radius*s.Radius

	disc := halfB*halfB - a*c
	if disc < 0 {
		return 0, false
	}
	sqrtD := math.Sqrt(disc)
	t := (-halfB - sqrtD) / a
	if t < tMin || t > tMax {
		t = (-halfB + sqrtD) / a
		if t < tMin || t > tMax {
			return 0, false
		}
	}
	return t, true
}

// Plane is an infinite plane through Point with the given Normal.
type Plane struct {
	Point  r3.Vec
	Normal r3.Vec
}

// Intersect returns the distance to the plane. Rays parallel to it miss.
func (p Plane) Intersect(origin, direction r3.Vec, tMin, tMax float64) (float64, bool) {
	n := r3.Unit(p.Normal)
	denom := r3.Dot(direction, n)
	if math.Abs(denom) < parallelEpsilon {
		return 0, false
	}
	t := r3.Dot(r3.Sub(p.Point, origin), n) / denom
	if t < tMin || t > tMax {
		return 0, false
	}
	return t, true
}

// Box is an axis-aligned box between Min and Max.
type Box struct {
	Min r3.Vec
	Max r3.Vec
}

// Intersect uses the slab method. A ray starting inside the box hits the
// far face.
func (b Box) Intersect(origin, direction r3.Vec, tMin, tMax float64) (float64, bool) {
	near, far := math.Inf(-1), math.Inf(1)
	axes := [3][4]float64{
		{b.Min.X, b.Max.X, origin.X, direction.X},
		{b.Min.Y, b.Max.Y, origin.Y, direction.Y},
		{b.Min.Z, b.Max.Z, origin.Z, direction.Z},
	}
	for _, a := range axes {
		lo, hi, o, d := a[0], a[1], a[2], a[3]
		if math.Abs(d) < parallelEpsilon {
			if o < lo || o > hi {
				return 0, false
			}
			continue
		}
		t1 := (lo - o) / d
		t2 := (hi - o) / d
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		near = math.Max(near, t1)
		far = math.Min(far, t2)
		if near > far {
			return 0, false
		}
	}
	switch {
	case near >= tMin && near <= tMax:
		return near, true
	case far >= tMin && far <= tMax:
		return far, true
	}
	return 0, false
}
