// Package scene is a small analytic scene used as the ray-cast oracle for the
// simulator and in tests. Objects carry an owning actor name and surface tags.
package scene

import (
	"sync"
	"sync/atomic"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/lidarscan/internal/lidar/scan"
)

// minHitDistance keeps a ray from hitting the surface it starts on.
const minHitDistance = 1e-6

// Object is a shape placed in the scene.
type Object struct {
	Actor string
	Tags  []string
	Shape Shape
}

// Scene holds objects and answers ray casts against them. It is safe for
// concurrent use.
type Scene struct {
	mu      sync.RWMutex
	objects []Object
	ignored map[string]bool
}

// New returns a scene containing objects.
func New(objects ...Object) *Scene {
	s := &Scene{ignored: make(map[string]bool)}
	s.objects = append(s.objects, objects...)
	return s
}

// Add places more objects in the scene.
func (s *Scene) Add(objects ...Object) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects = append(s.objects, objects...)
}

// IgnoreActors excludes the named actors from casts, typically the scanner's
// own body.
func (s *Scene) IgnoreActors(actors ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range actors {
		s.ignored[a] = true
	}
}

// Len returns the number of objects.
func (s *Scene) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// Cast returns the nearest hit along the ray within maxLength. A zero
// direction never hits.
func (s *Scene) Cast(origin, direction r3.Vec, maxLength float64) (scan.Hit, bool) {
	if r3.Norm(direction) == 0 || maxLength <= 0 {
		return scan.Hit{}, false
	}
	dir := r3.Unit(direction)

	s.mu.RLock()
	defer s.mu.RUnlock()

	best := maxLength
	var hit *Object
	for i := range s.objects {
		obj := &s.objects[i]
		if obj.Shape == nil || s.ignored[obj.Actor] {
			continue
		}
		if t, ok := obj.Shape.Intersect(origin, dir, minHitDistance, best); ok {
			best = t
			hit = obj
		}
	}
	if hit == nil {
		return scan.Hit{}, false
	}
	return scan.Hit{
		Position: r3.Add(origin, r3.Scale(best, dir)),
		Distance: best,
		Tags:     append([]string(nil), hit.Tags...),
		Actor:    hit.Actor,
	}, true
}

// FixedPose is a pose source that always reports the same pose.
type FixedPose scan.Pose

// CurrentPose returns the pose.
func (p FixedPose) CurrentPose() scan.Pose { return scan.Pose(p) }

// MovablePose is a pose source whose pose can be replaced from another
// goroutine.
type MovablePose struct {
	pose atomic.Pointer[scan.Pose]
}

// NewMovablePose returns a MovablePose starting at p.
func NewMovablePose(p scan.Pose) *MovablePose {
	m := &MovablePose{}
	m.Set(p)
	return m
}

// Set replaces the pose.
func (m *MovablePose) Set(p scan.Pose) { m.pose.Store(&p) }

// CurrentPose returns the latest pose.
func (m *MovablePose) CurrentPose() scan.Pose {
	if p := m.pose.Load(); p != nil {
		return *p
	}
	return scan.Pose{}
}
