package scene

import (
	"errors"
	"fmt"
	"os"

	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"

	"github.com/banshee-data/lidarscan/internal/lidar/scan"
)

// Vec is a YAML-friendly [x, y, z] triple.
type Vec [3]float64

func (v Vec) r3() r3.Vec { return r3.Vec{X: v[0], Y: v[1], Z: v[2]} }

// SphereSpec describes a sphere in a scene file.
type SphereSpec struct {
	Center Vec     `yaml:"center"`
	Radius float64 `yaml:"radius"`
}

// PlaneSpec describes a plane in a scene file.
type PlaneSpec struct {
	Point  Vec `yaml:"point"`
	Normal Vec `yaml:"normal"`
}

// BoxSpec describes an axis-aligned box in a scene file.
type BoxSpec struct {
	Min Vec `yaml:"min"`
	Max Vec `yaml:"max"`
}

// ObjectSpec is one object entry. Exactly one shape must be set.
type ObjectSpec struct {
	Actor  string      `yaml:"actor"`
	Tags   []string    `yaml:"tags,omitempty"`
	Sphere *SphereSpec `yaml:"sphere,omitempty"`
	Plane  *PlaneSpec  `yaml:"plane,omitempty"`
	Box    *BoxSpec    `yaml:"box,omitempty"`
}

// PoseSpec is the scanner pose in a scene file.
type PoseSpec struct {
	Position Vec          `yaml:"position"`
	Rotation scan.Rotator `yaml:"rotation"`
}

// Description is the on-disk scene format.
type Description struct {
	Name         string       `yaml:"name"`
	Pose         PoseSpec     `yaml:"pose"`
	IgnoreActors []string     `yaml:"ignore_actors,omitempty"`
	Objects      []ObjectSpec `yaml:"objects"`
}

// Parse decodes a YAML scene description.
func Parse(data []byte) (*Description, error) {
	var d Description
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to parse scene: %w", err)
	}
	return &d, nil
}

// LoadFile reads and parses a YAML scene description.
func LoadFile(path string) (*Description, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scene file %s: %w", path, err)
	}
	return Parse(data)
}

// ScannerPose returns the pose declared in the description.
func (d *Description) ScannerPose() scan.Pose {
	return scan.Pose{Position: d.Pose.Position.r3(), Rotation: d.Pose.Rotation}
}

// Build constructs the scene. It rejects objects with no shape, more than
// one shape, or degenerate dimensions.
func (d *Description) Build() (*Scene, error) {
	s := New()
	for i, o := range d.Objects {
		shape, err := o.shape()
		if err != nil {
			return nil, fmt.Errorf("object %d (%q): %w", i, o.Actor, err)
		}
		s.Add(Object{Actor: o.Actor, Tags: o.Tags, Shape: shape})
	}
	s.IgnoreActors(d.IgnoreActors...)
	return s, nil
}

func (o ObjectSpec) shape() (Shape, error) {
	var shapes []Shape
	if o.Sphere != nil {
		if o.Sphere.Radius <= 0 {
			return nil, fmt.Errorf("sphere radius must be positive, got %v", o.Sphere.Radius)
		}
		shapes = append(shapes, Sphere{Center: o.Sphere.Center.r3(), Radius: o.Sphere.Radius})
	}
	if o.Plane != nil {
		n := o.Plane.Normal.r3()
		if r3.Norm(n) == 0 {
			return nil, errors.New("plane normal must be non-zero")
		}
		shapes = append(shapes, Plane{Point: o.Plane.Point.r3(), Normal: n})
	}
	if o.Box != nil {
		lo, hi := o.Box.Min.r3(), o.Box.Max.r3()
		if lo.X > hi.X || lo.Y > hi.Y || lo.Z > hi.Z {
			return nil, errors.New("box min must not exceed max")
		}
		shapes = append(shapes, Box{Min: lo, Max: hi})
	}
	switch len(shapes) {
	case 0:
		return nil, errors.New("no shape given")
	case 1:
		return shapes[0], nil
	}
	return nil, errors.New("more than one shape given")
}
