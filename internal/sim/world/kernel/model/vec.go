package model

import "math"

// Vec3 is a world position. Y is height; X/Z span the map plane.
type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) DistanceXZ(o Vec3) float64 {
	dx := v.X - o.X
	dz := v.Z - o.Z
	return math.Sqrt(dx*dx + dz*dz)
}

// EntityID is an opaque reference to a live host entity (structure, container,
// turret). Zero means none.
type EntityID uint64
