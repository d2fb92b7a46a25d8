package scene

import (
	stdmath "math"

	"render-demo/core"
	"render-demo/math"
)

// AABB is an axis-aligned bounding box.
type AABB struct {
	Min math.Vec3
	Max math.Vec3
}

// BoundingBox is the smallest box around the vertex positions.
func BoundingBox(vertices []core.Vertex) AABB {
	if len(vertices) == 0 {
		return AABB{}
	}
	box := AABB{Min: vertices[0].Position, Max: vertices[0].Position}
	for _, v := range vertices[1:] {
		box = box.extend(v.Position)
	}
	return box
}

func (b AABB) extend(p math.Vec3) AABB {
	return AABB{
		Min: math.NewVec3(min(b.Min.X, p.X), min(b.Min.Y, p.Y), min(b.Min.Z, p.Z)),
		Max: math.NewVec3(max(b.Max.X, p.X), max(b.Max.Y, p.Y), max(b.Max.Z, p.Z)),
	}
}

func (b AABB) Center() math.Vec3 { return b.Min.Add(b.Max).Mul(0.5) }

func (b AABB) Union(o AABB) AABB { return b.extend(o.Min).extend(o.Max) }

// Transform returns the box around the eight transformed corners.
func (b AABB) Transform(m math.Mat4) AABB {
	var out AABB
	for i := range 8 {
		c := b.Min
		if i&1 != 0 {
			c.X = b.Max.X
		}
		if i&2 != 0 {
			c.Y = b.Max.Y
		}
		if i&4 != 0 {
			c.Z = b.Max.Z
		}
		p := m.MulVec3(c)
		if i == 0 {
			out = AABB{Min: p, Max: p}
			continue
		}
		out = out.extend(p)
	}
	return out
}

// Ray is a half-line; Direction is unit length.
type Ray struct {
	Origin    math.Vec3
	Direction math.Vec3
}

// CrosshairRay runs from the camera through the centre of the screen.
func CrosshairRay(c *Camera) Ray {
	return Ray{Origin: c.Position, Direction: c.Front()}
}

// Intersect returns the distance along r to the nearest face of b, or
// false when r misses. A ray starting inside b hits at distance zero.
func (r Ray) Intersect(b AABB) (float32, bool) {
	tmin, tmax := float32(0), float32(stdmath.MaxFloat32)
	origin := [3]float32{r.Origin.X, r.Origin.Y, r.Origin.Z}
	dir := [3]float32{r.Direction.X, r.Direction.Y, r.Direction.Z}
	lo := [3]float32{b.Min.X, b.Min.Y, b.Min.Z}
	hi := [3]float32{b.Max.X, b.Max.Y, b.Max.Z}
	for i := range 3 {
		if dir[i] == 0 {
			if origin[i] < lo[i] || origin[i] > hi[i] {
				return 0, false
			}
			continue
		}
		inv := 1 / dir[i]
		t1, t2 := (lo[i]-origin[i])*inv, (hi[i]-origin[i])*inv
		tmin, tmax = max(tmin, min(t1, t2)), min(tmax, max(t1, t2))
		if tmin > tmax {
			return 0, false
		}
	}
	return tmin, true
}

// Bounded drawables can be picked.
type Bounded interface {
	Bounds() AABB
}

// Pick returns the nearest entity whose world box r hits, or nil.
func (s *Scene) Pick(r Ray) *Entity {
	var hit *Entity
	best := float32(stdmath.MaxFloat32)
	for _, e := range s.Entities {
		bd, ok := e.Drawable.(Bounded)
		if !ok {
			continue
		}
		if t, ok := r.Intersect(bd.Bounds().Transform(e.Transform)); ok && t < best {
			hit, best = e, t
		}
	}
	return hit
}
