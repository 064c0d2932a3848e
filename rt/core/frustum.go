package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

const (
	PlaneLeft = iota
	PlaneRight
	PlaneBottom
	PlaneTop
	PlaneNear
	PlaneFar
)

// Frustum holds six normalized planes whose normals point inside.
type Frustum struct {
	Planes [6]Plane
}

// NewFrustum extracts the planes from a projection*view matrix with
// OpenGL-style clip depth. Planes in order: Left, Right, Bottom, Top, Near, Far.
func NewFrustum(vp mgl32.Mat4) Frustum {
	var f Frustum
	f.SetFromMatrix(vp)
	return f
}

func (f *Frustum) SetFromMatrix(vp mgl32.Mat4) {
	row := func(r int) mgl32.Vec4 {
		return mgl32.Vec4{vp.At(r, 0), vp.At(r, 1), vp.At(r, 2), vp.At(r, 3)}
	}
	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)

	raw := [6]mgl32.Vec4{
		r3.Add(r0), // left
		r3.Sub(r0), // right
		r3.Add(r1), // bottom
		r3.Sub(r1), // top
		r3.Add(r2), // near
		r3.Sub(r2), // far
	}
	for i, p := range raw {
		f.Planes[i] = Plane{Normal: p.Vec3(), Constant: p.W()}.Normalize()
	}
}

// IntersectsSphere is conservative: it returns false only when the sphere
// lies entirely behind one plane.
func (f *Frustum) IntersectsSphere(s Sphere) bool {
	negRadius := -s.Radius
	for i := range f.Planes {
		if f.Planes[i].DistanceToPoint(s.Center) < negRadius {
			return false
		}
	}
	return true
}

// IntersectsBox tests the corner furthest along each plane normal.
func (f *Frustum) IntersectsBox(b Box3) bool {
	for i := range f.Planes {
		p := &f.Planes[i]
		var v mgl32.Vec3
		for k := 0; k < 3; k++ {
			if p.Normal[k] > 0 {
				v[k] = b.Max[k]
			} else {
				v[k] = b.Min[k]
			}
		}
		if p.DistanceToPoint(v) < 0 {
			return false
		}
	}
	return true
}

func (f *Frustum) ContainsPoint(pt mgl32.Vec3) bool {
	for i := range f.Planes {
		if f.Planes[i].DistanceToPoint(pt) < 0 {
			return false
		}
	}
	return true
}

// IntersectsNode tests the node's geometry bounding sphere in world space.
// The second result is false when no bounds are available, in which case
// the node is reported as intersecting.
func (f *Frustum) IntersectsNode(n *Node) (bool, bool) {
	if n.Renderable == nil || n.Renderable.Geometry == nil {
		return true, false
	}
	s, ok := n.Renderable.Geometry.ComputeBoundingSphere()
	if !ok {
		return true, false
	}
	if n.Renderable.IsInstanced() {
		s = n.Renderable.instanceBounds(s)
	}
	return f.IntersectsSphere(s.ApplyMatrix4(n.World)), true
}
