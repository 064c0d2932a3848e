package core

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Plane is the set of points p with Normal·p + Constant = 0. Points with a
// positive distance lie on the Normal side.
type Plane struct {
	Normal   mgl32.Vec3
	Constant float32
}

func NewPlane(normal mgl32.Vec3, constant float32) Plane {
	return Plane{Normal: normal, Constant: constant}
}

func (p Plane) Normalize() Plane {
	l := p.Normal.Len()
	if l == 0 {
		return p
	}
	inv := 1 / l
	return Plane{Normal: p.Normal.Mul(inv), Constant: p.Constant * inv}
}

func (p Plane) DistanceToPoint(pt mgl32.Vec3) float32 {
	return p.Normal.Dot(pt) + p.Constant
}

func (p Plane) CoplanarPoint() mgl32.Vec3 {
	return p.Normal.Mul(-p.Constant)
}

// ApplyMatrix4 transforms the plane by an affine matrix.
func (p Plane) ApplyMatrix4(m mgl32.Mat4) Plane {
	normalMatrix := m.Mat3().Inv().Transpose()
	ref := m.Mul4x1(p.CoplanarPoint().Vec4(1)).Vec3()
	n := normalMatrix.Mul3x1(p.Normal).Normalize()
	return Plane{Normal: n, Constant: -ref.Dot(n)}
}

// Vec4 packs the plane as (normal, constant).
func (p Plane) Vec4() mgl32.Vec4 {
	return p.Normal.Vec4(p.Constant)
}

// Sphere with a negative radius is empty.
type Sphere struct {
	Center mgl32.Vec3
	Radius float32
}

func (s Sphere) Empty() bool { return s.Radius < 0 }

// ApplyMatrix4 moves the center and scales the radius by the largest axis scale.
func (s Sphere) ApplyMatrix4(m mgl32.Mat4) Sphere {
	return Sphere{
		Center: m.Mul4x1(s.Center.Vec4(1)).Vec3(),
		Radius: s.Radius * MaxScaleOnAxis(m),
	}
}

func (s Sphere) ContainsPoint(p mgl32.Vec3) bool {
	return p.Sub(s.Center).LenSqr() <= s.Radius*s.Radius
}

func MaxScaleOnAxis(m mgl32.Mat4) float32 {
	sx := m.Col(0).Vec3().LenSqr()
	sy := m.Col(1).Vec3().LenSqr()
	sz := m.Col(2).Vec3().LenSqr()
	return math32.Sqrt(math32.Max(sx, math32.Max(sy, sz)))
}

// Box3 is an axis-aligned box. EmptyBox3 has Min > Max.
type Box3 struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

func EmptyBox3() Box3 {
	inf := math32.Inf(1)
	return Box3{
		Min: mgl32.Vec3{inf, inf, inf},
		Max: mgl32.Vec3{-inf, -inf, -inf},
	}
}

func (b Box3) IsEmpty() bool {
	return b.Max.X() < b.Min.X() || b.Max.Y() < b.Min.Y() || b.Max.Z() < b.Min.Z()
}

func (b Box3) ExpandByPoint(p mgl32.Vec3) Box3 {
	for i := 0; i < 3; i++ {
		b.Min[i] = math32.Min(b.Min[i], p[i])
		b.Max[i] = math32.Max(b.Max[i], p[i])
	}
	return b
}

func (b Box3) Center() mgl32.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

func (b Box3) ContainsPoint(p mgl32.Vec3) bool {
	return p.X() >= b.Min.X() && p.X() <= b.Max.X() &&
		p.Y() >= b.Min.Y() && p.Y() <= b.Max.Y() &&
		p.Z() >= b.Min.Z() && p.Z() <= b.Max.Z()
}

// ApplyMatrix4 returns the box enclosing the 8 transformed corners.
func (b Box3) ApplyMatrix4(m mgl32.Mat4) Box3 {
	if b.IsEmpty() {
		return b
	}
	corners := [8]mgl32.Vec3{
		{b.Min.X(), b.Min.Y(), b.Min.Z()},
		{b.Max.X(), b.Min.Y(), b.Min.Z()},
		{b.Min.X(), b.Max.Y(), b.Min.Z()},
		{b.Max.X(), b.Max.Y(), b.Min.Z()},
		{b.Min.X(), b.Min.Y(), b.Max.Z()},
		{b.Max.X(), b.Min.Y(), b.Max.Z()},
		{b.Min.X(), b.Max.Y(), b.Max.Z()},
		{b.Max.X(), b.Max.Y(), b.Max.Z()},
	}
	out := EmptyBox3()
	for _, c := range corners {
		out = out.ExpandByPoint(m.Mul4x1(c.Vec4(1)).Vec3())
	}
	return out
}
