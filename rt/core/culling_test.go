package core

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

// Camera at origin looking down -Z, 90 deg FOV, aspect 1, near 1, far 100.
func originFrustum() Frustum {
	proj := mgl32.Perspective(mgl32.DegToRad(90), 1.0, 1.0, 100.0)
	view := mgl32.LookAtV(
		mgl32.Vec3{0, 0, 0},
		mgl32.Vec3{0, 0, -1},
		mgl32.Vec3{0, 1, 0},
	)
	return NewFrustum(proj.Mul4(view))
}

func TestFrustumBoxCulling(t *testing.T) {
	f := originFrustum()

	tests := []struct {
		name     string
		min, max mgl32.Vec3
		expected bool
	}{
		{"inside center", mgl32.Vec3{-1, -1, -10}, mgl32.Vec3{1, 1, -5}, true},
		{"outside left", mgl32.Vec3{-20, -1, -10}, mgl32.Vec3{-15, 1, -5}, false},
		{"outside right", mgl32.Vec3{15, -1, -10}, mgl32.Vec3{20, 1, -5}, false},
		{"behind near", mgl32.Vec3{-1, -1, 2}, mgl32.Vec3{1, 1, 5}, false},
		{"beyond far", mgl32.Vec3{-1, -1, -200}, mgl32.Vec3{1, 1, -150}, false},
		{"intersecting left plane", mgl32.Vec3{-15, -1, -10}, mgl32.Vec3{-5, 1, -5}, true},
		{"encompassing", mgl32.Vec3{-1000, -1000, -1000}, mgl32.Vec3{1000, 1000, 1000}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, f.IntersectsBox(Box3{Min: tc.min, Max: tc.max}))
		})
	}
}

func TestFrustumSphereConservative(t *testing.T) {
	f := originFrustum()

	tests := []struct {
		name     string
		sphere   Sphere
		expected bool
	}{
		{"fully inside", Sphere{Center: mgl32.Vec3{0, 0, -10}, Radius: 1}, true},
		{"straddles near plane", Sphere{Center: mgl32.Vec3{0, 0, -0.5}, Radius: 1}, true},
		{"straddles left plane", Sphere{Center: mgl32.Vec3{-10.5, 0, -10}, Radius: 1}, true},
		{"just outside left", Sphere{Center: mgl32.Vec3{-13, 0, -10}, Radius: 1}, false},
		{"behind camera", Sphere{Center: mgl32.Vec3{0, 0, 5}, Radius: 1}, false},
		{"beyond far", Sphere{Center: mgl32.Vec3{0, 0, -120}, Radius: 5}, false},
		{"huge around camera", Sphere{Center: mgl32.Vec3{0, 0, 0}, Radius: 500}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, f.IntersectsSphere(tc.sphere))
		})
	}
}

// Any sphere that contains a point inside the frustum must never be culled.
func TestFrustumNoFalseNegatives(t *testing.T) {
	f := originFrustum()
	for z := float32(-1.5); z > -99; z -= 7.3 {
		for x := float32(-1); x <= 1; x += 0.5 {
			p := mgl32.Vec3{x * -z * 0.9, 0, z}
			assert.True(t, f.ContainsPoint(p), "point %v", p)
			for _, r := range []float32{0, 0.01, 1, 50} {
				s := Sphere{Center: p.Add(mgl32.Vec3{r * 0.5, 0, 0}), Radius: r}
				assert.True(t, f.IntersectsSphere(s), "sphere %v", s)
			}
		}
	}
}

func TestFrustumPlanesNormalized(t *testing.T) {
	f := originFrustum()
	for i, p := range f.Planes {
		assert.InDelta(t, 1.0, p.Normal.Len(), 1e-5, "plane %d", i)
	}
	// Near plane normal points down -Z, into the frustum.
	assert.InDelta(t, -1.0, f.Planes[PlaneNear].Normal.Z(), 1e-5)
	assert.InDelta(t, 1.0, f.Planes[PlaneFar].Normal.Z(), 1e-5)
}

func TestFrustumOrtho(t *testing.T) {
	proj := mgl32.Ortho(-10, 10, -10, 10, 0, 20)
	view := mgl32.LookAtV(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0})
	f := NewFrustum(proj.Mul4(view))

	assert.True(t, f.IntersectsBox(Box3{Min: mgl32.Vec3{-1, -1, -6}, Max: mgl32.Vec3{1, 1, -4}}))
	// Far is 20, so z=-25 is beyond it.
	assert.False(t, f.IntersectsBox(Box3{Min: mgl32.Vec3{-1, -1, -26}, Max: mgl32.Vec3{1, 1, -24}}))
}

func TestFrustumIntersectsNode(t *testing.T) {
	f := originFrustum()

	mesh := NewMesh("quad", NewPlaneGeometry(1, 1), NewBasicMaterial(mgl32.Vec3{1, 1, 1}))
	mesh.SetPosition(mgl32.Vec3{0, 0, -5})
	mesh.UpdateWorldMatrix(false, false)
	hit, ok := f.IntersectsNode(mesh)
	assert.True(t, ok)
	assert.True(t, hit)

	mesh.SetPosition(mgl32.Vec3{0, 0, 50})
	mesh.UpdateWorldMatrix(false, false)
	hit, ok = f.IntersectsNode(mesh)
	assert.True(t, ok)
	assert.False(t, hit)

	// No position attribute: never culled, and the caller is told bounds are missing.
	g := NewGeometry()
	bare := NewMesh("bare", g, NewBasicMaterial(mgl32.Vec3{1, 1, 1}))
	bare.SetPosition(mgl32.Vec3{0, 0, 50})
	bare.UpdateWorldMatrix(false, false)
	hit, ok = f.IntersectsNode(bare)
	assert.False(t, ok)
	assert.True(t, hit)
}

func TestSphereApplyMatrix(t *testing.T) {
	s := Sphere{Center: mgl32.Vec3{1, 0, 0}, Radius: 2}
	m := mgl32.Translate3D(0, 5, 0).Mul4(mgl32.Scale3D(1, 3, 2))
	out := s.ApplyMatrix4(m)
	assert.Equal(t, mgl32.Vec3{1, 5, 0}, out.Center)
	assert.InDelta(t, 6.0, out.Radius, 1e-5)
}

func TestBoxApplyMatrix(t *testing.T) {
	b := Box3{Min: mgl32.Vec3{-1, -1, -1}, Max: mgl32.Vec3{1, 1, 1}}
	out := b.ApplyMatrix4(mgl32.Translate3D(10, 0, 0).Mul4(mgl32.HomogRotate3DY(mgl32.DegToRad(45))))
	assert.InDelta(t, 10-1.41421, out.Min.X(), 1e-4)
	assert.InDelta(t, 10+1.41421, out.Max.X(), 1e-4)
	assert.True(t, EmptyBox3().IsEmpty())
	assert.True(t, EmptyBox3().ApplyMatrix4(mgl32.Ident4()).IsEmpty())
}

func TestPlaneApplyMatrix(t *testing.T) {
	// y = 1 plane, normal +Y.
	p := NewPlane(mgl32.Vec3{0, 1, 0}, -1)
	moved := p.ApplyMatrix4(mgl32.Translate3D(0, 2, 0))
	assert.InDelta(t, 0, moved.DistanceToPoint(mgl32.Vec3{5, 3, 7}), 1e-5)
	assert.InDelta(t, 1, moved.Normal.Y(), 1e-5)
}
