package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Renderable is the drawable component of a Node. When Materials is set the
// geometry's groups select a material by index; otherwise Material covers
// the whole draw range.
type Renderable struct {
	Geometry  *Geometry
	Material  *Material
	Materials []*Material
	Mode      DrawMode

	InstanceMatrices []mgl32.Mat4
	Skeleton         *Skeleton
	MorphInfluences  []float32
}

func NewMesh(name string, g *Geometry, m *Material) *Node {
	n := NewNode(name)
	n.Renderable = &Renderable{Geometry: g, Material: m}
	return n
}

// NewMultiMaterialMesh draws each geometry group with Materials[group.MaterialIndex].
func NewMultiMaterialMesh(name string, g *Geometry, materials []*Material) *Node {
	n := NewNode(name)
	n.Renderable = &Renderable{Geometry: g, Materials: materials}
	return n
}

func (r *Renderable) IsInstanced() bool { return len(r.InstanceMatrices) > 0 }
func (r *Renderable) IsSkinned() bool   { return r.Skeleton != nil && len(r.Skeleton.Bones) > 0 }
func (r *Renderable) IsMorphed() bool   { return len(r.MorphInfluences) > 0 }

// InstanceCount is the number of instances drawn; 1 when not instanced.
func (r *Renderable) InstanceCount() int {
	if r.IsInstanced() {
		return len(r.InstanceMatrices)
	}
	return 1
}

// instanceBounds grows s to cover every instance placement.
func (r *Renderable) instanceBounds(s Sphere) Sphere {
	box := EmptyBox3()
	var radius float32
	for _, m := range r.InstanceMatrices {
		t := s.ApplyMatrix4(m)
		box = box.ExpandByPoint(t.Center)
		if t.Radius > radius {
			radius = t.Radius
		}
	}
	c := box.Center()
	half := box.Max.Sub(c).Len()
	return Sphere{Center: c, Radius: half + radius}
}

// Skeleton drives skinned meshes. BoneInverses are the bind-pose inverses.
type Skeleton struct {
	Bones        []*Node
	BoneInverses []mgl32.Mat4

	matrices []float32
}

func NewSkeleton(bones []*Node) *Skeleton {
	s := &Skeleton{Bones: bones, BoneInverses: make([]mgl32.Mat4, len(bones))}
	for i, b := range bones {
		b.UpdateWorldMatrix(true, false)
		s.BoneInverses[i] = b.World.Inv()
	}
	return s
}

// Update flattens bone world * inverse bind matrices. Bone world matrices
// must be current.
func (s *Skeleton) Update() []float32 {
	need := len(s.Bones) * 16
	if cap(s.matrices) < need {
		s.matrices = make([]float32, need)
	}
	s.matrices = s.matrices[:need]
	for i, b := range s.Bones {
		m := b.World.Mul4(s.BoneInverses[i])
		copy(s.matrices[i*16:], m[:])
	}
	return s.matrices
}
