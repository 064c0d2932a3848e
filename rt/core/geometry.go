package core

import (
	"strconv"
	"sync/atomic"

	"github.com/chewxy/math32"
	"github.com/gekko3d/forward/rt/gpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

var geometryIDs atomic.Uint64

const (
	AttrPosition   = "position"
	AttrNormal     = "normal"
	AttrUV         = "uv"
	AttrColor      = "color"
	AttrSkinIndex  = "skinIndex"
	AttrSkinWeight = "skinWeight"
)

// MorphAttribute names the vertex attribute carrying position morph target i.
func MorphAttribute(i int) string { return "morphTarget" + strconv.Itoa(i) }

type Attribute struct {
	ItemSize int
	Data     []float32
	Version  int
}

func NewAttribute(itemSize int, data []float32) *Attribute {
	return &Attribute{ItemSize: itemSize, Data: data}
}

func (a *Attribute) Count() int {
	if a == nil || a.ItemSize == 0 {
		return 0
	}
	return len(a.Data) / a.ItemSize
}

func (a *Attribute) NeedsUpdate() { a.Version++ }

// Group is a sub-range of the geometry drawn with one material.
type Group struct {
	Start         int
	Count         int
	MaterialIndex int
}

// DrawRange limits drawing to [Start, Start+Count). Count < 0 draws to the end.
type DrawRange struct {
	Start int
	Count int
}

type Geometry struct {
	ID   uint64
	UUID string
	Name string

	Attributes      map[string]*Attribute
	MorphAttributes map[string][]*Attribute
	Index           []uint32
	IndexVersion    int
	Groups          []Group
	DrawRange       DrawRange

	BoundingBox    *Box3
	BoundingSphere *Sphere

	Diagnostics *Diagnostics

	listeners []func(*Geometry)
}

func NewGeometry() *Geometry {
	return &Geometry{
		ID:         geometryIDs.Add(1),
		UUID:       uuid.NewString(),
		Attributes: make(map[string]*Attribute),
		DrawRange:  DrawRange{Start: 0, Count: -1},
	}
}

func (g *Geometry) SetAttribute(name string, a *Attribute) *Geometry {
	g.Attributes[name] = a
	if name == AttrPosition {
		g.BoundingBox = nil
		g.BoundingSphere = nil
	}
	return g
}

func (g *Geometry) Attribute(name string) *Attribute { return g.Attributes[name] }

func (g *Geometry) HasAttribute(name string) bool {
	_, ok := g.Attributes[name]
	return ok
}

func (g *Geometry) SetIndex(index []uint32) *Geometry {
	g.Index = index
	g.IndexVersion++
	return g
}

func (g *Geometry) AddGroup(start, count, materialIndex int) {
	g.Groups = append(g.Groups, Group{Start: start, Count: count, MaterialIndex: materialIndex})
}

// ElementCount is the number of indices, or vertices when not indexed.
func (g *Geometry) ElementCount() int {
	if g.Index != nil {
		return len(g.Index)
	}
	return g.Attributes[AttrPosition].Count()
}

// Version sums every attribute and index version; any change means re-upload.
func (g *Geometry) Version() int {
	v := g.IndexVersion
	for _, a := range g.Attributes {
		v += a.Version
	}
	for _, targets := range g.MorphAttributes {
		for _, a := range targets {
			v += a.Version
		}
	}
	return v
}

func (g *Geometry) ComputeBoundingBox() (Box3, bool) {
	if g.BoundingBox != nil {
		return *g.BoundingBox, true
	}
	pos := g.Attributes[AttrPosition]
	if pos == nil || pos.ItemSize < 3 {
		return EmptyBox3(), false
	}
	b := EmptyBox3()
	for i := 0; i+2 < len(pos.Data); i += pos.ItemSize {
		b = b.ExpandByPoint(mgl32.Vec3{pos.Data[i], pos.Data[i+1], pos.Data[i+2]})
	}
	g.BoundingBox = &b
	return b, true
}

// ComputeBoundingSphere centers the sphere on the bounding box and takes the
// farthest vertex as radius.
func (g *Geometry) ComputeBoundingSphere() (Sphere, bool) {
	if g.BoundingSphere != nil {
		return *g.BoundingSphere, true
	}
	box, ok := g.ComputeBoundingBox()
	if !ok {
		return Sphere{Radius: -1}, false
	}
	pos := g.Attributes[AttrPosition]
	center := box.Center()
	var maxSq float32
	for i := 0; i+2 < len(pos.Data); i += pos.ItemSize {
		d := mgl32.Vec3{pos.Data[i], pos.Data[i+1], pos.Data[i+2]}.Sub(center).LenSqr()
		maxSq = math32.Max(maxSq, d)
	}
	s := Sphere{Center: center, Radius: math32.Sqrt(maxSq)}
	if box.IsEmpty() {
		s.Radius = -1
	}
	g.BoundingSphere = &s
	return s, true
}

func (g *Geometry) Desc() gpu.GeometryDesc {
	attrs := make(map[string]gpu.AttributeData, len(g.Attributes))
	for name, a := range g.Attributes {
		attrs[name] = gpu.AttributeData{ItemSize: a.ItemSize, Data: a.Data}
	}
	for i, a := range g.MorphAttributes[AttrPosition] {
		attrs[MorphAttribute(i)] = gpu.AttributeData{ItemSize: a.ItemSize, Data: a.Data}
	}
	return gpu.GeometryDesc{Label: g.Name, Attributes: attrs, Index: g.Index}
}

func (g *Geometry) AddDisposeListener(fn func(*Geometry)) {
	g.listeners = append(g.listeners, fn)
}

func (g *Geometry) Dispose() {
	ls := g.listeners
	g.listeners = nil
	for _, fn := range ls {
		fn(g)
	}
}

// NewPlaneGeometry builds a width x height quad in the XY plane facing +Z.
func NewPlaneGeometry(width, height float32) *Geometry {
	hw, hh := width/2, height/2
	g := NewGeometry()
	g.Name = "plane"
	g.SetAttribute(AttrPosition, NewAttribute(3, []float32{
		-hw, -hh, 0, hw, -hh, 0, hw, hh, 0, -hw, hh, 0,
	}))
	g.SetAttribute(AttrNormal, NewAttribute(3, []float32{
		0, 0, 1, 0, 0, 1, 0, 0, 1, 0, 0, 1,
	}))
	g.SetAttribute(AttrUV, NewAttribute(2, []float32{0, 0, 1, 0, 1, 1, 0, 1}))
	g.SetIndex([]uint32{0, 1, 2, 0, 2, 3})
	return g
}

// NewBoxGeometry builds an axis-aligned box centered on the origin with one
// group per face pair axis order +X, -X, +Y, -Y, +Z, -Z.
func NewBoxGeometry(width, height, depth float32) *Geometry {
	g := NewGeometry()
	g.Name = "box"
	var pos, nrm, uv []float32
	var idx []uint32

	face := func(u, v, w int, udir, vdir float32, wsign float32, materialIndex int) {
		size := [3]float32{width, height, depth}
		base := uint32(len(pos) / 3)
		start := len(idx)
		for iy := 0; iy < 2; iy++ {
			for ix := 0; ix < 2; ix++ {
				var p [3]float32
				p[u] = (float32(ix) - 0.5) * size[u] * udir
				p[v] = (float32(iy) - 0.5) * size[v] * vdir
				p[w] = size[w] / 2 * wsign
				var n [3]float32
				n[w] = wsign
				pos = append(pos, p[:]...)
				nrm = append(nrm, n[:]...)
				uv = append(uv, float32(ix), 1-float32(iy))
			}
		}
		idx = append(idx, base, base+2, base+1, base+2, base+3, base+1)
		g.AddGroup(start, 6, materialIndex)
	}
	face(2, 1, 0, -1, -1, 1, 0)
	face(2, 1, 0, 1, -1, -1, 1)
	face(0, 2, 1, 1, 1, 1, 2)
	face(0, 2, 1, 1, -1, -1, 3)
	face(0, 1, 2, 1, -1, 1, 4)
	face(0, 1, 2, -1, -1, -1, 5)

	g.SetAttribute(AttrPosition, NewAttribute(3, pos))
	g.SetAttribute(AttrNormal, NewAttribute(3, nrm))
	g.SetAttribute(AttrUV, NewAttribute(2, uv))
	g.SetIndex(idx)
	return g
}

// NewSphereGeometry builds a UV sphere.
func NewSphereGeometry(radius float32, widthSegments, heightSegments int) *Geometry {
	if widthSegments < 3 {
		widthSegments = 3
	}
	if heightSegments < 2 {
		heightSegments = 2
	}
	g := NewGeometry()
	g.Name = "sphere"
	var pos, nrm, uv []float32
	for iy := 0; iy <= heightSegments; iy++ {
		v := float32(iy) / float32(heightSegments)
		for ix := 0; ix <= widthSegments; ix++ {
			u := float32(ix) / float32(widthSegments)
			x := -math32.Cos(u*2*math32.Pi) * math32.Sin(v*math32.Pi)
			y := math32.Cos(v * math32.Pi)
			z := math32.Sin(u*2*math32.Pi) * math32.Sin(v*math32.Pi)
			pos = append(pos, radius*x, radius*y, radius*z)
			nrm = append(nrm, x, y, z)
			uv = append(uv, u, 1-v)
		}
	}
	var idx []uint32
	row := uint32(widthSegments + 1)
	for iy := 0; iy < heightSegments; iy++ {
		for ix := 0; ix < widthSegments; ix++ {
			a := uint32(iy)*row + uint32(ix) + 1
			b := uint32(iy)*row + uint32(ix)
			c := uint32(iy+1)*row + uint32(ix)
			d := uint32(iy+1)*row + uint32(ix) + 1
			if iy != 0 {
				idx = append(idx, a, b, d)
			}
			if iy != heightSegments-1 {
				idx = append(idx, b, c, d)
			}
		}
	}
	g.SetAttribute(AttrPosition, NewAttribute(3, pos))
	g.SetAttribute(AttrNormal, NewAttribute(3, nrm))
	g.SetAttribute(AttrUV, NewAttribute(2, uv))
	g.SetIndex(idx)
	return g
}
