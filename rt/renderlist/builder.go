package renderlist

import (
	"github.com/gekko3d/forward/logging"
	"github.com/gekko3d/forward/rt/core"
	"github.com/gekko3d/forward/rt/lights"
	"github.com/go-gl/mathgl/mgl32"
)

type Options struct {
	// SortObjects computes Z for each item.
	SortObjects bool
	// ShadowPass pushes only shadow casters and ignores lights.
	ShadowPass bool
}

// Builder walks a scene graph and fills a List. It keeps no per-frame
// state besides the culling frustum.
type Builder struct {
	// Culled counts drawables rejected by the frustum in the last Build.
	Culled int

	log     logging.Logger
	frustum core.Frustum
	view    mgl32.Mat4
	layers  core.Layers
	warned  map[*core.Geometry]bool
	options Options
	list    *List
	acc     *lights.Accumulator
}

func NewBuilder(log logging.Logger) *Builder {
	return &Builder{
		log:    logging.OrNop(log),
		warned: make(map[*core.Geometry]bool),
	}
}

func (b *Builder) SetLogger(log logging.Logger) { b.log = logging.OrNop(log) }

// Build walks root as seen by camera. The camera's view and projection must
// be current. acc may be nil.
func (b *Builder) Build(root *core.Node, camera *core.Camera, list *List, acc *lights.Accumulator, opts Options) {
	b.frustum.SetFromMatrix(camera.ViewProjection())
	b.view = camera.View
	b.layers = camera.Layers
	b.options = opts
	b.list = list
	b.acc = acc
	b.Culled = 0

	b.walk(root, 0)

	b.list = nil
	b.acc = nil
}

func (b *Builder) walk(n *core.Node, groupOrder int) {
	if !n.Visible {
		return
	}

	if n.GroupOrder > 0 {
		groupOrder = n.GroupOrder
	}

	if n.Layers.Test(b.layers) {
		if n.Light != nil {
			b.visitLight(n)
		}
		if n.Renderable != nil {
			b.visitDrawable(n, groupOrder)
		}
	}

	for _, c := range n.Children() {
		b.walk(c, groupOrder)
	}
}

func (b *Builder) visitLight(n *core.Node) {
	if b.options.ShadowPass || b.acc == nil {
		return
	}
	b.acc.Push(n)
	if n.CastShadow && n.Light.CastsShadow() {
		b.acc.PushShadow(n)
	}
}

func (b *Builder) visitDrawable(n *core.Node, groupOrder int) {
	r := n.Renderable
	if r.Geometry == nil || (r.Material == nil && len(r.Materials) == 0) {
		return
	}
	if b.options.ShadowPass && !n.CastShadow {
		return
	}

	if n.FrustumCulled {
		hit, ok := b.frustum.IntersectsNode(n)
		if !ok && !b.warned[r.Geometry] {
			b.warned[r.Geometry] = true
			b.log.Warnf("geometry %q on node %q has no position attribute; culling skipped", r.Geometry.Name, n.Name)
		}
		if !hit {
			b.Culled++
			return
		}
	}

	var z float32
	if b.options.SortObjects {
		z = b.depth(n)
	}

	if len(r.Materials) == 0 {
		if r.Material.Visible {
			b.list.Push(n, r.Geometry, r.Material, groupOrder, z, nil)
		}
		return
	}

	groups := r.Geometry.Groups
	for i := range groups {
		g := &groups[i]
		if g.MaterialIndex < 0 || g.MaterialIndex >= len(r.Materials) {
			continue
		}
		m := r.Materials[g.MaterialIndex]
		if m == nil || !m.Visible {
			continue
		}
		b.list.Push(n, r.Geometry, m, groupOrder, z, g)
	}
}

// depth measures the bounding sphere center, or the node origin when the
// geometry has no bounds.
func (b *Builder) depth(n *core.Node) float32 {
	p := n.WorldPosition()
	if s, ok := n.Renderable.Geometry.ComputeBoundingSphere(); ok {
		p = n.World.Mul4x1(s.Center.Vec4(1)).Vec3()
	}
	return -b.view.Mul4x1(p.Vec4(1)).Z()
}

// Forget drops per-geometry bookkeeping after the geometry is disposed.
func (b *Builder) Forget(g *core.Geometry) {
	delete(b.warned, g)
}
