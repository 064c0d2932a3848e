package renderlist

import (
	"testing"

	"github.com/gekko3d/forward/rt/core"
	"github.com/gekko3d/forward/rt/lights"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func originCamera() *core.Camera {
	cam := core.NewPerspectiveCamera(90, 1, 0.1, 100)
	cam.UpdateView()
	return cam
}

func build(t *testing.T, scene *core.Scene, cam *core.Camera, opts Options) (*List, *lights.Accumulator, *Builder) {
	t.Helper()
	scene.UpdateWorldMatrices()
	l := New()
	acc := lights.NewAccumulator()
	b := NewBuilder(nil)
	l.Init()
	acc.Init()
	b.Build(scene.Root, cam, l, acc, opts)
	l.Finish()
	l.Sort(nil, nil)
	return l, acc, b
}

func names(items []*Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Node.Name
	}
	return out
}

func TestBuildBucketsMixedScene(t *testing.T) {
	scene := core.NewScene()

	cube := core.NewMesh("cube", core.NewBoxGeometry(1, 1, 1), core.NewStandardMaterial(mgl32.Vec3{1, 0, 0}, 1, 0))
	cube.SetPosition(mgl32.Vec3{0, 0, -5})

	quadMat := core.NewBasicMaterial(mgl32.Vec3{0, 1, 0})
	quadMat.Transparent = true
	quadMat.Opacity = 0.5
	quad := core.NewMesh("quad", core.NewPlaneGeometry(1, 1), quadMat)
	quad.SetPosition(mgl32.Vec3{0, 0, -3})

	glass := core.NewMaterial(core.PhysicalMaterial)
	glass.Transmission = 1
	sphere := core.NewMesh("sphere", core.NewSphereGeometry(0.5, 8, 6), glass)
	sphere.SetPosition(mgl32.Vec3{0, 0, -4})

	scene.Add(cube, quad, sphere)
	l, _, _ := build(t, scene, originCamera(), Options{SortObjects: true})

	assert.Equal(t, []string{"cube"}, names(l.Items(Opaque)))
	assert.Equal(t, []string{"sphere"}, names(l.Items(Transmissive)))
	assert.Equal(t, []string{"quad"}, names(l.Items(Transparent)))
	assert.InDelta(t, 5, l.Items(Opaque)[0].Z, 1e-4)
	assert.InDelta(t, 4, l.Items(Transmissive)[0].Z, 1e-4)
	assert.InDelta(t, 3, l.Items(Transparent)[0].Z, 1e-4)
}

func TestBuildTransparentBackToFront(t *testing.T) {
	scene := core.NewScene()
	for _, z := range []float32{-2, -10} {
		m := core.NewBasicMaterial(mgl32.Vec3{1, 1, 1})
		m.Transparent = true
		q := core.NewMesh("quad", core.NewPlaneGeometry(1, 1), m)
		q.SetPosition(mgl32.Vec3{0, 0, z})
		scene.Add(q)
	}
	l, _, _ := build(t, scene, originCamera(), Options{SortObjects: true})

	items := l.Items(Transparent)
	require.Len(t, items, 2)
	// Farther first: world z=-10 then z=-2.
	assert.InDelta(t, -10, items[0].Node.WorldPosition().Z(), 1e-5)
	assert.InDelta(t, -2, items[1].Node.WorldPosition().Z(), 1e-5)
}

func TestBuildOpaqueFrontToBack(t *testing.T) {
	scene := core.NewScene()
	m := core.NewBasicMaterial(mgl32.Vec3{1, 1, 1})
	for _, z := range []float32{-10, -2, -6} {
		q := core.NewMesh("quad", core.NewPlaneGeometry(1, 1), m)
		q.SetPosition(mgl32.Vec3{0, 0, z})
		scene.Add(q)
	}
	l, _, _ := build(t, scene, originCamera(), Options{SortObjects: true})

	items := l.Items(Opaque)
	require.Len(t, items, 3)
	assert.Less(t, items[0].Z, items[1].Z)
	assert.Less(t, items[1].Z, items[2].Z)
}

func TestBuildPrunesInvisibleAndCulled(t *testing.T) {
	scene := core.NewScene()
	m := core.NewBasicMaterial(mgl32.Vec3{1, 1, 1})

	hidden := core.NewNode("hidden")
	hidden.Visible = false
	child := core.NewMesh("child", core.NewPlaneGeometry(1, 1), m)
	child.SetPosition(mgl32.Vec3{0, 0, -5})
	hidden.Add(child)

	behind := core.NewMesh("behind", core.NewPlaneGeometry(1, 1), m)
	behind.SetPosition(mgl32.Vec3{0, 0, 10})

	unculled := core.NewMesh("unculled", core.NewPlaneGeometry(1, 1), m)
	unculled.SetPosition(mgl32.Vec3{0, 0, 10})
	unculled.FrustumCulled = false

	bare := core.NewMesh("bare", core.NewGeometry(), m)
	bare.SetPosition(mgl32.Vec3{0, 0, 10})

	scene.Add(hidden, behind, unculled, bare)
	l, _, b := build(t, scene, originCamera(), Options{})

	assert.ElementsMatch(t, []string{"unculled", "bare"}, names(l.Items(Opaque)))
	assert.Equal(t, 1, b.Culled)
}

func TestBuildLayers(t *testing.T) {
	scene := core.NewScene()
	m := core.NewBasicMaterial(mgl32.Vec3{1, 1, 1})
	a := core.NewMesh("a", core.NewPlaneGeometry(1, 1), m)
	a.SetPosition(mgl32.Vec3{0, 0, -5})
	b := core.NewMesh("b", core.NewPlaneGeometry(1, 1), m)
	b.SetPosition(mgl32.Vec3{0, 0, -5})
	b.Layers = core.Layers(0).Enable(2)
	// Children of a layer-excluded node are still visited.
	a2 := core.NewMesh("a2", core.NewPlaneGeometry(1, 1), m)
	b.Add(a2)
	scene.Add(a, b)

	cam := originCamera()
	l, _, _ := build(t, scene, cam, Options{})
	assert.Equal(t, []string{"a", "a2"}, names(l.Items(Opaque)))

	cam.Layers = core.Layers(0).Enable(2)
	l, _, _ = build(t, scene, cam, Options{})
	assert.Equal(t, []string{"b"}, names(l.Items(Opaque)))
}

func TestBuildGroupsAndGroupOrder(t *testing.T) {
	scene := core.NewScene()
	g := core.NewBoxGeometry(1, 1, 1)
	mats := []*core.Material{
		core.NewBasicMaterial(mgl32.Vec3{1, 0, 0}),
		core.NewBasicMaterial(mgl32.Vec3{0, 1, 0}),
	}
	hidden := core.NewBasicMaterial(mgl32.Vec3{0, 0, 1})
	hidden.Visible = false
	mats = append(mats, hidden)

	// Box groups use indices 0..5; only 0, 1 resolve to visible materials.
	box := core.NewMultiMaterialMesh("box", g, mats)
	box.SetPosition(mgl32.Vec3{0, 0, -5})

	ordered := core.NewNode("ordered")
	ordered.GroupOrder = 3
	inner := core.NewMesh("inner", core.NewPlaneGeometry(1, 1), mats[0])
	inner.SetPosition(mgl32.Vec3{0, 0, -5})
	ordered.Add(inner)

	scene.Add(ordered, box)
	l, _, _ := build(t, scene, originCamera(), Options{})

	items := l.Items(Opaque)
	require.Len(t, items, 3)
	assert.Equal(t, "box", items[0].Node.Name)
	assert.Equal(t, "box", items[1].Node.Name)
	assert.Equal(t, "inner", items[2].Node.Name)
	assert.Equal(t, 3, items[2].GroupOrder)
	assert.NotNil(t, items[0].Group)
	assert.Nil(t, items[2].Group)
}

func TestBuildCollectsLights(t *testing.T) {
	scene := core.NewScene()
	sun := core.NewDirectionalLight(mgl32.Vec3{1, 1, 1}, 1)
	sun.CastShadow = true
	lamp := core.NewPointLight(mgl32.Vec3{1, 1, 1}, 1, 0, 2)
	off := core.NewPointLight(mgl32.Vec3{1, 1, 1}, 1, 0, 2)
	off.Visible = false
	scene.Add(sun, lamp, off)

	_, acc, _ := build(t, scene, originCamera(), Options{})
	assert.Len(t, acc.Lights(), 2)
	require.Len(t, acc.Shadows(), 1)
	assert.Same(t, sun, acc.Shadows()[0])
}

func TestBuildShadowPassOnlyCasters(t *testing.T) {
	scene := core.NewScene()
	m := core.NewBasicMaterial(mgl32.Vec3{1, 1, 1})
	caster := core.NewMesh("caster", core.NewPlaneGeometry(1, 1), m)
	caster.CastShadow = true
	caster.SetPosition(mgl32.Vec3{0, 0, -5})
	receiver := core.NewMesh("receiver", core.NewPlaneGeometry(1, 1), m)
	receiver.SetPosition(mgl32.Vec3{0, 0, -5})
	sun := core.NewDirectionalLight(mgl32.Vec3{1, 1, 1}, 1)
	scene.Add(caster, receiver, sun)

	l, acc, _ := build(t, scene, originCamera(), Options{ShadowPass: true})
	assert.Equal(t, []string{"caster"}, names(l.Items(Opaque)))
	assert.Empty(t, acc.Lights())
}
