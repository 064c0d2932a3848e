package lights

import (
	"testing"

	"github.com/gekko3d/forward/rt/core"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupCountsAndOrder(t *testing.T) {
	white := mgl32.Vec3{1, 1, 1}
	plain := core.NewDirectionalLight(white, 1)
	shadowed := core.NewDirectionalLight(mgl32.Vec3{1, 0, 0}, 2)
	shadowed.CastShadow = true
	point := core.NewPointLight(white, 1, 10, 2)
	ambient := core.NewAmbientLight(mgl32.Vec3{0.1, 0.2, 0.3}, 1)
	hemi := core.NewHemisphereLight(white, mgl32.Vec3{0, 0, 1}, 0.5)

	for _, n := range []*core.Node{plain, shadowed, point, ambient, hemi} {
		n.UpdateWorldMatrix(false, false)
	}

	acc := NewAccumulator()
	acc.Init()
	for _, n := range []*core.Node{plain, shadowed, point, ambient, hemi} {
		acc.Push(n)
	}

	s := NewState()
	s.ShadowsEnabled = true
	s.Setup(acc)

	assert.Equal(t, Counts{Directional: 2, Point: 1, Hemisphere: 1, DirectionalShadows: 1}, s.Counts)
	assert.Equal(t, 1, s.Counts.Shadows())
	assert.Equal(t, mgl32.Vec3{0.1, 0.2, 0.3}, s.Ambient)
	require.Len(t, s.Directional, 2*DirectionalStride)
	// The shadow caster is sorted first; its radiance is red * 2.
	assert.Equal(t, []float32{2, 0, 0}, s.Directional[4:7])
	require.Len(t, s.DirectionalShadowLights, 1)
	assert.Same(t, shadowed, s.DirectionalShadowLights[0])
	assert.Len(t, s.DirectionalShadowMatrix, 16)
}

func TestShadowsDisabledDropShadowCounts(t *testing.T) {
	l := core.NewDirectionalLight(mgl32.Vec3{1, 1, 1}, 1)
	l.CastShadow = true
	l.UpdateWorldMatrix(false, false)
	acc := NewAccumulator()
	acc.Push(l)

	s := NewState()
	s.Setup(acc)
	assert.Equal(t, Counts{Directional: 1}, s.Counts)
	assert.Empty(t, s.DirectionalShadowLights)
	assert.Empty(t, s.DirectionalShadowMatrix)
	v := s.Version

	s.ShadowsEnabled = true
	s.Setup(acc)
	assert.Equal(t, Counts{Directional: 1, DirectionalShadows: 1}, s.Counts)
	assert.NotEqual(t, v, s.Version)
}

func TestVersionTracksCounts(t *testing.T) {
	acc := NewAccumulator()
	s := NewState()

	l := core.NewPointLight(mgl32.Vec3{1, 1, 1}, 1, 0, 2)
	acc.Push(l)
	s.Setup(acc)
	v := s.Version

	s.Setup(acc)
	assert.Equal(t, v, s.Version, "same counts keep the version")

	acc.Init()
	s.Setup(acc)
	assert.NotEqual(t, v, s.Version)
	assert.Equal(t, Counts{}, s.Counts)
}

func TestSetupViewTransformsToViewSpace(t *testing.T) {
	light := core.NewDirectionalLight(mgl32.Vec3{1, 1, 1}, 1)
	light.SetPosition(mgl32.Vec3{0, 10, 0})
	light.UpdateWorldMatrix(false, false)
	point := core.NewPointLight(mgl32.Vec3{1, 1, 1}, 1, 0, 2)
	point.SetPosition(mgl32.Vec3{0, 0, -5})
	point.UpdateWorldMatrix(false, false)

	acc := NewAccumulator()
	acc.Push(light)
	acc.Push(point)
	s := NewState()
	s.Setup(acc)

	// Camera at (0,0,5) looking down -Z: a pure translation view.
	view := mgl32.Translate3D(0, 0, -5)
	s.SetupView(view)

	assert.InDeltaSlice(t, []float32{0, 1, 0}, s.Directional[0:3], 1e-5)
	assert.InDeltaSlice(t, []float32{0, 0, -10}, s.Point[0:3], 1e-5)
}

func TestAccumulatorInitKeepsCapacity(t *testing.T) {
	acc := NewAccumulator()
	for i := 0; i < 8; i++ {
		acc.Push(core.NewAmbientLight(mgl32.Vec3{}, 1))
	}
	c := cap(acc.Lights())
	acc.Init()
	assert.Empty(t, acc.Lights())
	assert.Equal(t, c, cap(acc.Lights()))
}
